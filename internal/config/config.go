package config

import (
	"time"

	"github.com/shouni/go-utils/envutil"
)

// デフォルト値の定義なのだ
const (
	DefaultModel       = "gemini-2.5-flash"
	DefaultImageModel  = "gemini-2.5-flash-image-preview"
	DefaultHTTPTimeout = 30 * time.Second

	// ページ画像生成の間隔。APIの利用枠を守るための待ち時間なのだ。
	DefaultPageInterval = 10 * time.Second

	DefaultTargetAge = "3-5"
	DefaultBookStyle = "toddler"
)

// Config はアプリケーション全体の環境設定（APIキーやモデル名）を保持する構造体なのだ。
type Config struct {
	GeminiAPIKey     string
	GeminiModel      string
	GeminiImageModel string

	Options GenerateOptions
}

// LoadConfig は環境変数から設定を読み込み、構造体を返すのだ！
func LoadConfig() *Config {
	cfg := &Config{
		GeminiAPIKey:     envutil.GetEnv("GEMINI_API_KEY", ""),
		GeminiModel:      envutil.GetEnv("GEMINI_MODEL", DefaultModel),
		GeminiImageModel: envutil.GetEnv("IMAGE_GEMINI_MODEL", DefaultImageModel),
	}
	return cfg
}

// GenerateOptions は CLI フラグから渡される実行時のパラメータなのだ。
type GenerateOptions struct {
	// 物語の素材関連
	Themes        string // --themes
	OtherElements string // --elements
	TargetAge     string // --age
	BookStyle     string // --style
	Author        string // --author
	License       string // --license

	// 自作テキストモード関連
	Title    string // --title: 指定すると自作テキストモードになる
	TextFile string // --text-file: 本文ファイルのパス（'-'で標準入力）

	// 参照画像（一貫性アンカー）
	StyleImage     string // --style-image
	CharacterImage string // --character-image

	// 入出力
	InputFile  string // --input-file: 保存済みプロジェクト（ローカル or gs://...）
	OutputFile string // --output-file
	PDFFile    string // --pdf-file

	// ページ単位の再生成関連
	Page           int    // --page: 対象ページのインデックス（0が表紙）
	Prompt         string // --prompt: 挿絵を描き直すための新しいプロンプト
	ReferenceImage string // --reference: 今回だけ使う参照画像
	Instruction    string // --instruction: 本文を書き直すための指示

	// AI挙動設定
	AIModel    string // --model: テキスト生成用のGeminiモデル
	ImageModel string // --image-model: 画像生成用のGeminiモデル
	SkipImages bool   // --skip-images: 物語だけ生成して画像は後回しにする

	// 実行制御
	PageInterval time.Duration // --page-interval
	HTTPTimeout  time.Duration // --http-timeout
}
