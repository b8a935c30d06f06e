package builder

import (
	"github.com/shouni/go-storybook-kit/internal/config"

	"github.com/shouni/go-storybook-kit/pkg/asset"
	"github.com/shouni/go-storybook-kit/pkg/gateway"
	"github.com/shouni/go-storybook-kit/pkg/prompts"

	"github.com/shouni/go-gemini-client/pkg/gemini"
	"github.com/shouni/go-http-kit/pkg/httpkit"
	"github.com/shouni/go-remote-io/pkg/remoteio"
)

// AppContext は、アプリケーション実行に必要な共通コンテキストを保持する
// これを各Build関数に渡すことで、依存関係の注入を簡素化します。
type AppContext struct {
	Config  *config.Config          // Configは、環境変数から読み込まれたグローバルな設定です（APIキー、モデル名など）。
	Options config.GenerateOptions  // Optionsは、コマンドラインから渡された実行時の設定です（テーマ、保存先など）。
	Reader  remoteio.InputReader    // Readerは、保存済みプロジェクトや本文ファイルの読み込みに使用する入力元です。
	Writer  remoteio.OutputWriter   // Writerは、生成されたプロジェクトやPDFを保存するための出力先です。
	Gateway gateway.Gateway         // Gatewayは、物語・プロンプト・画像の各生成を束ねるAIゲートウェイです。
	Prompts *prompts.Pipeline       // Promptsは、翻訳とスタイル分離を行うプロンプト変換パイプラインです。
	Fetcher *asset.Fetcher          // Fetcherは、参照画像や連続性画像の取得を担います。
	aiClient   gemini.GenerativeModel  // aiClient はGeminiの通信に使う共通クライアント
	httpClient httpkit.ClientInterface // httpClient は外部APIとの通信に使う共通クライアント
}

// NewAppContext は AppContext の新しいインスタンスを生成する
func NewAppContext(
	cfg *config.Config,
	httpClient httpkit.ClientInterface,
	aiClient gemini.GenerativeModel,
	reader remoteio.InputReader,
	writer remoteio.OutputWriter,
	gw gateway.Gateway,
	promptPipeline *prompts.Pipeline,
	fetcher *asset.Fetcher,
) AppContext {
	return AppContext{
		Config:     cfg,
		Options:    cfg.Options,
		aiClient:   aiClient,
		httpClient: httpClient,
		Reader:     reader,
		Writer:     writer,
		Gateway:    gw,
		Prompts:    promptPipeline,
		Fetcher:    fetcher,
	}
}
