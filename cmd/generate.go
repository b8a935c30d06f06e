package cmd

import (
	"fmt"
	"log/slog"

	"github.com/shouni/go-storybook-kit/internal/config"
	"github.com/shouni/go-storybook-kit/internal/pipeline"

	"github.com/spf13/cobra"
)

// generateCmd は、AIによる物語生成と挿絵生成を実行するのだ。
var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "AIに絵本の物語と挿絵を生成させますなのだ。",
	Long: `テーマと対象年齢から物語を生成し、表紙と各ページの挿絵を順番に描くのだ。
--title と --text-file を指定すると、自作の文章をそのまま絵本にすることもできるのだよ。`,
	RunE: generateCommand,
}

func init() {
	generateCmd.Flags().StringVarP(&opts.Themes, "themes", "t", "", "物語のテーマ（例: '友情, 森の動物'）なのだ。")
	generateCmd.Flags().StringVarP(&opts.OtherElements, "elements", "e", "", "物語に登場させたい要素なのだ。")
	generateCmd.Flags().StringVarP(&opts.TargetAge, "age", "a", config.DefaultTargetAge, "対象年齢なのだ。")
	generateCmd.Flags().StringVarP(&opts.BookStyle, "style", "s", config.DefaultBookStyle, "画風（toddler / classic / comic / photo）なのだ。")
	generateCmd.Flags().StringVar(&opts.Author, "author", "", "作者名なのだ。")
	generateCmd.Flags().StringVar(&opts.License, "license", "", "ライセンス表記なのだ。")

	generateCmd.Flags().StringVar(&opts.Title, "title", "", "自作テキストモードのタイトルなのだ。指定すると物語生成をスキップするのだ。")
	generateCmd.Flags().StringVarP(&opts.TextFile, "text-file", "f", "", "自作テキストモードの本文ファイル（'-'で標準入力なのだ）。")

	generateCmd.Flags().StringVar(&opts.StyleImage, "style-image", "", "画風の参照画像（URL または data URI）なのだ。")
	generateCmd.Flags().StringVar(&opts.CharacterImage, "character-image", "", "キャラクターの参照画像（URL または data URI）なのだ。")

	generateCmd.Flags().BoolVar(&opts.SkipImages, "skip-images", false, "物語だけ生成して挿絵は後回しにするのだ。")
}

func generateCommand(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	// 1. 必須チェック
	if opts.Themes == "" && opts.Title == "" {
		return fmt.Errorf("テーマ（--themes）か自作タイトル（--title）のどちらかを指定してほしいのだ")
	}

	// 2. 環境変数等から基本設定をロードするのだ
	cfg := loadRuntimeConfig()

	slog.Info("絵本生成パイプラインを起動するのだ！",
		"themes", opts.Themes,
		"style", opts.BookStyle,
		"text_model", cfg.GeminiModel,
		"image_model", cfg.GeminiImageModel)

	// 3. 更新した config を考慮しつつパイプラインを実行するのだ
	if err := pipeline.ExecuteGenerate(ctx, cfg); err != nil {
		return fmt.Errorf("パイプライン実行中にエラーが発生したのだ: %w", err)
	}

	slog.Info("すべての生成工程が完了したのだ！")
	return nil
}
