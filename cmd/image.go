package cmd

import (
	"fmt"
	"log/slog"

	"github.com/shouni/go-storybook-kit/internal/pipeline"

	"github.com/spf13/cobra"
)

// imageCmd は、保存済みプロジェクトを読み込んで挿絵生成フェーズを再開するためのサブコマンドなのだ。
// 物語生成をスキップして、未生成ページの挿絵生成（Phase 2）のみを行うのだ。
var imageCmd = &cobra.Command{
	Use:   "image",
	Short: "保存済みプロジェクトの未生成ページに挿絵を描くのだ。",
	Long: `保存済みのプロジェクトファイルを読み込み、まだ挿絵のないページの生成と保存を実行するのだ。
レート制限で中断されたプロジェクトの続きも、このコマンドで再開できるのだ。`,
	RunE: imageCommand,
}

// init は、image コマンドに必要なフラグを定義するための初期化関数なのだ。
func init() {
	imageCmd.Flags().StringVarP(&opts.InputFile, "input-file", "f", "", "保存済みプロジェクト（.tl4kb、ローカル or gs://...）なのだ。")
}

// imageCommand は、image サブコマンドの実行ロジック本体なのだ。
func imageCommand(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	// 必須となる入力ファイルの存在チェック
	if opts.InputFile == "" {
		return fmt.Errorf("プロジェクトファイル（--input-file）を指定してほしいのだ")
	}

	cfg := loadRuntimeConfig()

	slog.Info("挿絵生成モードを起動するのだ！",
		"input", opts.InputFile,
		"image_model", cfg.GeminiImageModel)

	if err := pipeline.ExecuteImages(ctx, cfg); err != nil {
		return fmt.Errorf("挿絵生成中にエラーが発生したのだ: %w", err)
	}

	slog.Info("挿絵の生成が完了したのだ！")
	return nil
}
