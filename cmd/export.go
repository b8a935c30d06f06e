package cmd

import (
	"fmt"
	"log/slog"

	"github.com/shouni/go-storybook-kit/internal/pipeline"

	"github.com/spf13/cobra"
)

// exportCmd は、完成したプロジェクトをPDFへ書き出すサブコマンドなのだ。
var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "完成した絵本をPDFに書き出すのだ。",
	Long: `保存済みプロジェクトを読み込み、横向きA4の見開きレイアウト（左に挿絵、右に本文）で
PDFとして書き出すのだ。印刷すればそのまま読み聞かせに使えるのだよ。`,
	RunE: exportCommand,
}

func init() {
	exportCmd.Flags().StringVarP(&opts.InputFile, "input-file", "f", "", "保存済みプロジェクト（.tl4kb、ローカル or gs://...）なのだ。")
	exportCmd.Flags().StringVar(&opts.PDFFile, "pdf-file", "", "PDFの保存パス。省略時はタイトルから決めるのだ。")
}

func exportCommand(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	if opts.InputFile == "" {
		return fmt.Errorf("プロジェクトファイル（--input-file）を指定してほしいのだ")
	}

	cfg := loadRuntimeConfig()

	if err := pipeline.ExecuteExport(ctx, cfg); err != nil {
		return fmt.Errorf("PDF書き出し中にエラーが発生したのだ: %w", err)
	}

	slog.Info("PDFの書き出しが完了したのだ！")
	return nil
}
