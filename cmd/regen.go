package cmd

import (
	"fmt"
	"log/slog"

	"github.com/shouni/go-storybook-kit/internal/pipeline"

	"github.com/spf13/cobra"
)

// regenCmd は、保存済みプロジェクトの1ページだけを作り直すサブコマンドなのだ。
var regenCmd = &cobra.Command{
	Use:   "regen",
	Short: "1ページだけ挿絵や本文を描き直すのだ。",
	Long: `保存済みプロジェクトの指定ページについて、新しいプロンプトで挿絵を描き直したり、
指示に沿って本文を書き直したりするのだ。前のページの絵を引き継ぐので、画風は崩れないのだよ。`,
	RunE: regenCommand,
}

func init() {
	regenCmd.Flags().StringVarP(&opts.InputFile, "input-file", "f", "", "保存済みプロジェクト（.tl4kb、ローカル or gs://...）なのだ。")
	regenCmd.Flags().IntVarP(&opts.Page, "page", "p", 0, "対象ページのインデックス（0が表紙）なのだ。")
	regenCmd.Flags().StringVar(&opts.Prompt, "prompt", "", "挿絵を描き直すための新しいプロンプト（イタリア語でOKなのだ）。")
	regenCmd.Flags().StringVar(&opts.ReferenceImage, "reference", "", "今回だけ使う参照画像（URL または data URI）なのだ。")
	regenCmd.Flags().StringVar(&opts.Instruction, "instruction", "", "本文を書き直すための指示なのだ。")
}

func regenCommand(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	if opts.InputFile == "" {
		return fmt.Errorf("プロジェクトファイル（--input-file）を指定してほしいのだ")
	}
	if opts.Prompt == "" && opts.Instruction == "" {
		return fmt.Errorf("描き直す内容（--prompt か --instruction）を指定してほしいのだ")
	}

	cfg := loadRuntimeConfig()

	if err := pipeline.ExecuteRegen(ctx, cfg); err != nil {
		return fmt.Errorf("ページの再生成中にエラーが発生したのだ: %w", err)
	}

	slog.Info("ページの再生成が完了したのだ！", "page", opts.Page)
	return nil
}
