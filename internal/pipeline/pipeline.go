package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/shouni/go-storybook-kit/internal/builder"
	"github.com/shouni/go-storybook-kit/internal/config"
	"github.com/shouni/go-storybook-kit/pkg/asset"
	"github.com/shouni/go-storybook-kit/pkg/domain"
	"github.com/shouni/go-storybook-kit/pkg/gateway"
	"github.com/shouni/go-storybook-kit/pkg/lifecycle"
	"github.com/shouni/go-storybook-kit/pkg/project"
	"github.com/shouni/go-storybook-kit/pkg/prompts"
	"github.com/shouni/go-storybook-kit/pkg/textutil"

	"github.com/shouni/go-http-kit/pkg/httpkit"
	"github.com/shouni/go-remote-io/pkg/gcsfactory"
)

// ExecuteGenerate は、物語の生成から挿絵生成・保存までを一気通貫で実行するのだ。
// --title が指定されていれば自作テキストモード、なければAI生成モードになるのだ。
func ExecuteGenerate(ctx context.Context, cfg *config.Config) error {
	appCtx, err := setupAppContext(ctx, cfg)
	if err != nil {
		return err
	}

	data, err := buildPromptData(ctx, appCtx)
	if err != nil {
		return err
	}

	book, err := createProject(ctx, appCtx, data)
	if err != nil {
		return err
	}
	slog.Info("物語の骨組みができたのだ！", "title", book.Title(), "pages", len(book.Pages))

	if err := runImagePhase(ctx, appCtx, book); err != nil {
		return err
	}

	return saveProject(ctx, appCtx, book)
}

// ExecuteImages は保存済みプロジェクトを読み込み、未生成ページの挿絵生成を再開するのだ。
// レート制限で中断されたプロジェクトの続きもこのコマンドで片付くのだ。
func ExecuteImages(ctx context.Context, cfg *config.Config) error {
	appCtx, err := setupAppContext(ctx, cfg)
	if err != nil {
		return err
	}

	book, err := loadProject(ctx, appCtx)
	if err != nil {
		return err
	}

	// 手動で止めたプロジェクトの続きも再開できるよう、生成は常に有効にします。
	book.PromptData.AutoGenerateImages = true

	if err := runImagePhase(ctx, appCtx, book); err != nil {
		return err
	}

	return saveProject(ctx, appCtx, book)
}

// ExecuteRegen は保存済みプロジェクトの1ページだけを作り直すのだ。
// --prompt があれば挿絵を、--instruction があれば本文を描き直すのだ。
func ExecuteRegen(ctx context.Context, cfg *config.Config) error {
	appCtx, err := setupAppContext(ctx, cfg)
	if err != nil {
		return err
	}

	book, err := loadProject(ctx, appCtx)
	if err != nil {
		return err
	}

	index := cfg.Options.Page
	if index < 0 || index >= len(book.Pages) {
		return fmt.Errorf("ページ番号 %d は範囲外なのだ（0〜%d）", index, len(book.Pages)-1)
	}

	manager, err := builder.BuildManager(appCtx, book)
	if err != nil {
		return err
	}

	if cfg.Options.Instruction != "" {
		slog.Info("ページの本文を書き直すのだ...", "page", index)
		if err := manager.RegenerateText(ctx, index, cfg.Options.Instruction); err != nil {
			return fmt.Errorf("本文の書き直しに失敗したのだ: %w", err)
		}
	}

	if cfg.Options.Prompt != "" {
		slog.Info("ページの挿絵を描き直すのだ...", "page", index)
		err := manager.Regenerate(ctx, index, lifecycle.RegenerateRequest{
			Prompt:         cfg.Options.Prompt,
			ReferenceImage: cfg.Options.ReferenceImage,
		})
		if err != nil {
			return fmt.Errorf("挿絵の描き直しに失敗したのだ: %w", err)
		}
	}

	*book = *manager.Snapshot()
	return saveProject(ctx, appCtx, book)
}

// ExecuteExport は保存済みプロジェクトをPDFとして書き出すのだ。
func ExecuteExport(ctx context.Context, cfg *config.Config) error {
	appCtx, err := setupAppContext(ctx, cfg)
	if err != nil {
		return err
	}

	book, err := loadProject(ctx, appCtx)
	if err != nil {
		return err
	}

	exp, err := builder.BuildExporter(appCtx)
	if err != nil {
		return err
	}

	buf := new(bytes.Buffer)
	if err := exp.Export(ctx, book, buf); err != nil {
		return err
	}

	outputPath := cfg.Options.PDFFile
	if outputPath == "" {
		name := textutil.SanitizeFilename(book.Title()) + ".pdf"
		outputPath, err = asset.ResolveSiblingPath(cfg.Options.InputFile, name)
		if err != nil {
			return fmt.Errorf("PDFの保存先を決められませんでした: %w", err)
		}
	}

	if err := appCtx.Writer.Write(ctx, outputPath, buf, "application/pdf"); err != nil {
		return fmt.Errorf("PDFの保存に失敗しました: %w", err)
	}

	slog.Info("絵本のPDFが完成したのだ！", "path", outputPath)
	return nil
}

// setupAppContext は、提供された設定と共有コンポーネントを使用して、アプリケーションコンテキストを初期化して返すのだ。
// 初期化中にエラーが発生した場合は、AppContext のポインタとエラーを返すのだ。
func setupAppContext(ctx context.Context, cfg *config.Config) (*builder.AppContext, error) {
	timeout := cfg.Options.HTTPTimeout
	if timeout <= 0 {
		timeout = config.DefaultHTTPTimeout
	}
	httpClient := httpkit.New(timeout)

	aiClient, err := builder.InitializeAIClient(ctx, cfg.GeminiAPIKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create ai client: %w", err)
	}

	gcsFactory, err := gcsfactory.NewGCSClientFactory(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCS client factory: %w", err)
	}

	reader, err := gcsFactory.NewInputReader()
	if err != nil {
		return nil, err
	}
	writer, err := gcsFactory.NewOutputWriter()
	if err != nil {
		return nil, err
	}

	fetcher, err := asset.NewFetcher(httpClient)
	if err != nil {
		return nil, err
	}

	appCtx := builder.NewAppContext(cfg, httpClient, aiClient, reader, writer, nil, nil, fetcher)

	gw, err := builder.BuildGateway(&appCtx)
	if err != nil {
		return nil, err
	}
	appCtx.Gateway = gw

	promptPipeline, err := prompts.NewPipeline(gw)
	if err != nil {
		return nil, err
	}
	appCtx.Prompts = promptPipeline

	return &appCtx, nil
}

// buildPromptData は CLI オプションを生成設定へ詰め替えるのだ。
func buildPromptData(ctx context.Context, appCtx *builder.AppContext) (domain.PromptData, error) {
	opts := appCtx.Options

	style := domain.BookStyle(opts.BookStyle)
	if !style.IsValid() {
		return domain.PromptData{}, fmt.Errorf("未知の画風です: %q（toddler / classic / comic / photo から選ぶのだ）", opts.BookStyle)
	}

	data := domain.PromptData{
		Themes:        opts.Themes,
		OtherElements: opts.OtherElements,
		TargetAge:     opts.TargetAge,
		BookStyle:     style,
		Author:        opts.Author,
		License:       opts.License,
		ReferenceImageURLs: domain.ReferenceImages{
			Style:     opts.StyleImage,
			Character: opts.CharacterImage,
		},
		AutoGenerateImages: !opts.SkipImages,
		StoryInputMode:     domain.InputGenerate,
	}

	if opts.Title != "" {
		body, err := readCustomText(ctx, appCtx, opts.TextFile)
		if err != nil {
			return domain.PromptData{}, err
		}
		data.StoryInputMode = domain.InputCustom
		data.CustomTitle = opts.Title
		data.CustomText = body
	}

	return data, nil
}

// readCustomText は自作テキストモードの本文を読み込むのだ。'-' は標準入力を意味するのだ。
func readCustomText(ctx context.Context, appCtx *builder.AppContext, path string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("自作テキストモードには本文ファイル（--text-file）が必要なのだ")
	}

	var reader io.ReadCloser
	if path == "-" {
		reader = os.Stdin
	} else {
		rc, err := appCtx.Reader.Open(ctx, path)
		if err != nil {
			return "", fmt.Errorf("本文ファイル '%s' の読み込みに失敗しました: %w", path, err)
		}
		defer rc.Close()
		reader = rc
	}

	body, err := io.ReadAll(reader)
	if err != nil {
		return "", fmt.Errorf("本文の読み取りに失敗しました: %w", err)
	}
	if strings.TrimSpace(string(body)) == "" {
		return "", fmt.Errorf("本文ファイル '%s' が空なのだ", path)
	}
	return string(body), nil
}

// createProject は入力モードに応じて新規プロジェクトを組み立てるのだ。
func createProject(ctx context.Context, appCtx *builder.AppContext, data domain.PromptData) (*domain.Project, error) {
	if data.StoryInputMode == domain.InputCustom {
		return project.NewFromCustomText(ctx, data, appCtx.Gateway)
	}

	slog.Info("Phase 1: 物語の生成を開始するのだ...", "themes", data.Themes, "age", data.TargetAge)
	drafts, err := appCtx.Gateway.GenerateStoryPages(ctx, data)
	if err != nil {
		return nil, fmt.Errorf("物語の生成に失敗したのだ: %w", err)
	}

	return project.New(data, drafts)
}

// runImagePhase は挿絵生成シーケンスを実行するのだ。
// レート制限で中断された場合もエラーにはせず、途中までの成果を呼び出し元に残すのだ。
func runImagePhase(ctx context.Context, appCtx *builder.AppContext, book *domain.Project) error {
	if !book.PromptData.AutoGenerateImages {
		slog.Info("挿絵の自動生成はスキップするのだ（--skip-images）")
		return nil
	}

	manager, err := builder.BuildManager(appCtx, book)
	if err != nil {
		return err
	}

	slog.Info("Phase 2: 挿絵の生成を開始するのだ...", "pages", len(book.Pages))
	if err := manager.Sequence(ctx); err != nil {
		if gateway.IsPipelinePausing(err) {
			slog.Warn("挿絵の生成を一時停止しました。保存したプロジェクトから再開できます",
				"reason", gateway.MessageOf(err))
		} else {
			return fmt.Errorf("挿絵の生成に失敗したのだ: %w", err)
		}
	}

	// Manager が差し替えた最新のページ状態を反映します。
	*book = *manager.Snapshot()
	return nil
}

// loadProject は保存済みプロジェクトを読み込むのだ。zipに包まれていても大丈夫なのだ。
func loadProject(ctx context.Context, appCtx *builder.AppContext) (*domain.Project, error) {
	path := appCtx.Options.InputFile
	if path == "" {
		return nil, fmt.Errorf("プロジェクトファイル（--input-file）を指定してほしいのだ")
	}

	rc, err := appCtx.Reader.Open(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("プロジェクトファイル '%s' の読み込みに失敗しました: %w", path, err)
	}
	defer rc.Close()

	raw, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("プロジェクトファイル '%s' の読み取りに失敗しました: %w", path, err)
	}

	book, err := project.Load(raw)
	if err != nil {
		return nil, fmt.Errorf("プロジェクト '%s' を復元できませんでした: %w", path, err)
	}
	return book, nil
}

// saveProject はプロジェクトを署名付きJSONとして保存するのだ。
func saveProject(ctx context.Context, appCtx *builder.AppContext, book *domain.Project) error {
	raw, err := project.Save(book)
	if err != nil {
		return fmt.Errorf("プロジェクトの直列化に失敗しました: %w", err)
	}

	outputPath := appCtx.Options.OutputFile
	if outputPath == "" {
		outputPath = appCtx.Options.InputFile
	}
	if outputPath == "" {
		resolved, err := asset.ResolveOutputPath("output", project.DefaultFilename(book))
		if err != nil {
			return fmt.Errorf("保存先を決められませんでした: %w", err)
		}
		outputPath = resolved
	}

	if err := appCtx.Writer.Write(ctx, outputPath, bytes.NewReader(raw), "application/json"); err != nil {
		return fmt.Errorf("プロジェクトの保存に失敗しました: %w", err)
	}

	slog.Info("プロジェクトを保存したのだ！", "path", outputPath)
	return nil
}
