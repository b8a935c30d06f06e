package builder

import (
	"context"
	"fmt"

	"github.com/shouni/go-storybook-kit/pkg/domain"
	"github.com/shouni/go-storybook-kit/pkg/exporter"
	"github.com/shouni/go-storybook-kit/pkg/gateway"
	"github.com/shouni/go-storybook-kit/pkg/lifecycle"

	"github.com/shouni/go-gemini-client/pkg/gemini"
	"google.golang.org/genai"
)

// InitializeAIClient は gemini クライアントを初期化します。
func InitializeAIClient(ctx context.Context, apiKey string) (gemini.GenerativeModel, error) {
	const defaultGeminiTemperature = float32(0.7)
	clientConfig := gemini.Config{
		APIKey:      apiKey,
		Temperature: genai.Ptr(defaultGeminiTemperature),
	}
	aiClient, err := gemini.NewClient(ctx, clientConfig)
	if err != nil {
		return nil, fmt.Errorf("AIクライアントの初期化に失敗しました: %w", err)
	}
	return aiClient, nil
}

// BuildGateway は AIゲートウェイを構築します。
func BuildGateway(appCtx *AppContext) (gateway.Gateway, error) {
	gw, err := gateway.NewGeminiGateway(appCtx.aiClient, appCtx.Fetcher, gateway.Config{
		TextModel:  appCtx.Config.GeminiModel,
		ImageModel: appCtx.Config.GeminiImageModel,
	})
	if err != nil {
		return nil, fmt.Errorf("AIゲートウェイの初期化に失敗したのだ: %w", err)
	}
	return gw, nil
}

// BuildManager は挿絵生成ライフサイクルの Manager を構築します。
func BuildManager(appCtx *AppContext, project *domain.Project) (*lifecycle.Manager, error) {
	interval := appCtx.Options.PageInterval
	if interval <= 0 {
		interval = lifecycle.DefaultPageInterval
	}

	manager, err := lifecycle.NewManager(project, appCtx.Gateway, appCtx.Prompts, lifecycle.Config{
		PageInterval: interval,
	})
	if err != nil {
		return nil, fmt.Errorf("生成マネージャの構築に失敗したのだ: %w", err)
	}
	return manager, nil
}

// BuildExporter はPDF書き出しを担当する Exporter を構築します。
func BuildExporter(appCtx *AppContext) (*exporter.PDFExporter, error) {
	exp, err := exporter.NewPDFExporter(appCtx.Fetcher)
	if err != nil {
		return nil, fmt.Errorf("PDFエクスポータの初期化に失敗しました: %w", err)
	}
	return exp, nil
}
