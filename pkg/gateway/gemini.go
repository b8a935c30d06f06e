package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"text/template"

	imagedom "github.com/shouni/gemini-image-kit/pkg/domain"
	"github.com/shouni/gemini-image-kit/pkg/imgutil"
	"github.com/shouni/go-gemini-client/pkg/gemini"
	"google.golang.org/genai"

	"github.com/shouni/go-storybook-kit/pkg/asset"
	"github.com/shouni/go-storybook-kit/pkg/domain"
	"github.com/shouni/go-storybook-kit/pkg/textutil"
)

const (
	// defaultRewriteInstruction は編集指示が空のときに使う既定の指示です。
	defaultRewriteInstruction = "Fornisci una nuova versione creativa e fantasiosa di questo testo."

	// fallbackImagePrompt は本文からのプロンプト生成に失敗したときの汎用プロンプトです。
	fallbackImagePrompt = "A gentle, colorful illustration for a children's picture book."

	imageAspectRatio = "4:3"

	// 参照画像はこのサイズを超えたらJPEGに再圧縮して送るのだ。
	imageCompressionThreshold = 1 << 20
	imageCompressionQuality   = 85
)

const (
	msgStoryGenerationFailed = "物語の生成に失敗しました"
	msgTextRewriteFailed     = "本文の書き直しに失敗しました"
	msgTranslationFailed     = "翻訳に失敗しました"
	msgPromptCleaningFailed  = "プロンプトの整形に失敗しました"
	msgImageGenerationFailed = "画像の生成に失敗しました"
	msgRateLimited           = "APIの利用枠を使い切りました。しばらく待ってから再開してください"
	msgInvalidReference      = "参照画像をAIが受け付けませんでした。別の画像を試してください"
)

var languageNames = map[string]string{
	"it": "italiano",
	"en": "inglese",
}

// Config は GeminiGateway の動作設定です。
type Config struct {
	TextModel  string
	ImageModel string
}

// GeminiGateway は Gemini API 上に Gateway を実装します。
// テキスト系はシステムプロンプト + ユーザープロンプトの2部構成、
// 画像系はインラインデータのマルチパート呼び出しを使います。
type GeminiGateway struct {
	aiClient   gemini.GenerativeModel
	fetcher    *asset.Fetcher
	textModel  string
	imageModel string
	templates  map[string]*template.Template
}

// NewGeminiGateway は GeminiGateway を初期化します。
func NewGeminiGateway(aiClient gemini.GenerativeModel, fetcher *asset.Fetcher, cfg Config) (*GeminiGateway, error) {
	if aiClient == nil {
		return nil, fmt.Errorf("aiClient (gemini.GenerativeModel) is required")
	}
	if fetcher == nil {
		return nil, fmt.Errorf("fetcher (*asset.Fetcher) is required")
	}
	if cfg.TextModel == "" || cfg.ImageModel == "" {
		return nil, fmt.Errorf("テキスト用・画像用のモデル名はどちらも必須です")
	}

	templates, err := parseTemplates()
	if err != nil {
		return nil, err
	}

	return &GeminiGateway{
		aiClient:   aiClient,
		fetcher:    fetcher,
		textModel:  cfg.TextModel,
		imageModel: cfg.ImageModel,
		templates:  templates,
	}, nil
}

// GenerateStoryPages は入力データから絵本全ページの草稿を生成します。
func (g *GeminiGateway) GenerateStoryPages(ctx context.Context, data domain.PromptData) ([]StoryPageDraft, error) {
	tmplData := storyTemplateData{
		Themes:        data.Themes,
		OtherElements: data.OtherElements,
		TargetAge:     data.TargetAge,
		BookStyle:     string(data.BookStyle),
	}

	system, err := renderTemplate(g.templates, modeStorySystem, tmplData)
	if err != nil {
		return nil, newError(KindGeneration, msgStoryGenerationFailed, err)
	}
	user, err := renderTemplate(g.templates, modeStoryUser, tmplData)
	if err != nil {
		return nil, newError(KindGeneration, msgStoryGenerationFailed, err)
	}

	slog.Info("物語テキストを生成します", "model", g.textModel, "themes", data.Themes)
	resp, err := g.aiClient.GenerateWithParts(ctx, g.textModel, []*genai.Part{{Text: user}}, gemini.GenerateOptions{
		SystemPrompt: system,
	})
	if err != nil {
		return nil, newError(KindGeneration, msgStoryGenerationFailed, err)
	}

	var drafts []StoryPageDraft
	payload := extractJSONPayload(resp.Text)
	if err := json.Unmarshal([]byte(payload), &drafts); err != nil {
		return nil, newError(KindGeneration, msgStoryGenerationFailed,
			fmt.Errorf("AIからの応答に含まれるJSONの解析に失敗しました (応答抜粋: %q): %w", truncateString(resp.Text, 200), err))
	}
	if len(drafts) == 0 {
		return nil, newError(KindGeneration, msgStoryGenerationFailed, fmt.Errorf("応答にページが1つも含まれていません"))
	}

	return drafts, nil
}

// GeneratePromptFromText はページ本文から画像プロンプトを生成します。
// どのような失敗でも汎用プロンプトにフォールバックし、エラーは返しません。
func (g *GeminiGateway) GeneratePromptFromText(ctx context.Context, pageText string) string {
	prompt, err := renderTemplate(g.templates, modePagePrompt, pagePromptTemplateData{
		PageText: textutil.StripHTML(pageText),
	})
	if err != nil {
		slog.Warn("画像プロンプト用テンプレートの実行に失敗したため汎用プロンプトを使います", "error", err)
		return fallbackImagePrompt
	}

	resp, err := g.aiClient.GenerateContent(ctx, g.textModel, prompt)
	if err != nil || strings.TrimSpace(resp.Text) == "" {
		slog.Warn("画像プロンプトの生成に失敗したため汎用プロンプトを使います", "error", err)
		return fallbackImagePrompt
	}
	return strings.TrimSpace(resp.Text)
}

// RegeneratePageText は編集指示に従ってページ本文を書き直します。
func (g *GeminiGateway) RegeneratePageText(ctx context.Context, data domain.PromptData, prevText, currentText, instruction string) (string, error) {
	if strings.TrimSpace(instruction) == "" {
		instruction = defaultRewriteInstruction
	}

	tmplData := storyTemplateData{
		Themes:        data.Themes,
		OtherElements: data.OtherElements,
		TargetAge:     data.TargetAge,
		BookStyle:     string(data.BookStyle),
		PreviousText:  textutil.StripHTML(prevText),
		CurrentText:   textutil.StripHTML(currentText),
		Instruction:   instruction,
	}

	system, err := renderTemplate(g.templates, modeRewriteSystem, tmplData)
	if err != nil {
		return "", newError(KindGeneration, msgTextRewriteFailed, err)
	}
	user, err := renderTemplate(g.templates, modeRewriteUser, tmplData)
	if err != nil {
		return "", newError(KindGeneration, msgTextRewriteFailed, err)
	}

	resp, err := g.aiClient.GenerateWithParts(ctx, g.textModel, []*genai.Part{{Text: user}}, gemini.GenerateOptions{
		SystemPrompt: system,
	})
	if err != nil {
		return "", newError(KindGeneration, msgTextRewriteFailed, err)
	}

	newText := strings.TrimSpace(resp.Text)
	if newText == "" {
		return "", newError(KindGeneration, msgTextRewriteFailed, fmt.Errorf("AIが空の応答を返しました"))
	}
	return textutil.FormatWithLineBreaks(newText), nil
}

// TranslateText はテキストを指定言語（"it" / "en"）へ翻訳します。
func (g *GeminiGateway) TranslateText(ctx context.Context, text, targetLang string) (string, error) {
	name, ok := languageNames[targetLang]
	if !ok {
		return "", newError(KindTranslation, msgTranslationFailed, fmt.Errorf("未対応の言語です: %q", targetLang))
	}

	system, err := renderTemplate(g.templates, modeTranslateSystem, translateTemplateData{LanguageName: name})
	if err != nil {
		return "", newError(KindTranslation, msgTranslationFailed, err)
	}

	resp, err := g.aiClient.GenerateWithParts(ctx, g.textModel, []*genai.Part{{Text: text}}, gemini.GenerateOptions{
		SystemPrompt: system,
	})
	if err != nil {
		return "", newError(KindTranslation, msgTranslationFailed, err)
	}

	translated := strings.TrimSpace(resp.Text)
	if translated == "" {
		return "", newError(KindTranslation, msgTranslationFailed, fmt.Errorf("翻訳が空の応答を返しました"))
	}
	return translated, nil
}

// ExtractStyle は画像プロンプトを内容記述とスタイル記述に分離します。
func (g *GeminiGateway) ExtractStyle(ctx context.Context, prompt string) (StyleExtraction, error) {
	rendered, err := renderTemplate(g.templates, modeStyleSplit, styleSplitTemplateData{Prompt: prompt})
	if err != nil {
		return StyleExtraction{}, newError(KindPromptCleaning, msgPromptCleaningFailed, err)
	}

	resp, err := g.aiClient.GenerateContent(ctx, g.textModel, rendered)
	if err != nil {
		return StyleExtraction{}, newError(KindPromptCleaning, msgPromptCleaningFailed, err)
	}

	var out StyleExtraction
	payload := extractJSONPayload(resp.Text)
	if err := json.Unmarshal([]byte(payload), &out); err != nil {
		return StyleExtraction{}, newError(KindPromptCleaning, msgPromptCleaningFailed,
			fmt.Errorf("AIからの応答に含まれるJSONの解析に失敗しました (応答抜粋: %q): %w", truncateString(resp.Text, 200), err))
	}
	if strings.TrimSpace(out.Content) == "" {
		return StyleExtraction{}, newError(KindPromptCleaning, msgPromptCleaningFailed, fmt.Errorf("内容記述が空です"))
	}

	return out, nil
}

// GenerateImage はプロンプトと参照画像から1枚の画像を生成します。
// ベース画像が無い場合は白紙のプレースホルダーを下敷きにします。
func (g *GeminiGateway) GenerateImage(ctx context.Context, req ImageRequest) (*imagedom.ImageResponse, error) {
	if strings.TrimSpace(req.FinalPrompt) == "" {
		return nil, newError(KindImage, msgImageGenerationFailed, fmt.Errorf("プロンプトが空です"))
	}

	baseImage := req.BaseImage
	if baseImage == "" {
		baseImage = asset.PlaceholderImage
	}

	basePart, err := g.imagePart(ctx, baseImage)
	if err != nil {
		return nil, newError(KindImage, msgImageGenerationFailed, fmt.Errorf("ベース画像の読み込みに失敗しました: %w", err))
	}
	parts := []*genai.Part{basePart}

	refCount := 0
	for _, ref := range req.ReferenceImages {
		if ref == "" {
			continue
		}
		refPart, err := g.imagePart(ctx, ref)
		if err != nil {
			return nil, newError(KindInvalidReference, msgInvalidReference, err)
		}
		parts = append(parts, refPart)
		refCount++
	}

	parts = append(parts, &genai.Part{Text: decorateImagePrompt(req.FinalPrompt, baseImage != asset.PlaceholderImage, refCount > 0)})

	slog.Info("画像を生成します", "model", g.imageModel, "ref_count", refCount)
	resp, err := g.aiClient.GenerateWithParts(ctx, g.imageModel, parts, gemini.GenerateOptions{
		AspectRatio: imageAspectRatio,
	})
	if err != nil {
		return nil, classifyImageError(err, refCount > 0)
	}

	return parseImageResponse(resp)
}

// decorateImagePrompt は、添付した画像の役割をモデルへ明示する定型句を付けます。
func decorateImagePrompt(prompt string, hasBase, hasRefs bool) string {
	switch {
	case hasRefs && hasBase:
		return "Using the provided reference images and maintaining consistency with the previous illustration, create this new scene: " + prompt
	case hasRefs:
		return "Using the provided images (style and character reference) as a guide, illustrate this scene: " + prompt
	case hasBase:
		return "Following the style and characters of the provided image, illustrate this new scene: " + prompt
	}
	return prompt
}

func classifyImageError(err error, hasRefs bool) error {
	switch {
	case isResourceExhausted(err):
		return newError(KindRateLimit, msgRateLimited, err)
	case hasRefs && isInvalidArgument(err):
		return newError(KindInvalidReference, msgInvalidReference, err)
	}
	return newError(KindImage, msgImageGenerationFailed, err)
}

func parseImageResponse(resp *gemini.Response) (*imagedom.ImageResponse, error) {
	if resp == nil || resp.RawResponse == nil || len(resp.RawResponse.Candidates) == 0 {
		return nil, newError(KindImage, msgImageGenerationFailed, fmt.Errorf("モデルが候補を返しませんでした"))
	}

	candidate := resp.RawResponse.Candidates[0]
	if candidate.Content == nil {
		return nil, newError(KindImage, msgImageGenerationFailed, fmt.Errorf("モデルが内容のない候補を返しました (finish_reason: %v)", candidate.FinishReason))
	}
	for _, part := range candidate.Content.Parts {
		if part.InlineData != nil {
			return &imagedom.ImageResponse{
				Data:     part.InlineData.Data,
				MimeType: part.InlineData.MIMEType,
			}, nil
		}
	}
	return nil, newError(KindImage, msgImageGenerationFailed, fmt.Errorf("モデルが画像を返しませんでした"))
}

func (g *GeminiGateway) imagePart(ctx context.Context, ref string) (*genai.Part, error) {
	data, mimeType, err := g.fetcher.Fetch(ctx, ref)
	if err != nil {
		return nil, err
	}

	if len(data) > imageCompressionThreshold {
		if compressed, cerr := imgutil.CompressToJPEG(data, imageCompressionQuality); cerr == nil {
			data = compressed
			mimeType = "image/jpeg"
		}
	}

	return &genai.Part{InlineData: &genai.Blob{MIMEType: mimeType, Data: data}}, nil
}
