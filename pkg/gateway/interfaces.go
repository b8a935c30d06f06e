package gateway

import (
	"context"

	imagedom "github.com/shouni/gemini-image-kit/pkg/domain"
	"github.com/shouni/go-storybook-kit/pkg/domain"
)

// StoryPageDraft は、AIが生成した1ページ分の素材（本文と画像プロンプト）です。
// 先頭要素は表紙（タイトルページ）として扱います。
type StoryPageDraft struct {
	Text        string `json:"text"`
	ImagePrompt string `json:"image_prompt"`
}

// StyleExtraction は、画像プロンプトを内容とスタイルに分離した結果です。
type StyleExtraction struct {
	Content string `json:"content"`
	Style   string `json:"style"`
}

// ImageRequest は1枚の画像生成リクエストです。
// BaseImage / ReferenceImages は URL または data URI を受け付けます。
type ImageRequest struct {
	FinalPrompt     string
	BaseImage       string
	ReferenceImages []string
}

// Gateway は、絵本生成に必要な全てのAI呼び出しを束ねる契約です。
// 呼び出し側はモデル名やレスポンス形式を一切意識しません。
type Gateway interface {
	// GenerateStoryPages は入力データから絵本全ページの草稿を生成します。
	// 先頭要素はタイトルページです。
	GenerateStoryPages(ctx context.Context, data domain.PromptData) ([]StoryPageDraft, error)

	// GeneratePromptFromText はページ本文から画像プロンプトを生成します。
	// 失敗しても汎用プロンプトを返し、エラーは伝播しません。
	GeneratePromptFromText(ctx context.Context, pageText string) string

	// RegeneratePageText は編集指示に従ってページ本文を書き直します。
	RegeneratePageText(ctx context.Context, data domain.PromptData, prevText, currentText, instruction string) (string, error)

	// GenerateImage はプロンプトと参照画像から1枚の画像を生成します。
	GenerateImage(ctx context.Context, req ImageRequest) (*imagedom.ImageResponse, error)

	// TranslateText はテキストを指定言語へ翻訳します。
	TranslateText(ctx context.Context, text, targetLang string) (string, error)

	// ExtractStyle は画像プロンプトを内容記述とスタイル記述に分離します。
	ExtractStyle(ctx context.Context, prompt string) (StyleExtraction, error)
}
