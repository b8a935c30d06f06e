package project

import (
	"context"
	"strings"
	"testing"

	imagedom "github.com/shouni/gemini-image-kit/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shouni/go-storybook-kit/pkg/asset"
	"github.com/shouni/go-storybook-kit/pkg/domain"
	"github.com/shouni/go-storybook-kit/pkg/gateway"
)

type stubGateway struct {
	promptFromText func(pageText string) string
}

func (s *stubGateway) GenerateStoryPages(ctx context.Context, data domain.PromptData) ([]gateway.StoryPageDraft, error) {
	return nil, nil
}

func (s *stubGateway) GeneratePromptFromText(ctx context.Context, pageText string) string {
	if s.promptFromText != nil {
		return s.promptFromText(pageText)
	}
	return "a scene"
}

func (s *stubGateway) RegeneratePageText(ctx context.Context, data domain.PromptData, prevText, currentText, instruction string) (string, error) {
	return "", nil
}

func (s *stubGateway) GenerateImage(ctx context.Context, req gateway.ImageRequest) (*imagedom.ImageResponse, error) {
	return nil, nil
}

func (s *stubGateway) TranslateText(ctx context.Context, text, targetLang string) (string, error) {
	return text, nil
}

func (s *stubGateway) ExtractStyle(ctx context.Context, prompt string) (gateway.StyleExtraction, error) {
	return gateway.StyleExtraction{}, nil
}

func TestNew(t *testing.T) {
	data := domain.PromptData{BookStyle: domain.StyleClassic, AutoGenerateImages: true}
	drafts := []gateway.StoryPageDraft{
		{Text: "Il Drago Rosso"},
		{Text: "C'era una volta un drago. Viveva felice.", ImagePrompt: "a red dragon on a hill"},
	}

	t.Run("表紙は中央揃えで表紙プロンプトが履歴に積まれること", func(t *testing.T) {
		p, err := New(data, drafts)
		require.NoError(t, err)
		require.Len(t, p.Pages, 2)

		cover := p.Pages[0]
		assert.Equal(t, domain.AlignCenter, cover.TextAlign)
		assert.Equal(t, domain.ImagePending, cover.ImageStatus)
		assert.Equal(t, asset.TransparentPixel, cover.ImageURL)
		require.Len(t, cover.PromptHistory, 1)
		assert.Contains(t, cover.CurrentPrompt(), "Copertina")
		assert.Contains(t, cover.CurrentPrompt(), "Il Drago Rosso")
	})

	t.Run("本文ページはプロンプトに画風が合成されること", func(t *testing.T) {
		p, err := New(data, drafts)
		require.NoError(t, err)

		page := p.Pages[1]
		assert.Equal(t, "a red dragon on a hill. Stile: classic.", page.CurrentPrompt())
		assert.Contains(t, page.Text, "<br/>", "複数文は改行タグで整形されるはず")
		assert.Equal(t, domain.Alignment(""), page.TextAlign)
	})

	t.Run("メタデータが設定されること", func(t *testing.T) {
		p, err := New(data, drafts)
		require.NoError(t, err)
		assert.Equal(t, CurrentVersion, p.Version)
		assert.NotEmpty(t, p.CreatedAt)
		assert.Equal(t, "Il Drago Rosso", p.Title())
	})

	t.Run("プロンプトのない草稿は履歴が空のまま残ること", func(t *testing.T) {
		p, err := New(data, []gateway.StoryPageDraft{
			{Text: "Il Drago Rosso"},
			{Text: "Una pagina senza disegno.", ImagePrompt: "   "},
		})
		require.NoError(t, err)

		page := p.Pages[1]
		assert.Empty(t, page.PromptHistory, "画風だけの残骸プロンプトを作ってはいけないはず")
		assert.Equal(t, "", page.CurrentPrompt())
	})

	t.Run("草稿なしはエラーになること", func(t *testing.T) {
		_, err := New(data, nil)
		assert.Error(t, err)
	})
}

func TestNewFromCustomText(t *testing.T) {
	ctx := context.Background()

	t.Run("空行区切りでページが分かれ各ページにプロンプトが付くこと", func(t *testing.T) {
		gw := &stubGateway{
			promptFromText: func(pageText string) string {
				return "scene for: " + pageText[:4]
			},
		}
		data := domain.PromptData{
			BookStyle:   domain.StyleComic,
			CustomTitle: "La Luna",
			CustomText:  "Prima pagina.\n\nSeconda pagina.\r\n\r\nTerza pagina.",
		}

		p, err := NewFromCustomText(ctx, data, gw)
		require.NoError(t, err)
		require.Len(t, p.Pages, 4, "タイトル + 3ページのはず")
		assert.Equal(t, "La Luna", p.Title())
		assert.True(t, strings.HasPrefix(p.Pages[1].CurrentPrompt(), "scene for: Prim"))
	})

	t.Run("タイトルや本文が空だとエラーになること", func(t *testing.T) {
		_, err := NewFromCustomText(ctx, domain.PromptData{CustomText: "testo"}, &stubGateway{})
		assert.Error(t, err)

		_, err = NewFromCustomText(ctx, domain.PromptData{CustomTitle: "t", CustomText: "  \n\n  "}, &stubGateway{})
		assert.Error(t, err)
	})
}

func TestSplitCustomText(t *testing.T) {
	blocks := SplitCustomText("uno\n\n\ndue\n   \ntre")
	assert.Equal(t, []string{"uno", "due", "tre"}, blocks)
	assert.Empty(t, SplitCustomText(""))
}

func TestDefaultFilename(t *testing.T) {
	p, err := New(domain.PromptData{BookStyle: domain.StyleClassic}, []gateway.StoryPageDraft{{Text: "<b>Il Drago!</b>"}})
	require.NoError(t, err)
	assert.Equal(t, "il-drago"+FileExtension, DefaultFilename(p))
}
