package gateway

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/shouni/go-gemini-client/pkg/gemini"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"github.com/shouni/go-storybook-kit/pkg/asset"
	"github.com/shouni/go-storybook-kit/pkg/domain"
)

func newTestGateway(t *testing.T, ai *mockAIClient) *GeminiGateway {
	t.Helper()

	fetcher, err := asset.NewFetcher(&mockHTTPClient{})
	require.NoError(t, err)

	gw, err := NewGeminiGateway(ai, fetcher, Config{
		TextModel:  "gemini-2.5-flash",
		ImageModel: "gemini-2.5-flash-image-preview",
	})
	require.NoError(t, err)
	return gw
}

func testPromptData() domain.PromptData {
	return domain.PromptData{
		Themes:        "un drago e la luna",
		OtherElements: "una foresta incantata",
		TargetAge:     "3-5",
		BookStyle:     domain.StyleToddler,
	}
}

func TestNewGeminiGateway(t *testing.T) {
	fetcher, err := asset.NewFetcher(&mockHTTPClient{})
	require.NoError(t, err)

	t.Run("依存が欠けていると初期化できないこと", func(t *testing.T) {
		_, err := NewGeminiGateway(nil, fetcher, Config{TextModel: "a", ImageModel: "b"})
		assert.Error(t, err)

		_, err = NewGeminiGateway(&mockAIClient{}, nil, Config{TextModel: "a", ImageModel: "b"})
		assert.Error(t, err)

		_, err = NewGeminiGateway(&mockAIClient{}, fetcher, Config{TextModel: "a"})
		assert.Error(t, err)
	})
}

func TestGeminiGateway_GenerateStoryPages(t *testing.T) {
	ctx := context.Background()

	t.Run("コードブロック入りのJSON配列を解析できること", func(t *testing.T) {
		var gotSystem string
		ai := &mockAIClient{
			generateWithPartsFunc: func(ctx context.Context, model string, parts []*genai.Part, opts gemini.GenerateOptions) (*gemini.Response, error) {
				gotSystem = opts.SystemPrompt
				return textResponse("```json\n[{\"text\":\"Il Drago\",\"image_prompt\":\"a red dragon\"},{\"text\":\"C'era una volta...\",\"image_prompt\":\"a forest at night\"}]\n```"), nil
			},
		}

		drafts, err := newTestGateway(t, ai).GenerateStoryPages(ctx, testPromptData())
		require.NoError(t, err)
		require.Len(t, drafts, 2)
		assert.Equal(t, "Il Drago", drafts[0].Text)
		assert.Equal(t, "a red dragon", drafts[0].ImagePrompt)
		assert.Contains(t, gotSystem, "3-5", "システムプロンプトに対象年齢が埋め込まれるはず")
		assert.Contains(t, gotSystem, "toddler")
	})

	t.Run("前置きつきの生配列でも解析できること", func(t *testing.T) {
		ai := &mockAIClient{
			generateWithPartsFunc: func(ctx context.Context, model string, parts []*genai.Part, opts gemini.GenerateOptions) (*gemini.Response, error) {
				return textResponse("Ecco la storia: [{\"text\":\"Titolo\",\"image_prompt\":\"p\"}] fine."), nil
			},
		}

		drafts, err := newTestGateway(t, ai).GenerateStoryPages(ctx, testPromptData())
		require.NoError(t, err)
		assert.Len(t, drafts, 1)
	})

	t.Run("空配列は生成エラーになること", func(t *testing.T) {
		ai := &mockAIClient{
			generateWithPartsFunc: func(ctx context.Context, model string, parts []*genai.Part, opts gemini.GenerateOptions) (*gemini.Response, error) {
				return textResponse("[]"), nil
			},
		}

		_, err := newTestGateway(t, ai).GenerateStoryPages(ctx, testPromptData())
		assert.Equal(t, KindGeneration, KindOf(err))
	})

	t.Run("バックエンドエラーは生成エラーに分類されること", func(t *testing.T) {
		ai := &mockAIClient{
			generateWithPartsFunc: func(ctx context.Context, model string, parts []*genai.Part, opts gemini.GenerateOptions) (*gemini.Response, error) {
				return nil, errors.New("boom")
			},
		}

		_, err := newTestGateway(t, ai).GenerateStoryPages(ctx, testPromptData())
		assert.Equal(t, KindGeneration, KindOf(err))
		assert.False(t, IsPipelinePausing(err))
	})
}

func TestGeminiGateway_GeneratePromptFromText(t *testing.T) {
	ctx := context.Background()

	t.Run("成功時は応答をそのまま返すこと", func(t *testing.T) {
		ai := &mockAIClient{
			generateContentFunc: func(ctx context.Context, model string, prompt string) (*gemini.Response, error) {
				assert.Contains(t, prompt, "un drago vola", "本文がテンプレートに埋め込まれるはず")
				return textResponse("  a dragon flying over a forest  "), nil
			},
		}

		got := newTestGateway(t, ai).GeneratePromptFromText(ctx, "<p>un drago vola</p>")
		assert.Equal(t, "a dragon flying over a forest", got)
	})

	t.Run("失敗しても汎用プロンプトを返しエラーは出さないこと", func(t *testing.T) {
		ai := &mockAIClient{
			generateContentFunc: func(ctx context.Context, model string, prompt string) (*gemini.Response, error) {
				return nil, errors.New("boom")
			},
		}

		got := newTestGateway(t, ai).GeneratePromptFromText(ctx, "testo")
		assert.Equal(t, fallbackImagePrompt, got)
	})

	t.Run("空応答でも汎用プロンプトを返すこと", func(t *testing.T) {
		ai := &mockAIClient{}
		got := newTestGateway(t, ai).GeneratePromptFromText(ctx, "testo")
		assert.Equal(t, fallbackImagePrompt, got)
	})
}

func TestGeminiGateway_RegeneratePageText(t *testing.T) {
	ctx := context.Background()

	t.Run("書き直し結果が文単位で整形されること", func(t *testing.T) {
		var gotUser string
		ai := &mockAIClient{
			generateWithPartsFunc: func(ctx context.Context, model string, parts []*genai.Part, opts gemini.GenerateOptions) (*gemini.Response, error) {
				gotUser = parts[0].Text
				return textResponse("Prima frase. Seconda frase."), nil
			},
		}

		got, err := newTestGateway(t, ai).RegeneratePageText(ctx, testPromptData(), "<b>pagina prima</b>", "testo attuale", "più divertente")
		require.NoError(t, err)
		assert.Equal(t, "Prima frase.<br/>Seconda frase.", got)
		assert.Contains(t, gotUser, "pagina prima")
		assert.NotContains(t, gotUser, "<b>", "HTMLは剥がして渡すはず")
		assert.Contains(t, gotUser, "più divertente")
	})

	t.Run("指示が空なら既定の指示を使うこと", func(t *testing.T) {
		var gotUser string
		ai := &mockAIClient{
			generateWithPartsFunc: func(ctx context.Context, model string, parts []*genai.Part, opts gemini.GenerateOptions) (*gemini.Response, error) {
				gotUser = parts[0].Text
				return textResponse("Nuovo testo."), nil
			},
		}

		_, err := newTestGateway(t, ai).RegeneratePageText(ctx, testPromptData(), "", "testo", "   ")
		require.NoError(t, err)
		assert.Contains(t, gotUser, defaultRewriteInstruction)
	})

	t.Run("空応答はエラーになること", func(t *testing.T) {
		ai := &mockAIClient{}
		_, err := newTestGateway(t, ai).RegeneratePageText(ctx, testPromptData(), "", "testo", "")
		assert.Equal(t, KindGeneration, KindOf(err))
	})
}

func TestGeminiGateway_TranslateText(t *testing.T) {
	ctx := context.Background()

	t.Run("対象言語名がシステムプロンプトに入ること", func(t *testing.T) {
		var gotSystem string
		ai := &mockAIClient{
			generateWithPartsFunc: func(ctx context.Context, model string, parts []*genai.Part, opts gemini.GenerateOptions) (*gemini.Response, error) {
				gotSystem = opts.SystemPrompt
				return textResponse("a red dragon"), nil
			},
		}

		got, err := newTestGateway(t, ai).TranslateText(ctx, "un drago rosso", "en")
		require.NoError(t, err)
		assert.Equal(t, "a red dragon", got)
		assert.Contains(t, gotSystem, "inglese")
	})

	t.Run("未対応言語は翻訳エラーになること", func(t *testing.T) {
		_, err := newTestGateway(t, &mockAIClient{}).TranslateText(ctx, "ciao", "fr")
		assert.Equal(t, KindTranslation, KindOf(err))
	})

	t.Run("空応答は翻訳エラーになること", func(t *testing.T) {
		_, err := newTestGateway(t, &mockAIClient{}).TranslateText(ctx, "ciao", "it")
		assert.Equal(t, KindTranslation, KindOf(err))
	})
}

func TestGeminiGateway_ExtractStyle(t *testing.T) {
	ctx := context.Background()

	t.Run("内容とスタイルの分離結果を返すこと", func(t *testing.T) {
		ai := &mockAIClient{
			generateContentFunc: func(ctx context.Context, model string, prompt string) (*gemini.Response, error) {
				return textResponse("```json\n{\"content\":\"a dragon on a hill\",\"style\":\"watercolor\"}\n```"), nil
			},
		}

		got, err := newTestGateway(t, ai).ExtractStyle(ctx, "a watercolor dragon on a hill")
		require.NoError(t, err)
		assert.Equal(t, "a dragon on a hill", got.Content)
		assert.Equal(t, "watercolor", got.Style)
	})

	t.Run("スタイルが空でも内容があれば成功すること", func(t *testing.T) {
		ai := &mockAIClient{
			generateContentFunc: func(ctx context.Context, model string, prompt string) (*gemini.Response, error) {
				return textResponse("{\"content\":\"a dragon\",\"style\":\"\"}"), nil
			},
		}

		got, err := newTestGateway(t, ai).ExtractStyle(ctx, "a dragon")
		require.NoError(t, err)
		assert.Empty(t, got.Style)
	})

	t.Run("内容が空なら整形エラーになること", func(t *testing.T) {
		ai := &mockAIClient{
			generateContentFunc: func(ctx context.Context, model string, prompt string) (*gemini.Response, error) {
				return textResponse("{\"content\":\"\",\"style\":\"x\"}"), nil
			},
		}

		_, err := newTestGateway(t, ai).ExtractStyle(ctx, "p")
		assert.Equal(t, KindPromptCleaning, KindOf(err))
		assert.True(t, IsPipelinePausing(err))
	})

	t.Run("JSONでない応答は整形エラーになること", func(t *testing.T) {
		ai := &mockAIClient{
			generateContentFunc: func(ctx context.Context, model string, prompt string) (*gemini.Response, error) {
				return textResponse("non posso farlo"), nil
			},
		}

		_, err := newTestGateway(t, ai).ExtractStyle(ctx, "p")
		assert.Equal(t, KindPromptCleaning, KindOf(err))
	})
}

func TestGeminiGateway_GenerateImage(t *testing.T) {
	ctx := context.Background()

	t.Run("ベース未指定なら白紙を下敷きにして生成すること", func(t *testing.T) {
		var gotParts []*genai.Part
		ai := &mockAIClient{
			generateWithPartsFunc: func(ctx context.Context, model string, parts []*genai.Part, opts gemini.GenerateOptions) (*gemini.Response, error) {
				gotParts = parts
				assert.Equal(t, imageAspectRatio, opts.AspectRatio)
				return imageResponse("image/png", []byte("fake-png")), nil
			},
		}

		resp, err := newTestGateway(t, ai).GenerateImage(ctx, ImageRequest{FinalPrompt: "a dragon"})
		require.NoError(t, err)
		assert.Equal(t, []byte("fake-png"), resp.Data)
		assert.Equal(t, "image/png", resp.MimeType)

		require.Len(t, gotParts, 2, "ベース画像 + テキストの2パートのはず")
		assert.NotNil(t, gotParts[0].InlineData)
		assert.Equal(t, "a dragon", gotParts[1].Text, "白紙ベースでは定型句を付けないはず")
	})

	t.Run("前ページの画像を下敷きにすると定型句が付くこと", func(t *testing.T) {
		var gotText string
		ai := &mockAIClient{
			generateWithPartsFunc: func(ctx context.Context, model string, parts []*genai.Part, opts gemini.GenerateOptions) (*gemini.Response, error) {
				gotText = parts[len(parts)-1].Text
				return imageResponse("image/png", []byte("x")), nil
			},
		}

		prevImage := asset.ToDataURI([]byte("GIF89a fake"), "image/gif")
		_, err := newTestGateway(t, ai).GenerateImage(ctx, ImageRequest{FinalPrompt: "a new scene", BaseImage: prevImage})
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(gotText, "Following the style and characters"), gotText)
		assert.Contains(t, gotText, "a new scene")
	})

	t.Run("参照画像つきはパートが増え定型句も変わること", func(t *testing.T) {
		var gotParts []*genai.Part
		ai := &mockAIClient{
			generateWithPartsFunc: func(ctx context.Context, model string, parts []*genai.Part, opts gemini.GenerateOptions) (*gemini.Response, error) {
				gotParts = parts
				return imageResponse("image/jpeg", []byte("y")), nil
			},
		}

		ref := asset.PlaceholderImage
		_, err := newTestGateway(t, ai).GenerateImage(ctx, ImageRequest{
			FinalPrompt:     "a dragon",
			ReferenceImages: []string{ref, ""},
		})
		require.NoError(t, err)
		require.Len(t, gotParts, 3, "空の参照はスキップされるはず")
		assert.Contains(t, gotParts[2].Text, "reference")
	})

	t.Run("クォータ枯渇はレート制限エラーに分類されること", func(t *testing.T) {
		ai := &mockAIClient{
			generateWithPartsFunc: func(ctx context.Context, model string, parts []*genai.Part, opts gemini.GenerateOptions) (*gemini.Response, error) {
				return nil, fmt.Errorf("googleapi: Error 429: RESOURCE_EXHAUSTED")
			},
		}

		_, err := newTestGateway(t, ai).GenerateImage(ctx, ImageRequest{FinalPrompt: "p"})
		assert.Equal(t, KindRateLimit, KindOf(err))
		assert.True(t, IsPipelinePausing(err))
	})

	t.Run("参照画像が読めない場合は参照画像エラーになること", func(t *testing.T) {
		_, err := newTestGateway(t, &mockAIClient{}).GenerateImage(ctx, ImageRequest{
			FinalPrompt:     "p",
			ReferenceImages: []string{"data:image/png;base64,%%%broken%%%"},
		})
		assert.Equal(t, KindInvalidReference, KindOf(err))
		assert.True(t, IsPipelinePausing(err))
	})

	t.Run("画像を含まない応答は画像エラーになること", func(t *testing.T) {
		ai := &mockAIClient{
			generateWithPartsFunc: func(ctx context.Context, model string, parts []*genai.Part, opts gemini.GenerateOptions) (*gemini.Response, error) {
				return textResponse("mi dispiace"), nil
			},
		}

		_, err := newTestGateway(t, ai).GenerateImage(ctx, ImageRequest{FinalPrompt: "p"})
		assert.Equal(t, KindImage, KindOf(err))
		assert.False(t, IsPipelinePausing(err))
	})
}
