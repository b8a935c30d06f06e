// Package prompts は、ユーザーが入力した画像プロンプトを生成バックエンドへ渡せる
// 形へ変換するパイプライン（翻訳・スタイル分離・最終合成）を提供します。
package prompts

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/shouni/go-storybook-kit/pkg/domain"
	"github.com/shouni/go-storybook-kit/pkg/gateway"
	"github.com/shouni/go-storybook-kit/pkg/textutil"
)

const (
	translationCacheExpiration = 30 * time.Minute
	translationCacheCleanup    = time.Hour
)

// literalRegex は二重引用符マーカー（""..."" ）で囲まれた翻訳禁止スパンにマッチします。
var literalRegex = regexp.MustCompile(`""[^"]*""`)

// fallbackStyleClauses は、プロンプトからスタイルが抽出できなかったときに使う
// 画風ごとの固定スタイル句です。
var fallbackStyleClauses = map[domain.BookStyle]string{
	domain.StyleToddler: "simple and friendly illustration for toddlers, bright colors, thick outlines, soft rounded shapes",
	domain.StyleClassic: "classic storybook watercolor illustration, warm colors, detailed and timeless",
	domain.StyleComic:   "playful comic book illustration, bold lines, dynamic composition, vivid colors",
	domain.StylePhoto:   "photorealistic rendering, soft natural lighting, shallow depth of field",
}

// Pipeline はプロンプト変換の各段を束ねます。翻訳結果はキャッシュします。
type Pipeline struct {
	gw               gateway.Gateway
	translationCache *cache.Cache
}

// NewPipeline は Pipeline を初期化します。
func NewPipeline(gw gateway.Gateway) (*Pipeline, error) {
	if gw == nil {
		return nil, fmt.Errorf("gw (gateway.Gateway) は必須です")
	}
	return &Pipeline{
		gw:               gw,
		translationCache: cache.New(translationCacheExpiration, translationCacheCleanup),
	}, nil
}

// Translate はテキストを指定言語へ翻訳します。""..."" で囲まれたスパンは
// 固有名詞などの翻訳禁止コンテンツとして、翻訳をまたいで一字一句保持します。
// 失敗時は TranslationError（gateway.KindTranslation）を返すので、呼び出し側は
// 原文へのフォールバックを判断できます。
func (p *Pipeline) Translate(ctx context.Context, text, targetLang string) (string, error) {
	cacheKey := targetLang + "|" + text
	if cached, ok := p.translationCache.Get(cacheKey); ok {
		if s, isString := cached.(string); isString {
			return s, nil
		}
	}

	// マーカー付きスパンを添字つきトークンへ退避します。
	literals := literalRegex.FindAllString(text, -1)
	masked := text
	for i, lit := range literals {
		masked = strings.Replace(masked, lit, literalToken(i), 1)
	}

	translated, err := p.gw.TranslateText(ctx, masked, targetLang)
	if err != nil {
		return "", err
	}

	// 添字で突き合わせてスパンを原文どおり復元します。
	for i, lit := range literals {
		translated = strings.ReplaceAll(translated, literalToken(i), lit)
	}

	p.translationCache.Set(cacheKey, translated, cache.DefaultExpiration)
	return translated, nil
}

func literalToken(i int) string {
	return fmt.Sprintf("__LIT_%d__", i)
}

// ExtractStyleAndClean はプロンプトを内容記述とスタイル句に分離します。
// スタイルが抽出できなかった場合は画風ごとの固定句で補います。
// 分離そのものに失敗した場合はハードエラーで、未整形のまま先へ進んではいけません。
func (p *Pipeline) ExtractStyleAndClean(ctx context.Context, prompt string, fallbackStyle domain.BookStyle) (content, style string, err error) {
	extraction, err := p.gw.ExtractStyle(ctx, prompt)
	if err != nil {
		return "", "", err
	}

	style = strings.TrimSpace(extraction.Style)
	if style == "" {
		style = FallbackStyleClause(fallbackStyle)
		slog.Debug("スタイルが抽出できなかったため既定のスタイル句を使います", "book_style", fallbackStyle)
	}
	return strings.TrimSpace(extraction.Content), style, nil
}

// FallbackStyleClause は画風に対応する固定スタイル句を返します。
// 未知の画風は classic 相当として扱うのだ。
func FallbackStyleClause(style domain.BookStyle) string {
	if clause, ok := fallbackStyleClauses[style]; ok {
		return clause
	}
	return fallbackStyleClauses[domain.StyleClassic]
}

// ComposeFinalPrompt は内容記述とスタイル句を決定的に合成します。失敗しません。
func ComposeFinalPrompt(content, style string) string {
	content = strings.TrimSuffix(strings.TrimSpace(content), ".")
	style = strings.TrimSuffix(strings.TrimSpace(style), ".")
	if style == "" {
		return content + "."
	}
	return fmt.Sprintf("%s. Stile: %s.", content, style)
}

// ComposeCoverPrompt はタイトルから表紙用のプロンプトを合成します。
func ComposeCoverPrompt(title string, style domain.BookStyle) string {
	return fmt.Sprintf("Copertina del libro per bambini intitolato %q. Stile: %s.", textutil.StripHTML(title), style)
}

// ComposePagePrompt は本文ページ用の最終プロンプトを合成します。
func ComposePagePrompt(imagePrompt string, style domain.BookStyle) string {
	return fmt.Sprintf("%s. Stile: %s.", strings.TrimSuffix(strings.TrimSpace(imagePrompt), "."), style)
}
