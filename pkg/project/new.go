package project

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/shouni/go-storybook-kit/pkg/asset"
	"github.com/shouni/go-storybook-kit/pkg/domain"
	"github.com/shouni/go-storybook-kit/pkg/gateway"
	"github.com/shouni/go-storybook-kit/pkg/prompts"
	"github.com/shouni/go-storybook-kit/pkg/textutil"
)

// 空行（1行以上）でページを区切ります。
var pageSeparatorRegex = regexp.MustCompile(`\n\s*\n`)

// New はAIの草稿列からプロジェクトを組み立てます。先頭の草稿は表紙として
// 中央揃えになり、各ページの履歴には合成済みの最終プロンプトが1つ積まれます。
// 全ページ生成待ち・透明プレースホルダー画像の状態で返します。
func New(data domain.PromptData, drafts []gateway.StoryPageDraft) (*domain.Project, error) {
	if len(drafts) == 0 {
		return nil, fmt.Errorf("草稿が1ページもありません")
	}

	pages := make([]domain.Page, 0, len(drafts))
	for i, draft := range drafts {
		var initialPrompt string
		if i == 0 {
			initialPrompt = prompts.ComposeCoverPrompt(draft.Text, data.BookStyle)
		} else if strings.TrimSpace(draft.ImagePrompt) != "" {
			// プロンプトのない草稿は履歴を空のままにして、生成対象から外します。
			initialPrompt = prompts.ComposePagePrompt(draft.ImagePrompt, data.BookStyle)
		}

		page := domain.NewPage(textutil.FormatWithLineBreaks(draft.Text), asset.TransparentPixel, initialPrompt)
		if i == 0 {
			page.TextAlign = domain.AlignCenter
		}
		pages = append(pages, page)
	}

	return &domain.Project{
		PromptData: data,
		Pages:      pages,
		CreatedAt:  time.Now().UTC().Format(time.RFC3339),
		Version:    CurrentVersion,
	}, nil
}

// NewFromCustomText はユーザー持ち込みの本文からプロジェクトを組み立てます。
// 本文は空行でページに分割し、各ページの画像プロンプトはゲートウェイに
// 生成させます（このステップは失敗しても汎用プロンプトで進みます）。
func NewFromCustomText(ctx context.Context, data domain.PromptData, gw gateway.Gateway) (*domain.Project, error) {
	if gw == nil {
		return nil, fmt.Errorf("gw (gateway.Gateway) は必須です")
	}

	title := strings.TrimSpace(data.CustomTitle)
	if title == "" {
		return nil, fmt.Errorf("タイトルが空です")
	}

	blocks := SplitCustomText(data.CustomText)
	if len(blocks) == 0 {
		return nil, fmt.Errorf("本文が空です")
	}

	drafts := make([]gateway.StoryPageDraft, 0, len(blocks)+1)
	drafts = append(drafts, gateway.StoryPageDraft{Text: title})
	for _, block := range blocks {
		drafts = append(drafts, gateway.StoryPageDraft{
			Text:        block,
			ImagePrompt: gw.GeneratePromptFromText(ctx, block),
		})
	}

	return New(data, drafts)
}

// SplitCustomText は持ち込み本文を空行区切りでページに分割します。
func SplitCustomText(text string) []string {
	var blocks []string
	for _, block := range pageSeparatorRegex.Split(strings.ReplaceAll(text, "\r\n", "\n"), -1) {
		if trimmed := strings.TrimSpace(block); trimmed != "" {
			blocks = append(blocks, trimmed)
		}
	}
	return blocks
}

// DefaultFilename はプロジェクトの保存ファイル名（拡張子つき）を返します。
func DefaultFilename(p *domain.Project) string {
	title := p.Title()
	if title == "" {
		title = "storia"
	}
	return textutil.SanitizeFilename(title) + FileExtension
}
