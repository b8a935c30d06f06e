package domain

import (
	"fmt"
	"regexp"
	"strings"
)

// ImagePhase はページ画像の生成ライフサイクルの段階を表します。
type ImagePhase string

const (
	ImagePending    ImagePhase = "pending"
	ImageGenerating ImagePhase = "generating"
	ImageDone       ImagePhase = "done"
	ImageError      ImagePhase = "error"
)

// Alignment はページテキストの揃え方向です。空文字は既定値（表紙なら中央、本文なら左）を意味します。
type Alignment string

const (
	AlignLeft   Alignment = "left"
	AlignCenter Alignment = "center"
	AlignRight  Alignment = "right"
)

// Page は絵本の1ページを表します。
//
// ImageStatus / ImageNote / ImageURL の組はタグ付き状態として扱い、
// 直接書き換えず必ず WithXxx 系の遷移メソッドで新しい Page 値を作ります。
// done へは非空の画像を伴う WithImageDone からしか到達できず、
// 「done なのに画像がない」という不正状態を作れないようにしています。
type Page struct {
	// Text は描画・エクスポートの正とする HTML サブセットのリッチテキストです。
	Text string `json:"text"`

	// ImageURL は現在表示中の画像（data URI またはパス）。生成前はプレースホルダーです。
	ImageURL string `json:"imageUrl"`

	// PromptHistory は追記専用のプロンプト履歴です。末尾が「現在のプロンプト」で、
	// ステータスが done のとき末尾エントリが現在画像を生んだプロンプトに一致します。
	PromptHistory []string `json:"imagePromptHistory"`

	ImageStatus ImagePhase `json:"imageStatus"`
	ImageNote   string     `json:"imageError,omitempty"`

	// TextAlign / TextStyle はページ個別の上書き。未設定なら全体設定にフォールバックします。
	TextAlign Alignment  `json:"textAlign,omitempty"`
	TextStyle *TextStyle `json:"textStyle,omitempty"`
}

// NewPage は生成待ち状態のページを作成し、履歴に初期プロンプトを積みます。
func NewPage(text, placeholderImage, initialPrompt string) Page {
	page := Page{
		Text:        text,
		ImageURL:    placeholderImage,
		ImageStatus: ImagePending,
	}
	if initialPrompt != "" {
		page.PromptHistory = []string{initialPrompt}
	}
	return page
}

// CurrentPrompt は履歴の末尾（現在のプロンプト）を返します。履歴が空なら空文字です。
func (p Page) CurrentPrompt() string {
	if len(p.PromptHistory) == 0 {
		return ""
	}
	return p.PromptHistory[len(p.PromptHistory)-1]
}

// Clone はページの深いコピーを返します。
func (p Page) Clone() Page {
	copied := p
	if p.PromptHistory != nil {
		copied.PromptHistory = make([]string, len(p.PromptHistory))
		copy(copied.PromptHistory, p.PromptHistory)
	}
	if p.TextStyle != nil {
		style := *p.TextStyle
		copied.TextStyle = &style
	}
	return copied
}

// WithGenerating は生成中状態へ遷移した新しいページ値を返します。
func (p Page) WithGenerating() Page {
	next := p.Clone()
	next.ImageStatus = ImageGenerating
	next.ImageNote = ""
	return next
}

// WithImageDone は生成成功を確定します。画像が空の場合はエラーを返し、遷移しません。
// appendPrompt が非空なら履歴に追記します（バックグラウンド生成は履歴が既に
// 使用プロンプトを保持しているため空を渡します）。
func (p Page) WithImageDone(imageURL, appendPrompt string) (Page, error) {
	if imageURL == "" {
		return p, fmt.Errorf("画像なしで done 状態には遷移できません")
	}
	next := p.Clone()
	next.ImageURL = imageURL
	next.ImageStatus = ImageDone
	next.ImageNote = ""
	if appendPrompt != "" {
		next.PromptHistory = append(next.PromptHistory, appendPrompt)
	}
	return next, nil
}

// WithImageError は失敗状態へ遷移した新しいページ値を返します。画像は以前のまま保持します。
func (p Page) WithImageError(note string) Page {
	next := p.Clone()
	next.ImageStatus = ImageError
	next.ImageNote = note
	return next
}

// WithCancelled は中断メモ付きで生成待ちへ戻した新しいページ値を返します。
func (p Page) WithCancelled(note string) Page {
	next := p.Clone()
	next.ImageStatus = ImagePending
	next.ImageNote = note
	return next
}

// WithText は本文を差し替えた新しいページ値を返します。
func (p Page) WithText(text string) Page {
	next := p.Clone()
	next.Text = text
	return next
}

// Validate はページ不変条件を検査します。ロード時の健全性チェックに使います。
func (p Page) Validate() error {
	switch p.ImageStatus {
	case ImagePending, ImageGenerating, ImageDone, ImageError:
	default:
		return fmt.Errorf("未知の画像ステータス: %q", p.ImageStatus)
	}
	if p.ImageStatus == ImageDone && p.ImageURL == "" {
		return fmt.Errorf("done 状態のページに画像がありません")
	}
	return nil
}

var tagRegex = regexp.MustCompile(`<[^>]*>`)

// stripTags は HTML タグを取り除いた素のテキストを返す内部ヘルパーなのだ。
func stripTags(html string) string {
	return strings.TrimSpace(tagRegex.ReplaceAllString(html, ""))
}
