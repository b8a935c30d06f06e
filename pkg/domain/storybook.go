package domain

import "strings"

// BookStyle は絵本全体の画風を表す列挙値です。
type BookStyle string

const (
	StyleToddler BookStyle = "toddler"
	StyleClassic BookStyle = "classic"
	StyleComic   BookStyle = "comic"
	StylePhoto   BookStyle = "photo"
)

// IsValid は既知の画風かどうかを返すのだ。
func (s BookStyle) IsValid() bool {
	switch s {
	case StyleToddler, StyleClassic, StyleComic, StylePhoto:
		return true
	}
	return false
}

// TextTransform はテキストの大文字・小文字変換の指定です。
type TextTransform string

const (
	TransformNone      TextTransform = "none"
	TransformUppercase TextTransform = "uppercase"
	TransformLowercase TextTransform = "lowercase"
)

// StoryInputMode は物語本文の入力モードです。
// generate は AI 生成、custom はユーザーが本文を持ち込むモードです。
type StoryInputMode string

const (
	InputGenerate StoryInputMode = "generate"
	InputCustom   StoryInputMode = "custom"
)

// TextStyle はテキスト描画のスタイル指定を保持します。
type TextStyle struct {
	FontFamily    string        `json:"fontFamily"`
	FontSize      string        `json:"fontSize"`
	TextTransform TextTransform `json:"textTransform"`
}

// ReferenceImages はスタイル・キャラクターの参照画像の識別子（URL または data URI）です。
// 一度設定された参照画像は不変のコンテンツとして扱い、パイプラインは読み取りのみを行います。
type ReferenceImages struct {
	Style     string `json:"style,omitempty"`
	Character string `json:"character,omitempty"`
}

// URLs は設定済みの参照画像識別子を順序付きで返します。空のものは含めません。
func (r ReferenceImages) URLs() []string {
	var urls []string
	if r.Style != "" {
		urls = append(urls, r.Style)
	}
	if r.Character != "" {
		urls = append(urls, r.Character)
	}
	return urls
}

// PromptData はユーザーが指定した生成設定一式を保持します。
type PromptData struct {
	Themes             string          `json:"themes"`
	OtherElements      string          `json:"otherElements"`
	TargetAge          string          `json:"targetAge"`
	BookStyle          BookStyle       `json:"bookStyle"`
	Author             string          `json:"author,omitempty"`
	License            string          `json:"license,omitempty"`
	ReferenceImageURLs ReferenceImages `json:"referenceImageUrls"`
	TextStyle          TextStyle       `json:"textStyle"`
	AutoGenerateImages bool            `json:"autoGenerateImages"`

	// StoryInputMode が InputCustom のとき、CustomTitle / CustomText が本文の出所になります。
	StoryInputMode StoryInputMode `json:"storyInputMode,omitempty"`
	CustomTitle    string         `json:"customTitle,omitempty"`
	CustomText     string         `json:"customText,omitempty"`
}

// Project は絵本プロジェクト全体の集約です。
// ページ列は順序が意味を持ち、先頭（インデックス 0）は常に表紙ページです。
type Project struct {
	PromptData PromptData `json:"promptData"`
	Pages      []Page     `json:"pages"`
	CreatedAt  string     `json:"createdAt"`
	Version    string     `json:"version"`
}

// Title は表紙ページのテキストからマークアップを除いたタイトルを返します。
func (p *Project) Title() string {
	if len(p.Pages) == 0 {
		return ""
	}
	return strings.TrimSpace(stripTags(p.Pages[0].Text))
}

// ReplacePage はインデックス位置のページを新しい値で丸ごと差し替えます。
// フィールド単位の書き換えではなくページ単位の置換に統一することで、
// 観測側（UI 等）が常に一貫した状態を読めるようにします。
func (p *Project) ReplacePage(index int, page Page) {
	if index < 0 || index >= len(p.Pages) {
		return
	}
	p.Pages[index] = page
}

// Clone はプロジェクトの深いコピーを返します。ページ列と履歴も複製します。
func (p *Project) Clone() *Project {
	copied := *p
	copied.Pages = make([]Page, len(p.Pages))
	for i, page := range p.Pages {
		copied.Pages[i] = page.Clone()
	}
	return &copied
}

// EffectiveTextStyle はページ個別のスタイルがあればそれを、なければ全体設定を返します。
func (p *Project) EffectiveTextStyle(index int) TextStyle {
	if index >= 0 && index < len(p.Pages) && p.Pages[index].TextStyle != nil {
		return *p.Pages[index].TextStyle
	}
	return p.PromptData.TextStyle
}
