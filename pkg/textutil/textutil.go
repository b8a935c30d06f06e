// Package textutil は、絵本の本文（限定的なHTMLサブセット）の整形と
// ファイル名生成のための雑多なテキスト処理を提供します。
package textutil

import (
	"fmt"
	"html"
	"regexp"
	"strings"
	"time"
)

var (
	tagRegex        = regexp.MustCompile(`<[^>]*>`)
	whitespaceRegex = regexp.MustCompile(`\s+`)
	// 文末記号（閉じ引用符つきを含む）の直後の空白を文の切れ目とみなします。
	sentenceEndRegex  = regexp.MustCompile(`([.!?]['"»]?)\s+`)
	nonWordRegex      = regexp.MustCompile(`[^\w\-.]+`)
	multiHyphenRegex  = regexp.MustCompile(`--+`)
	leadHyphenRegex   = regexp.MustCompile(`^-+`)
	trailHyphenRegex  = regexp.MustCompile(`-+$`)
	maxFilenameLength = 60
)

// StripHTML はタグを取り除き、エンティティを展開した素のテキストを返します。
func StripHTML(markup string) string {
	return html.UnescapeString(tagRegex.ReplaceAllString(markup, ""))
}

// FormatWithLineBreaks はAIが返した素のテキストを文単位で <br/> 区切りに整形します。
// ユーザーが整形済みの本文には使わないこと。
func FormatWithLineBreaks(text string) string {
	if text == "" {
		return ""
	}

	cleaned := strings.TrimSpace(whitespaceRegex.ReplaceAllString(StripHTML(text), " "))
	return sentenceEndRegex.ReplaceAllString(cleaned, "$1<br/>")
}

// SanitizeFilename はタイトルからファイルシステムに安全な名前を作ります。
// 空になってしまう場合はタイムスタンプ付きの既定名にフォールバックします。
func SanitizeFilename(name string) string {
	fallback := fmt.Sprintf("storia-%d", time.Now().UnixMilli())
	if strings.TrimSpace(name) == "" {
		return fallback
	}

	sanitized := strings.ToLower(StripHTML(name))
	sanitized = whitespaceRegex.ReplaceAllString(sanitized, "-")
	sanitized = nonWordRegex.ReplaceAllString(sanitized, "")
	sanitized = multiHyphenRegex.ReplaceAllString(sanitized, "-")
	sanitized = leadHyphenRegex.ReplaceAllString(sanitized, "")
	sanitized = trailHyphenRegex.ReplaceAllString(sanitized, "")

	if len(sanitized) > maxFilenameLength {
		sanitized = sanitized[:maxFilenameLength]
	}
	if strings.TrimSpace(sanitized) == "" {
		return fallback
	}
	return sanitized
}
