package textutil

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStripHTML(t *testing.T) {
	assert.Equal(t, "Il Drago Rosso", StripHTML("<b>Il Drago</b> <i>Rosso</i>"))
	assert.Equal(t, "a < b", StripHTML("a &lt; b"))
	assert.Equal(t, "", StripHTML(""))
}

func TestFormatWithLineBreaks(t *testing.T) {
	t.Run("文末ごとに改行タグが入ること", func(t *testing.T) {
		got := FormatWithLineBreaks("C'era una volta un drago. Viveva su una montagna. Era felice!")
		assert.Equal(t, "C'era una volta un drago.<br/>Viveva su una montagna.<br/>Era felice!", got)
	})

	t.Run("閉じ引用符つきの文末でも正しく切れること", func(t *testing.T) {
		got := FormatWithLineBreaks(`"Cosa è stato?!" chiese lei. Nessuno rispose.`)
		assert.Equal(t, `"Cosa è stato?!" chiese lei.<br/>Nessuno rispose.`, got)
	})

	t.Run("HTMLと余分な空白は除去されること", func(t *testing.T) {
		got := FormatWithLineBreaks("<p>Prima   frase.</p>\n\nSeconda frase.")
		assert.Equal(t, "Prima frase.<br/>Seconda frase.", got)
	})

	t.Run("空文字はそのまま", func(t *testing.T) {
		assert.Equal(t, "", FormatWithLineBreaks(""))
	})
}

func TestSanitizeFilename(t *testing.T) {
	t.Run("タイトルが安全なファイル名になること", func(t *testing.T) {
		assert.Equal(t, "il-drago-rosso", SanitizeFilename("<b>Il Drago</b> Rosso!"))
	})

	t.Run("連続ハイフンと端のハイフンが整理されること", func(t *testing.T) {
		assert.Equal(t, "una-storia", SanitizeFilename("  --Una   Storia--  "))
	})

	t.Run("空入力はタイムスタンプ付き既定名になること", func(t *testing.T) {
		got := SanitizeFilename("   ")
		assert.True(t, strings.HasPrefix(got, "storia-"), got)
	})

	t.Run("長いタイトルは切り詰められること", func(t *testing.T) {
		got := SanitizeFilename(strings.Repeat("abc ", 50))
		assert.LessOrEqual(t, len(got), 60)
	})
}
