package gateway

import (
	"regexp"
	"strings"
)

var jsonBlockRegex = regexp.MustCompile("(?s)```(?:json)?\\s*(.*\\S)\\s*```")

// extractJSONPayload は、AI応答からJSON本体を取り出します。
// マークダウンのコードブロックを優先し、なければ最外の括弧の組、
// それもなければ応答全体をそのまま返します。
func extractJSONPayload(raw string) string {
	raw = strings.TrimSpace(raw)

	matches := jsonBlockRegex.FindStringSubmatch(raw)
	if len(matches) > 1 {
		return matches[1]
	}

	first := strings.IndexAny(raw, "[{")
	var last int
	if first != -1 && raw[first] == '[' {
		last = strings.LastIndex(raw, "]")
	} else {
		last = strings.LastIndex(raw, "}")
	}
	if first != -1 && last > first {
		return raw[first : last+1]
	}

	return raw
}

func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
