package gateway

import (
	_ "embed"
	"fmt"
	"strings"
	"text/template"
)

const (
	modeStorySystem     = "story_system"
	modeStoryUser       = "story_user"
	modeRewriteSystem   = "rewrite_system"
	modeRewriteUser     = "rewrite_user"
	modeTranslateSystem = "translate_system"
	modeStyleSplit      = "style_split"
	modePagePrompt      = "page_prompt"
)

var (
	//go:embed story_system.md
	storySystemPrompt string
	//go:embed story_user.md
	storyUserPrompt string
	//go:embed rewrite_system.md
	rewriteSystemPrompt string
	//go:embed rewrite_user.md
	rewriteUserPrompt string
	//go:embed translate_system.md
	translateSystemPrompt string
	//go:embed style_split.md
	styleSplitPrompt string
	//go:embed page_prompt.md
	pagePromptPrompt string
)

// allTemplates はモードとテンプレート文字列を紐づけるマップなのだ。
var allTemplates = map[string]string{
	modeStorySystem:     storySystemPrompt,
	modeStoryUser:       storyUserPrompt,
	modeRewriteSystem:   rewriteSystemPrompt,
	modeRewriteUser:     rewriteUserPrompt,
	modeTranslateSystem: translateSystemPrompt,
	modeStyleSplit:      styleSplitPrompt,
	modePagePrompt:      pagePromptPrompt,
}

// storyTemplateData は物語生成・本文書き直しテンプレートに渡すデータ構造です。
type storyTemplateData struct {
	Themes        string
	OtherElements string
	TargetAge     string
	BookStyle     string
	PreviousText  string
	CurrentText   string
	Instruction   string
}

type translateTemplateData struct {
	LanguageName string
}

type styleSplitTemplateData struct {
	Prompt string
}

type pagePromptTemplateData struct {
	PageText string
}

// parseTemplates は go:embed 済みの全テンプレートを解析して返します。
// 内容が空のテンプレートは埋め込みミスとして初期化時に弾きます。
func parseTemplates() (map[string]*template.Template, error) {
	parsed := make(map[string]*template.Template)
	for mode, content := range allTemplates {
		if content == "" {
			return nil, fmt.Errorf("プロンプトテンプレート '%s' (go:embed) の読み込みに失敗しました: 内容が空です", mode)
		}

		tmpl, err := template.New(mode).Parse(content)
		if err != nil {
			return nil, fmt.Errorf("プロンプト '%s' の解析に失敗: %w", mode, err)
		}
		parsed[mode] = tmpl
	}
	return parsed, nil
}

func renderTemplate(templates map[string]*template.Template, mode string, data any) (string, error) {
	tmpl, ok := templates[mode]
	if !ok {
		return "", fmt.Errorf("不明なモードです: '%s'", mode)
	}

	var sb strings.Builder
	if err := tmpl.Execute(&sb, data); err != nil {
		return "", fmt.Errorf("プロンプトテンプレートの実行に失敗しました: %w", err)
	}
	return sb.String(), nil
}
