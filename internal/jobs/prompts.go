package jobs

import (
	"embed"
	"fmt"
	"strings"
	"text/template"
)

//go:embed prompts/*.tmpl
var promptFS embed.FS

var prompts = template.Must(template.New("prompts").ParseFS(promptFS, "prompts/*.tmpl"))

// Supported prompt languages.
const (
	LanguageEnglish = "en"
	LanguageChinese = "zh-CN"
)

// promptLanguage maps a task language to one of the shipped prompt sets.
func promptLanguage(language string) string {
	l := strings.ToLower(strings.TrimSpace(language))
	if strings.HasPrefix(l, "zh") {
		return LanguageChinese
	}
	return LanguageEnglish
}

// renderPrompt executes the template name in the task's language.
func renderPrompt(name, language string, data any) (string, error) {
	tmpl := prompts.Lookup(name + "." + promptLanguage(language) + ".tmpl")
	if tmpl == nil {
		tmpl = prompts.Lookup(name + "." + LanguageEnglish + ".tmpl")
	}
	if tmpl == nil {
		return "", fmt.Errorf("no prompt template named %q", name)
	}

	var b strings.Builder
	if err := tmpl.Execute(&b, data); err != nil {
		return "", fmt.Errorf("failed to render %s prompt: %w", name, err)
	}
	return b.String(), nil
}
