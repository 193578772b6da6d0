package prompts

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"regexp"
	"strings"
	"sync"
	"text/template"
	"unicode/utf8"
)

//go:embed templates/*.txt
var Templates embed.FS

var questionTagRegex = regexp.MustCompile(`(?i)</?\s*question\b[^>]*>`)

const maxFieldRunes = 2000

// Language selects the explanation prompt variant.
type Language string

const (
	LanguageArabic  Language = "ar"
	LanguageEnglish Language = "en"
)

var validLanguages = map[Language]bool{
	LanguageArabic:  true,
	LanguageEnglish: true,
}

var (
	loadOnce         sync.Once
	loadErr          error
	explainTemplates map[Language]*template.Template
)

// IsValidLanguage checks if a prompt language is known.
func IsValidLanguage(l string) bool {
	return validLanguages[Language(l)]
}

// ExplainData holds template data for one missed question.
type ExplainData struct {
	Grade         string
	QuestionText  string
	Options       []string
	CorrectIndex  int
	CorrectText   string
	Answered      bool
	SelectedIndex int
	SelectedText  string
}

// Load parses the explanation templates from fsys once.
func Load(fsys fs.FS) error {
	loadOnce.Do(func() {
		explainTemplates = make(map[Language]*template.Template)
		for l := range validLanguages {
			name := "templates/explain_" + string(l) + ".txt"
			content, err := fs.ReadFile(fsys, name)
			if err != nil {
				loadErr = fmt.Errorf("read prompt file %s: %w", name, err)
				return
			}
			tmpl, err := template.New("explain").Parse(string(content))
			if err != nil {
				loadErr = fmt.Errorf("parse prompt template %s: %w", name, err)
				return
			}
			explainTemplates[l] = tmpl
		}
	})
	return loadErr
}

// BuildExplainPrompt renders the system prompt for one question. Unknown
// languages fall back to Arabic.
func BuildExplainPrompt(lang Language, data ExplainData) (string, error) {
	if explainTemplates == nil {
		return "", errors.New("templates not initialized: call Load first")
	}
	if !IsValidLanguage(string(lang)) {
		lang = LanguageArabic
	}
	tmpl := explainTemplates[lang]

	data.QuestionText = sanitize(data.QuestionText)
	data.CorrectText = sanitize(data.CorrectText)
	data.SelectedText = sanitize(data.SelectedText)
	options := make([]string, len(data.Options))
	for i, o := range data.Options {
		options[i] = sanitize(o)
	}
	data.Options = options

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// sanitize strips tags that could close the question block and caps the
// length of author-supplied text.
func sanitize(s string) string {
	s = questionTagRegex.ReplaceAllString(s, "")
	s = strings.TrimSpace(s)
	if utf8.RuneCountInString(s) > maxFieldRunes {
		s = string([]rune(s)[:maxFieldRunes]) + " [truncated]"
	}
	return s
}
