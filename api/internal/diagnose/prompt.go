package diagnose

import (
	"fmt"
	"os"
	"strings"
	"unicode"
)

const languagePlaceholder = "{{language}}"

const defaultPrompt = `You are an AI agronomist helping Indian farmers.
Analyze this crop image and respond ONLY with a single JSON object with exactly these keys:

{
  "isHealthy": false,
  "issueName": "Leaf Spot",
  "issueType": "Fungal",
  "confidence": 0.87,
  "description": "Short summary, one or two lines.",
  "treatment": ["Short, actionable treatment steps."],
  "prevention": ["Simple prevention tips."],
  "diyTip": "One quick do-it-yourself tip."
}

issueType is one of "Disease", "Pest", "Fungal" or "Unidentified".
confidence is a number between 0.0 and 1.0.
If the crop looks healthy set isHealthy to true.
All string values must be in this language: {{language}}.
Do NOT include markdown or any extra text.`

// Prompt is the instruction sent with every image.
type Prompt struct {
	template string
}

func DefaultPrompt() Prompt { return Prompt{template: defaultPrompt} }

// LoadPrompt reads a prompt template from a text file. The file must contain
// the {{language}} placeholder.
func LoadPrompt(path string) (Prompt, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Prompt{}, fmt.Errorf("read prompt %s: %w", path, err)
	}
	tpl := strings.TrimSpace(string(b))
	if !strings.Contains(tpl, languagePlaceholder) {
		return Prompt{}, fmt.Errorf("prompt %s has no %s placeholder", path, languagePlaceholder)
	}
	return Prompt{template: tpl}, nil
}

func (p Prompt) Render(language string) string {
	tpl := p.template
	if tpl == "" {
		tpl = defaultPrompt
	}
	return strings.ReplaceAll(tpl, languagePlaceholder, NormalizeLanguage(language))
}

// NormalizeLanguage keeps a short, prompt-safe language tag; empty or
// suspicious input becomes DefaultLanguage.
func NormalizeLanguage(lang string) string {
	lang = strings.TrimSpace(lang)
	if lang == "" || len(lang) > 32 {
		return DefaultLanguage
	}
	for _, r := range lang {
		if !unicode.IsLetter(r) && !unicode.IsMark(r) && r != '-' && r != '_' && r != ' ' {
			return DefaultLanguage
		}
	}
	return lang
}
