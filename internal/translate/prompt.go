package translate

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ziedsayadi/Cvmodel/internal/language"
)

// LanguageOption is one selectable target language for API consumers.
type LanguageOption struct {
	Code  string `json:"code"`
	Label string `json:"label"`
}

var languageLabels = map[string]string{
	"ar": "Arabic",
	"de": "German",
	"en": "English",
	"es": "Spanish",
	"fr": "French",
	"id": "Indonesian",
	"it": "Italian",
	"ja": "Japanese",
	"ko": "Korean",
	"nl": "Dutch",
	"pl": "Polish",
	"pt": "Portuguese",
	"ru": "Russian",
	"th": "Thai",
	"tr": "Turkish",
	"vi": "Vietnamese",
	"zh": "Chinese",
}

// LanguageOptions returns the known target languages, sorted by code.
func LanguageOptions() []LanguageOption {
	options := make([]LanguageOption, 0, len(languageLabels))
	for code, label := range languageLabels {
		options = append(options, LanguageOption{Code: code, Label: label})
	}
	sort.Slice(options, func(i, j int) bool { return options[i].Code < options[j].Code })
	return options
}

// TargetLabel maps an ISO code to a human-readable language name for the
// prompt. Values that are not known codes (for example "Spanish" spelled
// out) pass through verbatim.
func TargetLabel(lang string) string {
	if code := language.NormalizeCode(lang); code != "" {
		if label, ok := languageLabels[code]; ok {
			return label
		}
	}
	trimmed := strings.TrimSpace(lang)
	if trimmed == "" {
		return "English"
	}
	return trimmed
}

// buildDocumentPrompt wraps one JSON-shaped segment in the fixed instruction
// template. The model must return only valid JSON syntax.
func buildDocumentPrompt(segmentText, targetLabel, sourceLabel string) string {
	from := ""
	if sourceLabel != "" {
		from = fmt.Sprintf(" from %s", sourceLabel)
	}
	return fmt.Sprintf(
		"You are translating a fragment of a resume stored as JSON.\n"+
			"Translate the human-readable text values%s into %s.\n"+
			"Preserve every key, the structure, all identifiers, dates, email addresses and URLs exactly as they appear.\n"+
			"Do not add, remove or reorder fields. Do not translate keys.\n"+
			"Return only the resulting JSON syntax, with no explanation and no markdown fences.\n\n%s",
		from, targetLabel, segmentText,
	)
}

// buildFieldPrompt wraps one plain-text resume field, used by the
// field-by-field mode. The model must return only the translated text.
func buildFieldPrompt(fieldText, targetLabel, sourceLabel string) string {
	from := ""
	if sourceLabel != "" {
		from = fmt.Sprintf(" from %s", sourceLabel)
	}
	return fmt.Sprintf(
		"Translate the following resume text%s into %s. "+
			"Return only the translated text, with no quotes and no explanation.\n\n%s",
		from, targetLabel, fieldText,
	)
}
