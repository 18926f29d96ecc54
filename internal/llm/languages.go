package llm

import (
	"strings"
	"sync"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

// whisperLanguages are the ISO 639-1 codes Whisper can detect
var whisperLanguages = []string{
	"af", "am", "ar", "as", "az", "ba", "be", "bg", "bn", "bo", "br", "bs", "ca", "cs", "cy",
	"da", "de", "el", "en", "es", "et", "eu", "fa", "fi", "fo", "fr", "gl", "gu", "ha", "he",
	"hi", "hr", "ht", "hu", "hy", "id", "is", "it", "ja", "jv", "ka", "kk", "km", "kn", "ko",
	"la", "lb", "ln", "lo", "lt", "lv", "mg", "mi", "mk", "ml", "mn", "mr", "ms", "mt", "my",
	"ne", "nl", "nn", "no", "oc", "pa", "pl", "ps", "pt", "ro", "ru", "sa", "sd", "si", "sk",
	"sl", "sn", "so", "sq", "sr", "su", "sv", "sw", "ta", "te", "tg", "th", "tk", "tl", "tr",
	"tt", "uk", "ur", "uz", "vi", "yi", "yo", "zh",
}

// names Whisper reports that differ from the CLDR English name
var whisperAliases = map[string]string{
	"castilian":      "es",
	"flemish":        "nl",
	"haitian creole": "ht",
	"letzeburgesch":  "lb",
	"moldavian":      "ro",
	"moldovan":       "ro",
	"pushto":         "ps",
	"sinhalese":      "si",
	"valencian":      "ca",
	"mandarin":       "zh",
	"burmese":        "my",
	"persian":        "fa",
	"norwegian":      "no",
}

var (
	namesOnce   sync.Once
	nameToCode  map[string]string
	englishName = display.English.Languages()
)

func buildNames() {
	nameToCode = make(map[string]string, len(whisperLanguages)+len(whisperAliases))
	for _, code := range whisperLanguages {
		name := strings.ToLower(englishName.Name(language.Make(code)))
		if name != "" {
			nameToCode[name] = code
		}
	}
	for name, code := range whisperAliases {
		nameToCode[name] = code
	}
}

// NormalizeLanguage turns a Whisper language ("english") or a tag ("en-US")
// into a base ISO code ("en"). Unknown input is returned lower-cased.
func NormalizeLanguage(lang string) string {
	lang = strings.ToLower(strings.TrimSpace(lang))
	if lang == "" {
		return ""
	}

	namesOnce.Do(buildNames)
	if code, ok := nameToCode[lang]; ok {
		return code
	}

	if tag, err := language.Parse(lang); err == nil {
		base, _ := tag.Base()
		return base.String()
	}
	return lang
}

// LanguageName returns the English name of a code, used in prompts
func LanguageName(code string) string {
	tag, err := language.Parse(code)
	if err != nil {
		return code
	}
	if name := englishName.Name(tag); name != "" {
		return name
	}
	return code
}
