package notify

import (
	"errors"
	"strconv"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/transcribot/transcribot/internal/consts"
	"github.com/transcribot/transcribot/internal/database"
	"github.com/transcribot/transcribot/internal/orchestrator"
	"github.com/transcribot/transcribot/internal/quota"
	"github.com/transcribot/transcribot/internal/session"
	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

// Args fills {name} placeholders
type Args map[string]string

// Outcome is what a finished or rejected job produced. Result may be set
// together with Err when some translations succeeded before a failure.
type Outcome struct {
	Result *orchestrator.Result
	Err    error
}

// Formatter renders localized text. It holds no per-user state.
type Formatter struct {
	supported  []string
	matcher    language.Matcher
	maxFileMB  int
	timeLayout string
}

func NewFormatter(maxFileMB int) *Formatter {
	supported := []string{"en", "ru", "es"}
	tags := make([]language.Tag, len(supported))
	for i, code := range supported {
		tags[i] = language.Make(code)
	}

	return &Formatter{
		supported:  supported,
		matcher:    language.NewMatcher(tags),
		maxFileMB:  maxFileMB,
		timeLayout: consts.TimeFormatDisplay + " MST",
	}
}

// Supported returns the interface languages with a full catalog
func (f *Formatter) Supported() []string {
	return append([]string(nil), f.supported...)
}

// Match maps any tag ("pt-BR", "ru-RU", "") onto a supported interface
// language, defaulting to English.
func (f *Formatter) Match(lang string) string {
	if lang == "" {
		return consts.DefaultLanguage
	}
	tag, err := language.Parse(lang)
	if err != nil {
		return consts.DefaultLanguage
	}
	_, idx, conf := f.matcher.Match(tag)
	if conf == language.No {
		return consts.DefaultLanguage
	}
	return f.supported[idx]
}

// Text looks up key in lang, then English, then returns the key itself
func (f *Formatter) Text(lang string, key Key, args Args) string {
	msg, ok := catalog[f.Match(lang)][key]
	if !ok {
		msg, ok = catalog[consts.DefaultLanguage][key]
	}
	if !ok {
		msg = string(key)
	}

	if len(args) == 0 {
		return msg
	}

	pairs := make([]string, 0, len(args)*2)
	for k, v := range args {
		pairs = append(pairs, "{"+k+"}", v)
	}
	return strings.NewReplacer(pairs...).Replace(msg)
}

// LanguageName names code in the interface language, e.g. "испанский"
func (f *Formatter) LanguageName(code, uiLang string) string {
	tag, err := language.Parse(code)
	if err != nil {
		return code
	}
	name := display.Tags(language.Make(f.Match(uiLang))).Name(tag)
	if name == "" {
		name = display.English.Tags().Name(tag)
	}
	if name == "" {
		return code
	}
	return capitalize(name)
}

// NativeName names code in its own language, e.g. "Español"
func (f *Formatter) NativeName(code string) string {
	tag, err := language.Parse(code)
	if err != nil {
		return code
	}
	if name := display.Self.Name(tag); name != "" {
		return capitalize(name)
	}
	return code
}

// Format renders a job outcome: transcript and translations on success,
// a localized error otherwise, or both for a partial result.
func (f *Formatter) Format(o Outcome, lang string) string {
	var parts []string

	if o.Result != nil && o.Result.Transcript != "" {
		res := o.Result
		source := res.SourceLanguage
		if source == "" {
			source = "?"
		} else {
			source = f.LanguageName(source, lang)
		}

		parts = append(parts, f.Text(lang, KeyTranscriptHeader, Args{"language": source})+"\n"+res.Transcript)
		for _, tr := range res.Translations {
			header := f.Text(lang, KeyTranslationHeader, Args{"language": f.LanguageName(tr.Language, lang)})
			parts = append(parts, header+"\n"+tr.Text)
		}
	}

	if o.Err != nil {
		parts = append(parts, f.FormatError(o.Err, lang))
	}

	return strings.Join(parts, "\n\n")
}

// FormatError maps any error to user-facing text. Internal details are
// never shown.
func (f *Formatter) FormatError(err error, lang string) string {
	if errors.Is(err, session.ErrBusy) {
		return f.Text(lang, KeyBusy, nil)
	}

	var le *quota.LimitError
	if errors.As(err, &le) {
		return f.LimitReached(lang, le.Used, le.Limit, le.ResetAt)
	}

	oe := orchestrator.Classify(err)
	switch oe.Code {
	case orchestrator.CodeFileTooLarge:
		return f.Text(lang, KeyFileTooLarge, Args{"max_size": strconv.Itoa(f.maxFileMB)})
	case orchestrator.CodeUnsupportedFormat:
		return f.Text(lang, KeyUnsupportedFormat, nil)
	case orchestrator.CodeConversionFailed:
		return f.Text(lang, KeyConversionFailed, nil)
	case orchestrator.CodeTranscriptionFailed:
		return f.Text(lang, KeyNoTranscription, nil)
	case orchestrator.CodeTranslationFailed:
		return f.Text(lang, KeyTranslationFailed, Args{"language": f.LanguageName(oe.Language, lang)})
	default:
		return f.Text(lang, KeyProcessingError, nil)
	}
}

// LimitReached renders the quota notice with the reset time
func (f *Formatter) LimitReached(lang string, used, limit int, resetAt time.Time) string {
	return f.Text(lang, KeyLimitReached, Args{
		"used":  strconv.Itoa(used),
		"limit": strconv.Itoa(limit),
		"reset": f.FormatTime(resetAt),
	})
}

func (f *Formatter) FormatTime(t time.Time) string {
	return t.Format(f.timeLayout)
}

// RecentJobs lists finished jobs newest first, or returns "" when there
// are none
func (f *Formatter) RecentJobs(history []*database.RequestHistory, lang string) string {
	if len(history) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString(f.Text(lang, KeyRecentJobs, nil))
	for _, h := range history {
		b.WriteString("\n")
		b.WriteString(statusIcon(h.Status))
		b.WriteString(" ")
		b.WriteString(f.FormatTime(h.CreatedAt))
		b.WriteString(" · ")
		b.WriteString(h.FileName)
	}
	return b.String()
}

func statusIcon(status string) string {
	switch status {
	case consts.JobStatusSuccess:
		return "✅"
	case consts.JobStatusFailed:
		return "❌"
	case consts.JobStatusDropped:
		return "⏹"
	default:
		return "🚫"
	}
}

// MaxFileArgs is the common {max_size} argument
func (f *Formatter) MaxFileArgs() Args {
	return Args{"max_size": strconv.Itoa(f.maxFileMB)}
}

// Chunk splits text into pieces of at most max runes, preferring to break
// at a newline, then at a space.
func Chunk(text string, max int) []string {
	if max <= 0 {
		max = consts.MaxMessageLength
	}
	if utf8.RuneCountInString(text) <= max {
		if text == "" {
			return nil
		}
		return []string{text}
	}

	var chunks []string
	runes := []rune(text)
	for len(runes) > 0 {
		if len(runes) <= max {
			chunks = append(chunks, string(runes))
			break
		}

		cut := max
		if i := lastIndex(runes[:max], '\n'); i >= max/2 {
			cut = i + 1
		} else if i := lastIndex(runes[:max], ' '); i >= max/2 {
			cut = i + 1
		}

		chunk := strings.TrimRightFunc(string(runes[:cut]), unicode.IsSpace)
		if chunk != "" {
			chunks = append(chunks, chunk)
		}
		runes = runes[cut:]
	}
	return chunks
}

func lastIndex(runes []rune, r rune) int {
	for i := len(runes) - 1; i >= 0; i-- {
		if runes[i] == r {
			return i
		}
	}
	return -1
}

func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}
