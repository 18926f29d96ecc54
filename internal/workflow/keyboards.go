package workflow

import (
	"github.com/transcribot/transcribot/internal/consts"
	"github.com/transcribot/transcribot/internal/notify"
	"github.com/transcribot/transcribot/internal/session"
)

// targetKeyboard lists the translation targets, marking the selected ones,
// followed by the submit and cancel row.
func (e *Engine) targetKeyboard(s session.Session, lang string) Keyboard {
	var kb Keyboard
	var row []Button

	for _, code := range consts.TargetLanguages {
		label := consts.ButtonPrefix
		if s.HasTarget(code) {
			label = consts.ButtonSelected
		}
		row = append(row, Button{
			Text: label + e.fmt.LanguageName(code, lang),
			Data: consts.CallbackTargetPrefix + code,
		})
		if len(row) == consts.KeyboardColumns {
			kb = append(kb, row)
			row = nil
		}
	}
	if len(row) > 0 {
		kb = append(kb, row)
	}

	return append(kb,
		[]Button{
			{Text: e.fmt.Text(lang, notify.KeyButtonSubmit, nil), Data: consts.CallbackSubmit},
			{Text: e.fmt.Text(lang, notify.KeyButtonTranscriptOnly, nil), Data: consts.CallbackTranscriptOnly},
		},
		[]Button{
			{Text: e.fmt.Text(lang, notify.KeyButtonCancel, nil), Data: consts.CallbackCancel},
		},
	)
}

// languageKeyboard offers the interface languages by their native names
func (e *Engine) languageKeyboard(current string) Keyboard {
	var kb Keyboard
	for _, code := range e.fmt.Supported() {
		label := consts.ButtonPrefix
		if code == current {
			label = consts.ButtonSelected
		}
		kb = append(kb, []Button{{
			Text: label + e.fmt.NativeName(code),
			Data: consts.CallbackUILangPrefix + code,
		}})
	}
	return kb
}

func isTargetLanguage(code string) bool {
	for _, t := range consts.TargetLanguages {
		if t == code {
			return true
		}
	}
	return false
}
