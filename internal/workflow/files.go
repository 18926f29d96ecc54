package workflow

import (
	"context"

	"github.com/transcribot/transcribot/internal/logger"
	"github.com/transcribot/transcribot/internal/notify"
	"github.com/transcribot/transcribot/internal/session"
)

// HandleFile handles an uploaded audio or video file. A file sent while
// idle starts a new job implicitly.
func (e *Engine) HandleFile(ctx context.Context, ev FileEvent) error {
	unlock := e.sessions.Lock(ev.ChatID)
	defer unlock()
	defer e.trackSessions()

	lang := e.lang(e.profile(ctx, ev.Sender))

	s := e.sessions.Get(ev.ChatID)
	switch s.State {
	case session.Processing:
		return e.send(ctx, ev.ChatID, e.fmt.Text(lang, notify.KeyBusy, nil), nil)
	case session.AwaitingFile:
	case session.AwaitingLanguageChoice:
		// A bad replacement must not discard the pending file and targets.
		if _, err := e.runner.Validate(ev.FileName, ev.MIMEType, ev.Size); err != nil {
			return e.rejectUpload(ctx, ev, lang, err)
		}
		fallthrough
	default:
		if ok, text := e.admissible(ctx, ev.ChatID, lang); !ok {
			e.sessions.Cancel(ev.ChatID)
			return e.send(ctx, ev.ChatID, text, nil)
		}
		if _, err := e.sessions.Begin(ev.ChatID); err != nil {
			return e.send(ctx, ev.ChatID, e.fmt.FormatError(err, lang), nil)
		}
	}

	kind, err := e.runner.Validate(ev.FileName, ev.MIMEType, ev.Size)
	if err != nil {
		return e.rejectUpload(ctx, ev, lang, err)
	}

	s, err = e.sessions.AttachFile(ev.ChatID, session.File{
		ID:       ev.FileID,
		Name:     ev.FileName,
		MIMEType: ev.MIMEType,
		Size:     ev.Size,
		Kind:     kind,
	})
	if err != nil {
		return e.send(ctx, ev.ChatID, e.fmt.FormatError(err, lang), nil)
	}

	text := e.fmt.Text(lang, notify.KeyChooseTargets, notify.Args{"file": ev.FileName})
	messageID, err := e.msg.Send(ctx, ev.ChatID, text, e.targetKeyboard(s, lang))
	if err != nil {
		return err
	}
	e.sessions.SetMessageID(ev.ChatID, messageID)
	return nil
}

func (e *Engine) rejectUpload(ctx context.Context, ev FileEvent, lang string, err error) error {
	logger.Info("Rejected upload", map[string]interface{}{
		"chat_id":   ev.ChatID,
		"file_name": ev.FileName,
		"mime_type": ev.MIMEType,
		"size":      ev.Size,
		"reason":    err.Error(),
	})
	return e.send(ctx, ev.ChatID, e.fmt.FormatError(err, lang), nil)
}
