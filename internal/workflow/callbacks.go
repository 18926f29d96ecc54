package workflow

import (
	"context"
	"errors"
	"strings"

	"github.com/transcribot/transcribot/internal/consts"
	"github.com/transcribot/transcribot/internal/database"
	"github.com/transcribot/transcribot/internal/logger"
	"github.com/transcribot/transcribot/internal/notify"
	"github.com/transcribot/transcribot/internal/orchestrator"
	"github.com/transcribot/transcribot/internal/session"
)

// HandleCallback handles an inline keyboard button press. The callback is
// always answered, with a short notice when the press was not applicable.
func (e *Engine) HandleCallback(ctx context.Context, ev CallbackEvent) error {
	unlock := e.sessions.Lock(ev.ChatID)
	defer unlock()
	defer e.trackSessions()

	u := e.profile(ctx, ev.Sender)
	lang := e.lang(u)

	logger.Debug("Handling callback", map[string]interface{}{
		"chat_id": ev.ChatID,
		"data":    ev.Data,
	})

	var notice string
	var err error

	switch {
	case strings.HasPrefix(ev.Data, consts.CallbackTargetPrefix):
		notice, err = e.toggleTarget(ctx, ev, strings.TrimPrefix(ev.Data, consts.CallbackTargetPrefix), lang)
	case strings.HasPrefix(ev.Data, consts.CallbackUILangPrefix):
		notice, err = e.selectLanguage(ctx, ev, strings.TrimPrefix(ev.Data, consts.CallbackUILangPrefix))
	case ev.Data == consts.CallbackSubmit:
		notice, err = e.submit(ctx, ev, lang, false)
	case ev.Data == consts.CallbackTranscriptOnly:
		notice, err = e.submit(ctx, ev, lang, true)
	case ev.Data == consts.CallbackCancel:
		err = e.cancelSession(ctx, ev.ChatID, ev.MessageID, lang)
	case ev.Data == consts.CallbackSubscribe:
		err = e.handleSubscribe(ctx, ev.Sender, u, lang)
	default:
		logger.Warn("Unknown callback data", map[string]interface{}{
			"chat_id": ev.ChatID,
			"data":    ev.Data,
		})
	}

	if answerErr := e.msg.AnswerCallback(ctx, ev.CallbackID, notice); answerErr != nil {
		logger.Debug("Failed to answer callback", map[string]interface{}{
			"callback_id": ev.CallbackID,
			"error":       answerErr.Error(),
		})
	}
	return err
}

// stateNotice explains why a keyboard press no longer applies
func (e *Engine) stateNotice(err error, lang string) string {
	if errors.Is(err, session.ErrBusy) {
		return e.fmt.Text(lang, notify.KeyBusy, nil)
	}
	return e.fmt.Text(lang, notify.KeySendFileFirst, nil)
}

func (e *Engine) toggleTarget(ctx context.Context, ev CallbackEvent, code, lang string) (string, error) {
	if !isTargetLanguage(code) {
		return "", nil
	}

	s, err := e.sessions.ToggleTarget(ev.ChatID, code)
	if err != nil {
		return e.stateNotice(err, lang), nil
	}

	text := e.fmt.Text(lang, notify.KeyChooseTargets, notify.Args{"file": s.File.Name})
	return "", e.msg.Edit(ctx, ev.ChatID, ev.MessageID, text, e.targetKeyboard(s, lang))
}

func (e *Engine) selectLanguage(ctx context.Context, ev CallbackEvent, code string) (string, error) {
	if e.fmt.Match(code) != code {
		return "", nil
	}

	if err := e.users.UpdateUserLanguage(ctx, ev.ChatID, code); err != nil {
		logger.Error("Failed to update interface language", map[string]interface{}{
			"chat_id":  ev.ChatID,
			"language": code,
			"error":    err.Error(),
		})
		return e.fmt.Text(code, notify.KeyProcessingError, nil), nil
	}
	e.InvalidateUser(ev.ChatID)

	text := e.fmt.Text(code, notify.KeyLanguageSelected, notify.Args{"language": e.fmt.NativeName(code)})
	return "", e.msg.Edit(ctx, ev.ChatID, ev.MessageID, text, nil)
}

// submit charges the quota and starts the job. transcriptOnly ignores the
// selected targets.
func (e *Engine) submit(ctx context.Context, ev CallbackEvent, lang string, transcriptOnly bool) (string, error) {
	s := e.sessions.Get(ev.ChatID)
	switch s.State {
	case session.AwaitingLanguageChoice:
	case session.Processing:
		return e.fmt.Text(lang, notify.KeyBusy, nil), nil
	default:
		return e.fmt.Text(lang, notify.KeySendFileFirst, nil), nil
	}

	decision, err := e.quota.CheckAndReserve(ctx, ev.ChatID, e.now())
	if err != nil {
		logger.Error("Quota check failed", map[string]interface{}{
			"chat_id": ev.ChatID,
			"error":   err.Error(),
		})
		_, err = e.replace(ctx, ev.ChatID, ev.MessageID, e.fmt.Text(lang, notify.KeyProcessingError, nil), nil)
		return "", err
	}
	e.metrics.RecordQuotaDecision(decision.Allowed)

	if !decision.Allowed {
		e.sessions.Cancel(ev.ChatID)
		e.recordHistory(ctx, s, nil, decision.Err(), consts.JobStatusRejected, 0)
		e.metrics.RecordJob(consts.JobStatusRejected, 0)

		logger.Info("Job rejected by daily limit", map[string]interface{}{
			"chat_id": ev.ChatID,
			"used":    decision.Used,
			"limit":   decision.Limit,
		})
		_, err = e.replace(ctx, ev.ChatID, ev.MessageID, e.fmt.FormatError(decision.Err(), lang), nil)
		return "", err
	}

	s, err = e.sessions.Submit(ev.ChatID)
	if err != nil {
		return e.stateNotice(err, lang), nil
	}

	targets := s.Targets
	if transcriptOnly {
		targets = nil
	}

	logger.Info("Job submitted", map[string]interface{}{
		"chat_id":    ev.ChatID,
		"job_id":     s.JobID,
		"file_name":  s.File.Name,
		"media_kind": s.File.Kind,
		"targets":    strings.Join(targets, ","),
		"subscribed": decision.Subscribed,
		"used_today": decision.Used,
	})

	progressID, err := e.replace(ctx, ev.ChatID, ev.MessageID, e.fmt.Text(lang, notify.KeyProcessing, nil), nil)
	if err != nil {
		logger.Warn("Failed to show progress message", map[string]interface{}{
			"chat_id": ev.ChatID,
			"error":   err.Error(),
		})
	}

	e.wg.Add(1)
	go e.runJob(s, targets, lang, progressID)
	return "", nil
}

func (e *Engine) recordHistory(ctx context.Context, s session.Session, res *orchestrator.Result, jobErr error, status string, durationMs int64) {
	h := &database.RequestHistory{
		UserID:     s.UserID,
		Status:     status,
		DurationMs: durationMs,
	}
	if s.File != nil {
		h.FileName = s.File.Name
		h.MediaKind = s.File.Kind
	}
	h.TargetLanguages = strings.Join(s.Targets, ",")
	if res != nil {
		h.SourceLanguage = res.SourceLanguage
		h.TranscriptChars = len([]rune(res.Transcript))
	}
	if jobErr != nil {
		h.ErrorCode = string(orchestrator.Classify(jobErr).Code)
	}

	if err := e.users.AddRequestHistory(ctx, h); err != nil {
		logger.Warn("Failed to record request history", map[string]interface{}{
			"chat_id": s.UserID,
			"status":  status,
			"error":   err.Error(),
		})
	}
}
