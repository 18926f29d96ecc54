package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/transcribot/transcribot/internal/consts"
	"github.com/transcribot/transcribot/internal/logger"
	"github.com/transcribot/transcribot/internal/notify"
	"github.com/transcribot/transcribot/internal/orchestrator"
	"github.com/transcribot/transcribot/internal/session"
)

type fileSource struct {
	fetcher FileFetcher
	fileID  string
}

func (f fileSource) Fetch(ctx context.Context) ([]byte, error) {
	return f.fetcher.Fetch(ctx, f.fileID)
}

// runJob executes a submitted job and delivers the outcome unless the
// session moved on in the meantime.
func (e *Engine) runJob(s session.Session, targets []string, lang string, progressID int) {
	defer e.wg.Done()

	ctx := e.ctx
	chatID := s.UserID

	jobCtx, cancel := context.WithTimeout(e.ctx, e.jobTimeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			logger.Error("Panic while running job", map[string]interface{}{
				"chat_id": chatID,
				"job_id":  s.JobID,
				"panic":   fmt.Sprintf("%v", r),
			})
			if e.sessions.Complete(chatID, s.JobID) {
				e.deliver(ctx, chatID, progressID, e.fmt.Text(lang, notify.KeyProcessingError, nil))
			}
			e.metrics.RecordJob(consts.JobStatusFailed, 0)
		}
	}()

	if err := e.jobs.Acquire(jobCtx, 1); err != nil {
		if e.sessions.Complete(chatID, s.JobID) && errors.Is(err, context.DeadlineExceeded) {
			logger.Warn("Job timed out waiting for a slot", map[string]interface{}{
				"chat_id": chatID,
				"job_id":  s.JobID,
			})
			e.metrics.RecordJob(consts.JobStatusFailed, 0)
			e.deliver(ctx, chatID, progressID, e.fmt.Text(lang, notify.KeyProcessingError, nil))
		}
		return
	}
	defer e.jobs.Release(1)

	start := e.now()
	job := &orchestrator.Job{
		ID:       s.JobID,
		UserID:   chatID,
		FileName: s.File.Name,
		MIMEType: s.File.MIMEType,
		Size:     s.File.Size,
		Source:   fileSource{fetcher: e.files, fileID: s.File.ID},
		Targets:  targets,
		OnStage: func(stage orchestrator.Stage, target string) {
			e.progress(ctx, chatID, s.JobID, progressID, lang, stage, target)
		},
	}

	res, err := e.runner.RunJob(jobCtx, job)
	elapsed := e.now().Sub(start)

	s.Targets = targets
	if !e.sessions.Complete(chatID, s.JobID) {
		e.metrics.RecordDroppedResult()
		e.recordHistory(ctx, s, res, err, consts.JobStatusDropped, elapsed.Milliseconds())
		logger.Info("Dropped result of a cancelled job", map[string]interface{}{
			"chat_id": chatID,
			"job_id":  s.JobID,
		})
		return
	}
	e.trackSessions()

	status := consts.JobStatusSuccess
	if err != nil {
		status = consts.JobStatusFailed
		oe := orchestrator.Classify(err)
		fields := map[string]interface{}{
			"chat_id": chatID,
			"job_id":  s.JobID,
			"kind":    oe.Kind.String(),
			"code":    string(oe.Code),
			"error":   err.Error(),
		}
		if oe.Kind == orchestrator.KindInternal {
			logger.Error("Job failed", fields)
		} else {
			logger.Warn("Job failed", fields)
		}
	}

	e.metrics.RecordJob(status, elapsed)
	e.recordHistory(ctx, s, res, err, status, elapsed.Milliseconds())

	e.deliver(ctx, chatID, progressID, e.fmt.Format(notify.Outcome{Result: res, Err: err}, lang))

	logger.Info("Job completed", map[string]interface{}{
		"chat_id":     chatID,
		"job_id":      s.JobID,
		"status":      status,
		"duration_ms": elapsed.Milliseconds(),
	})
}

// progress edits the progress message as the job moves through stages.
// A job that was cancelled or replaced leaves the message alone.
func (e *Engine) progress(ctx context.Context, chatID int64, jobID string, messageID int, lang string, stage orchestrator.Stage, target string) {
	if messageID == 0 || e.sessions.Get(chatID).JobID != jobID {
		return
	}

	var text string
	switch stage {
	case orchestrator.StageConverting:
		text = e.fmt.Text(lang, notify.KeyConverting, nil)
	case orchestrator.StageTranscribing:
		text = e.fmt.Text(lang, notify.KeyTranscribing, nil)
	case orchestrator.StageTranslating:
		text = e.fmt.Text(lang, notify.KeyTranslating, notify.Args{"language": e.fmt.LanguageName(target, lang)})
	default:
		return
	}

	if err := e.msg.Edit(ctx, chatID, messageID, text, nil); err != nil {
		logger.Debug("Failed to update progress", map[string]interface{}{
			"chat_id": chatID,
			"error":   err.Error(),
		})
	}
}

// deliver puts the first chunk into the progress message and sends the rest
func (e *Engine) deliver(ctx context.Context, chatID int64, progressID int, text string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Minute)
	defer cancel()

	for i, chunk := range notify.Chunk(text, consts.MaxMessageLength) {
		var err error
		if i == 0 {
			_, err = e.replace(ctx, chatID, progressID, chunk, nil)
		} else {
			err = e.send(ctx, chatID, chunk, nil)
		}
		if err != nil {
			logger.Error("Failed to deliver result", map[string]interface{}{
				"chat_id": chatID,
				"chunk":   i,
				"error":   err.Error(),
			})
			return
		}
	}
}
