package workflow

import (
	"context"
	"strconv"
	"strings"

	"github.com/transcribot/transcribot/internal/consts"
	"github.com/transcribot/transcribot/internal/database"
	"github.com/transcribot/transcribot/internal/logger"
	"github.com/transcribot/transcribot/internal/notify"
	"github.com/transcribot/transcribot/internal/session"
)

// HandleCommand handles a slash command
func (e *Engine) HandleCommand(ctx context.Context, ev CommandEvent) error {
	unlock := e.sessions.Lock(ev.ChatID)
	defer unlock()
	defer e.trackSessions()

	command := strings.ToLower(ev.Command)
	if i := strings.Index(command, "@"); i > 0 {
		command = command[:i]
	}

	u := e.profile(ctx, ev.Sender)
	lang := e.lang(u)

	logger.Debug("Handling command", map[string]interface{}{
		"chat_id": ev.ChatID,
		"command": command,
	})

	switch command {
	case consts.CommandStart:
		e.metrics.RecordCommand("start")
		return e.handleStart(ctx, ev.ChatID, lang)
	case consts.CommandHelp:
		e.metrics.RecordCommand("help")
		return e.send(ctx, ev.ChatID, e.fmt.Text(lang, notify.KeyHelp, e.fmt.MaxFileArgs()), nil)
	case consts.CommandNew:
		e.metrics.RecordCommand("new")
		return e.handleNew(ctx, ev.ChatID, lang)
	case consts.CommandCancel:
		e.metrics.RecordCommand("cancel")
		return e.cancelSession(ctx, ev.ChatID, 0, lang)
	case consts.CommandLanguage:
		e.metrics.RecordCommand("language")
		return e.send(ctx, ev.ChatID, e.fmt.Text(lang, notify.KeyLanguagePrompt, nil), e.languageKeyboard(lang))
	case consts.CommandStatus:
		e.metrics.RecordCommand("status")
		return e.handleStatus(ctx, ev.ChatID, u, lang)
	case consts.CommandSubscribe:
		e.metrics.RecordCommand("subscribe")
		return e.handleSubscribe(ctx, ev.Sender, u, lang)
	default:
		e.metrics.RecordCommand("unknown")
		return e.send(ctx, ev.ChatID, e.fmt.Text(lang, notify.KeyUnknownCommand, nil), nil)
	}
}

// HandleText handles a plain message that is neither a command nor a file
func (e *Engine) HandleText(ctx context.Context, ev TextEvent) error {
	unlock := e.sessions.Lock(ev.ChatID)
	defer unlock()

	lang := e.lang(e.profile(ctx, ev.Sender))
	if e.sessions.Get(ev.ChatID).State == session.Processing {
		return e.send(ctx, ev.ChatID, e.fmt.Text(lang, notify.KeyBusy, nil), nil)
	}
	return e.send(ctx, ev.ChatID, e.fmt.Text(lang, notify.KeySendFileFirst, nil), nil)
}

func (e *Engine) handleStart(ctx context.Context, chatID int64, lang string) error {
	remaining, err := e.quota.Remaining(ctx, chatID, e.now())
	if err != nil {
		logger.Warn("Failed to read remaining requests", map[string]interface{}{
			"chat_id": chatID,
			"error":   err.Error(),
		})
		remaining = e.quota.Limit()
	}

	if remaining < 0 {
		return e.send(ctx, chatID, e.fmt.Text(lang, notify.KeyStartPremium, nil), nil)
	}
	return e.send(ctx, chatID, e.fmt.Text(lang, notify.KeyStart, notify.Args{"free_requests": strconv.Itoa(remaining)}), nil)
}

func (e *Engine) handleNew(ctx context.Context, chatID int64, lang string) error {
	if e.sessions.Get(chatID).State == session.Processing {
		return e.send(ctx, chatID, e.fmt.Text(lang, notify.KeyBusy, nil), nil)
	}

	if ok, text := e.admissible(ctx, chatID, lang); !ok {
		e.sessions.Cancel(chatID)
		return e.send(ctx, chatID, text, nil)
	}

	if _, err := e.sessions.Begin(chatID); err != nil {
		return e.send(ctx, chatID, e.fmt.FormatError(err, lang), nil)
	}
	return e.send(ctx, chatID, e.fmt.Text(lang, notify.KeySendFile, e.fmt.MaxFileArgs()), nil)
}

// admissible peeks at the quota so users over the limit are told before
// they upload anything. The authoritative check happens at submit.
func (e *Engine) admissible(ctx context.Context, chatID int64, lang string) (bool, string) {
	d, err := e.quota.Peek(ctx, chatID, e.now())
	if err != nil {
		logger.Warn("Quota peek failed", map[string]interface{}{
			"chat_id": chatID,
			"error":   err.Error(),
		})
		return true, ""
	}
	if d.Allowed {
		return true, ""
	}
	return false, e.fmt.LimitReached(lang, d.Used, d.Limit, d.ResetAt)
}

// cancelSession discards whatever the user was doing. messageID is the
// message the cancel button was pressed on, if any.
func (e *Engine) cancelSession(ctx context.Context, chatID int64, messageID int, lang string) error {
	s := e.sessions.Get(chatID)
	prev := e.sessions.Cancel(chatID)

	if prev == session.Idle {
		return e.send(ctx, chatID, e.fmt.Text(lang, notify.KeyNothingToCancel, nil), nil)
	}

	logger.Info("Session cancelled", map[string]interface{}{
		"chat_id": chatID,
		"state":   prev.String(),
		"job_id":  s.JobID,
	})

	if messageID == 0 && prev == session.AwaitingLanguageChoice {
		messageID = s.MessageID
	}
	_, err := e.replace(ctx, chatID, messageID, e.fmt.Text(lang, notify.KeyCancelled, nil), nil)
	return err
}

func (e *Engine) handleStatus(ctx context.Context, chatID int64, u *database.User, lang string) error {
	d, err := e.quota.Peek(ctx, chatID, e.now())
	if err != nil {
		logger.Error("Failed to read quota status", map[string]interface{}{
			"chat_id": chatID,
			"error":   err.Error(),
		})
		return e.send(ctx, chatID, e.fmt.Text(lang, notify.KeyProcessingError, nil), nil)
	}

	var text string
	if d.Subscribed {
		until := "∞"
		if u.SubscriptionUntil != nil {
			until = e.fmt.FormatTime(*u.SubscriptionUntil)
		}
		text = e.fmt.Text(lang, notify.KeyStatusPremium, notify.Args{
			"until": until,
			"used":  strconv.Itoa(d.Used),
		})
	} else {
		text = e.fmt.Text(lang, notify.KeyStatusFree, notify.Args{
			"used":  strconv.Itoa(d.Used),
			"limit": strconv.Itoa(d.Limit),
			"reset": e.fmt.FormatTime(d.ResetAt),
		})
	}

	history, err := e.users.GetRecentRequests(ctx, chatID, consts.RecentJobsShown)
	if err != nil {
		logger.Warn("Failed to read recent jobs", map[string]interface{}{
			"chat_id": chatID,
			"error":   err.Error(),
		})
	}
	if recent := e.fmt.RecentJobs(history, lang); recent != "" {
		text += "\n\n" + recent
	}

	return e.send(ctx, chatID, text, nil)
}

func (e *Engine) handleSubscribe(ctx context.Context, s Sender, u *database.User, lang string) error {
	if e.payments == nil {
		return e.send(ctx, s.ChatID, e.fmt.Text(lang, notify.KeySubscribeUnavailable, nil), nil)
	}

	if u.IsSubscribedAt(e.now()) {
		until := "∞"
		if u.SubscriptionUntil != nil {
			until = e.fmt.FormatTime(*u.SubscriptionUntil)
		}
		text := e.fmt.Text(lang, notify.KeyAlreadySubscribed, notify.Args{"until": until})

		var kb Keyboard
		if u.StripeCustomerID != "" {
			portal, err := e.payments.PortalURL(ctx, u.StripeCustomerID)
			if err != nil {
				logger.Warn("Failed to create billing portal link", map[string]interface{}{
					"chat_id": s.ChatID,
					"error":   err.Error(),
				})
			} else {
				kb = Keyboard{{{Text: e.fmt.Text(lang, notify.KeyButtonManage, nil), URL: portal}}}
			}
		}
		return e.send(ctx, s.ChatID, text, kb)
	}

	checkout, err := e.payments.CheckoutURL(ctx, s.ChatID, s.Username)
	if err != nil {
		logger.Error("Failed to create checkout session", map[string]interface{}{
			"chat_id": s.ChatID,
			"error":   err.Error(),
		})
		return e.send(ctx, s.ChatID, e.fmt.Text(lang, notify.KeySubscriptionFailed, nil), nil)
	}

	kb := Keyboard{{{Text: e.fmt.Text(lang, notify.KeyButtonSubscribe, nil), URL: checkout}}}
	return e.send(ctx, s.ChatID, e.fmt.Text(lang, notify.KeySubscribePrompt, nil), kb)
}
