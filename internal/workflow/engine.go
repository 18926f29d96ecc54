package workflow

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/transcribot/transcribot/internal/cache"
	"github.com/transcribot/transcribot/internal/consts"
	"github.com/transcribot/transcribot/internal/database"
	"github.com/transcribot/transcribot/internal/logger"
	"github.com/transcribot/transcribot/internal/metrics"
	"github.com/transcribot/transcribot/internal/notify"
	"github.com/transcribot/transcribot/internal/orchestrator"
	"github.com/transcribot/transcribot/internal/quota"
	"github.com/transcribot/transcribot/internal/session"
	"golang.org/x/sync/semaphore"
	"golang.org/x/sync/singleflight"
)

// Button is one inline keyboard button. URL buttons open a link instead of
// sending callback data.
type Button struct {
	Text string
	Data string
	URL  string
}

type Keyboard [][]Button

// Messenger delivers text to a chat. It is implemented by the Telegram
// transport and must be safe for concurrent use.
type Messenger interface {
	Send(ctx context.Context, chatID int64, text string, kb Keyboard) (int, error)
	Edit(ctx context.Context, chatID int64, messageID int, text string, kb Keyboard) error
	AnswerCallback(ctx context.Context, callbackID, text string) error
}

// FileFetcher downloads an uploaded file by its transport id
type FileFetcher interface {
	Fetch(ctx context.Context, fileID string) ([]byte, error)
}

// Runner validates uploads and runs jobs
type Runner interface {
	Validate(name, mimeType string, size int64) (string, error)
	RunJob(ctx context.Context, job *orchestrator.Job) (*orchestrator.Result, error)
}

type UserStore interface {
	GetUser(ctx context.Context, userID int64) (*database.User, error)
	GetOrCreateUser(ctx context.Context, userID int64, username, language string) (*database.User, error)
	UpdateUserLanguage(ctx context.Context, userID int64, language string) error
	AddRequestHistory(ctx context.Context, h *database.RequestHistory) error
	GetRecentRequests(ctx context.Context, userID int64, limit int) ([]*database.RequestHistory, error)
}

// Payments creates hosted checkout and billing portal links
type Payments interface {
	CheckoutURL(ctx context.Context, userID int64, username string) (string, error)
	PortalURL(ctx context.Context, customerID string) (string, error)
}

// Sender identifies who an event came from. ChatID doubles as the user id.
type Sender struct {
	ChatID       int64
	Username     string
	LanguageCode string
}

type CommandEvent struct {
	Sender
	Command string
	Args    string
}

type FileEvent struct {
	Sender
	FileID   string
	FileName string
	MIMEType string
	Size     int64
}

type TextEvent struct {
	Sender
	Text string
}

type CallbackEvent struct {
	Sender
	CallbackID string
	MessageID  int
	Data       string
}

// Deps are the collaborators of an Engine. Payments is optional.
type Deps struct {
	Sessions          *session.Manager
	Quota             *quota.Tracker
	Runner            Runner
	Files             FileFetcher
	Users             UserStore
	Messenger         Messenger
	Formatter         *notify.Formatter
	Metrics           *metrics.Collector
	Payments          Payments
	MaxConcurrentJobs int
	// JobTimeout bounds one job including its wait for a free slot
	JobTimeout        time.Duration
}

// Engine handles inbound events. Each event type has one synchronous
// handler; a submitted job runs in its own goroutine so that /cancel and
// busy notices are answered while it is in flight.
type Engine struct {
	sessions *session.Manager
	quota    *quota.Tracker
	runner   Runner
	files    FileFetcher
	users    UserStore
	msg      Messenger
	fmt      *notify.Formatter
	metrics  *metrics.Collector
	payments Payments

	profiles   *cache.Cache[int64, *database.User]
	loads      singleflight.Group
	jobs       *semaphore.Weighted
	jobTimeout time.Duration
	wg         sync.WaitGroup
	now        func() time.Time

	ctx    context.Context
	cancel context.CancelFunc
}

func NewEngine(d Deps) *Engine {
	if d.MaxConcurrentJobs <= 0 {
		d.MaxConcurrentJobs = 1
	}
	if d.Metrics == nil {
		d.Metrics = metrics.NewCollector(nil)
	}
	if d.JobTimeout <= 0 {
		d.JobTimeout = consts.DefaultJobTimeout
	}

	ctx, cancel := context.WithCancel(context.Background())
	e := &Engine{
		sessions:   d.Sessions,
		quota:      d.Quota,
		runner:     d.Runner,
		files:      d.Files,
		users:      d.Users,
		msg:        d.Messenger,
		fmt:        d.Formatter,
		metrics:    d.Metrics,
		payments:   d.Payments,
		profiles:   cache.NewWithConfig[int64, *database.User](1000, 30*time.Minute, 5*time.Minute),
		jobs:       semaphore.NewWeighted(int64(d.MaxConcurrentJobs)),
		jobTimeout: d.JobTimeout,
		now:        time.Now,
		ctx:        ctx,
		cancel:     cancel,
	}

	d.Sessions.OnExpire(e.onSessionExpired)
	return e
}

// Wait blocks until every submitted job has finished
func (e *Engine) Wait() {
	e.wg.Wait()
}

// Shutdown waits for running jobs until ctx is done, then cancels them
func (e *Engine) Shutdown(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()

	var err error
	select {
	case <-done:
	case <-ctx.Done():
		err = ctx.Err()
		logger.Warn("Shutdown deadline reached, cancelling running jobs", nil)
	}

	e.cancel()
	<-done
	e.profiles.Close()
	return err
}

// InvalidateUser drops the cached profile so the next event reloads it
func (e *Engine) InvalidateUser(userID int64) {
	e.profiles.Delete(userID)
}

// profile returns the user's stored profile, creating it on first contact.
// Storage failures are logged and a transient profile is returned.
func (e *Engine) profile(ctx context.Context, s Sender) *database.User {
	if u, ok := e.profiles.Get(s.ChatID); ok {
		return u
	}

	v, err, _ := e.loads.Do(strconv.FormatInt(s.ChatID, 10), func() (interface{}, error) {
		u, err := e.users.GetOrCreateUser(ctx, s.ChatID, s.Username, e.fmt.Match(s.LanguageCode))
		if err != nil {
			return nil, err
		}
		e.profiles.Set(s.ChatID, u)
		return u, nil
	})
	if err != nil {
		logger.Warn("Failed to load user profile", map[string]interface{}{
			"chat_id": s.ChatID,
			"error":   err.Error(),
		})
		return &database.User{ID: s.ChatID, Username: s.Username, InterfaceLanguage: e.fmt.Match(s.LanguageCode)}
	}
	return v.(*database.User)
}

// lookup is profile for callers that only know the id
func (e *Engine) lookup(ctx context.Context, userID int64) *database.User {
	if u, ok := e.profiles.Get(userID); ok {
		return u
	}
	u, err := e.users.GetUser(ctx, userID)
	if err != nil || u == nil {
		return &database.User{ID: userID, InterfaceLanguage: consts.DefaultLanguage}
	}
	e.profiles.Set(userID, u)
	return u
}

func (e *Engine) lang(u *database.User) string {
	return e.fmt.Match(u.InterfaceLanguage)
}

func (e *Engine) send(ctx context.Context, chatID int64, text string, kb Keyboard) error {
	_, err := e.msg.Send(ctx, chatID, text, kb)
	return err
}

// replace edits messageID when there is one and falls back to a new message
func (e *Engine) replace(ctx context.Context, chatID int64, messageID int, text string, kb Keyboard) (int, error) {
	if messageID != 0 {
		err := e.msg.Edit(ctx, chatID, messageID, text, kb)
		if err == nil {
			return messageID, nil
		}
		logger.Debug("Edit failed, sending a new message", map[string]interface{}{
			"chat_id":    chatID,
			"message_id": messageID,
			"error":      err.Error(),
		})
	}
	return e.msg.Send(ctx, chatID, text, kb)
}

func (e *Engine) trackSessions() {
	e.metrics.SetActiveSessions(e.sessions.Count())
}

// onSessionExpired tells the user their pending job was discarded
func (e *Engine) onSessionExpired(s session.Session) {
	e.metrics.RecordSessionExpired()
	e.trackSessions()

	ctx, cancel := context.WithTimeout(e.ctx, 30*time.Second)
	defer cancel()

	u := e.lookup(ctx, s.UserID)
	text := e.fmt.Text(e.lang(u), notify.KeySessionExpired, nil)
	if _, err := e.replace(ctx, s.UserID, s.MessageID, text, nil); err != nil {
		logger.Warn("Failed to send session expiry notice", map[string]interface{}{
			"chat_id": s.UserID,
			"error":   err.Error(),
		})
	}
}

// SubscriptionChanged refreshes the cached profile and tells the user
func (e *Engine) SubscriptionChanged(ctx context.Context, userID int64, active bool, until time.Time) error {
	e.InvalidateUser(userID)
	u := e.lookup(ctx, userID)
	lang := e.lang(u)

	text := e.fmt.Text(lang, notify.KeySubscriptionCancelled, nil)
	if active {
		text = e.fmt.Text(lang, notify.KeySubscriptionSuccessful, notify.Args{"until": e.fmt.FormatTime(until)})
	}
	return e.send(ctx, userID, text, nil)
}
