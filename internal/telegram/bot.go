package telegram

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/transcribot/transcribot/internal/cache"
	"github.com/transcribot/transcribot/internal/logger"
	"github.com/transcribot/transcribot/internal/metrics"
	"github.com/transcribot/transcribot/internal/workflow"
	"golang.org/x/time/rate"
)

// botAPI is the part of tgbotapi.BotAPI the bot uses
type botAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetFile(config tgbotapi.FileConfig) (tgbotapi.File, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// Handler reacts to normalized Telegram events
type Handler interface {
	HandleCommand(ctx context.Context, ev workflow.CommandEvent) error
	HandleFile(ctx context.Context, ev workflow.FileEvent) error
	HandleText(ctx context.Context, ev workflow.TextEvent) error
	HandleCallback(ctx context.Context, ev workflow.CallbackEvent) error
	SubscriptionChanged(ctx context.Context, userID int64, active bool, until time.Time) error
}

// Options tune a Bot. Zero values fall back to defaults.
type Options struct {
	MaxFileSize      int64
	GlobalRate       rate.Limit
	GlobalBurst      int
	UserRate         rate.Limit
	UserBurst        int
	WorkerPool       WorkerPoolConfig
	DownloadTimeout  time.Duration
	Metrics          *metrics.Collector
	PollTimeoutSecs  int
	DedupCallbackTTL time.Duration
}

// DefaultOptions stay below Telegram's documented limits of 30 messages per
// second overall and about one per second per chat
func DefaultOptions() Options {
	return Options{
		GlobalRate:       rate.Limit(25),
		GlobalBurst:      25,
		UserRate:         rate.Limit(1),
		UserBurst:        3,
		WorkerPool:       DefaultWorkerPoolConfig(),
		DownloadTimeout:  2 * time.Minute,
		PollTimeoutSecs:  60,
		DedupCallbackTTL: 30 * time.Second,
	}
}

type Bot struct {
	api      botAPI
	token    string
	username string
	handler  Handler
	metrics  *metrics.Collector
	opts     Options

	// Rate limiting
	globalLimiter  *rate.Limiter
	userLimiters   *cache.Cache[int64, *rate.Limiter]
	userLimitersMu sync.Mutex

	// Callback deduplication
	processedCallbacks *cache.Cache[string, struct{}]

	workerPool *WorkerPool
	files      *downloader
}

// NewBot connects to the Telegram Bot API with token
func NewBot(token string, opts Options) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create Telegram bot: %w", err)
	}
	b := newBot(api, token, opts)
	b.username = api.Self.UserName
	return b, nil
}

func newBot(api botAPI, token string, opts Options) *Bot {
	def := DefaultOptions()
	if opts.GlobalRate == 0 {
		opts.GlobalRate, opts.GlobalBurst = def.GlobalRate, def.GlobalBurst
	}
	if opts.UserRate == 0 {
		opts.UserRate, opts.UserBurst = def.UserRate, def.UserBurst
	}
	if opts.WorkerPool.Workers == 0 {
		opts.WorkerPool = def.WorkerPool
	}
	if opts.DownloadTimeout == 0 {
		opts.DownloadTimeout = def.DownloadTimeout
	}
	if opts.PollTimeoutSecs == 0 {
		opts.PollTimeoutSecs = def.PollTimeoutSecs
	}
	if opts.DedupCallbackTTL == 0 {
		opts.DedupCallbackTTL = def.DedupCallbackTTL
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.NewCollector(nil)
	}

	b := &Bot{
		api:                api,
		token:              token,
		metrics:            opts.Metrics,
		opts:               opts,
		globalLimiter:      rate.NewLimiter(opts.GlobalRate, opts.GlobalBurst),
		userLimiters:       cache.NewWithConfig[int64, *rate.Limiter](10000, 10*time.Minute, time.Minute),
		processedCallbacks: cache.NewWithConfig[string, struct{}](10000, opts.DedupCallbackTTL, opts.DedupCallbackTTL),
	}
	b.files = newDownloader(api, token, opts.MaxFileSize, opts.DownloadTimeout)
	return b
}

// SetHandler must be called before Start
func (b *Bot) SetHandler(h Handler) {
	b.handler = h
}

// Fetch downloads an uploaded file
func (b *Bot) Fetch(ctx context.Context, fileID string) ([]byte, error) {
	return b.files.Fetch(ctx, fileID)
}

// Start long-polls Telegram until ctx is cancelled or Stop is called
func (b *Bot) Start(ctx context.Context) error {
	if b.handler == nil {
		return fmt.Errorf("no update handler set")
	}

	logger.Info("Bot authorized and starting", map[string]interface{}{
		"username":          b.username,
		"global_rate_limit": fmt.Sprintf("%v msg/sec", b.opts.GlobalRate),
		"user_rate_limit":   fmt.Sprintf("%v msg/user/sec", b.opts.UserRate),
	})

	b.workerPool = NewWorkerPool(b.handleUpdate, b.opts.WorkerPool, b.metrics)
	if err := b.workerPool.Start(); err != nil {
		return fmt.Errorf("failed to start worker pool: %w", err)
	}

	u := tgbotapi.NewUpdate(0)
	u.Timeout = b.opts.PollTimeoutSecs
	u.AllowedUpdates = []string{"message", "callback_query"}

	updates := b.api.GetUpdatesChan(u)
	for {
		select {
		case <-ctx.Done():
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			b.dispatch(update)
		}
	}
}

// dispatch hands an update to the worker owning its chat
func (b *Bot) dispatch(update tgbotapi.Update) {
	logger.Debug("Received update", map[string]interface{}{
		"update_id":    update.UpdateID,
		"has_message":  update.Message != nil,
		"has_callback": update.CallbackQuery != nil,
	})

	chatID := updateChatID(update)
	if chatID == 0 {
		logger.Debug("Update has no chat, skipping", nil)
		return
	}

	if err := b.workerPool.Submit(chatID, update); err != nil {
		logger.Error("Failed to submit update to worker pool", map[string]interface{}{
			"error":     err.Error(),
			"chat_id":   chatID,
			"update_id": update.UpdateID,
		})
	}
}

// Stop stops polling and drains the worker pool
func (b *Bot) Stop() error {
	logger.InfoMsg("Stopping bot...")
	b.api.StopReceivingUpdates()

	if b.workerPool != nil {
		if err := b.workerPool.Stop(); err != nil {
			logger.Error("Error stopping worker pool", map[string]interface{}{
				"error": err.Error(),
			})
			return err
		}
	}

	b.userLimiters.Close()
	b.processedCallbacks.Close()
	logger.InfoMsg("Bot stopped successfully")
	return nil
}

// GetWorkerPoolStats returns current worker pool statistics
func (b *Bot) GetWorkerPoolStats() map[string]interface{} {
	if b.workerPool == nil {
		return map[string]interface{}{
			"worker_pool": "not initialized",
		}
	}
	return b.workerPool.GetStats()
}

// handleUpdate runs on the worker owning the update's chat
func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) error {
	if update.CallbackQuery != nil {
		return b.handleCallbackQuery(ctx, update.CallbackQuery)
	}
	if update.Message != nil {
		return b.handleMessage(ctx, update.Message)
	}
	return nil
}

func (b *Bot) handleMessage(ctx context.Context, message *tgbotapi.Message) error {
	if message.Chat == nil || !message.Chat.IsPrivate() {
		logger.Debug("Ignoring message outside a private chat", nil)
		return nil
	}

	sender := senderFrom(message.Chat.ID, message.From)

	if message.IsCommand() {
		return b.handler.HandleCommand(ctx, workflow.CommandEvent{
			Sender:  sender,
			Command: "/" + message.Command(),
			Args:    message.CommandArguments(),
		})
	}

	if ev, ok := fileEventFrom(message); ok {
		ev.Sender = sender
		return b.handler.HandleFile(ctx, ev)
	}

	if message.Text == "" {
		logger.Debug("Ignoring message without text or media", map[string]interface{}{
			"chat_id": message.Chat.ID,
		})
		return nil
	}

	return b.handler.HandleText(ctx, workflow.TextEvent{Sender: sender, Text: message.Text})
}

func (b *Bot) handleCallbackQuery(ctx context.Context, callback *tgbotapi.CallbackQuery) error {
	if callback.Message == nil || callback.Message.Chat == nil {
		return nil
	}

	if b.isDuplicateCallback(callback.ID) {
		logger.Debug("Duplicate callback ignored", map[string]interface{}{
			"callback_id": callback.ID,
		})
		return nil
	}
	b.markCallbackProcessed(callback.ID)

	return b.handler.HandleCallback(ctx, workflow.CallbackEvent{
		Sender:     senderFrom(callback.Message.Chat.ID, callback.From),
		CallbackID: callback.ID,
		MessageID:  callback.Message.MessageID,
		Data:       callback.Data,
	})
}

func senderFrom(chatID int64, from *tgbotapi.User) workflow.Sender {
	s := workflow.Sender{ChatID: chatID}
	if from != nil {
		s.Username = from.UserName
		s.LanguageCode = from.LanguageCode
	}
	return s
}

func updateChatID(update tgbotapi.Update) int64 {
	switch {
	case update.CallbackQuery != nil && update.CallbackQuery.Message != nil && update.CallbackQuery.Message.Chat != nil:
		return update.CallbackQuery.Message.Chat.ID
	case update.Message != nil && update.Message.Chat != nil:
		return update.Message.Chat.ID
	}
	return 0
}

// Rate limiting methods

// getUserRateLimiter gets or creates a rate limiter for a specific chat
func (b *Bot) getUserRateLimiter(chatID int64) *rate.Limiter {
	b.userLimitersMu.Lock()
	defer b.userLimitersMu.Unlock()

	limiter, ok := b.userLimiters.Get(chatID)
	if !ok {
		limiter = rate.NewLimiter(b.opts.UserRate, b.opts.UserBurst)
	}
	// Re-set on every use so active chats keep their limiter
	b.userLimiters.Set(chatID, limiter)
	return limiter
}

// wait blocks on limiter, counting the times it had to
func (b *Bot) wait(ctx context.Context, limiter *rate.Limiter, name string) error {
	if limiter.Allow() {
		return nil
	}
	b.metrics.RecordRateLimited(name)
	if err := limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%s rate limiter error: %w", name, err)
	}
	return nil
}

// rateLimitedSend sends a message with rate limiting
func (b *Bot) rateLimitedSend(ctx context.Context, chatID int64, msg tgbotapi.Chattable) (tgbotapi.Message, error) {
	if err := b.wait(ctx, b.globalLimiter, "global"); err != nil {
		return tgbotapi.Message{}, err
	}
	if err := b.wait(ctx, b.getUserRateLimiter(chatID), "user"); err != nil {
		return tgbotapi.Message{}, err
	}

	logger.Debug("Sending rate-limited message", map[string]interface{}{
		"chat_id": chatID,
	})
	return b.api.Send(msg)
}

// rateLimitedRequest sends a request that returns no message. Callback
// answers are not tied to a chat and only use the global limiter.
func (b *Bot) rateLimitedRequest(ctx context.Context, req tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	if err := b.wait(ctx, b.globalLimiter, "global"); err != nil {
		return nil, err
	}
	return b.api.Request(req)
}

// isDuplicateCallback checks if a callback has already been processed recently
func (b *Bot) isDuplicateCallback(callbackID string) bool {
	_, exists := b.processedCallbacks.Get(callbackID)
	return exists
}

// markCallbackProcessed marks a callback as processed until the dedup TTL passes
func (b *Bot) markCallbackProcessed(callbackID string) {
	b.processedCallbacks.Set(callbackID, struct{}{})
}

// isNotModified reports Telegram's rejection of an edit that changes nothing
func isNotModified(err error) bool {
	return err != nil && strings.Contains(err.Error(), "message is not modified")
}
