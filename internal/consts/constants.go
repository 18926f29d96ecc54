package consts

import "time"

// Commands
const (
	CommandStart     = "/start"
	CommandHelp      = "/help"
	CommandNew       = "/new"
	CommandCancel    = "/cancel"
	CommandLanguage  = "/language"
	CommandStatus    = "/status"
	CommandSubscribe = "/subscribe"
)

// Callback data prefixes and literals
const (
	CallbackTargetPrefix   = "tgt_"
	CallbackUILangPrefix   = "uilang_"
	CallbackSubmit         = "submit"
	CallbackCancel         = "cancel"
	CallbackSubscribe      = "subscribe"
	CallbackTranscriptOnly = "submit_plain"
)

// Button Labels with Emojis
const (
	ButtonSelected = "✅ "
	ButtonPrefix   = "▫️ "
)

// Media kinds
const (
	MediaKindAudio = "audio"
	MediaKindVideo = "video"
)

// Audio container extensions accepted for transcription as-is
var AudioExtensions = map[string]bool{
	".mp3":  true,
	".wav":  true,
	".m4a":  true,
	".ogg":  true,
	".oga":  true,
	".opus": true,
	".flac": true,
	".aac":  true,
}

// Audio containers the transcription API does not take; they are
// re-encoded to MP3 like a video soundtrack
var TranscodeExtensions = map[string]bool{
	".opus": true,
	".aac":  true,
}

// Video container extensions that need audio extraction first
var VideoExtensions = map[string]bool{
	".mp4":  true,
	".mov":  true,
	".avi":  true,
	".mkv":  true,
	".webm": true,
}

// MIME types used when Telegram gives no usable file name
var MIMEExtensions = map[string]string{
	"audio/mpeg":       ".mp3",
	"audio/mp3":        ".mp3",
	"audio/wav":        ".wav",
	"audio/x-wav":      ".wav",
	"audio/mp4":        ".m4a",
	"audio/x-m4a":      ".m4a",
	"audio/ogg":        ".ogg",
	"audio/opus":       ".opus",
	"audio/flac":       ".flac",
	"audio/x-flac":     ".flac",
	"audio/aac":        ".aac",
	"video/mp4":        ".mp4",
	"video/quicktime":  ".mov",
	"video/x-msvideo":  ".avi",
	"video/x-matroska": ".mkv",
	"video/webm":       ".webm",
}

// Target languages offered for translation, in keyboard order
var TargetLanguages = []string{"en", "ru", "es", "fr", "de", "it", "pt", "zh", "ja", "ko", "ar", "hi"}

// Default Values
const (
	DefaultLanguage      = "en"
	DefaultDailyFree     = 1
	DefaultMaxFileSizeMB = 100
	SubscriptionDays     = 30
	DefaultJobTimeout    = 10 * time.Minute
)

// Limits and Thresholds
const (
	MaxMessageLength = 4096
	KeyboardColumns  = 3
	RecentJobsShown  = 5
)

// Time Formats
const (
	TimeFormatDisplay = "2006-01-02 15:04"
)

// Payment types carried in Stripe metadata
const (
	PaymentTypeSubscription = "subscription"
)

// Request history statuses
const (
	JobStatusSuccess  = "success"
	JobStatusFailed   = "failed"
	JobStatusDropped  = "dropped"
	JobStatusRejected = "rejected"
)
