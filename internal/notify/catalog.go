package notify

// Key names a localized message
type Key string

const (
	KeyStart                  Key = "start"
	KeyStartPremium           Key = "start_premium"
	KeyHelp                   Key = "help"
	KeySendFile               Key = "send_file"
	KeyChooseTargets          Key = "choose_targets"
	KeyProcessing             Key = "processing"
	KeyConverting             Key = "converting"
	KeyTranscribing           Key = "transcribing"
	KeyTranslating            Key = "translating"
	KeyTranscriptHeader       Key = "transcript_header"
	KeyTranslationHeader      Key = "translation_header"
	KeyFileTooLarge           Key = "file_too_large"
	KeyUnsupportedFormat      Key = "unsupported_format"
	KeyConversionFailed       Key = "conversion_failed"
	KeyNoTranscription        Key = "no_transcription"
	KeyTranslationFailed      Key = "translation_failed"
	KeyProcessingError        Key = "processing_error"
	KeyLimitReached           Key = "limit_reached"
	KeyBusy                   Key = "busy"
	KeySessionExpired         Key = "session_expired"
	KeyCancelled              Key = "cancelled"
	KeyNothingToCancel        Key = "nothing_to_cancel"
	KeySendFileFirst          Key = "send_file_first"
	KeyUnknownCommand         Key = "unknown_command"
	KeyLanguagePrompt         Key = "language_prompt"
	KeyLanguageSelected       Key = "language_selected"
	KeyStatusFree             Key = "status_free"
	KeyStatusPremium          Key = "status_premium"
	KeyRecentJobs             Key = "recent_jobs"
	KeySubscribePrompt        Key = "subscribe_prompt"
	KeySubscribeUnavailable   Key = "subscribe_unavailable"
	KeyAlreadySubscribed      Key = "already_subscribed"
	KeySubscriptionSuccessful Key = "subscription_successful"
	KeySubscriptionCancelled  Key = "subscription_cancelled"
	KeySubscriptionFailed     Key = "subscription_failed"
	KeyButtonSubmit           Key = "button_submit"
	KeyButtonTranscriptOnly   Key = "button_transcript_only"
	KeyButtonCancel           Key = "button_cancel"
	KeyButtonSubscribe        Key = "button_subscribe"
	KeyButtonManage           Key = "button_manage"
)

// Placeholders use {name} and are filled from Args
var catalog = map[string]map[Key]string{
	"en": {
		KeyStart:                  "🎵 Welcome to the Audio/Video Transcription Bot!\n\nI can transcribe and translate your audio and video files.\n\n📊 You have {free_requests} free request(s) remaining today.\n\n📎 Send me an audio or video file to get started!",
		KeyStartPremium:           "🎵 Welcome back!\n\n💎 Premium user: unlimited requests.\n\n📎 Send me an audio or video file to get started!",
		KeyHelp:                   "📋 How to use:\n1. Send /new or just send an audio or video file\n2. Choose the languages to translate into\n3. Press Start and get the transcript and translations\n\nCommands:\n/new - start a new job\n/cancel - cancel the current job\n/language - change the interface language\n/status - show your usage today\n/subscribe - unlimited requests\n\nMax file size: {max_size}MB",
		KeySendFile:               "📎 Send me an audio or video file (up to {max_size}MB).",
		KeyChooseTargets:          "📁 {file}\n\n🌐 Choose target languages for translation, then press Start. Press Start without a selection to get the transcript only.",
		KeyProcessing:             "🔄 Processing your file...",
		KeyConverting:             "🎞 Extracting audio from video...",
		KeyTranscribing:           "🎤 Transcribing audio...",
		KeyTranslating:            "🌐 Translating to {language}...",
		KeyTranscriptHeader:       "✅ Transcription complete!\n\n📝 Original text ({language}):",
		KeyTranslationHeader:      "🌐 {language} translation:",
		KeyFileTooLarge:           "❌ File too large! Maximum size: {max_size}MB",
		KeyUnsupportedFormat:      "❌ Unsupported file format! Supported: mp3, wav, m4a, ogg, flac, aac, mp4, mov, avi, mkv, webm",
		KeyConversionFailed:       "❌ Could not extract audio from the video. Please try another file.",
		KeyNoTranscription:        "❌ Could not transcribe audio. Please ensure it contains speech.",
		KeyTranslationFailed:      "❌ Translation to {language} failed. Please try again.",
		KeyProcessingError:        "❌ Error processing file. Please try again.",
		KeyLimitReached:           "🚫 Daily limit reached ({used}/{limit}).\n\n⏰ Resets at {reset}.\n💎 Subscribe for unlimited access: /subscribe",
		KeyBusy:                   "⏳ Your file is still being processed. Please wait or send /cancel.",
		KeySessionExpired:         "⌛ Your session expired due to inactivity. Send /new to start again.",
		KeyCancelled:              "🛑 Cancelled.",
		KeyNothingToCancel:        "Nothing to cancel.",
		KeySendFileFirst:          "📎 Please send an audio or video file first.",
		KeyUnknownCommand:         "❓ Unknown command. Send /help for the list of commands.",
		KeyLanguagePrompt:         "🌍 Choose the interface language:",
		KeyLanguageSelected:       "✅ Language: {language}",
		KeyStatusFree:             "📊 Today: {used}/{limit} free request(s) used.\n⏰ Resets at {reset}.",
		KeyStatusPremium:          "💎 Premium until {until}.\n📊 Requests today: {used}.",
		KeyRecentJobs:             "🕘 Recent jobs:",
		KeySubscribePrompt:        "💎 Unlimited requests with a monthly subscription. Tap the button below to pay securely with Stripe.",
		KeySubscribeUnavailable:   "💎 Subscriptions are not available right now.",
		KeyAlreadySubscribed:      "💎 You already have an active subscription until {until}.",
		KeySubscriptionSuccessful: "🎉 Subscription successful! You now have unlimited access until {until}!",
		KeySubscriptionCancelled:  "ℹ️ Your subscription has ended. You are back on the free plan.",
		KeySubscriptionFailed:     "❌ Subscription failed. Please try again.",
		KeyButtonSubmit:           "▶️ Start",
		KeyButtonTranscriptOnly:   "📝 Transcript only",
		KeyButtonCancel:           "✖️ Cancel",
		KeyButtonSubscribe:        "💎 Subscribe",
		KeyButtonManage:           "⚙️ Manage subscription",
	},
	"ru": {
		KeyStart:                  "🎵 Добро пожаловать в бот транскрибации аудио/видео!\n\nЯ могу расшифровать и перевести ваши аудио и видео файлы.\n\n📊 У вас осталось {free_requests} бесплатных запроса(ов) на сегодня.\n\n📎 Отправьте мне аудио или видео файл для начала!",
		KeyStartPremium:           "🎵 С возвращением!\n\n💎 Премиум: безлимитные запросы.\n\n📎 Отправьте мне аудио или видео файл для начала!",
		KeyHelp:                   "📋 Как пользоваться:\n1. Отправьте /new или сразу аудио или видео файл\n2. Выберите языки для перевода\n3. Нажмите «Старт» и получите текст и переводы\n\nКоманды:\n/new - новая задача\n/cancel - отменить текущую задачу\n/language - язык интерфейса\n/status - использование за сегодня\n/subscribe - безлимитные запросы\n\nМаксимальный размер файла: {max_size}МБ",
		KeySendFile:               "📎 Отправьте мне аудио или видео файл (до {max_size}МБ).",
		KeyChooseTargets:          "📁 {file}\n\n🌐 Выберите языки для перевода и нажмите «Старт». Без выбора вы получите только расшифровку.",
		KeyProcessing:             "🔄 Обработка вашего файла...",
		KeyConverting:             "🎞 Извлечение аудио из видео...",
		KeyTranscribing:           "🎤 Расшифровка аудио...",
		KeyTranslating:            "🌐 Перевод на {language}...",
		KeyTranscriptHeader:       "✅ Расшифровка завершена!\n\n📝 Оригинальный текст ({language}):",
		KeyTranslationHeader:      "🌐 Перевод ({language}):",
		KeyFileTooLarge:           "❌ Файл слишком большой! Максимальный размер: {max_size}МБ",
		KeyUnsupportedFormat:      "❌ Неподдерживаемый формат! Поддерживаются: mp3, wav, m4a, ogg, flac, aac, mp4, mov, avi, mkv, webm",
		KeyConversionFailed:       "❌ Не удалось извлечь аудио из видео. Попробуйте другой файл.",
		KeyNoTranscription:        "❌ Не удалось расшифровать аудио. Убедитесь, что оно содержит речь.",
		KeyTranslationFailed:      "❌ Перевод на {language} не удался. Попробуйте снова.",
		KeyProcessingError:        "❌ Ошибка обработки файла. Попробуйте снова.",
		KeyLimitReached:           "🚫 Дневной лимит исчерпан ({used}/{limit}).\n\n⏰ Сброс в {reset}.\n💎 Подпишитесь для безлимитного доступа: /subscribe",
		KeyBusy:                   "⏳ Ваш файл ещё обрабатывается. Подождите или отправьте /cancel.",
		KeySessionExpired:         "⌛ Сессия истекла из-за неактивности. Отправьте /new, чтобы начать заново.",
		KeyCancelled:              "🛑 Отменено.",
		KeyNothingToCancel:        "Нечего отменять.",
		KeySendFileFirst:          "📎 Сначала отправьте аудио или видео файл.",
		KeyUnknownCommand:         "❓ Неизвестная команда. Отправьте /help для списка команд.",
		KeyLanguagePrompt:         "🌍 Выберите язык интерфейса:",
		KeyLanguageSelected:       "✅ Язык: {language}",
		KeyStatusFree:             "📊 Сегодня использовано {used}/{limit} бесплатных запросов.\n⏰ Сброс в {reset}.",
		KeyStatusPremium:          "💎 Премиум до {until}.\n📊 Запросов сегодня: {used}.",
		KeyRecentJobs:             "🕘 Последние задачи:",
		KeySubscribePrompt:        "💎 Безлимитные запросы с ежемесячной подпиской. Нажмите кнопку ниже, чтобы оплатить через Stripe.",
		KeySubscribeUnavailable:   "💎 Подписка сейчас недоступна.",
		KeyAlreadySubscribed:      "💎 У вас уже есть активная подписка до {until}.",
		KeySubscriptionSuccessful: "🎉 Подписка успешна! Безлимитный доступ до {until}!",
		KeySubscriptionCancelled:  "ℹ️ Ваша подписка закончилась. Вы снова на бесплатном тарифе.",
		KeySubscriptionFailed:     "❌ Подписка не удалась. Попробуйте снова.",
		KeyButtonSubmit:           "▶️ Старт",
		KeyButtonTranscriptOnly:   "📝 Только текст",
		KeyButtonCancel:           "✖️ Отмена",
		KeyButtonSubscribe:        "💎 Подписаться",
		KeyButtonManage:           "⚙️ Управление подпиской",
	},
	"es": {
		KeyStart:                  "🎵 ¡Bienvenido al bot de transcripción de audio/video!\n\nPuedo transcribir y traducir tus archivos de audio y video.\n\n📊 Te quedan {free_requests} solicitud(es) gratuita(s) hoy.\n\n📎 ¡Envíame un archivo de audio o video para empezar!",
		KeyStartPremium:           "🎵 ¡Bienvenido de nuevo!\n\n💎 Usuario premium: solicitudes ilimitadas.\n\n📎 ¡Envíame un archivo de audio o video para empezar!",
		KeyHelp:                   "📋 Cómo usar:\n1. Envía /new o directamente un archivo de audio o video\n2. Elige los idiomas de traducción\n3. Pulsa Iniciar y recibe la transcripción y las traducciones\n\nComandos:\n/new - nuevo trabajo\n/cancel - cancelar el trabajo actual\n/language - idioma de la interfaz\n/status - uso de hoy\n/subscribe - solicitudes ilimitadas\n\nTamaño máximo: {max_size}MB",
		KeySendFile:               "📎 Envíame un archivo de audio o video (hasta {max_size}MB).",
		KeyChooseTargets:          "📁 {file}\n\n🌐 Elige los idiomas de traducción y pulsa Iniciar. Sin selección recibirás solo la transcripción.",
		KeyProcessing:             "🔄 Procesando tu archivo...",
		KeyConverting:             "🎞 Extrayendo audio del video...",
		KeyTranscribing:           "🎤 Transcribiendo audio...",
		KeyTranslating:            "🌐 Traduciendo a {language}...",
		KeyTranscriptHeader:       "✅ ¡Transcripción completa!\n\n📝 Texto original ({language}):",
		KeyTranslationHeader:      "🌐 Traducción ({language}):",
		KeyFileTooLarge:           "❌ ¡Archivo demasiado grande! Tamaño máximo: {max_size}MB",
		KeyUnsupportedFormat:      "❌ ¡Formato no soportado! Soportados: mp3, wav, m4a, ogg, flac, aac, mp4, mov, avi, mkv, webm",
		KeyConversionFailed:       "❌ No se pudo extraer el audio del video. Prueba con otro archivo.",
		KeyNoTranscription:        "❌ No se pudo transcribir el audio. Asegúrate de que contenga habla.",
		KeyTranslationFailed:      "❌ La traducción a {language} falló. Inténtalo de nuevo.",
		KeyProcessingError:        "❌ Error procesando archivo. Inténtalo de nuevo.",
		KeyLimitReached:           "🚫 ¡Límite diario alcanzado ({used}/{limit})!\n\n⏰ Se reinicia a las {reset}.\n💎 Suscríbete para acceso ilimitado: /subscribe",
		KeyBusy:                   "⏳ Tu archivo aún se está procesando. Espera o envía /cancel.",
		KeySessionExpired:         "⌛ Tu sesión expiró por inactividad. Envía /new para empezar de nuevo.",
		KeyCancelled:              "🛑 Cancelado.",
		KeyNothingToCancel:        "No hay nada que cancelar.",
		KeySendFileFirst:          "📎 Primero envía un archivo de audio o video.",
		KeyUnknownCommand:         "❓ Comando desconocido. Envía /help para ver los comandos.",
		KeyLanguagePrompt:         "🌍 Elige el idioma de la interfaz:",
		KeyLanguageSelected:       "✅ Idioma: {language}",
		KeyStatusFree:             "📊 Hoy: {used}/{limit} solicitud(es) gratuita(s) usada(s).\n⏰ Se reinicia a las {reset}.",
		KeyStatusPremium:          "💎 Premium hasta {until}.\n📊 Solicitudes hoy: {used}.",
		KeyRecentJobs:             "🕘 Trabajos recientes:",
		KeySubscribePrompt:        "💎 Solicitudes ilimitadas con una suscripción mensual. Pulsa el botón para pagar con Stripe.",
		KeySubscribeUnavailable:   "💎 Las suscripciones no están disponibles ahora.",
		KeyAlreadySubscribed:      "💎 Ya tienes una suscripción activa hasta {until}.",
		KeySubscriptionSuccessful: "🎉 ¡Suscripción exitosa! ¡Acceso ilimitado hasta {until}!",
		KeySubscriptionCancelled:  "ℹ️ Tu suscripción ha terminado. Vuelves al plan gratuito.",
		KeySubscriptionFailed:     "❌ La suscripción falló. Inténtalo de nuevo.",
		KeyButtonSubmit:           "▶️ Iniciar",
		KeyButtonTranscriptOnly:   "📝 Solo transcripción",
		KeyButtonCancel:           "✖️ Cancelar",
		KeyButtonSubscribe:        "💎 Suscribirse",
		KeyButtonManage:           "⚙️ Gestionar suscripción",
	},
}
