package telegram

import (
	"context"
	"fmt"
	"path/filepath"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/transcribot/transcribot/internal/consts"
	"github.com/transcribot/transcribot/internal/logger"
	"github.com/transcribot/transcribot/internal/workflow"
)

// Send posts text to chatID. Text is sent without a parse mode because
// transcripts may contain markup characters.
func (b *Bot) Send(ctx context.Context, chatID int64, text string, kb workflow.Keyboard) (int, error) {
	msg := tgbotapi.NewMessage(chatID, text)
	if markup := inlineKeyboard(kb); markup != nil {
		msg.ReplyMarkup = *markup
	}

	response, err := b.rateLimitedSend(ctx, chatID, msg)
	if err != nil {
		logger.Error("Failed to send message", map[string]interface{}{
			"error":   err.Error(),
			"chat_id": chatID,
		})
		return 0, err
	}
	return response.MessageID, nil
}

// Edit replaces the text and keyboard of a sent message. A nil keyboard
// removes the buttons.
func (b *Bot) Edit(ctx context.Context, chatID int64, messageID int, text string, kb workflow.Keyboard) error {
	var edit tgbotapi.EditMessageTextConfig
	if markup := inlineKeyboard(kb); markup != nil {
		edit = tgbotapi.NewEditMessageTextAndMarkup(chatID, messageID, text, *markup)
	} else {
		edit = tgbotapi.NewEditMessageText(chatID, messageID, text)
	}

	_, err := b.rateLimitedSend(ctx, chatID, edit)
	if isNotModified(err) {
		return nil
	}
	if err != nil {
		logger.Debug("Failed to edit message", map[string]interface{}{
			"error":      err.Error(),
			"chat_id":    chatID,
			"message_id": messageID,
		})
	}
	return err
}

// AnswerCallback stops the button spinner, showing text as a toast if set
func (b *Bot) AnswerCallback(ctx context.Context, callbackID, text string) error {
	_, err := b.rateLimitedRequest(ctx, tgbotapi.NewCallback(callbackID, text))
	return err
}

func inlineKeyboard(kb workflow.Keyboard) *tgbotapi.InlineKeyboardMarkup {
	if len(kb) == 0 {
		return nil
	}

	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(kb))
	for _, row := range kb {
		buttons := make([]tgbotapi.InlineKeyboardButton, 0, len(row))
		for _, btn := range row {
			if btn.URL != "" {
				buttons = append(buttons, tgbotapi.NewInlineKeyboardButtonURL(btn.Text, btn.URL))
			} else {
				buttons = append(buttons, tgbotapi.NewInlineKeyboardButtonData(btn.Text, btn.Data))
			}
		}
		rows = append(rows, buttons)
	}

	markup := tgbotapi.NewInlineKeyboardMarkup(rows...)
	return &markup
}

// fileEventFrom extracts the uploaded media of a message. Attachments that
// carry no file name get one derived from their kind and MIME type.
func fileEventFrom(message *tgbotapi.Message) (workflow.FileEvent, bool) {
	switch {
	case message.Document != nil:
		d := message.Document
		return fileEvent(d.FileID, d.FileName, d.MimeType, int64(d.FileSize), "document"), true
	case message.Audio != nil:
		a := message.Audio
		return fileEvent(a.FileID, a.FileName, a.MimeType, int64(a.FileSize), "audio"), true
	case message.Voice != nil:
		v := message.Voice
		mime := v.MimeType
		if mime == "" {
			mime = "audio/ogg"
		}
		return fileEvent(v.FileID, "", mime, int64(v.FileSize), "voice"), true
	case message.Video != nil:
		v := message.Video
		return fileEvent(v.FileID, v.FileName, v.MimeType, int64(v.FileSize), "video"), true
	case message.VideoNote != nil:
		v := message.VideoNote
		return fileEvent(v.FileID, "", "video/mp4", int64(v.FileSize), "video_note"), true
	}
	return workflow.FileEvent{}, false
}

func fileEvent(id, name, mimeType string, size int64, kind string) workflow.FileEvent {
	if name == "" || filepath.Ext(name) == "" {
		ext := consts.MIMEExtensions[mimeType]
		if name == "" {
			name = kind
		}
		name = fmt.Sprintf("%s%s", name, ext)
	}
	return workflow.FileEvent{
		FileID:   id,
		FileName: name,
		MIMEType: mimeType,
		Size:     size,
	}
}
