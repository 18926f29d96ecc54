package telegram

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/transcribot/transcribot/internal/logger"
)

// downloader fetches uploaded files from Telegram's file storage
type downloader struct {
	api     botAPI
	maxSize int64
	client  *http.Client
	link    func(tgbotapi.File) string
}

func newDownloader(api botAPI, token string, maxSize int64, timeout time.Duration) *downloader {
	return &downloader{
		api:     api,
		maxSize: maxSize,
		client:  &http.Client{Timeout: timeout},
		link: func(f tgbotapi.File) string {
			return f.Link(token)
		},
	}
}

// Fetch resolves fileID to a download link and reads the file. Files over
// maxSize are rejected while streaming.
func (d *downloader) Fetch(ctx context.Context, fileID string) ([]byte, error) {
	file, err := d.api.GetFile(tgbotapi.FileConfig{FileID: fileID})
	if err != nil {
		return nil, fmt.Errorf("failed to get file info: %w", err)
	}

	fileURL := d.link(file)
	logger.Debug("Downloading file from Telegram", map[string]interface{}{
		"file_id":   fileID,
		"file_size": file.FileSize,
	})

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fileURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build download request: %w", err)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download file: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to download file: HTTP %d", resp.StatusCode)
	}

	body := io.Reader(resp.Body)
	if d.maxSize > 0 {
		body = io.LimitReader(resp.Body, d.maxSize+1)
	}

	data, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("failed to read file data: %w", err)
	}
	if d.maxSize > 0 && int64(len(data)) > d.maxSize {
		return nil, fmt.Errorf("file exceeds %d bytes", d.maxSize)
	}

	logger.Debug("File downloaded successfully", map[string]interface{}{
		"file_id": fileID,
		"size":    len(data),
	})
	return data, nil
}
