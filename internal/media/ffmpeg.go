package media

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/transcribot/transcribot/internal/logger"
)

// maxStderr caps how much ffmpeg output ends up in errors and logs
const maxStderr = 2048

// FFmpeg extracts audio tracks by running the ffmpeg binary
type FFmpeg struct {
	path string
	args []string
}

// NewFFmpeg uses the binary at path, or "ffmpeg" from PATH when empty
func NewFFmpeg(path string) *FFmpeg {
	if path == "" {
		path = "ffmpeg"
	}
	return &FFmpeg{
		path: path,
		args: []string{"-vn", "-acodec", "libmp3lame", "-q:a", "4"},
	}
}

// ExtractAudio writes the upload to a temp file and returns its audio
// track as MP3. Audio inputs are simply re-encoded.
func (f *FFmpeg) ExtractAudio(ctx context.Context, video []byte, filename string) ([]byte, error) {
	dir, err := os.MkdirTemp("", "transcribot-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	ext := filepath.Ext(filename)
	if ext == "" {
		ext = ".bin"
	}
	in := filepath.Join(dir, "input"+strings.ToLower(ext))
	out := filepath.Join(dir, "output.mp3")

	if err := os.WriteFile(in, video, 0600); err != nil {
		return nil, fmt.Errorf("failed to write input: %w", err)
	}

	args := append([]string{"-hide_banner", "-loglevel", "error", "-y", "-i", in}, f.args...)
	args = append(args, out)

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, f.path, args...)
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		msg := tail(stderr.String(), maxStderr)
		logger.Warn("ffmpeg conversion failed", map[string]interface{}{
			"file":   filename,
			"error":  err.Error(),
			"output": msg,
		})
		return nil, fmt.Errorf("ffmpeg conversion failed: %w: %s", err, msg)
	}

	audio, err := os.ReadFile(out)
	if err != nil {
		return nil, fmt.Errorf("failed to read converted audio: %w", err)
	}
	if len(audio) == 0 {
		return nil, fmt.Errorf("ffmpeg produced no audio for %s", filename)
	}

	return audio, nil
}

func tail(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
