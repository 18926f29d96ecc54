package media

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
)

// fakeFFmpeg writes a shell script standing in for the ffmpeg binary
func fakeFFmpeg(t *testing.T, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell script stand-in needs a unix shell")
	}
	path := filepath.Join(t.TempDir(), "ffmpeg")
	script := "#!/bin/sh\n" + body + "\n"
	if err := os.WriteFile(path, []byte(script), 0755); err != nil {
		t.Fatalf("failed to write fake ffmpeg: %v", err)
	}
	return path
}

func TestExtractAudio_Success(t *testing.T) {
	// copy the -i argument to the last argument, prefixed
	bin := fakeFFmpeg(t, `
in=""
prev=""
for a in "$@"; do
  if [ "$prev" = "-i" ]; then in="$a"; fi
  prev="$a"
  out="$a"
done
printf 'MP3:' > "$out"
cat "$in" >> "$out"`)

	audio, err := NewFFmpeg(bin).ExtractAudio(context.Background(), []byte("video-bytes"), "clip.MOV")
	if err != nil {
		t.Fatalf("ExtractAudio() error = %v", err)
	}
	if string(audio) != "MP3:video-bytes" {
		t.Errorf("ExtractAudio() = %q, want %q", audio, "MP3:video-bytes")
	}
}

func TestExtractAudio_Failure(t *testing.T) {
	bin := fakeFFmpeg(t, `echo "Invalid data found when processing input" >&2; exit 1`)

	_, err := NewFFmpeg(bin).ExtractAudio(context.Background(), []byte("junk"), "clip.mp4")
	if err == nil {
		t.Fatal("ExtractAudio() expected error")
	}
	if !strings.Contains(err.Error(), "Invalid data found") {
		t.Errorf("error %q should carry ffmpeg stderr", err)
	}
}

func TestExtractAudio_EmptyOutput(t *testing.T) {
	bin := fakeFFmpeg(t, `for a in "$@"; do out="$a"; done; : > "$out"`)

	_, err := NewFFmpeg(bin).ExtractAudio(context.Background(), []byte("x"), "clip.webm")
	if err == nil || !strings.Contains(err.Error(), "no audio") {
		t.Errorf("ExtractAudio() error = %v, want no audio error", err)
	}
}

func TestExtractAudio_MissingBinary(t *testing.T) {
	_, err := NewFFmpeg(filepath.Join(t.TempDir(), "does-not-exist")).ExtractAudio(context.Background(), []byte("x"), "a.mp4")
	if err == nil {
		t.Fatal("ExtractAudio() expected error for missing binary")
	}
}

func TestTail(t *testing.T) {
	tests := []struct {
		in   string
		n    int
		want string
	}{
		{"short", 10, "short"},
		{"  padded \n", 10, "padded"},
		{"0123456789", 4, "6789"},
	}
	for _, tt := range tests {
		if got := tail(tt.in, tt.n); got != tt.want {
			t.Errorf("tail(%q, %d) = %q, want %q", tt.in, tt.n, got, tt.want)
		}
	}
}
