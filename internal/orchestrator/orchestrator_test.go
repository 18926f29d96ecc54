package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/transcribot/transcribot/internal/quota"
)

const maxSize = 100 * 1024 * 1024

type fakeSource struct {
	data  []byte
	err   error
	calls int
}

func (f *fakeSource) Fetch(ctx context.Context) ([]byte, error) {
	f.calls++
	return f.data, f.err
}

type fakeConverter struct {
	out   []byte
	err   error
	calls int
}

func (f *fakeConverter) ExtractAudio(ctx context.Context, video []byte, filename string) ([]byte, error) {
	f.calls++
	return f.out, f.err
}

type fakeTranscriber struct {
	text, lang string
	err        error
	calls      int
	gotName    string
	gotAudio   []byte
}

func (f *fakeTranscriber) Transcribe(ctx context.Context, audio []byte, filename string) (string, string, error) {
	f.calls++
	f.gotName = filename
	f.gotAudio = audio
	return f.text, f.lang, f.err
}

type fakeTranslator struct {
	fail    map[string]bool
	targets []string
}

func (f *fakeTranslator) Translate(ctx context.Context, text, target string) (string, error) {
	f.targets = append(f.targets, target)
	if f.fail[target] {
		return "", errors.New("upstream 500")
	}
	return fmt.Sprintf("[%s] %s", target, text), nil
}

type recordingObserver struct {
	calls []string
}

func (r *recordingObserver) ObserveExternalCall(backend string, err error, d time.Duration) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	r.calls = append(r.calls, backend+":"+status)
}

type fixture struct {
	conv  *fakeConverter
	trans *fakeTranscriber
	tl    *fakeTranslator
	obs   *recordingObserver
	o     *Orchestrator
}

func newFixture() *fixture {
	f := &fixture{
		conv:  &fakeConverter{out: []byte("mp3-audio")},
		trans: &fakeTranscriber{text: "hello world", lang: "en"},
		tl:    &fakeTranslator{fail: map[string]bool{}},
		obs:   &recordingObserver{},
	}
	f.o = New(f.conv, f.trans, f.tl, maxSize)
	f.o.SetObserver(f.obs)
	return f
}

func (f *fixture) externalCalls() int {
	return f.conv.calls + f.trans.calls + len(f.tl.targets)
}

func TestRunJob_TranscribeAndTranslate(t *testing.T) {
	f := newFixture()
	src := &fakeSource{data: make([]byte, 2<<20)}

	var stages []Stage
	job := &Job{
		ID: "1-1", UserID: 1, FileName: "talk.mp3", MIMEType: "audio/mpeg",
		Size: 2 << 20, Source: src, Targets: []string{"es"},
		OnStage: func(s Stage, lang string) { stages = append(stages, s) },
	}

	res, err := f.o.RunJob(context.Background(), job)
	require.NoError(t, err)

	assert.Equal(t, "audio", res.MediaKind)
	assert.Equal(t, "en", res.SourceLanguage)
	assert.Equal(t, "hello world", res.Transcript)
	require.Len(t, res.Translations, 1)
	assert.Equal(t, Translation{Language: "es", Text: "[es] hello world"}, res.Translations[0])
	assert.Equal(t, 0, f.conv.calls, "audio is not converted")
	assert.Equal(t, "talk.mp3", f.trans.gotName)
	assert.Equal(t, []Stage{StageDownloading, StageTranscribing, StageTranslating}, stages)
	assert.Equal(t, []string{"transcription:ok", "translation:ok"}, f.obs.calls)
}

func TestRunJob_FileTooLargeBeforeAnyCall(t *testing.T) {
	f := newFixture()
	src := &fakeSource{}

	_, err := f.o.RunJob(context.Background(), &Job{
		FileName: "big.mp3", Size: 101 * 1024 * 1024, Source: src, Targets: []string{"es"},
	})

	oe := Classify(err)
	require.NotNil(t, oe)
	assert.Equal(t, KindValidation, oe.Kind)
	assert.Equal(t, CodeFileTooLarge, oe.Code)
	assert.Equal(t, 0, src.calls, "file must not be downloaded")
	assert.Equal(t, 0, f.externalCalls())
}

func TestRunJob_DownloadedSizeIsChecked(t *testing.T) {
	f := newFixture()
	o := New(f.conv, f.trans, f.tl, 10)

	_, err := o.RunJob(context.Background(), &Job{
		FileName: "a.mp3", Size: 0, Source: &fakeSource{data: make([]byte, 11)},
	})
	assert.Equal(t, CodeFileTooLarge, Classify(err).Code)
	assert.Equal(t, 0, f.trans.calls)
}

func TestRunJob_UnsupportedFormat(t *testing.T) {
	f := newFixture()
	src := &fakeSource{}

	_, err := f.o.RunJob(context.Background(), &Job{FileName: "notes.pdf", MIMEType: "application/pdf", Size: 10, Source: src})

	oe := Classify(err)
	assert.Equal(t, KindValidation, oe.Kind)
	assert.Equal(t, CodeUnsupportedFormat, oe.Code)
	assert.Equal(t, 0, src.calls)
}

func TestRunJob_VideoIsConverted(t *testing.T) {
	f := newFixture()

	res, err := f.o.RunJob(context.Background(), &Job{
		FileName: "clip.MP4", Size: 100, Source: &fakeSource{data: []byte("video")},
	})
	require.NoError(t, err)

	assert.Equal(t, "video", res.MediaKind)
	assert.Equal(t, 1, f.conv.calls)
	assert.Equal(t, []byte("mp3-audio"), f.trans.gotAudio)
	assert.Equal(t, "clip.mp3", f.trans.gotName)
}

func TestRunJob_UnsupportedAudioIsTranscoded(t *testing.T) {
	tests := []struct {
		name, file, mime, wantName string
	}{
		{"opus by ext", "memo.opus", "", "memo.mp3"},
		{"aac by ext", "memo.AAC", "", "memo.mp3"},
		{"opus by mime", "audio.opus", "audio/opus", "audio.mp3"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()

			res, err := f.o.RunJob(context.Background(), &Job{
				FileName: tt.file, MIMEType: tt.mime, Size: 100, Source: &fakeSource{data: []byte("audio")},
			})
			require.NoError(t, err)

			assert.Equal(t, "audio", res.MediaKind)
			assert.Equal(t, 1, f.conv.calls)
			assert.Equal(t, []byte("mp3-audio"), f.trans.gotAudio)
			assert.Equal(t, tt.wantName, f.trans.gotName)
		})
	}
}

func TestNeedsConversion(t *testing.T) {
	assert.True(t, NeedsConversion("clip.mp4", ""))
	assert.True(t, NeedsConversion("memo.opus", ""))
	assert.True(t, NeedsConversion("", "audio/opus"))
	assert.False(t, NeedsConversion("talk.mp3", ""))
	assert.False(t, NeedsConversion("", "audio/ogg"))
}

func TestRunJob_ExternalFailures(t *testing.T) {
	tests := []struct {
		name     string
		file     string
		setup    func(f *fixture)
		wantCode Code
		wantLang string
	}{
		{
			name:     "conversion",
			file:     "clip.mkv",
			setup:    func(f *fixture) { f.conv.err = errors.New("ffmpeg exited 1") },
			wantCode: CodeConversionFailed,
		},
		{
			name:     "transcription",
			file:     "a.wav",
			setup:    func(f *fixture) { f.trans.err = errors.New("timeout") },
			wantCode: CodeTranscriptionFailed,
		},
		{
			name:     "empty transcript",
			file:     "a.wav",
			setup:    func(f *fixture) { f.trans.text = "  " },
			wantCode: CodeTranscriptionFailed,
		},
		{
			name:     "translation",
			file:     "a.wav",
			setup:    func(f *fixture) { f.tl.fail["fr"] = true },
			wantCode: CodeTranslationFailed,
			wantLang: "fr",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			tt.setup(f)

			_, err := f.o.RunJob(context.Background(), &Job{
				FileName: tt.file, Size: 10, Source: &fakeSource{data: []byte("x")},
				Targets: []string{"es", "fr", "de"},
			})

			oe := Classify(err)
			require.NotNil(t, oe)
			assert.Equal(t, KindExternalService, oe.Kind)
			assert.Equal(t, tt.wantCode, oe.Code)
			assert.Equal(t, tt.wantLang, oe.Language)
		})
	}
}

func TestRunJob_TranslationFailureStopsAndKeepsPartial(t *testing.T) {
	f := newFixture()
	f.tl.fail["fr"] = true

	res, err := f.o.RunJob(context.Background(), &Job{
		FileName: "a.ogg", Size: 10, Source: &fakeSource{data: []byte("x")},
		Targets: []string{"es", "fr", "de"},
	})
	require.Error(t, err)
	require.NotNil(t, res)

	assert.Equal(t, "hello world", res.Transcript)
	require.Len(t, res.Translations, 1)
	assert.Equal(t, "es", res.Translations[0].Language)
	assert.Equal(t, []string{"es", "fr"}, f.tl.targets, "no attempt after the first failure")
}

func TestRunJob_SkipsSourceLanguage(t *testing.T) {
	f := newFixture()
	f.trans.lang = "en-US"

	res, err := f.o.RunJob(context.Background(), &Job{
		FileName: "a.m4a", Size: 10, Source: &fakeSource{data: []byte("x")},
		Targets: []string{"en", "es"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"es"}, f.tl.targets)
	assert.Len(t, res.Translations, 1)
}

func TestRunJob_FetchFailureIsInternal(t *testing.T) {
	f := newFixture()

	_, err := f.o.RunJob(context.Background(), &Job{
		FileName: "a.mp3", Size: 10, Source: &fakeSource{err: errors.New("telegram 502")},
	})

	oe := Classify(err)
	assert.Equal(t, KindInternal, oe.Kind)
	assert.Contains(t, oe.Error(), "telegram 502")
}

func TestMediaKind(t *testing.T) {
	tests := []struct {
		name, file, mime, want string
	}{
		{"mp3", "song.mp3", "", "audio"},
		{"upper case", "SONG.FLAC", "", "audio"},
		{"voice note", "", "audio/ogg", "audio"},
		{"video by ext", "movie.mov", "", "video"},
		{"video by mime", "clip", "video/webm", "video"},
		{"unknown ext falls back to mime", "rec.bin", "audio/mpeg", "audio"},
		{"document", "doc.pdf", "application/pdf", ""},
		{"nothing", "", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, MediaKind(tt.file, tt.mime))
		})
	}
}

func TestClassify(t *testing.T) {
	assert.Nil(t, Classify(nil))

	wrapped := fmt.Errorf("job 1: %w", &Error{Kind: KindExternalService, Code: CodeTranslationFailed, Language: "de"})
	oe := Classify(wrapped)
	assert.Equal(t, CodeTranslationFailed, oe.Code)
	assert.Equal(t, "de", oe.Language)

	limit := fmt.Errorf("admit: %w", &quota.LimitError{Limit: 1, Used: 1})
	assert.Equal(t, KindQuotaExceeded, Classify(limit).Kind)

	plain := Classify(errors.New("nil pointer"))
	assert.Equal(t, KindInternal, plain.Kind)
	assert.Equal(t, CodeInternal, plain.Code)
	assert.Equal(t, "internal", plain.Kind.String())
}
