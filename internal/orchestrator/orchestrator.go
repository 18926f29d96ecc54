package orchestrator

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/transcribot/transcribot/internal/consts"
	"github.com/transcribot/transcribot/internal/logger"
	"golang.org/x/text/language"
)

// Source gives access to the uploaded bytes
type Source interface {
	Fetch(ctx context.Context) ([]byte, error)
}

// Converter re-encodes a video soundtrack or an unsupported audio container to MP3
type Converter interface {
	ExtractAudio(ctx context.Context, video []byte, filename string) ([]byte, error)
}

// Transcriber turns audio into text and reports the detected language
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte, filename string) (text, lang string, err error)
}

type Translator interface {
	Translate(ctx context.Context, text, target string) (string, error)
}

// CallObserver is told about every external call
type CallObserver interface {
	ObserveExternalCall(backend string, err error, duration time.Duration)
}

// Stage is reported through Job.OnStage as the job progresses
type Stage int

const (
	StageDownloading Stage = iota
	StageConverting
	StageTranscribing
	StageTranslating
)

// Backend names used for CallObserver
const (
	BackendConversion    = "conversion"
	BackendTranscription = "transcription"
	BackendTranslation   = "translation"
)

type Job struct {
	ID       string
	UserID   int64
	FileName string
	MIMEType string
	Size     int64
	Source   Source
	// Targets are translated in order; the source language is skipped
	Targets []string
	OnStage func(stage Stage, lang string)
}

type Translation struct {
	Language string
	Text     string
}

type Result struct {
	JobID          string
	MediaKind      string
	SourceLanguage string
	Transcript     string
	Translations   []Translation
	Duration       time.Duration
}

type Orchestrator struct {
	converter   Converter
	transcriber Transcriber
	translator  Translator
	maxSize     int64
	observer    CallObserver
}

func New(converter Converter, transcriber Transcriber, translator Translator, maxFileSize int64) *Orchestrator {
	return &Orchestrator{
		converter:   converter,
		transcriber: transcriber,
		translator:  translator,
		maxSize:     maxFileSize,
	}
}

// SetObserver installs an observer for external calls
func (o *Orchestrator) SetObserver(obs CallObserver) {
	o.observer = obs
}

// Validate checks size and container before anything is downloaded and
// returns the media kind.
func (o *Orchestrator) Validate(name, mimeType string, size int64) (string, error) {
	return Validate(name, mimeType, size, o.maxSize)
}

// Validate is the stateless form of Orchestrator.Validate
func Validate(name, mimeType string, size, maxSize int64) (string, error) {
	if size > maxSize {
		return "", validationError(CodeFileTooLarge, "file is %d bytes, limit is %d", size, maxSize)
	}

	kind := MediaKind(name, mimeType)
	if kind == "" {
		return "", validationError(CodeUnsupportedFormat, "unsupported media %q (%s)", name, mimeType)
	}
	return kind, nil
}

// MediaKind returns consts.MediaKindAudio, consts.MediaKindVideo or "" from
// the file extension, falling back to the MIME type.
func MediaKind(name, mimeType string) string {
	ext := mediaExt(name, mimeType)
	switch {
	case consts.AudioExtensions[ext]:
		return consts.MediaKindAudio
	case consts.VideoExtensions[ext]:
		return consts.MediaKindVideo
	default:
		return ""
	}
}

// NeedsConversion reports whether the upload goes through the converter
// before transcription
func NeedsConversion(name, mimeType string) bool {
	ext := mediaExt(name, mimeType)
	return consts.VideoExtensions[ext] || consts.TranscodeExtensions[ext]
}

func mediaExt(name, mimeType string) string {
	ext := strings.ToLower(filepath.Ext(name))
	if ext == "" || (!consts.AudioExtensions[ext] && !consts.VideoExtensions[ext]) {
		if mapped, ok := consts.MIMEExtensions[strings.ToLower(mimeType)]; ok {
			ext = mapped
		}
	}
	return ext
}

// RunJob validates, converts, transcribes and translates. On
// CodeTranslationFailed the partial result is returned with the error.
func (o *Orchestrator) RunJob(ctx context.Context, job *Job) (*Result, error) {
	start := time.Now()

	kind, err := o.Validate(job.FileName, job.MIMEType, job.Size)
	if err != nil {
		return nil, err
	}

	result := &Result{JobID: job.ID, MediaKind: kind}
	defer func() { result.Duration = time.Since(start) }()

	job.stage(StageDownloading, "")
	data, err := job.Source.Fetch(ctx)
	if err != nil {
		return nil, newError(KindInternal, CodeInternal, fmt.Errorf("failed to fetch file: %w", err))
	}
	if int64(len(data)) > o.maxSize {
		return nil, validationError(CodeFileTooLarge, "downloaded %d bytes, limit is %d", len(data), o.maxSize)
	}

	audio, audioName := data, job.FileName
	if NeedsConversion(job.FileName, job.MIMEType) {
		job.stage(StageConverting, "")
		callStart := time.Now()
		audio, err = o.converter.ExtractAudio(ctx, data, job.FileName)
		o.observe(BackendConversion, err, callStart)
		if err != nil {
			return nil, newError(KindExternalService, CodeConversionFailed, err)
		}
		audioName = strings.TrimSuffix(job.FileName, filepath.Ext(job.FileName)) + ".mp3"
	}

	job.stage(StageTranscribing, "")
	callStart := time.Now()
	text, lang, err := o.transcriber.Transcribe(ctx, audio, audioName)
	o.observe(BackendTranscription, err, callStart)
	if err != nil {
		return nil, newError(KindExternalService, CodeTranscriptionFailed, err)
	}
	if strings.TrimSpace(text) == "" {
		return nil, newError(KindExternalService, CodeTranscriptionFailed, fmt.Errorf("empty transcript"))
	}

	result.Transcript = text
	result.SourceLanguage = lang

	for _, target := range job.Targets {
		if sameLanguage(lang, target) {
			continue
		}

		job.stage(StageTranslating, target)
		callStart := time.Now()
		translated, err := o.translator.Translate(ctx, text, target)
		o.observe(BackendTranslation, err, callStart)
		if err == nil && strings.TrimSpace(translated) == "" {
			err = fmt.Errorf("empty translation")
		}
		if err != nil {
			return result, &Error{Kind: KindExternalService, Code: CodeTranslationFailed, Language: target, Err: err}
		}

		result.Translations = append(result.Translations, Translation{Language: target, Text: translated})
	}

	logger.Debug("Job finished", map[string]interface{}{
		"job_id":       job.ID,
		"user_id":      job.UserID,
		"media_kind":   kind,
		"source":       lang,
		"translations": len(result.Translations),
	})

	return result, nil
}

func (o *Orchestrator) observe(backend string, err error, start time.Time) {
	if o.observer != nil {
		o.observer.ObserveExternalCall(backend, err, time.Since(start))
	}
}

func (j *Job) stage(s Stage, lang string) {
	if j.OnStage != nil {
		j.OnStage(s, lang)
	}
}

// sameLanguage compares base languages, so "en-US" matches "en"
func sameLanguage(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	ta, errA := language.Parse(a)
	tb, errB := language.Parse(b)
	if errA != nil || errB != nil {
		return strings.EqualFold(a, b)
	}
	ba, _ := ta.Base()
	bb, _ := tb.Base()
	return ba == bb
}
