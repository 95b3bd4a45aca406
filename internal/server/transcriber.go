package server

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"google.golang.org/api/option"
	speech "google.golang.org/api/speech/v1"

	"github.com/Hyeon6492/LifeBit/internal/config"
)

// AudioClip is one uploaded recording.
type AudioClip struct {
	Filename    string
	ContentType string
	Data        []byte
}

// Transcriber turns speech into text.
type Transcriber interface {
	Transcribe(ctx context.Context, clip AudioClip) (string, error)
	Provider() string
}

var ErrTranscriberNotConfigured = errors.New("speech-to-text provider is not configured")

// WhisperTranscriber calls the OpenAI audio transcription endpoint.
type WhisperTranscriber struct {
	apiKey     string
	baseURL    string
	model      string
	language   string
	httpClient *http.Client
}

func NewWhisperTranscriber(cfg config.Config) *WhisperTranscriber {
	timeoutSeconds := cfg.AITimeoutSeconds
	if timeoutSeconds <= 0 {
		timeoutSeconds = 30
	}
	return &WhisperTranscriber{
		apiKey:   strings.TrimSpace(cfg.OpenAIAPIKey),
		baseURL:  strings.TrimRight(strings.TrimSpace(cfg.OpenAIBaseURL), "/"),
		model:    strings.TrimSpace(cfg.WhisperModel),
		language: whisperLanguage(cfg.SpeechLanguage),
		httpClient: &http.Client{
			Timeout: time.Duration(timeoutSeconds) * time.Second,
		},
	}
}

func (w *WhisperTranscriber) Provider() string {
	return config.STTProviderOpenAI
}

func (w *WhisperTranscriber) Transcribe(ctx context.Context, clip AudioClip) (string, error) {
	if w.apiKey == "" {
		return "", ErrTranscriberNotConfigured
	}
	if len(clip.Data) == 0 {
		return "", errors.New("audio clip is empty")
	}

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	filename := clip.Filename
	if strings.TrimSpace(filename) == "" {
		filename = "voice.webm"
	}
	part, err := writer.CreateFormFile("file", filepath.Base(filename))
	if err != nil {
		return "", err
	}
	if _, err := part.Write(clip.Data); err != nil {
		return "", err
	}
	if err := writer.WriteField("model", w.model); err != nil {
		return "", err
	}
	if w.language != "" {
		if err := writer.WriteField("language", w.language); err != nil {
			return "", err
		}
	}
	if err := writer.Close(); err != nil {
		return "", err
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodPost, w.baseURL+"/audio/transcriptions", &body)
	if err != nil {
		return "", err
	}
	request.Header.Set("Authorization", "Bearer "+w.apiKey)
	request.Header.Set("Content-Type", writer.FormDataContentType())

	response, err := w.httpClient.Do(request)
	if err != nil {
		return "", err
	}
	defer response.Body.Close()

	responseBody, err := io.ReadAll(response.Body)
	if err != nil {
		return "", err
	}
	if response.StatusCode < 200 || response.StatusCode >= 300 {
		return "", fmt.Errorf("whisper transcription error (%d): %s", response.StatusCode, truncateForLog(string(responseBody), 400))
	}

	var parsed struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(responseBody, &parsed); err != nil {
		return "", fmt.Errorf("decode whisper response: %w", err)
	}
	text := strings.TrimSpace(parsed.Text)
	if text == "" {
		return "", errors.New("whisper transcript is empty")
	}
	return text, nil
}

// whisperLanguage reduces a locale such as ko-KR to the ISO-639-1 code
// Whisper expects.
func whisperLanguage(locale string) string {
	trimmed := strings.TrimSpace(locale)
	if idx := strings.IndexAny(trimmed, "-_"); idx > 0 {
		trimmed = trimmed[:idx]
	}
	return strings.ToLower(trimmed)
}

// GoogleSpeechTranscriber uses the Cloud Speech-to-Text v1 recognize call.
type GoogleSpeechTranscriber struct {
	service  *speech.Service
	language string
}

func NewGoogleSpeechTranscriber(ctx context.Context, cfg config.Config, opts ...option.ClientOption) (*GoogleSpeechTranscriber, error) {
	key := strings.TrimSpace(cfg.GoogleSpeechAPIKey)
	if key == "" {
		return nil, ErrTranscriberNotConfigured
	}
	clientOpts := append([]option.ClientOption{option.WithAPIKey(key)}, opts...)
	service, err := speech.NewService(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("create speech service: %w", err)
	}
	language := strings.TrimSpace(cfg.SpeechLanguage)
	if language == "" {
		language = "ko-KR"
	}
	return &GoogleSpeechTranscriber{service: service, language: language}, nil
}

func (g *GoogleSpeechTranscriber) Provider() string {
	return config.STTProviderGoogle
}

func (g *GoogleSpeechTranscriber) Transcribe(ctx context.Context, clip AudioClip) (string, error) {
	if len(clip.Data) == 0 {
		return "", errors.New("audio clip is empty")
	}
	resp, err := g.service.Speech.Recognize(&speech.RecognizeRequest{
		Config: &speech.RecognitionConfig{
			LanguageCode:               g.language,
			Encoding:                   speechEncoding(clip),
			EnableAutomaticPunctuation: true,
		},
		Audio: &speech.RecognitionAudio{
			Content: base64.StdEncoding.EncodeToString(clip.Data),
		},
	}).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("google speech recognize: %w", err)
	}

	parts := make([]string, 0, len(resp.Results))
	for _, result := range resp.Results {
		if result == nil || len(result.Alternatives) == 0 || result.Alternatives[0] == nil {
			continue
		}
		if text := strings.TrimSpace(result.Alternatives[0].Transcript); text != "" {
			parts = append(parts, text)
		}
	}
	if len(parts) == 0 {
		return "", errors.New("google speech transcript is empty")
	}
	return strings.Join(parts, " "), nil
}

func speechEncoding(clip AudioClip) string {
	contentType := strings.ToLower(clip.ContentType)
	ext := strings.ToLower(filepath.Ext(clip.Filename))
	switch {
	case strings.Contains(contentType, "webm") || ext == ".webm":
		return "WEBM_OPUS"
	case strings.Contains(contentType, "ogg") || ext == ".ogg" || ext == ".opus":
		return "OGG_OPUS"
	case strings.Contains(contentType, "flac") || ext == ".flac":
		return "FLAC"
	case strings.Contains(contentType, "wav") || ext == ".wav":
		return "LINEAR16"
	case strings.Contains(contentType, "mpeg") || ext == ".mp3":
		return "MP3"
	default:
		return ""
	}
}
