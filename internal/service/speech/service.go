package speech

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/fogfish/opts"
	"github.com/tidwall/gjson"

	"github.com/zhouzirui/z-market/backend/internal/model/speech"
	"github.com/zhouzirui/z-market/backend/pkg/logx"
)

// ErrEmptyAudio is returned when the request carries no audio bytes.
var ErrEmptyAudio = errors.New("speech: empty audio")

// Option configures a Service.
type Option = opts.Option[Service]

var (
	// MaxRetries sets the number of transcription attempts.
	MaxRetries = opts.ForName[Service, int]("maxRetries")
	// RetryDelay sets the pause between attempts.
	RetryDelay = opts.ForName[Service, time.Duration]("retryDelay")
	// WithHTTPClient replaces the HTTP client.
	WithHTTPClient = opts.ForName[Service, *http.Client]("httpClient")
)

// Service 语音识别服务客户端，调用 Whisper 转写服务。
type Service struct {
	baseURL    string
	maxRetries int
	retryDelay time.Duration
	httpClient *http.Client
}

// NewService 创建语音识别服务实例
func NewService(baseURL string, options ...Option) (*Service, error) {
	s := &Service{
		baseURL:    strings.TrimRight(baseURL, "/"),
		maxRetries: 3,
		retryDelay: 2 * time.Second,
		httpClient: &http.Client{Timeout: 120 * time.Second},
	}
	if err := opts.Apply(s, options); err != nil {
		return nil, fmt.Errorf("speech: apply options: %w", err)
	}
	if s.baseURL == "" {
		return nil, fmt.Errorf("speech: service url is required")
	}
	if s.maxRetries < 1 {
		s.maxRetries = 1
	}
	return s, nil
}

// TranscribeAudio 语音转文字，失败时按配置重试
func (s *Service) TranscribeAudio(ctx context.Context, req *speech.ASRRequest) (*speech.ASRResponse, error) {
	if req == nil || req.AudioData == nil {
		return nil, ErrEmptyAudio
	}

	audio, err := io.ReadAll(req.AudioData)
	if err != nil {
		return nil, fmt.Errorf("read audio: %w", err)
	}
	if len(audio) == 0 {
		return nil, ErrEmptyAudio
	}

	started := time.Now()
	var lastErr error
	for attempt := 1; attempt <= s.maxRetries; attempt++ {
		text, err := s.transcribeOnce(ctx, req.Filename(), audio)
		if err == nil {
			slog.Info("audio transcribed",
				logx.Session(req.SessionID),
				slog.Int("bytes", len(audio)),
				slog.Int("attempt", attempt),
			)
			return &speech.ASRResponse{
				SessionID: req.SessionID,
				Text:      text,
				Attempts:  attempt,
				Duration:  time.Since(started),
				CreatedAt: time.Now(),
			}, nil
		}

		lastErr = err
		slog.Warn("transcription attempt failed",
			logx.Session(req.SessionID),
			slog.Int("attempt", attempt),
			slog.Int("max", s.maxRetries),
			logx.Error(err),
		)

		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if attempt < s.maxRetries {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(s.retryDelay):
			}
		}
	}

	return nil, fmt.Errorf("unable to transcribe audio after %d attempts: %w", s.maxRetries, lastErr)
}

// TranscribeBuffer 语音转文字（使用字节数组）
func (s *Service) TranscribeBuffer(ctx context.Context, sessionID string, audioData []byte, format string) (*speech.ASRResponse, error) {
	return s.TranscribeAudio(ctx, &speech.ASRRequest{
		SessionID: sessionID,
		AudioData: bytes.NewReader(audioData),
		Format:    format,
	})
}

func (s *Service) transcribeOnce(ctx context.Context, filename string, audio []byte) (string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return "", fmt.Errorf("create form file: %w", err)
	}
	if _, err := fw.Write(audio); err != nil {
		return "", fmt.Errorf("write audio data: %w", err)
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/transcribe", &buf)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("transcribe request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		msg := gjson.GetBytes(body, "error").String()
		if msg == "" {
			msg = "Unknown error"
		}
		return "", fmt.Errorf("error during transcription: %s", msg)
	}
	if !gjson.ValidBytes(body) {
		return "", fmt.Errorf("error during transcription: invalid response body")
	}
	return gjson.GetBytes(body, "text").String(), nil
}

// Health 查询转写服务健康状态
func (s *Service) Health(ctx context.Context) (*speech.ServiceHealth, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/health", nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("health request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return &speech.ServiceHealth{
		Status: gjson.GetBytes(body, "status").String(),
		Device: gjson.GetBytes(body, "device").String(),
	}, nil
}
