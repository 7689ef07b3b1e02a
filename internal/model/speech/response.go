package speech

import "time"

// ASRResponse 语音识别响应
type ASRResponse struct {
	SessionID string        `json:"sessionId"`
	Text      string        `json:"text"`
	Attempts  int           `json:"attempts"`
	Duration  time.Duration `json:"duration"`
	CreatedAt time.Time     `json:"createdAt"`
}

// ServiceHealth mirrors the transcription service health endpoint.
type ServiceHealth struct {
	Status string `json:"status"`
	Device string `json:"device,omitempty"`
}
