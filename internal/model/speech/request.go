package speech

import (
	"io"
)

// ASRRequest 语音识别请求
type ASRRequest struct {
	SessionID string    `json:"sessionId"`
	AudioData io.Reader `json:"-"`
	Format    string    `json:"format"` // wav, mp3, webm, etc.
}

// Filename returns the upload file name used for the multipart part.
func (r *ASRRequest) Filename() string {
	format := r.Format
	if format == "" {
		format = "wav"
	}
	return "audio." + format
}
