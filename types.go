package hubgen

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"
)

type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

type Notifier interface {
	PostMessage(ctx context.Context, channel string, message string) error
}

// Generator is a text-generation or image-captioning backend.
type Generator interface {
	Name() string
	Generate(ctx context.Context, req Request) (Response, error)
}

// Image represents an image input for captioning requests.
type Image struct {
	// Path is the filesystem path to an image file.
	Path string `json:"path,omitempty"`
	// Data is raw image bytes. If both Path and Data are set, Data takes precedence.
	Data []byte `json:"-"`
	// MIMEType is sniffed from the bytes when empty.
	MIMEType string `json:"mime_type,omitempty"`
}

// Bytes returns the raw image bytes, reading Path when Data is empty.
func (img Image) Bytes() ([]byte, error) {
	if len(img.Data) > 0 {
		return img.Data, nil
	}
	if img.Path == "" {
		return nil, fmt.Errorf("%w: image has neither path nor data", ErrImageLoadFailed)
	}
	b, err := os.ReadFile(img.Path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrImageLoadFailed, err)
	}
	if len(b) == 0 {
		return nil, fmt.Errorf("%w: %s is empty", ErrImageLoadFailed, img.Path)
	}
	return b, nil
}

// ContentType returns MIMEType or sniffs it from data.
func (img Image) ContentType(data []byte) string {
	if img.MIMEType != "" {
		return img.MIMEType
	}
	return http.DetectContentType(data)
}

// Request is a single generation call.
type Request struct {
	ModelID string           `json:"model_id"`
	Prompt  string           `json:"prompt"`
	Images  []Image          `json:"images,omitempty"`
	Params  GenerationParams `json:"params"`
}

// HasImages reports whether the request is a captioning request.
func (r Request) HasImages() bool {
	return len(r.Images) > 0
}

// Response is the raw, un-postprocessed backend output.
type Response struct {
	Text         string        `json:"text"`
	ModelID      string        `json:"model_id,omitempty"`
	FinishReason string        `json:"finish_reason,omitempty"`
	TokenCount   int           `json:"token_count,omitempty"`
	Latency      time.Duration `json:"latency,omitempty"`
}
