package client

import (
	"context"
	"errors"
	"fmt"
	"regexp"
)

// Provider failures. Vendor clients wrap these so callers can map them to
// user facing messages with errors.Is.
var (
	ErrNoImage      = errors.New("provider returned no image")
	ErrUnauthorized = errors.New("API key is invalid or expired")
	ErrRateLimited  = errors.New("too many requests, try again later")
	ErrUpstream     = errors.New("provider server error, try again later")
)

// Request is one background replacement / retouching call.
type Request struct {
	// ImageDataURL is the captured photo as a data:image/...;base64 URL.
	ImageDataURL string
	Prompt       string
	Model        string
}

// ImageTransformer is implemented by every AI vendor integration. The
// returned string is the processed photo as a base64 data URL.
type ImageTransformer interface {
	TransformImage(ctx context.Context, req Request) (string, error)
}

var dataURLPattern = regexp.MustCompile(`data:image/[^;]+;base64,[A-Za-z0-9+/=]+`)

// ExtractDataURL finds the first base64 image data URL in free text.
func ExtractDataURL(content string) (string, bool) {
	m := dataURLPattern.FindString(content)
	return m, m != ""
}

// CheckStatus maps an HTTP status to a provider error. body is included in
// the message, truncated.
func CheckStatus(code int, body []byte) error {
	if code >= 200 && code < 300 {
		return nil
	}
	msg := string(body)
	if len(msg) > 512 {
		msg = msg[:512] + "..."
	}
	switch {
	case code == 401 || code == 403:
		return fmt.Errorf("%w (status %d): %s", ErrUnauthorized, code, msg)
	case code == 429:
		return fmt.Errorf("%w (status %d): %s", ErrRateLimited, code, msg)
	case code >= 500:
		return fmt.Errorf("%w (status %d): %s", ErrUpstream, code, msg)
	default:
		return fmt.Errorf("server returned status %d: %s", code, msg)
	}
}
