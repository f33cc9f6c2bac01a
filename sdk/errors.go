package tutor

import (
	"fmt"
	"net/url"

	"github.com/tanyagray/arabic-voice-agent-sub000/pkg/core"
)

// SDK-level error type that wraps core errors
type Error = core.Error

// Error types
const (
	ErrAuthRequired   = core.ErrAuthRequired
	ErrNotConnected   = core.ErrNotConnected
	ErrUpstream       = core.ErrUpstream
	ErrInvalidRequest = core.ErrInvalidRequest
)

// Error constructors
var (
	NewAuthRequiredError   = core.NewAuthRequiredError
	NewNotConnectedError   = core.NewNotConnectedError
	NewUpstreamError       = core.NewUpstreamError
	NewInvalidRequestError = core.NewInvalidRequestError
)

// TransportError represents transport-level failures (DNS, timeouts,
// connection reset, websocket dial errors) while talking to the backend.
//
// Use errors.As(err, &TransportError{}) to distinguish transport failures
// from canonical API errors (*core.Error).
type TransportError struct {
	Op  string
	URL string
	Err error
}

func (e *TransportError) Error() string {
	switch {
	case e == nil:
		return ""
	case e.Op != "" && e.URL != "":
		return fmt.Sprintf("transport error during %s %s: %v", e.Op, redactURL(e.URL), e.Err)
	case e.Op != "":
		return fmt.Sprintf("transport error during %s: %v", e.Op, e.Err)
	default:
		return fmt.Sprintf("transport error: %v", e.Err)
	}
}

func (e *TransportError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// redactURL strips credentials carried in the URL (the channel token rides
// in a query parameter) before the URL reaches a log line or error string.
func redactURL(raw string) string {
	if raw == "" {
		return raw
	}
	parsed, err := url.Parse(raw)
	if err != nil || parsed == nil {
		return raw
	}
	parsed.User = nil
	query := parsed.Query()
	if query.Has("token") {
		query.Set("token", "REDACTED")
		parsed.RawQuery = query.Encode()
	}
	return parsed.String()
}
