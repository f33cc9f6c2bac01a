// Package tutor provides the Go client SDK for the tutoring backend.
//
// The SDK reconciles three asynchronous sources into one live transcript:
// HTTP-created chat history, the realtime message channel (a persistent
// websocket per session), and the streaming voice pipeline. Each concern is
// owned by one component: SessionsService for authenticated HTTP, Directory
// for the session list, Channel for the realtime connection, turns.Reducer
// for live voice turns, and CallController for chat/call mode transitions.
package tutor

import (
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/tanyagray/arabic-voice-agent-sub000/pkg/core"
)

const defaultBaseURL = "http://localhost:8000"

// Client is the main entry point for the SDK.
type Client struct {
	Sessions *SessionsService

	baseURL    string
	httpClient *http.Client
	tokens     TokenSource
	logger     *slog.Logger
}

// NewClient creates a new client. Without options it targets the local
// backend, carries no credential, and logs through slog.Default.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		baseURL: defaultBaseURL,
		tokens:  noToken{},
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.httpClient == nil {
		c.httpClient = newDefaultHTTPClient()
	}
	c.Sessions = &SessionsService{client: c}
	return c
}

// Logger returns the client logger.
func (c *Client) Logger() *slog.Logger {
	return c.logger
}

func (c *Client) endpoint(path string) string {
	return strings.TrimRight(c.baseURL, "/") + path
}

// websocketEndpoint rewrites the base URL scheme to ws(s) and appends path.
func (c *Client) websocketEndpoint(path string) (string, error) {
	u, err := url.Parse(strings.TrimRight(c.baseURL, "/") + path)
	if err != nil {
		return "", core.NewInvalidRequestError("invalid base URL")
	}
	switch strings.ToLower(strings.TrimSpace(u.Scheme)) {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
		// already a websocket scheme.
	default:
		return "", core.NewInvalidRequestError("base URL must use http(s) or ws(s)")
	}
	return u.String(), nil
}
