package tutor

import (
	"log/slog"
	"net/http"
	"strings"
)

// ClientOption is a function that configures a Client.
type ClientOption func(*Client)

// WithBaseURL sets the backend base URL. Websocket endpoints are derived
// from it by scheme rewrite.
func WithBaseURL(url string) ClientOption {
	return func(c *Client) {
		if strings.TrimSpace(url) != "" {
			c.baseURL = url
		}
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = client
	}
}

// WithTokenSource sets the bearer credential source used by HTTP requests
// and websocket connections.
func WithTokenSource(source TokenSource) ClientOption {
	return func(c *Client) {
		if source != nil {
			c.tokens = source
		}
	}
}

// WithLogger sets the logger for the client and everything built from it.
func WithLogger(l *slog.Logger) ClientOption {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}
