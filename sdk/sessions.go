package tutor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/tanyagray/arabic-voice-agent-sub000/pkg/core"
	"github.com/tanyagray/arabic-voice-agent-sub000/pkg/core/types"
)

// SessionsService talks to the session endpoints of the backend.
type SessionsService struct {
	client *Client
}

// Create creates a new tutoring session for the authenticated user.
func (s *SessionsService) Create(ctx context.Context) (types.Session, error) {
	var session types.Session
	err := s.do(ctx, http.MethodPost, "/sessions", "", nil, &session)
	return session, err
}

type listResponse struct {
	Sessions []types.Session `json:"sessions"`
}

// List returns the user's sessions, most recent first.
func (s *SessionsService) List(ctx context.Context) ([]types.Session, error) {
	var list listResponse
	if err := s.do(ctx, http.MethodGet, "/sessions", "", nil, &list); err != nil {
		return nil, err
	}
	return list.Sessions, nil
}

type chatRequest struct {
	Message string `json:"message"`
}

type chatResponse struct {
	Text string `json:"text"`
}

// SendChat posts one user text message and returns the tutor's reply.
// The persisted rows for both sides arrive via the change feed.
func (s *SessionsService) SendChat(ctx context.Context, sessionID, message string) (string, error) {
	if strings.TrimSpace(message) == "" {
		return "", core.NewInvalidRequestError("message must not be empty")
	}
	body, err := json.Marshal(chatRequest{Message: message})
	if err != nil {
		return "", core.NewInvalidRequestError("encode chat request: " + err.Error())
	}
	var reply chatResponse
	path := "/sessions/" + sessionID + "/chat"
	if err := s.do(ctx, http.MethodPost, path, "application/json", bytes.NewReader(body), &reply); err != nil {
		return "", err
	}
	return reply.Text, nil
}

// UploadAudio posts one recorded clip for transcription. The server replies
// 204; the transcribed message lands through the change feed.
func (s *SessionsService) UploadAudio(ctx context.Context, sessionID string, audio io.Reader) error {
	var buf bytes.Buffer
	form := multipart.NewWriter(&buf)
	part, err := form.CreateFormFile("file", "recording.webm")
	if err != nil {
		return core.NewInvalidRequestError("build audio form: " + err.Error())
	}
	if _, err := io.Copy(part, audio); err != nil {
		return core.NewInvalidRequestError("read audio clip: " + err.Error())
	}
	if err := form.Close(); err != nil {
		return core.NewInvalidRequestError("finish audio form: " + err.Error())
	}
	path := "/sessions/" + sessionID + "/audio"
	return s.do(ctx, http.MethodPost, path, form.FormDataContentType(), &buf, nil)
}

// Context fetches the server-side session context.
func (s *SessionsService) Context(ctx context.Context, sessionID string) (types.SessionContext, error) {
	var sc types.SessionContext
	err := s.do(ctx, http.MethodGet, "/sessions/"+sessionID+"/context", "", nil, &sc)
	return sc, err
}

// UpdateContext patches the session context and returns the value the
// server settled on, which callers must treat as authoritative.
func (s *SessionsService) UpdateContext(ctx context.Context, sessionID string, patch types.ContextPatch) (types.SessionContext, error) {
	var sc types.SessionContext
	body, err := json.Marshal(patch)
	if err != nil {
		return sc, core.NewInvalidRequestError("encode context patch: " + err.Error())
	}
	err = s.do(ctx, http.MethodPatch, "/sessions/"+sessionID+"/context", "application/json", bytes.NewReader(body), &sc)
	return sc, err
}

// do issues one authenticated request and decodes a JSON response into out
// when out is non-nil. Non-2xx statuses become canonical upstream errors
// carrying the status code and a trimmed response body.
func (s *SessionsService) do(ctx context.Context, method, path, contentType string, body io.Reader, out any) error {
	url := s.client.endpoint(path)

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return core.NewInvalidRequestError("build request: " + err.Error())
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")

	token, err := s.client.tokens.Token(ctx)
	if err != nil {
		return core.NewAuthRequiredError("fetch access token: " + err.Error())
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := s.client.httpClient.Do(req)
	if err != nil {
		return &TransportError{Op: method + " " + path, URL: url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return upstreamError(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return core.NewUpstreamError(resp.StatusCode, "decode response: "+err.Error())
	}
	return nil
}

func upstreamError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	message := strings.TrimSpace(string(body))
	if message == "" {
		message = resp.Status
	}
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return core.NewAuthRequiredError(fmt.Sprintf("request rejected (%d): %s", resp.StatusCode, message))
	}
	return core.NewUpstreamError(resp.StatusCode, message)
}
