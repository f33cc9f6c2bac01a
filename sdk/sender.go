package tutor

import (
	"context"
	"sync"
)

// ChatSender drives optimistic chat sends over HTTP. Each send appends a
// pending entry before the request and reconciles it when the request
// resolves. A new send cancels the one still in flight; the superseded
// send is marked failed and its cancellation error is swallowed.
type ChatSender struct {
	sessions *SessionsService
	log      *ChatLog

	mu      sync.Mutex
	current *inflightSend
}

type inflightSend struct {
	cancel     context.CancelFunc
	superseded bool // set, under the sender's mu, by the send replacing this one
}

// NewChatSender creates a sender writing into log.
func (c *Client) NewChatSender(log *ChatLog) *ChatSender {
	return &ChatSender{sessions: c.Sessions, log: log}
}

// Send posts text to the chat endpoint for sessionID. On success the
// pending entry is confirmed and the tutor's reply appended; the reply is
// returned. A send superseded by a newer one returns "" with a nil error;
// every other failure, the caller's deadline expiring included, is
// returned to the caller.
func (s *ChatSender) Send(ctx context.Context, sessionID, text string) (string, error) {
	id := s.log.AppendPending(text)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	me := &inflightSend{cancel: cancel}

	s.mu.Lock()
	if s.current != nil {
		s.current.superseded = true
		s.current.cancel()
	}
	s.current = me
	s.mu.Unlock()

	reply, err := s.sessions.SendChat(ctx, sessionID, text)

	s.mu.Lock()
	superseded := me.superseded
	if s.current == me {
		s.current = nil
	}
	s.mu.Unlock()

	if err != nil {
		if superseded {
			s.log.Fail(id, "superseded by a newer message")
			return "", nil
		}
		s.log.Fail(id, err.Error())
		return "", err
	}

	s.log.Confirm(id)
	s.log.AppendAgent(reply)
	return reply, nil
}
