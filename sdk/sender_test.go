package tutor

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
)

func TestChatSenderConfirmsOnSuccess(t *testing.T) {
	t.Parallel()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"text": "reply"})
	}))
	defer server.Close()

	client := NewClient(WithBaseURL(server.URL), WithTokenSource(StaticTokenSource("tok")))
	log := NewChatLog()
	sender := client.NewChatSender(log)

	reply, err := sender.Send(context.Background(), "s1", "hello")
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if reply != "reply" {
		t.Fatalf("reply=%q, want %q", reply, "reply")
	}

	entries := log.Entries()
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want user + tutor", len(entries))
	}
	if entries[0].State != SendConfirmed || !entries[0].IsUser {
		t.Fatalf("user entry=%+v", entries[0])
	}
	if entries[1].IsUser || entries[1].Text != "reply" {
		t.Fatalf("tutor entry=%+v", entries[1])
	}
}

func TestChatSenderMarksFailureVisible(t *testing.T) {
	t.Parallel()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model overloaded", http.StatusBadGateway)
	}))
	defer server.Close()

	client := NewClient(WithBaseURL(server.URL), WithTokenSource(StaticTokenSource("tok")))
	log := NewChatLog()
	sender := client.NewChatSender(log)

	if _, err := sender.Send(context.Background(), "s1", "hello"); err == nil {
		t.Fatalf("Send should surface the upstream failure")
	}

	entries := log.Entries()
	if len(entries) != 1 || entries[0].State != SendFailed {
		t.Fatalf("entries=%+v, want one failed entry", entries)
	}
}

func TestChatSenderDeadlineSurfacesError(t *testing.T) {
	t.Parallel()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Drain the body so the server's background read notices the
		// client disconnect and cancels the request context.
		io.Copy(io.Discard, r.Body)
		<-r.Context().Done()
	}))
	defer server.Close()

	client := NewClient(WithBaseURL(server.URL), WithTokenSource(StaticTokenSource("tok")))
	log := NewChatLog()
	sender := client.NewChatSender(log)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	// Nothing superseded this send; its timeout belongs to the caller.
	if _, err := sender.Send(ctx, "s1", "hello"); err == nil {
		t.Fatalf("a timed-out send must return the error, not swallow it")
	}

	entries := log.Entries()
	if len(entries) != 1 || entries[0].State != SendFailed {
		t.Fatalf("entries=%+v, want one failed entry", entries)
	}
}

func TestChatSenderNewSendCancelsInflight(t *testing.T) {
	t.Parallel()
	release := make(chan struct{})
	var calls sync.WaitGroup
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Message string `json:"message"`
		}
		json.NewDecoder(r.Body).Decode(&req)
		if req.Message == "slow" {
			select {
			case <-release:
			case <-r.Context().Done():
				return
			}
		}
		json.NewEncoder(w).Encode(map[string]string{"text": "reply to " + req.Message})
	}))
	defer server.Close()
	defer close(release)

	client := NewClient(WithBaseURL(server.URL), WithTokenSource(StaticTokenSource("tok")))
	log := NewChatLog()
	sender := client.NewChatSender(log)

	calls.Add(1)
	go func() {
		defer calls.Done()
		reply, err := sender.Send(context.Background(), "s1", "slow")
		if err != nil {
			t.Errorf("superseded send should swallow cancellation, got %v", err)
		}
		if reply != "" {
			t.Errorf("superseded send reply=%q, want empty", reply)
		}
	}()

	// Let the slow send reach the server before superseding it.
	waitFor(t, "pending entry", func() bool { return len(log.Entries()) == 1 })
	time.Sleep(20 * time.Millisecond)

	reply, err := sender.Send(context.Background(), "s1", "fast")
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if reply != "reply to fast" {
		t.Fatalf("reply=%q", reply)
	}
	calls.Wait()

	var slowState SendState
	for _, e := range log.Entries() {
		if e.Text == "slow" {
			slowState = e.State
		}
	}
	if slowState != SendFailed {
		t.Fatalf("slow entry state=%v, want failed", slowState)
	}
}
