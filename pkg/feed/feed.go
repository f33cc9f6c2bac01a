// Package feed maintains the persisted transcript for the active session:
// an ordered snapshot fetched up front, then inserts tailed from the
// database change stream. The feed is the sole owner of the persisted
// message list; live voice messages are owned elsewhere.
package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/jackc/pgx/v5"

	"github.com/tanyagray/arabic-voice-agent-sub000/pkg/core/types"
)

// Config configures the change feed.
type Config struct {
	// ConnString is a libpq-style or URL connection string.
	ConnString string
	// Table holds transcript messages. Default "transcript_messages".
	Table string
	// Channel is the NOTIFY channel carrying inserted rows as JSON.
	// Default "transcript_messages".
	Channel string
}

func (c Config) withDefaults() Config {
	if c.Table == "" {
		c.Table = "transcript_messages"
	}
	if c.Channel == "" {
		c.Channel = "transcript_messages"
	}
	return c
}

// Feed tails transcript message inserts for one session at a time.
type Feed struct {
	cfg    Config
	logger *slog.Logger

	connect func(ctx context.Context, connString string) (*pgx.Conn, error)

	mu        sync.Mutex
	sessionID string
	messages  []types.TranscriptMessage
	seen      map[string]struct{}
	onInsert  func(types.TranscriptMessage)
}

// New creates a feed. A nil logger falls back to slog.Default.
func New(cfg Config, logger *slog.Logger) *Feed {
	if logger == nil {
		logger = slog.Default()
	}
	return &Feed{
		cfg:     cfg.withDefaults(),
		logger:  logger,
		connect: pgx.Connect,
		seen:    make(map[string]struct{}),
	}
}

// OnInsert registers a callback invoked for every newly applied message,
// snapshot rows included. Must be set before Run.
func (f *Feed) OnInsert(fn func(types.TranscriptMessage)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.onInsert = fn
}

// Messages returns a copy of the persisted message list, ordered by
// created_at ascending with arrival order breaking ties.
func (f *Feed) Messages() []types.TranscriptMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]types.TranscriptMessage(nil), f.messages...)
}

// Run connects, loads the ordered snapshot for sessionID and then applies
// insert notifications until ctx is canceled. Any prior session state is
// discarded. LISTEN is issued before the snapshot so inserts racing the
// snapshot are not lost; duplicates are dropped by message id.
func (f *Feed) Run(ctx context.Context, sessionID string) error {
	f.reset(sessionID)

	conn, err := f.connect(ctx, f.cfg.ConnString)
	if err != nil {
		return fmt.Errorf("connect change feed: %w", err)
	}
	defer conn.Close(context.Background())

	if _, err := conn.Exec(ctx, "listen "+pgx.Identifier{f.cfg.Channel}.Sanitize()); err != nil {
		return fmt.Errorf("listen %s: %w", f.cfg.Channel, err)
	}

	if err := f.snapshot(ctx, conn, sessionID); err != nil {
		return err
	}

	for {
		notification, err := conn.WaitForNotification(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("wait for notification: %w", err)
		}
		f.applyPayload([]byte(notification.Payload))
	}
}

func (f *Feed) reset(sessionID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sessionID = sessionID
	f.messages = nil
	f.seen = make(map[string]struct{})
}

func (f *Feed) snapshot(ctx context.Context, conn *pgx.Conn, sessionID string) error {
	query := fmt.Sprintf(
		`select message_id, session_id, user_id, message_source, message_kind,
		        message_content, created_at, updated_at
		 from %s where session_id = $1 order by created_at asc`,
		pgx.Identifier{f.cfg.Table}.Sanitize(),
	)
	rows, err := conn.Query(ctx, query, sessionID)
	if err != nil {
		return fmt.Errorf("snapshot %s: %w", f.cfg.Table, err)
	}
	defer rows.Close()

	for rows.Next() {
		var m types.TranscriptMessage
		if err := rows.Scan(
			&m.MessageID, &m.SessionID, &m.UserID, &m.MessageSource,
			&m.MessageKind, &m.MessageContent, &m.CreatedAt, &m.UpdatedAt,
		); err != nil {
			return fmt.Errorf("scan transcript row: %w", err)
		}
		f.apply(m)
	}
	return rows.Err()
}

// applyPayload decodes one NOTIFY payload (the inserted row as JSON) and
// applies it. Rows for other sessions and malformed payloads are dropped.
func (f *Feed) applyPayload(payload []byte) {
	var m types.TranscriptMessage
	if err := json.Unmarshal(payload, &m); err != nil {
		f.logger.Warn("dropping malformed feed payload", "error", err)
		return
	}
	f.apply(m)
}

func (f *Feed) apply(m types.TranscriptMessage) {
	f.mu.Lock()
	if m.SessionID != f.sessionID {
		f.mu.Unlock()
		return
	}
	if _, dup := f.seen[m.MessageID]; dup {
		f.mu.Unlock()
		return
	}
	f.seen[m.MessageID] = struct{}{}
	f.messages = append(f.messages, m)
	fn := f.onInsert
	f.mu.Unlock()

	if fn != nil {
		fn(m)
	}
}
