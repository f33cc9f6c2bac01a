package tutor

import (
	"context"
	"sync"

	"github.com/tanyagray/arabic-voice-agent-sub000/pkg/core"
	"github.com/tanyagray/arabic-voice-agent-sub000/pkg/core/types"
)

// Directory owns the user's session list, the active session selection and
// the active session's server-side context.
type Directory struct {
	client *Client

	mu       sync.Mutex
	sessions []types.Session
	activeID string
	context  types.SessionContext
	loaded   bool
}

// NewDirectory creates an empty directory.
func (c *Client) NewDirectory() *Directory {
	return &Directory{client: c}
}

// Load fetches the session list and selects the first session as active.
// A user with no sessions gets one created for them, so Load never
// succeeds with an empty directory.
func (d *Directory) Load(ctx context.Context) error {
	sessions, err := d.client.Sessions.List(ctx)
	if err != nil {
		return err
	}

	if len(sessions) == 0 {
		created, err := d.client.Sessions.Create(ctx)
		if err != nil {
			return err
		}
		// Re-list once so ordering matches the server's view; fall back
		// to the created session if the listing lags the insert.
		sessions, err = d.client.Sessions.List(ctx)
		if err != nil {
			return err
		}
		if len(sessions) == 0 {
			sessions = []types.Session{created}
		}
	}

	d.mu.Lock()
	d.sessions = sessions
	d.activeID = sessions[0].SessionID
	d.loaded = true
	d.mu.Unlock()

	return d.RefreshContext(ctx)
}

// Sessions returns a copy of the loaded session list.
func (d *Directory) Sessions() []types.Session {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]types.Session(nil), d.sessions...)
}

// ActiveID returns the active session id, empty before Load.
func (d *Directory) ActiveID() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.activeID
}

// SetActive selects a session from the loaded list by id.
func (d *Directory) SetActive(ctx context.Context, sessionID string) error {
	d.mu.Lock()
	found := false
	for _, s := range d.sessions {
		if s.SessionID == sessionID {
			found = true
			break
		}
	}
	if !found {
		d.mu.Unlock()
		return core.NewInvalidRequestError("unknown session id")
	}
	d.activeID = sessionID
	d.mu.Unlock()

	return d.RefreshContext(ctx)
}

// CreateSession creates a new session, appends it to the list and makes it
// active.
func (d *Directory) CreateSession(ctx context.Context) (types.Session, error) {
	created, err := d.client.Sessions.Create(ctx)
	if err != nil {
		return types.Session{}, err
	}

	d.mu.Lock()
	d.sessions = append([]types.Session{created}, d.sessions...)
	d.activeID = created.SessionID
	d.mu.Unlock()

	if err := d.RefreshContext(ctx); err != nil {
		return created, err
	}
	return created, nil
}

// Context returns the cached context of the active session.
func (d *Directory) Context() types.SessionContext {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.context
}

// RefreshContext re-fetches the active session's context.
func (d *Directory) RefreshContext(ctx context.Context) error {
	d.mu.Lock()
	id := d.activeID
	d.mu.Unlock()
	if id == "" {
		return core.NewInvalidRequestError("no active session")
	}

	sc, err := d.client.Sessions.Context(ctx, id)
	if err != nil {
		return err
	}
	d.mu.Lock()
	if d.activeID == id {
		d.context = sc
	}
	d.mu.Unlock()
	return nil
}

// SetAudioEnabled patches the audio flag on the active session. The cached
// context takes whatever value the server returns, which may differ from
// the requested one.
func (d *Directory) SetAudioEnabled(ctx context.Context, enabled bool) (bool, error) {
	d.mu.Lock()
	id := d.activeID
	d.mu.Unlock()
	if id == "" {
		return false, core.NewInvalidRequestError("no active session")
	}

	sc, err := d.client.Sessions.UpdateContext(ctx, id, types.ContextPatch{AudioEnabled: &enabled})
	if err != nil {
		return false, err
	}
	d.mu.Lock()
	if d.activeID == id {
		d.context = sc
	}
	d.mu.Unlock()
	return sc.AudioEnabled, nil
}

// ToggleAudio flips the audio flag and returns the server's new value.
func (d *Directory) ToggleAudio(ctx context.Context) (bool, error) {
	d.mu.Lock()
	current := d.context.AudioEnabled
	d.mu.Unlock()
	return d.SetAudioEnabled(ctx, !current)
}
