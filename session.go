package steamauth

import (
	"context"
	"sync"

	"github.com/alexedwards/scs/v2"
)

// Session keys used by SessionPendingStore. Two scalar slots rather than one
// encoded value so no type registration is needed on the session codec.
const (
	sessionKeySteamID = "steamauth.steamid"
	sessionKeyLinked  = "steamauth.linked"
)

// SessionPendingStore keeps the pending link in the user's scs session. The
// request context must have passed through the manager's LoadAndSave
// middleware, which is how scs scopes values to one browser session.
type SessionPendingStore struct {
	Session *scs.SessionManager
}

func NewSessionPendingStore(sm *scs.SessionManager) *SessionPendingStore {
	return &SessionPendingStore{Session: sm}
}

func (s *SessionPendingStore) Get(ctx context.Context) (*PendingLink, error) {
	id := s.Session.GetString(ctx, sessionKeySteamID)
	if id == "" {
		return nil, nil
	}
	return &PendingLink{SteamID: SteamID(id), Linked: s.Session.GetBool(ctx, sessionKeyLinked)}, nil
}

func (s *SessionPendingStore) Put(ctx context.Context, link PendingLink) error {
	s.Session.Put(ctx, sessionKeySteamID, string(link.SteamID))
	s.Session.Put(ctx, sessionKeyLinked, link.Linked)
	return nil
}

func (s *SessionPendingStore) Clear(ctx context.Context) error {
	s.Session.Remove(ctx, sessionKeySteamID)
	s.Session.Remove(ctx, sessionKeyLinked)
	return nil
}

// MemoryPendingStore holds a single pending link in memory. Useful in tests
// and in hosts whose authenticate and after-login phases share one request.
type MemoryPendingStore struct {
	mu   sync.Mutex
	link *PendingLink
}

func (m *MemoryPendingStore) Get(ctx context.Context) (*PendingLink, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.link == nil {
		return nil, nil
	}
	link := *m.link
	return &link, nil
}

func (m *MemoryPendingStore) Put(ctx context.Context, link PendingLink) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.link = &link
	return nil
}

func (m *MemoryPendingStore) Clear(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.link = nil
	return nil
}
