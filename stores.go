package steamauth

import (
	"context"
	"time"
)

// ProfileSnapshot holds the public profile facts fetched for a SteamID.
// Everything except PersonaName is optional; a zero snapshot is what the
// degraded (fetch failed) path works with.
type ProfileSnapshot struct {
	PersonaName string `json:"personaname"`
	RealName    string `json:"realname,omitempty"`
	AvatarURL   string `json:"avatar_url,omitempty"`
	ProfileURL  string `json:"profile_url,omitempty"`
}

// LinkedAccount is the persistent row keyed by SteamID. LocalRef starts
// empty and is written exactly once, by AccountRepository.LinkRecord, after
// the host confirms the freshly provisioned local account.
type LinkedAccount struct {
	SteamID     SteamID   `json:"steamid"`
	PersonaName string    `json:"personaname"`
	RealName    string    `json:"realname,omitempty"`
	AvatarURL   string    `json:"avatar_url,omitempty"`
	ProfileURL  string    `json:"profile_url,omitempty"`
	LocalRef    string    `json:"local_ref,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// LocalAccountSummary is the slice of a host account this module reads for
// returning identities. The host owns the account itself; we never mutate it.
type LocalAccountSummary struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	FullName string `json:"full_name"`
}

// AccountRepository maps SteamIDs to local account records. Implementations
// live under stores/ (fs, gorm, gae).
//
// Contract: at most one record per SteamID. InsertRecord is insert-if-absent
// and must be race-safe (two concurrent first logins with the same identity
// produce exactly one row). LinkRecord sets the local reference on an
// unlinked record; once set, the reference is never overwritten.
type AccountRepository interface {
	// FindLinkedAccount resolves a SteamID to the local account its record
	// references. Returns (nil, nil) when there is no record or the record
	// is not linked yet.
	FindLinkedAccount(ctx context.Context, id SteamID) (*LocalAccountSummary, error)

	// RecordExists reports whether a record exists for the SteamID,
	// linked or not.
	RecordExists(ctx context.Context, id SteamID) (bool, error)

	// InsertRecord creates the record from a profile snapshot. Inserting an
	// already-present SteamID is a no-op, not an error.
	InsertRecord(ctx context.Context, id SteamID, profile *ProfileSnapshot) error

	// LinkRecord points the record at a local account. Linking an
	// already-linked record is a no-op.
	LinkRecord(ctx context.Context, id SteamID, localRef string) error
}

// ProfileFetcher fetches public profile data for a SteamID. The steamapi
// package provides the Steam Web API implementation; failures are non-fatal
// to authentication (the caller degrades to the bare identifier).
type ProfileFetcher interface {
	Fetch(ctx context.Context, id SteamID) (*ProfileSnapshot, error)
}

// PendingLink carries a verified-but-possibly-unlinked identity across the
// login boundary: Authenticate writes it, FinalizeLogin reads and clears it.
type PendingLink struct {
	SteamID SteamID `json:"steamid"`
	Linked  bool    `json:"linked"`
}

// PendingLinkStore is a session-scoped key/value slot for the PendingLink.
// Implementations must scope values to one user session; see
// SessionPendingStore (scs) and stores/redis.
type PendingLinkStore interface {
	// Get returns the pending link for the current session, or (nil, nil)
	// when none is set.
	Get(ctx context.Context) (*PendingLink, error)

	// Put replaces the pending link for the current session.
	Put(ctx context.Context, link PendingLink) error

	// Clear removes the pending link. Clearing an empty slot is a no-op.
	Clear(ctx context.Context) error
}
