// Package fs provides file-backed implementations of the steamauth store
// contracts. Records are plain JSON files, one per SteamID, which is enough
// for development and small sites; production hosts should use the gorm or
// gae backends.
package fs

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	sa "github.com/dzteam/steamauth"
)

// AccountRepository stores linked account records and local account
// summaries as JSON files under StoragePath.
type AccountRepository struct {
	StoragePath string

	// One process-wide mutex is enough here: the race the contract guards
	// against is two concurrent first logins for the same identity, and the
	// fs backend never runs multi-process.
	mu sync.Mutex
}

func NewAccountRepository(storagePath string) *AccountRepository {
	return &AccountRepository{StoragePath: storagePath}
}

func (s *AccountRepository) recordPath(id sa.SteamID) string {
	return filepath.Join(s.StoragePath, "steamids", fmt.Sprintf("%s.json", id))
}

func (s *AccountRepository) accountPath(localRef string) string {
	return filepath.Join(s.StoragePath, "accounts", fmt.Sprintf("%s.json", localRef))
}

func (s *AccountRepository) readRecord(id sa.SteamID) (*sa.LinkedAccount, error) {
	data, err := os.ReadFile(s.recordPath(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var record sa.LinkedAccount
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, err
	}
	return &record, nil
}

func (s *AccountRepository) writeRecord(record *sa.LinkedAccount) error {
	path := s.recordPath(record.SteamID)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func (s *AccountRepository) FindLinkedAccount(ctx context.Context, id sa.SteamID) (*sa.LocalAccountSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, err := s.readRecord(id)
	if err != nil {
		return nil, err
	}
	if record == nil || record.LocalRef == "" {
		return nil, nil
	}

	data, err := os.ReadFile(s.accountPath(record.LocalRef))
	if err != nil {
		if os.IsNotExist(err) {
			// Linked to an account the host no longer mirrors; treat as
			// unlinked rather than failing the login.
			return nil, nil
		}
		return nil, err
	}
	var summary sa.LocalAccountSummary
	if err := json.Unmarshal(data, &summary); err != nil {
		return nil, err
	}
	return &summary, nil
}

func (s *AccountRepository) RecordExists(ctx context.Context, id sa.SteamID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, err := s.readRecord(id)
	if err != nil {
		return false, err
	}
	return record != nil, nil
}

// InsertRecord is insert-if-absent: the second of two concurrent inserts for
// the same SteamID is a no-op, never a duplicate or an error.
func (s *AccountRepository) InsertRecord(ctx context.Context, id sa.SteamID, profile *sa.ProfileSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, err := s.readRecord(id)
	if err != nil {
		return err
	}
	if existing != nil {
		return nil
	}
	if profile == nil {
		profile = &sa.ProfileSnapshot{}
	}
	now := time.Now()
	return s.writeRecord(&sa.LinkedAccount{
		SteamID:     id,
		PersonaName: profile.PersonaName,
		RealName:    profile.RealName,
		AvatarURL:   profile.AvatarURL,
		ProfileURL:  profile.ProfileURL,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
}

// LinkRecord sets the local reference once. Re-linking an already-linked
// record is ignored so the reference can never be rebound.
func (s *AccountRepository) LinkRecord(ctx context.Context, id sa.SteamID, localRef string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, err := s.readRecord(id)
	if err != nil {
		return err
	}
	if record == nil {
		return fmt.Errorf("no record for steamid %s", id)
	}
	if record.LocalRef != "" {
		return nil
	}
	record.LocalRef = localRef
	record.UpdatedAt = time.Now()
	return s.writeRecord(record)
}

// SaveLocalAccount mirrors a host account summary so FindLinkedAccount can
// resolve linked records. Hosts with a real account store use the gorm/gae
// backends instead.
func (s *AccountRepository) SaveLocalAccount(summary *sa.LocalAccountSummary) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	path := s.accountPath(summary.ID)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// GetRecord returns the raw linked account record, mostly for tests and
// admin tooling.
func (s *AccountRepository) GetRecord(ctx context.Context, id sa.SteamID) (*sa.LinkedAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, err := s.readRecord(id)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, fmt.Errorf("record not found")
	}
	return record, nil
}
