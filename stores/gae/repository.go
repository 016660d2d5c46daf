//go:build !wasm
// +build !wasm

// Package gae backs the steamauth account repository with Google Cloud
// Datastore.
package gae

import (
	"context"
	"errors"
	"time"

	"cloud.google.com/go/datastore"

	sa "github.com/dzteam/steamauth"
)

// Kind constants for Datastore entities
const (
	KindLinkedAccount = "SteamLinkedAccount"
	KindLocalAccount  = "SteamLocalAccount"
)

// linkedAccountEntity is the Datastore shape of a linked account record,
// keyed by the SteamID itself.
type linkedAccountEntity struct {
	PersonaName string    `datastore:"personaname,noindex"`
	RealName    string    `datastore:"realname,noindex"`
	AvatarURL   string    `datastore:"avatar_url,noindex"`
	ProfileURL  string    `datastore:"profile_url,noindex"`
	LocalRef    string    `datastore:"local_ref"`
	CreatedAt   time.Time `datastore:"created_at,noindex"`
	UpdatedAt   time.Time `datastore:"updated_at,noindex"`
}

type localAccountEntity struct {
	Username string `datastore:"username,noindex"`
	Email    string `datastore:"email,noindex"`
	FullName string `datastore:"full_name,noindex"`
}

// AccountRepository implements sa.AccountRepository on a datastore client.
type AccountRepository struct {
	client *datastore.Client
}

func NewAccountRepository(client *datastore.Client) *AccountRepository {
	return &AccountRepository{client: client}
}

func recordKey(id sa.SteamID) *datastore.Key {
	return datastore.NameKey(KindLinkedAccount, string(id), nil)
}

func accountKey(localRef string) *datastore.Key {
	return datastore.NameKey(KindLocalAccount, localRef, nil)
}

func (s *AccountRepository) FindLinkedAccount(ctx context.Context, id sa.SteamID) (*sa.LocalAccountSummary, error) {
	var record linkedAccountEntity
	err := s.client.Get(ctx, recordKey(id), &record)
	if errors.Is(err, datastore.ErrNoSuchEntity) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if record.LocalRef == "" {
		return nil, nil
	}

	var account localAccountEntity
	err = s.client.Get(ctx, accountKey(record.LocalRef), &account)
	if errors.Is(err, datastore.ErrNoSuchEntity) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &sa.LocalAccountSummary{
		ID:       record.LocalRef,
		Username: account.Username,
		Email:    account.Email,
		FullName: account.FullName,
	}, nil
}

func (s *AccountRepository) RecordExists(ctx context.Context, id sa.SteamID) (bool, error) {
	var record linkedAccountEntity
	err := s.client.Get(ctx, recordKey(id), &record)
	if errors.Is(err, datastore.ErrNoSuchEntity) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// InsertRecord runs in a transaction so two concurrent first logins for the
// same identity commit exactly one entity.
func (s *AccountRepository) InsertRecord(ctx context.Context, id sa.SteamID, profile *sa.ProfileSnapshot) error {
	if profile == nil {
		profile = &sa.ProfileSnapshot{}
	}
	_, err := s.client.RunInTransaction(ctx, func(tx *datastore.Transaction) error {
		var existing linkedAccountEntity
		err := tx.Get(recordKey(id), &existing)
		if err == nil {
			return nil
		}
		if !errors.Is(err, datastore.ErrNoSuchEntity) {
			return err
		}
		now := time.Now()
		_, err = tx.Put(recordKey(id), &linkedAccountEntity{
			PersonaName: profile.PersonaName,
			RealName:    profile.RealName,
			AvatarURL:   profile.AvatarURL,
			ProfileURL:  profile.ProfileURL,
			CreatedAt:   now,
			UpdatedAt:   now,
		})
		return err
	})
	return err
}

// LinkRecord writes the local reference transactionally and only when it is
// still empty.
func (s *AccountRepository) LinkRecord(ctx context.Context, id sa.SteamID, localRef string) error {
	_, err := s.client.RunInTransaction(ctx, func(tx *datastore.Transaction) error {
		var record linkedAccountEntity
		if err := tx.Get(recordKey(id), &record); err != nil {
			return err
		}
		if record.LocalRef != "" {
			return nil
		}
		record.LocalRef = localRef
		record.UpdatedAt = time.Now()
		_, err := tx.Put(recordKey(id), &record)
		return err
	})
	return err
}

// SaveLocalAccount mirrors a host account summary for FindLinkedAccount.
func (s *AccountRepository) SaveLocalAccount(ctx context.Context, summary *sa.LocalAccountSummary) error {
	_, err := s.client.Put(ctx, accountKey(summary.ID), &localAccountEntity{
		Username: summary.Username,
		Email:    summary.Email,
		FullName: summary.FullName,
	})
	return err
}
