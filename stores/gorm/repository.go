// Package gorm backs the steamauth account repository with a relational
// database through GORM.
package gorm

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	sa "github.com/dzteam/steamauth"
)

// AutoMigrate creates the steamauth tables.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&LinkedAccountModel{}, &LocalAccountModel{})
}

// Resolver maps a linked local reference to the account summary. The default
// reads the bundled LocalAccountModel table.
type Resolver func(ctx context.Context, db *gorm.DB, localRef string) (*sa.LocalAccountSummary, error)

// AccountRepository implements sa.AccountRepository on a *gorm.DB.
type AccountRepository struct {
	db      *gorm.DB
	resolve Resolver
}

func NewAccountRepository(db *gorm.DB) *AccountRepository {
	return &AccountRepository{db: db, resolve: defaultResolver}
}

// NewAccountRepositoryWithResolver lets hosts resolve local references
// against their own users table instead of the bundled one.
func NewAccountRepositoryWithResolver(db *gorm.DB, resolve Resolver) *AccountRepository {
	return &AccountRepository{db: db, resolve: resolve}
}

func defaultResolver(ctx context.Context, db *gorm.DB, localRef string) (*sa.LocalAccountSummary, error) {
	var account LocalAccountModel
	err := db.WithContext(ctx).First(&account, "id = ?", localRef).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &sa.LocalAccountSummary{
		ID:       account.ID,
		Username: account.Username,
		Email:    account.Email,
		FullName: account.FullName,
	}, nil
}

func (s *AccountRepository) FindLinkedAccount(ctx context.Context, id sa.SteamID) (*sa.LocalAccountSummary, error) {
	var record LinkedAccountModel
	err := s.db.WithContext(ctx).First(&record, "steamid = ?", string(id)).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if record.LocalRef == "" {
		return nil, nil
	}
	return s.resolve(ctx, s.db, record.LocalRef)
}

func (s *AccountRepository) RecordExists(ctx context.Context, id sa.SteamID) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&LinkedAccountModel{}).
		Where("steamid = ?", string(id)).Count(&count).Error
	return count > 0, err
}

// InsertRecord relies on the primary key for idempotence: a conflicting
// insert does nothing instead of erroring, so two concurrent first logins
// leave exactly one row.
func (s *AccountRepository) InsertRecord(ctx context.Context, id sa.SteamID, profile *sa.ProfileSnapshot) error {
	if profile == nil {
		profile = &sa.ProfileSnapshot{}
	}
	record := LinkedAccountModel{
		SteamID:     string(id),
		PersonaName: profile.PersonaName,
		RealName:    profile.RealName,
		AvatarURL:   profile.AvatarURL,
		ProfileURL:  profile.ProfileURL,
	}
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&record).Error
}

// LinkRecord writes the local reference only where it is still empty, so a
// set reference is never overwritten.
func (s *AccountRepository) LinkRecord(ctx context.Context, id sa.SteamID, localRef string) error {
	return s.db.WithContext(ctx).Model(&LinkedAccountModel{}).
		Where("steamid = ? AND (local_ref = '' OR local_ref IS NULL)", string(id)).
		Updates(map[string]any{"local_ref": localRef, "updated_at": time.Now()}).Error
}

// SaveLocalAccount upserts a host account summary into the bundled table.
func (s *AccountRepository) SaveLocalAccount(ctx context.Context, summary *sa.LocalAccountSummary) error {
	model := LocalAccountModel{
		ID:       summary.ID,
		Username: summary.Username,
		Email:    summary.Email,
		FullName: summary.FullName,
	}
	return s.db.WithContext(ctx).Save(&model).Error
}
