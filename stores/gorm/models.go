package gorm

import (
	"time"
)

// LinkedAccountModel is the GORM model for linked account records. The
// unique index on SteamID is what makes concurrent first-time inserts safe.
type LinkedAccountModel struct {
	SteamID     string    `gorm:"primaryKey;size:32;column:steamid"`
	PersonaName string    `gorm:"size:255"`
	RealName    string    `gorm:"size:255"`
	AvatarURL   string    `gorm:"size:1024"`
	ProfileURL  string    `gorm:"size:1024"`
	LocalRef    string    `gorm:"size:64;index"`
	CreatedAt   time.Time `gorm:"autoCreateTime"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime"`
}

func (LinkedAccountModel) TableName() string { return "steamauth_linked_accounts" }

// LocalAccountModel mirrors the host account fields this module reads.
// Hosts with their own users table can instead point the repository at a
// resolver; see NewAccountRepositoryWithResolver.
type LocalAccountModel struct {
	ID       string `gorm:"primaryKey;size:64"`
	Username string `gorm:"size:150"`
	Email    string `gorm:"size:254"`
	FullName string `gorm:"size:255"`
}

func (LocalAccountModel) TableName() string { return "steamauth_local_accounts" }
