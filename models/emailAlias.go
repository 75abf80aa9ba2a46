package models

import (
	"context"
	"time"

	"gorm.io/gorm"
)

// EmailAlias maps an inbound recipient address to a company. Statements
// mailed to the alias are ingested into that company's ledger.
type EmailAlias struct {
	ID            int       `gorm:"primary_key" json:"id"`
	CompanyId     int       `gorm:"not null;uniqueIndex:uq_company_alias" json:"company_id"`
	OriginalEmail string    `gorm:"size:255;not null;index" json:"original_email"`
	AliasEmail    string    `gorm:"size:255;not null;uniqueIndex" json:"alias_email"`
	IsActive      bool      `gorm:"not null;default:true" json:"is_active"`
	CreatedAt     time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// FindActiveAliasByEmail resolves a recipient address to its alias record.
// Returns (nil, nil) when no active alias carries the address.
func FindActiveAliasByEmail(ctx context.Context, db *gorm.DB, aliasEmail string) (*EmailAlias, error) {
	var alias EmailAlias
	err := db.WithContext(ctx).
		Where("alias_email = ? AND is_active = ?", aliasEmail, true).
		First(&alias).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &alias, nil
}
