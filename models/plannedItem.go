package models

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// PlannedItem is an expected cash movement not yet fully realized
// (invoice, cheque, note). SettledAmount and RemainingAmount are derived
// from the item's matches and mutated only by settlement recomputation.
type PlannedItem struct {
	ID              string          `gorm:"primary_key;size:36" json:"id"`
	CompanyId       int             `gorm:"index;not null" json:"company_id"`
	Type            PlannedType     `gorm:"not null;type:enum('INVOICE','CHEQUE','NOTE','PO','OTHER')" json:"type"`
	Direction       Direction       `gorm:"not null;type:enum('in','out')" json:"direction"`
	Amount          decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"amount"`
	DueDate         time.Time       `gorm:"not null;index" json:"due_date"`
	Counterparty    *string         `gorm:"size:255;default:null" json:"counterparty"`
	ReferenceNo     *string         `gorm:"size:255;default:null" json:"reference_no"`
	Status          PlannedStatus   `gorm:"not null;type:enum('OPEN','PARTIAL','SETTLED','CANCELLED');default:'OPEN'" json:"status"`
	SettledAmount   decimal.Decimal `gorm:"type:decimal(20,4);not null;default:0" json:"settled_amount"`
	RemainingAmount decimal.Decimal `gorm:"type:decimal(20,4);not null;default:0" json:"remaining_amount"`
	Source          string          `gorm:"size:64;default:null" json:"source"`
	CreatedAt       time.Time       `gorm:"autoCreateTime" json:"created_at"`
}

func (p *PlannedItem) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return nil
}

func (p PlannedItem) GetId() string {
	return p.ID
}

func GetPlannedItem(ctx context.Context, db *gorm.DB, companyId int, id string) (*PlannedItem, error) {
	var item PlannedItem
	err := db.WithContext(ctx).
		Where("company_id = ? AND id = ?", companyId, id).
		First(&item).Error
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func ListPlannedItems(ctx context.Context, db *gorm.DB, companyId int, statuses []PlannedStatus) ([]*PlannedItem, error) {
	dbCtx := db.WithContext(ctx).Where("company_id = ?", companyId)
	if len(statuses) > 0 {
		dbCtx = dbCtx.Where("status IN ?", statuses)
	}

	var items []*PlannedItem
	if err := dbCtx.Order("due_date ASC").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}
