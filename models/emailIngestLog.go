package models

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type EmailIngestStatus string

const (
	EmailIngestPending    EmailIngestStatus = "PENDING"
	EmailIngestProcessing EmailIngestStatus = "PROCESSING"
	EmailIngestSuccess    EmailIngestStatus = "SUCCESS"
	EmailIngestFailed     EmailIngestStatus = "FAILED"
)

// EmailIngestLog is the audit record of one inbound email. A row is written
// before any processing starts so failed deliveries stay visible.
type EmailIngestLog struct {
	ID           string            `gorm:"primary_key;size:36" json:"id"`
	ToEmail      string            `gorm:"size:255;not null;index" json:"to_email"`
	FromEmail    string            `gorm:"size:255;default:null" json:"from_email"`
	Subject      string            `gorm:"type:text" json:"subject"`
	Status       EmailIngestStatus `gorm:"size:20;not null;default:'PENDING'" json:"status"`
	ErrorMessage *string           `gorm:"type:text;default:null" json:"error_message"`
	CompanyId    *int              `gorm:"index;default:null" json:"company_id"`
	ReceivedAt   time.Time         `gorm:"autoCreateTime" json:"received_at"`
	ProcessedAt  *time.Time        `gorm:"default:null" json:"processed_at"`
}

func (l *EmailIngestLog) BeforeCreate(tx *gorm.DB) error {
	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	return nil
}

func ListEmailIngestLogs(ctx context.Context, db *gorm.DB, companyId int, limit int) ([]*EmailIngestLog, error) {
	var logs []*EmailIngestLog
	err := db.WithContext(ctx).
		Where("company_id = ?", companyId).
		Order("received_at DESC").
		Limit(limit).
		Find(&logs).Error
	if err != nil {
		return nil, err
	}
	return logs, nil
}
