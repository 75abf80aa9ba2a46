package models

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type AttachmentStatus string

const (
	AttachmentUploaded   AttachmentStatus = "UPLOADED"
	AttachmentProcessed  AttachmentStatus = "PROCESSED"
	AttachmentFailed     AttachmentStatus = "FAILED"
	AttachmentRolledBack AttachmentStatus = "ROLLED_BACK"
)

// EmailAttachment tracks one statement file received by email. The content
// hash is unique so the same file mailed twice is refused the second time.
type EmailAttachment struct {
	ID           string           `gorm:"primary_key;size:36" json:"id"`
	EmailLogId   string           `gorm:"size:36;not null;index" json:"email_log_id"`
	Filename     string           `gorm:"size:255;not null" json:"filename"`
	FileHash     string           `gorm:"size:64;not null;uniqueIndex" json:"file_hash"`
	FileSize     int              `gorm:"not null;default:0" json:"file_size"`
	DetectedBank *string          `gorm:"size:50;default:null" json:"detected_bank"`
	Status       AttachmentStatus `gorm:"size:20;not null;default:'UPLOADED'" json:"status"`
	EntriesCount int              `gorm:"not null;default:0" json:"entries_count"`
	ErrorMessage *string          `gorm:"type:text;default:null" json:"error_message"`
	CreatedAt    time.Time        `gorm:"autoCreateTime" json:"created_at"`
	ProcessedAt  *time.Time       `gorm:"default:null" json:"processed_at"`
}

func (a *EmailAttachment) BeforeCreate(tx *gorm.DB) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	return nil
}

// FindAttachmentByHash returns (nil, nil) when the content hash is unseen.
func FindAttachmentByHash(ctx context.Context, db *gorm.DB, fileHash string) (*EmailAttachment, error) {
	var attachment EmailAttachment
	err := db.WithContext(ctx).
		Where("file_hash = ?", fileHash).
		First(&attachment).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &attachment, nil
}

func ListAttachmentsForLog(ctx context.Context, db *gorm.DB, emailLogId string) ([]*EmailAttachment, error) {
	var attachments []*EmailAttachment
	err := db.WithContext(ctx).
		Where("email_log_id = ?", emailLogId).
		Order("created_at ASC").
		Find(&attachments).Error
	if err != nil {
		return nil, err
	}
	return attachments, nil
}
