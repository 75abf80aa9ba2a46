package workflow

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"bitbucket.org/mmdatafocus/cashrecon_backend/config"
	"bitbucket.org/mmdatafocus/cashrecon_backend/models"
	"bitbucket.org/mmdatafocus/cashrecon_backend/utils"
)

var (
	ErrUnknownAlias       = errors.New("no active alias for recipient address")
	ErrAliasExists        = errors.New("email alias already exists")
	ErrEmailLogNotFound   = errors.New("email log not found")
	ErrAttachmentNotFound = errors.New("attachment not found")
)

// EmailIngestService processes statements that arrive by email. An inbound
// webhook call carries the raw attachments; the recipient alias decides
// which company's ledger they land in.
type EmailIngestService struct {
	DB       *gorm.DB
	Logger   *logrus.Logger
	Importer *ImportService

	// AliasDomain is the domain part of every generated alias address.
	AliasDomain string
}

func NewEmailIngestService(db *gorm.DB, logger *logrus.Logger, importer *ImportService, aliasDomain string) *EmailIngestService {
	return &EmailIngestService{DB: db, Logger: logger, Importer: importer, AliasDomain: aliasDomain}
}

type InboundAttachment struct {
	Filename string
	Content  []byte
}

type InboundEmailInput struct {
	ToEmail   string
	FromEmail string
	Subject   string

	Attachments []InboundAttachment
}

type AttachmentResult struct {
	Filename     string `json:"filename"`
	Success      bool   `json:"success"`
	AttachmentId string `json:"attachment_id,omitempty"`
	Bank         string `json:"bank,omitempty"`
	Inserted     int    `json:"inserted"`
	Duplicates   int    `json:"duplicates"`
	Error        string `json:"error,omitempty"`
}

type InboundEmailResult struct {
	EmailLogId           string             `json:"email_log_id"`
	CompanyId            int                `json:"company_id"`
	Status               string             `json:"status"`
	AttachmentsProcessed int                `json:"attachments_processed"`
	TotalInserted        int                `json:"total_inserted"`
	Results              []AttachmentResult `json:"results"`
}

var statementExtensions = []string{".xlsx", ".xls", ".xlsm", ".xltx", ".xltm"}

// isStatementFile reports whether the attachment name looks like a
// spreadsheet the statement parsers can read.
func isStatementFile(filename string) bool {
	name := strings.ToLower(strings.TrimSpace(filename))
	if name == "" {
		return false
	}
	for _, ext := range statementExtensions {
		if strings.HasSuffix(name, ext) {
			return true
		}
	}
	return false
}

// fileDigest is the content identity of an attachment, hex SHA-256.
func fileDigest(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}

// aliasEmailFor derives the alias address from the user's own address:
// the part before the @ moves onto the ingest domain, lowercased.
func aliasEmailFor(originalEmail, domain string) string {
	local := strings.ToLower(strings.TrimSpace(originalEmail))
	if at := strings.Index(local, "@"); at >= 0 {
		local = local[:at]
	}
	return local + "@" + domain
}

// ProcessInboundEmail runs one webhook delivery end to end: log the email,
// resolve the alias to a company, ingest every spreadsheet attachment
// through the statement pipeline. An attachment whose content hash was seen
// before is refused; a parse failure fails that attachment only.
func (s *EmailIngestService) ProcessInboundEmail(ctx context.Context, input InboundEmailInput) (*InboundEmailResult, error) {
	log := &models.EmailIngestLog{
		ToEmail:   strings.ToLower(strings.TrimSpace(input.ToEmail)),
		FromEmail: strings.TrimSpace(input.FromEmail),
		Subject:   input.Subject,
		Status:    models.EmailIngestPending,
	}
	if err := s.DB.WithContext(ctx).Create(log).Error; err != nil {
		config.LogError(s.Logger, "emailIngestWorkflow.go", "ProcessInboundEmail", "CreateLog", input.ToEmail, err)
		return nil, err
	}

	alias, err := models.FindActiveAliasByEmail(ctx, s.DB, log.ToEmail)
	if err != nil {
		config.LogError(s.Logger, "emailIngestWorkflow.go", "ProcessInboundEmail", "FindActiveAliasByEmail", log.ToEmail, err)
		s.failLog(ctx, log, err.Error())
		return nil, err
	}
	if alias == nil {
		s.failLog(ctx, log, "no active alias for "+log.ToEmail)
		return nil, ErrUnknownAlias
	}

	company, err := models.GetCompanyById(ctx, s.DB, alias.CompanyId)
	if err == gorm.ErrRecordNotFound {
		s.failLog(ctx, log, "alias points at a missing company")
		return nil, ErrUnknownAlias
	}
	if err != nil {
		config.LogError(s.Logger, "emailIngestWorkflow.go", "ProcessInboundEmail", "GetCompanyById", alias.CompanyId, err)
		s.failLog(ctx, log, err.Error())
		return nil, err
	}

	if err := s.DB.WithContext(ctx).Model(log).Updates(map[string]interface{}{
		"company_id": company.ID,
		"status":     models.EmailIngestProcessing,
	}).Error; err != nil {
		config.LogError(s.Logger, "emailIngestWorkflow.go", "ProcessInboundEmail", "UpdateLog", log.ID, err)
		return nil, err
	}

	result := &InboundEmailResult{
		EmailLogId: log.ID,
		CompanyId:  company.ID,
		Results:    []AttachmentResult{},
	}

	for _, attachment := range input.Attachments {
		if !isStatementFile(attachment.Filename) {
			continue
		}
		result.Results = append(result.Results, s.processAttachment(ctx, log, company.ID, attachment))
	}

	anySuccess := false
	for _, r := range result.Results {
		if r.Success {
			anySuccess = true
			result.AttachmentsProcessed++
			result.TotalInserted += r.Inserted
		}
	}

	now := time.Now()
	if anySuccess {
		result.Status = string(models.EmailIngestSuccess)
		err = s.DB.WithContext(ctx).Model(log).Updates(map[string]interface{}{
			"status":       models.EmailIngestSuccess,
			"processed_at": now,
		}).Error
	} else {
		result.Status = string(models.EmailIngestFailed)
		err = s.DB.WithContext(ctx).Model(log).Updates(map[string]interface{}{
			"status":        models.EmailIngestFailed,
			"error_message": "no statement attachments processed",
		}).Error
	}
	if err != nil {
		config.LogError(s.Logger, "emailIngestWorkflow.go", "ProcessInboundEmail", "FinalizeLog", log.ID, err)
		return nil, err
	}

	return result, nil
}

func (s *EmailIngestService) processAttachment(ctx context.Context, log *models.EmailIngestLog, companyId int, attachment InboundAttachment) AttachmentResult {
	hash := fileDigest(attachment.Content)

	existing, err := models.FindAttachmentByHash(ctx, s.DB, hash)
	if err != nil {
		config.LogError(s.Logger, "emailIngestWorkflow.go", "processAttachment", "FindAttachmentByHash", attachment.Filename, err)
		return AttachmentResult{Filename: attachment.Filename, Error: err.Error()}
	}
	if existing != nil {
		return AttachmentResult{
			Filename:     attachment.Filename,
			AttachmentId: existing.ID,
			Error:        "duplicate file, already processed",
		}
	}

	record := &models.EmailAttachment{
		EmailLogId: log.ID,
		Filename:   attachment.Filename,
		FileHash:   hash,
		FileSize:   len(attachment.Content),
		Status:     models.AttachmentUploaded,
	}
	if err := s.DB.WithContext(ctx).Create(record).Error; err != nil {
		config.LogError(s.Logger, "emailIngestWorkflow.go", "processAttachment", "CreateAttachment", attachment.Filename, err)
		return AttachmentResult{Filename: attachment.Filename, Error: err.Error()}
	}

	summary, err := s.Importer.importStatement(ctx, companyId, bytes.NewReader(attachment.Content), "", &record.ID)
	if err != nil {
		msg := err.Error()
		if updErr := s.DB.WithContext(ctx).Model(record).Updates(map[string]interface{}{
			"status":        models.AttachmentFailed,
			"error_message": msg,
		}).Error; updErr != nil {
			config.LogError(s.Logger, "emailIngestWorkflow.go", "processAttachment", "MarkFailed", record.ID, updErr)
		}
		return AttachmentResult{Filename: attachment.Filename, AttachmentId: record.ID, Error: msg}
	}

	now := time.Now()
	if err := s.DB.WithContext(ctx).Model(record).Updates(map[string]interface{}{
		"detected_bank": summary.Bank,
		"status":        models.AttachmentProcessed,
		"entries_count": summary.Inserted,
		"processed_at":  now,
	}).Error; err != nil {
		config.LogError(s.Logger, "emailIngestWorkflow.go", "processAttachment", "MarkProcessed", record.ID, err)
	}

	return AttachmentResult{
		Filename:     attachment.Filename,
		Success:      true,
		AttachmentId: record.ID,
		Bank:         summary.Bank,
		Inserted:     summary.Inserted,
		Duplicates:   summary.Duplicates,
	}
}

func (s *EmailIngestService) failLog(ctx context.Context, log *models.EmailIngestLog, message string) {
	err := s.DB.WithContext(ctx).Model(log).Updates(map[string]interface{}{
		"status":        models.EmailIngestFailed,
		"error_message": message,
	}).Error
	if err != nil {
		config.LogError(s.Logger, "emailIngestWorkflow.go", "failLog", "UpdateLog", log.ID, err)
	}
}

type EmailAliasCreateInput struct {
	OriginalEmail string `json:"original_email" validate:"required,email"`
}

// CreateEmailAlias registers the company's ingest address, derived from the
// user's own address on the configured domain.
func (s *EmailIngestService) CreateEmailAlias(ctx context.Context, companyId int, input EmailAliasCreateInput) (*models.EmailAlias, error) {
	if err := utils.ValidateStruct(input); err != nil {
		return nil, err
	}

	alias := &models.EmailAlias{
		CompanyId:     companyId,
		OriginalEmail: strings.TrimSpace(input.OriginalEmail),
		AliasEmail:    aliasEmailFor(input.OriginalEmail, s.AliasDomain),
		IsActive:      true,
	}

	tx := s.DB.WithContext(ctx).Begin()
	if err := tx.Create(alias).Error; err != nil {
		tx.Rollback()
		if isUniqueViolation(err) {
			return nil, ErrAliasExists
		}
		config.LogError(s.Logger, "emailIngestWorkflow.go", "CreateEmailAlias", "Create", alias.AliasEmail, err)
		return nil, err
	}
	if err := tx.Commit().Error; err != nil {
		config.LogError(s.Logger, "emailIngestWorkflow.go", "CreateEmailAlias", "Commit", alias.AliasEmail, err)
		return nil, err
	}
	return alias, nil
}

// ListLogs returns the company's most recent inbound emails.
func (s *EmailIngestService) ListLogs(ctx context.Context, companyId int, limit int) ([]*models.EmailIngestLog, error) {
	if limit <= 0 {
		limit = 50
	}
	return models.ListEmailIngestLogs(ctx, s.DB, companyId, limit)
}

// ListAttachments returns the attachments of one company-owned email log.
func (s *EmailIngestService) ListAttachments(ctx context.Context, companyId int, emailLogId string) ([]*models.EmailAttachment, error) {
	if _, err := utils.FetchModel[models.EmailIngestLog](ctx, s.DB, companyId, emailLogId); err != nil {
		if err == utils.ErrorRecordNotFound {
			return nil, ErrEmailLogNotFound
		}
		return nil, err
	}
	return models.ListAttachmentsForLog(ctx, s.DB, emailLogId)
}

type RollbackResult struct {
	AttachmentId   string `json:"attachment_id"`
	EntriesDeleted int    `json:"entries_deleted"`
}

// RollbackAttachment removes every ledger entry an attachment produced,
// with their matches, in one transaction, then recomputes the planned items
// those matches touched. The attachment keeps its hash so the same file
// cannot be re-ingested afterwards.
func (s *EmailIngestService) RollbackAttachment(ctx context.Context, companyId int, attachmentId string) (*RollbackResult, error) {
	var attachment models.EmailAttachment
	err := s.DB.WithContext(ctx).
		Joins("JOIN email_ingest_logs l ON l.id = email_attachments.email_log_id").
		Where("email_attachments.id = ? AND l.company_id = ?", attachmentId, companyId).
		First(&attachment).Error
	if err == gorm.ErrRecordNotFound {
		return nil, ErrAttachmentNotFound
	}
	if err != nil {
		config.LogError(s.Logger, "emailIngestWorkflow.go", "RollbackAttachment", "GetAttachment", attachmentId, err)
		return nil, err
	}

	var entries []*models.LedgerEntry
	err = s.DB.WithContext(ctx).
		Where("company_id = ? AND source_id = ?", companyId, attachmentId).
		Find(&entries).Error
	if err != nil {
		config.LogError(s.Logger, "emailIngestWorkflow.go", "RollbackAttachment", "ListEntries", attachmentId, err)
		return nil, err
	}

	entryIds := make([]string, 0, len(entries))
	for _, entry := range entries {
		entryIds = append(entryIds, entry.ID)
	}

	tx := s.DB.WithContext(ctx).Begin()

	itemIds := []string{}
	if len(entryIds) > 0 {
		var matches []*models.PlannedMatch
		if err := tx.Where("company_id = ? AND ledger_entry_id IN (?)", companyId, entryIds).Find(&matches).Error; err != nil {
			tx.Rollback()
			config.LogError(s.Logger, "emailIngestWorkflow.go", "RollbackAttachment", "ListMatches", attachmentId, err)
			return nil, err
		}
		seen := make(map[string]bool)
		for _, match := range matches {
			if !seen[match.PlannedItemId] {
				seen[match.PlannedItemId] = true
				itemIds = append(itemIds, match.PlannedItemId)
			}
		}

		if len(matches) > 0 {
			if err := tx.Delete(&models.PlannedMatch{}, "company_id = ? AND ledger_entry_id IN (?)", companyId, entryIds).Error; err != nil {
				tx.Rollback()
				config.LogError(s.Logger, "emailIngestWorkflow.go", "RollbackAttachment", "DeleteMatches", attachmentId, err)
				return nil, err
			}
		}
		if err := tx.Delete(&models.LedgerEntry{}, "company_id = ? AND source_id = ?", companyId, attachmentId).Error; err != nil {
			tx.Rollback()
			config.LogError(s.Logger, "emailIngestWorkflow.go", "RollbackAttachment", "DeleteEntries", attachmentId, err)
			return nil, err
		}
	}

	for _, itemId := range itemIds {
		if _, err := s.Importer.Matcher.recomputeInTx(tx, companyId, itemId); err != nil {
			tx.Rollback()
			return nil, err
		}
	}

	if err := tx.Model(&models.EmailAttachment{}).
		Where("id = ?", attachment.ID).
		Updates(map[string]interface{}{
			"status":        models.AttachmentRolledBack,
			"entries_count": 0,
		}).Error; err != nil {
		tx.Rollback()
		config.LogError(s.Logger, "emailIngestWorkflow.go", "RollbackAttachment", "MarkRolledBack", attachmentId, err)
		return nil, err
	}

	if err := tx.Commit().Error; err != nil {
		config.LogError(s.Logger, "emailIngestWorkflow.go", "RollbackAttachment", "Commit", attachmentId, err)
		return nil, err
	}

	return &RollbackResult{AttachmentId: attachment.ID, EntriesDeleted: len(entryIds)}, nil
}
