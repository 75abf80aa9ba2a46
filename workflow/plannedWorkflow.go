package workflow

import (
	"context"
	"encoding/csv"
	"errors"
	"io"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"bitbucket.org/mmdatafocus/cashrecon_backend/config"
	"bitbucket.org/mmdatafocus/cashrecon_backend/models"
	"bitbucket.org/mmdatafocus/cashrecon_backend/utils"
)

// PlannedService owns planned obligation CRUD. Settlement state changes go
// through MatchService; this service only creates, lists, cancels and
// deletes the items themselves.
type PlannedService struct {
	DB     *gorm.DB
	Logger *logrus.Logger
}

func NewPlannedService(db *gorm.DB, logger *logrus.Logger) *PlannedService {
	return &PlannedService{DB: db, Logger: logger}
}

type PlannedItemCreateInput struct {
	Type         string          `json:"type" validate:"required"`
	Direction    string          `json:"direction" validate:"required,oneof=in out"`
	Amount       decimal.Decimal `json:"amount" validate:"required"`
	DueDate      time.Time       `json:"due_date" validate:"required"`
	Counterparty string          `json:"counterparty"`
	ReferenceNo  string          `json:"reference_no"`
}

// CreatePlannedItem records an expected movement. New items always start
// OPEN with the whole amount remaining.
func (s *PlannedService) CreatePlannedItem(ctx context.Context, companyId int, input PlannedItemCreateInput) (*models.PlannedItem, error) {
	if err := utils.ValidateStruct(input); err != nil {
		return nil, err
	}
	direction, err := models.ParseDirection(input.Direction)
	if err != nil {
		return nil, err
	}
	plannedType, err := models.ParsePlannedType(input.Type)
	if err != nil {
		return nil, err
	}
	if !input.Amount.IsPositive() {
		return nil, ErrInvalidAmount
	}

	item := &models.PlannedItem{
		CompanyId:       companyId,
		Type:            plannedType,
		Direction:       direction,
		Amount:          input.Amount,
		DueDate:         input.DueDate,
		Counterparty:    utils.NilIfEmpty(strings.TrimSpace(input.Counterparty)),
		ReferenceNo:     utils.NilIfEmpty(strings.TrimSpace(input.ReferenceNo)),
		Status:          models.PlannedStatusOpen,
		SettledAmount:   decimal.Zero,
		RemainingAmount: input.Amount,
		Source:          "manual",
	}

	tx := s.DB.WithContext(ctx).Begin()
	if err := tx.Create(item).Error; err != nil {
		tx.Rollback()
		config.LogError(s.Logger, "plannedWorkflow.go", "CreatePlannedItem", "Create", input, err)
		return nil, err
	}
	if err := tx.Commit().Error; err != nil {
		config.LogError(s.Logger, "plannedWorkflow.go", "CreatePlannedItem", "Commit", input, err)
		return nil, err
	}
	return item, nil
}

var csvPlannedColumns = []string{"type", "direction", "amount", "due_date", "counterparty"}

// ImportPlannedItemsCSV bulk-loads planned items. Row errors are collected
// and valid rows still land; the reference_no column is optional.
func (s *PlannedService) ImportPlannedItemsCSV(ctx context.Context, companyId int, r io.Reader) (*ImportSummary, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, errors.New("csv file is empty")
	}
	colIdx, err := csvColumnIndex(header, csvPlannedColumns)
	if err != nil {
		return nil, err
	}
	refIdx, hasRef := colIdx["reference_no"]

	summary := &ImportSummary{Errors: []RowError{}}

	for rowNum := 1; ; rowNum++ {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			summary.addError(RowError{Row: rowNum, Error: err.Error()})
			continue
		}

		plannedType, err := models.ParsePlannedType(record[colIdx["type"]])
		if err != nil {
			summary.addError(RowError{Row: rowNum, Error: err.Error()})
			continue
		}
		direction, err := models.ParseDirection(record[colIdx["direction"]])
		if err != nil {
			summary.addError(RowError{Row: rowNum, Error: err.Error()})
			continue
		}
		amount, err := utils.ParseDecimal(strings.ReplaceAll(record[colIdx["amount"]], ",", "."))
		if err != nil || !amount.IsPositive() {
			summary.addError(RowError{Row: rowNum, Error: "invalid amount"})
			continue
		}
		dueDate, err := time.Parse("2006-01-02", strings.TrimSpace(record[colIdx["due_date"]]))
		if err != nil {
			summary.addError(RowError{Row: rowNum, Error: "invalid due_date, expected YYYY-MM-DD"})
			continue
		}

		reference := ""
		if hasRef {
			reference = strings.TrimSpace(record[refIdx])
		}

		item := &models.PlannedItem{
			CompanyId:       companyId,
			Type:            plannedType,
			Direction:       direction,
			Amount:          amount,
			DueDate:         dueDate,
			Counterparty:    utils.NilIfEmpty(strings.TrimSpace(record[colIdx["counterparty"]])),
			ReferenceNo:     utils.NilIfEmpty(reference),
			Status:          models.PlannedStatusOpen,
			SettledAmount:   decimal.Zero,
			RemainingAmount: amount,
			Source:          "csv",
		}

		tx := s.DB.WithContext(ctx).Begin()
		if err := tx.Create(item).Error; err != nil {
			tx.Rollback()
			summary.addError(RowError{Row: rowNum, Error: err.Error()})
			continue
		}
		if err := tx.Commit().Error; err != nil {
			summary.addError(RowError{Row: rowNum, Error: err.Error()})
			continue
		}
		summary.Inserted++
	}

	return summary, nil
}

// ListPlannedItems returns the company's items ordered by due date. With no
// statuses given it lists the live ones, cancelled items only show up when
// asked for.
func (s *PlannedService) ListPlannedItems(ctx context.Context, companyId int, statuses []models.PlannedStatus) ([]*models.PlannedItem, error) {
	if len(statuses) == 0 {
		statuses = []models.PlannedStatus{
			models.PlannedStatusOpen, models.PlannedStatusPartial, models.PlannedStatusSettled,
		}
	}
	return models.ListPlannedItems(ctx, s.DB, companyId, statuses)
}

// CancelPlannedItem marks an item CANCELLED. The status is sticky: later
// recomputes keep the aggregates current but never resurrect the item.
func (s *PlannedService) CancelPlannedItem(ctx context.Context, companyId int, plannedItemId string) (*models.PlannedItem, error) {
	item, err := models.GetPlannedItem(ctx, s.DB, companyId, plannedItemId)
	if err == gorm.ErrRecordNotFound {
		return nil, ErrPlannedItemNotFound
	}
	if err != nil {
		return nil, err
	}

	item.Status = models.PlannedStatusCancelled
	err = s.DB.WithContext(ctx).Model(&models.PlannedItem{}).
		Where("company_id = ? AND id = ?", companyId, plannedItemId).
		Update("status", models.PlannedStatusCancelled).Error
	if err != nil {
		config.LogError(s.Logger, "plannedWorkflow.go", "CancelPlannedItem", "Update", plannedItemId, err)
		return nil, err
	}
	return item, nil
}

// DeletePlannedItem removes an item and its matches in one transaction.
func (s *PlannedService) DeletePlannedItem(ctx context.Context, companyId int, plannedItemId string) error {
	_, err := models.GetPlannedItem(ctx, s.DB, companyId, plannedItemId)
	if err == gorm.ErrRecordNotFound {
		return ErrPlannedItemNotFound
	}
	if err != nil {
		return err
	}

	tx := s.DB.WithContext(ctx).Begin()
	if err := tx.Delete(&models.PlannedMatch{}, "company_id = ? AND planned_item_id = ?", companyId, plannedItemId).Error; err != nil {
		tx.Rollback()
		config.LogError(s.Logger, "plannedWorkflow.go", "DeletePlannedItem", "DeleteMatches", plannedItemId, err)
		return err
	}
	if err := tx.Delete(&models.PlannedItem{}, "company_id = ? AND id = ?", companyId, plannedItemId).Error; err != nil {
		tx.Rollback()
		config.LogError(s.Logger, "plannedWorkflow.go", "DeletePlannedItem", "DeleteItem", plannedItemId, err)
		return err
	}
	if err := tx.Commit().Error; err != nil {
		config.LogError(s.Logger, "plannedWorkflow.go", "DeletePlannedItem", "Commit", plannedItemId, err)
		return err
	}
	return nil
}
