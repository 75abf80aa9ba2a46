package main

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"bitbucket.org/mmdatafocus/cashrecon_backend/models"
	"bitbucket.org/mmdatafocus/cashrecon_backend/statement"
	"bitbucket.org/mmdatafocus/cashrecon_backend/utils"
	"bitbucket.org/mmdatafocus/cashrecon_backend/workflow"
)

const dateLayout = "2006-01-02"

func registerRoutes(r *gin.Engine) {
	// The webhook authenticates by alias, not by company header, and the
	// bank list is public.
	r.POST("/email/webhook", emailWebhookHandler)
	r.GET("/statements/banks", listBanksHandler)

	api := r.Group("/", companyScope())

	api.POST("/statements/upload", uploadStatementHandler)

	api.GET("/entries", listEntriesHandler)
	api.POST("/entries", createEntryHandler)
	api.POST("/entries/upload-csv", uploadEntriesCSVHandler)
	api.PATCH("/entries/:id/category", updateEntryCategoryHandler)
	api.DELETE("/entries/:id", deleteEntryHandler)
	api.GET("/entries/:id/matches", listEntryMatchesHandler)

	api.GET("/planned", listPlannedHandler)
	api.POST("/planned", createPlannedHandler)
	api.POST("/planned/upload-csv", uploadPlannedCSVHandler)
	api.POST("/planned/:id/cancel", cancelPlannedHandler)
	api.DELETE("/planned/:id", deletePlannedHandler)
	api.GET("/planned/:id/suggestions", suggestMatchesHandler)

	api.GET("/planned/:id/matches", listItemMatchesHandler)

	api.GET("/matches", listMatchesHandler)
	api.POST("/matches", createMatchHandler)
	api.DELETE("/matches/:id", deleteMatchHandler)

	api.POST("/email/aliases", createEmailAliasHandler)
	api.GET("/email/logs", listEmailLogsHandler)
	api.GET("/email/logs/:id/attachments", listEmailAttachmentsHandler)
	api.POST("/email/attachments/:id/rollback", rollbackAttachmentHandler)
}

// companyScope requires an x-company-id header on every request and makes
// it available to the workflow layer through the request context.
func companyScope() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := strings.TrimSpace(c.GetHeader("x-company-id"))
		if raw == "" {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "x-company-id header is required"})
			return
		}
		companyId, err := strconv.Atoi(raw)
		if err != nil || companyId <= 0 {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "x-company-id must be a positive integer"})
			return
		}
		c.Request = c.Request.WithContext(utils.SetCompanyIdInContext(c.Request.Context(), companyId))
		c.Next()
	}
}

func companyId(c *gin.Context) int {
	id, _ := utils.GetCompanyIdFromContext(c.Request.Context())
	return id
}

// statusForError maps workflow errors to HTTP codes. Unknown errors are
// treated as internal and the message is not leaked.
func statusForError(err error) (int, string) {
	var ve validator.ValidationErrors
	switch {
	case errors.As(err, &ve):
		fields := utils.ProcessValidationErrors(err)
		parts := make([]string, 0, len(fields))
		for k, v := range fields {
			parts = append(parts, k+": "+v)
		}
		return http.StatusBadRequest, strings.Join(parts, "; ")
	case errors.Is(err, workflow.ErrPlannedItemNotFound),
		errors.Is(err, workflow.ErrLedgerEntryNotFound),
		errors.Is(err, workflow.ErrMatchNotFound),
		errors.Is(err, workflow.ErrEmailLogNotFound),
		errors.Is(err, workflow.ErrAttachmentNotFound):
		return http.StatusNotFound, err.Error()
	case errors.Is(err, workflow.ErrPairAlreadyMatched),
		errors.Is(err, workflow.ErrDuplicateEntry),
		errors.Is(err, workflow.ErrAliasExists):
		return http.StatusConflict, err.Error()
	case errors.Is(err, workflow.ErrItemClosedForMatching),
		errors.Is(err, workflow.ErrDirectionMismatch),
		errors.Is(err, workflow.ErrAmountExceedsRemaining),
		errors.Is(err, workflow.ErrFutureDate),
		errors.Is(err, workflow.ErrInvalidAmount),
		errors.Is(err, workflow.ErrEmptySheet),
		errors.Is(err, workflow.ErrUnknownAlias),
		errors.Is(err, models.ErrInvalidDirection),
		errors.Is(err, models.ErrInvalidPlannedType),
		errors.Is(err, statement.ErrNoProfileMatched),
		errors.Is(err, statement.ErrUnknownProfile):
		return http.StatusBadRequest, err.Error()
	}
	return http.StatusInternalServerError, "internal server error"
}

func abortWithError(c *gin.Context, err error) {
	status, msg := statusForError(err)
	if status == http.StatusInternalServerError {
		_ = c.Error(err)
	}
	c.JSON(status, gin.H{"error": msg})
}

func uploadStatementHandler(c *gin.Context) {
	file, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "multipart field 'file' is required"})
		return
	}
	f, err := file.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "could not open uploaded file"})
		return
	}
	defer f.Close()

	bankTag := strings.TrimSpace(c.PostForm("bank"))
	summary, err := app.Load().importer.ImportStatement(c.Request.Context(), companyId(c), f, bankTag)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

func listEntriesHandler(c *gin.Context) {
	var startDate, endDate *time.Time
	if raw := c.Query("start_date"); raw != "" {
		t, err := time.Parse(dateLayout, raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "start_date must be YYYY-MM-DD"})
			return
		}
		startDate = &t
	}
	if raw := c.Query("end_date"); raw != "" {
		t, err := time.Parse(dateLayout, raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "end_date must be YYYY-MM-DD"})
			return
		}
		endDate = &t
	}
	entries, err := app.Load().importer.ListEntries(c.Request.Context(), companyId(c), startDate, endDate)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, entries)
}

type entryCreateRequest struct {
	Date        string          `json:"date"`
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
	Direction   string          `json:"direction"`
	Category    string          `json:"category"`
}

func createEntryHandler(c *gin.Context) {
	var req entryCreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}
	date, err := time.Parse(dateLayout, req.Date)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "date must be YYYY-MM-DD"})
		return
	}
	entry, err := app.Load().importer.CreateEntry(c.Request.Context(), companyId(c), workflow.EntryCreateInput{
		Date:        date,
		Description: req.Description,
		Amount:      req.Amount,
		Direction:   req.Direction,
		Category:    req.Category,
	})
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, entry)
}

func uploadEntriesCSVHandler(c *gin.Context) {
	file, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "multipart field 'file' is required"})
		return
	}
	f, err := file.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "could not open uploaded file"})
		return
	}
	defer f.Close()

	summary, err := app.Load().importer.ImportEntriesCSV(c.Request.Context(), companyId(c), f)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

func updateEntryCategoryHandler(c *gin.Context) {
	var req struct {
		Category string `json:"category"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}
	if strings.TrimSpace(req.Category) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "category is required"})
		return
	}
	entry, err := app.Load().importer.UpdateEntryCategory(c.Request.Context(), companyId(c), c.Param("id"), req.Category)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, entry)
}

func deleteEntryHandler(c *gin.Context) {
	if err := app.Load().importer.DeleteEntry(c.Request.Context(), companyId(c), c.Param("id")); err != nil {
		abortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func listEntryMatchesHandler(c *gin.Context) {
	details, err := app.Load().importer.ListEntryMatches(c.Request.Context(), companyId(c), c.Param("id"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, details)
}

func listPlannedHandler(c *gin.Context) {
	var statuses []models.PlannedStatus
	for _, raw := range c.QueryArray("status") {
		for _, part := range strings.Split(raw, ",") {
			part = strings.ToUpper(strings.TrimSpace(part))
			if part == "" {
				continue
			}
			switch status := models.PlannedStatus(part); status {
			case models.PlannedStatusOpen, models.PlannedStatusPartial,
				models.PlannedStatusSettled, models.PlannedStatusCancelled:
				statuses = append(statuses, status)
			default:
				c.JSON(http.StatusBadRequest, gin.H{"error": "unknown status: " + part})
				return
			}
		}
	}
	items, err := app.Load().planner.ListPlannedItems(c.Request.Context(), companyId(c), statuses)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, items)
}

type plannedCreateRequest struct {
	Type         string          `json:"type"`
	Direction    string          `json:"direction"`
	Amount       decimal.Decimal `json:"amount"`
	DueDate      string          `json:"due_date"`
	Counterparty string          `json:"counterparty"`
	ReferenceNo  string          `json:"reference_no"`
}

func createPlannedHandler(c *gin.Context) {
	var req plannedCreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}
	dueDate, err := time.Parse(dateLayout, req.DueDate)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "due_date must be YYYY-MM-DD"})
		return
	}
	item, err := app.Load().planner.CreatePlannedItem(c.Request.Context(), companyId(c), workflow.PlannedItemCreateInput{
		Type:         req.Type,
		Direction:    req.Direction,
		Amount:       req.Amount,
		DueDate:      dueDate,
		Counterparty: req.Counterparty,
		ReferenceNo:  req.ReferenceNo,
	})
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, item)
}

func uploadPlannedCSVHandler(c *gin.Context) {
	file, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "multipart field 'file' is required"})
		return
	}
	f, err := file.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "could not open uploaded file"})
		return
	}
	defer f.Close()

	summary, err := app.Load().planner.ImportPlannedItemsCSV(c.Request.Context(), companyId(c), f)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

func cancelPlannedHandler(c *gin.Context) {
	item, err := app.Load().planner.CancelPlannedItem(c.Request.Context(), companyId(c), c.Param("id"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, item)
}

func deletePlannedHandler(c *gin.Context) {
	if err := app.Load().planner.DeletePlannedItem(c.Request.Context(), companyId(c), c.Param("id")); err != nil {
		abortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func suggestMatchesHandler(c *gin.Context) {
	suggestions, err := app.Load().matcher.SuggestMatches(c.Request.Context(), companyId(c), c.Param("id"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, suggestions)
}

func listMatchesHandler(c *gin.Context) {
	details, err := app.Load().matcher.ListMatches(c.Request.Context(), companyId(c))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, details)
}

func createMatchHandler(c *gin.Context) {
	var input workflow.MatchCreateInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}
	result, err := app.Load().matcher.CreateMatch(c.Request.Context(), companyId(c), input)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, result)
}

func listItemMatchesHandler(c *gin.Context) {
	links, err := app.Load().matcher.ListItemMatches(c.Request.Context(), companyId(c), c.Param("id"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, links)
}

func listBanksHandler(c *gin.Context) {
	profiles := statement.Profiles()
	banks := make([]gin.H, 0, len(profiles))
	for _, p := range profiles {
		banks = append(banks, gin.H{"tag": p.Tag, "name": p.Name})
	}
	c.JSON(http.StatusOK, gin.H{"banks": banks})
}

func emailWebhookHandler(c *gin.Context) {
	toEmail := strings.TrimSpace(c.PostForm("to_email"))
	if toEmail == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "to_email is required"})
		return
	}

	form, err := c.MultipartForm()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid multipart form"})
		return
	}

	input := workflow.InboundEmailInput{
		ToEmail:   toEmail,
		FromEmail: c.PostForm("from_email"),
		Subject:   c.PostForm("subject"),
	}
	for _, header := range form.File["attachments"] {
		f, err := header.Open()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "could not open attachment " + header.Filename})
			return
		}
		content, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "could not read attachment " + header.Filename})
			return
		}
		input.Attachments = append(input.Attachments, workflow.InboundAttachment{
			Filename: header.Filename,
			Content:  content,
		})
	}

	result, err := app.Load().email.ProcessInboundEmail(c.Request.Context(), input)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func createEmailAliasHandler(c *gin.Context) {
	var input workflow.EmailAliasCreateInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}
	alias, err := app.Load().email.CreateEmailAlias(c.Request.Context(), companyId(c), input)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, alias)
}

func listEmailLogsHandler(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		limit = n
	}
	logs, err := app.Load().email.ListLogs(c.Request.Context(), companyId(c), limit)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, logs)
}

func listEmailAttachmentsHandler(c *gin.Context) {
	attachments, err := app.Load().email.ListAttachments(c.Request.Context(), companyId(c), c.Param("id"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, attachments)
}

func rollbackAttachmentHandler(c *gin.Context) {
	result, err := app.Load().email.RollbackAttachment(c.Request.Context(), companyId(c), c.Param("id"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func deleteMatchHandler(c *gin.Context) {
	matchId, err := strconv.Atoi(c.Param("id"))
	if err != nil || matchId <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "match id must be a positive integer"})
		return
	}
	result, err := app.Load().matcher.DeleteMatch(c.Request.Context(), companyId(c), matchId)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}
