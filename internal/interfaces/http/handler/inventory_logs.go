package handler

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	appledger "github.com/pcshop/backend/internal/application/ledger"
	"github.com/pcshop/backend/internal/domain/ledger"
	"github.com/pcshop/backend/internal/interfaces/http/dto"
)

// LedgerHandler serves the /inventory-logs endpoints
type LedgerHandler struct {
	BaseHandler
	workflow *appledger.LedgerWorkflow
	sweeper  *appledger.ExpirySweeper
	now      func() time.Time
}

// NewLedgerHandler creates a new LedgerHandler
func NewLedgerHandler(workflow *appledger.LedgerWorkflow, sweeper *appledger.ExpirySweeper) *LedgerHandler {
	return &LedgerHandler{
		workflow: workflow,
		sweeper:  sweeper,
		now:      time.Now,
	}
}

// Create records a pending import or export entry for the requester
func (h *LedgerHandler) Create(c *gin.Context) {
	userID, ok := h.requireUserID(c)
	if !ok {
		return
	}

	var req CreateLedgerEntryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.ValidationError(c, err)
		return
	}

	lines := make([]ledger.LineInput, 0, len(req.Items))
	for i := range req.Items {
		line, err := req.Items[i].toLineInput()
		if err != nil {
			h.BadRequest(c, "Invalid expiry_date, expected YYYY-MM-DD or RFC 3339")
			return
		}
		lines = append(lines, line)
	}

	entry, err := h.workflow.Create(c.Request.Context(), appledger.CreateEntryInput{
		Action:      ledger.Action(req.Action),
		Lines:       lines,
		RequestedBy: userID,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Created(c, entry)
}

// List returns entries matching the query filters
func (h *LedgerHandler) List(c *gin.Context) {
	var req ListLedgerEntriesRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.ValidationError(c, err)
		return
	}
	req.Normalize()

	query := appledger.ListEntriesQuery{
		Status:    ledger.Status(req.Status),
		Action:    ledger.Action(req.Action),
		BatchCode: req.BatchCode,
		Page:      req.Page,
		PageSize:  req.PageSize,
	}
	if req.ProductID != "" {
		id := uuid.MustParse(req.ProductID)
		query.ProductID = &id
	}
	if req.RequestedBy != "" {
		id := uuid.MustParse(req.RequestedBy)
		query.RequestedBy = &id
	}

	result, err := h.workflow.ListEntries(c.Request.Context(), query)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.page(c, result)
}

// ListPending returns entries awaiting review
func (h *LedgerHandler) ListPending(c *gin.Context) {
	page, ok := h.pageRequest(c)
	if !ok {
		return
	}
	result, err := h.workflow.ListPending(c.Request.Context(), page.Page, page.PageSize)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.page(c, result)
}

// ListByProduct returns reviewed entries touching a product
func (h *LedgerHandler) ListByProduct(c *gin.Context) {
	productID, ok := h.uuidParam(c, "productId", "product ID")
	if !ok {
		return
	}
	page, ok := h.pageRequest(c)
	if !ok {
		return
	}
	result, err := h.workflow.ListByProduct(c.Request.Context(), productID, page.Page, page.PageSize)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.page(c, result)
}

// ListByUser returns entries requested by a user
func (h *LedgerHandler) ListByUser(c *gin.Context) {
	userID, ok := h.uuidParam(c, "userId", "user ID")
	if !ok {
		return
	}
	page, ok := h.pageRequest(c)
	if !ok {
		return
	}
	result, err := h.workflow.ListByUser(c.Request.Context(), userID, page.Page, page.PageSize)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.page(c, result)
}

// GetByID returns one entry with its lines
func (h *LedgerHandler) GetByID(c *gin.Context) {
	id, ok := h.uuidParam(c, "id", "ledger entry ID")
	if !ok {
		return
	}
	entry, err := h.workflow.GetEntry(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, entry)
}

// GetLineItems returns the lines of one entry
func (h *LedgerHandler) GetLineItems(c *gin.Context) {
	id, ok := h.uuidParam(c, "id", "ledger entry ID")
	if !ok {
		return
	}
	lines, err := h.workflow.GetLineItems(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, lines)
}

// Review approves or denies a pending entry
func (h *LedgerHandler) Review(c *gin.Context) {
	id, ok := h.uuidParam(c, "id", "ledger entry ID")
	if !ok {
		return
	}

	var req ReviewLedgerEntryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.ValidationError(c, err)
		return
	}

	entry, err := h.workflow.Review(c.Request.Context(), id, appledger.ReviewInput{
		Approved: *req.Approved,
		Reason:   req.Reason,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, entry)
}

// ListExpired reports expired batches that still hold stock
func (h *LedgerHandler) ListExpired(c *gin.Context) {
	asOf, ok := h.checkDateOrNow(c)
	if !ok {
		return
	}
	batches, err := h.sweeper.ListExpired(c.Request.Context(), asOf)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, batches)
}

// ProcessExpired runs an expiry sweep and returns its report
func (h *LedgerHandler) ProcessExpired(c *gin.Context) {
	asOf, ok := h.checkDateOrNow(c)
	if !ok {
		return
	}
	result, err := h.sweeper.Sweep(c.Request.Context(), asOf)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}

// ProcessExpiredManual runs a sweep and always answers 200; failures are
// reported inside the payload.
func (h *LedgerHandler) ProcessExpiredManual(c *gin.Context) {
	asOf, ok := h.checkDate(c)
	if !ok {
		return
	}
	var at *time.Time
	if !asOf.IsZero() {
		at = &asOf
	}
	h.Success(c, h.sweeper.TriggerManual(c.Request.Context(), at))
}

func (h *LedgerHandler) checkDateOrNow(c *gin.Context) (time.Time, bool) {
	asOf, ok := h.checkDate(c)
	if ok && asOf.IsZero() {
		asOf = h.now()
	}
	return asOf, ok
}

func (h *LedgerHandler) pageRequest(c *gin.Context) (dto.PageRequest, bool) {
	var page dto.PageRequest
	if err := c.ShouldBindQuery(&page); err != nil {
		h.ValidationError(c, err)
		return page, false
	}
	page.Normalize()
	return page, true
}

func (h *LedgerHandler) page(c *gin.Context, result *appledger.EntryListResponse) {
	h.SuccessWithMeta(c, result.Entries, result.Total, result.Page, result.PageSize)
}
