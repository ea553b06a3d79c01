package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/pcshop/backend/internal/domain/ledger"
	"github.com/pcshop/backend/internal/domain/shared"
	"github.com/pcshop/backend/internal/interfaces/http/dto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestContext() (*gin.Context, *httptest.ResponseRecorder) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	c.Set("request_id", "req-123")
	return c, w
}

func decodeResponse(t *testing.T, w *httptest.ResponseRecorder) dto.Response {
	t.Helper()
	var resp dto.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestBaseHandler_HandleError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"not found", ledger.NewEntryNotFoundError(uuid.New()), http.StatusNotFound, dto.ErrCodeNotFound},
		{"wrapped insufficient stock", fmt.Errorf("review: %w", shared.NewDomainError(ledger.CodeInsufficientStock, "short")), http.StatusUnprocessableEntity, dto.ErrCodeInsufficientStock},
		{"already processed", shared.NewDomainError(ledger.CodeAlreadyProcessed, "done"), http.StatusConflict, dto.ErrCodeAlreadyProcessed},
		{"missing reason", shared.NewDomainError(ledger.CodeMissingReason, "why"), http.StatusBadRequest, dto.ErrCodeMissingReason},
		{"plain error", errors.New("disk on fire"), http.StatusInternalServerError, dto.ErrCodeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := &BaseHandler{}
			c, w := newTestContext()

			h.HandleError(c, tt.err)

			assert.Equal(t, tt.wantStatus, w.Code)
			resp := decodeResponse(t, w)
			assert.False(t, resp.Success)
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.wantCode, resp.Error.Code)
			assert.Equal(t, "req-123", resp.Error.RequestID)
			assert.NotContains(t, resp.Error.Message, "disk on fire")
		})
	}
}

func TestBaseHandler_HandleErrorNil(t *testing.T) {
	h := &BaseHandler{}
	c, w := newTestContext()
	h.HandleError(c, nil)
	assert.Equal(t, 0, w.Body.Len())
}

func TestBaseHandler_SuccessWithMeta(t *testing.T) {
	h := &BaseHandler{}
	c, w := newTestContext()

	h.SuccessWithMeta(c, []string{"a"}, 41, 2, 20)

	assert.Equal(t, http.StatusOK, w.Code)
	resp := decodeResponse(t, w)
	assert.True(t, resp.Success)
	require.NotNil(t, resp.Meta)
	assert.Equal(t, int64(41), resp.Meta.Total)
	assert.Equal(t, 3, resp.Meta.TotalPages)
}

func TestParseDateTime(t *testing.T) {
	d, err := parseDateTime("2030-01-13")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2030, 1, 13, 0, 0, 0, 0, time.UTC), d)

	d, err = parseDateTime("2030-01-13T08:30:00+07:00")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2030, 1, 13, 1, 30, 0, 0, time.UTC), d.UTC())

	_, err = parseDateTime("13/01/2030")
	assert.Error(t, err)
}
