package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	appledger "github.com/pcshop/backend/internal/application/ledger"
	"github.com/pcshop/backend/internal/infrastructure/persistence"
	"github.com/pcshop/backend/internal/interfaces/http/dto"
	"github.com/pcshop/backend/internal/interfaces/http/handler"
	"github.com/pcshop/backend/internal/interfaces/http/middleware"
	"github.com/pcshop/backend/internal/interfaces/http/router"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func init() {
	gin.SetMode(gin.TestMode)
	middleware.SetupValidator()
}

type apiEnv struct {
	engine   *gin.Engine
	catalog  *persistence.GormProductCatalog
	services *appledger.Services
	user     uuid.UUID
}

// envelope mirrors dto.Response with the payload left raw for typed decoding
type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *dto.ErrorInfo  `json:"error"`
	Meta    *dto.Meta       `json:"meta"`
}

type stubPinger struct{ err error }

func (p stubPinger) Ping() error { return p.err }

func newAPIEnv(t *testing.T) *apiEnv {
	t.Helper()
	return newAPIEnvWithPinger(t, nil)
}

func newAPIEnvWithPinger(t *testing.T, pinger handler.Pinger) *apiEnv {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{SkipDefaultTransaction: true})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })
	require.NoError(t, persistence.AutoMigrate(db))

	catalog := persistence.NewGormProductCatalog(db)
	services := appledger.NewServices(appledger.Dependencies{
		EntryRepo:    persistence.NewGormLedgerEntryRepository(db),
		BatchRepo:    persistence.NewGormBatchRepository(db),
		MovementRepo: persistence.NewGormMovementRepository(db),
		Products:     catalog,
		Scope:        persistence.NewGormTransactionScope(db),
		Logger:       zap.NewNop(),
	})

	if pinger == nil {
		pinger = stubPinger{}
	}

	engine := gin.New()
	engine.Use(middleware.RequestID(), middleware.JWTAuth(middleware.JWTMiddlewareConfig{}))
	router.RegisterAPI(router.NewRouter(engine), router.Handlers{
		Ledger:  handler.NewLedgerHandler(services.Workflow, services.Sweeper),
		Batches: handler.NewBatchHandler(services.Allocator, services.Batches),
		Health:  handler.NewHealthHandler(pinger),
	}).Setup()

	return &apiEnv{engine: engine, catalog: catalog, services: services, user: uuid.New()}
}

func (e *apiEnv) product(t *testing.T, name string) uuid.UUID {
	t.Helper()
	p, err := e.catalog.CreateProduct(context.Background(), name)
	require.NoError(t, err)
	return p.ID
}

// do sends a request as the env's user and returns the status and envelope
func (e *apiEnv) do(t *testing.T, method, path string, body any) (int, envelope) {
	t.Helper()
	return e.doAs(t, e.user.String(), method, path, body)
}

func (e *apiEnv) doAs(t *testing.T, user, method, path string, body any) (int, envelope) {
	t.Helper()
	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, "/api/v1"+path, reader)
	req.Header.Set("Content-Type", "application/json")
	if user != "" {
		req.Header.Set(middleware.DevUserHeader, user)
	}
	w := httptest.NewRecorder()
	e.engine.ServeHTTP(w, req)

	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return w.Code, env
}

func decodeData[T any](t *testing.T, env envelope) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(env.Data, &out))
	return out
}

// importApproved creates and approves an import of qty units expiring on expiry
func (e *apiEnv) importApproved(t *testing.T, productID uuid.UUID, qty int, expiry string) appledger.LedgerEntryResponse {
	t.Helper()
	status, env := e.do(t, http.MethodPost, "/inventory-logs", map[string]any{
		"action": "import",
		"items": []map[string]any{{
			"product_id":  productID,
			"quantity":    qty,
			"expiry_date": expiry,
			"unit_price":  "2.50",
		}},
	})
	require.Equal(t, http.StatusCreated, status, env.Error)
	created := decodeData[appledger.LedgerEntryResponse](t, env)

	status, env = e.do(t, http.MethodPost, "/inventory-logs/"+created.ID.String()+"/review", map[string]any{"approved": true})
	require.Equal(t, http.StatusOK, status, env.Error)
	return decodeData[appledger.LedgerEntryResponse](t, env)
}
