package router

import (
	"context"
	"fmt"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/blues/cfl/internal/cache"
	"github.com/blues/cfl/internal/handler"
	"github.com/blues/cfl/internal/ledger"
	"github.com/blues/cfl/internal/receipt"
	"github.com/blues/cfl/internal/repository"
	"github.com/blues/cfl/internal/vault"
	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
)

var (
	owner   = common.HexToAddress("0xa1")
	custody = common.HexToAddress("0xa2")
	creator = common.HexToAddress("0xb1")
	alice   = common.HexToAddress("0xc1")
)

// memoryStore 进程内幂等存储
type memoryStore struct {
	mu      sync.Mutex
	records map[string]cache.IdempotencyRecord
}

func newMemoryStore() *memoryStore {
	return &memoryStore{records: make(map[string]cache.IdempotencyRecord)}
}

func (s *memoryStore) Reserve(_ context.Context, key, fingerprint string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[key]; ok {
		return false, nil
	}
	s.records[key] = cache.IdempotencyRecord{Key: key, Fingerprint: fingerprint, State: cache.StatePending}
	return true, nil
}

func (s *memoryStore) Get(_ context.Context, key string) (*cache.IdempotencyRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[key]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

func (s *memoryStore) Complete(_ context.Context, key, fingerprint string, resp cache.StoredResponse) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[key] = cache.IdempotencyRecord{Key: key, Fingerprint: fingerprint, State: cache.StateCompleted, Response: &resp}
	return nil
}

func (s *memoryStore) Release(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, key)
	return nil
}

type testServer struct {
	engine *gin.Engine
	ledger *ledger.Ledger
	bank   *vault.Bank
	store  *memoryStore
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := repository.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())))
	require.NoError(t, err)

	now := time.Unix(1_700_000_000, 0)
	bank := vault.NewBank(custody)
	receipts := receipt.NewRegistry()
	l := ledger.New(ledger.Params{
		Owner:    owner,
		Custody:  custody,
		Transfer: bank,
		Receipts: receipts,
		Clock:    func() time.Time { return now },
	})
	_, err = l.CreateCampaign(context.Background(), creator, ledger.CampaignParams{
		Goal:     big.NewInt(1000),
		Deadline: now.Add(time.Hour),
		Asset:    ledger.NativeAsset(),
	})
	require.NoError(t, err)

	store := newMemoryStore()
	engine := Setup(Dependencies{
		DB:          db,
		Ledger:      l,
		Receipts:    receipts,
		Bank:        bank,
		Idempotency: store,
	})
	return &testServer{engine: engine, ledger: l, bank: bank, store: store}
}

func (s *testServer) post(path, key, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(handler.CallerHeader, alice.Hex())
	if key != "" {
		req.Header.Set(IdempotencyHeader, key)
	}
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)
	return w
}

func TestIdempotentContributionReplays(t *testing.T) {
	s := newTestServer(t)
	s.bank.Mint(ledger.NativeAsset(), alice, big.NewInt(100))

	first := s.post("/api/v1/campaigns/1/contribute", "k-1", `{"amount":"30"}`)
	require.Equal(t, http.StatusOK, first.Code, first.Body.String())
	assert.Empty(t, first.Header().Get(ReplayedHeader))

	second := s.post("/api/v1/campaigns/1/contribute", "k-1", `{"amount":"30"}`)
	require.Equal(t, http.StatusOK, second.Code)
	assert.Equal(t, "true", second.Header().Get(ReplayedHeader))
	assert.JSONEq(t, first.Body.String(), second.Body.String())

	got, err := s.ledger.ContributionOf(context.Background(), 1, alice)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(30), got)

	// 同一个键用于不同请求
	third := s.post("/api/v1/campaigns/1/contribute", "k-1", `{"amount":"31"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, third.Code)

	// 不带键的请求照常执行
	fourth := s.post("/api/v1/campaigns/1/contribute", "", `{"amount":"30"}`)
	require.Equal(t, http.StatusOK, fourth.Code)
	got, _ = s.ledger.ContributionOf(context.Background(), 1, alice)
	assert.Equal(t, big.NewInt(60), got)
}

func TestIdempotencyStoresRejections(t *testing.T) {
	s := newTestServer(t)

	// 余额不足，划转失败返回 502，不保存
	w := s.post("/api/v1/campaigns/1/contribute", "k-2", `{"amount":"30"}`)
	require.Equal(t, http.StatusBadGateway, w.Code)
	rec, _ := s.store.Get(context.Background(), "k-2")
	assert.Nil(t, rec)

	s.bank.Mint(ledger.NativeAsset(), alice, big.NewInt(30))
	w = s.post("/api/v1/campaigns/1/contribute", "k-2", `{"amount":"30"}`)
	require.Equal(t, http.StatusOK, w.Code)

	// 4xx 会被保存并重放
	w = s.post("/api/v1/campaigns/1/withdraw", "k-3", ``)
	require.Equal(t, http.StatusForbidden, w.Code)
	w = s.post("/api/v1/campaigns/1/withdraw", "k-3", ``)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "true", w.Header().Get(ReplayedHeader))
}

func TestPendingKeyConflicts(t *testing.T) {
	s := newTestServer(t)
	body := `{"amount":"1"}`

	req := httptest.NewRequest(http.MethodPost, "/api/v1/campaigns/1/contribute", strings.NewReader(body))
	req.Header.Set(handler.CallerHeader, alice.Hex())
	fingerprint := requestFingerprint(&gin.Context{Request: req}, []byte(body))
	ok, err := s.store.Reserve(context.Background(), "k-4", fingerprint)
	require.NoError(t, err)
	require.True(t, ok)

	w := s.post("/api/v1/campaigns/1/contribute", "k-4", body)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestHealthCorsAndRecords(t *testing.T) {
	s := newTestServer(t)

	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"campaigns":1`)

	w = httptest.NewRecorder()
	s.engine.ServeHTTP(w, httptest.NewRequest(http.MethodOptions, "/api/v1/campaigns", nil))
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Headers"), handler.CallerHeader)

	w = httptest.NewRecorder()
	s.engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/records/campaigns/1/contributions", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"total":0`)

	w = httptest.NewRecorder()
	s.engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/records/campaigns/1/settlement", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = httptest.NewRecorder()
	s.engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/campaigns", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"funding"`)
}
