package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osse101/riddlegroup/internal/composition"
	"github.com/osse101/riddlegroup/internal/database/memory"
	"github.com/osse101/riddlegroup/internal/domain"
	"github.com/osse101/riddlegroup/internal/event"
	"github.com/osse101/riddlegroup/internal/group"
	"github.com/osse101/riddlegroup/internal/ledger"
)

const (
	testAPIKey   = "test-api-key"
	testContract = "challenge-contract"
)

type apiClient struct {
	t      *testing.T
	router http.Handler
}

func newAPIClient(t *testing.T) (*apiClient, *ledger.MemoryToken) {
	t.Helper()
	reputation := ledger.NewMemoryReputation(map[string]uint64{
		"alice": 500,
		"bob":   5_000,
		"carol": 50_000,
	})
	tokens := ledger.NewMemoryToken()
	svc := group.NewService(
		memory.NewGroupStore(),
		composition.NewValidator(reputation),
		tokens,
		event.NewMemoryBus(),
		group.Config{ChallengeContract: testContract},
	)
	router := NewRouter(Options{APIKey: testAPIKey}, svc)
	return &apiClient{t: t, router: router}, tokens
}

func (c *apiClient) do(method, path string, body any) *httptest.ResponseRecorder {
	c.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(c.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set(HeaderAPIKey, testAPIKey)
	rec := httptest.NewRecorder()
	c.router.ServeHTTP(rec, req)
	return rec
}

func TestRouter_GroupLifecycle(t *testing.T) {
	api, tokens := newAPIClient(t)

	rec := api.do(http.MethodPost, "/api/v1/groups", map[string]any{
		"caller":          testContract,
		"creator":         "alice",
		"challenge_id":    "riddle-1",
		"era":             1,
		"attempt_cost":    1_000,
		"submission_cost": 50,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created domain.Group
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	base := fmt.Sprintf("/api/v1/groups/%d", created.ID)

	for _, p := range []string{"bob", "carol"} {
		rec = api.do(http.MethodPost, base+"/join", map[string]any{"participant": p, "ack_cost": 1_000})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	}

	rec = api.do(http.MethodGet, base+"/costs", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"next_attempt_cost":3000`)

	rec = api.do(http.MethodPost, base+"/finalize", map[string]any{"caller": "alice"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = api.do(http.MethodPost, base+"/activate", map[string]any{"caller": testContract})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = api.do(http.MethodPost, base+"/complete", map[string]any{"caller": testContract, "success": true})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var result domain.GroupResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, uint64(3_000), result.PayoutTotal)
	assert.Len(t, result.Payouts, 3)

	var paid uint64
	for _, p := range []string{"alice", "bob", "carol"} {
		paid += tokens.BalanceOf(p)
	}
	assert.Equal(t, uint64(3_000), paid)

	rec = api.do(http.MethodGet, "/api/v1/groups?state=Completed", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), fmt.Sprintf(`"id":%d`, created.ID))

	rec = api.do(http.MethodGet, "/api/v1/groups/participants/bob/active-groups", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"active_groups":0`)
}

func TestRouter_PrivilegedAndErrors(t *testing.T) {
	api, _ := newAPIClient(t)

	rec := api.do(http.MethodPost, "/api/v1/groups", map[string]any{"caller": "mallory", "creator": "alice"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = api.do(http.MethodGet, "/api/v1/groups/999", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = api.do(http.MethodPost, "/api/v1/groups/999/join", map[string]any{"participant": "bob", "ack_cost": 1})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRouter_RequiresAPIKey(t *testing.T) {
	api, _ := newAPIClient(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/groups", nil)
	rec := httptest.NewRecorder()
	api.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec = httptest.NewRecorder()
	api.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, HeaderValueNoSniff, rec.Header().Get(HeaderContentType))
}
