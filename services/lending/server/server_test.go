package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"poolledger/core/state"
	"poolledger/crypto"
	"poolledger/gateway/middleware"
	"poolledger/services/lending/engine"
	"poolledger/services/lending/journal"
	"poolledger/storage"
)

type testServer struct {
	handler http.Handler
	rt      *engine.Local
	auth    *middleware.Authenticator
	owner   crypto.Address
	asset   string
	now     int64
}

func account(b byte) crypto.Address {
	var raw [20]byte
	raw[0] = 0xAC
	raw[19] = b
	return crypto.AddressFromRaw(crypto.AccountPrefix, raw)
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	ts := &testServer{owner: account(0x01), now: 1_700_000_000}

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	j, err := journal.Open(dsn, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = j.Close() })

	rt, err := engine.NewLocal(state.NewManager(storage.NewMemDB()), engine.Config{
		Ledger:  account(0xEE),
		Emitter: j,
		Now:     func() int64 { return ts.now },
	})
	require.NoError(t, err)
	_, err = rt.EnsureRegistry(context.Background(), ts.owner)
	require.NoError(t, err)
	ts.rt = rt

	ts.auth = middleware.NewAuthenticator(middleware.AuthConfig{
		Enabled:        true,
		HMACSecret:     "server-test-secret",
		Issuer:         "lendingd",
		Audience:       "pools",
		OptionalPaths:  []string{"/v1/pools", "/v1/owner", "/v1/assets", "/v1/accounts"},
		AllowAnonymous: true,
	}, nil)
	srv, err := New(Config{
		Engine:        rt,
		Module:        rt,
		Events:        j,
		Auth:          ts.auth,
		Observability: middleware.NewObservability(middleware.ObservabilityConfig{Enabled: true}, nil),
	})
	require.NoError(t, err)
	ts.handler = srv.Handler()

	var raw [20]byte
	raw[0] = 0xA5
	ts.asset = engine.FormatAsset(raw)
	return ts
}

func (ts *testServer) token(t *testing.T, subject crypto.Address, scopes ...string) string {
	t.Helper()
	token, err := ts.auth.Issue(subject.String(), scopes, time.Hour)
	require.NoError(t, err)
	return token
}

func (ts *testServer) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var payload bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&payload).Encode(body))
	}
	req := httptest.NewRequest(method, path, &payload)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	res := httptest.NewRecorder()
	ts.handler.ServeHTTP(res, req)
	return res
}

func decodeBody[T any](t *testing.T, res *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &out), res.Body.String())
	return out
}

// bootstrap registers the asset, funds alice and bob, and creates a loan pool.
func (ts *testServer) bootstrap(t *testing.T) (admin string, pool uint64) {
	t.Helper()
	admin = ts.token(t, ts.owner, AdminScope)
	res := ts.do(t, http.MethodPost, "/v1/admin/assets", admin, AssetRequest{Address: ts.asset, Name: "Pool Dollar", Symbol: "pusd", Decimals: 6})
	require.Equal(t, http.StatusCreated, res.Code, res.Body.String())

	for _, holder := range []crypto.Address{account(0x10), account(0x20)} {
		res = ts.do(t, http.MethodPost, "/v1/admin/assets/"+ts.asset+"/mint", admin, MintRequest{To: holder.String(), Amount: "5000"})
		require.Equal(t, http.StatusOK, res.Code, res.Body.String())
		res = ts.do(t, http.MethodPost, "/v1/assets/"+ts.asset+"/approve", ts.token(t, holder), AmountRequest{Amount: "1000000"})
		require.Equal(t, http.StatusOK, res.Code, res.Body.String())
	}

	res = ts.do(t, http.MethodPost, "/v1/admin/pools", admin, PoolConfigRequest{
		Name:           "credit",
		Type:           "loan",
		APY:            1000,
		Asset:          ts.asset,
		MaxUtilisation: 50,
	})
	require.Equal(t, http.StatusCreated, res.Code, res.Body.String())
	return admin, decodeBody[CreatedResponse](t, res).ID
}

func TestLoanPoolLifecycleOverHTTP(t *testing.T) {
	ts := newTestServer(t)
	admin, id := ts.bootstrap(t)
	alice, bob := account(0x10), account(0x20)
	poolPath := fmt.Sprintf("/v1/pools/%d", id)

	res := ts.do(t, http.MethodPost, poolPath+"/deposit", ts.token(t, alice), AmountRequest{Amount: "1000"})
	require.Equal(t, http.StatusOK, res.Code, res.Body.String())

	res = ts.do(t, http.MethodPost, fmt.Sprintf("/v1/admin/pools/%d/whitelist", id), admin, WhitelistRequest{Account: bob.String(), Status: true})
	require.Equal(t, http.StatusOK, res.Code, res.Body.String())
	require.True(t, decodeBody[PositionView](t, res).IsWhitelisted)

	res = ts.do(t, http.MethodGet, poolPath+"/utilisation?borrow=400", "", nil)
	require.Equal(t, http.StatusOK, res.Code, res.Body.String())
	util := decodeBody[UtilisationView](t, res)
	require.Equal(t, "0", util.Current)
	require.Equal(t, "40000000", util.Projected)
	require.Equal(t, uint64(50), util.Max)

	res = ts.do(t, http.MethodPost, poolPath+"/borrow", ts.token(t, bob), AmountRequest{Amount: "400"})
	require.Equal(t, http.StatusOK, res.Code, res.Body.String())

	res = ts.do(t, http.MethodPost, poolPath+"/borrow", ts.token(t, bob), AmountRequest{Amount: "200"})
	require.Equal(t, http.StatusUnprocessableEntity, res.Code, res.Body.String())
	require.Equal(t, "capacity", decodeBody[ErrorResponse](t, res).Code)

	res = ts.do(t, http.MethodGet, poolPath, "", nil)
	require.Equal(t, http.StatusOK, res.Code)
	view := decodeBody[PoolView](t, res)
	require.Equal(t, "loan", view.Type)
	require.Equal(t, "1000", view.Balance)
	require.Equal(t, "400", view.LoanedBalance)
	require.Equal(t, uint64(2), view.UniqueUsers)
	require.NotNil(t, view.MaxUtilisation)
	require.Nil(t, view.Schedule)

	ts.now += 365 * 24 * 60 * 60
	res = ts.do(t, http.MethodGet, poolPath+"/positions/"+bob.String()+"/interest", "", nil)
	require.Equal(t, http.StatusOK, res.Code, res.Body.String())
	require.Equal(t, "16", decodeBody[InterestView](t, res).Outstanding)

	res = ts.do(t, http.MethodPost, poolPath+"/repay", ts.token(t, bob), AmountRequest{Amount: "400"})
	require.Equal(t, http.StatusOK, res.Code, res.Body.String())
	repaid := decodeBody[OperationResponse](t, res)
	require.Equal(t, "16", repaid.Result)

	res = ts.do(t, http.MethodGet, poolPath+"/positions/"+alice.String(), "", nil)
	require.Equal(t, http.StatusOK, res.Code)
	pos := decodeBody[PositionView](t, res)
	require.Equal(t, "staking", pos.Type)
	require.Equal(t, "1000", pos.Receipts)

	res = ts.do(t, http.MethodPost, poolPath+"/withdraw", ts.token(t, alice), AmountRequest{Amount: "1000"})
	require.Equal(t, http.StatusOK, res.Code, res.Body.String())
	require.Equal(t, "1016", decodeBody[OperationResponse](t, res).Result)

	res = ts.do(t, http.MethodGet, "/v1/assets/"+ts.asset+"/balances/"+alice.String(), "", nil)
	require.Equal(t, http.StatusOK, res.Code, res.Body.String())
	require.Equal(t, "5016", decodeBody[BalanceView](t, res).Amount)

	res = ts.do(t, http.MethodGet, poolPath+"/events?limit=3", "", nil)
	require.Equal(t, http.StatusOK, res.Code, res.Body.String())
	records := decodeBody[EventsResponse](t, res).Events
	require.Len(t, records, 3)
	require.Equal(t, "lending.withdrawn", records[0].Type)

	res = ts.do(t, http.MethodGet, fmt.Sprintf("/v1/admin/pools/%d/audit", id), admin, nil)
	require.Equal(t, http.StatusOK, res.Code, res.Body.String())
}

func TestAdminRoutesRequireOwnerAndScope(t *testing.T) {
	ts := newTestServer(t)
	_, id := ts.bootstrap(t)
	req := PoolConfigRequest{Name: "x", Type: "loan", Asset: ts.asset, MaxUtilisation: 10}

	res := ts.do(t, http.MethodPost, "/v1/admin/pools", "", req)
	require.Equal(t, http.StatusUnauthorized, res.Code)

	res = ts.do(t, http.MethodPost, "/v1/admin/pools", ts.token(t, account(0x10)), req)
	require.Equal(t, http.StatusForbidden, res.Code)

	res = ts.do(t, http.MethodPost, "/v1/admin/pools", ts.token(t, account(0x10), AdminScope), req)
	require.Equal(t, http.StatusForbidden, res.Code)
	require.Equal(t, "authorization", decodeBody[ErrorResponse](t, res).Code)

	res = ts.do(t, http.MethodPost, fmt.Sprintf("/v1/admin/pools/%d/pause", id), ts.token(t, account(0x10), AdminScope), PauseRequest{Paused: true})
	require.Equal(t, http.StatusForbidden, res.Code)

	res = ts.do(t, http.MethodPost, "/v1/pools/0/deposit", "", AmountRequest{Amount: "1"})
	require.Equal(t, http.StatusUnauthorized, res.Code)

	outsider := ts.token(t, account(0x10), AdminScope)
	res = ts.do(t, http.MethodPost, "/v1/admin/assets/"+ts.asset+"/mint", outsider, MintRequest{To: account(0x10).String(), Amount: "1"})
	require.Equal(t, http.StatusForbidden, res.Code)
	require.Equal(t, "authorization", decodeBody[ErrorResponse](t, res).Code)

	var other [20]byte
	other[0] = 0xB7
	res = ts.do(t, http.MethodPost, "/v1/admin/assets", outsider, AssetRequest{Address: engine.FormatAsset(other), Name: "Other", Symbol: "oth", Decimals: 6})
	require.Equal(t, http.StatusForbidden, res.Code)

	res = ts.do(t, http.MethodPost, "/v1/admin/pause", outsider, PauseRequest{Paused: true})
	require.Equal(t, http.StatusForbidden, res.Code)

	res = ts.do(t, http.MethodGet, "/v1/assets/"+ts.asset+"/balances/"+account(0x10).String(), "", nil)
	require.Equal(t, http.StatusOK, res.Code)
	require.Equal(t, "5000", decodeBody[BalanceView](t, res).Amount)
}

func TestErrorStatusMapping(t *testing.T) {
	ts := newTestServer(t)
	admin, id := ts.bootstrap(t)
	alice := account(0x10)
	poolPath := fmt.Sprintf("/v1/pools/%d", id)

	res := ts.do(t, http.MethodGet, "/v1/pools/99", "", nil)
	require.Equal(t, http.StatusNotFound, res.Code)

	res = ts.do(t, http.MethodGet, "/v1/pools/abc", "", nil)
	require.Equal(t, http.StatusBadRequest, res.Code)

	res = ts.do(t, http.MethodPost, poolPath+"/withdraw", ts.token(t, alice), AmountRequest{Amount: "5"})
	require.Equal(t, http.StatusBadRequest, res.Code)
	require.Equal(t, "amount", decodeBody[ErrorResponse](t, res).Code)

	res = ts.do(t, http.MethodPost, poolPath+"/borrow", ts.token(t, alice), AmountRequest{Amount: "5"})
	require.Equal(t, http.StatusForbidden, res.Code)

	res = ts.do(t, http.MethodPost, poolPath+"/deposit", ts.token(t, alice), AmountRequest{Amount: "-5"})
	require.Equal(t, http.StatusBadRequest, res.Code)
	require.Equal(t, "invalid_amount", decodeBody[ErrorResponse](t, res).Code)

	res = ts.do(t, http.MethodPost, poolPath+"/deposit", ts.token(t, alice), map[string]string{"amount": "1", "memo": "x"})
	require.Equal(t, http.StatusBadRequest, res.Code)
	require.Equal(t, "invalid_payload", decodeBody[ErrorResponse](t, res).Code)

	res = ts.do(t, http.MethodPost, poolPath+"/receipts/transfer", ts.token(t, alice), TransferRequest{Recipient: "nonsense", Amount: "1"})
	require.Equal(t, http.StatusBadRequest, res.Code)
	require.Equal(t, "invalid_address", decodeBody[ErrorResponse](t, res).Code)

	res = ts.do(t, http.MethodPost, fmt.Sprintf("/v1/admin/pools/%d/pause", id), admin, PauseRequest{Paused: true})
	require.Equal(t, http.StatusOK, res.Code)
	require.True(t, decodeBody[PoolView](t, res).Paused)

	res = ts.do(t, http.MethodPost, poolPath+"/deposit", ts.token(t, alice), AmountRequest{Amount: "10"})
	require.Equal(t, http.StatusConflict, res.Code)
	require.Equal(t, "pool_state", decodeBody[ErrorResponse](t, res).Code)
}

func TestModulePauseBlocksParticipants(t *testing.T) {
	ts := newTestServer(t)
	admin, id := ts.bootstrap(t)
	alice := account(0x10)

	res := ts.do(t, http.MethodPost, "/v1/admin/pause", admin, PauseRequest{Paused: true})
	require.Equal(t, http.StatusOK, res.Code, res.Body.String())
	require.True(t, decodeBody[OwnerResponse](t, res).ModulePaused)

	res = ts.do(t, http.MethodPost, fmt.Sprintf("/v1/pools/%d/deposit", id), ts.token(t, alice), AmountRequest{Amount: "10"})
	require.Equal(t, http.StatusServiceUnavailable, res.Code)
	require.Equal(t, "paused", decodeBody[ErrorResponse](t, res).Code)

	res = ts.do(t, http.MethodGet, "/healthz", "", nil)
	require.Equal(t, http.StatusOK, res.Code)
	require.Contains(t, res.Body.String(), `"module_paused":true`)

	res = ts.do(t, http.MethodPost, "/v1/admin/pause", admin, PauseRequest{Paused: false})
	require.Equal(t, http.StatusOK, res.Code)
	res = ts.do(t, http.MethodPost, fmt.Sprintf("/v1/pools/%d/deposit", id), ts.token(t, alice), AmountRequest{Amount: "10"})
	require.Equal(t, http.StatusOK, res.Code, res.Body.String())
}

func TestOwnershipTransfer(t *testing.T) {
	ts := newTestServer(t)
	admin, _ := ts.bootstrap(t)
	next := account(0x30)

	res := ts.do(t, http.MethodPost, "/v1/admin/ownership", admin, OwnershipRequest{Owner: next.String()})
	require.Equal(t, http.StatusOK, res.Code, res.Body.String())
	require.Equal(t, next.String(), decodeBody[OwnerResponse](t, res).Owner)

	res = ts.do(t, http.MethodPost, "/v1/admin/pools", admin, PoolConfigRequest{Name: "x", Type: "loan", Asset: ts.asset, MaxUtilisation: 10})
	require.Equal(t, http.StatusForbidden, res.Code)

	res = ts.do(t, http.MethodGet, "/v1/owner", "", nil)
	require.Equal(t, http.StatusOK, res.Code)
	owner := decodeBody[OwnerResponse](t, res)
	require.Equal(t, next.String(), owner.Owner)
	require.Equal(t, account(0xEE).String(), owner.Ledger)
}

func TestMetricsEndpointServesRouteLabels(t *testing.T) {
	ts := newTestServer(t)
	res := ts.do(t, http.MethodGet, "/v1/pools", "", nil)
	require.Equal(t, http.StatusOK, res.Code)
	require.JSONEq(t, `{"pools":[]}`, res.Body.String())

	res = ts.do(t, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, res.Code)
	require.Contains(t, res.Body.String(), `route="/v1/pools"`)
}
