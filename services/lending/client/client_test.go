package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"poolledger/core/state"
	"poolledger/crypto"
	"poolledger/gateway/middleware"
	"poolledger/services/lending/engine"
	"poolledger/services/lending/server"
	"poolledger/storage"
)

func account(b byte) crypto.Address {
	var raw [20]byte
	raw[0] = 0xAC
	raw[19] = b
	return crypto.AddressFromRaw(crypto.AccountPrefix, raw)
}

func startService(t *testing.T) (*httptest.Server, *middleware.Authenticator) {
	t.Helper()
	rt, err := engine.NewLocal(state.NewManager(storage.NewMemDB()), engine.Config{Ledger: account(0xEE)})
	require.NoError(t, err)
	_, err = rt.EnsureRegistry(context.Background(), account(0x01))
	require.NoError(t, err)

	auth := middleware.NewAuthenticator(middleware.AuthConfig{
		Enabled:        true,
		HMACSecret:     "client-test-secret",
		OptionalPaths:  []string{"/v1/pools", "/v1/owner", "/v1/assets"},
		AllowAnonymous: true,
	}, nil)
	srv, err := server.New(server.Config{Engine: rt, Module: rt, Auth: auth})
	require.NoError(t, err)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts, auth
}

func TestClientDrivesPoolLifecycle(t *testing.T) {
	ts, auth := startService(t)
	ctx := context.Background()
	adminToken, err := auth.Issue(account(0x01).String(), []string{server.AdminScope}, time.Hour)
	require.NoError(t, err)
	admin, err := New(ts.URL+"/", WithToken(adminToken))
	require.NoError(t, err)

	var raw [20]byte
	raw[0] = 0xA5
	asset := engine.FormatAsset(raw)
	require.NoError(t, admin.RegisterAsset(ctx, server.AssetRequest{Address: asset, Name: "Pool Dollar", Symbol: "pusd", Decimals: 6}))

	alice := account(0x10)
	minted, err := admin.Mint(ctx, asset, alice.String(), "900")
	require.NoError(t, err)
	require.Equal(t, "900", minted.Amount)

	id, err := admin.CreatePool(ctx, server.PoolConfigRequest{Name: "credit", Type: "loan", APY: 500, Asset: asset, MaxUtilisation: 80})
	require.NoError(t, err)

	aliceToken, err := auth.Issue(alice.String(), nil, time.Hour)
	require.NoError(t, err)
	participant, err := New(ts.URL, WithToken(aliceToken))
	require.NoError(t, err)
	_, err = participant.Approve(ctx, asset, "900")
	require.NoError(t, err)
	_, err = participant.Deposit(ctx, id, "600")
	require.NoError(t, err)

	pool, err := admin.Pool(ctx, id)
	require.NoError(t, err)
	require.Equal(t, "600", pool.Balance)
	require.Equal(t, "PUSD", pool.Symbol)

	pools, err := participant.Pools(ctx, 0, 10)
	require.NoError(t, err)
	require.Len(t, pools, 1)

	paused, err := admin.SetPaused(ctx, id, true)
	require.NoError(t, err)
	require.True(t, paused.Paused)

	_, err = participant.Deposit(ctx, id, "100")
	require.Error(t, err)
	require.True(t, IsCode(err, "pool_state"))

	_, err = participant.SetPaused(ctx, id, false)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, http.StatusForbidden, apiErr.Status)

	require.NoError(t, admin.Audit(ctx, id))
}

func TestNewRequiresEndpoint(t *testing.T) {
	_, err := New("   ")
	require.Error(t, err)
}
