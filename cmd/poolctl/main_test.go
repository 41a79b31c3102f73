package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"poolledger/core/state"
	"poolledger/crypto"
	"poolledger/gateway/middleware"
	"poolledger/native/bank"
	"poolledger/services/lending/engine"
	"poolledger/services/lending/server"
	"poolledger/storage"
)

const testSecret = "poolctl-test-secret-0123456789abcdef"

func testAccount(b byte) crypto.Address {
	var raw [20]byte
	raw[0] = 0xAC
	raw[19] = b
	return crypto.AddressFromRaw(crypto.AccountPrefix, raw)
}

func startLendingd(t *testing.T) (*httptest.Server, string) {
	t.Helper()
	ctx := context.Background()
	rt, err := engine.NewLocal(state.NewManager(storage.NewMemDB()), engine.Config{Ledger: testAccount(0xEE)})
	if err != nil {
		t.Fatalf("new runtime: %v", err)
	}
	if _, err := rt.EnsureRegistry(ctx, testAccount(0x01)); err != nil {
		t.Fatalf("ensure registry: %v", err)
	}
	var raw [20]byte
	raw[0] = 0xA5
	if err := rt.RegisterAsset(ctx, bank.Asset{Address: raw, Name: "Pool Dollar", Symbol: "PUSD", Decimals: 6}); err != nil {
		t.Fatalf("register asset: %v", err)
	}
	auth := middleware.NewAuthenticator(middleware.AuthConfig{
		Enabled:    true,
		HMACSecret: testSecret,
		Issuer:     "lendingd",
	}, nil)
	srv, err := server.New(server.Config{Engine: rt, Module: rt, Auth: auth})
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts, engine.FormatAsset(raw)
}

func runCmd(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	stdout := &bytes.Buffer{}
	stderr := &bytes.Buffer{}
	code := run(args, stdout, stderr)
	return code, stdout.String(), stderr.String()
}

func issueAdminToken(t *testing.T) string {
	t.Helper()
	t.Setenv(defaultSecretEnv, testSecret)
	code, out, errOut := runCmd(t, "token", "--subject", testAccount(0x01).String(), "--admin")
	if code != 0 {
		t.Fatalf("token failed: %s", errOut)
	}
	return strings.TrimSpace(out)
}

func TestPoolLifecycleCommands(t *testing.T) {
	ts, asset := startLendingd(t)
	token := issueAdminToken(t)

	poolFile := filepath.Join(t.TempDir(), "pool.toml")
	contents := "Name = \"credit\"\nType = \"loan\"\nAPY = 1000\nAsset = \"" + asset + "\"\nMaxUtilisation = 60\n"
	if err := os.WriteFile(poolFile, []byte(contents), 0o600); err != nil {
		t.Fatalf("write pool file: %v", err)
	}

	global := []string{"--endpoint", ts.URL, "--token", token}
	code, out, errOut := runCmd(t, append(global, "create-pool", "--file", poolFile)...)
	if code != 0 {
		t.Fatalf("create-pool failed: %s", errOut)
	}
	if !strings.Contains(out, "pool 0 created") {
		t.Fatalf("unexpected create-pool output %q", out)
	}

	code, out, errOut = runCmd(t, append(global, "pause", "--id", "0")...)
	if code != 0 {
		t.Fatalf("pause failed: %s", errOut)
	}
	if strings.TrimSpace(out) != "pool 0 paused=true" {
		t.Fatalf("unexpected pause output %q", out)
	}

	code, out, errOut = runCmd(t, append(global, "pool", "--id", "0")...)
	if code != 0 {
		t.Fatalf("pool failed: %s", errOut)
	}
	var view server.PoolView
	if err := json.Unmarshal([]byte(out), &view); err != nil {
		t.Fatalf("decode pool output: %v", err)
	}
	if !view.Paused || view.Name != "credit" || view.Symbol != "PUSD" {
		t.Fatalf("unexpected pool view %+v", view)
	}

	code, _, errOut = runCmd(t, append(global, "resume", "--id", "0")...)
	if code != 0 {
		t.Fatalf("resume failed: %s", errOut)
	}

	code, out, errOut = runCmd(t, append(global, "pools")...)
	if code != 0 {
		t.Fatalf("pools failed: %s", errOut)
	}
	var pools []server.PoolView
	if err := json.Unmarshal([]byte(out), &pools); err != nil {
		t.Fatalf("decode pools output: %v", err)
	}
	if len(pools) != 1 || pools[0].Paused {
		t.Fatalf("unexpected pools %+v", pools)
	}

	code, out, errOut = runCmd(t, append(global, "audit", "--id", "0")...)
	if code != 0 {
		t.Fatalf("audit failed: %s", errOut)
	}
	if !strings.Contains(out, "consistent") {
		t.Fatalf("unexpected audit output %q", out)
	}

	code, _, errOut = runCmd(t, append(global, "start-interest", "--id", "0")...)
	if code == 0 {
		t.Fatalf("start-interest on a loan pool should fail")
	}
	if !strings.Contains(errOut, "Error:") {
		t.Fatalf("expected error output, got %q", errOut)
	}
}

func TestModuleAndOwnerCommands(t *testing.T) {
	ts, _ := startLendingd(t)
	token := issueAdminToken(t)
	global := []string{"--endpoint", ts.URL, "--token", token}

	code, out, errOut := runCmd(t, append(global, "module", "pause")...)
	if code != 0 {
		t.Fatalf("module pause failed: %s", errOut)
	}
	if strings.TrimSpace(out) != "module paused=true" {
		t.Fatalf("unexpected module output %q", out)
	}

	code, out, errOut = runCmd(t, append(global, "owner")...)
	if code != 0 {
		t.Fatalf("owner failed: %s", errOut)
	}
	var owner server.OwnerResponse
	if err := json.Unmarshal([]byte(out), &owner); err != nil {
		t.Fatalf("decode owner output: %v", err)
	}
	if owner.Owner != testAccount(0x01).String() || !owner.ModulePaused {
		t.Fatalf("unexpected owner response %+v", owner)
	}
}

func TestCommandArgValidation(t *testing.T) {
	cases := []struct {
		name string
		args []string
		want string
	}{
		{"no_command", nil, "Usage: poolctl"},
		{"unknown", []string{"launch"}, "Unknown command"},
		{"create_missing_file", []string{"create-pool"}, "--file is required"},
		{"pause_missing_id", []string{"pause"}, "--id is required"},
		{"whitelist_missing_account", []string{"whitelist", "--id", "1"}, "--account is required"},
		{"fund_missing_amount", []string{"fund", "--id", "1"}, "--amount is required"},
		{"module_bad_sub", []string{"module", "halt"}, "Unknown module subcommand"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			code, out, errOut := runCmd(t, tc.args...)
			if code != 1 {
				t.Fatalf("unexpected exit code %d", code)
			}
			if out != "" {
				t.Fatalf("expected empty stdout, got %q", out)
			}
			if !strings.Contains(errOut, tc.want) {
				t.Fatalf("stderr %q does not contain %q", errOut, tc.want)
			}
		})
	}
}

func TestKeygenAndTokenFromKeystore(t *testing.T) {
	t.Setenv(defaultPassEnv, "operator-pass")
	t.Setenv(defaultSecretEnv, testSecret)
	path := filepath.Join(t.TempDir(), "operator.keystore")

	code, out, errOut := runCmd(t, "keygen", "--out", path, "--light")
	if code != 0 {
		t.Fatalf("keygen failed: %s", errOut)
	}
	if !strings.Contains(out, "address: "+string(crypto.AccountPrefix)) {
		t.Fatalf("unexpected keygen output %q", out)
	}

	code, _, errOut = runCmd(t, "keygen", "--out", path, "--light")
	if code == 0 || !strings.Contains(errOut, "already exists") {
		t.Fatalf("expected keygen to refuse overwrite, got %d %q", code, errOut)
	}

	code, out, errOut = runCmd(t, "token", "--keystore", path)
	if code != 0 {
		t.Fatalf("token failed: %s", errOut)
	}
	if strings.Count(strings.TrimSpace(out), ".") != 2 {
		t.Fatalf("expected a compact JWT, got %q", out)
	}
}
