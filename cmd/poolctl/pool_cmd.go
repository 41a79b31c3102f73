package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"

	"poolledger/config"
	"poolledger/services/lending/server"
)

var errIDRequired = errors.New("--id is required")

func newFlagSet(name string, stderr io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(stderr)
	return fs
}

// poolIDFlag registers --id. The sentinel lets commands reject a missing id
// without treating pool 0 as absent.
func poolIDFlag(fs *flag.FlagSet) *int64 {
	return fs.Int64("id", -1, "pool id")
}

func requireID(id int64) (uint64, error) {
	if id < 0 {
		return 0, errIDRequired
	}
	return uint64(id), nil
}

func loadPoolRequest(path string) (server.PoolConfigRequest, error) {
	if strings.TrimSpace(path) == "" {
		return server.PoolConfigRequest{}, errors.New("--file is required")
	}
	pool, err := config.LoadPool(path)
	if err != nil {
		return server.PoolConfigRequest{}, err
	}
	return server.PoolRequestFromConfig(*pool), nil
}

func runCreatePool(g globals, args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("create-pool", stderr)
	file := fs.String("file", "", "pool definition (TOML)")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	req, err := loadPoolRequest(*file)
	if err != nil {
		return fail(stderr, err)
	}
	c, err := g.client()
	if err != nil {
		return fail(stderr, err)
	}
	ctx, cancel := withTimeout()
	defer cancel()
	id, err := c.CreatePool(ctx, req)
	if err != nil {
		return fail(stderr, err)
	}
	fmt.Fprintf(stdout, "pool %d created (%s, %s)\n", id, req.Name, req.Type)
	return 0
}

func runEditPool(g globals, args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("edit-pool", stderr)
	idFlag := poolIDFlag(fs)
	file := fs.String("file", "", "pool definition (TOML)")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	id, err := requireID(*idFlag)
	if err != nil {
		return fail(stderr, err)
	}
	req, err := loadPoolRequest(*file)
	if err != nil {
		return fail(stderr, err)
	}
	c, err := g.client()
	if err != nil {
		return fail(stderr, err)
	}
	ctx, cancel := withTimeout()
	defer cancel()
	pool, err := c.EditPool(ctx, id, req)
	if err != nil {
		return fail(stderr, err)
	}
	printJSON(stdout, pool)
	return 0
}

func runSetPaused(g globals, name string, paused bool, args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet(name, stderr)
	idFlag := poolIDFlag(fs)
	if err := fs.Parse(args); err != nil {
		return 1
	}
	id, err := requireID(*idFlag)
	if err != nil {
		return fail(stderr, err)
	}
	c, err := g.client()
	if err != nil {
		return fail(stderr, err)
	}
	ctx, cancel := withTimeout()
	defer cancel()
	pool, err := c.SetPaused(ctx, id, paused)
	if err != nil {
		return fail(stderr, err)
	}
	fmt.Fprintf(stdout, "pool %d paused=%t\n", pool.ID, pool.Paused)
	return 0
}

func runStartInterest(g globals, args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("start-interest", stderr)
	idFlag := poolIDFlag(fs)
	if err := fs.Parse(args); err != nil {
		return 1
	}
	id, err := requireID(*idFlag)
	if err != nil {
		return fail(stderr, err)
	}
	c, err := g.client()
	if err != nil {
		return fail(stderr, err)
	}
	ctx, cancel := withTimeout()
	defer cancel()
	pool, err := c.StartInterest(ctx, id)
	if err != nil {
		return fail(stderr, err)
	}
	printJSON(stdout, pool)
	return 0
}

func runWhitelist(g globals, args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("whitelist", stderr)
	idFlag := poolIDFlag(fs)
	account := fs.String("account", "", "participant address")
	status := fs.Bool("status", true, "whitelist status to record")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	id, err := requireID(*idFlag)
	if err != nil {
		return fail(stderr, err)
	}
	if strings.TrimSpace(*account) == "" {
		return fail(stderr, errors.New("--account is required"))
	}
	c, err := g.client()
	if err != nil {
		return fail(stderr, err)
	}
	ctx, cancel := withTimeout()
	defer cancel()
	pos, err := c.SetWhitelisted(ctx, id, strings.TrimSpace(*account), *status)
	if err != nil {
		return fail(stderr, err)
	}
	printJSON(stdout, pos)
	return 0
}

func runFund(g globals, args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("fund", stderr)
	idFlag := poolIDFlag(fs)
	amount := fs.String("amount", "", "reward amount in base units")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	id, err := requireID(*idFlag)
	if err != nil {
		return fail(stderr, err)
	}
	if strings.TrimSpace(*amount) == "" {
		return fail(stderr, errors.New("--amount is required"))
	}
	c, err := g.client()
	if err != nil {
		return fail(stderr, err)
	}
	ctx, cancel := withTimeout()
	defer cancel()
	if _, err := c.FundRewards(ctx, id, strings.TrimSpace(*amount)); err != nil {
		return fail(stderr, err)
	}
	fmt.Fprintf(stdout, "pool %d funded with %s\n", id, strings.TrimSpace(*amount))
	return 0
}

func runPools(g globals, args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("pools", stderr)
	offset := fs.Uint64("offset", 0, "first pool id")
	limit := fs.Uint64("limit", 50, "maximum pools to return")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	c, err := g.client()
	if err != nil {
		return fail(stderr, err)
	}
	ctx, cancel := withTimeout()
	defer cancel()
	pools, err := c.Pools(ctx, *offset, *limit)
	if err != nil {
		return fail(stderr, err)
	}
	printJSON(stdout, pools)
	return 0
}

func runPool(g globals, args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("pool", stderr)
	idFlag := poolIDFlag(fs)
	if err := fs.Parse(args); err != nil {
		return 1
	}
	id, err := requireID(*idFlag)
	if err != nil {
		return fail(stderr, err)
	}
	c, err := g.client()
	if err != nil {
		return fail(stderr, err)
	}
	ctx, cancel := withTimeout()
	defer cancel()
	pool, err := c.Pool(ctx, id)
	if err != nil {
		return fail(stderr, err)
	}
	printJSON(stdout, pool)
	return 0
}

func runAudit(g globals, args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("audit", stderr)
	idFlag := poolIDFlag(fs)
	if err := fs.Parse(args); err != nil {
		return 1
	}
	id, err := requireID(*idFlag)
	if err != nil {
		return fail(stderr, err)
	}
	c, err := g.client()
	if err != nil {
		return fail(stderr, err)
	}
	ctx, cancel := withTimeout()
	defer cancel()
	if err := c.Audit(ctx, id); err != nil {
		return fail(stderr, err)
	}
	fmt.Fprintf(stdout, "pool %d consistent\n", id)
	return 0
}

func runOwner(g globals, args []string, stdout, stderr io.Writer) int {
	if len(args) != 0 {
		fmt.Fprintln(stderr, "Usage: poolctl owner")
		return 1
	}
	c, err := g.client()
	if err != nil {
		return fail(stderr, err)
	}
	ctx, cancel := withTimeout()
	defer cancel()
	owner, err := c.Owner(ctx)
	if err != nil {
		return fail(stderr, err)
	}
	printJSON(stdout, owner)
	return 0
}

func runModule(g globals, args []string, stdout, stderr io.Writer) int {
	if len(args) != 1 {
		fmt.Fprintln(stderr, "Usage: poolctl module <pause|resume>")
		return 1
	}
	var paused bool
	switch strings.ToLower(args[0]) {
	case "pause":
		paused = true
	case "resume":
		paused = false
	default:
		fmt.Fprintf(stderr, "Unknown module subcommand %q\n", args[0])
		return 1
	}
	c, err := g.client()
	if err != nil {
		return fail(stderr, err)
	}
	ctx, cancel := withTimeout()
	defer cancel()
	out, err := c.SetModulePaused(ctx, paused)
	if err != nil {
		return fail(stderr, err)
	}
	fmt.Fprintf(stdout, "module paused=%t\n", out.ModulePaused)
	return 0
}
