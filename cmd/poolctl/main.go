package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"poolledger/services/lending/client"
)

const (
	defaultEndpoint = "http://127.0.0.1:8446"
	endpointEnv     = "POOLCTL_ENDPOINT"
	tokenEnv        = "POOLCTL_TOKEN"
	requestTimeout  = 30 * time.Second
)

// globals are flags accepted ahead of the subcommand.
type globals struct {
	endpoint string
	token    string
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	g, rest, err := parseGlobals(args, stderr)
	if err != nil {
		return 1
	}
	if len(rest) == 0 {
		usage(stderr)
		return 1
	}
	command, rest := rest[0], rest[1:]
	switch command {
	case "keygen":
		return runKeygen(rest, stdout, stderr)
	case "token":
		return runToken(rest, stdout, stderr)
	case "create-pool":
		return runCreatePool(g, rest, stdout, stderr)
	case "edit-pool":
		return runEditPool(g, rest, stdout, stderr)
	case "pause":
		return runSetPaused(g, command, true, rest, stdout, stderr)
	case "resume":
		return runSetPaused(g, command, false, rest, stdout, stderr)
	case "start-interest":
		return runStartInterest(g, rest, stdout, stderr)
	case "whitelist":
		return runWhitelist(g, rest, stdout, stderr)
	case "fund":
		return runFund(g, rest, stdout, stderr)
	case "pools":
		return runPools(g, rest, stdout, stderr)
	case "pool":
		return runPool(g, rest, stdout, stderr)
	case "audit":
		return runAudit(g, rest, stdout, stderr)
	case "owner":
		return runOwner(g, rest, stdout, stderr)
	case "module":
		return runModule(g, rest, stdout, stderr)
	case "help", "-h", "--help":
		usage(stdout)
		return 0
	default:
		fmt.Fprintf(stderr, "Unknown command %q\n", command)
		usage(stderr)
		return 1
	}
}

func parseGlobals(args []string, stderr io.Writer) (globals, []string, error) {
	fs := flag.NewFlagSet("poolctl", flag.ContinueOnError)
	fs.SetOutput(stderr)
	g := globals{}
	endpoint := strings.TrimSpace(os.Getenv(endpointEnv))
	if endpoint == "" {
		endpoint = defaultEndpoint
	}
	fs.StringVar(&g.endpoint, "endpoint", endpoint, "lendingd base URL (env "+endpointEnv+")")
	fs.StringVar(&g.token, "token", os.Getenv(tokenEnv), "bearer token (env "+tokenEnv+")")
	if err := fs.Parse(args); err != nil {
		return g, nil, err
	}
	return g, fs.Args(), nil
}

func usage(w io.Writer) {
	fmt.Fprintln(w, "Usage: poolctl [--endpoint URL] [--token TOKEN] <command> [flags]")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Keys:")
	fmt.Fprintln(w, "  keygen --out FILE              generate an operator keystore")
	fmt.Fprintln(w, "  token --subject ADDR           mint a bearer token from the shared secret")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Pools:")
	fmt.Fprintln(w, "  create-pool --file pool.toml")
	fmt.Fprintln(w, "  edit-pool --id N --file pool.toml")
	fmt.Fprintln(w, "  pause --id N | resume --id N")
	fmt.Fprintln(w, "  start-interest --id N")
	fmt.Fprintln(w, "  whitelist --id N --account ADDR [--status=false]")
	fmt.Fprintln(w, "  fund --id N --amount AMOUNT")
	fmt.Fprintln(w, "  pools [--offset N] [--limit N]")
	fmt.Fprintln(w, "  pool --id N")
	fmt.Fprintln(w, "  audit --id N")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Registry:")
	fmt.Fprintln(w, "  owner")
	fmt.Fprintln(w, "  module <pause|resume>")
}

func (g globals) client() (*client.Client, error) {
	return client.New(g.endpoint, client.WithToken(g.token))
}

func withTimeout() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), requestTimeout)
}

func printJSON(w io.Writer, v any) {
	pretty, _ := json.MarshalIndent(v, "", "  ")
	fmt.Fprintln(w, string(pretty))
}

// fail prints err and returns the exit code for a failed command.
func fail(stderr io.Writer, err error) int {
	fmt.Fprintf(stderr, "Error: %v\n", err)
	return 1
}
