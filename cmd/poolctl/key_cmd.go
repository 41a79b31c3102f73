package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"poolledger/cmd/internal/passphrase"
	"poolledger/crypto"
	"poolledger/gateway/middleware"
	"poolledger/services/lending/server"
)

const (
	defaultPassEnv   = "POOLCTL_KEYSTORE_PASS"
	defaultSecretEnv = "LENDINGD_HMAC_SECRET"
)

func runKeygen(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("keygen", stderr)
	out := fs.String("out", "operator.keystore", "output path for the keystore file")
	passEnv := fs.String("pass-env", defaultPassEnv, "environment variable containing the keystore passphrase")
	light := fs.Bool("light", false, "use the light scrypt profile (devnets only)")
	force := fs.Bool("force", false, "overwrite an existing keystore file")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	path := strings.TrimSpace(*out)
	if !*force {
		if _, err := os.Stat(path); err == nil {
			return fail(stderr, fmt.Errorf("keystore %s already exists (use --force to overwrite)", path))
		}
	}
	pass, err := passphrase.NewSource(*passEnv, "operator keystore").Get()
	if err != nil {
		return fail(stderr, err)
	}
	key, err := crypto.GeneratePrivateKey()
	if err != nil {
		return fail(stderr, fmt.Errorf("generate key: %w", err))
	}
	strength := crypto.StandardKeystore
	if *light {
		strength = crypto.LightKeystore
	}
	if err := crypto.SaveToKeystore(path, key, pass, strength); err != nil {
		return fail(stderr, fmt.Errorf("write keystore: %w", err))
	}
	fmt.Fprintf(stdout, "address: %s\n", key.PubKey().Address().String())
	fmt.Fprintf(stdout, "keystore: %s\n", path)
	return 0
}

func runToken(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("token", stderr)
	subject := fs.String("subject", "", "account address the token acts as")
	keystorePath := fs.String("keystore", "", "derive the subject from this keystore instead of --subject")
	passEnv := fs.String("pass-env", defaultPassEnv, "environment variable containing the keystore passphrase")
	secretEnv := fs.String("secret-env", defaultSecretEnv, "environment variable holding the lendingd HMAC secret")
	issuer := fs.String("issuer", "lendingd", "token issuer")
	audience := fs.String("audience", "", "token audience")
	ttl := fs.Duration("ttl", time.Hour, "token lifetime")
	admin := fs.Bool("admin", false, "grant the "+server.AdminScope+" scope")
	if err := fs.Parse(args); err != nil {
		return 1
	}

	sub := strings.TrimSpace(*subject)
	if path := strings.TrimSpace(*keystorePath); path != "" {
		pass, err := passphrase.NewSource(*passEnv, "operator keystore").Get()
		if err != nil {
			return fail(stderr, err)
		}
		key, err := crypto.LoadFromKeystore(path, pass)
		if err != nil {
			return fail(stderr, fmt.Errorf("open keystore: %w", err))
		}
		sub = key.PubKey().Address().String()
	}
	if sub == "" {
		return fail(stderr, errors.New("--subject or --keystore is required"))
	}
	addr, err := crypto.DecodeAddress(sub)
	if err != nil || addr.Prefix() != crypto.AccountPrefix {
		return fail(stderr, fmt.Errorf("subject %q is not an account address", sub))
	}

	secret := strings.TrimSpace(os.Getenv(*secretEnv))
	if secret == "" {
		return fail(stderr, fmt.Errorf("%s is not set", *secretEnv))
	}
	var scopes []string
	if *admin {
		scopes = append(scopes, server.AdminScope)
	}
	auth := middleware.NewAuthenticator(middleware.AuthConfig{
		Enabled:    true,
		HMACSecret: secret,
		Issuer:     strings.TrimSpace(*issuer),
		Audience:   strings.TrimSpace(*audience),
	}, nil)
	token, err := auth.Issue(addr.String(), scopes, *ttl)
	if err != nil {
		return fail(stderr, err)
	}
	fmt.Fprintln(stdout, token)
	return 0
}
