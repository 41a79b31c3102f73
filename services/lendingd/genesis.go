package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"poolledger/config"
	"poolledger/native/bank"
	"poolledger/native/lending"
	"poolledger/services/lending/engine"
	"poolledger/services/lending/server"
)

// applyGenesis seeds an empty registry from gen. A registry that already has
// an owner is left untouched apart from the process-level module pause.
func applyGenesis(ctx context.Context, rt *engine.Local, gen *config.Genesis, logger *slog.Logger) error {
	if gen == nil {
		return nil
	}
	if logger == nil {
		logger = slog.Default()
	}
	rt.SetModulePaused(gen.ModulePaused)

	if _, err := rt.Owner(ctx); err == nil {
		logger.Info("registry already initialised; skipping genesis")
		return nil
	} else if !errors.Is(err, lending.ErrNotInitialised) {
		return fmt.Errorf("genesis: read owner: %w", err)
	}

	owner, err := engine.ParseAddress(gen.Owner)
	if err != nil {
		return fmt.Errorf("genesis: owner: %w", err)
	}
	if _, err := rt.EnsureRegistry(ctx, owner); err != nil {
		return fmt.Errorf("genesis: init registry: %w", err)
	}

	for _, a := range gen.Assets {
		asset, err := server.AssetRequest{Address: a.Address, Name: a.Name, Symbol: a.Symbol, Decimals: a.Decimals}.Asset()
		if err != nil {
			return fmt.Errorf("genesis: asset %s: %w", a.Symbol, err)
		}
		if err := rt.RegisterAsset(ctx, asset); err != nil && !errors.Is(err, bank.ErrAssetExists) {
			return fmt.Errorf("genesis: register asset %s: %w", a.Symbol, err)
		}
	}

	for i, m := range gen.Mints {
		asset, err := engine.ParseAsset(m.Asset)
		if err != nil {
			return fmt.Errorf("genesis: mint %d: %w", i, err)
		}
		to, err := engine.ParseAddress(m.To)
		if err != nil {
			return fmt.Errorf("genesis: mint %d: %w", i, err)
		}
		amount, err := engine.ParseAmount(m.Amount)
		if err != nil {
			return fmt.Errorf("genesis: mint %d: %w", i, err)
		}
		if err := rt.Mint(ctx, asset, to, amount); err != nil {
			return fmt.Errorf("genesis: mint %d: %w", i, err)
		}
	}

	for _, p := range gen.Pools {
		cfg, err := server.PoolRequestFromConfig(p).Config()
		if err != nil {
			return fmt.Errorf("genesis: pool %q: %w", p.Name, err)
		}
		id, err := rt.CreatePool(ctx, owner, cfg)
		if err != nil {
			return fmt.Errorf("genesis: create pool %q: %w", p.Name, err)
		}
		logger.Info("genesis pool created", "pool", id, "name", p.Name, "type", cfg.Type.String())
	}

	logger.Info("genesis applied",
		"owner", owner.String(),
		"assets", len(gen.Assets),
		"mints", len(gen.Mints),
		"pools", len(gen.Pools))
	return nil
}
