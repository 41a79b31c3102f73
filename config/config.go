package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// LoadGenesis reads and validates a genesis file.
func LoadGenesis(path string) (*Genesis, error) {
	gen := &Genesis{}
	if err := decodeStrict(path, gen); err != nil {
		return nil, err
	}
	gen.normalize()
	if err := ValidateGenesis(gen); err != nil {
		return nil, fmt.Errorf("genesis %s: %w", path, err)
	}
	return gen, nil
}

// LoadPool reads a single pool definition, as used by poolctl create-pool.
func LoadPool(path string) (*Pool, error) {
	pool := &Pool{}
	if err := decodeStrict(path, pool); err != nil {
		return nil, err
	}
	pool.normalize()
	if err := pool.Validate(); err != nil {
		return nil, fmt.Errorf("pool %s: %w", path, err)
	}
	return pool, nil
}

// WritePool persists pool as TOML, creating parent directories.
func WritePool(path string, pool *Pool) error {
	return persist(path, pool)
}

func decodeStrict(path string, out interface{}) error {
	if strings.TrimSpace(path) == "" {
		return fmt.Errorf("config path required")
	}
	meta, err := toml.DecodeFile(path, out)
	if err != nil {
		return err
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, key := range undecoded {
			keys = append(keys, key.String())
		}
		return fmt.Errorf("config file %s has unknown keys: %s", path, strings.Join(keys, ", "))
	}
	return nil
}

func persist(path string, v interface{}) error {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(v)
}

func (g *Genesis) normalize() {
	g.Owner = strings.TrimSpace(g.Owner)
	for i := range g.Assets {
		a := &g.Assets[i]
		a.Address = strings.TrimSpace(a.Address)
		a.Name = strings.TrimSpace(a.Name)
		a.Symbol = strings.ToUpper(strings.TrimSpace(a.Symbol))
	}
	for i := range g.Mints {
		m := &g.Mints[i]
		m.Asset = strings.TrimSpace(m.Asset)
		m.To = strings.TrimSpace(m.To)
		m.Amount = strings.TrimSpace(m.Amount)
	}
	for i := range g.Pools {
		g.Pools[i].normalize()
	}
}

func (p *Pool) normalize() {
	p.Name = strings.TrimSpace(p.Name)
	p.Type = strings.ToLower(strings.TrimSpace(p.Type))
	p.Asset = strings.TrimSpace(p.Asset)
	p.LimitPerUser = strings.TrimSpace(p.LimitPerUser)
	p.Capacity = strings.TrimSpace(p.Capacity)
}
