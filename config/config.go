// Package config loads the TOML deployment configuration for the lockup
// service: database backend, engine parameters and the boost coefficient
// table.
package config

import (
	"encoding/hex"
	"fmt"
	"math/big"
	"os"
	"strings"

	"github.com/BurntSushi/toml"

	"bbchain/fixedpoint"
	"bbchain/native/lockup"
)

// Config is the top-level configuration file layout.
type Config struct {
	DataDir  string       `toml:"DataDir"`
	Database string       `toml:"Database"`
	Lockup   LockupConfig `toml:"Lockup"`
}

// LockupConfig carries the engine parameters and initial admin values.
type LockupConfig struct {
	LockAsset       string        `toml:"LockAsset"`
	VaultAddress    string        `toml:"VaultAddress"`
	TreasuryAddress string        `toml:"TreasuryAddress"`
	BlocksPerWeek   uint64        `toml:"BlocksPerWeek"`
	MaxLockBlocks   uint64        `toml:"MaxLockBlocks"`
	MaxPositions    int           `toml:"MaxPositions"`
	MinMint         string        `toml:"MinMint"`
	MinLockBlocks   uint64        `toml:"MinLockBlocks"`
	RewardsDuration uint64        `toml:"RewardsDuration"`
	Markup          []MarkupEntry `toml:"Markup"`
}

// MarkupEntry declares the boost coefficients for one asset. The ratio fields
// are decimal strings such as "0.1".
type MarkupEntry struct {
	Asset                string `toml:"Asset"`
	Hardcap              string `toml:"Hardcap"`
	Coefficient          string `toml:"Coefficient"`
	LockShareCoefficient string `toml:"LockShareCoefficient"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		DataDir:  "./data",
		Database: "leveldb",
		Lockup: LockupConfig{
			BlocksPerWeek: lockup.BlocksPerWeek,
			MaxLockBlocks: lockup.MaxLockBlocks,
			MaxPositions:  lockup.MaxPositions,
			MinMint:       "0",
		},
	}
}

// Load reads the configuration from the given path. A missing file yields the
// defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("config: decode %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for internally inconsistent values.
func (c *Config) Validate() error {
	switch strings.ToLower(strings.TrimSpace(c.Database)) {
	case "memory", "leveldb", "bolt":
	default:
		return fmt.Errorf("config: unknown database backend %q", c.Database)
	}
	if c.Lockup.BlocksPerWeek == 0 {
		return fmt.Errorf("config: BlocksPerWeek must be positive")
	}
	if c.Lockup.MaxLockBlocks < c.Lockup.BlocksPerWeek {
		return fmt.Errorf("config: MaxLockBlocks must cover at least one week")
	}
	if c.Lockup.MaxPositions <= 0 {
		return fmt.Errorf("config: MaxPositions must be positive")
	}
	if _, err := c.MinMint(); err != nil {
		return err
	}
	if _, err := parseAddress(c.Lockup.VaultAddress); err != nil {
		return fmt.Errorf("config: VaultAddress: %w", err)
	}
	if _, err := parseAddress(c.Lockup.TreasuryAddress); err != nil {
		return fmt.Errorf("config: TreasuryAddress: %w", err)
	}
	seen := make(map[string]struct{}, len(c.Lockup.Markup))
	for _, entry := range c.Lockup.Markup {
		if strings.TrimSpace(entry.Asset) == "" {
			return fmt.Errorf("config: markup entry without asset")
		}
		if _, dup := seen[entry.Asset]; dup {
			return fmt.Errorf("config: duplicate markup entry for %s", entry.Asset)
		}
		seen[entry.Asset] = struct{}{}
		if _, _, _, err := entry.Ratios(); err != nil {
			return fmt.Errorf("config: markup %s: %w", entry.Asset, err)
		}
	}
	return nil
}

// Params converts the configuration into engine parameters.
func (c *Config) Params() (lockup.Params, error) {
	vault, err := parseAddress(c.Lockup.VaultAddress)
	if err != nil {
		return lockup.Params{}, fmt.Errorf("config: VaultAddress: %w", err)
	}
	treasury, err := parseAddress(c.Lockup.TreasuryAddress)
	if err != nil {
		return lockup.Params{}, fmt.Errorf("config: TreasuryAddress: %w", err)
	}
	return lockup.Params{
		BlocksPerWeek:   c.Lockup.BlocksPerWeek,
		MaxLockBlocks:   c.Lockup.MaxLockBlocks,
		MaxPositions:    c.Lockup.MaxPositions,
		LockAsset:       c.Lockup.LockAsset,
		VaultAddress:    vault,
		TreasuryAddress: treasury,
	}, nil
}

// MinMint parses the configured minimum lock amount.
func (c *Config) MinMint() (*big.Int, error) {
	raw := strings.TrimSpace(c.Lockup.MinMint)
	if raw == "" {
		return big.NewInt(0), nil
	}
	value, ok := new(big.Int).SetString(raw, 10)
	if !ok || value.Sign() < 0 {
		return nil, fmt.Errorf("config: invalid MinMint %q", c.Lockup.MinMint)
	}
	return value, nil
}

// Ratios parses the three coefficient strings of a markup entry.
func (m MarkupEntry) Ratios() (hardcap, coefficient, lockShare fixedpoint.Ratio, err error) {
	if hardcap, err = fixedpoint.ParseDecimal(m.Hardcap); err != nil {
		return
	}
	if coefficient, err = fixedpoint.ParseDecimal(m.Coefficient); err != nil {
		return
	}
	lockShare, err = fixedpoint.ParseDecimal(m.LockShareCoefficient)
	return
}

func parseAddress(raw string) ([20]byte, error) {
	var addr [20]byte
	trimmed := strings.TrimPrefix(strings.TrimSpace(raw), "0x")
	if trimmed == "" {
		return addr, nil
	}
	decoded, err := hex.DecodeString(trimmed)
	if err != nil {
		return addr, fmt.Errorf("invalid address %q", raw)
	}
	if len(decoded) != 20 {
		return addr, fmt.Errorf("address %q must be 20 bytes", raw)
	}
	copy(addr[:], decoded)
	return addr, nil
}
