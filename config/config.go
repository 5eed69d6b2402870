package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"migrator/native/migration"
)

// Config drives the migrated daemon: where to listen, where receipts live
// and who administers the engines.
type Config struct {
	ListenAddress string `toml:"ListenAddress"`
	DataDir       string `toml:"DataDir"`
	Env           string `toml:"Env"`
	AdminToken    string `toml:"AdminToken"`
	Administrator string `toml:"Administrator"`
}

// Load reads the configuration at path, writing a commented default file when
// none exists yet.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}

	meta, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, err
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("config file %s contains unknown keys: %v", path, undecoded)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the loaded values and fills defaults where the file left
// fields empty.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.ListenAddress) == "" {
		c.ListenAddress = ":8560"
	}
	if strings.TrimSpace(c.DataDir) == "" {
		c.DataDir = "./migrated-data"
	}
	if strings.TrimSpace(c.AdminToken) == "" {
		return fmt.Errorf("config: AdminToken must be set")
	}
	if _, err := migration.ParseAddress(c.Administrator); err != nil {
		return fmt.Errorf("config: Administrator: %w", err)
	}
	return nil
}

// AdministratorAddress returns the parsed administrator identity. Call only
// after Validate has succeeded.
func (c *Config) AdministratorAddress() [20]byte {
	addr, _ := migration.ParseAddress(c.Administrator)
	return addr
}

func createDefault(path string) (*Config, error) {
	cfg := &Config{
		ListenAddress: ":8560",
		DataDir:       "./migrated-data",
		Env:           "local",
		AdminToken:    "change-me",
		Administrator: "0x00000000000000000000000000000000000000a1",
	}
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	if err := toml.NewEncoder(f).Encode(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
