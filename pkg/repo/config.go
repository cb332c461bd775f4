package repo

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/siltvcs/silt/pkg/object"
)

// Config stores repository-local settings in .silt/config.toml.
type Config struct {
	User UserConfig `toml:"user"`
}

// UserConfig is the identity recorded in commits.
type UserConfig struct {
	Name  string `toml:"name"`
	Email string `toml:"email"`
}

func (r *Repo) configPath() string {
	return filepath.Join(r.SiltDir, "config.toml")
}

// ReadConfig reads .silt/config.toml. A missing file returns an empty
// config.
func (r *Repo) ReadConfig() (*Config, error) {
	var cfg Config
	if _, err := toml.DecodeFile(r.configPath(), &cfg); err != nil {
		if os.IsNotExist(err) {
			return &Config{}, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}
	return &cfg, nil
}

// WriteConfig atomically writes .silt/config.toml.
func (r *Repo) WriteConfig(cfg *Config) error {
	if cfg == nil {
		cfg = &Config{}
	}

	tmp, err := os.CreateTemp(r.SiltDir, ".config-tmp-*")
	if err != nil {
		return fmt.Errorf("write config: tmpfile: %w", err)
	}
	tmpName := tmp.Name()

	if err := toml.NewEncoder(tmp).Encode(cfg); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write config: encode: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("write config: close: %w", err)
	}
	if err := os.Rename(tmpName, r.configPath()); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("write config: rename: %w", err)
	}
	return nil
}

// SetUser stores the commit identity in repository config.
func (r *Repo) SetUser(name, email string) error {
	name = strings.TrimSpace(name)
	email = strings.TrimSpace(email)
	if name == "" {
		return fmt.Errorf("set user: name is required")
	}

	cfg, err := r.ReadConfig()
	if err != nil {
		return err
	}
	cfg.User.Name = name
	cfg.User.Email = email
	return r.WriteConfig(cfg)
}

// Identity returns the configured identity stamped with the current time.
// The config is consulted on every call; commits never cache identity
// across invocations.
func (r *Repo) Identity() (object.Ident, error) {
	cfg, err := r.ReadConfig()
	if err != nil {
		return object.Ident{}, err
	}

	name := strings.TrimSpace(cfg.User.Name)
	email := strings.TrimSpace(cfg.User.Email)
	if name == "" {
		name = "unknown"
	}
	if email == "" {
		email = "unknown@localhost"
	}

	now := time.Now()
	_, offset := now.Zone()
	sign := "+"
	if offset < 0 {
		sign = "-"
		offset = -offset
	}

	return object.Ident{
		Name:  name,
		Email: email,
		When:  now.Unix(),
		TZ:    fmt.Sprintf("%s%02d%02d", sign, offset/3600, (offset%3600)/60),
	}, nil
}
