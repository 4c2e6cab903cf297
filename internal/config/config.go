// Package config holds the settings the service is started with. A Config is
// loaded once in inject.Setup and never modified afterwards.
package config

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dmorgan81/imagen/internal/log"
	"github.com/dmorgan81/imagen/internal/param"
	"github.com/samber/lo"
)

const (
	// PlaceholderKey is the value shipped in example environments. It is
	// treated the same as a missing key.
	PlaceholderKey = "TU_CLAVE_AQUI"

	DefaultEndpoint = "https://openrouter.ai/api/v1/images/generations"
	DefaultProfile  = "general"
	DefaultReferer  = "https://imagen.local"
	DefaultTitle    = "imagen"
	DefaultTimeout  = 120 * time.Second
	DefaultAddr     = ":8080"
)

type Config struct {
	APIKey   string
	Endpoint string
	Profile  string
	Referer  string
	Title    string
	Timeout  time.Duration

	Addr      string
	PublicURL string
	Debug     bool

	// PromptsParam names a parameter store path holding example prompts.
	PromptsParam string

	// Archive settings; all empty means generated images are never stored.
	Bucket       string
	Distribution string
	ArchiveDir   string
}

// HasAPIKey reports whether a usable key was configured.
func (c Config) HasAPIKey() bool {
	return c.APIKey != "" && c.APIKey != PlaceholderKey
}

func (c Config) ArchiveEnabled() bool {
	return c.Bucket != "" || c.ArchiveDir != ""
}

// Load builds a Config from getenv. When OPENROUTER_API_KEY_PARAM is set the
// key is read through fetcher instead of OPENROUTER_API_KEY.
func Load(ctx context.Context, getenv func(string) string, fetcher func() (param.Fetcher, error)) (Config, error) {
	logger := log.FromContextOrDiscard(ctx).WithGroup("config")

	env := func(name, fallback string) string {
		v := strings.TrimSpace(getenv(name))
		return lo.Ternary(v != "", v, fallback)
	}

	cfg := Config{
		APIKey:       strings.TrimSpace(getenv("OPENROUTER_API_KEY")),
		Endpoint:     env("IMAGEN_ENDPOINT", DefaultEndpoint),
		Profile:      env("IMAGEN_PROFILE", DefaultProfile),
		Referer:      env("IMAGEN_REFERER", DefaultReferer),
		Title:        env("IMAGEN_TITLE", DefaultTitle),
		Timeout:      DefaultTimeout,
		Addr:         env("IMAGEN_ADDR", DefaultAddr),
		PublicURL:    strings.TrimSuffix(env("IMAGEN_PUBLIC_URL", ""), "/"),
		PromptsParam: env("PROMPTS_PARAM", ""),
		Bucket:       env("BUCKET", ""),
		Distribution: env("DISTRIBUTION", ""),
		ArchiveDir:   env("ARCHIVE_DIR", ""),
	}

	if v := env("IMAGEN_TIMEOUT", ""); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return Config{}, fmt.Errorf("IMAGEN_TIMEOUT: %w", err)
		}
		if d <= 0 {
			return Config{}, fmt.Errorf("IMAGEN_TIMEOUT: must be positive, got %s", d)
		}
		cfg.Timeout = d
	}

	if v := env("IMAGEN_DEBUG", ""); v != "" {
		debug, err := strconv.ParseBool(v)
		if err != nil {
			return Config{}, fmt.Errorf("IMAGEN_DEBUG: %w", err)
		}
		cfg.Debug = debug
	}

	if path := env("OPENROUTER_API_KEY_PARAM", ""); path != "" {
		f, err := fetcher()
		if err != nil {
			return Config{}, err
		}
		key, err := f.Fetch(ctx, path)
		if err != nil {
			return Config{}, err
		}
		cfg.APIKey = strings.TrimSpace(key)
	}

	if !cfg.HasAPIKey() {
		logger.Warn("no api key configured; submissions will be rejected")
	}
	logger.Info("loaded configuration",
		"endpoint", cfg.Endpoint,
		"profile", cfg.Profile,
		"timeout", cfg.Timeout.String(),
		"archive", cfg.ArchiveEnabled(),
	)
	return cfg, nil
}
