package api

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

type apiConfig struct {
	BaseURL     string
	Token       string
	HeaderName  string
	Timeout     time.Duration
	Concurrency int
}

func resolveAPIConfig() (apiConfig, error) {
	cfg := apiConfig{
		BaseURL:     strings.TrimRight(strings.TrimSpace(os.Getenv("ENDPOINT")), "/"),
		Token:       strings.TrimSpace(os.Getenv("TOKEN")),
		HeaderName:  strings.TrimSpace(os.Getenv("PROCON_TOKEN_HEADER")),
		Timeout:     10 * time.Second,
		Concurrency: 4,
	}
	if cfg.BaseURL == "" {
		return apiConfig{}, errors.New("endpoint missing: set ENDPOINT")
	}
	if !strings.HasPrefix(cfg.BaseURL, "http://") && !strings.HasPrefix(cfg.BaseURL, "https://") {
		cfg.BaseURL = "http://" + cfg.BaseURL
	}
	if cfg.Token == "" {
		return apiConfig{}, errors.New("token missing: set TOKEN")
	}
	if cfg.HeaderName == "" {
		cfg.HeaderName = TokenHeader
	}
	if v := strings.TrimSpace(os.Getenv("HTTP_TIMEOUT_MS")); v != "" {
		if ms, err := strconv.Atoi(v); err == nil && ms > 0 {
			cfg.Timeout = time.Duration(ms) * time.Millisecond
		}
	}
	if v := strings.TrimSpace(os.Getenv("CHUNK_FETCH_CONCURRENCY")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Concurrency = n
		}
	}
	return cfg, nil
}
