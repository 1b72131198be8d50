// Copyright 2026 The Granula Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package config loads the environment-driven configuration described in
// spec §6, with the same defaults and names the HTTP/worker surface relies
// on.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// Config is the process-wide configuration, built once at startup and
// passed down as a dependency rather than read from the environment deep
// inside the core (spec §9, "global mutable singleton" re-architecture).
type Config struct {
	DatabaseURL          string
	MaxConcurrency       int
	ChunkSize            int
	MaxRetries           int
	BaseBackoff          time.Duration
	MaxBackoff           time.Duration
	MaxUploadMB          int64
	AllowedContentTypes  []string
	DeleteFileOnComplete bool
	DisableBackground    bool
}

// New builds a Config from the process environment. It fails fast (Fatal,
// per spec §7) on any value that does not parse.
func New() (*Config, error) {
	c := &Config{
		DatabaseURL:          os.Getenv("DATABASE_URL"),
		AllowedContentTypes:  splitCSV(getenv("ALLOWED_CONTENT_TYPES", "text/csv,application/csv")),
		DeleteFileOnComplete: getenvBool("DELETE_FILE_ON_COMPLETE", false),
		DisableBackground:    getenvBool("DISABLE_BACKGROUND", false),
	}

	if c.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL is required")
	}
	for _, key := range []string{"DELETE_FILE_ON_COMPLETE", "DISABLE_BACKGROUND"} {
		if raw := os.Getenv(key); raw != "" {
			if _, err := strconv.ParseBool(raw); err != nil {
				return nil, errors.Wrapf(err, "invalid %s", key)
			}
		}
	}

	var err error
	if c.MaxConcurrency, err = getenvInt("MAX_CONCURRENCY", 10); err != nil {
		return nil, err
	}
	if c.ChunkSize, err = getenvInt("CHUNK_SIZE", 10000); err != nil {
		return nil, err
	}
	if c.MaxRetries, err = getenvInt("MAX_RETRIES", 3); err != nil {
		return nil, err
	}
	baseBackoff, err := getenvFloat("BASE_BACKOFF", 1.0)
	if err != nil {
		return nil, err
	}
	c.BaseBackoff = durationFromSeconds(baseBackoff)
	maxBackoff, err := getenvFloat("MAX_BACKOFF", 30.0)
	if err != nil {
		return nil, err
	}
	c.MaxBackoff = durationFromSeconds(maxBackoff)
	maxUploadMB, err := getenvInt("MAX_UPLOAD_MB", 500)
	if err != nil {
		return nil, err
	}
	c.MaxUploadMB = int64(maxUploadMB)

	if c.MaxConcurrency < 1 {
		return nil, errors.New("MAX_CONCURRENCY must be >= 1")
	}
	if c.ChunkSize < 1 {
		return nil, errors.New("CHUNK_SIZE must be >= 1")
	}
	if c.MaxRetries < 0 {
		return nil, errors.New("MAX_RETRIES must be >= 0")
	}

	return c, nil
}

// MaxUploadBytes converts the configured megabyte limit to bytes.
func (c *Config) MaxUploadBytes() int64 {
	return c.MaxUploadMB * 1024 * 1024
}

// ContentTypeAllowed reports whether ct is on the configured allow-list.
func (c *Config) ContentTypeAllowed(ct string) bool {
	for _, allowed := range c.AllowedContentTypes {
		if strings.EqualFold(strings.TrimSpace(ct), allowed) {
			return true
		}
	}
	return false
}

func durationFromSeconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, errors.Wrapf(err, "invalid %s", key)
	}
	return v, nil
}

func getenvFloat(key string, def float64) (float64, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, errors.Wrapf(err, "invalid %s", key)
	}
	return v, nil
}

func getenvBool(key string, def bool) bool {
	raw := os.Getenv(key)
	if raw == "" {
		return def
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return def
	}
	return v
}

func splitCSV(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
