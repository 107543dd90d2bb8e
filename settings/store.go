package settings

import (
	"context"
	"errors"

	"promptlab/models"
)

// Stored field names. Temperature is never persisted.
const (
	KeyCredential = "credential"
	KeyEndpoint   = "endpoint"
	KeyModel      = "model"
)

// ErrClosed is returned by stores whose backend has been closed
var ErrClosed = errors.New("settings backend closed")

// Store persists one user's connection settings across sessions
type Store interface {
	// Load returns the stored values merged over the built-in defaults
	Load(ctx context.Context) (models.ConnectionSettings, error)
	// Save writes each non-blank field; blank fields leave stored values untouched
	Save(ctx context.Context, s models.ConnectionSettings) error
	// Clear removes every stored field and returns the defaults
	Clear(ctx context.Context) (models.ConnectionSettings, error)
}

// Backend hands out a Store per profile
type Backend interface {
	Profile(id string) Store
	Name() string
	Close() error
}

// fields maps a settings value to its stored keys, skipping blanks
func fields(s models.ConnectionSettings) map[string]string {
	out := make(map[string]string, 3)
	put := func(k, v string) {
		if v = trim(v); v != "" {
			out[k] = v
		}
	}
	put(KeyCredential, s.APIKey)
	put(KeyEndpoint, s.Endpoint)
	put(KeyModel, s.Model)
	return out
}

// merge overlays stored values on the defaults
func merge(stored map[string]string) models.ConnectionSettings {
	s := models.DefaultSettings()
	if v := stored[KeyCredential]; v != "" {
		s.APIKey = v
	}
	if v := stored[KeyEndpoint]; v != "" {
		s.Endpoint = v
	}
	if v := stored[KeyModel]; v != "" {
		s.Model = v
	}
	return s
}
