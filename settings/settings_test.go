package settings

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"promptlab/models"
)

func backends(t *testing.T) map[string]Backend {
	t.Helper()
	sq, err := OpenSQLite(":memory:", "test-secret")
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	out := map[string]Backend{"memory": NewMemoryBackend(), "sqlite": sq}
	t.Cleanup(func() {
		for _, b := range out {
			b.Close()
		}
	})
	return out
}

func TestLoadReturnsDefaultsWhenEmpty(t *testing.T) {
	for name, b := range backends(t) {
		t.Run(name, func(t *testing.T) {
			got, err := b.Profile("p1").Load(context.Background())
			if err != nil {
				t.Fatalf("Load: %v", err)
			}
			if got != models.DefaultSettings() {
				t.Errorf("got %+v", got)
			}
		})
	}
}

func TestSaveSkipsBlankFields(t *testing.T) {
	ctx := context.Background()
	for name, b := range backends(t) {
		t.Run(name, func(t *testing.T) {
			st := b.Profile("p1")
			if err := st.Save(ctx, models.ConnectionSettings{APIKey: " flp_key ", Model: "m1"}); err != nil {
				t.Fatalf("Save: %v", err)
			}
			// blank credential must not erase the stored one
			if err := st.Save(ctx, models.ConnectionSettings{Endpoint: "https://example.test/v1"}); err != nil {
				t.Fatalf("Save: %v", err)
			}

			got, err := st.Load(ctx)
			if err != nil {
				t.Fatalf("Load: %v", err)
			}
			want := models.ConnectionSettings{
				APIKey:      "flp_key",
				Endpoint:    "https://example.test/v1",
				Model:       "m1",
				Temperature: models.DefaultTemperature,
			}
			if got != want {
				t.Errorf("got %+v, want %+v", got, want)
			}
		})
	}
}

func TestProfilesAreIsolated(t *testing.T) {
	ctx := context.Background()
	for name, b := range backends(t) {
		t.Run(name, func(t *testing.T) {
			if err := b.Profile("a").Save(ctx, models.ConnectionSettings{APIKey: "key-a"}); err != nil {
				t.Fatal(err)
			}
			got, _ := b.Profile("b").Load(ctx)
			if got.HasCredential() {
				t.Errorf("profile b sees credential %q", got.APIKey)
			}
		})
	}
}

func TestClear(t *testing.T) {
	ctx := context.Background()
	for name, b := range backends(t) {
		t.Run(name, func(t *testing.T) {
			st := b.Profile("p1")
			st.Save(ctx, models.ConnectionSettings{APIKey: "k", Endpoint: "e", Model: "m"})

			cleared, err := st.Clear(ctx)
			if err != nil {
				t.Fatalf("Clear: %v", err)
			}
			if cleared != models.DefaultSettings() {
				t.Errorf("Clear returned %+v", cleared)
			}
			got, _ := st.Load(ctx)
			if got != models.DefaultSettings() {
				t.Errorf("Load after Clear = %+v", got)
			}
		})
	}
}

func TestSQLiteSealsCredential(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "settings.db")

	b, err := OpenSQLite(path, "s3cret")
	if err != nil {
		t.Fatal(err)
	}
	if err := b.Profile("p").Save(ctx, models.ConnectionSettings{APIKey: "flp_plaintext"}); err != nil {
		t.Fatal(err)
	}

	var raw string
	if err := b.db.QueryRowContext(ctx, `SELECT value FROM settings WHERE profile = ? AND key = ?`, "p", KeyCredential).Scan(&raw); err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(raw, sealPrefix) || strings.Contains(raw, "flp_plaintext") {
		t.Errorf("credential stored unsealed: %q", raw)
	}
	b.Close()

	// survives a reopen with the same secret
	b, err = OpenSQLite(path, "s3cret")
	if err != nil {
		t.Fatal(err)
	}
	got, _ := b.Profile("p").Load(ctx)
	if got.APIKey != "flp_plaintext" {
		t.Errorf("reopened credential = %q", got.APIKey)
	}
	b.Close()

	// a different secret cannot read it and the credential is dropped
	b, err = OpenSQLite(path, "other")
	if err != nil {
		t.Fatal(err)
	}
	defer b.Close()
	got, err = b.Profile("p").Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.HasCredential() {
		t.Errorf("wrong secret yielded credential %q", got.APIKey)
	}
}

func TestSealerRoundTripAndPlaintextPassthrough(t *testing.T) {
	s := newSealer("k")
	sealed, err := s.seal("value")
	if err != nil {
		t.Fatal(err)
	}
	if plain, err := s.open(sealed); err != nil || plain != "value" {
		t.Errorf("open = %q, %v", plain, err)
	}
	if plain, err := s.open("legacy"); err != nil || plain != "legacy" {
		t.Errorf("plaintext passthrough = %q, %v", plain, err)
	}

	var none *sealer
	if v, _ := none.seal("x"); v != "x" {
		t.Errorf("nil sealer changed value: %q", v)
	}
	if _, err := none.open(sealed); err == nil {
		t.Error("nil sealer opened a sealed value")
	}
}

func TestOpen(t *testing.T) {
	b, err := Open("memory", "", "")
	if err != nil || b.Name() != "memory" {
		t.Fatalf("Open(memory) = %v, %v", b, err)
	}
	if _, err := Open("redis", "", ""); err == nil {
		t.Error("expected error for unknown backend")
	}
}

func TestMemoryClosed(t *testing.T) {
	m := NewMemoryBackend()
	m.Close()
	if err := m.Profile("p").Save(context.Background(), models.ConnectionSettings{APIKey: "k"}); err != ErrClosed {
		t.Errorf("Save after Close = %v", err)
	}
}
