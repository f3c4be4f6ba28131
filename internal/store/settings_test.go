package store

import (
	"context"
	"errors"
	"testing"

	"github.com/erazemk/zapuscina/internal/db"
)

func TestGetJWTSecretPersists(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	secret1, err := GetJWTSecret(ctx, database)
	if err != nil {
		t.Fatal(err)
	}
	if len(secret1) != 64 { // 32 bytes as hex
		t.Fatalf("expected 64 hex chars, got %d", len(secret1))
	}

	secret2, err := GetJWTSecret(ctx, database)
	if err != nil {
		t.Fatal(err)
	}
	if secret1 != secret2 {
		t.Fatalf("expected same secret, got %q and %q", secret1, secret2)
	}
}

func TestSettings(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	if _, ok, err := GetSetting(ctx, database, "greeting"); err != nil || ok {
		t.Fatalf("expected missing setting, got ok=%v err=%v", ok, err)
	}

	if err := SetSetting(ctx, database, "greeting", "hello"); err != nil {
		t.Fatal(err)
	}
	if err := SetSetting(ctx, database, "greeting", "hi"); err != nil {
		t.Fatal(err)
	}
	if v, ok, _ := GetSetting(ctx, database, "greeting"); !ok || v != "hi" {
		t.Errorf("expected overwritten value, got %q", v)
	}

	calls := 0
	gen := func() (string, error) { calls++; return "generated", nil }
	v, err := EnsureSetting(ctx, database, "greeting", gen)
	if err != nil || v != "hi" || calls != 0 {
		t.Errorf("existing value should win without generating: %q %v calls=%d", v, err, calls)
	}

	boom := errors.New("no entropy")
	if _, err := EnsureSetting(ctx, database, "other", func() (string, error) { return "", boom }); !errors.Is(err, boom) {
		t.Errorf("expected generate error, got %v", err)
	}
}
