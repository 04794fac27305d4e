package linkauth

import (
	"context"
	"errors"
	"testing"

	"github.com/MrEthical07/linkauth/storage"
)

func TestBuildRequiresDependencies(t *testing.T) {
	_, rdb := newTestRedis(t)
	store, err := storage.OpenMemory(context.Background())
	if err != nil {
		t.Fatalf("OpenMemory failed: %v", err)
	}
	t.Cleanup(func() { _ = store.DB().Close() })

	if _, err := New().WithConfig(testConfig()).WithAccountStore(store).Build(); err == nil {
		t.Fatal("expected error without redis")
	}
	if _, err := New().WithConfig(testConfig()).WithRedis(rdb).Build(); err == nil {
		t.Fatal("expected error without account store")
	}
	if _, err := New().WithRedis(rdb).WithAccountStore(store).Build(); err == nil {
		t.Fatal("expected error for default config without keys")
	}
}

func TestBuilderSingleUse(t *testing.T) {
	_, rdb := newTestRedis(t)
	store, err := storage.OpenMemory(context.Background())
	if err != nil {
		t.Fatalf("OpenMemory failed: %v", err)
	}
	t.Cleanup(func() { _ = store.DB().Close() })

	b := New().WithConfig(testConfig()).WithRedis(rdb).WithAccountStore(store)
	engine, err := b.Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	defer engine.Close()

	if _, err := b.Build(); err == nil {
		t.Fatal("expected second Build to fail")
	}
}

func TestEngineWithoutIdentityProvider(t *testing.T) {
	_, rdb := newTestRedis(t)
	store, err := storage.OpenMemory(context.Background())
	if err != nil {
		t.Fatalf("OpenMemory failed: %v", err)
	}
	t.Cleanup(func() { _ = store.DB().Close() })

	engine, err := New().WithConfig(testConfig()).WithRedis(rdb).WithAccountStore(store).Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	defer engine.Close()

	if _, err := engine.BeginOAuth(context.Background(), "google", "", false); !errors.Is(err, ErrUnsupportedProvider) {
		t.Fatalf("expected ErrUnsupportedProvider, got %v", err)
	}
}
