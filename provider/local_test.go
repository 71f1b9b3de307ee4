package provider

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/binsquare/envline/dotenv"
)

func newTestStore(t *testing.T) (*localStore, Config) {
	t.Helper()
	dir := t.TempDir()
	keyPath := filepath.Join(dir, "key")
	if err := os.WriteFile(keyPath, bytesOfLen(32), 0o600); err != nil {
		t.Fatalf("write key: %v", err)
	}
	cfg := Config{
		Type:       "local-store",
		Path:       filepath.Join(dir, "store", "envline.db"),
		Encryption: &EncryptionConfig{KeyFile: keyPath},
	}
	p, err := Open(cfg)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return p.(*localStore), cfg
}

func TestLocalStorePushPull(t *testing.T) {
	t.Parallel()
	store, cfg := newTestStore(t)
	ctx := context.Background()
	ns := Namespace{PathPrefix: "/app/dev"}

	pairs := []dotenv.Pair{
		{Key: "DB_URL", Value: "postgres://example"},
		{Key: "MULTI", Value: "line 1\nline 2"},
		{Key: "DOLLAR", Value: "$HOME is ${literal}"},
		{Key: "EMPTY", Value: ""},
	}
	if err := store.Push(ctx, ns, pairs); err != nil {
		t.Fatalf("Push: %v", err)
	}

	// Reopen to make sure the data went to disk.
	p2, err := Open(cfg)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	got, err := p2.Pull(ctx, ns)
	if err != nil {
		t.Fatalf("Pull: %v", err)
	}
	want := []dotenv.Pair{
		{Key: "DB_URL", Value: "postgres://example"},
		{Key: "DOLLAR", Value: "$HOME is ${literal}"},
		{Key: "EMPTY", Value: ""},
		{Key: "MULTI", Value: "line 1\nline 2"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Pull() = %v, want %v", got, want)
	}

	raw, err := os.ReadFile(cfg.Path)
	if err != nil {
		t.Fatal(err)
	}
	if len(raw) == 0 || bytes.Contains(raw, []byte("postgres")) || bytes.Contains(raw, []byte("DB_URL")) {
		t.Error("store file should be encrypted")
	}
}

func TestLocalStoreMergesAndIsolatesNamespaces(t *testing.T) {
	t.Parallel()
	store, _ := newTestStore(t)
	ctx := context.Background()
	dev := Namespace{PathPrefix: "/app/dev"}
	prod := Namespace{PathPrefix: "/app/prod"}

	if err := store.Push(ctx, dev, []dotenv.Pair{{Key: "A", Value: "1"}, {Key: "B", Value: "1"}}); err != nil {
		t.Fatal(err)
	}
	if err := store.Push(ctx, dev, []dotenv.Pair{{Key: "B", Value: "2"}}); err != nil {
		t.Fatal(err)
	}
	if err := store.Push(ctx, prod, []dotenv.Pair{{Key: "A", Value: "prod"}}); err != nil {
		t.Fatal(err)
	}

	got, err := store.Pull(ctx, dev)
	if err != nil {
		t.Fatal(err)
	}
	want := []dotenv.Pair{{Key: "A", Value: "1"}, {Key: "B", Value: "2"}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("dev = %v, want %v", got, want)
	}

	got, err = store.Pull(ctx, prod)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(got, []dotenv.Pair{{Key: "A", Value: "prod"}}) {
		t.Errorf("prod = %v", got)
	}

	got, err = store.Pull(ctx, Namespace{PathPrefix: "/app/staging"})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Errorf("unknown namespace = %v, want empty", got)
	}
}

func TestLocalStoreRejectsInvalidKey(t *testing.T) {
	t.Parallel()
	store, _ := newTestStore(t)
	err := store.Push(context.Background(), Namespace{}, []dotenv.Pair{{Key: "not valid", Value: "x"}})
	if err == nil {
		t.Fatal("expected error for invalid key")
	}
}

func TestLocalStoreRejectsInvalidUTF8(t *testing.T) {
	t.Parallel()
	store, _ := newTestStore(t)
	ctx := context.Background()
	ns := Namespace{PathPrefix: "/app/dev"}
	if err := store.Push(ctx, ns, []dotenv.Pair{{Key: "OK", Value: "1"}}); err != nil {
		t.Fatal(err)
	}
	if err := store.Push(ctx, ns, []dotenv.Pair{{Key: "BIN", Value: "a\xffb"}}); err == nil {
		t.Fatal("expected error for a value that is not UTF-8")
	}
	got, err := store.Pull(ctx, ns)
	if err != nil {
		t.Fatal(err)
	}
	if want := []dotenv.Pair{{Key: "OK", Value: "1"}}; !reflect.DeepEqual(got, want) {
		t.Errorf("Pull = %v, want %v", got, want)
	}
}

func TestLocalStoreDescribe(t *testing.T) {
	t.Parallel()
	store, _ := newTestStore(t)
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return fixed }
	ctx := context.Background()
	ns := Namespace{Prefix: "svc_"}

	if err := store.Push(ctx, ns, []dotenv.Pair{{Key: "K", Value: "v"}}); err != nil {
		t.Fatal(err)
	}
	snap, err := PullSnapshot(ctx, store, ns)
	if err != nil {
		t.Fatal(err)
	}
	if !snap.UpdatedAt.Equal(fixed) {
		t.Errorf("UpdatedAt = %v, want %v", snap.UpdatedAt, fixed)
	}
	if len(snap.Pairs) != 1 || snap.Pairs[0].Value != "v" {
		t.Errorf("Pairs = %v", snap.Pairs)
	}
}

func TestLocalStoreConcurrentPush(t *testing.T) {
	t.Parallel()
	store, _ := newTestStore(t)
	ctx := context.Background()
	ns := Namespace{PathPrefix: "/app/dev"}
	keys := []string{"K0", "K1", "K2", "K3", "K4", "K5", "K6", "K7"}

	var wg sync.WaitGroup
	for _, k := range keys {
		wg.Add(1)
		go func(k string) {
			defer wg.Done()
			if err := store.Push(ctx, ns, []dotenv.Pair{{Key: k, Value: k}}); err != nil {
				t.Errorf("Push %s: %v", k, err)
			}
		}(k)
	}
	wg.Wait()

	got, err := store.Pull(ctx, ns)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != len(keys) {
		t.Errorf("got %d pairs, want %d: %v", len(got), len(keys), got)
	}
}

func TestLocalStoreWrongKey(t *testing.T) {
	t.Parallel()
	store, cfg := newTestStore(t)
	if err := store.Push(context.Background(), Namespace{}, []dotenv.Pair{{Key: "A", Value: "1"}}); err != nil {
		t.Fatal(err)
	}

	otherKey := filepath.Join(t.TempDir(), "other")
	if err := os.WriteFile(otherKey, []byte("another-key-material-entirely"), 0o600); err != nil {
		t.Fatal(err)
	}
	cfg.Encryption = &EncryptionConfig{KeyFile: otherKey}
	p, err := Open(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := p.Pull(context.Background(), Namespace{}); err == nil {
		t.Error("Pull with the wrong key should fail")
	}
}

func bytesOfLen(n int) []byte {
	buf := make([]byte, n)
	for i := range buf {
		buf[i] = byte(1 + (i % 250))
	}
	return buf
}
