package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/flock"

	"github.com/binsquare/envline/dotenv"
	"github.com/binsquare/envline/envfile"
)

func init() {
	Register(Info{
		Type:           "local-store",
		Description:    "Encrypted local .env store",
		Factory:        newLocalStore,
		RequiredFields: []string{"path", "encryption"},
	})
}

// storeDocument is the plaintext of the local store: one rendered .env
// document per namespace root.
type storeDocument struct {
	Namespaces map[string]storeEntry `json:"namespaces"`
}

type storeEntry struct {
	Env       string    `json:"env"`
	UpdatedAt time.Time `json:"updated_at"`
}

type localStore struct {
	path   string
	sealer *sealer
	lock   *flock.Flock
	mu     sync.Mutex
	now    func() time.Time
}

func newLocalStore(cfg Config) (Provider, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("%w: local-store missing path", ErrNotConfigured)
	}
	if cfg.Encryption == nil {
		return nil, fmt.Errorf("%w: local-store requires encryption configuration", ErrNotConfigured)
	}
	material, err := loadKeyMaterial(cfg.Encryption)
	if err != nil {
		return nil, err
	}
	s, err := newSealer(material)
	if err != nil {
		return nil, err
	}
	return &localStore{
		path:   cfg.Path,
		sealer: s,
		lock:   flock.New(cfg.Path + ".lock"),
		now:    time.Now,
	}, nil
}

func (p *localStore) Pull(ctx context.Context, ns Namespace) ([]dotenv.Pair, error) {
	snap, err := p.Describe(ctx, ns)
	if err != nil {
		return nil, err
	}
	return snap.Pairs, nil
}

// Describe returns the namespace's pairs and when they were last pushed.
func (p *localStore) Describe(_ context.Context, ns Namespace) (Snapshot, error) {
	var snap Snapshot
	err := p.withLock(func() error {
		doc, err := p.readUnlocked()
		if err != nil {
			return err
		}
		entry, ok := doc.Namespaces[ns.Root()]
		if !ok {
			return nil
		}
		pairs, err := decodeEntry(ns, entry)
		if err != nil {
			return err
		}
		snap = Snapshot{Pairs: sortedPairs(envfile.Map(pairs)), UpdatedAt: entry.UpdatedAt}
		return nil
	})
	return snap, err
}

func (p *localStore) Push(_ context.Context, ns Namespace, pairs []dotenv.Pair) error {
	return p.withLock(func() error {
		doc, err := p.readUnlocked()
		if err != nil {
			return err
		}
		root := ns.Root()
		var existing []dotenv.Pair
		if entry, ok := doc.Namespaces[root]; ok {
			if existing, err = decodeEntry(ns, entry); err != nil {
				return err
			}
		}
		text, err := envfile.Render(envfile.Merge(existing, pairs))
		if err != nil {
			return err
		}
		doc.Namespaces[root] = storeEntry{Env: text, UpdatedAt: p.now().UTC()}
		return p.writeUnlocked(doc)
	})
}

// decodeEntry parses a stored document. Stored values are rendered with
// quoting, so no lookup is needed to reproduce them.
func decodeEntry(ns Namespace, entry storeEntry) ([]dotenv.Pair, error) {
	pairs, err := envfile.Parse(strings.NewReader(entry.Env), envfile.Options{
		Env:  func(string) (string, bool) { return "", false },
		Path: "local-store:" + ns.String(),
	})
	if err != nil {
		return nil, fmt.Errorf("decode local store: %w", err)
	}
	return pairs, nil
}

func (p *localStore) readUnlocked() (*storeDocument, error) {
	doc := &storeDocument{Namespaces: map[string]storeEntry{}}
	raw, err := os.ReadFile(p.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return doc, nil
		}
		return nil, fmt.Errorf("read local store: %w", err)
	}
	if len(raw) == 0 {
		return doc, nil
	}
	plaintext, err := p.sealer.open(raw)
	if err != nil {
		return nil, fmt.Errorf("decrypt local store: %w", err)
	}
	if err := json.Unmarshal(plaintext, doc); err != nil {
		return nil, fmt.Errorf("parse local store: %w", err)
	}
	if doc.Namespaces == nil {
		doc.Namespaces = map[string]storeEntry{}
	}
	return doc, nil
}

// writeUnlocked replaces the store through a temp file and rename so
// readers never see a partial write.
func (p *localStore) writeUnlocked(doc *storeDocument) error {
	encoded, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode local store: %w", err)
	}
	sealed, err := p.sealer.seal(encoded)
	if err != nil {
		return fmt.Errorf("encrypt local store: %w", err)
	}

	dir := filepath.Dir(p.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create local store dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".envline-store-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			os.Remove(tmpPath)
		}
	}()

	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if _, err := tmp.Write(sealed); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, p.path); err != nil {
		return fmt.Errorf("rename temp file: %w", err)
	}
	committed = true
	return nil
}

// withLock serialises access across goroutines (mu) and processes (flock).
func (p *localStore) withLock(fn func() error) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(p.path), 0o700); err != nil {
		return fmt.Errorf("create local store dir: %w", err)
	}
	if err := p.lock.Lock(); err != nil {
		return fmt.Errorf("acquire lock %s: %w", p.lock.Path(), err)
	}
	defer func() {
		if err := p.lock.Unlock(); err != nil {
			slog.Warn("unlock local store", "path", p.lock.Path(), "err", err)
		}
	}()
	return fn()
}
