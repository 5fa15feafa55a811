// Package sync orchestrates the offline-first document lifecycle: remote-
// preferred load, local-first save with best-effort remote push, and a
// realtime subscription that overwrites local state when remote content
// changes.
//
// Replication is whole-document last-writer-wins. A remote notification that
// matches current content byte-for-byte is a no-op, which suppresses echoes
// of this node's own writes; a genuinely newer remote document overwrites
// concurrent unsaved local edits in memory. There is no per-field conflict
// resolution, and lost updates under true concurrent writers are accepted.
package sync

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/juckphai/salejuck/internal/platform/replica"
	"github.com/juckphai/salejuck/internal/pos"
)

// LocalStore is the durable device-scoped cache the engine writes through.
type LocalStore interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
}

// LoadSource reports where Load found the working document.
type LoadSource string

const (
	SourceRemote    LoadSource = "remote"
	SourceLocal     LoadSource = "local"
	SourceBootstrap LoadSource = "bootstrap"
)

// DefaultDocumentKey is the local cache key holding the document.
const DefaultDocumentKey = "posData"

// ErrNotLoaded is returned when the document is accessed before Load.
var ErrNotLoaded = errors.New("sync: document not loaded")

// Config groups engine dependencies. Remote may be nil for a purely
// offline node.
type Config struct {
	Local       LocalStore
	Remote      replica.Replica
	Logger      *slog.Logger
	Key         string
	PushTimeout time.Duration
}

// Engine owns the in-memory document and serializes all access to it.
// The original execution model is single-threaded; one mutex preserves
// "no two mutations interleave" under concurrent HTTP handlers.
type Engine struct {
	mu  sync.Mutex
	doc *pos.Document

	local       LocalStore
	remote      replica.Replica
	logger      *slog.Logger
	key         string
	pushTimeout time.Duration

	views  *ViewRegistry
	events *Notifier

	subMu     sync.Mutex
	subCancel func()

	lastSource LoadSource
	pushes     sync.WaitGroup
}

// New constructs an Engine.
func New(cfg Config) *Engine {
	if cfg.Key == "" {
		cfg.Key = DefaultDocumentKey
	}
	if cfg.PushTimeout <= 0 {
		cfg.PushTimeout = 10 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Engine{
		local:       cfg.Local,
		remote:      cfg.Remote,
		logger:      cfg.Logger,
		key:         cfg.Key,
		pushTimeout: cfg.PushTimeout,
		views:       NewViewRegistry(),
		events:      NewNotifier(),
	}
}

// Views exposes the view-identifier to refresh-function registry.
func (e *Engine) Views() *ViewRegistry { return e.views }

// Events exposes the change feed consumed by the SSE handler.
func (e *Engine) Events() *Notifier { return e.events }

// LastLoadSource reports where the most recent Load found the document.
func (e *Engine) LastLoadSource() LoadSource {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastSource
}

// RemoteConfigured reports whether a remote replica is wired in.
func (e *Engine) RemoteConfigured() bool { return e.remote != nil }

// Load produces the working document: remote replica first, local cache as
// fallback, fresh bootstrap document with the default admin as last resort.
// A successful remote fetch is authoritative and written through to the
// local cache. The validation/migration pass runs before any consumer
// reads the result.
func (e *Engine) Load(ctx context.Context) (LoadSource, error) {
	var (
		doc    *pos.Document
		source LoadSource
	)

	if e.remote != nil {
		snap, err := e.remote.Get(ctx)
		switch {
		case err != nil:
			e.logger.Warn("remote load failed, falling back to local cache", slog.Any("error", err))
		case snap.Exists:
			var remote pos.Document
			if err := json.Unmarshal(snap.Data, &remote); err != nil {
				e.logger.Warn("remote document unparseable, falling back to local cache", slog.Any("error", err))
			} else {
				doc = &remote
				source = SourceRemote
				if err := e.local.Set(ctx, e.key, snap.Data); err != nil {
					return "", fmt.Errorf("sync: cache remote document: %w", err)
				}
			}
		}
	}

	if doc == nil {
		raw, ok, err := e.local.Get(ctx, e.key)
		if err != nil {
			return "", fmt.Errorf("sync: read local cache: %w", err)
		}
		if ok {
			var local pos.Document
			if err := json.Unmarshal(raw, &local); err != nil {
				// Corruption is surfaced, then recovered by bootstrap.
				e.logger.Error("local cache corrupt, resetting to defaults", slog.Any("error", err))
			} else {
				doc = &local
				source = SourceLocal
			}
		}
	}

	e.mu.Lock()
	if doc == nil {
		doc = pos.NewDocument()
		source = SourceBootstrap
		e.doc = doc
		e.lastSource = source
		if err := e.saveLocked(ctx, true); err != nil {
			e.mu.Unlock()
			return "", err
		}
		e.mu.Unlock()
		e.logger.Info("bootstrapped empty document with default admin")
		return source, nil
	}

	if pos.Normalize(doc) {
		e.logger.Info("document migrated to current schema")
	}
	e.doc = doc
	e.lastSource = source
	e.mu.Unlock()

	e.logger.Info("document loaded", slog.String("source", string(source)))
	return source, nil
}

// Read runs fn with the document under the engine lock. fn must not retain
// references past its return.
func (e *Engine) Read(fn func(*pos.Document)) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.doc == nil {
		return ErrNotLoaded
	}
	fn(e.doc)
	return nil
}

// Mutate runs fn under the engine lock and persists on success. When fn
// returns an error nothing is saved; mutation operations are written
// validate-first so a returned error means the document was left unchanged.
func (e *Engine) Mutate(ctx context.Context, fn func(*pos.Document) error) error {
	e.mu.Lock()
	if e.doc == nil {
		e.mu.Unlock()
		return ErrNotLoaded
	}
	if err := fn(e.doc); err != nil {
		e.mu.Unlock()
		return err
	}
	err := e.saveLocked(ctx, false)
	e.mu.Unlock()
	if err != nil {
		return err
	}
	e.afterChange("local-change")
	return nil
}

// MutateAndWait is Mutate with the remote push completed (or failed and
// logged) before it returns; used by flows such as import that must not
// proceed until the document has been offered to the replica.
func (e *Engine) MutateAndWait(ctx context.Context, fn func(*pos.Document) error) error {
	e.mu.Lock()
	if e.doc == nil {
		e.mu.Unlock()
		return ErrNotLoaded
	}
	if err := fn(e.doc); err != nil {
		e.mu.Unlock()
		return err
	}
	err := e.saveLocked(ctx, true)
	e.mu.Unlock()
	if err != nil {
		return err
	}
	e.afterChange("local-change")
	return nil
}

// Save persists the current document without mutating it.
func (e *Engine) Save(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.doc == nil {
		return ErrNotLoaded
	}
	return e.saveLocked(ctx, false)
}

// saveLocked writes the document to the local cache, then pushes to the
// remote replica. The local write always happens first and is the only
// failure the caller sees: push failures are logged and swallowed because
// local durability already succeeded.
func (e *Engine) saveLocked(ctx context.Context, wait bool) error {
	raw, err := e.doc.Encode()
	if err != nil {
		return fmt.Errorf("sync: encode document: %w", err)
	}
	if err := e.local.Set(ctx, e.key, raw); err != nil {
		return fmt.Errorf("sync: local save: %w", err)
	}
	if e.remote == nil {
		return nil
	}
	if wait {
		e.push(ctx, raw)
		return nil
	}
	e.pushes.Add(1)
	go func() {
		defer e.pushes.Done()
		pushCtx, cancel := context.WithTimeout(context.Background(), e.pushTimeout)
		defer cancel()
		e.push(pushCtx, raw)
	}()
	return nil
}

func (e *Engine) push(ctx context.Context, raw []byte) {
	if err := e.remote.Set(ctx, raw); err != nil {
		e.logger.Warn("remote push failed", slog.Any("error", err))
		return
	}
	e.logger.Debug("document pushed to remote replica")
}

// Flush waits for outstanding asynchronous pushes; shutdown and tests use it.
func (e *Engine) Flush() { e.pushes.Wait() }

// StartRealtimeSync subscribes to remote change notifications. Starting
// while a subscription is active first cancels the old one, so at most one
// subscription exists at a time. A no-op when no remote is configured.
func (e *Engine) StartRealtimeSync(ctx context.Context) error {
	if e.remote == nil {
		return nil
	}

	e.subMu.Lock()
	defer e.subMu.Unlock()
	if e.subCancel != nil {
		e.subCancel()
		e.subCancel = nil
	}

	cancel, err := e.remote.Subscribe(ctx, e.onRemoteSnapshot)
	if err != nil {
		return fmt.Errorf("sync: start realtime sync: %w", err)
	}
	e.subCancel = cancel
	e.logger.Info("realtime sync started")
	return nil
}

// StopRealtimeSync cancels the active subscription; safe to call when none
// is active.
func (e *Engine) StopRealtimeSync() {
	e.subMu.Lock()
	defer e.subMu.Unlock()
	if e.subCancel != nil {
		e.subCancel()
		e.subCancel = nil
		e.logger.Info("realtime sync stopped")
	}
}

// onRemoteSnapshot handles one remote change notification: identical
// content is ignored, different content replaces the in-memory document,
// is persisted locally, and triggers a refresh of the active view. The
// incoming document is not pushed back, which would loop.
func (e *Engine) onRemoteSnapshot(snap replica.Snapshot) {
	if !snap.Exists {
		return
	}

	e.mu.Lock()
	if e.doc == nil {
		e.mu.Unlock()
		return
	}
	current, err := e.doc.Encode()
	if err == nil && bytes.Equal(current, snap.Data) {
		e.mu.Unlock()
		return
	}

	var incoming pos.Document
	if err := json.Unmarshal(snap.Data, &incoming); err != nil {
		e.mu.Unlock()
		e.logger.Warn("ignoring unparseable remote update", slog.Any("error", err))
		return
	}
	pos.Normalize(&incoming)
	e.doc = &incoming

	ctx, cancel := context.WithTimeout(context.Background(), e.pushTimeout)
	if err := e.local.Set(ctx, e.key, snap.Data); err != nil {
		e.logger.Warn("caching remote update failed", slog.Any("error", err))
	}
	cancel()
	e.mu.Unlock()

	e.logger.Info("adopted remote document update")
	e.afterChange("remote-change")
}

func (e *Engine) afterChange(kind string) {
	e.views.RefreshActive()
	e.events.Broadcast(kind)
}
