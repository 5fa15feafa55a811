package backup

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/juckphai/salejuck/internal/ledger"
	"github.com/juckphai/salejuck/internal/merge"
	"github.com/juckphai/salejuck/internal/platform/httpx"
	"github.com/juckphai/salejuck/internal/pos"
	syncengine "github.com/juckphai/salejuck/internal/sync"
)

// Service implements export and import of the whole document.
type Service struct {
	logger *slog.Logger
	engine *syncengine.Engine
}

// NewService constructs the backup service.
func NewService(logger *slog.Logger, engine *syncengine.Engine) *Service {
	return &Service{logger: logger, engine: engine}
}

// Export serializes the document. When a backup password is set the result
// is an encrypted envelope; otherwise it is the plain document JSON.
func (s *Service) Export(ctx context.Context) ([]byte, bool, error) {
	var (
		raw      []byte
		password *string
	)
	err := s.engine.Read(func(d *pos.Document) {
		password = d.BackupPassword
		raw, _ = d.Encode()
	})
	if err != nil {
		return nil, false, err
	}
	if raw == nil {
		return nil, false, fmt.Errorf("backup: encode document failed")
	}

	if password == nil {
		s.logger.Info("document exported", slog.Bool("encrypted", false))
		return raw, false, nil
	}

	env, err := Encrypt(raw, *password)
	if err != nil {
		return nil, false, err
	}
	out, err := json.Marshal(env)
	if err != nil {
		return nil, false, fmt.Errorf("backup: marshal envelope: %w", err)
	}
	s.logger.Info("document exported", slog.Bool("encrypted", true))
	return out, true, nil
}

// ImportResult summarizes what an import changed.
type ImportResult struct {
	merge.Stats
	Repaired int `json:"repaired"`
}

// Import merges a backup file into the live document. Encrypted files need
// the password they were sealed with. After the merge every cached stock is
// recomputed from the combined history, and the save waits for the remote
// push so the caller knows the merged state was offered to the replica.
func (s *Service) Import(ctx context.Context, file []byte, password string) (ImportResult, error) {
	raw := file

	var env Envelope
	if err := json.Unmarshal(file, &env); err == nil && env.IsEncrypted {
		if password == "" {
			return ImportResult{}, fmt.Errorf("backup: file is encrypted, password required: %w", httpx.ErrValidation)
		}
		plaintext, err := Decrypt(env, password)
		if err != nil {
			return ImportResult{}, err
		}
		raw = plaintext
	}

	var incoming pos.Document
	if err := json.Unmarshal(raw, &incoming); err != nil {
		return ImportResult{}, fmt.Errorf("backup: %w: %w", merge.ErrMalformedDocument, httpx.ErrValidation)
	}

	var result ImportResult
	err := s.engine.MutateAndWait(ctx, func(d *pos.Document) error {
		stats, err := merge.Merge(d, &incoming)
		if err != nil {
			return fmt.Errorf("backup: %w: %w", err, httpx.ErrValidation)
		}
		result.Stats = stats

		computed := ledger.Stock(d)
		for i := range d.Products {
			if d.Products[i].Stock != computed[d.Products[i].ID] {
				result.Repaired++
			}
			d.Products[i].Stock = computed[d.Products[i].ID]
		}
		return nil
	})
	if err != nil {
		return ImportResult{}, err
	}

	s.logger.Info("backup imported",
		slog.Int("added", result.Added),
		slog.Int("updated", result.Updated),
		slog.Int("repaired", result.Repaired))
	return result, nil
}
