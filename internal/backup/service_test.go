package backup

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/juckphai/salejuck/internal/pos"
	syncengine "github.com/juckphai/salejuck/internal/sync"
)

type memoryStore struct {
	mu   sync.Mutex
	data map[string][]byte
}

func (s *memoryStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.data[key]
	return v, ok, nil
}

func (s *memoryStore) Set(_ context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.data == nil {
		s.data = make(map[string][]byte)
	}
	s.data[key] = append([]byte(nil), value...)
	return nil
}

func testService(t *testing.T) (*Service, *syncengine.Engine) {
	t.Helper()
	logger := slog.New(slog.DiscardHandler)
	engine := syncengine.New(syncengine.Config{Local: &memoryStore{}, Logger: logger})
	_, err := engine.Load(context.Background())
	require.NoError(t, err)
	return NewService(logger, engine), engine
}

func seed(t *testing.T, engine *syncengine.Engine, fn func(*pos.Document)) {
	t.Helper()
	require.NoError(t, engine.Mutate(context.Background(), func(d *pos.Document) error {
		fn(d)
		return nil
	}))
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	env, err := Encrypt([]byte(`{"users":[]}`), "hunter2")
	require.NoError(t, err)
	require.True(t, env.IsEncrypted)
	require.NotEmpty(t, env.Salt)
	require.NotEmpty(t, env.IV)

	plaintext, err := Decrypt(env, "hunter2")
	require.NoError(t, err)
	require.JSONEq(t, `{"users":[]}`, string(plaintext))

	_, err = Decrypt(env, "wrong")
	require.ErrorIs(t, err, ErrWrongPassword)
}

func TestExportPlainWithoutPassword(t *testing.T) {
	s, _ := testService(t)

	data, encrypted, err := s.Export(context.Background())
	require.NoError(t, err)
	require.False(t, encrypted)

	var doc pos.Document
	require.NoError(t, json.Unmarshal(data, &doc))
	require.Len(t, doc.Users, 1)
}

func TestExportEncryptedWithPassword(t *testing.T) {
	s, engine := testService(t)
	seed(t, engine, func(d *pos.Document) {
		pw := "hunter2"
		d.BackupPassword = &pw
	})

	data, encrypted, err := s.Export(context.Background())
	require.NoError(t, err)
	require.True(t, encrypted)

	var env Envelope
	require.NoError(t, json.Unmarshal(data, &env))
	require.True(t, env.IsEncrypted)

	plaintext, err := Decrypt(env, "hunter2")
	require.NoError(t, err)
	var doc pos.Document
	require.NoError(t, json.Unmarshal(plaintext, &doc))
	require.Len(t, doc.Users, 1)
}

func TestImportMergesAndRepairsStock(t *testing.T) {
	s, engine := testService(t)
	seed(t, engine, func(d *pos.Document) {
		d.Products = append(d.Products, pos.Product{ID: 1, Name: "Widget", Stock: 5})
		d.StockIns = append(d.StockIns, pos.StockIn{ID: 100, ProductID: 1, Quantity: 5})
	})

	backup := pos.NewDocument()
	backup.Products = append(backup.Products, pos.Product{ID: 1, Name: "Widget", Stock: 999})
	backup.StockIns = append(backup.StockIns, pos.StockIn{ID: 101, ProductID: 1, Quantity: 3})
	file, err := backup.Encode()
	require.NoError(t, err)

	result, err := s.Import(context.Background(), file, "")
	require.NoError(t, err)
	require.Positive(t, result.Added)

	require.NoError(t, engine.Read(func(d *pos.Document) {
		require.Len(t, d.StockIns, 2)
		// 5 + 3 from the merged history, not the backup's cached 999.
		require.Equal(t, 8.0, d.ProductByID(1).Stock)
	}))
}

func TestImportEncryptedBackup(t *testing.T) {
	s, engine := testService(t)

	backup := pos.NewDocument()
	backup.Stores = append(backup.Stores, pos.Store{ID: 1, Name: "Main"})
	raw, err := backup.Encode()
	require.NoError(t, err)
	env, err := Encrypt(raw, "hunter2")
	require.NoError(t, err)
	file, err := json.Marshal(env)
	require.NoError(t, err)

	_, err = s.Import(context.Background(), file, "")
	require.Error(t, err) // password required

	_, err = s.Import(context.Background(), file, "wrong")
	require.ErrorIs(t, err, ErrWrongPassword)

	_, err = s.Import(context.Background(), file, "hunter2")
	require.NoError(t, err)
	require.NoError(t, engine.Read(func(d *pos.Document) {
		require.Len(t, d.Stores, 1)
	}))
}

func TestImportRejectsMalformed(t *testing.T) {
	s, _ := testService(t)

	_, err := s.Import(context.Background(), []byte("not json"), "")
	require.Error(t, err)

	// Valid JSON but not a document shape.
	_, err = s.Import(context.Background(), []byte(`{"foo":1}`), "")
	require.Error(t, err)
}
