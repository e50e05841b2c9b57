package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/graficapro/backend/internal/shop"
)

var errMissingPath = errors.New("key-value store path is required")

// LocalKV is the single-file fallback backend for running without a database.
// Each user's collection is one JSON blob under a "user:<id>:<collection>"
// key, and every mutation rewrites the whole blob. Suited for one shop owner
// on one machine, not for concurrent deployments.
type LocalKV struct {
	mu     sync.Mutex
	path   string
	logger *zap.Logger
}

// NewLocalKV binds the store to a JSON file, creating parent directories as
// needed. The file itself appears on first write.
func NewLocalKV(path string, logger *zap.Logger) (*LocalKV, error) {
	if path == "" {
		return nil, errMissingPath
	}
	if logger == nil {
		logger = noOpLogger
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create key-value store directory: %w", err)
	}
	return &LocalKV{path: path, logger: logger}, nil
}

func collectionKey(userID string, kind shop.Kind) string {
	return fmt.Sprintf("user:%s:%s", userID, kind)
}

func (s *LocalKV) readAll() (map[string]json.RawMessage, error) {
	raw, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return map[string]json.RawMessage{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read key-value store: %w", err)
	}
	if len(raw) == 0 {
		return map[string]json.RawMessage{}, nil
	}
	records := map[string]json.RawMessage{}
	if err := json.Unmarshal(raw, &records); err != nil {
		return nil, fmt.Errorf("decode key-value store: %w", err)
	}
	return records, nil
}

// writeAll replaces the file through a rename so a crash mid-write never
// leaves a truncated store behind.
func (s *LocalKV) writeAll(records map[string]json.RawMessage) error {
	encoded, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("encode key-value store: %w", err)
	}
	temp := s.path + ".tmp"
	if err := os.WriteFile(temp, encoded, 0o600); err != nil {
		return fmt.Errorf("write key-value store: %w", err)
	}
	if err := os.Rename(temp, s.path); err != nil {
		return fmt.Errorf("replace key-value store: %w", err)
	}
	return nil
}

func readCollection[E any](records map[string]json.RawMessage, key string) ([]E, error) {
	raw, ok := records[key]
	if !ok {
		return nil, nil
	}
	var collection []E
	if err := json.Unmarshal(raw, &collection); err != nil {
		return nil, fmt.Errorf("decode collection %q: %w", key, err)
	}
	return collection, nil
}

func writeCollection[E any](records map[string]json.RawMessage, key string, collection []E) error {
	encoded, err := json.Marshal(collection)
	if err != nil {
		return fmt.Errorf("encode collection %q: %w", key, err)
	}
	records[key] = encoded
	return nil
}

// LoadAll reads the user's four collection blobs.
func (s *LocalKV) LoadAll(_ context.Context, userID string) (shop.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	records, err := s.readAll()
	if err != nil {
		return shop.Snapshot{}, err
	}
	snapshot := shop.Snapshot{}
	if snapshot.Orders, err = readCollection[shop.Order](records, collectionKey(userID, shop.KindOrders)); err != nil {
		return shop.Snapshot{}, err
	}
	if snapshot.Budgets, err = readCollection[shop.Budget](records, collectionKey(userID, shop.KindBudgets)); err != nil {
		return shop.Snapshot{}, err
	}
	if snapshot.Materials, err = readCollection[shop.Material](records, collectionKey(userID, shop.KindMaterials)); err != nil {
		return shop.Snapshot{}, err
	}
	if snapshot.Designers, err = readCollection[shop.Designer](records, collectionKey(userID, shop.KindDesigners)); err != nil {
		return shop.Snapshot{}, err
	}
	return snapshot, nil
}

// Upsert rewrites the collection blob with the entity inserted or replaced.
func (s *LocalKV) Upsert(ctx context.Context, kind shop.Kind, entity shop.Entity, userID string) error {
	return s.UpsertBatch(ctx, kind, []shop.Entity{entity}, userID)
}

// UpsertBatch rewrites the collection blob once for the whole set. The single
// file write makes the batch naturally all-or-nothing.
func (s *LocalKV) UpsertBatch(_ context.Context, kind shop.Kind, entities []shop.Entity, userID string) error {
	if len(entities) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	records, err := s.readAll()
	if err != nil {
		return err
	}
	key := collectionKey(userID, kind)
	switch kind {
	case shop.KindOrders:
		err = mergeCollection(records, key, entities, func(e shop.Entity) (shop.Order, bool) {
			typed, ok := e.(shop.Order)
			return typed.OwnedBy(userID), ok
		})
	case shop.KindBudgets:
		err = mergeCollection(records, key, entities, func(e shop.Entity) (shop.Budget, bool) {
			typed, ok := e.(shop.Budget)
			return typed.OwnedBy(userID), ok
		})
	case shop.KindMaterials:
		err = mergeCollection(records, key, entities, func(e shop.Entity) (shop.Material, bool) {
			typed, ok := e.(shop.Material)
			return typed.OwnedBy(userID), ok
		})
	case shop.KindDesigners:
		err = mergeCollection(records, key, entities, func(e shop.Entity) (shop.Designer, bool) {
			typed, ok := e.(shop.Designer)
			return typed.OwnedBy(userID), ok
		})
	default:
		return fmt.Errorf("unknown entity kind %q", kind)
	}
	if err != nil {
		return err
	}
	return s.writeAll(records)
}

func mergeCollection[E shop.Entity](records map[string]json.RawMessage, key string, entities []shop.Entity, convert func(shop.Entity) (E, bool)) error {
	collection, err := readCollection[E](records, key)
	if err != nil {
		return err
	}
	for _, entity := range entities {
		typed, ok := convert(entity)
		if !ok {
			return fmt.Errorf("unsupported entity %T for key %q", entity, key)
		}
		_, index, found := lo.FindIndexOf(collection, func(existing E) bool {
			return existing.EntityID() == typed.EntityID()
		})
		if found {
			collection[index] = typed
		} else {
			collection = append(collection, typed)
		}
	}
	return writeCollection(records, key, collection)
}

// DeleteByID rewrites the collection blob without the entity. Deleting an
// absent id is not an error.
func (s *LocalKV) DeleteByID(_ context.Context, kind shop.Kind, id string, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	records, err := s.readAll()
	if err != nil {
		return err
	}
	key := collectionKey(userID, kind)
	switch kind {
	case shop.KindOrders:
		err = dropFromCollection[shop.Order](records, key, id)
	case shop.KindBudgets:
		err = dropFromCollection[shop.Budget](records, key, id)
	case shop.KindMaterials:
		err = dropFromCollection[shop.Material](records, key, id)
	case shop.KindDesigners:
		err = dropFromCollection[shop.Designer](records, key, id)
	default:
		return fmt.Errorf("unknown entity kind %q", kind)
	}
	if err != nil {
		return err
	}
	return s.writeAll(records)
}

func dropFromCollection[E shop.Entity](records map[string]json.RawMessage, key string, id string) error {
	collection, err := readCollection[E](records, key)
	if err != nil {
		return err
	}
	filtered := lo.Reject(collection, func(existing E, _ int) bool {
		return existing.EntityID() == id
	})
	return writeCollection(records, key, filtered)
}
