package persistence

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/graficapro/backend/internal/shop"
)

var (
	errMissingDatabase = errors.New("database handle is required")
	noOpLogger         = zap.NewNop()
)

// Relational persists the four collections through GORM, one row per entity,
// scoped by the owning user. It backs both the SQLite and the Postgres
// deployments; the dialect is decided at connection time.
type Relational struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewRelational wraps an open GORM handle as a shop.Adapter.
func NewRelational(db *gorm.DB, logger *zap.Logger) (*Relational, error) {
	if db == nil {
		return nil, errMissingDatabase
	}
	if logger == nil {
		logger = noOpLogger
	}
	return &Relational{db: db, logger: logger}, nil
}

// LoadAll reads every collection for the user in one pass. A missing table
// surfaces as shop.ErrSchemaMissing so the caller can render the
// provisioning hint instead of a generic failure.
func (r *Relational) LoadAll(ctx context.Context, userID string) (shop.Snapshot, error) {
	snapshot := shop.Snapshot{}
	handle := r.db.WithContext(ctx)

	if err := handle.Where("user_id = ?", userID).Find(&snapshot.Orders).Error; err != nil {
		return shop.Snapshot{}, r.translate("load orders", err)
	}
	if err := handle.Where("user_id = ?", userID).Find(&snapshot.Budgets).Error; err != nil {
		return shop.Snapshot{}, r.translate("load budgets", err)
	}
	if err := handle.Where("user_id = ?", userID).Find(&snapshot.Materials).Error; err != nil {
		return shop.Snapshot{}, r.translate("load materials", err)
	}
	if err := handle.Where("user_id = ?", userID).Find(&snapshot.Designers).Error; err != nil {
		return shop.Snapshot{}, r.translate("load designers", err)
	}
	return snapshot, nil
}

// Upsert writes one entity, replacing any prior row with the same id and user.
func (r *Relational) Upsert(ctx context.Context, kind shop.Kind, entity shop.Entity, userID string) error {
	record, err := ownedRecord(kind, entity, userID)
	if err != nil {
		return err
	}
	err = r.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(record).Error
	if err != nil {
		return r.translate(fmt.Sprintf("upsert %s", kind), err)
	}
	return nil
}

// DeleteByID removes one entity row. Deleting an absent id is not an error.
func (r *Relational) DeleteByID(ctx context.Context, kind shop.Kind, id string, userID string) error {
	model, column, err := kindModel(kind)
	if err != nil {
		return err
	}
	err = r.db.WithContext(ctx).
		Where(fmt.Sprintf("%s = ? AND user_id = ?", column), id, userID).
		Delete(model).Error
	if err != nil {
		return r.translate(fmt.Sprintf("delete %s", kind), err)
	}
	return nil
}

// UpsertBatch writes a set of entities of one kind inside a single
// transaction, so a partial write never becomes visible.
func (r *Relational) UpsertBatch(ctx context.Context, kind shop.Kind, entities []shop.Entity, userID string) error {
	if len(entities) == 0 {
		return nil
	}
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, entity := range entities {
			record, err := ownedRecord(kind, entity, userID)
			if err != nil {
				return err
			}
			if err := tx.Clauses(clause.OnConflict{UpdateAll: true}).Create(record).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return r.translate(fmt.Sprintf("batch upsert %s", kind), err)
	}
	return nil
}

func ownedRecord(kind shop.Kind, entity shop.Entity, userID string) (any, error) {
	switch typed := entity.(type) {
	case shop.Order:
		record := typed.OwnedBy(userID)
		return &record, nil
	case shop.Budget:
		record := typed.OwnedBy(userID)
		return &record, nil
	case shop.Material:
		record := typed.OwnedBy(userID)
		return &record, nil
	case shop.Designer:
		record := typed.OwnedBy(userID)
		return &record, nil
	default:
		return nil, fmt.Errorf("unsupported entity %T for kind %q", entity, kind)
	}
}

func kindModel(kind shop.Kind) (any, string, error) {
	switch kind {
	case shop.KindOrders:
		return &shop.Order{}, "order_id", nil
	case shop.KindBudgets:
		return &shop.Budget{}, "budget_id", nil
	case shop.KindMaterials:
		return &shop.Material{}, "material_id", nil
	case shop.KindDesigners:
		return &shop.Designer{}, "designer_id", nil
	default:
		return nil, "", fmt.Errorf("unknown entity kind %q", kind)
	}
}

// translate folds backend-specific failures into the shared taxonomy. SQLite
// reports a dropped table as "no such table"; Postgres uses SQLSTATE 42P01 for
// undefined tables and 42501 for insufficient privilege.
func (r *Relational) translate(operation string, err error) error {
	message := err.Error()
	switch {
	case strings.Contains(message, "no such table") || strings.Contains(message, "42P01"):
		r.logger.Error("backing schema missing",
			zap.String("operation", operation), zap.Error(err))
		return fmt.Errorf("%s: %w: %w", operation, shop.ErrSchemaMissing, err)
	case strings.Contains(message, "permission denied") || strings.Contains(message, "42501"):
		r.logger.Error("store permission denied",
			zap.String("operation", operation), zap.Error(err))
		return fmt.Errorf("%s: %w: %w", operation, shop.ErrPermissionDenied, err)
	default:
		return fmt.Errorf("%s: %w", operation, err)
	}
}
