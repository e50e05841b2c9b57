package shop

import "context"

// Snapshot bundles all four collections of one user, as loaded from a store.
type Snapshot struct {
	Orders    []Order
	Budgets   []Budget
	Materials []Material
	Designers []Designer
}

// Adapter is the uniform contract over the persisted stores (relational or
// local key/value). Implementations translate their backend failures into the
// taxonomy sentinels (ErrSchemaMissing, ErrPermissionDenied) and wrap
// anything else verbatim.
type Adapter interface {
	// LoadAll fetches all four collections scoped to the user.
	LoadAll(ctx context.Context, userID string) (Snapshot, error)

	// Upsert inserts or replaces one entity by id, scoped to the user stamped on it.
	Upsert(ctx context.Context, kind Kind, entity Entity, userID string) error

	// DeleteByID removes one entity by id, scoped to the user. Absent ids are not an error.
	DeleteByID(ctx context.Context, kind Kind, id string, userID string) error

	// UpsertBatch persists several entities of one kind, all-or-nothing from
	// the caller's perspective.
	UpsertBatch(ctx context.Context, kind Kind, entities []Entity, userID string) error
}
