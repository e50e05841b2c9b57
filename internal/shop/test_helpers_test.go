package shop

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"
)

// fakeAdapter is an in-memory Adapter with injectable failures, used to
// observe exactly what the sync core persists.
type fakeAdapter struct {
	mu          sync.Mutex
	records     map[string]map[Kind]map[string]Entity
	failLoad    error
	failUpsert  error
	failDelete  error
	failBatch   error
	upsertCalls int
	deleteCalls int
	batchCalls  int
}

func newFakeAdapter() *fakeAdapter {
	return &fakeAdapter{records: make(map[string]map[Kind]map[string]Entity)}
}

func (a *fakeAdapter) bucket(userID string, kind Kind) map[string]Entity {
	userRecords, ok := a.records[userID]
	if !ok {
		userRecords = make(map[Kind]map[string]Entity)
		a.records[userID] = userRecords
	}
	kindRecords, ok := userRecords[kind]
	if !ok {
		kindRecords = make(map[string]Entity)
		userRecords[kind] = kindRecords
	}
	return kindRecords
}

func (a *fakeAdapter) LoadAll(_ context.Context, userID string) (Snapshot, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.failLoad != nil {
		return Snapshot{}, a.failLoad
	}
	snapshot := Snapshot{}
	for _, entity := range a.bucket(userID, KindOrders) {
		snapshot.Orders = append(snapshot.Orders, entity.(Order))
	}
	for _, entity := range a.bucket(userID, KindBudgets) {
		snapshot.Budgets = append(snapshot.Budgets, entity.(Budget))
	}
	for _, entity := range a.bucket(userID, KindMaterials) {
		snapshot.Materials = append(snapshot.Materials, entity.(Material))
	}
	for _, entity := range a.bucket(userID, KindDesigners) {
		snapshot.Designers = append(snapshot.Designers, entity.(Designer))
	}
	return snapshot, nil
}

func (a *fakeAdapter) Upsert(_ context.Context, kind Kind, entity Entity, userID string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.upsertCalls++
	if a.failUpsert != nil {
		return a.failUpsert
	}
	a.bucket(userID, kind)[entity.EntityID()] = entity
	return nil
}

func (a *fakeAdapter) DeleteByID(_ context.Context, kind Kind, id string, userID string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.deleteCalls++
	if a.failDelete != nil {
		return a.failDelete
	}
	delete(a.bucket(userID, kind), id)
	return nil
}

func (a *fakeAdapter) UpsertBatch(_ context.Context, kind Kind, entities []Entity, userID string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.batchCalls++
	if a.failBatch != nil {
		return a.failBatch
	}
	for _, entity := range entities {
		a.bucket(userID, kind)[entity.EntityID()] = entity
	}
	return nil
}

func (a *fakeAdapter) stored(userID string, kind Kind, id string) (Entity, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	entity, ok := a.bucket(userID, kind)[id]
	return entity, ok
}

// sequentialIDs hands out deterministic identifiers.
type sequentialIDs struct {
	mu   sync.Mutex
	next int
}

func (p *sequentialIDs) NewID() (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.next++
	return fmt.Sprintf("id-%d", p.next), nil
}

func fixedClock(unixSeconds int64) func() time.Time {
	return func() time.Time {
		return time.Unix(unixSeconds, 0).UTC()
	}
}

func mustService(t *testing.T, adapter Adapter, policy ArchivePolicy) *Service {
	t.Helper()
	service, err := NewService(ServiceConfig{
		Adapter:       adapter,
		Clock:         fixedClock(1750000000),
		IDProvider:    &sequentialIDs{},
		ArchivePolicy: policy,
	})
	if err != nil {
		t.Fatalf("unexpected service constructor error: %v", err)
	}
	return service
}

func mustSession(t *testing.T, service *Service, userID string) *Session {
	t.Helper()
	session, err := service.BeginSession(context.Background(), User{ID: userID, Name: "Shop Owner", Email: userID + "@example.com"})
	if err != nil {
		t.Fatalf("unexpected begin session error: %v", err)
	}
	return session
}

func mustSaveOrder(t *testing.T, service *Service, session *Session, order Order) Order {
	t.Helper()
	saved, err := service.SaveOrder(context.Background(), session, order)
	if err != nil {
		t.Fatalf("unexpected save order error: %v", err)
	}
	return saved
}

func mustSaveBudget(t *testing.T, service *Service, session *Session, budget Budget) Budget {
	t.Helper()
	saved, err := service.SaveBudget(context.Background(), session, budget)
	if err != nil {
		t.Fatalf("unexpected save budget error: %v", err)
	}
	return saved
}

func pendingOrder(clientName string) Order {
	return Order{
		ClientName:   clientName,
		Phone:        "119999",
		MaterialType: "Banner",
		Measurements: "2x1m",
		Quantity:     1,
		Status:       OrderStatusPending,
	}
}

func waitingBudget(clientName string) Budget {
	return Budget{
		ClientName:   clientName,
		Email:        "client@example.com",
		Phone:        "119999",
		MaterialType: "Banner",
		Measurements: "2x1m",
		Quantity:     1,
		TotalValue:   150,
		Status:       BudgetStatusWaiting,
		Notes:        "Rush job",
	}
}
