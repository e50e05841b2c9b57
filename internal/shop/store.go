package shop

import "sync"

// UnknownDesignerLabel is substituted when an order references a designer
// that no longer exists. Designer references are weak: deleting a designer
// never touches the orders that point at it.
const UnknownDesignerLabel = "Unknown designer"

// Store holds the per-session snapshot of the four collections the UI renders
// from. Collections keep newest-first ordering. Store operations never touch
// persistence; that is the sync service's job.
type Store struct {
	mu        sync.RWMutex
	orders    []Order
	budgets   []Budget
	materials []Material
	designers []Designer
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{}
}

func prependEntity[E Entity](items []E, entity E) []E {
	return append([]E{entity}, items...)
}

func replaceEntity[E Entity](items []E, entity E) (out []E, found bool) {
	for index := range items {
		if items[index].EntityID() == entity.EntityID() {
			items[index] = entity
			return items, true
		}
	}
	return items, false
}

func upsertEntity[E Entity](items []E, entity E) []E {
	if replaced, found := replaceEntity(items, entity); found {
		return replaced
	}
	return prependEntity(items, entity)
}

func removeEntity[E Entity](items []E, id string) []E {
	for index := range items {
		if items[index].EntityID() == id {
			return append(items[:index:index], items[index+1:]...)
		}
	}
	return items
}

func findEntity[E Entity](items []E, id string) (E, bool) {
	for index := range items {
		if items[index].EntityID() == id {
			return items[index], true
		}
	}
	var zero E
	return zero, false
}

func snapshotEntities[E Entity](items []E) []E {
	return append([]E(nil), items...)
}

// Orders returns a copy of the order collection, newest first.
func (s *Store) Orders() []Order {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return snapshotEntities(s.orders)
}

// Budgets returns a copy of the budget collection, newest first.
func (s *Store) Budgets() []Budget {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return snapshotEntities(s.budgets)
}

// Materials returns a copy of the material catalog, newest first.
func (s *Store) Materials() []Material {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return snapshotEntities(s.materials)
}

// Designers returns a copy of the team directory, newest first.
func (s *Store) Designers() []Designer {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return snapshotEntities(s.designers)
}

// Order looks up a single order by id.
func (s *Store) Order(id string) (Order, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return findEntity(s.orders, id)
}

// Budget looks up a single budget by id.
func (s *Store) Budget(id string) (Budget, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return findEntity(s.budgets, id)
}

// Material looks up a single material by id.
func (s *Store) Material(id string) (Material, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return findEntity(s.materials, id)
}

// Designer looks up a single designer by id.
func (s *Store) Designer(id string) (Designer, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return findEntity(s.designers, id)
}

// DesignerLabel resolves an order's weak designer reference to a display
// name, substituting UnknownDesignerLabel when the reference dangles.
func (s *Store) DesignerLabel(id string) string {
	if id == "" {
		return UnknownDesignerLabel
	}
	if designer, found := s.Designer(id); found {
		return designer.Name
	}
	return UnknownDesignerLabel
}

// UpsertOrder replaces the order with the same id or prepends it.
func (s *Store) UpsertOrder(order Order) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orders = upsertEntity(s.orders, order)
}

// UpsertBudget replaces the budget with the same id or prepends it.
func (s *Store) UpsertBudget(budget Budget) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.budgets = upsertEntity(s.budgets, budget)
}

// UpsertMaterial replaces the material with the same id or prepends it.
func (s *Store) UpsertMaterial(material Material) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.materials = upsertEntity(s.materials, material)
}

// UpsertDesigner replaces the designer with the same id or prepends it.
func (s *Store) UpsertDesigner(designer Designer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.designers = upsertEntity(s.designers, designer)
}

// UpdateOrder replaces the order with a matching id; no-op when absent.
func (s *Store) UpdateOrder(order Order) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orders, _ = replaceEntity(s.orders, order)
}

// UpdateBudget replaces the budget with a matching id; no-op when absent.
func (s *Store) UpdateBudget(budget Budget) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.budgets, _ = replaceEntity(s.budgets, budget)
}

// RemoveOrder deletes the order with a matching id; no-op when absent.
func (s *Store) RemoveOrder(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orders = removeEntity(s.orders, id)
}

// RemoveBudget deletes the budget with a matching id; no-op when absent.
func (s *Store) RemoveBudget(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.budgets = removeEntity(s.budgets, id)
}

// RemoveMaterial deletes the material with a matching id; no-op when absent.
func (s *Store) RemoveMaterial(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.materials = removeEntity(s.materials, id)
}

// RemoveDesigner deletes the designer with a matching id; no-op when absent.
func (s *Store) RemoveDesigner(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.designers = removeEntity(s.designers, id)
}

// ReplaceAll swaps every collection for the freshly loaded snapshot.
func (s *Store) ReplaceAll(snapshot Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orders = snapshotEntities(snapshot.Orders)
	s.budgets = snapshotEntities(snapshot.Budgets)
	s.materials = snapshotEntities(snapshot.Materials)
	s.designers = snapshotEntities(snapshot.Designers)
}

// Clear empties all four collections.
func (s *Store) Clear() {
	s.ReplaceAll(Snapshot{})
}

// Snapshot returns a copy of all four collections.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{
		Orders:    snapshotEntities(s.orders),
		Budgets:   snapshotEntities(s.budgets),
		Materials: snapshotEntities(s.materials),
		Designers: snapshotEntities(s.designers),
	}
}

// Len reports the total number of entities across collections.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.orders) + len(s.budgets) + len(s.materials) + len(s.designers)
}
