package shop

import (
	"context"
	"errors"
	"time"

	"github.com/samber/lo"
	"go.uber.org/zap"
)

// ArchivePolicy decides which orders may be archived. The delivered-only
// policy mirrors the UI gating of the original dashboard; the permissive
// policy archives regardless of status.
type ArchivePolicy string

const (
	ArchiveDeliveredOnly ArchivePolicy = "delivered_only"
	ArchiveAnyStatus     ArchivePolicy = "any_status"
)

var (
	errMissingAdapter    = errors.New("persistence adapter is required")
	errMissingIDProvider = errors.New("id provider is required")
	noOpLogger           = zap.NewNop()
)

const (
	opServiceNew       = "shop.service.new"
	opBeginSession     = "shop.begin_session"
	opSaveOrder        = "shop.save_order"
	opSaveBudget       = "shop.save_budget"
	opSaveMaterial     = "shop.save_material"
	opSaveDesigner     = "shop.save_designer"
	opDeleteEntity     = "shop.delete_entity"
	opSetOrderStatus   = "shop.set_order_status"
	opArchiveOrder     = "shop.archive_order"
	opRestoreOrder     = "shop.restore_order"
	opArchiveDelivered = "shop.archive_delivered"
	opConvertBudget    = "shop.convert_budget"
	opReadAggregates   = "shop.read_aggregates"
)

// ServiceConfig bundles the dependencies of the synchronization core.
type ServiceConfig struct {
	Adapter       Adapter
	Clock         func() time.Time
	IDProvider    IDProvider
	Logger        *zap.Logger
	ArchivePolicy ArchivePolicy
}

// Service is the single mutation path between the session store and the
// persistence adapter. Discipline is persist-then-commit: the adapter is
// told first, and the in-memory store is only mutated after the adapter
// reports success. A failed remote operation never changes what the UI sees.
type Service struct {
	adapter       Adapter
	clock         func() time.Time
	idProvider    IDProvider
	logger        *zap.Logger
	archivePolicy ArchivePolicy
}

// NewService validates the configuration and constructs the sync core.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Adapter == nil {
		return nil, newServiceError(opServiceNew, "missing_adapter", errMissingAdapter)
	}
	if cfg.IDProvider == nil {
		return nil, newServiceError(opServiceNew, "missing_id_provider", errMissingIDProvider)
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}
	policy := cfg.ArchivePolicy
	if policy == "" {
		policy = ArchiveDeliveredOnly
	}
	return &Service{
		adapter:       cfg.Adapter,
		clock:         clock,
		idProvider:    cfg.IDProvider,
		logger:        logger,
		archivePolicy: policy,
	}, nil
}

// BeginSession loads every collection fresh for the confirmed user and binds
// them to a new session. The load is a full replace, never a merge.
func (s *Service) BeginSession(ctx context.Context, user User) (*Session, error) {
	if user.ID == "" {
		return nil, newServiceError(opBeginSession, "missing_user_id", ErrNoActiveSession)
	}
	snapshot, err := s.adapter.LoadAll(ctx, user.ID)
	if err != nil {
		s.logError(opBeginSession, "load_failed", err, zap.String("user_id", user.ID))
		return nil, newServiceError(opBeginSession, "load_failed", err)
	}
	store := NewStore()
	store.ReplaceAll(snapshot)
	return &Session{user: user, store: store}, nil
}

// EndSession tears the session down, clearing all four collections
// immediately regardless of any in-flight mutation.
func (s *Service) EndSession(sess *Session) {
	if sess == nil {
		return
	}
	sess.store.Clear()
	sess.ended = true
}

func (s *Service) requireSession(operation string, sess *Session) error {
	if sess == nil || sess.ended {
		return newServiceError(operation, "no_active_session", ErrNoActiveSession)
	}
	return nil
}

// SaveOrder persists an order (insert or edit) and commits it to the session
// store on success. A blank id marks a new order and gets a generated one.
func (s *Service) SaveOrder(ctx context.Context, sess *Session, order Order) (Order, error) {
	if err := s.requireSession(opSaveOrder, sess); err != nil {
		return Order{}, err
	}
	if err := order.Validate(); err != nil {
		return Order{}, newServiceError(opSaveOrder, "invalid_payload", err)
	}
	if order.ID == "" {
		id, err := s.idProvider.NewID()
		if err != nil {
			s.logError(opSaveOrder, "id_generation_failed", err)
			return Order{}, newServiceError(opSaveOrder, "id_generation_failed", err)
		}
		order.ID = id
	}
	if order.OrderDate == "" {
		order.OrderDate = s.clock().UTC().Format(orderDateLayout)
	}
	order = order.OwnedBy(sess.user.ID)
	if err := s.adapter.Upsert(ctx, KindOrders, order, sess.user.ID); err != nil {
		s.logError(opSaveOrder, "adapter_upsert_failed", err, zap.String("order_id", order.ID))
		return Order{}, newServiceError(opSaveOrder, "adapter_upsert_failed", err)
	}
	sess.store.UpsertOrder(order)
	return order, nil
}

// SaveBudget persists a budget and commits it to the session store on success.
func (s *Service) SaveBudget(ctx context.Context, sess *Session, budget Budget) (Budget, error) {
	if err := s.requireSession(opSaveBudget, sess); err != nil {
		return Budget{}, err
	}
	if err := budget.Validate(); err != nil {
		return Budget{}, newServiceError(opSaveBudget, "invalid_payload", err)
	}
	if budget.ID == "" {
		id, err := s.idProvider.NewID()
		if err != nil {
			s.logError(opSaveBudget, "id_generation_failed", err)
			return Budget{}, newServiceError(opSaveBudget, "id_generation_failed", err)
		}
		budget.ID = id
	}
	if budget.CreatedDate == "" {
		budget.CreatedDate = s.clock().UTC().Format(orderDateLayout)
	}
	budget = budget.OwnedBy(sess.user.ID)
	if err := s.adapter.Upsert(ctx, KindBudgets, budget, sess.user.ID); err != nil {
		s.logError(opSaveBudget, "adapter_upsert_failed", err, zap.String("budget_id", budget.ID))
		return Budget{}, newServiceError(opSaveBudget, "adapter_upsert_failed", err)
	}
	sess.store.UpsertBudget(budget)
	return budget, nil
}

// SaveMaterial persists a catalog entry and commits it on success. A blank
// category falls back to the default one.
func (s *Service) SaveMaterial(ctx context.Context, sess *Session, material Material) (Material, error) {
	if err := s.requireSession(opSaveMaterial, sess); err != nil {
		return Material{}, err
	}
	if err := material.Validate(); err != nil {
		return Material{}, newServiceError(opSaveMaterial, "invalid_payload", err)
	}
	if material.ID == "" {
		id, err := s.idProvider.NewID()
		if err != nil {
			s.logError(opSaveMaterial, "id_generation_failed", err)
			return Material{}, newServiceError(opSaveMaterial, "id_generation_failed", err)
		}
		material.ID = id
	}
	if material.Category == "" {
		material.Category = DefaultMaterialCategory
	}
	material = material.OwnedBy(sess.user.ID)
	if err := s.adapter.Upsert(ctx, KindMaterials, material, sess.user.ID); err != nil {
		s.logError(opSaveMaterial, "adapter_upsert_failed", err, zap.String("material_id", material.ID))
		return Material{}, newServiceError(opSaveMaterial, "adapter_upsert_failed", err)
	}
	sess.store.UpsertMaterial(material)
	return material, nil
}

// SaveDesigner persists a team member and commits it on success.
func (s *Service) SaveDesigner(ctx context.Context, sess *Session, designer Designer) (Designer, error) {
	if err := s.requireSession(opSaveDesigner, sess); err != nil {
		return Designer{}, err
	}
	if err := designer.Validate(); err != nil {
		return Designer{}, newServiceError(opSaveDesigner, "invalid_payload", err)
	}
	if designer.ID == "" {
		id, err := s.idProvider.NewID()
		if err != nil {
			s.logError(opSaveDesigner, "id_generation_failed", err)
			return Designer{}, newServiceError(opSaveDesigner, "id_generation_failed", err)
		}
		designer.ID = id
	}
	designer = designer.OwnedBy(sess.user.ID)
	if err := s.adapter.Upsert(ctx, KindDesigners, designer, sess.user.ID); err != nil {
		s.logError(opSaveDesigner, "adapter_upsert_failed", err, zap.String("designer_id", designer.ID))
		return Designer{}, newServiceError(opSaveDesigner, "adapter_upsert_failed", err)
	}
	sess.store.UpsertDesigner(designer)
	return designer, nil
}

// Delete removes one entity by id. The store is not optimistically mutated:
// the adapter delete happens first, and the in-memory removal only follows a
// successful one, so store and persisted state cannot drift on failure.
// Deleting a designer never cascades to orders referencing it.
func (s *Service) Delete(ctx context.Context, sess *Session, kind Kind, id string) error {
	if err := s.requireSession(opDeleteEntity, sess); err != nil {
		return err
	}
	if err := s.adapter.DeleteByID(ctx, kind, id, sess.user.ID); err != nil {
		s.logError(opDeleteEntity, "adapter_delete_failed", err,
			zap.String("kind", string(kind)), zap.String("entity_id", id))
		return newServiceError(opDeleteEntity, "adapter_delete_failed", err)
	}
	switch kind {
	case KindOrders:
		sess.store.RemoveOrder(id)
	case KindBudgets:
		sess.store.RemoveBudget(id)
	case KindMaterials:
		sess.store.RemoveMaterial(id)
	case KindDesigners:
		sess.store.RemoveDesigner(id)
	}
	return nil
}

// SetOrderStatus moves an order through its production states.
func (s *Service) SetOrderStatus(ctx context.Context, sess *Session, orderID string, status OrderStatus) (Order, error) {
	if err := s.requireSession(opSetOrderStatus, sess); err != nil {
		return Order{}, err
	}
	if !status.Valid() {
		return Order{}, newServiceError(opSetOrderStatus, "invalid_status", ErrInvalidOrderStatus)
	}
	order, found := sess.store.Order(orderID)
	if !found {
		return Order{}, newServiceError(opSetOrderStatus, "order_not_found", ErrEntityNotFound)
	}
	order.Status = status
	if err := s.adapter.Upsert(ctx, KindOrders, order, sess.user.ID); err != nil {
		s.logError(opSetOrderStatus, "adapter_upsert_failed", err, zap.String("order_id", orderID))
		return Order{}, newServiceError(opSetOrderStatus, "adapter_upsert_failed", err)
	}
	sess.store.UpdateOrder(order)
	return order, nil
}

// ArchiveOrder flags an order as archived under the configured policy.
// Archiving an already-archived order is a no-op.
func (s *Service) ArchiveOrder(ctx context.Context, sess *Session, orderID string) (Order, error) {
	if err := s.requireSession(opArchiveOrder, sess); err != nil {
		return Order{}, err
	}
	order, found := sess.store.Order(orderID)
	if !found {
		return Order{}, newServiceError(opArchiveOrder, "order_not_found", ErrEntityNotFound)
	}
	if order.Archived {
		return order, nil
	}
	if s.archivePolicy == ArchiveDeliveredOnly && order.Status != OrderStatusDelivered {
		return Order{}, newServiceError(opArchiveOrder, "not_delivered", ErrArchiveNotDelivered)
	}
	order.Archived = true
	if err := s.adapter.Upsert(ctx, KindOrders, order, sess.user.ID); err != nil {
		s.logError(opArchiveOrder, "adapter_upsert_failed", err, zap.String("order_id", orderID))
		return Order{}, newServiceError(opArchiveOrder, "adapter_upsert_failed", err)
	}
	sess.store.UpdateOrder(order)
	return order, nil
}

// RestoreOrder clears the archived flag. Restoring a never-archived order is
// a no-op.
func (s *Service) RestoreOrder(ctx context.Context, sess *Session, orderID string) (Order, error) {
	if err := s.requireSession(opRestoreOrder, sess); err != nil {
		return Order{}, err
	}
	order, found := sess.store.Order(orderID)
	if !found {
		return Order{}, newServiceError(opRestoreOrder, "order_not_found", ErrEntityNotFound)
	}
	if !order.Archived {
		return order, nil
	}
	order.Archived = false
	if err := s.adapter.Upsert(ctx, KindOrders, order, sess.user.ID); err != nil {
		s.logError(opRestoreOrder, "adapter_upsert_failed", err, zap.String("order_id", orderID))
		return Order{}, newServiceError(opRestoreOrder, "adapter_upsert_failed", err)
	}
	sess.store.UpdateOrder(order)
	return order, nil
}

// ArchiveDelivered archives every active delivered order as one batched
// upsert. All-or-nothing: on adapter failure no order is mutated and a single
// aggregate error surfaces. Returns how many orders were archived.
func (s *Service) ArchiveDelivered(ctx context.Context, sess *Session) (int, error) {
	if err := s.requireSession(opArchiveDelivered, sess); err != nil {
		return 0, err
	}
	matching := lo.Filter(sess.store.Orders(), func(order Order, _ int) bool {
		return order.Status == OrderStatusDelivered && !order.Archived
	})
	if len(matching) == 0 {
		return 0, nil
	}
	stamped := lo.Map(matching, func(order Order, _ int) Order {
		order.Archived = true
		return order
	})
	entities := lo.Map(stamped, func(order Order, _ int) Entity { return order })
	if err := s.adapter.UpsertBatch(ctx, KindOrders, entities, sess.user.ID); err != nil {
		s.logError(opArchiveDelivered, "adapter_batch_failed", err, zap.Int("count", len(stamped)))
		return 0, newServiceError(opArchiveDelivered, "adapter_batch_failed", err)
	}
	for _, order := range stamped {
		sess.store.UpdateOrder(order)
	}
	return len(stamped), nil
}

// ConvertBudget turns a waiting budget into a fresh pending order and marks
// the budget approved. The two writes are sequential, not transactional: if
// the order write fails the budget is untouched; if the budget write fails
// after the order landed, the partial state is surfaced (not hidden) via
// ErrConversionPartial.
func (s *Service) ConvertBudget(ctx context.Context, sess *Session, budgetID string) (Order, error) {
	if err := s.requireSession(opConvertBudget, sess); err != nil {
		return Order{}, err
	}
	budget, found := sess.store.Budget(budgetID)
	if !found {
		return Order{}, newServiceError(opConvertBudget, "budget_not_found", ErrEntityNotFound)
	}
	if budget.Status != BudgetStatusWaiting {
		return Order{}, newServiceError(opConvertBudget, "budget_not_waiting", ErrInvalidBudgetStatus)
	}
	orderID, err := s.idProvider.NewID()
	if err != nil {
		s.logError(opConvertBudget, "id_generation_failed", err)
		return Order{}, newServiceError(opConvertBudget, "id_generation_failed", err)
	}
	order := buildOrderFromBudget(budget, orderID, s.clock())
	if err := s.adapter.Upsert(ctx, KindOrders, order, sess.user.ID); err != nil {
		s.logError(opConvertBudget, "order_upsert_failed", err, zap.String("budget_id", budgetID))
		return Order{}, newServiceError(opConvertBudget, "order_upsert_failed", err)
	}
	sess.store.UpsertOrder(order)

	budget.Status = BudgetStatusApproved
	if err := s.adapter.Upsert(ctx, KindBudgets, budget, sess.user.ID); err != nil {
		s.logError(opConvertBudget, "budget_upsert_failed", err,
			zap.String("budget_id", budgetID), zap.String("order_id", order.ID))
		return order, newServiceError(opConvertBudget, "budget_upsert_failed",
			errors.Join(ErrConversionPartial, err))
	}
	sess.store.UpdateBudget(budget)
	return order, nil
}

// Dashboard derives the dashboard aggregate for the session.
func (s *Service) Dashboard(sess *Session) (DashboardStats, error) {
	if err := s.requireSession(opReadAggregates, sess); err != nil {
		return DashboardStats{}, err
	}
	return ComputeDashboardStats(sess.store.Orders(), sess.store.Budgets()), nil
}

// Financial derives the financial rollup for the session, archived orders
// included.
func (s *Service) Financial(sess *Session) (FinancialSummary, error) {
	if err := s.requireSession(opReadAggregates, sess); err != nil {
		return FinancialSummary{}, err
	}
	return ComputeFinancialSummary(sess.store.Orders()), nil
}

// RecentOrders returns up to limit active orders, newest first.
func (s *Service) RecentOrders(sess *Session, limit int) ([]Order, error) {
	if err := s.requireSession(opReadAggregates, sess); err != nil {
		return nil, err
	}
	active := ActiveOrders(sess.store.Orders())
	if limit >= 0 && len(active) > limit {
		active = active[:limit]
	}
	return active, nil
}

func (s *Service) logError(operation, reason string, err error, fields ...zap.Field) {
	attrs := []zap.Field{
		zap.String("operation", operation),
		zap.String("reason", reason),
	}
	if err != nil {
		attrs = append(attrs, zap.Error(err))
	}
	attrs = append(attrs, fields...)
	s.logger.Error("shop service error", attrs...)
}
