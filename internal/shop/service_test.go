package shop

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"testing"
)

func TestSaveOrderPersistsThenCommits(testContext *testing.T) {
	adapter := newFakeAdapter()
	service := mustService(testContext, adapter, ArchiveAnyStatus)
	session := mustSession(testContext, service, "user-1")

	saved := mustSaveOrder(testContext, service, session, pendingOrder("Acme"))

	if saved.ID == "" {
		testContext.Fatalf("expected a generated id")
	}
	if saved.UserID != "user-1" {
		testContext.Fatalf("expected owner stamp, got %q", saved.UserID)
	}
	stored, ok := adapter.stored("user-1", KindOrders, saved.ID)
	if !ok {
		testContext.Fatalf("expected adapter to hold the order")
	}
	inStore, found := session.Store().Order(saved.ID)
	if !found {
		testContext.Fatalf("expected store to hold the order")
	}
	if !reflect.DeepEqual(stored, Entity(inStore)) {
		testContext.Fatalf("store and adapter disagree: %#v vs %#v", stored, inStore)
	}
}

func TestSaveOrderLeavesStoreUntouchedOnAdapterFailure(testContext *testing.T) {
	adapter := newFakeAdapter()
	service := mustService(testContext, adapter, ArchiveAnyStatus)
	session := mustSession(testContext, service, "user-1")
	mustSaveOrder(testContext, service, session, pendingOrder("Kept"))

	before := session.Store().Orders()
	adapter.failUpsert = errors.New("connection reset")

	_, err := service.SaveOrder(context.Background(), session, pendingOrder("Lost"))
	if err == nil {
		testContext.Fatalf("expected adapter failure to surface")
	}

	after := session.Store().Orders()
	if !reflect.DeepEqual(before, after) {
		testContext.Fatalf("store mutated on failed upsert: %#v -> %#v", before, after)
	}
}

func TestSaveOrderRejectsInvalidPayload(testContext *testing.T) {
	adapter := newFakeAdapter()
	service := mustService(testContext, adapter, ArchiveAnyStatus)
	session := mustSession(testContext, service, "user-1")

	tests := []struct {
		name  string
		order Order
	}{
		{name: "missing-client", order: Order{Status: OrderStatusPending, Quantity: 1}},
		{name: "negative-quantity", order: Order{ClientName: "Acme", Status: OrderStatusPending, Quantity: -1}},
		{name: "negative-value", order: Order{ClientName: "Acme", Status: OrderStatusPending, EntryValue: -5}},
		{name: "bad-status", order: Order{ClientName: "Acme", Status: "shipped"}},
	}
	for _, tt := range tests {
		testContext.Run(tt.name, func(testContext *testing.T) {
			if _, err := service.SaveOrder(context.Background(), session, tt.order); err == nil {
				testContext.Fatalf("expected validation error")
			}
			if adapter.upsertCalls != 0 {
				testContext.Fatalf("invalid payload must not reach the adapter")
			}
		})
	}
}

func TestMutationsRequireActiveSession(testContext *testing.T) {
	adapter := newFakeAdapter()
	service := mustService(testContext, adapter, ArchiveAnyStatus)

	if _, err := service.SaveOrder(context.Background(), nil, pendingOrder("Acme")); !errors.Is(err, ErrNoActiveSession) {
		testContext.Fatalf("expected ErrNoActiveSession, got %v", err)
	}
	if err := service.Delete(context.Background(), nil, KindOrders, "o1"); !errors.Is(err, ErrNoActiveSession) {
		testContext.Fatalf("expected ErrNoActiveSession, got %v", err)
	}

	session := mustSession(testContext, service, "user-1")
	service.EndSession(session)
	if _, err := service.SaveBudget(context.Background(), session, waitingBudget("Acme")); !errors.Is(err, ErrNoActiveSession) {
		testContext.Fatalf("ended session must reject mutations, got %v", err)
	}
	if adapter.upsertCalls != 0 {
		testContext.Fatalf("sessionless mutations must never reach the adapter")
	}
}

func TestDeleteIsNotOptimistic(testContext *testing.T) {
	adapter := newFakeAdapter()
	service := mustService(testContext, adapter, ArchiveAnyStatus)
	session := mustSession(testContext, service, "user-1")
	saved := mustSaveOrder(testContext, service, session, pendingOrder("Acme"))

	adapter.failDelete = errors.New("backend unavailable")
	if err := service.Delete(context.Background(), session, KindOrders, saved.ID); err == nil {
		testContext.Fatalf("expected delete failure to surface")
	}
	if _, found := session.Store().Order(saved.ID); !found {
		testContext.Fatalf("store must keep the order when the adapter delete fails")
	}

	adapter.failDelete = nil
	if err := service.Delete(context.Background(), session, KindOrders, saved.ID); err != nil {
		testContext.Fatalf("unexpected delete error: %v", err)
	}
	if _, found := session.Store().Order(saved.ID); found {
		testContext.Fatalf("store must drop the order after a successful delete")
	}
	if _, ok := adapter.stored("user-1", KindOrders, saved.ID); ok {
		testContext.Fatalf("adapter must drop the order too")
	}
}

func TestArchiveAndRestoreAreIdempotent(testContext *testing.T) {
	adapter := newFakeAdapter()
	service := mustService(testContext, adapter, ArchiveAnyStatus)
	session := mustSession(testContext, service, "user-1")
	saved := mustSaveOrder(testContext, service, session, pendingOrder("Acme"))

	restored, err := service.RestoreOrder(context.Background(), session, saved.ID)
	if err != nil {
		testContext.Fatalf("restore of a never-archived order must be a no-op, got %v", err)
	}
	if restored.Archived {
		testContext.Fatalf("no-op restore changed observable state")
	}

	callsBefore := adapter.upsertCalls
	archived, err := service.ArchiveOrder(context.Background(), session, saved.ID)
	if err != nil || !archived.Archived {
		testContext.Fatalf("expected archive to succeed, got %#v, %v", archived, err)
	}

	again, err := service.ArchiveOrder(context.Background(), session, saved.ID)
	if err != nil {
		testContext.Fatalf("archiving an archived order must be a no-op, got %v", err)
	}
	if !reflect.DeepEqual(again, archived) {
		testContext.Fatalf("no-op archive changed observable state")
	}
	if adapter.upsertCalls != callsBefore+1 {
		testContext.Fatalf("no-op archive must not hit the adapter again")
	}
}

func TestArchivePolicyDeliveredOnly(testContext *testing.T) {
	adapter := newFakeAdapter()
	service := mustService(testContext, adapter, ArchiveDeliveredOnly)
	session := mustSession(testContext, service, "user-1")
	saved := mustSaveOrder(testContext, service, session, pendingOrder("Acme"))

	if _, err := service.ArchiveOrder(context.Background(), session, saved.ID); !errors.Is(err, ErrArchiveNotDelivered) {
		testContext.Fatalf("expected delivered-only policy rejection, got %v", err)
	}

	if _, err := service.SetOrderStatus(context.Background(), session, saved.ID, OrderStatusDelivered); err != nil {
		testContext.Fatalf("unexpected status error: %v", err)
	}
	if _, err := service.ArchiveOrder(context.Background(), session, saved.ID); err != nil {
		testContext.Fatalf("delivered order must be archivable, got %v", err)
	}
}

func TestArchiveDeliveredBatchesAllOrNothing(testContext *testing.T) {
	adapter := newFakeAdapter()
	service := mustService(testContext, adapter, ArchiveDeliveredOnly)
	session := mustSession(testContext, service, "user-1")

	delivered1 := pendingOrder("One")
	delivered1.Status = OrderStatusDelivered
	delivered2 := pendingOrder("Two")
	delivered2.Status = OrderStatusDelivered
	pending := pendingOrder("Three")

	mustSaveOrder(testContext, service, session, delivered1)
	mustSaveOrder(testContext, service, session, delivered2)
	kept := mustSaveOrder(testContext, service, session, pending)

	adapter.failBatch = errors.New("batch write refused")
	if _, err := service.ArchiveDelivered(context.Background(), session); err == nil {
		testContext.Fatalf("expected batch failure to surface")
	}
	for _, order := range session.Store().Orders() {
		if order.Archived {
			testContext.Fatalf("no order may be archived when the batch fails: %#v", order)
		}
	}

	adapter.failBatch = nil
	count, err := service.ArchiveDelivered(context.Background(), session)
	if err != nil {
		testContext.Fatalf("unexpected batch error: %v", err)
	}
	if count != 2 {
		testContext.Fatalf("expected 2 archived orders, got %d", count)
	}
	order, _ := session.Store().Order(kept.ID)
	if order.Archived {
		testContext.Fatalf("pending order must not be archived by the bulk operation")
	}
	if adapter.batchCalls != 2 {
		testContext.Fatalf("expected exactly one batch call per attempt, got %d", adapter.batchCalls)
	}

	count, err = service.ArchiveDelivered(context.Background(), session)
	if err != nil || count != 0 {
		testContext.Fatalf("re-running with nothing to archive must be a zero no-op, got %d, %v", count, err)
	}
}

func TestConvertBudgetProducesPendingOrder(testContext *testing.T) {
	adapter := newFakeAdapter()
	service := mustService(testContext, adapter, ArchiveDeliveredOnly)
	session := mustSession(testContext, service, "user-1")
	budget := mustSaveBudget(testContext, service, session, waitingBudget("Acme"))

	order, err := service.ConvertBudget(context.Background(), session, budget.ID)
	if err != nil {
		testContext.Fatalf("unexpected conversion error: %v", err)
	}

	if order.EntryValue != 0 {
		testContext.Fatalf("expected zero entry value, got %v", order.EntryValue)
	}
	if order.RemainingValue != 150 {
		testContext.Fatalf("expected remaining value 150, got %v", order.RemainingValue)
	}
	if order.Status != OrderStatusPending {
		testContext.Fatalf("expected pending status, got %q", order.Status)
	}
	if order.MaterialType != "Banner" || order.ClientName != "Acme" || order.Phone != "119999" {
		testContext.Fatalf("client details must carry over verbatim: %#v", order)
	}
	if order.Measurements != "2x1m" || order.Quantity != 1 {
		testContext.Fatalf("job details must carry over verbatim: %#v", order)
	}
	if order.Color != "" {
		testContext.Fatalf("color must start blank, got %q", order.Color)
	}
	if order.AdditionalInfo != "Rush job\nEmail: client@example.com" {
		testContext.Fatalf("unexpected notes: %q", order.AdditionalInfo)
	}
	if order.ID == budget.ID {
		testContext.Fatalf("converted order must get a fresh id")
	}
	if order.OrderDate != "2025-06-15" {
		testContext.Fatalf("order date must be the conversion moment, got %q", order.OrderDate)
	}

	updated, _ := session.Store().Budget(budget.ID)
	if updated.Status != BudgetStatusApproved {
		testContext.Fatalf("source budget must be approved, got %q", updated.Status)
	}
	if _, ok := adapter.stored("user-1", KindOrders, order.ID); !ok {
		testContext.Fatalf("converted order must be persisted")
	}
}

func TestConvertBudgetWithoutEmailFoldsPlaceholder(testContext *testing.T) {
	adapter := newFakeAdapter()
	service := mustService(testContext, adapter, ArchiveDeliveredOnly)
	session := mustSession(testContext, service, "user-1")
	budget := waitingBudget("Acme")
	budget.Email = ""
	saved := mustSaveBudget(testContext, service, session, budget)

	order, err := service.ConvertBudget(context.Background(), session, saved.ID)
	if err != nil {
		testContext.Fatalf("unexpected conversion error: %v", err)
	}
	if order.AdditionalInfo != "Rush job\nEmail: N/A" {
		testContext.Fatalf("unexpected notes: %q", order.AdditionalInfo)
	}
}

func TestConvertBudgetRejectsNonWaiting(testContext *testing.T) {
	adapter := newFakeAdapter()
	service := mustService(testContext, adapter, ArchiveDeliveredOnly)
	session := mustSession(testContext, service, "user-1")
	budget := waitingBudget("Acme")
	budget.Status = BudgetStatusApproved
	saved := mustSaveBudget(testContext, service, session, budget)

	ordersBefore := len(session.Store().Orders())
	if _, err := service.ConvertBudget(context.Background(), session, saved.ID); !errors.Is(err, ErrInvalidBudgetStatus) {
		testContext.Fatalf("expected rejection of non-waiting budget, got %v", err)
	}
	if len(session.Store().Orders()) != ordersBefore {
		testContext.Fatalf("rejected conversion must not create an order")
	}
}

func TestConvertBudgetOrderFailureLeavesBudgetWaiting(testContext *testing.T) {
	adapter := newFakeAdapter()
	service := mustService(testContext, adapter, ArchiveDeliveredOnly)
	session := mustSession(testContext, service, "user-1")
	budget := mustSaveBudget(testContext, service, session, waitingBudget("Acme"))

	adapter.failUpsert = errors.New("write refused")
	if _, err := service.ConvertBudget(context.Background(), session, budget.ID); err == nil {
		testContext.Fatalf("expected conversion failure to surface")
	}

	current, _ := session.Store().Budget(budget.ID)
	if current.Status != BudgetStatusWaiting {
		testContext.Fatalf("budget must stay waiting when the order write fails, got %q", current.Status)
	}
	if len(session.Store().Orders()) != 0 {
		testContext.Fatalf("no order may be committed when the order write fails")
	}
}

// failAfterAdapter lets the first upsert through and fails the next ones,
// reproducing the documented inconsistency window of a conversion whose
// budget update fails after the order landed.
type failAfterAdapter struct {
	*fakeAdapter
	allowed int
}

func (a *failAfterAdapter) Upsert(ctx context.Context, kind Kind, entity Entity, userID string) error {
	if a.allowed <= 0 {
		return fmt.Errorf("write refused")
	}
	a.allowed--
	return a.fakeAdapter.Upsert(ctx, kind, entity, userID)
}

func TestConvertBudgetPartialFailureIsSurfaced(testContext *testing.T) {
	inner := newFakeAdapter()
	adapter := &failAfterAdapter{fakeAdapter: inner, allowed: 2}
	service := mustService(testContext, adapter, ArchiveDeliveredOnly)
	session := mustSession(testContext, service, "user-1")
	budget := mustSaveBudget(testContext, service, session, waitingBudget("Acme"))

	order, err := service.ConvertBudget(context.Background(), session, budget.ID)
	if !errors.Is(err, ErrConversionPartial) {
		testContext.Fatalf("expected ErrConversionPartial, got %v", err)
	}
	if order.ID == "" {
		testContext.Fatalf("the created order must still be returned")
	}
	if _, found := session.Store().Order(order.ID); !found {
		testContext.Fatalf("the created order must stay committed")
	}
	current, _ := session.Store().Budget(budget.ID)
	if current.Status != BudgetStatusWaiting {
		testContext.Fatalf("budget must remain waiting in the store, got %q", current.Status)
	}
}

func TestUserMessageMapsEveryFailureClassDistinctly(testContext *testing.T) {
	classes := []error{
		ErrNoActiveSession,
		ErrSchemaMissing,
		ErrPermissionDenied,
		ErrRateLimited,
		ErrDuplicateIdentity,
		ErrInvalidCredentials,
		ErrConversionPartial,
		ErrArchiveNotDelivered,
		ErrEntityNotFound,
	}
	seen := make(map[string]error, len(classes))
	for _, class := range classes {
		wrapped := newServiceError("shop.test", "wrapped", fmt.Errorf("cause: %w", class))
		message := UserMessage(wrapped)
		if message == "" || message == wrapped.Error() {
			testContext.Fatalf("class %v must map to a dedicated message, got %q", class, message)
		}
		if prior, duplicate := seen[message]; duplicate {
			testContext.Fatalf("classes %v and %v share message %q", prior, class, message)
		}
		seen[message] = class
	}

	generic := errors.New("disk exploded")
	if UserMessage(generic) != "disk exploded" {
		testContext.Fatalf("generic failures must surface verbatim")
	}
	if UserMessage(nil) != "" {
		testContext.Fatalf("nil error must map to empty message")
	}
}

func TestErrorCodeExposesOperationCodes(testContext *testing.T) {
	adapter := newFakeAdapter()
	service := mustService(testContext, adapter, ArchiveDeliveredOnly)

	_, err := service.SaveOrder(context.Background(), nil, pendingOrder("Acme"))
	if code := ErrorCode(err); code != "shop.save_order.no_active_session" {
		testContext.Fatalf("unexpected error code %q", code)
	}
	if code := ErrorCode(errors.New("plain")); code != "" {
		testContext.Fatalf("plain errors carry no code, got %q", code)
	}
}
