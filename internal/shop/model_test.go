package shop

import (
	"errors"
	"testing"
)

func TestParseOrderStatus(testContext *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    OrderStatus
		wantErr bool
	}{
		{name: "pending", raw: "pending", want: OrderStatusPending},
		{name: "uppercase", raw: "DELIVERED", want: OrderStatusDelivered},
		{name: "padded", raw: "  in_process ", want: OrderStatusInProcess},
		{name: "unknown", raw: "shipped", wantErr: true},
		{name: "empty", raw: "", wantErr: true},
	}
	for _, tt := range tests {
		testContext.Run(tt.name, func(testContext *testing.T) {
			status, err := ParseOrderStatus(tt.raw)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidOrderStatus) {
					testContext.Fatalf("expected ErrInvalidOrderStatus, got %v", err)
				}
				return
			}
			if err != nil {
				testContext.Fatalf("unexpected parse error: %v", err)
			}
			if status != tt.want {
				testContext.Fatalf("expected %q, got %q", tt.want, status)
			}
		})
	}
}

func TestStatusValidity(testContext *testing.T) {
	if OrderStatus("shipped").Valid() {
		testContext.Fatalf("unknown order status must not validate")
	}
	if BudgetStatus("draft").Valid() {
		testContext.Fatalf("unknown budget status must not validate")
	}
	if DesignerStatus("on_leave").Valid() {
		testContext.Fatalf("unknown designer status must not validate")
	}
	if !BudgetStatusExpired.Valid() || !DesignerStatusInactive.Valid() {
		testContext.Fatalf("known statuses must validate")
	}
}

func TestBudgetValidation(testContext *testing.T) {
	valid := waitingBudget("Acme")
	if err := valid.Validate(); err != nil {
		testContext.Fatalf("fixture budget must validate, got %v", err)
	}

	missing := valid
	missing.ClientName = "   "
	if err := missing.Validate(); !errors.Is(err, ErrInvalidEntity) {
		testContext.Fatalf("expected ErrInvalidEntity for blank client, got %v", err)
	}

	negative := valid
	negative.TotalValue = -1
	if err := negative.Validate(); !errors.Is(err, ErrInvalidEntity) {
		testContext.Fatalf("expected ErrInvalidEntity for negative total, got %v", err)
	}

	badStatus := valid
	badStatus.Status = "draft"
	if err := badStatus.Validate(); !errors.Is(err, ErrInvalidBudgetStatus) {
		testContext.Fatalf("expected ErrInvalidBudgetStatus, got %v", err)
	}
}

func TestMaterialAndDesignerValidation(testContext *testing.T) {
	material := Material{Name: "Vinyl", BasePrice: 25, Unit: "m2"}
	if err := material.Validate(); err != nil {
		testContext.Fatalf("material must validate, got %v", err)
	}
	material.BasePrice = -5
	if err := material.Validate(); !errors.Is(err, ErrInvalidEntity) {
		testContext.Fatalf("expected ErrInvalidEntity for negative price, got %v", err)
	}

	designer := Designer{Name: "Lia", Status: DesignerStatusActive}
	if err := designer.Validate(); err != nil {
		testContext.Fatalf("designer must validate, got %v", err)
	}
	designer.Status = "retired"
	if err := designer.Validate(); !errors.Is(err, ErrInvalidDesignerStatus) {
		testContext.Fatalf("expected ErrInvalidDesignerStatus, got %v", err)
	}
}

func TestNewAttachmentBuildsDataURI(testContext *testing.T) {
	attachment := NewAttachment("mockup.png", "image/png", []byte("png-bytes"))

	if attachment.Name != "mockup.png" || attachment.Type != "image/png" {
		testContext.Fatalf("unexpected attachment metadata: %#v", attachment)
	}
	if attachment.DataURI != "data:image/png;base64,cG5nLWJ5dGVz" {
		testContext.Fatalf("unexpected data uri %q", attachment.DataURI)
	}
}

func TestOwnedByReturnsStampedCopy(testContext *testing.T) {
	original := pendingOrder("Acme")
	stamped := original.OwnedBy("user-9")

	if stamped.UserID != "user-9" {
		testContext.Fatalf("expected owner stamp, got %q", stamped.UserID)
	}
	if original.UserID != "" {
		testContext.Fatalf("stamping must not mutate the receiver")
	}
}
