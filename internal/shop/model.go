package shop

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
)

// Kind identifies one of the four persisted entity collections.
type Kind string

const (
	KindOrders    Kind = "orders"
	KindBudgets   Kind = "budgets"
	KindMaterials Kind = "materials"
	KindDesigners Kind = "designers"
)

// Kinds lists every collection in load order.
func Kinds() []Kind {
	return []Kind{KindOrders, KindBudgets, KindMaterials, KindDesigners}
}

// OrderStatus enumerates the production states of an order.
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusInProcess OrderStatus = "in_process"
	OrderStatusDelivered OrderStatus = "delivered"
)

// Valid reports whether the status is one of the known order states.
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPending, OrderStatusInProcess, OrderStatusDelivered:
		return true
	}
	return false
}

// ParseOrderStatus normalizes raw input into an OrderStatus.
func ParseOrderStatus(raw string) (OrderStatus, error) {
	status := OrderStatus(strings.ToLower(strings.TrimSpace(raw)))
	if !status.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidOrderStatus, raw)
	}
	return status, nil
}

// BudgetStatus enumerates the states of a price quote.
type BudgetStatus string

const (
	BudgetStatusWaiting  BudgetStatus = "waiting"
	BudgetStatusApproved BudgetStatus = "approved"
	BudgetStatusExpired  BudgetStatus = "expired"
)

// Valid reports whether the status is one of the known budget states.
func (s BudgetStatus) Valid() bool {
	switch s {
	case BudgetStatusWaiting, BudgetStatusApproved, BudgetStatusExpired:
		return true
	}
	return false
}

// DesignerStatus enumerates availability of a designer.
type DesignerStatus string

const (
	DesignerStatusActive   DesignerStatus = "active"
	DesignerStatusInactive DesignerStatus = "inactive"
)

// Valid reports whether the status is one of the known designer states.
func (s DesignerStatus) Valid() bool {
	return s == DesignerStatusActive || s == DesignerStatusInactive
}

// DefaultMaterialCategory is assigned when a material is saved without one.
const DefaultMaterialCategory = "General"

var (
	ErrInvalidOrderStatus    = errors.New("shop: invalid order status")
	ErrInvalidBudgetStatus   = errors.New("shop: invalid budget status")
	ErrInvalidDesignerStatus = errors.New("shop: invalid designer status")
	ErrInvalidEntity         = errors.New("shop: invalid entity")
)

// Entity is satisfied by every persisted record kind.
type Entity interface {
	EntityID() string
}

// User is the provider-confirmed identity that owns the four collections.
type User struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	Provider  string `json:"provider,omitempty"`
	AvatarURL string `json:"avatar,omitempty"`
}

// Attachment is a file embedded on an order, stored as a self-contained data URI.
type Attachment struct {
	Name    string `json:"name"`
	Type    string `json:"type"`
	DataURI string `json:"data"`
}

// NewAttachment encodes raw file bytes into an embeddable attachment.
func NewAttachment(name, mimeType string, data []byte) Attachment {
	return Attachment{
		Name:    name,
		Type:    mimeType,
		DataURI: fmt.Sprintf("data:%s;base64,%s", mimeType, base64.StdEncoding.EncodeToString(data)),
	}
}

// Order is a customer print job.
type Order struct {
	ID             string       `gorm:"column:order_id;primaryKey;size:190;not null" json:"id"`
	UserID         string       `gorm:"column:user_id;primaryKey;size:190;not null;index" json:"-"`
	OrderDate      string       `gorm:"column:order_date;size:32;not null" json:"date"`
	ClientName     string       `gorm:"column:client_name;size:320;not null" json:"clientName"`
	Phone          string       `gorm:"column:phone;size:64" json:"phone"`
	MaterialType   string       `gorm:"column:material_type;size:190" json:"materialType"`
	Measurements   string       `gorm:"column:measurements;size:190" json:"measurements"`
	Quantity       int          `gorm:"column:quantity;not null;default:0" json:"quantity"`
	Color          string       `gorm:"column:color;size:190" json:"color"`
	AdditionalInfo string       `gorm:"column:additional_info;type:text" json:"additionalInfo"`
	EntryValue     float64      `gorm:"column:entry_value;not null;default:0" json:"entryValue"`
	RemainingValue float64      `gorm:"column:remaining_value;not null;default:0" json:"remainingValue"`
	Status         OrderStatus  `gorm:"column:status;size:32;not null" json:"status"`
	DesignerID     string       `gorm:"column:designer_id;size:190" json:"designerId,omitempty"`
	Attachments    []Attachment `gorm:"column:attachments;serializer:json" json:"attachments,omitempty"`
	Archived       bool         `gorm:"column:archived;not null;default:false" json:"archived"`
}

// TableName provides the explicit table binding for GORM.
func (Order) TableName() string {
	return "orders"
}

// EntityID returns the opaque order identifier.
func (o Order) EntityID() string {
	return o.ID
}

// OwnedBy stamps the owning user onto a copy of the order.
func (o Order) OwnedBy(userID string) Order {
	o.UserID = userID
	return o
}

// Validate checks the field constraints the core enforces before persisting.
func (o Order) Validate() error {
	if strings.TrimSpace(o.ClientName) == "" {
		return fmt.Errorf("%w: order client name is required", ErrInvalidEntity)
	}
	if o.Quantity < 0 {
		return fmt.Errorf("%w: order quantity must not be negative", ErrInvalidEntity)
	}
	if o.EntryValue < 0 || o.RemainingValue < 0 {
		return fmt.Errorf("%w: order values must not be negative", ErrInvalidEntity)
	}
	if !o.Status.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidOrderStatus, o.Status)
	}
	return nil
}

// Budget is a price quote that may later be converted into an order.
type Budget struct {
	ID               string       `gorm:"column:budget_id;primaryKey;size:190;not null" json:"id"`
	UserID           string       `gorm:"column:user_id;primaryKey;size:190;not null;index" json:"-"`
	CreatedDate      string       `gorm:"column:created_date;size:32;not null" json:"date"`
	ClientName       string       `gorm:"column:client_name;size:320;not null" json:"clientName"`
	Email            string       `gorm:"column:email;size:320" json:"email"`
	Phone            string       `gorm:"column:phone;size:64" json:"phone"`
	MaterialType     string       `gorm:"column:material_type;size:190" json:"materialType"`
	Measurements     string       `gorm:"column:measurements;size:190" json:"measurements"`
	Quantity         int          `gorm:"column:quantity;not null;default:0" json:"quantity"`
	TotalValue       float64      `gorm:"column:total_value;not null;default:0" json:"totalValue"`
	Status           BudgetStatus `gorm:"column:status;size:32;not null" json:"status"`
	DeliveryDeadline string       `gorm:"column:delivery_deadline;size:190" json:"deliveryDeadline"`
	ValidUntil       string       `gorm:"column:valid_until;size:32" json:"validUntil"`
	Notes            string       `gorm:"column:notes;type:text" json:"notes"`
}

// TableName provides the explicit table binding for GORM.
func (Budget) TableName() string {
	return "budgets"
}

// EntityID returns the opaque budget identifier.
func (b Budget) EntityID() string {
	return b.ID
}

// OwnedBy stamps the owning user onto a copy of the budget.
func (b Budget) OwnedBy(userID string) Budget {
	b.UserID = userID
	return b
}

// Validate checks the field constraints the core enforces before persisting.
func (b Budget) Validate() error {
	if strings.TrimSpace(b.ClientName) == "" {
		return fmt.Errorf("%w: budget client name is required", ErrInvalidEntity)
	}
	if b.Quantity < 0 {
		return fmt.Errorf("%w: budget quantity must not be negative", ErrInvalidEntity)
	}
	if b.TotalValue < 0 {
		return fmt.Errorf("%w: budget total must not be negative", ErrInvalidEntity)
	}
	if !b.Status.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidBudgetStatus, b.Status)
	}
	return nil
}

// Material is one entry of the price catalog.
type Material struct {
	ID        string  `gorm:"column:material_id;primaryKey;size:190;not null" json:"id"`
	UserID    string  `gorm:"column:user_id;primaryKey;size:190;not null;index" json:"-"`
	Name      string  `gorm:"column:name;size:320;not null" json:"name"`
	Category  string  `gorm:"column:category;size:190;not null;default:''" json:"category"`
	BasePrice float64 `gorm:"column:base_price;not null;default:0" json:"basePrice"`
	Unit      string  `gorm:"column:unit;size:64" json:"unit"`
}

// TableName provides the explicit table binding for GORM.
func (Material) TableName() string {
	return "materials"
}

// EntityID returns the opaque material identifier.
func (m Material) EntityID() string {
	return m.ID
}

// OwnedBy stamps the owning user onto a copy of the material.
func (m Material) OwnedBy(userID string) Material {
	m.UserID = userID
	return m
}

// Validate checks the field constraints the core enforces before persisting.
func (m Material) Validate() error {
	if strings.TrimSpace(m.Name) == "" {
		return fmt.Errorf("%w: material name is required", ErrInvalidEntity)
	}
	if m.BasePrice < 0 {
		return fmt.Errorf("%w: material base price must not be negative", ErrInvalidEntity)
	}
	return nil
}

// Designer is a member of the shop's small team directory.
type Designer struct {
	ID        string         `gorm:"column:designer_id;primaryKey;size:190;not null" json:"id"`
	UserID    string         `gorm:"column:user_id;primaryKey;size:190;not null;index" json:"-"`
	Name      string         `gorm:"column:name;size:320;not null" json:"name"`
	Specialty string         `gorm:"column:specialty;size:190" json:"specialty"`
	Email     string         `gorm:"column:email;size:320" json:"email"`
	Status    DesignerStatus `gorm:"column:status;size:32;not null" json:"status"`
}

// TableName provides the explicit table binding for GORM.
func (Designer) TableName() string {
	return "designers"
}

// EntityID returns the opaque designer identifier.
func (d Designer) EntityID() string {
	return d.ID
}

// OwnedBy stamps the owning user onto a copy of the designer.
func (d Designer) OwnedBy(userID string) Designer {
	d.UserID = userID
	return d
}

// Validate checks the field constraints the core enforces before persisting.
func (d Designer) Validate() error {
	if strings.TrimSpace(d.Name) == "" {
		return fmt.Errorf("%w: designer name is required", ErrInvalidEntity)
	}
	if !d.Status.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidDesignerStatus, d.Status)
	}
	return nil
}
