// Package domain defines the persistence models for messages, customers,
// groups, orders, and summaries. These types are mapped with GORM and form
// the core data layer of the order-extraction pipeline.
package domain

import (
	"time"

	"gorm.io/gorm"
)

// Order status values. Transitions are monotonic forward except for explicit
// cancellation; see CanTransition.
const (
	StatusPending       = "pending"
	StatusConfirmed     = "confirmed"
	StatusDelivered     = "delivered"
	StatusCancelled     = "cancelled"
	StatusAutoConfirmed = "auto_confirmed"
)

// Message is the ledger record for a single inbound chat message. Every
// delivered event is stored here exactly once, keyed by the channel's
// external message id; the unique index on MessageID is the idempotency
// gate for the whole pipeline.
//
// Fields:
//   - ID: stable UUID primary key (char(36)).
//   - MessageID: external message identifier (dedup key, unique).
//   - GroupID / SenderID: external channel identifiers.
//   - SenderName: display name as seen in the chat, may be empty.
//   - Content: raw message text.
//   - MessageType: "text", "image", "document", etc.
//   - Timestamp: when the message was sent, per the source.
//   - IsOrder: classification result of the extraction engine.
//   - IsProcessed: set only after the full pipeline completed for this
//     message; messages that errored mid-pipeline stay false so the
//     reprocessing sweep can pick them up.
//   - Extracted: JSON snapshot of the normalized extraction output.
type Message struct {
	ID          string    `json:"id"           gorm:"type:char(36);primaryKey"`
	MessageID   string    `json:"message_id"   gorm:"type:varchar(100);not null;uniqueIndex:ux_messages_external"`
	GroupID     string    `json:"group_id"     gorm:"type:varchar(100);not null;index"`
	SenderID    string    `json:"sender_id"    gorm:"type:varchar(100);not null;index"`
	SenderName  string    `json:"sender_name"  gorm:"type:varchar(100)"`
	Content     string    `json:"content"      gorm:"type:text;not null"`
	MessageType string    `json:"message_type" gorm:"type:varchar(50);not null;default:'text'"`
	Timestamp   time.Time `json:"timestamp"    gorm:"not null"`
	IsOrder     bool      `json:"is_order"     gorm:"not null;default:false;index"`
	IsProcessed bool      `json:"is_processed" gorm:"not null;default:false;index"`
	Extracted   []byte    `json:"extracted,omitempty" gorm:"type:text"`
	CreatedAt   time.Time `json:"created_at"`
}

// TableName returns the database table name for Message.
func (Message) TableName() string { return "messages" }

// Customer is an identity record resolved from chat sender signals. It is
// created lazily on the first order from an identity and never deleted by
// the pipeline. ChannelID and Phone both carry unique indexes; the storage
// layer is the arbiter when two concurrent first-contact messages race on
// creation.
//
// TotalOrders is recomputed from the orders table on every materialization
// rather than incrementally trusted.
type Customer struct {
	ID          string         `json:"id"           gorm:"type:char(36);primaryKey"`
	Name        string         `json:"name"         gorm:"type:varchar(100);not null"`
	Phone       string         `json:"phone"        gorm:"type:varchar(30);not null;uniqueIndex:ux_customers_phone"`
	ChannelID   string         `json:"channel_id"   gorm:"type:varchar(100);not null;uniqueIndex:ux_customers_channel"`
	IsActive    bool           `json:"is_active"    gorm:"not null;default:true"`
	TotalOrders int            `json:"total_orders" gorm:"not null;default:0"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `json:"-"            gorm:"index"`
}

// TableName returns the database table name for Customer.
func (Customer) TableName() string { return "customers" }

// Group is a conversation channel. Rows are created lazily the first time a
// message references the external group id. LastMessageAt only ever moves
// forward.
type Group struct {
	ID            string         `json:"id"              gorm:"type:char(36);primaryKey"`
	ExternalID    string         `json:"group_id"        gorm:"column:group_id;type:varchar(100);not null;uniqueIndex:ux_groups_external"`
	Name          string         `json:"name"            gorm:"type:varchar(200);not null"`
	Description   string         `json:"description"     gorm:"type:text"`
	IsActive      bool           `json:"is_active"       gorm:"not null;default:true"`
	LastMessageAt *time.Time     `json:"last_message_at"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
	DeletedAt     gorm.DeletedAt `json:"-"               gorm:"index"`
}

// TableName returns the database table name for Group.
func (Group) TableName() string { return "groups" }

// Product is a catalog entry. The pipeline only consumes it as a fuzzy
// lookup target to backfill prices and categories on order lines; catalog
// management itself lives outside this core.
type Product struct {
	ID          string `json:"id"          gorm:"type:char(36);primaryKey"`
	Name        string `json:"name"        gorm:"type:varchar(200);not null;index"`
	Description string `json:"description" gorm:"type:text"`
	// Price is display text because source formats are inconsistent.
	Price     string         `json:"price"    gorm:"type:varchar(50)"`
	Category  string         `json:"category" gorm:"type:varchar(100)"`
	IsActive  bool           `json:"is_active" gorm:"not null;default:true"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`
}

// TableName returns the database table name for Product.
func (Product) TableName() string { return "products" }

// Order is a materialized purchase request. At most one Order exists per
// external message id (unique index); the message id is the natural
// idempotency key propagated from the ledger.
//
// Fields:
//   - CustomerID / GroupID: owning customer and conversation channel.
//   - MessageID: external message id of the source message (unique).
//   - OrderDate: calendar timestamp of the order (from the message).
//   - OrderTime: display time, "03:04 PM" format.
//   - Status: one of the Status* constants.
//   - Notes: free text; merge and auto-confirm annotations accumulate here.
//   - RawMessage: original chat text, kept for audit.
//   - TotalItems / TotalAmount: denormalized totals, recomputed by the
//     order service after materialization, enhancement, and merges.
type Order struct {
	ID          string         `json:"id"           gorm:"type:char(36);primaryKey"`
	CustomerID  string         `json:"customer_id"  gorm:"type:char(36);not null;index:idx_orders_customer,priority:1"`
	GroupID     string         `json:"group_id"     gorm:"type:char(36);not null;index"`
	MessageID   string         `json:"message_id"   gorm:"type:varchar(100);not null;uniqueIndex:ux_orders_message"`
	OrderDate   time.Time      `json:"order_date"   gorm:"not null;index"`
	OrderTime   string         `json:"order_time"   gorm:"type:varchar(20)"`
	Status      string         `json:"status"       gorm:"type:varchar(50);not null;default:'pending';index;check:status IN ('pending','confirmed','delivered','cancelled','auto_confirmed')"`
	Notes       string         `json:"notes"        gorm:"type:text"`
	RawMessage  string         `json:"raw_message"  gorm:"type:text"`
	IsProcessed bool           `json:"is_processed" gorm:"not null;default:false"`
	TotalItems  int            `json:"total_items"  gorm:"not null;default:0"`
	TotalAmount float64        `json:"total_amount" gorm:"not null;default:0"`
	CreatedAt   time.Time      `json:"created_at"   gorm:"index:idx_orders_customer,priority:2"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `json:"-"            gorm:"index"`

	Customer Customer    `json:"-" gorm:"foreignKey:CustomerID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT"`
	Group    Group       `json:"-" gorm:"foreignKey:GroupID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT"`
	Lines    []OrderLine `json:"lines,omitempty" gorm:"foreignKey:OrderID;references:ID"`
}

// TableName returns the database table name for Order.
func (Order) TableName() string { return "orders" }

// OrderLine is a single item on an order. ProductName is free text and is
// not required to match a catalog entry; ProductID is backfilled later when
// a fuzzy match succeeds. UnitPrice is kept as display text because the
// source format is inconsistent ("₹120", "$3.50", "120").
type OrderLine struct {
	ID          string    `json:"id"           gorm:"type:char(36);primaryKey"`
	OrderID     string    `json:"order_id"     gorm:"type:char(36);not null;index"`
	ProductID   *string   `json:"product_id,omitempty" gorm:"type:char(36);index"`
	ProductName string    `json:"product_name" gorm:"type:varchar(200);not null"`
	Quantity    int       `json:"quantity"     gorm:"not null;check:quantity >= 1"`
	Unit        string    `json:"unit"         gorm:"type:varchar(30);not null;default:'pcs'"`
	UnitPrice   string    `json:"unit_price"   gorm:"type:varchar(50)"`
	Notes       string    `json:"notes"        gorm:"type:text"`
	CreatedAt   time.Time `json:"created_at"`

	// Order is the parent order. Lines are cascade-deleted when the order
	// row is removed; the duplicate merger reassigns them first.
	Order Order `json:"-" gorm:"foreignKey:OrderID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for OrderLine.
func (OrderLine) TableName() string { return "order_lines" }

// Summary kinds accepted by the aggregation engine.
const (
	SummaryDaily    = "daily"
	SummaryWeekly   = "weekly"
	SummaryCustomer = "customer"
	SummaryProduct  = "product"
)

// Summary is a persisted, immutable snapshot of an aggregation query.
// Payload holds the full summary document as JSON; the scalar columns exist
// for cheap listing and filtering.
type Summary struct {
	ID             string    `json:"id"              gorm:"type:char(36);primaryKey"`
	Kind           string    `json:"kind"            gorm:"type:varchar(20);not null;index;check:kind IN ('daily','weekly','customer','product')"`
	SummaryDate    time.Time `json:"summary_date"    gorm:"not null;index"`
	GroupID        *string   `json:"group_id,omitempty" gorm:"type:char(36);index"`
	TotalOrders    int       `json:"total_orders"    gorm:"not null;default:0"`
	TotalCustomers int       `json:"total_customers" gorm:"not null;default:0"`
	TotalItems     int       `json:"total_items"     gorm:"not null;default:0"`
	Payload        []byte    `json:"payload"         gorm:"type:text"`
	CreatedAt      time.Time `json:"created_at"`
}

// TableName returns the database table name for Summary.
func (Summary) TableName() string { return "summaries" }

// CanTransition reports whether an order may move from one status to
// another. Forward moves only, cancellation allowed from anywhere, and no
// path ever leads back to pending.
func CanTransition(from, to string) bool {
	if from == to {
		return false
	}
	if to == StatusCancelled {
		return from != StatusCancelled
	}
	switch from {
	case StatusPending:
		return to == StatusConfirmed || to == StatusAutoConfirmed
	case StatusConfirmed, StatusAutoConfirmed:
		return to == StatusDelivered
	default:
		return false
	}
}

// IsTerminal reports whether the automatic sweeps must leave an order in
// this status untouched. A human action may still cancel.
func IsTerminal(status string) bool {
	switch status {
	case StatusDelivered, StatusCancelled, StatusAutoConfirmed:
		return true
	}
	return false
}
