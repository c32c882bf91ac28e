package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type Product struct {
	ID          string    `json:"id"`
	TenantID    string    `json:"tenant_id"`
	Name        string    `json:"name"`
	Available   bool      `json:"available"`
	AutoCreated bool      `json:"auto_created"`
	CreatedAt   time.Time `json:"created_at"`
}

type PaymentMethod struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type Customer struct {
	ID        string    `json:"id"`
	TenantID  string    `json:"tenant_id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// PriceEntry is one time-bounded record of a product's unit price.
// ValidTo == nil marks the single currently active entry for the product.
type PriceEntry struct {
	ID        string          `json:"id"`
	ProductID string          `json:"product_id"`
	Price     decimal.Decimal `json:"price"`
	ValidFrom time.Time       `json:"valid_from"`
	ValidTo   *time.Time      `json:"valid_to,omitempty"`
}

type SaleItem struct {
	ID           string          `json:"id"`
	SaleID       string          `json:"sale_id"`
	ProductID    string          `json:"product_id,omitempty"`
	ProductLabel string          `json:"product_label"`
	UnitPrice    decimal.Decimal `json:"unit_price"`
	Quantity     decimal.Decimal `json:"quantity"`
	Subtotal     decimal.Decimal `json:"subtotal"`
	UnitLabel    string          `json:"unit_label,omitempty"`
}

type SalePayment struct {
	ID         string          `json:"id"`
	SaleID     string          `json:"sale_id"`
	MethodID   string          `json:"method_id"`
	MethodName string          `json:"method_name"`
	Amount     decimal.Decimal `json:"amount"`
}

type Sale struct {
	ID           string          `json:"id"`
	TenantID     string          `json:"tenant_id"`
	DailyOrdinal int             `json:"daily_ordinal"`
	Total        decimal.Decimal `json:"total"`
	OccurredAt   time.Time       `json:"occurred_at"`
	CustomerID   string          `json:"customer_id,omitempty"`
	CustomerName string          `json:"customer_name,omitempty"`
	Incomplete   bool            `json:"incomplete"`
	Voided       bool            `json:"voided"`
	VoidedAt     *time.Time      `json:"voided_at,omitempty"`
	Note         string          `json:"note,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	Items        []SaleItem      `json:"items"`
	Payments     []SalePayment   `json:"payments"`
}

// SaleUpdate carries the editable header fields. Nil means "leave unchanged";
// at least one field must be set for an edit to be accepted.
type SaleUpdate struct {
	Total        *decimal.Decimal `json:"total,omitempty"`
	CustomerName *string          `json:"customer_name,omitempty"`
	// CustomerID is filled in by the engine after resolving CustomerName;
	// it is never accepted from the wire.
	CustomerID *string    `json:"-"`
	Note       *string    `json:"note,omitempty"`
	OccurredAt *time.Time `json:"occurred_at,omitempty"`
	Incomplete *bool      `json:"incomplete,omitempty"`
}

func (u SaleUpdate) Empty() bool {
	return u.Total == nil && u.CustomerName == nil && u.Note == nil && u.OccurredAt == nil && u.Incomplete == nil
}

// CatalogSnapshot is the tenant context handed to the oracle so it matches
// existing names instead of inventing identifiers.
type CatalogSnapshot struct {
	TenantID       string          `json:"tenant_id"`
	Products       []ProductPrice  `json:"products"`
	PaymentMethods []PaymentMethod `json:"payment_methods"`
	TakenAt        time.Time       `json:"taken_at"`
}

type ProductPrice struct {
	Name  string           `json:"name"`
	Price *decimal.Decimal `json:"price,omitempty"`
}

// RawExtraction is the oracle's structured reply for one utterance, before
// any validation. Nothing in it is trusted.
type RawExtraction struct {
	IsSale   bool            `json:"is_sale"`
	Intent   string          `json:"intent"`
	Items    []RawItem       `json:"items"`
	Total    decimal.Decimal `json:"total"`
	Payments []RawPayment    `json:"payments"`
	Customer string          `json:"customer,omitempty"`
	Note     string          `json:"note,omitempty"`
}

type RawItem struct {
	Product   string          `json:"product"`
	Quantity  decimal.Decimal `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Unit      string          `json:"unit,omitempty"`
}

type RawPayment struct {
	Method string          `json:"method"`
	Amount decimal.Decimal `json:"amount"`
}

// NormalizedSale is a validated extraction: amounts rounded to currency
// precision and the sum invariants already checked.
type NormalizedSale struct {
	Items        []NormalizedItem
	Total        decimal.Decimal
	Payments     []NormalizedPayment
	CustomerName string
	Note         string
	OccurredAt   time.Time
}

type NormalizedItem struct {
	ProductName string
	Quantity    decimal.Decimal
	UnitPrice   decimal.Decimal
	Subtotal    decimal.Decimal
	UnitLabel   string
}

type NormalizedPayment struct {
	MethodPhrase string
	Amount       decimal.Decimal
}

type SessionMessage struct {
	Role string    `json:"role"`
	Text string    `json:"text"`
	At   time.Time `json:"at"`
}

// Disambiguation is the temporary ordinal->sale mapping offered when a vague
// delete/edit reference needs to be pinned to a specific sale.
type Disambiguation struct {
	Date    string    `json:"date"`
	SaleIDs []string  `json:"sale_ids"`
	ShownAt time.Time `json:"shown_at"`
}

// SessionContext is conversational memory threaded through each turn. It is
// owned by the caller, never persisted by the engine, and returned mutated.
type SessionContext struct {
	Messages   []SessionMessage `json:"messages,omitempty"`
	LastSaleID string           `json:"last_sale_id,omitempty"`
	Pending    *Disambiguation  `json:"pending_disambiguation,omitempty"`
}

type TurnRequest struct {
	Utterance string         `json:"utterance"`
	Session   SessionContext `json:"session"`
}

type DisambiguationOption struct {
	Ordinal    int             `json:"ordinal"`
	SaleID     string          `json:"sale_id"`
	Total      decimal.Decimal `json:"total"`
	OccurredAt time.Time       `json:"occurred_at"`
}

// TurnReply is the acknowledgment data for one conversational turn. Message
// is a plain template rendering of the same facts, not generated prose.
type TurnReply struct {
	Kind    string                 `json:"kind"`
	Message string                 `json:"message"`
	Reason  string                 `json:"reason,omitempty"`
	Sale    *Sale                  `json:"sale,omitempty"`
	Options []DisambiguationOption `json:"options,omitempty"`
	Session SessionContext         `json:"session"`
}

const (
	TurnSaleRecorded  = "sale_recorded"
	TurnSaleCancelled = "sale_cancelled"
	TurnSaleUpdated   = "sale_updated"
	TurnDisambiguate  = "disambiguation"
	TurnClarification = "clarification"
	TurnRejected      = "rejected"
)

type ProductCreateRequest struct {
	Name  string           `json:"name"`
	Price *decimal.Decimal `json:"price,omitempty"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken string `json:"access_token"`
	TenantID    string `json:"tenant_id"`
	Role        string `json:"role"`
	ExpiresAt   string `json:"expires_at"`
}

type Actor struct {
	Username string
	TenantID string
	Role     string
}

// UserAccount is an internal persistence model for auth credentials.
type UserAccount struct {
	Username  string
	Password  string
	TenantID  string
	Role      string
	Active    bool
	CreatedAt time.Time
}
