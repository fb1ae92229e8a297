package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// AlertType is the direction of a threshold alert.
type AlertType string

const (
	AlertAbove AlertType = "above"
	AlertBelow AlertType = "below"
)

// Valid reports whether t is one of the supported directions.
func (t AlertType) Valid() bool {
	return t == AlertAbove || t == AlertBelow
}

type User struct {
	ID        int64     `json:"id"`
	ChatID    int64     `json:"chat_id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

type Alert struct {
	ID          int64           `json:"id"`
	UserID      int64           `json:"user_id"`
	Symbol      string          `json:"symbol"`
	TargetPrice decimal.Decimal `json:"target_price"`
	AlertType   AlertType       `json:"alert_type"`
	IsActive    bool            `json:"is_active"`
	CreatedAt   time.Time       `json:"created_at"`
	TriggeredAt *time.Time      `json:"triggered_at,omitempty"`
}

// ActiveAlert is an active alert joined with its owner's contact address.
type ActiveAlert struct {
	ID          int64           `json:"id"`
	UserID      int64           `json:"user_id"`
	Contact     string          `json:"contact"`
	Symbol      string          `json:"symbol"`
	TargetPrice decimal.Decimal `json:"target_price"`
	AlertType   AlertType       `json:"alert_type"`
}

// PriceEntry is a cached price, one per symbol.
type PriceEntry struct {
	Symbol      string          `json:"symbol"`
	Price       decimal.Decimal `json:"price"`
	LastUpdated time.Time       `json:"last_updated"`
}

// Age of the entry relative to now.
func (e PriceEntry) Age(now time.Time) time.Duration {
	return now.Sub(e.LastUpdated)
}

// PriceSource names the tier a quote was served from.
type PriceSource string

const (
	SourcePersistent      PriceSource = "persistent"
	SourceMemory          PriceSource = "memory"
	SourceLive            PriceSource = "live"
	SourceStalePersistent PriceSource = "stale_persistent"
	SourceStaleMemory     PriceSource = "stale_memory"
)

type Quote struct {
	Symbol    string          `json:"symbol"`
	Price     decimal.Decimal `json:"price"`
	UpdatedAt time.Time       `json:"updated_at"`
	Source    PriceSource     `json:"source"`
}

// Cached reports whether the quote was served without a live provider call.
func (q Quote) Cached() bool {
	return q.Source != SourceLive
}

type Position struct {
	ID            int64            `json:"id"`
	UserID        int64            `json:"user_id"`
	Symbol        string           `json:"symbol"`
	Quantity      decimal.Decimal  `json:"quantity"`
	PurchasePrice decimal.Decimal  `json:"purchase_price"`
	PurchasedAt   time.Time        `json:"purchased_at"`
	IsSold        bool             `json:"is_sold"`
	SoldPrice     *decimal.Decimal `json:"sold_price,omitempty"`
	SoldAt        *time.Time       `json:"sold_at,omitempty"`
}

// PurchaseValue is quantity times purchase price.
func (p Position) PurchaseValue() decimal.Decimal {
	return p.Quantity.Mul(p.PurchasePrice)
}

// MetricSample is one persisted counter value. Unlabelled counters leave both label
// fields empty.
type MetricSample struct {
	Name       string
	LabelKey   string
	LabelValue string
	Value      float64
}
