package domain

import "strings"

// ExchangeKind separates centralised from decentralised venues.
type ExchangeKind string

const (
	ExchangeKindCEX ExchangeKind = "cex"
	ExchangeKindDEX ExchangeKind = "dex"
)

// Exchange is read-only reference data. Spreads point at it by ID.
type Exchange struct {
	ID   string       `json:"id"`
	Name string       `json:"name"`
	URL  string       `json:"url,omitempty"`
	Kind ExchangeKind `json:"kind"`
}

// NormalizeExchangeID trims and lower-cases an exchange identifier.
func NormalizeExchangeID(id string) string {
	return strings.ToLower(strings.TrimSpace(id))
}
