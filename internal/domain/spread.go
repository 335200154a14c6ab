package domain

import (
	"math"
	"strings"
	"time"
)

// Direction describes the leg order of an arbitrage opportunity, e.g. CEX -> DEX.
type Direction struct {
	From *string `json:"from,omitempty"`
	To   *string `json:"to,omitempty"`
}

// ExchangeQuote is one centralised-exchange leg observed for a spread.
type ExchangeQuote struct {
	Exchange          string   `json:"exchange"`
	DifferencePercent *string  `json:"differencePercent,omitempty"`
	Profit            *float64 `json:"profit,omitempty"`
	AveragePrice      *float64 `json:"averagePrice,omitempty"`
	Volume            *float64 `json:"volume,omitempty"`
	DepositStatus     *string  `json:"depositStatus,omitempty"`
	WithdrawalStatus  *string  `json:"withdrawalStatus,omitempty"`
	Link              *string  `json:"link,omitempty"`
}

// CEXData groups the spot and futures quotes behind a spread. The market kind
// of a quote is the list it sits in.
type CEXData struct {
	Spot    []ExchangeQuote `json:"spot"`
	Futures []ExchangeQuote `json:"futures"`
}

// Clone returns a deep copy; nil stays nil.
func (c *CEXData) Clone() *CEXData {
	if c == nil {
		return nil
	}
	return &CEXData{Spot: cloneQuotes(c.Spot), Futures: cloneQuotes(c.Futures)}
}

func cloneQuotes(in []ExchangeQuote) []ExchangeQuote {
	out := make([]ExchangeQuote, len(in))
	for i, q := range in {
		out[i] = ExchangeQuote{
			Exchange:          q.Exchange,
			DifferencePercent: clonePtr(q.DifferencePercent),
			Profit:            clonePtr(q.Profit),
			AveragePrice:      clonePtr(q.AveragePrice),
			Volume:            clonePtr(q.Volume),
			DepositStatus:     clonePtr(q.DepositStatus),
			WithdrawalStatus:  clonePtr(q.WithdrawalStatus),
			Link:              clonePtr(q.Link),
		}
	}
	return out
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// normalized lower-cases exchange names and turns nil lists into empty ones.
func (c CEXData) normalized() *CEXData {
	out := &CEXData{Spot: cloneQuotes(c.Spot), Futures: cloneQuotes(c.Futures)}
	for i := range out.Spot {
		out.Spot[i].Exchange = NormalizeExchangeID(out.Spot[i].Exchange)
	}
	for i := range out.Futures {
		out.Futures[i].Exchange = NormalizeExchangeID(out.Futures[i].Exchange)
	}
	return out
}

func (c CEXData) validate() error {
	for _, list := range []struct {
		name   string
		quotes []ExchangeQuote
	}{{"cex.spot", c.Spot}, {"cex.futures", c.Futures}} {
		for _, q := range list.quotes {
			if strings.TrimSpace(q.Exchange) == "" {
				return Invalid(list.name, "exchange must not be empty")
			}
			for _, f := range []*float64{q.Profit, q.AveragePrice} {
				if f != nil && !finite(*f) {
					return Invalid(list.name, "numbers must be finite")
				}
			}
			if q.Volume != nil && (!finite(*q.Volume) || *q.Volume < 0) {
				return Invalid(list.name, "volume must be a finite number >= 0")
			}
		}
	}
	return nil
}

// Spread is a snapshot of an arbitrage opportunity for a trading pair on one
// exchange and network.
type Spread struct {
	ID         string     `json:"id"`
	Base       string     `json:"base"`
	Quote      string     `json:"quote"`
	Network    string     `json:"network"`
	TopSpread  float64    `json:"topSpread"`
	Liquidity  float64    `json:"liquidity"`
	FDV        *float64   `json:"fdv"`
	SortDays   float64    `json:"sortDays"`
	Exchange   string     `json:"exchange"`
	Contract   *string    `json:"contract,omitempty"`
	Dex        *string    `json:"dex,omitempty"`
	Price1     *float64   `json:"price1,omitempty"`
	Price2     *float64   `json:"price2,omitempty"`
	PriceFor   *float64   `json:"priceFor,omitempty"`
	Direction  Direction  `json:"direction"`
	CEX        *CEXData   `json:"cex,omitempty"`
	ObservedAt *time.Time `json:"observedAt,omitempty"`
	CreatedAt  time.Time  `json:"createdAt"`
	UpdatedAt  time.Time  `json:"updatedAt"`
}

// SpreadInput is the body of a create request. Pointer fields distinguish
// "missing" from zero so required fields can be enforced.
type SpreadInput struct {
	Base       *string    `json:"base"`
	Quote      *string    `json:"quote"`
	Network    *string    `json:"network"`
	TopSpread  *float64   `json:"topSpread"`
	Liquidity  *float64   `json:"liquidity"`
	FDV        *float64   `json:"fdv"`
	SortDays   *float64   `json:"sortDays"`
	Exchange   *string    `json:"exchange"`
	Contract   *string    `json:"contract"`
	Dex        *string    `json:"dex"`
	Price1     *float64   `json:"price1"`
	Price2     *float64   `json:"price2"`
	PriceFor   *float64   `json:"priceFor"`
	Direction  *Direction `json:"direction"`
	CEX        *CEXData   `json:"cex"`
	ObservedAt *time.Time `json:"observedAt"`
}

// SpreadPatch is the body of an update request. Absent fields are left
// unchanged. Optional fields may be sent as null to clear them; null on a
// required field is the same as leaving it out. Direction and CEX are
// replaced as a whole.
type SpreadPatch struct {
	Base      *string  `json:"base"`
	Quote     *string  `json:"quote"`
	Network   *string  `json:"network"`
	TopSpread *float64 `json:"topSpread"`
	Liquidity *float64 `json:"liquidity"`
	SortDays  *float64 `json:"sortDays"`
	Exchange  *string  `json:"exchange"`

	FDV        Nullable[float64]   `json:"fdv"`
	Contract   Nullable[string]    `json:"contract"`
	Dex        Nullable[string]    `json:"dex"`
	Price1     Nullable[float64]   `json:"price1"`
	Price2     Nullable[float64]   `json:"price2"`
	PriceFor   Nullable[float64]   `json:"priceFor"`
	Direction  Nullable[Direction] `json:"direction"`
	CEX        Nullable[CEXData]   `json:"cex"`
	ObservedAt Nullable[time.Time] `json:"observedAt"`
}

// Validate checks that every required field is present and well formed.
func (in SpreadInput) Validate() error {
	if err := requireText("base", in.Base); err != nil {
		return err
	}
	if err := requireText("quote", in.Quote); err != nil {
		return err
	}
	if err := requireText("network", in.Network); err != nil {
		return err
	}
	if err := requireText("exchange", in.Exchange); err != nil {
		return err
	}
	if in.TopSpread == nil {
		return Invalid("topSpread", "is required")
	}
	if in.Liquidity == nil {
		return Invalid("liquidity", "is required")
	}
	if in.SortDays == nil {
		return Invalid("sortDays", "is required")
	}
	return in.patch().Validate()
}

// Build converts a validated input into a Spread without server-assigned
// fields.
func (in SpreadInput) Build() Spread {
	var s Spread
	in.patch().ApplyTo(&s)
	return s
}

// patch lifts the input into a patch in which every optional field is set.
func (in SpreadInput) patch() SpreadPatch {
	return SpreadPatch{
		Base:       in.Base,
		Quote:      in.Quote,
		Network:    in.Network,
		TopSpread:  in.TopSpread,
		Liquidity:  in.Liquidity,
		SortDays:   in.SortDays,
		Exchange:   in.Exchange,
		FDV:        fromPtr(in.FDV),
		Contract:   fromPtr(in.Contract),
		Dex:        fromPtr(in.Dex),
		Price1:     fromPtr(in.Price1),
		Price2:     fromPtr(in.Price2),
		PriceFor:   fromPtr(in.PriceFor),
		Direction:  fromPtr(in.Direction),
		CEX:        fromPtr(in.CEX),
		ObservedAt: fromPtr(in.ObservedAt),
	}
}

func fromPtr[T any](v *T) Nullable[T] {
	if v == nil {
		return Null[T]()
	}
	return Some(*v)
}

// Validate checks the fields that are present. It does not require anything.
func (p SpreadPatch) Validate() error {
	for _, f := range []struct {
		name string
		v    *string
	}{{"base", p.Base}, {"quote", p.Quote}, {"network", p.Network}, {"exchange", p.Exchange}} {
		if f.v != nil && strings.TrimSpace(*f.v) == "" {
			return Invalid(f.name, "must not be empty")
		}
	}
	for _, f := range []struct {
		name string
		v    *float64
	}{
		{"topSpread", p.TopSpread}, {"sortDays", p.SortDays},
		{"price1", p.Price1.Ptr()}, {"price2", p.Price2.Ptr()}, {"priceFor", p.PriceFor.Ptr()},
	} {
		if f.v != nil && !finite(*f.v) {
			return Invalid(f.name, "must be a finite number")
		}
	}
	if p.Liquidity != nil && (!finite(*p.Liquidity) || *p.Liquidity < 0) {
		return Invalid("liquidity", "must be a finite number >= 0")
	}
	if p.FDV.Valid && (!finite(p.FDV.Value) || p.FDV.Value < 0) {
		return Invalid("fdv", "must be a finite number >= 0")
	}
	if p.CEX.Valid {
		if err := p.CEX.Value.validate(); err != nil {
			return err
		}
	}
	return nil
}

// Empty reports whether the patch changes nothing.
func (p SpreadPatch) Empty() bool {
	return p.Base == nil && p.Quote == nil && p.Network == nil &&
		p.TopSpread == nil && p.Liquidity == nil && p.SortDays == nil &&
		p.Exchange == nil && !p.FDV.Set && !p.Contract.Set && !p.Dex.Set &&
		!p.Price1.Set && !p.Price2.Set && !p.PriceFor.Set &&
		!p.Direction.Set && !p.CEX.Set && !p.ObservedAt.Set
}

// ApplyTo copies every present field onto s, normalising symbols. Optional
// fields sent as null are cleared.
func (p SpreadPatch) ApplyTo(s *Spread) {
	if p.Base != nil {
		s.Base = NormalizeSymbol(*p.Base)
	}
	if p.Quote != nil {
		s.Quote = NormalizeSymbol(*p.Quote)
	}
	if p.Network != nil {
		s.Network = NormalizeSymbol(*p.Network)
	}
	if p.Exchange != nil {
		s.Exchange = NormalizeExchangeID(*p.Exchange)
	}
	if p.TopSpread != nil {
		s.TopSpread = *p.TopSpread
	}
	if p.Liquidity != nil {
		s.Liquidity = *p.Liquidity
	}
	if p.SortDays != nil {
		s.SortDays = *p.SortDays
	}

	applyNullable(&s.FDV, p.FDV)
	applyNullable(&s.Contract, p.Contract)
	applyNullable(&s.Dex, p.Dex)
	applyNullable(&s.Price1, p.Price1)
	applyNullable(&s.Price2, p.Price2)
	applyNullable(&s.PriceFor, p.PriceFor)

	if p.Direction.Set {
		s.Direction = Direction{
			From: clonePtr(p.Direction.Value.From),
			To:   clonePtr(p.Direction.Value.To),
		}
	}
	if p.CEX.Set {
		s.CEX = nil
		if p.CEX.Valid {
			s.CEX = p.CEX.Value.normalized()
		}
	}
	if p.ObservedAt.Set {
		s.ObservedAt = nil
		if p.ObservedAt.Valid {
			v := p.ObservedAt.Value.UTC()
			s.ObservedAt = &v
		}
	}
}

func applyNullable[T any](dst **T, n Nullable[T]) {
	if n.Set {
		*dst = n.Ptr()
	}
}

// NormalizeSymbol trims and upper-cases a currency or network symbol.
func NormalizeSymbol(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

func requireText(field string, v *string) error {
	if v == nil {
		return Invalid(field, "is required")
	}
	if strings.TrimSpace(*v) == "" {
		return Invalid(field, "must not be empty")
	}
	return nil
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
