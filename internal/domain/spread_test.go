package domain

import (
	"encoding/json"
	"testing"
)

func str(v string) *string { return &v }

func validInput() SpreadInput {
	return SpreadInput{
		Base:      str("btc"),
		Quote:     str("usdt"),
		Network:   str("solana"),
		TopSpread: f64(1.2),
		Liquidity: f64(5000),
		SortDays:  f64(3),
		Exchange:  str("Binance"),
	}
}

func TestSpreadInput_ValidateRequired(t *testing.T) {
	if err := validInput().Validate(); err != nil {
		t.Fatalf("valid input rejected: %v", err)
	}

	cases := map[string]func(*SpreadInput){
		"base":      func(in *SpreadInput) { in.Base = nil },
		"quote":     func(in *SpreadInput) { in.Quote = str("  ") },
		"network":   func(in *SpreadInput) { in.Network = nil },
		"exchange":  func(in *SpreadInput) { in.Exchange = nil },
		"topSpread": func(in *SpreadInput) { in.TopSpread = nil },
		"liquidity": func(in *SpreadInput) { in.Liquidity = f64(-1) },
		"sortDays":  func(in *SpreadInput) { in.SortDays = nil },
		"fdv":       func(in *SpreadInput) { in.FDV = f64(-5) },
	}
	for field, mut := range cases {
		in := validInput()
		mut(&in)
		ve, ok := AsValidation(in.Validate())
		if !ok || ve.Field != field {
			t.Errorf("%s: want validation error on %s, got %v", field, field, ve)
		}
	}
}

func TestSpreadInput_BuildNormalizes(t *testing.T) {
	s := validInput().Build()
	if s.Base != "BTC" || s.Quote != "USDT" || s.Network != "SOLANA" || s.Exchange != "binance" {
		t.Fatalf("not normalized: %+v", s)
	}
	if s.FDV != nil {
		t.Fatalf("fdv should stay null")
	}
}

func TestSpreadPatch_ApplyLeavesOtherFields(t *testing.T) {
	s := validInput().Build()
	s.ID = "x"
	before := s

	SpreadPatch{Liquidity: f64(42)}.ApplyTo(&s)

	if s.Liquidity != 42 {
		t.Fatalf("liquidity not applied")
	}
	s.Liquidity = before.Liquidity
	if s.Base != before.Base || s.Quote != before.Quote || s.Network != before.Network ||
		s.TopSpread != before.TopSpread || s.SortDays != before.SortDays || s.Exchange != before.Exchange {
		t.Fatalf("patch touched other fields: %+v vs %+v", s, before)
	}
	if !(SpreadPatch{}).Empty() {
		t.Fatalf("zero patch should be empty")
	}
}

func TestSpreadPatch_ExplicitNullClears(t *testing.T) {
	in := validInput()
	in.FDV = f64(1e6)
	in.Dex = str("raydium")
	s := in.Build()

	var patch SpreadPatch
	if err := json.Unmarshal([]byte(`{"fdv": null, "topSpread": 2}`), &patch); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !patch.FDV.Set || patch.FDV.Valid {
		t.Fatalf("fdv should be set to null: %+v", patch.FDV)
	}
	if patch.Dex.Set {
		t.Fatalf("absent dex should not be set")
	}
	patch.ApplyTo(&s)

	if s.FDV != nil {
		t.Fatalf("fdv not cleared: %v", *s.FDV)
	}
	if s.Dex == nil || *s.Dex != "raydium" {
		t.Fatalf("dex should be untouched, got %v", s.Dex)
	}
	if s.TopSpread != 2 {
		t.Fatalf("topSpread = %v, want 2", s.TopSpread)
	}
}

func TestSpreadPatch_NullOnRequiredFieldIsIgnored(t *testing.T) {
	s := validInput().Build()
	var patch SpreadPatch
	if err := json.Unmarshal([]byte(`{"base": null}`), &patch); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !patch.Empty() {
		t.Fatalf("null base should leave the patch empty")
	}
	patch.ApplyTo(&s)
	if s.Base != "BTC" {
		t.Fatalf("base changed to %q", s.Base)
	}
}

func TestSpreadInput_CEXNormalizedAndCloned(t *testing.T) {
	in := validInput()
	in.CEX = &CEXData{
		Spot:    []ExchangeQuote{{Exchange: " MEXC ", Volume: f64(10), DifferencePercent: str("1.5%")}},
		Futures: []ExchangeQuote{{Exchange: "Bybit", Profit: f64(3)}},
	}
	if err := in.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
	s := in.Build()
	if s.CEX == nil || len(s.CEX.Spot) != 1 || len(s.CEX.Futures) != 1 {
		t.Fatalf("cex not carried: %+v", s.CEX)
	}
	if s.CEX.Spot[0].Exchange != "mexc" || s.CEX.Futures[0].Exchange != "bybit" {
		t.Fatalf("exchange names not normalized: %+v", s.CEX)
	}

	*in.CEX.Spot[0].Volume = 99
	if *s.CEX.Spot[0].Volume != 10 {
		t.Fatalf("built spread shares memory with input")
	}
	c := s.CEX.Clone()
	c.Futures[0].Exchange = "okx"
	if s.CEX.Futures[0].Exchange != "bybit" {
		t.Fatalf("clone shares memory")
	}
}

func TestSpreadInput_CEXValidation(t *testing.T) {
	cases := map[string]CEXData{
		"cex.spot":    {Spot: []ExchangeQuote{{Exchange: " "}}},
		"cex.futures": {Futures: []ExchangeQuote{{Exchange: "okx", Volume: f64(-1)}}},
	}
	for field, cex := range cases {
		in := validInput()
		in.CEX = &cex
		ve, ok := AsValidation(in.Validate())
		if !ok || ve.Field != field {
			t.Errorf("want validation error on %s, got %v", field, ve)
		}
	}
}

func TestSpreadPatch_CEXReplacedWholesale(t *testing.T) {
	in := validInput()
	in.CEX = &CEXData{Spot: []ExchangeQuote{{Exchange: "mexc"}, {Exchange: "gate"}}}
	s := in.Build()

	var patch SpreadPatch
	if err := json.Unmarshal([]byte(`{"cex": {"spot": [{"exchange": "OKX"}], "futures": []}}`), &patch); err != nil {
		t.Fatalf("decode: %v", err)
	}
	patch.ApplyTo(&s)
	if len(s.CEX.Spot) != 1 || s.CEX.Spot[0].Exchange != "okx" {
		t.Fatalf("spot list not replaced: %+v", s.CEX.Spot)
	}

	SpreadPatch{CEX: Null[CEXData]()}.ApplyTo(&s)
	if s.CEX != nil {
		t.Fatalf("cex not cleared")
	}
}
