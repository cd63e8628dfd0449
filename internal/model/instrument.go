package model

import (
	"fmt"
	"strings"
	"time"
)

// OptionType identifies the option side of a derivative contract.
type OptionType string

const (
	OptionCall OptionType = "CE"
	OptionPut  OptionType = "PE"
	// OptionNone marks a futures contract (no strike/option side).
	OptionNone OptionType = ""
)

// InstrumentSpec is the logical descriptor of a contract before broker
// resolution: what the caller wants to trade, in broker-agnostic terms.
type InstrumentSpec struct {
	Underlying string     `json:"underlying"` // e.g. "NIFTY"
	Expiry     time.Time  `json:"expiry"`
	Strike     float64    `json:"strike"` // rupees; 0 for futures
	OptionType OptionType `json:"option_type"`
	Exchange   string     `json:"exchange"` // e.g. "NFO"
}

// Symbol builds the canonical Angel One trading symbol,
// e.g. NIFTY28AUG2524000CE. Whole strikes print without decimals.
func (s InstrumentSpec) Symbol() string {
	expiry := strings.ToUpper(s.Expiry.Format("02Jan06"))
	if s.OptionType == OptionNone {
		return fmt.Sprintf("%s%sFUT", s.Underlying, expiry)
	}
	strike := fmt.Sprintf("%d", int64(s.Strike))
	if s.Strike != float64(int64(s.Strike)) {
		strike = fmt.Sprintf("%g", s.Strike)
	}
	return fmt.Sprintf("%s%s%s%s", s.Underlying, expiry, strike, s.OptionType)
}

// Instrument is a broker-resolved contract: the symbol and token the order
// API accepts, plus the exchange lot size. Fallback marks a resolution that
// failed and fell back to the configured default lot size; callers must
// surface it to the user.
type Instrument struct {
	Spec          InstrumentSpec `json:"spec"`
	TradingSymbol string         `json:"trading_symbol"`
	SymbolToken   string         `json:"symbol_token"`
	Exchange      string         `json:"exchange"`
	LotSize       int            `json:"lot_size"`
	Fallback      bool           `json:"fallback"`
}

// Key returns a unique key for this instrument: "exchange:token".
func (i *Instrument) Key() string {
	return i.Exchange + ":" + i.SymbolToken
}
