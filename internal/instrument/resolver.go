// Package instrument resolves logical contract descriptors (underlying,
// expiry, strike, option type) to broker trading symbols and lot sizes via
// the scrip search endpoint.
package instrument

import (
	"context"
	"log/slog"

	"execution-systemv1/internal/model"
)

// Resolver turns an InstrumentSpec into a tradeable Instrument. Resolution
// failure is non-fatal: the result falls back to the configured lot size
// with Fallback set, and the caller must surface that to the user. One
// search round trip per call, no retries.
type Resolver struct {
	search          model.InstrumentSearcher
	fallbackLotSize int
	log             *slog.Logger
}

// NewResolver creates a resolver with the given fallback lot size.
func NewResolver(search model.InstrumentSearcher, fallbackLotSize int, log *slog.Logger) *Resolver {
	return &Resolver{search: search, fallbackLotSize: fallbackLotSize, log: log}
}

// Resolve builds the canonical symbol for spec and looks it up with the
// broker. Idempotent against unchanged broker state.
func (r *Resolver) Resolve(ctx context.Context, spec model.InstrumentSpec, s *model.Session) model.Instrument {
	symbol := spec.Symbol()

	rows, err := r.search.SearchScrip(ctx, spec.Exchange, symbol, s)
	if err != nil {
		r.log.Warn("instrument search failed, using fallback lot size",
			slog.String("symbol", symbol),
			slog.Int("fallback_lot_size", r.fallbackLotSize),
			slog.String("error", err.Error()))
		return r.fallback(spec, symbol)
	}

	// First matching record wins; prefer an exact symbol match when the
	// search returns related contracts too.
	match, ok := pick(rows, symbol)
	if !ok || match.LotSize <= 0 {
		r.log.Warn("instrument not found or lot size missing, using fallback",
			slog.String("symbol", symbol),
			slog.Int("matches", len(rows)),
			slog.Int("fallback_lot_size", r.fallbackLotSize))
		return r.fallback(spec, symbol)
	}

	return model.Instrument{
		Spec:          spec,
		TradingSymbol: match.TradingSymbol,
		SymbolToken:   match.SymbolToken,
		Exchange:      spec.Exchange,
		LotSize:       match.LotSize,
	}
}

func pick(rows []model.ScripMatch, symbol string) (model.ScripMatch, bool) {
	for _, row := range rows {
		if row.TradingSymbol == symbol {
			return row, true
		}
	}
	if len(rows) > 0 {
		return rows[0], true
	}
	return model.ScripMatch{}, false
}

func (r *Resolver) fallback(spec model.InstrumentSpec, symbol string) model.Instrument {
	return model.Instrument{
		Spec:          spec,
		TradingSymbol: symbol,
		Exchange:      spec.Exchange,
		LotSize:       r.fallbackLotSize,
		Fallback:      true,
	}
}
