package store

import (
	"encoding/json"
	"fmt"

	"github.com/rustyeddy/scalper/ledger"
	"github.com/rustyeddy/scalper/market"
)

// Encode renders g as indented JSON.
func Encode(g *ledger.GlobalState) ([]byte, error) {
	if g == nil {
		g = ledger.New()
	}
	return json.MarshalIndent(g, "", "  ")
}

// Decode parses a snapshot and checks the ledger invariants a hand edit or
// partial write could break. Any failure wraps ErrCorrupt.
func Decode(data []byte) (*ledger.GlobalState, error) {
	var g ledger.GlobalState
	if err := json.Unmarshal(data, &g); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if g.Instruments == nil {
		g.Instruments = make(map[market.Symbol]*ledger.InstrumentState)
	}

	for sym, s := range g.Instruments {
		if s == nil {
			return nil, fmt.Errorf("%w: instrument %s has no state", ErrCorrupt, sym)
		}
		if s.Instrument == "" {
			s.Instrument = sym
		}
		if s.Instrument != sym {
			return nil, fmt.Errorf("%w: instrument key %s holds state for %s", ErrCorrupt, sym, s.Instrument)
		}
		if s.OpenPositions == nil {
			s.OpenPositions = []ledger.Position{}
		}

		seen := make(map[string]struct{}, len(s.OpenPositions))
		for _, p := range s.OpenPositions {
			if p.ID == "" {
				return nil, fmt.Errorf("%w: %s has a position without id", ErrCorrupt, sym)
			}
			if p.Quantity <= 0 {
				return nil, fmt.Errorf("%w: %s position %s has quantity %v", ErrCorrupt, sym, p.ID, p.Quantity)
			}
			if _, dup := seen[p.ID]; dup {
				return nil, fmt.Errorf("%w: %s has duplicate position %s", ErrCorrupt, sym, p.ID)
			}
			seen[p.ID] = struct{}{}
		}
	}
	return &g, nil
}
