// Package ledger holds the in-memory record of open positions and realized
// profit, per instrument and in aggregate.
//
// A GlobalState has a single writer. It is created once at startup and passed
// by reference to the engine; it is never a package-level singleton.
package ledger

import (
	"errors"
	"fmt"
	"time"

	"github.com/rustyeddy/scalper/market"
)

var ErrPositionNotFound = errors.New("position not found")

// Origin distinguishes positions opened by the engine from positions adopted
// out of an untracked exchange balance.
type Origin string

const (
	OriginSignal     Origin = "SIGNAL"
	OriginReconciled Origin = "RECONCILED"
)

// Position is one open speculative entry. Closed positions are removed from
// their InstrumentState, never edited in place.
type Position struct {
	ID         string    `json:"id"`
	EntryPrice float64   `json:"entry_price"`
	Quantity   float64   `json:"quantity"`
	OpenedAt   time.Time `json:"opened_at"`
	Origin     Origin    `json:"origin"`
}

// UnrealizedProfit is the quote-currency profit if the position were sold at price.
func (p Position) UnrealizedProfit(price float64) float64 {
	return (price - p.EntryPrice) * p.Quantity
}

// InstrumentState is the per-instrument ledger. OpenPositions is kept in
// insertion order, which is also the close order when several exits fire.
type InstrumentState struct {
	Instrument     market.Symbol `json:"instrument"`
	OpenPositions  []Position    `json:"open_positions"`
	RealizedProfit float64       `json:"realized_profit"`
}

// HasOpen reports whether any position is open.
func (s *InstrumentState) HasOpen() bool { return len(s.OpenPositions) > 0 }

// Find returns the open position with the given id.
func (s *InstrumentState) Find(id string) (Position, bool) {
	for _, p := range s.OpenPositions {
		if p.ID == id {
			return p, true
		}
	}
	return Position{}, false
}

// OpenQuantity sums the quantity of every open position.
func (s *InstrumentState) OpenQuantity() float64 {
	var q float64
	for _, p := range s.OpenPositions {
		q += p.Quantity
	}
	return q
}

// GlobalState is the process-wide aggregate.
type GlobalState struct {
	GlobalRealizedProfit float64                            `json:"global_realized_profit"`
	Instruments          map[market.Symbol]*InstrumentState `json:"instruments"`
}

// New returns an empty ledger: zero profit and no instruments.
func New() *GlobalState {
	return &GlobalState{Instruments: make(map[market.Symbol]*InstrumentState)}
}

// Instrument returns the state for sym, creating it on first reference.
// Entries are never removed.
func (g *GlobalState) Instrument(sym market.Symbol) *InstrumentState {
	if g.Instruments == nil {
		g.Instruments = make(map[market.Symbol]*InstrumentState)
	}
	s, ok := g.Instruments[sym]
	if !ok {
		s = &InstrumentState{Instrument: sym, OpenPositions: []Position{}}
		g.Instruments[sym] = s
	}
	return s
}

// Open appends p to the instrument's open positions.
func (g *GlobalState) Open(sym market.Symbol, p Position) error {
	if p.Quantity <= 0 {
		return fmt.Errorf("open %s: quantity must be positive, got %v", sym, p.Quantity)
	}
	if p.ID == "" {
		return fmt.Errorf("open %s: position id is required", sym)
	}
	s := g.Instrument(sym)
	if _, dup := s.Find(p.ID); dup {
		return fmt.Errorf("open %s: duplicate position id %s", sym, p.ID)
	}
	s.OpenPositions = append(s.OpenPositions, p)
	return nil
}

// Close removes the position with the given id and books (exitPrice -
// entryPrice) * quantity into both the instrument's and the global realized
// profit. Both totals change together or not at all.
func (g *GlobalState) Close(sym market.Symbol, id string, exitPrice, quantity float64) (Position, float64, error) {
	s, ok := g.Instruments[sym]
	if !ok {
		return Position{}, 0, fmt.Errorf("close %s/%s: %w", sym, id, ErrPositionNotFound)
	}
	idx := -1
	for i, p := range s.OpenPositions {
		if p.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return Position{}, 0, fmt.Errorf("close %s/%s: %w", sym, id, ErrPositionNotFound)
	}

	pos := s.OpenPositions[idx]
	profit := (exitPrice - pos.EntryPrice) * quantity

	s.OpenPositions = append(s.OpenPositions[:idx:idx], s.OpenPositions[idx+1:]...)
	s.RealizedProfit += profit
	g.GlobalRealizedProfit += profit
	return pos, profit, nil
}

// Clear drops every open position of sym without booking any profit and
// returns what was removed.
func (g *GlobalState) Clear(sym market.Symbol) []Position {
	s, ok := g.Instruments[sym]
	if !ok {
		return nil
	}
	removed := s.OpenPositions
	s.OpenPositions = []Position{}
	return removed
}

// OpenCount is the number of open positions across all instruments.
func (g *GlobalState) OpenCount() int {
	n := 0
	for _, s := range g.Instruments {
		n += len(s.OpenPositions)
	}
	return n
}

// Clone returns a deep copy, safe to hand to read-only reporting code.
func (g *GlobalState) Clone() *GlobalState {
	out := &GlobalState{
		GlobalRealizedProfit: g.GlobalRealizedProfit,
		Instruments:          make(map[market.Symbol]*InstrumentState, len(g.Instruments)),
	}
	for sym, s := range g.Instruments {
		cp := *s
		cp.OpenPositions = append([]Position{}, s.OpenPositions...)
		out.Instruments[sym] = &cp
	}
	return out
}
