// Package journal records closed trades and quote balance snapshots so
// realized results can be reviewed after the fact.
package journal

import "time"

// TradeRecord is one closed position.
type TradeRecord struct {
	TradeID    string
	Instrument string
	Quantity   float64
	EntryPrice float64
	ExitPrice  float64
	OpenTime   time.Time
	CloseTime  time.Time
	RealizedPL float64
	Reason     string
	Origin     string
}

// BalanceSnapshot is the free quote balance observed after a cycle that
// transacted, alongside the running realized total.
type BalanceSnapshot struct {
	Time           time.Time
	Asset          string
	Free           float64
	GlobalRealized float64
}

type Journal interface {
	RecordTrade(TradeRecord) error
	RecordBalance(BalanceSnapshot) error
	Close() error
}

// Discard is a Journal that drops everything.
type Discard struct{}

func (Discard) RecordTrade(TradeRecord) error       { return nil }
func (Discard) RecordBalance(BalanceSnapshot) error { return nil }
func (Discard) Close() error                        { return nil }
