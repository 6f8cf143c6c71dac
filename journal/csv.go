package journal

import (
	"encoding/csv"
	"os"
	"strconv"
	"sync"
	"time"
)

var (
	tradesHeader  = []string{"trade_id", "instrument", "quantity", "entry_price", "exit_price", "open_time", "close_time", "realized_pl", "reason", "origin"}
	balanceHeader = []string{"time", "asset", "free", "global_realized"}
)

type CSVJournal struct {
	mu       sync.Mutex
	trades   *csv.Writer
	balances *csv.Writer
	tf, bf   *os.File
}

// NewCSV opens both files for appending. Headers are written only when a
// file is new, so restarts keep extending the same journal.
func NewCSV(tradesPath, balancePath string) (*CSVJournal, error) {
	tf, tw, err := openCSV(tradesPath, tradesHeader)
	if err != nil {
		return nil, err
	}
	bf, bw, err := openCSV(balancePath, balanceHeader)
	if err != nil {
		_ = tf.Close()
		return nil, err
	}

	return &CSVJournal{trades: tw, balances: bw, tf: tf, bf: bf}, nil
}

func openCSV(path string, header []string) (*os.File, *csv.Writer, error) {
	fh, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, nil, err
	}
	st, err := fh.Stat()
	if err != nil {
		_ = fh.Close()
		return nil, nil, err
	}

	w := csv.NewWriter(fh)
	if st.Size() == 0 {
		if err := w.Write(header); err != nil {
			_ = fh.Close()
			return nil, nil, err
		}
		w.Flush()
		if err := w.Error(); err != nil {
			_ = fh.Close()
			return nil, nil, err
		}
	}
	return fh, w, nil
}

func (j *CSVJournal) RecordTrade(t TradeRecord) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	err := j.trades.Write([]string{
		t.TradeID,
		t.Instrument,
		f(t.Quantity),
		f(t.EntryPrice),
		f(t.ExitPrice),
		t.OpenTime.Format(time.RFC3339),
		t.CloseTime.Format(time.RFC3339),
		f(t.RealizedPL),
		t.Reason,
		t.Origin,
	})
	if err != nil {
		return err
	}
	j.trades.Flush()
	return j.trades.Error()
}

func (j *CSVJournal) RecordBalance(b BalanceSnapshot) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	err := j.balances.Write([]string{
		b.Time.Format(time.RFC3339),
		b.Asset,
		f(b.Free),
		f(b.GlobalRealized),
	})
	if err != nil {
		return err
	}
	j.balances.Flush()
	return j.balances.Error()
}

func (j *CSVJournal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.trades.Flush()
	if err := j.trades.Error(); err != nil {
		return err
	}
	j.balances.Flush()
	if err := j.balances.Error(); err != nil {
		return err
	}

	if err := j.tf.Close(); err != nil {
		return err
	}
	return j.bf.Close()
}

// Eight decimals matches the precision crypto quantities are quoted in.
func f(x float64) string {
	return strconv.FormatFloat(x, 'f', 8, 64)
}
