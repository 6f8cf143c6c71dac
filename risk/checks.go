package risk

import "fmt"

type Violation struct {
	Code string
	Msg  string
}

type Decision struct {
	Allowed    bool
	Violations []Violation
}

func (d *Decision) add(code, msg string) {
	d.Violations = append(d.Violations, Violation{Code: code, Msg: msg})
	d.Allowed = false
}

// Reason joins the violation messages, or returns "" when allowed.
func (d Decision) Reason() string {
	if d.Allowed || len(d.Violations) == 0 {
		return ""
	}
	msg := d.Violations[0].Msg
	for _, v := range d.Violations[1:] {
		msg += "; " + v.Msg
	}
	return msg
}

// CheckEntry is the capital allocation gate: a new entry is allowed only when
// the free quote balance covers one full TradeCapital. There is no partial
// sizing.
func CheckEntry(p Policy, freeQuote float64) Decision {
	d := Decision{Allowed: true}
	if freeQuote < p.TradeCapital {
		d.add("INSUFFICIENT_CAPITAL",
			fmt.Sprintf("free balance %.2f below trade capital %.2f", freeQuote, p.TradeCapital))
	}
	return d
}

// ShouldSkip reports whether an instrument can be skipped for the cycle
// without computing any indicator: it has nothing open to manage and no
// entry could pass the gate.
func ShouldSkip(p Policy, openPositions int, freeQuote float64) bool {
	return openPositions == 0 && !CheckEntry(p, freeQuote).Allowed
}
