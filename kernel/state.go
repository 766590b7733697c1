package kernel

import "time"

// Snapshot is the entire persisted document: the sole source of truth for
// state restore. Saving then loading a Snapshot must be a fixed point.
type Snapshot struct {
	Settings     UserSettings `json:"settings"`
	Runtime      RuntimeState `json:"runtime"`
	LastUpdateTS time.Time    `json:"last_update_ts"`
}

// NewDefaultSnapshot returns the zero-value starting state: both sides
// disabled, no exec history, no pending actions.
func NewDefaultSnapshot() Snapshot {
	return Snapshot{
		Settings: UserSettings{
			Buy:  SideSettings{TP: TPConfig{Kind: TPEquityPct}},
			Sell: SideSettings{TP: TPConfig{Kind: TPEquityPct}},
		},
		Runtime: RuntimeState{
			Buy:  newSessionState(),
			Sell: newSessionState(),
		},
	}
}

func newSessionState() SessionState {
	return SessionState{ExecMap: make(map[int]ExecRecord)}
}

func (s *RuntimeState) session(side Side) *SessionState {
	if side == SideBuy {
		return &s.Buy
	}
	return &s.Sell
}

func opposite(side Side) Side {
	if side == SideBuy {
		return SideSell
	}
	return SideBuy
}

// pushPriceHistory appends a mid-price sample, bounding the ring buffer to
// priceHistoryDepth entries.
func (s *RuntimeState) pushPriceHistory(mid float64, ts time.Time) {
	s.PriceHistory = append(s.PriceHistory, PricePoint{Mid: mid, TS: ts})
	if len(s.PriceHistory) > priceHistoryDepth {
		s.PriceHistory = s.PriceHistory[len(s.PriceHistory)-priceHistoryDepth:]
	}
}
