package kernel

// tpVerdict is the outcome of a basket take-profit check.
type tpVerdict int

const (
	tpInactive tpVerdict = iota - 1
	tpNotReached
	tpReached
)

// checkTakeProfit evaluates a side's basket profit against its configured
// target. A side with no active session or a non-positive target is
// inactive rather than simply "not reached", since it can never fire.
func checkTakeProfit(side Side, cfg TPConfig, sess *SessionState, equity, balance float64, positions []Position) tpVerdict {
	if sess.SessionID == "" || !sess.Enabled {
		return tpInactive
	}
	target, ok := tpTarget(cfg, equity, balance)
	if !ok {
		return tpInactive
	}
	profit := basketProfit(side, sess.SessionID, positions)
	if profit >= target {
		return tpReached
	}
	return tpNotReached
}

func tpTarget(cfg TPConfig, equity, balance float64) (float64, bool) {
	if cfg.Value <= 0 {
		return 0, false
	}
	switch cfg.Kind {
	case TPEquityPct:
		return equity * cfg.Value / 100, true
	case TPBalancePct:
		return balance * cfg.Value / 100, true
	case TPFixedMoney:
		return cfg.Value, true
	default:
		return 0, false
	}
}
