package kernel

import "elasticgrid/logger"

// hedgeDeployment describes the synthetic layer the hedge evaluator wants
// to deploy on the opposite side, plus the action to take on it.
type hedgeDeployment struct {
	scenarioFresh bool // true = Scenario A (fresh session), false = Scenario B (append row)
	gap           float64
	volume        float64
}

// checkHedge evaluates whether a side's basket drawdown has crossed its
// configured hedge trigger. A drawdown is a negative basket profit whose
// magnitude meets or exceeds hedgeValue; a non-positive hedgeValue never
// triggers since the hedge is disabled by that convention.
func checkHedge(side Side, hedgeValue float64, sess *SessionState, positions []Position) bool {
	if sess.SessionID == "" || !sess.Enabled || sess.HedgeTriggered || sess.IsClosing {
		return false
	}
	if hedgeValue <= 0 {
		return false
	}
	profit := basketProfit(side, sess.SessionID, positions)
	return profit <= -hedgeValue
}

// deployHedge computes the counter-volume deployment on the side opposite
// triggeringSide. Scenario A fires when the opposite side holds no active
// session: a fresh session is minted and its layer table is replaced with
// a single synthetic row carrying hedgeLots, the losing side's total open
// volume. Scenario B fires when the opposite side already has an active
// session: a new row is appended to its layer table, with a gap dynamically computed
// from the distance between the current price and that side's
// last-executed layer price, since there is no static row left to define
// one.
func deployHedge(triggeringSide Side, hedgeLots, currentPrice float64, opp *SessionState) hedgeDeployment {
	if opp.SessionID == "" {
		logger.Infof("kernel: hedge scenario A on %s triggered by %s", opposite(triggeringSide), triggeringSide)
		return hedgeDeployment{scenarioFresh: true, gap: 0, volume: hedgeLots}
	}

	logger.Infof("kernel: hedge scenario B on %s triggered by %s", opposite(triggeringSide), triggeringSide)
	lastPrice, ok := lastExecutedPrice(opp)
	gap := 0.0
	if ok {
		gap = currentPrice - lastPrice
		if gap < 0 {
			gap = -gap
		}
	}
	return hedgeDeployment{scenarioFresh: false, gap: gap, volume: hedgeLots}
}
