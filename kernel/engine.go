package kernel

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"elasticgrid/logger"
)

// PersistenceStore is the sole source of truth for state restore: Save
// then Load must be a fixed point on Snapshot.
type PersistenceStore interface {
	Load() (Snapshot, error)
	Save(Snapshot) error
}

// AlertEvent is emitted to the notifier whenever the pipeline fires an
// action whose triggering layer carries alert == true.
type AlertEvent struct {
	Side      Side
	SessionID string
	Index     int
	Price     float64
	Volume    float64
	Kind      ActionKind
}

// Notifier delivers an AlertEvent out of band. Implementations must never
// block tick processing; a slow or failing notifier degrades to a logged
// warning, never a stalled tick.
type Notifier interface {
	Notify(AlertEvent)
}

// Recorder appends an audit trail entry for one processed tick. Purely
// observational: never read back into runtime state.
type Recorder interface {
	RecordDecision(side Side, action Action, basketProfit float64, ts time.Time)
}

// Engine is the tick-serialized decision core. All state mutation happens
// under mu; exactly one action is emitted per call to ProcessTick.
type Engine struct {
	mu sync.Mutex

	settings UserSettings
	runtime  RuntimeState

	store    PersistenceStore
	notifier Notifier
	recorder Recorder
	clock    func() time.Time
}

// NewEngine constructs an Engine from a persisted snapshot (or a fresh
// default if store has none yet). notifier and recorder may be nil.
func NewEngine(store PersistenceStore, notifier Notifier, recorder Recorder) (*Engine, error) {
	snap, err := store.Load()
	if err != nil {
		return nil, err
	}
	if snap.Runtime.Buy.ExecMap == nil {
		snap = NewDefaultSnapshot()
	}
	return &Engine{
		settings: snap.Settings,
		runtime:  snap.Runtime,
		store:    store,
		notifier: notifier,
		recorder: recorder,
		clock:    time.Now,
	}, nil
}

// Snapshot returns a copy of the current persisted view, for the UI-data
// endpoint and manual inspection.
func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return Snapshot{Settings: e.settings, Runtime: e.runtime, LastUpdateTS: e.runtime.LastUpdateTS}
}

// Control applies an operator command.
func (e *Engine) Control(cmd ControlCommand) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	ApplyControl(&e.runtime, cmd)
	return e.persist()
}

// UpdateSettings validates and merges an incoming settings payload.
func (e *Engine) UpdateSettings(incoming UserSettings) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := ValidateSettings(incoming); err != nil {
		return err
	}
	e.settings = MergeSettings(e.settings, incoming, &e.runtime)
	return e.persist()
}

func (e *Engine) persist() error {
	return e.store.Save(Snapshot{Settings: e.settings, Runtime: e.runtime, LastUpdateTS: e.runtime.LastUpdateTS})
}

// ProcessTick runs the full strict-priority decision pipeline for one
// broker snapshot and returns the single action to take. The pipeline
// never returns a Go error: a malformed or inconsistent tick degrades to
// WAIT with error_status recorded in runtime state, per the external
// contract that a tick endpoint always answers 200.
func (e *Engine) ProcessTick(tick Tick) Action {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.clock()

	// 1. error gate: a session already in a fatal state stays parked until
	// an operator issues an emergency close.
	if e.runtime.ErrorStatus != "" {
		action := Action{Kind: ActionWait, Error: e.runtime.ErrorStatus}
		e.record(SideBuy, action, now, tick.Positions)
		return action
	}

	// 2. market update
	e.updateMarket(tick, now)

	// 3. position reconciliation
	buyConflict := reconcile(SideBuy, &e.runtime.Buy, tick.Positions)
	sellConflict := reconcile(SideSell, &e.runtime.Sell, tick.Positions)
	if buyConflict || sellConflict {
		e.runtime.ErrorStatus = "identity_conflict"
		logger.Errorf("kernel: session identity conflict detected, parking engine")
		e.persistQuiet()
		action := Action{Kind: ActionWait, Error: e.runtime.ErrorStatus}
		e.record(SideBuy, action, now, tick.Positions)
		return action
	}

	// 4. pending admin actions
	if action, ok := e.drainPendingActions(); ok {
		switch action.Comment {
		case string(SideSell):
			e.record(SideSell, action, now, tick.Positions)
		case emergencyTag:
			e.record(SideBuy, action, now, tick.Positions)
			e.record(SideSell, action, now, tick.Positions)
		default:
			e.record(SideBuy, action, now, tick.Positions)
		}
		e.persistQuiet()
		return action
	}

	// 5. closing-phase confirmation (buy then sell)
	if action, ok := e.confirmClosing(SideBuy, tick, now); ok {
		e.persistQuiet()
		return action
	}
	if action, ok := e.confirmClosing(SideSell, tick, now); ok {
		e.persistQuiet()
		return action
	}

	// 6. hedge check (buy then sell)
	if action, ok := e.checkHedgeSide(SideBuy, tick, now); ok {
		e.persistQuiet()
		return action
	}
	if action, ok := e.checkHedgeSide(SideSell, tick, now); ok {
		e.persistQuiet()
		return action
	}

	// 7. take-profit check (buy then sell)
	if action, ok := e.checkTakeProfitSide(SideBuy, tick, now); ok {
		e.persistQuiet()
		return action
	}
	if action, ok := e.checkTakeProfitSide(SideSell, tick, now); ok {
		e.persistQuiet()
		return action
	}

	// 8. external-close detection, with grace period
	if action, ok := e.checkExternalClose(SideBuy, tick, now); ok {
		e.persistQuiet()
		return action
	}
	if action, ok := e.checkExternalClose(SideSell, tick, now); ok {
		e.persistQuiet()
		return action
	}

	// 9. buy accumulation
	if action, ok := e.accumulate(SideBuy, tick, now); ok {
		e.persistQuiet()
		return action
	}

	// 10. sell accumulation
	if action, ok := e.accumulate(SideSell, tick, now); ok {
		e.persistQuiet()
		return action
	}

	// 11. default
	action := Action{Kind: ActionWait}
	e.record(SideBuy, action, now, tick.Positions)
	e.persistQuiet()
	return action
}

func (e *Engine) updateMarket(tick Tick, now time.Time) {
	mid := (tick.Ask + tick.Bid) / 2
	if e.runtime.CurrentMid != 0 {
		switch {
		case mid > e.runtime.CurrentMid:
			e.runtime.PriceDirection = "up"
		case mid < e.runtime.CurrentMid:
			e.runtime.PriceDirection = "down"
		default:
			e.runtime.PriceDirection = "flat"
		}
	}
	e.runtime.CurrentAsk = tick.Ask
	e.runtime.CurrentBid = tick.Bid
	e.runtime.CurrentMid = mid
	e.runtime.LastUpdateTS = now
	e.runtime.pushPriceHistory(mid, now)
}

func (e *Engine) drainPendingActions() (Action, bool) {
	if len(e.runtime.PendingActions) == 0 {
		return Action{}, false
	}
	tag := e.runtime.PendingActions[0]
	e.runtime.PendingActions = e.runtime.PendingActions[1:]

	switch tag {
	case pendingCloseBuy:
		e.runtime.Buy.IsClosing = true
		return Action{Kind: ActionCloseAll, Comment: string(SideBuy)}, true
	case pendingCloseSell:
		e.runtime.Sell.IsClosing = true
		return Action{Kind: ActionCloseAll, Comment: string(SideSell)}, true
	case emergencyTag:
		e.runtime.Buy.IsClosing = true
		e.runtime.Sell.IsClosing = true
		return Action{Kind: ActionCloseAll, Comment: emergencyTag}, true
	default:
		logger.Warnf("kernel: unrecognized pending action %q dropped", tag)
		return Action{}, false
	}
}

// confirmClosing re-emits CLOSE_ALL for a side still tearing down while the
// broker reports open positions against it, and finalizes the side (and, in
// cyclic mode, re-arms a fresh session at the current price) once the
// broker reports none.
func (e *Engine) confirmClosing(side Side, tick Tick, now time.Time) (Action, bool) {
	sess := e.runtime.session(side)
	if !sess.IsClosing {
		return Action{}, false
	}
	if countActive(side, sess.SessionID, tick.Positions) > 0 {
		action := Action{Kind: ActionCloseAll, Comment: string(side)}
		e.record(side, action, now, tick.Positions)
		return action, true
	}

	logger.Infof("kernel: %s session %s closing confirmed", side, sess.SessionID)
	wasEnabled := sess.Enabled
	*sess = newSessionState()
	if e.runtime.CyclicMode && wasEnabled {
		e.armSession(side, tick, now)
	}
	action := Action{Kind: ActionWait}
	e.record(side, action, now, tick.Positions)
	return action, true
}

// armSession re-arms a side at the current mid price: the cyclic rearm path
// taken after a closing or external-close reset, per the "re-anchor at mid"
// rule (spec closing-phase confirmation). It never waits on a limit price,
// since that configuration only gates the very first session of a side.
func (e *Engine) armSession(side Side, tick Tick, now time.Time) {
	sess := e.runtime.session(side)
	sess.Enabled = true
	sess.SessionID = newSessionID(uuid.New().String())
	sess.AnchorPrice = e.runtime.CurrentMid
	sess.ExecMap = make(map[int]ExecRecord)
	sess.WaitingForLimit = false
	logger.Infof("kernel: armed new %s session %s at anchor %.6f", side, sess.SessionID, sess.AnchorPrice)
}

// mintSession starts the very first session on an enabled side with no
// session id yet. A configured anchor-limit price takes priority over the
// market: the anchor is set to the limit and waiting_for_limit is raised
// until price actually crosses it; otherwise the side anchors at market
// (ask for buy, bid for sell) immediately.
func (e *Engine) mintSession(side Side, settings SideSettings, tick Tick) {
	sess := e.runtime.session(side)
	sess.SessionID = newSessionID(uuid.New().String())
	sess.ExecMap = make(map[int]ExecRecord)
	if settings.LimitPrice > 0 {
		sess.AnchorPrice = settings.LimitPrice
		sess.WaitingForLimit = true
		logger.Infof("kernel: armed new %s session %s waiting for limit %.6f", side, sess.SessionID, sess.AnchorPrice)
		return
	}
	price := tick.Ask
	if side == SideSell {
		price = tick.Bid
	}
	sess.AnchorPrice = price
	sess.WaitingForLimit = false
	logger.Infof("kernel: armed new %s session %s at anchor %.6f", side, sess.SessionID, sess.AnchorPrice)
}

func (e *Engine) checkHedgeSide(side Side, tick Tick, now time.Time) (Action, bool) {
	sess := e.runtime.session(side)
	settings := e.sideSettings(side)
	if !checkHedge(side, settings.HedgeValue, sess, tick.Positions) {
		return Action{}, false
	}
	sess.HedgeTriggered = true

	hedgeVolume := 0.0
	for _, pos := range tick.Positions {
		if parsed, ok := parseComment(pos.Comment); ok && parsed.side == side && parsed.sessionID == sess.SessionID {
			hedgeVolume += pos.Volume
		}
	}

	oppSide := opposite(side)
	opp := e.runtime.session(oppSide)
	deployment := deployHedge(side, hedgeVolume, e.runtime.CurrentMid, opp)

	hedgeIndex := 0
	if deployment.scenarioFresh {
		opp.Enabled = true
		opp.SessionID = newSessionID(uuid.New().String())
		opp.AnchorPrice = e.runtime.CurrentMid
		opp.ExecMap = make(map[int]ExecRecord)
		oppSettings := e.sideSettings(oppSide)
		oppSettings.Rows = []GridRow{{Index: 0, Gap: 0, Volume: deployment.volume, Alert: true}}
		e.setSideSettings(oppSide, oppSettings)
	} else {
		oppSettings := e.sideSettings(oppSide)
		nextIndex := 0
		for _, r := range oppSettings.Rows {
			if r.Index >= nextIndex {
				nextIndex = r.Index + 1
			}
		}
		oppSettings.Rows = append(oppSettings.Rows, GridRow{
			Index: nextIndex, Gap: deployment.gap, Volume: deployment.volume, Alert: true,
		})
		e.setSideSettings(oppSide, oppSettings)
		hedgeIndex = nextIndex
	}

	comment := buildComment(oppSide, opp.SessionID, hedgeIndex)
	action := Action{Kind: actionKindFor(oppSide), Volume: deployment.volume, Comment: comment, Alert: true}
	e.record(oppSide, action, now, tick.Positions)
	e.notify(AlertEvent{Side: oppSide, SessionID: opp.SessionID, Index: hedgeIndex, Price: e.runtime.CurrentMid, Volume: deployment.volume, Kind: action.Kind})
	return action, true
}

func (e *Engine) checkTakeProfitSide(side Side, tick Tick, now time.Time) (Action, bool) {
	sess := e.runtime.session(side)
	settings := e.sideSettings(side)
	verdict := checkTakeProfit(side, settings.TP, sess, tick.Equity, tick.Balance, tick.Positions)
	if verdict != tpReached {
		return Action{}, false
	}
	logger.Infof("kernel: %s basket take-profit reached for session %s", side, sess.SessionID)
	sess.IsClosing = true
	action := Action{Kind: ActionCloseAll, Comment: string(side)}
	e.record(side, action, now, tick.Positions)
	return action, true
}

// checkExternalClose detects a broker-reported zero-position state for an
// active, non-closing session that the engine itself did not initiate,
// tolerating externalCloseGrace to absorb report latency around a fill
// the engine just sent.
func (e *Engine) checkExternalClose(side Side, tick Tick, now time.Time) (Action, bool) {
	sess := e.runtime.session(side)
	if sess.SessionID == "" || !sess.Enabled || sess.IsClosing {
		return Action{}, false
	}
	if len(sess.ExecMap) == 0 {
		return Action{}, false
	}
	if countActive(side, sess.SessionID, tick.Positions) > 0 {
		return Action{}, false
	}
	if now.Sub(sess.LastOrderSentTS) < externalCloseGrace {
		return Action{}, false
	}
	logger.Infof("kernel: external close detected on %s session %s", side, sess.SessionID)
	wasEnabled := sess.Enabled
	*sess = newSessionState()
	if e.runtime.CyclicMode && wasEnabled {
		e.armSession(side, tick, now)
	}
	return Action{}, false
}

func (e *Engine) accumulate(side Side, tick Tick, now time.Time) (Action, bool) {
	sess := e.runtime.session(side)
	if !sess.Enabled || sess.IsClosing || sess.HedgeTriggered {
		return Action{}, false
	}
	settings := e.sideSettings(side)

	if sess.SessionID == "" {
		e.mintSession(side, settings, tick)
		e.persistQuiet()
		return Action{}, false
	}

	price := tick.Ask
	if side == SideSell {
		price = tick.Bid
	}

	if sess.WaitingForLimit {
		if !crossed(side, price, sess.AnchorPrice) {
			return Action{}, false
		}
		sess.WaitingForLimit = false
		sess.AnchorPrice = price
		e.persistQuiet()
	}

	row, ok := nextUnexecutedRow(settings.Rows, sess.ExecMap)
	if !ok {
		return Action{}, false
	}
	trigger, err := triggerPrice(side, sess.AnchorPrice, settings.Rows, row.Index)
	if err != nil {
		logger.Warnf("kernel: %v", err)
		return Action{}, false
	}
	if !crossed(side, price, trigger) {
		return Action{}, false
	}

	sess.ExecMap[row.Index] = ExecRecord{Index: row.Index, EntryPrice: price, Volume: row.Volume, Timestamp: now}
	recomputeCumulative(sess)
	sess.LastOrderSentTS = now
	comment := buildComment(side, sess.SessionID, row.Index)
	action := Action{Kind: actionKindFor(side), Volume: row.Volume, Comment: comment, Alert: row.Alert}
	e.record(side, action, now, tick.Positions)
	if row.Alert {
		e.notify(AlertEvent{Side: side, SessionID: sess.SessionID, Index: row.Index, Price: price, Volume: row.Volume, Kind: action.Kind})
	}
	return action, true
}

func actionKindFor(side Side) ActionKind {
	if side == SideBuy {
		return ActionBuy
	}
	return ActionSell
}

func (e *Engine) sideSettings(side Side) SideSettings {
	if side == SideBuy {
		return e.settings.Buy
	}
	return e.settings.Sell
}

func (e *Engine) setSideSettings(side Side, s SideSettings) {
	if side == SideBuy {
		e.settings.Buy = s
	} else {
		e.settings.Sell = s
	}
}

func (e *Engine) record(side Side, action Action, now time.Time, positions []Position) {
	if e.recorder == nil {
		return
	}
	sess := e.runtime.session(side)
	profit := basketProfit(side, sess.SessionID, positions)
	e.recorder.RecordDecision(side, action, profit, now)
}

func (e *Engine) notify(ev AlertEvent) {
	if e.notifier == nil {
		return
	}
	e.notifier.Notify(ev)
}

func (e *Engine) persistQuiet() {
	if err := e.persist(); err != nil {
		logger.Errorf("kernel: failed to persist state: %v", err)
	}
}
