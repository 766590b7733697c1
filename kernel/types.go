// Package kernel is the decision core of the elastic counter-trend grid
// engine: a tick-serialized state machine that turns broker snapshots into
// a single imperative action per tick.
package kernel

import "time"

// Side identifies one of the two independent accumulation directions.
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// TPKind selects how a basket take-profit target is computed.
type TPKind string

const (
	TPEquityPct   TPKind = "equity_pct"
	TPBalancePct  TPKind = "balance_pct"
	TPFixedMoney  TPKind = "fixed_money"
)

// TPConfig is the basket take-profit target for one side.
type TPConfig struct {
	Kind  TPKind  `json:"kind"`
	Value float64 `json:"value"`
}

// GridRow is one layer of a side's grid: a cumulative price gap from the
// anchor and the volume to deploy when that layer's trigger is crossed.
type GridRow struct {
	Index  int     `json:"index"`
	Gap    float64 `json:"gap"`
	Volume float64 `json:"volume"`
	Alert  bool    `json:"alert"`
}

// SideSettings is the user-settable configuration for one side.
type SideSettings struct {
	LimitPrice float64   `json:"limit_price"`
	TP         TPConfig  `json:"tp"`
	HedgeValue float64   `json:"hedge_value"`
	Rows       []GridRow `json:"rows"`
}

// UserSettings is the full settings payload accepted by the settings endpoint.
type UserSettings struct {
	Buy  SideSettings `json:"buy"`
	Sell SideSettings `json:"sell"`
}

// ExecRecord is the engine's record of one executed layer, reconciled
// against the broker's authoritative position list.
type ExecRecord struct {
	Index            int       `json:"index"`
	EntryPrice       float64   `json:"entry_price"`
	Volume           float64   `json:"volume"`
	Profit           float64   `json:"profit"`
	Timestamp        time.Time `json:"timestamp"`
	CumulativeVolume float64   `json:"cumulative_volume"`
	CumulativeProfit float64   `json:"cumulative_profit"`
}

// SessionState is the per-side runtime state of one vector.
type SessionState struct {
	Enabled         bool               `json:"enabled"`
	SessionID       string             `json:"session_id"`
	AnchorPrice     float64            `json:"anchor_price"`
	WaitingForLimit bool               `json:"waiting_for_limit"`
	IsClosing       bool               `json:"is_closing"`
	HedgeTriggered  bool               `json:"hedge_triggered"`
	ExecMap         map[int]ExecRecord `json:"exec_map"`
	LastOrderSentTS time.Time          `json:"last_order_sent_ts"`
}

// PricePoint is one sample of the bounded mid-price history.
type PricePoint struct {
	Mid float64   `json:"mid"`
	TS  time.Time `json:"ts"`
}

// RuntimeState is the shared, cross-side runtime state.
type RuntimeState struct {
	Buy            SessionState `json:"buy"`
	Sell           SessionState `json:"sell"`
	CyclicMode     bool         `json:"cyclic_mode"`
	PendingActions []string     `json:"pending_actions"`
	ErrorStatus    string       `json:"error_status"`

	CurrentAsk      float64      `json:"current_ask"`
	CurrentBid      float64      `json:"current_bid"`
	CurrentMid      float64      `json:"current_mid"`
	PriceDirection  string       `json:"price_direction"`
	PriceHistory    []PricePoint `json:"price_history"`
	LastUpdateTS    time.Time    `json:"last_update_ts"`
}

// Position is one broker-reported open position attributed to this account.
type Position struct {
	Ticket  uint64  `json:"ticket"`
	Symbol  string  `json:"symbol"`
	Type    string  `json:"type"` // "BUY" or "SELL"
	Volume  float64 `json:"volume"`
	Price   float64 `json:"price"`
	Profit  float64 `json:"profit"`
	Comment string  `json:"comment"`
}

// Tick is one market snapshot pushed in by the broker adapter.
type Tick struct {
	AccountID string     `json:"account_id"`
	Equity    float64    `json:"equity"`
	Balance   float64    `json:"balance"`
	Symbol    string     `json:"symbol"`
	Ask       float64    `json:"ask"`
	Bid       float64    `json:"bid"`
	Positions []Position `json:"positions"`
}

// ActionKind is the tag of the action sum type the pipeline emits.
type ActionKind string

const (
	ActionWait     ActionKind = "WAIT"
	ActionBuy      ActionKind = "BUY"
	ActionSell     ActionKind = "SELL"
	ActionCloseAll ActionKind = "CLOSE_ALL"
)

// Action is the single imperative response emitted for a tick.
type Action struct {
	Kind    ActionKind `json:"action"`
	Volume  float64    `json:"volume,omitempty"`
	Comment string     `json:"comment,omitempty"`
	Alert   bool       `json:"alert,omitempty"`
	Error   string     `json:"error,omitempty"`
}

// emergencyTag is the recognizable pending-action tag for an emergency
// close, distinct from any session id (spec open question, §9).
const emergencyTag = "CLOSE_ALL_EMERGENCY"

const pendingCloseBuy = "CLOSE_ALL_BUY"
const pendingCloseSell = "CLOSE_ALL_SELL"

// externalCloseGrace is the window that tolerates broker fill latency
// before a zero-position report is treated as an operator-driven close.
const externalCloseGrace = 5 * time.Second

// priceHistoryDepth bounds the mid-price ring buffer.
const priceHistoryDepth = 100
