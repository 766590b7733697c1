package kernel

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type memStore struct {
	snap Snapshot
}

func (m *memStore) Load() (Snapshot, error) { return m.snap, nil }
func (m *memStore) Save(s Snapshot) error   { m.snap = s; return nil }

func newTestEngine(t *testing.T) (*Engine, *memStore) {
	t.Helper()
	store := &memStore{snap: NewDefaultSnapshot()}
	e, err := NewEngine(store, nil, nil)
	require.NoError(t, err)
	return e, store
}

func TestAccumulationFiresOnCrossedTrigger(t *testing.T) {
	e, _ := newTestEngine(t)
	require.NoError(t, e.UpdateSettings(UserSettings{
		Buy: SideSettings{
			TP:   TPConfig{Kind: TPEquityPct, Value: 10},
			Rows: []GridRow{{Index: 0, Gap: 1, Volume: 0.1}, {Index: 1, Gap: 1, Volume: 0.1}},
		},
		Sell: SideSettings{TP: TPConfig{Kind: TPEquityPct, Value: 10}},
	}))
	require.NoError(t, e.Control(ControlCommand{BuySwitch: boolPtr(true)}))

	action := e.ProcessTick(Tick{Equity: 1000, Balance: 1000, Ask: 100, Bid: 99.9})
	require.Equal(t, ActionWait, action.Kind, "first tick only arms the session at anchor price")

	action = e.ProcessTick(Tick{Equity: 1000, Balance: 1000, Ask: 99, Bid: 98.9})
	require.Equal(t, ActionBuy, action.Kind)
	require.InDelta(t, 0.1, action.Volume, 1e-9)
}

func TestTakeProfitFiresWhenBasketProfitReachesTarget(t *testing.T) {
	e, _ := newTestEngine(t)
	require.NoError(t, e.UpdateSettings(UserSettings{
		Buy: SideSettings{
			TP:   TPConfig{Kind: TPFixedMoney, Value: 50},
			Rows: []GridRow{{Index: 0, Gap: 1, Volume: 1}},
		},
		Sell: SideSettings{TP: TPConfig{Kind: TPEquityPct, Value: 10}},
	}))
	require.NoError(t, e.Control(ControlCommand{BuySwitch: boolPtr(true)}))
	e.ProcessTick(Tick{Equity: 1000, Balance: 1000, Ask: 100, Bid: 99.9})
	e.ProcessTick(Tick{Equity: 1000, Balance: 1000, Ask: 98, Bid: 97.9})

	sessionID := e.Snapshot().Runtime.Buy.SessionID
	positions := []Position{{
		Type: "BUY", Volume: 1, Price: 98, Profit: 60,
		Comment: buildComment(SideBuy, sessionID, 0),
	}}
	action := e.ProcessTick(Tick{Equity: 1000, Balance: 1000, Ask: 99, Bid: 98.9, Positions: positions})
	require.Equal(t, ActionCloseAll, action.Kind)
}

func TestExternalCloseRespectsGracePeriod(t *testing.T) {
	e, _ := newTestEngine(t)
	fixedNow := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	e.clock = func() time.Time { return fixedNow }

	require.NoError(t, e.UpdateSettings(UserSettings{
		Buy:  SideSettings{TP: TPConfig{Kind: TPEquityPct, Value: 10}, Rows: []GridRow{{Index: 0, Gap: 1, Volume: 1}}},
		Sell: SideSettings{TP: TPConfig{Kind: TPEquityPct, Value: 10}},
	}))
	require.NoError(t, e.Control(ControlCommand{BuySwitch: boolPtr(true)}))
	e.ProcessTick(Tick{Equity: 1000, Balance: 1000, Ask: 100, Bid: 99.9})
	e.ProcessTick(Tick{Equity: 1000, Balance: 1000, Ask: 98, Bid: 97.9})

	// Still within grace period: no external close triggered yet.
	action := e.ProcessTick(Tick{Equity: 1000, Balance: 1000, Ask: 99, Bid: 98.9})
	require.NotEqual(t, "identity_conflict", action.Error)

	e.clock = func() time.Time { return fixedNow.Add(6 * time.Second) }
	e.ProcessTick(Tick{Equity: 1000, Balance: 1000, Ask: 99, Bid: 98.9})
	require.Equal(t, "", e.Snapshot().Runtime.Buy.SessionID, "session resets once grace period elapses with no reported positions")
}

func TestIdentityConflictParksEngine(t *testing.T) {
	e, _ := newTestEngine(t)
	require.NoError(t, e.UpdateSettings(UserSettings{
		Buy:  SideSettings{TP: TPConfig{Kind: TPEquityPct, Value: 10}, Rows: []GridRow{{Index: 0, Gap: 1, Volume: 1}}},
		Sell: SideSettings{TP: TPConfig{Kind: TPEquityPct, Value: 10}},
	}))
	require.NoError(t, e.Control(ControlCommand{BuySwitch: boolPtr(true)}))
	e.ProcessTick(Tick{Equity: 1000, Balance: 1000, Ask: 100, Bid: 99.9})

	foreign := []Position{{Type: "BUY", Volume: 1, Price: 100, Comment: "buy_deadbeef_idx0"}}
	action := e.ProcessTick(Tick{Equity: 1000, Balance: 1000, Ask: 100, Bid: 99.9, Positions: foreign})
	require.Equal(t, ActionWait, action.Kind)
	require.Equal(t, "identity_conflict", action.Error)

	action = e.ProcessTick(Tick{Equity: 1000, Balance: 1000, Ask: 100, Bid: 99.9})
	require.Equal(t, "identity_conflict", action.Error, "engine stays parked until an operator intervenes")
}

func TestHedgeScenarioAFiresFreshOppositeSession(t *testing.T) {
	e, _ := newTestEngine(t)
	require.NoError(t, e.UpdateSettings(UserSettings{
		Buy: SideSettings{
			TP: TPConfig{Kind: TPEquityPct, Value: 10}, HedgeValue: 20,
			Rows: []GridRow{{Index: 0, Gap: 1, Volume: 1}},
		},
		Sell: SideSettings{TP: TPConfig{Kind: TPEquityPct, Value: 10}},
	}))
	require.NoError(t, e.Control(ControlCommand{BuySwitch: boolPtr(true)}))
	e.ProcessTick(Tick{Equity: 1000, Balance: 1000, Ask: 100, Bid: 99.9})
	e.ProcessTick(Tick{Equity: 1000, Balance: 1000, Ask: 98, Bid: 97.9})

	sessionID := e.Snapshot().Runtime.Buy.SessionID
	positions := []Position{{
		Type: "BUY", Volume: 1, Price: 98, Profit: -25,
		Comment: buildComment(SideBuy, sessionID, 0),
	}}
	action := e.ProcessTick(Tick{Equity: 1000, Balance: 1000, Ask: 99, Bid: 98.9, Positions: positions})
	require.Equal(t, ActionSell, action.Kind)
	require.True(t, action.Alert)

	snap := e.Snapshot()
	require.NotEmpty(t, snap.Runtime.Sell.SessionID)
	require.Len(t, snap.Settings.Sell.Rows, 1)
}

func TestAccumulationWaitsForConfiguredLimitPrice(t *testing.T) {
	e, _ := newTestEngine(t)
	require.NoError(t, e.UpdateSettings(UserSettings{
		Buy: SideSettings{
			LimitPrice: 95,
			TP:         TPConfig{Kind: TPEquityPct, Value: 10},
			Rows:       []GridRow{{Index: 0, Gap: 1, Volume: 0.1}},
		},
		Sell: SideSettings{TP: TPConfig{Kind: TPEquityPct, Value: 10}},
	}))
	require.NoError(t, e.Control(ControlCommand{BuySwitch: boolPtr(true)}))

	// First tick mints the session anchored at the limit and waits for it.
	action := e.ProcessTick(Tick{Equity: 1000, Balance: 1000, Ask: 100, Bid: 99.9})
	require.Equal(t, ActionWait, action.Kind)
	snap := e.Snapshot()
	require.True(t, snap.Runtime.Buy.WaitingForLimit)
	require.Equal(t, 95.0, snap.Runtime.Buy.AnchorPrice)

	// Price above the limit: still waiting, no accumulation.
	action = e.ProcessTick(Tick{Equity: 1000, Balance: 1000, Ask: 98, Bid: 97.9})
	require.Equal(t, ActionWait, action.Kind)
	require.True(t, e.Snapshot().Runtime.Buy.WaitingForLimit)

	// Price crosses the limit: the flag clears and the side re-anchors at ask.
	action = e.ProcessTick(Tick{Equity: 1000, Balance: 1000, Ask: 95, Bid: 94.9})
	require.Equal(t, ActionWait, action.Kind, "crossing the limit re-anchors but does not itself fire a layer")
	snap = e.Snapshot()
	require.False(t, snap.Runtime.Buy.WaitingForLimit)
	require.Equal(t, 95.0, snap.Runtime.Buy.AnchorPrice)

	// Next tick's drop through the first layer's gap fires the buy.
	action = e.ProcessTick(Tick{Equity: 1000, Balance: 1000, Ask: 94, Bid: 93.9})
	require.Equal(t, ActionBuy, action.Kind)
}

func TestConfirmClosingReemitsCloseAllUntilPositionsClear(t *testing.T) {
	e, _ := newTestEngine(t)
	require.NoError(t, e.UpdateSettings(UserSettings{
		Buy:  SideSettings{TP: TPConfig{Kind: TPEquityPct, Value: 10}, Rows: []GridRow{{Index: 0, Gap: 1, Volume: 1}}},
		Sell: SideSettings{TP: TPConfig{Kind: TPEquityPct, Value: 10}},
	}))
	require.NoError(t, e.Control(ControlCommand{BuySwitch: boolPtr(true)}))
	e.ProcessTick(Tick{Equity: 1000, Balance: 1000, Ask: 100, Bid: 99.9})
	e.ProcessTick(Tick{Equity: 1000, Balance: 1000, Ask: 98, Bid: 97.9})

	sessionID := e.Snapshot().Runtime.Buy.SessionID
	require.NoError(t, e.Control(ControlCommand{BuySwitch: boolPtr(false)}))

	positions := []Position{{Type: "BUY", Volume: 1, Price: 98, Comment: buildComment(SideBuy, sessionID, 0)}}
	action := e.ProcessTick(Tick{Equity: 1000, Balance: 1000, Ask: 99, Bid: 98.9, Positions: positions})
	require.Equal(t, ActionCloseAll, action.Kind, "the toggle-off tick drains the pending admin close")

	action = e.ProcessTick(Tick{Equity: 1000, Balance: 1000, Ask: 99, Bid: 98.9, Positions: positions})
	require.Equal(t, ActionCloseAll, action.Kind, "closing must keep re-firing while the broker still reports the position")

	action = e.ProcessTick(Tick{Equity: 1000, Balance: 1000, Ask: 99, Bid: 98.9})
	require.Equal(t, ActionWait, action.Kind)
	require.Equal(t, "", e.Snapshot().Runtime.Buy.SessionID, "session finalizes once the broker reports no positions")
}

func boolPtr(b bool) *bool { return &b }
