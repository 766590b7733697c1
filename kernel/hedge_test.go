package kernel

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCheckHedgeTriggersOnDrawdown(t *testing.T) {
	sess := &SessionState{SessionID: "aaaaaaaa", Enabled: true, ExecMap: make(map[int]ExecRecord)}
	positions := []Position{{Type: "BUY", Profit: -60, Comment: "buy_aaaaaaaa_idx0"}}
	require.True(t, checkHedge(SideBuy, 50, sess, positions))
}

func TestCheckHedgeDisabledByZeroValue(t *testing.T) {
	sess := &SessionState{SessionID: "aaaaaaaa", Enabled: true, ExecMap: make(map[int]ExecRecord)}
	positions := []Position{{Type: "BUY", Profit: -1000, Comment: "buy_aaaaaaaa_idx0"}}
	require.False(t, checkHedge(SideBuy, 0, sess, positions))
}

func TestCheckHedgeDisabledWhileClosing(t *testing.T) {
	sess := &SessionState{SessionID: "aaaaaaaa", Enabled: true, IsClosing: true, ExecMap: make(map[int]ExecRecord)}
	positions := []Position{{Type: "BUY", Profit: -1000, Comment: "buy_aaaaaaaa_idx0"}}
	require.False(t, checkHedge(SideBuy, 50, sess, positions), "a side already tearing down must not open a new hedge")
}

func TestDeployHedgeScenarioAOnFreshOppositeSession(t *testing.T) {
	opp := &SessionState{ExecMap: make(map[int]ExecRecord)}
	d := deployHedge(SideBuy, 0.5, 100, opp)
	require.True(t, d.scenarioFresh)
	require.Equal(t, 0.5, d.volume)
}

func TestDeployHedgeScenarioBAppendsRowWithComputedGap(t *testing.T) {
	opp := &SessionState{
		SessionID: "bbbbbbbb",
		ExecMap:   map[int]ExecRecord{0: {Index: 0, EntryPrice: 95}},
	}
	d := deployHedge(SideBuy, 0.5, 100, opp)
	require.False(t, d.scenarioFresh)
	require.InDelta(t, 5.0, d.gap, 1e-9)
}
