package kernel

import "fmt"

// ControlCommand is a single operator-issued control request.
type ControlCommand struct {
	BuySwitch      *bool
	SellSwitch     *bool
	Cyclic         *bool
	EmergencyClose bool
}

// ApplyControl mutates runtime state per one control command. Switching a
// side off stops new accumulation and queues a per-side close, which the
// next tick drains into CLOSE_ALL; the closing-phase confirmation step then
// owns tearing the session down. Emergency close always queues the
// emergency tag ahead of any per-side close already pending, since it
// supersedes them, and clears error_status so a parked engine resumes.
func ApplyControl(rt *RuntimeState, cmd ControlCommand) {
	if cmd.BuySwitch != nil {
		rt.Buy.Enabled = *cmd.BuySwitch
		if !rt.Buy.Enabled {
			rt.PendingActions = append(rt.PendingActions, pendingCloseBuy)
		}
	}
	if cmd.SellSwitch != nil {
		rt.Sell.Enabled = *cmd.SellSwitch
		if !rt.Sell.Enabled {
			rt.PendingActions = append(rt.PendingActions, pendingCloseSell)
		}
	}
	if cmd.Cyclic != nil {
		rt.CyclicMode = *cmd.Cyclic
	}
	if cmd.EmergencyClose {
		rt.PendingActions = append([]string{emergencyTag}, rt.PendingActions...)
		rt.ErrorStatus = ""
	}
}

// ValidateSettings rejects a settings update carrying a negative take-profit
// or hedge value; a zero value is the documented "disabled" sentinel and
// stays legal. Malformed layers (non-positive gap or volume) are not
// rejected here — MergeSettings silently filters those out instead.
func ValidateSettings(s UserSettings) error {
	for _, side := range []struct {
		name string
		s    SideSettings
	}{{"buy", s.Buy}, {"sell", s.Sell}} {
		if side.s.TP.Value < 0 {
			return fmt.Errorf("kernel: %s take-profit value must not be negative", side.name)
		}
		if side.s.HedgeValue < 0 {
			return fmt.Errorf("kernel: %s hedge value must not be negative", side.name)
		}
	}
	return nil
}

// MergeSettings applies an incoming settings update on top of the current
// settings, per side, preserving the gap and volume of any row whose index
// already has an exec-map entry — those are frozen once executed — while
// always taking the incoming alert flag, which is the only field mutable
// after execution. Incoming layers with a non-positive gap or volume are
// silently dropped, unless that index is already executed (frozen values are
// always valid, having passed this same filter on the update that ran them).
func MergeSettings(current, incoming UserSettings, rt *RuntimeState) UserSettings {
	merged := incoming
	merged.Buy.Rows = mergeRows(current.Buy.Rows, incoming.Buy.Rows, rt.Buy.ExecMap)
	merged.Sell.Rows = mergeRows(current.Sell.Rows, incoming.Sell.Rows, rt.Sell.ExecMap)
	return merged
}

func mergeRows(currentRows, incomingRows []GridRow, execMap map[int]ExecRecord) []GridRow {
	currentByIndex := make(map[int]GridRow, len(currentRows))
	for _, r := range currentRows {
		currentByIndex[r.Index] = r
	}

	out := make([]GridRow, 0, len(incomingRows))
	for _, row := range incomingRows {
		_, executed := execMap[row.Index]
		if executed {
			if frozen, ok := currentByIndex[row.Index]; ok {
				row.Gap = frozen.Gap
				row.Volume = frozen.Volume
			}
		} else if row.Gap <= 0 || row.Volume <= 0 {
			continue
		}
		out = append(out, row)
	}
	return out
}
