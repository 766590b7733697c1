package kernel

import "fmt"

// triggerPrice returns the price at which layer levelIndex fires: the
// anchor minus the cumulative sum of gaps up to and including levelIndex,
// for a buy side pulled down into the market, or plus that sum for a
// sell side pushed up into the market. Gaps are cumulative from the
// anchor, not relative to the previous layer.
func triggerPrice(side Side, anchor float64, rows []GridRow, levelIndex int) (float64, error) {
	var cumulative float64
	found := false
	for _, row := range rows {
		if row.Index > levelIndex {
			continue
		}
		cumulative += row.Gap
		if row.Index == levelIndex {
			found = true
		}
	}
	if !found {
		return 0, fmt.Errorf("kernel: no row at index %d", levelIndex)
	}
	switch side {
	case SideBuy:
		return anchor - cumulative, nil
	case SideSell:
		return anchor + cumulative, nil
	default:
		return 0, fmt.Errorf("kernel: unknown side %q", side)
	}
}

// validateRows rejects a layer table with non-positive gap or volume,
// since a zero or negative gap would collapse the cumulative-from-anchor
// ordering and a non-positive volume can never be deployed.
func validateRows(rows []GridRow) error {
	for _, row := range rows {
		if row.Gap <= 0 {
			return fmt.Errorf("kernel: row %d has non-positive gap %.6f", row.Index, row.Gap)
		}
		if row.Volume <= 0 {
			return fmt.Errorf("kernel: row %d has non-positive volume %.6f", row.Index, row.Volume)
		}
	}
	return nil
}

// nextUnexecutedRow returns the lowest-index row in rows that has no entry
// in execMap yet, or ok=false if every row has already executed.
func nextUnexecutedRow(rows []GridRow, execMap map[int]ExecRecord) (GridRow, bool) {
	best := GridRow{}
	found := false
	for _, row := range rows {
		if _, done := execMap[row.Index]; done {
			continue
		}
		if !found || row.Index < best.Index {
			best = row
			found = true
		}
	}
	return best, found
}

// crossed reports whether the market has traded through a side's trigger
// price for accumulation purposes: a buy layer fires once price falls to
// or below its trigger, a sell layer fires once price rises to or above it.
func crossed(side Side, price, trigger float64) bool {
	if side == SideBuy {
		return price <= trigger
	}
	return price >= trigger
}
