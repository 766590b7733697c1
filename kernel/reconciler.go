package kernel

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	"elasticgrid/logger"
)

// commentPattern anchors the full trade comment grammar: side, an 8-char
// lowercase hex session id, and a layer index. Anchored matching (rather
// than substring containment) is deliberate: a comment belonging to a
// foreign session must never be mistaken for this session's own layer.
var commentPattern = regexp.MustCompile(`^(buy|sell)_([0-9a-f]{8})_idx(\d+)$`)

type parsedComment struct {
	side      Side
	sessionID string
	index     int
}

func parseComment(comment string) (parsedComment, bool) {
	m := commentPattern.FindStringSubmatch(comment)
	if m == nil {
		return parsedComment{}, false
	}
	idx, err := strconv.Atoi(m[3])
	if err != nil {
		return parsedComment{}, false
	}
	return parsedComment{side: Side(m[1]), sessionID: m[2], index: idx}, true
}

// reconcile rebuilds a side's exec map from the broker's authoritative
// position list, flagging an identity conflict as a fatal error_status
// rather than silently adopting it: either a position tagged with this
// side's verb carries a foreign session id while the side holds an active
// session, or no session is active on this side at all and the broker still
// reports one. The broker is authoritative on fills: reconcile never removes
// an entry the session believes executed just because it is absent from the
// current tick, since a removal for an externally-closed position is
// handled separately by external-close detection.
func reconcile(side Side, sess *SessionState, positions []Position) (conflict bool) {
	for _, pos := range positions {
		parsed, ok := parseComment(pos.Comment)
		if !ok || parsed.side != side {
			continue
		}
		if sess.SessionID == "" || parsed.sessionID != sess.SessionID {
			logger.Warnf("kernel: foreign session id %s on %s position ticket=%d (active session %q)",
				parsed.sessionID, side, pos.Ticket, sess.SessionID)
			conflict = true
			continue
		}
		sess.ExecMap[parsed.index] = ExecRecord{
			Index:      parsed.index,
			EntryPrice: pos.Price,
			Volume:     pos.Volume,
			Profit:     pos.Profit,
			Timestamp:  sess.ExecMap[parsed.index].Timestamp,
		}
	}
	recomputeCumulative(sess)
	return conflict
}

func recomputeCumulative(sess *SessionState) {
	indices := make([]int, 0, len(sess.ExecMap))
	for idx := range sess.ExecMap {
		indices = append(indices, idx)
	}
	sort.Ints(indices)

	var cumVolume, cumProfit float64
	for _, idx := range indices {
		rec := sess.ExecMap[idx]
		cumVolume += rec.Volume
		cumProfit += rec.Profit
		rec.CumulativeVolume = cumVolume
		rec.CumulativeProfit = cumProfit
		sess.ExecMap[idx] = rec
	}
}

// basketProfit sums the profit of every broker position attributed to the
// session's active id, regardless of whether the engine's own exec map
// still carries that layer.
func basketProfit(side Side, sessionID string, positions []Position) float64 {
	if sessionID == "" {
		return 0
	}
	var total float64
	for _, pos := range positions {
		parsed, ok := parseComment(pos.Comment)
		if !ok || parsed.side != side || parsed.sessionID != sessionID {
			continue
		}
		total += pos.Profit
	}
	return total
}

// countActive returns the number of broker positions tagged with the
// session's active id.
func countActive(side Side, sessionID string, positions []Position) int {
	n := 0
	for _, pos := range positions {
		parsed, ok := parseComment(pos.Comment)
		if ok && parsed.side == side && parsed.sessionID == sessionID {
			n++
		}
	}
	return n
}

// buildComment renders the trade comment grammar for a newly deployed layer.
func buildComment(side Side, sessionID string, index int) string {
	return string(side) + "_" + sessionID + "_idx" + strconv.Itoa(index)
}

// lastExecutedPrice returns the entry price of the highest-index executed
// layer, or ok=false if no layer has executed yet.
func lastExecutedPrice(sess *SessionState) (float64, bool) {
	best := -1
	var price float64
	for idx, rec := range sess.ExecMap {
		if idx > best {
			best = idx
			price = rec.EntryPrice
		}
	}
	return price, best >= 0
}

// newSessionID mints a fresh session id of the required 8-char lowercase
// hex grammar from a uuid-derived hex string.
func newSessionID(hexSource string) string {
	h := strings.ToLower(strings.ReplaceAll(hexSource, "-", ""))
	if len(h) < 8 {
		return h
	}
	return h[:8]
}
