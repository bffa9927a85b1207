package portfolio

import (
	"sort"
	"time"

	"github.com/just-nilux/trade-engine/internal/domain"
)

// TimeSeries is the merged valuation history of all position ledgers:
// one row per observed timestamp, one column per position id. Positions
// with no entry at a timestamp are absent, never interpolated.
type TimeSeries struct {
	times   []time.Time
	columns map[string]map[int64]domain.Valuation
}

// newTimeSeries deep-copies the per-position series and indexes the union
// of their timestamps in ascending order.
func newTimeSeries(src map[string]map[int64]domain.Valuation) TimeSeries {
	columns := make(map[string]map[int64]domain.Valuation, len(src))
	union := make(map[int64]struct{})
	for pid, series := range src {
		cp := make(map[int64]domain.Valuation, len(series))
		for key, v := range series {
			cp[key] = v
			union[key] = struct{}{}
		}
		columns[pid] = cp
	}

	keys := make([]int64, 0, len(union))
	for key := range union {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	times := make([]time.Time, len(keys))
	for i, key := range keys {
		times[i] = time.Unix(0, key).UTC()
	}
	return TimeSeries{times: times, columns: columns}
}

// Times returns the union of all observed timestamps, ascending.
func (ts TimeSeries) Times() []time.Time {
	out := make([]time.Time, len(ts.times))
	copy(out, ts.times)
	return out
}

// PositionIDs returns the table's column names, sorted.
func (ts TimeSeries) PositionIDs() []string {
	ids := make([]string, 0, len(ts.columns))
	for pid := range ts.columns {
		ids = append(ids, pid)
	}
	sort.Strings(ids)
	return ids
}

// At returns the valuation of a position at a timestamp, with ok=false
// when the position has no entry there.
func (ts TimeSeries) At(positionID string, at time.Time) (domain.Valuation, bool) {
	series, ok := ts.columns[positionID]
	if !ok {
		return domain.Valuation{}, false
	}
	v, ok := series[at.UnixNano()]
	return v, ok
}

// Len returns the number of rows.
func (ts TimeSeries) Len() int {
	return len(ts.times)
}
