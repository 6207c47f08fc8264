package store

import "sort"

// evict enforces the per-chat retention cap. Messages are ranked ascending
// by MessageTimestamp (missing timestamp sorts as 0); the stable sort keeps
// insertion order for equal timestamps. The oldest excess entries are
// removed and their IDs returned.
func (l *messageLog) evict(max int) []string {
	excess := len(l.order) - max
	if max <= 0 || excess <= 0 {
		return nil
	}

	ranked := make([]string, len(l.order))
	copy(ranked, l.order)
	sort.SliceStable(ranked, func(i, j int) bool {
		return l.byID[ranked[i]].MessageTimestamp < l.byID[ranked[j]].MessageTimestamp
	})

	evicted := make(map[string]struct{}, excess)
	for _, id := range ranked[:excess] {
		evicted[id] = struct{}{}
		delete(l.byID, id)
	}

	kept := l.order[:0]
	for _, id := range l.order {
		if _, gone := evicted[id]; !gone {
			kept = append(kept, id)
		}
	}
	l.order = kept

	ids := make([]string, 0, excess)
	for _, id := range ranked[:excess] {
		ids = append(ids, id)
	}
	return ids
}
