package storage

import (
	"sort"

	"pdufa-lab/internal/domain"
)

// SortEvents orders events by PDUFA date ASC then event_id.
// Events without a confirmed PDUFA date sort last.
func SortEvents(events []*domain.EventRecord) {
	sort.Slice(events, func(i, j int) bool {
		a, aok := events[i].PDUFADate.Get()
		b, bok := events[j].PDUFADate.Get()
		switch {
		case aok && bok && !a.Equal(b.Time):
			return a.Before(b.Time)
		case aok != bok:
			return aok
		}
		return events[i].EventID < events[j].EventID
	})
}
