package booking

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// timeKey returns the HH:MM following the date/time separator of an ISO-8601
// timestamp. The string is taken as-is; callers localize first.
func timeKey(start string) string {
	rest := start
	if i := strings.IndexAny(start, "T "); i >= 0 {
		rest = start[i+1:]
	}
	if len(rest) > 5 {
		rest = rest[:5]
	}
	return rest
}

// ConsolidateSlots groups slots by start clock time. Groups are ordered by
// key and keep input order inside each group.
func ConsolidateSlots(slots []TimeSlot) []ConsolidatedTimeSlot {
	out := []ConsolidatedTimeSlot{}
	index := make(map[string]int)
	for _, s := range slots {
		key := timeKey(s.StartTime)
		i, ok := index[key]
		if !ok {
			i = len(out)
			index[key] = i
			out = append(out, ConsolidatedTimeSlot{
				Time:        key,
				DisplayTime: FormatTimeDisplay(key),
			})
		}
		out[i].AvailableSlots = append(out[i].AvailableSlots, s)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Time < out[j].Time })
	return out
}

// FormatTimeDisplay renders "HH:MM" as "h:mm am|pm". Anything else is
// returned unchanged.
func FormatTimeDisplay(hhmm string) string {
	if len(hhmm) != 5 || hhmm[2] != ':' {
		return hhmm
	}
	h, err := strconv.Atoi(hhmm[:2])
	if err != nil || h < 0 || h > 23 {
		return hhmm
	}
	m, err := strconv.Atoi(hhmm[3:])
	if err != nil || m < 0 || m > 59 {
		return hhmm
	}

	suffix := "am"
	switch {
	case h == 0:
		h = 12
	case h == 12:
		suffix = "pm"
	case h > 12:
		h -= 12
		suffix = "pm"
	}
	return fmt.Sprintf("%d:%02d %s", h, m, suffix)
}

// SelectSlot marks the group at time as selected, clearing the others, and
// returns the first TimeSlot in it. The input is not modified.
func SelectSlot(groups []ConsolidatedTimeSlot, time string) ([]ConsolidatedTimeSlot, TimeSlot, bool) {
	out := make([]ConsolidatedTimeSlot, len(groups))
	var picked TimeSlot
	found := false
	for i, g := range groups {
		g.IsSelected = false
		if !found && g.Time == time && len(g.AvailableSlots) > 0 {
			g.IsSelected = true
			picked = g.AvailableSlots[0]
			found = true
		}
		out[i] = g
	}
	return out, picked, found
}
