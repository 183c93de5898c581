package elevenlabs

import (
	"avatarkit/lipsync"
)

// alignmentVisemes converts one chunk's alignment into viseme events, shifting
// them by offset seconds. Consecutive characters with the same viseme produce
// a single event.
func alignmentVisemes(a *elAlignmentData, offset float64) []lipsync.VisemeEvent {
	if a == nil {
		return nil
	}
	n := len(a.Chars)
	if len(a.CharStartTimesMs) < n {
		n = len(a.CharStartTimesMs)
	}

	var events []lipsync.VisemeEvent
	last := -1
	for i := 0; i < n; {
		id, span := lipsync.CharViseme(a.Chars[:n], i)
		if id != last {
			events = append(events, lipsync.VisemeEvent{
				ID:     id,
				Offset: offset + float64(a.CharStartTimesMs[i])/1000,
			})
			last = id
		}
		i += span
	}
	return events
}
