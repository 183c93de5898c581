// Package lipsync turns viseme timing events reported by a speech synthesizer
// into a contiguous track of mouth cues for the avatar front end.
package lipsync

import (
	"math"
	"sort"
)

const (
	// DefaultVisemeDuration is used when no following event or total duration bounds a cue.
	DefaultVisemeDuration = 0.12
	// MinSegmentLength is the shortest cue the segmenter emits.
	MinSegmentLength = 0.05
	// MergeEpsilon is how close two cues must be to count as touching.
	MergeEpsilon = 0.001

	// TicksPerSecond is the resolution of Azure Speech audio offsets (100ns ticks).
	TicksPerSecond = 10_000_000
)

// VisemeEvent is one viseme reported by the synthesizer.
type VisemeEvent struct {
	ID     int     `json:"id"`            // Viseme id in the synthesizer's vocabulary.
	Offset float64 `json:"offsetSeconds"` // Seconds since the start of the audio.
}

// MouthCue is a span of time during which a single mouth shape is shown.
type MouthCue struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Value Shape   `json:"value"`
}

// Duration returns a pointer to seconds, for passing a known total duration.
func Duration(seconds float64) *float64 {
	return &seconds
}

// TicksToSeconds converts 100ns ticks to seconds.
func TicksToSeconds(ticks int64) float64 {
	return float64(ticks) / TicksPerSecond
}

// roundTime rounds to millisecond precision, half up.
func roundTime(v float64) float64 {
	return math.Floor(v*1000+0.5) / 1000
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// Segment converts viseme events into mouth cues. total is the audio duration
// in seconds when known, nil otherwise.
//
// The result is sorted, contiguous and starts at 0. A first event that starts
// within MinSegmentLength of 0 is stretched back to 0 rather than preceded by
// a rest cue. When total is known the last cue ends at it, unless the final
// event itself runs past it; otherwise the track ends DefaultVisemeDuration
// after the final event's own offset, or where the clamped cues end if that is
// later. Segment never fails: with no usable events it returns a single rest
// cue.
func Segment(events []VisemeEvent, total *float64) []MouthCue {
	if total != nil && !finite(*total) {
		total = nil
	}

	sorted := make([]VisemeEvent, 0, len(events))
	for _, e := range events {
		if finite(e.Offset) {
			sorted = append(sorted, e)
		}
	}

	if len(sorted) == 0 {
		d := DefaultVisemeDuration
		if total != nil {
			d = *total
		}
		return []MouthCue{{Start: 0, End: roundTime(math.Max(d, MinSegmentLength)), Value: ShapeX}}
	}

	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Offset < sorted[j].Offset
	})

	merged := make([]MouthCue, 0, len(sorted)+2)
	var lastEventStart float64
	for i, e := range sorted {
		start := roundTime(math.Max(0, e.Offset))
		lastEventStart = start

		var nextStart float64
		switch {
		case i+1 < len(sorted):
			nextStart = sorted[i+1].Offset
		case total != nil:
			nextStart = *total
		default:
			nextStart = start + DefaultVisemeDuration
		}

		cue := MouthCue{
			Start: start,
			End:   roundTime(math.Max(start+MinSegmentLength, nextStart)),
			Value: ShapeFor(e.ID),
		}
		merged = appendCue(merged, cue)
	}

	first := &merged[0]
	if first.Start > 0 {
		if first.Start < MinSegmentLength || first.Value == ShapeX {
			first.Start = 0
		} else {
			merged = append([]MouthCue{{Start: 0, End: first.Start, Value: ShapeX}}, merged...)
		}
	}

	last := &merged[len(merged)-1]
	target := math.Max(last.End, lastEventStart+DefaultVisemeDuration)
	if total != nil {
		target = *total
	}
	target = roundTime(target)
	if target > last.End {
		if target-last.End < MinSegmentLength-MergeEpsilon || last.Value == ShapeX {
			last.End = target
		} else {
			merged = append(merged, MouthCue{Start: last.End, End: target, Value: ShapeX})
		}
	}

	return merged
}

// appendCue adds cue to the track, merging it into the previous cue when both
// show the same shape and touch. A cue that starts inside the previous one is
// pushed to start where the previous ends; if that leaves less than
// MinSegmentLength the previous cue takes over its span.
func appendCue(track []MouthCue, cue MouthCue) []MouthCue {
	if len(track) == 0 {
		return append(track, cue)
	}
	prev := &track[len(track)-1]

	if cue.Start < prev.End {
		cue.Start = prev.End
		if cue.End-cue.Start < MinSegmentLength-MergeEpsilon {
			if cue.End > prev.End {
				prev.End = cue.End
			}
			return track
		}
	}

	if prev.Value == cue.Value && math.Abs(prev.End-cue.Start) < MergeEpsilon {
		prev.End = cue.End
		return track
	}
	return append(track, cue)
}
