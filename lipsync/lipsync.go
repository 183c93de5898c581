package lipsync

// Metadata describes the audio a cue track belongs to.
type Metadata struct {
	Voice    string  `json:"voice"`
	Duration float64 `json:"duration"` // Seconds.
}

// Data is the lip-sync payload the avatar front end plays alongside the audio.
type Data struct {
	Metadata  Metadata   `json:"metadata"`
	MouthCues []MouthCue `json:"mouthCues"`
}

// Build segments events and wraps the cues with voice metadata. When the audio
// duration is unknown the end of the last cue is reported instead.
func Build(voice string, events []VisemeEvent, audioDuration *float64) Data {
	cues := Segment(events, audioDuration)

	duration := 0.0
	switch {
	case audioDuration != nil && finite(*audioDuration):
		duration = *audioDuration
	case len(cues) > 0:
		duration = cues[len(cues)-1].End
	}

	return Data{
		Metadata:  Metadata{Voice: voice, Duration: duration},
		MouthCues: cues,
	}
}

// ActiveCue returns the cue covering playback time t, scanning linearly like
// the front end's player does. ok is false when t falls outside the track.
func ActiveCue(cues []MouthCue, t float64) (cue MouthCue, ok bool) {
	for _, c := range cues {
		if t >= c.Start && t <= c.End {
			return c, true
		}
	}
	return MouthCue{}, false
}
