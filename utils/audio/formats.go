package audio

import (
	"avatarkit/core"
)

// OutputFormat describes a synthesizer output format well enough to estimate
// the playback length of its bytes and to make it browser playable.
type OutputFormat struct {
	Name        string
	Encoding    core.AudioEncodingFormat
	SampleRate  int
	Channels    int
	BitrateKbps int // Constant bitrate for compressed formats; 0 for PCM-like encodings.
}

// DefaultFormat is the Azure output format used unless settings override it.
const DefaultFormat = "audio-16khz-32kbitrate-mono-mp3"

var outputFormats = map[string]OutputFormat{
	// Azure Speech
	"audio-16khz-32kbitrate-mono-mp3":  {Encoding: core.MP3, SampleRate: 16000, Channels: 1, BitrateKbps: 32},
	"audio-16khz-64kbitrate-mono-mp3":  {Encoding: core.MP3, SampleRate: 16000, Channels: 1, BitrateKbps: 64},
	"audio-16khz-128kbitrate-mono-mp3": {Encoding: core.MP3, SampleRate: 16000, Channels: 1, BitrateKbps: 128},
	"audio-24khz-48kbitrate-mono-mp3":  {Encoding: core.MP3, SampleRate: 24000, Channels: 1, BitrateKbps: 48},
	"audio-24khz-96kbitrate-mono-mp3":  {Encoding: core.MP3, SampleRate: 24000, Channels: 1, BitrateKbps: 96},
	"audio-24khz-160kbitrate-mono-mp3": {Encoding: core.MP3, SampleRate: 24000, Channels: 1, BitrateKbps: 160},
	"audio-48khz-96kbitrate-mono-mp3":  {Encoding: core.MP3, SampleRate: 48000, Channels: 1, BitrateKbps: 96},
	"audio-48khz-192kbitrate-mono-mp3": {Encoding: core.MP3, SampleRate: 48000, Channels: 1, BitrateKbps: 192},
	"raw-8khz-16bit-mono-pcm":          {Encoding: core.PCM, SampleRate: 8000, Channels: 1},
	"raw-16khz-16bit-mono-pcm":         {Encoding: core.PCM, SampleRate: 16000, Channels: 1},
	"raw-24khz-16bit-mono-pcm":         {Encoding: core.PCM, SampleRate: 24000, Channels: 1},
	"raw-48khz-16bit-mono-pcm":         {Encoding: core.PCM, SampleRate: 48000, Channels: 1},
	"riff-16khz-16bit-mono-pcm":        {Encoding: core.WAV, SampleRate: 16000, Channels: 1},
	"riff-24khz-16bit-mono-pcm":        {Encoding: core.WAV, SampleRate: 24000, Channels: 1},
	"raw-8khz-8bit-mono-mulaw":         {Encoding: core.ULAW, SampleRate: 8000, Channels: 1},
	"raw-8khz-8bit-mono-alaw":          {Encoding: core.ALAW, SampleRate: 8000, Channels: 1},

	// ElevenLabs
	"mp3_22050_32":  {Encoding: core.MP3, SampleRate: 22050, Channels: 1, BitrateKbps: 32},
	"mp3_44100_64":  {Encoding: core.MP3, SampleRate: 44100, Channels: 1, BitrateKbps: 64},
	"mp3_44100_128": {Encoding: core.MP3, SampleRate: 44100, Channels: 1, BitrateKbps: 128},
	"pcm_16000":     {Encoding: core.PCM, SampleRate: 16000, Channels: 1},
	"pcm_24000":     {Encoding: core.PCM, SampleRate: 24000, Channels: 1},
	"ulaw_8000":     {Encoding: core.ULAW, SampleRate: 8000, Channels: 1},

	// Cartesia raw container, named <encoding>_<sample rate>
	"pcm_s16le_16000": {Encoding: core.PCM, SampleRate: 16000, Channels: 1},
	"pcm_s16le_22050": {Encoding: core.PCM, SampleRate: 22050, Channels: 1},
	"pcm_s16le_24000": {Encoding: core.PCM, SampleRate: 24000, Channels: 1},
	"pcm_s16le_44100": {Encoding: core.PCM, SampleRate: 44100, Channels: 1},
	"pcm_mulaw_8000":  {Encoding: core.ULAW, SampleRate: 8000, Channels: 1},
	"pcm_alaw_8000":   {Encoding: core.ALAW, SampleRate: 8000, Channels: 1},
}

// LookupFormat returns the format registered under name.
func LookupFormat(name string) (OutputFormat, bool) {
	f, ok := outputFormats[name]
	if ok {
		f.Name = name
	}
	return f, ok
}

// MimeType returns the MIME type of audio in this format as delivered to the
// browser (see ToBrowserPlayable).
func (f OutputFormat) MimeType() string {
	if f.Encoding == core.MP3 {
		return "audio/mpeg"
	}
	return "audio/wav"
}

// Duration estimates the playback length of audio in seconds. It returns nil
// when the format does not allow an estimate from the byte count alone.
func (f OutputFormat) Duration(audio []byte) *float64 {
	var seconds float64
	switch f.Encoding {
	case core.MP3:
		if f.BitrateKbps <= 0 {
			return nil
		}
		seconds = float64(len(audio)) * 8 / float64(f.BitrateKbps*1000)
	case core.PCM:
		d, err := GetPCMDurationSeconds(audio, f.Channels, f.SampleRate)
		if err != nil {
			return nil
		}
		seconds = d
	case core.WAV:
		pcm, err := StripWAVHeaderIfPresent(audio)
		if err != nil {
			return nil
		}
		d, err := GetPCMDurationSeconds(pcm, f.Channels, f.SampleRate)
		if err != nil {
			return nil
		}
		seconds = d
	case core.ULAW, core.ALAW:
		if f.SampleRate <= 0 || f.Channels <= 0 || len(audio) == 0 {
			return nil
		}
		seconds = float64(len(audio)) / float64(f.SampleRate*f.Channels)
	default:
		return nil
	}
	return &seconds
}

// Chunk wraps audio in this format into a core.AudioChunk.
func (f OutputFormat) Chunk(audio []byte) core.AudioChunk {
	return core.AudioChunk{
		Data:       &audio,
		SampleRate: f.SampleRate,
		Channels:   f.Channels,
		Format:     f.Encoding,
	}
}
