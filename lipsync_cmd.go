package main

import (
	"fmt"
	"io"
	"os"

	"avatarkit/lipsync"

	"github.com/bytedance/sonic"
	"github.com/spf13/cobra"
)

type lipsyncOptions struct {
	duration float64 // Seconds; negative means unknown.
	ticks    bool
	at       float64 // Negative means print the whole track.
	voice    string
}

// tickEvent is a viseme as Azure reports it: offset in 100ns ticks.
type tickEvent struct {
	VisemeID    int   `json:"VisemeId"`
	AudioOffset int64 `json:"AudioOffset"`
}

func newLipsyncCmd() *cobra.Command {
	opts := lipsyncOptions{}

	cmd := &cobra.Command{
		Use:   "lipsync [file|-]",
		Short: "Convert viseme events to lip-sync mouth cues",
		Long: `Read viseme events as JSON and print the lip-sync bundle.

Input is a JSON array of {"id":N,"offsetSeconds":S} events, or with --ticks
Azure's {"VisemeId":N,"AudioOffset":T} events with offsets in 100ns ticks.
Reads stdin when the file is "-" or omitted.

Examples:
  avatarkit lipsync visemes.json --duration 2.4
  cat azure.json | avatarkit lipsync --ticks --at 1.25`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in := cmd.InOrStdin()
			if len(args) == 1 && args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return err
				}
				defer f.Close()
				in = f
			}
			return runLipsync(in, cmd.OutOrStdout(), opts)
		},
	}
	cmd.Flags().Float64Var(&opts.duration, "duration", -1, "audio duration in seconds (unknown when negative)")
	cmd.Flags().BoolVar(&opts.ticks, "ticks", false, "input offsets are Azure 100ns ticks")
	cmd.Flags().Float64Var(&opts.at, "at", -1, "print only the cue active at this playback time")
	cmd.Flags().StringVar(&opts.voice, "voice", "", "voice recorded in the metadata")
	return cmd
}

func runLipsync(in io.Reader, out io.Writer, opts lipsyncOptions) error {
	data, err := io.ReadAll(in)
	if err != nil {
		return fmt.Errorf("read events: %w", err)
	}
	events, err := decodeEvents(data, opts.ticks)
	if err != nil {
		return err
	}

	var total *float64
	if opts.duration >= 0 {
		total = lipsync.Duration(opts.duration)
	}
	bundle := lipsync.Build(opts.voice, events, total)

	var result interface{} = bundle
	if opts.at >= 0 {
		cue, ok := lipsync.ActiveCue(bundle.MouthCues, opts.at)
		if !ok {
			return fmt.Errorf("no cue at %.3fs (track ends at %.3fs)", opts.at, bundle.Metadata.Duration)
		}
		result = cue
	}

	encoded, err := sonic.ConfigStd.MarshalIndent(result, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, string(encoded))
	return err
}

func decodeEvents(data []byte, ticks bool) ([]lipsync.VisemeEvent, error) {
	if !ticks {
		var events []lipsync.VisemeEvent
		if err := sonic.Unmarshal(data, &events); err != nil {
			return nil, fmt.Errorf("parse events: %w", err)
		}
		return events, nil
	}

	var raw []tickEvent
	if err := sonic.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse events: %w", err)
	}
	events := make([]lipsync.VisemeEvent, len(raw))
	for i, e := range raw {
		events[i] = lipsync.VisemeEvent{ID: e.VisemeID, Offset: lipsync.TicksToSeconds(e.AudioOffset)}
	}
	return events, nil
}
