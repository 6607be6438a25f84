package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/lexiqai/narration-gateway/internal/audio"
	"github.com/lexiqai/narration-gateway/internal/subtitles"
)

func newInspectCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect <file.wav>",
		Short: "Print the format and duration of a WAV container",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read %s: %w", args[0], err)
			}
			decoded, err := audio.Decode(b)
			if err != nil {
				return fmt.Errorf("%s: %w", args[0], err)
			}

			rows := [][]string{
				{"Sample rate", fmt.Sprintf("%d Hz", decoded.Format.SampleRate)},
				{"Channels", fmt.Sprintf("%d", decoded.Format.Channels)},
				{"Bits per sample", fmt.Sprintf("%d", decoded.Format.BitsPerSample)},
				{"Block align", fmt.Sprintf("%d", decoded.Format.BlockAlign())},
				{"Frames", fmt.Sprintf("%d", len(decoded.Frames())/decoded.Format.BlockAlign())},
				{"Data bytes", fmt.Sprintf("%d", len(decoded.Samples))},
				{"Duration", subtitles.FormatTimestamp(decoded.DurationMillis)},
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"Field", "Value"}, rows, []columnAlignment{alignLeft, alignRight}))
			return nil
		},
	}
}
