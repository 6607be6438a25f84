package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/lexiqai/narration-gateway/internal/narrator"
	"github.com/lexiqai/narration-gateway/internal/subtitles"
)

func newSpeakCommand(ctx *commandContext) *cobra.Command {
	var (
		file      string
		voice     string
		translate bool
		target    string
		jsonOut   bool
	)

	cmd := &cobra.Command{
		Use:   "speak [text]",
		Short: "Narrate text into a WAV file with subtitles",
		Long: "Narrate text into a WAV file with SRT subtitles.\n\n" +
			"Text is taken from the arguments, from --file, or from stdin when neither is given.",
		RunE: func(cmd *cobra.Command, args []string) error {
			input, err := readInput(cmd, args, file)
			if err != nil {
				return err
			}

			return ctx.withComponents(cmd.Context(), func(c *narrator.Components) error {
				result, err := c.Service.Narrate(cmd.Context(), narrator.Request{
					Text:           input,
					Voice:          voice,
					Translate:      translate || target != "",
					TargetLanguage: target,
				})
				if err != nil {
					return err
				}
				if jsonOut {
					return writeJSON(cmd, result)
				}
				printResult(cmd, result)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "Read text from a file (- for stdin)")
	cmd.Flags().StringVar(&voice, "voice", "", "Voice identifier (defaults to TTS_VOICE)")
	cmd.Flags().BoolVarP(&translate, "translate", "t", false, "Also emit translated and bilingual subtitles")
	cmd.Flags().StringVar(&target, "target", "", "Target language for translation (implies --translate)")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Print the result as JSON")

	return cmd
}

func readInput(cmd *cobra.Command, args []string, file string) (string, error) {
	switch {
	case len(args) > 0 && file != "":
		return "", errors.New("pass text as arguments or --file, not both")
	case len(args) > 0:
		return strings.Join(args, " "), nil
	case file != "" && file != "-":
		b, err := os.ReadFile(file)
		if err != nil {
			return "", fmt.Errorf("read input: %w", err)
		}
		return string(b), nil
	default:
		b, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}
		return string(b), nil
	}
}

func printResult(cmd *cobra.Command, result *narrator.Result) {
	out := cmd.OutOrStdout()
	translated := len(result.Translations) > 0

	headers := []string{"#", "Start", "End", "Sentence"}
	aligns := []columnAlignment{alignRight, alignLeft, alignLeft, alignLeft}
	if translated {
		headers = append(headers, "Translation")
		aligns = append(aligns, alignLeft)
	}

	rows := make([][]string, 0, len(result.Timings))
	for i, timing := range result.Timings {
		row := []string{
			fmt.Sprintf("%d", timing.Index),
			subtitles.FormatTimestamp(timing.StartMillis),
			subtitles.FormatTimestamp(timing.EndMillis),
			timing.Text,
		}
		if translated {
			row = append(row, result.Translations[i])
		}
		rows = append(rows, row)
	}
	fmt.Fprintln(out, renderTable(headers, rows, aligns))

	fmt.Fprintf(out, "Duration: %s (%s, %s)\n", subtitles.FormatTimestamp(result.DurationMillis), result.Backend, result.Format)
	fmt.Fprintf(out, "Audio:    %s\n", result.Files.AudioPath)
	fmt.Fprintf(out, "Subtitles: %s\n", result.Files.SubtitlePath)
	if result.Files.TranslatedPath != "" {
		fmt.Fprintf(out, "Translated: %s\n", result.Files.TranslatedPath)
		fmt.Fprintf(out, "Bilingual:  %s\n", result.Files.BilingualPath)
	}
	for _, w := range result.Warnings {
		fmt.Fprintf(cmd.ErrOrStderr(), "warning: %s\n", w)
	}
}
