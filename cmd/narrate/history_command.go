package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/lexiqai/narration-gateway/internal/narrator"
	"github.com/lexiqai/narration-gateway/internal/subtitles"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var (
		limit   int
		jsonOut bool
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recently published narrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withComponents(cmd.Context(), func(c *narrator.Components) error {
				entries, err := c.History.List(cmd.Context(), limit)
				if err != nil {
					return err
				}
				if jsonOut {
					return writeJSON(cmd, entries)
				}
				if len(entries) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No narrations published yet")
					return nil
				}

				rows := make([][]string, 0, len(entries))
				for _, e := range entries {
					target := "-"
					if e.Translated {
						target = e.TargetLanguage
					}
					rows = append(rows, []string{
						e.CreatedAt.Local().Format(time.DateTime),
						e.BaseName,
						e.Backend,
						fmt.Sprintf("%d", e.SentenceCount),
						subtitles.FormatTimestamp(e.DurationMillis),
						target,
						fmt.Sprintf("%d", e.Warnings),
					})
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(
					[]string{"Created", "Base name", "Backend", "Sentences", "Duration", "Translation", "Warnings"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignLeft, alignRight},
				))
				return nil
			})
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of entries")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Print entries as JSON")

	return cmd
}
