package main

import (
	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	var verbose bool

	ctx := newCommandContext(&verbose)

	rootCmd := &cobra.Command{
		Use:           "narrate",
		Short:         "Narrate text into timed audio and subtitles",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			ctx.initLogging(cmd.ErrOrStderr())
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log at debug level")

	rootCmd.AddCommand(newSpeakCommand(ctx))
	rootCmd.AddCommand(newHistoryCommand(ctx))
	rootCmd.AddCommand(newInspectCommand())

	return rootCmd
}
