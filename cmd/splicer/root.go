package main

import (
	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	flags := &globalFlags{}
	ctx := newCommandContext(flags)

	rootCmd := &cobra.Command{
		Use:           "splicer",
		Short:         "Audio chunking and video stitching service",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if shouldSkipConfig(cmd) {
				return nil
			}
			_, err := ctx.ensureConfig()
			return err
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&flags.configPath, "config", "c", "", "Configuration file path")
	pf.StringVar(&flags.apiURL, "api-url", "", "Base URL of the splicer server (overrides client.api_url)")
	pf.StringVar(&flags.token, "token", "", "Bearer token for the splicer server (overrides client.api_token)")

	rootCmd.AddCommand(
		newServeCommand(ctx),
		newChunkCommand(ctx),
		newStitchCommand(ctx),
		newDurationCommand(ctx),
		newJobCommand(ctx),
		newStatusCommand(ctx),
		newTestNotifyCommand(ctx),
		newConfigCommand(ctx),
	)

	return rootCmd
}
