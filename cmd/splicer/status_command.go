package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"splicer/internal/api"
	"splicer/internal/preflight"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var local bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show server capabilities and local preflight checks",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)

			var lines []string
			if !local {
				client := ctx.client()
				healthErr := ctx.wrapClientError(client.Health(cmd.Context()))
				var caps api.Capabilities
				var capsErr error
				if healthErr == nil {
					caps, capsErr = client.Capabilities(cmd.Context())
				}
				lines = append(lines, renderSectionHeader("Server", colorize)...)
				lines = append(lines, serverLines(ctx.apiURL(), healthErr, caps, capsErr, colorize)...)
				lines = append(lines, "")
			}

			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			lines = append(lines, renderSectionHeader("Local checks", colorize)...)
			lines = append(lines, preflightLines(preflight.RunAll(cmd.Context(), cfg), colorize)...)

			for _, line := range lines {
				fmt.Fprintln(out, line)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&local, "local", false, "Skip the server and run only local checks")
	return cmd
}
