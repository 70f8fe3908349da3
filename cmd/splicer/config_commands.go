package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"splicer/internal/config"
)

func newConfigCommand(ctx *commandContext) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Create and check configuration files",
	}
	configCmd.AddCommand(newConfigInitCommand(), newConfigValidateCommand(ctx))
	return configCmd
}

func newConfigInitCommand() *cobra.Command {
	var targetPath string
	var overwrite bool

	cmd := &cobra.Command{
		Use:         "init",
		Short:       "Write the annotated sample configuration",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			target, err := configTarget(targetPath)
			if err != nil {
				return err
			}
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return fmt.Errorf("create config directory: %w", err)
			}
			if _, err := os.Stat(target); err == nil && !overwrite {
				return fmt.Errorf("%s already exists (pass --overwrite to replace it)", target)
			} else if err != nil && !errors.Is(err, fs.ErrNotExist) {
				return fmt.Errorf("check config path: %w", err)
			}
			if err := config.CreateSample(target); err != nil {
				return fmt.Errorf("create sample config: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Wrote sample configuration to %s\n", target)
			fmt.Fprintln(out, "Set server.api_token (or export SPLICER_API_TOKEN) before exposing the API.")
			return nil
		},
	}
	cmd.Flags().StringVarP(&targetPath, "path", "p", "", "Destination for the configuration file")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "Replace an existing file")
	return cmd
}

// configTarget expands path, defaulting to the per-user config location.
func configTarget(path string) (string, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		target, err := config.DefaultConfigPath()
		if err != nil {
			return "", fmt.Errorf("determine default config path: %w", err)
		}
		return target, nil
	}
	target, err := config.ExpandPath(path)
	if err != nil {
		return "", fmt.Errorf("resolve config path: %w", err)
	}
	return target, nil
}

func newConfigValidateCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:         "validate",
		Short:       "Load the configuration and print the effective settings",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, resolved, exists, err := config.Load(ctx.configPath())
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Config path: %s\n", resolved)
			if !exists {
				fmt.Fprintln(out, "File not found; built-in defaults apply")
			}
			fmt.Fprintln(out, renderTable(columns("Setting", "Value"), settingRows(cfg)))
			fmt.Fprintln(out, "Configuration valid")
			return nil
		},
	}
}

func settingRows(cfg *config.Config) [][]string {
	store := cfg.Store.Path
	if cfg.Store.Driver == config.StoreDriverPostgres {
		store = "dsn from store.dsn"
	}
	storage := cfg.Storage.Dir
	if cfg.Storage.Backend == config.StorageBackendS3 {
		storage = "s3://" + cfg.Storage.Bucket
	}
	sandbox := cfg.Sandbox.FFmpegBinary
	if cfg.Sandbox.Backend == config.SandboxBackendRemote {
		sandbox = cfg.Sandbox.RemoteURL
	}
	return [][]string{
		{"bind", cfg.Server.Bind},
		{"api token", yesNo(cfg.Server.APIToken != "")},
		{"store", cfg.Store.Driver + " (" + store + ")"},
		{"storage", cfg.Storage.Backend + " (" + storage + ")"},
		{"sandbox", cfg.Sandbox.Backend + " (" + sandbox + ")"},
		{"limits", fmt.Sprintf("audio %gMB, segment %gMB, %d segments, %d jobs",
			cfg.Limits.MaxAudioSizeMB, cfg.Limits.MaxVideoSegmentSizeMB, cfg.Limits.MaxTotalSegments, cfg.Limits.MaxConcurrentJobs)},
		{"notifications", yesNo(cfg.Notifications.NtfyTopic != "")},
	}
}
