package main

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"splicer/internal/api"
	"splicer/internal/config"
	"splicer/internal/logging"
	"splicer/internal/poller"
)

// globalFlags holds the persistent flags shared by every subcommand.
type globalFlags struct {
	configPath string
	apiURL     string
	token      string
}

type commandContext struct {
	flags *globalFlags

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(flags *globalFlags) *commandContext {
	return &commandContext{flags: flags}
}

func (c *commandContext) configPath() string {
	if c.flags == nil {
		return ""
	}
	return strings.TrimSpace(c.flags.configPath)
}

// ensureConfig loads the configuration once and creates its directories.
func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		cfg, _, _, err := config.Load(c.configPath())
		if err == nil {
			err = cfg.EnsureDirectories()
		}
		c.config, c.configErr = cfg, err
		if err != nil {
			c.config = nil
		}
	})
	return c.config, c.configErr
}

func (c *commandContext) configValue() *config.Config {
	cfg, _ := c.ensureConfig()
	return cfg
}

// clientSetting prefers a non-blank flag value over the loaded [client] key.
func (c *commandContext) clientSetting(flag string, fromConfig func(config.Client) string) string {
	if value := strings.TrimSpace(flag); value != "" {
		return value
	}
	if cfg := c.configValue(); cfg != nil {
		return fromConfig(cfg.Client)
	}
	return ""
}

func (c *commandContext) apiURL() string {
	var flag string
	if c.flags != nil {
		flag = c.flags.apiURL
	}
	return c.clientSetting(flag, func(cl config.Client) string { return cl.APIURL })
}

func (c *commandContext) apiToken() string {
	var flag string
	if c.flags != nil {
		flag = c.flags.token
	}
	return c.clientSetting(flag, func(cl config.Client) string { return cl.APIToken })
}

func (c *commandContext) client() *api.Client {
	return api.NewClient(c.apiURL(), api.WithToken(c.apiToken()))
}

func (c *commandContext) poller(source poller.StatusSource) *poller.Poller {
	opts := poller.Options{}
	if cfg := c.configValue(); cfg != nil {
		opts = poller.OptionsFromConfig(cfg)
	}
	return poller.New(source, logging.NewNop(), opts)
}

func (c *commandContext) expectedDuration() time.Duration {
	if cfg := c.configValue(); cfg != nil {
		return cfg.ExpectedJobDuration()
	}
	return 0
}

// wrapClientError turns transport failures into a hint about the server.
func (c *commandContext) wrapClientError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, syscall.ECONNREFUSED) {
		return fmt.Errorf("connect to server at %s: connection refused; start it with `splicer serve`", c.apiURL())
	}
	return err
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
