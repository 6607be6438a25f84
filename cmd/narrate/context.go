package main

import (
	"context"
	"io"
	"os"
	"sync"

	"github.com/mattn/go-isatty"

	"github.com/lexiqai/narration-gateway/internal/config"
	"github.com/lexiqai/narration-gateway/internal/narrator"
	"github.com/lexiqai/narration-gateway/internal/observability"
)

type commandContext struct {
	verbose *bool

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(verbose *bool) *commandContext {
	return &commandContext{verbose: verbose}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		c.config, c.configErr = config.Load()
	})
	return c.config, c.configErr
}

// initLogging sends logs to w, pretty-printed when w is a terminal or
// LOG_PRETTY is set
func (c *commandContext) initLogging(w io.Writer) {
	level := config.GetEnv("LOG_LEVEL", "warn")
	if c.verbose != nil && *c.verbose {
		level = "debug"
	}
	pretty := config.GetEnv("LOG_PRETTY", "") == "true" || isTerminal(w)
	observability.InitLoggerTo(w, level, pretty)
}

// withComponents builds the narration service for one command and releases it afterwards
func (c *commandContext) withComponents(ctx context.Context, fn func(*narrator.Components) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	components, err := narrator.FromConfig(ctx, cfg)
	if err != nil {
		return err
	}
	defer components.Close()
	return fn(components)
}

func isTerminal(w io.Writer) bool {
	file, ok := w.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
