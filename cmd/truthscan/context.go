package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"
	"sync"

	"github.com/joho/godotenv"
	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"truthscan/internal/config"
	"truthscan/internal/database"
	"truthscan/internal/logging"
)

type commandContext struct {
	envFlag  *string
	jsonFlag *bool

	configOnce sync.Once
	config     *config.Config
	logger     zerolog.Logger
	configErr  error

	dbOnce sync.Once
	db     *gorm.DB
	dbErr  error
}

func newCommandContext(envFlag *string, jsonFlag *bool) *commandContext {
	return &commandContext{
		envFlag:  envFlag,
		jsonFlag: jsonFlag,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var envErr error
		if c.envFlag != nil && strings.TrimSpace(*c.envFlag) != "" {
			envErr = godotenv.Load(strings.TrimSpace(*c.envFlag))
		}
		cfg := config.Load()
		c.logger = logging.New(cfg.LogLevel, cfg.LogFormat)
		if envErr != nil {
			if !errors.Is(envErr, fs.ErrNotExist) {
				c.configErr = fmt.Errorf("load env file: %w", envErr)
				return
			}
			c.logger.Debug().Str("path", *c.envFlag).Msg("No env file found, using environment variables")
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

// database connects on first use; commands that never touch the store skip it.
func (c *commandContext) database() (*gorm.DB, error) {
	c.dbOnce.Do(func() {
		cfg, err := c.ensureConfig()
		if err != nil {
			c.dbErr = err
			return
		}
		c.db, c.dbErr = database.Connect(cfg.Database)
	})
	return c.db, c.dbErr
}

func (c *commandContext) close() error {
	if c.db == nil {
		return nil
	}
	err := database.Close(c.db)
	c.db = nil
	return err
}

func (c *commandContext) component(name string) zerolog.Logger {
	return logging.Component(c.logger, name)
}

// wantJSON reports whether output should be JSON: forced by --json or when
// stdout is not a terminal.
func (c *commandContext) wantJSON(out io.Writer) bool {
	if c.jsonFlag != nil && *c.jsonFlag {
		return true
	}
	f, ok := out.(*os.File)
	if !ok {
		return true
	}
	return !isatty.IsTerminal(f.Fd()) && !isatty.IsCygwinTerminal(f.Fd())
}

func writeJSON(out io.Writer, v interface{}) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
