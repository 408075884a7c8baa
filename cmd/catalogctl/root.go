package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/iliyamo/product-catalog/internal/client"
	"github.com/iliyamo/product-catalog/internal/logger"
)

// app carries the resolved settings of one invocation.
type app struct {
	v   *viper.Viper
	out io.Writer
}

func newRootCmd() *cobra.Command {
	a := &app{v: viper.New(), out: os.Stdout}
	var cfgFile string

	root := &cobra.Command{
		Use:           "catalogctl",
		Short:         "Command line client of the product catalog API",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			a.out = cmd.OutOrStdout()
			return a.loadConfig(cfgFile)
		},
	}

	f := root.PersistentFlags()
	f.StringVar(&cfgFile, "config", "", "config file (yaml, json or toml)")
	f.String("server", "http://localhost:8080", "API base URL")
	f.String("session", defaultSessionPath(), "file holding the session cookies")
	f.Bool("verbose", false, "log client activity to stderr")
	f.Duration("timeout", 30*time.Second, "per-request timeout")
	for _, name := range []string{"server", "session", "verbose", "timeout"} {
		_ = a.v.BindPFlag(name, f.Lookup(name))
	}

	root.AddCommand(a.loginCmd(), a.logoutCmd(), a.meCmd(), a.productsCmd())
	return root
}

// loadConfig applies flag > env (CATALOGCTL_*) > config file > default.
func (a *app) loadConfig(cfgFile string) error {
	a.v.SetEnvPrefix("catalogctl")
	a.v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	a.v.AutomaticEnv()
	if cfgFile == "" {
		return nil
	}
	a.v.SetConfigFile(cfgFile)
	if err := a.v.ReadInConfig(); err != nil {
		return fmt.Errorf("read config %q: %w", cfgFile, err)
	}
	return nil
}

func defaultSessionPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ".catalogctl-session.json"
	}
	return filepath.Join(dir, "catalogctl", "session.json")
}

// client builds an API client seeded with the saved cookies.  The returned
// save func writes the jar back to the session file.
func (a *app) client() (*client.Client, func() error, error) {
	log := logger.Nop()
	if a.v.GetBool("verbose") {
		l, err := logger.New(logger.Config{Level: "debug", DevMode: true})
		if err != nil {
			return nil, nil, err
		}
		log = l
	}
	c, err := client.New(a.v.GetString("server"),
		client.WithLogger(log),
		client.OnSessionExpired(func() {
			fmt.Fprintln(os.Stderr, "session expired; run `catalogctl login` again")
		}),
	)
	if err != nil {
		return nil, nil, err
	}
	path := a.v.GetString("session")
	saved, err := loadSession(path)
	if err != nil {
		return nil, nil, err
	}
	c.SetCookies(saved)
	save := func() error { return saveSession(path, c.Cookies()) }
	return c, save, nil
}

func (a *app) ctx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), a.v.GetDuration("timeout"))
}

func (a *app) printJSON(v any) error {
	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// withSession runs fn with a client and persists the cookies afterwards,
// also when fn fails, since a refresh may have rotated them.
func (a *app) withSession(fn func(ctx context.Context, c *client.Client) error) error {
	c, save, err := a.client()
	if err != nil {
		return err
	}
	ctx, cancel := a.ctx()
	defer cancel()
	runErr := fn(ctx, c)
	if err := save(); err != nil {
		return errors.Join(runErr, err)
	}
	return runErr
}
