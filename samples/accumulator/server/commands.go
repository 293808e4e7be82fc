package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"lukechampine.com/uint128"

	"github.com/weegigs/wee-ledger-go/accumulator"
	"github.com/weegigs/wee-ledger-go/support"
	"github.com/weegigs/wee-ledger-go/we"
)

type cli struct {
	cfg support.Config
	as  string
}

func newRootCommand() *cobra.Command {
	c := &cli{}

	root := &cobra.Command{
		Use:           "ledger",
		Short:         "Runs and operates the accumulator",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := support.LoadConfig()
			if err != nil {
				return err
			}
			c.cfg = cfg

			return support.ConfigureLogging(cfg)
		},
	}

	root.AddCommand(
		c.serveCommand(),
		c.showCommand(),
		c.setIncrementCommand(),
		c.accumulateCommand(),
		c.tokenCommand(),
	)

	return root
}

// with runs fn against a freshly wired application.
func (c *cli) with(ctx context.Context, fn func(app *Application) error) error {
	app, cleanup, err := application(ctx, c.cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	return fn(app)
}

func (c *cli) caller(ctx context.Context) context.Context {
	return we.WithOrigin(ctx, we.AccountID(c.as))
}

func (c *cli) addCallerFlag(cmd *cobra.Command) {
	cmd.Flags().StringVar(&c.as, "as", "", "account the command is signed by")
	_ = cmd.MarkFlagRequired("as")
}

func (c *cli) serveCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serves the accumulator over http",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			shutdown, err := support.Telemetry(ctx, c.cfg)
			if err != nil {
				return err
			}
			defer shutdown()

			return c.with(ctx, func(app *Application) error {
				if app.Authenticator == nil {
					log.Warn().Msg("JWT_SECRET is not set, commands will be rejected as unsigned")
				}

				server := &http.Server{
					Addr:              ":" + strconv.Itoa(c.cfg.Port),
					Handler:           app.Handler(),
					ReadHeaderTimeout: 10 * time.Second,
				}

				go func() {
					<-ctx.Done()
					stop, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer cancel()
					_ = server.Shutdown(stop)
				}()

				log.Info().Str("addr", server.Addr).Str("store", string(c.cfg.Store)).Msg("listening")
				if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return err
				}

				return nil
			})
		},
	}
}

func (c *cli) showCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Prints the current accumulation",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.with(cmd.Context(), func(app *Application) error {
				return show(cmd.Context(), cmd.OutOrStdout(), app.Service)
			})
		},
	}
}

func (c *cli) setIncrementCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "set-increment <amount>",
		Short: "Replaces the amount added by each accumulate",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			increment, err := uint128.FromString(args[0])
			if err != nil {
				return fmt.Errorf("invalid increment %q: %w", args[0], err)
			}

			return c.with(cmd.Context(), func(app *Application) error {
				if err := app.Module.SetIncrement(c.caller(cmd.Context()), increment); err != nil {
					return err
				}

				return show(cmd.Context(), cmd.OutOrStdout(), app.Service)
			})
		},
	}
	c.addCallerFlag(cmd)

	return cmd
}

func (c *cli) accumulateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "accumulate",
		Short: "Adds the increment to the current count",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.with(cmd.Context(), func(app *Application) error {
				if err := app.Module.Accumulate(c.caller(cmd.Context())); err != nil {
					return err
				}

				return show(cmd.Context(), cmd.OutOrStdout(), app.Service)
			})
		},
	}
	c.addCallerFlag(cmd)

	return cmd
}

func (c *cli) tokenCommand() *cobra.Command {
	var ttl time.Duration

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issues a bearer token for the http api",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if c.cfg.JWTSecret == "" {
				return errors.New("JWT_SECRET is not set")
			}

			token, err := ProvideAuthenticator(c.cfg).Token(we.AccountID(c.as), ttl)
			if err != nil {
				return err
			}

			_, err = fmt.Fprintln(cmd.OutOrStdout(), token)
			return err
		},
	}
	c.addCallerFlag(cmd)
	cmd.Flags().DurationVar(&ttl, "ttl", time.Hour, "token lifetime")

	return cmd
}

func show(ctx context.Context, out io.Writer, service accumulator.Service) error {
	entity, err := service.Load(ctx, accumulator.StorageKey)
	if err != nil {
		return err
	}

	resource, err := we.Resource(&entity, nil)
	if err != nil {
		return err
	}

	encoded, err := json.MarshalIndent(resource, "", "  ")
	if err != nil {
		return err
	}

	_, err = fmt.Fprintln(out, string(encoded))
	return err
}
