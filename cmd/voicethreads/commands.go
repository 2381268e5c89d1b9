package main

import (
	"fmt"
	"strconv"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/urfave/cli/v2"

	"github.com/alphabot-ai/voicethreads/internal/notify"
	"github.com/alphabot-ai/voicethreads/internal/shortcode"
)

// migrateCommand applies the schema without starting the server. Opening a
// store migrates it. River's tables are added too when River dispatches.
func migrateCommand() *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "Create or upgrade the database schema",
		Action: func(c *cli.Context) error {
			cfg, logger, err := setup(c)
			if err != nil {
				return err
			}

			st, err := openStore(c.Context, cfg.Database)
			if err != nil {
				return err
			}
			defer st.Close()
			logger.Info().Str("driver", cfg.Database.Driver).Msg("schema up to date")

			if cfg.Notify.Dispatcher == "river" {
				pool, err := pgxpool.New(c.Context, cfg.Database.DSN)
				if err != nil {
					return fmt.Errorf("failed to create connection pool: %w", err)
				}
				defer pool.Close()
				if err := notify.MigrateRiver(c.Context, pool); err != nil {
					return err
				}
				logger.Info().Msg("river schema up to date")
			}
			return nil
		},
	}
}

func codeCommand() *cli.Command {
	return &cli.Command{
		Name:  "code",
		Usage: "Convert between comment ids and short codes",
		Subcommands: []*cli.Command{
			{
				Name:      "encode",
				Usage:     "Print the short code for a comment id",
				ArgsUsage: "<id>",
				Action: func(c *cli.Context) error {
					if c.NArg() != 1 {
						return fmt.Errorf("expected exactly one id")
					}
					id, err := strconv.ParseInt(c.Args().First(), 10, 64)
					if err != nil {
						return fmt.Errorf("invalid id %q: %w", c.Args().First(), err)
					}
					code, err := shortcode.Encode(id)
					if err != nil {
						return err
					}
					fmt.Fprintln(c.App.Writer, code)
					return nil
				},
			},
			{
				Name:      "decode",
				Usage:     "Print the comment id for a short code",
				ArgsUsage: "<code>",
				Action: func(c *cli.Context) error {
					if c.NArg() != 1 {
						return fmt.Errorf("expected exactly one code")
					}
					id, err := shortcode.Decode(c.Args().First())
					if err != nil {
						return err
					}
					fmt.Fprintln(c.App.Writer, id)
					return nil
				},
			},
		},
	}
}
