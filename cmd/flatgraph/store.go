package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/syssam/flatgraph/dialect"
	fsql "github.com/syssam/flatgraph/dialect/sql"
)

type storeFlags struct {
	driver string
	dsn    string
}

func (a *app) storeCmd() *cobra.Command {
	s := &storeFlags{}
	cmd := &cobra.Command{
		Use:   "store",
		Short: "Save and load workspaces in a SQL database",
	}
	cmd.PersistentFlags().StringVar(&s.driver, "driver", dialect.SQLite, "database driver: sqlite, postgres or mysql")
	cmd.PersistentFlags().StringVar(&s.dsn, "dsn", "file:flatgraph.db", "data source name")

	var from, to string
	save := &cobra.Command{
		Use:   "save NAME FILE",
		Short: "Decode FILE and store it under NAME",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := a.registry()
			if err != nil {
				return err
			}
			ws, err := a.decode(args[1], from, "", reg)
			if err != nil {
				return err
			}
			return a.withStore(cmd.Context(), s, func(st *fsql.Store) error {
				if err := st.Migrate(cmd.Context()); err != nil {
					return err
				}
				return st.Save(cmd.Context(), args[0], ws)
			})
		},
	}
	save.Flags().StringVar(&from, "from", "", "codec of FILE (default by extension)")

	load := &cobra.Command{
		Use:   "load NAME FILE",
		Short: "Write the workspace stored under NAME to FILE",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := a.registry()
			if err != nil {
				return err
			}
			enc, err := codec(to, args[1])
			if err != nil {
				return err
			}
			return a.withStore(cmd.Context(), s, func(st *fsql.Store) error {
				ws, err := st.Load(cmd.Context(), args[0], reg)
				if err != nil {
					return err
				}
				f, err := os.Create(args[1])
				if err != nil {
					return err
				}
				if err := enc.Encode(f, ws); err != nil {
					f.Close()
					return err
				}
				return f.Close()
			})
		},
	}
	load.Flags().StringVar(&to, "to", "", "codec of FILE (default by extension)")

	list := &cobra.Command{
		Use:   "list",
		Short: "List stored workspaces",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withStore(cmd.Context(), s, func(st *fsql.Store) error {
				if err := st.Migrate(cmd.Context()); err != nil {
					return err
				}
				names, err := st.List(cmd.Context())
				if err != nil {
					return err
				}
				for _, n := range names {
					fmt.Fprintln(cmd.OutOrStdout(), n)
				}
				return nil
			})
		},
	}

	del := &cobra.Command{
		Use:   "delete NAME",
		Short: "Delete the workspace stored under NAME",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withStore(cmd.Context(), s, func(st *fsql.Store) error {
				return st.Delete(cmd.Context(), args[0])
			})
		},
	}

	cmd.AddCommand(save, load, list, del)
	return cmd
}

// withStore opens the database, runs fn and reports the statement
// statistics.
func (a *app) withStore(ctx context.Context, s *storeFlags, fn func(*fsql.Store) error) (err error) {
	drv, err := fsql.Open(s.driver, s.dsn)
	if err != nil {
		return err
	}
	stats := fsql.NewStatsDriver(drv, fsql.WithLogger(a.logger))
	defer func() {
		a.logger.DebugContext(ctx, "database statistics", "stats", stats.QueryStats().Snapshot().String())
		if cerr := drv.Close(); err == nil {
			err = cerr
		}
	}()
	return fn(fsql.NewStore(stats, fsql.WithStoreLogger(a.logger)))
}
