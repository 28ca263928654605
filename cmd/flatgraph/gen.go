package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/syssam/flatgraph/compiler/gen"
	"github.com/syssam/flatgraph/compiler/load"
)

type genFlags struct {
	out     string
	pkg     string
	workers int
}

func (g *genFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&g.out, "out", "o", "", "output directory")
	cmd.Flags().StringVarP(&g.pkg, "package", "p", "", "import path of the generated package")
	cmd.Flags().IntVar(&g.workers, "workers", 0, "files rendered in parallel (default GOMAXPROCS)")
}

func (g *genFlags) options() []gen.Option {
	opts := []gen.Option{gen.WithTarget(g.out)}
	if g.pkg != "" {
		opts = append(opts, gen.WithPackage(g.pkg))
	}
	if g.workers > 0 {
		opts = append(opts, gen.WithWorkers(g.workers))
	}
	return opts
}

func (a *app) genCmd() *cobra.Command {
	g := &genFlags{}
	cmd := &cobra.Command{
		Use:   "gen",
		Short: "Generate a catalogue package from the schema directory",
		Example: `  flatgraph gen --schema ./schema --out ./catalog --package github.com/acme/catalog`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.generate(cmd.Context(), g)
		},
	}
	g.register(cmd)
	return cmd
}

func (a *app) generate(ctx context.Context, g *genFlags) error {
	sources, err := load.Dir(a.schema)
	if err != nil {
		return err
	}
	if err := gen.Generate(ctx, sources, g.options()...); err != nil {
		return fmt.Errorf("generate: %w", err)
	}
	a.logger.Info("catalogue generated", "schema", a.schema, "out", g.out, "sources", len(sources))
	return nil
}
