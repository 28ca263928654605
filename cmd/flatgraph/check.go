package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/syssam/flatgraph"
	"github.com/syssam/flatgraph/policy"
	"github.com/syssam/flatgraph/registry"
	"github.com/syssam/flatgraph/schema"
	"github.com/syssam/flatgraph/translate"
	"github.com/syssam/flatgraph/workspace"
)

func (a *app) checkCmd() *cobra.Command {
	var (
		from      string
		fileType  string
		roundTrip bool
		exclude   []string
		orphans   bool
	)
	cmd := &cobra.Command{
		Use:   "check FILE",
		Short: "Validate a record file and translate it into an object graph",
		Long: `check decodes FILE, validates every record against the schema and
translates the records into an object graph. Issues are printed grouped
by severity. The command fails when any error is found.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := a.registry()
			if err != nil {
				return err
			}
			ws, err := a.decode(args[0], from, schema.FileType(fileType), reg)
			if err != nil {
				return err
			}
			var p policy.Policy
			if len(exclude) > 0 {
				p = append(p, policy.DenyTypes(exclude...))
			}
			if orphans {
				p = append(p, policy.DenyOrphans())
			}
			return a.check(cmd.OutOrStdout(), ws, roundTrip, p)
		},
	}
	cmd.Flags().StringVar(&from, "from", "", "codec of FILE (default by extension)")
	cmd.Flags().StringVar(&fileType, "file-type", string(schema.FileAll), "file type the records belong to")
	cmd.Flags().BoolVar(&roundTrip, "roundtrip", false, "translate the graph back and report forward issues")
	cmd.Flags().StringSliceVar(&exclude, "exclude", nil, "record types left out of the round trip")
	cmd.Flags().BoolVar(&orphans, "drop-orphans", false, "leave unreferenced objects out of the round trip")
	return cmd
}

func (a *app) decode(path, from string, ft schema.FileType, reg *registry.Registry) (*workspace.Workspace, error) {
	c, err := codec(from, path)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	ws, err := c.Decode(f, reg)
	if err != nil {
		return nil, err
	}
	if ft == "" || ft == ws.FileType() {
		return ws, nil
	}
	scoped := workspace.New(reg, workspace.WithFileType(ft), workspace.WithLogger(a.logger))
	for _, r := range ws.Records() {
		if err := scoped.Add(r); err != nil {
			return nil, err
		}
	}
	return scoped, nil
}

func (a *app) check(w io.Writer, ws *workspace.Workspace, roundTrip bool, p policy.Policy) error {
	var failed bool
	if err := ws.Validate(); err != nil {
		failed = true
		fmt.Fprintln(w, "Validation:")
		for _, e := range flatten(err) {
			fmt.Fprintf(w, "  - %v\n", e)
		}
	}
	opts := []translate.Option{translate.WithLogger(a.logger), translate.WithFileType(ws.FileType())}
	rev, err := translate.NewReverse(ws.Registry(), opts...).Translate(ws)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "Reverse translation (%d objects):\n%s\n", rev.Model.Len(), rev.Issues.String())
	failed = failed || rev.HasErrors()
	if roundTrip {
		if len(p) > 0 {
			opts = append(opts, translate.WithPrecheck(p.Precheck))
		}
		fwd, err := translate.NewForward(ws.Registry(), opts...).Translate(rev.Model)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "Forward translation (%d records):\n%s\n", fwd.Workspace.Len(), fwd.Issues.String())
		failed = failed || fwd.HasErrors()
	}
	if failed {
		return errors.New("check failed")
	}
	return nil
}

// flatten lists the errors of an aggregate.
func flatten(err error) []error {
	var agg *flatgraph.AggregateError
	if errors.As(err, &agg) {
		return agg.Errors
	}
	return []error{err}
}
