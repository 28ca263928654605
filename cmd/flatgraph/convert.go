package main

import (
	"bufio"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func (a *app) convertCmd() *cobra.Command {
	var from, to string
	cmd := &cobra.Command{
		Use:     "convert IN OUT",
		Short:   "Convert a record file between codecs",
		Example: `  flatgraph convert --to binary office.idf office.fgb`,
		Args:    cobra.ExactArgs(2),
		RunE: func(_ *cobra.Command, args []string) error {
			reg, err := a.registry()
			if err != nil {
				return err
			}
			ws, err := a.decode(args[0], from, "", reg)
			if err != nil {
				return err
			}
			enc, err := codec(to, args[1])
			if err != nil {
				return err
			}
			f, err := os.Create(args[1])
			if err != nil {
				return err
			}
			bw := bufio.NewWriter(f)
			if err := enc.Encode(bw, ws); err != nil {
				f.Close()
				return fmt.Errorf("encode %s: %w", args[1], err)
			}
			if err := bw.Flush(); err != nil {
				f.Close()
				return err
			}
			a.logger.Info("converted", "in", args[0], "out", args[1], "codec", enc.Name(), "records", ws.Len())
			return f.Close()
		},
	}
	cmd.Flags().StringVar(&from, "from", "", "codec of IN (default by extension)")
	cmd.Flags().StringVar(&to, "to", "", "codec of OUT (default by extension)")
	return cmd
}
