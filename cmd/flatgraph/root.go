package main

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/syssam/flatgraph/compiler/load"
	"github.com/syssam/flatgraph/dialect"
	"github.com/syssam/flatgraph/dialect/binary"
	"github.com/syssam/flatgraph/dialect/text"
	"github.com/syssam/flatgraph/registry"
)

// defaultConfig is read when present; --config names a file that must exist.
const defaultConfig = "flatgraph.yaml"

// app holds the state shared by all commands.
type app struct {
	cfgFile string
	schema  string
	verbose bool
	logger  *slog.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}
	cmd := &cobra.Command{
		Use:   "flatgraph",
		Short: "Translate between object graphs and flat record files",
		Long: `flatgraph works with schema-driven flat record files.

Schemas are YAML documents describing record types. Values in a
flatgraph.yaml file act as defaults for the flags of every command:

  schema: ./schema
  out: ./catalog
  package: github.com/acme/catalog
  driver: sqlite
  dsn: file:models.db`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			level := slog.LevelInfo
			if a.verbose {
				level = slog.LevelDebug
			}
			a.logger = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
			return a.applyConfig(cmd)
		},
	}
	cmd.PersistentFlags().StringVarP(&a.cfgFile, "config", "c", "", "config file (default "+defaultConfig+" when present)")
	cmd.PersistentFlags().StringVarP(&a.schema, "schema", "s", "schema", "schema directory")
	cmd.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "debug logging")
	cmd.AddCommand(
		a.genCmd(),
		a.watchCmd(),
		a.checkCmd(),
		a.convertCmd(),
		a.storeCmd(),
	)
	return cmd
}

// applyConfig sets every flag the user did not pass from the config file.
func (a *app) applyConfig(cmd *cobra.Command) error {
	path, required := a.cfgFile, true
	if path == "" {
		path, required = defaultConfig, false
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) && !required {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	values := make(map[string]string)
	if err := yaml.Unmarshal(data, &values); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	for name, v := range values {
		f := cmd.Flags().Lookup(name)
		if f == nil {
			a.logger.Debug("config key has no flag", "command", cmd.Name(), "key", name)
			continue
		}
		if f.Changed {
			continue
		}
		if err := cmd.Flags().Set(name, v); err != nil {
			return fmt.Errorf("config %s: %s: %w", path, name, err)
		}
	}
	return nil
}

// registry loads the schema directory and builds the registry.
func (a *app) registry() (*registry.Registry, error) {
	sources, err := load.Dir(a.schema)
	if err != nil {
		return nil, err
	}
	return registry.Build(sources, registry.WithLogger(a.logger))
}

// codec returns the named codec, or guesses it from the file extension.
func codec(name, path string) (dialect.Codec, error) {
	if name == "" {
		switch strings.ToLower(filepath.Ext(path)) {
		case ".bin", ".msgpack", ".fgb":
			name = binary.Name
		default:
			name = text.Name
		}
	}
	c, ok := dialect.Lookup(name)
	if !ok {
		return nil, fmt.Errorf("unknown codec %q (have %s)", name, strings.Join(dialect.Codecs(), ", "))
	}
	return c, nil
}
