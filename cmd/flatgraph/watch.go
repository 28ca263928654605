package main

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
)

func (a *app) watchCmd() *cobra.Command {
	var (
		g     = &genFlags{}
		delay time.Duration
	)
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Regenerate the catalogue whenever a schema file changes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.watch(cmd.Context(), g, delay)
		},
	}
	g.register(cmd)
	cmd.Flags().DurationVar(&delay, "debounce", 200*time.Millisecond, "quiet period before regenerating")
	return cmd
}

// watch generates once, then again after every burst of schema changes,
// until ctx is done. Generation errors are logged and do not stop it.
func (a *app) watch(ctx context.Context, g *genFlags, delay time.Duration) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer w.Close()
	if err := w.Add(a.schema); err != nil {
		return fmt.Errorf("watch %s: %w", a.schema, err)
	}
	regen := func() {
		if err := a.generate(ctx, g); err != nil {
			a.logger.Error("generation failed", "error", err)
		}
	}
	regen()

	timer := time.NewTimer(delay)
	timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if !isSchemaFile(ev.Name) || ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			a.logger.Debug("schema changed", "file", ev.Name, "op", ev.Op.String())
			timer.Reset(delay)
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			a.logger.Warn("watcher error", "error", err)
		case <-timer.C:
			regen()
		}
	}
}

func isSchemaFile(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}
