package main

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
)

// newWatchCmd creates the "watch" subcommand for re-synthesizing on config
// changes.
func newWatchCmd(root *rootOptions) *cobra.Command {
	var (
		outputDir string
		debounce  time.Duration
	)

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Re-synthesize when the config file changes",
		Long: `Watch synthesizes the cloud assembly, then writes it again every time the
config file changes. Rapid changes are debounced. Invalid configurations are
reported and the previous output is left in place.

Examples:
    rds-scheduler watch
    rds-scheduler watch --config prod.yaml -o dist --debounce 1s`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(cmd, root, outputDir, debounce)
		},
	}

	cmd.Flags().StringVarP(&outputDir, "output", "o", "dist", "Output directory for the cloud assembly")
	cmd.Flags().DurationVar(&debounce, "debounce", 500*time.Millisecond, "Debounce duration for rapid changes")

	return cmd
}

func runWatch(cmd *cobra.Command, root *rootOptions, outputDir string, debounce time.Duration) error {
	out := cmd.OutOrStdout()
	errOut := cmd.ErrOrStderr()

	fmt.Fprintln(out, "Running initial synth...")
	rebuild := func() {
		_, asm, err := root.synthesize(cmd)
		if err == nil {
			_, err = asm.Write(outputDir)
		}
		if err != nil {
			fmt.Fprintf(errOut, "Synth failed: %v\n", err)
			if hint := errors.FlattenHints(err); hint != "" {
				fmt.Fprintf(errOut, "Hint: %s\n", hint)
			}
			return
		}
		fmt.Fprintf(out, "Wrote %s (%d stacks)\n", outputDir, len(asm.Order))
	}
	rebuild()

	path := root.v.ConfigFileUsed()
	if path == "" {
		return errors.WithHint(errors.New("no config file to watch"), "create one with: rds-scheduler init")
	}
	path, err := filepath.Abs(path)
	if err != nil {
		return err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Wrap(err, "failed to create watcher")
	}
	defer func() {
		_ = watcher.Close()
	}()

	// Editors often replace the file, so watch the directory.
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		return errors.Wrapf(err, "failed to watch %s", filepath.Dir(path))
	}

	var debounceTimer *time.Timer
	rebuildChan := make(chan struct{}, 1)

	fmt.Fprintf(out, "\nWatching %s for changes... (Ctrl+C to stop)\n", path)

	ctx := cmd.Context()
	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != path {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}

			// Debounce: reset timer on each change
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			debounceTimer = time.AfterFunc(debounce, func() {
				select {
				case rebuildChan <- struct{}{}:
				default:
				}
			})

		case <-rebuildChan:
			fmt.Fprintf(out, "\n[%s] Change detected, synthesizing...\n", time.Now().Format("15:04:05"))
			rebuild()

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			fmt.Fprintf(errOut, "Watch error: %v\n", err)

		case <-ctx.Done():
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			fmt.Fprintln(out, "\nStopping watch...")
			return nil
		}
	}
}
