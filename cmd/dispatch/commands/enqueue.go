package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/marcus/dispatch/internal/config"
	"github.com/marcus/dispatch/internal/task"
)

var (
	enqueuePriorityFlag string
	enqueueContextFlag  []string
)

var enqueueCmd = &cobra.Command{
	Use:   "enqueue <payload>",
	Short: "Queue a task via the spool directory",
	Long: `Write a task file into the spool directory. A running engine picks it
up immediately; otherwise it is ingested on the next start.`,
	Args: cobra.ExactArgs(1),
	RunE: runEnqueue,
}

func init() {
	enqueueCmd.Flags().StringVarP(&enqueuePriorityFlag, "priority", "p", "medium", "Task priority (critical|high|medium|low)")
	enqueueCmd.Flags().StringArrayVarP(&enqueueContextFlag, "context", "c", nil, "Context entry key=value (repeatable)")
	rootCmd.AddCommand(enqueueCmd)
}

func runEnqueue(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPathFlag)
	if err != nil {
		return err
	}

	ctx := make(map[string]any, len(enqueueContextFlag))
	for _, entry := range enqueueContextFlag {
		k, v, ok := strings.Cut(entry, "=")
		if !ok {
			return fmt.Errorf("context entry %q is not key=value", entry)
		}
		ctx[k] = v
	}

	payload := map[string]any{
		"payload":  args[0],
		"priority": task.ParsePriority(enqueuePriorityFlag).String(),
		"context":  ctx,
	}
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return err
	}

	if err := os.MkdirAll(cfg.Paths.Spool, 0755); err != nil {
		return fmt.Errorf("spool dir: %w", err)
	}

	name := fmt.Sprintf("task-%s-%s.json", time.Now().Format("20060102-150405"), uuid.NewString()[:8])
	path := filepath.Join(cfg.Paths.Spool, name)

	// Write hidden, then rename, so the watcher never sees a partial file.
	tmp := filepath.Join(cfg.Paths.Spool, "."+name)
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("writing task file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("publishing task file: %w", err)
	}

	fmt.Printf("queued %s\n", name)
	return nil
}
