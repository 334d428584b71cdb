package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/marcus/dispatch/internal/config"
	"github.com/marcus/dispatch/internal/db"
	"github.com/marcus/dispatch/internal/history"
)

var historyLimitFlag int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent execution outcomes",
	RunE:  runHistory,
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimitFlag, "limit", "n", 20, "Max outcomes to show")
	rootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPathFlag)
	if err != nil {
		return err
	}

	database, err := db.Open(cfg.Paths.Database)
	if err != nil {
		return fmt.Errorf("opening history database: %w", err)
	}
	defer func() { _ = database.Close() }()

	outcomes, err := history.NewStore(database).Recent(historyLimitFlag)
	if err != nil {
		return err
	}

	if len(outcomes) == 0 {
		fmt.Println("no outcomes recorded")
		return nil
	}

	for _, o := range outcomes {
		status := "failed"
		if o.Success {
			status = "ok"
		} else if o.Stage != "" {
			status = "rejected"
		}
		fmt.Printf("%s  %-8s  %-10s  %s\n",
			o.Timestamp.Local().Format("2006-01-02 15:04:05"),
			shortID(o.TaskID), status, o.Result)
	}
	return nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
