package commands

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/marcus/dispatch/internal/backend"
	"github.com/marcus/dispatch/internal/calibration"
	"github.com/marcus/dispatch/internal/config"
	"github.com/marcus/dispatch/internal/logging"
)

var (
	calibrateInputFlag   string
	calibrateConfirmFlag string
)

var calibrateCmd = &cobra.Command{
	Use:   "calibrate",
	Short: "Record backend target coordinates",
	Long: `Save the input and confirmation target coordinates the engine clicks
during dispatch.

Pass both targets as flags (--input X,Y --confirm X,Y) or run without
flags for interactive entry.`,
	RunE: runCalibrate,
}

func init() {
	calibrateCmd.Flags().StringVar(&calibrateInputFlag, "input", "", "Input target as X,Y")
	calibrateCmd.Flags().StringVar(&calibrateConfirmFlag, "confirm", "", "Confirmation target as X,Y")
	rootCmd.AddCommand(calibrateCmd)
}

func runCalibrate(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPathFlag)
	if err != nil {
		return err
	}
	if err := logging.Init(cfg.Logging); err != nil {
		return err
	}

	store := calibration.NewStore(cfg.Paths.Calibration)

	if calibrateInputFlag != "" || calibrateConfirmFlag != "" {
		var c calibration.Coords
		if c.InputTarget, err = parsePoint(calibrateInputFlag); err != nil {
			return fmt.Errorf("--input: %w", err)
		}
		if c.ConfirmTarget, err = parsePoint(calibrateConfirmFlag); err != nil {
			return fmt.Errorf("--confirm: %w", err)
		}
		if err := store.Save(c); err != nil {
			return err
		}
		fmt.Printf("calibration saved to %s\n", store.Path())
		return nil
	}

	reader := &stdinPointerReader{in: bufio.NewScanner(os.Stdin)}
	prompt := func(target string) {
		fmt.Printf("Enter the %s coordinate as X,Y: ", target)
	}
	if _, err := store.Capture(reader, prompt); err != nil {
		return err
	}
	fmt.Printf("calibration saved to %s\n", store.Path())
	return nil
}

// stdinPointerReader captures coordinates typed by the operator. Real
// pointer capture belongs to the automation backend embedding programs
// inject.
type stdinPointerReader struct {
	in *bufio.Scanner
}

func (r *stdinPointerReader) PointerPosition() (backend.Point, error) {
	if !r.in.Scan() {
		return backend.Point{}, fmt.Errorf("reading coordinate: %w", r.in.Err())
	}
	return parsePoint(r.in.Text())
}

func parsePoint(s string) (backend.Point, error) {
	var p backend.Point
	parts := strings.Split(strings.TrimSpace(s), ",")
	if len(parts) != 2 {
		return p, fmt.Errorf("expected X,Y, got %q", s)
	}
	if _, err := fmt.Sscanf(strings.TrimSpace(parts[0]), "%d", &p.X); err != nil {
		return p, fmt.Errorf("bad X in %q", s)
	}
	if _, err := fmt.Sscanf(strings.TrimSpace(parts[1]), "%d", &p.Y); err != nil {
		return p, fmt.Errorf("bad Y in %q", s)
	}
	return p, nil
}
