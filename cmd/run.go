package cmd

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/algolion/battery-sos/config"
	"github.com/algolion/battery-sos/internal/driver"
	"github.com/algolion/battery-sos/internal/sample"
	"github.com/algolion/battery-sos/internal/storage"
	"github.com/algolion/battery-sos/slave"
)

var (
	tracePath     string
	configPath    string
	historyDBPath string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Replay a captured sample trace through the slave pipeline",
	RunE:  runTrace,
}

func init() {
	runCmd.Flags().StringVar(&tracePath, "trace", "", "Path to a CSV trace (time_ms,current,volt0..volt11)")
	runCmd.Flags().StringVar(&configPath, "config", "", "Optional YAML config overlay on the default thresholds")
	runCmd.Flags().StringVar(&historyDBPath, "history", "", "Optional bbolt file for persisting History across runs")
	_ = runCmd.MarkFlagRequired("trace")
}

// loadFrames parses a CSV trace into driver.Frame records. Each row is
// time_ms,current_100uA,volt0_100uV,...,volt11_100uV.
func loadFrames(path string) ([]driver.Frame, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open trace %q: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse trace %q: %w", path, err)
	}

	frames := make([]driver.Frame, 0, len(rows))
	for i, row := range rows {
		if len(row) < 2+sample.SupersPerModule {
			return nil, fmt.Errorf("trace row %d: expected %d columns, got %d", i, 2+sample.SupersPerModule, len(row))
		}
		timeMS, err := strconv.ParseUint(row[0], 10, 32)
		if err != nil {
			return nil, fmt.Errorf("trace row %d: time_ms: %w", i, err)
		}
		current, err := strconv.ParseInt(row[1], 10, 32)
		if err != nil {
			return nil, fmt.Errorf("trace row %d: current: %w", i, err)
		}
		var frame driver.Frame
		frame.TimeMS = uint32(timeMS)
		frame.Current = int32(current)
		for k := 0; k < sample.SupersPerModule; k++ {
			v, err := strconv.ParseUint(row[2+k], 10, 16)
			if err != nil {
				return nil, fmt.Errorf("trace row %d: volt%d: %w", i, k, err)
			}
			frame.Voltages[k] = uint16(v)
		}
		frames = append(frames, frame)
	}
	return frames, nil
}

func runTrace(cmd *cobra.Command, args []string) error {
	frames, err := loadFrames(tracePath)
	if err != nil {
		return err
	}
	if len(frames) == 0 {
		return fmt.Errorf("trace %q is empty", tracePath)
	}

	cfg := config.DefaultConfig()
	if configPath != "" {
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}
	}

	td := driver.NewTraceDriver(frames)
	iface := td.Interface()

	if historyDBPath != "" {
		bs, err := storage.OpenBoltStore(historyDBPath)
		if err != nil {
			return err
		}
		defer bs.Close()
		iface.FlashR = bs
		iface.FlashW = bs
	}

	sv := slave.New()
	if err := sv.SetupInterface(iface); err != nil {
		return fmt.Errorf("setup interface: %w", err)
	}
	if res := sv.Initialise(cfg); res != slave.InitOK {
		return fmt.Errorf("initialise failed with code %d", res)
	}

	for i := 0; i < len(frames); i++ {
		if err := sv.EventTrigger(); err != nil {
			return fmt.Errorf("event trigger at frame %d: %w", i, err)
		}
		if i < len(frames)-1 {
			td.Advance()
		}
	}

	if err := sv.Terminate(); err != nil {
		return fmt.Errorf("terminate: %w", err)
	}

	ranks := sv.GetSoS()
	fmt.Printf("SoC: %.4f\n", sv.SoC())
	fmt.Println("Rank vector:")
	for k, r := range ranks {
		fmt.Printf("  super-cell %2d: %s\n", k, rankName(r))
	}

	diags := sv.Diagnostics().Recent(sv.Diagnostics().Len())
	if len(diags) > 0 {
		logrus.Infof("recorded %d diagnostics", len(diags))
		for _, e := range diags {
			logrus.WithFields(logrus.Fields{"code": e.Code, "kind": e.Kind}).Debug(e.Message)
		}
	}
	return nil
}

func rankName(b byte) string {
	switch b {
	case 1:
		return "NORMAL"
	case 2:
		return "ATTENTION"
	case 3:
		return "CRITICAL"
	default:
		return "UNKNOWN"
	}
}
