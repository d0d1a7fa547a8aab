package main

import (
	"flag"
	"fmt"
	"os"

	kinarm "kin_arm"

	json "github.com/goccy/go-json"
	"github.com/golang/geo/r3"
	"github.com/joho/godotenv"
	"go.viam.com/rdk/logging"
	"go.viam.com/rdk/spatialmath"
	"go.viam.com/rdk/utils"
	"gonum.org/v1/plot/vg"
)

func main() {
	err := realMain()
	if err != nil {
		panic(err)
	}
}

func realMain() error {
	_ = godotenv.Load()

	configFile := flag.String("config", os.Getenv("KIN_ARM_CONFIG"), "arm config file (.json, .yaml)")
	x := flag.Float64("x", 0.25, "target x (m)")
	y := flag.Float64("y", 0.25, "target y (m)")
	z := flag.Float64("z", 0, "target z (m)")
	roll := flag.Float64("roll", 0, "target roll (degrees)")
	pitch := flag.Float64("pitch", 0, "target pitch (degrees)")
	yaw := flag.Float64("yaw", 0, "target yaw (degrees)")
	plotFile := flag.String("plot", "", "save the solved pose to this image file")
	projection := flag.String("projection", "xz", "plot projection: xy, xz or yz")
	numeric := flag.Bool("numeric", false, "skip the closed form solver")
	debug := flag.Bool("debug", false, "enable debug logging")
	flag.Parse()

	logger := logging.NewLogger("kin-arm-cli")
	if *debug {
		logger = logging.NewDebugLogger("kin-arm-cli")
	}

	cfg, err := loadConfig(*configFile, logger)
	if err != nil {
		return err
	}

	arm, err := kinarm.NewArm(cfg)
	if err != nil {
		return err
	}

	solver, err := kinarm.NewSolver(arm, kinarm.SolverConfig{
		DisableClosedForm: *numeric,
		Logger:            logger,
	})
	if err != nil {
		return err
	}

	goal := kinarm.Goal{Position: r3.Vector{X: *x, Y: *y, Z: *z}}
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "roll", "pitch", "yaw":
			goal.Orientation = &spatialmath.EulerAngles{
				Roll:  utils.DegToRad(*roll),
				Pitch: utils.DegToRad(*pitch),
				Yaw:   utils.DegToRad(*yaw),
			}
		}
	})

	logger.Infof("Solving %s (reach %.4f m) for target %v", arm.Name(), arm.MaxReach(), goal.Position)
	sol, err := solver.SolveDetailed(goal)
	if err != nil {
		return err
	}

	out, err := json.MarshalIndent(sol, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))

	if err := arm.ApplyPose(sol.Pose); err != nil {
		return err
	}
	logger.Infof("Applied %v", sol.Pose)

	if *plotFile != "" {
		proj, err := kinarm.ParseProjection(*projection)
		if err != nil {
			return err
		}
		if err := kinarm.SavePosePlot(arm, sol.Pose, proj, *plotFile, 6*vg.Inch); err != nil {
			return err
		}
		logger.Infof("Saved %s projection to %s", proj, *plotFile)
	}

	return nil
}

// loadConfig reads a named config file and fails if it cannot be used. Only
// an empty path selects the default arm.
func loadConfig(path string, logger logging.Logger) (kinarm.ArmConfig, error) {
	if path == "" {
		logger.Info("Using default arm configuration")
		return kinarm.DefaultArmConfig(), nil
	}
	cfg, err := kinarm.LoadArmConfigFromFile(path)
	if err != nil {
		return kinarm.ArmConfig{}, fmt.Errorf("loading arm config %s: %w", path, err)
	}
	logger.Infof("Loaded arm config %q from %s", cfg.Name, path)
	return cfg, nil
}
