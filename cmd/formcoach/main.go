package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	log "github.com/sirupsen/logrus"

	"github.com/ayusman/formcoach/internal/app"
	"github.com/ayusman/formcoach/internal/capture"
	"github.com/ayusman/formcoach/internal/config"
	"github.com/ayusman/formcoach/internal/estimator"
	"github.com/ayusman/formcoach/internal/exercise"
	"github.com/ayusman/formcoach/internal/hook"
	"github.com/ayusman/formcoach/internal/logging"
	"github.com/ayusman/formcoach/internal/metrics"
	"github.com/ayusman/formcoach/internal/server"
	"github.com/ayusman/formcoach/internal/store"
	"github.com/ayusman/formcoach/internal/tray"
)

const shutdownTimeout = 5 * time.Second

func main() {
	fmt.Println("formcoach - workout rep counter")

	env := flag.String("env", "development", "environment [prod | production | dev | development]")
	configPath := flag.String("config", "config.toml", "path to the TOML config file")
	exerciseFlag := flag.String("exercise", "", "exercise to do [pushups | squats | plank | jumpingjacks]")
	target := flag.Int("target", 0, "reps (seconds for plank) to reach. 0 - stored or default target")
	port := flag.Int("port", 0, "HTTP port. 0 - from config")
	flag.Parse()

	kind, err := exercise.ParseKind(*exerciseFlag)
	if err != nil {
		log.Fatalf("invalid -exercise: %s", err)
	}

	cfg, err := loadConfig(*env, *configPath)
	if err != nil {
		log.Fatalf("failed to load config: %s", err)
	}
	if *port > 0 {
		cfg.Port = *port
	}

	logging.Setup(logging.LoggerSetupParams{
		LogFileName:   cfg.LogsPath,
		LogToStdout:   cfg.LogToStdout,
		LogLevel:      cfg.LogLevel,
		LogFormatJSON: cfg.LogJSON,
	})

	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		log.Fatalf("failed to create data directory: %s", err)
	}

	st, err := store.New(cfg.DBPath())
	if err != nil {
		log.Fatalf("failed to initialize store: %s", err)
	}
	defer st.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.NewManager("formcoach", "app", reg)

	hooks := hook.NewManager(cfg.HooksDir)
	if err := hooks.Discover(); err != nil {
		log.Warnf("failed to discover hooks in %s: %s", cfg.HooksDir, err)
	}

	model := estimator.NewModel(func() (estimator.Estimator, error) {
		e, err := estimator.OpenMoveNet(estimator.Config{
			ModelType:  cfg.ModelType,
			ScriptPath: cfg.ScriptPath,
			PythonPath: cfg.PythonPath,
		})
		if err != nil {
			return nil, err
		}
		return e, nil
	})
	defer func() {
		if err := model.Close(); err != nil {
			log.Errorf("failed to close pose model: %s", err)
		}
	}()

	var (
		surface capture.Surface
		stream  *capture.StreamSurface
	)
	if cfg.ShowOverlay {
		surface = capture.NewWindowSurface("formcoach")
	} else {
		stream = capture.NewStreamSurface()
		surface = stream
	}

	var gate *capture.MotionGate
	if cfg.MotionGate {
		gate = capture.NewMotionGate(capture.DefaultMotionPercent, capture.DefaultSettleFrames)
	}

	hub := server.NewHub(m)

	workoutApp, err := app.New(app.Config{
		Kind:   kind,
		Target: *target,
		Source: capture.NewSource(capture.Config{
			DeviceID:  cfg.CameraID,
			VideoFile: cfg.VideoFile,
			Loop:      cfg.LoopVideo,
			Width:     cfg.FrameWidth,
			Height:    cfg.FrameHeight,
			FPS:       cfg.TargetFPS,
		}),
		Model:       model,
		Surface:     surface,
		Gate:        gate,
		MinScore:    cfg.MinScore,
		TargetFPS:   cfg.TargetFPS,
		Store:       st,
		Hooks:       hooks,
		HookTimeout: time.Duration(cfg.HookTimeout) * time.Millisecond,
		Events:      hub,
		Metrics:     m,
	})
	if err != nil {
		log.Fatalf("failed to create workout: %s", err)
	}

	staticDir := cfg.StaticDir
	if staticDir == "" {
		staticDir = findWebDir(cfg.DataDir)
	}
	if staticDir != "" {
		log.Infof("serving static files from: %s", staticDir)
	}

	srvCfg := server.Config{
		StaticDir: staticDir,
		Store:     st,
		Hooks:     hooks,
		Workout:   workoutApp,
		Events:    hub,
		Metrics:   m,
		Gatherer:  reg,
	}
	if stream != nil {
		srvCfg.Stream = stream
	}
	srv := server.New(srvCfg)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	addr := fmt.Sprintf(":%d", cfg.Port)
	srvErr := make(chan error, 1)
	go func() {
		srvErr <- srv.ListenAndServe(addr)
	}()

	var trayUI *tray.Tray
	if cfg.Tray {
		trayUI = tray.New(workoutApp.Target())
		workoutApp.Subscribe(trayUI.Update)
		trayUI.OnPause(func(paused bool) {
			var err error
			if paused {
				err = workoutApp.Pause()
			} else {
				err = workoutApp.Resume()
			}
			if err != nil {
				log.Warnf("tray pause/resume: %s", err)
			}
		})
		trayUI.OnOpen(func() {
			log.Infof("dashboard: http://localhost:%d/", cfg.Port)
		})
		trayUI.OnQuit(cancel)
	}

	workoutDone := make(chan struct{})
	go func() {
		defer close(workoutDone)
		session, err := workoutApp.Run(ctx)
		switch {
		case err != nil:
			log.Errorf("workout failed: %s", err)
			cancel()
		case session != nil:
			log.Infof("workout done: %d/%d %s, accuracy %d%%, %d kcal",
				session.Count, session.Target, kind.Info().Unit, session.Accuracy, session.Calories)
		}
	}()

	if trayUI != nil {
		go func() {
			<-ctx.Done()
			trayUI.Quit()
		}()
		// blocks until quit
		trayUI.Run()
	}

	select {
	case <-ctx.Done():
		log.Warnln("shutdown signal received ...")
	case err := <-srvErr:
		if err != nil {
			log.Errorf("server failed: %s", err)
		}
		cancel()
	}

	<-workoutDone

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancelShutdown()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Errorf("server shutdown: %s", err)
	}
}

// loadConfig reads the env section of path. A missing file yields the defaults.
func loadConfig(env, path string) (*config.Config, error) {
	cfg, err := config.Load(env, path)
	if err == nil {
		return cfg, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}

	log.Warnf("config file %s not found, using defaults", path)
	cfg = &config.Config{}
	cfg.Defaults()
	return cfg, nil
}

// findWebDir searches for the dashboard in "web", "../web" and <dataDir>/web.
// Returns the first existing directory or empty string if none found.
func findWebDir(dataDir string) string {
	candidates := []string{"web", "../web", filepath.Join(dataDir, "web")}
	for _, p := range candidates {
		if info, err := os.Stat(p); err == nil && info.IsDir() {
			if abs, err := filepath.Abs(p); err == nil {
				return abs
			}
			return p
		}
	}
	return ""
}
