// Huginn demo entrypoint.
//
// This is not the production transport glue for any particular robot
// platform;
// it wires the estimator, coordinator, metrics, and snapshot sink
// together and feeds them a canned synthetic event sequence so the full
// pipeline can be exercised end-to-end.
package main

import (
	"context"
	"flag"
	"log"
	"math"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/asgard/huginn/internal/config"
	"github.com/asgard/huginn/internal/coordinator"
	"github.com/asgard/huginn/internal/metrics"
	"github.com/asgard/huginn/internal/slam"
	"github.com/asgard/huginn/internal/slamstate"
	"github.com/asgard/huginn/internal/snapshot"
	"github.com/asgard/huginn/pkg/utils"
)

var (
	configFile = flag.String("config", "", "TOML configuration file path")
)

// Huginn wires the estimator subsystems together.
type Huginn struct {
	cfg    *config.Config
	logger *logrus.Logger

	state       *slamstate.State
	engine      *slam.Engine
	coordinator *coordinator.Coordinator
	sink        *snapshot.ChannelSink
	metrics     *metrics.Metrics

	httpServer *http.Server

	mu      sync.Mutex
	running bool

	ctx    context.Context
	cancel context.CancelFunc
}

func main() {
	flag.Parse()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	h := &Huginn{ctx: ctx, cancel: cancel}

	if err := h.Initialize(); err != nil {
		log.Fatalf("failed to initialize huginn: %v", err)
	}
	if err := h.Start(); err != nil {
		log.Fatalf("failed to start huginn: %v", err)
	}

	go h.runDemoSequence()

	log.Println("huginn is running — press Ctrl+C to shut down")
	<-sigCh
	log.Println("shutdown signal received")

	if err := h.Shutdown(); err != nil {
		log.Printf("shutdown error: %v", err)
	}
	log.Println("huginn shutdown complete")
}

// Initialize loads configuration and wires every subsystem.
func (h *Huginn) Initialize() error {
	cfg, err := config.Load(*configFile)
	if err != nil {
		return err
	}
	h.cfg = cfg

	h.logger = utils.NewLogger(cfg.Logging.Level, "stdout")
	if !cfg.Logging.JSON {
		h.logger.SetFormatter(&logrus.TextFormatter{})
	}

	h.metrics = metrics.Get()

	if cfg.Association.ThresholdRT == 0 {
		h.logger.Warn("association.threshold_rt is 0: every landmark observation will seed a new landmark instead of matching an existing one")
	}

	h.state = slamstate.New()
	engineCfg := slam.Config{
		ThresholdRT: cfg.Association.ThresholdRT,
		RangeVr:     cfg.Noise.RangeVr,
		BearingVb:   cfg.Noise.BearingVb,
		ProcessC:    cfg.Noise.ProcessC,
		NoBearing:   cfg.Noise.NoBearing,
	}
	h.engine = slam.New(h.state, engineCfg, h.logger, h.metrics)

	h.sink = snapshot.NewChannelSink(cfg.Snapshot.BufferSize)
	h.coordinator = coordinator.New(h.state, h.engine, h.sink, h.logger, h.metrics)

	if cfg.Metrics.Enabled {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		h.httpServer = &http.Server{Addr: cfg.Metrics.ListenAddr, Handler: mux}
	}

	return nil
}

// Start launches the coordinator loop, metrics server, and snapshot
// drain goroutines.
func (h *Huginn) Start() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.running {
		return nil
	}

	go func() {
		if err := h.coordinator.Run(h.ctx); err != nil && err != context.Canceled {
			h.logger.WithError(err).Error("coordinator stopped")
		}
	}()

	go h.drainSnapshots()

	if h.httpServer != nil {
		go func() {
			if err := h.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				h.logger.WithError(err).Error("metrics server stopped")
			}
		}()
	}

	h.running = true
	return nil
}

func (h *Huginn) drainSnapshots() {
	for {
		select {
		case <-h.ctx.Done():
			return
		case s := <-h.sink.Snapshots():
			h.logger.WithFields(logrus.Fields{
				"pose":      s.Pose,
				"landmarks": len(s.Landmarks),
			}).Debug("snapshot")
		}
	}
}

// Shutdown stops every subsystem, waiting briefly for the HTTP server
// to drain in-flight requests.
func (h *Huginn) Shutdown() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.running {
		return nil
	}
	h.cancel()

	if h.httpServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := h.httpServer.Shutdown(ctx); err != nil {
			return err
		}
	}

	h.running = false
	return nil
}

// runDemoSequence feeds a short synthetic trajectory through the
// coordinator: an initializing odometry event, two prediction-only
// odometry events, and two landmark batches that observe the same line
// from two poses. Under the default threshold_rt of 0 the second batch
// seeds a second landmark instead of matching the first.
func (h *Huginn) runDemoSequence() {
	t0 := time.Now()

	h.submitOdom(coordinator.OdometryEvent{
		Timestamp: t0,
		Pose:      coordinator.Pose2D{X: 0, Y: 0, OrientationW: 1},
	})

	h.submitOdom(coordinator.OdometryEvent{
		Timestamp: t0.Add(100 * time.Millisecond),
		Twist:     coordinator.Twist2D{LinearX: 1.0, AngularZ: 0},
	})

	h.submitLandmarks(coordinator.LandmarkBatchEvent{
		Observations: []slam.LandmarkObservation{
			{Radius: 2.0, Angle: math.Pi / 2, X: 2.0, Y: 0.0},
		},
	})

	h.submitOdom(coordinator.OdometryEvent{
		Timestamp: t0.Add(200 * time.Millisecond),
		Twist:     coordinator.Twist2D{LinearX: 0.2, AngularZ: 0},
	})

	h.submitLandmarks(coordinator.LandmarkBatchEvent{
		Observations: []slam.LandmarkObservation{
			{Radius: 1.8, Angle: math.Pi / 2, X: 1.8, Y: 0.0},
		},
	})
}

func (h *Huginn) submitOdom(evt coordinator.OdometryEvent) {
	if err := h.coordinator.SubmitOdometry(h.ctx, evt); err != nil {
		h.logger.WithError(err).Warn("failed to submit odometry event")
	}
}

func (h *Huginn) submitLandmarks(evt coordinator.LandmarkBatchEvent) {
	if err := h.coordinator.SubmitLandmarks(h.ctx, evt); err != nil {
		h.logger.WithError(err).Warn("failed to submit landmark batch")
	}
}
