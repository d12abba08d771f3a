// cmd/framesim/main.go

// framesim drives a synthetic scene through the frame scheduler and prints
// one line per frame.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"framesched/internal/frame"
	"framesched/internal/job"
	"framesched/internal/pipeline"
	"framesched/internal/report"
	"framesched/internal/scene"
	"framesched/internal/sched"
)

func main() {
	var (
		configPath = flag.String("config", "config.yml", "path to the YAML config")
		frames     = flag.Int("frames", 120, "frames to render before exiting")
		rows       = flag.Int("rows", 8, "rows in the synthetic scene")
		cols       = flag.Int("cols", 8, "cells per row")
		tasks      = flag.Int("tasks", 6, "tasks queued per frame")
		taskCost   = flag.Duration("task-cost", 2*time.Millisecond, "upper bound of one task's CPU time")
		nodeCost   = flag.Duration("node-cost", 20*time.Microsecond, "CPU time of one layout hook")
		seed       = flag.Uint64("seed", 1, "random seed for the task mix")
		phases     = flag.Bool("phases", false, "print the per-phase time split")
	)
	flag.Parse()

	// Read the configuration
	cfg, err := sched.LoadWithEnv(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(2)
	}
	log := newLogger(cfg.LogLevel)
	log.WithFields(logrus.Fields{
		"target_fps": cfg.TargetFPS,
		"deadline":   cfg.FrameDeadline(),
		"policy":     cfg.BudgetPolicy,
		"skip":       cfg.SkipPolicy,
		"parallel":   cfg.ParallelLayout,
	}).Info("config loaded")

	// Build the scene and its pipeline
	sc := scene.New(scene.Cost{Build: *nodeCost / 2, Layout: *nodeCost, Paint: *nodeCost / 2}, log)
	coord := pipeline.NewCoordinator(sc, cfg.PipelineOptions(log))
	sc.Attach(coord)
	if _, err := sc.Grid(*rows, *cols); err != nil {
		log.WithError(err).Fatal("building scene")
	}

	s := sched.New(cfg, sched.WithLogger(log), sched.WithPipeline(pipeline.Bind(coord, sc)))
	defer func() {
		if err := s.Close(); err != nil {
			log.WithError(err).Error("closing scheduler")
		}
	}()
	if cfg.CSVPath != "" {
		if err := s.EnableCSVLogging(cfg.CSVPath); err != nil {
			log.WithError(err).Fatal("enabling csv log")
		}
	}

	// First frame lays out the whole scene before any tick arrives
	coord.MarkAllNeedsBuild()
	if rep, ok := s.ScheduleWarmUpFrame(); ok {
		fmt.Println(report.Line(rep))
	}

	// Every frame invalidates one row and queues a task mix
	load := job.NewLoad(*tasks, *taskCost, *seed)
	ids := sc.IDs()
	s.AddPersistentFrameCallback(func(t frame.Timing) {
		if len(ids) > 0 {
			coord.MarkNeedsLayout(ids[int(t.Frame)%len(ids)])
		}
		load.Enqueue(s)
	})
	s.AddLifecycleListener(func(state sched.AppLifecycleState) {
		log.WithField("state", state).Info("app lifecycle changed")
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	clock := sched.NewTickClock(1)
	clock.Start(cfg.TickInterval())
	defer clock.Stop()

	// Main loop: one tick is one vsync
	rendered := 0
	for rendered < *frames {
		select {
		case <-ctx.Done():
			s.HandleAppLifecycleStateChange(sched.AppDetached)
			fmt.Println(report.Summary(s))
			return
		case _, ok := <-clock.Ch:
			if !ok {
				return
			}
			s.ScheduleFrame()
			rep, ran := s.HandleTick(ctx)
			if !ran {
				continue
			}
			rendered++
			fmt.Println(report.Line(rep))
			if *phases {
				fmt.Println("       " + report.Phases(rep))
			}
		}
	}

	log.WithFields(logrus.Fields{
		"ticks":   clock.Count(),
		"dropped": clock.Dropped(),
	}).Info("simulation finished")
	fmt.Println(report.Summary(s))
}

func newLogger(level string) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(os.Stderr)
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, TimestampFormat: time.StampMilli})
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		log.WithField("level", level).Warn("unknown log level, using info")
		lvl = logrus.InfoLevel
	}
	log.SetLevel(lvl)
	return log
}
