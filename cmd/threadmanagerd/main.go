package main

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/maumercado/thread-manager-go/internal/config"
	"github.com/maumercado/thread-manager-go/internal/coroutine"
	"github.com/maumercado/thread-manager-go/internal/logger"
	"github.com/maumercado/thread-manager-go/internal/scheduler"
	"github.com/maumercado/thread-manager-go/internal/task"
	"github.com/maumercado/thread-manager-go/internal/timer"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Init(cfg.LogLevel, os.Getenv("ENV") != "production")
	log := logger.Get()
	log.Info().Msg("Starting thread manager...")

	limits := scheduler.Limits{
		MinAdd:    cfg.Scheduler.MinAdd,
		MaxAdd:    cfg.Scheduler.MaxAdd,
		MaxDelete: cfg.Scheduler.MaxDelete,
		MaxCount:  cfg.Scheduler.MaxCount,
	}

	sched := scheduler.New(limits, timer.NewReal(), cfg.Scheduler.IdleWaitInterval, func(workerNum int, err error) {
		log.Error().Err(err).Int("worker", workerNum).Msg("task entrypoint error, worker exiting")
	})

	if cfg.Metrics.Enabled {
		mux := http.NewServeMux()
		mux.Handle(cfg.Metrics.Path, promhttp.Handler())
		srv := &http.Server{Addr: ":9090", Handler: mux}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error().Err(err).Msg("metrics server stopped")
			}
		}()
		defer srv.Close()
	}

	registerDemoWork(sched, log)

	if ok, err := sched.Run(cfg.Scheduler.NumWorkers); !ok || err != nil {
		log.Fatal().Err(err).Msg("Failed to start scheduler")
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down thread manager...")
	sched.Stop(true)
	log.Info().Msg("Thread manager stopped")
}

// registerDemoWork seeds the scheduler with a handful of illustrative tasks
// exercising each corner of the cooperative lifecycle: an immediately
// pending task, a suspended task woken two seconds later by a timed
// transition, a self-rescheduling periodic task, and a multi-step task
// driven by a coroutine.
func registerDemoWork(sched *scheduler.Scheduler, log *zerolog.Logger) {
	err := sched.RegisterWork(echoEntrypoint, "echo", task.Pending, true)
	if err != nil {
		log.Error().Err(err).Msg("failed to register echo task")
	}

	suspendedID, err := sched.RegisterTask(waitForSignalEntrypoint, "wait-for-signal", task.Suspended, false)
	if err != nil {
		log.Error().Err(err).Msg("failed to register wait-for-signal task")
	} else {
		sched.SetStateAfter(2*time.Second, suspendedID, task.Pending, task.HintSignaled)
	}

	if err := sched.RegisterWork(periodicEntrypoint, "periodic-heartbeat", task.Pending, true); err != nil {
		log.Error().Err(err).Msg("failed to register periodic task")
	}

	if err := sched.RegisterWork(newSteppedReportEntrypoint(), "stepped-report", task.Pending, true); err != nil {
		log.Error().Err(err).Msg("failed to register stepped-report task")
	}
}

func echoEntrypoint(t *task.Task) task.State {
	logger.WithTaskID(t).Info().Str("description", t.Description()).Msg("echo task running")
	return task.Terminated
}

func waitForSignalEntrypoint(t *task.Task) task.State {
	logger.WithTaskID(t).Info().Str("resume_hint", t.ResumeHint().String()).Msg("wait-for-signal task woke up")
	return task.Terminated
}

func periodicEntrypoint(t *task.Task) task.State {
	logger.WithTaskID(t).Debug().Msg("periodic heartbeat tick")
	time.Sleep(time.Second)
	return task.Pending
}

// newSteppedReportEntrypoint builds an entrypoint that splits a multi-step
// report across several scheduler runs, using a coroutine.Routine held in
// the closure to resume exactly where the last run left off. The scheduler
// only ever sees Pending (more steps remain) or Terminated (report done);
// the internal yields are invisible to it.
func newSteppedReportEntrypoint() task.Entrypoint {
	var routine *coroutine.Routine

	return func(t *task.Task) task.State {
		if routine == nil {
			log := logger.WithTaskID(t)
			routine = coroutine.New(func(yield func()) {
				for step := 1; step <= 3; step++ {
					log.Info().Int("step", step).Msg("stepped report progress")
					yield()
				}
			})
		}

		if routine.Resume() {
			return task.Pending
		}
		return task.Terminated
	}
}
