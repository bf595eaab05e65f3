package job

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/robfig/cron/v3"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// DefaultWatchlistSchedule runs at the top of every hour. Six fields, the
// first being seconds.
const DefaultWatchlistSchedule = "0 0 * * * *"

// CacheWarmer is satisfied by *service.RSIService.
type CacheWarmer interface {
	WarmCache(ctx context.Context, symbol string) error
}

// WatchlistJob keeps the RSI cache warm for a fixed list of symbols.
type WatchlistJob struct {
	tracer   trace.Tracer
	warmer   CacheWarmer
	symbols  []string
	schedule string
	cron     *cron.Cron

	mu      sync.Mutex
	running bool
}

func NewWatchlistJob(tracer trace.Tracer, warmer CacheWarmer, symbols []string, schedule string) *WatchlistJob {
	if schedule == "" {
		schedule = DefaultWatchlistSchedule
	}
	return &WatchlistJob{
		tracer:   tracer,
		warmer:   warmer,
		symbols:  symbols,
		schedule: schedule,
		cron:     cron.New(cron.WithSeconds()),
	}
}

// Start registers the schedule and starts the cron scheduler. Ticks that
// fire while a previous run is still going are skipped.
func (j *WatchlistJob) Start(ctx context.Context) error {
	if len(j.symbols) == 0 {
		log.Println("Watchlist empty, skipping watchlist job")
		return nil
	}
	if _, err := j.cron.AddFunc(j.schedule, func() { j.tick(ctx) }); err != nil {
		return fmt.Errorf("register watchlist schedule %q: %w", j.schedule, err)
	}
	j.cron.Start()
	log.Printf("Watchlist job started (%s) for %d symbols", j.schedule, len(j.symbols))
	return nil
}

// Stop stops the scheduler and waits for a running tick to finish.
func (j *WatchlistJob) Stop() {
	<-j.cron.Stop().Done()
	log.Println("Watchlist job stopped")
}

func (j *WatchlistJob) tick(ctx context.Context) {
	j.mu.Lock()
	if j.running {
		j.mu.Unlock()
		log.Println("Watchlist refresh still running, skipping tick")
		return
	}
	j.running = true
	j.mu.Unlock()

	defer func() {
		j.mu.Lock()
		j.running = false
		j.mu.Unlock()
	}()

	j.RunOnce(ctx)
}

// RunOnce warms each symbol in turn and returns how many succeeded. Errors
// are logged and do not stop the run.
func (j *WatchlistJob) RunOnce(ctx context.Context) int {
	ctx, span := j.tracer.Start(ctx, "watchlist-job.run")
	defer span.End()
	span.SetAttributes(attribute.Int("symbols", len(j.symbols)))

	warmed := 0
	for _, symbol := range j.symbols {
		if ctx.Err() != nil {
			break
		}
		if err := j.warmer.WarmCache(ctx, symbol); err != nil {
			log.Printf("watchlist warm error for %s: %v", symbol, err)
			continue
		}
		warmed++
	}
	span.SetAttributes(attribute.Int("warmed", warmed))
	return warmed
}
