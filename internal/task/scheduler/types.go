package scheduler

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"golang.org/x/time/rate"

	"recurd/internal/eventbus"
	"recurd/internal/storage"
	logx "recurd/pkg/logx"
)

// Config controls the trigger service.
type Config struct {
	Enabled        bool
	Timezone       string // IANA TZ, e.g. "Asia/Jakarta"
	HorizonYears   int    // next-occurrence search bound; 0 means 4
	DefaultTimeout time.Duration
}

// Job is the unit of work attached to a schedule.
type Job func(ctx context.Context) error

// exhaustWarnEvery throttles "no occurrence" warnings per schedule.
const exhaustWarnEvery = time.Hour

type scheduleDef struct {
	name          string
	kind          SpecKind
	expr          string // as registered
	trigger       *Trigger
	every         time.Duration
	timeout       time.Duration
	owner         string
	job           Job
	entryID       cron.EntryID
	startupSpread time.Duration
	state         *runState
	warn          *rate.Limiter
}

type runState struct {
	runs     atomic.Uint64
	failures atomic.Uint64

	mu       sync.Mutex
	lastRun  time.Time
	lastTook time.Duration
	lastErr  string
}

func (r *runState) record(start time.Time, took time.Duration, err error) {
	r.runs.Add(1)
	if err != nil {
		r.failures.Add(1)
	}
	r.mu.Lock()
	r.lastRun = start
	r.lastTook = took
	r.lastErr = ""
	if err != nil {
		r.lastErr = err.Error()
	}
	r.mu.Unlock()
}

type Service struct {
	mu sync.Mutex

	log   logx.Logger
	cfg   Config
	loc   *time.Location
	bus   eventbus.Bus
	store storage.Store

	c      *cron.Cron
	defs   []scheduleDef
	runCtx context.Context
	cancel context.CancelFunc
}

type ScheduleInfo struct {
	Name          string
	Kind          string
	Spec          string
	Timeout       time.Duration
	Owner         string
	Next          time.Time
	Prev          time.Time
	StartupSpread time.Duration
	Runs          uint64
	Failures      uint64
	LastRun       time.Time
	LastTook      time.Duration
	LastError     string
	Warnings      []string
}

type Snapshot struct {
	Enabled        bool
	Running        bool
	Timezone       string
	HorizonYears   int
	DefaultTimeout time.Duration
	Schedules      []ScheduleInfo
}
