package broadcast

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"minderbot/internal/kit"
	"minderbot/internal/storage"
	logx "minderbot/pkg/logx"
)

// Config controls the broadcast loop.
//
// Each cycle's delay is BaseInterval + uniform(0, JitterMax), inclusive.
type Config struct {
	Enabled bool

	StartupDelay time.Duration
	BaseInterval time.Duration
	JitterMax    time.Duration

	// RatePerSec paces sends within one cycle.
	RatePerSec int
	// EvictAfter removes a destination after this many consecutive
	// failures; <= 0 disables eviction.
	EvictAfter int
}

// Registry is the destination store contract.
type Registry interface {
	ListDestinations(ctx context.Context) ([]storage.Destination, error)
	RecordSendResult(ctx context.Context, chatID int64, ok bool, evictAfter int) (evicted bool, err error)
}

// Service owns the broadcast loop goroutine.
type Service struct {
	mu sync.Mutex

	log    logx.Logger
	sender kit.Sender
	reg    Registry
	pool   []string

	cfg     Config
	limiter *rate.Limiter
	rng     *rand.Rand

	stopCh    chan struct{}
	runCancel context.CancelFunc
	wg        sync.WaitGroup
}
