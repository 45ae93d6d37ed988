package notifications

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"cribb-companion/internal/auth"
	"cribb-companion/internal/models"
)

const DefaultPollInterval = 60 * time.Second

// Feeder is what the poller drives.
type Feeder interface {
	Fetch(ctx context.Context) []models.Notification
	Reset()
}

// EventSource publishes login and logout transitions.
type EventSource interface {
	Subscribe() (<-chan auth.Event, func())
}

// Poller refreshes the feed on a fixed interval while a user is signed in.
type Poller struct {
	feeder   Feeder
	interval time.Duration
	log      logrus.FieldLogger
	// userID is who Run last started polling for. Only Run touches it.
	userID string

	mu      sync.Mutex
	cron    *cron.Cron
	cancel  context.CancelFunc
	running bool
}

func NewPoller(feeder Feeder, interval time.Duration, log logrus.FieldLogger) *Poller {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &Poller{
		feeder:   feeder,
		interval: interval,
		log:      log.WithField("component", "notification_poller"),
	}
}

// Start fetches once right away, then on every interval. Starting a running poller is a no-op.
func (p *Poller) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel

	c := cron.New(cron.WithChain(
		cron.Recover(cron.PrintfLogger(p.log)),
		cron.SkipIfStillRunning(cron.PrintfLogger(p.log)),
	))
	c.Schedule(cron.Every(p.interval), cron.FuncJob(func() {
		p.tick(ctx)
	}))

	p.cron = c
	p.running = true

	go p.tick(ctx)
	c.Start()
	p.log.WithField("interval", p.interval).Info("Notification polling started")
}

// Stop cancels the schedule and any tick not yet begun. A tick already running finishes
// and still updates the feed.
func (p *Poller) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.running {
		return
	}

	p.cancel()
	p.cron.Stop()
	p.cron = nil
	p.running = false
	p.log.Info("Notification polling stopped")
}

func (p *Poller) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

func (p *Poller) tick(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	p.feeder.Fetch(ctx)
}

// Run follows the auth session until ctx is done: polling starts on login and stops on
// logout, which also clears the feed.
func (p *Poller) Run(ctx context.Context, events EventSource) {
	updates, unsubscribe := events.Subscribe()
	defer unsubscribe()
	defer p.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-updates:
			if !ok {
				return
			}
			switch ev.Type {
			case auth.EventLogin:
				userID := ""
				if ev.User != nil {
					userID = ev.User.ID
				}
				if p.Running() && p.userID == userID {
					// Same user again, e.g. a restored session or token refresh.
					continue
				}
				p.Stop()
				p.userID = userID
				p.Start()
			case auth.EventLogout:
				p.Stop()
				p.userID = ""
				p.feeder.Reset()
			}
		}
	}
}
