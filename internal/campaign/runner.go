package campaign

import (
	"context"
	"sync"
	"time"

	"github.com/samber/lo"
	"github.com/shiftfill/outreach/internal/entities"
	"github.com/shiftfill/outreach/internal/events"
	"github.com/shiftfill/outreach/internal/logger"
	"github.com/shiftfill/outreach/internal/metrics"
	log "github.com/sirupsen/logrus"
)

const sendTimeout = 30 * time.Second

type Transport interface {
	Send(ctx context.Context, msg entities.OutboundMessage) error
}

// Publisher is satisfied by EventBus.Bus.
type Publisher interface {
	Publish(topic string, args ...interface{})
}

type Journal interface {
	Save(ctx context.Context, record entities.CampaignRecord) error
}

// Runner is the only goroutine that touches its Campaign. Everything else talks to it through Post.
type Runner struct {
	campaign  *Campaign
	transport Transport
	bus       Publisher
	journal   Journal
	onFinish  func(*Runner)
	now       func() time.Time

	mu       sync.RWMutex
	queue    chan Event
	stopped  chan struct{}
	done     chan struct{}
	timers   map[Timer]*time.Timer
	sends    sync.WaitGroup
	settled  bool
	sendCtx  context.Context
	revision int
}

func NewRunner(campaign *Campaign, transport Transport, bus Publisher) *Runner {
	return &Runner{
		campaign:  campaign,
		transport: transport,
		bus:       bus,
		now:       time.Now,
		queue:     make(chan Event, 64),
		stopped:   make(chan struct{}),
		done:      make(chan struct{}),
		timers:    make(map[Timer]*time.Timer),
		revision:  -1,
	}
}

func (r *Runner) WithJournal(journal Journal) *Runner {
	r.journal = journal
	return r
}

// WithFinishCallback registers f to run once, on the runner goroutine, when the campaign reaches
// a terminal state.
func (r *Runner) WithFinishCallback(f func(*Runner)) *Runner {
	r.onFinish = f
	return r
}

func (r *Runner) WithClock(now func() time.Time) *Runner {
	r.now = now
	return r
}

func (r *Runner) ID() string {
	return r.campaign.ID
}

func (r *Runner) OpeningID() string {
	return r.campaign.Opening.ID
}

// Post queues an event and reports false once the runner has stopped taking events.
func (r *Runner) Post(ev Event) bool {
	select {
	case <-r.stopped:
		return false
	default:
	}

	select {
	case r.queue <- ev:
		return true
	case <-r.stopped:
		return false
	}
}

// Done is closed after the loop has exited and every in-flight send has returned.
func (r *Runner) Done() <-chan struct{} {
	return r.done
}

func (r *Runner) Status() Status {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.campaign.Status
}

func (r *Runner) Outstanding(candidateID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.campaign.Outstanding(candidateID)
}

func (r *Runner) LastContact(candidateID string) (time.Time, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.campaign.LastContact(candidateID)
}

// Snapshot returns the persisted form of the campaign as of now.
func (r *Runner) Snapshot() entities.CampaignRecord {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.campaign.Record()
}

func (r *Runner) Run(ctx context.Context) {
	defer close(r.done)
	r.sendCtx = context.WithoutCancel(ctx)

	r.apply(Start{})

	var linger <-chan time.Time
loop:
	for {
		if linger == nil && r.settle() {
			timer := time.NewTimer(r.campaign.cfg.Linger)
			defer timer.Stop()
			linger = timer.C
		}

		select {
		case ev := <-r.queue:
			r.apply(ev)
		case <-linger:
			break loop
		case <-ctx.Done():
			r.apply(Abort{Reason: "engine shutdown"})
			r.settle()
			break loop
		}
	}

	close(r.stopped)
	r.stopTimers()
	r.sends.Wait()
}

// settle runs the finish callback the first time the campaign is seen terminal.
func (r *Runner) settle() bool {
	if r.settled {
		return true
	}
	if !r.Status().Terminal() {
		return false
	}
	r.settled = true
	r.stopTimers()
	if r.onFinish != nil {
		r.onFinish(r)
	}
	return true
}

func (r *Runner) apply(ev Event) {
	r.mu.Lock()
	effects := r.campaign.Apply(ev, r.now().UTC())
	changed := r.campaign.Revision() != r.revision
	r.revision = r.campaign.Revision()
	var record entities.CampaignRecord
	if changed && r.journal != nil {
		record = r.campaign.Record()
	}
	r.mu.Unlock()

	for _, effect := range effects {
		r.execute(effect)
	}

	if changed && r.journal != nil {
		if err := r.journal.Save(r.sendCtx, record); err != nil {
			log.WithField(logger.ErrorTypeField, logger.ErrorTypeDb).
				Errorf("failed to save campaign %s: %s", record.ID, err)
		}
	}
}

func (r *Runner) execute(effect Effect) {
	entry := log.WithFields(log.Fields{"campaign": r.campaign.ID, "opening": r.campaign.Opening.ID})

	switch eff := effect.(type) {
	case Send:
		r.send(eff)
	case ArmTimer:
		r.arm(eff)
	case DisarmTimer:
		r.disarm(eff.Timer)
	case Assign:
		entry.Infof("opening filled by %s", eff.Event.CandidateID)
		metrics.TimeToFill.Observe(eff.Event.FilledAt.Sub(r.campaign.CreatedAt).Seconds())
		r.bus.Publish(events.OpeningFilledTopic, eff.Event)
	case Escalate:
		entry.Warnf("opening escalated to a human: %s", eff.Event.Reason)
		r.bus.Publish(events.OpeningEscalatedTopic, eff.Event)
	case Clarify:
		entry.Infof("reply from %s needs a human (%s)", eff.Event.CandidateID, eff.Event.Intent)
		r.bus.Publish(events.ClarificationNeededTopic, eff.Event)
	case Finished:
		entry.Infof("campaign finished with status %s", eff.Event.Status)
		metrics.CampaignOutcomes.WithLabelValues(eff.Event.Status).Inc()
		r.bus.Publish(events.CampaignFinishedTopic, eff.Event)
	}
}

func (r *Runner) send(eff Send) {
	r.sends.Add(1)
	go func() {
		defer r.sends.Done()

		ctx, cancel := context.WithTimeout(r.sendCtx, sendTimeout)
		defer cancel()

		msg := eff.Message
		tries, _, err := lo.AttemptWhileWithDelay(2, r.campaign.cfg.RetryDelay, func(int, time.Duration) (error, bool) {
			err := r.transport.Send(ctx, msg)
			return err, err != nil && ctx.Err() == nil
		})

		result := "ok"
		if err != nil {
			result = "failed"
			log.WithField(logger.ErrorTypeField, logger.ErrorTypeGateway).
				Errorf("failed to send %s %s to %s after %d tries: %s", msg.Channel, msg.Kind, msg.CandidateID, tries, err)
		}
		metrics.MessagesSent.WithLabelValues(string(msg.Channel), string(msg.Kind), result).Inc()

		if !eff.Report {
			return
		}
		delivery := DeliveryResult{CandidateID: msg.CandidateID, Channel: msg.Channel, Tries: tries}
		if err != nil {
			delivery.Err = err.Error()
		}
		r.Post(delivery)
	}()
}

func (r *Runner) arm(eff ArmTimer) {
	r.disarm(eff.Timer)
	fired := TimerFired{Timer: eff.Timer, Seq: eff.Seq}
	r.timers[eff.Timer] = time.AfterFunc(eff.After, func() { r.Post(fired) })
}

func (r *Runner) disarm(timer Timer) {
	if t, ok := r.timers[timer]; ok {
		t.Stop()
		delete(r.timers, timer)
	}
}

func (r *Runner) stopTimers() {
	for timer := range r.timers {
		r.disarm(timer)
	}
}
