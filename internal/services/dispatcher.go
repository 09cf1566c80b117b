package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/asaskevich/EventBus"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/samber/lo"
	"github.com/shiftfill/outreach/internal/campaign"
	"github.com/shiftfill/outreach/internal/classifier"
	"github.com/shiftfill/outreach/internal/entities"
	"github.com/shiftfill/outreach/internal/events"
	"github.com/shiftfill/outreach/internal/lock"
	"github.com/shiftfill/outreach/internal/logger"
	"github.com/shiftfill/outreach/internal/metrics"
	"github.com/shiftfill/outreach/internal/ranking"
	log "github.com/sirupsen/logrus"
)

var (
	ErrUnroutable      = errors.New("no campaign is waiting for this reply")
	ErrCampaignRunning = errors.New("a campaign is already running for this opening")
	ErrNoCampaign      = errors.New("no running campaign for this opening")
)

const (
	lockReason     = "automated outreach"
	rejectedStatus = "REJECTED"
)

type lockManager interface {
	Acquire(ctx context.Context, openingID, holderID, reason string, ttl time.Duration) (lock.Handle, error)
	Release(ctx context.Context, handle lock.Handle) error
}

type ranker interface {
	Rank(opening entities.Opening, candidates []entities.Candidate, prefs entities.ClientPreferences) []ranking.MatchResult
}

type DispatcherConfig struct {
	// HolderID identifies this engine instance in the processing lock.
	HolderID  string
	Campaign  campaign.Config
	LockGrace time.Duration
}

type runningCampaign struct {
	runner *campaign.Runner
	handle lock.Handle
}

// Dispatcher starts one campaign runner per opening and routes inbound replies to them.
type Dispatcher struct {
	ctx       context.Context
	cfg       DispatcherConfig
	locks     lockManager
	ranker    ranker
	transport campaign.Transport
	bus       EventBus.Bus
	journal   campaign.Journal
	now       func() time.Time

	mu       sync.Mutex
	runners  map[string]*runningCampaign
	runnings sync.WaitGroup
}

// NewDispatcher binds every runner it starts to ctx; cancelling it aborts open campaigns.
func NewDispatcher(ctx context.Context, cfg DispatcherConfig, locks lockManager, ranker ranker,
	transport campaign.Transport, bus EventBus.Bus, journal campaign.Journal) (*Dispatcher, error) {

	if cfg.HolderID == "" {
		cfg.HolderID = "outreach-engine-" + uuid.NewString()
	}
	if cfg.Campaign.Lifetime <= 0 {
		return nil, errors.New("campaign lifetime must be positive")
	}

	return &Dispatcher{
		ctx:       ctx,
		cfg:       cfg,
		locks:     locks,
		ranker:    ranker,
		transport: transport,
		bus:       bus,
		journal:   journal,
		now:       time.Now,
		runners:   make(map[string]*runningCampaign),
	}, nil
}

func (d *Dispatcher) HolderID() string {
	return d.cfg.HolderID
}

// HandleOpening claims the opening, ranks the pool and starts the campaign. It returns the campaign id.
func (d *Dispatcher) HandleOpening(ctx context.Context, request entities.OpeningRequest) (string, error) {
	openingID := request.Opening.ID

	d.mu.Lock()
	defer d.mu.Unlock()

	if current, ok := d.runners[openingID]; ok && !current.runner.Status().Terminal() {
		return current.runner.ID(), ErrCampaignRunning
	}

	ttl := d.cfg.Campaign.Lifetime + d.cfg.LockGrace
	handle, err := d.locks.Acquire(ctx, openingID, d.cfg.HolderID, lockReason, ttl)
	if err != nil {
		if errors.Is(err, lock.ErrLockConflict) {
			metrics.LockConflicts.Inc()
		}
		return "", err
	}
	d.bus.Publish(events.LockChangedTopic, events.LockChanged{OpeningID: openingID, HolderID: d.cfg.HolderID, Locked: true})

	results := d.ranker.Rank(request.Opening, request.Candidates, request.Preferences)
	for _, rejected := range request.Rejected {
		log.WithFields(log.Fields{"opening": openingID, "candidate": rejected.ID}).
			Warnf("candidate left out of outreach: %s", rejected.Reason)
		results = append(results, ranking.MatchResult{
			CandidateID:   rejected.ID,
			Tier:          ranking.TierNone,
			Disqualified:  true,
			Reason:        ranking.ReasonInvalidRecord,
			DistanceMiles: -1,
		})
	}
	contacts := lo.SliceToMap(request.Candidates, func(c entities.Candidate) (string, string) { return c.ID, c.Phone })

	c := campaign.New(uuid.NewString(), request.Opening, results, contacts, d.cfg.Campaign, d.now().UTC())
	runner := campaign.NewRunner(c, d.transport, d.bus).WithFinishCallback(d.onFinished)
	if d.journal != nil {
		runner.WithJournal(d.journal)
	}
	d.runners[openingID] = &runningCampaign{runner: runner, handle: handle}

	metrics.ActiveCampaigns.Inc()
	d.runnings.Add(1)
	go func() {
		defer d.runnings.Done()
		runner.Run(d.ctx)
		d.forget(runner)
	}()

	log.WithFields(log.Fields{"campaign": c.ID, "opening": openingID}).
		Infof("campaign started for %d candidates", len(request.Candidates))
	return c.ID, nil
}

// RejectOpening escalates an opening whose request could not be used at all, so a coordinator
// learns about it instead of the message silently leaving the queue.
func (d *Dispatcher) RejectOpening(_ context.Context, openingID string, cause error) {
	now := d.now().UTC()
	d.bus.Publish(events.OpeningEscalatedTopic, events.OpeningEscalated{
		OpeningID:   openingID,
		Status:      rejectedStatus,
		Reason:      string(ranking.ReasonInvalidRecord),
		Audit:       []events.AuditEntry{{At: now, Detail: cause.Error()}},
		EscalatedAt: now,
	})
	log.WithField("opening", openingID).Warnf("opening request rejected: %v", cause)
}

// onFinished runs on the runner goroutine as soon as the campaign is terminal.
func (d *Dispatcher) onFinished(runner *campaign.Runner) {
	metrics.ActiveCampaigns.Dec()

	d.mu.Lock()
	current, ok := d.runners[runner.OpeningID()]
	d.mu.Unlock()
	if !ok || current.runner != runner {
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(d.ctx), 10*time.Second)
	defer cancel()
	if err := d.locks.Release(ctx, current.handle); err != nil {
		log.WithField(logger.ErrorTypeField, logger.ErrorTypeLock).
			Errorf("failed to release lock for opening %s: %v", runner.OpeningID(), err)
	}
	d.bus.Publish(events.LockChangedTopic, events.LockChanged{OpeningID: runner.OpeningID(), HolderID: d.cfg.HolderID})
}

func (d *Dispatcher) forget(runner *campaign.Runner) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if current, ok := d.runners[runner.OpeningID()]; ok && current.runner == runner {
		delete(d.runners, runner.OpeningID())
	}
}

// HandleInbound classifies a reply and hands it to the campaign it answers.
func (d *Dispatcher) HandleInbound(_ context.Context, msg entities.InboundMessage) error {
	parsed := classifier.Classify(msg.CandidateID, msg.Text)
	metrics.ClassifiedResponses.WithLabelValues(string(parsed.Intent)).Inc()

	runner := d.route(msg)
	if runner != nil && runner.Post(campaign.Response{Parsed: parsed, Channel: msg.Channel, ReceivedAt: msg.ReceivedAt}) {
		return nil
	}

	d.bus.Publish(events.ClarificationNeededTopic, events.ClarificationNeeded{
		OpeningID:   msg.OpeningID,
		CandidateID: msg.CandidateID,
		Intent:      parsed.Intent,
		Text:        msg.Text,
		Window:      parsed.Window,
		ReceivedAt:  msg.ReceivedAt,
	})
	return fmt.Errorf("reply from %s: %w", msg.CandidateID, ErrUnroutable)
}

// route prefers the explicit opening, then the most recently contacted campaign still waiting on the
// candidate, then the most recently contacted finished one.
func (d *Dispatcher) route(msg entities.InboundMessage) *campaign.Runner {
	d.mu.Lock()
	runners := lo.Map(lo.Values(d.runners), func(r *runningCampaign, _ int) *campaign.Runner { return r.runner })
	explicit, hasExplicit := d.runners[msg.OpeningID]
	d.mu.Unlock()

	if hasExplicit {
		return explicit.runner
	}

	var waiting, finished *campaign.Runner
	var waitingAt, finishedAt time.Time
	for _, runner := range runners {
		contacted, ok := runner.LastContact(msg.CandidateID)
		if !ok {
			continue
		}
		if runner.Outstanding(msg.CandidateID) {
			if waiting == nil || contacted.After(waitingAt) {
				waiting, waitingAt = runner, contacted
			}
		} else if runner.Status().Terminal() {
			if finished == nil || contacted.After(finishedAt) {
				finished, finishedAt = runner, contacted
			}
		}
	}

	if waiting != nil {
		return waiting
	}
	return finished
}

// Cancel stops outreach for an opening that was handled elsewhere.
func (d *Dispatcher) Cancel(_ context.Context, openingID, reason string) error {
	d.mu.Lock()
	current, ok := d.runners[openingID]
	d.mu.Unlock()

	if !ok || current.runner.Status().Terminal() || !current.runner.Post(campaign.Cancel{Reason: reason}) {
		return fmt.Errorf("opening %s: %w", openingID, ErrNoCampaign)
	}
	return nil
}

// Wait blocks until every runner has exited. Runners exit after their linger period or when
// the dispatcher context is cancelled.
func (d *Dispatcher) Wait() {
	d.runnings.Wait()
}
