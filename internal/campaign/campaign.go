// Package campaign runs tiered outreach for a single opening.
//
// Campaign holds the state and Apply is its transition function: it never blocks, never talks to the
// outside world and returns the effects the Runner has to carry out. The Runner owns the campaign and
// feeds it responses, timer firings, delivery results and cancellation one at a time.
package campaign

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/samber/lo"
	"github.com/shiftfill/outreach/internal/classifier"
	"github.com/shiftfill/outreach/internal/entities"
	"github.com/shiftfill/outreach/internal/events"
	"github.com/shiftfill/outreach/internal/ranking"
)

type Config struct {
	TierWindow    time.Duration
	VoiceWindow   time.Duration
	Lifetime      time.Duration
	VoiceFallback bool
	RetryDelay    time.Duration
	// Linger keeps a finished runner answering late replies before it exits.
	Linger time.Duration
}

func DefaultConfig() Config {
	return Config{
		TierWindow:    15 * time.Minute,
		VoiceWindow:   10 * time.Minute,
		Lifetime:      3 * time.Hour,
		VoiceFallback: true,
		RetryDelay:    5 * time.Second,
		Linger:        30 * time.Minute,
	}
}

type Attempt struct {
	CandidateID    string
	Contact        string
	Tier           ranking.Tier
	Channel        entities.Channel
	Status         AttemptStatus
	SentAt         time.Time
	RespondedAt    *time.Time
	DeliveryFailed bool
	FailureReason  string
	SendTries      int
	Note           string
	Window         *classifier.Window
}

type Campaign struct {
	ID                string
	Opening           entities.Opening
	Status            Status
	Tier              ranking.Tier
	WinnerCandidateID string
	OutcomeReason     string
	Attempts          []*Attempt
	Audit             []events.AuditEntry
	CreatedAt         time.Time
	FinishedAt        *time.Time

	cfg      Config
	results  []ranking.MatchResult
	tiers    map[ranking.Tier][]ranking.MatchResult
	contacts map[string]string
	phase    entities.Channel
	seq      int
	revision int
}

// New prepares a campaign in CREATED state. contacts maps candidate ids to phone numbers.
func New(id string, opening entities.Opening, results []ranking.MatchResult, contacts map[string]string,
	cfg Config, now time.Time) *Campaign {

	return &Campaign{
		ID:        id,
		Opening:   opening,
		Status:    Created,
		CreatedAt: now,
		cfg:       cfg,
		results:   results,
		contacts:  contacts,
	}
}

// Revision changes every time Apply mutates the campaign.
func (c *Campaign) Revision() int {
	return c.revision
}

func (c *Campaign) Apply(event Event, now time.Time) []Effect {
	if c.Status.Terminal() {
		return c.afterFinish(event)
	}

	if c.Status == Created {
		switch ev := event.(type) {
		case Start:
			return c.start(now)
		case Cancel:
			return c.cancel(ev.Reason, now)
		case Abort:
			return c.finish(now, Escalated, ReasonAborted, ev.Reason)
		}
		return nil
	}

	switch ev := event.(type) {
	case Response:
		return c.respond(ev, now)
	case TimerFired:
		return c.timerFired(ev, now)
	case DeliveryResult:
		c.delivered(ev)
		return nil
	case Cancel:
		return c.cancel(ev.Reason, now)
	case Abort:
		return c.finish(now, Escalated, ReasonAborted, ev.Reason)
	}
	return nil
}

func (c *Campaign) start(now time.Time) []Effect {
	c.tiers = ranking.ByTier(c.results)

	first, ok := c.nextTier("")
	if !ok {
		return c.finish(now, Escalated, ReasonNoCandidates, "no eligible candidates")
	}

	effects := []Effect{ArmTimer{Timer: TimerLifetime, After: c.cfg.Lifetime}}
	return append(effects, c.activate(first, now)...)
}

// nextTier returns the first non-empty tier after current; an empty current starts from the top.
func (c *Campaign) nextTier(current ranking.Tier) (ranking.Tier, bool) {
	passed := current == ""
	for _, tier := range ranking.Tiers {
		if passed && len(c.tiers[tier]) > 0 {
			return tier, true
		}
		if tier == current {
			passed = true
		}
	}
	return "", false
}

func (c *Campaign) activate(tier ranking.Tier, now time.Time) []Effect {
	members := c.tiers[tier]
	c.Tier = tier
	c.phase = entities.ChannelSMS
	c.seq++
	c.transition(now, TierActive, fmt.Sprintf("sms offers to %d candidates", len(members)))

	effects := make([]Effect, 0, len(members)+1)
	for _, member := range members {
		attempt := c.addAttempt(member.CandidateID, tier, entities.ChannelSMS, now)
		if attempt == nil {
			continue
		}
		effects = append(effects, Send{Message: c.message(entities.MessageOffer, entities.ChannelSMS, attempt), Report: true})
	}
	return append(effects, ArmTimer{Timer: TimerWindow, Seq: c.seq, After: c.cfg.TierWindow})
}

func (c *Campaign) addAttempt(candidateID string, tier ranking.Tier, channel entities.Channel, now time.Time) *Attempt {
	if c.attempt(candidateID, channel) != nil {
		return nil
	}
	attempt := &Attempt{
		CandidateID: candidateID,
		Contact:     c.contacts[candidateID],
		Tier:        tier,
		Channel:     channel,
		Status:      AttemptPending,
		SentAt:      now,
	}
	c.Attempts = append(c.Attempts, attempt)
	return attempt
}

func (c *Campaign) attempt(candidateID string, channel entities.Channel) *Attempt {
	attempt, _ := lo.Find(c.Attempts, func(a *Attempt) bool {
		return a.CandidateID == candidateID && a.Channel == channel
	})
	return attempt
}

// outstanding returns the latest attempt for the candidate that can still take a reply.
func (c *Campaign) outstanding(candidateID string) *Attempt {
	attempt, _, _ := lo.FindLastIndexOf(c.Attempts, func(a *Attempt) bool {
		return a.CandidateID == candidateID && a.Status.Outstanding()
	})
	return attempt
}

// Outstanding reports whether a reply from the candidate would still be routed to an attempt.
func (c *Campaign) Outstanding(candidateID string) bool {
	return !c.Status.Terminal() && c.outstanding(candidateID) != nil
}

// LastContact returns when the candidate was last sent an offer by this campaign.
func (c *Campaign) LastContact(candidateID string) (time.Time, bool) {
	var last time.Time
	for _, a := range c.Attempts {
		if a.CandidateID == candidateID && a.SentAt.After(last) {
			last = a.SentAt
		}
	}
	return last, !last.IsZero()
}

func (c *Campaign) respond(ev Response, now time.Time) []Effect {
	parsed := ev.Parsed
	attempt := c.outstanding(parsed.CandidateID)
	if attempt == nil {
		if _, contacted := c.LastContact(parsed.CandidateID); contacted {
			return []Effect{c.clarify(parsed, now)}
		}
		return nil
	}

	var effects []Effect
	switch {
	case parsed.Intent == classifier.Accept:
		return c.win(attempt, now)
	case parsed.Intent.IsDecline():
		c.resolve(parsed.CandidateID, AttemptDeclined, now, parsed.Reason, nil)
	case parsed.Intent.NeedsClarification():
		c.resolve(parsed.CandidateID, AttemptNeedsClarification, now, parsed.Raw, parsed.Window)
		effects = append(effects, c.clarify(parsed, now))
	default:
		return []Effect{c.clarify(parsed, now)}
	}

	return append(effects, c.checkExhausted(now)...)
}

// resolve moves every open attempt of the candidate, on both channels, to status.
func (c *Campaign) resolve(candidateID string, status AttemptStatus, now time.Time, note string, window *classifier.Window) {
	for _, a := range c.Attempts {
		if a.CandidateID != candidateID || !a.Status.Outstanding() {
			continue
		}
		a.Status = status
		a.RespondedAt = lo.ToPtr(now)
		a.Note = note
		a.Window = window
	}
	c.revision++
}

func (c *Campaign) win(attempt *Attempt, now time.Time) []Effect {
	attempt.Status = AttemptAccepted
	attempt.RespondedAt = lo.ToPtr(now)
	c.WinnerCandidateID = attempt.CandidateID

	effects := []Effect{Assign{Event: events.OpeningFilled{
		OpeningID:   c.Opening.ID,
		CampaignID:  c.ID,
		CandidateID: attempt.CandidateID,
		FilledAt:    now,
	}}}

	for _, other := range c.Attempts {
		if other == attempt || !other.Status.Outstanding() {
			continue
		}
		if other.Status == AttemptPending {
			other.Status = AttemptExpired
		}
	}
	effects = append(effects, c.notices(entities.MessageFilled, attempt.CandidateID)...)

	return append(effects, c.finish(now, Filled, ReasonAccepted, "accepted by "+attempt.CandidateID)...)
}

// notices builds one notice per contacted candidate, except skip, whose last attempt was still open
// or waiting for clarification when the campaign closed.
func (c *Campaign) notices(kind entities.MessageKind, skip string) []Effect {
	var effects []Effect
	notified := map[string]bool{skip: true}
	for _, a := range c.Attempts {
		if notified[a.CandidateID] || (a.Status != AttemptExpired && !a.Status.Outstanding()) {
			continue
		}
		if c.declined(a.CandidateID) {
			continue
		}
		notified[a.CandidateID] = true
		effects = append(effects, Send{Message: c.message(kind, entities.ChannelSMS, a)})
	}
	return effects
}

func (c *Campaign) declined(candidateID string) bool {
	return lo.ContainsBy(c.Attempts, func(a *Attempt) bool {
		return a.CandidateID == candidateID && a.Status == AttemptDeclined
	})
}

func (c *Campaign) clarify(parsed classifier.ParsedResponse, now time.Time) Effect {
	return Clarify{Event: events.ClarificationNeeded{
		OpeningID:   c.Opening.ID,
		CampaignID:  c.ID,
		CandidateID: parsed.CandidateID,
		Intent:      parsed.Intent,
		Text:        parsed.Raw,
		Window:      parsed.Window,
		ReceivedAt:  now,
	}}
}

// checkExhausted escalates as soon as no attempt of the active tier is pending. The window timer only
// covers candidates who never answer; it is disarmed by the escalation.
func (c *Campaign) checkExhausted(now time.Time) []Effect {
	if c.Status != TierActive {
		return nil
	}
	open := lo.ContainsBy(c.Attempts, func(a *Attempt) bool {
		return a.Tier == c.Tier && a.Status == AttemptPending
	})
	if open {
		return nil
	}
	return c.escalate(now, fmt.Sprintf("tier %s exhausted", c.Tier))
}

func (c *Campaign) timerFired(ev TimerFired, now time.Time) []Effect {
	switch ev.Timer {
	case TimerLifetime:
		return c.finish(now, Expired, ReasonLifetimeExceeded, "campaign lifetime exceeded")
	case TimerWindow:
		if ev.Seq != c.seq || c.Status != TierActive {
			return nil
		}
		if c.phase == entities.ChannelSMS && c.cfg.VoiceFallback {
			if effects := c.voiceFallback(now); len(effects) > 0 {
				return effects
			}
		}
		return c.escalate(now, fmt.Sprintf("tier %s window elapsed", c.Tier))
	}
	return nil
}

func (c *Campaign) voiceFallback(now time.Time) []Effect {
	silent := lo.Filter(c.Attempts, func(a *Attempt, _ int) bool {
		return a.Tier == c.Tier && a.Channel == entities.ChannelSMS && a.Status == AttemptPending &&
			c.attempt(a.CandidateID, entities.ChannelVoice) == nil
	})
	if len(silent) == 0 {
		return nil
	}

	c.phase = entities.ChannelVoice
	c.seq++
	c.record(now, c.Status, fmt.Sprintf("voice fallback to %d candidates", len(silent)))

	effects := make([]Effect, 0, len(silent)+1)
	for _, sms := range silent {
		call := c.addAttempt(sms.CandidateID, c.Tier, entities.ChannelVoice, now)
		effects = append(effects, Send{Message: c.message(entities.MessageOffer, entities.ChannelVoice, call), Report: true})
	}
	return append(effects, ArmTimer{Timer: TimerWindow, Seq: c.seq, After: c.cfg.VoiceWindow})
}

func (c *Campaign) escalate(now time.Time, detail string) []Effect {
	c.transition(now, Escalating, detail)
	effects := []Effect{DisarmTimer{Timer: TimerWindow}}

	next, ok := c.nextTier(c.Tier)
	if !ok {
		return append(effects, c.finish(now, Escalated, ReasonTiersExhausted, "all tiers exhausted")...)
	}
	return append(effects, c.activate(next, now)...)
}

func (c *Campaign) cancel(reason string, now time.Time) []Effect {
	detail := ReasonCancelled
	if reason != "" {
		detail = reason
	}
	effects := c.notices(entities.MessageCancelled, "")
	return append(effects, c.finish(now, Cancelled, ReasonCancelled, detail)...)
}

func (c *Campaign) delivered(ev DeliveryResult) {
	attempt := c.attempt(ev.CandidateID, ev.Channel)
	if attempt == nil {
		return
	}
	attempt.SendTries = ev.Tries
	if ev.Err != "" {
		attempt.DeliveryFailed = true
		attempt.FailureReason = ev.Err
	}
	c.revision++
}

func (c *Campaign) finish(now time.Time, status Status, reason, detail string) []Effect {
	for _, a := range c.Attempts {
		if a.Status == AttemptPending {
			a.Status = AttemptExpired
		}
	}
	c.OutcomeReason = reason
	c.FinishedAt = lo.ToPtr(now)
	c.transition(now, status, detail)

	effects := []Effect{DisarmTimer{Timer: TimerWindow}, DisarmTimer{Timer: TimerLifetime}}
	if status == Escalated || status == Expired {
		effects = append(effects, Escalate{Event: events.OpeningEscalated{
			OpeningID:   c.Opening.ID,
			CampaignID:  c.ID,
			Status:      string(status),
			Reason:      reason,
			Attempts:    c.summaries(),
			Audit:       append([]events.AuditEntry(nil), c.Audit...),
			EscalatedAt: now,
		}})
	}
	return append(effects, Finished{Event: events.CampaignFinished{
		OpeningID:  c.Opening.ID,
		CampaignID: c.ID,
		Status:     string(status),
		Duration:   now.Sub(c.CreatedAt),
	}})
}

// afterFinish answers replies that arrive once the campaign is closed. It never changes state.
func (c *Campaign) afterFinish(event Event) []Effect {
	ev, ok := event.(Response)
	if !ok || c.Status != Filled {
		return nil
	}
	if ev.Parsed.Intent != classifier.Accept || ev.Parsed.CandidateID == c.WinnerCandidateID {
		return nil
	}
	attempt, _, found := lo.FindLastIndexOf(c.Attempts, func(a *Attempt) bool {
		return a.CandidateID == ev.Parsed.CandidateID
	})
	if !found {
		return nil
	}
	return []Effect{Send{Message: c.message(entities.MessageAlreadyFilled, entities.ChannelSMS, attempt)}}
}

func (c *Campaign) transition(now time.Time, to Status, detail string) {
	c.record(now, to, detail)
	c.Status = to
}

func (c *Campaign) record(now time.Time, to Status, detail string) {
	c.Audit = append(c.Audit, events.AuditEntry{
		At:     now,
		From:   string(c.Status),
		To:     string(to),
		Tier:   string(c.Tier),
		Detail: detail,
	})
	c.revision++
}

func (c *Campaign) summaries() []events.AttemptSummary {
	return lo.Map(c.Attempts, func(a *Attempt, _ int) events.AttemptSummary {
		return events.AttemptSummary{
			CandidateID:    a.CandidateID,
			Tier:           string(a.Tier),
			Channel:        string(a.Channel),
			Status:         string(a.Status),
			SentAt:         a.SentAt,
			RespondedAt:    a.RespondedAt,
			DeliveryFailed: a.DeliveryFailed,
			FailureReason:  a.FailureReason,
			Note:           a.Note,
		}
	})
}

// Record converts the campaign to its persisted form.
func (c *Campaign) Record() entities.CampaignRecord {
	audit, _ := json.Marshal(c.Audit)

	return entities.CampaignRecord{
		ID:                c.ID,
		OpeningID:         c.Opening.ID,
		Status:            string(c.Status),
		Tier:              string(c.Tier),
		WinnerCandidateID: c.WinnerCandidateID,
		OutcomeReason:     c.OutcomeReason,
		Audit:             string(audit),
		CreatedAt:         c.CreatedAt,
		FinishedAt:        c.FinishedAt,
		Attempts: lo.Map(c.Attempts, func(a *Attempt, _ int) entities.AttemptRecord {
			note := a.Note
			if a.Window != nil {
				note = fmt.Sprintf("%s [window %s]", a.Note, a.Window)
			}
			return entities.AttemptRecord{
				CampaignID:     c.ID,
				CandidateID:    a.CandidateID,
				Channel:        string(a.Channel),
				Tier:           string(a.Tier),
				Status:         string(a.Status),
				SentAt:         a.SentAt,
				RespondedAt:    a.RespondedAt,
				DeliveryFailed: a.DeliveryFailed,
				FailureReason:  a.FailureReason,
				SendTries:      a.SendTries,
				Note:           note,
			}
		}),
	}
}
