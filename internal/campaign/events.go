package campaign

import (
	"time"

	"github.com/shiftfill/outreach/internal/classifier"
	"github.com/shiftfill/outreach/internal/entities"
)

// Event is anything the runner feeds into Campaign.Apply.
type Event interface {
	event()
}

type Start struct{}

type Response struct {
	Parsed     classifier.ParsedResponse
	Channel    entities.Channel
	ReceivedAt time.Time
}

type Timer string

const (
	TimerWindow   Timer = "window"
	TimerLifetime Timer = "lifetime"
)

// TimerFired carries the sequence number the timer was armed with; a mismatch means it is stale.
type TimerFired struct {
	Timer Timer
	Seq   int
}

type DeliveryResult struct {
	CandidateID string
	Channel     entities.Channel
	Tries       int
	Err         string
}

// Cancel closes the campaign because the opening was handled elsewhere.
type Cancel struct {
	Reason string
}

// Abort closes the campaign without notices and hands the opening to a human.
type Abort struct {
	Reason string
}

func (Start) event()          {}
func (Response) event()       {}
func (TimerFired) event()     {}
func (DeliveryResult) event() {}
func (Cancel) event()         {}
func (Abort) event()          {}
