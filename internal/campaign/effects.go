package campaign

import (
	"time"

	"github.com/shiftfill/outreach/internal/entities"
	"github.com/shiftfill/outreach/internal/events"
)

// Effect is an instruction produced by Campaign.Apply for the runner to carry out.
type Effect interface {
	effect()
}

// Send hands a message to the transport. Reported sends come back as a DeliveryResult.
type Send struct {
	Message entities.OutboundMessage
	Report  bool
}

type ArmTimer struct {
	Timer Timer
	Seq   int
	After time.Duration
}

type DisarmTimer struct {
	Timer Timer
}

type Assign struct {
	Event events.OpeningFilled
}

type Escalate struct {
	Event events.OpeningEscalated
}

type Clarify struct {
	Event events.ClarificationNeeded
}

type Finished struct {
	Event events.CampaignFinished
}

func (Send) effect()        {}
func (ArmTimer) effect()    {}
func (DisarmTimer) effect() {}
func (Assign) effect()      {}
func (Escalate) effect()    {}
func (Clarify) effect()     {}
func (Finished) effect()    {}
