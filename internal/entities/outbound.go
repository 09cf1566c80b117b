package entities

import "time"

type Channel string

const (
	ChannelSMS   Channel = "sms"
	ChannelVoice Channel = "voice"
)

type MessageKind string

const (
	MessageOffer         MessageKind = "offer"
	MessageFilled        MessageKind = "filled"
	MessageAlreadyFilled MessageKind = "already_filled"
	MessageCancelled     MessageKind = "cancelled"
)

// OutboundMessage is one command for the messaging/voice transport.
type OutboundMessage struct {
	Kind        MessageKind       `json:"kind"`
	Channel     Channel           `json:"channel"`
	CampaignID  string            `json:"campaign_id"`
	OpeningID   string            `json:"opening_id"`
	CandidateID string            `json:"candidate_id"`
	To          string            `json:"to"`
	Body        string            `json:"body,omitempty"`
	Params      map[string]string `json:"params,omitempty"`
}

// InboundMessage is a candidate reply; OpeningID is empty when the transport cannot tell which offer it answers.
type InboundMessage struct {
	CandidateID string    `json:"candidate_id"`
	OpeningID   string    `json:"opening_id,omitempty"`
	Text        string    `json:"text"`
	Channel     Channel   `json:"channel"`
	ReceivedAt  time.Time `json:"received_at"`
}
