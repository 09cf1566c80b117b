package campaign

import (
	"fmt"

	"github.com/shiftfill/outreach/internal/entities"
)

const shiftLayout = "Mon Jan 2 3:04PM"

func shiftLabel(opening entities.Opening) string {
	return fmt.Sprintf("%s - %s", opening.Window.Start.Format(shiftLayout), opening.Window.End.Format("3:04PM"))
}

func (c *Campaign) message(kind entities.MessageKind, channel entities.Channel, attempt *Attempt) entities.OutboundMessage {
	msg := entities.OutboundMessage{
		Kind:        kind,
		Channel:     channel,
		CampaignID:  c.ID,
		OpeningID:   c.Opening.ID,
		CandidateID: attempt.CandidateID,
		To:          attempt.Contact,
	}

	shift := shiftLabel(c.Opening)
	switch kind {
	case entities.MessageOffer:
		if channel == entities.ChannelVoice {
			msg.Params = map[string]string{
				"shift":  shift,
				"prompt": "Press 1 to accept this shift or 2 to decline.",
			}
			msg.Body = fmt.Sprintf("We have an open shift %s. Press 1 to accept or 2 to decline.", shift)
			break
		}
		msg.Body = fmt.Sprintf("Open shift %s. Reply YES to accept or NO to decline. First to accept gets it.", shift)
	case entities.MessageFilled:
		msg.Body = fmt.Sprintf("Thanks! The shift %s has been filled. No action needed.", shift)
	case entities.MessageAlreadyFilled:
		msg.Body = fmt.Sprintf("Sorry, the shift %s was already filled. We'll reach out with the next one.", shift)
	case entities.MessageCancelled:
		msg.Body = fmt.Sprintf("Update: the shift %s is no longer available. No action needed.", shift)
	}
	return msg
}
