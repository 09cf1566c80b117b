package bot

import (
	"fmt"
	"strings"
	"time"

	"github.com/shiftfill/outreach/internal/entities"
	"github.com/shiftfill/outreach/internal/events"
	"github.com/shiftfill/outreach/internal/lock"
)

const timeLayout = "Jan 2 15:04 MST"

func escalationText(e events.OpeningEscalated) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Opening %s needs a coordinator: %s (%s)\n", e.OpeningID, e.Status, e.Reason)

	if len(e.Attempts) == 0 {
		sb.WriteString("No candidate was contacted.")
		return sb.String()
	}

	for _, attempt := range e.Attempts {
		fmt.Fprintf(&sb, "- %s tier %s via %s: %s", attempt.CandidateID, attempt.Tier, attempt.Channel, attempt.Status)
		if attempt.DeliveryFailed {
			fmt.Fprintf(&sb, " (delivery failed: %s)", attempt.FailureReason)
		}
		if attempt.Note != "" {
			fmt.Fprintf(&sb, " %q", attempt.Note)
		}
		sb.WriteString("\n")
	}
	return strings.TrimRight(sb.String(), "\n")
}

func clarificationText(e events.ClarificationNeeded) string {
	opening := e.OpeningID
	if opening == "" {
		opening = "unknown opening"
	}

	text := fmt.Sprintf("Reply from %s about %s needs a look (%s):\n%q", e.CandidateID, opening, e.Intent, e.Text)
	if e.Window != nil {
		text += fmt.Sprintf("\nOffered window: %s", e.Window)
	}
	return text
}

func lockText(status lock.Status) string {
	if !status.Locked {
		return fmt.Sprintf("Opening %s is not locked.", status.OpeningID)
	}
	return fmt.Sprintf("Opening %s is locked by %s (%s) until %s.", status.OpeningID, status.HolderID,
		status.Reason, status.ExpiresAt.Format(timeLayout))
}

func historyText(openingID string, records []entities.CampaignRecord) string {
	if len(records) == 0 {
		return fmt.Sprintf("No campaigns for opening %s.", openingID)
	}

	lines := make([]string, 0, len(records))
	for _, record := range records {
		line := fmt.Sprintf("%s %s: %s", record.CreatedAt.Format(timeLayout), record.ID, record.Status)
		if record.WinnerCandidateID != "" {
			line += " by " + record.WinnerCandidateID
		} else if record.OutcomeReason != "" {
			line += " (" + record.OutcomeReason + ")"
		}
		if record.FinishedAt != nil {
			line += fmt.Sprintf(" after %s", record.FinishedAt.Sub(record.CreatedAt).Round(time.Minute))
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}
