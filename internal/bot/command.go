package bot

import (
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/shiftfill/outreach/internal/logger"
	log "github.com/sirupsen/logrus"
)

type apiInterface interface {
	Send(chattable tgbotapi.Chattable) (tgbotapi.Message, error)
}

const (
	statusCommandName  = "status"
	cancelCommandName  = "cancel"
	historyCommandName = "history"
	helpCommandName    = "help"
)

const helpText = "/status <opening> - who holds the processing lock\n" +
	"/cancel <opening> [reason] - stop automated outreach\n" +
	"/history <opening> - campaigns run for the opening"

// commandArgs splits "op-1 filled by phone" into the opening id and the remaining text.
func commandArgs(args string) (string, string) {
	fields := strings.Fields(args)
	if len(fields) == 0 {
		return "", ""
	}
	return fields[0], strings.Join(fields[1:], " ")
}

func sendWithLogError(api apiInterface, chattable tgbotapi.Chattable) (tgbotapi.Message, error) {
	msg, err := api.Send(chattable)
	if err != nil {
		log.WithField(logger.ErrorTypeField, logger.ErrorTypeTgApi).
			Errorf("error occured while sending message: %v", err)
	}
	return msg, err
}
