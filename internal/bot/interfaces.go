package bot

import (
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"smflab/internal/events"
	"smflab/internal/models"
)

// TestSource is the read side of the repository the notifier needs.
type TestSource interface {
	Get(code string) (*models.Test, error)
	List() []*models.Test
}

// Subscriber is the slice of the event bus the notifier attaches to.
type Subscriber interface {
	Subscribe(eventType string, handler events.EventHandler)
}

type TelegramSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}
