// Package bot pushes schedule notifications to manager chats on Telegram.
package bot

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"smflab/internal/events"
	"smflab/internal/metrics"
	"smflab/internal/models"
)

const queueSize = 64

var ErrNoRecipients = errors.New("no manager chats configured")

// Options configure a Notifier.
type Options struct {
	ManagerChatIDs    []int64
	ReminderHour      int
	MessagesPerSecond float64
}

// Notifier delivers event notifications and the daily digest to manager chats.
type Notifier struct {
	tg      TelegramSender
	tests   TestSource
	chats   []int64
	hour    int
	limiter *rate.Limiter
	queue   chan string
	now     func() time.Time
	logger  zerolog.Logger
}

// New connects to the Telegram Bot API with token.
func New(token string, debug bool, tests TestSource, opts Options, logger *zerolog.Logger) (*Notifier, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram: %w", err)
	}
	api.Debug = debug
	logger.Info().Str("bot", api.Self.UserName).Msg("telegram bot authorized")
	return NewWithSender(api, tests, opts, logger), nil
}

// NewWithSender builds a Notifier on an existing sender.
func NewWithSender(tg TelegramSender, tests TestSource, opts Options, logger *zerolog.Logger) *Notifier {
	perSecond := opts.MessagesPerSecond
	if perSecond <= 0 {
		perSecond = 1
	}
	return &Notifier{
		tg:      tg,
		tests:   tests,
		chats:   append([]int64(nil), opts.ManagerChatIDs...),
		hour:    opts.ReminderHour,
		limiter: rate.NewLimiter(rate.Limit(perSecond), 1),
		queue:   make(chan string, queueSize),
		now:     time.Now,
		logger:  logger.With().Str("component", "bot").Logger(),
	}
}

// Subscribe attaches the notifier to the events managers care about.
func (n *Notifier) Subscribe(bus Subscriber) {
	bus.Subscribe(events.TypeBlockCreated, n.onBlockCreated)
	bus.Subscribe(events.TypeTestArchived, n.onTestArchived)
	bus.Subscribe(events.TypeTestReopened, n.onTestReopened)
}

// Run drains queued notifications until ctx is done.
func (n *Notifier) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case text := <-n.queue:
			if err := n.Broadcast(ctx, text); err != nil && !errors.Is(err, context.Canceled) {
				n.logger.Error().Err(err).Msg("notification failed")
			}
		}
	}
}

// enqueue keeps event handlers off the network path.
func (n *Notifier) enqueue(text string) {
	select {
	case n.queue <- text:
	default:
		metrics.IncNotification("dropped")
		n.logger.Warn().Msg("notification queue full, message dropped")
	}
}

// Broadcast sends text to every manager chat, honoring the rate limit.
func (n *Notifier) Broadcast(ctx context.Context, text string) error {
	if len(n.chats) == 0 {
		return ErrNoRecipients
	}
	var errs []error
	for _, chatID := range n.chats {
		if err := n.limiter.Wait(ctx); err != nil {
			return err
		}
		if _, err := n.tg.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
			metrics.IncNotification("failed")
			errs = append(errs, fmt.Errorf("chat %d: %w", chatID, err))
			continue
		}
		metrics.IncNotification("sent")
	}
	return errors.Join(errs...)
}

// SendDocument uploads a file to every manager chat.
func (n *Notifier) SendDocument(ctx context.Context, filename string, data io.Reader, caption string) error {
	if len(n.chats) == 0 {
		return ErrNoRecipients
	}
	// The reader is consumed once and replayed per chat.
	content, err := io.ReadAll(data)
	if err != nil {
		return fmt.Errorf("read document: %w", err)
	}

	var errs []error
	for _, chatID := range n.chats {
		if err := n.limiter.Wait(ctx); err != nil {
			return err
		}
		doc := tgbotapi.NewDocument(chatID, tgbotapi.FileReader{Name: filename, Reader: bytes.NewReader(content)})
		doc.Caption = caption
		if _, err := n.tg.Send(doc); err != nil {
			metrics.IncNotification("failed")
			errs = append(errs, fmt.Errorf("chat %d: %w", chatID, err))
			continue
		}
		metrics.IncNotification("sent")
	}
	return errors.Join(errs...)
}

func (n *Notifier) onBlockCreated(ev events.Event) error {
	var p events.BlockPayload
	if err := ev.Decode(&p); err != nil {
		return err
	}
	n.enqueue(formatBlockCreated(p))
	return nil
}

func (n *Notifier) onTestArchived(ev events.Event) error {
	var p events.TestPayload
	if err := ev.Decode(&p); err != nil {
		return err
	}
	n.enqueue(fmt.Sprintf("📦 %s archived by %s", n.describe(p.Code), p.Role))
	return nil
}

func (n *Notifier) onTestReopened(ev events.Event) error {
	var p events.TestPayload
	if err := ev.Decode(&p); err != nil {
		return err
	}
	n.enqueue(fmt.Sprintf("🔄 %s reopened by %s", n.describe(p.Code), p.Role))
	return nil
}

func (n *Notifier) describe(code string) string {
	t, err := n.tests.Get(code)
	if err != nil {
		return code
	}
	return describeTest(t)
}

func describeTest(t *models.Test) string {
	return fmt.Sprintf("%s %q (%s, %s)", t.Code, t.Name, t.Requester, t.Division)
}

func formatBlockCreated(p events.BlockPayload) string {
	period := p.Start
	if p.End != p.Start {
		period = p.Start + " to " + p.End
	}
	return fmt.Sprintf("⛔ Facility block %s: %s (%s), %s, created by %s", p.Code, p.Title, p.Type, period, p.Role)
}
