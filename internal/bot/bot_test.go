package bot

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smflab/internal/events"
	"smflab/internal/models"
)

type fakeSender struct {
	mu   sync.Mutex
	sent []tgbotapi.Chattable
	fail map[int64]bool
}

func (f *fakeSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	switch m := c.(type) {
	case tgbotapi.MessageConfig:
		if f.fail[m.ChatID] {
			return tgbotapi.Message{}, errors.New("blocked by user")
		}
	case tgbotapi.DocumentConfig:
		if f.fail[m.ChatID] {
			return tgbotapi.Message{}, errors.New("blocked by user")
		}
	}
	f.sent = append(f.sent, c)
	return tgbotapi.Message{}, nil
}

func (f *fakeSender) texts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, c := range f.sent {
		if m, ok := c.(tgbotapi.MessageConfig); ok {
			out = append(out, m.Text)
		}
	}
	return out
}

type fakeTests struct {
	tests []*models.Test
}

func (f *fakeTests) Get(code string) (*models.Test, error) {
	for _, t := range f.tests {
		if t.Code == code {
			return t, nil
		}
	}
	return nil, errors.New("not found")
}

func (f *fakeTests) List() []*models.Test { return f.tests }

func planned(code, name, start, end string) *models.Test {
	steps := models.DefaultSteps()
	steps[models.StepTestSetup] = models.ValueCompleted
	steps[models.StepScheduling] = models.ValuePlanned
	return &models.Test{
		Code:      code,
		Name:      name,
		Requester: "Carlo Rossi",
		Division:  "Propulsion",
		Steps:     steps,
		Dates:     models.MustRange(start, end),
	}
}

func newNotifier(sender TelegramSender, tests TestSource, chats ...int64) *Notifier {
	logger := zerolog.New(io.Discard)
	n := NewWithSender(sender, tests, Options{ManagerChatIDs: chats, MessagesPerSecond: 1000}, &logger)
	n.now = func() time.Time { return time.Date(2025, 6, 1, 8, 30, 0, 0, time.UTC) }
	return n
}

func TestBroadcast(t *testing.T) {
	t.Run("all chats", func(t *testing.T) {
		sender := &fakeSender{}
		n := newNotifier(sender, &fakeTests{}, 1, 2)
		require.NoError(t, n.Broadcast(context.Background(), "hello"))
		assert.Equal(t, []string{"hello", "hello"}, sender.texts())
	})

	t.Run("failure in one chat does not stop others", func(t *testing.T) {
		sender := &fakeSender{fail: map[int64]bool{1: true}}
		n := newNotifier(sender, &fakeTests{}, 1, 2)
		err := n.Broadcast(context.Background(), "hello")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "chat 1")
		assert.Len(t, sender.texts(), 1)
	})

	t.Run("no recipients", func(t *testing.T) {
		n := newNotifier(&fakeSender{}, &fakeTests{})
		assert.ErrorIs(t, n.Broadcast(context.Background(), "hello"), ErrNoRecipients)
	})
}

func TestSendDocumentReplaysReader(t *testing.T) {
	sender := &fakeSender{}
	n := newNotifier(sender, &fakeTests{}, 1, 2)

	err := n.SendDocument(context.Background(), "audit.xlsx", strings.NewReader("payload"), "June export")
	require.NoError(t, err)
	require.Len(t, sender.sent, 2)

	for _, c := range sender.sent {
		doc, ok := c.(tgbotapi.DocumentConfig)
		require.True(t, ok)
		assert.Equal(t, "June export", doc.Caption)
		file, ok := doc.File.(tgbotapi.FileReader)
		require.True(t, ok)
		data, err := io.ReadAll(file.Reader)
		require.NoError(t, err)
		assert.Equal(t, "payload", string(data))
	}
}

func TestEventNotifications(t *testing.T) {
	logger := zerolog.New(io.Discard)
	bus := events.NewEventBus(&logger)
	sender := &fakeSender{}
	tests := &fakeTests{tests: []*models.Test{planned("D-001", "Vibration sweep", "2025-06-02", "2025-06-04")}}
	n := newNotifier(sender, tests, 7)
	n.Subscribe(bus)

	require.NoError(t, bus.PublishJSON(events.TypeBlockCreated, events.BlockPayload{
		Code: "B-01", Type: "maintenance", Title: "Shaker service", Start: "2025-06-10", End: "2025-06-10", Role: "Admin",
	}))
	require.NoError(t, bus.PublishJSON(events.TypeTestArchived, events.TestPayload{Code: "D-001", Role: "Admin"}))
	require.NoError(t, bus.PublishJSON(events.TypeTestReopened, events.TestPayload{Code: "D-404", Role: "SuperAdmin"}))
	require.NoError(t, bus.PublishJSON(events.TypeStepUpdated, events.TestPayload{Code: "D-001"}))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		n.Run(ctx)
		close(done)
	}()
	require.Eventually(t, func() bool { return len(sender.texts()) == 3 }, time.Second, 10*time.Millisecond)
	cancel()
	<-done

	texts := sender.texts()
	assert.Equal(t, "⛔ Facility block B-01: Shaker service (maintenance), 2025-06-10, created by Admin", texts[0])
	assert.Equal(t, `📦 D-001 "Vibration sweep" (Carlo Rossi, Propulsion) archived by Admin`, texts[1])
	assert.Equal(t, "🔄 D-404 reopened by SuperAdmin", texts[2])
}

func TestSendDigest(t *testing.T) {
	archived := planned("D-004", "Shock", "2025-06-02", "2025-06-02")
	archived.Archived = true
	onHold := planned("D-003", "Thermal vacuum", "2025-06-02", "2025-06-05")
	onHold.Steps[models.StepTestSetup] = models.ValueStarted

	tests := &fakeTests{tests: []*models.Test{
		planned("D-002", "Acoustic test", "2025-06-03", "2025-06-03"),
		onHold,
		planned("D-001", "Vibration sweep", "2025-06-02", "2025-06-04"),
		archived,
	}}
	sender := &fakeSender{}
	n := newNotifier(sender, tests, 7)

	require.NoError(t, n.SendDigest(context.Background()))
	texts := sender.texts()
	require.Len(t, texts, 1)
	assert.Equal(t,
		"🗓 Tests starting tomorrow, Mon 02 Jun 2025\n\n"+
			"1. D-001 \"Vibration sweep\" (Carlo Rossi, Propulsion), until 2025-06-04\n"+
			"2. D-003 \"Thermal vacuum\" (Carlo Rossi, Propulsion), until 2025-06-05 ⚠️ not confirmed\n",
		texts[0])
}

func TestSendDigestNothingDue(t *testing.T) {
	sender := &fakeSender{}
	n := newNotifier(sender, &fakeTests{tests: []*models.Test{planned("D-001", "x", "2025-07-01", "2025-07-01")}}, 7)
	require.NoError(t, n.SendDigest(context.Background()))
	assert.Empty(t, sender.sent)
}

func TestPaginate(t *testing.T) {
	lines := []string{"a", "b", "c"}

	pages := paginate("Title", lines, 2)
	require.Len(t, pages, 2)
	assert.Equal(t, "Title (page 1 of 2)\n\n1. a\n2. b\n", pages[0])
	assert.Equal(t, "Title (page 2 of 2)\n\n3. c\n", pages[1])

	assert.Equal(t, []string{"Title\n\n1. a\n2. b\n3. c\n"}, paginate("Title", lines, 5))
	assert.Equal(t, []string{"Title"}, paginate("Title", nil, 5))
}

func TestTimeUntilNextHour(t *testing.T) {
	base := time.Date(2025, 6, 1, 8, 30, 0, 0, time.UTC)
	assert.Equal(t, 30*time.Minute, timeUntilNextHour(base, 9))
	assert.Equal(t, 23*time.Hour+30*time.Minute, timeUntilNextHour(base, 8))
	assert.Equal(t, 24*time.Hour, timeUntilNextHour(time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC), 9))
}
