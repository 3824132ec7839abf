package bot

import (
	"context"
	"fmt"
	"sort"
	"time"

	"smflab/internal/models"
	"smflab/internal/workflow"
)

const digestPageSize = 20

// StartReminders sends the "starting tomorrow" digest every day at the reminder hour.
func (n *Notifier) StartReminders(ctx context.Context) {
	if n == nil || n.tests == nil {
		return
	}

	go func() {
		timer := time.NewTimer(timeUntilNextHour(n.now(), n.hour))
		defer timer.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-timer.C:
				if err := n.SendDigest(ctx); err != nil {
					n.logger.Error().Err(err).Msg("daily digest failed")
				}
				timer.Reset(timeUntilNextHour(n.now(), n.hour))
			}
		}
	}()
}

// SendDigest broadcasts the tests whose planned start is tomorrow. Nothing is sent when there are none.
func (n *Notifier) SendDigest(ctx context.Context) error {
	tomorrow := models.AddDays(models.Day(n.now()), 1)
	due := startingOn(n.tests.List(), tomorrow)
	if len(due) == 0 {
		n.logger.Debug().Time("day", tomorrow).Msg("no tests start tomorrow")
		return nil
	}

	lines := make([]string, 0, len(due))
	for _, t := range due {
		lines = append(lines, formatDigestLine(t))
	}

	title := "🗓 Tests starting tomorrow, " + tomorrow.Format("Mon 02 Jan 2006")
	for _, page := range paginate(title, lines, digestPageSize) {
		if err := n.Broadcast(ctx, page); err != nil {
			return err
		}
	}
	n.logger.Info().Int("tests", len(due)).Msg("daily digest sent")
	return nil
}

func startingOn(tests []*models.Test, day time.Time) []*models.Test {
	var out []*models.Test
	for _, t := range tests {
		if t.Archived || !t.Dates.IsSet() {
			continue
		}
		if t.Dates.Start.Equal(day) {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}

func formatDigestLine(t *models.Test) string {
	line := fmt.Sprintf("%s, until %s", describeTest(t), models.FormatDate(t.Dates.End))
	if len(t.Operators) > 0 {
		line += fmt.Sprintf(", operators: %v", t.Operators)
	}
	if !workflow.IsPlanned(t) {
		line += " ⚠️ not confirmed"
	}
	return line
}

func timeUntilNextHour(now time.Time, hour int) time.Duration {
	next := time.Date(now.Year(), now.Month(), now.Day(), hour, 0, 0, 0, now.Location())
	if !next.After(now) {
		next = next.Add(24 * time.Hour)
	}
	return next.Sub(now)
}
