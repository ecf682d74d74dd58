package booking

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/clinic/clinic/internal/platform/events"
)

// DefaultReminderLead is how far ahead confirmed appointments are reminded.
const DefaultReminderLead = time.Hour

// Reminder publishes appointment.reminder events for confirmed appointments
// that start within the lead time. Each appointment is reminded once.
type Reminder struct {
	repo      Repository
	publisher events.Publisher
	logger    zerolog.Logger
	loc       *time.Location
	lead      time.Duration
	now       func() time.Time
	cron      *cron.Cron
}

func NewReminder(repo Repository, pub events.Publisher, logger zerolog.Logger, loc *time.Location) *Reminder {
	if loc == nil {
		loc = time.UTC
	}
	if pub == nil {
		pub = events.NopPublisher{}
	}
	return &Reminder{
		repo:      repo,
		publisher: pub,
		logger:    logger.With().Str("component", "reminder").Logger(),
		loc:       loc,
		lead:      DefaultReminderLead,
		now:       time.Now,
	}
}

// Run sends reminders that are due now and returns how many were sent.
func (r *Reminder) Run(ctx context.Context) (int, error) {
	start := r.now().In(r.loc)
	due, err := r.repo.DueReminders(ctx, start, start.Add(r.lead))
	if err != nil {
		return 0, fmt.Errorf("find due reminders: %w", err)
	}
	sent := 0
	for _, a := range due {
		evt := events.Event{
			Type:          events.TypeAppointmentReminder,
			AppointmentID: a.ID,
			DoctorID:      a.DoctorID,
			BranchID:      a.BranchID,
			Date:          a.Date.String(),
			Time:          a.Time.String(),
			Status:        string(a.Status),
			Attributes: map[string]string{
				"patient_name": a.DisplayName(),
				"phone":        a.Phone,
				"doctor_name":  a.DoctorName,
				"service_name": a.ServiceName,
				"starts_at":    a.Time.On(a.Date, r.loc).Format(time.RFC3339),
			},
		}
		if err := r.publisher.Publish(ctx, evt); err != nil {
			r.logger.Error().Err(err).Str("appointment_id", a.ID.String()).Msg("failed to publish reminder")
			continue
		}
		if err := r.repo.MarkReminded(ctx, a.ID, r.now()); err != nil {
			r.logger.Error().Err(err).Str("appointment_id", a.ID.String()).Msg("failed to mark reminder sent")
			continue
		}
		sent++
	}
	return sent, nil
}

// Start schedules Run on a standard cron spec evaluated in the clinic zone.
func (r *Reminder) Start(spec string) error {
	c := cron.New(cron.WithLocation(r.loc))
	if _, err := c.AddFunc(spec, func() {
		n, err := r.Run(context.Background())
		if err != nil {
			r.logger.Error().Err(err).Msg("reminder run failed")
			return
		}
		if n > 0 {
			r.logger.Info().Int("sent", n).Msg("appointment reminders sent")
		}
	}); err != nil {
		return fmt.Errorf("schedule reminders: %w", err)
	}
	r.cron = c
	c.Start()
	r.logger.Info().Str("schedule", spec).Msg("reminder scheduler started")
	return nil
}

// Stop halts the scheduler and waits for a running job to finish.
func (r *Reminder) Stop() {
	if r.cron != nil {
		<-r.cron.Stop().Done()
	}
}
