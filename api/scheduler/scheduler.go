package scheduler

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/robfig/cron/v3"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/leoportal/leo-portal-api/api"
	"github.com/leoportal/leo-portal-api/databases"
	"github.com/leoportal/leo-portal-api/mailer"
	"github.com/leoportal/leo-portal-api/models"
	"github.com/leoportal/leo-portal-api/notify"
	templates "github.com/leoportal/leo-portal-api/templates/html"
)

// Job names double as lock names in the schedulerlocks collection
const (
	BirthdayJob       = "birthday_greetings"
	EventReminderJob  = "event_reminders"
	DuesReminderJob   = "dues_reminders"
	MonthlyReportJob  = "monthly_report"
	reminderLookahead = 24 * time.Hour
)

// Scheduler runs the club's periodic background jobs
type Scheduler struct {
	cron       *cron.Cron
	UDB        databases.UserDatabase
	EDB        databases.EventDatabase
	ADB        databases.AttendanceDatabase
	TDB        databases.TransactionDatabase
	PTDB       databases.PushTokenDatabase
	LockDB     databases.SchedulerLockDatabase
	Mailer     mailer.Mailer
	Pusher     notify.Pusher
	DuesAmount int64
	Currency   string
	instanceID string
	now        func() time.Time
}

// NewScheduler creates a new scheduler instance
func NewScheduler(
	uDB databases.UserDatabase,
	eDB databases.EventDatabase,
	aDB databases.AttendanceDatabase,
	tDB databases.TransactionDatabase,
	ptDB databases.PushTokenDatabase,
	lockDB databases.SchedulerLockDatabase,
	m mailer.Mailer,
	p notify.Pusher,
) *Scheduler {
	// Heroku sets DYNO to "web.1", "web.2", etc.
	instanceID := os.Getenv("DYNO")
	if instanceID == "" {
		instanceID = fmt.Sprintf("instance-%d", time.Now().UnixNano())
	}

	return &Scheduler{
		cron:       cron.New(cron.WithLocation(time.UTC)),
		UDB:        uDB,
		EDB:        eDB,
		ADB:        aDB,
		TDB:        tDB,
		PTDB:       ptDB,
		LockDB:     lockDB,
		Mailer:     m,
		Pusher:     p,
		instanceID: instanceID,
		now:        time.Now,
	}
}

// Start registers every job and starts the cron loop
func (s *Scheduler) Start() {
	jobs := []struct {
		spec string
		name string
		ttl  time.Duration
		fn   func(context.Context) error
	}{
		{"0 7 * * *", BirthdayJob, 30 * time.Minute, s.SendBirthdayGreetings},
		{"0 * * * *", EventReminderJob, 30 * time.Minute, s.SendEventReminders},
		{"0 9 1 * *", DuesReminderJob, time.Hour, s.SendDuesReminders},
		{"0 8 1 * *", MonthlyReportJob, 30 * time.Minute, s.SendMonthlyReport},
	}
	for _, j := range jobs {
		j := j
		if _, err := s.cron.AddFunc(j.spec, func() { s.RunLocked(j.name, j.ttl, j.fn) }); err != nil {
			zap.S().Errorw("failed to register scheduled job", "job", j.name, "error", err)
		}
	}

	s.cron.Start()
	zap.S().Info("club scheduler started")
}

// Stop waits for running jobs and stops the scheduler
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	zap.S().Info("club scheduler stopped")
}

// RunLocked runs fn only when this instance holds the named lock. It reports
// whether fn ran.
func (s *Scheduler) RunLocked(name string, ttl time.Duration, fn func(context.Context) error) bool {
	ctx, cancel := context.WithTimeout(context.Background(), ttl)
	defer cancel()

	acquired, err := s.LockDB.TryAcquireLock(ctx, name, s.instanceID, ttl)
	if err != nil {
		zap.S().Errorw("failed to acquire scheduler lock", "job", name, "error", err)
		return false
	}
	if !acquired {
		zap.S().Debugw("job already running on another instance, skipping", "job", name)
		return false
	}
	defer func() {
		if err := s.LockDB.ReleaseLock(context.Background(), name, s.instanceID); err != nil {
			zap.S().Warnw("failed to release scheduler lock", "job", name, "error", err)
		}
	}()

	started := time.Now()
	zap.S().Infow("running scheduled job", "job", name, "instance", s.instanceID)
	err = fn(ctx)
	api.RecordJobRun(name, err)
	if err != nil {
		zap.S().Errorw("scheduled job failed", "job", name, "error", err, "duration", time.Since(started))
		return true
	}
	zap.S().Infow("scheduled job finished", "job", name, "duration", time.Since(started))
	return true
}

// SendBirthdayGreetings emails every approved member whose birthday is today.
// Members born on 29 February are greeted on the 28th in common years.
func (s *Scheduler) SendBirthdayGreetings(ctx context.Context) error {
	today := s.now().UTC()
	pattern := "-" + today.Format("01-02") + "$"
	if today.Month() == time.February && today.Day() == 28 && !isLeap(today.Year()) {
		pattern = "-02-(28|29)$"
	}

	users, err := s.UDB.Find(ctx, bson.M{
		"status":   models.StatusApproved,
		"birthday": bson.M{"$regex": pattern},
	})
	if err != nil {
		return fmt.Errorf("failed to find birthdays: %w", err)
	}

	failed := 0
	for _, u := range users {
		if err := s.Mailer.Send(ctx, mailer.Recipient{Name: u.Name, Email: u.Email}, templates.BirthdayEmail(u.Name)); err != nil {
			zap.S().Warnw("failed to send birthday email", "userID", u.ID.Hex(), "error", err)
			failed++
		}
	}
	zap.S().Infow("birthday greetings sent", "members", len(users), "failed", failed)
	if failed > 0 {
		return fmt.Errorf("%d of %d birthday emails failed", failed, len(users))
	}
	return nil
}

// SendEventReminders notifies members about events starting within the next
// 24 hours. Each event is claimed by flipping reminderSent before anything is
// sent so a reminder goes out at most once.
func (s *Scheduler) SendEventReminders(ctx context.Context) error {
	now := s.now().UTC()
	events, err := s.EDB.Find(ctx, bson.M{
		"startsAt":     bson.M{"$gte": now, "$lte": now.Add(reminderLookahead)},
		"reminderSent": bson.M{"$ne": true},
	})
	if err != nil {
		return fmt.Errorf("failed to find upcoming events: %w", err)
	}
	if len(events) == 0 {
		return nil
	}

	members, err := s.UDB.Find(ctx, bson.M{"status": models.StatusApproved})
	if err != nil {
		return fmt.Errorf("failed to find members: %w", err)
	}
	recipients := make([]mailer.Recipient, 0, len(members))
	for _, u := range members {
		recipients = append(recipients, mailer.Recipient{Name: u.Name, Email: u.Email})
	}
	tokens, err := s.pushTokens(ctx)
	if err != nil {
		zap.S().Warnw("failed to load push tokens for reminders", "error", err)
	}

	for _, e := range events {
		res, err := s.EDB.UpdateOne(ctx,
			bson.M{"_id": e.ID, "reminderSent": bson.M{"$ne": true}},
			bson.M{"$set": bson.M{"reminderSent": true}},
		)
		if err != nil {
			return fmt.Errorf("failed to claim reminder for event %s: %w", e.ID.Hex(), err)
		}
		if res.MatchedCount == 0 {
			continue
		}

		sent := mailer.SendAll(ctx, s.Mailer, recipients, templates.EventReminderEmail(e.Title, e.Venue, e.StartsAt))
		if s.Pusher != nil && len(tokens) > 0 {
			body := fmt.Sprintf("%s starts %s", e.Title, e.StartsAt.UTC().Format("Mon 2 Jan 15:04 MST"))
			data := map[string]interface{}{"type": "event_reminder", "eventId": e.ID.Hex()}
			if err := s.Pusher.Push(ctx, tokens, "Event reminder", body, data); err != nil {
				zap.S().Warnw("failed to push event reminder", "eventID", e.ID.Hex(), "error", err)
			}
		}
		zap.S().Infow("event reminder sent", "eventID", e.ID.Hex(), "sent", sent.Sent, "failed", sent.Failed)
	}
	return nil
}

// SendDuesReminders emails approved members who have not paid this year's dues
func (s *Scheduler) SendDuesReminders(ctx context.Context) error {
	if s.DuesAmount <= 0 {
		zap.S().Debug("dues amount not configured, skipping dues reminders")
		return nil
	}
	users, err := s.UDB.Find(ctx, bson.M{
		"status":     models.StatusApproved,
		"duesStatus": bson.M{"$ne": models.DuesPaid},
	})
	if err != nil {
		return fmt.Errorf("failed to find unpaid members: %w", err)
	}

	failed := 0
	for _, u := range users {
		msg := templates.DuesReminderEmail(u.Name, s.DuesAmount, s.Currency)
		if err := s.Mailer.Send(ctx, mailer.Recipient{Name: u.Name, Email: u.Email}, msg); err != nil {
			zap.S().Warnw("failed to send dues reminder", "userID", u.ID.Hex(), "error", err)
			failed++
		}
	}
	zap.S().Infow("dues reminders sent", "members", len(users), "failed", failed)
	if failed > 0 {
		return fmt.Errorf("%d of %d dues reminders failed", failed, len(users))
	}
	return nil
}

// SendMonthlyReport emails every admin a digest of the previous calendar month
func (s *Scheduler) SendMonthlyReport(ctx context.Context) error {
	start, end := previousMonth(s.now())
	report, err := s.BuildMonthlyReport(ctx, start, end)
	if err != nil {
		return err
	}

	admins, err := s.UDB.Find(ctx, bson.M{"status": models.StatusApproved, "role": models.RoleAdmin})
	if err != nil {
		return fmt.Errorf("failed to find admins: %w", err)
	}
	recipients := make([]mailer.Recipient, 0, len(admins))
	for _, a := range admins {
		recipients = append(recipients, mailer.Recipient{Name: a.Name, Email: a.Email})
	}
	res := mailer.SendAll(ctx, s.Mailer, recipients, templates.MonthlyReportEmail(report))
	if res.Failed > 0 {
		return fmt.Errorf("%d of %d monthly reports failed", res.Failed, res.Recipients)
	}
	return nil
}

// BuildMonthlyReport collects activity between start (inclusive) and end (exclusive)
func (s *Scheduler) BuildMonthlyReport(ctx context.Context, start, end time.Time) (templates.MonthlyReport, error) {
	report := templates.MonthlyReport{Month: start.Format("January 2006"), Currency: s.Currency}

	events, err := s.EDB.CountDocuments(ctx, bson.M{"startsAt": bson.M{"$gte": start, "$lt": end}})
	if err != nil {
		return report, fmt.Errorf("failed to count events: %w", err)
	}
	marks, err := s.ADB.CountDocuments(ctx, bson.M{"markedAt": bson.M{"$gte": start, "$lt": end}})
	if err != nil {
		return report, fmt.Errorf("failed to count attendance: %w", err)
	}
	joined, err := s.UDB.CountDocuments(ctx, bson.M{"approvedAt": bson.M{
		"$gte": primitive.NewDateTimeFromTime(start),
		"$lt":  primitive.NewDateTimeFromTime(end),
	}})
	if err != nil {
		return report, fmt.Errorf("failed to count new members: %w", err)
	}
	txns, err := s.TDB.Find(ctx, bson.M{"date": bson.M{"$gte": start, "$lt": end}})
	if err != nil {
		return report, fmt.Errorf("failed to find transactions: %w", err)
	}
	summary := models.Summarize(txns)

	report.Events = int(events)
	report.Attendance = int(marks)
	report.NewMembers = int(joined)
	report.IncomeCents = summary.Income
	report.ExpenseCents = summary.Expense
	return report, nil
}

func (s *Scheduler) pushTokens(ctx context.Context) ([]string, error) {
	if s.PTDB == nil {
		return nil, nil
	}
	found, err := s.PTDB.Find(ctx, bson.M{}, options.Find().SetProjection(bson.M{"token": 1}))
	if err != nil {
		return nil, err
	}
	tokens := make([]string, 0, len(found))
	for _, t := range found {
		tokens = append(tokens, t.Token)
	}
	return tokens, nil
}

// previousMonth returns the UTC bounds of the calendar month before t
func previousMonth(t time.Time) (time.Time, time.Time) {
	t = t.UTC()
	end := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	return end.AddDate(0, -1, 0), end
}

func isLeap(year int) bool {
	return year%4 == 0 && (year%100 != 0 || year%400 == 0)
}
