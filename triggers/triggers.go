// Package triggers runs the side effects that follow a successful write: email,
// push notifications and the spreadsheet mirror. Hooks run in the background and
// their failures are only logged; the write that fired them has already succeeded.
package triggers

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/leoportal/leo-portal-api/databases"
	"github.com/leoportal/leo-portal-api/mailer"
	"github.com/leoportal/leo-portal-api/models"
	"github.com/leoportal/leo-portal-api/notify"
	"github.com/leoportal/leo-portal-api/sheets"
	templates "github.com/leoportal/leo-portal-api/templates/html"
)

const hookTimeout = 30 * time.Second

// Hooks is implemented by Dispatcher; handlers depend on this so tests can
// record calls without running side effects
type Hooks interface {
	UserRegistered(u models.User)
	UserApproved(u models.User)
	EventCreated(e models.Event)
	IdeaReviewed(idea models.ProjectIdea)
}

// Dispatcher fires hooks asynchronously
type Dispatcher struct {
	Mailer  mailer.Mailer
	Mirror  sheets.Mirror
	Pusher  notify.Pusher
	Tokens  databases.PushTokenDatabase
	Users   databases.UserDatabase
	BaseURL string

	wg sync.WaitGroup
}

// Wait blocks until every hook fired so far has finished
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

func (d *Dispatcher) run(name string, fn func(ctx context.Context) error) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), hookTimeout)
		defer cancel()
		if err := fn(ctx); err != nil {
			zap.S().Errorw("trigger failed", "trigger", name, "error", err)
			return
		}
		zap.S().Debugw("trigger done", "trigger", name)
	}()
}

// UserRegistered mirrors the new registration to the spreadsheet
func (d *Dispatcher) UserRegistered(u models.User) {
	d.run("user_registered", func(ctx context.Context) error {
		return d.Mirror.AppendMember(ctx, u)
	})
}

// UserApproved emails the member and updates their spreadsheet row
func (d *Dispatcher) UserApproved(u models.User) {
	d.run("user_approved_email", func(ctx context.Context) error {
		loginURL := strings.TrimRight(d.BaseURL, "/") + "/login"
		return d.Mailer.Send(ctx, mailer.Recipient{Name: u.Name, Email: u.Email}, templates.ApprovalEmail(u.Name, loginURL))
	})
	d.run("user_approved_sheet", func(ctx context.Context) error {
		return d.Mirror.UpdateMember(ctx, u)
	})
}

// EventCreated pushes the new event to every registered device
func (d *Dispatcher) EventCreated(e models.Event) {
	d.run("event_created", func(ctx context.Context) error {
		tokens, err := d.Tokens.Find(ctx, bson.M{})
		if err != nil {
			return err
		}
		body := e.StartsAt.UTC().Format("Mon 02 Jan 15:04 MST")
		if e.Venue != "" {
			body += " at " + e.Venue
		}
		return d.Pusher.Push(ctx, tokenStrings(tokens), "New event: "+e.Title, body,
			map[string]interface{}{"type": "event_created", "eventId": e.ID.Hex()})
	})
}

// IdeaReviewed tells the author the outcome by email and push
func (d *Dispatcher) IdeaReviewed(idea models.ProjectIdea) {
	d.run("idea_reviewed_email", func(ctx context.Context) error {
		uID, err := primitive.ObjectIDFromHex(idea.AuthorID)
		if err != nil {
			return err
		}
		author, err := d.Users.FindOne(ctx, bson.M{"_id": uID})
		if err != nil {
			return err
		}
		msg := templates.IdeaReviewedEmail(author.Name, idea.Title, idea.Status, idea.ReviewComment)
		return d.Mailer.Send(ctx, mailer.Recipient{Name: author.Name, Email: author.Email}, msg)
	})
	d.run("idea_reviewed_push", func(ctx context.Context) error {
		tokens, err := d.Tokens.Find(ctx, bson.M{"userId": idea.AuthorID})
		if err != nil {
			return err
		}
		return d.Pusher.Push(ctx, tokenStrings(tokens), "Project idea reviewed",
			idea.Title+": "+strings.ReplaceAll(idea.Status, "_", " "),
			map[string]interface{}{"type": "idea_reviewed", "ideaId": idea.ID.Hex()})
	})
}

func tokenStrings(tokens []models.PushToken) []string {
	out := make([]string, 0, len(tokens))
	for _, t := range tokens {
		out = append(out, t.Token)
	}
	return out
}
