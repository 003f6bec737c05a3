package triggers

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/leoportal/leo-portal-api/databases/mocks"
	"github.com/leoportal/leo-portal-api/mailer"
	"github.com/leoportal/leo-portal-api/models"
	templates "github.com/leoportal/leo-portal-api/templates/html"
)

type recorder struct {
	mu       sync.Mutex
	emails   []string
	subjects []string
	appended []string
	updated  []string
	pushes   [][]string
	failMail bool
}

func (r *recorder) Send(_ context.Context, to mailer.Recipient, msg templates.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failMail {
		return errors.New("smtp down")
	}
	r.emails = append(r.emails, to.Email)
	r.subjects = append(r.subjects, msg.Subject)
	return nil
}

func (r *recorder) AppendMember(_ context.Context, u models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.appended = append(r.appended, u.Email)
	return nil
}

func (r *recorder) UpdateMember(_ context.Context, u models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.updated = append(r.updated, u.Email)
	return nil
}

func (r *recorder) Push(_ context.Context, tokens []string, _, _ string, _ map[string]interface{}) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pushes = append(r.pushes, tokens)
	return nil
}

func newDispatcher(rec *recorder, tokens *mocks.PushTokenDatabase, users *mocks.UserDatabase) *Dispatcher {
	return &Dispatcher{Mailer: rec, Mirror: rec, Pusher: rec, Tokens: tokens, Users: users, BaseURL: "https://portal.example.org/"}
}

func TestUserRegisteredMirrors(t *testing.T) {
	rec := &recorder{}
	d := newDispatcher(rec, &mocks.PushTokenDatabase{}, &mocks.UserDatabase{})

	d.UserRegistered(models.User{Email: "ada@example.com"})
	d.Wait()

	assert.Equal(t, []string{"ada@example.com"}, rec.appended)
	assert.Empty(t, rec.emails)
}

func TestUserApprovedEmailsAndUpdates(t *testing.T) {
	rec := &recorder{}
	d := newDispatcher(rec, &mocks.PushTokenDatabase{}, &mocks.UserDatabase{})

	d.UserApproved(models.User{Name: "Ada", Email: "ada@example.com"})
	d.Wait()

	assert.Equal(t, []string{"ada@example.com"}, rec.emails)
	assert.Equal(t, []string{"Your membership has been approved"}, rec.subjects)
	assert.Equal(t, []string{"ada@example.com"}, rec.updated)
}

func TestUserApprovedMailFailureStillUpdatesSheet(t *testing.T) {
	rec := &recorder{failMail: true}
	d := newDispatcher(rec, &mocks.PushTokenDatabase{}, &mocks.UserDatabase{})

	d.UserApproved(models.User{Email: "ada@example.com"})
	d.Wait()

	assert.Empty(t, rec.emails)
	assert.Equal(t, []string{"ada@example.com"}, rec.updated)
}

func TestEventCreatedPushesAllTokens(t *testing.T) {
	rec := &recorder{}
	tokens := &mocks.PushTokenDatabase{}
	tokens.On("Find", mock.Anything, bson.M{}).Return([]models.PushToken{{Token: "a"}, {Token: "b"}}, nil)
	d := newDispatcher(rec, tokens, &mocks.UserDatabase{})

	d.EventCreated(models.Event{ID: primitive.NewObjectID(), Title: "Beach cleanup", StartsAt: time.Now()})
	d.Wait()

	assert.Equal(t, [][]string{{"a", "b"}}, rec.pushes)
	tokens.AssertExpectations(t)
}

func TestIdeaReviewedNotifiesAuthor(t *testing.T) {
	rec := &recorder{}
	authorID := primitive.NewObjectID()

	tokens := &mocks.PushTokenDatabase{}
	tokens.On("Find", mock.Anything, bson.M{"userId": authorID.Hex()}).Return([]models.PushToken{{Token: "t1"}}, nil)

	users := &mocks.UserDatabase{}
	users.On("FindOne", mock.Anything, bson.M{"_id": authorID}).Return(&models.User{Name: "Ada", Email: "ada@example.com"}, nil)

	d := newDispatcher(rec, tokens, users)
	d.IdeaReviewed(models.ProjectIdea{ID: primitive.NewObjectID(), Title: "Book drive", Status: models.IdeaApproved, AuthorID: authorID.Hex()})
	d.Wait()

	assert.Equal(t, []string{"ada@example.com"}, rec.emails)
	assert.Equal(t, []string{"Project idea reviewed: Book drive"}, rec.subjects)
	assert.Equal(t, [][]string{{"t1"}}, rec.pushes)
}
