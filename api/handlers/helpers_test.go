package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/leoportal/leo-portal-api/api"
	"github.com/leoportal/leo-portal-api/databases/mocks"
	"github.com/leoportal/leo-portal-api/mailer"
	"github.com/leoportal/leo-portal-api/models"
	templates "github.com/leoportal/leo-portal-api/templates/html"
)

// newRequest builds a JSON request carrying the given caller and route variables
func newRequest(t *testing.T, method, target string, body interface{}, caller *api.Principal, vars map[string]string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")
	if caller != nil {
		req = req.WithContext(api.WithPrincipal(req.Context(), *caller))
	}
	if vars != nil {
		req = mux.SetURLVars(req, vars)
	}
	return req
}

func serve(h http.HandlerFunc, req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func member(id primitive.ObjectID) *api.Principal {
	return &api.Principal{UserID: id.Hex(), Email: "member@example.com", Role: models.RoleMember}
}

func admin(id primitive.ObjectID) *api.Principal {
	return &api.Principal{UserID: id.Hex(), Email: "admin@example.com", Role: models.RoleAdmin}
}

func insertResult(id primitive.ObjectID) *mocks.InsertOneResultHelper {
	res := &mocks.InsertOneResultHelper{}
	res.On("Decode").Return(id)
	return res
}

func matched(n int64) *mongo.UpdateResult {
	return &mongo.UpdateResult{MatchedCount: n, ModifiedCount: n}
}

func duplicateKeyError() error {
	return mongo.WriteException{WriteErrors: []mongo.WriteError{{Code: 11000, Message: "E11000 duplicate key error"}}}
}

func errorBody(t *testing.T, rr *httptest.ResponseRecorder) models.ErrorMessageResponse {
	t.Helper()
	var resp models.ErrorMessageResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	return resp
}

func decode(t *testing.T, rr *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), v), rr.Body.String())
}

// hookRecorder captures trigger calls instead of running side effects
type hookRecorder struct {
	mu         sync.Mutex
	registered []models.User
	approved   []models.User
	events     []models.Event
	reviewed   []models.ProjectIdea
}

func (h *hookRecorder) UserRegistered(u models.User) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.registered = append(h.registered, u)
}

func (h *hookRecorder) UserApproved(u models.User) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.approved = append(h.approved, u)
}

func (h *hookRecorder) EventCreated(e models.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events = append(h.events, e)
}

func (h *hookRecorder) IdeaReviewed(idea models.ProjectIdea) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.reviewed = append(h.reviewed, idea)
}

// broadcastRecorder captures hub broadcasts
type broadcastRecorder struct {
	events []string
	data   []interface{}
}

func (b *broadcastRecorder) Broadcast(event string, data interface{}) {
	b.events = append(b.events, event)
	b.data = append(b.data, data)
}

// fakeMailer fails delivery to any address listed in fail
type fakeMailer struct {
	mu   sync.Mutex
	fail map[string]bool
	sent []mailer.Recipient
	msgs []templates.Message
}

func (m *fakeMailer) Send(_ context.Context, to mailer.Recipient, msg templates.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail[to.Email] {
		return mailer.ErrNotConfigured
	}
	m.sent = append(m.sent, to)
	m.msgs = append(m.msgs, msg)
	return nil
}

