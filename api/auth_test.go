package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"golang.org/x/crypto/bcrypt"

	"github.com/leoportal/leo-portal-api/databases/mocks"
	"github.com/leoportal/leo-portal-api/models"
)

func hashed(t *testing.T, pw string) string {
	h, err := bcrypt.GenerateFromPassword([]byte(pw), bcrypt.MinCost)
	require.NoError(t, err)
	return string(h)
}

func newTestAuth(t *testing.T) (*Auth, *models.User) {
	user := &models.User{ID: primitive.NewObjectID(), Email: "ada@example.com", Password: hashed(t, "s3cret"), Role: models.RoleAdmin, Status: models.StatusApproved}
	db := &mocks.UserDatabase{}
	db.On("FindOne", mock.Anything, bson.M{"email": "ada@example.com"}).Return(user, nil)
	db.On("FindOne", mock.Anything, bson.M{"_id": user.ID, "status": models.StatusApproved}).Return(user, nil)
	db.On("FindOne", mock.Anything, bson.M{"email": "new@example.com"}).
		Return(&models.User{ID: primitive.NewObjectID(), Email: "new@example.com", Password: hashed(t, "s3cret"), Role: models.RoleMember, Status: models.StatusPending}, nil)
	db.On("FindOne", mock.Anything, mock.Anything).Return(nil, mongo.ErrNoDocuments)
	return NewAuth(db), user
}

func issueToken(t *testing.T, router *mux.Router, email, password string) TokenResponse {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/auth/token", nil)
	req.SetBasicAuth(email, password)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var tok TokenResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &tok))
	return tok
}

func testRouter(a *Auth) *mux.Router {
	r := mux.NewRouter()
	r.Handle("/auth/token", a.Middleware(http.HandlerFunc(a.CreateToken))).Methods(http.MethodPost)
	r.Handle("/auth/logout", a.Middleware(http.HandlerFunc(a.RevokeToken))).Methods(http.MethodDelete)
	r.Handle("/whoami", a.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, _ := PrincipalFromContext(r.Context())
		json.NewEncoder(w).Encode(p)
	})))
	r.Handle("/admin", a.Middleware(AdminOnly(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))))
	return r
}

func TestTokenLifecycle(t *testing.T) {
	a, user := newTestAuth(t)
	id := user.ID
	router := testRouter(a)

	tok := issueToken(t, router, "ada@example.com", "s3cret")
	assert.NotEmpty(t, tok.Token)
	assert.Equal(t, id.Hex(), tok.ID)
	assert.Equal(t, models.RoleAdmin, tok.Role)

	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("Authorization", "Bearer "+tok.Token)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)
	var p Principal
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &p))
	assert.Equal(t, Principal{UserID: id.Hex(), Email: "ada@example.com", Role: models.RoleAdmin}, p)

	// query parameter form used by websocket clients
	req = httptest.NewRequest(http.MethodGet, "/admin?access_token="+tok.Token, nil)
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusNoContent, rr.Code)

	req = httptest.NewRequest(http.MethodDelete, "/auth/logout", nil)
	req.Header.Set("Authorization", "Bearer "+tok.Token)
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code)

	req = httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("Authorization", "Bearer "+tok.Token)
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestCreateTokenRejectsBadCredentials(t *testing.T) {
	a, _ := newTestAuth(t)
	router := testRouter(a)

	cases := []struct {
		name  string
		email string
		pw    string
	}{
		{"wrong password", "ada@example.com", "nope"},
		{"unknown user", "ghost@example.com", "s3cret"},
		{"pending member", "new@example.com", "s3cret"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/auth/token", nil)
			req.SetBasicAuth(c.email, c.pw)
			rr := httptest.NewRecorder()
			router.ServeHTTP(rr, req)
			assert.Equal(t, http.StatusUnauthorized, rr.Code)
		})
	}
}

func TestAdminOnly(t *testing.T) {
	handler := AdminOnly(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	req = req.WithContext(WithPrincipal(req.Context(), Principal{UserID: "u1", Role: models.RoleMember}))
	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusForbidden, rr.Code)

	req = req.WithContext(WithPrincipal(req.Context(), Principal{UserID: "u1", Role: models.RoleAdmin}))
	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusNoContent, rr.Code)
}

func TestMiddlewareUsesCurrentRole(t *testing.T) {
	a, user := newTestAuth(t)
	router := testRouter(a)
	tok := issueToken(t, router, "ada@example.com", "s3cret")

	user.Role = models.RoleMember

	req := httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.Header.Set("Authorization", "Bearer "+tok.Token)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusForbidden, rr.Code)

	req = httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.SetBasicAuth("ada@example.com", "s3cret")
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusForbidden, rr.Code)
}

func TestMiddlewareRejectsRemovedMember(t *testing.T) {
	user := &models.User{ID: primitive.NewObjectID(), Email: "ada@example.com", Password: hashed(t, "s3cret"), Role: models.RoleAdmin, Status: models.StatusApproved}
	removed := false
	db := &mocks.UserDatabase{}
	db.On("FindOne", mock.Anything, bson.M{"email": "ada@example.com"}).Return(user, nil)
	db.On("FindOne", mock.Anything, bson.M{"_id": user.ID, "status": models.StatusApproved}).Return(
		func(context.Context, interface{}, ...*options.FindOneOptions) *models.User {
			if removed {
				return nil
			}
			return user
		},
		func(context.Context, interface{}, ...*options.FindOneOptions) error {
			if removed {
				return mongo.ErrNoDocuments
			}
			return nil
		},
	)
	router := testRouter(NewAuth(db))
	tok := issueToken(t, router, "ada@example.com", "s3cret")

	removed = true

	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("Authorization", "Bearer "+tok.Token)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestBasicAuthSeesPasswordReset(t *testing.T) {
	a, user := newTestAuth(t)
	router := testRouter(a)
	issueToken(t, router, "ada@example.com", "s3cret")

	user.Password = hashed(t, "n3w-secret")

	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.SetBasicAuth("ada@example.com", "s3cret")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestRevokeTokenRequiresBearer(t *testing.T) {
	a, _ := newTestAuth(t)
	req := httptest.NewRequest(http.MethodDelete, "/auth/logout", nil)
	rr := httptest.NewRecorder()
	a.RevokeToken(rr, req)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}
