package api

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shaj13/go-guardian/auth"
	"github.com/shaj13/go-guardian/auth/strategies/basic"
	"github.com/shaj13/go-guardian/auth/strategies/bearer"
	"github.com/shaj13/go-guardian/store"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/leoportal/leo-portal-api/config"
	"github.com/leoportal/leo-portal-api/databases"
	"github.com/leoportal/leo-portal-api/models"
)

// TokenTTL is how long an issued bearer token stays valid
const TokenTTL = 30 * 24 * time.Hour

var (
	errInvalidCredentials = errors.New("invalid credentials")
	errNotApproved        = errors.New("membership is not approved yet")
	errInactive           = errors.New("membership is no longer active")
)

// Auth authenticates requests with go-guardian. Members exchange their email and
// password (basic auth) for a bearer token. The token only proves identity: role
// and status are read from the users collection on every request, so a demotion,
// rejection or password reset takes effect immediately.
type Auth struct {
	DB databases.UserDatabase

	authenticator auth.Authenticator
	cache         store.Cache
}

// NewAuth sets up the basic and cached bearer strategies. Basic credentials are
// checked against the database each time rather than cached.
func NewAuth(db databases.UserDatabase) *Auth {
	a := &Auth{DB: db}
	a.authenticator = auth.New()
	a.cache = store.NewFIFO(context.Background(), TokenTTL)
	basicStrategy := basic.AuthenticateFunc(a.ValidateUser)
	tokenStrategy := bearer.New(bearer.NoOpAuthenticate, a.cache)

	a.authenticator.EnableStrategy(basic.StrategyKey, basicStrategy)
	a.authenticator.EnableStrategy(bearer.CachedStrategyKey, tokenStrategy)
	return a
}

// ValidateUser checks an email and password against the users collection. Only
// approved members may sign in.
func (a *Auth) ValidateUser(ctx context.Context, r *http.Request, email, password string) (auth.Info, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	qctx, cancel := WithQueryTimeout(ctx)
	defer cancel()

	user, err := a.DB.FindOne(qctx, bson.M{"email": email})
	if err != nil {
		return nil, errInvalidCredentials
	}

	emailHash := sha256.Sum256([]byte(email))
	expectedHash := sha256.Sum256([]byte(user.Email))
	if subtle.ConstantTimeCompare(emailHash[:], expectedHash[:]) != 1 {
		return nil, errInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return nil, errInvalidCredentials
	}
	if user.Status != models.StatusApproved {
		return nil, errNotApproved
	}

	return auth.NewDefaultUser(user.Email, user.ID.Hex(), []string{user.Role}, nil), nil
}

// Middleware authenticates the request and stores the Principal in its context.
// Browsers cannot set headers on websocket upgrades, so an access_token query
// parameter is accepted in place of the Authorization header.
func (a *Auth) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") == "" {
			if t := r.URL.Query().Get("access_token"); t != "" {
				r.Header.Set("Authorization", "Bearer "+t)
			}
		}
		info, err := a.authenticator.Authenticate(r)
		if err != nil {
			zap.S().Debugw("unauthorized", "url", r.URL.Path, "error", err)
			config.ErrorStatus("unauthorized", http.StatusUnauthorized, w, err)
			return
		}
		user, err := a.currentUser(r.Context(), info.ID())
		if err != nil {
			if errors.Is(err, errInactive) {
				zap.S().Infow("rejected token of inactive member", "userId", info.ID())
				config.ErrorStatus("unauthorized", http.StatusUnauthorized, w, err)
				return
			}
			config.ErrorStatus("failed to load caller", http.StatusInternalServerError, w, err)
			return
		}
		p := Principal{UserID: user.ID.Hex(), Email: user.Email, Role: user.Role}
		next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), p)))
	})
}

// currentUser loads the approved member behind an authenticated identity
func (a *Auth) currentUser(ctx context.Context, userID string) (*models.User, error) {
	id, err := primitive.ObjectIDFromHex(userID)
	if err != nil {
		return nil, errInactive
	}
	qctx, cancel := WithQueryTimeout(ctx)
	defer cancel()

	user, err := a.DB.FindOne(qctx, bson.M{"_id": id, "status": models.StatusApproved})
	if errors.Is(err, mongo.ErrNoDocuments) || (err == nil && user == nil) {
		return nil, errInactive
	}
	if err != nil {
		return nil, err
	}
	return user, nil
}

// AdminOnly rejects callers without the admin role
func AdminOnly(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, ok := PrincipalFromContext(r.Context())
		if !ok {
			config.ErrorStatus("unauthorized", http.StatusUnauthorized, w, nil)
			return
		}
		if !p.IsAdmin() {
			config.ErrorStatus("admin role required", http.StatusForbidden, w, nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// TokenResponse is returned by CreateToken
type TokenResponse struct {
	Token     string    `json:"token"`
	ID        string    `json:"_id"`
	Role      string    `json:"role"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// CreateToken issues a bearer token for a caller that passed basic auth
func (a *Auth) CreateToken(w http.ResponseWriter, r *http.Request) {
	p, ok := PrincipalFromContext(r.Context())
	if !ok {
		config.ErrorStatus("unauthorized", http.StatusUnauthorized, w, nil)
		return
	}

	token := uuid.New().String()
	info := auth.NewDefaultUser(p.Email, p.UserID, []string{p.Role}, nil)
	tokenStrategy := a.authenticator.Strategy(bearer.CachedStrategyKey)
	if err := auth.Append(tokenStrategy, token, info, r); err != nil {
		config.ErrorStatus("failed to issue token", http.StatusInternalServerError, w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(TokenResponse{
		Token:     token,
		ID:        p.UserID,
		Role:      p.Role,
		ExpiresAt: time.Now().Add(TokenTTL).UTC(),
	})
}

// RevokeToken invalidates the bearer token used for the request
func (a *Auth) RevokeToken(w http.ResponseWriter, r *http.Request) {
	reqToken := strings.TrimSpace(strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer "))
	if reqToken == "" || strings.HasPrefix(reqToken, "Basic ") {
		config.ErrorStatus("bearer token required", http.StatusBadRequest, w, nil)
		return
	}

	tokenStrategy := a.authenticator.Strategy(bearer.CachedStrategyKey)
	if err := auth.Revoke(tokenStrategy, reqToken, r); err != nil {
		config.ErrorStatus("failed to revoke token", http.StatusInternalServerError, w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(models.MessageResponse{Message: "token revoked"})
}
