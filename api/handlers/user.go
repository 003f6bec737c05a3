package handlers

import (
	"fmt"
	"net/http"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/leoportal/leo-portal-api/api"
	"github.com/leoportal/leo-portal-api/config"
	"github.com/leoportal/leo-portal-api/databases"
	"github.com/leoportal/leo-portal-api/models"
	"github.com/leoportal/leo-portal-api/triggers"
)

const minPasswordLength = 8

// User exported for testing purposes
type User struct {
	DB    databases.UserDatabase
	Hooks triggers.Hooks
}

func validBirthday(b string) bool {
	if b == "" {
		return true
	}
	_, err := time.Parse("2006-01-02", b)
	return err == nil
}

// RegisterHandler creates a pending member account. Role and status are always
// set by the server.
func (u User) RegisterHandler(w http.ResponseWriter, r *http.Request) {
	var req models.RegisterUserRequest
	if !decodeBody(w, r, &req) {
		return
	}
	req.Normalize()

	if req.Name == "" {
		config.ErrorStatus("name is required", http.StatusBadRequest, w, nil)
		return
	}
	if _, err := mail.ParseAddress(req.Email); err != nil {
		config.ErrorStatus("invalid email address", http.StatusBadRequest, w, err)
		return
	}
	if len(req.Password) < minPasswordLength {
		config.ErrorStatus(fmt.Sprintf("password must be at least %d characters", minPasswordLength), http.StatusBadRequest, w, nil)
		return
	}
	if !validBirthday(req.Birthday) {
		config.ErrorStatus("birthday must be formatted as YYYY-MM-DD", http.StatusBadRequest, w, nil)
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	count, err := u.DB.CountDocuments(ctx, bson.M{"email": req.Email})
	if err != nil {
		config.ErrorStatus("failed to check email", http.StatusInternalServerError, w, err)
		return
	}
	if count > 0 {
		config.ErrorStatus("email is already registered", http.StatusConflict, w, nil)
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		config.ErrorStatus("failed to hash password", http.StatusInternalServerError, w, err)
		return
	}

	now := primitive.NewDateTimeFromTime(time.Now())
	user := models.User{
		Name:       req.Name,
		Email:      req.Email,
		Password:   string(hash),
		Role:       models.RoleMember,
		Status:     models.StatusPending,
		Phone:      req.Phone,
		Birthday:   req.Birthday,
		DuesStatus: models.DuesUnpaid,
		JoinedAt:   now,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	res, err := u.DB.InsertOne(ctx, user)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			config.ErrorStatus("email is already registered", http.StatusConflict, w, err)
			return
		}
		config.ErrorStatus("failed to create user", http.StatusInternalServerError, w, err)
		return
	}
	user.ID = insertedID(res)

	zap.S().Infow("user registered", "userId", user.ID.Hex())
	u.Hooks.UserRegistered(user)

	writeJSON(w, http.StatusCreated, message("registration received, waiting for approval", user.ID))
}

// MeHandler returns the caller's own profile
func (u User) MeHandler(w http.ResponseWriter, r *http.Request) {
	p, ok := caller(w, r)
	if !ok {
		return
	}
	id, err := primitive.ObjectIDFromHex(p.UserID)
	if err != nil {
		config.ErrorStatus("failed to get objectID from Hex", http.StatusBadRequest, w, err)
		return
	}
	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	user, err := u.DB.FindOne(ctx, bson.M{"_id": id})
	if err != nil {
		config.ErrorStatus("failed to get user by ID", lookupStatus(err), w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// UpdateProfileHandler lets members change their name, phone, birthday and picture
func (u User) UpdateProfileHandler(w http.ResponseWriter, r *http.Request) {
	p, ok := caller(w, r)
	if !ok {
		return
	}
	id, err := primitive.ObjectIDFromHex(p.UserID)
	if err != nil {
		config.ErrorStatus("failed to get objectID from Hex", http.StatusBadRequest, w, err)
		return
	}

	var req models.UpdateProfileRequest
	if !decodeBody(w, r, &req) {
		return
	}

	set := bson.M{}
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			config.ErrorStatus("name must not be empty", http.StatusBadRequest, w, nil)
			return
		}
		set["name"] = name
	}
	if req.Phone != nil {
		set["phone"] = strings.TrimSpace(*req.Phone)
	}
	if req.Birthday != nil {
		if !validBirthday(*req.Birthday) {
			config.ErrorStatus("birthday must be formatted as YYYY-MM-DD", http.StatusBadRequest, w, nil)
			return
		}
		set["birthday"] = *req.Birthday
	}
	if req.ProfilePicture != nil {
		set["profilePicture"] = *req.ProfilePicture
	}
	if len(set) == 0 {
		config.ErrorStatus("nothing to update", http.StatusBadRequest, w, nil)
		return
	}
	set["updatedAt"] = primitive.NewDateTimeFromTime(time.Now())

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	res, err := u.DB.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": set})
	if err != nil {
		config.ErrorStatus("failed to update profile", http.StatusInternalServerError, w, err)
		return
	}
	if res.MatchedCount == 0 {
		config.ErrorStatus("user not found", http.StatusNotFound, w, nil)
		return
	}
	writeJSON(w, http.StatusOK, message("profile updated", id))
}

// ListUsersHandler lists members. Only admins may see accounts that are not
// approved yet.
func (u User) ListUsersHandler(w http.ResponseWriter, r *http.Request) {
	p, ok := caller(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	filter := bson.M{"status": models.StatusApproved}
	if status := q.Get("status"); status != "" {
		if status != models.StatusApproved && !p.IsAdmin() {
			config.ErrorStatus("admin role required", http.StatusForbidden, w, nil)
			return
		}
		filter["status"] = status
	}
	if role := q.Get("role"); role != "" {
		filter["role"] = role
	}

	page := databases.NewPaginate(q)
	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	total, err := u.DB.CountDocuments(ctx, filter)
	if err != nil {
		config.ErrorStatus("failed to count users", http.StatusInternalServerError, w, err)
		return
	}
	users, err := u.DB.Find(ctx, filter, page.FindOptions().SetSort(bson.D{{Key: "name", Value: 1}}))
	if err != nil {
		config.ErrorStatus("failed to get users", http.StatusInternalServerError, w, err)
		return
	}
	if users == nil {
		users = []models.User{}
	}
	writeJSON(w, http.StatusOK, PaginatedResponse{Page: page.Page, Limit: page.Limit, TotalCount: total, Data: users})
}

// UserByIDHandler returns a user given a userID
func (u User) UserByIDHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "user_id")
	if !ok {
		return
	}
	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	user, err := u.DB.FindOne(ctx, bson.M{"_id": id})
	if err != nil {
		config.ErrorStatus("failed to get user by ID", lookupStatus(err), w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// ApproveUserHandler moves a pending registration to approved and assigns a
// membership id
func (u User) ApproveUserHandler(w http.ResponseWriter, r *http.Request) {
	p, ok := caller(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "user_id")
	if !ok {
		return
	}
	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	user, err := u.DB.FindOne(ctx, bson.M{"_id": id})
	if err != nil {
		config.ErrorStatus("failed to get user by ID", lookupStatus(err), w, err)
		return
	}
	if user.Status != models.StatusPending {
		config.ErrorStatus("user is not pending approval", http.StatusConflict, w, nil)
		return
	}

	now := time.Now()
	approvedAt := primitive.NewDateTimeFromTime(now)
	membershipID := fmt.Sprintf("LEO-%d-%s", now.Year(), strings.ToUpper(uuid.New().String()[:6]))
	update := bson.M{"$set": bson.M{
		"status":       models.StatusApproved,
		"approvedAt":   approvedAt,
		"approvedBy":   p.UserID,
		"membershipId": membershipID,
		"updatedAt":    approvedAt,
	}}
	// matching on status keeps two admins from approving the same user twice
	res, err := u.DB.UpdateOne(ctx, bson.M{"_id": id, "status": models.StatusPending}, update)
	if err != nil {
		config.ErrorStatus("failed to approve user", http.StatusInternalServerError, w, err)
		return
	}
	if res.MatchedCount == 0 {
		config.ErrorStatus("user is not pending approval", http.StatusConflict, w, nil)
		return
	}

	user.Status = models.StatusApproved
	user.ApprovedAt = &approvedAt
	user.ApprovedBy = p.UserID
	user.MembershipID = membershipID
	u.Hooks.UserApproved(*user)

	zap.S().Infow("user approved", "userId", id.Hex(), "approvedBy", p.UserID)
	writeJSON(w, http.StatusOK, user)
}

// RejectUserHandler deletes a pending registration
func (u User) RejectUserHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "user_id")
	if !ok {
		return
	}
	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	deleted, err := u.DB.DeleteOne(ctx, bson.M{"_id": id, "status": models.StatusPending})
	if err != nil {
		config.ErrorStatus("failed to reject user", http.StatusInternalServerError, w, err)
		return
	}
	if deleted == 0 {
		config.ErrorStatus("no pending registration with that id", http.StatusNotFound, w, nil)
		return
	}
	writeJSON(w, http.StatusOK, message("registration rejected", id))
}

// SetRoleHandler changes a member's role. Admins cannot change their own role so
// the club is never left without one.
func (u User) SetRoleHandler(w http.ResponseWriter, r *http.Request) {
	p, ok := caller(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "user_id")
	if !ok {
		return
	}
	var req models.SetRoleRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if !models.ValidRole(req.Role) {
		config.ErrorStatus("invalid role", http.StatusBadRequest, w, nil)
		return
	}
	if id.Hex() == p.UserID {
		config.ErrorStatus("admins cannot change their own role", http.StatusConflict, w, nil)
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	res, err := u.DB.UpdateOne(ctx,
		bson.M{"_id": id, "status": models.StatusApproved},
		bson.M{"$set": bson.M{"role": req.Role, "updatedAt": primitive.NewDateTimeFromTime(time.Now())}},
	)
	if err != nil {
		config.ErrorStatus("failed to set role", http.StatusInternalServerError, w, err)
		return
	}
	if res.MatchedCount == 0 {
		config.ErrorStatus("no approved member with that id", http.StatusNotFound, w, nil)
		return
	}
	writeJSON(w, http.StatusOK, message("role updated", id))
}
