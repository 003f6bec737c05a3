package models

import (
	"strings"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Roles a member can hold
const (
	RoleAdmin  = "admin"
	RoleMember = "member"
)

// Approval statuses for a user account
const (
	StatusPending  = "pending"
	StatusApproved = "approved"
)

// Dues statuses
const (
	DuesUnpaid = "unpaid"
	DuesPaid   = "paid"
)

// User holds the structure for the users collection in mongo
type User struct {
	ID             primitive.ObjectID  `json:"_id" bson:"_id,omitempty"`
	Name           string              `json:"name" bson:"name"`
	Email          string              `json:"email" bson:"email"`
	Password       string              `json:"-" bson:"password"`
	Role           string              `json:"role" bson:"role"`
	Status         string              `json:"status" bson:"status"`
	Phone          string              `json:"phone,omitempty" bson:"phone,omitempty"`
	Birthday       string              `json:"birthday,omitempty" bson:"birthday,omitempty"`             // YYYY-MM-DD
	MembershipID   string              `json:"membershipId,omitempty" bson:"membershipId,omitempty"`
	ProfilePicture string              `json:"profilePicture,omitempty" bson:"profilePicture,omitempty"`
	DuesStatus     string              `json:"duesStatus" bson:"duesStatus"`
	DuesPaidAt     *primitive.DateTime `json:"duesPaidAt,omitempty" bson:"duesPaidAt,omitempty"`
	JoinedAt       primitive.DateTime  `json:"joinedAt" bson:"joinedAt"`
	ApprovedAt     *primitive.DateTime `json:"approvedAt,omitempty" bson:"approvedAt,omitempty"`
	ApprovedBy     string              `json:"approvedBy,omitempty" bson:"approvedBy,omitempty"`
	CreatedAt      primitive.DateTime  `json:"createdAt" bson:"createdAt"`
	UpdatedAt      primitive.DateTime  `json:"updatedAt" bson:"updatedAt"`
}

// IsAdmin reports whether the user holds the admin role
func (u User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// BirthdayMonthDay returns the MM-DD part of the birthday, or "" when unset
func (u User) BirthdayMonthDay() string {
	if len(u.Birthday) != len("2006-01-02") {
		return ""
	}
	return u.Birthday[5:]
}

// RegisterUserRequest is the body of the self registration route
type RegisterUserRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Phone    string `json:"phone"`
	Birthday string `json:"birthday"`
}

// Normalize trims the request fields and lowercases the email
func (r *RegisterUserRequest) Normalize() {
	r.Name = strings.TrimSpace(r.Name)
	r.Email = strings.ToLower(strings.TrimSpace(r.Email))
	r.Phone = strings.TrimSpace(r.Phone)
	r.Birthday = strings.TrimSpace(r.Birthday)
}

// UpdateProfileRequest holds the fields a member may change on their own profile
type UpdateProfileRequest struct {
	Name           *string `json:"name"`
	Phone          *string `json:"phone"`
	Birthday       *string `json:"birthday"`
	ProfilePicture *string `json:"profilePicture"`
}

// SetRoleRequest is the body of the admin set role route
type SetRoleRequest struct {
	Role string `json:"role"`
}

// ValidRole reports whether role is one of the known roles
func ValidRole(role string) bool {
	return role == RoleAdmin || role == RoleMember
}
