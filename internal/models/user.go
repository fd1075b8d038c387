package models

import (
	"regexp"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Role is the closed set of account roles. Authorization decisions always
// compare against these constants, never against raw strings.
type Role string

const (
	RoleAdmin    Role = "administrador"
	RoleChief    Role = "jefe"
	RoleOperator Role = "encargado"
	RoleStudent  Role = "alumno"
	RoleTeacher  Role = "docente"
	RoleStaff    Role = "paae"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleChief, RoleOperator, RoleStudent, RoleTeacher, RoleStaff:
		return true
	}
	return false
}

// Audience reports whether r is one of the audience tiers an area can focus on.
func (r Role) Audience() bool {
	return r == RoleStudent || r == RoleTeacher || r == RoleStaff
}

// orgEmailRE matches addresses on the institutional domain, subdomains
// included (alumno.ipn.mx and the like).
var orgEmailRE = regexp.MustCompile(`^[\w.-]+@(?:[\w-]+\.)?ipn\.mx$`)

// ValidOrgEmail reports whether email belongs to the institutional domain.
func ValidOrgEmail(email string) bool {
	return orgEmailRE.MatchString(email)
}

// User represents an account stored in MongoDB.
type User struct {
	ID       primitive.ObjectID `json:"id,omitempty" bson:"_id,omitempty"`
	Name     string             `json:"name" bson:"name"`
	Email    string             `json:"email" bson:"email"`
	Password string             `json:"-" bson:"password"`
	Role     Role               `json:"role" bson:"role"`
	// Subscribed holds the IDs of the areas the user receives notifications
	// for. The wire name is kept as-is for client compatibility.
	Subscribed []string            `json:"suscribed" bson:"suscribed"`
	Area       *primitive.ObjectID `json:"area,omitempty" bson:"area,omitempty"`
	Verified   bool                `json:"verified" bson:"verified"`
	CreatedAt  time.Time           `json:"createdAt" bson:"createdAt"`
	UpdatedAt  time.Time           `json:"updatedAt" bson:"updatedAt"`
}

// UserCompact is the reduced user representation embedded in enriched
// responses (post author, approver).
type UserCompact struct {
	ID    primitive.ObjectID `json:"id"`
	Name  string             `json:"name"`
	Email string             `json:"email"`
}

// ToCompact returns the compact representation of the user.
func (u *User) ToCompact() UserCompact {
	return UserCompact{ID: u.ID, Name: u.Name, Email: u.Email}
}

// SignupRequest defines the request body for self-registration.
type SignupRequest struct {
	Name     string `json:"name" validate:"required,min=2,max=100"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=7"`
	Role     Role   `json:"role,omitempty"`
	Area     string `json:"area,omitempty"`
}

// LoginRequest defines the request body for login.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// UpdateProfileRequest defines the self-service profile update. Email is
// deliberately absent: it is immutable once registered.
type UpdateProfileRequest struct {
	Name     string `json:"name,omitempty" validate:"omitempty,min=2,max=100"`
	Password string `json:"password,omitempty" validate:"omitempty,min=7"`
}

// ForgotPasswordRequest defines the password-recovery request.
type ForgotPasswordRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// ResetPasswordRequest defines the password-reset request.
type ResetPasswordRequest struct {
	Token       string `json:"token" validate:"required"`
	NewPassword string `json:"newPassword" validate:"required,min=7"`
}

// AdminCreateUserRequest defines the admin bootstrap user creation. Accounts
// created this way are verified immediately.
type AdminCreateUserRequest struct {
	Name     string `json:"name" validate:"required,min=2,max=100"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=7"`
	Role     Role   `json:"role" validate:"required"`
	Area     string `json:"area,omitempty"`
}

// AdminUpdateUserRequest defines the fields an admin may change on any account.
type AdminUpdateUserRequest struct {
	Name string `json:"name,omitempty" validate:"omitempty,min=2,max=100"`
	Role Role   `json:"role,omitempty"`
	Area string `json:"area,omitempty"`
}

// JwtCustomClaims are custom claims extending standard jwt.RegisteredClaims.
type JwtCustomClaims struct {
	UserID string `json:"id"`
	Role   Role   `json:"role,omitempty"`
	jwt.RegisteredClaims
}
