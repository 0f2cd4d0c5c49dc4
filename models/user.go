// models/user.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// User roles
const (
	RoleUser  = "USER"
	RoleAdmin = "ADMIN"
)

// Auth providers
const (
	AuthProviderLocal  = "local"
	AuthProviderGoogle = "google"
)

// User model
type User struct {
	ID                  primitive.ObjectID   `json:"id,omitempty" bson:"_id,omitempty"`
	Email               string               `json:"email" bson:"email"`
	Password            string               `json:"password,omitempty" bson:"password,omitempty"`
	FullName            string               `json:"fullName" bson:"fullName"`
	Role                string               `json:"role" bson:"role"` // "USER" or "ADMIN"
	IsVerified          bool                 `json:"isVerified" bson:"isVerified"`
	AuthProvider        string               `json:"authProvider,omitempty" bson:"authProvider,omitempty"` // "local" or "google"
	GoogleID            string               `json:"googleId,omitempty" bson:"googleId,omitempty"`
	ProfileImage        string               `json:"profileImage,omitempty" bson:"profileImage,omitempty"`
	Addresses           []primitive.ObjectID `json:"addresses,omitempty" bson:"addresses,omitempty"`
	RefreshToken        string               `json:"-" bson:"refreshToken,omitempty"`
	CreatedAt           time.Time            `json:"createdAt" bson:"createdAt"`
	UpdatedAt           time.Time            `json:"updatedAt" bson:"updatedAt"`
}

// Sanitize removes credential material before the user is returned to a client.
func (u *User) Sanitize() {
	u.Password = ""
	u.RefreshToken = ""
}

// IsAdmin reports whether the user carries the admin role.
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}
