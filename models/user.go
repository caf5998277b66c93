package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// User roles. Interviewees take interviews, interviewers review them.
const (
	RoleInterviewee = "interviewee"
	RoleInterviewer = "interviewer"
)

type User struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Email     string             `bson:"email" json:"email"`
	Password  string             `bson:"password" json:"-"` // Hashed password (excluded from JSON)
	Name      string             `bson:"name" json:"name,omitempty"`
	Role      string             `bson:"role" json:"role"`
	CreatedAt time.Time          `bson:"createdAt" json:"created_at"`
	UpdatedAt time.Time          `bson:"updatedAt" json:"updated_at"`
}

type RefreshToken struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID    primitive.ObjectID `bson:"userId" json:"user_id"`
	Token     string             `bson:"token" json:"-"` // SHA-256 hash of the raw token
	ExpiresAt time.Time          `bson:"expiresAt" json:"expires_at"`
	CreatedAt time.Time          `bson:"createdAt" json:"created_at"`
}
