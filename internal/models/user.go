package models

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math/big"
	"time"
)

// DeriveUserID computes the identity of a user as a pure function of email:
// hex(SHA-256(utf8(email))). It is stable across registration attempts.
func DeriveUserID(email string) string {
	sum := sha256.Sum256([]byte(email))
	return hex.EncodeToString(sum[:])
}

// User references its projects by id only; deleting a project detaches the
// reference, deleting a user never cascades to projects.
type User struct {
	UserID         string   `json:"user_id" bson:"user_id"`
	Email          string   `json:"email" bson:"email"`
	HashedPassword string   `json:"hashed_password" bson:"hashed_password"`
	Projects       []string `json:"projects" bson:"projects"`
	Activated      bool     `json:"activated" bson:"activated"`
}

func NewUser(email, hashedPassword string) User {
	return User{
		UserID:         DeriveUserID(email),
		Email:          email,
		HashedPassword: hashedPassword,
		Projects:       []string{},
	}
}

func (u *User) AddProject(projectID string) {
	for _, id := range u.Projects {
		if id == projectID {
			return
		}
	}
	u.Projects = append(u.Projects, projectID)
}

func (u *User) RemoveProject(projectID string) bool {
	for i, id := range u.Projects {
		if id == projectID {
			u.Projects = append(u.Projects[:i], u.Projects[i+1:]...)
			return true
		}
	}
	return false
}

func (u *User) HasProject(projectID string) bool {
	for _, id := range u.Projects {
		if id == projectID {
			return true
		}
	}
	return false
}

func (u *User) Activate() {
	u.Activated = true
}

// SessionExpirySeconds is the advisory lifetime of a login session. The
// session's presence in the cache is the source of truth; nothing sweeps
// expired sessions proactively.
const SessionExpirySeconds = 3600

type LoginSession struct {
	SessionToken string `json:"session_token" bson:"session_token"`
	UserID       string `json:"user_id" bson:"user_id"`
	Expiry       int    `json:"expiry" bson:"expiry"`
}

func NewLoginSession(userID string) LoginSession {
	return LoginSession{
		SessionToken: newID(),
		UserID:       userID,
		Expiry:       SessionExpirySeconds,
	}
}

// CodeValidity is how long a verification code stays usable after issue.
const CodeValidity = 310 * time.Second

// VerificationCode is a single-use, time-boxed 6-digit code bound to one
// user. Expiry is checked lazily at verification time.
type VerificationCode struct {
	Code   string    `json:"code" bson:"code"`
	UserID string    `json:"user_id" bson:"user_id"`
	Expiry time.Time `json:"expiry" bson:"expiry"`
}

func NewVerificationCode(userID string) VerificationCode {
	return VerificationCode{
		Code:   randomCode(),
		UserID: userID,
		Expiry: time.Now().Add(CodeValidity),
	}
}

func (vc *VerificationCode) IsExpired() bool {
	return time.Now().After(vc.Expiry)
}

func randomCode() string {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		// crypto/rand only fails when the platform entropy source is broken
		panic(fmt.Sprintf("generate verification code: %v", err))
	}
	return fmt.Sprintf("%06d", n.Int64())
}
