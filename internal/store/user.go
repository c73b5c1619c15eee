package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"golang.org/x/crypto/bcrypt"

	"github.com/your-org/annotate/internal/models"
	"github.com/your-org/annotate/internal/storage"
)

func userQuery(userID string) storage.Query {
	return storage.Query{"user_id": userID}
}

func hashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// RegisterUser creates a durable user record. Identity is derived from the
// email, so registering the same address twice fails with ErrAlreadyExists.
func (s *AnnotationStore) RegisterUser(ctx context.Context, email, password string) (*models.User, error) {
	userID := models.DeriveUserID(email)
	existing, err := s.readThrough(ctx, collectionUsers, userID, userQuery(userID))
	if err != nil {
		return nil, err
	}
	if existing != nil {
		slog.Debug("user already exists", "user_id", userID)
		return nil, fmt.Errorf("user %s: %w", email, ErrAlreadyExists)
	}

	hashed, err := hashPassword(password)
	if err != nil {
		return nil, err
	}
	user := models.NewUser(email, hashed)
	slog.Debug("adding user", "user_id", user.UserID)
	if err := s.StoreUser(ctx, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// StoreUser writes the user durably, invalidating any cached copy first.
// Users have no draft phase.
func (s *AnnotationStore) StoreUser(ctx context.Context, user *models.User) error {
	data, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("encode user %s: %w", user.UserID, err)
	}
	return s.writePromoted(ctx, collectionUsers, user.UserID, data, userQuery(user.UserID))
}

// storeUserDraft keeps a user's pending project-list changes cache-only; they
// reach the durable copy when the project is saved.
func (s *AnnotationStore) storeUserDraft(ctx context.Context, user *models.User) error {
	data, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("encode user %s: %w", user.UserID, err)
	}
	return s.writeCacheOnly(ctx, user.UserID, data)
}

// GetUser resolves a user by id through the cache with durable fallback.
func (s *AnnotationStore) GetUser(ctx context.Context, userID string) (*models.User, error) {
	data, err := s.readThrough(ctx, collectionUsers, userID, userQuery(userID))
	if err != nil {
		return nil, err
	}
	if data == nil {
		return nil, fmt.Errorf("user %s: %w", userID, ErrNotFound)
	}
	return decodeUser(data)
}

// GetUserByEmail bypasses the cache: callers about to mutate the user's
// project list must start from the authoritative copy.
func (s *AnnotationStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	userID := models.DeriveUserID(email)
	data, err := s.readDurableOnly(ctx, collectionUsers, userQuery(userID))
	if err != nil {
		return nil, err
	}
	if data == nil {
		return nil, fmt.Errorf("user %s: %w", email, ErrNotFound)
	}
	return decodeUser(data)
}

func decodeUser(data []byte) (*models.User, error) {
	var user models.User
	if err := json.Unmarshal(data, &user); err != nil {
		return nil, fmt.Errorf("decode user: %w", err)
	}
	return &user, nil
}

// Login verifies credentials and mints a cache-only session. The returned
// token is the caller's bearer credential.
func (s *AnnotationStore) Login(ctx context.Context, email, password string) (string, error) {
	user, err := s.GetUser(ctx, models.DeriveUserID(email))
	if err != nil {
		return "", err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.HashedPassword), []byte(password)); err != nil {
		return "", fmt.Errorf("user %s: %w", email, ErrInvalidCredential)
	}
	if !user.Activated {
		return "", fmt.Errorf("user %s: %w", email, ErrNotActivated)
	}

	session := models.NewLoginSession(user.UserID)
	data, err := json.Marshal(session)
	if err != nil {
		return "", fmt.Errorf("encode session: %w", err)
	}
	if err := s.writeCacheOnly(ctx, session.SessionToken, data); err != nil {
		return "", err
	}
	return session.SessionToken, nil
}

// Logout drops the session from the cache; no durable trace exists.
func (s *AnnotationStore) Logout(ctx context.Context, sessionToken string) error {
	return s.deleteEntity(ctx, "", sessionToken, nil)
}

// GetUserBySession resolves the session token to its user. An unknown or
// empty token yields (nil, nil): the request is anonymous, not an error.
func (s *AnnotationStore) GetUserBySession(ctx context.Context, sessionToken string) (*models.User, error) {
	if sessionToken == "" {
		slog.Debug("no session token provided")
		return nil, nil
	}

	data, err := s.cache.Get(ctx, sessionToken)
	if err != nil {
		return nil, err
	}
	if data == nil {
		slog.Debug("session not found", "token", sessionToken)
		return nil, nil
	}

	var session models.LoginSession
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}

	userData, err := s.readThrough(ctx, collectionUsers, session.UserID, userQuery(session.UserID))
	if err != nil {
		return nil, err
	}
	if userData == nil {
		slog.Debug("user for session not found", "user_id", session.UserID)
		return nil, nil
	}
	return decodeUser(userData)
}

// AddProjectToUser attaches a project reference to the session's user,
// cache-only until the project is saved. An anonymous session is a no-op.
func (s *AnnotationStore) AddProjectToUser(ctx context.Context, sessionToken, projectID string) error {
	user, err := s.GetUserBySession(ctx, sessionToken)
	if err != nil {
		return err
	}
	if user == nil {
		slog.Debug("no user for session, project not attached", "project_id", projectID)
		return nil
	}
	user.AddProject(projectID)
	return s.storeUserDraft(ctx, user)
}

// AddActivationCode issues a verification code for account activation.
func (s *AnnotationStore) AddActivationCode(ctx context.Context, email string) (string, error) {
	user, err := s.GetUserByEmail(ctx, email)
	if err != nil {
		return "", err
	}
	if user.Activated {
		return "", fmt.Errorf("%w: user already activated", ErrValidation)
	}
	return s.issueCode(ctx, user.UserID)
}

// AddPasswordResetCode issues a verification code for a password reset.
func (s *AnnotationStore) AddPasswordResetCode(ctx context.Context, email string) (string, error) {
	user, err := s.GetUserByEmail(ctx, email)
	if err != nil {
		return "", err
	}
	return s.issueCode(ctx, user.UserID)
}

func (s *AnnotationStore) issueCode(ctx context.Context, userID string) (string, error) {
	code := models.NewVerificationCode(userID)
	data, err := json.Marshal(code)
	if err != nil {
		return "", fmt.Errorf("encode verification code: %w", err)
	}
	if err := s.writeCacheOnly(ctx, code.Code, data); err != nil {
		return "", err
	}
	return code.Code, nil
}

// VerifyCode checks that the presented code exists, binds to the given user
// and has not expired, then consumes it (single use).
func (s *AnnotationStore) VerifyCode(ctx context.Context, userID, presented string) error {
	data, err := s.cache.Get(ctx, presented)
	if err != nil {
		return err
	}
	if data == nil {
		return ErrInvalidCode
	}

	var code models.VerificationCode
	if err := json.Unmarshal(data, &code); err != nil {
		return fmt.Errorf("decode verification code: %w", err)
	}
	if code.UserID != userID {
		return ErrInvalidCode
	}
	if code.IsExpired() {
		return ErrExpiredCode
	}
	return s.cache.Delete(ctx, presented)
}

// ActivateUser routes through code verification before flipping the flag.
func (s *AnnotationStore) ActivateUser(ctx context.Context, email, code string) error {
	user, err := s.GetUserByEmail(ctx, email)
	if err != nil {
		return err
	}
	if user.Activated {
		return fmt.Errorf("%w: user already activated", ErrValidation)
	}
	if err := s.VerifyCode(ctx, user.UserID, code); err != nil {
		return err
	}
	user.Activate()
	return s.StoreUser(ctx, user)
}

// ResetPassword routes through code verification before rehashing.
func (s *AnnotationStore) ResetPassword(ctx context.Context, email, code, newPassword string) error {
	user, err := s.GetUserByEmail(ctx, email)
	if err != nil {
		return err
	}
	if !user.Activated {
		return fmt.Errorf("user %s: %w", email, ErrNotActivated)
	}
	if err := s.VerifyCode(ctx, user.UserID, code); err != nil {
		return err
	}
	hashed, err := hashPassword(newPassword)
	if err != nil {
		return err
	}
	user.HashedPassword = hashed
	return s.StoreUser(ctx, user)
}
