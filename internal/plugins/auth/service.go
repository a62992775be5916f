package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"

	"github.com/ovenlight/mealboard/internal/apperror"
	"github.com/ovenlight/mealboard/internal/sanitize"
)

// sessionKeyPrefix is the Redis key prefix for session data.
const sessionKeyPrefix = "session:"

// sessionTokenBytes is the number of random bytes in a session token.
// 32 bytes = 256 bits of entropy, hex-encoded to 64 characters.
const sessionTokenBytes = 32

// searchLimitMax caps the user search page size.
const searchLimitMax = 25

// generateUUID creates a random UUID v4 string.
func generateUUID() string {
	b := make([]byte, 16)
	_, _ = rand.Read(b)
	b[6] = (b[6] & 0x0f) | 0x40
	b[8] = (b[8] & 0x3f) | 0x80
	return fmt.Sprintf("%x-%x-%x-%x-%x", b[0:4], b[4:6], b[6:8], b[8:10], b[10:16])
}

// AuthService defines the business logic contract for authentication and
// user lookup. Handlers call these methods -- they never touch the
// repository directly.
type AuthService interface {
	Register(ctx context.Context, input RegisterInput) (*User, error)
	Login(ctx context.Context, input LoginInput) (token string, user *User, err error)
	ValidateSession(ctx context.Context, token string) (*Session, error)
	DestroySession(ctx context.Context, token string) error

	// SearchUsers finds share candidates by email or display name,
	// excluding the requesting user.
	SearchUsers(ctx context.Context, requestingUserID, query string, limit int) ([]UserSummary, error)
	GetUser(ctx context.Context, id string) (*User, error)

	GetSettings(ctx context.Context, userID string) (*Settings, error)
	UpdateSettings(ctx context.Context, userID string, input UpdateSettingsRequest) (*Settings, error)
}

// authService implements AuthService with bcrypt hashing and Redis sessions.
type authService struct {
	repo       UserRepository
	redis      *redis.Client
	sessionTTL time.Duration
}

// NewAuthService creates a new auth service with the given dependencies.
func NewAuthService(repo UserRepository, rdb *redis.Client, sessionTTL time.Duration) AuthService {
	return &authService{
		repo:       repo,
		redis:      rdb,
		sessionTTL: sessionTTL,
	}
}

// Register creates a new user account. It validates uniqueness, hashes the
// password with bcrypt, generates a UUID, and persists the user.
func (s *authService) Register(ctx context.Context, input RegisterInput) (*User, error) {
	email := strings.ToLower(strings.TrimSpace(input.Email))
	name := sanitize.Text(input.DisplayName)

	if email == "" || !strings.Contains(email, "@") {
		return nil, apperror.NewValidation("a valid email address is required")
	}
	if name == "" {
		return nil, apperror.NewValidation("display name is required")
	}
	if len(input.Password) < 8 {
		return nil, apperror.NewValidation("password must be at least 8 characters")
	}

	// Check if email is already taken before doing expensive hashing.
	exists, err := s.repo.EmailExists(ctx, email)
	if err != nil {
		return nil, apperror.NewInternal(fmt.Errorf("checking email: %w", err))
	}
	if exists {
		return nil, apperror.NewConflict("an account with this email already exists")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, apperror.NewInternal(fmt.Errorf("hashing password: %w", err))
	}

	user := &User{
		ID:           generateUUID(),
		Email:        email,
		DisplayName:  name,
		PasswordHash: string(hash),
		CreatedAt:    time.Now().UTC(),
	}

	if err := s.repo.Create(ctx, user); err != nil {
		return nil, apperror.NewInternal(fmt.Errorf("creating user: %w", err))
	}

	slog.Info("user registered",
		slog.String("user_id", user.ID),
		slog.String("email", user.Email),
	)

	return user, nil
}

// Login authenticates a user by email and password. On success it creates a
// new session in Redis and returns the bearer token.
func (s *authService) Login(ctx context.Context, input LoginInput) (string, *User, error) {
	user, err := s.repo.FindByEmail(ctx, strings.ToLower(strings.TrimSpace(input.Email)))
	if err != nil {
		return "", nil, apperror.NewInternal(fmt.Errorf("finding user: %w", err))
	}
	// Don't reveal whether the email exists -- use one generic message for
	// both unknown email and wrong password.
	if user == nil {
		return "", nil, apperror.NewUnauthorized("invalid email or password")
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(input.Password)) != nil {
		return "", nil, apperror.NewUnauthorized("invalid email or password")
	}

	token, err := s.createSession(ctx, user.ID)
	if err != nil {
		return "", nil, apperror.NewInternal(fmt.Errorf("creating session: %w", err))
	}

	slog.Info("user logged in", slog.String("user_id", user.ID))
	return token, user, nil
}

// createSession generates a random token and stores the session in Redis
// with the configured TTL.
func (s *authService) createSession(ctx context.Context, userID string) (string, error) {
	raw := make([]byte, sessionTokenBytes)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	token := hex.EncodeToString(raw)

	session := Session{
		UserID:    userID,
		CreatedAt: time.Now().UTC(),
	}
	data, err := json.Marshal(session)
	if err != nil {
		return "", err
	}

	if err := s.redis.Set(ctx, sessionKeyPrefix+token, data, s.sessionTTL).Err(); err != nil {
		return "", err
	}
	return token, nil
}

// ValidateSession resolves a bearer token to its session, or returns an
// unauthorized error if the token is unknown or expired.
func (s *authService) ValidateSession(ctx context.Context, token string) (*Session, error) {
	if token == "" {
		return nil, apperror.NewUnauthorized("authentication required")
	}

	data, err := s.redis.Get(ctx, sessionKeyPrefix+token).Bytes()
	if err == redis.Nil {
		return nil, apperror.NewUnauthorized("session expired or invalid")
	}
	if err != nil {
		return nil, apperror.NewInternal(fmt.Errorf("reading session: %w", err))
	}

	var session Session
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, apperror.NewInternal(fmt.Errorf("decoding session: %w", err))
	}
	session.Token = token
	return &session, nil
}

// DestroySession removes a session token. Unknown tokens are not an error.
func (s *authService) DestroySession(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	return s.redis.Del(ctx, sessionKeyPrefix+token).Err()
}

// SearchUsers finds share candidates. The query must be at least two
// characters to avoid full-table LIKE scans on every keystroke.
func (s *authService) SearchUsers(ctx context.Context, requestingUserID, query string, limit int) ([]UserSummary, error) {
	query = strings.TrimSpace(query)
	if len(query) < 2 {
		return nil, apperror.NewValidation("search query must be at least 2 characters")
	}
	if limit < 1 || limit > searchLimitMax {
		limit = 10
	}
	users, err := s.repo.Search(ctx, query, requestingUserID, limit)
	if err != nil {
		return nil, apperror.NewInternal(fmt.Errorf("searching users: %w", err))
	}
	return users, nil
}

// GetUser returns a user by ID.
func (s *authService) GetUser(ctx context.Context, id string) (*User, error) {
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, apperror.NewInternal(fmt.Errorf("finding user: %w", err))
	}
	if user == nil {
		return nil, apperror.NewNotFound("user not found")
	}
	return user, nil
}

// GetSettings returns the user's planner settings.
func (s *authService) GetSettings(ctx context.Context, userID string) (*Settings, error) {
	settings, err := s.repo.GetSettings(ctx, userID)
	if err != nil {
		return nil, apperror.NewInternal(fmt.Errorf("getting settings: %w", err))
	}
	return settings, nil
}

// UpdateSettings validates and stores new planner settings.
func (s *authService) UpdateSettings(ctx context.Context, userID string, input UpdateSettingsRequest) (*Settings, error) {
	if input.DefaultServings < 1 {
		return nil, apperror.NewValidation("default servings must be at least 1")
	}
	settings := &Settings{
		UserID:            userID,
		DefaultServings:   input.DefaultServings,
		DefaultCalendarID: input.DefaultCalendarID,
	}
	if err := s.repo.UpsertSettings(ctx, settings); err != nil {
		return nil, apperror.NewInternal(fmt.Errorf("saving settings: %w", err))
	}
	return settings, nil
}
