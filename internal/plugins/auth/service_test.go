package auth

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"

	"github.com/ovenlight/mealboard/internal/apperror"
)

// --- Mock Repository ---

// mockUserRepo implements UserRepository for testing.
type mockUserRepo struct {
	createFn         func(ctx context.Context, user *User) error
	findByIDFn       func(ctx context.Context, id string) (*User, error)
	findByEmailFn    func(ctx context.Context, email string) (*User, error)
	emailExistsFn    func(ctx context.Context, email string) (bool, error)
	searchFn         func(ctx context.Context, query, excludeUserID string, limit int) ([]UserSummary, error)
	getSettingsFn    func(ctx context.Context, userID string) (*Settings, error)
	upsertSettingsFn func(ctx context.Context, settings *Settings) error
}

func (m *mockUserRepo) Create(ctx context.Context, user *User) error {
	if m.createFn != nil {
		return m.createFn(ctx, user)
	}
	return nil
}

func (m *mockUserRepo) FindByID(ctx context.Context, id string) (*User, error) {
	if m.findByIDFn != nil {
		return m.findByIDFn(ctx, id)
	}
	return nil, nil
}

func (m *mockUserRepo) FindByEmail(ctx context.Context, email string) (*User, error) {
	if m.findByEmailFn != nil {
		return m.findByEmailFn(ctx, email)
	}
	return nil, nil
}

func (m *mockUserRepo) EmailExists(ctx context.Context, email string) (bool, error) {
	if m.emailExistsFn != nil {
		return m.emailExistsFn(ctx, email)
	}
	return false, nil
}

func (m *mockUserRepo) Search(ctx context.Context, query, excludeUserID string, limit int) ([]UserSummary, error) {
	if m.searchFn != nil {
		return m.searchFn(ctx, query, excludeUserID, limit)
	}
	return nil, nil
}

func (m *mockUserRepo) GetSettings(ctx context.Context, userID string) (*Settings, error) {
	if m.getSettingsFn != nil {
		return m.getSettingsFn(ctx, userID)
	}
	return &Settings{UserID: userID, DefaultServings: 2}, nil
}

func (m *mockUserRepo) UpsertSettings(ctx context.Context, settings *Settings) error {
	if m.upsertSettingsFn != nil {
		return m.upsertSettingsFn(ctx, settings)
	}
	return nil
}

// --- Test Helpers ---

// newTestService creates an AuthService backed by miniredis.
func newTestService(t *testing.T, repo UserRepository) (AuthService, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return NewAuthService(repo, rdb, time.Hour), mr
}

// assertAppError checks that err is an *apperror.AppError with the expected code.
func assertAppError(t *testing.T, err error, expectedCode int) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected error with code %d, got nil", expectedCode)
	}
	var appErr *apperror.AppError
	if !errors.As(err, &appErr) {
		t.Fatalf("expected *apperror.AppError, got %T: %v", err, err)
	}
	if appErr.Code != expectedCode {
		t.Errorf("expected status %d, got %d (message: %s)", expectedCode, appErr.Code, appErr.Message)
	}
}

func hashFor(t *testing.T, password string) string {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hashing password: %v", err)
	}
	return string(hash)
}

// --- Login / Session Tests ---

func TestLogin_Success(t *testing.T) {
	repo := &mockUserRepo{
		findByEmailFn: func(ctx context.Context, email string) (*User, error) {
			if email != "alice@example.com" {
				t.Errorf("expected lowercased trimmed email, got %q", email)
			}
			return &User{ID: "user-1", Email: email, PasswordHash: hashFor(t, "hunter2hunter2")}, nil
		},
	}
	svc, _ := newTestService(t, repo)

	token, user, err := svc.Login(context.Background(), LoginInput{Email: "  Alice@Example.com ", Password: "hunter2hunter2"})
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	if token == "" {
		t.Fatal("expected a session token")
	}
	if user.ID != "user-1" {
		t.Errorf("expected user-1, got %s", user.ID)
	}

	// The returned token must resolve to the same user.
	session, err := svc.ValidateSession(context.Background(), token)
	if err != nil {
		t.Fatalf("validating fresh session: %v", err)
	}
	if session.UserID != "user-1" {
		t.Errorf("session resolves to %s, want user-1", session.UserID)
	}
}

func TestLogin_WrongPassword(t *testing.T) {
	repo := &mockUserRepo{
		findByEmailFn: func(ctx context.Context, email string) (*User, error) {
			return &User{ID: "user-1", PasswordHash: hashFor(t, "correct-password")}, nil
		},
	}
	svc, _ := newTestService(t, repo)

	_, _, err := svc.Login(context.Background(), LoginInput{Email: "a@b.com", Password: "wrong"})
	assertAppError(t, err, http.StatusUnauthorized)
}

func TestLogin_UnknownEmailSameMessage(t *testing.T) {
	svc, _ := newTestService(t, &mockUserRepo{})

	_, _, err := svc.Login(context.Background(), LoginInput{Email: "nobody@b.com", Password: "x"})
	assertAppError(t, err, http.StatusUnauthorized)
	if apperror.SafeMessage(err) != "invalid email or password" {
		t.Errorf("unknown email must not be distinguishable: %q", apperror.SafeMessage(err))
	}
}

func TestValidateSession_Expired(t *testing.T) {
	repo := &mockUserRepo{
		findByEmailFn: func(ctx context.Context, email string) (*User, error) {
			return &User{ID: "user-1", PasswordHash: hashFor(t, "hunter2hunter2")}, nil
		},
	}
	svc, mr := newTestService(t, repo)

	token, _, err := svc.Login(context.Background(), LoginInput{Email: "a@b.com", Password: "hunter2hunter2"})
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	// Advance miniredis past the session TTL.
	mr.FastForward(2 * time.Hour)

	_, err = svc.ValidateSession(context.Background(), token)
	assertAppError(t, err, http.StatusUnauthorized)
}

func TestDestroySession(t *testing.T) {
	repo := &mockUserRepo{
		findByEmailFn: func(ctx context.Context, email string) (*User, error) {
			return &User{ID: "user-1", PasswordHash: hashFor(t, "hunter2hunter2")}, nil
		},
	}
	svc, _ := newTestService(t, repo)

	token, _, err := svc.Login(context.Background(), LoginInput{Email: "a@b.com", Password: "hunter2hunter2"})
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if err := svc.DestroySession(context.Background(), token); err != nil {
		t.Fatalf("destroy: %v", err)
	}
	_, err = svc.ValidateSession(context.Background(), token)
	assertAppError(t, err, http.StatusUnauthorized)
}

// --- Register Tests ---

func TestRegister_DuplicateEmail(t *testing.T) {
	repo := &mockUserRepo{
		emailExistsFn: func(ctx context.Context, email string) (bool, error) {
			return true, nil
		},
	}
	svc, _ := newTestService(t, repo)

	_, err := svc.Register(context.Background(), RegisterInput{
		Email: "taken@example.com", DisplayName: "Taken", Password: "longenough",
	})
	assertAppError(t, err, http.StatusConflict)
}

func TestRegister_ShortPassword(t *testing.T) {
	svc, _ := newTestService(t, &mockUserRepo{})
	_, err := svc.Register(context.Background(), RegisterInput{
		Email: "a@b.com", DisplayName: "A", Password: "short",
	})
	assertAppError(t, err, http.StatusUnprocessableEntity)
}

func TestRegister_StripsMarkupFromDisplayName(t *testing.T) {
	var created *User
	repo := &mockUserRepo{
		createFn: func(ctx context.Context, user *User) error {
			created = user
			return nil
		},
	}
	svc, _ := newTestService(t, repo)

	_, err := svc.Register(context.Background(), RegisterInput{
		Email: "a@b.com", DisplayName: "<script>x</script>Bob", Password: "longenough",
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if created.DisplayName != "Bob" {
		t.Errorf("display name not sanitized: %q", created.DisplayName)
	}
}

// --- Search / Settings Tests ---

func TestSearchUsers_ShortQuery(t *testing.T) {
	svc, _ := newTestService(t, &mockUserRepo{})
	_, err := svc.SearchUsers(context.Background(), "user-1", "a", 10)
	assertAppError(t, err, http.StatusUnprocessableEntity)
}

func TestSearchUsers_ClampsLimit(t *testing.T) {
	repo := &mockUserRepo{
		searchFn: func(ctx context.Context, query, excludeUserID string, limit int) ([]UserSummary, error) {
			if limit != 10 {
				t.Errorf("expected clamped limit 10, got %d", limit)
			}
			if excludeUserID != "user-1" {
				t.Errorf("requesting user not excluded: %q", excludeUserID)
			}
			return []UserSummary{{ID: "user-2"}}, nil
		},
	}
	svc, _ := newTestService(t, repo)

	users, err := svc.SearchUsers(context.Background(), "user-1", "bob", 9999)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(users) != 1 {
		t.Errorf("expected 1 result, got %d", len(users))
	}
}

func TestUpdateSettings_RejectsZeroServings(t *testing.T) {
	svc, _ := newTestService(t, &mockUserRepo{})
	_, err := svc.UpdateSettings(context.Background(), "user-1", UpdateSettingsRequest{DefaultServings: 0})
	assertAppError(t, err, http.StatusUnprocessableEntity)
}
