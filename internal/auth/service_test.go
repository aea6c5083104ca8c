package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v3"
	"golang.org/x/crypto/bcrypt"
)

var pgErr = errors.New("db error")

var userCols = []string{"id", "email", "username", "password_hash", "is_admin", "total_points", "created_at", "updated_at"}

func newMock(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("mock pool: %v", err)
	}
	t.Cleanup(mock.Close)
	return mock
}

func hashOf(t *testing.T, password string) string {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	return string(hash)
}

func TestRegisterAndLogin(t *testing.T) {
	mock := newMock(t)
	createdAt := time.Now().Add(-time.Minute)

	mock.ExpectQuery(`INSERT INTO users`).
		WithArgs(pgxmock.AnyArg(), "runner@example.com", "runner", pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"created_at", "updated_at"}).AddRow(createdAt, createdAt))

	svc := NewService("test-secret", mock)
	session, err := svc.Register(context.Background(), RegisterRequest{
		Email:    " Runner@Example.com ",
		Username: "runner",
		Password: "password123",
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if session.User.ID == "" || session.Token == "" {
		t.Fatalf("expected user and token")
	}
	claims, err := svc.ValidateToken(session.Token)
	if err != nil || claims.UserID != session.User.ID {
		t.Fatalf("token does not carry the user id: %v", err)
	}

	mock.ExpectQuery(`SELECT id, email, username, password_hash, is_admin, total_points, created_at, updated_at`).
		WithArgs("runner@example.com").
		WillReturnRows(pgxmock.NewRows(userCols).
			AddRow(session.User.ID, "runner@example.com", "runner", session.User.PasswordHash, true, 350, createdAt, createdAt))

	login, err := svc.Login(context.Background(), LoginRequest{Email: "runner@example.com", Password: "password123"})
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if login.User.TotalPoints != 350 {
		t.Fatalf("expected points to be loaded")
	}
	claims, err = svc.ValidateToken(login.Token)
	if err != nil || !claims.IsAdmin {
		t.Fatalf("expected admin claim: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestRegisterMissingFields(t *testing.T) {
	svc := NewService("test-secret", newMock(t))
	_, err := svc.Register(context.Background(), RegisterRequest{Email: "", Username: "u", Password: "p"})
	if !errors.Is(err, ErrMissingFields) {
		t.Fatalf("expected ErrMissingFields, got %v", err)
	}
}

func TestRegisterDuplicateEmail(t *testing.T) {
	mock := newMock(t)
	mock.ExpectQuery(`INSERT INTO users`).
		WillReturnError(&pgconn.PgError{Code: "23505"})

	svc := NewService("test-secret", mock)
	_, err := svc.Register(context.Background(), RegisterRequest{Email: "a@b.c", Username: "u", Password: "p"})
	if !errors.Is(err, ErrEmailTaken) {
		t.Fatalf("expected ErrEmailTaken, got %v", err)
	}
}

func TestRegisterDBError(t *testing.T) {
	mock := newMock(t)
	mock.ExpectQuery(`INSERT INTO users`).WillReturnError(pgErr)

	svc := NewService("test-secret", mock)
	_, err := svc.Register(context.Background(), RegisterRequest{Email: "a@b.c", Username: "u", Password: "p"})
	if !errors.Is(err, pgErr) {
		t.Fatalf("expected db error, got %v", err)
	}
}

func TestRegisterHashError(t *testing.T) {
	oldHash := hashPasswordFn
	hashPasswordFn = func(_ []byte, _ int) ([]byte, error) {
		return nil, pgErr
	}
	defer func() { hashPasswordFn = oldHash }()

	svc := NewService("test-secret", nil)
	if _, err := svc.Register(context.Background(), RegisterRequest{Email: "a@b.c", Username: "u", Password: "p"}); err == nil {
		t.Fatalf("expected error")
	}
}

func TestRegisterSignError(t *testing.T) {
	oldSign := signTokenFn
	signTokenFn = func(_ *Service, _ User, _ time.Duration) (string, error) {
		return "", pgErr
	}
	defer func() { signTokenFn = oldSign }()

	mock := newMock(t)
	mock.ExpectQuery(`INSERT INTO users`).
		WillReturnRows(pgxmock.NewRows([]string{"created_at", "updated_at"}).AddRow(time.Now(), time.Now()))

	svc := NewService("test-secret", mock)
	if _, err := svc.Register(context.Background(), RegisterRequest{Email: "a@b.c", Username: "u", Password: "p"}); !errors.Is(err, pgErr) {
		t.Fatalf("expected sign error, got %v", err)
	}
}

func TestLoginInvalidPassword(t *testing.T) {
	mock := newMock(t)
	mock.ExpectQuery(`FROM users WHERE email`).
		WithArgs("user@example.com").
		WillReturnRows(pgxmock.NewRows(userCols).
			AddRow("user-1", "user@example.com", "user", hashOf(t, "correct"), false, 0, time.Now(), time.Now()))

	svc := NewService("test-secret", mock)
	_, err := svc.Login(context.Background(), LoginRequest{Email: "user@example.com", Password: "wrong"})
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected invalid credentials, got %v", err)
	}
}

func TestLoginUnknownEmail(t *testing.T) {
	mock := newMock(t)
	mock.ExpectQuery(`FROM users WHERE email`).WithArgs("ghost@example.com").WillReturnError(pgx.ErrNoRows)

	svc := NewService("test-secret", mock)
	_, err := svc.Login(context.Background(), LoginRequest{Email: "ghost@example.com", Password: "x"})
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected invalid credentials, got %v", err)
	}
}

func TestLoginQueryError(t *testing.T) {
	mock := newMock(t)
	mock.ExpectQuery(`FROM users WHERE email`).WillReturnError(pgErr)

	svc := NewService("test-secret", mock)
	if _, err := svc.Login(context.Background(), LoginRequest{Email: "a@b.c", Password: "x"}); !errors.Is(err, pgErr) {
		t.Fatalf("expected db error, got %v", err)
	}
}

func TestMe(t *testing.T) {
	mock := newMock(t)
	mock.ExpectQuery(`FROM users WHERE id`).
		WithArgs("user-1").
		WillReturnRows(pgxmock.NewRows(userCols).AddRow("user-1", "a@b.c", "a", "hash", false, 200, time.Now(), time.Now()))
	mock.ExpectQuery(`FROM users WHERE id`).WithArgs("gone").WillReturnError(pgx.ErrNoRows)

	svc := NewService("test-secret", mock)
	user, err := svc.Me(context.Background(), "user-1")
	if err != nil || user.TotalPoints != 200 {
		t.Fatalf("me: %v", err)
	}
	if _, err := svc.Me(context.Background(), "gone"); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}

func TestParseTokenInvalid(t *testing.T) {
	oldParse := parseWithClaimsFn
	parseWithClaimsFn = func(_ string, _ jwt.Claims, _ jwt.Keyfunc, _ ...jwt.ParserOption) (*jwt.Token, error) {
		return &jwt.Token{Valid: false, Claims: &Claims{}}, nil
	}
	defer func() { parseWithClaimsFn = oldParse }()

	svc := NewService("test-secret", nil)
	if _, err := svc.parseToken("token"); err == nil {
		t.Fatalf("expected error")
	}
}

func TestValidateTokenRejectsForeignSecret(t *testing.T) {
	other := NewService("other-secret", nil)
	token, err := other.signToken(User{ID: "user-1"}, time.Hour)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := NewService("test-secret", nil).ValidateToken(token); err == nil {
		t.Fatalf("expected signature error")
	}
	if _, err := NewService("test-secret", nil).ValidateToken("invalid-token"); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestValidateTokenExpired(t *testing.T) {
	svc := NewService("test-secret", nil)
	token, _ := svc.signToken(User{ID: "user-1"}, -time.Minute)
	if _, err := svc.ValidateToken(token); err == nil {
		t.Fatalf("expected expiry error")
	}
}
