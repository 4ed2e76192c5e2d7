package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/hikari/taskboard/internal/domain"
)

const testSecret = "test-secret"

// --- mocks ---

type mockUserStore struct {
	findByIDFn       func(ctx context.Context, id int64) (*domain.User, error)
	findByEmailFn    func(ctx context.Context, email string) (*domain.User, error)
	findByGoogleIDFn func(ctx context.Context, googleID string) (*domain.User, error)
	usernameTakenFn  func(ctx context.Context, username string) (bool, error)
	createFn         func(ctx context.Context, user domain.User) (*domain.User, error)
}

func (m *mockUserStore) FindByID(ctx context.Context, id int64) (*domain.User, error) {
	if m.findByIDFn != nil {
		return m.findByIDFn(ctx, id)
	}
	return nil, domain.ErrNotFound
}

func (m *mockUserStore) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	if m.findByEmailFn != nil {
		return m.findByEmailFn(ctx, email)
	}
	return nil, domain.ErrNotFound
}

func (m *mockUserStore) FindByGoogleID(ctx context.Context, googleID string) (*domain.User, error) {
	if m.findByGoogleIDFn != nil {
		return m.findByGoogleIDFn(ctx, googleID)
	}
	return nil, domain.ErrNotFound
}

func (m *mockUserStore) UsernameTaken(ctx context.Context, username string) (bool, error) {
	if m.usernameTakenFn != nil {
		return m.usernameTakenFn(ctx, username)
	}
	return false, nil
}

func (m *mockUserStore) Create(ctx context.Context, user domain.User) (*domain.User, error) {
	if m.createFn != nil {
		return m.createFn(ctx, user)
	}
	user.ID = 1
	return &user, nil
}

var _ UserStore = (*mockUserStore)(nil)

// --- helpers ---

func newTestAuthService(store UserStore) *AuthService {
	return NewAuthService(store, AuthConfig{
		JWTSecret:       testSecret,
		AccessTokenTTL:  15 * time.Minute,
		RefreshTokenTTL: 7 * 24 * time.Hour,
	})
}

func testUser(id int64) *domain.User {
	return &domain.User{
		ID:       id,
		Username: "alice",
		Email:    "alice@example.com",
	}
}

func hashPassword(t *testing.T, password string) *string {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	s := string(hash)
	return &s
}

func signToken(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return token
}

// --- token tests ---

func TestVerifyAccessToken_RoundTrip(t *testing.T) {
	user := testUser(7)
	user.PasswordHash = hashPassword(t, "correct horse")

	store := &mockUserStore{
		findByEmailFn: func(_ context.Context, email string) (*domain.User, error) {
			if email != "alice@example.com" {
				return nil, domain.ErrNotFound
			}
			return user, nil
		},
	}
	svc := newTestAuthService(store)

	_, pair, err := svc.Login(context.Background(), "Alice@Example.com", "correct horse")
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	userID, err := svc.VerifyAccessToken(pair.AccessToken)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if userID != 7 {
		t.Errorf("got user id %d, want 7", userID)
	}
}

func TestVerifyAccessToken_Expired(t *testing.T) {
	svc := newTestAuthService(&mockUserStore{})

	token := signToken(t, testSecret, jwt.MapClaims{
		"sub":  int64(7),
		"type": "access",
		"exp":  time.Now().Add(-time.Minute).Unix(),
	})

	_, err := svc.VerifyAccessToken(token)
	if !errors.Is(err, domain.ErrExpiredCredential) {
		t.Errorf("got %v, want ErrExpiredCredential", err)
	}
}

func TestVerifyAccessToken_Malformed(t *testing.T) {
	svc := newTestAuthService(&mockUserStore{})

	_, err := svc.VerifyAccessToken("not-a-jwt")
	if !errors.Is(err, domain.ErrMalformedCredential) {
		t.Errorf("got %v, want ErrMalformedCredential", err)
	}
}

func TestVerifyAccessToken_WrongSignature(t *testing.T) {
	svc := newTestAuthService(&mockUserStore{})

	token := signToken(t, "other-secret", jwt.MapClaims{
		"sub":  int64(7),
		"type": "access",
		"exp":  time.Now().Add(time.Minute).Unix(),
	})

	_, err := svc.VerifyAccessToken(token)
	if !errors.Is(err, domain.ErrInvalidCredential) {
		t.Errorf("got %v, want ErrInvalidCredential", err)
	}
}

func TestVerifyAccessToken_RejectsRefreshToken(t *testing.T) {
	svc := newTestAuthService(&mockUserStore{})

	token := signToken(t, testSecret, jwt.MapClaims{
		"sub":  int64(7),
		"type": "refresh",
		"exp":  time.Now().Add(time.Minute).Unix(),
	})

	_, err := svc.VerifyAccessToken(token)
	if !errors.Is(err, domain.ErrInvalidCredential) {
		t.Errorf("got %v, want ErrInvalidCredential", err)
	}
}

func TestRefresh_MintsNewPair(t *testing.T) {
	user := testUser(7)
	store := &mockUserStore{
		findByIDFn: func(_ context.Context, id int64) (*domain.User, error) {
			if id != 7 {
				return nil, domain.ErrNotFound
			}
			return user, nil
		},
	}
	svc := newTestAuthService(store)

	token := signToken(t, testSecret, jwt.MapClaims{
		"sub":  int64(7),
		"type": "refresh",
		"exp":  time.Now().Add(time.Hour).Unix(),
	})

	pair, err := svc.Refresh(context.Background(), token)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if userID, err := svc.VerifyAccessToken(pair.AccessToken); err != nil || userID != 7 {
		t.Errorf("new access token invalid: id=%d err=%v", userID, err)
	}
}

// --- password tests ---

func TestLogin_WrongPassword(t *testing.T) {
	user := testUser(7)
	user.PasswordHash = hashPassword(t, "correct horse")

	store := &mockUserStore{
		findByEmailFn: func(_ context.Context, _ string) (*domain.User, error) { return user, nil },
	}
	svc := newTestAuthService(store)

	_, _, err := svc.Login(context.Background(), "alice@example.com", "battery staple")
	if !errors.Is(err, domain.ErrInvalidCredential) {
		t.Errorf("got %v, want ErrInvalidCredential", err)
	}
}

func TestLogin_UnknownEmailIndistinguishable(t *testing.T) {
	svc := newTestAuthService(&mockUserStore{})

	_, _, err := svc.Login(context.Background(), "nobody@example.com", "whatever")
	if !errors.Is(err, domain.ErrInvalidCredential) {
		t.Errorf("got %v, want ErrInvalidCredential", err)
	}
}

func TestLogin_FederatedOnlyAccountHasNoPassword(t *testing.T) {
	user := testUser(7) // no password hash
	store := &mockUserStore{
		findByEmailFn: func(_ context.Context, _ string) (*domain.User, error) { return user, nil },
	}
	svc := newTestAuthService(store)

	_, _, err := svc.Login(context.Background(), "alice@example.com", "anything")
	if !errors.Is(err, domain.ErrInvalidCredential) {
		t.Errorf("got %v, want ErrInvalidCredential", err)
	}
}

func TestRegister_StoresVerifierNotPassword(t *testing.T) {
	var created domain.User
	store := &mockUserStore{
		createFn: func(_ context.Context, user domain.User) (*domain.User, error) {
			created = user
			user.ID = 42
			return &user, nil
		},
	}
	svc := newTestAuthService(store)

	user, pair, err := svc.Register(context.Background(), "Bob", "Bob@Example.com", "battery staple")
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	if created.PasswordHash == nil || *created.PasswordHash == "battery staple" {
		t.Error("password stored without hashing")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(*created.PasswordHash), []byte("battery staple")); err != nil {
		t.Errorf("stored hash does not verify: %v", err)
	}
	if created.Username != "bob" || created.Email != "bob@example.com" {
		t.Errorf("username/email not normalized: %q %q", created.Username, created.Email)
	}
	if userID, err := svc.VerifyAccessToken(pair.AccessToken); err != nil || userID != user.ID {
		t.Errorf("access token invalid after register: id=%d err=%v", userID, err)
	}
}

// --- federated resolution ---

func TestResolveGoogleUser_CreatesOnce(t *testing.T) {
	var store mockUserStore
	var known *domain.User
	creates := 0

	store.findByGoogleIDFn = func(_ context.Context, googleID string) (*domain.User, error) {
		if known != nil && known.GoogleID != nil && *known.GoogleID == googleID {
			return known, nil
		}
		return nil, domain.ErrNotFound
	}
	store.createFn = func(_ context.Context, user domain.User) (*domain.User, error) {
		creates++
		user.ID = 9
		known = &user
		return &user, nil
	}

	svc := newTestAuthService(&store)
	info := &GoogleUserInfo{ID: "g-123", Email: "Carol@Example.com", Name: "Carol Jones"}

	first, err := svc.resolveGoogleUser(context.Background(), info)
	if err != nil {
		t.Fatalf("first resolve: %v", err)
	}
	second, err := svc.resolveGoogleUser(context.Background(), info)
	if err != nil {
		t.Fatalf("second resolve: %v", err)
	}

	if creates != 1 {
		t.Errorf("created %d users, want 1", creates)
	}
	if first.ID != second.ID {
		t.Errorf("resolved to different users: %d vs %d", first.ID, second.ID)
	}
	if first.Username != "carol_jones" {
		t.Errorf("derived username %q, want carol_jones", first.Username)
	}
	if first.Email != "carol@example.com" {
		t.Errorf("email %q not lower-cased", first.Email)
	}
}

func TestResolveGoogleUser_InsertRaceResolvesToWinner(t *testing.T) {
	winner := testUser(3)
	googleID := "g-456"
	winner.GoogleID = &googleID

	lookups := 0
	store := &mockUserStore{
		findByGoogleIDFn: func(_ context.Context, _ string) (*domain.User, error) {
			lookups++
			if lookups == 1 {
				// Not there yet when we look, but a concurrent callback
				// inserts before our create lands.
				return nil, domain.ErrNotFound
			}
			return winner, nil
		},
		createFn: func(_ context.Context, _ domain.User) (*domain.User, error) {
			return nil, domain.ErrConflict
		},
	}
	svc := newTestAuthService(store)

	user, err := svc.resolveGoogleUser(context.Background(), &GoogleUserInfo{ID: googleID, Name: "X"})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if user.ID != winner.ID {
		t.Errorf("got user %d, want winner %d", user.ID, winner.ID)
	}
}

func TestAvailableUsername_SuffixesOnCollision(t *testing.T) {
	taken := map[string]bool{"john_smith": true, "john_smith_2": true}
	store := &mockUserStore{
		usernameTakenFn: func(_ context.Context, username string) (bool, error) {
			return taken[username], nil
		},
	}
	svc := newTestAuthService(store)

	username, err := svc.availableUsername(context.Background(), "  John   Smith ")
	if err != nil {
		t.Fatalf("availableUsername: %v", err)
	}
	if username != "john_smith_3" {
		t.Errorf("got %q, want john_smith_3", username)
	}
}

func TestAvailableUsername_EmptyDisplayName(t *testing.T) {
	svc := newTestAuthService(&mockUserStore{})

	username, err := svc.availableUsername(context.Background(), "   ")
	if err != nil {
		t.Fatalf("availableUsername: %v", err)
	}
	if !strings.HasPrefix(username, "user") {
		t.Errorf("got %q, want user fallback", username)
	}
}

// --- bridge sessions ---

func TestExchangeSession_SingleUse(t *testing.T) {
	user := testUser(7)
	store := &mockUserStore{
		findByIDFn: func(_ context.Context, _ int64) (*domain.User, error) { return user, nil },
	}
	svc := newTestAuthService(store)

	sessionID := svc.createBridgeSession(7)

	pair, err := svc.ExchangeSession(context.Background(), sessionID)
	if err != nil {
		t.Fatalf("first exchange: %v", err)
	}
	if userID, err := svc.VerifyAccessToken(pair.AccessToken); err != nil || userID != 7 {
		t.Errorf("exchanged token invalid: id=%d err=%v", userID, err)
	}

	if _, err := svc.ExchangeSession(context.Background(), sessionID); !errors.Is(err, domain.ErrInvalidCredential) {
		t.Errorf("second exchange got %v, want ErrInvalidCredential", err)
	}
}

func TestExchangeSession_Expired(t *testing.T) {
	svc := newTestAuthService(&mockUserStore{})

	base := time.Now()
	svc.now = func() time.Time { return base }
	sessionID := svc.createBridgeSession(7)

	svc.now = func() time.Time { return base.Add(bridgeSessionTTL + time.Second) }
	if _, err := svc.ExchangeSession(context.Background(), sessionID); !errors.Is(err, domain.ErrInvalidCredential) {
		t.Errorf("got %v, want ErrInvalidCredential", err)
	}
}

func TestExchangeSession_Unknown(t *testing.T) {
	svc := newTestAuthService(&mockUserStore{})

	if _, err := svc.ExchangeSession(context.Background(), "no-such-session"); !errors.Is(err, domain.ErrInvalidCredential) {
		t.Errorf("got %v, want ErrInvalidCredential", err)
	}
}
