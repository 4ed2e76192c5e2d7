package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/oauth2"
	googleOAuth "golang.org/x/oauth2/google"

	"github.com/hikari/taskboard/internal/domain"
)

// bridgeSessionTTL bounds the window between the OAuth callback and the
// token exchange. The session is single use.
const bridgeSessionTTL = 5 * time.Minute

// UserStore defines the user data access interface consumed by AuthService.
type UserStore interface {
	FindByID(ctx context.Context, id int64) (*domain.User, error)
	FindByEmail(ctx context.Context, email string) (*domain.User, error)
	FindByGoogleID(ctx context.Context, googleID string) (*domain.User, error)
	UsernameTaken(ctx context.Context, username string) (bool, error)
	Create(ctx context.Context, user domain.User) (*domain.User, error)
}

// AuthConfig holds token and OAuth configuration.
type AuthConfig struct {
	JWTSecret          string
	AccessTokenTTL     time.Duration
	RefreshTokenTTL    time.Duration
	GoogleClientID     string
	GoogleClientSecret string
	GoogleRedirectURL  string
}

// AuthService resolves credentials to user identities. It handles both the
// stateless bearer-token path and the federated Google path; the latter
// bridges the redirect handshake through a short-lived server-held session
// that is converted into a bearer token exactly once.
type AuthService struct {
	users      UserStore
	jwtSecret  []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	google     *oauth2.Config

	mu       sync.Mutex
	sessions map[string]bridgeSession

	now func() time.Time
}

type bridgeSession struct {
	userID    int64
	expiresAt time.Time
}

// NewAuthService creates a new AuthService.
func NewAuthService(users UserStore, cfg AuthConfig) *AuthService {
	return &AuthService{
		users:      users,
		jwtSecret:  []byte(cfg.JWTSecret),
		accessTTL:  cfg.AccessTokenTTL,
		refreshTTL: cfg.RefreshTokenTTL,
		google: &oauth2.Config{
			ClientID:     cfg.GoogleClientID,
			ClientSecret: cfg.GoogleClientSecret,
			Endpoint:     googleOAuth.Endpoint,
			Scopes:       []string{"openid", "profile", "email"},
			RedirectURL:  cfg.GoogleRedirectURL,
		},
		sessions: make(map[string]bridgeSession),
		now:      time.Now,
	}
}

// TokenPair holds an access token and refresh token.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// Register creates a user with a bcrypt password verifier and returns the
// user together with a fresh token pair.
func (s *AuthService) Register(ctx context.Context, username, email, password string) (*domain.User, *TokenPair, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, nil, fmt.Errorf("hash password: %w", err)
	}

	hashStr := string(hash)
	user, err := s.users.Create(ctx, domain.User{
		Username:     strings.ToLower(strings.TrimSpace(username)),
		Email:        strings.ToLower(strings.TrimSpace(email)),
		PasswordHash: &hashStr,
	})
	if err != nil {
		return nil, nil, err
	}

	pair, err := s.generateTokenPair(user)
	if err != nil {
		return nil, nil, err
	}
	return user, pair, nil
}

// Login verifies an email/password pair. Unknown email and wrong password
// are deliberately indistinguishable.
func (s *AuthService) Login(ctx context.Context, email, password string) (*domain.User, *TokenPair, error) {
	user, err := s.users.FindByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, nil, domain.ErrInvalidCredential
		}
		return nil, nil, err
	}

	if user.PasswordHash == nil {
		return nil, nil, domain.ErrInvalidCredential
	}
	if err := bcrypt.CompareHashAndPassword([]byte(*user.PasswordHash), []byte(password)); err != nil {
		return nil, nil, domain.ErrInvalidCredential
	}

	pair, err := s.generateTokenPair(user)
	if err != nil {
		return nil, nil, err
	}
	return user, pair, nil
}

// GoogleAuthURL returns the Google OAuth authorization URL.
func (s *AuthService) GoogleAuthURL(state string) string {
	return s.google.AuthCodeURL(state)
}

// GoogleCallback exchanges the authorization code, resolves or creates the
// user, and returns a single-use bridge session id. No bearer token is
// issued here; the client exchanges the session in a second step.
func (s *AuthService) GoogleCallback(ctx context.Context, code string) (string, error) {
	token, err := s.google.Exchange(ctx, code)
	if err != nil {
		return "", fmt.Errorf("google token exchange: %w", err)
	}

	info, err := fetchGoogleUserInfo(ctx, token.AccessToken)
	if err != nil {
		return "", fmt.Errorf("fetch google user info: %w", err)
	}

	user, err := s.resolveGoogleUser(ctx, info)
	if err != nil {
		return "", err
	}

	return s.createBridgeSession(user.ID), nil
}

// ExchangeSession converts a bridge session into a bearer token pair and
// discards the session. Unknown, reused and expired sessions all fail the
// same way.
func (s *AuthService) ExchangeSession(ctx context.Context, sessionID string) (*TokenPair, error) {
	s.mu.Lock()
	session, ok := s.sessions[sessionID]
	delete(s.sessions, sessionID)
	s.mu.Unlock()

	if !ok || s.now().After(session.expiresAt) {
		return nil, domain.ErrInvalidCredential
	}

	user, err := s.users.FindByID(ctx, session.userID)
	if err != nil {
		return nil, err
	}
	return s.generateTokenPair(user)
}

// VerifyAccessToken validates a bearer access token and returns the user ID.
func (s *AuthService) VerifyAccessToken(tokenString string) (int64, error) {
	return s.verifyToken(tokenString, "access")
}

// Refresh validates a refresh token and returns a new token pair. The user
// row is re-fetched so a token for a vanished account cannot be renewed.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	userID, err := s.verifyToken(refreshToken, "refresh")
	if err != nil {
		return nil, err
	}

	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrInvalidCredential
		}
		return nil, err
	}
	return s.generateTokenPair(user)
}

// GetUser retrieves the canonical user row by ID.
func (s *AuthService) GetUser(ctx context.Context, userID int64) (*domain.User, error) {
	return s.users.FindByID(ctx, userID)
}

// GoogleUserInfo is the provider assertion as returned by Google's userinfo
// endpoint.
type GoogleUserInfo struct {
	ID      string `json:"id"`
	Email   string `json:"email"`
	Name    string `json:"name"`
	Picture string `json:"picture"`
}

// resolveGoogleUser looks up the user by Google ID, creating the row on
// first login. A retried assertion for the same provider id never creates a
// duplicate: the unique constraint makes a racing insert fail, and the loser
// resolves to the winner's row.
func (s *AuthService) resolveGoogleUser(ctx context.Context, info *GoogleUserInfo) (*domain.User, error) {
	user, err := s.users.FindByGoogleID(ctx, info.ID)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	username, err := s.availableUsername(ctx, info.Name)
	if err != nil {
		return nil, err
	}

	created, err := s.users.Create(ctx, domain.User{
		Username:  username,
		Email:     strings.ToLower(info.Email),
		GoogleID:  &info.ID,
		AvatarURL: strPtr(info.Picture),
	})
	if err == nil {
		return created, nil
	}
	if !errors.Is(err, domain.ErrConflict) {
		return nil, err
	}

	// Lost the insert race against an identical concurrent callback.
	return s.users.FindByGoogleID(ctx, info.ID)
}

// availableUsername derives a username from the display name (lower-cased,
// whitespace replaced with underscores) and suffixes a counter on collision.
func (s *AuthService) availableUsername(ctx context.Context, displayName string) (string, error) {
	base := strings.Join(strings.Fields(strings.ToLower(displayName)), "_")
	if base == "" {
		base = "user"
	}

	candidate := base
	for i := 2; ; i++ {
		taken, err := s.users.UsernameTaken(ctx, candidate)
		if err != nil {
			return "", err
		}
		if !taken {
			return candidate, nil
		}
		if i > 50 {
			// Give up counting and fall back to a random suffix.
			return base + "_" + uuid.NewString()[:8], nil
		}
		candidate = fmt.Sprintf("%s_%d", base, i)
	}
}

func (s *AuthService) createBridgeSession(userID int64) string {
	id := uuid.NewString()
	now := s.now()

	s.mu.Lock()
	for key, session := range s.sessions {
		if now.After(session.expiresAt) {
			delete(s.sessions, key)
		}
	}
	s.sessions[id] = bridgeSession{userID: userID, expiresAt: now.Add(bridgeSessionTTL)}
	s.mu.Unlock()

	return id
}

func (s *AuthService) verifyToken(tokenString, wantType string) (int64, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.jwtSecret, nil
	})
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenMalformed):
			return 0, domain.ErrMalformedCredential
		case errors.Is(err, jwt.ErrTokenExpired):
			return 0, domain.ErrExpiredCredential
		default:
			return 0, domain.ErrInvalidCredential
		}
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return 0, domain.ErrInvalidCredential
	}

	tokenType, _ := claims["type"].(string)
	if tokenType != wantType {
		return 0, domain.ErrInvalidCredential
	}

	userIDFloat, ok := claims["sub"].(float64)
	if !ok {
		return 0, domain.ErrInvalidCredential
	}

	return int64(userIDFloat), nil
}

// generateTokenPair mints an HS256 access/refresh pair. username and email
// ride along in the access token as a display cache only; the user id is the
// single source of truth.
func (s *AuthService) generateTokenPair(user *domain.User) (*TokenPair, error) {
	now := s.now()

	accessToken := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":      user.ID,
		"type":     "access",
		"username": user.Username,
		"email":    user.Email,
		"iat":      now.Unix(),
		"exp":      now.Add(s.accessTTL).Unix(),
	})
	accessStr, err := accessToken.SignedString(s.jwtSecret)
	if err != nil {
		return nil, fmt.Errorf("sign access token: %w", err)
	}

	refreshToken := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  user.ID,
		"type": "refresh",
		"iat":  now.Unix(),
		"exp":  now.Add(s.refreshTTL).Unix(),
	})
	refreshStr, err := refreshToken.SignedString(s.jwtSecret)
	if err != nil {
		return nil, fmt.Errorf("sign refresh token: %w", err)
	}

	return &TokenPair{
		AccessToken:  accessStr,
		RefreshToken: refreshStr,
	}, nil
}

func fetchGoogleUserInfo(ctx context.Context, accessToken string) (*GoogleUserInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		"https://www.googleapis.com/oauth2/v2/userinfo", nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch user info: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("google user info returned status %d", resp.StatusCode)
	}

	var info GoogleUserInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, fmt.Errorf("decode user info: %w", err)
	}
	return &info, nil
}

func strPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
