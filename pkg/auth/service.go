package auth

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

// TokenCookieName is the cookie browser clients carry their JWT in.
const TokenCookieName = "recipe_jwt"

// Common authentication errors.
var (
	ErrMissingAuthorization = errors.New("missing authorization")
	ErrInvalidAuthFormat    = errors.New("invalid authorization header format")
)

// AuthService defines the interface for authentication operations.
type AuthService interface {
	// ValidateRequest extracts and validates the caller's identity. It checks:
	//   1. Cookie named "recipe_jwt" (browser clients)
	//   2. Authorization header with "Bearer" scheme (API clients)
	//   3. The signed browser session, when a session store is configured
	// Returns the validated claims, the raw token string (empty for sessions), or an error.
	ValidateRequest(r *http.Request) (*Claims, string, error)

	// RequireTenant validates that the claims identify a tenant.
	RequireTenant(claims *Claims) error
}

type authService struct {
	jwksClient JWKSClientInterface
	sessions   *SessionStore
	logger     *zap.Logger
}

// NewAuthService creates a new AuthService. sessions may be nil to accept tokens only.
func NewAuthService(jwksClient JWKSClientInterface, sessions *SessionStore, logger *zap.Logger) AuthService {
	return &authService{
		jwksClient: jwksClient,
		sessions:   sessions,
		logger:     logger,
	}
}

func (s *authService) ValidateRequest(r *http.Request) (*Claims, string, error) {
	var tokenString string
	var tokenSource string

	if cookie, err := r.Cookie(TokenCookieName); err == nil {
		tokenString = cookie.Value
		tokenSource = "cookie"
	} else if authHeader := r.Header.Get("Authorization"); authHeader != "" {
		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			s.logger.Debug("Invalid Authorization header format",
				zap.String("path", r.URL.Path))
			return nil, "", ErrInvalidAuthFormat
		}
		tokenString = parts[1]
		tokenSource = "header"
	} else {
		return s.fromSession(r)
	}

	claims, err := s.jwksClient.ValidateToken(tokenString)
	if err != nil {
		s.logger.Debug("JWT validation failed",
			zap.Error(err),
			zap.String("path", r.URL.Path),
			zap.String("token_source", tokenSource))
		return nil, "", err
	}

	return claims, tokenString, nil
}

func (s *authService) fromSession(r *http.Request) (*Claims, string, error) {
	if s.sessions == nil {
		s.logger.Debug("No credentials found in request",
			zap.String("path", r.URL.Path),
			zap.String("method", r.Method))
		return nil, "", ErrMissingAuthorization
	}

	userID, err := s.sessions.UserID(r)
	if err != nil {
		s.logger.Debug("No usable session in request",
			zap.String("path", r.URL.Path),
			zap.Error(err))
		return nil, "", ErrMissingAuthorization
	}

	return &Claims{RegisteredClaims: jwt.RegisteredClaims{Subject: strconv.FormatInt(userID, 10)}}, "", nil
}

func (s *authService) RequireTenant(claims *Claims) error {
	_, err := claims.TenantID()
	return err
}

// Ensure authService implements AuthService at compile time.
var _ AuthService = (*authService)(nil)
