package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/callmask/golang_services/internal/auth_service/domain"
	"github.com/callmask/golang_services/internal/auth_service/repository"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	TokenTypeBearer = "bearer"

	defaultTokenTTL = time.Hour
	defaultIssuer   = "callmask-auth-gateway"
)

var ErrSigningSecretMissing = errors.New("token signing secret is empty")

type GatewayConfig struct {
	SigningSecret string
	TokenTTL      time.Duration
	Issuer        string
	Now           func() time.Time // defaults to time.Now
}

// tokenClaims is the JWT payload: sub, scope, exp, iat, iss, jti.
type tokenClaims struct {
	Scope string `json:"scope"`
	jwt.RegisteredClaims
}

// AuthGateway issues and checks access tokens. It keeps no per-token state.
type AuthGateway struct {
	creds  repository.CredentialRepository
	secret []byte
	ttl    time.Duration
	issuer string
	now    func() time.Time
	logger *slog.Logger

	dummyOnce sync.Once
	dummyHash string
}

func NewAuthGateway(creds repository.CredentialRepository, cfg GatewayConfig, logger *slog.Logger) (*AuthGateway, error) {
	if strings.TrimSpace(cfg.SigningSecret) == "" {
		return nil, ErrSigningSecretMissing
	}
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = defaultTokenTTL
	}
	if cfg.Issuer == "" {
		cfg.Issuer = defaultIssuer
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &AuthGateway{
		creds:  creds,
		secret: []byte(cfg.SigningSecret),
		ttl:    cfg.TokenTTL,
		issuer: cfg.Issuer,
		now:    cfg.Now,
		logger: logger.With("component", "auth_gateway"),
	}, nil
}

// Login checks username and password and returns a signed token. Unknown
// users and wrong passwords produce the same error and take the same time.
func (g *AuthGateway) Login(ctx context.Context, username, password string) (*domain.Token, error) {
	cred, err := g.creds.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, repository.ErrCredentialNotFound) {
			CheckPasswordHash(password, g.dummyPasswordHash())
			g.logger.InfoContext(ctx, "Login failed", "reason", "unknown_user")
			return nil, domain.ErrInvalidCredentials
		}
		if errors.Is(err, domain.ErrUnknownScope) {
			// The row is unusable; answer exactly like an unknown user.
			CheckPasswordHash(password, g.dummyPasswordHash())
			g.logger.ErrorContext(ctx, "Stored credential has an unknown scope", "error", err)
			return nil, domain.ErrInvalidCredentials
		}
		g.logger.ErrorContext(ctx, "Error fetching credential", "error", err)
		return nil, fmt.Errorf("fetching credential: %w", err)
	}

	if !CheckPasswordHash(password, cred.PasswordHash) {
		g.logger.InfoContext(ctx, "Login failed", "reason", "password_mismatch", "username", cred.Username)
		return nil, domain.ErrInvalidCredentials
	}

	token, err := g.issue(cred.Username, cred.Scope)
	if err != nil {
		g.logger.ErrorContext(ctx, "Failed to sign access token", "error", err, "username", cred.Username)
		return nil, err
	}
	g.logger.InfoContext(ctx, "Login succeeded", "username", cred.Username, "scope", cred.Scope)
	return token, nil
}

func (g *AuthGateway) issue(subject string, scope domain.Scope) (*domain.Token, error) {
	now := g.now()
	expiresAt := now.Add(g.ttl)
	claims := tokenClaims{
		Scope: scope.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    g.issuer,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(g.secret)
	if err != nil {
		return nil, fmt.Errorf("signing token: %w", err)
	}
	return &domain.Token{AccessToken: signed, TokenType: TokenTypeBearer, ExpiresAt: expiresAt}, nil
}

// Verify checks signature, algorithm, issuer and expiry and returns the claims.
func (g *AuthGateway) Verify(ctx context.Context, token string) (*domain.Claims, error) {
	if token == "" {
		return nil, domain.ErrTokenInvalid
	}

	var tc tokenClaims
	_, err := jwt.ParseWithClaims(token, &tc,
		func(*jwt.Token) (interface{}, error) { return g.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuer(g.issuer),
		jwt.WithTimeFunc(g.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, domain.ErrTokenExpired
		}
		g.logger.DebugContext(ctx, "Token rejected", "error", err)
		return nil, domain.ErrTokenInvalid
	}

	if tc.Subject == "" {
		return nil, domain.ErrTokenInvalid
	}
	scope, err := domain.ParseScope(tc.Scope)
	if err != nil {
		return nil, domain.ErrTokenInvalid
	}

	claims := &domain.Claims{
		Subject:   tc.Subject,
		Scope:     scope,
		TokenID:   tc.ID,
		ExpiresAt: tc.ExpiresAt.Time,
	}
	if tc.IssuedAt != nil {
		claims.IssuedAt = tc.IssuedAt.Time
	}
	return claims, nil
}

// RequireScope verifies token and then demands an exact scope match.
func (g *AuthGateway) RequireScope(ctx context.Context, token string, required domain.Scope) (*domain.Claims, error) {
	claims, err := g.Verify(ctx, token)
	if err != nil {
		return nil, err
	}
	if !claims.Scope.Satisfies(required) {
		g.logger.WarnContext(ctx, "Scope check failed", "subject", claims.Subject, "scope", claims.Scope, "required", required)
		return nil, domain.ErrForbidden
	}
	return claims, nil
}

func (g *AuthGateway) dummyPasswordHash() string {
	g.dummyOnce.Do(func() {
		h, err := HashPassword(uuid.NewString())
		if err != nil {
			g.logger.Error("Failed to prepare dummy password hash", "error", err)
			return
		}
		g.dummyHash = h
	})
	return g.dummyHash
}
