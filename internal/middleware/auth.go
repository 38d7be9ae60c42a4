// Package middleware provides HTTP middleware for the API server
package middleware

import (
	"context"
	"crypto/rsa"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	apperrors "github.com/letsbefriends/platform/internal/errors"
	internalhttputil "github.com/letsbefriends/platform/internal/httputil"
	"github.com/letsbefriends/platform/internal/logging"
)

// Claims represents the JWT claims issued by the identity provider. The
// subject is the provider's user id.
type Claims struct {
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
	Role  string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

type claimsKey struct{}

// ClaimsFromContext returns the verified claims of the request, if any.
func ClaimsFromContext(ctx context.Context) (*Claims, bool) {
	c, ok := ctx.Value(claimsKey{}).(*Claims)
	return c, ok
}

// SubjectResolver maps an auth subject to a stored user id. It returns
// ("", nil) when the subject has not been registered yet.
type SubjectResolver interface {
	ResolveSubject(ctx context.Context, subject string) (string, error)
}

// AuthConfig selects the verification key. A public key enables RS256,
// otherwise the HMAC secret enables HS256.
type AuthConfig struct {
	HMACSecret []byte
	PublicKey  *rsa.PublicKey
	Issuer     string
	Audience   string
}

// AuthMiddleware provides JWT authentication
type AuthMiddleware struct {
	key      interface{}
	methods  []string
	options  []jwt.ParserOption
	resolver SubjectResolver
	logger   *logging.Logger
}

// NewAuthMiddleware creates a new authentication middleware
func NewAuthMiddleware(cfg AuthConfig, resolver SubjectResolver, logger *logging.Logger) (*AuthMiddleware, error) {
	m := &AuthMiddleware{resolver: resolver, logger: logger}
	switch {
	case cfg.PublicKey != nil:
		m.key = cfg.PublicKey
		m.methods = []string{jwt.SigningMethodRS256.Alg()}
	case len(cfg.HMACSecret) > 0:
		m.key = cfg.HMACSecret
		m.methods = []string{jwt.SigningMethodHS256.Alg()}
	default:
		return nil, errors.New("auth requires an HMAC secret or an RSA public key")
	}
	m.options = []jwt.ParserOption{jwt.WithValidMethods(m.methods), jwt.WithExpirationRequired()}
	if cfg.Issuer != "" {
		m.options = append(m.options, jwt.WithIssuer(cfg.Issuer))
	}
	if cfg.Audience != "" {
		m.options = append(m.options, jwt.WithAudience(cfg.Audience))
	}
	if m.logger == nil {
		m.logger = logging.Wrap(nil)
	}
	return m, nil
}

// ParseRSAPublicKey decodes a PEM encoded RSA public key.
func ParseRSAPublicKey(pem string) (*rsa.PublicKey, error) {
	key, err := jwt.ParseRSAPublicKeyFromPEM([]byte(pem))
	if err != nil {
		return nil, fmt.Errorf("parse auth public key: %w", err)
	}
	return key, nil
}

// Handler rejects requests without a valid bearer token.
func (m *AuthMiddleware) Handler(next http.Handler) http.Handler {
	return m.handle(next, true)
}

// Optional authenticates the request when a token is present and lets
// anonymous requests through.
func (m *AuthMiddleware) Optional(next http.Handler) http.Handler {
	return m.handle(next, false)
}

func (m *AuthMiddleware) handle(next http.Handler, required bool) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			if token := upgradeToken(r); token != "" {
				authHeader = "Bearer " + token
			}
		}
		if authHeader == "" {
			if required {
				m.respondError(w, r, apperrors.Unauthorized("Missing Authorization header"))
				return
			}
			next.ServeHTTP(w, r)
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			m.respondError(w, r, apperrors.Unauthorized("Invalid Authorization header format"))
			return
		}

		claims, err := m.validateToken(parts[1])
		if err != nil {
			m.logger.WithContext(r.Context()).WithError(err).Warn("Token validation failed")
			m.respondError(w, r, err)
			return
		}

		ctx := logging.WithSubject(r.Context(), claims.Subject)
		ctx = context.WithValue(ctx, claimsKey{}, claims)
		if claims.Role != "" {
			ctx = context.WithValue(ctx, logging.RoleKey, claims.Role)
		}
		if m.resolver != nil {
			userID, err := m.resolver.ResolveSubject(ctx, claims.Subject)
			if err != nil {
				m.respondError(w, r, apperrors.Internal("Failed to resolve user", err))
				return
			}
			if userID != "" {
				ctx = logging.WithUserID(ctx, userID)
			}
		}

		m.logger.WithContext(ctx).WithField("subject", claims.Subject).Debug("Authentication successful")
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// upgradeToken reads the access_token query parameter of websocket upgrade
// requests; browsers cannot set headers on them. Other requests must use the
// Authorization header.
func upgradeToken(r *http.Request) string {
	if !strings.EqualFold(r.Header.Get("Upgrade"), "websocket") {
		return ""
	}
	return strings.TrimSpace(r.URL.Query().Get("access_token"))
}

// validateToken validates a JWT token and returns claims
func (m *AuthMiddleware) validateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		return m.key, nil
	}, m.options...)
	if err != nil {
		return nil, apperrors.InvalidToken(err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, apperrors.InvalidToken(nil).WithDetails("reason", "invalid claims")
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return nil, apperrors.InvalidToken(nil).WithDetails("reason", "missing subject")
	}
	return claims, nil
}

// respondError sends an error response
func (m *AuthMiddleware) respondError(w http.ResponseWriter, r *http.Request, err error) {
	serviceErr := apperrors.GetServiceError(err)
	if serviceErr == nil {
		serviceErr = apperrors.Internal("Authentication failed", err)
	}

	internalhttputil.WriteErrorResponse(w, r, serviceErr.HTTPStatus, string(serviceErr.Code), serviceErr.Message, serviceErr.Details)

	m.logger.LogSecurityEvent(r.Context(), "authentication_failed", map[string]interface{}{
		"path":   r.URL.Path,
		"method": r.Method,
		"status": serviceErr.HTTPStatus,
	})
}

// GetUserID extracts user ID from context
func GetUserID(ctx context.Context) string {
	return logging.GetUserID(ctx)
}
