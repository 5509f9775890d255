package api

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"sports-tips-subscription/internal/domain/model"
	"sports-tips-subscription/internal/infra/logging"
	"sports-tips-subscription/internal/infra/metrics"
	"sports-tips-subscription/internal/infra/redis"
)

var (
	errMissingToken = errors.New("missing token")
	errInvalidToken = errors.New("invalid token")
)

const (
	issuer           = "sports-tips-admin"
	authFailureLimit = 10
	authFailureWin   = time.Minute
)

type AdminClaims struct {
	Role model.UserRole `json:"role"`
	jwt.RegisteredClaims
}

// AuthManager mints and checks HS256 bearer tokens for staff and admins.
type AuthManager struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewAuthManager(secret string, ttl time.Duration) *AuthManager {
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	return &AuthManager{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// Mint signs a token for subject. Only staff and admin roles may be minted.
func (a *AuthManager) Mint(subject string, role model.UserRole) (string, error) {
	if role != model.UserRoleAdmin && role != model.UserRoleStaff {
		return "", errors.New("only staff and admin tokens can be minted")
	}
	now := a.now()
	claims := AdminClaims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(a.ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

func (a *AuthManager) ParseFromRequest(r *http.Request) (*AdminClaims, error) {
	hdr := r.Header.Get("Authorization")
	if hdr == "" {
		return nil, errMissingToken
	}
	if len(hdr) < 7 || !strings.EqualFold(hdr[:7], "bearer ") {
		return nil, errInvalidToken
	}
	return a.parse(strings.TrimSpace(hdr[7:]))
}

func (a *AuthManager) parse(tok string) (*AdminClaims, error) {
	claims := &AdminClaims{}
	tkn, err := jwt.ParseWithClaims(tok, claims, func(t *jwt.Token) (any, error) {
		return a.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithTimeFunc(a.now),
	)
	if err != nil || !tkn.Valid {
		return nil, errInvalidToken
	}
	switch claims.Role {
	case model.UserRoleAdmin, model.UserRoleStaff:
		return claims, nil
	}
	return nil, errInvalidToken
}

// Limiter counts failed attempts; redis.RateLimiter implements it.
type Limiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

type claimsKey struct{}

func claimsFrom(ctx context.Context) *AdminClaims {
	c, _ := ctx.Value(claimsKey{}).(*AdminClaims)
	return c
}

// Authenticate rejects requests without a valid staff or admin token.
// Repeated failures from one address turn 401 into 429 when a limiter is set.
func (s *Server) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, err := s.auth.ParseFromRequest(r)
		if err != nil {
			if s.limiter != nil {
				ok, lerr := s.limiter.Allow(r.Context(), redis.AuthFailureKey(remoteIP(r)), authFailureLimit, authFailureWin)
				if lerr != nil {
					logging.With(r.Context(), s.log).Warn().Err(lerr).Msg("auth limiter unavailable")
				} else if !ok {
					metrics.IncAdminAuth("throttled")
					writeError(w, http.StatusTooManyRequests, "too many failed attempts")
					return
				}
			}
			metrics.IncAdminAuth("rejected")
			writeError(w, http.StatusUnauthorized, err.Error())
			return
		}
		metrics.IncAdminAuth("ok")
		ctx := context.WithValue(r.Context(), claimsKey{}, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireAdmin narrows an authenticated route to the admin role.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if c := claimsFrom(r.Context()); c == nil || c.Role != model.UserRoleAdmin {
			writeError(w, http.StatusForbidden, "admin role required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func remoteIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
