package middlewares

import (
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v4"

	"storefront-backend/apperr"
	"storefront-backend/config"
	"storefront-backend/models"
)

const (
	authHeader   = "Authorization"
	bearerPrefix = "Bearer "
)

// Claims is our JWT payload (subject=userID).
type Claims struct {
	Email string `json:"email"`
	Admin bool   `json:"admin"`
	Role  string `json:"role"`
	jwt.RegisteredClaims
}

// Auth issues and verifies HS256 session tokens. A token is read from the
// Authorization header first, then from the session cookie.
type Auth struct {
	secret []byte
	cookie string
	ttl    time.Duration
	now    func() time.Time
}

func NewAuth(cfg *config.Config) *Auth {
	hours := cfg.SessionHours
	if hours <= 0 {
		hours = 24
	}
	return &Auth{
		secret: []byte(cfg.JWTSecret),
		cookie: cfg.SessionCookie,
		ttl:    time.Duration(hours) * time.Hour,
		now:    time.Now,
	}
}

func (a *Auth) CookieName() string { return a.cookie }

// Issue signs a new token for the user.
func (a *Auth) Issue(user *models.User) (string, time.Time, error) {
	now := a.now()
	exp := now.Add(a.ttl)
	claims := &Claims{
		Email: user.Email,
		Admin: user.IsAdmin,
		Role:  user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			ExpiresAt: jwt.NewNumericDate(exp),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(a.secret)
	return signed, exp, err
}

func (a *Auth) rawToken(c *fiber.Ctx) string {
	if h := c.Get(authHeader); len(h) > len(bearerPrefix) && strings.EqualFold(h[:len(bearerPrefix)], bearerPrefix) {
		return strings.TrimSpace(h[len(bearerPrefix):])
	}
	if a.cookie != "" {
		return strings.TrimSpace(c.Cookies(a.cookie))
	}
	return ""
}

func (a *Auth) parse(raw string) (*Claims, error) {
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	var claims Claims
	token, err := parser.ParseWithClaims(raw, &claims, func(t *jwt.Token) (interface{}, error) {
		return a.secret, nil
	})
	if err != nil || !token.Valid {
		return nil, errors.New("invalid or expired token")
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return nil, errors.New("token missing subject")
	}
	return &claims, nil
}

func setSession(c *fiber.Ctx, claims *Claims) {
	c.Locals("userID", claims.Subject)
	c.Locals("email", claims.Email)
	c.Locals("admin", claims.Admin)
	c.Locals("role", claims.Role)
}

// Optional populates the session locals when a valid token is present and
// lets anonymous requests through.
func (a *Auth) Optional() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if raw := a.rawToken(c); raw != "" {
			if claims, err := a.parse(raw); err == nil {
				setSession(c, claims)
			}
		}
		return c.Next()
	}
}

// Required rejects requests without a valid token with 401.
func (a *Auth) Required() fiber.Handler {
	return func(c *fiber.Ctx) error {
		raw := a.rawToken(c)
		if raw == "" {
			return apperr.UnauthorizedErr("Authentication required")
		}
		claims, err := a.parse(raw)
		if err != nil {
			return apperr.UnauthorizedErr("Invalid or expired session")
		}
		setSession(c, claims)
		return c.Next()
	}
}

// RequireAdmin must run after Required.
func RequireAdmin() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !IsAdmin(c) {
			return apperr.ForbiddenErr("Admin access required")
		}
		return c.Next()
	}
}

func UserID(c *fiber.Ctx) string {
	id, _ := c.Locals("userID").(string)
	return id
}

func IsAdmin(c *fiber.Ctx) bool {
	admin, _ := c.Locals("admin").(bool)
	return admin
}
