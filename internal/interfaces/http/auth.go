package http

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/garyjia/staff-approvals/internal/domain/entity"
	"github.com/garyjia/staff-approvals/internal/domain/workflow"
)

const actorKey = "actor"

// Claims carries the caller's identity and organizational placement
type Claims struct {
	Name       string `json:"name"`
	Email      string `json:"email,omitempty"`
	Role       string `json:"role"`
	Department string `json:"department,omitempty"`
	School     string `json:"school,omitempty"`
	jwt.RegisteredClaims
}

// Actor converts the claims into the engine's actor
func (c *Claims) Actor() entity.Actor {
	return entity.Actor{
		UserID:     c.Subject,
		Name:       c.Name,
		Email:      c.Email,
		Role:       workflow.Role(c.Role),
		Department: c.Department,
		School:     c.School,
	}
}

// Authenticator verifies HS256 bearer tokens
type Authenticator struct {
	secret []byte
	issuer string
}

// NewAuthenticator creates an authenticator; issuer is checked when non-empty
func NewAuthenticator(secret, issuer string) (*Authenticator, error) {
	if secret == "" {
		return nil, errors.New("auth secret is required")
	}
	return &Authenticator{secret: []byte(secret), issuer: issuer}, nil
}

// Issue signs a token for actor, used by tooling and tests
func (a *Authenticator) Issue(actor entity.Actor, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Name:       actor.Name,
		Email:      actor.Email,
		Role:       actor.Role.String(),
		Department: actor.Department,
		School:     actor.School,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   actor.UserID,
			Issuer:    a.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

// Parse validates tokenString and returns its actor
func (a *Authenticator) Parse(tokenString string) (entity.Actor, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if a.issuer != "" {
		opts = append(opts, jwt.WithIssuer(a.issuer))
	}

	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return a.secret, nil
	}, opts...)
	if err != nil {
		return entity.Actor{}, err
	}

	if claims.Subject == "" {
		return entity.Actor{}, errors.New("token has no subject")
	}
	actor := claims.Actor()
	if !actor.Role.IsValid() {
		return entity.Actor{}, fmt.Errorf("token role %q is not recognised", claims.Role)
	}
	return actor, nil
}

// Middleware resolves the actor from the Authorization header
func (a *Authenticator) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, Response{Error: "authorization header required"})
			return
		}

		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, Response{Error: "authorization header format must be Bearer {token}"})
			return
		}

		actor, err := a.Parse(strings.TrimSpace(parts[1]))
		if err != nil {
			msg := "invalid token"
			if errors.Is(err, jwt.ErrTokenExpired) {
				msg = "token has expired"
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, Response{Error: msg})
			return
		}

		c.Set(actorKey, actor)
		c.Next()
	}
}

// actorFrom returns the actor stored by Middleware
func actorFrom(c *gin.Context) (entity.Actor, bool) {
	v, ok := c.Get(actorKey)
	if !ok {
		return entity.Actor{}, false
	}
	actor, ok := v.(entity.Actor)
	return actor, ok
}
