package echoapi

import (
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/trezcool/masomo-curriculum/core"
	"github.com/trezcool/masomo-curriculum/core/access"
	"github.com/trezcool/masomo-curriculum/core/revision"
)

const contextTokenKey = "userToken"

// Claims represents the authorization claims transmitted via a JWT.
// Role is the caller's role as issued, aliases included.
type Claims struct {
	jwt.StandardClaims
	Role  access.Role `json:"role"`
	Name  string      `json:"name,omitempty"`
	Email string      `json:"email,omitempty"`
}

func newJWTConfig(conf *core.Config) middleware.JWTConfig {
	return middleware.JWTConfig{
		SigningKey:    []byte(conf.SecretKey),
		SigningMethod: middleware.AlgorithmHS256,
		ContextKey:    contextTokenKey,
		Claims:        new(Claims),
	}
}

func NewClaims(id core.Identity, role access.Role, conf *core.Config) *Claims {
	now := time.Now()
	return &Claims{
		StandardClaims: jwt.StandardClaims{
			Issuer:    conf.AppName,
			Subject:   id.Subject,
			Audience:  "Academia",
			ExpiresAt: now.Add(conf.Server.JWTExpirationDelta).Unix(),
			IssuedAt:  now.Unix(),
		},
		Role:  access.ParseRole(string(role)),
		Name:  id.Name,
		Email: id.Email,
	}
}

// GenerateToken generates a signed JWT token string representing the Claims.
func GenerateToken(claims *Claims, conf *core.Config) (string, error) {
	method := jwt.GetSigningMethod(middleware.AlgorithmHS256)
	token := jwt.NewWithClaims(method, claims)

	ss, err := token.SignedString([]byte(conf.SecretKey))
	if err != nil {
		return "", errors.Wrap(err, "signing token")
	}
	return ss, nil
}

func getContextClaims(ctx echo.Context) (Claims, error) {
	if token, ok := ctx.Get(contextTokenKey).(*jwt.Token); ok {
		if claims, ok := token.Claims.(*Claims); ok {
			return *claims, nil
		}
	}
	return Claims{}, errUnauthorized
}

func (c Claims) identity() core.Identity {
	return core.Identity{Subject: c.Subject, Name: c.Name, Email: c.Email}
}

// actor normalises the role: tokens may be signed by any holder of the secret key.
func (c Claims) actor() revision.Actor {
	return revision.Actor{Role: access.ParseRole(string(c.Role)), Subject: c.Subject}
}

func getContextActor(ctx echo.Context) (revision.Actor, error) {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return revision.Actor{}, err
	}
	return claims.actor(), nil
}
