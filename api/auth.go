package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// authGuard issues and validates bearer tokens for the operator-facing
// control and settings endpoints. The tick endpoint the broker adapter
// drives at market pace is deliberately left open (spec §1's scope
// excludes authenticating that channel).
type authGuard struct {
	secret []byte
}

func newAuthGuard(secret string) *authGuard {
	return &authGuard{secret: []byte(secret)}
}

type operatorClaims struct {
	jwt.RegisteredClaims
}

// IssueToken mints a bearer token for an operator session, valid for ttl.
func (g *authGuard) IssueToken(subject string, ttl time.Duration) (string, error) {
	claims := operatorClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(g.secret)
}

func (g *authGuard) middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "missing or malformed Authorization header"})
			c.Abort()
			return
		}

		claims := &operatorClaims{}
		token, err := jwt.ParseWithClaims(parts[1], claims, func(t *jwt.Token) (interface{}, error) {
			return g.secret, nil
		})
		if err != nil || !token.Valid {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired token"})
			c.Abort()
			return
		}

		c.Set("operator", claims.Subject)
		c.Next()
	}
}
