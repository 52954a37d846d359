package middleware

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"taxservice/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// ContextUserID is the gin context key holding the authenticated user id.
const ContextUserID = "userID"

const accessTokenCookie = "access_token"

var (
	errMissingAuth   = errors.New("Authorization is missing")
	errInvalidFormat = errors.New("Invalid authorization format. Expected 'Bearer <token>'")
)

// SetTokenCookie sets the access token as an HttpOnly cookie.
// Production (cross-origin): SameSiteNoneMode + Secure=true
// Development (same-site):   SameSiteLaxMode  + Secure=false
func SetTokenCookie(c *gin.Context, token string, ttl time.Duration, production bool) {
	sameSite := http.SameSiteLaxMode
	secure := false
	if production {
		sameSite = http.SameSiteNoneMode
		secure = true
	}

	c.SetSameSite(sameSite)
	c.SetCookie(accessTokenCookie, token, int(ttl.Seconds()), "/", "", secure, true)
}

// TokenFromRequest reads the token from the access_token cookie, falling back
// to the Authorization header. Websocket upgrades may also pass ?token=, since
// browsers cannot set headers on them.
func TokenFromRequest(c *gin.Context) (string, error) {
	if tokenString, err := c.Cookie(accessTokenCookie); err == nil && tokenString != "" {
		return tokenString, nil
	}

	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		if isWebsocketUpgrade(c) {
			if tokenString := c.Query("token"); tokenString != "" {
				return tokenString, nil
			}
		}
		return "", errMissingAuth
	}

	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		return "", errInvalidFormat
	}
	return parts[1], nil
}

func isWebsocketUpgrade(c *gin.Context) bool {
	return strings.EqualFold(c.GetHeader("Upgrade"), "websocket")
}

// ParseToken validates an HS256 token and returns its subject.
func ParseToken(tokenString string, secret []byte) (string, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return secret, nil
	})
	if err != nil {
		return "", err
	}
	if !token.Valid {
		return "", jwt.ErrTokenInvalidClaims
	}

	sub, err := token.Claims.GetSubject()
	if err != nil || sub == "" {
		return "", jwt.ErrTokenInvalidSubject
	}
	return sub, nil
}

// authenticate aborts with 401 and returns false when the request carries no valid token.
func authenticate(c *gin.Context, secret []byte) bool {
	tokenString, err := TokenFromRequest(c)
	if err != nil {
		response.Abort(c, http.StatusUnauthorized, err.Error())
		return false
	}

	sub, err := ParseToken(tokenString, secret)
	if err != nil {
		response.Abort(c, http.StatusUnauthorized, "Invalid token: "+err.Error())
		return false
	}

	c.Set(ContextUserID, sub)
	return true
}

// RequireAuth validates the token and stores its subject under ContextUserID.
func RequireAuth(secret []byte) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !authenticate(c, secret) {
			return
		}
		c.Next()
	}
}

// RequireSelf is RequireAuth plus a check that the token subject owns the
// resource named by the path parameter param.
func RequireSelf(secret []byte, param string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !authenticate(c, secret) {
			return
		}

		if c.GetString(ContextUserID) != c.Param(param) {
			response.Abort(c, http.StatusForbidden, "Access denied: token does not belong to this user")
			return
		}
		c.Next()
	}
}
