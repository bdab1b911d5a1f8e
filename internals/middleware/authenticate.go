package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/Akshdhiwar/simpledocs-archive/internals/apperrors"
)

const (
	AccessTokenCookie = "archiveAT"
	memberKey         = "memberID"
)

// Authenticator checks HMAC signed access tokens sent as a bearer token or
// in the access token cookie. The member id is read from the "id" claim.
type Authenticator struct {
	secret []byte
	log    logrus.FieldLogger
}

func NewAuthenticator(secret string, log logrus.FieldLogger) (*Authenticator, error) {
	if secret == "" {
		return nil, errors.New("jwt secret is empty")
	}
	return &Authenticator{secret: []byte(secret), log: log}, nil
}

func (a *Authenticator) Middleware() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		tokenString := bearerToken(ctx)
		if tokenString == "" {
			tokenString, _ = ctx.Cookie(AccessTokenCookie)
		}
		if tokenString == "" {
			unauthorized(ctx, "Authorization token not found")
			return
		}

		member, err := a.Verify(tokenString)
		if err != nil {
			a.log.WithError(err).WithField("client_ip", ctx.ClientIP()).Debug("rejected access token")
			unauthorized(ctx, "Invalid or expired token")
			return
		}

		ctx.Set(memberKey, member)
		ctx.Next()
	}
}

// Verify parses a token and returns the member it was issued to.
func (a *Authenticator) Verify(tokenString string) (uuid.UUID, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		// Make sure the signing method is HMAC
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return a.secret, nil
	})
	if err != nil {
		return uuid.Nil, err
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return uuid.Nil, errors.New("invalid token claims")
	}
	id, ok := claims["id"].(string)
	if !ok {
		return uuid.Nil, errors.New("token has no member id")
	}
	member, err := uuid.Parse(id)
	if err != nil {
		return uuid.Nil, fmt.Errorf("token member id: %w", err)
	}
	return member, nil
}

// Sign issues an access token for member.
func (a *Authenticator) Sign(member uuid.UUID, ttl time.Duration) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"id":  member.String(),
		"iat": now.Unix(),
		"exp": now.Add(ttl).Unix(),
	})
	return token.SignedString(a.secret)
}

// MemberID returns the member set by the auth middleware.
func MemberID(ctx *gin.Context) (uuid.UUID, bool) {
	value, ok := ctx.Get(memberKey)
	if !ok {
		return uuid.Nil, false
	}
	member, ok := value.(uuid.UUID)
	return member, ok
}

func bearerToken(ctx *gin.Context) string {
	header := ctx.GetHeader("Authorization")
	if len(header) > 7 && strings.EqualFold(header[:7], "Bearer ") {
		return strings.TrimSpace(header[7:])
	}
	return ""
}

func unauthorized(ctx *gin.Context, message string) {
	ctx.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"message": message,
		"code":    apperrors.KindUnauthorized.Code(),
	})
}
