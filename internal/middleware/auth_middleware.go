package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	apperrors "workout/backend/internal/errors"
)

const athleteIDKey = "athleteID"

// TokenParser resolves a bearer token to the athlete id it was issued for.
type TokenParser interface {
	ParseToken(token string) (string, *apperrors.APIError)
}

// Auth rejects requests without a valid bearer token and stores the athlete
// id for AthleteID.
func Auth(parser TokenParser) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			abort(c, apperrors.Unauthorized("missing authorization header"))
			return
		}
		scheme, token, found := strings.Cut(header, " ")
		token = strings.TrimSpace(token)
		if !found || !strings.EqualFold(scheme, "Bearer") || token == "" {
			abort(c, apperrors.Unauthorized("invalid authorization format"))
			return
		}

		athleteID, apiErr := parser.ParseToken(token)
		if apiErr != nil {
			abort(c, apiErr)
			return
		}
		c.Set(athleteIDKey, athleteID)
		c.Next()
	}
}

// AthleteID is the authenticated athlete, or "" on routes without Auth.
func AthleteID(c *gin.Context) string {
	return c.GetString(athleteIDKey)
}

func abort(c *gin.Context, apiErr *apperrors.APIError) {
	body := gin.H{
		"code":    apiErr.Code,
		"message": apiErr.Message,
	}
	if apiErr.Details != nil {
		body["details"] = apiErr.Details
	}
	c.AbortWithStatusJSON(apiErr.Status, gin.H{"error": body})
}
