package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/kbukum/intentflow/auth/jwt"
	apperrors "github.com/kbukum/intentflow/errors"
	"github.com/kbukum/intentflow/logger"
)

// Auth validates the Bearer token. The claims are stored in the request
// context and the subject becomes the logged user id.
func Auth(v *jwt.Validator) gin.HandlerFunc {
	return func(c *gin.Context) {
		scheme, token, found := strings.Cut(c.GetHeader("Authorization"), " ")
		if !found || !strings.EqualFold(scheme, "Bearer") {
			abort(c, apperrors.Unauthorized("Authorization header must be a Bearer token"))
			return
		}
		claims, err := v.Parse(strings.TrimSpace(token))
		if err != nil {
			abort(c, err)
			return
		}
		ctx := jwt.ContextWithClaims(c.Request.Context(), claims)
		ctx = logger.ContextWithUserID(ctx, claims.Subject)
		c.Request = c.Request.WithContext(ctx)
		c.Set("user_id", claims.Subject)
		c.Next()
	}
}

// RequireScope rejects callers whose token lacks scope. Requests without
// claims pass, so routes stay open when authentication is disabled.
func RequireScope(scope string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if claims, ok := jwt.ClaimsFromContext(c.Request.Context()); ok && !claims.HasScope(scope) {
			abort(c, apperrors.Forbidden(scope))
			return
		}
		c.Next()
	}
}

func abort(c *gin.Context, err error) {
	appErr, ok := apperrors.AsAppError(err)
	if !ok {
		appErr = apperrors.Unauthorized(err.Error())
	}
	c.AbortWithStatusJSON(appErr.HTTPStatus, appErr.ToResponse())
}
