package middleware

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/propgate/propgate/internal/pkg/apperrors"
	"github.com/propgate/propgate/internal/pkg/logger"
)

// ErrorHandler 统一错误出口。
// Handlers attach errors with c.Error instead of writing responses; this
// middleware renders the last one as the AppError JSON shape after the
// chain completes. Server-side failures get full error logging, client
// mistakes only a warning line.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}

		// 未分类的错误按内部错误处理
		err := c.Errors.Last().Err
		var appErr *apperrors.AppError
		if !errors.As(err, &appErr) {
			appErr = apperrors.New(apperrors.ErrInternal, err.Error(), err)
		}

		logFields := []any{
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"code", appErr.Type,
			"client_ip", c.ClientIP(),
		}

		if appErr.HTTPStatus >= 500 {
			logger.LogError(c.Request.Context(), appErr, "Internal Server Error", logFields...)
		} else {
			logger.Warn(appErr.Message, logFields...)
		}

		c.JSON(appErr.HTTPStatus, appErr)
	}
}
