package middleware

import (
	"fmt"

	"github.com/gin-gonic/gin"

	"github.com/ignatzorin/freelance-escrow/internal/http/response"
	"github.com/ignatzorin/freelance-escrow/internal/pkg/apperror"
)

// ErrorHandler отвечает за ошибки, добавленные через c.Error, и за паники обработчиков.
// Внутренние ошибки маскируются в response.Error.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if rec := recover(); rec != nil {
				if c.Writer.Written() {
					return
				}
				response.Error(c, apperror.New(apperror.ErrCodeInternal, fmt.Sprintf("panic: %v", rec)))
			}
		}()

		c.Next()

		if c.Writer.Written() || len(c.Errors) == 0 {
			return
		}
		response.Error(c, c.Errors.Last().Err)
	}
}
