package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	appctx "docseries/internal/core/context"
)

// HeaderOperator names the person or system acting on the request. It is
// recorded in audit entries and on created documents.
const HeaderOperator = "X-Operator"

const maxOperatorLen = 128

// Operator copies the X-Operator header into the request context.
func Operator() gin.HandlerFunc {
	return func(c *gin.Context) {
		if op := strings.TrimSpace(c.GetHeader(HeaderOperator)); op != "" {
			if len(op) > maxOperatorLen {
				op = op[:maxOperatorLen]
			}
			c.Request = c.Request.WithContext(appctx.WithOperator(c.Request.Context(), op))
		}
		c.Next()
	}
}
