package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	appctx "clinicledger/internal/core/context"
)

// HeaderActorID carries the identity resolved by the upstream gateway.
const HeaderActorID = "X-Actor-ID"

// Actor puts the caller identity into the request context so audit entries and
// idempotency keys are attributed to it. Requests without the header run as an
// anonymous actor.
func Actor() gin.HandlerFunc {
	return func(c *gin.Context) {
		actorID := strings.TrimSpace(c.GetHeader(HeaderActorID))
		ctx := appctx.WithActor(c.Request.Context(), &appctx.Actor{ID: actorID, Source: "http"})
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
