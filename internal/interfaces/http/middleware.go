package http

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/garyjia/medallion-bpm/internal/application/port"
	"github.com/garyjia/medallion-bpm/internal/domain/entity"
	"github.com/garyjia/medallion-bpm/internal/domain/event"
)

const (
	// HeaderRequestID carries the request id in and out
	HeaderRequestID = "X-Request-ID"
	// HeaderUserID names the acting user. Authentication happens upstream.
	HeaderUserID = "X-User-ID"

	requestIDKey = "request_id"
	actorKey     = "actor"
)

// requestIDMiddleware tags each request with an id and threads it into the
// request context as the event correlation id
func requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(HeaderRequestID)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(requestIDKey, id)
		c.Header(HeaderRequestID, id)
		c.Request = c.Request.WithContext(event.ContextWithCorrelation(c.Request.Context(), id))
		c.Next()
	}
}

// actorMiddleware resolves the acting user and their roles from the user
// directory
func actorMiddleware(users port.UserDirectory, logger Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := c.GetHeader(HeaderUserID)
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, Response{
				Success: false,
				Error:   "missing or invalid " + HeaderUserID + " header",
			})
			return
		}

		user, err := users.GetUser(c.Request.Context(), id)
		if err != nil {
			logger.Error("Failed to resolve actor", "user_id", id, "error", err)
			c.AbortWithStatusJSON(http.StatusInternalServerError, Response{
				Success: false,
				Error:   "failed to resolve user",
			})
			return
		}
		if user == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, Response{
				Success: false,
				Error:   "unknown user",
			})
			return
		}

		c.Set(actorKey, user.Actor())
		c.Next()
	}
}

func actorFrom(c *gin.Context) entity.Actor {
	v, _ := c.Get(actorKey)
	actor, _ := v.(entity.Actor)
	return actor
}
