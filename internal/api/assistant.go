package api

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

// AssistantQueryRequest is the JSON body of an assistant query.
type AssistantQueryRequest struct {
	Query  string `json:"query"`
	UserID string `json:"user_id"`
}

// AssistantQuery answers a natural-language question about the pond,
// rate limited to protect the language-service quota.
func (c *Controller) AssistantQuery(ctx echo.Context) error {
	if !c.assistantLimiter.Allow() {
		return c.HandleError(ctx, nil, "too many assistant queries, slow down",
			http.StatusTooManyRequests)
	}

	var req AssistantQueryRequest
	if err := ctx.Bind(&req); err != nil {
		return c.HandleError(ctx, err, "invalid request body", http.StatusBadRequest)
	}
	if strings.TrimSpace(req.Query) == "" {
		return c.HandleError(ctx, nil, "query must not be empty", http.StatusBadRequest)
	}

	resp, err := c.assistant.Query(ctx.Request().Context(), req.Query)
	if err != nil {
		return c.HandleError(ctx, err, "assistant query failed", http.StatusInternalServerError)
	}
	return ctx.JSON(http.StatusOK, resp)
}
