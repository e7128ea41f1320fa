package api

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/gregoryshoniwa/voice-agent/app/agent"
	"github.com/gregoryshoniwa/voice-agent/types"
)

// QueryService answers free text with retrieval-augmented generation.
type QueryService interface {
	Query(ctx context.Context, query string, topK int) (*agent.QueryResult, error)
}

type QueryHandler struct {
	agent QueryService
}

func NewQueryHandler(querySvc QueryService) *QueryHandler {
	return &QueryHandler{agent: querySvc}
}

// HandleQuery serves POST /api/rag-query and its unauthenticated legacy
// alias POST /rag-query.
func (h *QueryHandler) HandleQuery(c *fiber.Ctx) error {
	var params types.QueryParams
	if c.BodyParser(&params) != nil {
		return ErrBadRequest()
	}
	if errors := types.Validate(&params); len(errors) > 0 {
		return NewValidationError(errors)
	}

	result, err := h.agent.Query(c.Context(), params.Query, params.TopK)
	if err != nil {
		return err
	}
	return c.JSON(result)
}
