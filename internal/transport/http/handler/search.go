package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"medsearch/internal/search"
	"medsearch/internal/transport/http/response"
)

type SearchHandler struct {
	engine      *search.Engine
	defaultTopK int
}

type SearchRequest struct {
	Query string `json:"query" binding:"required"`
	TopK  int    `json:"top_k"`
}

func NewSearchHandler(engine *search.Engine, defaultTopK int) *SearchHandler {
	if defaultTopK <= 0 {
		defaultTopK = 10
	}
	return &SearchHandler{engine: engine, defaultTopK: defaultTopK}
}

func (h *SearchHandler) Search(c *gin.Context) {
	var req SearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}

	topK := req.TopK
	if topK == 0 {
		topK = h.defaultTopK
	}

	result, err := h.engine.Search(c.Request.Context(), req.Query, topK)
	if err != nil {
		switch {
		case errors.Is(err, search.ErrEmptyQuery), errors.Is(err, search.ErrInvalidTopK):
			response.Error(c, http.StatusBadRequest, response.CodeBadRequest, err.Error())
		default:
			response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "search failed")
		}
		return
	}

	response.OK(c, result)
}
