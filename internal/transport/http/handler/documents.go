package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"medsearch/internal/index"
	"medsearch/internal/transport/http/response"
)

type DocumentHandler struct {
	store *index.Store
}

func NewDocumentHandler(store *index.Store) *DocumentHandler {
	return &DocumentHandler{store: store}
}

func (h *DocumentHandler) List(c *gin.Context) {
	docs, err := h.store.ListDocuments(c.Request.Context())
	if err != nil {
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "list documents failed")
		return
	}

	response.OK(c, gin.H{
		"items": docs,
		"total": len(docs),
	})
}
