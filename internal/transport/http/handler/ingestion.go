package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"medsearch/internal/docstore"
	"medsearch/internal/ingest"
	"medsearch/internal/transport/http/response"
)

// jobEventLimit bounds the history returned alongside a single job.
const jobEventLimit = 100

type IngestionHandler struct {
	manager *ingest.Manager
	docs    docstore.Store
}

type StartIngestionRequest struct {
	FolderPath string `json:"folder_path" binding:"required"`
}

func NewIngestionHandler(manager *ingest.Manager, docs docstore.Store) *IngestionHandler {
	return &IngestionHandler{manager: manager, docs: docs}
}

func (h *IngestionHandler) Start(c *gin.Context) {
	var req StartIngestionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}

	job, err := h.manager.StartIngestion(c.Request.Context(), req.FolderPath)
	if err != nil {
		switch {
		case errors.Is(err, ingest.ErrInvalidFolderPath):
			response.Error(c, http.StatusBadRequest, response.CodeBadRequest, err.Error())
		case errors.Is(err, ingest.ErrIngestionActive):
			response.Error(c, http.StatusConflict, response.CodeConflict, err.Error())
		case errors.Is(err, ingest.ErrJobQueueFull):
			response.Error(c, http.StatusServiceUnavailable, response.CodeUnavailable, err.Error())
		default:
			response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "start ingestion failed")
		}
		return
	}

	response.OK(c, job)
}

func (h *IngestionHandler) List(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}

	jobs, total, err := h.manager.ListJobs(page, pageSize)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "list ingestion jobs failed")
		return
	}

	totalPages := int((total + int64(pageSize) - 1) / int64(pageSize))
	response.OK(c, gin.H{
		"items":       jobs,
		"total":       total,
		"page":        page,
		"page_size":   pageSize,
		"total_pages": totalPages,
	})
}

func (h *IngestionHandler) Get(c *gin.Context) {
	jobUID := c.Param("id")

	job, err := h.manager.GetJob(jobUID)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "fetch ingestion job failed")
		return
	}
	if job == nil {
		response.Error(c, http.StatusNotFound, response.CodeNotFound, "ingestion job not found")
		return
	}

	events, err := h.manager.JobEvents(jobUID, jobEventLimit)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "fetch job events failed")
		return
	}

	response.OK(c, gin.H{
		"job":    job,
		"events": events,
	})
}

func (h *IngestionHandler) Browse(c *gin.Context) {
	folderPath := c.Query("path")

	entries, err := h.docs.List(c.Request.Context(), folderPath)
	if err != nil {
		switch {
		case errors.Is(err, docstore.ErrNotFound):
			response.Error(c, http.StatusNotFound, response.CodeNotFound, err.Error())
		case errors.Is(err, docstore.ErrUnauthorized):
			response.Error(c, http.StatusBadGateway, response.CodeUnavailable, "document store rejected credentials")
		default:
			response.Error(c, http.StatusBadGateway, response.CodeUnavailable, "document store unavailable")
		}
		return
	}

	response.OK(c, gin.H{
		"path":    folderPath,
		"entries": entries,
	})
}
