package controller

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"github.com/DeadBoTt-exe/Document-RAG/models"
	"github.com/DeadBoTt-exe/Document-RAG/services"
)

// RAGController handles the HTTP requests for the question answering API.
// It depends on the RAGService to perform the actual work.
type RAGController struct {
	ragService services.RAGService
}

// NewRAGController creates a new RAGController. It is called from main.go to
// inject the service dependency.
func NewRAGController(service services.RAGService) *RAGController {
	return &RAGController{
		ragService: service,
	}
}

// Ask is the Gin handler for POST /ask.
func (c *RAGController) Ask(ctx *gin.Context) {
	var req models.AskRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "question must not be empty"})
		return
	}
	if req.TopK < 0 {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "top_k must not be negative"})
		return
	}

	// Ask reports every pipeline failure inside the envelope, so a request
	// that got this far always answers 200.
	envelope := c.ragService.Ask(ctx.Request.Context(), req.Question, req.TopK)
	ctx.JSON(http.StatusOK, envelope)
}

// Health is the Gin handler for GET /health.
func (c *RAGController) Health(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, models.HealthResponse{Status: "ok"})
}

// Stats is the Gin handler for GET /api/v1/stats.
func (c *RAGController) Stats(ctx *gin.Context) {
	stats, err := c.ragService.Stats(ctx.Request.Context())
	if err != nil {
		log.WithError(err).Error("CONTROLLER: could not read index stats")
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to read index stats"})
		return
	}
	ctx.JSON(http.StatusOK, stats)
}

// RegisterRoutes mounts the API on router.
func (c *RAGController) RegisterRoutes(router gin.IRouter) {
	router.GET("/health", c.Health)
	router.POST("/ask", c.Ask)

	apiV1 := router.Group("/api/v1")
	{
		apiV1.POST("/ask", c.Ask)
		apiV1.GET("/stats", c.Stats)
	}
}
