package admin

import (
	"context"
	"errors"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/liliang-cn/oraculo/internal/domain"
	"github.com/liliang-cn/oraculo/internal/service"
)

// Documents reads the catalog
type Documents interface {
	List(ctx context.Context) ([]*domain.Document, error)
	FindByName(ctx context.Context, pattern string) ([]*domain.Document, error)
	Get(ctx context.Context, id int64) (*domain.Document, error)
}

// Ingestor catalogs and indexes files
type Ingestor interface {
	UploadDocument(ctx context.Context, file *multipart.FileHeader) (*service.UploadResult, error)
	CatalogFolder(ctx context.Context, dir string) (service.CatalogSummary, error)
	Update(ctx context.Context) (service.UpdateSummary, error)
}

// Indexer indexes pending documents
type Indexer interface {
	IndexPending(ctx context.Context) (service.IndexSummary, error)
}

// Searcher runs retrieval without generation
type Searcher interface {
	Keywords(question string) []string
	Retrieve(ctx context.Context, question string, topN int) ([]domain.RetrievedChunk, error)
}

// Sessions manages conversation state
type Sessions interface {
	Reset(userID string) bool
	Session(userID string) (*domain.ConversationSession, bool)
}

// StatsSource reports system statistics
type StatsSource interface {
	Stats(ctx context.Context) (*domain.Stats, error)
}

// Deps are the services behind the admin API
type Deps struct {
	Documents     Documents
	Ingest        Ingestor
	Indexer       Indexer
	Searcher      Searcher
	Sessions      Sessions
	Stats         StatsSource
	DocumentsPath string
}

// Handler handles admin API requests
type Handler struct {
	deps Deps
}

// NewHandler creates a new admin handler
func NewHandler(deps Deps) *Handler {
	return &Handler{deps: deps}
}

// RegisterRoutes registers admin routes
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	documents := r.Group("/documents")
	{
		documents.GET("", h.ListDocuments)
		documents.POST("", h.UploadDocument)
		documents.GET("/:id", h.GetDocument)
	}

	sessions := r.Group("/sessions")
	{
		sessions.GET("/:user_id", h.GetSession)
		sessions.DELETE("/:user_id", h.ResetSession)
	}

	r.POST("/catalog", h.Catalog)
	r.POST("/index", h.Index)
	r.POST("/update", h.Update)
	r.POST("/search", h.Search)
	r.GET("/stats", h.GetStats)
}

// Document handlers

func (h *Handler) ListDocuments(c *gin.Context) {
	var (
		docs []*domain.Document
		err  error
	)
	if name := c.Query("name"); name != "" {
		docs, err = h.deps.Documents.FindByName(c.Request.Context(), name)
	} else {
		docs, err = h.deps.Documents.List(c.Request.Context())
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	// full text is only returned by the single-document endpoint
	for _, d := range docs {
		d.FullText = nil
	}
	if docs == nil {
		docs = []*domain.Document{}
	}
	c.JSON(http.StatusOK, domain.DocumentListResponse{Documents: docs, Total: len(docs)})
}

func (h *Handler) GetDocument(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid document id"})
		return
	}

	document, err := h.deps.Documents.Get(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "document not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, document)
}

func (h *Handler) UploadDocument(c *gin.Context) {
	file, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file is required"})
		return
	}

	result, err := h.deps.Ingest.UploadDocument(c.Request.Context(), file)
	if err != nil {
		if errors.Is(err, service.ErrUnsupportedFile) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	status := http.StatusCreated
	if result.Outcome == service.OutcomeDuplicate {
		status = http.StatusOK
	}
	c.JSON(status, result)
}

// Pipeline handlers

func (h *Handler) Catalog(c *gin.Context) {
	summary, err := h.deps.Ingest.CatalogFolder(c.Request.Context(), h.deps.DocumentsPath)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, summary)
}

func (h *Handler) Index(c *gin.Context) {
	summary, err := h.deps.Indexer.IndexPending(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, summary)
}

func (h *Handler) Update(c *gin.Context) {
	summary, err := h.deps.Ingest.Update(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, summary)
}

func (h *Handler) Search(c *gin.Context) {
	var req domain.SearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	results, err := h.deps.Searcher.Retrieve(c.Request.Context(), req.Query, req.TopN)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if results == nil {
		results = []domain.RetrievedChunk{}
	}

	c.JSON(http.StatusOK, domain.SearchResponse{
		Keywords: h.deps.Searcher.Keywords(req.Query),
		Results:  results,
	})
}

// Session handlers

func (h *Handler) GetSession(c *gin.Context) {
	session, ok := h.deps.Sessions.Session(c.Param("user_id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return
	}
	c.JSON(http.StatusOK, session)
}

func (h *Handler) ResetSession(c *gin.Context) {
	if !h.deps.Sessions.Reset(c.Param("user_id")) {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "session reset"})
}

// Stats handler

func (h *Handler) GetStats(c *gin.Context) {
	stats, err := h.deps.Stats.Stats(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, stats)
}
