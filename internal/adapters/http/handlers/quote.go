package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jsamuelsen/quote-sync/internal/adapters/http/dto"
	"github.com/jsamuelsen/quote-sync/internal/app"
	"github.com/jsamuelsen/quote-sync/internal/domain"
)

// maxImportSize caps an import body.
const maxImportSize = 10 << 20

// QuoteService is the part of app.QuoteService the HTTP API drives.
type QuoteService interface {
	ShowRandom(ctx context.Context, category string) (domain.Quote, error)
	AddQuote(ctx context.Context, text, category string) (domain.Quote, error)
	List(category string) []domain.Quote
	LastViewed(ctx context.Context) (domain.Quote, error)
	Export() ([]byte, error)
	Import(ctx context.Context, data []byte) (int, error)
	Categories() (categories []string, selected string)
	SelectCategory(ctx context.Context, category string) error
	SyncNow(ctx context.Context) (app.SyncResult, error)
	Status() app.SyncStatus
}

var _ QuoteService = (*app.QuoteService)(nil)

// QuoteHandler serves the quote, category and sync endpoints.
type QuoteHandler struct {
	service QuoteService
}

// NewQuoteHandler creates a quote handler.
func NewQuoteHandler(service QuoteService) *QuoteHandler {
	return &QuoteHandler{service: service}
}

// ListQuotes handles GET /api/v1/quotes.
//
// @Summary List quotes
// @Tags quotes
// @Produce json
// @Param category query string false "Category filter; empty or all matches everything"
// @Param limit query int false "Page size (1-100)"
// @Param cursor query string false "Cursor from a previous page"
// @Success 200 {object} dto.PaginatedResponse[dto.Quote]
// @Failure 400 {object} dto.ErrorResponse
// @Router /api/v1/quotes [get]
func (h *QuoteHandler) ListQuotes(c *gin.Context) {
	var req dto.ListQuotesRequest
	if err := dto.BindQueryAndValidate(c, &req); err != nil {
		respondBindError(c, err)
		return
	}

	page, err := dto.Paginate(dto.FromQuotes(h.service.List(req.Category)), req.PaginationRequest)
	if err != nil {
		dto.RespondWithErrorCode(c, dto.ErrorCodeBadRequest, err.Error())
		return
	}

	c.JSON(http.StatusOK, page)
}

// AddQuote handles POST /api/v1/quotes.
//
// @Summary Add a quote
// @Tags quotes
// @Accept json
// @Produce json
// @Param quote body dto.AddQuoteRequest true "Quote"
// @Success 201 {object} dto.Quote
// @Failure 400 {object} dto.ErrorResponse
// @Router /api/v1/quotes [post]
func (h *QuoteHandler) AddQuote(c *gin.Context) {
	var req dto.AddQuoteRequest
	if err := dto.BindAndValidate(c, &req); err != nil {
		respondBindError(c, err)
		return
	}

	quote, err := h.service.AddQuote(c.Request.Context(), req.Text, req.Category)
	if err != nil {
		dto.HandleError(c, err)
		return
	}

	c.JSON(http.StatusCreated, dto.FromQuote(quote))
}

// RandomQuote handles GET /api/v1/quotes/random.
//
// @Summary Show a random quote
// @Tags quotes
// @Produce json
// @Param category query string false "Category; defaults to the selected one"
// @Success 200 {object} dto.Quote
// @Failure 404 {object} dto.ErrorResponse
// @Router /api/v1/quotes/random [get]
func (h *QuoteHandler) RandomQuote(c *gin.Context) {
	var req dto.RandomQuoteRequest
	if err := dto.BindQueryAndValidate(c, &req); err != nil {
		respondBindError(c, err)
		return
	}

	quote, err := h.service.ShowRandom(c.Request.Context(), req.Category)
	if err != nil {
		dto.HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.FromQuote(quote))
}

// LastViewed handles GET /api/v1/quotes/last-viewed.
func (h *QuoteHandler) LastViewed(c *gin.Context) {
	quote, err := h.service.LastViewed(c.Request.Context())
	if err != nil {
		dto.HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.FromQuote(quote))
}

// Export handles GET /api/v1/quotes/export. The body is sent as a
// quotes.json attachment.
func (h *QuoteHandler) Export(c *gin.Context) {
	data, err := h.service.Export()
	if err != nil {
		dto.HandleError(c, err)
		return
	}

	c.Header("Content-Disposition", `attachment; filename="quotes.json"`)
	c.Data(http.StatusOK, "application/json; charset=utf-8", data)
}

// Import handles POST /api/v1/quotes/import. The body is a JSON array of
// {text, category} objects.
//
// @Summary Import quotes
// @Tags quotes
// @Accept json
// @Produce json
// @Success 200 {object} dto.ImportResponse
// @Failure 400 {object} dto.ErrorResponse
// @Failure 422 {object} dto.ErrorResponse
// @Router /api/v1/quotes/import [post]
func (h *QuoteHandler) Import(c *gin.Context) {
	data, err := io.ReadAll(io.LimitReader(c.Request.Body, maxImportSize))
	if err != nil {
		dto.RespondWithErrorCode(c, dto.ErrorCodeBadRequest, "reading request body: "+err.Error())
		return
	}

	n, err := h.service.Import(c.Request.Context(), data)
	if err != nil {
		dto.HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ImportResponse{Imported: n})
}

// Categories handles GET /api/v1/categories.
func (h *QuoteHandler) Categories(c *gin.Context) {
	categories, selected := h.service.Categories()

	c.JSON(http.StatusOK, dto.CategoriesResponse{
		Categories: categories,
		Selected:   selected,
	})
}

// SelectCategory handles PUT /api/v1/categories/selected.
func (h *QuoteHandler) SelectCategory(c *gin.Context) {
	var req dto.SelectCategoryRequest
	if err := dto.BindAndValidate(c, &req); err != nil {
		respondBindError(c, err)
		return
	}

	if err := h.service.SelectCategory(c.Request.Context(), req.Category); err != nil {
		dto.HandleError(c, err)
		return
	}

	categories, selected := h.service.Categories()

	c.JSON(http.StatusOK, dto.CategoriesResponse{
		Categories: categories,
		Selected:   selected,
	})
}

// Sync handles POST /api/v1/sync. A sync already in flight yields 409.
//
// @Summary Reconcile with the remote server
// @Tags sync
// @Produce json
// @Success 200 {object} dto.SyncResponse
// @Failure 409 {object} dto.ErrorResponse
// @Failure 503 {object} dto.ErrorResponse
// @Router /api/v1/sync [post]
func (h *QuoteHandler) Sync(c *gin.Context) {
	result, err := h.service.SyncNow(c.Request.Context())
	if err != nil {
		dto.HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.FromSyncResult(result, h.service.Status().Message))
}

// SyncStatus handles GET /api/v1/sync/status.
func (h *QuoteHandler) SyncStatus(c *gin.Context) {
	c.JSON(http.StatusOK, dto.FromSyncStatus(h.service.Status()))
}

// RegisterQuoteRoutes registers the quote, category and sync routes.
func (h *QuoteHandler) RegisterQuoteRoutes(rg *gin.RouterGroup) {
	quotes := rg.Group("/quotes")
	quotes.GET("", h.ListQuotes)
	quotes.POST("", h.AddQuote)
	quotes.GET("/random", h.RandomQuote)
	quotes.GET("/last-viewed", h.LastViewed)
	quotes.GET("/export", h.Export)
	quotes.POST("/import", h.Import)

	rg.GET("/categories", h.Categories)
	rg.PUT("/categories/selected", h.SelectCategory)

	rg.POST("/sync", h.Sync)
	rg.GET("/sync/status", h.SyncStatus)
}

func respondBindError(c *gin.Context, err error) {
	if errors.Is(err, dto.ErrValidation) {
		dto.RespondWithValidationErrors(c, dto.ValidationErrors(err))
		return
	}

	dto.RespondWithErrorCode(c, dto.ErrorCodeBadRequest, err.Error())
}
