package handlers

import (
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"librarydesk/internal/models"
	"librarydesk/internal/repositories"
	"librarydesk/internal/services"
)

type LibraryHandler struct {
	svc services.LibraryService
}

func RegisterRoutes(r *gin.Engine, svc services.LibraryService) {
	h := &LibraryHandler{svc: svc}
	api := r.Group("/api")

	// Catalog
	books := api.Group("/books")
	books.GET("", h.listBooks)
	books.POST("", h.createBook)
	books.GET("/categories", h.listCategories)
	books.GET("/available/:mode", h.listAvailable)
	books.GET("/recent", h.recentBooks)
	books.GET("/:id", h.getBook)
	books.PUT("/:id", h.updateBook)
	books.DELETE("/:id", h.deleteBook)
	books.GET("/:id/transactions", h.bookTransactions)

	// Desk actions
	books.POST("/:id/borrow", h.borrowBook)
	books.POST("/:id/sell", h.sellBook)
	books.POST("/:id/read", h.readBook)

	// Customers
	customers := api.Group("/customers")
	customers.GET("", h.listCustomers)
	customers.POST("", h.createCustomer)
	customers.GET("/:id", h.getCustomer)
	customers.PUT("/:id", h.updateCustomer)
	customers.DELETE("/:id", h.deleteCustomer)
	customers.GET("/:id/history", h.customerHistory)

	// Transaction log
	txs := api.Group("/transactions")
	txs.GET("", h.listTransactions)
	txs.DELETE("", h.purgeTransactions)
	txs.GET("/stats", h.transactionStats)
	txs.GET("/loans/active", h.activeLoans)
	txs.GET("/loans/overdue", h.overdueLoans)
	txs.GET("/readings/active", h.activeReadings)
	txs.POST("/:id/return", h.returnBook)
	txs.POST("/:id/end-reading", h.endReading)

	// Dashboard and settings
	api.GET("/stats", h.stats)
	api.GET("/settings", h.getSettings)
	api.PUT("/settings", h.updateSettings)
}

// writeError maps service errors onto HTTP status codes.
func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrBookNotFound),
		errors.Is(err, services.ErrCustomerNotFound),
		errors.Is(err, services.ErrTransactionNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, services.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, services.ErrWrongMode),
		errors.Is(err, services.ErrNoCopiesLeft),
		errors.Is(err, services.ErrAlreadyClosed),
		errors.Is(err, services.ErrNotABorrow),
		errors.Is(err, services.ErrNotAReading),
		errors.Is(err, services.ErrBookInUse),
		errors.Is(err, services.ErrCustomerHasLoans):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		log.Printf("[ERROR] %s %s: %v", c.Request.Method, c.FullPath(), err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func parseID(c *gin.Context, what string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + what + " id"})
		return uuid.Nil, false
	}
	return id, true
}

func parseInt(s string, def int) int {
	s = strings.TrimSpace(s)
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}

// isAll treats "", "All" and "all" as no filter.
func isAll(s string) bool {
	s = strings.TrimSpace(s)
	return s == "" || strings.EqualFold(s, "all")
}

// ─── Catalog ──────────────────────────────────────────────────────────────────

type createBookRequest struct {
	Title         string  `json:"title" binding:"required"`
	Author        string  `json:"author" binding:"required"`
	Category      string  `json:"category"`
	Description   string  `json:"description"`
	PublishedDate string  `json:"published_date"`
	Status        string  `json:"status" binding:"required"`
	Price         float64 `json:"price" binding:"min=0"`
	Copies        int     `json:"copies" binding:"min=0"`
}

func (h *LibraryHandler) createBook(c *gin.Context) {
	var req createBookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	status := models.ParseStatus(req.Status)
	if status == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "status must be one of: reading, borrow, sale"})
		return
	}

	book, err := h.svc.CreateBook(c.Request.Context(), services.BookInput{
		Title:         req.Title,
		Author:        req.Author,
		Category:      req.Category,
		Description:   req.Description,
		PublishedDate: req.PublishedDate,
		Status:        status,
		Price:         req.Price,
		Copies:        req.Copies,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, book)
}

type updateBookRequest struct {
	Title         *string  `json:"title"`
	Author        *string  `json:"author"`
	Category      *string  `json:"category"`
	Description   *string  `json:"description"`
	PublishedDate *string  `json:"published_date"`
	Status        *string  `json:"status"`
	Price         *float64 `json:"price"`
	Copies        *int     `json:"copies"`
}

func (h *LibraryHandler) updateBook(c *gin.Context) {
	id, ok := parseID(c, "book")
	if !ok {
		return
	}
	var req updateBookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	patch := services.BookPatch{
		Title:         req.Title,
		Author:        req.Author,
		Category:      req.Category,
		Description:   req.Description,
		PublishedDate: req.PublishedDate,
		Price:         req.Price,
		Copies:        req.Copies,
	}
	if req.Status != nil {
		status := models.ParseStatus(*req.Status)
		if status == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid status"})
			return
		}
		patch.Status = &status
	}

	book, err := h.svc.UpdateBook(c.Request.Context(), id, patch)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, book)
}

func (h *LibraryHandler) getBook(c *gin.Context) {
	id, ok := parseID(c, "book")
	if !ok {
		return
	}
	book, err := h.svc.GetBook(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, book)
}

func (h *LibraryHandler) deleteBook(c *gin.Context) {
	id, ok := parseID(c, "book")
	if !ok {
		return
	}
	if err := h.svc.DeleteBook(c.Request.Context(), id); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *LibraryHandler) listBooks(c *gin.Context) {
	filter := repositories.BookFilter{Search: c.Query("search")}
	if cat := c.Query("category"); !isAll(cat) {
		filter.Category = strings.TrimSpace(cat)
	}
	if st := c.Query("status"); !isAll(st) {
		filter.Status = models.ParseStatus(st)
		if filter.Status == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid status filter"})
			return
		}
	}

	books, err := h.svc.ListBooks(c.Request.Context(), filter)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, books)
}

func (h *LibraryHandler) listCategories(c *gin.Context) {
	categories, err := h.svc.ListCategories(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, categories)
}

func (h *LibraryHandler) listAvailable(c *gin.Context) {
	mode := models.ParseStatus(c.Param("mode"))
	if mode == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "mode must be one of: reading, borrow, sale"})
		return
	}
	books, err := h.svc.ListAvailable(c.Request.Context(), mode)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, books)
}

func (h *LibraryHandler) recentBooks(c *gin.Context) {
	limit := parseInt(c.Query("limit"), services.RecentBooksLimit)
	books, err := h.svc.RecentBooks(c.Request.Context(), limit)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, books)
}

func (h *LibraryHandler) bookTransactions(c *gin.Context) {
	id, ok := parseID(c, "book")
	if !ok {
		return
	}
	txs, err := h.svc.TransactionsByBook(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, txs)
}

// ─── Desk actions ─────────────────────────────────────────────────────────────

type issueRequest struct {
	CustomerID   string   `json:"customer_id" binding:"omitempty,uuid"`
	CustomerName string   `json:"customer_name"`
	BorrowPeriod int      `json:"borrow_period"`
	Price        *float64 `json:"price"`
}

// bindIssue reads the customer half of a desk action request.
func bindIssue(c *gin.Context) (uuid.UUID, issueRequest, services.CustomerRef, bool) {
	bookID, ok := parseID(c, "book")
	if !ok {
		return uuid.Nil, issueRequest{}, services.CustomerRef{}, false
	}
	var req issueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return uuid.Nil, issueRequest{}, services.CustomerRef{}, false
	}
	ref := services.CustomerRef{Name: req.CustomerName}
	if req.CustomerID != "" {
		// already validated by the uuid binding
		ref.ID = uuid.MustParse(req.CustomerID)
	}
	return bookID, req, ref, true
}

func (h *LibraryHandler) borrowBook(c *gin.Context) {
	bookID, req, ref, ok := bindIssue(c)
	if !ok {
		return
	}
	t, err := h.svc.BorrowBook(c.Request.Context(), bookID, ref, req.BorrowPeriod)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, t)
}

func (h *LibraryHandler) sellBook(c *gin.Context) {
	bookID, req, ref, ok := bindIssue(c)
	if !ok {
		return
	}
	t, err := h.svc.SellBook(c.Request.Context(), bookID, ref, req.Price)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, t)
}

func (h *LibraryHandler) readBook(c *gin.Context) {
	bookID, _, ref, ok := bindIssue(c)
	if !ok {
		return
	}
	t, err := h.svc.ReadBook(c.Request.Context(), bookID, ref)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, t)
}

func (h *LibraryHandler) returnBook(c *gin.Context) {
	id, ok := parseID(c, "transaction")
	if !ok {
		return
	}
	t, err := h.svc.ReturnBook(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, t)
}

func (h *LibraryHandler) endReading(c *gin.Context) {
	id, ok := parseID(c, "transaction")
	if !ok {
		return
	}
	t, err := h.svc.EndReading(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, t)
}
