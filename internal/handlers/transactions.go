package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"librarydesk/internal/models"
	"librarydesk/internal/repositories"
	"librarydesk/internal/services"
)

func (h *LibraryHandler) listTransactions(c *gin.Context) {
	action, ok := models.ParseAction(c.Query("action"))
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "action must be one of: All, Borrow, Buy, Read"})
		return
	}
	txs, err := h.svc.ListTransactions(c.Request.Context(), repositories.TransactionFilter{
		Action: action,
		Search: c.Query("search"),
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, txs)
}

func (h *LibraryHandler) transactionStats(c *gin.Context) {
	st, err := h.svc.TransactionStats(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

func (h *LibraryHandler) activeLoans(c *gin.Context) {
	txs, err := h.svc.ActiveLoans(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, txs)
}

func (h *LibraryHandler) overdueLoans(c *gin.Context) {
	txs, err := h.svc.OverdueLoans(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, txs)
}

func (h *LibraryHandler) activeReadings(c *gin.Context) {
	txs, err := h.svc.ActiveReadingSessions(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, txs)
}

func (h *LibraryHandler) purgeTransactions(c *gin.Context) {
	days := parseInt(c.Query("older_than_days"), services.DefaultPurgeAgeDays)
	n, err := h.svc.PurgeTransactions(c.Request.Context(), days)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"purged": n})
}

func (h *LibraryHandler) stats(c *gin.Context) {
	st, err := h.svc.Stats(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

func (h *LibraryHandler) getSettings(c *gin.Context) {
	st, err := h.svc.GetSettings(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

type updateSettingsRequest struct {
	BorrowPrices map[string]float64 `json:"borrow_prices"`
	Currency     *string            `json:"currency"`
	Language     *string            `json:"language"`
}

func (h *LibraryHandler) updateSettings(c *gin.Context) {
	var req updateSettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	st, err := h.svc.UpdateSettings(c.Request.Context(), services.SettingsPatch{
		BorrowPrices: req.BorrowPrices,
		Currency:     req.Currency,
		Language:     req.Language,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}
