package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"librarydesk/internal/repositories"
	"librarydesk/internal/services"
)

type createCustomerRequest struct {
	Name     string `json:"name" binding:"required"`
	Email    string `json:"email" binding:"omitempty,email"`
	Phone    string `json:"phone"`
	Address  string `json:"address"`
	JoinDate string `json:"join_date"` // YYYY-MM-DD, defaults to today
}

func (h *LibraryHandler) createCustomer(c *gin.Context) {
	var req createCustomerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	in := services.CustomerInput{
		Name:    req.Name,
		Email:   req.Email,
		Phone:   req.Phone,
		Address: req.Address,
	}
	if req.JoinDate != "" {
		d, err := time.Parse(time.DateOnly, req.JoinDate)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "join_date must be YYYY-MM-DD"})
			return
		}
		in.JoinDate = d
	}

	customer, err := h.svc.CreateCustomer(c.Request.Context(), in)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, customer)
}

type updateCustomerRequest struct {
	Name    *string `json:"name"`
	Email   *string `json:"email" binding:"omitempty,email"`
	Phone   *string `json:"phone"`
	Address *string `json:"address"`
}

func (h *LibraryHandler) updateCustomer(c *gin.Context) {
	id, ok := parseID(c, "customer")
	if !ok {
		return
	}
	var req updateCustomerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	customer, err := h.svc.UpdateCustomer(c.Request.Context(), id, services.CustomerPatch{
		Name:    req.Name,
		Email:   req.Email,
		Phone:   req.Phone,
		Address: req.Address,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, customer)
}

func (h *LibraryHandler) getCustomer(c *gin.Context) {
	id, ok := parseID(c, "customer")
	if !ok {
		return
	}
	customer, err := h.svc.GetCustomer(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, customer)
}

func (h *LibraryHandler) deleteCustomer(c *gin.Context) {
	id, ok := parseID(c, "customer")
	if !ok {
		return
	}
	if err := h.svc.DeleteCustomer(c.Request.Context(), id); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *LibraryHandler) listCustomers(c *gin.Context) {
	filter := repositories.CustomerFilter{Search: c.Query("search")}
	if v := c.Query("active_loans"); v != "" {
		active, err := strconv.ParseBool(v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "active_loans must be a boolean"})
			return
		}
		filter.ActiveLoansOnly = active
	}
	customers, err := h.svc.ListCustomers(c.Request.Context(), filter)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, customers)
}

func (h *LibraryHandler) customerHistory(c *gin.Context) {
	id, ok := parseID(c, "customer")
	if !ok {
		return
	}
	txs, err := h.svc.CustomerHistory(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, txs)
}
