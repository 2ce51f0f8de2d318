// Package handlers provides HTTP request handlers.
package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"restopos/internal/core/apperror"
	"restopos/internal/core/id"
	"restopos/internal/domain"
	"restopos/internal/infrastructure/http/v1/dto"
	"restopos/internal/infrastructure/http/v1/middleware"
)

// BaseHandler provides common handler utilities.
type BaseHandler struct{}

// NewBaseHandler creates a new base handler.
func NewBaseHandler() *BaseHandler {
	return &BaseHandler{}
}

// BindJSON binds and validates JSON request body.
func (h *BaseHandler) BindJSON(c *gin.Context, obj any) bool {
	if err := c.ShouldBindJSON(obj); err != nil {
		h.Error(c, apperror.NewValidation("invalid request body").WithDetail("error", err.Error()))
		return false
	}
	return true
}

// Error registers err on the Gin context and aborts the request.
// The JSON response is produced by middleware.ErrorHandler.
func (h *BaseHandler) Error(c *gin.Context, err error) {
	_ = c.Error(err)
	c.Abort()
}

// ParseIntQuery parses integer query parameter with default value.
func (h *BaseHandler) ParseIntQuery(c *gin.Context, key string, defaultVal int) int {
	val := c.Query(key)
	if val == "" {
		return defaultVal
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return parsed
}

// PathID parses a uuid path parameter.
func (h *BaseHandler) PathID(c *gin.Context, param string) (id.ID, bool) {
	v, err := id.Parse(c.Param(param))
	if err != nil {
		h.Error(c, apperror.NewInvalidInput(param, "invalid id format"))
		return id.Nil(), false
	}
	return v, true
}

// QueryID parses an optional uuid query parameter.
func (h *BaseHandler) QueryID(c *gin.Context, key string) (*id.ID, bool) {
	v, err := id.ParseOptional(c.Query(key))
	if err != nil {
		h.Error(c, apperror.NewInvalidInput(key, "invalid id format"))
		return nil, false
	}
	return v, true
}

// QueryTime parses an optional RFC 3339 timestamp or YYYY-MM-DD date.
func (h *BaseHandler) QueryTime(c *gin.Context, key string) (*time.Time, bool) {
	raw := c.Query(key)
	if raw == "" {
		return nil, true
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return &t, true
	}
	if t, err := time.Parse(time.DateOnly, raw); err == nil {
		return &t, true
	}
	h.Error(c, apperror.NewInvalidInput(key, "expected RFC 3339 time or YYYY-MM-DD"))
	return nil, false
}

// Page reads limit and offset.
func (h *BaseHandler) Page(c *gin.Context) domain.Page {
	return domain.Page{
		Limit:  h.ParseIntQuery(c, "limit", domain.DefaultPageSize),
		Offset: h.ParseIntQuery(c, "offset", 0),
	}.Normalize()
}

// ListFilter reads the common catalog listing parameters.
func (h *BaseHandler) ListFilter(c *gin.Context) domain.ListFilter {
	filter := domain.DefaultListFilter()
	filter.Search = c.Query("search")
	filter.Limit = h.ParseIntQuery(c, "limit", domain.DefaultPageSize)
	filter.Offset = h.ParseIntQuery(c, "offset", 0)
	filter.OrderBy = c.DefaultQuery("orderBy", "name")
	filter.IncludeArchived = c.Query("includeArchived") == "true"
	return filter.Normalize()
}

// Created sends 201 response with data.
func (h *BaseHandler) Created(c *gin.Context, data any) {
	middleware.CompleteIdempotency(c, http.StatusCreated, "application/json", data)
	c.JSON(http.StatusCreated, data)
}

// OK sends 200 response with data.
func (h *BaseHandler) OK(c *gin.Context, data any) {
	middleware.CompleteIdempotency(c, http.StatusOK, "application/json", data)
	c.JSON(http.StatusOK, data)
}

// Accepted sends 202 response with data.
func (h *BaseHandler) Accepted(c *gin.Context, data any) {
	middleware.CompleteIdempotency(c, http.StatusAccepted, "application/json", data)
	c.JSON(http.StatusAccepted, data)
}

// List sends a paginated result.
func List[T any](c *gin.Context, result domain.ListResult[T]) {
	items := result.Items
	if items == nil {
		items = []T{}
	}
	c.JSON(http.StatusOK, dto.ListResponse{
		Items:      items,
		TotalCount: result.TotalCount,
		Limit:      result.Limit,
		Offset:     result.Offset,
	})
}
