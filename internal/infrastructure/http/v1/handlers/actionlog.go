package handlers

import (
	"github.com/gin-gonic/gin"

	"restopos/internal/domain/audit"
)

// ActionLogHandler handles GET /action-log.
type ActionLogHandler struct {
	*BaseHandler
	reader audit.Reader
}

func NewActionLogHandler(base *BaseHandler, reader audit.Reader) *ActionLogHandler {
	return &ActionLogHandler{BaseHandler: base, reader: reader}
}

// List handles GET /action-log?action=&entityType=&entityId=&from=&to=
func (h *ActionLogHandler) List(c *gin.Context) {
	filter := audit.Filter{
		Action:     audit.Action(c.Query("action")),
		EntityType: c.Query("entityType"),
		EntityID:   c.Query("entityId"),
		Page:       h.Page(c),
	}
	var ok bool
	if filter.From, ok = h.QueryTime(c, "from"); !ok {
		return
	}
	if filter.To, ok = h.QueryTime(c, "to"); !ok {
		return
	}

	result, err := h.reader.List(c.Request.Context(), filter)
	if err != nil {
		h.Error(c, err)
		return
	}
	List(c, result)
}
