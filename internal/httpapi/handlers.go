package httpapi

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/roach88/neko/internal/domain"
	"github.com/roach88/neko/internal/engine"
	"github.com/roach88/neko/internal/present"
)

type handlers struct {
	svc    Service
	logger *slog.Logger
}

// CreateRequest is the body of POST /giveaways. Winners defaults to 1.
type CreateRequest struct {
	Title   string `json:"title"`
	Length  string `json:"length"`
	Channel string `json:"channel"`
	Winners *int   `json:"winners,omitempty"`
	Image   string `json:"image,omitempty"`
}

// EntryRequest is the body of POST /giveaways/:id/entries.
type EntryRequest struct {
	Participant string `json:"participant"`
}

// EntryResponse reports the result of an entry or withdrawal.
type EntryResponse struct {
	EventID     string `json:"event_id"`
	Participant string `json:"participant"`
	Changed     bool   `json:"changed"`
	Message     string `json:"message"`
}

// ExtendRequest is the body of POST /giveaways/:id/extend.
type ExtendRequest struct {
	Length string `json:"length"`
}

// ListResponse is the body of GET /giveaways.
type ListResponse struct {
	Giveaways []domain.Event `json:"giveaways"`
	Message   string         `json:"message,omitempty"`
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func (h *handlers) create(c *gin.Context) {
	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid JSON payload"})
		return
	}
	winners := 1
	if req.Winners != nil {
		winners = *req.Winners
	}

	ev, err := h.svc.CreateEvent(c.Request.Context(), domain.CreateRequest{
		Title:   req.Title,
		Length:  req.Length,
		Channel: req.Channel,
		Winners: winners,
		Image:   req.Image,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, ev)
}

func (h *handlers) enter(c *gin.Context) {
	var req EntryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid JSON payload"})
		return
	}

	id := c.Param("id")
	created, err := h.svc.RegisterEntry(c.Request.Context(), id, req.Participant)
	if err != nil {
		h.fail(c, err)
		return
	}

	// 201 for a new entry, 200 when already entered.
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	c.JSON(status, EntryResponse{
		EventID:     id,
		Participant: req.Participant,
		Changed:     created,
		Message:     present.EntryText(created),
	})
}

func (h *handlers) withdraw(c *gin.Context) {
	id, participant := c.Param("id"), c.Param("participant")
	removed, err := h.svc.WithdrawEntry(c.Request.Context(), id, participant)
	if err != nil {
		h.fail(c, err)
		return
	}

	msg := present.NotEnteredText
	if removed {
		msg = present.WithdrawnText
	}
	c.JSON(http.StatusOK, EntryResponse{
		EventID:     id,
		Participant: participant,
		Changed:     removed,
		Message:     msg,
	})
}

func (h *handlers) extend(c *gin.Context) {
	var req ExtendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid JSON payload"})
		return
	}

	ev, err := h.svc.Extend(c.Request.Context(), c.Param("id"), req.Length)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, ev)
}

func (h *handlers) cancel(c *gin.Context) {
	if err := h.svc.Cancel(c.Request.Context(), c.Param("id")); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *handlers) list(c *gin.Context) {
	events, err := h.svc.ListAllEvents(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}

	resp := ListResponse{Giveaways: events}
	if len(events) == 0 {
		resp.Giveaways = []domain.Event{}
		resp.Message = present.NoEventsText
	}
	c.JSON(http.StatusOK, resp)
}

func (h *handlers) view(c *gin.Context) {
	view, err := h.svc.ListEvent(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// fail maps engine errors to HTTP statuses.
func (h *handlers) fail(c *gin.Context, err error) {
	status := StatusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed", "path", c.FullPath(), "error", err)
	}

	resp := ErrorResponse{Error: err.Error(), Code: string(engine.CodeOf(err))}
	var ee *engine.Error
	if errors.As(err, &ee) {
		resp.Error = ee.Message
	}
	if engine.IsNotFound(err) {
		resp.Error = present.NotFoundText
	}
	c.JSON(status, resp)
}

// StatusFor returns the HTTP status for an engine error.
func StatusFor(err error) int {
	switch {
	case engine.IsValidation(err):
		return http.StatusBadRequest
	case engine.IsNotFound(err):
		return http.StatusNotFound
	case engine.IsPresentation(err):
		return http.StatusBadGateway
	case errors.Is(err, engine.ErrStopped):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
