package http

import (
	"errors"
	"net/http"
	"strings"

	"github.com/dkeye/Lobby/internal/app/orch"
	"github.com/dkeye/Lobby/internal/core"
	"github.com/dkeye/Lobby/internal/domain"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// RoomsHandler is the control-plane API over rooms.
type RoomsHandler struct {
	orch *orch.Orchestrator
}

func NewRoomsHandler(o *orch.Orchestrator) *RoomsHandler { return &RoomsHandler{orch: o} }

func (h *RoomsHandler) Register(r gin.IRoutes) {
	r.GET("/rooms", h.list)
	r.POST("/rooms", h.create)
	r.GET("/rooms/:id", h.info)
	r.GET("/rooms/:id/members", h.members)
	r.DELETE("/rooms/:id", h.delete)
	r.DELETE("/rooms/:id/members/:uid", h.kick)
}

func (h *RoomsHandler) list(c *gin.Context) {
	c.JSON(http.StatusOK, h.orch.Rooms.Infos())
}

func (h *RoomsHandler) create(c *gin.Context) {
	var body CreateRoomBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}
	id := domain.RoomID(strings.TrimSpace(body.ID))
	room, err := h.orch.RegisterRoom(id, body.Name)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}
	log.Info().Str("module", "adapters.http").Str("room_id", string(room.ID)).Msg("room created via api")
	c.JSON(http.StatusCreated, gin.H{"id": room.ID, "name": room.Name})
}

func (h *RoomsHandler) info(c *gin.Context) {
	details, err := h.orch.Details(domain.RoomID(c.Param("id")))
	if err != nil {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, details)
}

func (h *RoomsHandler) members(c *gin.Context) {
	views, err := h.orch.Participants(domain.RoomID(c.Param("id")))
	if err != nil {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, views)
}

func (h *RoomsHandler) delete(c *gin.Context) {
	id := domain.RoomID(c.Param("id"))
	if err := h.orch.Delete(id, orch.ReasonRoomClosed); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, MessageResponse{Message: "room deleted"})
}

func (h *RoomsHandler) kick(c *gin.Context) {
	var q KickQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}
	err := h.orch.Kick(domain.RoomID(c.Param("id")), domain.UserID(c.Param("uid")), q.Reason)
	switch {
	case errors.Is(err, core.ErrNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: err.Error()})
	case err != nil:
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
	default:
		c.JSON(http.StatusOK, MessageResponse{Message: "member kicked"})
	}
}
