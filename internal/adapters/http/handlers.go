package http

import (
	"errors"
	nethttp "net/http"
	"strconv"

	"github.com/dkeye/Messzola/internal/adapters/auth"
	"github.com/dkeye/Messzola/internal/adapters/store"
	"github.com/dkeye/Messzola/internal/config"
	"github.com/dkeye/Messzola/internal/domain"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

type handlers struct {
	store  Store
	tokens *auth.TokenService
	cfg    *config.Config
}

func (h *handlers) health(c *gin.Context) {
	if err := h.store.Ping(c.Request.Context()); err != nil {
		c.JSON(nethttp.StatusServiceUnavailable, gin.H{"status": "unavailable"})
		return
	}
	c.JSON(nethttp.StatusOK, gin.H{"status": "ok"})
}

type loginRequest struct {
	DisplayName string `json:"displayName" binding:"required"`
}

// devLogin creates a throwaway user; registered only in debug mode.
func (h *handlers) devLogin(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(nethttp.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	u, err := h.store.CreateUser(c.Request.Context(), req.DisplayName)
	if err != nil {
		writeError(c, err)
		return
	}
	token, err := h.tokens.Issue(u)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(nethttp.StatusCreated, gin.H{"token": token, "user": u})
}

func (h *handlers) me(c *gin.Context) {
	c.JSON(nethttp.StatusOK, gin.H{"user": currentUser(c)})
}

func (h *handlers) rtcConfig(c *gin.Context) {
	c.JSON(nethttp.StatusOK, gin.H{"iceServers": h.cfg.WebRTCICEServers()})
}

func (h *handlers) listRooms(c *gin.Context) {
	rooms, err := h.store.RoomsOf(c.Request.Context(), currentUser(c).ID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(nethttp.StatusOK, gin.H{"rooms": rooms})
}

type createGroupRequest struct {
	Name      string          `json:"name" binding:"required"`
	MemberIDs []domain.UserID `json:"memberIds"`
}

func (h *handlers) createGroup(c *gin.Context) {
	var req createGroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(nethttp.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	room, err := h.store.CreateGroup(c.Request.Context(), currentUser(c).ID, req.Name, req.MemberIDs)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(nethttp.StatusCreated, gin.H{"room": room})
}

type directRequest struct {
	PeerID domain.UserID `json:"peerId" binding:"required"`
}

func (h *handlers) directRoom(c *gin.Context) {
	var req directRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(nethttp.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	room, err := h.store.EnsureDirectRoom(c.Request.Context(), currentUser(c).ID, req.PeerID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(nethttp.StatusOK, gin.H{"room": room})
}

type addMembersRequest struct {
	MemberIDs []domain.UserID `json:"memberIds" binding:"required,min=1"`
}

func (h *handlers) addMembers(c *gin.Context) {
	var req addMembersRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(nethttp.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	room, err := h.store.AddMembers(c.Request.Context(), domain.RoomID(c.Param("id")), currentUser(c).ID, req.MemberIDs)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(nethttp.StatusOK, gin.H{"room": room})
}

func (h *handlers) disband(c *gin.Context) {
	if err := h.store.Disband(c.Request.Context(), domain.RoomID(c.Param("id")), currentUser(c).ID); err != nil {
		writeError(c, err)
		return
	}
	c.Status(nethttp.StatusNoContent)
}

func (h *handlers) leave(c *gin.Context) {
	if err := h.store.LeaveRoom(c.Request.Context(), domain.RoomID(c.Param("id")), currentUser(c).ID); err != nil {
		writeError(c, err)
		return
	}
	c.Status(nethttp.StatusNoContent)
}

func (h *handlers) history(c *gin.Context) {
	before, _ := strconv.ParseInt(c.Query("before"), 10, 64)
	limit, _ := strconv.Atoi(c.Query("limit"))
	msgs, err := h.store.History(c.Request.Context(), domain.RoomID(c.Param("id")), currentUser(c).ID, before, limit)
	if err != nil {
		writeError(c, err)
		return
	}
	if msgs == nil {
		msgs = []*domain.Message{}
	}
	c.JSON(nethttp.StatusOK, gin.H{"messages": msgs})
}

func writeError(c *gin.Context, err error) {
	status := nethttp.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrRoomNotFound), errors.Is(err, store.ErrUserNotFound):
		status = nethttp.StatusNotFound
	case errors.Is(err, domain.ErrNotMember), errors.Is(err, domain.ErrNotOwner):
		status = nethttp.StatusForbidden
	case errors.Is(err, domain.ErrNotGroup), errors.Is(err, domain.ErrOwnerLeave):
		status = nethttp.StatusConflict
	case errors.Is(err, domain.ErrDisplayNameEmpty), errors.Is(err, domain.ErrDisplayNameTooLong),
		errors.Is(err, domain.ErrEmptyMessage), errors.Is(err, store.ErrInvalidMetadata),
		errors.Is(err, store.ErrEmptyGroupName), errors.Is(err, store.ErrSelfDirect):
		status = nethttp.StatusBadRequest
	}
	if status == nethttp.StatusInternalServerError {
		log.Error().Err(err).Str("module", "adapters.http").Str("path", c.FullPath()).Msg("request failed")
		c.JSON(status, gin.H{"error": "internal error"})
		return
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
