package handlers

import (
	"crypto/rand"
	"math/big"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/liteclass/liteclass/internal/middleware"
	"github.com/liteclass/liteclass/internal/models"
	"github.com/liteclass/liteclass/internal/store"
)

const (
	roomCodeLength = 6
	codeChars      = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789" // no ambiguous chars
)

// Rooms serves the thin REST surface around the Room Store: creation,
// existence checks and host-initiated deletion.
type Rooms struct {
	Stores store.Stores
	Log    *logrus.Logger
}

// Create makes a new room owned by the caller's identity.
func (h *Rooms) Create(c *gin.Context) {
	identity := identityFrom(c)
	if identity == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	room := &models.Room{
		Code:      generateRoomCode(),
		HostID:    identity.ID,
		Active:    true,
		CreatedAt: time.Now(),
	}

	if err := h.Stores.Rooms.Create(c.Request.Context(), room); err != nil {
		h.Log.WithError(err).Error("failed to create room")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create room"})
		return
	}

	h.Log.WithFields(logrus.Fields{
		"room": room.Code,
		"host": identity.ID,
	}).Info("room created")

	c.JSON(http.StatusCreated, models.CreateRoomResponse{Code: room.Code})
}

// Get reports whether the room exists and is active. Public: join
// screens probe this before connecting.
func (h *Rooms) Get(c *gin.Context) {
	room, err := h.Stores.Rooms.FindByCode(c.Request.Context(), c.Param("code"))
	if err != nil || !room.Active {
		c.JSON(http.StatusNotFound, gin.H{"error": "Room not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"active": true})
}

// Delete removes a room. Host only.
func (h *Rooms) Delete(c *gin.Context) {
	identity := identityFrom(c)
	if identity == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	code := c.Param("code")
	room, err := h.Stores.Rooms.FindByCode(c.Request.Context(), code)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Room not found"})
		return
	}
	if !room.IsHost(identity.ID) {
		c.JSON(http.StatusForbidden, gin.H{"error": "Only the host can delete the room"})
		return
	}

	ctx := c.Request.Context()
	if err := h.Stores.Rooms.Delete(ctx, code); err != nil {
		h.Log.WithError(err).Error("failed to delete room")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete room"})
		return
	}
	if err := h.Stores.Whiteboard.Clear(ctx, code); err != nil {
		h.Log.WithError(err).Warn("failed to delete whiteboard log")
	}
	if err := h.Stores.Materials.DeleteForRoom(ctx, code); err != nil {
		h.Log.WithError(err).Warn("failed to delete materials")
	}
	if err := h.Stores.Polls.DeleteForRoom(ctx, code); err != nil {
		h.Log.WithError(err).Warn("failed to delete poll")
	}

	h.Log.WithFields(logrus.Fields{
		"room": code,
		"host": identity.ID,
	}).Info("room deleted")

	c.JSON(http.StatusOK, gin.H{"message": "Room deleted"})
}

// generateRoomCode generates a random room code.
func generateRoomCode() string {
	code := make([]byte, roomCodeLength)
	for i := range code {
		n, _ := rand.Int(rand.Reader, big.NewInt(int64(len(codeChars))))
		code[i] = codeChars[n.Int64()]
	}
	return string(code)
}

func identityFrom(c *gin.Context) *models.Identity {
	v, exists := c.Get(middleware.IdentityKey)
	if !exists {
		return nil
	}
	identity, ok := v.(*models.Identity)
	if !ok {
		return nil
	}
	return identity
}
