package handlers

import (
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/liteclass/liteclass/internal/models"
	"github.com/liteclass/liteclass/internal/store"
)

// maxMaterialSize caps a single upload at 10 MB.
const maxMaterialSize = 10 << 20

// Materials serves room-scoped file uploads. A material is owned by its
// room and disappears with it.
type Materials struct {
	Stores store.Stores
	Log    *logrus.Logger
}

// Upload stores a multipart file under the room. Participants and host
// may upload.
func (h *Materials) Upload(c *gin.Context) {
	identity := identityFrom(c)
	if identity == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	code := c.Param("code")
	room, err := h.Stores.Rooms.FindByCode(c.Request.Context(), code)
	if err != nil || !room.Active {
		c.JSON(http.StatusNotFound, gin.H{"error": "Room not found"})
		return
	}
	if !room.IsHost(identity.ID) && !room.IsParticipant(identity.ID) {
		c.JSON(http.StatusForbidden, gin.H{"error": "Not a member of this room"})
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file is required"})
		return
	}
	if fileHeader.Size > maxMaterialSize {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "File too large"})
		return
	}

	f, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read file"})
		return
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read file"})
		return
	}

	contentType := fileHeader.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	material := &models.Material{
		ID:          uuid.New().String(),
		RoomID:      code,
		Filename:    fileHeader.Filename,
		ContentType: contentType,
		Data:        data,
		Size:        len(data),
		UploadedAt:  time.Now(),
	}
	if err := h.Stores.Materials.Put(c.Request.Context(), material); err != nil {
		h.Log.WithError(err).Error("failed to store material")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to store material"})
		return
	}

	c.JSON(http.StatusCreated, material.Meta())
}

// List returns material metadata for the room.
func (h *Materials) List(c *gin.Context) {
	materials, err := h.Stores.Materials.List(c.Request.Context(), c.Param("code"))
	if err != nil {
		h.Log.WithError(err).Error("failed to list materials")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list materials"})
		return
	}
	c.JSON(http.StatusOK, materials)
}

// Download streams one material back.
func (h *Materials) Download(c *gin.Context) {
	material, err := h.Stores.Materials.Get(c.Request.Context(), c.Param("code"), c.Param("id"))
	if err != nil {
		if err == store.ErrMaterialNotFound {
			c.JSON(http.StatusNotFound, gin.H{"error": "Material not found"})
			return
		}
		h.Log.WithError(err).Error("failed to load material")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load material"})
		return
	}

	c.Header("Content-Disposition", `attachment; filename="`+material.Filename+`"`)
	c.Data(http.StatusOK, material.ContentType, material.Data)
}

// Delete removes one material. Host only.
func (h *Materials) Delete(c *gin.Context) {
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
		c.JSON(http.StatusForbidden, gin.H{"error": "Only the host can delete materials"})
		return
	}

	if err := h.Stores.Materials.Delete(c.Request.Context(), code, c.Param("id")); err != nil {
		h.Log.WithError(err).Error("failed to delete material")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete material"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Material deleted"})
}
