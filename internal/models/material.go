package models

import "time"

// Material is a room-scoped blob (uploaded file or saved whiteboard).
// Materials live and die with their room.
type Material struct {
	ID          string    `json:"id"`
	RoomID      string    `json:"roomId"`
	Filename    string    `json:"filename"`
	ContentType string    `json:"contentType"`
	Data        []byte    `json:"data,omitempty"`
	Size        int       `json:"size"`
	UploadedAt  time.Time `json:"uploadedAt"`
}

// Meta strips the payload for listings.
func (m *Material) Meta() Material {
	meta := *m
	meta.Data = nil
	return meta
}
