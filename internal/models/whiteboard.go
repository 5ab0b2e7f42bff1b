package models

import (
	"encoding/json"
	"time"
)

// Whiteboard log entry types.
const (
	WhiteboardDrawStroke  = "draw_stroke"
	WhiteboardEraseObject = "erase_object"
)

// WhiteboardEntry is one record of the append-only per-room whiteboard
// log. The visible board is the ordered replay of the log, with each
// erase removing the stroke of matching id.
type WhiteboardEntry struct {
	RoomID    string          `json:"roomId"`
	UserID    string          `json:"userId"`
	Type      string          `json:"type"`
	Data      json.RawMessage `json:"data"`
	Timestamp time.Time       `json:"timestamp"`
}

// Point is a stroke coordinate normalized to the [0,1] canvas square, so
// strokes replay identically on any canvas size.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Stroke is one complete pen stroke, captured and broadcast as a unit on
// pointer release.
type Stroke struct {
	ID     string  `json:"id"`
	Points []Point `json:"points"`
	Color  string  `json:"color"`
	Width  float64 `json:"width"`
	UserID string  `json:"userId,omitempty"`
}

// ErasePayload references the stroke removed by an erase_object entry.
type ErasePayload struct {
	StrokeID string `json:"strokeId"`
}
