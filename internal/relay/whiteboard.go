package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/liteclass/liteclass/internal/models"
)

// handleWbJoin replies with the full ordered whiteboard history so the
// participant can rebuild local state before accepting live events.
func (r *Relay) handleWbJoin(ctx context.Context, s *Session, roomID string) {
	entries, err := r.stores.Whiteboard.History(ctx, roomID)
	if err != nil {
		r.log.WithError(err).Warn("failed to load whiteboard history")
		return
	}
	s.enqueue(mustEvent(EvtWbHistory, entries))
}

// handleWbEvent fans a draw or erase event out to the room and persists
// it. Durability is best-effort: a store failure is logged but never
// blocks the live relay.
func (r *Relay) handleWbEvent(ctx context.Context, s *Session, p wbEventPayload) {
	room, err := r.stores.Rooms.FindByCode(ctx, p.RoomID)
	if err != nil {
		return
	}
	if !room.CanWriteWhiteboard(s.Identity.ID) {
		s.enqueue(errorEvent("Whiteboard is read-only"))
		return
	}
	if p.Type != models.WhiteboardDrawStroke && p.Type != models.WhiteboardEraseObject {
		return
	}

	p.UserID = s.Identity.ID
	r.broadcastRoom(p.RoomID, mustEvent(EvtWbEvent, p), s.ID)

	entry := &models.WhiteboardEntry{
		RoomID:    p.RoomID,
		UserID:    s.Identity.ID,
		Type:      p.Type,
		Data:      p.Data,
		Timestamp: now(),
	}
	if err := r.stores.Whiteboard.Append(ctx, entry); err != nil {
		r.log.WithError(err).Warn("failed to persist whiteboard event")
	}
}

// handleWbClear truncates the room log and resets every connected board.
// Host only.
func (r *Relay) handleWbClear(ctx context.Context, s *Session, roomID string) {
	room, err := r.stores.Rooms.FindByCode(ctx, roomID)
	if err != nil || !room.IsHost(s.Identity.ID) {
		s.enqueue(errorEvent("Unauthorized to clear whiteboard"))
		return
	}
	r.clearWhiteboard(ctx, roomID)
}

func (r *Relay) clearWhiteboard(ctx context.Context, roomID string) {
	if err := r.stores.Whiteboard.Clear(ctx, roomID); err != nil {
		r.log.WithError(err).Warn("failed to clear whiteboard log")
	}
	r.broadcastRoom(roomID, mustEvent(EvtWbClear, nil), "")
}

// handleWbSaveClear snapshots the currently visible stroke set into the
// materials store as a durable artifact, then clears the board. Host
// only.
func (r *Relay) handleWbSaveClear(ctx context.Context, s *Session, roomID string) {
	room, err := r.stores.Rooms.FindByCode(ctx, roomID)
	if err != nil || !room.IsHost(s.Identity.ID) {
		s.enqueue(errorEvent("Unauthorized to save whiteboard"))
		return
	}

	entries, err := r.stores.Whiteboard.History(ctx, roomID)
	if err != nil {
		r.log.WithError(err).Warn("failed to load whiteboard history")
		return
	}

	strokes := replayStrokes(entries)
	data, err := json.Marshal(strokes)
	if err != nil {
		r.log.WithError(err).Warn("failed to serialize whiteboard snapshot")
		return
	}

	material := &models.Material{
		ID:          uuid.New().String(),
		RoomID:      roomID,
		Filename:    fmt.Sprintf("whiteboard_%s.json", now().UTC().Format(time.RFC3339)),
		ContentType: "application/json",
		Data:        data,
		Size:        len(data),
		UploadedAt:  now(),
	}
	if err := r.stores.Materials.Put(ctx, material); err != nil {
		r.log.WithError(err).Warn("failed to save whiteboard snapshot")
		return
	}

	r.clearWhiteboard(ctx, roomID)
	r.broadcastRoom(roomID, mustEvent(EvtMaterialsUpdated, nil), "")
}

// replayStrokes reduces the ordered log to the visible stroke set: draws
// accumulate, erases remove the stroke of matching id.
func replayStrokes(entries []models.WhiteboardEntry) []models.Stroke {
	strokes := make([]models.Stroke, 0, len(entries))
	for _, entry := range entries {
		switch entry.Type {
		case models.WhiteboardDrawStroke:
			var stroke models.Stroke
			if err := json.Unmarshal(entry.Data, &stroke); err == nil {
				strokes = append(strokes, stroke)
			}
		case models.WhiteboardEraseObject:
			var erase models.ErasePayload
			if err := json.Unmarshal(entry.Data, &erase); err == nil {
				kept := strokes[:0]
				for _, st := range strokes {
					if st.ID != erase.StrokeID {
						kept = append(kept, st)
					}
				}
				strokes = kept
			}
		}
	}
	return strokes
}
