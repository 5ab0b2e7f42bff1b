package relay

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/liteclass/liteclass/internal/models"
)

func wbEntry(roomID, userID, data string) *models.WhiteboardEntry {
	return &models.WhiteboardEntry{
		RoomID: roomID,
		UserID: userID,
		Type:   models.WhiteboardDrawStroke,
		Data:   json.RawMessage(data),
	}
}

func strokeData(id string) json.RawMessage {
	return json.RawMessage(`{"id":"` + id + `","points":[{"x":0.1,"y":0.2}],"color":"#000","width":2}`)
}

func TestWbEventRejectedWithoutWriteAccess(t *testing.T) {
	r, stores := newTestRelay(Options{})
	host, member := joinedPair(t, r, stores)

	r.handleEvent(member, mustEvent(EvtWbEvent, wbEventPayload{
		RoomID: "ROOM01",
		Type:   models.WhiteboardDrawStroke,
		Data:   strokeData("s1"),
	}))

	requireEvent(t, drainEvents(t, member), EvtError)
	assert.Empty(t, drainEvents(t, host), "rejected writes are not broadcast")

	entries, err := stores.Whiteboard.History(context.Background(), "ROOM01")
	require.NoError(t, err)
	assert.Empty(t, entries, "rejected writes are not persisted")
}

func TestWbEventBroadcastAndAppended(t *testing.T) {
	r, stores := newTestRelay(Options{})
	host, member := joinedPair(t, r, stores)

	r.handleEvent(host, mustEvent(EvtWbEvent, wbEventPayload{
		RoomID: "ROOM01",
		Type:   models.WhiteboardDrawStroke,
		Data:   strokeData("s1"),
	}))

	got := requireEvent(t, drainEvents(t, member), EvtWbEvent)
	var p wbEventPayload
	require.NoError(t, json.Unmarshal(got.Data, &p))
	assert.Equal(t, models.WhiteboardDrawStroke, p.Type)
	assert.Equal(t, "host@example.com", p.UserID, "relay stamps the author, never the client")

	assert.Empty(t, eventsOfType(drainEvents(t, host), EvtWbEvent), "the author applied it locally already")

	entries, err := stores.Whiteboard.History(context.Background(), "ROOM01")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "host@example.com", entries[0].UserID)
}

func TestWbEventUnknownTypeDropped(t *testing.T) {
	r, stores := newTestRelay(Options{})
	host, member := joinedPair(t, r, stores)

	r.handleEvent(host, mustEvent(EvtWbEvent, wbEventPayload{
		RoomID: "ROOM01",
		Type:   "scribble",
		Data:   strokeData("s1"),
	}))

	assert.Empty(t, drainEvents(t, member))
	entries, err := stores.Whiteboard.History(context.Background(), "ROOM01")
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestWbJoinReplaysOrderedHistory(t *testing.T) {
	r, stores := newTestRelay(Options{})
	host, _ := joinedPair(t, r, stores)
	ctx := context.Background()
	require.NoError(t, stores.Whiteboard.Append(ctx, wbEntry("ROOM01", "host@example.com", string(strokeData("s1")))))
	require.NoError(t, stores.Whiteboard.Append(ctx, wbEntry("ROOM01", "host@example.com", string(strokeData("s2")))))

	r.handleEvent(host, mustEvent(EvtWbJoin, roomScopedPayload{RoomID: "ROOM01"}))

	got := requireEvent(t, drainEvents(t, host), EvtWbHistory)
	var entries []models.WhiteboardEntry
	require.NoError(t, json.Unmarshal(got.Data, &entries))
	require.Len(t, entries, 2)

	var first, second models.Stroke
	require.NoError(t, json.Unmarshal(entries[0].Data, &first))
	require.NoError(t, json.Unmarshal(entries[1].Data, &second))
	assert.Equal(t, "s1", first.ID)
	assert.Equal(t, "s2", second.ID)
}

func TestReplayStrokesAppliesErases(t *testing.T) {
	entries := []models.WhiteboardEntry{
		{Type: models.WhiteboardDrawStroke, Data: strokeData("s1")},
		{Type: models.WhiteboardDrawStroke, Data: strokeData("s2")},
		{Type: models.WhiteboardEraseObject, Data: json.RawMessage(`{"strokeId":"s1"}`)},
		{Type: models.WhiteboardDrawStroke, Data: strokeData("s3")},
	}

	strokes := replayStrokes(entries)
	require.Len(t, strokes, 2)
	assert.Equal(t, "s2", strokes[0].ID)
	assert.Equal(t, "s3", strokes[1].ID)
}

func TestWbClearHostOnly(t *testing.T) {
	r, stores := newTestRelay(Options{})
	host, member := joinedPair(t, r, stores)
	require.NoError(t, stores.Whiteboard.Append(context.Background(), wbEntry("ROOM01", "host@example.com", string(strokeData("s1")))))

	r.handleEvent(member, mustEvent(EvtWbClear, roomScopedPayload{RoomID: "ROOM01"}))
	requireEvent(t, drainEvents(t, member), EvtError)

	entries, err := stores.Whiteboard.History(context.Background(), "ROOM01")
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	r.handleEvent(host, mustEvent(EvtWbClear, roomScopedPayload{RoomID: "ROOM01"}))
	requireEvent(t, drainEvents(t, member), EvtWbClear)
	requireEvent(t, drainEvents(t, host), EvtWbClear)

	entries, err = stores.Whiteboard.History(context.Background(), "ROOM01")
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestWbSaveClearSnapshotsVisibleStrokes(t *testing.T) {
	r, stores := newTestRelay(Options{})
	host, member := joinedPair(t, r, stores)
	ctx := context.Background()
	require.NoError(t, stores.Whiteboard.Append(ctx, wbEntry("ROOM01", "host@example.com", string(strokeData("s1")))))
	require.NoError(t, stores.Whiteboard.Append(ctx, wbEntry("ROOM01", "host@example.com", string(strokeData("s2")))))
	require.NoError(t, stores.Whiteboard.Append(ctx, &models.WhiteboardEntry{
		RoomID: "ROOM01",
		UserID: "host@example.com",
		Type:   models.WhiteboardEraseObject,
		Data:   json.RawMessage(`{"strokeId":"s1"}`),
	}))

	r.handleEvent(host, mustEvent(EvtWbSaveClear, roomScopedPayload{RoomID: "ROOM01"}))

	materials, err := stores.Materials.List(ctx, "ROOM01")
	require.NoError(t, err)
	require.Len(t, materials, 1)
	assert.Equal(t, "application/json", materials[0].ContentType)

	full, err := stores.Materials.Get(ctx, "ROOM01", materials[0].ID)
	require.NoError(t, err)
	var strokes []models.Stroke
	require.NoError(t, json.Unmarshal(full.Data, &strokes))
	require.Len(t, strokes, 1, "the snapshot holds the visible set, not the raw log")
	assert.Equal(t, "s2", strokes[0].ID)

	entries, err := stores.Whiteboard.History(ctx, "ROOM01")
	require.NoError(t, err)
	assert.Empty(t, entries)

	memberEvents := drainEvents(t, member)
	requireEvent(t, memberEvents, EvtWbClear)
	requireEvent(t, memberEvents, EvtMaterialsUpdated)
}
