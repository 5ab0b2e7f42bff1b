// Package whiteboard maintains a local replica of a room's shared
// whiteboard. The relay's log is append-only; a board folds it into the
// set of currently visible strokes.
package whiteboard

import (
	"encoding/json"
	"math"
	"sync"

	"github.com/liteclass/liteclass/internal/models"
)

// DefaultEraseThreshold is the hit-test radius for EraseAt, in the
// normalized [0,1] coordinate space strokes are stored in.
const DefaultEraseThreshold = 0.02

// Board is the folded view of a whiteboard log. Replaying the same log
// always yields the same board, so late joiners converge with peers
// that applied events live.
type Board struct {
	mu      sync.Mutex
	strokes []models.Stroke
	index   map[string]int // stroke id -> position in strokes
}

func NewBoard() *Board {
	return &Board{index: make(map[string]int)}
}

// Replay folds a full history into the board, replacing any prior
// contents. Entries that fail to decode are skipped.
func (b *Board) Replay(entries []models.WhiteboardEntry) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.strokes = b.strokes[:0]
	b.index = make(map[string]int)
	for _, entry := range entries {
		b.applyLocked(entry)
	}
}

// Apply folds one live event into the board.
func (b *Board) Apply(entry models.WhiteboardEntry) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.applyLocked(entry)
}

func (b *Board) applyLocked(entry models.WhiteboardEntry) {
	switch entry.Type {
	case models.WhiteboardDrawStroke:
		var stroke models.Stroke
		if err := json.Unmarshal(entry.Data, &stroke); err != nil || stroke.ID == "" {
			return
		}
		if pos, ok := b.index[stroke.ID]; ok {
			b.strokes[pos] = stroke
			return
		}
		b.index[stroke.ID] = len(b.strokes)
		b.strokes = append(b.strokes, stroke)

	case models.WhiteboardEraseObject:
		var erase models.ErasePayload
		if err := json.Unmarshal(entry.Data, &erase); err != nil {
			return
		}
		b.removeLocked(erase.StrokeID)
	}
}

// Clear empties the board.
func (b *Board) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.strokes = b.strokes[:0]
	b.index = make(map[string]int)
}

// Strokes returns the visible strokes in draw order.
func (b *Board) Strokes() []models.Stroke {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]models.Stroke, len(b.strokes))
	copy(out, b.strokes)
	return out
}

// Len reports the number of visible strokes.
func (b *Board) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.strokes)
}

// EraseAt hit-tests the position against every visible stroke and
// removes the matches locally, returning their ids so the caller can
// publish one erase event per id. A threshold of 0 uses
// DefaultEraseThreshold.
func (b *Board) EraseAt(pos models.Point, threshold float64) []string {
	if threshold <= 0 {
		threshold = DefaultEraseThreshold
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	var hit []string
	for _, stroke := range b.strokes {
		for _, p := range stroke.Points {
			if math.Hypot(p.X-pos.X, p.Y-pos.Y) <= threshold {
				hit = append(hit, stroke.ID)
				break
			}
		}
	}
	for _, id := range hit {
		b.removeLocked(id)
	}
	return hit
}

func (b *Board) removeLocked(id string) {
	pos, ok := b.index[id]
	if !ok {
		return
	}
	b.strokes = append(b.strokes[:pos], b.strokes[pos+1:]...)
	delete(b.index, id)
	for i := pos; i < len(b.strokes); i++ {
		b.index[b.strokes[i].ID] = i
	}
}
