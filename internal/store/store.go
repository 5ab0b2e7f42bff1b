package store

import (
	"context"
	"errors"

	"github.com/liteclass/liteclass/internal/models"
)

var (
	ErrRoomNotFound     = errors.New("room not found")
	ErrPollNotFound     = errors.New("poll not found")
	ErrMaterialNotFound = errors.New("material not found")
)

// RoomStore is the durable Room Store collaborator. All membership
// mutations are idempotent set operations; concurrent writers converge
// without cross-document transactions.
type RoomStore interface {
	Create(ctx context.Context, room *models.Room) error
	FindByCode(ctx context.Context, code string) (*models.Room, error)
	// Delete removes the room record and its membership sets. Room-scoped
	// artifacts (whiteboard log, materials, polls) are deleted through
	// their own stores.
	Delete(ctx context.Context, code string) error

	AddParticipant(ctx context.Context, code, identityID string) error
	RemoveParticipant(ctx context.Context, code, identityID string) error
	AddWaiting(ctx context.Context, code, identityID string) error
	RemoveWaiting(ctx context.Context, code, identityID string) error
	GrantWhiteboard(ctx context.Context, code, identityID string) error
	RevokeWhiteboard(ctx context.Context, code, identityID string) error
}

// PollStore persists timed polls and their vote sets.
type PollStore interface {
	Create(ctx context.Context, poll *models.Poll) error
	Get(ctx context.Context, id string) (*models.Poll, error)
	// AddVote records one vote per identity. It returns false when the
	// identity already voted; the prior vote is never overwritten.
	AddVote(ctx context.Context, pollID, voterID string, optionIndex int) (bool, error)
	Close(ctx context.Context, id string) error
	// ActiveForRoom returns the room's current active poll, or
	// ErrPollNotFound when none is running.
	ActiveForRoom(ctx context.Context, roomID string) (*models.Poll, error)
	DeleteForRoom(ctx context.Context, roomID string) error
}

// WhiteboardStore persists the append-only per-room whiteboard log.
type WhiteboardStore interface {
	Append(ctx context.Context, entry *models.WhiteboardEntry) error
	// History returns the full log in append order.
	History(ctx context.Context, roomID string) ([]models.WhiteboardEntry, error)
	Clear(ctx context.Context, roomID string) error
}

// MaterialStore persists room-scoped blobs.
type MaterialStore interface {
	Put(ctx context.Context, material *models.Material) error
	List(ctx context.Context, roomID string) ([]models.Material, error)
	Get(ctx context.Context, roomID, id string) (*models.Material, error)
	Delete(ctx context.Context, roomID, id string) error
	DeleteForRoom(ctx context.Context, roomID string) error
}

// Stores bundles the four collaborators the relay and handlers consume.
type Stores struct {
	Rooms      RoomStore
	Polls      PollStore
	Whiteboard WhiteboardStore
	Materials  MaterialStore
}
