package store

import (
	"context"
	"sync"

	"github.com/liteclass/liteclass/internal/models"
)

// NewMemory returns store implementations backed by process memory.
// Used by tests and by single-node development runs without Redis.
func NewMemory() Stores {
	return Stores{
		Rooms:      &memRoomStore{rooms: make(map[string]*models.Room)},
		Polls:      &memPollStore{polls: make(map[string]*models.Poll), voted: make(map[string]map[string]bool)},
		Whiteboard: &memWhiteboardStore{logs: make(map[string][]models.WhiteboardEntry)},
		Materials:  &memMaterialStore{materials: make(map[string]map[string]*models.Material)},
	}
}

type memRoomStore struct {
	mu    sync.Mutex
	rooms map[string]*models.Room
}

func (s *memRoomStore) Create(_ context.Context, room *models.Room) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	clone := *room
	s.rooms[room.Code] = &clone
	return nil
}

func (s *memRoomStore) FindByCode(_ context.Context, code string) (*models.Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	room, ok := s.rooms[code]
	if !ok {
		return nil, ErrRoomNotFound
	}
	clone := *room
	clone.Participants = append([]string(nil), room.Participants...)
	clone.WaitingRoom = append([]string(nil), room.WaitingRoom...)
	clone.WhiteboardAccess = append([]string(nil), room.WhiteboardAccess...)
	return &clone, nil
}

func (s *memRoomStore) Delete(_ context.Context, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.rooms, code)
	return nil
}

func (s *memRoomStore) AddParticipant(_ context.Context, code, id string) error {
	return s.mutate(code, func(r *models.Room) {
		r.Participants = addMember(r.Participants, id)
	})
}

func (s *memRoomStore) RemoveParticipant(_ context.Context, code, id string) error {
	return s.mutate(code, func(r *models.Room) {
		r.Participants = removeMember(r.Participants, id)
	})
}

func (s *memRoomStore) AddWaiting(_ context.Context, code, id string) error {
	return s.mutate(code, func(r *models.Room) {
		r.WaitingRoom = addMember(r.WaitingRoom, id)
	})
}

func (s *memRoomStore) RemoveWaiting(_ context.Context, code, id string) error {
	return s.mutate(code, func(r *models.Room) {
		r.WaitingRoom = removeMember(r.WaitingRoom, id)
	})
}

func (s *memRoomStore) GrantWhiteboard(_ context.Context, code, id string) error {
	return s.mutate(code, func(r *models.Room) {
		r.WhiteboardAccess = addMember(r.WhiteboardAccess, id)
	})
}

func (s *memRoomStore) RevokeWhiteboard(_ context.Context, code, id string) error {
	return s.mutate(code, func(r *models.Room) {
		r.WhiteboardAccess = removeMember(r.WhiteboardAccess, id)
	})
}

func (s *memRoomStore) mutate(code string, f func(*models.Room)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	room, ok := s.rooms[code]
	if !ok {
		return ErrRoomNotFound
	}
	f(room)
	return nil
}

func addMember(set []string, v string) []string {
	for _, s := range set {
		if s == v {
			return set
		}
	}
	return append(set, v)
}

func removeMember(set []string, v string) []string {
	out := set[:0]
	for _, s := range set {
		if s != v {
			out = append(out, s)
		}
	}
	return out
}

type memPollStore struct {
	mu     sync.Mutex
	polls  map[string]*models.Poll
	voted  map[string]map[string]bool
	active map[string]string
}

func (s *memPollStore) Create(_ context.Context, poll *models.Poll) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	clone := *poll
	s.polls[poll.ID] = &clone
	s.voted[poll.ID] = make(map[string]bool)
	if s.active == nil {
		s.active = make(map[string]string)
	}
	s.active[poll.RoomID] = poll.ID
	return nil
}

func (s *memPollStore) Get(_ context.Context, id string) (*models.Poll, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getLocked(id)
}

func (s *memPollStore) getLocked(id string) (*models.Poll, error) {
	poll, ok := s.polls[id]
	if !ok {
		return nil, ErrPollNotFound
	}
	clone := *poll
	clone.Votes = append([]models.Vote(nil), poll.Votes...)
	return &clone, nil
}

func (s *memPollStore) AddVote(_ context.Context, pollID, voterID string, optionIndex int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	poll, ok := s.polls[pollID]
	if !ok {
		return false, ErrPollNotFound
	}
	if s.voted[pollID][voterID] {
		return false, nil
	}
	s.voted[pollID][voterID] = true
	poll.Votes = append(poll.Votes, models.Vote{UserID: voterID, OptionIndex: optionIndex})
	return true, nil
}

func (s *memPollStore) Close(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	poll, ok := s.polls[id]
	if !ok {
		return ErrPollNotFound
	}
	poll.IsActive = false
	if s.active[poll.RoomID] == id {
		delete(s.active, poll.RoomID)
	}
	return nil
}

func (s *memPollStore) ActiveForRoom(_ context.Context, roomID string) (*models.Poll, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.active[roomID]
	if !ok {
		return nil, ErrPollNotFound
	}
	return s.getLocked(id)
}

func (s *memPollStore) DeleteForRoom(_ context.Context, roomID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id, ok := s.active[roomID]; ok {
		delete(s.polls, id)
		delete(s.voted, id)
		delete(s.active, roomID)
	}
	return nil
}

type memWhiteboardStore struct {
	mu   sync.Mutex
	logs map[string][]models.WhiteboardEntry
}

func (s *memWhiteboardStore) Append(_ context.Context, entry *models.WhiteboardEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logs[entry.RoomID] = append(s.logs[entry.RoomID], *entry)
	return nil
}

func (s *memWhiteboardStore) History(_ context.Context, roomID string) ([]models.WhiteboardEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.WhiteboardEntry(nil), s.logs[roomID]...), nil
}

func (s *memWhiteboardStore) Clear(_ context.Context, roomID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.logs, roomID)
	return nil
}

type memMaterialStore struct {
	mu        sync.Mutex
	materials map[string]map[string]*models.Material
}

func (s *memMaterialStore) Put(_ context.Context, material *models.Material) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	room := s.materials[material.RoomID]
	if room == nil {
		room = make(map[string]*models.Material)
		s.materials[material.RoomID] = room
	}
	clone := *material
	room[material.ID] = &clone
	return nil
}

func (s *memMaterialStore) List(_ context.Context, roomID string) ([]models.Material, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Material, 0, len(s.materials[roomID]))
	for _, m := range s.materials[roomID] {
		out = append(out, m.Meta())
	}
	return out, nil
}

func (s *memMaterialStore) Get(_ context.Context, roomID, id string) (*models.Material, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.materials[roomID][id]
	if !ok {
		return nil, ErrMaterialNotFound
	}
	clone := *m
	return &clone, nil
}

func (s *memMaterialStore) Delete(_ context.Context, roomID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.materials[roomID], id)
	return nil
}

func (s *memMaterialStore) DeleteForRoom(_ context.Context, roomID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.materials, roomID)
	return nil
}
