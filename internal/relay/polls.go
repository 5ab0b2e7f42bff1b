package relay

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/liteclass/liteclass/internal/models"
	"github.com/liteclass/liteclass/internal/store"
)

// handleCreatePoll persists a new active poll, broadcasts its start with
// the full duration and schedules the automatic finish. Host only.
func (r *Relay) handleCreatePoll(ctx context.Context, s *Session, p createPollPayload) {
	room, err := r.stores.Rooms.FindByCode(ctx, p.RoomID)
	if err != nil || !room.IsHost(s.Identity.ID) {
		s.enqueue(errorEvent("Unauthorized to create poll"))
		return
	}
	if p.Question == "" || len(p.Options) < 2 || p.Duration <= 0 {
		s.enqueue(errorEvent("Invalid poll"))
		return
	}

	poll := &models.Poll{
		ID:                 uuid.New().String(),
		RoomID:             p.RoomID,
		Question:           p.Question,
		Options:            p.Options,
		Duration:           p.Duration,
		CorrectOptionIndex: p.CorrectOptionIndex,
		IsActive:           true,
		CreatedAt:          now(),
	}
	if err := r.stores.Polls.Create(ctx, poll); err != nil {
		r.log.WithError(err).Warn("failed to persist poll")
	}

	r.broadcastRoom(p.RoomID, mustEvent(EvtPollStarted, pollStartedBroadcast{
		ID:                 poll.ID,
		Question:           poll.Question,
		Options:            poll.Options,
		Duration:           float64(poll.Duration),
		CorrectOptionIndex: poll.CorrectOptionIndex,
	}), "")

	// The deferred finish covers the common case; expiry is also derived
	// lazily from createdAt+duration on every read, so a relay restart
	// does not leave the poll open forever.
	time.AfterFunc(time.Duration(poll.Duration)*time.Second, func() {
		r.finishPoll(context.Background(), poll.ID, poll.RoomID)
	})

	r.log.WithFields(logrus.Fields{
		"room": p.RoomID,
		"poll": poll.ID,
	}).Info("poll started")
}

// handleSubmitVote accepts a vote only while the poll is active and only
// once per identity. Repeats and out-of-range options are silently
// ignored.
func (r *Relay) handleSubmitVote(ctx context.Context, s *Session, p submitVotePayload) {
	poll, err := r.stores.Polls.Get(ctx, p.PollID)
	if err != nil {
		return
	}
	if !poll.IsActive || poll.Expired(now()) {
		return
	}
	if p.OptionIndex < 0 || p.OptionIndex >= len(poll.Options) {
		return
	}

	added, err := r.stores.Polls.AddVote(ctx, p.PollID, s.Identity.ID, p.OptionIndex)
	if err != nil {
		r.log.WithError(err).Warn("failed to persist vote")
		return
	}
	if !added {
		r.log.WithFields(logrus.Fields{
			"poll":     p.PollID,
			"identity": s.Identity.ID,
		}).Debug("duplicate vote ignored")
	}
}

// handleEndPollManual lets the host finish a poll before its deadline.
func (r *Relay) handleEndPollManual(ctx context.Context, s *Session, p endPollPayload) {
	room, err := r.stores.Rooms.FindByCode(ctx, p.RoomID)
	if err != nil || !room.IsHost(s.Identity.ID) {
		s.enqueue(errorEvent("Unauthorized to end poll"))
		return
	}
	r.finishPoll(ctx, p.PollID, p.RoomID)
}

// handleGetActivePoll serves late joiners: the original question and
// options with the remaining, elapsed-adjusted duration. An overdue poll
// found here is finalized on the spot.
func (r *Relay) handleGetActivePoll(ctx context.Context, s *Session, roomID string) {
	poll, err := r.stores.Polls.ActiveForRoom(ctx, roomID)
	if err != nil {
		if err != store.ErrPollNotFound {
			r.log.WithError(err).Warn("failed to load active poll")
		}
		return
	}

	if poll.Expired(now()) {
		r.finishPoll(ctx, poll.ID, roomID)
		return
	}

	s.enqueue(mustEvent(EvtPollStarted, pollStartedBroadcast{
		ID:                 poll.ID,
		Question:           poll.Question,
		Options:            poll.Options,
		Duration:           poll.Remaining(now()),
		CorrectOptionIndex: poll.CorrectOptionIndex,
	}))
}

// finishPoll marks the poll inactive and broadcasts the terminal result.
// Safe to call from the deferred timer, the manual path and the lazy
// expiry path; only the first call against an active poll broadcasts.
func (r *Relay) finishPoll(ctx context.Context, pollID, roomID string) {
	poll, err := r.stores.Polls.Get(ctx, pollID)
	if err != nil {
		return
	}
	if !poll.IsActive {
		return
	}

	if err := r.stores.Polls.Close(ctx, pollID); err != nil {
		r.log.WithError(err).Warn("failed to close poll")
		return
	}

	results := poll.Tally()
	r.broadcastRoom(roomID, mustEvent(EvtPollEnded, pollEndedBroadcast{
		ID:         poll.ID,
		Results:    results,
		TotalVotes: len(poll.Votes),
	}), "")

	r.log.WithFields(logrus.Fields{
		"room":       roomID,
		"poll":       pollID,
		"totalVotes": len(poll.Votes),
	}).Info("poll ended")
}
