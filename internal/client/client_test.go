package client

import (
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/liteclass/liteclass/internal/auth"
	"github.com/liteclass/liteclass/internal/models"
	"github.com/liteclass/liteclass/internal/relay"
	"github.com/liteclass/liteclass/internal/store"
)

const testSecret = "client-test-secret"

func newRelayServer(t *testing.T) *httptest.Server {
	t.Helper()
	gin.SetMode(gin.TestMode)
	log := logrus.New()
	log.SetOutput(io.Discard)

	stores := store.NewMemory()
	require.NoError(t, stores.Rooms.Create(context.Background(), &models.Room{
		Code:         "ROOM01",
		HostID:       "host@example.com",
		Active:       true,
		CreatedAt:    time.Now(),
		Participants: []string{"host@example.com"},
	}))

	router := gin.New()
	rly := relay.New(stores, relay.Options{}, log)
	router.GET("/ws", rly.HandleWS(testSecret))
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv
}

func dialAs(t *testing.T, srv *httptest.Server, identity models.Identity) *Client {
	t.Helper()
	token, err := auth.IssueToken(testSecret, identity)
	require.NoError(t, err)

	log := logrus.New()
	log.SetOutput(io.Discard)

	c, err := Dial(context.Background(), srv.URL, token, log)
	require.NoError(t, err)
	t.Cleanup(c.Close)
	return c
}

func nextEvent(t *testing.T, c *Client) relay.Event {
	t.Helper()
	select {
	case evt, ok := <-c.Events():
		require.True(t, ok, "connection closed early")
		return evt
	case <-time.After(2 * time.Second):
		t.Fatal("no event received")
		return relay.Event{}
	}
}

func waitFor(t *testing.T, c *Client, eventType string) relay.Event {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case evt, ok := <-c.Events():
			require.True(t, ok, "connection closed while waiting for %q", eventType)
			if evt.Type == eventType {
				return evt
			}
		case <-deadline:
			t.Fatalf("never received %q", eventType)
		}
	}
}

func TestDialRejectsBadToken(t *testing.T) {
	srv := newRelayServer(t)
	log := logrus.New()
	log.SetOutput(io.Discard)

	_, err := Dial(context.Background(), srv.URL, "garbage", log)
	assert.Error(t, err)
}

func TestDialRejectsUnsupportedScheme(t *testing.T) {
	log := logrus.New()
	log.SetOutput(io.Discard)

	_, err := Dial(context.Background(), "ftp://example.com", "token", log)
	assert.Error(t, err)
}

func TestJoinRoomAsHost(t *testing.T) {
	srv := newRelayServer(t)
	c := dialAs(t, srv, models.Identity{ID: "host@example.com", Name: "Host"})

	c.JoinRoom("ROOM01")

	evt := waitFor(t, c, relay.EvtWbPermissions)
	var perms struct {
		CanWrite bool `json:"canWrite"`
	}
	require.NoError(t, json.Unmarshal(evt.Data, &perms))
	assert.True(t, perms.CanWrite)
}

func TestGuestSeesWaitingRoom(t *testing.T) {
	srv := newRelayServer(t)
	c := dialAs(t, srv, models.Identity{ID: "guest@example.com", Name: "Guest"})

	c.JoinRoom("ROOM01")

	evt := nextEvent(t, c)
	assert.Equal(t, relay.EvtWaitingForApproval, evt.Type)
}

func TestSignalRoundTripBetweenClients(t *testing.T) {
	srv := newRelayServer(t)
	host := dialAs(t, srv, models.Identity{ID: "host@example.com", Name: "Host"})
	host.JoinRoom("ROOM01")
	waitFor(t, host, relay.EvtParticipants)

	peer := dialAs(t, srv, models.Identity{ID: "host2@example.com", Name: "CoHost"})
	// Second identity joins the waiting room; the host learns about it.
	peer.JoinRoom("ROOM01")
	waitFor(t, peer, relay.EvtWaitingForApproval)
	waitFor(t, host, relay.EvtWaitingList)

	host.HostAction("approve-user", "ROOM01", "", "host2@example.com")
	waitFor(t, peer, relay.EvtAccessGranted)
	peer.JoinRoom("ROOM01")

	connected := waitFor(t, host, relay.EvtUserConnected)
	var uc struct {
		UserID string `json:"userId"`
	}
	require.NoError(t, json.Unmarshal(connected.Data, &uc))

	// The host offers to the new peer through the relay.
	host.SendSignal(uc.UserID, json.RawMessage(`{"type":"offer","sdp":"v=0"}`))

	got := waitFor(t, peer, relay.EvtSignal)
	var sp struct {
		CallerID string          `json:"callerID"`
		Signal   json.RawMessage `json:"signal"`
	}
	require.NoError(t, json.Unmarshal(got.Data, &sp))
	assert.NotEmpty(t, sp.CallerID)
	assert.JSONEq(t, `{"type":"offer","sdp":"v=0"}`, string(sp.Signal))
}

func TestCloseUnblocksStalledReader(t *testing.T) {
	srv := newRelayServer(t)
	c := dialAs(t, srv, models.Identity{ID: "host@example.com", Name: "Host"})
	c.JoinRoom("ROOM01")

	// Nobody drains Events here; reactions echo back to the sender, so
	// this floods the inbound buffer past capacity.
	for i := 0; i < 2*sendDepth; i++ {
		c.SendReaction("ROOM01", "wave")
	}
	time.Sleep(500 * time.Millisecond)

	c.Close()

	select {
	case <-c.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("reader still blocked after Close")
	}
}

func TestEventsChannelClosesWhenServerEndsSession(t *testing.T) {
	srv := newRelayServer(t)
	c := dialAs(t, srv, models.Identity{ID: "host@example.com", Name: "Host"})
	c.JoinRoom("ROOM01")
	waitFor(t, c, relay.EvtParticipants)

	// Ending the meeting makes the relay close the socket from its side.
	c.EndMeeting("ROOM01")
	waitFor(t, c, relay.EvtMeetingEnded)

	select {
	case <-c.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("Done not signaled after connection loss")
	}
}
