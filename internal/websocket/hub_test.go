package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scythe504/botornot-backend/internal"
	"github.com/scythe504/botornot-backend/internal/game"
)

type frame = internal.Message[json.RawMessage]

func newTestServer(t *testing.T) (*httptest.Server, *game.Manager) {
	t.Helper()
	settings := game.DefaultSettings()
	settings.ConversationDuration = time.Hour
	settings.VotingDuration = time.Hour
	settings.OpenerChance = 0

	bus := game.NewBus()
	manager := game.NewManager(settings, bus)
	hub := NewHub(manager, zerolog.Nop())

	events, cancel := bus.Subscribe()
	ctx, stop := context.WithCancel(context.Background())
	go func() { _ = hub.Run(ctx, events) }()

	srv := httptest.NewServer(http.HandlerFunc(hub.HandleWebSocket))
	t.Cleanup(func() {
		srv.Close()
		stop()
		cancel()
		manager.Shutdown()
		bus.Close()
	})
	return srv, manager
}

func dial(t *testing.T, srv *httptest.Server, wallet string) (*websocket.Conn, string) {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?wallet=" + wallet
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	welcome := readUntil(t, conn, FrameWelcome)
	var data internal.WelcomeData
	require.NoError(t, json.Unmarshal(welcome.Data, &data))
	require.NotEmpty(t, data.PlayerID)
	return conn, data.PlayerID
}

func send(t *testing.T, conn *websocket.Conn, frameType string, data any) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(internal.Message[any]{Type: frameType, Data: data}))
}

// readUntil skips frames until one of the wanted type arrives.
func readUntil(t *testing.T, conn *websocket.Conn, frameType string) frame {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	for {
		var f frame
		require.NoError(t, conn.ReadJSON(&f), "waiting for %s", frameType)
		if f.Type == frameType {
			return f
		}
	}
}

func joinRoom(t *testing.T, conn *websocket.Conn, staked bool) internal.JoinResultData {
	t.Helper()
	send(t, conn, FrameJoin, internal.JoinData{Kind: internal.KindHuman, Staked: staked})
	var res internal.JoinResultData
	require.NoError(t, json.Unmarshal(readUntil(t, conn, FrameJoinResult).Data, &res))
	return res
}

func TestHub_FullCohortPlaysThroughSockets(t *testing.T) {
	srv, manager := newTestServer(t)

	var conns []*websocket.Conn
	var ids []string
	var roomID string
	for i := 0; i < 3; i++ {
		conn, id := dial(t, srv, "")
		res := joinRoom(t, conn, false)
		require.True(t, res.Success, res.Error)
		assert.Equal(t, id, res.PlayerID)
		if roomID == "" {
			roomID = res.RoomID
		}
		require.Equal(t, roomID, res.RoomID)
		conns = append(conns, conn)
		ids = append(ids, id)
	}

	seats := make(map[string]int)
	for _, conn := range conns {
		var started internal.MatchStartedData
		require.NoError(t, json.Unmarshal(readUntil(t, conn, string(internal.EventMatchStarted)).Data, &started))
		assert.Equal(t, roomID, started.RoomID)
		require.Len(t, started.Roster, 4)
		for _, entry := range started.Roster {
			seats[entry.PlayerID] = entry.SeatIndex
		}
	}

	send(t, conns[0], FrameMessage, internal.ChatData{Text: "so who is the odd one out"})
	for _, conn := range conns {
		var msg internal.MessageAppendedData
		require.NoError(t, json.Unmarshal(readUntil(t, conn, string(internal.EventMessageAppended)).Data, &msg))
		assert.Equal(t, seats[ids[0]], msg.SpeakerSeatIndex)
		assert.Equal(t, "so who is the odd one out", msg.Text)
	}

	send(t, conns[1], FrameVote, internal.VoteData{Target: seats[ids[0]]})
	var voteErr internal.ErrorData
	require.NoError(t, json.Unmarshal(readUntil(t, conns[1], FrameError).Data, &voteErr))
	assert.Equal(t, FrameVote, voteErr.Op)

	require.True(t, manager.BeginVoting(roomID, 1))
	for _, conn := range conns {
		readUntil(t, conn, string(internal.EventVotingStarted))
	}

	// The one roster entry that is not a connected human is the synthetic seat.
	synthSeat := -1
	for playerID, seat := range seats {
		if !slices.Contains(ids, playerID) {
			synthSeat = seat
		}
	}
	require.GreaterOrEqual(t, synthSeat, 0)
	for _, conn := range conns {
		send(t, conn, FrameVote, internal.VoteData{Target: synthSeat})
	}

	for _, conn := range conns {
		var finished internal.MatchFinishedData
		require.NoError(t, json.Unmarshal(readUntil(t, conn, string(internal.EventMatchFinished)).Data, &finished))
		assert.Equal(t, synthSeat, finished.Outcome.SyntheticSeat)
		assert.Equal(t, 3, finished.Outcome.IdentifiedCount())
	}
}

func TestHub_DisconnectIsReportedToRoom(t *testing.T) {
	srv, _ := newTestServer(t)

	alice, aliceID := dial(t, srv, "0xa11ce")
	bob, _ := dial(t, srv, "0xb0b")
	res := joinRoom(t, alice, true)
	require.True(t, res.Success)
	require.Equal(t, res.RoomID, joinRoom(t, bob, true).RoomID)

	require.NoError(t, alice.Close())

	var left internal.PlayerLeftData
	require.NoError(t, json.Unmarshal(readUntil(t, bob, string(internal.EventPlayerLeft)).Data, &left))
	assert.Equal(t, aliceID, left.PlayerID)
	assert.Equal(t, 1, left.PlayerCount)
}

func TestHub_RejectsBadFrames(t *testing.T) {
	srv, _ := newTestServer(t)
	conn, _ := dial(t, srv, "")

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("{not json")))
	var decodeErr internal.ErrorData
	require.NoError(t, json.Unmarshal(readUntil(t, conn, FrameError).Data, &decodeErr))
	assert.Equal(t, "decode", decodeErr.Op)

	send(t, conn, "dance", nil)
	var unknown internal.ErrorData
	require.NoError(t, json.Unmarshal(readUntil(t, conn, FrameError).Data, &unknown))
	assert.Equal(t, "dance", unknown.Op)

	res := joinRoom(t, conn, true)
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "wallet")

	send(t, conn, FrameMessage, internal.ChatData{Text: "hello"})
	var msgErr internal.ErrorData
	require.NoError(t, json.Unmarshal(readUntil(t, conn, FrameError).Data, &msgErr))
	assert.Equal(t, FrameMessage, msgErr.Op)
}
