package game

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scythe504/botornot-backend/internal"
)

// votingRoom starts a match and moves it straight to round one voting.
func votingRoom(t *testing.T, h *harness, staked bool) (string, []string, int) {
	t.Helper()
	roomID, humans := h.fill(t, staked)
	require.True(t, h.m.BeginVoting(roomID, 1))
	return roomID, humans, h.syntheticSeat(t, roomID)
}

// otherHumanSeat picks a seat held by a human other than voter.
func otherHumanSeat(t *testing.T, h *harness, roomID, voter string) int {
	t.Helper()
	_, _, players, _ := h.room(t, roomID)
	for _, p := range players {
		if !p.IsSynthetic && p.Id != voter {
			return p.SeatIndex
		}
	}
	t.Fatal("no other human seat")
	return internal.NoSeat
}

func TestRecordVote_Rejections(t *testing.T) {
	h := newHarness(t)
	roomID, humans := h.fill(t, false)
	synthSeat := h.syntheticSeat(t, roomID)

	err := h.m.RecordVote(roomID, humans[0], synthSeat)
	require.ErrorIs(t, err, ErrWrongPhase)

	require.True(t, h.m.BeginVoting(roomID, 1))

	_, _, players, _ := h.room(t, roomID)
	var syntheticID string
	for _, p := range players {
		if p.IsSynthetic {
			syntheticID = p.Id
		}
	}

	tests := []struct {
		name  string
		voter string
		seat  int
		want  error
	}{
		{"self vote", humans[0], h.seat(t, roomID, humans[0]), ErrSelfVote},
		{"seat out of range", humans[0], 4, ErrInvalidTarget},
		{"negative seat", humans[0], -1, ErrInvalidTarget},
		{"unknown voter", "stranger", synthSeat, ErrPlayerNotFound},
		{"synthetic voter", syntheticID, h.seat(t, roomID, humans[0]), ErrNotPermitted},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.ErrorIs(t, h.m.RecordVote(roomID, tt.voter, tt.seat), tt.want)
		})
	}

	require.ErrorIs(t, h.m.RecordVote("no-such-room", humans[0], synthSeat), ErrRoomNotFound)

	_, _, _, votes := h.room(t, roomID)
	assert.Empty(t, votes)
}

func TestRecordVote_LaterBallotReplacesEarlier(t *testing.T) {
	h := newHarness(t)
	roomID, humans, synthSeat := votingRoom(t, h, false)

	require.NoError(t, h.m.RecordVote(roomID, humans[0], otherHumanSeat(t, h, roomID, humans[0])))
	require.NoError(t, h.m.RecordVote(roomID, humans[0], synthSeat))

	_, _, players, votes := h.room(t, roomID)
	require.Len(t, votes, 1)
	for _, p := range players {
		if p.IsSynthetic {
			assert.Equal(t, p.Id, votes[humans[0]])
		}
	}

	observed := h.events.waitFor(t, internal.EventVoteObserved, 2)
	last := observed[1].Data.(internal.VoteObservedData)
	assert.Equal(t, synthSeat, last.TargetSeatIndex)
	assert.Equal(t, 1, last.BallotCount)
}

// One human leaves, the other two both find the synthetic participant.
func TestMatch_DepartureThenUnanimousIdentification(t *testing.T) {
	h := newHarness(t)
	roomID, humans := h.fill(t, true)
	synthSeat := h.syntheticSeat(t, roomID)

	require.NoError(t, h.m.Disconnect(internal.Identity{PlayerID: humans[2]}))
	require.True(t, h.m.BeginVoting(roomID, 1))

	require.NoError(t, h.m.RecordVote(roomID, humans[0], synthSeat))
	assert.True(t, h.live(roomID))
	require.NoError(t, h.m.RecordVote(roomID, humans[1], synthSeat))
	assert.False(t, h.live(roomID), "early exit should have finished the match")

	finished := h.events.waitFor(t, internal.EventMatchFinished, 1)
	outcome := finished[0].Data.(internal.MatchFinishedData).Outcome
	assert.False(t, outcome.SyntheticWon)
	assert.Equal(t, 2, outcome.IdentifiedCount())
	assert.Equal(t, synthSeat, outcome.SyntheticSeat)
	assert.Equal(t, synthSeat, outcome.MostVotedSeat)
	assert.Equal(t, 1, outcome.Rounds)

	winners := map[string]bool{}
	for _, po := range outcome.Players {
		winners[po.PlayerID] = po.Winner
	}
	assert.True(t, winners[humans[0]])
	assert.True(t, winners[humans[1]])
	assert.False(t, winners[humans[2]])

	h.m.Wait()
	require.Len(t, h.archive.all(), 1)
	snapshot := h.archive.all()[0]
	assert.Equal(t, roomID, snapshot.RoomID)
	assert.Len(t, snapshot.Roster, 4)
	assert.Len(t, snapshot.Votes, 2)

	settled := h.settler.all()
	require.Len(t, settled, 1)
	assert.Len(t, settled[0].winners, 2)
	for _, w := range settled[0].winners {
		assert.NotEmpty(t, w.Wallet)
	}

	_, ok := h.m.store.RoomOf(humans[0])
	assert.False(t, ok)
}

// Nobody finds the synthetic participant in round one, one human does in round two.
func TestMatch_SecondRoundAfterUnanimousMiss(t *testing.T) {
	h := newHarness(t)
	roomID, humans, synthSeat := votingRoom(t, h, false)

	for _, voter := range humans {
		require.NoError(t, h.m.RecordVote(roomID, voter, otherHumanSeat(t, h, roomID, voter)))
	}

	phase, round, _, votes := h.room(t, roomID)
	assert.Equal(t, internal.PhaseActive, phase)
	assert.Equal(t, 2, round)
	assert.Empty(t, votes)

	rounds := h.events.waitFor(t, internal.EventRoundStarted, 1)
	assert.Equal(t, 2, rounds[0].Data.(internal.RoundStartedData).Round)

	require.False(t, h.m.BeginVoting(roomID, 1), "stale round must not advance")
	require.True(t, h.m.BeginVoting(roomID, 2))

	require.NoError(t, h.m.RecordVote(roomID, humans[0], synthSeat))
	require.NoError(t, h.m.RecordVote(roomID, humans[1], otherHumanSeat(t, h, roomID, humans[1])))
	require.NoError(t, h.m.RecordVote(roomID, humans[2], otherHumanSeat(t, h, roomID, humans[2])))

	assert.False(t, h.live(roomID))
	outcome := h.events.waitFor(t, internal.EventMatchFinished, 1)[0].Data.(internal.MatchFinishedData).Outcome
	assert.Equal(t, 2, outcome.Rounds)
	assert.Equal(t, 1, outcome.IdentifiedCount())
	assert.False(t, outcome.SyntheticWon)

	h.m.Wait()
	assert.Empty(t, h.settler.all(), "free rooms are not settled")
	assert.Len(t, h.archive.all(), 1)
}

func TestMatch_SyntheticWinsAfterFinalRoundMiss(t *testing.T) {
	h := newHarness(t)
	roomID, humans, _ := votingRoom(t, h, false)

	for round := 1; round <= 2; round++ {
		if round == 2 {
			require.True(t, h.m.BeginVoting(roomID, 2))
		}
		for _, voter := range humans {
			require.NoError(t, h.m.RecordVote(roomID, voter, otherHumanSeat(t, h, roomID, voter)))
		}
	}

	assert.False(t, h.live(roomID))
	outcome := h.events.waitFor(t, internal.EventMatchFinished, 1)[0].Data.(internal.MatchFinishedData).Outcome
	assert.True(t, outcome.SyntheticWon)
	assert.Zero(t, outcome.IdentifiedCount())
	for _, po := range outcome.Players {
		assert.Equal(t, po.IsSynthetic, po.Winner)
	}
}

func TestResolveVotes_IsIdempotent(t *testing.T) {
	h := newHarness(t)
	roomID, humans, synthSeat := votingRoom(t, h, false)

	for _, voter := range humans {
		require.NoError(t, h.m.RecordVote(roomID, voter, synthSeat))
	}
	assert.False(t, h.m.ResolveVotes(roomID, 1), "timer losing the race must be a no-op")
	assert.False(t, h.m.BeginVoting(roomID, 1))

	h.m.Wait()
	assert.Len(t, h.events.waitFor(t, internal.EventMatchFinished, 1), 1)
	time.Sleep(20 * time.Millisecond)
	assert.Len(t, h.events.ofType(internal.EventMatchFinished), 1)
	assert.Len(t, h.archive.all(), 1)
}

func TestResolveVotes_TimerWinsWithPartialBallots(t *testing.T) {
	h := newHarness(t)
	roomID, humans, synthSeat := votingRoom(t, h, false)

	require.NoError(t, h.m.RecordVote(roomID, humans[0], synthSeat))
	assert.True(t, h.live(roomID))

	require.True(t, h.m.ResolveVotes(roomID, 1))
	assert.False(t, h.m.ResolveVotes(roomID, 1))

	outcome := h.events.waitFor(t, internal.EventMatchFinished, 1)[0].Data.(internal.MatchFinishedData).Outcome
	assert.Equal(t, 1, outcome.IdentifiedCount())
	require.ErrorIs(t, h.m.RecordVote(roomID, humans[1], synthSeat), ErrRoomNotFound)
}

func TestPhaseTimers_DriveSilentMatchToCompletion(t *testing.T) {
	h := newHarness(t, func(s *Settings) {
		s.ConversationDuration = 30 * time.Millisecond
		s.VotingDuration = 30 * time.Millisecond
	})
	roomID, _ := h.fill(t, false)

	finished := h.events.waitFor(t, internal.EventMatchFinished, 1)
	outcome := finished[0].Data.(internal.MatchFinishedData).Outcome
	assert.Equal(t, roomID, finished[0].RoomID)
	assert.True(t, outcome.SyntheticWon)
	assert.Equal(t, 2, outcome.Rounds)
	assert.Equal(t, internal.NoSeat, outcome.MostVotedSeat)

	assert.Len(t, h.events.ofType(internal.EventVotingStarted), 2)
	assert.Len(t, h.events.ofType(internal.EventRoundStarted), 1)
	assert.False(t, h.live(roomID))
}

func TestTally(t *testing.T) {
	players := []*internal.Player{
		{Id: "a", SeatIndex: 0},
		{Id: "b", SeatIndex: 1},
		{Id: "bot", SeatIndex: 2, IsSynthetic: true},
		{Id: "c", SeatIndex: 3},
	}

	tests := []struct {
		name          string
		votes         map[string]string
		identified    int
		syntheticWon  bool
		mostVotedSeat int
	}{
		{
			name:          "no ballots",
			votes:         map[string]string{},
			syntheticWon:  true,
			mostVotedSeat: internal.NoSeat,
		},
		{
			name:          "all found",
			votes:         map[string]string{"a": "bot", "b": "bot", "c": "bot"},
			identified:    3,
			mostVotedSeat: 2,
		},
		{
			name:          "tie goes to lowest seat",
			votes:         map[string]string{"a": "c", "c": "a", "b": "bot"},
			identified:    1,
			mostVotedSeat: 0,
		},
		{
			name:          "all missed",
			votes:         map[string]string{"a": "b", "b": "a", "c": "b"},
			syntheticWon:  true,
			mostVotedSeat: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			outcome := Tally(players, tt.votes)
			assert.Equal(t, tt.identified, outcome.IdentifiedCount())
			assert.Equal(t, tt.syntheticWon, outcome.SyntheticWon)
			assert.Equal(t, tt.mostVotedSeat, outcome.MostVotedSeat)
			assert.Equal(t, 2, outcome.SyntheticSeat)
			assert.Equal(t, outcome, Tally(players, tt.votes))

			for _, po := range outcome.Players {
				if po.IsSynthetic {
					assert.Equal(t, tt.syntheticWon, po.Winner)
					assert.Equal(t, internal.NoSeat, po.VotedFor)
				} else {
					assert.Equal(t, po.Identified, po.Winner)
				}
			}
		})
	}
}
