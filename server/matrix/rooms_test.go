package matrix

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const selfID = "@bot:example.com"

func memberEvent(sender, target, content string) Event {
	return Event{
		Type:     EventTypeRoomMember,
		Sender:   sender,
		StateKey: &target,
		Content:  json.RawMessage(content),
	}
}

func TestRoomDMInviter(t *testing.T) {
	tests := []struct {
		name     string
		events   []Event
		expected string
		found    bool
	}{
		{
			name:     "DirectInvite",
			events:   []Event{memberEvent("@alice:example.com", selfID, `{"membership":"invite","is_direct":true}`)},
			expected: "@alice:example.com",
			found:    true,
		},
		{
			name:   "InviteNotDirect",
			events: []Event{memberEvent("@alice:example.com", selfID, `{"membership":"invite"}`)},
		},
		{
			name: "AlreadyJoined",
			events: []Event{
				memberEvent("@alice:example.com", selfID, `{"membership":"invite","is_direct":true}`),
				memberEvent(selfID, selfID, `{"membership":"join"}`),
			},
		},
		{
			name:   "NoSelfMembership",
			events: []Event{memberEvent("@alice:example.com", "@alice:example.com", `{"membership":"join"}`)},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := NewRoomStore(selfID)
			store.ApplyMemberEvents("!dm:example.com", tt.events)

			room, ok := store.Get("!dm:example.com")
			require.True(t, ok)

			inviter, found := room.DMInviter()
			assert.Equal(t, tt.found, found)
			assert.Equal(t, tt.expected, inviter)
		})
	}
}

func TestRoomGuessDMUserID(t *testing.T) {
	t.Run("PrefersInviter", func(t *testing.T) {
		store := NewRoomStore(selfID)
		store.ApplySync(RoomsSection{
			Invite: map[string]InvitedRoom{
				"!dm:example.com": {InviteState: EventList{Events: []Event{
					memberEvent("@alice:example.com", "@alice:example.com", `{"membership":"join"}`),
					memberEvent("@alice:example.com", selfID, `{"membership":"invite","is_direct":true}`),
				}}},
			},
		})

		room, ok := store.Get("!dm:example.com")
		require.True(t, ok)
		userID, found := room.GuessDMUserID()
		assert.True(t, found)
		assert.Equal(t, "@alice:example.com", userID)
	})

	t.Run("HeroBeforeMembers", func(t *testing.T) {
		store := NewRoomStore(selfID)
		store.ApplySync(RoomsSection{
			Join: map[string]JoinedRoom{
				"!dm:example.com": {
					Summary: RoomSummary{Heroes: []string{selfID, "@zed:example.com"}},
					State: EventList{Events: []Event{
						memberEvent("@alice:example.com", "@alice:example.com", `{"membership":"join"}`),
						memberEvent(selfID, selfID, `{"membership":"join"}`),
					}},
				},
			},
		})

		room, _ := store.Get("!dm:example.com")
		userID, found := room.GuessDMUserID()
		assert.True(t, found)
		assert.Equal(t, "@zed:example.com", userID)
	})

	t.Run("FirstJoinedMemberByID", func(t *testing.T) {
		store := NewRoomStore(selfID)
		store.ApplyMemberEvents("!dm:example.com", []Event{
			memberEvent("@carol:example.com", "@carol:example.com", `{"membership":"join"}`),
			memberEvent("@bob:example.com", "@bob:example.com", `{"membership":"join"}`),
			memberEvent("@bob:example.com", "@aaron:example.com", `{"membership":"invite"}`),
			memberEvent(selfID, selfID, `{"membership":"join"}`),
		})

		room, _ := store.Get("!dm:example.com")
		userID, found := room.GuessDMUserID()
		assert.True(t, found)
		assert.Equal(t, "@bob:example.com", userID)
	})

	t.Run("InvitedMemberWhenNobodyJoined", func(t *testing.T) {
		store := NewRoomStore(selfID)
		store.ApplyMemberEvents("!dm:example.com", []Event{
			memberEvent(selfID, selfID, `{"membership":"join"}`),
			memberEvent(selfID, "@dave:example.com", `{"membership":"invite"}`),
			memberEvent(selfID, "@erin:example.com", `{"membership":"leave"}`),
		})

		room, _ := store.Get("!dm:example.com")
		userID, found := room.GuessDMUserID()
		assert.True(t, found)
		assert.Equal(t, "@dave:example.com", userID)
	})

	t.Run("Alone", func(t *testing.T) {
		store := NewRoomStore(selfID)
		store.ApplyMemberEvents("!dm:example.com", []Event{
			memberEvent(selfID, selfID, `{"membership":"join"}`),
		})

		room, _ := store.Get("!dm:example.com")
		userID, found := room.GuessDMUserID()
		assert.False(t, found)
		assert.Empty(t, userID)
	})
}

func TestRoomStoreApplySync(t *testing.T) {
	store := NewRoomStore(selfID)

	store.ApplySync(RoomsSection{
		Join: map[string]JoinedRoom{
			"!a:example.com": {Timeline: EventList{Events: []Event{
				memberEvent("@alice:example.com", "@alice:example.com", `{"membership":"join"}`),
				{Type: "m.room.message", Sender: "@alice:example.com", Content: json.RawMessage(`{"body":"hi"}`)},
			}}},
			"!b:example.com": {},
		},
	})
	assert.Equal(t, 2, store.Len())

	room, ok := store.Get("!a:example.com")
	require.True(t, ok)
	assert.Equal(t, MembershipJoin, room.Membership("@alice:example.com"))
	assert.Equal(t, "!a:example.com", room.ID())

	store.ApplySync(RoomsSection{
		Join: map[string]JoinedRoom{
			"!a:example.com": {Timeline: EventList{Events: []Event{
				memberEvent("@alice:example.com", "@alice:example.com", `{"membership":"leave"}`),
			}}},
		},
		Leave: map[string]LeftRoom{"!b:example.com": {}},
	})

	assert.Equal(t, MembershipLeave, room.Membership("@alice:example.com"))
	_, ok = store.Get("!b:example.com")
	assert.False(t, ok)
	assert.Equal(t, 1, store.Len())
}

func TestRoomIgnoresMalformedMemberEvents(t *testing.T) {
	store := NewRoomStore(selfID)
	empty := ""
	store.ApplyMemberEvents("!a:example.com", []Event{
		{Type: EventTypeRoomMember, Sender: "@alice:example.com", Content: json.RawMessage(`{"membership":"join"}`)},
		{Type: EventTypeRoomMember, Sender: "@alice:example.com", StateKey: &empty, Content: json.RawMessage(`{"membership":"join"}`)},
		memberEvent("@alice:example.com", "@alice:example.com", `{"displayname":"Alice"}`),
		memberEvent("@alice:example.com", "@alice:example.com", `not json`),
	})

	room, ok := store.Get("!a:example.com")
	require.True(t, ok)
	assert.Empty(t, room.Membership("@alice:example.com"))
	_, found := room.GuessDMUserID()
	assert.False(t, found)
}
