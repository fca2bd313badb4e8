package dmindex

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type fakeRoom struct {
	guess   string
	inviter string
}

func (r fakeRoom) GuessDMUserID() (string, bool) {
	return r.guess, r.guess != ""
}

func (r fakeRoom) DMInviter() (string, bool) {
	return r.inviter, r.inviter != ""
}

func lookupFrom(rooms map[string]fakeRoom) roomLookup {
	return func(roomID string) (Room, bool) {
		room, ok := rooms[roomID]
		if !ok {
			return nil, false
		}
		return room, true
	}
}

func TestRepairSelfAttributed(t *testing.T) {
	const self = "@me:example.com"

	tests := []struct {
		name            string
		content         Content
		rooms           map[string]fakeRoom
		expected        Content
		expectedChanged bool
	}{
		{
			name:            "no self entry",
			content:         Content{"@a:example.com": {"!1:example.com"}},
			expected:        Content{"@a:example.com": {"!1:example.com"}},
			expectedChanged: false,
		},
		{
			name:            "empty self entry",
			content:         Content{self: {}},
			expected:        Content{self: {}},
			expectedChanged: false,
		},
		{
			name:    "guessed and unknown rooms",
			content: Content{self: {"!A:example.com", "!B:example.com"}},
			rooms: map[string]fakeRoom{
				"!A:example.com": {guess: "@x:example.com"},
				"!B:example.com": {},
			},
			expected: Content{
				"@x:example.com": {"!A:example.com"},
				UnknownUserID:    {"!B:example.com"},
			},
			expectedChanged: true,
		},
		{
			name:    "appends to existing partner list",
			content: Content{self: {"!A:example.com"}, "@x:example.com": {"!old:example.com"}},
			rooms: map[string]fakeRoom{
				"!A:example.com": {guess: "@x:example.com"},
			},
			expected:        Content{"@x:example.com": {"!old:example.com", "!A:example.com"}},
			expectedChanged: true,
		},
		{
			name:            "room not found",
			content:         Content{self: {"!gone:example.com"}},
			expected:        Content{UnknownUserID: {"!gone:example.com"}},
			expectedChanged: true,
		},
		{
			name:    "guess pointing back at the viewer",
			content: Content{self: {"!solo:example.com"}},
			rooms: map[string]fakeRoom{
				"!solo:example.com": {guess: self},
			},
			expected:        Content{UnknownUserID: {"!solo:example.com"}},
			expectedChanged: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repaired, changed := repairSelfAttributed(tt.content, self, lookupFrom(tt.rooms))
			assert.Equal(t, tt.expectedChanged, changed)
			assert.Equal(t, tt.expected, repaired)
		})
	}
}

func TestRepairSelfAttributed_LeavesInputUntouched(t *testing.T) {
	const self = "@me:example.com"
	partnerRooms := make([]string, 1, 4)
	partnerRooms[0] = "!old:example.com"
	content := Content{
		self:             {"!A:example.com"},
		"@x:example.com": partnerRooms,
	}

	repaired, changed := repairSelfAttributed(content, self, lookupFrom(map[string]fakeRoom{
		"!A:example.com": {guess: "@x:example.com"},
	}))

	assert.True(t, changed)
	assert.Equal(t, []string{"!old:example.com", "!A:example.com"}, repaired["@x:example.com"])

	assert.Equal(t, []string{"!A:example.com"}, content[self])
	assert.Equal(t, []string{"!old:example.com"}, content["@x:example.com"])
	// Spare capacity in the original slice must not be written through.
	assert.Equal(t, "", partnerRooms[:2][1])
}
