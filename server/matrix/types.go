package matrix

import "encoding/json"

// Event types and membership values the DM index cares about.
const (
	EventTypeRoomMember = "m.room.member"

	MembershipJoin   = "join"
	MembershipInvite = "invite"
	MembershipLeave  = "leave"
	MembershipBan    = "ban"
)

// Event is a Matrix event as returned by /sync, /members and application service transactions.
// Stripped invite state events carry only type, sender, state_key and content.
type Event struct {
	Type           string          `json:"type"`
	EventID        string          `json:"event_id,omitempty"`
	Sender         string          `json:"sender"`
	RoomID         string          `json:"room_id,omitempty"`
	StateKey       *string         `json:"state_key,omitempty"`
	Content        json.RawMessage `json:"content"`
	OriginServerTS int64           `json:"origin_server_ts,omitempty"`
}

// SyncOptions controls a single /sync request.
type SyncOptions struct {
	Since      string // next_batch token from previous sync; empty for initial sync
	Timeout    int    // long-poll timeout in milliseconds
	SetTimeout bool   // send the timeout parameter even when it is zero
	Filter     string // filter ID or inline JSON filter
}

// SyncResponse is the subset of the /sync response the DM index consumes.
type SyncResponse struct {
	NextBatch   string       `json:"next_batch"`
	AccountData EventList    `json:"account_data"`
	Rooms       RoomsSection `json:"rooms"`
}

// EventList is the {"events": [...]} wrapper used throughout /sync.
type EventList struct {
	Events []Event `json:"events"`
}

// RoomsSection groups per-room sync data by the viewer's membership.
type RoomsSection struct {
	Join   map[string]JoinedRoom  `json:"join,omitempty"`
	Invite map[string]InvitedRoom `json:"invite,omitempty"`
	Leave  map[string]LeftRoom    `json:"leave,omitempty"`
}

// JoinedRoom contains sync data for a room the viewer has joined.
type JoinedRoom struct {
	Summary  RoomSummary `json:"summary"`
	State    EventList   `json:"state"`
	Timeline EventList   `json:"timeline"`
}

// RoomSummary carries the heroes the server picked to name the room.
type RoomSummary struct {
	Heroes []string `json:"m.heroes,omitempty"`
}

// InvitedRoom contains the stripped state of a pending invite.
type InvitedRoom struct {
	InviteState EventList `json:"invite_state"`
}

// LeftRoom contains sync data for a room the viewer has left.
type LeftRoom struct {
	State    EventList `json:"state"`
	Timeline EventList `json:"timeline"`
}

// roomMembersResponse is returned by the /members endpoint.
type roomMembersResponse struct {
	Chunk []Event `json:"chunk"`
}

// whoAmIResponse is returned by /account/whoami.
type whoAmIResponse struct {
	UserID string `json:"user_id"`
}
