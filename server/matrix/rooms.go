package matrix

import (
	"sort"
	"sync"

	"github.com/tidwall/gjson"
)

type member struct {
	membership string
	sender     string
	isDirect   bool
}

// Room is the membership view of a single room, as seen by the viewer.
type Room struct {
	mu      sync.RWMutex
	roomID  string
	selfID  string
	members map[string]member
	heroes  []string
}

func newRoom(roomID, selfID string) *Room {
	return &Room{
		roomID:  roomID,
		selfID:  selfID,
		members: make(map[string]member),
	}
}

// ID returns the room ID.
func (r *Room) ID() string {
	return r.roomID
}

// Membership returns the membership of userID, or "" when the room has no state for them.
func (r *Room) Membership(userID string) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.members[userID].membership
}

// DMInviter returns the sender of the viewer's pending invite when that invite
// was flagged as direct.
func (r *Room) DMInviter() (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	self, ok := r.members[r.selfID]
	if !ok || self.membership != MembershipInvite || !self.isDirect {
		return "", false
	}
	if self.sender == "" || self.sender == r.selfID {
		return "", false
	}
	return self.sender, true
}

// GuessDMUserID picks the most likely other participant: the direct inviter,
// then the first hero, then the other joined members, then the other invited
// members. Members are taken in user ID order.
func (r *Room) GuessDMUserID() (string, bool) {
	if inviter, ok := r.DMInviter(); ok {
		return inviter, true
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, hero := range r.heroes {
		if hero != r.selfID {
			return hero, true
		}
	}
	if userID, ok := r.firstOther(MembershipJoin); ok {
		return userID, true
	}
	return r.firstOther(MembershipInvite)
}

func (r *Room) firstOther(membership string) (string, bool) {
	candidates := make([]string, 0)
	for userID, m := range r.members {
		if userID != r.selfID && m.membership == membership {
			candidates = append(candidates, userID)
		}
	}
	if len(candidates) == 0 {
		return "", false
	}
	sort.Strings(candidates)
	return candidates[0], true
}

func (r *Room) applyMember(event Event) {
	if event.Type != EventTypeRoomMember || event.StateKey == nil || *event.StateKey == "" {
		return
	}

	content := gjson.ParseBytes(event.Content)
	membership := content.Get("membership").String()
	if membership == "" {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.members[*event.StateKey] = member{
		membership: membership,
		sender:     event.Sender,
		isDirect:   content.Get("is_direct").Bool(),
	}
}

func (r *Room) setHeroes(heroes []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.heroes = append([]string(nil), heroes...)
}

// RoomStore tracks room membership for the rooms the viewer is in or invited to.
type RoomStore struct {
	mu     sync.RWMutex
	selfID string
	rooms  map[string]*Room
}

// NewRoomStore creates an empty store for the viewer selfID.
func NewRoomStore(selfID string) *RoomStore {
	return &RoomStore{
		selfID: selfID,
		rooms:  make(map[string]*Room),
	}
}

// Get returns the tracked room, if any.
func (s *RoomStore) Get(roomID string) (*Room, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	room, ok := s.rooms[roomID]
	return room, ok
}

// Len returns the number of tracked rooms.
func (s *RoomStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rooms)
}

func (s *RoomStore) getOrCreate(roomID string) *Room {
	s.mu.Lock()
	defer s.mu.Unlock()
	room, ok := s.rooms[roomID]
	if !ok {
		room = newRoom(roomID, s.selfID)
		s.rooms[roomID] = room
	}
	return room
}

// ApplyMemberEvents records membership events for roomID. Events of other
// types are ignored.
func (s *RoomStore) ApplyMemberEvents(roomID string, events []Event) {
	room := s.getOrCreate(roomID)
	for _, event := range events {
		room.applyMember(event)
	}
}

// Forget drops a room the viewer has left.
func (s *RoomStore) Forget(roomID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.rooms, roomID)
}

// ApplySync folds the rooms section of a sync response into the store.
func (s *RoomStore) ApplySync(rooms RoomsSection) {
	for roomID, joined := range rooms.Join {
		room := s.getOrCreate(roomID)
		for _, event := range joined.State.Events {
			room.applyMember(event)
		}
		for _, event := range joined.Timeline.Events {
			room.applyMember(event)
		}
		if len(joined.Summary.Heroes) > 0 {
			room.setHeroes(joined.Summary.Heroes)
		}
	}
	for roomID, invited := range rooms.Invite {
		s.ApplyMemberEvents(roomID, invited.InviteState.Events)
	}
	for roomID := range rooms.Leave {
		s.Forget(roomID)
	}
}
