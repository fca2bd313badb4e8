// Package dmindex maintains a bidirectional index between direct message partners and the
// Matrix rooms used to talk to them, derived from the viewer's m.direct account data.
package dmindex

//go:generate mockgen -destination=../mocks/mock_dmindex.go -package=mocks github.com/mattermost/mattermost-plugin-matrix-dmindex/server/dmindex Source,Room,Subscription

import (
	"bytes"
	"encoding/json"
	"sort"
	"sync"

	"github.com/pkg/errors"
	"github.com/tidwall/gjson"
)

// AccountDataType is the account data event type holding the user -> rooms mapping.
const AccountDataType = "m.direct"

// UnknownUserID is the key under which repaired rooms are filed when the other
// participant cannot be determined.
const UnknownUserID = ""

// Content is the m.direct payload: user ID -> ordered list of room IDs.
type Content map[string][]string

// Room is the view of a room needed to attribute it to a DM partner.
type Room interface {
	// GuessDMUserID returns the most likely other participant of the room.
	GuessDMUserID() (string, bool)
	// DMInviter returns the inviter when the viewer holds a pending direct invite.
	DMInviter() (string, bool)
}

// Subscription is a handle to a registered account data listener.
type Subscription interface {
	Close()
}

// Source is the account and room data the index is derived from.
type Source interface {
	// AccountData returns the current content of an account data event type.
	AccountData(eventType string) (json.RawMessage, bool)
	// SetAccountData writes account data. The write is fire-and-forget.
	SetAccountData(eventType string, content any)
	// UserID returns the viewer's own user ID.
	UserID() string
	// Room looks up a room known to the client.
	Room(roomID string) (Room, bool)
	// SubscribeAccountData registers handler for every account data change.
	SubscribeAccountData(handler func(eventType string)) Subscription
}

// Logger interface for logging operations
type Logger interface {
	LogDebug(message string, keyValuePairs ...any)
	LogInfo(message string, keyValuePairs ...any)
	LogWarn(message string, keyValuePairs ...any)
	LogError(message string, keyValuePairs ...any)
}

// Index maps DM partners to rooms and rooms back to DM partners.
type Index struct {
	mu     sync.Mutex
	source Source
	logger Logger

	// userToRooms is the forward index, adopted wholesale from account data.
	userToRooms Content
	// roomToUser is nil until first built and is always a full inversion of userToRooms.
	roomToUser map[string]string

	subscription Subscription

	// repairSent records that a corrected mapping has already been written back.
	repairSent bool
}

// New creates an index seeded from the source's current m.direct content. The
// index does not listen for changes until Start is called.
func New(source Source, logger Logger) *Index {
	index := &Index{
		source: source,
		logger: logger,
	}
	index.userToRooms = index.readContent()
	return index
}

// Start builds the reverse index and subscribes to account data changes.
func (i *Index) Start() {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.subscription != nil {
		i.logger.LogDebug("DM index already started")
		return
	}

	i.rebuildReverse()
	i.subscription = i.source.SubscribeAccountData(i.onAccountData)
}

// Stop unsubscribes from account data changes. State already applied is kept.
func (i *Index) Stop() {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.subscription == nil {
		return
	}
	i.subscription.Close()
	i.subscription = nil
}

// DMRoomsForUserID returns the DM rooms with userID, or an empty slice.
func (i *Index) DMRoomsForUserID(userID string) []string {
	i.mu.Lock()
	defer i.mu.Unlock()

	rooms := i.userToRooms[userID]
	result := make([]string, len(rooms))
	copy(result, rooms)
	return result
}

// UserIDForRoomID returns the user the room is a DM with. The second result is
// false when the room is not a known DM for anyone. The room fallback runs
// without holding the index lock, so a slow lookup only delays this caller.
func (i *Index) UserIDForRoomID(roomID string) (string, bool) {
	i.mu.Lock()
	if i.roomToUser == nil {
		i.rebuildReverse()
	}
	userID, ok := i.roomToUser[roomID]
	i.mu.Unlock()

	if ok {
		return userID, true
	}

	room, ok := i.source.Room(roomID)
	if !ok || room == nil {
		return "", false
	}
	return room.DMInviter()
}

// RoomIDs returns every room listed as a DM, sorted.
func (i *Index) RoomIDs() []string {
	i.mu.Lock()
	defer i.mu.Unlock()

	seen := make(map[string]struct{})
	roomIDs := make([]string, 0)
	for _, rooms := range i.userToRooms {
		for _, roomID := range rooms {
			if _, ok := seen[roomID]; ok {
				continue
			}
			seen[roomID] = struct{}{}
			roomIDs = append(roomIDs, roomID)
		}
	}
	sort.Strings(roomIDs)
	return roomIDs
}

// Snapshot returns a deep copy of the forward index.
func (i *Index) Snapshot() Content {
	i.mu.Lock()
	defer i.mu.Unlock()

	return i.userToRooms.clone()
}

func (i *Index) onAccountData(eventType string) {
	if eventType != AccountDataType {
		return
	}

	if !i.started() {
		// Stop raced with a notification already in flight.
		return
	}

	// Room lookups during repair may hit the network; they run before the lock is taken.
	raw, ok := i.source.AccountData(AccountDataType)
	content := Content{}
	if ok {
		content = i.decode(raw)
	}
	selfID := i.source.UserID()

	repaired := false
	if len(content[selfID]) > 0 {
		content, repaired = repairSelfAttributed(content, selfID, i.source.Room)
	}

	i.mu.Lock()
	defer i.mu.Unlock()

	if i.subscription == nil {
		return
	}

	if current, _ := i.source.AccountData(AccountDataType); !bytes.Equal(current, raw) {
		// A newer change arrived while repairing; its own notification adopts it.
		return
	}

	if repaired {
		i.logger.LogInfo("Repaired self-attributed DM rooms", "user_id", selfID, "room_count", len(content)-1)
		if !i.repairSent {
			i.repairSent = true
			i.source.SetAccountData(AccountDataType, content)
		}
	}

	i.userToRooms = content
	i.rebuildReverse()
}

func (i *Index) started() bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.subscription != nil
}

// rebuildReverse recomputes roomToUser from scratch. When a room appears under
// more than one user, whichever user map iteration visits last wins.
func (i *Index) rebuildReverse() {
	roomToUser := make(map[string]string)
	for userID, rooms := range i.userToRooms {
		for _, roomID := range rooms {
			roomToUser[roomID] = userID
		}
	}
	i.roomToUser = roomToUser
}

func (i *Index) readContent() Content {
	raw, ok := i.source.AccountData(AccountDataType)
	if !ok {
		return Content{}
	}
	return i.decode(raw)
}

func (i *Index) decode(raw json.RawMessage) Content {
	content, err := DecodeContent(raw)
	if err != nil {
		i.logger.LogWarn("Ignoring malformed DM account data", "error", err.Error())
		return Content{}
	}
	return content
}

// DecodeContent parses raw m.direct content. Entries that are not lists of
// room IDs are skipped rather than failing the whole mapping.
func DecodeContent(raw json.RawMessage) (Content, error) {
	content := Content{}
	if len(raw) == 0 {
		return content, nil
	}
	if !gjson.ValidBytes(raw) {
		return nil, errors.New("invalid JSON in DM account data")
	}

	parsed := gjson.ParseBytes(raw)
	if parsed.Type == gjson.Null {
		return content, nil
	}
	if !parsed.IsObject() {
		return nil, errors.Errorf("DM account data must be an object, got %s", parsed.Type)
	}

	parsed.ForEach(func(key, value gjson.Result) bool {
		if !value.IsArray() {
			return true
		}
		rooms := make([]string, 0)
		for _, item := range value.Array() {
			if item.Type == gjson.String {
				rooms = append(rooms, item.Str)
			}
		}
		content[key.String()] = rooms
		return true
	})
	return content, nil
}

func (c Content) clone() Content {
	clone := make(Content, len(c))
	for userID, rooms := range c {
		copied := make([]string, len(rooms))
		copy(copied, rooms)
		clone[userID] = copied
	}
	return clone
}
