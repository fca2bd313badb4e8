package matrix

import (
	"context"
	"encoding/json"
	"reflect"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/mattermost/mattermost-plugin-matrix-dmindex/server/dmindex"
)

const (
	defaultWriteTimeout  = 30 * time.Second
	defaultLookupTimeout = 10 * time.Second
	defaultMissTTL       = 5 * time.Minute
)

// DirectSource exposes one user's account data and rooms to a dmindex.Index.
type DirectSource struct {
	client      *Client
	userID      string
	accountData *AccountDataStore
	rooms       *RoomStore
	logger      Logger

	writeTimeout  time.Duration
	lookupTimeout time.Duration
	missTTL       time.Duration

	// misses records rooms whose member lookup failed, keyed to the time of failure.
	missesLock sync.Mutex
	misses     map[string]time.Time
}

var _ dmindex.Source = (*DirectSource)(nil)

// NewDirectSource creates a source for userID backed by the given stores.
func NewDirectSource(client *Client, userID string, accountData *AccountDataStore, rooms *RoomStore, logger Logger) *DirectSource {
	return &DirectSource{
		client:        client,
		userID:        userID,
		accountData:   accountData,
		rooms:         rooms,
		logger:        logger,
		writeTimeout:  defaultWriteTimeout,
		lookupTimeout: defaultLookupTimeout,
		missTTL:       defaultMissTTL,
		misses:        make(map[string]time.Time),
	}
}

// UserID returns the viewer's user ID.
func (d *DirectSource) UserID() string {
	return d.userID
}

// AccountData returns the cached content of eventType.
func (d *DirectSource) AccountData(eventType string) (json.RawMessage, bool) {
	return d.accountData.Get(eventType)
}

// Load fetches eventType from the homeserver into the cache. An event the
// user has never set is not an error.
func (d *DirectSource) Load(ctx context.Context, eventType string) error {
	content, err := d.client.GetAccountData(ctx, d.userID, eventType)
	if err != nil {
		if IsNotFound(err) {
			d.logger.LogDebug("No account data stored yet", "user_id", d.userID, "type", eventType)
			return nil
		}
		return errors.Wrapf(err, "failed to load account data %s", eventType)
	}
	d.accountData.Set(eventType, content)
	return nil
}

// Refresh re-fetches eventType and notifies subscribers when it differs from the
// cache. m.direct content is compared after decoding, so a homeserver that
// re-serializes the same mapping does not count as a change.
func (d *DirectSource) Refresh(ctx context.Context, eventType string) (bool, error) {
	content, err := d.client.GetAccountData(ctx, d.userID, eventType)
	if err != nil {
		if IsNotFound(err) {
			return false, nil
		}
		return false, errors.Wrapf(err, "failed to refresh account data %s", eventType)
	}

	if eventType == dmindex.AccountDataType {
		if cached, ok := d.accountData.Get(eventType); ok && sameDirectContent(cached, content) {
			return false, nil
		}
	}
	return d.accountData.Set(eventType, content), nil
}

func sameDirectContent(a, b json.RawMessage) bool {
	left, err := dmindex.DecodeContent(a)
	if err != nil {
		return false
	}
	right, err := dmindex.DecodeContent(b)
	if err != nil {
		return false
	}
	return reflect.DeepEqual(left, right)
}

// SetAccountData writes content in the background. Failures are logged only.
func (d *DirectSource) SetAccountData(eventType string, content any) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), d.writeTimeout)
		defer cancel()

		err := d.client.SetAccountData(ctx, d.userID, eventType, content)
		if err != nil {
			d.logger.LogError("Failed to write account data", "user_id", d.userID, "type", eventType, "error", err.Error())
		} else {
			d.logger.LogInfo("Wrote account data", "user_id", d.userID, "type", eventType)
		}
	}()
}

// Room returns the tracked room, loading its members from the homeserver when
// the room has not been seen by sync yet. A failed load is remembered for
// missTTL so repeated questions about the same room do not each wait on the
// homeserver.
func (d *DirectSource) Room(roomID string) (dmindex.Room, bool) {
	if room, ok := d.rooms.Get(roomID); ok {
		return room, true
	}
	if d.recentMiss(roomID) {
		return nil, false
	}

	ctx, cancel := context.WithTimeout(context.Background(), d.lookupTimeout)
	defer cancel()

	members, err := d.client.GetRoomMembers(ctx, roomID, d.userID)
	if err != nil {
		d.logger.LogDebug("Room lookup failed", "room_id", roomID, "error", err.Error())
		d.recordMiss(roomID)
		return nil, false
	}

	d.rooms.ApplyMemberEvents(roomID, members)
	room, ok := d.rooms.Get(roomID)
	if !ok {
		return nil, false
	}
	return room, true
}

func (d *DirectSource) recentMiss(roomID string) bool {
	d.missesLock.Lock()
	defer d.missesLock.Unlock()

	failedAt, ok := d.misses[roomID]
	if !ok {
		return false
	}
	if time.Since(failedAt) >= d.missTTL {
		delete(d.misses, roomID)
		return false
	}
	return true
}

func (d *DirectSource) recordMiss(roomID string) {
	d.missesLock.Lock()
	defer d.missesLock.Unlock()

	d.misses[roomID] = time.Now()
}

// SubscribeAccountData registers handler for account data changes.
func (d *DirectSource) SubscribeAccountData(handler func(eventType string)) dmindex.Subscription {
	return d.accountData.Subscribe(handler)
}
