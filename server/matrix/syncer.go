package matrix

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/tidwall/sjson"
)

const (
	defaultSyncTimeout    = 30 * time.Second
	defaultRetryDelay     = 5 * time.Second
	defaultRateLimitDelay = 30 * time.Second
)

// TokenStore persists the sync position between plugin restarts.
type TokenStore interface {
	GetSyncToken() (string, error)
	SetSyncToken(token string) error
}

// SyncerConfig configures a Syncer. Zero durations fall back to defaults.
type SyncerConfig struct {
	UserID           string
	AccountDataTypes []string
	Timeout          time.Duration
	RetryDelay       time.Duration
	RateLimitDelay   time.Duration
}

// Syncer long-polls /sync as a single user and feeds the account data and room stores.
type Syncer struct {
	client      *Client
	config      SyncerConfig
	accountData *AccountDataStore
	rooms       *RoomStore
	tokens      TokenStore
	logger      Logger
}

// NewSyncer creates a syncer. tokens may be nil, in which case every run starts with an initial sync.
func NewSyncer(client *Client, config SyncerConfig, accountData *AccountDataStore, rooms *RoomStore, tokens TokenStore, logger Logger) *Syncer {
	if config.Timeout <= 0 {
		config.Timeout = defaultSyncTimeout
	}
	if config.RetryDelay <= 0 {
		config.RetryDelay = defaultRetryDelay
	}
	if config.RateLimitDelay <= 0 {
		config.RateLimitDelay = defaultRateLimitDelay
	}
	return &Syncer{
		client:      client,
		config:      config,
		accountData: accountData,
		rooms:       rooms,
		tokens:      tokens,
		logger:      logger,
	}
}

// BuildFilter returns the inline filter JSON restricting sync to the given
// account data types and room membership.
func BuildFilter(accountDataTypes []string) (string, error) {
	filter := `{}`
	var err error

	set := func(path string, value any) {
		if err != nil {
			return
		}
		filter, err = sjson.Set(filter, path, value)
	}

	set("account_data.types", accountDataTypes)
	set("presence.types", []string{})
	set("room.state.types", []string{EventTypeRoomMember})
	set("room.state.lazy_load_members", false)
	set("room.timeline.types", []string{EventTypeRoomMember})
	set("room.timeline.limit", 50)
	set("room.ephemeral.types", []string{})
	set("room.account_data.types", []string{})

	if err != nil {
		return "", errors.Wrap(err, "failed to build sync filter")
	}
	return filter, nil
}

// Apply folds a sync response into the stores. Rooms are applied before
// account data so account data subscribers see current membership.
func (s *Syncer) Apply(response *SyncResponse) {
	if response == nil {
		return
	}
	s.rooms.ApplySync(response.Rooms)
	changed := s.accountData.ApplySync(response.AccountData)
	if len(changed) > 0 {
		s.logger.LogDebug("Applied account data from sync", "types", changed)
	}
}

// SyncOnce performs a single sync from since and applies it, returning the next batch token.
func (s *Syncer) SyncOnce(ctx context.Context, since string, filter string) (string, error) {
	timeout := s.config.Timeout
	if since == "" {
		// An initial sync returns immediately with full state.
		timeout = 0
	}

	response, err := s.client.Sync(ctx, s.config.UserID, SyncOptions{
		Since:      since,
		Timeout:    int(timeout / time.Millisecond),
		SetTimeout: true,
		Filter:     filter,
	})
	if err != nil {
		return since, err
	}

	s.Apply(response)
	return response.NextBatch, nil
}

// Run syncs until ctx is cancelled. Errors are logged and retried after a delay.
func (s *Syncer) Run(ctx context.Context) error {
	filter, err := BuildFilter(s.config.AccountDataTypes)
	if err != nil {
		return err
	}

	since := s.loadToken()
	s.logger.LogInfo("Starting Matrix sync", "user_id", s.config.UserID, "resuming", since != "")

	for {
		if ctx.Err() != nil {
			return nil
		}

		next, err := s.SyncOnce(ctx, since, filter)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}

			delay := s.config.RetryDelay
			if IsRateLimitError(err) {
				delay = s.config.RateLimitDelay
			}
			s.logger.LogWarn("Matrix sync failed, retrying", "error", err.Error(), "retry_in", delay.String())

			select {
			case <-ctx.Done():
				return nil
			case <-time.After(delay):
			}
			continue
		}

		if next != "" && next != since {
			since = next
			s.saveToken(since)
		}
	}
}

func (s *Syncer) loadToken() string {
	if s.tokens == nil {
		return ""
	}
	token, err := s.tokens.GetSyncToken()
	if err != nil {
		s.logger.LogWarn("Failed to load sync token, starting with an initial sync", "error", err.Error())
		return ""
	}
	return token
}

func (s *Syncer) saveToken(token string) {
	if s.tokens == nil {
		return
	}
	if err := s.tokens.SetSyncToken(token); err != nil {
		s.logger.LogWarn("Failed to save sync token", "error", err.Error())
	}
}
