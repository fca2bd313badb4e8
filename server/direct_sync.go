package main

import (
	"context"
	"time"

	"github.com/mattermost/logr/v2"
	"github.com/pkg/errors"

	"github.com/mattermost/mattermost-plugin-matrix-dmindex/server/dmindex"
	"github.com/mattermost/mattermost-plugin-matrix-dmindex/server/matrix"
	"github.com/mattermost/mattermost-plugin-matrix-dmindex/server/store/kvstore"
)

// startupTimeout bounds the whoami and initial account data requests made while starting.
const startupTimeout = 30 * time.Second

// directSync is one running DM index together with the sync loop that feeds it.
type directSync struct {
	userID      string
	index       *dmindex.Index
	source      *matrix.DirectSource
	accountData *matrix.AccountDataStore
	rooms       *matrix.RoomStore

	changeLog *matrix.Subscription
	cancel    context.CancelFunc
	done      chan struct{}
}

// startDirectSync builds and starts the DM index when sync is enabled. Any
// running index must have been stopped first.
func (p *Plugin) startDirectSync() error {
	config := p.getConfiguration()
	if !config.EnableSync {
		p.logger.LogInfo("Matrix sync disabled, DM index not started")
		return nil
	}

	client := p.GetMatrixClient()

	ctx, cancel := context.WithTimeout(context.Background(), startupTimeout)
	defer cancel()

	userID := config.MatrixUserID
	if userID == "" {
		var err error
		userID, err = client.WhoAmI(ctx)
		if err != nil {
			return errors.Wrap(err, "failed to resolve Matrix user")
		}
	}

	accountData := matrix.NewAccountDataStore()
	rooms := matrix.NewRoomStore(userID)
	source := matrix.NewDirectSource(client, userID, accountData, rooms, p.logger)

	if err := source.Load(ctx, dmindex.AccountDataType); err != nil {
		// Sync delivers the current content shortly; start with an empty index meanwhile.
		p.logger.LogWarn("Failed to load DM account data", "user_id", userID, "error", err.Error())
	}

	changeLog := accountData.Subscribe(func(eventType string) {
		p.logAccountDataChange(accountData, eventType)
	})

	index := p.registry.Create(source, p.logger)
	index.Start()

	syncer := matrix.NewSyncer(client, matrix.SyncerConfig{
		UserID:           userID,
		AccountDataTypes: []string{dmindex.AccountDataType},
		Timeout:          config.syncTimeout(),
	}, accountData, rooms, kvstore.NewSyncTokenStore(p.kvstore, userID), p.logger)

	syncCtx, syncCancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := syncer.Run(syncCtx); err != nil {
			p.logger.LogError("Matrix sync stopped", "user_id", userID, "error", err.Error())
		}
	}()

	p.directLock.Lock()
	p.direct = &directSync{
		userID:      userID,
		index:       index,
		source:      source,
		accountData: accountData,
		rooms:       rooms,
		changeLog:   changeLog,
		cancel:      syncCancel,
		done:        done,
	}
	p.directLock.Unlock()

	p.logger.LogInfo("DM index started", "user_id", userID, "dm_users", len(index.Snapshot()))
	return nil
}

// stopDirectSync stops the index and waits for the sync loop to exit.
func (p *Plugin) stopDirectSync() {
	p.directLock.Lock()
	direct := p.direct
	p.direct = nil
	p.directLock.Unlock()

	if direct == nil {
		return
	}

	direct.index.Stop()
	direct.cancel()
	<-direct.done
	direct.changeLog.Close()

	// Only clear the registry if no newer index replaced this one.
	if current, ok := p.registry.Get(); ok && current == direct.index {
		p.registry.Replace(nil)
	}

	p.logger.LogInfo("DM index stopped", "user_id", direct.userID)
}

func (p *Plugin) restartDirectSync() {
	p.lifecycleLock.Lock()
	defer p.lifecycleLock.Unlock()

	p.stopDirectSync()
	if err := p.startDirectSync(); err != nil {
		p.logger.LogError("Failed to restart DM index", "error", err.Error())
	}
}

// currentDirect returns the running direct sync, if any.
func (p *Plugin) currentDirect() *directSync {
	p.directLock.Lock()
	defer p.directLock.Unlock()
	return p.direct
}

// logAccountDataChange writes raw account data changes to the transaction log
func (p *Plugin) logAccountDataChange(accountData *matrix.AccountDataStore, eventType string) {
	content, _ := accountData.Get(eventType)
	p.transactionLogger.Debug("Account data changed",
		logr.String("type", eventType),
		logr.String("content", string(content)),
	)
}
