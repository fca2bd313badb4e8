package main

import (
	"context"
	"time"

	"github.com/mattermost/mattermost-plugin-matrix-dmindex/server/dmindex"
)

// reconcileTimeout bounds a single reconciliation run.
const reconcileTimeout = time.Minute

// runReconcileJob re-reads m.direct from the homeserver so the index recovers
// from account data changes the sync loop missed.
func (p *Plugin) runReconcileJob() {
	direct := p.currentDirect()
	if direct == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), reconcileTimeout)
	defer cancel()

	changed, err := direct.source.Refresh(ctx, dmindex.AccountDataType)
	if err != nil {
		p.logger.LogWarn("DM reconciliation failed", "user_id", direct.userID, "error", err.Error())
		return
	}

	if changed {
		p.logger.LogInfo("DM reconciliation applied missed changes", "user_id", direct.userID, "dm_rooms", len(direct.index.RoomIDs()))
		return
	}
	p.logger.LogDebug("DM reconciliation found no changes", "user_id", direct.userID)
}
