package main

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/mattermost/logr/v2"
	"github.com/tidwall/gjson"

	"github.com/mattermost/mattermost-plugin-matrix-dmindex/server/matrix"
	"github.com/mattermost/mattermost-plugin-matrix-dmindex/server/store/kvstore"
)

// transactionRetention is how long processed transaction IDs are remembered.
const transactionRetention = time.Hour

// defaultMaxTransactionSize limits webhook bodies when the server has no MaxFileSize configured.
const defaultMaxTransactionSize = int64(10 << 20)

// MatrixTransaction represents a transaction from the Matrix homeserver
type MatrixTransaction struct {
	Events []matrix.Event `json:"events"`
}

// handleMatrixTransaction processes a Matrix Application Service transaction
func (p *Plugin) handleMatrixTransaction(w http.ResponseWriter, r *http.Request) {
	txnID := mux.Vars(r)["txnId"]
	if txnID == "" {
		p.logger.LogWarn("Matrix webhook received request without transaction ID")
		http.Error(w, "Missing transaction ID", http.StatusBadRequest)
		return
	}

	// Authentication is handled by MatrixAuthorizationRequired middleware

	maxRequestBodySize := defaultMaxTransactionSize
	if config := p.API.GetConfig(); config != nil && config.FileSettings.MaxFileSize != nil {
		maxRequestBodySize = *config.FileSettings.MaxFileSize
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)

	body, err := io.ReadAll(r.Body)
	if err != nil {
		p.logger.LogError("Failed to read Matrix webhook body", "error", err.Error(), "txn_id", txnID)
		http.Error(w, "Failed to read request body", http.StatusBadRequest)
		return
	}

	// Log the raw transaction body for debugging (only if MM_MATRIX_LOG_FILESPEC is set)
	p.transactionLogger.Debug("Received Matrix transaction", logr.String("txn_id", txnID), logr.String("body", string(body)))

	var transaction MatrixTransaction
	if err := json.Unmarshal(body, &transaction); err != nil {
		p.logger.LogError("Failed to parse Matrix transaction JSON", "error", err.Error(), "txn_id", txnID)
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}

	// Check for duplicate transaction (idempotency). The key is shared across cluster nodes.
	firstDelivery, err := p.kvstore.SetIfAbsent(kvstore.BuildTransactionKey(txnID), []byte(strconv.FormatInt(time.Now().UnixMilli(), 10)), transactionRetention)
	if err != nil {
		p.logger.LogWarn("Failed to record Matrix transaction, processing anyway", "error", err.Error(), "txn_id", txnID)
	} else if !firstDelivery {
		p.logger.LogDebug("Duplicate Matrix transaction ignored", "txn_id", txnID)
		p.writeEmptyResponse(w)
		return
	}

	p.logger.LogDebug("Processing Matrix transaction", "txn_id", txnID, "event_count", len(transaction.Events))

	direct := p.currentDirect()
	if direct == nil {
		p.logger.LogDebug("DM index not running, transaction events dropped", "txn_id", txnID)
		p.writeEmptyResponse(w)
		return
	}

	applied := 0
	for _, event := range transaction.Events {
		if p.processMatrixEvent(direct, event) {
			applied++
		}
	}

	p.logger.LogDebug("Processed Matrix transaction", "txn_id", txnID, "event_count", len(transaction.Events), "member_events", applied)
	p.writeEmptyResponse(w)
}

// processMatrixEvent folds membership events into the room store and reports whether it used the event
func (p *Plugin) processMatrixEvent(direct *directSync, event matrix.Event) bool {
	if event.Type != matrix.EventTypeRoomMember || event.RoomID == "" || event.StateKey == nil {
		return false
	}

	// The viewer leaving a room makes its membership irrelevant.
	if *event.StateKey == direct.userID {
		membership := gjson.GetBytes(event.Content, "membership").String()
		if membership == matrix.MembershipLeave || membership == matrix.MembershipBan {
			direct.rooms.Forget(event.RoomID)
			return true
		}
	}

	// The appservice sees every room in its namespace. Only rooms the viewer
	// already tracks, or membership of the viewer itself, are kept.
	if _, tracked := direct.rooms.Get(event.RoomID); !tracked && *event.StateKey != direct.userID {
		return false
	}

	direct.rooms.ApplyMemberEvents(event.RoomID, []matrix.Event{event})
	return true
}

func (p *Plugin) writeEmptyResponse(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("{}")); err != nil {
		p.logger.LogWarn("Failed to write webhook response", "error", err.Error())
	}
}
