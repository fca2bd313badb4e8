// Package main implements the Mattermost Matrix DM index plugin server component.
package main

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/mattermost/mattermost/server/public/plugin"

	"github.com/mattermost/mattermost-plugin-matrix-dmindex/server/dmindex"
)

// dmRoomsResponse is returned by GET /api/v1/dm/users/{userId}/rooms
type dmRoomsResponse struct {
	UserID  string   `json:"user_id"`
	RoomIDs []string `json:"room_ids"`
}

// dmUserResponse is returned by GET /api/v1/dm/rooms/{roomId}/user
type dmUserResponse struct {
	RoomID string `json:"room_id"`
	UserID string `json:"user_id"`
}

// dmSnapshotResponse is returned by GET /api/v1/dm
type dmSnapshotResponse struct {
	MatrixUserID string          `json:"matrix_user_id"`
	Direct       dmindex.Content `json:"direct"`
}

// ServeHTTP routes the DM index API and the Matrix application service endpoint.
// The root URL is <siteUrl>/plugins/<plugin id>/.
func (p *Plugin) ServeHTTP(_ *plugin.Context, w http.ResponseWriter, r *http.Request) {
	p.newRouter().ServeHTTP(w, r)
}

func (p *Plugin) newRouter() *mux.Router {
	router := mux.NewRouter()

	// Matrix Application Service webhook endpoint with Matrix authentication
	matrixRouter := router.PathPrefix("/_matrix/app/v1").Subrouter()
	matrixRouter.Use(p.MatrixAuthorizationRequired)
	matrixRouter.HandleFunc("/transactions/{txnId}", p.handleMatrixTransaction).Methods(http.MethodPut)

	// Authenticated Mattermost API routes
	apiRouter := router.PathPrefix("/api/v1").Subrouter()
	apiRouter.Use(p.MattermostAuthorizationRequired)
	apiRouter.HandleFunc("/dm", p.handleGetDMSnapshot).Methods(http.MethodGet)
	apiRouter.HandleFunc("/dm/users/{userId}/rooms", p.handleGetDMRoomsForUser).Methods(http.MethodGet)
	apiRouter.HandleFunc("/dm/rooms/{roomId}/user", p.handleGetDMUserForRoom).Methods(http.MethodGet)

	return router
}

// MattermostAuthorizationRequired is a middleware that requires users to be logged in.
func (p *Plugin) MattermostAuthorizationRequired(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := r.Header.Get("Mattermost-User-ID")
		if userID == "" {
			http.Error(w, "Not authorized", http.StatusUnauthorized)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// MatrixAuthorizationRequired is a middleware that requires valid Matrix hs_token authentication.
func (p *Plugin) MatrixAuthorizationRequired(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		config := p.getConfiguration()

		// Check if sync is enabled
		if !config.EnableSync {
			p.logger.LogDebug("Matrix webhook received but sync is disabled")
			http.Error(w, "Sync disabled", http.StatusServiceUnavailable)
			return
		}

		if config.MatrixHSToken == "" {
			p.logger.LogWarn("Matrix webhook received but hs_token not configured")
			http.Error(w, "Matrix not configured", http.StatusServiceUnavailable)
			return
		}

		// Verify hs_token in Authorization header
		authHeader := r.Header.Get("Authorization")
		expectedToken := "Bearer " + config.MatrixHSToken

		if subtle.ConstantTimeCompare([]byte(authHeader), []byte(expectedToken)) != 1 {
			p.logger.LogWarn("Matrix webhook authentication failed - bearer token mismatch")
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (p *Plugin) handleGetDMRoomsForUser(w http.ResponseWriter, r *http.Request) {
	index, ok := p.GetDMIndex()
	if !ok {
		http.Error(w, "DM index not running", http.StatusServiceUnavailable)
		return
	}

	userID := mux.Vars(r)["userId"]
	p.writeJSON(w, http.StatusOK, dmRoomsResponse{
		UserID:  userID,
		RoomIDs: index.DMRoomsForUserID(userID),
	})
}

func (p *Plugin) handleGetDMUserForRoom(w http.ResponseWriter, r *http.Request) {
	index, ok := p.GetDMIndex()
	if !ok {
		http.Error(w, "DM index not running", http.StatusServiceUnavailable)
		return
	}

	roomID := mux.Vars(r)["roomId"]
	userID, found := index.UserIDForRoomID(roomID)
	if !found {
		http.Error(w, "Room is not a known DM", http.StatusNotFound)
		return
	}

	p.writeJSON(w, http.StatusOK, dmUserResponse{
		RoomID: roomID,
		UserID: userID,
	})
}

func (p *Plugin) handleGetDMSnapshot(w http.ResponseWriter, _ *http.Request) {
	index, ok := p.GetDMIndex()
	if !ok {
		http.Error(w, "DM index not running", http.StatusServiceUnavailable)
		return
	}

	p.writeJSON(w, http.StatusOK, dmSnapshotResponse{
		MatrixUserID: p.GetMatrixUserID(),
		Direct:       index.Snapshot(),
	})
}

func (p *Plugin) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		p.logger.LogWarn("Failed to write response", "error", err.Error())
	}
}
