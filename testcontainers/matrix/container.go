package matrix

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// MatrixContainer wraps a testcontainer running Synapse
//
//nolint:revive // MatrixContainer is intentionally named to be descriptive in test context
type MatrixContainer struct {
	Container    testcontainers.Container
	ServerURL    string
	ServerDomain string
	ASToken      string
	HSToken      string
	BotUserID    string
}

// StartMatrixContainer starts a Synapse container for testing
func StartMatrixContainer(t *testing.T, config MatrixTestConfig) *MatrixContainer {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:       "matrixdotorg/synapse:latest",
		NetworkMode: "host", // Use host networking to bypass VPN conflicts
		Env: map[string]string{
			"SYNAPSE_SERVER_NAME":  config.ServerName,
			"SYNAPSE_REPORT_STATS": "no",
			"SYNAPSE_NO_TLS":       "true",
		},
		Files: []testcontainers.ContainerFile{
			{
				ContainerFilePath: "/data/homeserver.yaml",
				FileMode:          0644,
				Reader:            strings.NewReader(generateSynapseConfig(config)),
			},
			{
				ContainerFilePath: "/data/appservice.yaml",
				FileMode:          0644,
				Reader:            strings.NewReader(generateAppServiceConfig(config)),
			},
			{
				ContainerFilePath: "/data/log.config",
				FileMode:          0644,
				Reader:            strings.NewReader(generateLogConfig()),
			},
		},
		Entrypoint: []string{
			"sh", "-c",
			"python -m synapse.app.homeserver --config-path=/data/homeserver.yaml --generate-keys && python -m synapse.app.homeserver --config-path=/data/homeserver.yaml",
		},
		WaitingFor: wait.ForLog("SynapseSite starting on 18008").WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)

	mc := &MatrixContainer{
		Container:    container,
		ServerURL:    "http://localhost:18008",
		ServerDomain: config.ServerName,
		ASToken:      config.ASToken,
		HSToken:      config.HSToken,
		BotUserID:    fmt.Sprintf("@%s:%s", config.SenderLocalpart, config.ServerName),
	}
	t.Logf("Using host networking: %s", mc.ServerURL)

	mc.waitForMatrixReady(t)

	return mc
}

// Cleanup terminates the Matrix container
func (mc *MatrixContainer) Cleanup(t *testing.T) {
	err := mc.Container.Terminate(context.Background())
	require.NoError(t, err)
}

// waitForMatrixReady waits for Matrix server to be fully operational
func (mc *MatrixContainer) waitForMatrixReady(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	// Give extra time for server to fully start after log message
	time.Sleep(2 * time.Second)

	for {
		select {
		case <-ctx.Done():
			t.Logf("Matrix server connectivity check timed out; proceeding since the startup log was seen")
			return
		default:
			if mc.isMatrixReady() {
				t.Logf("Matrix server is ready and responding")
				return
			}
			time.Sleep(1 * time.Second)
		}
	}
}

func (mc *MatrixContainer) isMatrixReady() bool {
	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get(mc.ServerURL + "/_matrix/client/versions")
	if err != nil {
		return false
	}
	defer func() { _ = resp.Body.Close() }()

	return resp.StatusCode == http.StatusOK
}

// RegisterASUser registers a user inside the application service namespace and returns its user ID
func (mc *MatrixContainer) RegisterASUser(t *testing.T, localpart string) string {
	result, err := mc.request(http.MethodPost, "/_matrix/client/v3/register", "", true, map[string]any{
		"type":     "m.login.application_service",
		"username": localpart,
	})
	require.NoError(t, err)
	return result["user_id"].(string)
}

// CreateUser registers an ordinary password user
func (mc *MatrixContainer) CreateUser(t *testing.T, username, password string) string {
	result, err := mc.request(http.MethodPost, "/_matrix/client/v3/register", "", false, map[string]any{
		"username": username,
		"password": password,
		"auth": map[string]any{
			"type": "m.login.dummy",
		},
	})
	require.NoError(t, err)
	return result["user_id"].(string)
}

// CreateDirectRoom creates a room as creatorID with is_direct invites for invitees
func (mc *MatrixContainer) CreateDirectRoom(t *testing.T, creatorID string, invitees ...string) string {
	result, err := mc.request(http.MethodPost, "/_matrix/client/v3/createRoom", creatorID, true, map[string]any{
		"preset":    "trusted_private_chat",
		"is_direct": true,
		"invite":    invitees,
	})
	require.NoError(t, err)
	return result["room_id"].(string)
}

// JoinRoom joins roomID as userID
func (mc *MatrixContainer) JoinRoom(t *testing.T, userID, roomID string) {
	_, err := mc.request(http.MethodPost, "/_matrix/client/v3/join/"+url.PathEscape(roomID), userID, true, map[string]any{})
	require.NoError(t, err)
}

// SetAccountData writes a global account data event for a user in the application service namespace
func (mc *MatrixContainer) SetAccountData(t *testing.T, userID, eventType string, content any) {
	endpoint := "/_matrix/client/v3/user/" + url.PathEscape(userID) + "/account_data/" + url.PathEscape(eventType)
	_, err := mc.request(http.MethodPut, endpoint, userID, true, content)
	require.NoError(t, err)
}

// GetAccountData reads a global account data event, returning nil when it is not set
func (mc *MatrixContainer) GetAccountData(userID, eventType string) (map[string]any, error) {
	endpoint := "/_matrix/client/v3/user/" + url.PathEscape(userID) + "/account_data/" + url.PathEscape(eventType)
	result, err := mc.request(http.MethodGet, endpoint, userID, true, nil)
	if err != nil && strings.Contains(err.Error(), "M_NOT_FOUND") {
		return nil, nil
	}
	return result, err
}

// request makes a request to the Matrix server, optionally authenticated with
// the application service token and acting as userID
func (mc *MatrixContainer) request(method, endpoint, userID string, authenticated bool, data any) (map[string]any, error) {
	var body io.Reader
	if data != nil {
		jsonData, err := json.Marshal(data)
		if err != nil {
			return nil, err
		}
		body = strings.NewReader(string(jsonData))
	}

	requestURL := mc.ServerURL + endpoint
	if userID != "" {
		requestURL += "?user_id=" + url.QueryEscape(userID)
	}

	req, err := http.NewRequest(method, requestURL, body)
	if err != nil {
		return nil, err
	}

	if authenticated {
		req.Header.Set("Authorization", "Bearer "+mc.ASToken)
	}
	if data != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	responseBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode >= 400 {
		//nolint:staticcheck // Error message capitalization is intentional for Matrix API errors
		return nil, fmt.Errorf("Matrix API error: %d %s", resp.StatusCode, string(responseBody))
	}

	result := map[string]any{}
	if len(responseBody) == 0 {
		return result, nil
	}
	if err := json.Unmarshal(responseBody, &result); err != nil {
		return nil, err
	}
	return result, nil
}

// generateSynapseConfig generates a basic Synapse configuration
func generateSynapseConfig(config MatrixTestConfig) string {
	return fmt.Sprintf(`
server_name: "%s"
pid_file: /tmp/homeserver.pid

listeners:
  - port: 18008
    tls: false
    type: http
    x_forwarded: true
    bind_addresses: ['0.0.0.0']
    resources:
      - names: [client]
        compress: false

database:
  name: sqlite3
  args:
    database: ":memory:"

log_config: "/data/log.config"

media_store_path: /tmp/media_store
registration_shared_secret: "test_secret_12345"
report_stats: false
macaroon_secret_key: "test_macaroon_12345"
form_secret: "test_form_12345"

signing_key_path: "/tmp/signing.key"

trusted_key_servers: []

app_service_config_files:
  - /data/appservice.yaml

user_directory:
  enabled: false

encryption_enabled_by_default_for_room_type: off

# Disable rate limiting for tests
rc_message:
  per_second: 1000
  burst_count: 1000

rc_registration:
  per_second: 1000
  burst_count: 1000

rc_joins:
  local:
    per_second: 1000
    burst_count: 1000

rc_invites:
  per_room:
    per_second: 1000
    burst_count: 1000
  per_user:
    per_second: 1000
    burst_count: 1000

enable_registration: true
enable_registration_without_verification: true
`, config.ServerName)
}

// generateAppServiceConfig generates application service configuration
func generateAppServiceConfig(config MatrixTestConfig) string {
	return fmt.Sprintf(`
id: mattermost-dmindex
url: null
as_token: "%s"
hs_token: "%s"
sender_localpart: %s

namespaces:
  users:
    - exclusive: true
      regex: "@_dmindex_.*:%s"
  aliases: []
  rooms: []
`, config.ASToken, config.HSToken, config.SenderLocalpart, config.ServerName)
}

// generateLogConfig generates a simple logging configuration for Synapse
func generateLogConfig() string {
	return `version: 1
formatters:
  precise:
    format: '%(asctime)s - %(name)s - %(lineno)d - %(levelname)s - %(request)s - %(message)s'
handlers:
  console:
    class: logging.StreamHandler
    formatter: precise
    stream: ext://sys.stdout
root:
  level: WARNING
  handlers: [console]
`
}
