// Package command implements the /matrixdm slash command for querying the Matrix DM index.
package command

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/mattermost/mattermost/server/public/model"
	"github.com/mattermost/mattermost/server/public/pluginapi"

	"github.com/mattermost/mattermost-plugin-matrix-dmindex/server/dmindex"
	"github.com/mattermost/mattermost-plugin-matrix-dmindex/server/matrix"
)

// Configuration interface for accessing plugin configuration
type Configuration interface {
	GetMatrixServerURL() string
	IsSyncEnabled() bool
}

// PluginAccessor defines the interface for plugin functionality needed by command handlers
type PluginAccessor interface {
	// DM index access; false when sync is disabled or the index failed to start
	GetDMIndex() (*dmindex.Index, bool)

	// Matrix user whose m.direct is indexed
	GetMatrixUserID() string

	// Matrix client access
	GetMatrixClient() *matrix.Client

	// Configuration access
	GetConfiguration() Configuration

	// Mattermost API access
	GetPluginAPIClient() *pluginapi.Client
}

// Handler implements slash command processing for the DM index plugin.
type Handler struct {
	plugin PluginAccessor
	client *pluginapi.Client
}

// Command defines the interface for handling DM index slash commands.
type Command interface {
	Handle(args *model.CommandArgs) (*model.CommandResponse, error)
}

const matrixDMCommandTrigger = "matrixdm"

const usageText = "Usage: /matrixdm [rooms|user|list|status] [@user:server|!room:server]"

// connectionTestTimeout bounds the whoami call made by the status subcommand.
const connectionTestTimeout = 10 * time.Second

// NewCommandHandler creates and registers the /matrixdm command.
func NewCommandHandler(plugin PluginAccessor) Command {
	client := plugin.GetPluginAPIClient()

	err := client.SlashCommand.Register(&model.Command{
		Trigger:          matrixDMCommandTrigger,
		AutoComplete:     true,
		AutoCompleteDesc: "Query the Matrix direct message index",
		AutoCompleteHint: "[subcommand]",
		AutocompleteData: newAutocompleteData(),
	})
	if err != nil {
		client.Log.Error("Failed to register matrixdm command", "error", err)
	}

	return &Handler{
		plugin: plugin,
		client: client,
	}
}

func newAutocompleteData() *model.AutocompleteData {
	data := model.NewAutocompleteData(matrixDMCommandTrigger, "[subcommand]", "Query the Matrix direct message index")
	data.AddCommand(model.NewAutocompleteData("rooms", "[@user:server]", "List the DM rooms with a Matrix user"))
	data.AddCommand(model.NewAutocompleteData("user", "[!room:server]", "Show which Matrix user a room is a DM with"))
	data.AddCommand(model.NewAutocompleteData("list", "", "List every indexed DM"))
	data.AddCommand(model.NewAutocompleteData("status", "", "Show DM index status"))
	return data
}

// Handle processes slash commands registered by the plugin.
func (c *Handler) Handle(args *model.CommandArgs) (*model.CommandResponse, error) {
	fields := strings.Fields(args.Command)
	if len(fields) == 0 || strings.TrimPrefix(fields[0], "/") != matrixDMCommandTrigger {
		return ephemeral(fmt.Sprintf("Unknown command: %s", args.Command)), nil
	}
	if len(fields) < 2 {
		return ephemeral(usageText), nil
	}

	switch fields[1] {
	case "rooms":
		if len(fields) < 3 {
			return ephemeral("Please specify a Matrix user ID, e.g. `/matrixdm rooms @alice:example.com`"), nil
		}
		return c.executeRoomsCommand(fields[2]), nil
	case "user":
		if len(fields) < 3 {
			return ephemeral("Please specify a Matrix room ID, e.g. `/matrixdm user !abc:example.com`"), nil
		}
		return c.executeUserCommand(fields[2]), nil
	case "list":
		return c.executeListCommand(), nil
	case "status":
		return c.executeStatusCommand(), nil
	default:
		return ephemeral("Unknown subcommand. Use: rooms, user, list, or status"), nil
	}
}

func (c *Handler) executeRoomsCommand(userID string) *model.CommandResponse {
	if !isMatrixID(userID, '@') {
		return ephemeral("Invalid Matrix user ID. Expected the form `@user:server.com`")
	}

	index, ok := c.plugin.GetDMIndex()
	if !ok {
		return ephemeral(indexUnavailableText)
	}

	rooms := index.DMRoomsForUserID(userID)
	if len(rooms) == 0 {
		return ephemeral(fmt.Sprintf("No DM rooms with `%s`.", userID))
	}

	var text strings.Builder
	fmt.Fprintf(&text, "**DM rooms with `%s`:**\n", userID)
	for _, roomID := range rooms {
		fmt.Fprintf(&text, "• `%s`\n", roomID)
	}
	return ephemeral(text.String())
}

func (c *Handler) executeUserCommand(roomID string) *model.CommandResponse {
	if !isMatrixID(roomID, '!') {
		return ephemeral("Invalid Matrix room ID. Expected the form `!roomid:server.com`")
	}

	index, ok := c.plugin.GetDMIndex()
	if !ok {
		return ephemeral(indexUnavailableText)
	}

	userID, found := index.UserIDForRoomID(roomID)
	if !found {
		return ephemeral(fmt.Sprintf("`%s` is not a known DM room.", roomID))
	}
	if userID == dmindex.UnknownUserID {
		return ephemeral(fmt.Sprintf("`%s` is a DM room, but the other participant is unknown.", roomID))
	}
	return ephemeral(fmt.Sprintf("`%s` is a DM with `%s`.", roomID, userID))
}

func (c *Handler) executeListCommand() *model.CommandResponse {
	index, ok := c.plugin.GetDMIndex()
	if !ok {
		return ephemeral(indexUnavailableText)
	}

	snapshot := index.Snapshot()
	if len(snapshot) == 0 {
		return ephemeral("No DMs are indexed.")
	}

	userIDs := make([]string, 0, len(snapshot))
	for userID := range snapshot {
		userIDs = append(userIDs, userID)
	}
	sort.Strings(userIDs)

	var text strings.Builder
	fmt.Fprintf(&text, "**Indexed DMs (%d users, %d rooms):**\n\n", len(userIDs), len(index.RoomIDs()))
	for _, userID := range userIDs {
		label := "`" + userID + "`"
		if userID == dmindex.UnknownUserID {
			label = "_unknown participant_"
		}
		fmt.Fprintf(&text, "• %s: %s\n", label, formatRoomList(snapshot[userID]))
	}
	return ephemeral(text.String())
}

func (c *Handler) executeStatusCommand() *model.CommandResponse {
	config := c.plugin.GetConfiguration()

	var text strings.Builder
	text.WriteString("**Matrix DM Index Status**\n\n")

	if !config.IsSyncEnabled() {
		text.WriteString("• Sync: disabled\n• Configuration: System Console → Plugins → Matrix DM Index")
		return ephemeral(text.String())
	}

	fmt.Fprintf(&text, "• Sync: enabled\n• Server: `%s`\n", config.GetMatrixServerURL())
	if userID := c.plugin.GetMatrixUserID(); userID != "" {
		fmt.Fprintf(&text, "• Matrix user: `%s`\n", userID)
	}

	if matrixClient := c.plugin.GetMatrixClient(); matrixClient != nil {
		ctx, cancel := context.WithTimeout(context.Background(), connectionTestTimeout)
		defer cancel()
		if err := matrixClient.TestConnection(ctx); err != nil {
			c.client.Log.Warn("Matrix connection test failed", "error", err.Error())
			text.WriteString("• Connection: ❌ failed, check plugin logs\n")
		} else {
			text.WriteString("• Connection: ✅ ok\n")
		}
	}

	index, ok := c.plugin.GetDMIndex()
	if !ok {
		text.WriteString("• Index: not running")
		return ephemeral(text.String())
	}
	fmt.Fprintf(&text, "• Index: running, %d users, %d rooms", len(index.Snapshot()), len(index.RoomIDs()))
	return ephemeral(text.String())
}

const indexUnavailableText = "❌ The DM index is not running. Enable sync in System Console → Plugins → Matrix DM Index."

func ephemeral(text string) *model.CommandResponse {
	return &model.CommandResponse{
		ResponseType: model.CommandResponseTypeEphemeral,
		Text:         text,
	}
}

func formatRoomList(rooms []string) string {
	if len(rooms) == 0 {
		return "_none_"
	}
	quoted := make([]string, len(rooms))
	for i, roomID := range rooms {
		quoted[i] = "`" + roomID + "`"
	}
	return strings.Join(quoted, ", ")
}

// isMatrixID checks for a sigil-prefixed identifier with a non-empty localpart and server name.
func isMatrixID(id string, sigil byte) bool {
	if len(id) < 4 || id[0] != sigil {
		return false
	}
	colon := strings.IndexByte(id, ':')
	return colon > 1 && colon < len(id)-1
}
