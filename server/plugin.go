package main

import (
	"net/http"
	"sync"
	"time"

	"github.com/mattermost/logr/v2"
	"github.com/mattermost/mattermost/server/public/model"
	"github.com/mattermost/mattermost/server/public/plugin"
	"github.com/mattermost/mattermost/server/public/pluginapi"
	"github.com/mattermost/mattermost/server/public/pluginapi/cluster"
	"github.com/pkg/errors"

	"github.com/mattermost/mattermost-plugin-matrix-dmindex/server/command"
	"github.com/mattermost/mattermost-plugin-matrix-dmindex/server/dmindex"
	"github.com/mattermost/mattermost-plugin-matrix-dmindex/server/matrix"
	"github.com/mattermost/mattermost-plugin-matrix-dmindex/server/store/kvstore"
)

// Plugin implements the interface expected by the Mattermost server to communicate between the server and plugin processes.
type Plugin struct {
	plugin.MattermostPlugin

	// kvstore is the client used to read/write KV records for this plugin.
	kvstore kvstore.KVStore

	// client is the Mattermost server API client.
	client *pluginapi.Client

	// commandClient is the client used to register and execute slash commands.
	commandClient command.Command

	// matrixClient is the client used to communicate with the Matrix homeserver.
	matrixClient *matrix.Client

	logger Logger

	// registry holds the DM index shared by hooks, HTTP handlers and commands.
	registry *dmindex.Registry

	// lifecycleLock serializes starting and stopping the DM index.
	lifecycleLock sync.Mutex

	// directLock guards registry and direct.
	directLock sync.Mutex
	direct     *directSync

	reconcileJob *cluster.Job

	// configurationLock synchronizes access to the configuration and matrixClient.
	configurationLock sync.RWMutex

	// configuration is the active plugin configuration. Consult getConfiguration and
	// setConfiguration for usage.
	configuration *configuration

	// Logr instance specifically for logging Matrix transactions and account data changes.
	transactionLogger logr.Logger
}

// OnActivate is invoked when the plugin is activated. If an error is returned, the plugin will be deactivated.
func (p *Plugin) OnActivate() error {
	var err error
	p.transactionLogger, err = CreateTransactionLogger()
	if err != nil {
		return errors.Wrap(err, "failed to create transaction logger")
	}

	p.logger = NewPluginAPILogger(p.API)

	p.client = pluginapi.NewClient(p.API, p.Driver)

	p.kvstore = kvstore.NewKVStore(p.client)

	p.initMatrixClient()

	p.commandClient = command.NewCommandHandler(p)

	p.directLock.Lock()
	p.registry = &dmindex.Registry{}
	p.directLock.Unlock()

	p.lifecycleLock.Lock()
	if err := p.startDirectSync(); err != nil {
		// The index stays down until the next configuration change; the plugin remains usable.
		p.logger.LogError("Failed to start DM index", "error", err.Error())
	}
	p.lifecycleLock.Unlock()

	job, err := cluster.Schedule(
		p.API,
		"ReconcileDirectMessages",
		cluster.MakeWaitForRoundedInterval(1*time.Hour),
		p.runReconcileJob,
	)
	if err != nil {
		return errors.Wrap(err, "failed to schedule reconciliation job")
	}

	p.reconcileJob = job

	return nil
}

// OnDeactivate is invoked when the plugin is deactivated.
func (p *Plugin) OnDeactivate() error {
	if p.reconcileJob != nil {
		if err := p.reconcileJob.Close(); err != nil {
			p.API.LogError("Failed to close reconciliation job", "err", err)
		}
	}

	p.lifecycleLock.Lock()
	p.stopDirectSync()
	p.lifecycleLock.Unlock()

	if lgr := p.transactionLogger.Logr(); lgr != nil {
		if err := lgr.Shutdown(); err != nil {
			p.API.LogWarn("Failed to shut down transaction logger", "err", err)
		}
	}
	return nil
}

// ExecuteCommand executes the commands that were registered in the NewCommandHandler function.
func (p *Plugin) ExecuteCommand(_ *plugin.Context, args *model.CommandArgs) (*model.CommandResponse, *model.AppError) {
	response, err := p.commandClient.Handle(args)
	if err != nil {
		return nil, model.NewAppError("ExecuteCommand", "plugin.command.execute_command.app_error", nil, err.Error(), http.StatusInternalServerError)
	}
	return response, nil
}

func (p *Plugin) initMatrixClient() {
	config := p.getConfiguration()
	logger := p.logger
	if logger == nil {
		logger = NewPluginAPILogger(p.API)
	}
	client := matrix.NewClient(config.MatrixServerURL, config.MatrixASToken, logger)

	p.configurationLock.Lock()
	p.matrixClient = client
	p.configurationLock.Unlock()
}

// isActive reports whether OnActivate has run.
func (p *Plugin) isActive() bool {
	p.directLock.Lock()
	defer p.directLock.Unlock()
	return p.registry != nil
}

// PluginAccessor interface implementation for command handlers

// GetDMIndex returns the running DM index
func (p *Plugin) GetDMIndex() (*dmindex.Index, bool) {
	p.directLock.Lock()
	registry := p.registry
	p.directLock.Unlock()

	if registry == nil {
		return nil, false
	}
	return registry.Get()
}

// GetMatrixUserID returns the Matrix user whose DMs are indexed, or "" when sync is not running
func (p *Plugin) GetMatrixUserID() string {
	p.directLock.Lock()
	defer p.directLock.Unlock()
	if p.direct == nil {
		return ""
	}
	return p.direct.userID
}

// GetMatrixClient returns the Matrix client instance
func (p *Plugin) GetMatrixClient() *matrix.Client {
	p.configurationLock.RLock()
	defer p.configurationLock.RUnlock()
	return p.matrixClient
}

// GetConfiguration returns the plugin configuration
func (p *Plugin) GetConfiguration() command.Configuration {
	return p.getConfiguration()
}

// GetPluginAPIClient returns the pluginapi client
func (p *Plugin) GetPluginAPIClient() *pluginapi.Client {
	return p.client
}

// See https://developers.mattermost.com/extend/plugins/server/reference/
