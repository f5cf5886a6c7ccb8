package main

import (
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/coolray-dev/rayfleet/models"
	"github.com/coolray-dev/rayfleet/modules"
	"github.com/coolray-dev/rayfleet/storage"
	"github.com/coolray-dev/rayfleet/utils"
	"github.com/coolray-dev/rayfleet/worker"
	"github.com/sirupsen/logrus"
)

func main() {

	if err := modules.LoadConfig(); err != nil {
		utils.Log.WithError(err).Fatal("Fatal Error Reading Config File")
	}
	setupLog()

	store := storage.NewMemoryStore()
	if userFile := modules.Config.GetString("store.file"); userFile != "" {
		if err := store.Load(userFile); err != nil {
			utils.Log.WithError(err).Fatal("Error Loading User File")
		}
	}

	templates := loadTemplates()
	builder := worker.NewConfigBuilder(templates)
	registry := worker.NewNodeRegistry()
	registerNodes(registry)

	core := modules.NewCore(
		modules.Config.GetString("core.binary"),
		modules.Config.GetString("core.config"),
		modules.Config.GetString("core.grpcaddr"),
	)
	fleet := worker.NewFleetController(core, registry, builder, store)
	fleet.NodeTimeout = time.Duration(modules.Config.GetInt("nodes.timeout")) * time.Second

	reconciler := worker.NewReconciler(store, fleet)
	bulk := worker.NewBulkUpdater(store, fleet)

	// Bring the local core up on the current store state before anything
	// can talk to the fleet.
	activeUsers, err := store.GetActiveUsers()
	if err != nil {
		utils.Log.WithError(err).Fatal("Error Listing Active Users")
	}
	if err := fleet.RebuildAndRestartAll(activeUsers); err != nil {
		utils.Log.WithError(err).Fatal("Error Starting Local Core")
	}

	// Create a waitgroup
	var wg sync.WaitGroup

	connector := worker.NewConnector(registry, modules.Config.GetUint64("nodes.interval"))
	connector.WaitGroup = &wg
	connector.Start()

	api := worker.NewAdminAPI(
		modules.Config.GetString("api.listen"),
		modules.Config.GetString("api.token"),
		reconciler,
		bulk,
	)
	api.WaitGroup = &wg
	api.Start()

	// Create a channel to pass signal rayfleet process receive
	sigs := make(chan os.Signal, 1)
	// Used to implement gracful shutdown
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	// Monitor signal from channel sigs
	go func() {
		sig := <-sigs
		// Do graceful shutdown
		fmt.Println("Shutting down. Caused by", sig)
		api.Stop()
		connector.Stop()
		core.Stop()
	}()

	utils.Log.Info("RayFleet Started Successfully")
	// Do not exit until all goroutine done
	wg.Wait()
}

func loadTemplates() []models.InboundTemplate {
	var templates []models.InboundTemplate
	if err := modules.Config.UnmarshalKey("inbounds", &templates); err != nil {
		utils.Log.WithError(err).Fatal("Error Parsing Inbound Templates")
	}
	for i := range templates {
		if err := modules.Validator.Struct(&templates[i]); err != nil {
			utils.Log.WithError(err).Fatal("Inbound Template Validation Failed")
		}
		if !templates[i].Protocol.Valid() {
			utils.Log.WithField("protocol", templates[i].Protocol).Fatal("Unknown Inbound Protocol")
		}
	}
	return templates
}

func registerNodes(registry *worker.NodeRegistry) {
	var nodes []models.Node
	if err := modules.Config.UnmarshalKey("nodes.list", &nodes); err != nil {
		utils.Log.WithError(err).Fatal("Error Parsing Node List")
	}
	for _, node := range nodes {
		if err := modules.Validator.Struct(&node); err != nil {
			utils.Log.WithFields(logrus.Fields{
				"node":  node.Name,
				"error": err,
			}).Fatal("Node Validation Failed")
		}
		registry.Register(node, modules.NewNodeClient(node))
	}
}

func setupLog() {
	switch modules.Config.GetString("log.level") {
	case "debug":
		utils.Log.SetLevel(logrus.DebugLevel)
	case "info":
		utils.Log.SetLevel(logrus.InfoLevel)
	case "warn":
		utils.Log.SetLevel(logrus.WarnLevel)
	case "error":
		utils.Log.SetLevel(logrus.ErrorLevel)
	default:
		utils.Log.SetLevel(logrus.InfoLevel)
	}

}
