package main

import (
	"context"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/Akshdhiwar/simpledocs-archive/internals/blob"
	"github.com/Akshdhiwar/simpledocs-archive/internals/config"
	"github.com/Akshdhiwar/simpledocs-archive/internals/controller"
	"github.com/Akshdhiwar/simpledocs-archive/internals/initializer"
	"github.com/Akshdhiwar/simpledocs-archive/internals/store"
	"github.com/Akshdhiwar/simpledocs-archive/internals/utils"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "archive",
	Short: "Export item trees to zip archives and import them back",
	Long: `archive serves the zip export and import endpoints and runs the same
pipelines from the command line against the configured backends.

Configuration comes from defaults, an optional YAML file and ARCHIVE_*
environment variables. A .env file is loaded first when present.

Examples:
  archive serve
  archive export 6f1c... --member 0b7e... -o docs.zip
  archive import docs.zip --member 0b7e... --parent 91d2...`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (YAML)")

	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newExportCmd())
	rootCmd.AddCommand(newImportCmd())
	rootCmd.AddCommand(newTokenCmd())
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// app holds the backends every command runs against.
type app struct {
	cfg        *config.Config
	log        *logrus.Logger
	items      store.ItemStore
	blobs      blob.Storage
	workspaces *utils.Workspaces
	zip        *controller.ZipController
}

func loadConfig() (*config.Config, *logrus.Logger, error) {
	if _, exists := os.LookupEnv("RAILWAY_ENVIRONMENT"); !exists {
		if _, err := initializer.LoadEnvVariables(); err != nil {
			return nil, nil, err
		}
	}

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, nil, err
	}
	log, err := initializer.NewLogger(cfg.LogLevel, cfg.IsProduction())
	if err != nil {
		return nil, nil, err
	}
	return cfg, log, nil
}

func setup(ctx context.Context) (*app, error) {
	cfg, log, err := loadConfig()
	if err != nil {
		return nil, err
	}

	items, err := initializer.OpenStore(ctx, cfg.Store)
	if err != nil {
		return nil, err
	}
	blobs, err := initializer.OpenBlobStorage(ctx, cfg.Blob)
	if err != nil {
		items.Close()
		return nil, err
	}
	workspaces, err := utils.NewWorkspaces(cfg.TmpDir, log)
	if err != nil {
		items.Close()
		return nil, err
	}

	zip := controller.NewZipController(items, blobs, workspaces, log, controller.ZipOptions{
		MaxUploadSize:    cfg.MaxUploadSize,
		MaxExtractedSize: cfg.MaxExtractedSize,
		MaxDepth:         cfg.MaxDepth,
		Concurrency:      cfg.ExportConcurrency,
		NameLimit:        cfg.NameLimit,
	})

	log.WithFields(logrus.Fields{
		"store": cfg.Store.Driver,
		"blob":  cfg.Blob.Driver,
	}).Debug("Backends ready")

	return &app{cfg: cfg, log: log, items: items, blobs: blobs, workspaces: workspaces, zip: zip}, nil
}

func (a *app) Close() {
	if err := a.items.Close(); err != nil {
		a.log.WithError(err).Error("Failed to close item store")
	}
}

// memberView returns the store as seen by the --member flag, the public
// view when the flag is empty.
func (a *app) memberView(raw string) (*store.Member, error) {
	if raw == "" {
		return store.Public(a.items), nil
	}
	member, err := uuid.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid member id %q: %w", raw, err)
	}
	return store.ForMember(a.items, member), nil
}
