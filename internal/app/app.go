// Package app initializes the long-lived services a harvest run hands its
// results to: the artifact BlobStore and the optional run notification
// publisher.
package app

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"go.uber.org/zap"
	"google.golang.org/api/option"

	"github.com/JakeFAU/courthouse-harvester/internal/config"
	"github.com/JakeFAU/courthouse-harvester/internal/harvest"
	pubsubpublisher "github.com/JakeFAU/courthouse-harvester/internal/publisher/pubsub"
	"github.com/JakeFAU/courthouse-harvester/internal/storage/gcs"
	"github.com/JakeFAU/courthouse-harvester/internal/storage/local"
	memorystorage "github.com/JakeFAU/courthouse-harvester/internal/storage/memory"
)

// Options carries extra client options for the Google Cloud clients.
type Options struct {
	GCS    []option.ClientOption
	PubSub []option.ClientOption
}

// App holds the output-side services for one run.
type App struct {
	logger       *zap.Logger
	store        harvest.BlobStore
	artifactPath string
	publisher    harvest.Publisher
	closers      []func() error
}

// Store returns the artifact destination.
func (a *App) Store() harvest.BlobStore {
	return a.store
}

// ArtifactPath is the object path handed to Store.
func (a *App) ArtifactPath() string {
	return a.artifactPath
}

// Publisher returns the notification publisher, or nil when notifications
// are disabled.
func (a *App) Publisher() harvest.Publisher {
	return a.publisher
}

// New builds the services selected by cfg. Storage precedence: dry run
// (memory), then GCS when a bucket is set, then the local file system.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger, opts Options) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &App{logger: logger}

	switch {
	case cfg.Output.DryRun:
		logger.Info("using in-memory artifact store; nothing will be persisted")
		a.store = memorystorage.NewBlobStore()
		a.artifactPath = cfg.Output.ObjectName()
	case cfg.Output.GCSBucket != "":
		logger.Info("using gcs artifact store",
			zap.String("bucket", cfg.Output.GCSBucket),
			zap.String("object", cfg.Output.ObjectName()),
		)
		store, err := gcs.Open(ctx, gcs.Config{Bucket: cfg.Output.GCSBucket}, opts.GCS...)
		if err != nil {
			return nil, fmt.Errorf("init gcs store: %w", err)
		}
		a.store = store
		a.artifactPath = cfg.Output.ObjectName()
		a.closers = append(a.closers, store.Close)
	default:
		dir, name := filepath.Split(cfg.Output.Path)
		if dir == "" {
			dir = "."
		}
		store, err := local.New(local.Config{BaseDir: dir})
		if err != nil {
			return nil, fmt.Errorf("init local store: %w", err)
		}
		a.store = store
		a.artifactPath = name
	}

	if cfg.Notify.Enabled() {
		logger.Info("run notifications enabled",
			zap.String("project", cfg.Notify.ProjectID),
			zap.String("topic", cfg.Notify.Topic),
		)
		pub, err := pubsubpublisher.Open(ctx, cfg.Notify.ProjectID, opts.PubSub...)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("init pubsub publisher: %w", err)
		}
		a.publisher = pub
		a.closers = append(a.closers, pub.Close)
	}
	return a, nil
}

// Close shuts down every client New created, in reverse order.
func (a *App) Close() {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	if err := errors.Join(errs...); err != nil {
		a.logger.Warn("error closing services", zap.Error(err))
	}
}
