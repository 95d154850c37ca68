package config

import (
	"context"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/citypulse/pkg/domain/interfaces"
	"github.com/secmon-lab/citypulse/pkg/service/storage"
	"github.com/secmon-lab/citypulse/pkg/utils/logging"
	"github.com/urfave/cli/v3"
)

// Storage holds CLI flags for the photo store
type Storage struct {
	backend string
	bucket  string
	prefix  string
}

func (x *Storage) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "image-backend",
			Usage:       "Photo storage backend (gcs or memory)",
			Category:    "Storage",
			Value:       "memory",
			Sources:     cli.EnvVars("CITYPULSE_IMAGE_BACKEND"),
			Destination: &x.backend,
		},
		&cli.StringFlag{
			Name:        "gcs-bucket",
			Usage:       "Cloud Storage bucket for photos (required when using gcs backend)",
			Category:    "Storage",
			Sources:     cli.EnvVars("CITYPULSE_GCS_BUCKET"),
			Destination: &x.bucket,
		},
		&cli.StringFlag{
			Name:        "gcs-prefix",
			Usage:       "Object name prefix for photos",
			Category:    "Storage",
			Sources:     cli.EnvVars("CITYPULSE_GCS_PREFIX"),
			Destination: &x.prefix,
		},
	}
}

// Configure returns the photo store and a function releasing it
func (x *Storage) Configure(ctx context.Context) (interfaces.ImageStore, func(), error) {
	switch x.backend {
	case "gcs":
		if x.bucket == "" {
			return nil, nil, goerr.New("gcs-bucket is required when using gcs backend")
		}
		var opts []storage.GCSOption
		if x.prefix != "" {
			opts = append(opts, storage.WithPrefix(x.prefix))
		}
		store, err := storage.NewGCS(ctx, x.bucket, opts...)
		if err != nil {
			return nil, nil, goerr.Wrap(err, "failed to initialize photo storage")
		}
		logging.Default().Info("Using Cloud Storage for photos", "bucket", x.bucket, "prefix", x.prefix)
		return store, func() {
			if err := store.Close(); err != nil {
				logging.Default().Error("failed to close photo storage", "error", err.Error())
			}
		}, nil

	case "memory":
		logging.Default().Info("Using in-memory photo storage (development mode)")
		return storage.NewMemory(), func() {}, nil

	default:
		return nil, nil, goerr.New("invalid image backend", goerr.V("backend", x.backend))
	}
}
