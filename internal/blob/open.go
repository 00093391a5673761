package blob

import (
	"context"
	"fmt"
	"strings"

	"squadcore/internal/config"
)

// Open selects a Store from the blob settings in cfg.
func Open(ctx context.Context, cfg config.Config) (Store, error) {
	switch Driver(strings.ToLower(strings.TrimSpace(cfg.BlobDriver))) {
	case DriverFilesystem, "":
		return NewFilesystem(cfg.BlobFSRoot)
	case DriverMemory:
		return NewMemory(), nil
	case DriverS3:
		return NewS3(ctx, S3Config{
			Bucket:    cfg.BlobS3Bucket,
			Region:    cfg.BlobS3Region,
			Endpoint:  cfg.BlobS3Endpoint,
			PathStyle: cfg.BlobS3PathStyle,
		})
	default:
		return nil, fmt.Errorf("unknown blob driver %q", cfg.BlobDriver)
	}
}
