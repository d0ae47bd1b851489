// Package archive keeps rendered report charts in object storage.
package archive

import (
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/soltixdb/statseries/internal/config"
	"github.com/soltixdb/statseries/internal/utils"
)

// Store writes archived objects
type Store interface {
	Put(ctx context.Context, key string, body []byte, contentType string) error
}

// New creates a Store based on configuration. A "none" archive is a Noop.
func New(ctx context.Context, cfg config.ArchiveConfig) (Store, error) {
	switch utils.ArchiveType(strings.ToLower(cfg.Type)) {
	case "", utils.ArchiveTypeNone:
		return Noop{}, nil
	case utils.ArchiveTypeS3:
		return NewS3Store(ctx, S3Config{
			Bucket:    cfg.Bucket,
			Region:    cfg.Region,
			Endpoint:  cfg.Endpoint,
			PathStyle: cfg.PathStyle,
		})
	default:
		return nil, fmt.Errorf("unsupported archive type: %s (supported: s3, none)", cfg.Type)
	}
}

// Noop discards everything
type Noop struct{}

func (Noop) Put(context.Context, string, []byte, string) error { return nil }

// ChartKeys returns the keys a chart generated at is stored under: a
// timestamped snapshot and the report's "latest" object.
func ChartKeys(prefix, report string, at time.Time) (snapshot, latest string) {
	dir := path.Join(prefix, report)
	return path.Join(dir, at.UTC().Format("20060102T150405Z")+".html"), path.Join(dir, "latest.html")
}
