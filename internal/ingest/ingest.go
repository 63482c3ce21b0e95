// Package ingest stores media bytes under a content-derived path so identical
// bytes are uploaded at most once.
package ingest

import (
	"context"
	"fmt"
	"path"
	"slices"
	"strings"

	"go.uber.org/zap"

	"github.com/JakeFAU/dealfeed-collector/internal/collector"
	"github.com/JakeFAU/dealfeed-collector/internal/metrics"
)

// Config controls where and how assets are stored.
type Config struct {
	Namespace   string
	Extension   string
	ContentType string
}

// Ingestor implements collector.MediaIngestor.
type Ingestor struct {
	cfg    Config
	store  collector.ObjectStore
	hasher collector.Hasher
	logger *zap.Logger
}

// New returns an Ingestor. Empty config fields default to images/*.jpg as image/jpeg.
func New(cfg Config, store collector.ObjectStore, hasher collector.Hasher, logger *zap.Logger) *Ingestor {
	if cfg.Namespace == "" {
		cfg.Namespace = "images"
	}
	cfg.Namespace = strings.Trim(cfg.Namespace, "/")
	if cfg.Extension == "" {
		cfg.Extension = ".jpg"
	}
	if !strings.HasPrefix(cfg.Extension, ".") {
		cfg.Extension = "." + cfg.Extension
	}
	if cfg.ContentType == "" {
		cfg.ContentType = "image/jpeg"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Ingestor{cfg: cfg, store: store, hasher: hasher, logger: logger}
}

// Asset computes the content identity of raw.
func (i *Ingestor) Asset(raw []byte) (collector.MediaAsset, error) {
	if len(raw) == 0 {
		return collector.MediaAsset{}, collector.ErrNoMedia
	}
	digest, err := i.hasher.Hash(raw)
	if err != nil {
		return collector.MediaAsset{}, fmt.Errorf("%w: hash: %v", collector.ErrIngest, err)
	}
	return collector.MediaAsset{
		Data:   raw,
		Digest: digest,
		Path:   path.Join(i.cfg.Namespace, digest+i.cfg.Extension),
	}, nil
}

// Ingest returns the public reference for raw, uploading only when no object
// with the same digest exists. The existence check and upload are not atomic:
// a concurrent ingestor may upload the same path twice, which is harmless.
func (i *Ingestor) Ingest(ctx context.Context, raw []byte) (collector.MediaReference, error) {
	asset, err := i.Asset(raw)
	if err != nil {
		return collector.MediaReference{}, err
	}
	ref := collector.MediaReference{
		URL:    i.store.PublicURL(asset.Path),
		Digest: asset.Digest,
		Path:   asset.Path,
	}
	log := i.logger.With(zap.String("digest", asset.Digest), zap.String("path", asset.Path))

	existing, err := i.store.List(ctx, i.cfg.Namespace)
	if err != nil {
		log.Warn("list media namespace failed, uploading anyway", zap.Error(err))
	}
	if slices.Contains(existing, path.Base(asset.Path)) {
		log.Debug("media already stored")
		metrics.ObserveIngest("dedup")
		return ref, nil
	}

	if err := i.store.Upload(ctx, asset.Path, asset.Data, i.cfg.ContentType); err != nil {
		metrics.ObserveIngest("failed")
		return collector.MediaReference{}, fmt.Errorf("%w: upload %s: %v", collector.ErrIngest, asset.Path, err)
	}
	log.Info("media uploaded", zap.Int("bytes", len(asset.Data)))
	metrics.ObserveIngest("uploaded")
	ref.Uploaded = true
	return ref, nil
}
