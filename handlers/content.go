package handlers

import (
	"context"
	"database/sql"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"academy-svc/middleware"
	"academy-svc/models"
	"academy-svc/storage"
)

const downloadURLExpiry = 15 * time.Minute

type ContentHandler struct {
	db     *sql.DB
	store  storage.ObjectStore
	logger *zap.Logger
}

func NewContentHandler(db *sql.DB, store storage.ObjectStore, logger *zap.Logger) *ContentHandler {
	return &ContentHandler{
		db:     db,
		store:  store,
		logger: logger,
	}
}

// ListBundleContent merges the bundle's stored files, its shareable links and,
// when the purchase includes the add-on, the add-on files, in that order.
// A source failing on its own is tolerated; only all sources failing is an
// error. An empty but successful result means the bundle was never set up,
// which is an operator problem, not a user one.
func (h *ContentHandler) ListBundleContent(c *gin.Context) {
	ctx, span := otel.Tracer("academy-svc").Start(c.Request.Context(), "ListBundleContent")
	defer span.End()

	bundleType := c.Param("bundleType")
	if _, ok := models.BundleByType(bundleType); !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown bundle type"})
		return
	}

	includesAddon := false
	if p, ok := c.Get(middleware.ContextPurchaseKey); ok {
		if purchase, ok := p.(*models.Purchase); ok {
			includesAddon = purchase.IncludesAddon
		}
	}

	span.SetAttributes(
		attribute.String("bundle.type", bundleType),
		attribute.Bool("includes_addon", includesAddon),
	)

	var (
		wg         sync.WaitGroup
		files      []storage.Object
		links      []models.BundleLink
		addonFiles []storage.Object
		filesErr   error
		linksErr   error
		addonErr   error
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		files, filesErr = h.store.ListObjects(ctx, bundleType)
	}()
	go func() {
		defer wg.Done()
		links, linksErr = h.listBundleLinks(ctx, bundleType)
	}()
	if includesAddon {
		wg.Add(1)
		go func() {
			defer wg.Done()
			addonFiles, addonErr = h.store.ListObjects(ctx, models.AddonPrefix)
		}()
	}
	wg.Wait()

	traceID := middleware.GetTraceID(ctx)
	sources := 2
	failures := 0
	for _, err := range []error{filesErr, linksErr} {
		if err != nil {
			failures++
			h.logger.Warn("Content source failed",
				zap.String("trace_id", traceID),
				zap.String("bundle_type", bundleType),
				zap.Error(err),
			)
		}
	}
	if includesAddon {
		sources++
		if addonErr != nil {
			failures++
			h.logger.Warn("Add-on content source failed", zap.String("trace_id", traceID), zap.Error(addonErr))
		}
	}
	if failures == sources {
		c.JSON(http.StatusBadGateway, gin.H{"error": "Failed to load bundle content"})
		return
	}

	items := make([]models.ContentItem, 0, len(files)+len(links)+len(addonFiles))
	for _, f := range files {
		items = append(items, models.ContentItem{
			Kind: models.ContentItemFile,
			Name: f.Name,
			Key:  f.Key,
			Size: f.Size,
		})
	}
	for _, l := range links {
		items = append(items, models.ContentItem{
			Kind:        models.ContentItemLink,
			Name:        l.Title,
			URL:         l.URL,
			Description: l.Description,
		})
	}
	for _, f := range addonFiles {
		items = append(items, models.ContentItem{
			Kind: models.ContentItemAddonFile,
			Name: f.Name,
			Key:  f.Key,
			Size: f.Size,
		})
	}

	span.SetAttributes(attribute.Int("content.count", len(items)))

	if len(items) == 0 && failures == 0 {
		h.logger.Warn("Bundle has no content configured",
			zap.String("trace_id", traceID),
			zap.String("bundle_type", bundleType),
		)
		c.JSON(http.StatusOK, gin.H{
			"items":   items,
			"warning": "No content is configured for this bundle",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"items": items})
}

// DownloadContent hands out a short-lived presigned URL; the client fetches
// the object itself, nothing is proxied through the service.
func (h *ContentHandler) DownloadContent(c *gin.Context) {
	ctx, span := otel.Tracer("academy-svc").Start(c.Request.Context(), "DownloadContent")
	defer span.End()

	bundleType := c.Param("bundleType")
	key := c.Query("key")
	if key == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "key is required"})
		return
	}

	includesAddon := false
	if p, ok := c.Get(middleware.ContextPurchaseKey); ok {
		if purchase, ok := p.(*models.Purchase); ok {
			includesAddon = purchase.IncludesAddon
		}
	}

	// A key must sit under the purchased bundle's prefix, or the add-on
	// prefix when the purchase includes it.
	switch {
	case strings.HasPrefix(key, bundleType+"/"):
	case includesAddon && strings.HasPrefix(key, models.AddonPrefix+"/"):
	default:
		c.JSON(http.StatusForbidden, gin.H{"error": "Key is outside the purchased bundle"})
		return
	}

	span.SetAttributes(
		attribute.String("bundle.type", bundleType),
		attribute.String("object.key", key),
	)

	url, err := h.store.PresignGet(ctx, key, downloadURLExpiry)
	if err != nil {
		span.RecordError(err)
		h.logger.Error("Failed to presign download",
			zap.String("trace_id", middleware.GetTraceID(ctx)),
			zap.String("object_key", key),
			zap.Error(err),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to prepare download"})
		return
	}

	middleware.RecordDownloadIssued(bundleType)
	c.JSON(http.StatusOK, gin.H{"url": url})
}

func (h *ContentHandler) listBundleLinks(ctx context.Context, bundleType string) ([]models.BundleLink, error) {
	rows, err := h.db.QueryContext(ctx,
		"SELECT id, bundle_type, title, url, description FROM bundle_links WHERE bundle_type = $1 ORDER BY position, id",
		bundleType,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var links []models.BundleLink
	for rows.Next() {
		var l models.BundleLink
		if err := rows.Scan(&l.ID, &l.BundleType, &l.Title, &l.URL, &l.Description); err != nil {
			return nil, err
		}
		links = append(links, l)
	}
	return links, rows.Err()
}
