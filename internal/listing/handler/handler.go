package handler

import (
	"context"
	"errors"
	"io"
	"net/http"
	"slices"

	"github.com/gin-gonic/gin"
	"github.com/propgate/propgate/internal/fieldspec"
	"github.com/propgate/propgate/internal/gating"
	"github.com/propgate/propgate/internal/listing"
	"github.com/propgate/propgate/internal/listing/service"
	"github.com/propgate/propgate/internal/listing/view"
	"github.com/propgate/propgate/internal/storage"
	"github.com/propgate/propgate/pkg/logger"
	"github.com/propgate/propgate/pkg/middleware"
)

// MaxAssetSize bounds multipart asset uploads.
const MaxAssetSize = 20 << 20

// AssetStore holds the objects behind listing asset fields.
type AssetStore interface {
	Upload(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Remove(ctx context.Context, key string) error
}

// Handler serves the listing JSON API.
type Handler struct {
	Store  service.Service
	Views  *view.Service
	Assets AssetStore // nil disables asset uploads

	// Viewer runs before read routes (typically optional auth); Editor guards
	// write routes (typically required auth). Nil means no middleware.
	Viewer gin.HandlerFunc
	Editor gin.HandlerFunc
}

func chain(mw gin.HandlerFunc, h gin.HandlerFunc) []gin.HandlerFunc {
	if mw == nil {
		return []gin.HandlerFunc{h}
	}
	return []gin.HandlerFunc{mw, h}
}

// Register mounts the routes under rg.
func (h *Handler) Register(rg *gin.RouterGroup) {
	g := rg.Group("/api/listings")
	g.GET("", chain(h.Viewer, h.list)...)
	g.GET("/:id", chain(h.Viewer, h.get)...)
	g.POST("", chain(h.Editor, h.create)...)
	g.PATCH("/:id", chain(h.Editor, h.update)...)
	g.DELETE("/:id", chain(h.Editor, h.delete)...)
	g.POST("/:id/assets/:field", chain(h.Editor, h.upload)...)
}

// RegisterListingRoutes mounts the listing API on r with no auth middleware.
func RegisterListingRoutes(r *gin.Engine, store service.Service, views *view.Service) {
	(&Handler{Store: store, Views: views}).Register(&r.RouterGroup)
}

// writeError maps domain errors onto HTTP statuses.
func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, view.ErrListingNotFound), errors.Is(err, service.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.Is(err, view.ErrUpstreamUnavailable):
		logger.With("path", c.Request.URL.Path, "collaborator", view.Collaborator(err)).Warnf("listing request: %v", err)
		c.Header("Retry-After", "5")
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "temporarily unavailable, please retry"})
	case errors.Is(err, service.ErrInvalid):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		logger.Errorf("listing request %s: %v", c.Request.URL.Path, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

type summaryJSON struct {
	ID     string             `json:"id"`
	Fields gating.GatedRecord `json:"fields"`
}

func (h *Handler) list(c *gin.Context) {
	cat, err := h.Views.Catalogue(c.Request.Context(), middleware.Subject(c))
	if err != nil {
		writeError(c, err)
		return
	}
	out := make([]summaryJSON, 0, len(cat.Entries))
	for _, e := range cat.Entries {
		out = append(out, summaryJSON{ID: e.ID, Fields: e.Record})
	}
	c.JSON(http.StatusOK, gin.H{"viewer": gin.H{"plan": cat.Viewer.Plan.String()}, "listings": out})
}

func (h *Handler) get(c *gin.Context) {
	d, err := h.Views.Detail(c.Request.Context(), c.Param("id"), middleware.Subject(c))
	if err != nil {
		writeError(c, err)
		return
	}
	desc, _ := d.Description()
	c.JSON(http.StatusOK, gin.H{
		"id":          d.ID,
		"status":      d.Status,
		"viewer":      gin.H{"plan": d.Viewer.Plan.String()},
		"upsell":      d.Upsell,
		"description": desc,
		"fields":      d.Record,
	})
}

func (h *Handler) create(c *gin.Context) {
	var req struct {
		Status listing.Status `json:"status"`
		Fields gating.Record  `json:"fields" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	l, err := h.Store.Create(c.Request.Context(), req.Status, req.Fields)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": l.ID, "status": l.Status})
}

func (h *Handler) update(c *gin.Context) {
	var req struct {
		Status *listing.Status `json:"status,omitempty"`
		Set    gating.Record   `json:"set"`
		Unset  []string        `json:"unset"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	ctx := c.Request.Context()
	id := c.Param("id")
	if len(req.Set) > 0 || len(req.Unset) > 0 {
		if err := h.Store.UpdateFields(ctx, id, req.Set, req.Unset); err != nil {
			writeError(c, err)
			return
		}
	}
	if req.Status != nil {
		if err := h.Store.SetStatus(ctx, id, *req.Status); err != nil {
			writeError(c, err)
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"id": id})
}

func (h *Handler) delete(c *gin.Context) {
	ctx := c.Request.Context()
	l, err := h.Store.Delete(ctx, c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	for _, key := range l.AssetKeys() {
		h.removeAsset(ctx, key)
	}
	c.Status(http.StatusNoContent)
}

// removeAsset deletes a stored object. Failures only leave an orphan behind,
// so they are logged and never fail the request. External URLs are not ours.
func (h *Handler) removeAsset(ctx context.Context, key string) {
	if h.Assets == nil || key == "" || storage.IsAbsoluteURL(key) {
		return
	}
	if err := h.Assets.Remove(ctx, key); err != nil {
		logger.With("key", key).Warnf("asset remove: %v", err)
	}
}

// upload stores a plan PDF or a photo and records its key on the listing.
// Photos are appended; pdf_plan_url is replaced and the previous object removed.
func (h *Handler) upload(c *gin.Context) {
	if h.Assets == nil {
		c.JSON(http.StatusNotImplemented, gin.H{"error": "asset storage not configured"})
		return
	}
	field := c.Param("field")
	if !slices.Contains(fieldspec.AssetFields, field) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "field does not accept uploads"})
		return
	}
	ctx := c.Request.Context()
	id := c.Param("id")
	if _, err := h.Store.Get(ctx, id); err != nil {
		writeError(c, err)
		return
	}

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, MaxAssetSize)
	fh, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "multipart field 'file' required"})
		return
	}
	f, err := fh.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	defer f.Close()

	key := storage.ObjectKey(id, field, fh.Filename)
	contentType := fh.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	if err := h.Assets.Upload(ctx, key, f, fh.Size, contentType); err != nil {
		logger.Errorf("asset upload %s: %v", key, err)
		c.Header("Retry-After", "5")
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "asset storage unavailable"})
		return
	}

	if field == fieldspec.Photos {
		err = h.Store.AppendField(ctx, id, field, key)
	} else {
		var prev any
		prev, err = h.Store.ReplaceField(ctx, id, field, key)
		if prevKey, ok := prev.(string); ok && err == nil && prevKey != key {
			h.removeAsset(ctx, prevKey)
		}
	}
	if err != nil {
		h.removeAsset(ctx, key)
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": id, "field": field, "key": key})
}
