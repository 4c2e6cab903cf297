package handler

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/dmorgan81/imagen/internal/config"
	"github.com/dmorgan81/imagen/internal/feed"
	"github.com/dmorgan81/imagen/internal/image"
	"github.com/dmorgan81/imagen/internal/log"
	"github.com/dmorgan81/imagen/internal/page"
	"github.com/dmorgan81/imagen/internal/prompt"
	"github.com/dmorgan81/imagen/internal/store"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/samber/do"
	"github.com/samber/lo"
)

const feedPath = "/feed.rss"

type Handler struct {
	generator  image.Generator
	profile    image.Profile
	templator  *page.Templator
	randomizer *prompt.Randomizer
	logger     *slog.Logger
	title      string

	// archive and feed are nil unless an archive is configured.
	archive     store.Archive
	invalidator store.Invalidator
	feed        *feed.Generator
}

func NewHandler(i *do.Injector) (*Handler, error) {
	cfg := do.MustInvoke[config.Config](i)
	h := &Handler{
		generator:   do.MustInvoke[image.Generator](i),
		profile:     do.MustInvoke[image.Profile](i),
		templator:   do.MustInvoke[*page.Templator](i),
		randomizer:  do.MustInvoke[*prompt.Randomizer](i),
		logger:      do.MustInvoke[*slog.Logger](i),
		title:       cfg.Title,
		invalidator: do.MustInvoke[store.Invalidator](i),
	}
	if cfg.ArchiveEnabled() {
		h.archive = do.MustInvoke[store.Archive](i)
		h.feed = do.MustInvoke[*feed.Generator](i)
	}
	return h, nil
}

func (h *Handler) Router() *gin.Engine {
	router := gin.New()
	router.Use(requestLogger(h.logger), gin.Recovery())

	router.GET("/", h.Index)
	router.POST("/", h.Submit)
	router.GET("/healthz", h.Health)
	if h.feed != nil {
		router.GET(feedPath, h.Feed)
	}
	return router
}

func (h *Handler) Index(c *gin.Context) {
	ctx := c.Request.Context()
	h.render(c, http.StatusOK, h.params(ctx, h.profile.Defaults))
}

func (h *Handler) Submit(c *gin.Context) {
	ctx := c.Request.Context()
	log := log.FromContextOrDiscard(ctx).WithGroup("Handler")

	f := newForm(h.profile.Defaults)
	if err := c.ShouldBind(&f); err != nil {
		log.Info("could not bind form", "error", err)
		params := h.params(ctx, f.request())
		params.Messages = append(params.Messages, page.Message{
			Level: page.LevelError,
			Text:  "The form could not be read: " + err.Error(),
		})
		h.render(c, http.StatusBadRequest, params)
		return
	}

	req := f.request()
	params := h.params(ctx, req)
	log.Info("handling submission", "prompt", req.Prompt, "count", req.Count)

	result, err := h.generator.Generate(ctx, req)
	if err != nil {
		msg, status := describe(err)
		log.Warn("generation failed", "kind", image.KindOf(err).String(), "error", err)
		params.Messages = append(params.Messages, msg)
		h.render(c, status, params)
		return
	}

	params.Caption = req.Prompt
	params.Images = result.Images
	params.Messages = append(params.Messages, lo.Map(result.Warnings, func(w image.Warning, _ int) page.Message {
		return warning(w)
	})...)
	h.publish(ctx, req, result)

	h.render(c, http.StatusOK, params)
}

func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"profile": h.profile.Name,
		"model":   h.profile.Model,
	})
}

func (h *Handler) Feed(c *gin.Context) {
	rss, err := h.feed.Generate(c.Request.Context())
	if err != nil {
		log.FromContextOrDiscard(c.Request.Context()).Error("could not generate feed", "error", err)
		c.String(http.StatusInternalServerError, "feed unavailable")
		return
	}
	c.Data(http.StatusOK, "application/rss+xml; charset=utf-8", rss)
}

func (h *Handler) params(ctx context.Context, req image.Request) page.Params {
	return page.Params{
		Title:       h.title,
		Profile:     h.profile,
		Form:        req,
		Placeholder: h.randomizer.Randomize(ctx),
		FeedURL:     lo.Ternary(h.feed != nil, feedPath, ""),
	}
}

func (h *Handler) render(c *gin.Context, status int, params page.Params) {
	html, err := h.templator.Template(c.Request.Context(), params)
	if err != nil {
		log.FromContextOrDiscard(c.Request.Context()).Error("could not render page", "error", err)
		c.String(http.StatusInternalServerError, "could not render page")
		return
	}
	c.Data(status, "text/html; charset=utf-8", html)
}

// publish copies generated images into the archive. Failures are logged and
// never fail the submission.
func (h *Handler) publish(ctx context.Context, req image.Request, result *image.Result) {
	if h.archive == nil || len(result.Images) == 0 {
		return
	}
	log := log.FromContextOrDiscard(ctx).WithGroup("publish")

	created := time.Now().UTC()
	metadata := map[string]string{
		"prompt":  req.Prompt,
		"model":   result.Model,
		"seed":    strconv.FormatInt(req.Seed, 10),
		"created": created.Format(time.RFC3339),
	}
	batch := created.Format("20060102T150405") + "-" + uuid.NewString()[:8]

	uploads := lo.Map(result.Images, func(img image.Image, idx int) store.UploadParams {
		return store.UploadParams{
			Name:        fmt.Sprintf("%s-%d%s", batch, idx+1, img.Ext()),
			Data:        img.Data,
			ContentType: img.MimeType,
			Metadata:    metadata,
		}
	})
	latest := result.Images[0]
	uploads = append(uploads, store.UploadParams{
		Name:        "latest" + latest.Ext(),
		Data:        latest.Data,
		ContentType: latest.MimeType,
		Metadata:    metadata,
	})

	for _, u := range uploads {
		if err := h.archive.Upload(ctx, u); err != nil {
			log.Warn("could not archive image", "name", u.Name, "error", err)
			return
		}
	}

	if err := h.invalidator.Invalidate(ctx, []string{"/latest" + latest.Ext(), feedPath}); err != nil {
		log.Warn("could not invalidate cached paths", "error", err)
	}
}
