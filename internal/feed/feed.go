package feed

import (
	"context"
	"fmt"
	"time"

	"github.com/dmorgan81/imagen/internal/config"
	"github.com/dmorgan81/imagen/internal/log"
	"github.com/dmorgan81/imagen/internal/store"
	"github.com/gorilla/feeds"
	"github.com/samber/do"
)

// Generator renders the archive as an RSS feed, newest first.
type Generator struct {
	archive store.Archive
	title   string
	baseURL string
}

func NewGenerator(i *do.Injector) (*Generator, error) {
	cfg := do.MustInvoke[config.Config](i)
	return New(do.MustInvoke[store.Archive](i), cfg.Title, cfg.PublicURL), nil
}

func New(archive store.Archive, title, baseURL string) *Generator {
	return &Generator{archive: archive, title: title, baseURL: baseURL}
}

func (g *Generator) Generate(ctx context.Context) ([]byte, error) {
	log := log.FromContextOrDiscard(ctx).WithGroup("feed")
	log.Info("generating rss feed")

	objects, err := g.archive.List(ctx)
	if err != nil {
		return nil, err
	}

	feed := feeds.Feed{
		Title:       g.title,
		Description: "Images generated from prompts",
		Link:        &feeds.Link{Href: g.baseURL + "/"},
		Updated:     time.Now(),
	}
	for _, obj := range objects {
		meta := obj.Metadata
		feed.Add(&feeds.Item{
			Title:       fmt.Sprintf("%s:%s:%s", meta["prompt"], meta["model"], meta["seed"]),
			Description: meta["prompt"],
			Link:        &feeds.Link{Href: g.baseURL + "/" + obj.Name},
			Id:          obj.Name,
			Updated:     obj.Updated,
		})
	}

	feed.Sort(func(a, b *feeds.Item) bool {
		return a.Updated.After(b.Updated)
	})
	log.Debug("feed items", "count", len(feed.Items))

	rss, err := feed.ToRss()
	return []byte(rss), err
}
