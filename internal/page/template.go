package page

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/base64"
	"html/template"
	"sync"

	"github.com/dmorgan81/imagen/internal/image"
	"github.com/dmorgan81/imagen/internal/log"
	"github.com/samber/do"
)

//go:embed assets/index.html
var indexTmpl string

type Level string

const (
	LevelError   Level = "error"
	LevelWarning Level = "warning"
)

// Message is an inline notice shown above the gallery. Detail holds raw
// diagnostic text such as an upstream response body.
type Message struct {
	Level  Level
	Text   string
	Detail string
}

type Params struct {
	Title       string
	Profile     image.Profile
	Form        image.Request
	Placeholder string
	Caption     string
	Images      []image.Image
	Messages    []Message
	FeedURL     string
}

type Templator struct {
	tmpl *template.Template
	once sync.Once
}

func NewTemplator(*do.Injector) (*Templator, error) {
	return &Templator{}, nil
}

var funcs = template.FuncMap{
	"dataURI": func(img image.Image) template.URL {
		return template.URL("data:" + img.MimeType + ";base64," + base64.StdEncoding.EncodeToString(img.Data))
	},
	"limit": func(name string) any {
		return limits[name]
	},
}

var limits = map[string]any{
	"minDim":      image.MinDimension,
	"maxDim":      image.MaxDimension,
	"dimStep":     image.DimensionStep,
	"maxCount":    image.MaxCount,
	"minGuidance": image.MinGuidance,
	"maxGuidance": image.MaxGuidance,
	"minSteps":    image.MinSteps,
	"maxSteps":    image.MaxSteps,
	"maxSeed":     image.MaxSeed,
}

func (g *Templator) Template(ctx context.Context, params Params) ([]byte, error) {
	g.once.Do(func() {
		g.tmpl = template.Must(template.New("index").Funcs(funcs).Parse(indexTmpl))
	})

	log := log.FromContextOrDiscard(ctx).WithGroup("templator")
	log.Debug("rendering page", "images", len(params.Images), "messages", len(params.Messages))

	var data bytes.Buffer
	if err := g.tmpl.Execute(&data, params); err != nil {
		return nil, err
	}
	return data.Bytes(), nil
}
