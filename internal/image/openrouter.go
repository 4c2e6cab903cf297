package image

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"runtime/debug"

	"github.com/dmorgan81/imagen/internal/config"
	"github.com/dmorgan81/imagen/internal/log"
	"github.com/samber/do"
	"github.com/samber/lo"
)

// OpenRouterGenerator calls an OpenAI compatible images endpoint, OpenRouter
// by default. Every Generate call performs exactly one request.
type OpenRouterGenerator struct {
	client    *http.Client
	profile   Profile
	cfg       config.Config
	userAgent string
}

func NewOpenRouterGenerator(i *do.Injector) (Generator, error) {
	return NewOpenRouter(do.MustInvoke[config.Config](i), do.MustInvoke[*http.Client](i))
}

func NewOpenRouter(cfg config.Config, client *http.Client) (*OpenRouterGenerator, error) {
	profile, err := LookupProfile(cfg.Profile)
	if err != nil {
		return nil, err
	}
	return &OpenRouterGenerator{
		client:    client,
		profile:   profile,
		cfg:       cfg,
		userAgent: userAgent(),
	}, nil
}

func (g *OpenRouterGenerator) Profile() Profile {
	return g.profile
}

func (g *OpenRouterGenerator) Generate(ctx context.Context, req Request) (*Result, error) {
	log := log.FromContextOrDiscard(ctx).WithGroup("openrouter").With(
		"profile", g.profile.Name,
		"model", g.profile.Model,
	)

	if err := g.profile.Validate(req); err != nil {
		log.Info("rejected request", "error", err)
		return nil, err
	}
	if !g.cfg.HasAPIKey() {
		return nil, validationError("no API key configured; set OPENROUTER_API_KEY")
	}

	body, err := json.Marshal(g.profile.payload(req))
	if err != nil {
		return nil, &Error{Kind: KindUnexpected, Msg: "encode request", Err: err}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.cfg.Endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, &Error{Kind: KindUnexpected, Msg: "build request", Err: err}
	}
	httpReq.Header.Set("Authorization", "Bearer "+g.cfg.APIKey)
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("HTTP-Referer", g.cfg.Referer)
	httpReq.Header.Set("X-Title", g.cfg.Title)
	httpReq.Header.Set("User-Agent", g.userAgent)

	log.Info("generating images", "count", req.Count)
	log.Debug("request payload", "body", string(body))

	resp, err := g.client.Do(httpReq)
	if err != nil {
		return nil, transportError("send request", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, transportError("read response", err)
	}

	if resp.StatusCode != http.StatusOK {
		log.Warn("upstream returned an error", "status", resp.StatusCode)
		return nil, &Error{
			Kind:   KindUpstream,
			Msg:    "image service returned an error",
			Status: resp.StatusCode,
			Body:   string(data),
		}
	}

	result, err := decodeResponse(data)
	if err != nil {
		log.Warn("could not use response", "error", err)
		return nil, err
	}
	for _, w := range result.Warnings {
		log.Warn("skipped result item", "index", w.Index, "reason", w.Message)
	}
	result.Model = g.profile.Model

	log.Info("received images", "images", len(result.Images), "skipped", len(result.Warnings))
	return result, nil
}

func transportError(msg string, err error) *Error {
	if isTimeout(err) {
		return &Error{Kind: KindTimeout, Msg: "request to the image service timed out", Err: err}
	}
	return &Error{Kind: KindUnexpected, Msg: msg, Err: err}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func userAgent() string {
	revision := "unknown"
	if info, ok := debug.ReadBuildInfo(); ok {
		setting := lo.FindOrElse(info.Settings, debug.BuildSetting{Value: revision}, func(s debug.BuildSetting) bool {
			return s.Key == "vcs.revision"
		})
		revision = setting.Value
	}
	return "imagen/" + revision
}
