package image

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dmorgan81/imagen/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) {
	return f(r)
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	img.Set(1, 1, color.RGBA{R: 255, A: 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func testConfig(endpoint string) config.Config {
	return config.Config{
		APIKey:   "sk-or-test",
		Endpoint: endpoint,
		Profile:  "general",
		Referer:  "https://imagen.test",
		Title:    "imagen test",
		Timeout:  config.DefaultTimeout,
	}
}

func generalRequest() Request {
	return Request{
		Prompt:        "an astronaut riding a horse on mars",
		Width:         512,
		Height:        768,
		Count:         2,
		GuidanceScale: 7.5,
		Steps:         30,
	}
}

func newServer(t *testing.T, status int, body string) (*httptest.Server, *[]byte, *http.Header) {
	t.Helper()
	var gotBody []byte
	var gotHeader http.Header
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotBody, _ = io.ReadAll(r.Body)
		gotHeader = r.Header.Clone()
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv, &gotBody, &gotHeader
}

func newGenerator(t *testing.T, cfg config.Config, client *http.Client) *OpenRouterGenerator {
	t.Helper()
	g, err := NewOpenRouter(cfg, client)
	require.NoError(t, err)
	return g
}

func TestGenerateRejectsEmptyPromptWithoutCalling(t *testing.T) {
	var calls atomic.Int32
	client := &http.Client{Transport: roundTripFunc(func(*http.Request) (*http.Response, error) {
		calls.Add(1)
		return nil, errors.New("should not be called")
	})}
	g := newGenerator(t, testConfig("http://upstream.invalid"), client)

	for _, prompt := range []string{"", "   \n"} {
		req := generalRequest()
		req.Prompt = prompt
		_, err := g.Generate(context.Background(), req)
		assert.Equal(t, KindValidation, KindOf(err))
	}
	assert.Zero(t, calls.Load())
}

func TestGenerateRejectsMissingKey(t *testing.T) {
	var calls atomic.Int32
	client := &http.Client{Transport: roundTripFunc(func(*http.Request) (*http.Response, error) {
		calls.Add(1)
		return nil, errors.New("should not be called")
	})}

	for _, key := range []string{"", config.PlaceholderKey} {
		cfg := testConfig("http://upstream.invalid")
		cfg.APIKey = key
		g := newGenerator(t, cfg, client)

		_, err := g.Generate(context.Background(), generalRequest())
		assert.Equal(t, KindValidation, KindOf(err))
		assert.ErrorContains(t, err, "API key")
	}
	assert.Zero(t, calls.Load())
}

func TestGenerateSendsPayloadAndHeaders(t *testing.T) {
	b64 := base64.StdEncoding.EncodeToString(pngBytes(t, 4, 4))
	srv, body, header := newServer(t, http.StatusOK, fmt.Sprintf(`{"data":[{"b64_json":%q}]}`, b64))
	g := newGenerator(t, testConfig(srv.URL), srv.Client())

	req := generalRequest()
	req.Seed = 42
	req.NegativePrompt = "blurry"
	_, err := g.Generate(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, "Bearer sk-or-test", header.Get("Authorization"))
	assert.Equal(t, "application/json", header.Get("Content-Type"))
	assert.Equal(t, "https://imagen.test", header.Get("HTTP-Referer"))
	assert.Equal(t, "imagen test", header.Get("X-Title"))
	assert.True(t, strings.HasPrefix(header.Get("User-Agent"), "imagen/"))

	var sent map[string]any
	require.NoError(t, json.Unmarshal(*body, &sent))
	assert.Equal(t, map[string]any{
		"model":           "stability-ai/stable-diffusion-3-medium",
		"prompt":          "an astronaut riding a horse on mars",
		"n":               float64(2),
		"size":            "512x768",
		"response_format": "b64_json",
		"seed":            float64(42),
		"guidance_scale":  7.5,
		"steps":           float64(30),
		"negative_prompt": "blurry",
	}, sent)
}

func TestPayloadOmitsUnsetFields(t *testing.T) {
	p, err := LookupProfile("general")
	require.NoError(t, err)

	req := generalRequest()
	req.Seed = 0
	req.NegativePrompt = ""
	b, err := json.Marshal(p.payload(req))
	require.NoError(t, err)

	var sent map[string]any
	require.NoError(t, json.Unmarshal(b, &sent))
	assert.NotContains(t, sent, "seed")
	assert.NotContains(t, sent, "negative_prompt")
	assert.Contains(t, sent, "guidance_scale")
	assert.Contains(t, sent, "steps")
}

func TestPayloadFixedProfile(t *testing.T) {
	p, err := LookupProfile("fixed")
	require.NoError(t, err)

	b, err := json.Marshal(p.payload(Request{
		Prompt:         "a lighthouse",
		NegativePrompt: "ignored",
		Size:           "256x256",
		Count:          3,
		Seed:           7,
		GuidanceScale:  9,
		Steps:          20,
	}))
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"model": "openai/dall-e-2",
		"prompt": "a lighthouse",
		"n": 3,
		"size": "256x256",
		"response_format": "b64_json"
	}`, string(b))
}

func TestGenerateSkipsItemsWithoutImage(t *testing.T) {
	raw := pngBytes(t, 8, 6)
	body := fmt.Sprintf(`{"data":[{"b64_json":%q},{"url":"https://example.com/x.png"}]}`,
		base64.StdEncoding.EncodeToString(raw))
	srv, _, _ := newServer(t, http.StatusOK, body)
	g := newGenerator(t, testConfig(srv.URL), srv.Client())

	result, err := g.Generate(context.Background(), generalRequest())
	require.NoError(t, err)

	require.Len(t, result.Images, 1)
	assert.Equal(t, raw, result.Images[0].Data)
	assert.Equal(t, "image/png", result.Images[0].MimeType)
	assert.Equal(t, 8, result.Images[0].Width)
	assert.Equal(t, 6, result.Images[0].Height)
	assert.Equal(t, "stability-ai/stable-diffusion-3-medium", result.Model)

	require.Len(t, result.Warnings, 1)
	assert.Equal(t, 1, result.Warnings[0].Index)
}

func TestGenerateEmptyData(t *testing.T) {
	for _, body := range []string{`{"data":[]}`, `{}`, `null`} {
		t.Run(body, func(t *testing.T) {
			srv, _, _ := newServer(t, http.StatusOK, body)
			g := newGenerator(t, testConfig(srv.URL), srv.Client())

			_, err := g.Generate(context.Background(), generalRequest())
			require.Equal(t, KindData, KindOf(err))

			var e *Error
			require.ErrorAs(t, err, &e)
			assert.Equal(t, body, e.Body)
		})
	}
}

func TestGenerateUpstreamError(t *testing.T) {
	srv, _, _ := newServer(t, http.StatusInternalServerError, "server error")
	g := newGenerator(t, testConfig(srv.URL), srv.Client())

	_, err := g.Generate(context.Background(), generalRequest())

	var e *Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, KindUpstream, e.Kind)
	assert.Equal(t, 500, e.Status)
	assert.Equal(t, "server error", e.Body)
}

func TestGenerateTimeout(t *testing.T) {
	slow := roundTripFunc(func(r *http.Request) (*http.Response, error) {
		select {
		case <-time.After(5 * time.Second):
			return &http.Response{
				StatusCode: http.StatusOK,
				Body:       io.NopCloser(strings.NewReader(`{"data":[]}`)),
				Header:     http.Header{},
				Request:    r,
			}, nil
		case <-r.Context().Done():
			return nil, r.Context().Err()
		}
	})
	client := &http.Client{Transport: slow, Timeout: 50 * time.Millisecond}
	g := newGenerator(t, testConfig("http://upstream.invalid"), client)

	_, err := g.Generate(context.Background(), generalRequest())
	assert.Equal(t, KindTimeout, KindOf(err))
}

func TestGenerateNetworkFailure(t *testing.T) {
	client := &http.Client{Transport: roundTripFunc(func(*http.Request) (*http.Response, error) {
		return nil, errors.New("connection refused")
	})}
	g := newGenerator(t, testConfig("http://upstream.invalid"), client)

	_, err := g.Generate(context.Background(), generalRequest())
	assert.Equal(t, KindUnexpected, KindOf(err))
	assert.ErrorContains(t, err, "connection refused")
}

func TestGenerateMalformedItems(t *testing.T) {
	for name, body := range map[string]string{
		"bad base64":    `{"data":[{"b64_json":"not base64!"}]}`,
		"not an image":  fmt.Sprintf(`{"data":[{"b64_json":%q}]}`, base64.StdEncoding.EncodeToString([]byte("hello"))),
		"invalid json":  `{"data":`,
		"empty payload": `{"data":[{"b64_json":""}]}`,
	} {
		t.Run(name, func(t *testing.T) {
			srv, _, _ := newServer(t, http.StatusOK, body)
			g := newGenerator(t, testConfig(srv.URL), srv.Client())

			_, err := g.Generate(context.Background(), generalRequest())
			assert.Equal(t, KindUnexpected, KindOf(err))
		})
	}
}

func TestDecodeRoundTrip(t *testing.T) {
	raw := pngBytes(t, 16, 16)

	img, err := Decode(base64.StdEncoding.EncodeToString(raw))
	require.NoError(t, err)
	assert.Equal(t, raw, img.Data)
	assert.Equal(t, ".png", img.Ext())
}

func TestValidate(t *testing.T) {
	general, err := LookupProfile("general")
	require.NoError(t, err)
	fixed, err := LookupProfile("fixed")
	require.NoError(t, err)

	tests := []struct {
		name    string
		profile Profile
		mutate  func(*Request)
		valid   bool
	}{
		{"defaults", general, func(*Request) {}, true},
		{"zero count", general, func(r *Request) { r.Count = 0 }, false},
		{"too many", general, func(r *Request) { r.Count = 5 }, false},
		{"narrow", general, func(r *Request) { r.Width = 128 }, false},
		{"off step", general, func(r *Request) { r.Height = 500 }, false},
		{"unset guidance", general, func(r *Request) { r.GuidanceScale = 0 }, true},
		{"guidance too high", general, func(r *Request) { r.GuidanceScale = 21 }, false},
		{"unset steps", general, func(r *Request) { r.Steps = 0 }, true},
		{"too few steps", general, func(r *Request) { r.Steps = 5 }, false},
		{"negative seed", general, func(r *Request) { r.Seed = -1 }, false},
		{"max seed", general, func(r *Request) { r.Seed = MaxSeed }, true},
		{"fixed size", fixed, func(r *Request) { r.Size = "1024x1024" }, true},
		{"fixed bad size", fixed, func(r *Request) { r.Size = "512x768" }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := tt.profile.Defaults
			req.Prompt = "a cat"
			tt.mutate(&req)

			err := tt.profile.Validate(req)
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.Equal(t, KindValidation, KindOf(err))
			}
		})
	}
}

func TestLookupProfile(t *testing.T) {
	_, err := LookupProfile("sdxl")
	assert.ErrorContains(t, err, "fixed, general")

	_, err = NewOpenRouter(config.Config{Profile: "sdxl"}, http.DefaultClient)
	assert.Error(t, err)
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, KindNone, KindOf(nil))
	assert.Equal(t, KindUnexpected, KindOf(errors.New("boom")))
	assert.Equal(t, KindTimeout, KindOf(fmt.Errorf("wrapped: %w", &Error{Kind: KindTimeout})))
	assert.Equal(t, "upstream", KindUpstream.String())
}
