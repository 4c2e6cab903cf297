package handle

import (
	"bytes"
	"context"
	"encoding/base64"
	"net/http"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	"github.com/dmorgan81/imagen/internal/log"
	"github.com/gin-gonic/gin"
	"github.com/samber/do"
	"github.com/samber/lo"
)

// URLHandler serves Lambda Function URL invocations through an ordinary
// http.Handler.
type URLHandler struct {
	handler http.Handler
}

func NewURLHandler(i *do.Injector) (*URLHandler, error) {
	return New(do.MustInvoke[*gin.Engine](i)), nil
}

func New(handler http.Handler) *URLHandler {
	return &URLHandler{handler: handler}
}

func (h *URLHandler) Handle(ctx context.Context, request events.LambdaFunctionURLRequest) (events.LambdaFunctionURLResponse, error) {
	log := log.FromContextOrDiscard(ctx).WithGroup("URLHandler").With(
		"method", request.RequestContext.HTTP.Method,
		"path", request.RawPath,
	)
	log.Debug("handling lambda invocation")

	req, err := toHTTPRequest(ctx, request)
	if err != nil {
		return events.LambdaFunctionURLResponse{}, err
	}

	w := newResponseWriter()
	h.handler.ServeHTTP(w, req)
	return w.response(), nil
}

func toHTTPRequest(ctx context.Context, request events.LambdaFunctionURLRequest) (*http.Request, error) {
	body := []byte(request.Body)
	if request.IsBase64Encoded {
		decoded, err := base64.StdEncoding.DecodeString(request.Body)
		if err != nil {
			return nil, err
		}
		body = decoded
	}

	target := lo.Ternary(request.RawPath != "", request.RawPath, "/")
	if request.RawQueryString != "" {
		target += "?" + request.RawQueryString
	}

	method := lo.Ternary(request.RequestContext.HTTP.Method != "", request.RequestContext.HTTP.Method, http.MethodGet)
	req, err := http.NewRequestWithContext(ctx, method, target, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	for k, v := range request.Headers {
		req.Header.Set(k, v)
	}
	if len(request.Cookies) > 0 {
		req.Header.Set("Cookie", strings.Join(request.Cookies, "; "))
	}
	req.Host = lo.Ternary(req.Header.Get("Host") != "", req.Header.Get("Host"), request.RequestContext.DomainName)
	req.RemoteAddr = request.RequestContext.HTTP.SourceIP
	req.ContentLength = int64(len(body))
	return req, nil
}

type responseWriter struct {
	header http.Header
	status int
	body   bytes.Buffer
}

func newResponseWriter() *responseWriter {
	return &responseWriter{header: http.Header{}}
}

func (w *responseWriter) Header() http.Header {
	return w.header
}

func (w *responseWriter) Write(b []byte) (int, error) {
	if w.status == 0 {
		w.WriteHeader(http.StatusOK)
	}
	return w.body.Write(b)
}

func (w *responseWriter) WriteHeader(status int) {
	if w.status == 0 {
		w.status = status
	}
}

func (w *responseWriter) response() events.LambdaFunctionURLResponse {
	headers := make(map[string]string, len(w.header))
	for k, v := range w.header {
		if k == "Set-Cookie" {
			continue
		}
		headers[k] = strings.Join(v, ",")
	}

	resp := events.LambdaFunctionURLResponse{
		StatusCode: lo.Ternary(w.status != 0, w.status, http.StatusOK),
		Headers:    headers,
		Cookies:    w.header.Values("Set-Cookie"),
	}
	if isText(w.header.Get("Content-Type")) {
		resp.Body = w.body.String()
	} else {
		resp.Body = base64.StdEncoding.EncodeToString(w.body.Bytes())
		resp.IsBase64Encoded = true
	}
	return resp
}

func isText(contentType string) bool {
	ct := strings.ToLower(contentType)
	return ct == "" || strings.HasPrefix(ct, "text/") ||
		strings.Contains(ct, "json") || strings.Contains(ct, "xml") || strings.Contains(ct, "javascript")
}
