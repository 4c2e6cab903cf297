package inject

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudfront"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	appconfig "github.com/dmorgan81/imagen/internal/config"
	"github.com/dmorgan81/imagen/internal/feed"
	"github.com/dmorgan81/imagen/internal/handle"
	"github.com/dmorgan81/imagen/internal/handler"
	"github.com/dmorgan81/imagen/internal/image"
	"github.com/dmorgan81/imagen/internal/log"
	"github.com/dmorgan81/imagen/internal/page"
	"github.com/dmorgan81/imagen/internal/param"
	"github.com/dmorgan81/imagen/internal/prompt"
	"github.com/dmorgan81/imagen/internal/store"
	"github.com/gin-gonic/gin"
	"github.com/samber/do"
)

// Setup registers every service lazily. AWS clients are only built when a
// configured feature (parameter store key, S3 archive, CloudFront) asks for them.
func Setup(ctx context.Context, getenv func(string) string) *do.Injector {
	logger := log.FromContextOrDiscard(ctx)

	injector := do.NewWithOpts(&do.InjectorOpts{
		Logf: func(format string, args ...any) {
			logger.Debug(fmt.Sprintf(format, args...))
		},
	})
	do.ProvideValue[*slog.Logger](injector, logger)

	do.Provide[aws.Config](injector, func(i *do.Injector) (aws.Config, error) {
		return config.LoadDefaultConfig(ctx)
	})
	do.Provide[*ssm.Client](injector, func(i *do.Injector) (*ssm.Client, error) {
		return ssm.NewFromConfig(do.MustInvoke[aws.Config](i)), nil
	})
	do.Provide[*s3.Client](injector, func(i *do.Injector) (*s3.Client, error) {
		return s3.NewFromConfig(do.MustInvoke[aws.Config](i)), nil
	})
	do.Provide[*cloudfront.Client](injector, func(i *do.Injector) (*cloudfront.Client, error) {
		return cloudfront.NewFromConfig(do.MustInvoke[aws.Config](i)), nil
	})
	do.Provide[param.Fetcher](injector, param.NewParameterStoreFetcher)

	do.Provide[appconfig.Config](injector, func(i *do.Injector) (appconfig.Config, error) {
		return appconfig.Load(ctx, getenv, func() (param.Fetcher, error) {
			return do.Invoke[param.Fetcher](i)
		})
	})
	do.Provide[*http.Client](injector, func(i *do.Injector) (*http.Client, error) {
		return &http.Client{Timeout: do.MustInvoke[appconfig.Config](i).Timeout}, nil
	})

	do.Provide[image.Profile](injector, func(i *do.Injector) (image.Profile, error) {
		return image.LookupProfile(do.MustInvoke[appconfig.Config](i).Profile)
	})
	do.Provide[image.Generator](injector, image.NewOpenRouterGenerator)

	do.ProvideNamed[[]string](injector, "prompts", func(i *do.Injector) ([]string, error) {
		path := do.MustInvoke[appconfig.Config](i).PromptsParam
		if path == "" {
			return nil, nil
		}
		prompts, err := do.MustInvoke[param.Fetcher](i).FetchAll(ctx, path)
		if err != nil {
			logger.Warn("using built-in example prompts", "error", err)
			return nil, nil
		}
		return prompts, nil
	})
	do.Provide[*prompt.Randomizer](injector, prompt.NewRandomizer)
	do.Provide[*page.Templator](injector, page.NewTemplator)

	do.Provide[store.Archive](injector, func(i *do.Injector) (store.Archive, error) {
		cfg := do.MustInvoke[appconfig.Config](i)
		switch {
		case cfg.Bucket != "":
			return store.NewS3Archive(i)
		case cfg.ArchiveDir != "":
			return store.NewFileArchive(i)
		}
		return nil, errors.New("no archive configured")
	})
	do.Provide[store.Invalidator](injector, func(i *do.Injector) (store.Invalidator, error) {
		if do.MustInvoke[appconfig.Config](i).Distribution == "" {
			return store.NopInvalidator{}, nil
		}
		return store.NewCloudFrontInvalidator(i)
	})
	do.Provide[*feed.Generator](injector, feed.NewGenerator)

	do.Provide[*handler.Handler](injector, handler.NewHandler)
	do.Provide[*gin.Engine](injector, func(i *do.Injector) (*gin.Engine, error) {
		return do.MustInvoke[*handler.Handler](i).Router(), nil
	})
	do.Provide[*handle.URLHandler](injector, handle.NewURLHandler)

	return injector
}

