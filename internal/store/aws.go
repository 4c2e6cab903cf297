package store

import (
	"bytes"
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudfront"
	cftypes "github.com/aws/aws-sdk-go-v2/service/cloudfront/types"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/dmorgan81/imagen/internal/config"
	"github.com/dmorgan81/imagen/internal/log"
	"github.com/samber/do"
	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"
)

const headConcurrency = 8

type s3API interface {
	s3.ListObjectsV2APIClient
	PutObject(context.Context, *s3.PutObjectInput, ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	HeadObject(context.Context, *s3.HeadObjectInput, ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
}

type S3Archive struct {
	client s3API
	bucket string
}

func NewS3Archive(i *do.Injector) (Archive, error) {
	return &S3Archive{
		client: do.MustInvoke[*s3.Client](i),
		bucket: do.MustInvoke[config.Config](i).Bucket,
	}, nil
}

func (a *S3Archive) Upload(ctx context.Context, params UploadParams) error {
	log := log.FromContextOrDiscard(ctx).WithGroup("s3").With(
		"name", params.Name,
		"content-type", params.ContentType,
		"bucket", a.bucket,
	)
	log.Info("uploading to s3")

	_, err := a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:       aws.String(a.bucket),
		Key:          aws.String(params.Name),
		ContentType:  aws.String(params.ContentType),
		Body:         bytes.NewReader(params.Data),
		Metadata:     params.Metadata,
		StorageClass: s3types.StorageClassIntelligentTiering,
	})
	return err
}

// List walks the bucket and fetches metadata for every archived image.
func (a *S3Archive) List(ctx context.Context) ([]Object, error) {
	log := log.FromContextOrDiscard(ctx).WithGroup("s3").With("bucket", a.bucket)
	log.Info("listing archive")

	pager := s3.NewListObjectsV2Paginator(a.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(a.bucket),
	})

	var keys []string
	for pager.HasMorePages() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		keys = append(keys, lo.FilterMap(page.Contents, func(o s3types.Object, _ int) (string, bool) {
			key := aws.ToString(o.Key)
			return key, IsListed(key)
		})...)
	}

	objects := make([]Object, len(keys))
	group, ctx := errgroup.WithContext(ctx)
	group.SetLimit(headConcurrency)
	for idx, key := range keys {
		idx, key := idx, key
		group.Go(func() error {
			out, err := a.client.HeadObject(ctx, &s3.HeadObjectInput{
				Bucket: aws.String(a.bucket),
				Key:    aws.String(key),
			})
			if err != nil {
				return err
			}
			objects[idx] = Object{
				Name:     key,
				Metadata: out.Metadata,
				Updated:  aws.ToTime(out.LastModified),
			}
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}
	return objects, nil
}

type cloudFrontAPI interface {
	CreateInvalidation(context.Context, *cloudfront.CreateInvalidationInput, ...func(*cloudfront.Options)) (*cloudfront.CreateInvalidationOutput, error)
}

type CloudFrontInvalidator struct {
	client       cloudFrontAPI
	distribution string
}

func NewCloudFrontInvalidator(i *do.Injector) (Invalidator, error) {
	return &CloudFrontInvalidator{
		client:       do.MustInvoke[*cloudfront.Client](i),
		distribution: do.MustInvoke[config.Config](i).Distribution,
	}, nil
}

func (i *CloudFrontInvalidator) Invalidate(ctx context.Context, paths []string) error {
	log := log.FromContextOrDiscard(ctx).WithGroup("cloudfront").With("paths", paths, "distribution", i.distribution)
	log.Info("invalidating paths in cloudfront")

	_, err := i.client.CreateInvalidation(ctx, &cloudfront.CreateInvalidationInput{
		DistributionId: aws.String(i.distribution),
		InvalidationBatch: &cftypes.InvalidationBatch{
			CallerReference: aws.String(time.Now().UTC().Format("20060102150405.000000000")),
			Paths: &cftypes.Paths{
				Quantity: aws.Int32(int32(len(paths))),
				Items:    paths,
			},
		},
	})
	return err
}
