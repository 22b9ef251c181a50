package archive

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/alitto/pond"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3Types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/schollz/progressbar/v3"
)

type uploadAPI interface {
	Upload(ctx context.Context, input *s3.PutObjectInput, opts ...func(*manager.Uploader)) (*manager.UploadOutput, error)
}

type bucketAPI interface {
	CreateBucket(ctx context.Context, input *s3.CreateBucketInput, opts ...func(*s3.Options)) (*s3.CreateBucketOutput, error)
}

type S3ArchiveInput struct {
	AwsConfig         aws.Config
	Bucket            string
	UploadConcurrency int

	// Draw a progress bar while uploading.
	Progress bool
}

type S3Archive struct {
	input    *S3ArchiveInput
	s3       bucketAPI
	uploader uploadAPI
}

func NewS3Archive(input *S3ArchiveInput) *S3Archive {
	client := s3.NewFromConfig(input.AwsConfig)
	return &S3Archive{
		input: input,
		s3:    client,
		uploader: manager.NewUploader(client, func(u *manager.Uploader) {
			u.PartSize = 1024 * 1024 * 10
		}),
	}
}

// SetUp creates the bucket unless it already exists.
func (a *S3Archive) SetUp(ctx context.Context) error {
	in := &s3.CreateBucketInput{
		Bucket: &a.input.Bucket,
		ACL:    s3Types.BucketCannedACLPrivate,
	}
	// us-east-1 rejects an explicit location constraint
	if a.input.AwsConfig.Region != "" && a.input.AwsConfig.Region != "us-east-1" {
		in.CreateBucketConfiguration = &s3Types.CreateBucketConfiguration{
			LocationConstraint: s3Types.BucketLocationConstraint(a.input.AwsConfig.Region),
		}
	}
	_, err := a.s3.CreateBucket(ctx, in)
	var owned *s3Types.BucketAlreadyOwnedByYou
	if errors.As(err, &owned) {
		slog.Debug("bucket already exists", slog.String("name", a.input.Bucket))
		return nil
	} else if err != nil {
		return err
	}
	slog.Debug("created bucket", slog.String("name", a.input.Bucket))
	return nil
}

// Upload uploads every object concurrently. Every object is attempted; the first failure is returned.
func (a *S3Archive) Upload(ctx context.Context, objects []*ObjectSpec) error {
	slog.Info("uploading archive", slog.String("bucket", a.input.Bucket), slog.Int("objects", len(objects)))
	concurrency := max(a.input.UploadConcurrency, 1)
	errChan := make(chan error, len(objects))
	pool := pond.New(concurrency, 0, pond.MinWorkers(concurrency))
	var p *progressbar.ProgressBar
	if a.input.Progress {
		p = progressbar.Default(int64(len(objects)), "Uploading archive:")
	} else {
		p = progressbar.DefaultSilent(int64(len(objects)))
	}
	for _, obj := range objects {
		pool.Submit(func() {
			defer p.Add(1)
			if err := a.uploadOne(ctx, obj); err != nil {
				slog.Error("failed to upload object", slog.String("key", obj.Key), slog.String("error", err.Error()))
				errChan <- err
			}
		})
	}
	pool.StopAndWait()
	p.Finish()

	select {
	case err := <-errChan:
		return fmt.Errorf("some objects failed to upload: %w", err)
	default:
		slog.Info("done uploading", slog.String("bucket", a.input.Bucket))
		return nil
	}
}

func (a *S3Archive) uploadOne(ctx context.Context, obj *ObjectSpec) error {
	var body io.Reader
	if obj.Body != nil {
		body = bytes.NewReader(obj.Body)
	} else {
		f, err := os.Open(obj.Path)
		if err != nil {
			return err
		}
		defer f.Close()
		body = f
	}
	_, err := a.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket: &a.input.Bucket,
		Key:    &obj.Key,
		Body:   body,
	})
	return err
}
