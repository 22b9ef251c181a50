package main

import (
	"bytes"
	"fmt"
	"path"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/spf13/cobra"

	"github.com/Octogonapus/GalaxyBenchmark/archive"
	"github.com/Octogonapus/GalaxyBenchmark/report"
)

var archiveCmd = &cobra.Command{
	Use:   "archive",
	Short: "Upload the invocation and metrics records and a CSV summary to S3",
	Args:  cobra.NoArgs,
	RunE:  runArchive,
}

var archiveBucket string

func init() {
	archiveCmd.Flags().StringVar(&archiveBucket, "bucket", "", "Bucket to upload to (default: the archive.bucket setting)")
	rootCmd.AddCommand(archiveCmd)
}

func runArchive(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	bucket := archiveBucket
	if bucket == "" {
		bucket = settings.Archive.Bucket
	}
	if bucket == "" {
		return fmt.Errorf("no bucket: set archive.bucket or pass --bucket")
	}

	var summary bytes.Buffer
	if err := report.Summarize(ctx, settings.MetricsDir, &summary); err != nil {
		return err
	}
	prefix := path.Join(settings.Archive.Prefix, time.Now().UTC().Format("20060102T150405Z"))
	objects := []*archive.ObjectSpec{{Key: path.Join(prefix, "summary.csv"), Body: summary.Bytes()}}
	for _, dir := range []string{settings.InvocationsDir, settings.MetricsDir} {
		objs, err := archive.CollectDir(prefix, dir)
		if err != nil {
			return err
		}
		objects = append(objects, objs...)
	}

	opts := []func(*awsconfig.LoadOptions) error{}
	if settings.Archive.Region != "" {
		opts = append(opts, awsconfig.WithRegion(settings.Archive.Region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return err
	}
	a := archive.NewS3Archive(&archive.S3ArchiveInput{
		AwsConfig:         cfg,
		Bucket:            bucket,
		UploadConcurrency: settings.Archive.Concurrency,
		Progress:          true,
	})
	if err := a.SetUp(ctx); err != nil {
		return err
	}
	return a.Upload(ctx, objects)
}
