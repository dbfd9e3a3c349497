package blob

import (
	"bytes"
	"context"
	"fmt"

	"google.golang.org/api/googleapi"
	goption "google.golang.org/api/option"
	gstorage "google.golang.org/api/storage/v1"
)

// GCS uploads blobs to a Google Cloud Storage bucket.
type GCS struct {
	svc    *gstorage.Service
	bucket string
}

var _ Uploader = (*GCS)(nil)

func NewGCS(ctx context.Context, bucket, credentialsFile string) (*GCS, error) {
	if bucket == "" {
		return nil, fmt.Errorf("gcs: missing bucket name")
	}

	var opts []goption.ClientOption
	if credentialsFile != "" {
		opts = append(opts, goption.WithCredentialsFile(credentialsFile))
	}
	svc, err := gstorage.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create storage service: %w", err)
	}
	return &GCS{svc: svc, bucket: bucket}, nil
}

func (g *GCS) Upload(ctx context.Context, name, contentType string, content []byte) (string, error) {
	obj := &gstorage.Object{Name: name}
	_, err := g.svc.Objects.Insert(g.bucket, obj).
		Media(bytes.NewReader(content), googleapi.ContentType(contentType)).
		Context(ctx).
		Do()
	if err != nil {
		return "", fmt.Errorf("upload %s to gcs: %w", name, err)
	}
	return fmt.Sprintf("https://storage.googleapis.com/%s/%s", g.bucket, name), nil
}
