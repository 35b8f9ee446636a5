package cloud

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

const presignExpiry = time.Hour

// S3API is the part of the S3 client the report store uses.
type S3API interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Presigner issues temporary download links.
type Presigner interface {
	PresignGetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

// S3Client stores analysis reports and hands out presigned links to them.
type S3Client struct {
	svc     S3API
	presign Presigner
	bucket  string
	now     func() time.Time
}

func NewS3Client(cfg aws.Config, bucket string) *S3Client {
	svc := s3.NewFromConfig(cfg)
	return NewS3ClientWith(svc, s3.NewPresignClient(svc), bucket)
}

// NewS3ClientWith builds a client over explicit API implementations.
func NewS3ClientWith(svc S3API, presign Presigner, bucket string) *S3Client {
	return &S3Client{svc: svc, presign: presign, bucket: bucket, now: time.Now}
}

// UploadReport stores data under key and returns a presigned download URL
// valid for one hour.
func (c *S3Client) UploadReport(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	_, err := c.svc.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(c.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
		Metadata: map[string]string{
			"uploaded-at": c.now().UTC().Format(time.RFC3339),
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload to S3: %w", err)
	}

	req, err := c.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
	}, func(opts *s3.PresignOptions) {
		opts.Expires = presignExpiry
	})
	if err != nil {
		return "", fmt.Errorf("failed to generate presigned URL: %w", err)
	}
	return req.URL, nil
}

// ReportKey names the object of an analysis report for unit generated at t.
func ReportKey(unit string, t time.Time) string {
	return fmt.Sprintf("reports/%s/%s/analysis-%s.json", unit, t.UTC().Format("2006-01-02"), t.UTC().Format("150405"))
}
