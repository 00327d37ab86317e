package source

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
)

// ObjectAPI is the part of the S3 client an Object source needs.
type ObjectAPI interface {
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Params ...
type S3Params struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	// Endpoint overrides the S3 endpoint, e.g. for MinIO. Path-style addressing is used with it.
	Endpoint string
}

// NewS3Client creates an S3 client. Without static credentials the default AWS credential chain is used.
func NewS3Client(ctx context.Context, params S3Params) (*s3.Client, error) {
	options := []func(*config.LoadOptions) error{
		config.WithRegion(params.Region),
	}
	if params.AccessKeyID != "" && params.SecretAccessKey != "" {
		provider := credentials.NewStaticCredentialsProvider(params.AccessKeyID, params.SecretAccessKey, "")
		options = append(options, config.WithCredentialsProvider(provider))
	}

	cfg, err := config.LoadDefaultConfig(ctx, options...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	return s3.NewFromConfig(cfg, func(o *s3.Options) {
		if params.Endpoint != "" {
			o.BaseEndpoint = aws.String(params.Endpoint)
			o.UsePathStyle = true
		}
	}), nil
}

// Object is a media source streaming an S3 object.
// The object body is requested on the first Read.
type Object struct {
	body     io.ReadCloser
	open     func() (io.ReadCloser, error)
	size     int64
	mimeType string
}

// OpenS3 opens the object at bucket/key. An empty mimeType is taken from the object's Content-Type.
// Only the object's metadata is fetched here; ctx also bounds the body request made by the first Read.
func OpenS3(ctx context.Context, client ObjectAPI, bucket, key, mimeType string) (*Object, error) {
	head, err := client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, objectError(bucket, key, err)
	}

	size := aws.ToInt64(head.ContentLength)
	if mimeType == "" {
		mimeType = aws.ToString(head.ContentType)
	}
	if mimeType == "" {
		return nil, fmt.Errorf("object s3://%s/%s has no content type", bucket, key)
	}

	return &Object{
		open: func() (io.ReadCloser, error) {
			object, err := client.GetObject(ctx, &s3.GetObjectInput{
				Bucket:  aws.String(bucket),
				Key:     aws.String(key),
				IfMatch: head.ETag,
			})
			if err != nil {
				return nil, objectError(bucket, key, err)
			}
			return object.Body, nil
		},
		size:     size,
		mimeType: mimeType,
	}, nil
}

// Read ...
func (o *Object) Read(p []byte) (int, error) {
	if o.body == nil {
		body, err := o.open()
		if err != nil {
			return 0, err
		}
		o.body = body
	}
	return o.body.Read(p)
}

// Close releases the object body, if it was requested.
func (o *Object) Close() error {
	if o.body == nil {
		return nil
	}
	return o.body.Close()
}

// Size ...
func (o *Object) Size() int64 {
	return o.size
}

// MimeType ...
func (o *Object) MimeType() string {
	return o.mimeType
}

func objectError(bucket, key string, err error) error {
	var apiError smithy.APIError
	if errors.As(err, &apiError) {
		switch apiError.ErrorCode() {
		case "NotFound", "NoSuchKey":
			return fmt.Errorf("%w: s3://%s/%s", ErrNotFound, bucket, key)
		}
	}
	return fmt.Errorf("get object s3://%s/%s: %w", bucket, key, err)
}
