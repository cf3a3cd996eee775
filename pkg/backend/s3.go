package backend

import (
	"bytes"
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	awscreds "github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/concordat-io/concordat/pkg/credentials"
)

// ClientFactory builds an ObjectClient for a region/endpoint pair using
// resolved credential material. Swappable so tests avoid network access.
type ClientFactory func(region, endpoint string, material credentials.Material) ObjectClient

// NewObjectClient is the default ClientFactory: an S3 client with path-style
// addressing against the given endpoint, suitable for S3-compatible vendors.
func NewObjectClient(region, endpoint string, material credentials.Material) ObjectClient {
	client := s3.New(s3.Options{
		Region:       region,
		BaseEndpoint: aws.String(NormalizeEndpoint(endpoint)),
		UsePathStyle: true,
		Credentials: awscreds.NewStaticCredentialsProvider(
			material.AccessKey,
			material.SecretKey,
			material.SessionToken,
		),
	})
	return &s3ObjectClient{client: client}
}

type s3ObjectClient struct {
	client *s3.Client
}

func (c *s3ObjectClient) BucketVersioning(ctx context.Context, bucket string) (string, error) {
	out, err := c.client.GetBucketVersioning(ctx, &s3.GetBucketVersioningInput{
		Bucket: aws.String(bucket),
	})
	if err != nil {
		return "", err
	}
	return string(out.Status), nil
}

func (c *s3ObjectClient) PutObject(ctx context.Context, bucket, key string, body []byte) error {
	_, err := c.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(body),
	})
	return err
}

func (c *s3ObjectClient) DeleteObject(ctx context.Context, bucket, key string) error {
	_, err := c.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	return err
}
