// Package objectstore wraps the S3-compatible warm tier: transfer-put and
// transfer-get stream whole objects through it, archive-put reads objects
// to bundle onto tape, and archive-get writes extracted aggregate members
// back into it (§4.5.1).
package objectstore

import (
	"context"
	"crypto/sha256"
	"crypto/tls"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// Client addresses one tenancy on the object store.
type Client struct {
	s3     *s3.Client
	bucket string
}

// Config describes how to reach a tenancy's S3-compatible endpoint.
type Config struct {
	Endpoint      string
	Region        string
	AccessKey     string
	SecretKey     string
	Bucket        string // every caller passes the tenancy; the transaction id is the key's first segment (see ObjectName)
	RequireSecure bool
}

// NewClient builds an S3 client bound to a single tenancy/bucket, honouring
// the secure-transport toggle against TLS certificate verification.
func NewClient(cfg Config) *Client {
	httpClient := &http.Client{
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: !cfg.RequireSecure}, //nolint:gosec
		},
	}

	creds := credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")

	c := s3.New(s3.Options{
		Region:       cfg.Region,
		Credentials:  creds,
		HTTPClient:   httpClient,
		UsePathStyle: true,
		BaseEndpoint: aws.String(cfg.Endpoint),
	})

	return &Client{s3: c, bucket: cfg.Bucket}
}

// ObjectName derives the deterministic name transfer-put assigns an object:
// sha256 of the original path, prefixed by the transaction id, matching
// the addressing scheme in S1.
func ObjectName(transactionID, originalPath string) string {
	sum := sha256.Sum256([]byte(originalPath))
	return transactionID + "/" + hex.EncodeToString(sum[:])
}

// Put streams body up under objectName. Idempotent under replay: a
// pre-existing object with the same name is simply overwritten, since
// object_name derivation is deterministic from transaction id and path, so
// a retried put targets the exact same key.
func (c *Client) Put(ctx context.Context, objectName string, body io.Reader, size int64) error {
	_, err := c.s3.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(c.bucket),
		Key:           aws.String(objectName),
		Body:          body,
		ContentLength: aws.Int64(size),
	})
	if err != nil {
		return fmt.Errorf("objectstore: put %s: %w", objectName, err)
	}

	return nil
}

// Exists reports whether objectName is already present, used by
// transfer-put to skip re-uploading an object that a previous, crashed
// attempt already wrote (idempotence under at-least-once delivery).
func (c *Client) Exists(ctx context.Context, objectName string) (bool, error) {
	_, err := c.s3.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(objectName),
	})
	if err != nil {
		return false, nil //nolint:nilerr // treat any head failure as "not present"; caller will attempt Put
	}

	return true, nil
}

// Get streams objectName back; the caller is responsible for closing the
// returned ReadCloser.
func (c *Client) Get(ctx context.Context, objectName string) (io.ReadCloser, error) {
	out, err := c.s3.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(objectName),
	})
	if err != nil {
		return nil, fmt.Errorf("objectstore: get %s: %w", objectName, err)
	}

	return out.Body, nil
}

// Delete removes objectName, used when transfer-put fails permanently and
// the provisional upload (if any) must be cleaned up.
func (c *Client) Delete(ctx context.Context, objectName string) error {
	_, err := c.s3.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(objectName),
	})
	if err != nil {
		return fmt.Errorf("objectstore: delete %s: %w", objectName, err)
	}

	return nil
}
