// Package s3 implements artifact.Store on an S3 bucket. URIs look like
// s3://<bucket>/<key>; the bucket is fixed per store, keys are the hex
// SHA-256 of the payload so uploads are deduplicated the same way the
// filesystem store deduplicates.
package s3

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/tank-bohr/baza/artifact"
)

// Store keeps payloads in one S3 bucket.
type Store struct {
	client *awss3.Client
	bucket string
	prefix string
}

var _ artifact.Store = (*Store)(nil)

// Option configures a Store.
type Option func(*Store)

// WithPrefix prepends a key prefix to every object.
func WithPrefix(p string) Option {
	return func(s *Store) { s.prefix = strings.TrimSuffix(p, "/") + "/" }
}

// New creates a Store on top of an existing S3 client. The caller owns
// the client and its credentials.
func New(client *awss3.Client, bucket string, opts ...Option) *Store {
	s := &Store{client: client, bucket: bucket}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Load downloads the object behind uri into dst.
func (s *Store) Load(ctx context.Context, uri, dst string) error {
	key, err := s.key(uri)
	if err != nil {
		return err
	}

	out, err := s.client.GetObject(ctx, &awss3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("baza/artifact/s3: get %s: %w", uri, err)
	}
	defer out.Body.Close()

	file, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("baza/artifact/s3: create %s: %w", dst, err)
	}
	defer file.Close()

	if _, err := io.Copy(file, out.Body); err != nil {
		return fmt.Errorf("baza/artifact/s3: download %s: %w", uri, err)
	}
	return nil
}

// Save uploads the file at src under its content digest and returns the
// object's URI.
func (s *Store) Save(ctx context.Context, src string) (string, error) {
	file, err := os.Open(src)
	if err != nil {
		return "", fmt.Errorf("baza/artifact/s3: open %s: %w", src, err)
	}
	defer file.Close()

	h := sha256.New()
	if _, err := io.Copy(h, file); err != nil {
		return "", fmt.Errorf("baza/artifact/s3: hash %s: %w", src, err)
	}
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		return "", fmt.Errorf("baza/artifact/s3: rewind %s: %w", src, err)
	}
	key := s.prefix + hex.EncodeToString(h.Sum(nil))

	_, err = s.client.PutObject(ctx, &awss3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   file,
	})
	if err != nil {
		return "", fmt.Errorf("baza/artifact/s3: put %s: %w", key, err)
	}
	return "s3://" + s.bucket + "/" + key, nil
}

// Purge deletes the object. A missing object is not an error.
func (s *Store) Purge(ctx context.Context, uri string) error {
	key, err := s.key(uri)
	if err != nil {
		return err
	}

	_, err = s.client.DeleteObject(ctx, &awss3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	var nsk *types.NoSuchKey
	if err != nil && !errors.As(err, &nsk) {
		return fmt.Errorf("baza/artifact/s3: delete %s: %w", uri, err)
	}
	return nil
}

func (s *Store) key(uri string) (string, error) {
	rest, ok := strings.CutPrefix(uri, "s3://")
	if !ok {
		return "", fmt.Errorf("baza/artifact/s3: malformed uri %q", uri)
	}
	bucket, key, ok := strings.Cut(rest, "/")
	if !ok || bucket != s.bucket || key == "" {
		return "", fmt.Errorf("baza/artifact/s3: uri %q does not belong to bucket %q", uri, s.bucket)
	}
	return key, nil
}
