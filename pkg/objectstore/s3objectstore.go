// Package objectstore implements types.ObjectStore on S3, in memory, and as
// a gzip layer over another store.
package objectstore

import (
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/weberc2/sfs/pkg/types"
)

type S3ObjectStore struct {
	Client *s3.S3
}

// NewS3ObjectStore builds a client from the shared AWS configuration
// (environment, ~/.aws). A non-empty `endpoint` points it at an
// S3-compatible service instead, using path-style addressing.
func NewS3ObjectStore(region, endpoint string) (*S3ObjectStore, error) {
	config := aws.NewConfig()
	if region != "" {
		config = config.WithRegion(region)
	}
	if endpoint != "" {
		config = config.WithEndpoint(endpoint).WithS3ForcePathStyle(true)
	}
	sess, err := session.NewSessionWithOptions(session.Options{
		Config:            *config,
		SharedConfigState: session.SharedConfigEnable,
	})
	if err != nil {
		return nil, fmt.Errorf("creating aws session: %w", err)
	}
	return &S3ObjectStore{Client: s3.New(sess)}, nil
}

func (os *S3ObjectStore) PutObject(bucket, key string, data io.ReadSeeker) error {
	if _, err := os.Client.PutObject(&s3.PutObjectInput{
		Bucket: &bucket,
		Key:    &key,
		Body:   data,
	}); err != nil {
		return fmt.Errorf(
			"putting object in bucket `%s` at key `%s`: %w",
			bucket,
			key,
			err,
		)
	}
	return nil
}

func (os *S3ObjectStore) GetObject(bucket, key string) (io.ReadCloser, error) {
	rsp, err := os.Client.GetObject(&s3.GetObjectInput{
		Bucket: &bucket,
		Key:    &key,
	})
	if err != nil {
		var awsErr awserr.Error
		if errors.As(err, &awsErr) && awsErr.Code() == s3.ErrCodeNoSuchKey {
			return nil, &types.ObjectNotFoundErr{Bucket: bucket, Key: key}
		}
		return nil, fmt.Errorf(
			"getting object from bucket `%s` at key `%s`: %w",
			bucket,
			key,
			err,
		)
	}
	return rsp.Body, nil
}

func (os *S3ObjectStore) ListObjects(bucket, prefix string) ([]string, error) {
	var keys []string
	if err := os.Client.ListObjectsPages(
		&s3.ListObjectsInput{
			Bucket: &bucket,
			Prefix: &prefix,
		},
		func(rsp *s3.ListObjectsOutput, lastPage bool) bool {
			for _, object := range rsp.Contents {
				keys = append(keys, *object.Key)
			}
			return true
		},
	); err != nil {
		return keys, fmt.Errorf(
			"listing objects in bucket `%s` with prefix `%s`: %w",
			bucket,
			prefix,
			err,
		)
	}
	return keys, nil
}

func (os *S3ObjectStore) DeleteObject(bucket, key string) error {
	if _, err := os.Client.DeleteObject(&s3.DeleteObjectInput{
		Bucket: &bucket,
		Key:    &key,
	}); err != nil {
		return fmt.Errorf(
			"deleting object from bucket `%s` at key `%s`: %w",
			bucket,
			key,
			err,
		)
	}
	return nil
}
