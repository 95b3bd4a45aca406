package server

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	"github.com/Hyeon6492/LifeBit/internal/config"
)

// AudioStore archives uploaded voice clips.
type AudioStore interface {
	Put(ctx context.Context, key string, clip AudioClip) (string, error)
}

type s3PutAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3AudioStore writes clips to an S3 compatible bucket.
type S3AudioStore struct {
	client s3PutAPI
	bucket string
}

var errAudioBucketMissing = errors.New("AUDIO_BUCKET is not configured")

// NewS3AudioStore builds a store from the AUDIO_* settings. Static keys are
// used when both are set; otherwise the default AWS credential chain applies.
// A custom endpoint switches to path-style addressing for MinIO and similar.
func NewS3AudioStore(ctx context.Context, cfg config.Config) (*S3AudioStore, error) {
	bucket := strings.TrimSpace(cfg.AudioBucket)
	if bucket == "" {
		return nil, errAudioBucketMissing
	}

	loadOpts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.AudioRegion),
	}
	if cfg.AudioAccessKey != "" && cfg.AudioSecretKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AudioAccessKey, cfg.AudioSecretKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	endpoint := strings.TrimSpace(cfg.AudioEndpoint)
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		}
	})
	return &S3AudioStore{client: client, bucket: bucket}, nil
}

func (s *S3AudioStore) Put(ctx context.Context, key string, clip AudioClip) (string, error) {
	contentType := clip.ContentType
	if strings.TrimSpace(contentType) == "" {
		contentType = "application/octet-stream"
	}
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(clip.Data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("put s3://%s/%s: %w", s.bucket, key, err)
	}
	return key, nil
}

// audioObjectKey lays clips out as voice/<user>/<date>/<uuid><ext>.
// Anonymous uploads go under "anonymous".
func audioObjectKey(userID int64, filename string, at time.Time) string {
	owner := "anonymous"
	if userID > 0 {
		owner = strconv.FormatInt(userID, 10)
	}
	ext := strings.ToLower(filepath.Ext(filename))
	if ext == "" {
		ext = ".webm"
	}
	return fmt.Sprintf("voice/%s/%s/%s%s", owner, at.UTC().Format(dateLayout), uuid.NewString(), ext)
}
