package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"path"
	"slices"
	"time"

	"github.com/localwebb/backend/internal/util"
	"github.com/localwebb/backend/pkg/common"
	"github.com/localwebb/backend/pkg/layout"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

const snapshotPrefix = "layouts"

// ObjectStore is the subset of *s3.Client used for layout backups.
type ObjectStore interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

func NewS3Client(ctx context.Context) *s3.Client {
	region := util.GetEnv("AWS_REGION")
	endpoint := util.GetEnv("AWS_ENDPOINT")
	accessKey := util.GetEnv("AWS_ACCESS_KEY")
	secretKey := util.GetEnv("AWS_SECRET_KEY")
	cfg, err := config.LoadDefaultConfig(
		ctx,
		config.WithRegion(region),
		config.WithBaseEndpoint(endpoint),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			accessKey,
			secretKey,
			"",
		)),
	)
	if err != nil {
		return nil
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.UsePathStyle = true
	})
	return client
}

// LayoutSnapshot is the backup document written after a worker run.
type LayoutSnapshot struct {
	GraphID     string                  `json:"graph_id"`
	CreatedAt   time.Time               `json:"created_at"`
	Iterations  int                     `json:"iterations"`
	Frozen      []string                `json:"frozen,omitempty"`
	Positions   []common.PositionUpdate `json:"positions"`
	Communities []common.Community      `json:"communities,omitempty"`
}

// NewLayoutSnapshot captures the positions of a finished layout run.
func NewLayoutSnapshot(graphID string, res layout.Result, communities []common.Community) LayoutSnapshot {
	return LayoutSnapshot{
		GraphID:     graphID,
		CreatedAt:   time.Now().UTC(),
		Iterations:  res.Iterations,
		Frozen:      res.Frozen,
		Positions:   res.Positions,
		Communities: communities,
	}
}

func SnapshotKey(graphID string, at time.Time) string {
	return path.Join(snapshotPrefix, graphID, at.UTC().Format("20060102T150405.000Z")+".json")
}

// PutSnapshot uploads snap under a timestamped key and returns that key.
func PutSnapshot(ctx context.Context, client ObjectStore, snap LayoutSnapshot) (string, error) {
	bucket := util.GetEnv("AWS_BUCKET")
	body, err := json.Marshal(snap)
	if err != nil {
		return "", fmt.Errorf("failed to encode layout snapshot: %w", err)
	}

	key := SnapshotKey(snap.GraphID, snap.CreatedAt)
	_, err = client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload layout snapshot to S3: %w", err)
	}

	return key, nil
}

func GetSnapshot(ctx context.Context, client ObjectStore, key string) (LayoutSnapshot, error) {
	bucket := util.GetEnv("AWS_BUCKET")
	result, err := client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return LayoutSnapshot{}, fmt.Errorf("failed to get layout snapshot from S3: %w", err)
	}
	defer result.Body.Close()

	raw, err := io.ReadAll(result.Body)
	if err != nil {
		return LayoutSnapshot{}, fmt.Errorf("failed to read layout snapshot: %w", err)
	}
	var snap LayoutSnapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return LayoutSnapshot{}, fmt.Errorf("failed to decode layout snapshot %s: %w", key, err)
	}
	return snap, nil
}

// LatestSnapshotKey returns the newest backup of a graph, or "" if none exists.
// Timestamped keys sort lexically in time order.
func LatestSnapshotKey(ctx context.Context, client ObjectStore, graphID string) (string, error) {
	bucket := util.GetEnv("AWS_BUCKET")
	prefix := path.Join(snapshotPrefix, graphID) + "/"

	var keys []string
	listInput := &s3.ListObjectsV2Input{
		Bucket: aws.String(bucket),
		Prefix: aws.String(prefix),
	}

	for {
		listOutput, err := client.ListObjectsV2(ctx, listInput)
		if err != nil {
			return "", fmt.Errorf("failed to list objects with prefix %s: %w", prefix, err)
		}

		for _, obj := range listOutput.Contents {
			if obj.Key != nil {
				keys = append(keys, *obj.Key)
			}
		}

		if listOutput.IsTruncated != nil && *listOutput.IsTruncated {
			listInput.ContinuationToken = listOutput.NextContinuationToken
		} else {
			break
		}
	}

	if len(keys) == 0 {
		return "", nil
	}
	return slices.Max(keys), nil
}
