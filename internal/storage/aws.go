// Package storage holds the AWS-backed stores the worker can read from: a
// DynamoDB invite table, as an alternative record service to Postgres, and
// S3-hosted invite templates.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/flowdose/invite-dispatcher/internal/domain"
	"github.com/flowdose/invite-dispatcher/internal/service/invite"
)

// DynamoAPI is the subset of the DynamoDB client used here.
type DynamoAPI interface {
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
}

// S3API is the subset of the S3 client used here.
type S3API interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// LoadAWSConfig loads the default AWS config for region, optionally from a
// named shared profile.
func LoadAWSConfig(ctx context.Context, region, profile string) (aws.Config, error) {
	opts := []func(*config.LoadOptions) error{config.WithRegion(region)}
	if profile != "" {
		opts = append(opts, config.WithSharedConfigProfile(profile))
	}
	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("loading AWS config: %w", err)
	}
	return cfg, nil
}

// InviteTable implements invite.Repository over a DynamoDB table whose
// partition key is the invite id. Items are returned with whatever attributes
// they carry so field reconciliation can cope with schema drift.
type InviteTable struct {
	client    DynamoAPI
	tableName string
	keyAttr   string
}

// NewInviteTable creates a DynamoDB-backed invite repository.
func NewInviteTable(client DynamoAPI, tableName, keyAttr string) *InviteTable {
	if keyAttr == "" {
		keyAttr = "id"
	}
	return &InviteTable{client: client, tableName: tableName, keyAttr: keyAttr}
}

// NewInviteTableFromConfig builds the DynamoDB client from cfg.
func NewInviteTableFromConfig(cfg aws.Config, tableName, keyAttr string) *InviteTable {
	return NewInviteTable(dynamodb.NewFromConfig(cfg), tableName, keyAttr)
}

func (t *InviteTable) ListInvites(ctx context.Context, f invite.ListFilter) ([]domain.RawRecord, error) {
	result, err := t.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(t.tableName),
		KeyConditionExpression: aws.String("#k = :id"),
		ExpressionAttributeNames: map[string]string{
			"#k": t.keyAttr,
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":id": &types.AttributeValueMemberS{Value: f.ID},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("querying invites: %w", err)
	}

	out := make([]domain.RawRecord, 0, len(result.Items))
	for _, item := range result.Items {
		var rec map[string]interface{}
		if err := attributevalue.UnmarshalMap(item, &rec); err != nil {
			return nil, fmt.Errorf("unmarshaling invite: %w", err)
		}
		out = append(out, domain.RawRecord(rec))
	}
	return out, nil
}

// ErrNotS3URL is returned when a template location is not an s3:// URL.
var ErrNotS3URL = errors.New("not an s3:// url")

// IsS3URL reports whether loc names an S3 object.
func IsS3URL(loc string) bool {
	return strings.HasPrefix(loc, "s3://")
}

// TemplateStore reads invite templates from S3.
type TemplateStore struct {
	client S3API
}

// NewTemplateStore wraps an S3 client.
func NewTemplateStore(client S3API) *TemplateStore {
	return &TemplateStore{client: client}
}

// NewTemplateStoreFromConfig builds the S3 client from cfg.
func NewTemplateStoreFromConfig(cfg aws.Config) *TemplateStore {
	return NewTemplateStore(s3.NewFromConfig(cfg))
}

// ReadTemplate downloads the object at loc ("s3://bucket/key").
func (s *TemplateStore) ReadTemplate(ctx context.Context, loc string) (string, error) {
	bucket, key, err := parseS3URL(loc)
	if err != nil {
		return "", err
	}

	result, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return "", fmt.Errorf("failed to download from S3: %w", err)
	}
	defer result.Body.Close()

	data, err := io.ReadAll(result.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read S3 object: %w", err)
	}
	return string(data), nil
}

func parseS3URL(loc string) (bucket, key string, err error) {
	u, err := url.Parse(loc)
	if err != nil {
		return "", "", fmt.Errorf("parse %q: %w", loc, err)
	}
	if u.Scheme != "s3" {
		return "", "", fmt.Errorf("%q: %w", loc, ErrNotS3URL)
	}
	key = strings.TrimPrefix(u.Path, "/")
	if u.Host == "" || key == "" {
		return "", "", fmt.Errorf("%q: bucket and key are required", loc)
	}
	return u.Host, key, nil
}
