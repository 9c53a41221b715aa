package state

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	dbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/terrane-io/terrane/internal/ir"
)

// S3Store keeps state as a JSON object in S3, with optional run locking
// through a DynamoDB conditional put. Per-key upserts are
// read-modify-write against the object, serialized by a local mutex;
// cross-process exclusion comes from the DynamoDB lock.
type S3Store struct {
	bucket        string
	key           string
	region        string
	dynamoDBTable string
	encrypt       bool
	profile       string

	s3Client *s3.Client
	dbClient *dynamodb.Client
	lockID   string

	mu sync.Mutex
}

// NewS3Store builds an S3 store from backend configuration. Required
// key: "bucket". Optional: "key", "region", "dynamodb_table",
// "encrypt", "profile".
func NewS3Store(ctx context.Context, config map[string]string) (*S3Store, error) {
	bucket := config["bucket"]
	if bucket == "" {
		return nil, fmt.Errorf("s3 state store requires 'bucket' configuration")
	}

	key := config["key"]
	if key == "" {
		key = "terrane/state.json"
	}

	region := config["region"]
	if region == "" {
		region = "us-east-1"
	}

	s := &S3Store{
		bucket:        bucket,
		key:           key,
		region:        region,
		dynamoDBTable: config["dynamodb_table"],
		encrypt:       config["encrypt"] == "true",
		profile:       config["profile"],
	}

	var opts []func(*awsconfig.LoadOptions) error
	opts = append(opts, awsconfig.WithRegion(s.region))
	if s.profile != "" {
		opts = append(opts, awsconfig.WithSharedConfigProfile(s.profile))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("unable to load AWS config: %w", err)
	}

	s.s3Client = s3.NewFromConfig(cfg)
	if s.dynamoDBTable != "" {
		s.dbClient = dynamodb.NewFromConfig(cfg)
	}

	return s, nil
}

func (s *S3Store) Load(ctx context.Context) (map[string]*ir.StateRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadLocked(ctx)
}

func (s *S3Store) Save(ctx context.Context, id string, rec *ir.StateRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.loadLocked(ctx)
	if err != nil {
		return err
	}
	records[id] = rec
	return s.writeLocked(ctx, records)
}

func (s *S3Store) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.loadLocked(ctx)
	if err != nil {
		return err
	}
	if _, ok := records[id]; !ok {
		return nil
	}
	delete(records, id)
	return s.writeLocked(ctx, records)
}

func (s *S3Store) loadLocked(ctx context.Context) (map[string]*ir.StateRecord, error) {
	result, err := s.s3Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key),
	})
	if err != nil {
		var nsk *s3types.NoSuchKey
		if errors.As(err, &nsk) {
			return make(map[string]*ir.StateRecord), nil
		}
		// Some S3-compatible endpoints surface the missing key as a 404
		// without the typed error.
		if strings.Contains(err.Error(), "NoSuchKey") || strings.Contains(err.Error(), "404") {
			return make(map[string]*ir.StateRecord), nil
		}
		return nil, fmt.Errorf("failed to read state from s3://%s/%s: %w", s.bucket, s.key, err)
	}
	defer result.Body.Close()

	content, err := io.ReadAll(result.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read S3 object body: %w", err)
	}

	content, err = DecryptState(content)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt remote state: %w", err)
	}

	var records map[string]*ir.StateRecord
	if err := json.Unmarshal(content, &records); err != nil {
		return nil, fmt.Errorf("failed to parse remote state: %w", err)
	}
	if records == nil {
		records = make(map[string]*ir.StateRecord)
	}
	return records, nil
}

func (s *S3Store) writeLocked(ctx context.Context, records map[string]*ir.StateRecord) error {
	raw, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode state: %w", err)
	}

	encrypted, err := EncryptState(raw)
	if err != nil {
		return fmt.Errorf("failed to encrypt state: %w", err)
	}

	input := &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key),
		Body:   bytes.NewReader(encrypted),
	}
	if s.encrypt {
		input.ServerSideEncryption = s3types.ServerSideEncryptionAes256
	}

	if _, err := s.s3Client.PutObject(ctx, input); err != nil {
		return fmt.Errorf("failed to write state to s3://%s/%s: %w", s.bucket, s.key, err)
	}
	return nil
}

// Lock acquires a DynamoDB conditional-put lock. Without a configured
// table, locking is a no-op.
func (s *S3Store) Lock() error {
	if s.dynamoDBTable == "" {
		return nil
	}

	s.lockID = fmt.Sprintf("terrane-%d-%d", os.Getpid(), time.Now().UnixNano())

	_, err := s.dbClient.PutItem(context.Background(), &dynamodb.PutItemInput{
		TableName: aws.String(s.dynamoDBTable),
		Item: map[string]dbtypes.AttributeValue{
			"LockID":  &dbtypes.AttributeValueMemberS{Value: s.key},
			"Info":    &dbtypes.AttributeValueMemberS{Value: s.lockID},
			"Created": &dbtypes.AttributeValueMemberS{Value: time.Now().UTC().Format(time.RFC3339)},
		},
		ConditionExpression: aws.String("attribute_not_exists(LockID)"),
	})
	if err != nil {
		if strings.Contains(err.Error(), "ConditionalCheckFailedException") {
			return fmt.Errorf("state is locked by another process. If this is an error, "+
				"manually delete the lock item with LockID=%q from DynamoDB table %q", s.key, s.dynamoDBTable)
		}
		return fmt.Errorf("failed to acquire lock: %w", err)
	}

	return nil
}

// Unlock releases the DynamoDB lock.
func (s *S3Store) Unlock() error {
	if s.dynamoDBTable == "" {
		return nil
	}

	_, err := s.dbClient.DeleteItem(context.Background(), &dynamodb.DeleteItemInput{
		TableName: aws.String(s.dynamoDBTable),
		Key: map[string]dbtypes.AttributeValue{
			"LockID": &dbtypes.AttributeValueMemberS{Value: s.key},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to release lock: %w", err)
	}
	return nil
}

// Open builds a store from backend configuration, defaulting to a
// local file store at path when cfg is nil or names the file type.
func Open(ctx context.Context, cfg *Config, path string) (Store, error) {
	if cfg == nil || cfg.Type == "" || cfg.Type == "file" {
		return NewFileStore(path), nil
	}
	switch cfg.Type {
	case "s3":
		return NewS3Store(ctx, cfg.Config)
	default:
		return nil, fmt.Errorf("unknown state store type: %s", cfg.Type)
	}
}
