package services

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"time"

	"github.com/dmitrijs2005/leadkeeper/internal/dbx"
	"github.com/dmitrijs2005/leadkeeper/internal/logging"
	sc "github.com/dmitrijs2005/leadkeeper/internal/server/config"
	"github.com/dmitrijs2005/leadkeeper/internal/server/models"
	"github.com/dmitrijs2005/leadkeeper/internal/server/repositories/repomanager"
	"github.com/google/uuid"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// StatementURLValidity is how long a presigned statement link works.
const StatementURLValidity = 15 * time.Minute

var (
	loadDefaultAWSConfig = config.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		return s3.NewFromConfig(cfg, optFns...)
	}

	newS3PresignClient = func(c *s3.Client) *s3.PresignClient {
		return s3.NewPresignClient(c)
	}

	putObject = func(c *s3.Client, ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
		return c.PutObject(ctx, in, optFns...)
	}

	presignGetObject = func(pc *s3.PresignClient, ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		return pc.PresignGetObject(ctx, in, optFns...)
	}
)

var statementHeader = []string{"created_at", "transaction_id", "kind", "lead_id", "field_group", "reason", "amount", "balance_after"}

// StatementService exports a user's transaction history as CSV to the
// S3-compatible bucket and hands back a short-lived download link.
type StatementService struct {
	repomanager repomanager.RepositoryManager
	config      *sc.Config
	logger      logging.Logger
	now         func() time.Time
}

func NewStatementService(m repomanager.RepositoryManager, cfg *sc.Config, logger logging.Logger) *StatementService {
	return &StatementService{
		repomanager: m,
		config:      cfg,
		logger:      logger.With("module", "statements"),
		now:         time.Now,
	}
}

// StatementKey returns the object key of a new statement for userID.
func StatementKey(userID string, at time.Time) string {
	return fmt.Sprintf("statements/%s/%s/%v.csv", userID, at.UTC().Format("2006-01-02"), uuid.New())
}

func (s *StatementService) getS3Client(ctx context.Context) (*s3.Client, error) {
	cfg, err := loadDefaultAWSConfig(ctx,
		config.WithRegion(s.config.S3Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			s.config.S3RootUser,     // MINIO_ROOT_USER
			s.config.S3RootPassword, // MINIO_ROOT_PASSWORD
			"",
		)))
	if err != nil {
		return nil, err
	}

	return newS3ClientFromConfig(cfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(s.config.S3BaseEndpoint)
		o.UsePathStyle = true
	}), nil
}

// Export uploads the full history of userID, oldest first.
func (s *StatementService) Export(ctx context.Context, userID string) (*models.Statement, error) {
	list, err := s.repomanager.Ledger().ListTransactions(ctx, userID, 0)
	if err != nil {
		return nil, dbx.Classify(err)
	}

	body, err := RenderStatement(list)
	if err != nil {
		return nil, err
	}

	client, err := s.getS3Client(ctx)
	if err != nil {
		return nil, fmt.Errorf("s3 config: %w", err)
	}

	bucket := s.config.S3Bucket
	key := StatementKey(userID, s.now())

	if _, err := putObject(client, ctx, &s3.PutObjectInput{
		Bucket:      &bucket,
		Key:         &key,
		Body:        bytes.NewReader(body),
		ContentType: aws.String("text/csv"),
	}); err != nil {
		return nil, fmt.Errorf("upload statement: %w", err)
	}

	req, err := presignGetObject(newS3PresignClient(client), ctx, &s3.GetObjectInput{
		Bucket: &bucket,
		Key:    &key,
	}, s3.WithPresignExpires(StatementURLValidity))
	if err != nil {
		return nil, fmt.Errorf("presign statement: %w", err)
	}

	s.logger.Info(ctx, "statement exported", "user_id", userID, "key", key, "rows", len(list))
	return &models.Statement{Key: key, URL: req.URL}, nil
}

// RenderStatement writes transactions as CSV. Input is newest first, as
// returned by the ledger; rows come out oldest first.
func RenderStatement(list []*models.Transaction) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write(statementHeader); err != nil {
		return nil, err
	}
	for i := len(list) - 1; i >= 0; i-- {
		t := list[i]
		rec := []string{
			t.CreatedAt.UTC().Format(time.RFC3339),
			t.ID,
			t.Kind,
			t.LeadID,
			t.FieldGroup,
			t.Reason,
			t.Amount.StringFixed(2),
			t.BalanceAfter.StringFixed(2),
		}
		if err := w.Write(rec); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
