package services

import (
	"context"
	"encoding/csv"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/dmitrijs2005/leadkeeper/internal/logging"
	sc "github.com/dmitrijs2005/leadkeeper/internal/server/config"
	"github.com/dmitrijs2005/leadkeeper/internal/server/models"
	"github.com/dmitrijs2005/leadkeeper/internal/server/pricing"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func statementConfig() *sc.Config {
	return &sc.Config{
		S3Region:       "us-east-1",
		S3RootUser:     "minioadmin",
		S3RootPassword: "minioadmin",
		S3BaseEndpoint: "http://127.0.0.1:9000",
		S3Bucket:       "statements",
	}
}

// stubS3 swaps the AWS seams for the duration of the test and records the
// uploaded object.
func stubS3(t *testing.T, putErr error) (uploaded *s3.PutObjectInput, body *[]byte) {
	t.Helper()

	origLoad := loadDefaultAWSConfig
	origNewS3 := newS3ClientFromConfig
	origNewPre := newS3PresignClient
	origPut := putObject
	origGet := presignGetObject
	t.Cleanup(func() {
		loadDefaultAWSConfig = origLoad
		newS3ClientFromConfig = origNewS3
		newS3PresignClient = origNewPre
		putObject = origPut
		presignGetObject = origGet
	})

	loadDefaultAWSConfig = func(ctx context.Context, optFns ...func(*awsconfig.LoadOptions) error) (aws.Config, error) {
		var lo awsconfig.LoadOptions
		for _, fn := range optFns {
			if err := fn(&lo); err != nil {
				t.Fatalf("load options fn error: %v", err)
			}
		}
		if lo.Region != "us-east-1" {
			t.Fatalf("region not applied: %q", lo.Region)
		}
		return aws.Config{}, nil
	}
	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		var opts s3.Options
		for _, fn := range optFns {
			fn(&opts)
		}
		if opts.BaseEndpoint == nil || *opts.BaseEndpoint != "http://127.0.0.1:9000" {
			t.Fatalf("BaseEndpoint not applied")
		}
		if !opts.UsePathStyle {
			t.Fatalf("path style not set")
		}
		return &s3.Client{}
	}
	newS3PresignClient = func(c *s3.Client) *s3.PresignClient { return &s3.PresignClient{} }

	uploaded = &s3.PutObjectInput{}
	var b []byte
	body = &b
	putObject = func(c *s3.Client, ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
		if putErr != nil {
			return nil, putErr
		}
		*uploaded = *in
		data, err := io.ReadAll(in.Body)
		if err != nil {
			t.Fatalf("read body: %v", err)
		}
		*body = data
		return &s3.PutObjectOutput{}, nil
	}
	presignGetObject = func(pc *s3.PresignClient, ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		var po s3.PresignOptions
		for _, fn := range optFns {
			fn(&po)
		}
		if po.Expires != StatementURLValidity {
			t.Fatalf("unexpected expiry %v", po.Expires)
		}
		return &v4.PresignedHTTPRequest{URL: "https://s3.example/" + *in.Bucket + "/" + *in.Key + "?sig=1"}, nil
	}
	return uploaded, body
}

func TestStatementKey(t *testing.T) {
	at := time.Date(2026, 10, 18, 23, 30, 0, 0, time.UTC)
	key := StatementKey("u1", at)
	assert.True(t, strings.HasPrefix(key, "statements/u1/2026-10-18/"), key)
	assert.True(t, strings.HasSuffix(key, ".csv"), key)
	assert.NotEqual(t, key, StatementKey("u1", at))
}

func TestRenderStatement_OldestFirst(t *testing.T) {
	t0 := time.Date(2026, 10, 1, 10, 0, 0, 0, time.UTC)
	list := []*models.Transaction{
		{ID: "t2", Kind: "debit", LeadID: "l1", FieldGroup: "email", Amount: decimal.RequireFromString("-0.4"), BalanceAfter: decimal.RequireFromString("0.6"), CreatedAt: t0.Add(time.Minute)},
		{ID: "t1", Kind: "credit", Reason: "opening, balance", Amount: decimal.NewFromInt(1), BalanceAfter: decimal.NewFromInt(1), CreatedAt: t0},
	}

	out, err := RenderStatement(list)
	require.NoError(t, err)

	records, err := csv.NewReader(strings.NewReader(string(out))).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, statementHeader, records[0])
	assert.Equal(t, []string{"2026-10-01T10:00:00Z", "t1", "credit", "", "", "opening, balance", "1.00", "1.00"}, records[1])
	assert.Equal(t, []string{"2026-10-01T10:01:00Z", "t2", "debit", "l1", "email", "", "-0.40", "0.60"}, records[2])
}

func TestExport_UploadsAndPresigns(t *testing.T) {
	f := newFixture(t, "1.00")
	ctx := context.Background()
	_, err := newPurchaseService(t, f.store, nil).Purchase(ctx, f.user.ID, f.lead.ID, pricing.GroupEmail)
	require.NoError(t, err)

	uploaded, body := stubS3(t, nil)
	svc := NewStatementService(f.store, statementConfig(), logging.Nop{})
	svc.now = func() time.Time { return time.Date(2026, 10, 18, 0, 0, 0, 0, time.UTC) }

	st, err := svc.Export(ctx, f.user.ID)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(st.Key, "statements/"+f.user.ID+"/2026-10-18/"), st.Key)
	assert.Equal(t, "https://s3.example/statements/"+st.Key+"?sig=1", st.URL)
	assert.Equal(t, "statements", *uploaded.Bucket)
	assert.Equal(t, st.Key, *uploaded.Key)
	assert.Equal(t, "text/csv", *uploaded.ContentType)

	records, err := csv.NewReader(strings.NewReader(string(*body))).ReadAll()
	require.NoError(t, err)
	assert.Len(t, records, 3)
}

func TestExport_UploadError(t *testing.T) {
	f := newFixture(t, "1.00")
	stubS3(t, errors.New("bucket missing"))
	svc := NewStatementService(f.store, statementConfig(), logging.Nop{})

	_, err := svc.Export(context.Background(), f.user.ID)
	require.ErrorContains(t, err, "upload statement: bucket missing")
}

func TestExport_ConfigError(t *testing.T) {
	f := newFixture(t, "1.00")
	orig := loadDefaultAWSConfig
	t.Cleanup(func() { loadDefaultAWSConfig = orig })
	loadDefaultAWSConfig = func(ctx context.Context, optFns ...func(*awsconfig.LoadOptions) error) (aws.Config, error) {
		return aws.Config{}, errors.New("no credentials")
	}

	svc := NewStatementService(f.store, statementConfig(), logging.Nop{})
	_, err := svc.Export(context.Background(), f.user.ID)
	require.ErrorContains(t, err, "s3 config: no credentials")
}
