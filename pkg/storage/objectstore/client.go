package objectstore

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	"github.com/iamnithishraja/klinic-sub000/pkg/config"
	"github.com/iamnithishraja/klinic-sub000/pkg/logger"
)

const (
	defaultRegion      = "auto"
	defaultExpiry      = 15 * time.Minute
	defaultContentType = "application/octet-stream"
	prescriptionPrefix = "prescriptions"
)

var errNotInitialized = errors.New("object store not initialized")

// Client signs direct-to-bucket uploads against an S3 compatible store.
type Client struct {
	bucket     string
	publicBase string
	expiry     time.Duration
	presign    presignFunc
}

type presignFunc func(ctx context.Context, input *s3.PutObjectInput, expires time.Duration) (string, error)

// Upload is a presigned PUT plus the URL the object will be readable at.
type Upload struct {
	Key       string    `json:"key"`
	UploadURL string    `json:"upload_url"`
	PublicURL string    `json:"public_url"`
	ExpiresAt time.Time `json:"expires_at"`
}

// New builds a client from config. The endpoint is optional for AWS S3 and
// required for R2 or MinIO.
func New(ctx context.Context, cfg config.ObjectStoreConfig, logg *logger.Logger) (*Client, error) {
	bucket := strings.TrimSpace(cfg.Bucket)
	if bucket == "" {
		return nil, fmt.Errorf("object store bucket is required")
	}
	region := strings.TrimSpace(cfg.Region)
	if region == "" {
		region = defaultRegion
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(
		ctx,
		awsconfig.WithRegion(region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			strings.TrimSpace(cfg.AccessKeyID),
			strings.TrimSpace(cfg.SecretAccessKey),
			"",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("loading aws config: %w", err)
	}

	endpoint := normalizeEndpoint(cfg.Endpoint)
	s3Client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		}
	})
	signer := s3.NewPresignClient(s3Client)

	client := &Client{
		bucket:     bucket,
		publicBase: publicBase(cfg, endpoint, bucket, region),
		expiry:     cfg.UploadURLExpiry,
		presign: func(ctx context.Context, input *s3.PutObjectInput, expires time.Duration) (string, error) {
			out, err := signer.PresignPutObject(ctx, input, func(opts *s3.PresignOptions) {
				opts.Expires = expires
			})
			if err != nil {
				return "", err
			}
			return out.URL, nil
		},
	}
	if client.expiry <= 0 {
		client.expiry = defaultExpiry
	}

	if logg != nil {
		logg.Info(logg.WithField(ctx, "bucket", bucket), "object store client initialized")
	}
	return client, nil
}

// PresignPrescriptionUpload returns a presigned PUT for a patient's
// prescription image or PDF.
func (c *Client) PresignPrescriptionUpload(ctx context.Context, patientID uuid.UUID, fileName, contentType string) (*Upload, error) {
	if c == nil || c.presign == nil {
		return nil, errNotInitialized
	}
	if patientID == uuid.Nil {
		return nil, fmt.Errorf("patient id is required")
	}
	key := PrescriptionKey(patientID, fileName, uuid.New())
	ct := strings.TrimSpace(contentType)
	if ct == "" {
		ct = defaultContentType
	}

	url, err := c.presign(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(c.bucket),
		Key:         aws.String(key),
		ContentType: aws.String(ct),
	}, c.expiry)
	if err != nil {
		return nil, fmt.Errorf("presign upload: %w", err)
	}
	return &Upload{
		Key:       key,
		UploadURL: url,
		PublicURL: c.PublicURL(key),
		ExpiresAt: time.Now().UTC().Add(c.expiry),
	}, nil
}

// PublicURL is where an uploaded key can be read from.
func (c *Client) PublicURL(key string) string {
	return c.publicBase + "/" + strings.TrimLeft(key, "/")
}

// PrescriptionKey builds prescriptions/<patient>/<id><ext>.
func PrescriptionKey(patientID uuid.UUID, fileName string, id uuid.UUID) string {
	ext := strings.ToLower(path.Ext(strings.TrimSpace(fileName)))
	if len(ext) > 6 || strings.ContainsAny(ext, "/\\ ") {
		ext = ""
	}
	return path.Join(prescriptionPrefix, patientID.String(), id.String()+ext)
}

func normalizeEndpoint(raw string) string {
	endpoint := strings.TrimRight(strings.TrimSpace(raw), "/")
	if endpoint != "" && !strings.Contains(endpoint, "://") {
		endpoint = "https://" + endpoint
	}
	return endpoint
}

func publicBase(cfg config.ObjectStoreConfig, endpoint, bucket, region string) string {
	if base := strings.TrimRight(strings.TrimSpace(cfg.PublicBaseURL), "/"); base != "" {
		return base
	}
	if endpoint != "" {
		return endpoint + "/" + bucket
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com", bucket, region)
}
