package objectstore

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iamnithishraja/klinic-sub000/pkg/config"
)

func TestPrescriptionKey(t *testing.T) {
	patient := uuid.MustParse("7d3c7a4e-2f55-4a8e-9d57-3d9e1d2a0b11")
	id := uuid.MustParse("0b8f2c1a-6a59-4f7b-8a22-2ab4d0c3e9f0")

	assert.Equal(t, "prescriptions/"+patient.String()+"/"+id.String()+".pdf", PrescriptionKey(patient, "Scan.PDF", id))
	assert.Equal(t, "prescriptions/"+patient.String()+"/"+id.String(), PrescriptionKey(patient, "noext", id))
	assert.Equal(t, "prescriptions/"+patient.String()+"/"+id.String(), PrescriptionKey(patient, "weird.extension-too-long", id))
}

func TestPresignPrescriptionUpload(t *testing.T) {
	var captured *s3.PutObjectInput
	var capturedExpiry time.Duration
	client := &Client{
		bucket:     "klinic-uploads",
		publicBase: "https://cdn.klinic.test",
		expiry:     10 * time.Minute,
		presign: func(_ context.Context, input *s3.PutObjectInput, expires time.Duration) (string, error) {
			captured = input
			capturedExpiry = expires
			return "https://signed.example/" + aws.ToString(input.Key), nil
		},
	}

	patient := uuid.New()
	upload, err := client.PresignPrescriptionUpload(context.Background(), patient, "rx.jpg", "image/jpeg")
	require.NoError(t, err)

	require.NotNil(t, captured)
	assert.Equal(t, "klinic-uploads", aws.ToString(captured.Bucket))
	assert.Equal(t, "image/jpeg", aws.ToString(captured.ContentType))
	assert.Equal(t, 10*time.Minute, capturedExpiry)
	assert.True(t, strings.HasPrefix(upload.Key, "prescriptions/"+patient.String()+"/"))
	assert.True(t, strings.HasSuffix(upload.Key, ".jpg"))
	assert.Equal(t, "https://cdn.klinic.test/"+upload.Key, upload.PublicURL)
	assert.WithinDuration(t, time.Now().Add(10*time.Minute), upload.ExpiresAt, 5*time.Second)
}

func TestPresignPrescriptionUploadErrors(t *testing.T) {
	var nilClient *Client
	_, err := nilClient.PresignPrescriptionUpload(context.Background(), uuid.New(), "a.png", "")
	assert.ErrorIs(t, err, errNotInitialized)

	client := &Client{presign: func(context.Context, *s3.PutObjectInput, time.Duration) (string, error) {
		return "", errors.New("signing failed")
	}}
	_, err = client.PresignPrescriptionUpload(context.Background(), uuid.Nil, "a.png", "")
	assert.Error(t, err)
	_, err = client.PresignPrescriptionUpload(context.Background(), uuid.New(), "a.png", "")
	assert.ErrorContains(t, err, "signing failed")
}

func TestPublicBase(t *testing.T) {
	assert.Equal(t, "https://cdn.test", publicBase(config.ObjectStoreConfig{PublicBaseURL: "https://cdn.test/"}, "", "b", "auto"))
	assert.Equal(t, "https://r2.test/b", publicBase(config.ObjectStoreConfig{}, normalizeEndpoint("r2.test/"), "b", "auto"))
	assert.Equal(t, "https://b.s3.ap-south-1.amazonaws.com", publicBase(config.ObjectStoreConfig{}, "", "b", "ap-south-1"))
}

func TestNewRequiresBucket(t *testing.T) {
	_, err := New(context.Background(), config.ObjectStoreConfig{}, nil)
	assert.Error(t, err)
}
