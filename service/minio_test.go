package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/minio/minio-go/v7"

	"github.com/henrymedina447/sbs-suptech-etl-v2/config"
	"github.com/henrymedina447/sbs-suptech-etl-v2/retry"
)

func TestNewMinioService(t *testing.T) {
	cfg := &config.MinioConfig{
		Endpoint:     "localhost:9000",
		AccessKey:    "test",
		SecretKey:    "test",
		Region:       "us-east-1",
		SourceBucket: "scans",
		Bucket:       "texts",
	}

	svc, err := NewMinioService(cfg)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if svc.bucket != "texts" {
		t.Errorf("Expected bucket 'texts', got '%s'", svc.bucket)
	}
	if svc.sourceBucket != "scans" {
		t.Errorf("Expected source bucket 'scans', got '%s'", svc.sourceBucket)
	}
}

func TestClassifyMinio(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		class retry.Class
	}{
		{
			name:  "slow down",
			err:   minio.ErrorResponse{Code: "SlowDown", StatusCode: http.StatusServiceUnavailable},
			class: retry.Throttling,
		},
		{
			name:  "internal error",
			err:   minio.ErrorResponse{Code: "InternalError", StatusCode: http.StatusInternalServerError},
			class: retry.TransientFailure,
		},
		{
			name:  "access denied",
			err:   minio.ErrorResponse{Code: "AccessDenied", StatusCode: http.StatusForbidden},
			class: retry.Fatal,
		},
		{
			name:  "no status",
			err:   minio.ErrorResponse{Code: "InvalidArgument"},
			class: retry.Fatal,
		},
		{
			name:  "wrapped",
			err:   fmt.Errorf("failed to upload: %w", minio.ErrorResponse{Code: "RequestLimitExceeded", StatusCode: http.StatusForbidden}),
			class: retry.Throttling,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := retry.Classify(classifyMinio("storage.save", tt.err)); got != tt.class {
				t.Errorf("Expected class %s, got %s", tt.class, got)
			}
		})
	}
}

func TestClassifyMinioPassThrough(t *testing.T) {
	plain := errors.New("connection reset")
	if classifyMinio("storage.save", plain) != plain {
		t.Error("Expected non-S3 errors to pass through unchanged")
	}
}

func TestMinioServiceSaveAccessDenied(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/xml")
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`<?xml version="1.0" encoding="UTF-8"?>
<Error><Code>AccessDenied</Code><Message>Access Denied.</Message><BucketName>texts</BucketName><Key>txt/r1.txt</Key><RequestId>1</RequestId></Error>`))
	}))
	defer server.Close()

	svc, err := NewMinioService(&config.MinioConfig{
		Endpoint:  strings.TrimPrefix(server.URL, "http://"),
		AccessKey: "test",
		SecretKey: "test",
		Region:    "us-east-1",
		Bucket:    "texts",
	})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	err = svc.Save(context.Background(), "txt/r1.txt", []byte("texto"))
	if err == nil {
		t.Fatal("Expected error")
	}
	if retry.Retryable(err) {
		t.Errorf("Expected permanent error, got %v", err)
	}
}

func TestMinioServiceWithContext(t *testing.T) {
	svc, err := NewMinioService(&config.MinioConfig{
		Endpoint:  "localhost:9000",
		AccessKey: "test",
		SecretKey: "test",
		Region:    "us-east-1",
		Bucket:    "texts",
	})
	if err != nil {
		t.Skip("Could not create MinIO service")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := svc.Save(ctx, "txt/r1.txt", []byte("texto")); err == nil {
		t.Error("Expected error with cancelled context")
	}
}
