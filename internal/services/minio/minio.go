// Package minio provides S3-compatible object storage for avatars using MinIO.
package minio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

var (
	ErrUploadFailed = errors.New("upload failed")
	ErrDeleteFailed = errors.New("delete failed")
	ErrObjectExists = errors.New("object already exists")
	ErrInvalidImage = errors.New("invalid image")
)

// CacheControl is attached to every uploaded avatar.
const CacheControl = "max-age=3600"

type Size string

const (
	SizeSmall  Size = "small"
	SizeMedium Size = "medium"
	SizeLarge  Size = "large"
)

// Sizes lists the resized copies stored next to every avatar.
var Sizes = []Size{SizeSmall, SizeMedium, SizeLarge}

var sizeDimensions = map[Size]int{
	SizeSmall:  64,
	SizeMedium: 128,
	SizeLarge:  256,
}

type MinioService struct {
	client     *minio.Client
	bucketName string
	endpoint   string
	publicBase string
	useSSL     bool
}

// NewMinioService connects to the bucket configured by MINIO_* variables.
// MINIO_PUBLIC_URL overrides the host used in public avatar links.
func NewMinioService() (*MinioService, error) {
	endpoint := getEnv("MINIO_ENDPOINT", "localhost:9000")
	accessKey := getEnv("MINIO_ACCESS_KEY", "minioadmin")
	secretKey := getEnv("MINIO_SECRET_KEY", "minioadmin")
	bucketName := getEnv("MINIO_BUCKET", "avatars")
	useSSL := os.Getenv("MINIO_USE_SSL") == "true"

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("creating minio client: %w", err)
	}

	return &MinioService{
		client:     client,
		bucketName: bucketName,
		endpoint:   endpoint,
		publicBase: os.Getenv("MINIO_PUBLIC_URL"),
		useSSL:     useSSL,
	}, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// EnsureBucket creates the bucket if needed and makes its objects publicly
// readable so avatar links work without signing.
func (s *MinioService) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucketName)
	if err != nil {
		return err
	}
	if !exists {
		if err := s.client.MakeBucket(ctx, s.bucketName, minio.MakeBucketOptions{}); err != nil {
			return err
		}
	}
	return s.client.SetBucketPolicy(ctx, s.bucketName, publicReadPolicy(s.bucketName))
}

func publicReadPolicy(bucket string) string {
	return fmt.Sprintf(`{"Version":"2012-10-17","Statement":[{"Effect":"Allow","Principal":{"AWS":["*"]},"Action":["s3:GetObject"],"Resource":["arn:aws:s3:::%s/*"]}]}`, bucket)
}

// Health reports whether the bucket is reachable.
func (s *MinioService) Health(ctx context.Context) map[string]string {
	stats := map[string]string{"bucket": s.bucketName}
	exists, err := s.client.BucketExists(ctx, s.bucketName)
	switch {
	case err != nil:
		stats["status"] = "down"
		stats["error"] = fmt.Sprintf("storage down: %v", err)
	case !exists:
		stats["status"] = "down"
		stats["error"] = "bucket missing"
	default:
		stats["status"] = "up"
	}
	return stats
}

// Upload stores an object without overwriting an existing key.
func (s *MinioService) Upload(ctx context.Context, objectName string, reader io.Reader, size int64, contentType string) error {
	_, err := s.client.StatObject(ctx, s.bucketName, objectName, minio.StatObjectOptions{})
	if err == nil {
		return fmt.Errorf("%w: %s", ErrObjectExists, objectName)
	}
	if minio.ToErrorResponse(err).Code != "NoSuchKey" {
		return fmt.Errorf("%w: %v", ErrUploadFailed, err)
	}

	_, err = s.client.PutObject(ctx, s.bucketName, objectName, reader, size, minio.PutObjectOptions{
		ContentType:  contentType,
		CacheControl: CacheControl,
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUploadFailed, err)
	}
	return nil
}

func (s *MinioService) Delete(ctx context.Context, objectName string) error {
	if err := s.client.RemoveObject(ctx, s.bucketName, objectName, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("%w: %v", ErrDeleteFailed, err)
	}
	return nil
}

// UploadWithVariants uploads the original image and creates size variants (small, medium, large)
func (s *MinioService) UploadWithVariants(ctx context.Context, objectName string, reader io.Reader, contentType string) error {
	data, err := io.ReadAll(reader)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUploadFailed, err)
	}

	if err := s.Upload(ctx, objectName, bytes.NewReader(data), int64(len(data)), contentType); err != nil {
		return err
	}

	for size, dim := range sizeDimensions {
		resized, err := resizeImage(data, dim)
		if err != nil {
			continue
		}
		_ = s.Upload(ctx, VariantObjectName(objectName, size), bytes.NewReader(resized), int64(len(resized)), "image/jpeg")
	}
	return nil
}

// DeleteWithVariants deletes the original and all size variants
func (s *MinioService) DeleteWithVariants(ctx context.Context, objectName string) error {
	if err := s.Delete(ctx, objectName); err != nil {
		return err
	}
	for size := range sizeDimensions {
		_ = s.Delete(ctx, VariantObjectName(objectName, size))
	}
	return nil
}

func (s *MinioService) GetPublicURL(objectName string) string {
	return s.baseURL().JoinPath(objectName).String()
}

// ObjectNameFromURL returns the object key when rawURL is a public link into
// this bucket.
func (s *MinioService) ObjectNameFromURL(rawURL string) (string, bool) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", false
	}
	base := s.baseURL()
	if u.Host != base.Host {
		return "", false
	}
	prefix := "/" + strings.Trim(base.Path, "/") + "/"
	if !strings.HasPrefix(u.Path, prefix) {
		return "", false
	}
	name := strings.TrimPrefix(u.Path, prefix)
	if name == "" {
		return "", false
	}
	return name, true
}

func (s *MinioService) baseURL() *url.URL {
	if s.publicBase != "" {
		if u, err := url.Parse(s.publicBase); err == nil {
			return u.JoinPath(s.bucketName)
		}
	}
	scheme := "http"
	if s.useSSL {
		scheme = "https"
	}
	return &url.URL{
		Scheme: scheme,
		Host:   s.endpoint,
		Path:   "/" + s.bucketName,
	}
}

// VariantObjectName names the resized copy of objectName. Variants are
// always JPEG, whatever the original format.
func VariantObjectName(objectName string, size Size) string {
	return strings.TrimSuffix(objectName, filepath.Ext(objectName)) + "_" + string(size) + ".jpg"
}

// VariantURLs returns the public links of the resized copies of an avatar
// stored in this bucket, keyed by size name. Links into other hosts yield
// nil.
func (s *MinioService) VariantURLs(avatarURL string) map[string]string {
	name, ok := s.ObjectNameFromURL(avatarURL)
	if !ok {
		return nil
	}
	urls := make(map[string]string, len(Sizes))
	for _, size := range Sizes {
		urls[string(size)] = s.GetPublicURL(VariantObjectName(name, size))
	}
	return urls
}

func resizeImage(data []byte, dim int) ([]byte, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}
	resized := imaging.Fit(img, dim, dim, imaging.Lanczos)
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, resized, imaging.JPEG, imaging.JPEGQuality(85)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
