package minio

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVariantObjectName(t *testing.T) {
	assert.Equal(t, "abc_123_small.jpg", VariantObjectName("abc_123.png", SizeSmall))
	assert.Equal(t, "abc_large.jpg", VariantObjectName("abc.jpeg", SizeLarge))
	assert.Equal(t, "noext_medium.jpg", VariantObjectName("noext", SizeMedium))
}

func TestVariantURLs(t *testing.T) {
	s := &MinioService{bucketName: "avatars", endpoint: "localhost:9000"}

	got := s.VariantURLs("http://localhost:9000/avatars/k1_17.png")
	assert.Equal(t, map[string]string{
		"small":  "http://localhost:9000/avatars/k1_17_small.jpg",
		"medium": "http://localhost:9000/avatars/k1_17_medium.jpg",
		"large":  "http://localhost:9000/avatars/k1_17_large.jpg",
	}, got)

	assert.Nil(t, s.VariantURLs("https://elsewhere.example.com/me.png"))
}

func TestPublicURL(t *testing.T) {
	t.Run("endpoint", func(t *testing.T) {
		s := &MinioService{bucketName: "avatars", endpoint: "localhost:9000"}
		assert.Equal(t, "http://localhost:9000/avatars/k1.png", s.GetPublicURL("k1.png"))

		name, ok := s.ObjectNameFromURL("http://localhost:9000/avatars/k1.png")
		require.True(t, ok)
		assert.Equal(t, "k1.png", name)
	})

	t.Run("ssl", func(t *testing.T) {
		s := &MinioService{bucketName: "avatars", endpoint: "s3.example.com", useSSL: true}
		assert.Equal(t, "https://s3.example.com/avatars/k1.png", s.GetPublicURL("k1.png"))
	})

	t.Run("public base", func(t *testing.T) {
		s := &MinioService{bucketName: "avatars", endpoint: "minio:9000", publicBase: "https://cdn.example.com"}
		link := s.GetPublicURL("k2.jpg")
		assert.Equal(t, "https://cdn.example.com/avatars/k2.jpg", link)

		name, ok := s.ObjectNameFromURL(link)
		require.True(t, ok)
		assert.Equal(t, "k2.jpg", name)
	})
}

func TestObjectNameFromURL_Foreign(t *testing.T) {
	s := &MinioService{bucketName: "avatars", endpoint: "localhost:9000"}

	for _, raw := range []string{
		"https://other.example.com/avatars/k1.png",
		"http://localhost:9000/other-bucket/k1.png",
		"http://localhost:9000/avatars/",
		"/static/default-avatar.png",
		"://bad",
	} {
		_, ok := s.ObjectNameFromURL(raw)
		assert.False(t, ok, raw)
	}
}

func TestResizeImage(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 400, 200))
	for x := 0; x < 400; x++ {
		src.Set(x, x%200, color.RGBA{R: 200, A: 255})
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, src))

	out, err := resizeImage(buf.Bytes(), 64)
	require.NoError(t, err)

	img, format, err := image.Decode(bytes.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, "jpeg", format)
	assert.Equal(t, 64, img.Bounds().Dx())
	assert.Equal(t, 32, img.Bounds().Dy())

	_, err = resizeImage([]byte("not an image"), 64)
	assert.True(t, errors.Is(err, ErrInvalidImage))
}
