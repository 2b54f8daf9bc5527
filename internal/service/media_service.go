package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"log/slog"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/h2non/filetype"
	config "github.com/maheshrc27/postflow/configs"
	"github.com/maheshrc27/postflow/internal/models"
	"github.com/maheshrc27/postflow/internal/repository"
	"github.com/maheshrc27/postflow/internal/social"
	gonanoid "github.com/matoous/go-nanoid/v2"
)

var ErrUnsupportedMedia = errors.New("unsupported media type")

// ObjectStore stores a staged media file and returns its public URL.
type ObjectStore interface {
	Put(ctx context.Context, key string, body []byte, contentType string) (string, error)
}

type R2Store struct {
	client    *s3.Client
	bucket    string
	publicURL string
}

// NewR2Store connects to the Cloudflare R2 bucket of cfg through its S3 API.
func NewR2Store(ctx context.Context, cfg config.R2) (*R2Store, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")),
		awsconfig.WithRegion("auto"),
	)
	if err != nil {
		return nil, fmt.Errorf("load r2 config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(fmt.Sprintf("https://%s.r2.cloudflarestorage.com", cfg.AccountID))
	})

	publicURL := strings.TrimSuffix(cfg.PublicURL, "/")
	if publicURL == "" {
		publicURL = fmt.Sprintf("https://%s.r2.dev", cfg.BucketName)
	}
	return &R2Store{client: client, bucket: cfg.BucketName, publicURL: publicURL}, nil
}

func (r *R2Store) Put(ctx context.Context, key string, body []byte, contentType string) (string, error) {
	_, err := r.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(r.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		slog.Info(err.Error())
		return "", err
	}
	return r.publicURL + "/" + key, nil
}

type MediaService interface {
	Upload(ctx context.Context, userID int64, filename string, data []byte) (*social.MediaItem, error)
}

type mediaService struct {
	store  ObjectStore
	assets repository.MediaAssetRepository
}

func NewMediaService(store ObjectStore, assets repository.MediaAssetRepository) MediaService {
	return &mediaService{store: store, assets: assets}
}

// Upload stages a file so platforms that pull media by URL can fetch it.
func (s *mediaService) Upload(ctx context.Context, userID int64, filename string, data []byte) (*social.MediaItem, error) {
	item, ext, err := Inspect(data)
	if err != nil {
		return nil, err
	}

	id, err := gonanoid.New()
	if err != nil {
		return nil, err
	}
	key := fmt.Sprintf("media/%d/%s.%s", userID, id, ext)
	item.URL, err = s.store.Put(ctx, key, data, item.MimeType)
	if err != nil {
		return nil, fmt.Errorf("store %s: %w", filename, err)
	}

	if _, err := s.assets.Create(ctx, &models.MediaAsset{
		UserID:   userID,
		FileName: filename,
		FileType: item.MimeType,
		FileSize: item.Size,
		FileURL:  item.URL,
	}); err != nil {
		return nil, err
	}
	return item, nil
}

// Inspect detects the media type of data from its magic bytes and, for
// images, reads the dimensions.
func Inspect(data []byte) (*social.MediaItem, string, error) {
	kind, err := filetype.Match(data)
	if err != nil || kind == filetype.Unknown {
		return nil, "", ErrUnsupportedMedia
	}

	item := &social.MediaItem{MimeType: kind.MIME.Value, Size: int64(len(data))}
	switch {
	case kind.MIME.Value == "image/gif":
		item.Type = social.MediaGIF
	case filetype.IsImage(data):
		item.Type = social.MediaImage
	case filetype.IsVideo(data):
		item.Type = social.MediaVideo
	default:
		return nil, "", fmt.Errorf("%w: %s", ErrUnsupportedMedia, kind.MIME.Value)
	}

	if item.Type != social.MediaVideo {
		if cfg, _, err := image.DecodeConfig(bytes.NewReader(data)); err == nil {
			item.Width, item.Height = cfg.Width, cfg.Height
		}
	}
	return item, kind.Extension, nil
}
