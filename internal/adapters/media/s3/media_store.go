package s3

import (
	"context"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	customErrors "github.com/clipstream/account-service/internal/domain/account/errors"
	"github.com/clipstream/account-service/internal/domain/account/media"
	"github.com/clipstream/account-service/internal/infra/config"
)

// MediaStore кладёт файлы в S3-совместимое хранилище (AWS или MinIO через
// S3_ENDPOINT) и раздаёт их по публичному базовому URL.
type MediaStore struct {
	client        *awss3.Client
	bucket        string
	publicBaseURL string
}

func NewMediaStore(ctx context.Context, cfg *config.Config) (*MediaStore, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.S3Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.S3AccessKey,
			cfg.S3SecretKey,
			"",
		)),
	)
	if err != nil {
		return nil, customErrors.WrapInternal(err, "load s3 config")
	}

	client := awss3.NewFromConfig(awsCfg, func(o *awss3.Options) {
		if cfg.S3Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.S3Endpoint)
			o.UsePathStyle = true // MinIO
		}
	})

	return &MediaStore{
		client:        client,
		bucket:        cfg.S3Bucket,
		publicBaseURL: strings.TrimRight(cfg.S3PublicBaseURL, "/"),
	}, nil
}

func (m *MediaStore) Upload(ctx context.Context, key string, up media.Upload) (string, error) {
	_, err := m.client.PutObject(ctx, &awss3.PutObjectInput{
		Bucket:        aws.String(m.bucket),
		Key:           aws.String(key),
		Body:          up.Body,
		ContentType:   aws.String(up.ContentType),
		ContentLength: aws.Int64(up.Size),
	})
	if err != nil {
		return "", customErrors.WrapInternal(err, "put object")
	}

	return m.publicBaseURL + "/" + key, nil
}

func (m *MediaStore) Delete(ctx context.Context, url string) error {
	key := strings.TrimPrefix(url, m.publicBaseURL+"/")
	if key == "" || key == url {
		// чужой URL удалять не пытаемся
		return customErrors.NewInvalidArgument("url does not belong to this store")
	}

	_, err := m.client.DeleteObject(ctx, &awss3.DeleteObjectInput{
		Bucket: aws.String(m.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return customErrors.WrapInternal(err, "delete object")
	}
	return nil
}
