/*
 * @module service/report/storage
 * @description 报表文件存储,支持本地目录与 S3 兼容对象存储两种后端
 * @architecture 分层架构 - 基础设施层,接口 + 多实现
 * @documentReference ai_docs/report_design.md
 * @stateFlow 报表生成 -> 存储写入 -> 引用返回 -> 按引用下载
 * @rules 文件引用统一为相对键,本地后端须防目录穿越;S3 端点可指向 MinIO
 * @dependencies github.com/aws/aws-sdk-go-v2
 * @refs service/report/report_service.go
 */

package report

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// ErrInvalidRef 文件引用非法
var ErrInvalidRef = errors.New("文件引用非法")

// Store 报表存储接口
type Store interface {
	Save(ctx context.Context, key string, data []byte, contentType string) error
	Load(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
}

// LocalStore 本地目录存储
type LocalStore struct {
	baseDir string
}

// NewLocalStore 创建本地存储,目录不存在时自动创建
func NewLocalStore(baseDir string) (*LocalStore, error) {
	for _, sub := range []string{"reports", "photos", "temp"} {
		if err := os.MkdirAll(filepath.Join(baseDir, sub), 0o755); err != nil {
			return nil, fmt.Errorf("创建存储目录失败: %w", err)
		}
	}
	slog.Info("本地存储初始化完成", "dir", baseDir)
	return &LocalStore{baseDir: baseDir}, nil
}

// resolve 将引用解析为本地路径并防止目录穿越
func (ls *LocalStore) resolve(key string) (string, error) {
	if key == "" || strings.Contains(key, "..") || filepath.IsAbs(key) {
		return "", fmt.Errorf("%w: %s", ErrInvalidRef, key)
	}
	path := filepath.Join(ls.baseDir, filepath.Clean(key))
	base, err := filepath.Abs(ls.baseDir)
	if err != nil {
		return "", err
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	if !strings.HasPrefix(abs, base+string(os.PathSeparator)) {
		return "", fmt.Errorf("%w: %s", ErrInvalidRef, key)
	}
	return path, nil
}

// Save 写入文件,必要时创建中间目录
func (ls *LocalStore) Save(ctx context.Context, key string, data []byte, contentType string) error {
	path, err := ls.resolve(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("创建目录失败: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("写入文件失败: %w", err)
	}
	return nil
}

// Load 读取文件
func (ls *LocalStore) Load(ctx context.Context, key string) ([]byte, error) {
	path, err := ls.resolve(key)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("读取文件失败: %w", err)
	}
	return data, nil
}

// Delete 删除文件,文件不存在视为成功
func (ls *LocalStore) Delete(ctx context.Context, key string) error {
	path, err := ls.resolve(key)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("删除文件失败: %w", err)
	}
	return nil
}

// S3Store S3 兼容对象存储
type S3Store struct {
	client *s3.Client
	bucket string
}

// S3StoreConfig S3 存储配置
type S3StoreConfig struct {
	Bucket   string
	Region   string
	Endpoint string // 自定义端点,MinIO 等兼容实现用
}

// NewS3Store 创建 S3 存储
func NewS3Store(ctx context.Context, cfg S3StoreConfig) (*S3Store, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("S3 桶名不能为空")
	}

	var loadOpts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(cfg.Region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("加载 AWS 配置失败: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			// MinIO/LocalStack 需要路径风格寻址
			o.UsePathStyle = true
		}
	})

	slog.Info("S3 存储初始化完成", "bucket", cfg.Bucket, "endpoint", cfg.Endpoint)
	return &S3Store{client: client, bucket: cfg.Bucket}, nil
}

// Save 上传对象
func (s *S3Store) Save(ctx context.Context, key string, data []byte, contentType string) error {
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("S3 上传失败: %w", err)
	}
	return nil
}

// Load 下载对象
func (s *S3Store) Load(ctx context.Context, key string) ([]byte, error) {
	result, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("S3 下载失败: %w", err)
	}
	defer result.Body.Close()
	return io.ReadAll(result.Body)
}

// Delete 删除对象
func (s *S3Store) Delete(ctx context.Context, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("S3 删除失败: %w", err)
	}
	return nil
}
