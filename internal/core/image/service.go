package image

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"image"
	"image/jpeg"
	"net/http"
	"strings"
	"time"

	_ "image/gif" // 支援 GIF
	_ "image/png" // 支援 PNG

	"carb-estimator/internal/pkg/common"

	"github.com/go-resty/resty/v2"
	_ "golang.org/x/image/webp" // 支援 WebP
)

// jpegQuality 轉檔品質
const jpegQuality = 85

// Service 圖片處理服務：解碼、檢查大小與格式，統一轉成 JPEG data URI
type Service struct {
	maxSizeBytes int64
	maxDimension int
	client       *resty.Client
}

// NewService 創建新的圖片處理服務
func NewService(maxSizeBytes int64, fetchTimeout time.Duration) *Service {
	if fetchTimeout <= 0 {
		fetchTimeout = 30 * time.Second
	}
	return &Service{
		maxSizeBytes: maxSizeBytes,
		maxDimension: DefaultMaxDimension,
		client:       resty.New().SetTimeout(fetchTimeout),
	}
}

// ProcessImage 處理圖片，回傳 data:image/jpeg;base64,...
func (s *Service) ProcessImage(ctx context.Context, imageData string) (string, error) {
	img, _, err := s.decode(ctx, imageData)
	if err != nil {
		return "", err
	}

	img = downscale(img, s.maxDimension)

	// 將圖片轉換為 JPEG 格式
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return "", fmt.Errorf("failed to encode image as JPEG: %w", err)
	}

	// 重新編碼為 base64
	return "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// ProcessImages 依序處理多張圖片
func (s *Service) ProcessImages(ctx context.Context, images []string) ([]string, error) {
	out := make([]string, 0, len(images))
	for i, img := range images {
		processed, err := s.ProcessImage(ctx, img)
		if err != nil {
			return nil, fmt.Errorf("image %d: %w", i+1, err)
		}
		out = append(out, processed)
	}
	return out, nil
}

// ValidateImage 驗證圖片但不重新編碼
func (s *Service) ValidateImage(ctx context.Context, imageData string) error {
	_, _, err := s.decode(ctx, imageData)
	return err
}

func (s *Service) decode(ctx context.Context, imageData string) (image.Image, string, error) {
	raw, err := s.load(ctx, strings.TrimSpace(imageData))
	if err != nil {
		return nil, "", err
	}

	// 檢查文件大小
	if s.maxSizeBytes > 0 && int64(len(raw)) > s.maxSizeBytes {
		return nil, "", common.ErrInvalidImageSize.Wrap(
			fmt.Errorf("image size %d exceeds maximum limit of %d bytes", len(raw), s.maxSizeBytes))
	}

	// 解碼圖片
	img, format, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, "", common.ErrInvalidImageFormat.Wrap(fmt.Errorf("failed to decode image: %w", err))
	}

	// 檢查圖片格式
	if !isSupportedFormat(format) {
		return nil, "", common.ErrInvalidImageType.Wrap(fmt.Errorf("unsupported image format: %s", format))
	}

	return img, format, nil
}

// load 取得原始位元組：http(s) URL 下載，data URI 解 base64
func (s *Service) load(ctx context.Context, imageData string) ([]byte, error) {
	if strings.HasPrefix(imageData, "http://") || strings.HasPrefix(imageData, "https://") {
		resp, err := s.client.R().SetContext(ctx).Get(imageData)
		if err != nil {
			return nil, common.ErrInvalidImageFormat.Wrap(fmt.Errorf("failed to download image: %w", err))
		}
		if resp.StatusCode() != http.StatusOK {
			return nil, common.ErrInvalidImageFormat.Wrap(
				fmt.Errorf("failed to download image: status code %d", resp.StatusCode()))
		}
		return resp.Body(), nil
	}

	// 處理 base64 格式
	if !strings.HasPrefix(imageData, "data:image/") {
		return nil, common.ErrInvalidImageFormat.Wrap(fmt.Errorf("invalid image data format"))
	}

	header, payload, ok := strings.Cut(imageData, ",")
	if !ok || !strings.HasSuffix(header, ";base64") {
		return nil, common.ErrInvalidImageFormat.Wrap(fmt.Errorf("invalid base64 data format"))
	}

	decoded, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, common.ErrInvalidImageFormat.Wrap(fmt.Errorf("failed to decode base64 data: %w", err))
	}
	return decoded, nil
}

// isSupportedFormat 檢查圖片格式是否支援
func isSupportedFormat(format string) bool {
	supportedFormats := map[string]bool{
		"jpeg": true,
		"png":  true,
		"gif":  true,
		"webp": true,
	}
	return supportedFormats[format]
}
