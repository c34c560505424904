package service

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/gabriel-vasile/mimetype"
	_ "golang.org/x/image/webp"
)

const (
	// MaxStagedImageBytes 单张暂存图片的大小上限。
	MaxStagedImageBytes = 8 << 20
	thumbnailWidth      = 320
)

var (
	ErrImageEmpty       = errors.New("image data is empty")
	ErrImageTooLarge    = errors.New("image exceeds size limit")
	ErrImageUnsupported = errors.New("only image files are allowed")
)

// StagedImage 是解析后的上传图片。
type StagedImage struct {
	MIMEType  string
	Width     int
	Height    int
	Thumbnail []byte
}

// inspectImage 按文件内容嗅探 MIME 类型，读取尺寸并生成缩略图。
func inspectImage(data []byte) (StagedImage, error) {
	if len(data) == 0 {
		return StagedImage{}, ErrImageEmpty
	}
	if len(data) > MaxStagedImageBytes {
		return StagedImage{}, ErrImageTooLarge
	}

	mime := mimetype.Detect(data)
	if !strings.HasPrefix(mime.String(), "image/") {
		return StagedImage{}, ErrImageUnsupported
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return StagedImage{}, fmt.Errorf("%w: %s", ErrImageUnsupported, mime.String())
	}

	staged := StagedImage{
		MIMEType: mime.String(),
		Width:    cfg.Width,
		Height:   cfg.Height,
	}

	thumb, err := buildThumbnail(data)
	if err == nil {
		staged.Thumbnail = thumb
	}
	return staged, nil
}

func buildThumbnail(data []byte) ([]byte, error) {
	src, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, err
	}
	if src.Bounds().Dx() > thumbnailWidth {
		src = imaging.Resize(src, thumbnailWidth, 0, imaging.Lanczos)
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, src, imaging.JPEG, imaging.JPEGQuality(80)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// dataURL 编码为内联 data URL。
func dataURL(mimeType string, data []byte) string {
	return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data)
}
