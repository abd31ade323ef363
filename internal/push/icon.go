package push

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"

	"github.com/disintegration/imaging"
	"github.com/gabriel-vasile/mimetype"
)

var (
	ErrUnsupportedIcon = errors.New("unsupported file type, only JPEG and PNG are allowed")
	ErrIconTooLarge    = errors.New("icon dimensions too large")
)

const (
	iconMaxSide  = 192
	iconQuality  = 70
	iconMaxBytes = 5 << 20
	// Tope de pixeles antes de decodificar; el limite en bytes no acota la imagen descomprimida.
	iconMaxPixels = 4096 * 4096
)

// PrepareIcon reduce el icono a 192x192 como maximo y lo devuelve como data URL JPEG.
func PrepareIcon(r io.Reader) (string, error) {
	data, err := io.ReadAll(io.LimitReader(r, iconMaxBytes+1))
	if err != nil {
		return "", fmt.Errorf("read icon: %w", err)
	}
	if len(data) > iconMaxBytes {
		return "", fmt.Errorf("icon exceeds %d bytes", iconMaxBytes)
	}

	mt := mimetype.Detect(data)
	if !mt.Is("image/jpeg") && !mt.Is("image/png") {
		return "", ErrUnsupportedIcon
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("decode icon header: %w", err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 || cfg.Width*cfg.Height > iconMaxPixels {
		return "", fmt.Errorf("%w: %dx%d", ErrIconTooLarge, cfg.Width, cfg.Height)
	}

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return "", fmt.Errorf("decode icon: %w", err)
	}
	img = imaging.Fit(img, iconMaxSide, iconMaxSide, imaging.Lanczos)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(iconQuality)); err != nil {
		return "", fmt.Errorf("encode icon: %w", err)
	}
	return "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}
