package pixoo

import (
	"context"
	"fmt"
	"image"
	"sync"

	xdraw "golang.org/x/image/draw"
	"go.uber.org/zap"

	"github.com/brettg0396/skyface-go/internal/domain"
)

// gifIDLimit is the PicID after which the device counter is reset; the
// Pixoo64 stops accepting frames once it has buffered too many.
const gifIDLimit = 32

// Surface shows images on a Pixoo, scaling them to the panel size.
type Surface struct {
	client *Client
	size   int
	logger *zap.Logger

	mu    sync.Mutex
	picID int
}

// NewSurface wraps client as a size x size surface. size defaults to 64.
func NewSurface(client *Client, size int, logger *zap.Logger) *Surface {
	if size <= 0 {
		size = domain.Pixoo64Size
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Surface{client: client, size: size, logger: logger}
}

// Size returns the panel dimensions.
func (s *Surface) Size() (int, int) {
	return s.size, s.size
}

// Show scales img to the panel and sends it as the next animation frame.
func (s *Surface) Show(ctx context.Context, img image.Image) error {
	frame := domain.FrameFromImage(s.fit(img))

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.picID == 0 || s.picID >= gifIDLimit {
		if err := s.client.ResetGifID(ctx); err != nil {
			return fmt.Errorf("failed to reset frame counter: %w", err)
		}
		s.picID = 0
	}
	s.picID++

	if err := s.client.SendFrame(ctx, frame, s.picID); err != nil {
		// Reset on the next frame.
		s.picID = 0
		return fmt.Errorf("failed to send frame: %w", err)
	}
	s.logger.Debug("pushed frame", zap.String("ip", s.client.IP), zap.Int("picID", s.picID))
	return nil
}

func (s *Surface) fit(img image.Image) image.Image {
	b := img.Bounds()
	if b.Dx() == s.size && b.Dy() == s.size {
		return img
	}
	dst := image.NewRGBA(image.Rect(0, 0, s.size, s.size))
	xdraw.BiLinear.Scale(dst, dst.Bounds(), img, b, xdraw.Src, nil)
	return dst
}
