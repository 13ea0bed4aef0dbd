package capture

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"

	"github.com/kbinani/screenshot"

	"github.com/rickgao/screen-relay/internal/protocol"
)

// Provider supplies display metadata and encoded frames. It exists so the
// agent loops can be tested without a physical display.
type Provider interface {
	// Displays enumerates the attached monitors.
	Displays() ([]protocol.Display, error)

	// FullFrame captures the given monitor as JPEG.
	FullFrame(monitor int) ([]byte, error)

	// PreviewFrame captures the given monitor as PNG.
	PreviewFrame(monitor int) ([]byte, error)
}

// screenProvider captures real screens.
type screenProvider struct {
	jpegQuality int
}

// NewScreenProvider returns a Provider backed by the local displays.
func NewScreenProvider(jpegQuality int) Provider {
	return &screenProvider{jpegQuality: jpegQuality}
}

func (s *screenProvider) Displays() ([]protocol.Display, error) {
	n := screenshot.NumActiveDisplays()
	if n == 0 {
		return nil, fmt.Errorf("no active displays")
	}

	displays := make([]protocol.Display, 0, n)
	for i := 0; i < n; i++ {
		b := screenshot.GetDisplayBounds(i)
		displays = append(displays, protocol.Display{
			Index: i,
			Label: fmt.Sprintf("%dx%d", b.Dx(), b.Dy()),
		})
	}
	return displays, nil
}

func (s *screenProvider) FullFrame(monitor int) ([]byte, error) {
	img, err := s.grab(monitor)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: s.jpegQuality}); err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}

func (s *screenProvider) PreviewFrame(monitor int) ([]byte, error) {
	img, err := s.grab(monitor)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

func (s *screenProvider) grab(monitor int) (*image.RGBA, error) {
	if monitor < 0 || monitor >= screenshot.NumActiveDisplays() {
		return nil, fmt.Errorf("monitor %d out of range", monitor)
	}
	img, err := screenshot.CaptureDisplay(monitor)
	if err != nil {
		return nil, fmt.Errorf("capture display %d: %w", monitor, err)
	}
	return img, nil
}
