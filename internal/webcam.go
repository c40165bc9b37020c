package fsrpad

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"math"
	"sort"
	"sync/atomic"

	"github.com/blackjack/webcam"
	log "github.com/inconshreveable/log15"
)

const (
	V4L2_PIX_FMT_YUYV = 0x56595559
)

type FrameSizes []webcam.FrameSize

func (slice FrameSizes) Len() int {
	return len(slice)
}

// For sorting purposes
func (slice FrameSizes) Less(i, j int) bool {
	ls := slice[i].MaxWidth * slice[i].MaxHeight
	rs := slice[j].MaxWidth * slice[j].MaxHeight
	return ls < rs
}

// For sorting purposes
func (slice FrameSizes) Swap(i, j int) {
	slice[i], slice[j] = slice[j], slice[i]
}

// WebcamSource measures the brightness of an area of a camera image, for
// example a pad with a light source behind a compressible diffusor. Frames
// are read in Run, Measurement returns the latest value without blocking.
type WebcamSource struct {
	device  string
	capture CaptureSettings
	value   atomic.Uint32
	log     log.Logger
}

// NewWebcamSource returns a source for the video device dev.
func NewWebcamSource(dev string, capture CaptureSettings) *WebcamSource {
	return &WebcamSource{
		device:  dev,
		capture: capture,
		log:     log.New("module", "webcam", "device", dev),
	}
}

// Measurement implements Source.
func (s *WebcamSource) Measurement() float32 {
	return math.Float32frombits(s.value.Load())
}

func (s *WebcamSource) store(v float32) {
	s.value.Store(math.Float32bits(v))
}

func (s *WebcamSource) initializeWebcam() (*webcam.Webcam, webcam.PixelFormat, int, int, error) {
	cam, err := webcam.Open(s.device)
	if err != nil {
		return nil, 0, 0, 0, err
	}

	// select pixel format
	formatDesc := cam.GetSupportedFormats()

	var format webcam.PixelFormat
	for f, desc := range formatDesc {
		if f == V4L2_PIX_FMT_YUYV {
			s.log.Debug("Using format", "format", desc)
			format = f
			break
		}
	}
	if format == 0 {
		cam.Close()
		return nil, 0, 0, 0, fmt.Errorf("webcam does not support YUYV format")
	}

	// The smallest frame size is enough and the fastest to read.
	frames := FrameSizes(cam.GetSupportedFrameSizes(format))
	if len(frames) == 0 {
		cam.Close()
		return nil, 0, 0, 0, fmt.Errorf("webcam reports no frame sizes")
	}
	sort.Sort(frames)
	size := &frames[0]

	f, w, h, err := cam.SetImageFormat(format, uint32(size.MaxWidth), uint32(size.MaxHeight))
	if err != nil {
		cam.Close()
		return nil, 0, 0, 0, err
	}
	s.log.Info("Resulting image format", "format", formatDesc[f], "width", w, "height", h)

	if err := cam.SetBufferCount(4); err != nil {
		cam.Close()
		return nil, 0, 0, 0, err
	}

	return cam, f, int(w), int(h), nil
}

func readNextFrame(cam *webcam.Webcam) ([]byte, error) {
	timeout := uint32(1) // seconds
	err := cam.WaitForFrame(timeout)
	if err != nil {
		return nil, err
	}

	frame, err := cam.ReadFrame()
	if err != nil {
		return nil, err
	}

	if len(frame) == 0 {
		return nil, fmt.Errorf("webcam returned empty frame")
	}

	return frame, nil
}

// Run streams frames and updates the measurement until ctx is cancelled.
func (s *WebcamSource) Run(ctx context.Context) error {
	cam, f, w, h, err := s.initializeWebcam()
	if err != nil {
		return fmt.Errorf("open %s: %w", s.device, err)
	}
	defer cam.Close()

	if err := cam.StartStreaming(); err != nil {
		return err
	}

	fi := make(chan []byte)
	go s.encodeToImage(ctx, fi, w, h, f)

	frameCount := 0
	for ctx.Err() == nil {
		frame, err := readNextFrame(cam)
		switch err.(type) {
		case nil:
		case *webcam.Timeout:
			s.log.Debug("Timeout waiting for frame")
			continue
		default:
			return err
		}

		s.store(s.measureFrame(frame, w))

		if frameCount%20 == 0 {
			preview := make([]byte, len(frame))
			copy(preview, frame)
			select {
			case fi <- preview:
			default:
			}
		}
		frameCount++
	}
	return nil
}

// measureFrame applies the brightness and contrast correction to the luma of
// a YUYV frame and returns the mean of the capture area as 0..1.
func (s *WebcamSource) measureFrame(frame []byte, w int) float32 {
	c := s.capture
	sum, n, x, y := 0, 0, 0, 0
	for i := 0; i < len(frame); i += 2 { // in YUYV, every second byte contains luma (greyscale pixel)
		adjusted := adjustPixel(frame[i], c.Contrast, c.Brightness)
		frame[i] = adjusted

		if y >= c.OffsetY && y <= c.OffsetY+c.Height {
			if x >= c.OffsetX && x <= c.OffsetX+c.Width {
				sum += int(adjusted)
				n++
			}
		}

		x++
		if x == w {
			x = 0
			y++
		}
	}

	if n == 0 {
		return 0
	}
	v := float32(sum) / float32(n*255)
	if c.Invert {
		v = 1 - v
	}
	return v
}

func adjustPixel(pixel byte, contrast int, brightness int) byte {
	c := float32(contrast) - 128
	b := float32(brightness) - 128

	c = (259 * (c + 255)) / (255 * (259 - c))

	p := c*(float32(pixel)-128) + 128 + b

	if p < 0 {
		p = 0
	}
	if p > 255 {
		p = 255
	}
	return byte(p)
}

func (s *WebcamSource) encodeToImage(ctx context.Context, fi chan []byte, w, h int, format webcam.PixelFormat) {
	rgba := image.NewRGBA(image.Rect(0, 0, w, h))

	for {
		var frame []byte
		select {
		case <-ctx.Done():
			return
		case frame = <-fi:
		}

		if format != V4L2_PIX_FMT_YUYV {
			s.log.Error("Unsupported preview format", "format", format)
			return
		}
		createImage(frame, rgba, w, s.capture)

		// jpeg is a lot faster than png
		buf := &bytes.Buffer{}
		if err := jpeg.Encode(buf, rgba, &jpeg.Options{Quality: 90}); err != nil {
			s.log.Error("Failed to encode preview", "error", err)
			continue
		}
		savePreview(buf.Bytes())
	}
}

// createImage renders the luma of a frame with a red border around the
// capture area.
func createImage(frame []byte, rgba *image.RGBA, w int, c CaptureSettings) {
	x, y := 0, 0
	for i := 0; i < len(frame); i += 2 {
		luma := frame[i]
		col := color.RGBA{R: luma, G: luma, B: luma, A: 255}

		if y == c.OffsetY || y == c.OffsetY+c.Height {
			if x >= c.OffsetX && x <= c.OffsetX+c.Width {
				col = color.RGBA{R: 255, A: 255}
			}
		}

		if x == c.OffsetX || x == c.OffsetX+c.Width {
			if y >= c.OffsetY && y <= c.OffsetY+c.Height {
				col = color.RGBA{R: 255, A: 255}
			}
		}

		rgba.Set(x, y, col)

		x++
		if x == w {
			x = 0
			y++
		}
	}
}
