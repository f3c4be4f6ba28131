// Package imaging compresses uploaded photos so they fit the size limit of
// a record store text field.
package imaging

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/gif"
	"image/jpeg"
	"image/png"
	"io"
	"math"
	"net/http"

	"golang.org/x/image/draw"
	"golang.org/x/image/webp"
	"golang.org/x/sync/errgroup"
)

// MaxEncodedSize is the default ceiling for the encoded image, measured on
// the data: URL text. Record store long-text fields hold 100,000 characters.
const MaxEncodedSize = 95_000

// OutputMIME is the type every compressed image is re-encoded to.
const OutputMIME = "image/jpeg"

// Default ladders, tried dimension first and quality second.
var (
	DefaultDimensions = []int{1280, 1024, 800, 640}
	DefaultQualities  = []int{90, 80, 70, 60}
)

// AllowedMIME lists the accepted input MIME types.
var AllowedMIME = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/webp": true,
	"image/gif":  true,
}

var (
	// ErrTooLarge is returned when no ladder rung fits under the ceiling.
	ErrTooLarge = errors.New("image too large")
	// ErrLoad is returned when the input cannot be decoded as an image.
	ErrLoad = errors.New("image could not be loaded")
)

// TooLargeError names the file that could not be compressed enough.
type TooLargeError struct {
	Name string
}

func (e *TooLargeError) Error() string {
	return fmt.Sprintf("%s: %s even at lowest quality", e.Name, ErrTooLarge)
}

func (e *TooLargeError) Is(target error) bool { return target == ErrTooLarge }

// LoadError wraps a failure to read or decode the named file.
type LoadError struct {
	Name string
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Name, ErrLoad, e.Err)
}

func (e *LoadError) Unwrap() []error { return []error{ErrLoad, e.Err} }

// Result is a compressed image and the ladder rung that produced it.
type Result struct {
	Data      []byte
	MIME      string
	Width     int
	Height    int
	Dimension int
	Quality   int
}

// DataURL returns the image as a base64 data: URL.
func (r *Result) DataURL() string {
	return "data:" + r.MIME + ";base64," + base64.StdEncoding.EncodeToString(r.Data)
}

// DataURLLen returns the length of the data: URL for n bytes of JPEG.
func DataURLLen(n int) int {
	return len("data:"+OutputMIME+";base64,") + base64.StdEncoding.EncodedLen(n)
}

// EncodeFunc encodes img at the given quality.
type EncodeFunc func(img image.Image, quality int) ([]byte, error)

// Compressor walks a dimension and quality ladder until the encoded image
// fits under MaxSize.
type Compressor struct {
	MaxSize    int
	Dimensions []int
	Qualities  []int
	// Size measures an encoded image against MaxSize. Defaults to DataURLLen.
	Size func(n int) int
	// Encode defaults to baseline JPEG.
	Encode EncodeFunc
}

// New returns a compressor with the default ladders and ceiling.
func New() *Compressor {
	return &Compressor{
		MaxSize:    MaxEncodedSize,
		Dimensions: DefaultDimensions,
		Qualities:  DefaultQualities,
	}
}

// Compress reads an image and returns the first ladder rung whose encoding
// is strictly smaller than the ceiling.
func (c *Compressor) Compress(name string, r io.Reader) (*Result, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, &LoadError{Name: name, Err: fmt.Errorf("reading image data: %w", err)}
	}

	// Sniff actual MIME type from bytes (not trusting client headers).
	detected := http.DetectContentType(data)
	if !AllowedMIME[detected] {
		return nil, &LoadError{Name: name, Err: fmt.Errorf("unsupported image format: %s", detected)}
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, &LoadError{Name: name, Err: fmt.Errorf("decoding image: %w", err)}
	}

	res, err := c.CompressImage(img)
	if errors.Is(err, ErrTooLarge) {
		return nil, &TooLargeError{Name: name}
	}
	if err != nil {
		return nil, fmt.Errorf("compressing %s: %w", name, err)
	}

	compressions.WithLabelValues("ok").Inc()
	rungs.Observe(float64(res.Dimension))
	return res, nil
}

// CompressImage runs the ladder on an already decoded image.
func (c *Compressor) CompressImage(img image.Image) (*Result, error) {
	dims, quals := c.Dimensions, c.Qualities
	if len(dims) == 0 {
		dims = DefaultDimensions
	}
	if len(quals) == 0 {
		quals = DefaultQualities
	}
	max := c.MaxSize
	if max <= 0 {
		max = MaxEncodedSize
	}
	size := c.Size
	if size == nil {
		size = DataURLLen
	}
	encode := c.Encode
	if encode == nil {
		encode = encodeJPEG
	}

	for _, dim := range dims {
		scaled := downscale(img, dim)
		b := scaled.Bounds()
		for _, q := range quals {
			data, err := encode(scaled, q)
			if err != nil {
				compressions.WithLabelValues("error").Inc()
				return nil, fmt.Errorf("encoding JPEG: %w", err)
			}
			if size(len(data)) < max {
				return &Result{
					Data:      data,
					MIME:      OutputMIME,
					Width:     b.Dx(),
					Height:    b.Dy(),
					Dimension: dim,
					Quality:   q,
				}, nil
			}
		}
	}
	compressions.WithLabelValues("too_large").Inc()
	return nil, ErrTooLarge
}

// File is one named upload.
type File struct {
	Name string
	Open func() (io.ReadCloser, error)
}

// CompressAll compresses files concurrently and returns results in input
// order. The first failure cancels the rest.
func (c *Compressor) CompressAll(ctx context.Context, files []File) ([]*Result, error) {
	results := make([]*Result, len(files))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i, f := range files {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			rc, err := f.Open()
			if err != nil {
				return &LoadError{Name: f.Name, Err: err}
			}
			defer rc.Close()
			res, err := c.Compress(f.Name, rc)
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// CompressEach compresses every file independently. results[i] is nil when
// errs[i] is set; one bad file does not affect the others.
func (c *Compressor) CompressEach(ctx context.Context, files []File) ([]*Result, []error) {
	results := make([]*Result, len(files))
	errs := make([]error, len(files))
	var g errgroup.Group
	g.SetLimit(4)
	for i, f := range files {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				errs[i] = err
				return nil
			}
			rc, err := f.Open()
			if err != nil {
				errs[i] = &LoadError{Name: f.Name, Err: err}
				return nil
			}
			defer rc.Close()
			results[i], errs[i] = c.Compress(f.Name, rc)
			return nil
		})
	}
	g.Wait()
	return results, errs
}

func encodeJPEG(img image.Image, quality int) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// downscale resizes the image so neither dimension exceeds maxDim, keeping
// the aspect ratio. Returns the original image if already within bounds.
func downscale(img image.Image, maxDim int) image.Image {
	bounds := img.Bounds()
	w := bounds.Dx()
	h := bounds.Dy()

	if w <= maxDim && h <= maxDim {
		return img
	}

	newW, newH := w, h
	if w >= h {
		newW = maxDim
		newH = int(math.Round(float64(h) * float64(maxDim) / float64(w)))
	} else {
		newH = maxDim
		newW = int(math.Round(float64(w) * float64(maxDim) / float64(h)))
	}

	if newW < 1 {
		newW = 1
	}
	if newH < 1 {
		newH = 1
	}

	dst := image.NewRGBA(image.Rect(0, 0, newW, newH))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Over, nil)
	return dst
}

func init() {
	image.RegisterFormat("jpeg", "\xff\xd8", jpeg.Decode, jpeg.DecodeConfig)
	image.RegisterFormat("png", "\x89PNG", png.Decode, png.DecodeConfig)
	image.RegisterFormat("gif", "GIF8?a", gif.Decode, gif.DecodeConfig)
	image.RegisterFormat("webp", "RIFF????WEBPVP8", webp.Decode, webp.DecodeConfig)
}
