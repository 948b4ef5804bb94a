package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"io"
	"path"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp"
	"golang.org/x/sync/semaphore"

	"adminpanel/internal/storage"
)

const thumbnailDir = "thumbnails"

type formatInfo struct {
	ext  string
	mime string
}

var (
	formatByMime = map[string]imaging.Format{
		"image/jpeg": imaging.JPEG,
		"image/png":  imaging.PNG,
		"image/gif":  imaging.GIF,
		"image/bmp":  imaging.BMP,
		"image/tiff": imaging.TIFF,
	}
	formatByName = map[string]imaging.Format{
		"jpg":  imaging.JPEG,
		"jpeg": imaging.JPEG,
		"png":  imaging.PNG,
		"gif":  imaging.GIF,
		"bmp":  imaging.BMP,
		"tif":  imaging.TIFF,
		"tiff": imaging.TIFF,
	}
	formats = map[imaging.Format]formatInfo{
		imaging.JPEG: {ext: "jpg", mime: "image/jpeg"},
		imaging.PNG:  {ext: "png", mime: "image/png"},
		imaging.GIF:  {ext: "gif", mime: "image/gif"},
		imaging.BMP:  {ext: "bmp", mime: "image/bmp"},
		imaging.TIFF: {ext: "tiff", mime: "image/tiff"},
	}
)

// outputPlan decides, before anything is written, which format an image
// upload is stored in. It lets the final path carry the right extension.
type outputPlan struct {
	format        imaging.Format
	encodable     bool
	extension     string
	mimeType      string
	convertedFrom string
}

func planOutput(mime, ext string, opts UploadOptions) outputPlan {
	if opts.ConvertFormat != "" {
		f := formatByName[opts.ConvertFormat]
		plan := outputPlan{format: f, encodable: true, extension: formats[f].ext, mimeType: formats[f].mime}
		if src, ok := formatByMime[mime]; !ok || src != f {
			plan.convertedFrom = ext
		}
		return plan
	}

	if f, ok := formatByMime[mime]; ok {
		return outputPlan{format: f, encodable: true, extension: ext, mimeType: mime}
	}

	// Decodable but not encodable (webp): keep the original bytes unless a
	// derivative has to be produced, in which case fall back to PNG.
	if opts.ResizeDimensions != nil || opts.GenerateThumbnail {
		return outputPlan{
			format:        imaging.PNG,
			encodable:     true,
			extension:     formats[imaging.PNG].ext,
			mimeType:      formats[imaging.PNG].mime,
			convertedFrom: ext,
		}
	}
	return outputPlan{extension: ext, mimeType: mime}
}

type transformResult struct {
	metadata map[string]any
	// size of the main blob after re-encoding, or -1 when it was left untouched.
	size int64
	// written lists derivative blobs created, for rollback.
	written []string
}

// Transformer runs image decode/resize/encode work on a bounded number of
// concurrent workers so CPU-heavy uploads cannot starve other requests.
type Transformer struct {
	sem             *semaphore.Weighted
	optimizeQuality int
	maxPixels       int64
}

func NewTransformer(workers, optimizeQuality int, maxPixels int64) *Transformer {
	if workers <= 0 {
		workers = 1
	}
	if maxPixels <= 0 {
		maxPixels = DefaultMaxPixels
	}
	return &Transformer{
		sem:             semaphore.NewWeighted(int64(workers)),
		optimizeQuality: optimizeQuality,
		maxPixels:       maxPixels,
	}
}

// Process loads the blob at p, records its dimensions and applies the
// optimize/resize/thumbnail steps in place. On error, res.written still
// lists derivatives that must be cleaned up.
func (t *Transformer) Process(ctx context.Context, disk storage.Disk, p string, plan outputPlan, opts UploadOptions) (res transformResult, err error) {
	res.size = -1
	res.metadata = map[string]any{}

	if err := t.sem.Acquire(ctx, 1); err != nil {
		return res, err
	}
	defer t.sem.Release(1)

	img, err := t.load(ctx, disk, p)
	if err != nil {
		return res, err
	}

	bounds := img.Bounds()
	res.metadata[MetaOriginalWidth] = bounds.Dx()
	res.metadata[MetaOriginalHeight] = bounds.Dy()

	out := img
	mutated := false
	if r := opts.ResizeDimensions; r != nil {
		if r.Method == ResizeScale {
			out = imaging.Resize(out, r.Width, r.Height, imaging.Lanczos)
		} else {
			out = imaging.Fill(out, r.Width, r.Height, imaging.Center, imaging.Lanczos)
		}
		mutated = true
	}

	if plan.encodable && t.shouldReencode(plan, opts, mutated) {
		n, err := t.save(ctx, disk, p, out, plan, opts.OptimizeImage)
		if err != nil {
			return res, err
		}
		res.size = n
	}
	if plan.convertedFrom != "" {
		res.metadata[MetaConvertedFrom] = plan.convertedFrom
	}

	outBounds := out.Bounds()
	res.metadata[MetaWidth] = outBounds.Dx()
	res.metadata[MetaHeight] = outBounds.Dy()

	if opts.GenerateThumbnail {
		dims := opts.ThumbnailDimensions
		thumb := imaging.Fill(out, dims.Width, dims.Height, imaging.Center, imaging.Lanczos)
		thumbPath := path.Join(path.Dir(p), thumbnailDir, path.Base(p))
		if _, err := t.save(ctx, disk, thumbPath, thumb, plan, opts.OptimizeImage); err != nil {
			return res, err
		}
		res.written = append(res.written, thumbPath)
		res.metadata[MetaThumbnailPath] = thumbPath
	}

	return res, nil
}

// GIFs are only re-encoded when they change shape or format; a plain
// re-save would drop every frame but the first.
func (t *Transformer) shouldReencode(plan outputPlan, opts UploadOptions, mutated bool) bool {
	if mutated || plan.convertedFrom != "" {
		return true
	}
	return opts.OptimizeImage && plan.format != imaging.GIF
}

func (t *Transformer) load(ctx context.Context, disk storage.Disk, p string) (image.Image, error) {
	rc, err := disk.Open(ctx, p)
	if err != nil {
		return nil, fmt.Errorf("failed to read stored image: %w", err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("failed to read stored image: %w", err)
	}

	// The header is checked first: a small compressed file can still
	// decode into gigabytes of pixels.
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrImageDecodeFailed, err)
	}
	if int64(cfg.Width)*int64(cfg.Height) > t.maxPixels {
		return nil, fmt.Errorf("%w: %dx%d exceeds %d pixels", ErrImageDecodeFailed, cfg.Width, cfg.Height, t.maxPixels)
	}

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrImageDecodeFailed, err)
	}
	return img, nil
}

func (t *Transformer) save(ctx context.Context, disk storage.Disk, p string, img image.Image, plan outputPlan, optimize bool) (int64, error) {
	quality := 95
	compression := png.DefaultCompression
	if optimize {
		quality = t.optimizeQuality
		compression = png.BestCompression
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, plan.format,
		imaging.JPEGQuality(quality),
		imaging.PNGCompressionLevel(compression),
	); err != nil {
		return 0, fmt.Errorf("failed to encode image: %w", err)
	}

	n, err := disk.Put(ctx, p, &buf, plan.mimeType)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return 0, err
		}
		return 0, fmt.Errorf("%w: %v", ErrStorageWriteFailed, err)
	}
	return n, nil
}
