// Package media validates, normalizes and stores listing images.
package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"sync"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"easyrent/pkg/apperrors"
)

const (
	FieldPrimary   = "houseImage"
	FieldSecondary = "images"
)

var allowedTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
	"image/webp": true,
}

type Options struct {
	MaxSecondary int
	MaxPartBytes int64
	MaxDimension int
	// 解码前按头部声明的宽×高限制
	MaxPixels   int
	JPEGQuality int
	// 并发上传数
	Uploads int
}

func (o *Options) defaults() {
	if o.MaxSecondary <= 0 {
		o.MaxSecondary = 5
	}
	if o.MaxPartBytes <= 0 {
		o.MaxPartBytes = 10 << 20
	}
	if o.MaxDimension <= 0 {
		o.MaxDimension = 1600
	}
	if o.MaxPixels <= 0 {
		o.MaxPixels = 40_000_000
	}
	if o.JPEGQuality <= 0 || o.JPEGQuality > 100 {
		o.JPEGQuality = 85
	}
	if o.Uploads <= 0 {
		o.Uploads = 3
	}
}

type Result struct {
	HouseImage string
	Images     []string
	// keys of every stored object, for Discard
	Keys []string
}

type Pipeline struct {
	store Storage
	opts  Options
	l     *zap.Logger
}

func NewPipeline(store Storage, opts Options, l *zap.Logger) *Pipeline {
	opts.defaults()
	if l == nil {
		l = zap.NewNop()
	}
	return &Pipeline{store: store, opts: opts, l: l.Named("media")}
}

type part struct {
	field string
	key   string
	img   *normalized
	url   string
}

// Process stores the primary image and the secondary images as one unit:
// every part is checked and normalized before the first upload, and a failed
// upload removes whatever was already stored.
func (p *Pipeline) Process(ctx context.Context, ownerID string, primary *multipart.FileHeader, secondary []*multipart.FileHeader) (Result, error) {
	if len(secondary) > p.opts.MaxSecondary {
		return Result{}, apperrors.Validation("Too many images", map[string]string{
			FieldSecondary: fmt.Sprintf("at most %d images are allowed", p.opts.MaxSecondary),
		})
	}

	var parts []*part
	if primary != nil {
		pt, err := p.prepare(ownerID, FieldPrimary, primary)
		if err != nil {
			return Result{}, err
		}
		parts = append(parts, pt)
	}
	for i, fh := range secondary {
		pt, err := p.prepare(ownerID, fmt.Sprintf("%s[%d]", FieldSecondary, i), fh)
		if err != nil {
			return Result{}, err
		}
		parts = append(parts, pt)
	}
	if len(parts) == 0 {
		return Result{}, nil
	}

	if err := p.upload(ctx, parts); err != nil {
		return Result{}, apperrors.Upstream("Image upload failed, please try again", err)
	}

	var res Result
	for _, pt := range parts {
		res.Keys = append(res.Keys, pt.key)
		if pt.field == FieldPrimary {
			res.HouseImage = pt.url
		} else {
			res.Images = append(res.Images, pt.url)
		}
	}
	return res, nil
}

// Discard removes stored objects, e.g. when the listing write that should
// reference them failed. Errors are logged.
func (p *Pipeline) Discard(ctx context.Context, res Result) {
	p.remove(ctx, res.Keys)
}

func (p *Pipeline) prepare(ownerID, field string, fh *multipart.FileHeader) (*part, error) {
	if fh.Size > p.opts.MaxPartBytes {
		return nil, apperrors.Validation("Image too large", map[string]string{
			field: fmt.Sprintf("must be at most %d MB", p.opts.MaxPartBytes>>20),
		})
	}
	f, err := fh.Open()
	if err != nil {
		return nil, apperrors.Validation("Unreadable upload", map[string]string{field: "could not be read"})
	}
	defer f.Close()

	raw, err := io.ReadAll(io.LimitReader(f, p.opts.MaxPartBytes+1))
	if err != nil {
		return nil, apperrors.Validation("Unreadable upload", map[string]string{field: "could not be read"})
	}
	if int64(len(raw)) > p.opts.MaxPartBytes {
		return nil, apperrors.Validation("Image too large", map[string]string{
			field: fmt.Sprintf("must be at most %d MB", p.opts.MaxPartBytes>>20),
		})
	}

	mt := mimetype.Detect(raw)
	if !allowedTypes[mt.String()] {
		return nil, apperrors.Validation("Unsupported image type", map[string]string{
			field: fmt.Sprintf("%s is not an accepted image type", mt.String()),
		})
	}
	img, err := normalize(raw, mt.String(), p.opts.MaxDimension, p.opts.MaxPixels, p.opts.JPEGQuality)
	if errors.Is(err, errTooManyPixels) {
		return nil, apperrors.Validation("Image too large", map[string]string{
			field: fmt.Sprintf("must be at most %d pixels in total", p.opts.MaxPixels),
		})
	}
	if err != nil {
		return nil, apperrors.Validation("Invalid image", map[string]string{field: "is not a valid image"})
	}
	return &part{
		field: field,
		key:   fmt.Sprintf("listings/%s/%s.%s", ownerID, uuid.NewString(), img.ext),
		img:   img,
	}, nil
}

func (p *Pipeline) upload(ctx context.Context, parts []*part) error {
	var (
		mu     sync.Mutex
		stored []string
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.opts.Uploads)
	for _, pt := range parts {
		pt := pt
		g.Go(func() error {
			url, err := p.store.Put(gctx, pt.key, bytes.NewReader(pt.img.data), int64(len(pt.img.data)), pt.img.contentType)
			if err != nil {
				return err
			}
			pt.url = url
			mu.Lock()
			stored = append(stored, pt.key)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		// 全部回滚，用独立 ctx 保证清理能执行
		p.remove(context.WithoutCancel(ctx), stored)
		return err
	}
	return nil
}

func (p *Pipeline) remove(ctx context.Context, keys []string) {
	for _, k := range keys {
		if err := p.store.Delete(ctx, k); err != nil {
			p.l.Error("remove stored image", zap.String("key", k), zap.Error(err))
		}
	}
}
