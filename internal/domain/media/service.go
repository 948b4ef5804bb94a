package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"path"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/datatypes"

	"adminpanel/internal/storage"
)

// sniffLen is how much of an upload is read to detect its MIME type.
const sniffLen = 3072

// DiskResolver looks up a storage disk by name. *storage.Manager implements it.
type DiskResolver interface {
	Disk(name string) (storage.Disk, error)
}

// ReferenceGuard reports whether another entity still points at a media
// record. Hard deletes are refused while any guard says yes.
type ReferenceGuard interface {
	IsMediaReferenced(ctx context.Context, mediaID string) (bool, error)
}

// Service is the media upload pipeline: validate, store, transform,
// record. Blobs are always written before the record, and removed again
// if a later step fails.
type Service struct {
	repo        Repository
	disks       DiskResolver
	cfg         Config
	transformer *Transformer
	guards      []ReferenceGuard
	logger      *zap.Logger
	now         func() time.Time
}

func NewService(repo Repository, disks DiskResolver, cfg Config, logger *zap.Logger) *Service {
	cfg = cfg.normalize()
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		repo:        repo,
		disks:       disks,
		cfg:         cfg,
		transformer: NewTransformer(cfg.TransformWorkers, cfg.OptimizeQuality, cfg.MaxPixels),
		logger:      logger.Named("media"),
		now:         time.Now,
	}
}

// AddReferenceGuard registers a guard consulted before every delete.
func (s *Service) AddReferenceGuard(g ReferenceGuard) {
	s.guards = append(s.guards, g)
}

func (s *Service) Config() Config { return s.cfg }

// Upload stores one file for ownerID and returns its record.
func (s *Service) Upload(ctx context.Context, file File, ownerID int64, opts UploadOptions) (*Media, error) {
	if ownerID <= 0 {
		return nil, ErrOwnerRequired
	}
	if file.Reader == nil || file.Size == 0 {
		return nil, ErrEmptyFile
	}

	opts = opts.withDefaults(s.cfg)
	if err := opts.validate(); err != nil {
		return nil, err
	}
	disk, err := s.disks.Disk(opts.Disk)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidOptions, err)
	}

	reader, mimeType, err := detectMime(file)
	if err != nil {
		return nil, err
	}
	if !opts.allows(mimeType) {
		return nil, fmt.Errorf("%w: %s", ErrInvalidFileType, mimeType)
	}
	if file.Size > opts.MaxSizeBytes {
		return nil, ErrFileTooLarge
	}

	stem, clientExt := splitName(file.Filename)
	ext := extensionFor(clientExt, mimeType)
	isImage := CategoryFromMime(mimeType) == CategoryImage

	var plan outputPlan
	if isImage {
		plan = planOutput(mimeType, ext, opts)
		ext = plan.extension
	}

	now := s.now()
	dir := defaultDirectory(now, opts.Collection)
	if opts.Directory != "" {
		dir, _ = storage.CleanPath(opts.Directory)
	}
	p := path.Join(dir, generateFileName(now, stem, ext))

	var written []string
	fail := func(err error) (*Media, error) {
		s.rollback(ctx, disk, written)
		return nil, err
	}

	size, err := disk.Put(ctx, p, &limitedReader{ctx: ctx, r: reader, remaining: opts.MaxSizeBytes}, mimeType)
	if err != nil {
		return nil, storeError(err)
	}
	written = append(written, p)
	if size == 0 {
		return fail(ErrEmptyFile)
	}

	metadata := datatypes.JSONMap{}
	for k, v := range opts.ExtraMetadata {
		metadata[k] = v
	}

	if isImage {
		res, err := s.transformer.Process(ctx, disk, p, plan, opts)
		written = append(written, res.written...)
		if err != nil {
			return fail(err)
		}
		for k, v := range res.metadata {
			metadata[k] = v
		}
		if res.size >= 0 {
			size = res.size
		}
		mimeType = plan.mimeType
	}

	if stem == "" {
		stem = "file"
	}
	m := &Media{
		Name:       stem,
		Path:       p,
		Disk:       disk.Name(),
		MimeType:   mimeType,
		Extension:  ext,
		Size:       size,
		UploadedBy: ownerID,
		Collection: optionalString(opts.Collection),
		Metadata:   metadata,
		CreatedAt:  now,
	}
	if err := s.repo.Create(ctx, m); err != nil {
		return fail(fmt.Errorf("%w: %v", ErrMetadataPersistFailed, err))
	}

	s.logger.Debug("media stored",
		zap.String("media_id", m.ID),
		zap.String("disk", m.Disk),
		zap.String("path", m.Path),
		zap.Int64("size", m.Size),
	)
	return m, nil
}

// UploadMany applies opts to every file independently. Results keep the
// input order. With StopOnError, files not yet finished after the first
// failure report ErrBatchAborted.
func (s *Service) UploadMany(ctx context.Context, files []File, ownerID int64, opts UploadOptions, policy BatchPolicy) []Result {
	results := make([]Result, len(files))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.BatchConcurrency)

	for i := range files {
		if policy == StopOnError && gctx.Err() != nil {
			results[i].Err = ErrBatchAborted
			continue
		}
		g.Go(func() error {
			if policy == StopOnError && gctx.Err() != nil {
				results[i].Err = ErrBatchAborted
				return nil
			}
			m, err := s.Upload(gctx, files[i], ownerID, opts)
			if err != nil && ctx.Err() == nil && gctx.Err() != nil &&
				(errors.Is(err, context.Canceled) || errors.Is(err, ErrBatchAborted)) {
				err = ErrBatchAborted
			}
			results[i] = Result{Media: m, Err: err}
			if err != nil && policy == StopOnError {
				return err
			}
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// Replace uploads file, hands the new record to associate and then deletes
// previous. If associate fails the new upload is removed and previous is
// left untouched.
func (s *Service) Replace(ctx context.Context, file File, ownerID int64, previous *Media, opts UploadOptions, associate func(context.Context, *Media) error) (*Media, error) {
	m, err := s.Upload(ctx, file, ownerID, opts)
	if err != nil {
		return nil, err
	}
	if associate != nil {
		if err := associate(ctx, m); err != nil {
			if _, derr := s.Delete(context.WithoutCancel(ctx), m); derr != nil {
				s.logger.Error("failed to remove unassociated upload",
					zap.String("media_id", m.ID), zap.Error(derr))
			}
			return nil, err
		}
	}
	if previous != nil && previous.ID != m.ID {
		if _, err := s.Delete(ctx, previous); err != nil {
			s.logger.Warn("failed to delete replaced media",
				zap.String("media_id", previous.ID), zap.Error(err))
		}
	}
	return m, nil
}

func (s *Service) Find(ctx context.Context, id string) (*Media, error) {
	return s.repo.FindByID(ctx, id)
}

func (s *Service) ListByOwner(ctx context.Context, ownerID int64, collection string) ([]*Media, error) {
	return s.repo.ListByOwner(ctx, ownerID, collection)
}

func (s *Service) ListByCollection(ctx context.Context, collection string) ([]*Media, error) {
	return s.repo.ListByCollection(ctx, collection)
}

// Update changes the mutable fields of a record: name, alt, title,
// collection and metadata. Other keys are ignored. Metadata is merged into
// the existing map; a null value removes a key and a null map removes every
// caller key. Pipeline keys such as thumbnail_path are kept as they are.
// Concurrent updates are last-write-wins.
func (s *Service) Update(ctx context.Context, id string, changes map[string]any) (*Media, error) {
	fields := make(map[string]any, len(changes))
	for key, value := range changes {
		convert, ok := updatableFields[key]
		if !ok {
			continue
		}
		v, err := convert(value)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrInvalidUpdate, key, err)
		}
		fields[key] = v
	}

	if patch, ok := fields["metadata"]; ok {
		current, err := s.repo.FindByID(ctx, id)
		if err != nil {
			return nil, err
		}
		fields["metadata"] = mergeMetadata(current.Metadata, patch.(datatypes.JSONMap))
	}

	if len(fields) > 0 {
		if err := s.repo.Update(ctx, id, fields); err != nil {
			return nil, err
		}
	}
	return s.repo.FindByID(ctx, id)
}

func mergeMetadata(current, patch datatypes.JSONMap) datatypes.JSONMap {
	merged := datatypes.JSONMap{}
	for k, v := range current {
		if patch != nil || reservedMetadata[k] {
			merged[k] = v
		}
	}
	for k, v := range patch {
		if v == nil {
			delete(merged, k)
			continue
		}
		merged[k] = v
	}
	return merged
}

// URL returns the public URL of m, or a signed one valid until
// opts.ExpiresAt (default now + Config.SignedURLTTL).
func (s *Service) URL(ctx context.Context, m *Media, opts URLOptions) (string, error) {
	return s.urlFor(ctx, m.Disk, m.Path, opts)
}

// ThumbnailURL is URL for the thumbnail derivative; "" when there is none.
func (s *Service) ThumbnailURL(ctx context.Context, m *Media, opts URLOptions) (string, error) {
	thumb := m.ThumbnailPath()
	if thumb == "" {
		return "", nil
	}
	return s.urlFor(ctx, m.Disk, thumb, opts)
}

func (s *Service) urlFor(ctx context.Context, diskName, p string, opts URLOptions) (string, error) {
	disk, err := s.disks.Disk(diskName)
	if err != nil {
		return "", err
	}
	if !opts.Signed {
		return disk.URL(p), nil
	}
	expiresAt := opts.ExpiresAt
	if expiresAt.IsZero() {
		expiresAt = s.now().Add(s.cfg.SignedURLTTL)
	}
	return disk.SignedURL(ctx, p, expiresAt)
}

// Delete removes the blobs of m and then its record. It reports false
// with a nil error when the record was already gone. When a blob cannot be
// removed the record is kept so the delete can be retried.
func (s *Service) Delete(ctx context.Context, m *Media) (bool, error) {
	if m == nil {
		return false, nil
	}
	for _, g := range s.guards {
		inUse, err := g.IsMediaReferenced(ctx, m.ID)
		if err != nil {
			return false, err
		}
		if inUse {
			return false, ErrMediaInUse
		}
	}

	disk, err := s.disks.Disk(m.Disk)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrStorageDeleteFailed, err)
	}

	// Derivatives go first so a failure never leaves the record pointing
	// at a missing main blob.
	for _, p := range blobPaths(m) {
		if _, err := disk.Delete(ctx, p); err != nil {
			return false, fmt.Errorf("%w: %s: %v", ErrStorageDeleteFailed, p, err)
		}
	}

	if err := s.repo.Delete(ctx, m.ID); err != nil {
		if errors.Is(err, ErrMediaNotFound) {
			return false, nil
		}
		s.logger.Error("media record survived blob removal",
			zap.String("media_id", m.ID),
			zap.String("disk", m.Disk),
			zap.String("path", m.Path),
			zap.Error(err),
		)
		return false, fmt.Errorf("%w: %v", ErrMetadataPersistFailed, err)
	}
	return true, nil
}

// DeleteByID resolves id first; a missing record is not an error.
func (s *Service) DeleteByID(ctx context.Context, id string) (bool, error) {
	m, err := s.repo.FindByID(ctx, id)
	if errors.Is(err, ErrMediaNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return s.Delete(ctx, m)
}

// BulkDelete returns how many of ids were deleted.
func (s *Service) BulkDelete(ctx context.Context, ids []string) int {
	count := 0
	for _, o := range s.BulkDeleteOutcomes(ctx, ids) {
		if o.Deleted {
			count++
		}
	}
	return count
}

// BulkDeleteOutcomes deletes each id independently and reports per-id results.
func (s *Service) BulkDeleteOutcomes(ctx context.Context, ids []string) []DeleteOutcome {
	outcomes := make([]DeleteOutcome, 0, len(ids))
	for _, id := range ids {
		deleted, err := s.DeleteByID(ctx, id)
		if err != nil {
			s.logger.Warn("bulk delete item failed", zap.String("media_id", id), zap.Error(err))
		}
		outcomes = append(outcomes, DeleteOutcome{ID: id, Deleted: deleted, Err: err})
	}
	return outcomes
}

// rollback removes blobs written during a failed upload. Anything that
// cannot be removed is logged and left for the sweep.
func (s *Service) rollback(ctx context.Context, disk storage.Disk, paths []string) {
	ctx = context.WithoutCancel(ctx)
	for i := len(paths) - 1; i >= 0; i-- {
		if _, err := disk.Delete(ctx, paths[i]); err != nil {
			s.logger.Error("orphaned blob after failed upload",
				zap.String("disk", disk.Name()),
				zap.String("path", paths[i]),
				zap.Error(err),
			)
		}
	}
}

func blobPaths(m *Media) []string {
	if thumb := m.ThumbnailPath(); thumb != "" && thumb != m.Path {
		return []string{thumb, m.Path}
	}
	return []string{m.Path}
}

func detectMime(file File) (io.Reader, string, error) {
	if declared := normalizeMime(file.MimeType); declared != "" {
		return file.Reader, declared, nil
	}
	head := make([]byte, sniffLen)
	n, err := io.ReadFull(file.Reader, head)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		return nil, "", fmt.Errorf("failed to read upload: %w", err)
	}
	head = head[:n]
	if n == 0 {
		return nil, "", ErrEmptyFile
	}
	detected := normalizeMime(mimetype.Detect(head).String())
	return io.MultiReader(bytes.NewReader(head), file.Reader), detected, nil
}

func normalizeMime(v string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return ""
	}
	if parsed, _, err := mime.ParseMediaType(v); err == nil {
		return parsed
	}
	return strings.ToLower(v)
}

func storeError(err error) error {
	switch {
	case errors.Is(err, ErrFileTooLarge),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return err
	}
	return fmt.Errorf("%w: %v", ErrStorageWriteFailed, err)
}

func optionalString(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}

// limitedReader fails with ErrFileTooLarge once more than remaining bytes
// have been read, whatever size the client declared.
type limitedReader struct {
	ctx       context.Context
	r         io.Reader
	remaining int64
}

func (l *limitedReader) Read(p []byte) (int, error) {
	if err := l.ctx.Err(); err != nil {
		return 0, err
	}
	if l.remaining < 0 {
		return 0, ErrFileTooLarge
	}
	if int64(len(p)) > l.remaining+1 {
		p = p[:l.remaining+1]
	}
	n, err := l.r.Read(p)
	l.remaining -= int64(n)
	if l.remaining < 0 {
		return n, ErrFileTooLarge
	}
	return n, err
}

var updatableFields = map[string]func(any) (any, error){
	"name":       requiredString,
	"alt":        nullableString,
	"title":      nullableString,
	"collection": nullableString,
	"metadata":   metadataValue,
}

func requiredString(v any) (any, error) {
	s, ok := v.(string)
	if !ok || strings.TrimSpace(s) == "" {
		return nil, errors.New("must be a non-empty string")
	}
	return strings.TrimSpace(s), nil
}

func nullableString(v any) (any, error) {
	switch t := v.(type) {
	case nil:
		return nil, nil
	case string:
		if t == "" {
			return nil, nil
		}
		return t, nil
	case *string:
		if t == nil || *t == "" {
			return nil, nil
		}
		return *t, nil
	}
	return nil, errors.New("must be a string or null")
}

func metadataValue(v any) (any, error) {
	var m datatypes.JSONMap
	switch t := v.(type) {
	case nil:
		return datatypes.JSONMap(nil), nil
	case datatypes.JSONMap:
		m = t
	case map[string]any:
		m = datatypes.JSONMap(t)
	default:
		return nil, errors.New("must be an object")
	}
	for k := range m {
		if reservedMetadata[k] {
			return nil, fmt.Errorf("key %q is managed by the upload pipeline", k)
		}
	}
	if m == nil {
		m = datatypes.JSONMap{}
	}
	return m, nil
}
