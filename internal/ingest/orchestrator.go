package ingest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/terratrac/eudr-backend/internal/archive"
	"github.com/terratrac/eudr-backend/internal/geojson"
	"github.com/terratrac/eudr-backend/internal/metrics"
	"github.com/terratrac/eudr-backend/internal/reconcile"
	"github.com/terratrac/eudr-backend/internal/saga"
	"github.com/terratrac/eudr-backend/internal/store"
	"github.com/terratrac/eudr-backend/internal/validation"
	"github.com/terratrac/eudr-backend/internal/whisp"
	"go.uber.org/zap"
)

var ErrNoData = errors.New("no data found")

// ValidationError carries every problem found in an upload.
type ValidationError struct {
	Errors []string
}

func (e *ValidationError) Error() string {
	return "invalid upload: " + strings.Join(e.Errors, "; ")
}

// Files is the uploaded-file bookkeeping the orchestrator needs.
type Files interface {
	FindOrCreateFile(ctx context.Context, name, uploadedBy string) (*store.UploadedFile, bool, error)
	DeleteFile(ctx context.Context, id uint) error
	FarmsByFile(ctx context.Context, fileID uint) ([]store.Farm, error)
}

type Analyzer interface {
	Analyze(ctx context.Context, fc geojson.FeatureCollection) ([]whisp.Indicators, error)
}

type Reconciler interface {
	UpsertAll(ctx context.Context, farms []store.Farm) ([]store.Farm, error)
}

type Options struct {
	Files      Files
	Analyzer   Analyzer
	Reconciler Reconciler
	Archive    archive.Archiver
	Logger     *zap.Logger
	// StrictCSV rejects CSV uploads whose rows cannot be turned into
	// geometry instead of skipping those rows.
	StrictCSV bool
}

// Orchestrator runs uploads through validation, normalization, analysis and
// reconciliation. Any failure after the file marker exists rolls it back.
type Orchestrator struct {
	files      Files
	analyzer   Analyzer
	reconciler Reconciler
	archive    archive.Archiver
	logger     *zap.Logger
	strictCSV  bool

	archiving sync.WaitGroup
}

func New(opts Options) *Orchestrator {
	o := &Orchestrator{
		files:      opts.Files,
		analyzer:   opts.Analyzer,
		reconciler: opts.Reconciler,
		archive:    opts.Archive,
		logger:     opts.Logger,
		strictCSV:  opts.StrictCSV,
	}
	if o.archive == nil {
		o.archive = archive.Nop{}
	}
	if o.logger == nil {
		o.logger = zap.NewNop()
	}
	return o
}

// Upload is one submitted file.
type Upload struct {
	// FileName is the base name without extension.
	FileName   string
	UploadedBy string
	Format     Format
	Body       []byte
}

// MarkerName is the stored file name: base name plus format extension.
func (u Upload) MarkerName() string {
	return u.FileName + "." + string(u.Format)
}

type Result struct {
	FileID uint         `json:"file_id"`
	Farms  []store.Farm `json:"data"`
}

// Create ingests an upload. Validation problems come back as
// *ValidationError; analysis failures wrap whisp errors; reconciliation field
// problems come back as reconcile.FieldErrors.
func (o *Orchestrator) Create(ctx context.Context, up Upload) (res *Result, err error) {
	start := time.Now()
	log := o.logger.With(zap.String("file", up.MarkerName()), zap.String("uploaded_by", up.UploadedBy))
	defer func() { o.observe("create", start, err) }()

	file, created, err := o.files.FindOrCreateFile(ctx, up.MarkerName(), up.UploadedBy)
	if err != nil {
		return nil, fmt.Errorf("register file: %w", err)
	}
	sg := saga.New(log)
	// a reused marker belongs to an earlier successful upload
	if created {
		sg.Push("delete uploaded file", func(ctx context.Context) error {
			return o.files.DeleteFile(ctx, file.ID)
		})
	}

	fc, err := o.prepare(up)
	if err != nil {
		var ve *ValidationError
		if errors.As(err, &ve) {
			o.archiveAsync(archive.Failed, up)
		}
		sg.Rollback(ctx)
		return nil, err
	}

	farms, err := o.analyzeAndReconcile(ctx, fc, file.ID)
	if err != nil {
		sg.Rollback(ctx)
		return nil, err
	}

	o.archiveAsync(archive.Processed, up)
	log.Info("upload ingested", zap.Uint("file_id", file.ID), zap.Int("records", len(farms)))
	return &Result{FileID: file.ID, Farms: farms}, nil
}

// Revalidate re-runs analysis and reconciliation over the farms already
// attached to fileID. On failure the file itself is deleted.
func (o *Orchestrator) Revalidate(ctx context.Context, fileID uint) (res *Result, err error) {
	start := time.Now()
	log := o.logger.With(zap.Uint("file_id", fileID))
	defer func() { o.observe("revalidate", start, err) }()

	farms, err := o.files.FarmsByFile(ctx, fileID)
	if err != nil {
		return nil, fmt.Errorf("load farms: %w", err)
	}
	if len(farms) == 0 {
		return nil, ErrNoData
	}

	sg := saga.New(log)
	sg.Push("delete uploaded file", func(ctx context.Context) error {
		return o.files.DeleteFile(ctx, fileID)
	})

	saved, err := o.analyzeAndReconcile(ctx, reconcile.Features(farms, false), fileID)
	if err != nil {
		sg.Rollback(ctx)
		return nil, err
	}
	log.Info("file revalidated", zap.Int("records", len(saved)))
	return &Result{FileID: fileID, Farms: saved}, nil
}

// Wait blocks until background archive uploads finish.
func (o *Orchestrator) Wait() { o.archiving.Wait() }

// prepare validates the raw upload and turns it into features.
func (o *Orchestrator) prepare(up Upload) (geojson.FeatureCollection, error) {
	switch up.Format {
	case FormatCSV, FormatXLSX:
		var rows [][]string
		var err error
		if up.Format == FormatXLSX {
			rows, err = ParseXLSX(bytes.NewReader(up.Body))
		} else {
			rows, err = ParseCSV(bytes.NewReader(up.Body))
		}
		if err != nil {
			return geojson.FeatureCollection{}, &ValidationError{Errors: []string{err.Error()}}
		}
		if errs := validation.CSV(rows); len(errs) > 0 {
			return geojson.FeatureCollection{}, &ValidationError{Errors: errs}
		}
		fc, err := geojson.NormalizeCSV(rows, o.strictCSV)
		if err != nil {
			return geojson.FeatureCollection{}, &ValidationError{Errors: []string{err.Error()}}
		}
		return fc, nil
	case FormatGeoJSON:
		if errs := validation.GeoJSON(up.Body); len(errs) > 0 {
			return geojson.FeatureCollection{}, &ValidationError{Errors: errs}
		}
		fc, err := geojson.Parse(up.Body)
		if err != nil {
			return geojson.FeatureCollection{}, &ValidationError{Errors: []string{err.Error()}}
		}
		return fc, nil
	default:
		return geojson.FeatureCollection{}, &ValidationError{Errors: []string{ErrUnknownFormat.Error()}}
	}
}

func (o *Orchestrator) analyzeAndReconcile(ctx context.Context, fc geojson.FeatureCollection, fileID uint) ([]store.Farm, error) {
	flat, err := geojson.Flatten(fc)
	if err != nil {
		return nil, &ValidationError{Errors: []string{err.Error()}}
	}
	results, err := o.analyzer.Analyze(ctx, flat)
	if err != nil {
		return nil, fmt.Errorf("analyze: %w", err)
	}
	farms, err := reconcile.Build(fc, results, fileID)
	if err != nil {
		return nil, fmt.Errorf("build records: %w", err)
	}
	saved, err := o.reconciler.UpsertAll(ctx, farms)
	if err != nil {
		return nil, fmt.Errorf("reconcile: %w", err)
	}
	return saved, nil
}

// archiveAsync copies the raw upload to the archive without blocking the
// request. Failures are logged only.
func (o *Orchestrator) archiveAsync(cat archive.Category, up Upload) {
	o.archiving.Add(1)
	go func() {
		defer o.archiving.Done()
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		if err := o.archive.Put(ctx, cat, up.UploadedBy, up.MarkerName(), up.Body); err != nil {
			o.logger.Warn("archive upload failed", zap.String("category", string(cat)), zap.String("file", up.MarkerName()), zap.Error(err))
		}
	}()
}

func (o *Orchestrator) observe(kind string, start time.Time, err error) {
	outcome := "ok"
	var ve *ValidationError
	var fe reconcile.FieldErrors
	switch {
	case err == nil:
	case errors.As(err, &ve):
		outcome = "invalid"
	case errors.Is(err, whisp.ErrNoFeatures), errors.Is(err, whisp.ErrValidationFailed), errors.Is(err, whisp.ErrMisaligned):
		outcome = "analysis_failed"
	case errors.As(err, &fe):
		outcome = "field_errors"
	case errors.Is(err, ErrNoData):
		outcome = "no_data"
	default:
		outcome = "error"
	}
	metrics.IngestionsTotal.WithLabelValues(kind, outcome).Inc()
	o.logger.Debug("pipeline finished", zap.String("kind", kind), zap.String("outcome", outcome),
		zap.Duration("took", time.Since(start)))
}
