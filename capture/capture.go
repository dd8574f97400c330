// Package capture runs the end-to-end ingestion of a posting:
// read the source, extract fields with the local model, and store the record.
package capture

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/teranos/jobtrail/ai/provider"
	"github.com/teranos/jobtrail/am"
	"github.com/teranos/jobtrail/errors"
	"github.com/teranos/jobtrail/extract"
	"github.com/teranos/jobtrail/jobs"
	"github.com/teranos/jobtrail/logger"
	"github.com/teranos/jobtrail/source"
)

// Reader turns an input into posting text
type Reader interface {
	Read(ctx context.Context, in source.Input) (*source.Document, error)
}

// Extractor turns posting text into fields
type Extractor interface {
	Extract(ctx context.Context, text string) (*extract.Result, error)
}

// Store persists extracted records
type Store interface {
	Add(ctx context.Context, nr jobs.NewRecord) (*jobs.Record, bool, error)
}

// Result describes one completed capture
type Result struct {
	Record  *jobs.Record    `json:"record"`
	Created bool            `json:"created"`
	Outcome extract.Outcome `json:"outcome"`
	Missing []extract.Field `json:"missing_fields,omitempty"`
}

// Pipeline composes a Reader, an Extractor and a Store
type Pipeline struct {
	reader    Reader
	extractor Extractor
	store     Store
	logger    *zap.SugaredLogger
}

// New creates a Pipeline from its parts
func New(reader Reader, extractor Extractor, store Store) *Pipeline {
	return &Pipeline{
		reader:    reader,
		extractor: extractor,
		store:     store,
		logger:    logger.ComponentLogger("capture"),
	}
}

// NewFromConfig wires the configured reader, local model and extractor in front of store
func NewFromConfig(cfg *am.Config, store Store) *Pipeline {
	gen := provider.NewLocalProvider(&cfg.LocalInference)
	return New(source.NewReader(cfg), extract.New(gen, cfg.Extract), store)
}

// Capture reads, extracts and stores one posting. Errors keep the sentinel
// of the stage that failed, so callers can classify them with errors.ClassOf.
func (p *Pipeline) Capture(ctx context.Context, in source.Input) (*Result, error) {
	start := time.Now()
	log := logger.FromContext(ctx, p.logger)

	doc, err := p.reader.Read(ctx, in)
	if err != nil {
		p.logFailure(log, "read", err)
		return nil, err
	}

	res, err := p.extractor.Extract(ctx, doc.Text)
	if err != nil {
		p.logFailure(log, "extract", err)
		return nil, err
	}

	rec, created, err := p.store.Add(ctx, toNewRecord(doc, res))
	if err != nil {
		p.logFailure(log, "store", err)
		return nil, err
	}

	log.Infow("posting captured",
		logger.FieldJobID, rec.ID,
		logger.FieldSourceType, doc.Type,
		logger.FieldOutcome, res.Outcome,
		logger.FieldDurationMS, time.Since(start).Milliseconds())

	return &Result{
		Record:  rec,
		Created: created,
		Outcome: res.Outcome,
		Missing: res.Missing(),
	}, nil
}

func (p *Pipeline) logFailure(log *zap.SugaredLogger, stage string, err error) {
	log.Warnw("capture failed",
		logger.FieldOperation, stage,
		logger.FieldErrorClass, errors.ClassOf(err),
		logger.FieldError, err.Error())
}

func toNewRecord(doc *source.Document, res *extract.Result) jobs.NewRecord {
	f := res.Fields
	return jobs.NewRecord{
		SourceType:   jobs.SourceType(doc.Type),
		SourceKey:    doc.Key,
		Source:       doc.Origin,
		Title:        f.Title,
		Company:      f.Company,
		Description:  f.Description,
		Salary:       f.Salary,
		Location:     f.Location,
		JobType:      f.JobType,
		Requirements: f.Requirements,
	}
}
