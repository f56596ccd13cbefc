// Package legacy migrates the old storage buckets into the bookings table.
// Each source is imported once; afterwards the buckets are no longer read.
package legacy

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/johnmichaeldizon211/apatech-sub001/internal/booking"
	"github.com/johnmichaeldizon211/apatech-sub001/internal/config"
	"github.com/johnmichaeldizon211/apatech-sub001/internal/models"
)

// BucketReader returns a bucket's raw JSON payload, nil when it does not exist.
type BucketReader interface {
	GetBucket(ctx context.Context, key string) ([]byte, error)
}

// Sink is where imported bookings end up. store.Store satisfies it.
type Sink interface {
	booking.Repository
	SaveBookings(ctx context.Context, bookings []models.Booking) (int, error)
	IsImported(ctx context.Context, source string) (bool, error)
	MarkImported(ctx context.Context, source string, records int) error
}

type Importer struct {
	buckets BucketReader
	sink    Sink
	logger  *slog.Logger

	// Buckets hold arrays of records; Latest holds a single record.
	Buckets []string
	Latest  string
}

func NewImporter(buckets BucketReader, sink Sink, logger *slog.Logger) *Importer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Importer{buckets: buckets, sink: sink, logger: logger}
}

// FromConfig reads the configured legacy buckets and the latest-booking slot.
func FromConfig(cfg *config.Config, buckets BucketReader, sink Sink, logger *slog.Logger) *Importer {
	im := NewImporter(buckets, sink, logger)
	im.Buckets = append([]string(nil), cfg.LegacyBuckets...)
	im.Latest = cfg.LatestBucket
	return im
}

// Result describes one import run.
type Result struct {
	Sources []string `json:"sources"`
	Skipped []string `json:"skipped,omitempty"`
	Records int      `json:"records"`
	Noise   int      `json:"noise"`
	Saved   int      `json:"saved"`
}

type source struct {
	name    string
	records []models.RawRecord
}

// ImportBuckets reads every configured bucket not imported yet. Unreadable
// or malformed buckets are logged and left for the next run.
func (im *Importer) ImportBuckets(ctx context.Context) (*Result, error) {
	var sources []source
	res := &Result{}

	keys := append([]string(nil), im.Buckets...)
	if im.Latest != "" {
		keys = append(keys, im.Latest)
	}
	for _, key := range keys {
		done, err := im.sink.IsImported(ctx, key)
		if err != nil {
			return nil, fmt.Errorf("check import of %s: %w", key, err)
		}
		if done {
			res.Skipped = append(res.Skipped, key)
			continue
		}

		payload, err := im.buckets.GetBucket(ctx, key)
		if err != nil {
			im.logger.WarnContext(ctx, "Legacy bucket unreadable", "bucket", key, "error", err)
			continue
		}
		records, err := booking.DecodeRecords(payload)
		if err != nil {
			im.logger.WarnContext(ctx, "Legacy bucket malformed", "bucket", key, "error", err)
			continue
		}
		sources = append(sources, source{name: key, records: records})
	}

	return im.run(ctx, res, sources)
}

// ImportFile imports a JSON export: an array, an envelope or a single record.
func (im *Importer) ImportFile(ctx context.Context, path string) (*Result, error) {
	name := "file:" + filepath.Base(path)
	res := &Result{}

	done, err := im.sink.IsImported(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("check import of %s: %w", name, err)
	}
	if done {
		res.Skipped = append(res.Skipped, name)
		return res, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read export: %w", err)
	}
	records, err := booking.DecodeRecords(data)
	if err != nil {
		return nil, err
	}
	return im.run(ctx, res, []source{{name: name, records: records}})
}

func (im *Importer) run(ctx context.Context, res *Result, sources []source) (*Result, error) {
	if len(sources) == 0 {
		return res, nil
	}

	existing, err := im.sink.ListBookings(ctx, models.Scope{Kind: models.ScopeAll})
	if err != nil {
		return nil, fmt.Errorf("load stored bookings: %w", err)
	}

	// Stored bookings come first so already-imported data wins; legacy
	// records only fill gaps.
	m := booking.NewMerger(booking.Normalizer{})
	m.Add(existing)
	for _, src := range sources {
		m.Add(src.records)
		res.Records += len(src.records)
		res.Sources = append(res.Sources, src.name)
	}

	var keep []models.Booking
	for _, b := range m.Bookings() {
		if booking.IsNoise(b) {
			res.Noise++
			continue
		}
		keep = append(keep, b)
	}

	saved, err := im.sink.SaveBookings(ctx, keep)
	if err != nil {
		return nil, fmt.Errorf("save imported bookings: %w", err)
	}
	res.Saved = saved

	for _, src := range sources {
		if err := im.sink.MarkImported(ctx, src.name, len(src.records)); err != nil {
			return nil, fmt.Errorf("mark %s imported: %w", src.name, err)
		}
	}

	im.logger.InfoContext(ctx, "Legacy import finished",
		"sources", res.Sources, "records", res.Records, "saved", res.Saved, "noise", res.Noise)
	return res, nil
}
