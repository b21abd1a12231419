package main

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/cespare/xxhash/v2"

	"vehicle-registration-visualizer/pkg/aggregate"
	"vehicle-registration-visualizer/pkg/logger"
)

// poller reloads the record source and swaps in a new dataset when the
// records changed. Readers load the current dataset once per request, so a
// swap never disturbs a computation already running.
type poller struct {
	source            RecordSource
	minRefreshSeconds int
	fetchTimeout      time.Duration
	datasetOpts       []aggregate.DatasetOption
	log               *logger.Logger
	onChange          func(*aggregate.Dataset, time.Time)

	current     atomic.Pointer[aggregate.Dataset]
	loadedAt    atomic.Int64
	fingerprint uint64
}

func newPoller(source RecordSource, minRefreshSeconds int, fetchTimeout time.Duration, log *logger.Logger, opts ...aggregate.DatasetOption) *poller {
	return &poller{
		source:            source,
		minRefreshSeconds: minRefreshSeconds,
		fetchTimeout:      fetchTimeout,
		datasetOpts:       opts,
		log:               log,
	}
}

// run loads immediately, then every minRefreshSeconds. A non-positive
// interval loads once.
func (p *poller) run(ctx context.Context) error {
	interval := time.Duration(p.minRefreshSeconds) * time.Second
	t := time.NewTimer(0)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			start := time.Now()
			p.tick(ctx)
			if p.minRefreshSeconds <= 0 {
				<-ctx.Done()
				return nil
			}
			elapsed := time.Since(start)
			interval = maxDuration(elapsed/2, time.Duration(p.minRefreshSeconds)*time.Second)
			t.Reset(interval)
		}
	}
}

func (p *poller) tick(ctx context.Context) {
	cctx, cancel := context.WithTimeout(ctx, p.fetchTimeout)
	defer cancel()
	records, err := p.source.Fetch(cctx)
	if err != nil {
		p.log.Warn("load failed, keeping previous dataset", "error", err)
		return
	}
	p.log.Debug("fetched records", "count", len(records))
	if ds, changed := p.update(records, time.Now()); changed {
		s := ds.Summary()
		p.log.Info("dataset updated",
			"records", s.Records, "dropped", s.Dropped, "vehicles", s.Vehicles, "zips", s.Zips)
		if p.onChange != nil {
			p.onChange(ds, time.UnixMilli(p.loadedAt.Load()))
		}
	}
}

// update swaps the dataset when the fingerprint of records differs from the
// last one loaded.
func (p *poller) update(records []aggregate.Record, now time.Time) (*aggregate.Dataset, bool) {
	fp := fingerprint(records)
	if p.current.Load() != nil && fp == p.fingerprint {
		return nil, false
	}
	ds := aggregate.NewDataset(records, p.datasetOpts...)
	p.fingerprint = fp
	p.loadedAt.Store(now.UnixMilli())
	p.current.Store(ds)
	return ds, true
}

// Dataset returns the current dataset, or nil before the first load.
func (p *poller) Dataset() *aggregate.Dataset {
	return p.current.Load()
}

func (p *poller) LoadedAt() time.Time {
	return time.UnixMilli(p.loadedAt.Load())
}

func fingerprint(records []aggregate.Record) uint64 {
	d := xxhash.New()
	for _, r := range records {
		for _, f := range [...]string{r.ZipCode, r.Make, r.ModelYear, r.Fuel, r.Duty, r.Date, r.Lat, r.Lon, r.Vehicles} {
			_, _ = d.WriteString(f)
			_, _ = d.Write([]byte{0x1f})
		}
		_, _ = d.Write([]byte{0x1e})
	}
	return d.Sum64()
}

func maxDuration(a, b time.Duration) time.Duration {
	if a > b {
		return a
	}
	return b
}
