package main

import (
	"bufio"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"vehicle-registration-visualizer/pkg/aggregate"
	"vehicle-registration-visualizer/pkg/logger"
)

type server struct {
	data      *poller
	hub       *wsHub
	log       *logger.Logger
	staticDir string
}

func (s *server) registerRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	mux.HandleFunc("GET /api/summary", s.handleSummary)
	mux.HandleFunc("GET /api/aggregate", s.handleAggregate)
	mux.HandleFunc("GET /api/rollup", s.handleRollup)
	mux.HandleFunc("GET /api/top", s.handleTop)
	mux.HandleFunc("GET /api/zip/{zip}", s.handleZip)
	mux.HandleFunc("GET /api/locations", s.handleLocations)
	mux.HandleFunc("GET /api/matrix", s.handleMatrix)
	mux.HandleFunc("/ws", s.hub.handleWebSocket(s.data))

	if s.staticDir != "" {
		mux.Handle("/", http.FileServer(http.Dir(s.staticDir)))
	}
}

func (s *server) dataset() (*aggregate.Dataset, error) {
	ds := s.data.Dataset()
	if ds == nil {
		return nil, errNotLoaded
	}
	return ds, nil
}

func (s *server) respond(w http.ResponseWriter, r *http.Request, v any, err error) {
	if err == nil {
		err = writeResponse(w, r, v)
	}
	switch {
	case err == nil:
	case errors.Is(err, errWriteBody):
		s.log.Warn("response not delivered", "path", r.URL.Path, "error", err)
	default:
		writeError(w, err)
	}
}

func (s *server) handleSummary(w http.ResponseWriter, r *http.Request) {
	ds, err := s.dataset()
	if err != nil {
		writeError(w, err)
		return
	}
	s.respond(w, r, datasetMessage(ds, s.data.LoadedAt()), nil)
}

func (s *server) handleAggregate(w http.ResponseWriter, r *http.Request) {
	res, err := s.aggregate(r.URL.Query(), "zip,make")
	if err != nil {
		writeError(w, err)
		return
	}
	s.respond(w, r, AggregateResponse{
		Dimensions: dimensionNames(res.Dimensions),
		Geo:        res.geo.String(),
		Total:      res.Total(),
		Dropped:    res.Drops.Dropped(),
		Drops:      res.Drops,
		Groups:     toGroups(res.Sorted()),
	}, nil)
}

func (s *server) handleRollup(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	res, err := s.aggregate(q, "zip,make")
	if err != nil {
		writeError(w, err)
		return
	}
	idx, err := rollupIndex(q, res.Dimensions)
	if err != nil {
		writeError(w, err)
		return
	}
	totals, err := aggregate.Rollup(res.Result, idx)
	s.respond(w, r, RollupResponse{Dimension: res.Dimensions[idx].String(), Totals: totals}, err)
}

func (s *server) handleTop(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	res, err := s.aggregate(q, "zip,make")
	if err != nil {
		writeError(w, err)
		return
	}
	idx, err := rollupIndex(q, res.Dimensions)
	if err != nil {
		writeError(w, err)
		return
	}
	n, err := intParam(q, "n", 10)
	if err != nil {
		writeError(w, err)
		return
	}
	order, err := aggregate.ParseOrder(q.Get("order"))
	if err != nil {
		writeError(w, err)
		return
	}
	totals, err := aggregate.Rollup(res.Result, idx)
	if err != nil {
		writeError(w, err)
		return
	}
	s.respond(w, r, TopResponse{
		Dimension: res.Dimensions[idx].String(),
		Order:     order.String(),
		Entries:   aggregate.TopN(totals, n, order),
	}, nil)
}

func (s *server) handleZip(w http.ResponseWriter, r *http.Request) {
	ds, err := s.dataset()
	if err != nil {
		writeError(w, err)
		return
	}
	zip := strings.TrimSpace(r.PathValue("zip"))
	groups, err := ds.ByZip(zip)
	if err != nil {
		writeError(w, err)
		return
	}
	var total int64
	for _, g := range groups {
		total += g.Total
	}
	s.respond(w, r, ZipResponse{Zip: zip, Total: total, Groups: toGroups(groups)}, nil)
}

func (s *server) handleLocations(w http.ResponseWriter, r *http.Request) {
	res, err := s.aggregate(r.URL.Query(), "zip")
	if err != nil {
		writeError(w, err)
		return
	}
	s.respond(w, r, LocationsResponse{
		Dimensions: dimensionNames(res.Dimensions),
		Geo:        res.geo.String(),
		Points:     toPoints(res.Locations()),
	}, nil)
}

func (s *server) handleMatrix(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	res, err := s.aggregate(q, "zip,make")
	if err != nil {
		writeError(w, err)
		return
	}
	row, err := intParam(q, "row", 0)
	if err != nil {
		writeError(w, err)
		return
	}
	col, err := intParam(q, "col", 1)
	if err != nil {
		writeError(w, err)
		return
	}
	m, err := aggregate.MatrixOf(res.Result, row, col)
	if err != nil {
		writeError(w, err)
		return
	}
	s.respond(w, r, MatrixResponse{
		Rows:   res.Dimensions[row].String(),
		Cols:   res.Dimensions[col].String(),
		Matrix: m,
	}, nil)
}

type queryResult struct {
	*aggregate.Result
	geo aggregate.GeoPolicy
}

func (s *server) aggregate(q url.Values, defaultDims string) (queryResult, error) {
	ds, err := s.dataset()
	if err != nil {
		return queryResult{}, err
	}
	opts, err := queryOptions(q, defaultDims, ds.GeoPolicy())
	if err != nil {
		return queryResult{}, err
	}
	res, err := ds.Aggregate(opts)
	if err != nil {
		return queryResult{}, err
	}
	return queryResult{Result: res, geo: opts.Geo}, nil
}

// queryOptions turns request parameters into aggregation options:
// dims, geo, year, makes, zip, luxury, bounds, require_geo and upper.
func queryOptions(q url.Values, defaultDims string, defaultGeo aggregate.GeoPolicy) (aggregate.Options, error) {
	var opts aggregate.Options

	dims := q.Get("dims")
	if dims == "" {
		dims = defaultDims
	}
	d, err := aggregate.ParseDimensions(dims)
	if err != nil {
		return opts, err
	}
	opts.Dimensions = d

	opts.Geo = defaultGeo
	if g := q.Get("geo"); g != "" {
		if opts.Geo, err = aggregate.ParseGeoPolicy(g); err != nil {
			return opts, err
		}
	}

	var filters []aggregate.Predicate
	if y := strings.TrimSpace(q.Get("year")); y != "" {
		filters = append(filters, aggregate.YearIs(y))
	}
	if m := strings.TrimSpace(q.Get("makes")); m != "" {
		filters = append(filters, aggregate.MakeIn(strings.Split(m, ",")...))
	}
	if z := strings.TrimSpace(q.Get("zip")); z != "" {
		filters = append(filters, aggregate.ZipIs(z))
	}
	luxury, err := boolParam(q, "luxury", false)
	if err != nil {
		return opts, err
	}
	if luxury {
		filters = append(filters, aggregate.LuxuryOnly())
	}
	if len(filters) > 0 {
		opts.Filter = aggregate.All(filters...)
	}

	switch strings.ToLower(q.Get("bounds")) {
	case "":
	case "ca", "california":
		opts.Bounds = &aggregate.California
	default:
		return opts, fmt.Errorf("%w: unknown bounds %q", aggregate.ErrInvalidArgument, q.Get("bounds"))
	}
	if opts.RequireGeo, err = boolParam(q, "require_geo", false); err != nil {
		return opts, err
	}
	upper, err := boolParam(q, "upper", true)
	if err != nil {
		return opts, err
	}
	if !upper {
		opts.Normalize = aggregate.TrimFields
	}
	return opts, nil
}

// rollupIndex reads "by" (a dimension name) or "index" (a key position).
func rollupIndex(q url.Values, dims []aggregate.Dimension) (int, error) {
	if by := q.Get("by"); by != "" {
		d, err := aggregate.ParseDimension(by)
		if err != nil {
			return 0, err
		}
		idx := aggregate.IndexOf(dims, d)
		if idx < 0 {
			return 0, fmt.Errorf("%w: %s is not one of the grouping dimensions", aggregate.ErrInvalidArgument, d)
		}
		return idx, nil
	}
	idx, err := intParam(q, "index", len(dims)-1)
	if err != nil {
		return 0, err
	}
	if idx < 0 || idx >= len(dims) {
		return 0, fmt.Errorf("%w: index %d out of range", aggregate.ErrInvalidArgument, idx)
	}
	return idx, nil
}

func intParam(q url.Values, name string, def int) (int, error) {
	v := strings.TrimSpace(q.Get(name))
	if v == "" {
		return def, nil
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be an integer", aggregate.ErrInvalidArgument, name)
	}
	return i, nil
}

func boolParam(q url.Values, name string, def bool) (bool, error) {
	v := strings.TrimSpace(q.Get(name))
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%w: %s must be a boolean", aggregate.ErrInvalidArgument, name)
	}
	return b, nil
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Hijack passes through so the websocket upgrade still works behind the
// logging middleware.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not support hijacking")
	}
	r.status = http.StatusSwitchingProtocols
	return h.Hijack()
}

func withLogging(log *logger.Logger, h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := uuid.NewString()
		w.Header().Set("X-Request-Id", id)
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		h.ServeHTTP(rec, r)
		log.Debug("request",
			"id", id, "method", r.Method, "path", r.URL.Path,
			"status", rec.status, "duration", time.Since(start))
	})
}
