package syncclient

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/edtsync/edt-sync-api/pkg/syncclient/localcache"
	"github.com/edtsync/edt-sync-api/pkg/timetable"
)

// ErrNoOfflineData means the backend could not be reached and the cache
// holds nothing fresh for the requested week.
var ErrNoOfflineData = errors.New("syncclient: no offline data")

// UpstreamError reports a non-2xx answer from a reachable backend that
// the cache could not cover.
type UpstreamError struct {
	Status int
	Body   string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("syncclient: upstream returned %d", e.Status)
}

// Request names one planning fetch. Week and Year of zero mean the
// server decides (its current week).
type Request struct {
	Endpoint  string
	TeacherID string
	ClassName string
	Room      string
	Week      int
	Year      int
}

func (r Request) cacheKey(schoolID string) localcache.Key {
	return localcache.Key{
		SchoolID: schoolID,
		Endpoint: r.Endpoint + "?" + r.identityQuery().Encode(),
		Week:     r.Week,
		Year:     r.Year,
	}
}

func (r Request) identityQuery() url.Values {
	q := url.Values{}
	if r.TeacherID != "" {
		q.Set("teacherId", r.TeacherID)
	}
	if r.ClassName != "" {
		q.Set("className", r.ClassName)
	}
	if r.Room != "" {
		q.Set("room", r.Room)
	}
	return q
}

// Result carries a fetched payload and where it came from.
type Result struct {
	Snapshot  timetable.Snapshot
	FromCache bool
}

// Router decides, per request, whether to hit the backend or fall back
// to the local cache. Every successful network response is written
// through to the cache so it can serve the next offline session.
type Router struct {
	profile      *Profile
	cache        *localcache.Store
	client       *http.Client
	probeTimeout time.Duration
	logger       *zap.Logger
}

// RouterConfig tunes a Router. Zero values pick sane defaults.
type RouterConfig struct {
	HTTPClient   *http.Client
	ProbeTimeout time.Duration
	Logger       *zap.Logger
}

// NewRouter builds a Router for one profile. The cache may be nil, in
// which case every offline request fails with ErrNoOfflineData.
func NewRouter(profile *Profile, cache *localcache.Store, cfg RouterConfig) (*Router, error) {
	if err := profile.Validate(); err != nil {
		return nil, err
	}
	r := &Router{
		profile:      profile,
		cache:        cache,
		client:       cfg.HTTPClient,
		probeTimeout: cfg.ProbeTimeout,
		logger:       cfg.Logger,
	}
	if r.client == nil {
		r.client = &http.Client{Timeout: 15 * time.Second}
	}
	if r.probeTimeout <= 0 {
		r.probeTimeout = 3 * time.Second
	}
	if r.logger == nil {
		r.logger = zap.NewNop()
	}
	return r, nil
}

// Fetch resolves one planning request. Online it fetches, normalizes
// and caches; offline it serves the cached copy when one is fresh.
func (t *Router) Fetch(ctx context.Context, req Request) (Result, error) {
	if !t.probe(ctx) {
		return t.fromCache(ctx, req, ErrNoOfflineData)
	}

	body, status, err := t.get(ctx, req)
	if err != nil {
		// Reachable a moment ago, gone now. Same degradation path.
		t.logger.Warn("planning fetch failed, trying cache", zap.Error(err))
		return t.fromCache(ctx, req, ErrNoOfflineData)
	}
	if status < 200 || status >= 300 {
		res, cacheErr := t.fromCache(ctx, req, &UpstreamError{Status: status, Body: string(body)})
		if cacheErr == nil {
			return res, nil
		}
		return Result{}, cacheErr
	}

	snap, err := timetable.NormalizeSnapshot(body)
	if err != nil {
		return Result{}, fmt.Errorf("normalize planning payload: %w", err)
	}
	if t.cache != nil {
		if err := t.cache.Put(ctx, req.cacheKey(t.profile.SchoolID), body); err != nil {
			t.logger.Warn("cache write failed", zap.Error(err))
		}
	}
	return Result{Snapshot: snap}, nil
}

// probe checks reachability with a short deadline. Any HTTP answer,
// including an error status, counts as reachable.
func (t *Router) probe(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, t.probeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.profile.BaseURL+"/health", nil)
	if err != nil {
		return false
	}
	resp, err := t.client.Do(req)
	if err != nil {
		return false
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	return true
}

func (t *Router) get(ctx context.Context, req Request) ([]byte, int, error) {
	q := req.identityQuery()
	if req.Week != 0 {
		q.Set("week", strconv.Itoa(req.Week))
		q.Set("year", strconv.Itoa(req.Year))
	}
	u := t.profile.BaseURL + req.Endpoint + "?" + q.Encode()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, 0, err
	}
	httpReq.Header.Set("Authorization", "Bearer "+t.profile.Bearer())

	resp, err := t.client.Do(httpReq)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, err
	}
	return body, resp.StatusCode, nil
}

func (t *Router) fromCache(ctx context.Context, req Request, miss error) (Result, error) {
	if t.cache == nil {
		return Result{}, miss
	}
	body, err := t.cache.Get(ctx, req.cacheKey(t.profile.SchoolID))
	if errors.Is(err, localcache.ErrMiss) {
		return Result{}, miss
	}
	if err != nil {
		return Result{}, err
	}
	snap, err := timetable.NormalizeSnapshot(body)
	if err != nil {
		return Result{}, fmt.Errorf("normalize cached payload: %w", err)
	}
	return Result{Snapshot: snap, FromCache: true}, nil
}
