package ephem

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/litescript/ls-orrery/internal/astro"
	"github.com/litescript/ls-orrery/internal/logging"
	"github.com/litescript/ls-orrery/internal/metrics"
)

const (
	// HorizonsAPIURL is the JPL Horizons JSON API endpoint.
	HorizonsAPIURL = "https://ssd.jpl.nasa.gov/api/horizons.api"

	// DefaultCenter is the solar-system barycenter.
	DefaultCenter = "500@0"

	// DefaultTimeout is the HTTP request timeout. VECTORS tables for long
	// windows can take a while to generate.
	DefaultTimeout = 90 * time.Second

	// DefaultCacheTTL is how long fetched vector sets are reused.
	DefaultCacheTTL = 6 * time.Hour

	// DefaultRatePerSec limits outgoing Horizons requests.
	DefaultRatePerSec = 2.0

	userAgent = "ls-orrery/1.0 (Ephemeris Viewer)"
)

// ErrNoVectorData is returned when a Horizons response holds no vector rows.
var ErrNoVectorData = errors.New("horizons returned no vector data")

// HorizonsClient queries JPL Horizons for VECTORS ephemerides.
type HorizonsClient struct {
	client   *http.Client
	url      string
	timeout  time.Duration
	center   string
	limiter  *rate.Limiter
	cacheTTL time.Duration
	log      *logging.Logger
	now      func() time.Time

	mu    sync.RWMutex
	cache map[cacheKey]cachedSet
}

// cacheKey identifies one request set.
type cacheKey struct {
	targets string
	start   string
	stop    string
	step    string
	center  string
}

type cachedSet struct {
	results   []FetchResult
	fetchedAt time.Time
}

// HorizonsOption configures a HorizonsClient.
type HorizonsOption func(*HorizonsClient)

// WithURL sets a custom Horizons endpoint.
func WithURL(u string) HorizonsOption {
	return func(c *HorizonsClient) {
		c.url = u
	}
}

// WithTimeout sets the HTTP request timeout. Non-positive values keep the
// default.
func WithTimeout(d time.Duration) HorizonsOption {
	return func(c *HorizonsClient) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithCenter sets the Horizons CENTER (origin) for all requests.
func WithCenter(center string) HorizonsOption {
	return func(c *HorizonsClient) {
		if center != "" {
			c.center = center
		}
	}
}

// WithRateLimit sets the allowed requests per second. Zero or negative
// disables limiting.
func WithRateLimit(perSec float64) HorizonsOption {
	return func(c *HorizonsClient) {
		if perSec <= 0 {
			c.limiter = rate.NewLimiter(rate.Inf, 1)
			return
		}
		c.limiter = rate.NewLimiter(rate.Limit(perSec), 1)
	}
}

// WithCacheTTL sets how long fetched sets are reused. Zero disables caching.
func WithCacheTTL(d time.Duration) HorizonsOption {
	return func(c *HorizonsClient) {
		c.cacheTTL = d
	}
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) HorizonsOption {
	return func(c *HorizonsClient) {
		if l != nil {
			c.log = l
		}
	}
}

// NewHorizonsClient creates a new Horizons VECTORS client.
func NewHorizonsClient(opts ...HorizonsOption) *HorizonsClient {
	c := &HorizonsClient{
		url:      HorizonsAPIURL,
		timeout:  DefaultTimeout,
		center:   DefaultCenter,
		limiter:  rate.NewLimiter(rate.Limit(DefaultRatePerSec), 1),
		cacheTTL: DefaultCacheTTL,
		log:      logging.Discard(),
		now:      time.Now,
		cache:    make(map[cacheKey]cachedSet),
	}

	for _, opt := range opts {
		opt(c)
	}

	c.client = &http.Client{
		Timeout: c.timeout,
	}

	return c
}

// Name implements Provider.
func (c *HorizonsClient) Name() string {
	return "Horizons"
}

// Center returns the configured CENTER.
func (c *HorizonsClient) Center() string {
	return c.center
}

// FetchResult is the outcome for one target of a FetchAll call. On failure
// Trajectory is empty and Err is set.
type FetchResult struct {
	Target     TargetID
	Trajectory Trajectory
	Err        error
}

// FetchVectors implements Provider.
func (c *HorizonsClient) FetchVectors(ctx context.Context, target TargetID, w Window) (Trajectory, error) {
	results, err := c.fetch(ctx, []TargetID{target}, w)
	if err != nil {
		return Trajectory{Target: target, Center: c.center}, err
	}
	return results[0].Trajectory, results[0].Err
}

// FetchAll implements Provider. It fetches every target over the same window. A failing target
// yields an empty trajectory and its error without aborting the others.
// The returned error is non-nil only when the window itself is invalid.
func (c *HorizonsClient) FetchAll(ctx context.Context, targets []TargetID, w Window) ([]FetchResult, error) {
	return c.fetch(ctx, targets, w)
}

func (c *HorizonsClient) fetch(ctx context.Context, targets []TargetID, w Window) ([]FetchResult, error) {
	if err := w.Validate(); err != nil {
		return nil, err
	}

	key := c.keyFor(targets, w)
	if results, ok := c.cached(key); ok {
		metrics.CacheLookup(true)
		c.log.Debug("horizons: cache hit for %s", key.targets)
		return results, nil
	}
	metrics.CacheLookup(false)

	results := make([]FetchResult, 0, len(targets))
	complete := true
	for _, target := range targets {
		traj, err := c.query(ctx, target, w)
		if err != nil {
			c.log.Warn("horizons: target %d: %v", target, err)
			traj = Trajectory{Target: target, Center: c.center}
			complete = false
		}
		results = append(results, FetchResult{Target: target, Trajectory: traj, Err: err})
	}

	// Only fully successful sets are reused; failures are retried next time.
	if complete {
		c.store(key, results)
	}
	return copyResults(results), nil
}

func (c *HorizonsClient) keyFor(targets []TargetID, w Window) cacheKey {
	ids := make([]string, len(targets))
	for i, t := range targets {
		ids[i] = strconv.Itoa(int(t))
	}
	return cacheKey{
		targets: strings.Join(ids, ","),
		start:   formatHorizonsTime(w.Start),
		stop:    formatHorizonsTime(w.Stop),
		step:    formatStepSize(w.Step),
		center:  c.center,
	}
}

func (c *HorizonsClient) cached(key cacheKey) ([]FetchResult, bool) {
	if c.cacheTTL <= 0 {
		return nil, false
	}
	c.mu.RLock()
	entry, ok := c.cache[key]
	c.mu.RUnlock()

	if !ok || c.now().Sub(entry.fetchedAt) >= c.cacheTTL {
		return nil, false
	}
	return copyResults(entry.results), true
}

func (c *HorizonsClient) store(key cacheKey, results []FetchResult) {
	if c.cacheTTL <= 0 {
		return
	}
	c.mu.Lock()
	c.cache[key] = cachedSet{results: copyResults(results), fetchedAt: c.now()}
	c.mu.Unlock()
}

// copyResults copies the result slice. Trajectories share their immutable
// States backing arrays.
func copyResults(in []FetchResult) []FetchResult {
	out := make([]FetchResult, len(in))
	copy(out, in)
	return out
}

// query makes one VECTORS request to the Horizons API.
func (c *HorizonsClient) query(ctx context.Context, target TargetID, w Window) (Trajectory, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return Trajectory{}, fmt.Errorf("rate limit: %w", err)
	}

	// Values must be quoted with single quotes.
	params := url.Values{}
	params.Set("format", "json")
	params.Set("COMMAND", fmt.Sprintf("'%d'", target))
	params.Set("MAKE_EPHEM", "YES")
	params.Set("EPHEM_TYPE", "VECTORS")
	params.Set("OBJ_DATA", "NO")
	params.Set("CENTER", fmt.Sprintf("'%s'", c.center))
	params.Set("START_TIME", fmt.Sprintf("'%s'", formatHorizonsTime(w.Start)))
	params.Set("STOP_TIME", fmt.Sprintf("'%s'", formatHorizonsTime(w.Stop)))
	params.Set("STEP_SIZE", fmt.Sprintf("'%s'", formatStepSize(w.Step)))
	params.Set("CSV_FORMAT", "YES")
	params.Set("OUT_UNITS", "KM-S")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url+"?"+params.Encode(), nil)
	if err != nil {
		return Trajectory{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	body, err := c.do(req)
	metrics.ObserveHorizonsRequest(time.Since(start), err)
	if err != nil {
		return Trajectory{}, err
	}

	states, err := parseVectorsResponse(body)
	if err != nil {
		return Trajectory{}, err
	}

	c.log.Debug("horizons: target %d: %d samples in %v", target, len(states), time.Since(start).Round(time.Millisecond))
	return Trajectory{Target: target, Center: c.center, States: states}, nil
}

func (c *HorizonsClient) do(req *http.Request) ([]byte, error) {
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("horizons request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("horizons returned status %d: %s", resp.StatusCode, truncate(string(body), 200))
	}
	return body, nil
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// horizonsResponse represents the JSON API response.
type horizonsResponse struct {
	Signature struct {
		Version string `json:"version"`
		Source  string `json:"source"`
	} `json:"signature"`
	Result string            `json:"result"`
	Error  string            `json:"error"`
	Data   []json.RawMessage `json:"data"`
}

// parseVectorsResponse extracts state vectors from a Horizons JSON body.
// A "data" array is preferred; otherwise the CSV table between $$SOE and
// $$EOE in "result" is used.
func parseVectorsResponse(body []byte) ([]StateVector, error) {
	var resp horizonsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse JSON: %w", err)
	}

	fromData := parseDataRows(resp.Data)
	if countUsable(fromData) > 0 {
		return fromData, nil
	}

	if fromText := parseVectorTable(resp.Result); len(fromText) > 0 {
		return fromText, nil
	}
	if len(fromData) > 0 {
		return fromData, nil
	}

	if resp.Error != "" {
		return nil, fmt.Errorf("%w: %s", ErrNoVectorData, truncate(resp.Error, 200))
	}
	return nil, ErrNoVectorData
}

func countUsable(states []StateVector) int {
	return Trajectory{States: states}.UsableCount()
}

// parseDataRows converts JSON data rows (arrays of strings or numbers).
func parseDataRows(rows []json.RawMessage) []StateVector {
	var states []StateVector
	for _, raw := range rows {
		var cells []any
		if err := json.Unmarshal(raw, &cells); err != nil {
			states = append(states, StateVector{})
			continue
		}
		fields := make([]string, len(cells))
		for i, cell := range cells {
			switch v := cell.(type) {
			case string:
				fields[i] = v
			case float64:
				fields[i] = strconv.FormatFloat(v, 'g', -1, 64)
			case nil:
				fields[i] = ""
			default:
				fields[i] = fmt.Sprint(v)
			}
		}
		states = append(states, parseVectorRow(fields))
	}
	return states
}

// parseVectorTable parses the CSV block between $$SOE and $$EOE.
func parseVectorTable(result string) []StateVector {
	soeIdx := strings.Index(result, "$$SOE")
	eoeIdx := strings.Index(result, "$$EOE")
	if soeIdx == -1 || eoeIdx == -1 || soeIdx >= eoeIdx {
		return nil
	}

	var states []StateVector
	for _, line := range strings.Split(result[soeIdx+5:eoeIdx], "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "!") {
			continue
		}
		states = append(states, parseVectorRow(strings.Split(line, ",")))
	}
	return states
}

// parseVectorRow parses one row in either layout:
//
//	JDTDB, Calendar Date (TDB), X, Y, Z, VX, VY, VZ[, ...]
//	Calendar Date, X, Y, Z, VX, VY, VZ[, ...]
//
// Rows whose numbers are missing, malformed or cut short inside the
// velocity triple come back with Valid=false. Position-only rows are valid.
// A calendar date that cannot be parsed leaves Time zero.
func parseVectorRow(fields []string) StateVector {
	for i := range fields {
		fields[i] = strings.TrimSpace(fields[i])
	}
	for len(fields) > 0 && fields[len(fields)-1] == "" {
		fields = fields[:len(fields)-1]
	}
	if len(fields) == 0 {
		return StateVector{}
	}

	var sv StateVector
	var nums []string

	if jd, ok := jdLayout(fields); ok {
		t, err := parseHorizonsDateTime(fields[1])
		if err != nil {
			t = astro.TimeFromJulianDate(jd)
		}
		sv.Time = t
		nums = fields[2:]
	} else {
		if t, err := parseHorizonsDateTime(fields[0]); err == nil {
			sv.Time = t
		}
		nums = fields[1:]
	}

	if len(nums) < 3 {
		return sv
	}
	pos, err := parseTriple(nums[0:3])
	if err != nil {
		return sv
	}
	sv.Pos = pos

	switch {
	case len(nums) == 3:
		sv.Valid = true
	case len(nums) < 6:
		// Velocity started but cut short.
	default:
		vel, err := parseTriple(nums[3:6])
		if err != nil {
			return sv
		}
		sv.Vel = vel
		sv.HasVelocity = true
		sv.Valid = true
	}
	return sv
}

// jdLayout reports whether the row leads with a Julian Date followed by a
// non-numeric calendar column.
func jdLayout(fields []string) (float64, bool) {
	if len(fields) < 2 {
		return 0, false
	}
	jd, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return 0, false
	}
	if _, err := strconv.ParseFloat(fields[1], 64); err == nil {
		return 0, false
	}
	return jd, true
}

func parseTriple(fields []string) (astro.Vec3, error) {
	var v [3]float64
	for i, f := range fields {
		x, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return astro.Vec3{}, err
		}
		v[i] = x
	}
	return astro.Vec3{X: v[0], Y: v[1], Z: v[2]}, nil
}

// horizonsLayouts are the calendar formats Horizons emits. The TDB/UT
// scale suffix is stripped before parsing and the result is treated as UTC.
var horizonsLayouts = []string{
	"2006-Jan-02 15:04:05.999999999",
	"2006-Jan-02 15:04",
	"2006-Jan-02",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04",
	"2006-01-02",
}

// parseHorizonsDateTime parses Horizons dates like
// "A.D. 2025-Aug-21 00:00:00.0000 TDB" or "2025-Aug-21 00:00".
func parseHorizonsDateTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "A.D.")
	s = strings.TrimSuffix(s, "TDB")
	s = strings.TrimSuffix(s, "UT")
	s = strings.TrimSpace(s)

	for _, layout := range horizonsLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unable to parse date: %q", s)
}

// formatHorizonsTime formats a time for the Horizons API.
func formatHorizonsTime(t time.Time) string {
	return t.UTC().Format("2006-01-02 15:04")
}

// formatStepSize formats a duration as a Horizons step size.
func formatStepSize(d time.Duration) string {
	minutes := int(d.Minutes())
	if minutes < 1 {
		minutes = 1
	}
	switch {
	case minutes%(24*60) == 0:
		return fmt.Sprintf("%d d", minutes/(24*60))
	case minutes%60 == 0:
		return fmt.Sprintf("%d h", minutes/60)
	default:
		return fmt.Sprintf("%d m", minutes)
	}
}
