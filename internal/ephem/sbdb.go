package ephem

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/litescript/ls-orrery/internal/astro"
	"github.com/litescript/ls-orrery/internal/logging"
	"github.com/litescript/ls-orrery/internal/metrics"
	"github.com/litescript/ls-orrery/internal/orbit"
)

const (
	// SBDBLookupURL is the JPL Small-Body Database single-object API.
	SBDBLookupURL = "https://ssd-api.jpl.nasa.gov/sbdb.api"

	// SBDBQueryURL is the JPL Small-Body Database query API.
	SBDBQueryURL = "https://ssd-api.jpl.nasa.gov/sbdb_query.api"

	// DefaultSBDBTimeout is the SBDB HTTP request timeout.
	DefaultSBDBTimeout = 60 * time.Second

	// Days per year of a 1 AU orbit around the Sun (Gaussian year).
	gaussianYearDays = 365.256898326
)

var (
	// ErrObjectNotFound is returned when SBDB does not know a designation.
	ErrObjectNotFound = errors.New("sbdb: object not found")

	// ErrAmbiguous is returned when a designation matches several objects.
	ErrAmbiguous = errors.New("sbdb: designation matches several objects")
)

// SmallBody is an asteroid or comet looked up in SBDB.
type SmallBody struct {
	SPKID       TargetID
	Designation string
	FullName    string
	ShortName   string
	OrbitClass  string
	Elements    orbit.Elements
}

// Body returns a catalog entry for the small body.
func (s SmallBody) Body() Body {
	name := s.ShortName
	if name == "" {
		name = s.FullName
	}
	el := s.Elements
	b := Body{Name: name, Code: s.Designation, NAIFID: s.SPKID, Kind: BodySmall, Elements: &el}
	if s.FullName != "" && s.FullName != name {
		b.Aliases = []string{s.FullName}
	}
	return b
}

// NEO is one row of a near-Earth object listing. Missing numeric fields are
// NaN.
type NEO struct {
	SPKID       TargetID
	FullName    string
	Designation string
	OrbitClass  string
	H           float64 // absolute magnitude
	DiameterKm  float64
	Albedo      float64
	MOIDAU      float64
	PHA         bool
}

// SBDBClient queries the JPL Small-Body Database.
type SBDBClient struct {
	client    *http.Client
	lookupURL string
	queryURL  string
	limiter   *rate.Limiter
	log       *logging.Logger
}

// SBDBOption configures an SBDBClient.
type SBDBOption func(*SBDBClient)

// WithSBDBURLs overrides the lookup and query endpoints. Empty values keep
// the defaults.
func WithSBDBURLs(lookup, query string) SBDBOption {
	return func(c *SBDBClient) {
		if lookup != "" {
			c.lookupURL = lookup
		}
		if query != "" {
			c.queryURL = query
		}
	}
}

// WithSBDBRateLimit sets the allowed requests per second. Zero or negative
// disables limiting.
func WithSBDBRateLimit(perSec float64) SBDBOption {
	return func(c *SBDBClient) {
		if perSec <= 0 {
			c.limiter = rate.NewLimiter(rate.Inf, 1)
			return
		}
		c.limiter = rate.NewLimiter(rate.Limit(perSec), 1)
	}
}

// WithSBDBLogger sets the logger.
func WithSBDBLogger(l *logging.Logger) SBDBOption {
	return func(c *SBDBClient) {
		if l != nil {
			c.log = l
		}
	}
}

// NewSBDBClient creates a new SBDB client.
func NewSBDBClient(opts ...SBDBOption) *SBDBClient {
	c := &SBDBClient{
		client:    &http.Client{Timeout: DefaultSBDBTimeout},
		lookupURL: SBDBLookupURL,
		queryURL:  SBDBQueryURL,
		limiter:   rate.NewLimiter(rate.Limit(DefaultRatePerSec), 1),
		log:       logging.Discard(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Lookup fetches the osculating elements of one small body. Objects on
// open orbits are rejected with orbit.ErrInvalidElements.
func (c *SBDBClient) Lookup(ctx context.Context, designation string) (SmallBody, error) {
	designation = strings.TrimSpace(designation)
	if designation == "" {
		return SmallBody{}, fmt.Errorf("%w: empty designation", ErrObjectNotFound)
	}

	params := url.Values{}
	params.Set("sstr", designation)
	body, err := c.get(ctx, c.lookupURL, params)
	if err != nil {
		return SmallBody{}, err
	}

	sb, err := parseLookupResponse(body)
	if err != nil {
		return SmallBody{}, fmt.Errorf("%s: %w", designation, err)
	}
	c.log.Debug("sbdb: %s is %s (SPK %d)", designation, sb.FullName, sb.SPKID)
	return sb, nil
}

// LookupAll resolves every designation. Bodies that resolved are returned
// even when others fail; the failures are joined into the error.
func (c *SBDBClient) LookupAll(ctx context.Context, designations []string) ([]SmallBody, error) {
	out := make([]SmallBody, 0, len(designations))
	var errs []error
	for _, d := range designations {
		sb, err := c.Lookup(ctx, d)
		if err != nil {
			c.log.Warn("sbdb: %v", err)
			errs = append(errs, err)
			continue
		}
		out = append(out, sb)
	}
	return out, errors.Join(errs...)
}

// NEOs lists up to limit near-Earth objects.
func (c *SBDBClient) NEOs(ctx context.Context, limit int) ([]NEO, error) {
	if limit <= 0 {
		limit = 50
	}
	params := url.Values{}
	params.Set("fields", strings.Join(neoFields, ","))
	params.Set("sb-group", "neo")
	params.Set("limit", strconv.Itoa(limit))

	body, err := c.get(ctx, c.queryURL, params)
	if err != nil {
		return nil, err
	}
	return parseQueryResponse(body)
}

func (c *SBDBClient) get(ctx context.Context, base string, params url.Values) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")

	body, err := c.do(req)
	metrics.ObserveSBDBRequest(err)
	return body, err
}

func (c *SBDBClient) do(req *http.Request) ([]byte, error) {
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sbdb request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	switch resp.StatusCode {
	case http.StatusOK:
		return body, nil
	case http.StatusMultipleChoices:
		// Several matches come back as 300 with a list.
		return body, nil
	case http.StatusNotFound:
		return nil, ErrObjectNotFound
	default:
		return nil, fmt.Errorf("sbdb returned status %d: %s", resp.StatusCode, truncate(string(body), 200))
	}
}

// sbdbLookupResponse is the subset of the sbdb.api response we use.
type sbdbLookupResponse struct {
	Object *struct {
		FullName   string `json:"fullname"`
		ShortName  string `json:"shortname"`
		Des        string `json:"des"`
		SPKID      string `json:"spkid"`
		OrbitClass struct {
			Code string `json:"code"`
			Name string `json:"name"`
		} `json:"orbit_class"`
	} `json:"object"`
	Orbit *struct {
		Epoch    string `json:"epoch"`
		Elements []struct {
			Name  string  `json:"name"`
			Value *string `json:"value"`
		} `json:"elements"`
	} `json:"orbit"`
	List []struct {
		PDes string `json:"pdes"`
		Name string `json:"name"`
	} `json:"list"`
	Message string `json:"message"`
}

func parseLookupResponse(body []byte) (SmallBody, error) {
	var resp sbdbLookupResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return SmallBody{}, fmt.Errorf("parse sbdb response: %w", err)
	}
	if len(resp.List) > 0 {
		names := make([]string, 0, len(resp.List))
		for _, m := range resp.List {
			names = append(names, m.PDes)
		}
		return SmallBody{}, fmt.Errorf("%w: %s", ErrAmbiguous, strings.Join(names, ", "))
	}
	if resp.Object == nil || resp.Orbit == nil {
		if resp.Message != "" {
			return SmallBody{}, fmt.Errorf("%w: %s", ErrObjectNotFound, resp.Message)
		}
		return SmallBody{}, ErrObjectNotFound
	}

	spk, err := strconv.Atoi(strings.TrimSpace(resp.Object.SPKID))
	if err != nil {
		return SmallBody{}, fmt.Errorf("spkid %q: %w", resp.Object.SPKID, err)
	}
	epochJD, err := strconv.ParseFloat(strings.TrimSpace(resp.Orbit.Epoch), 64)
	if err != nil {
		return SmallBody{}, fmt.Errorf("epoch %q: %w", resp.Orbit.Epoch, err)
	}

	vals := make(map[string]float64, len(resp.Orbit.Elements))
	for _, e := range resp.Orbit.Elements {
		if e.Value == nil {
			continue
		}
		if v, err := strconv.ParseFloat(strings.TrimSpace(*e.Value), 64); err == nil {
			vals[e.Name] = v
		}
	}
	for _, name := range []string{"a", "e", "i", "om", "w", "ma"} {
		if _, ok := vals[name]; !ok {
			return SmallBody{}, fmt.Errorf("element %q missing: %w", name, orbit.ErrInvalidElements)
		}
	}

	el := orbit.Elements{
		SemiMajorAxisAU:  vals["a"],
		Eccentricity:     vals["e"],
		InclinationDeg:   vals["i"],
		AscendingNodeDeg: vals["om"],
		ArgPerihelionDeg: vals["w"],
		MeanAnomalyDeg:   vals["ma"],
		PeriodDays:       vals["per"],
		Epoch:            astro.TimeFromJulianDate(epochJD),
	}
	if el.PeriodDays <= 0 && el.SemiMajorAxisAU > 0 {
		el.PeriodDays = gaussianYearDays * math.Pow(el.SemiMajorAxisAU, 1.5)
	}
	if err := el.Validate(); err != nil {
		return SmallBody{}, err
	}

	return SmallBody{
		SPKID:       TargetID(spk),
		Designation: resp.Object.Des,
		FullName:    strings.TrimSpace(resp.Object.FullName),
		ShortName:   strings.TrimSpace(resp.Object.ShortName),
		OrbitClass:  resp.Object.OrbitClass.Code,
		Elements:    el,
	}, nil
}

var neoFields = []string{"spkid", "full_name", "pdes", "class", "H", "diameter", "albedo", "moid", "pha"}

// sbdbQueryResponse is the sbdb_query.api response. Data cells are strings
// or null, in the order of Fields.
type sbdbQueryResponse struct {
	Fields  []string    `json:"fields"`
	Data    [][]*string `json:"data"`
	Message string      `json:"message"`
}

func parseQueryResponse(body []byte) ([]NEO, error) {
	var resp sbdbQueryResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("parse sbdb query response: %w", err)
	}
	if len(resp.Fields) == 0 && resp.Message != "" {
		return nil, fmt.Errorf("sbdb query: %s", resp.Message)
	}

	col := make(map[string]int, len(resp.Fields))
	for i, f := range resp.Fields {
		col[f] = i
	}
	str := func(row []*string, field string) string {
		i, ok := col[field]
		if !ok || i >= len(row) || row[i] == nil {
			return ""
		}
		return strings.TrimSpace(*row[i])
	}
	num := func(row []*string, field string) float64 {
		v, err := strconv.ParseFloat(str(row, field), 64)
		if err != nil {
			return math.NaN()
		}
		return v
	}

	out := make([]NEO, 0, len(resp.Data))
	for _, row := range resp.Data {
		spk, _ := strconv.Atoi(str(row, "spkid"))
		out = append(out, NEO{
			SPKID:       TargetID(spk),
			FullName:    str(row, "full_name"),
			Designation: str(row, "pdes"),
			OrbitClass:  str(row, "class"),
			H:           num(row, "H"),
			DiameterKm:  num(row, "diameter"),
			Albedo:      num(row, "albedo"),
			MOIDAU:      num(row, "moid"),
			PHA:         str(row, "pha") == "Y",
		})
	}
	return out, nil
}
