package ephem

import (
	"context"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/litescript/ls-orrery/internal/astro"
	"github.com/litescript/ls-orrery/internal/orbit"
)

const erosLookup = `{
  "signature": {"source": "NASA/JPL Small-Body Database (SBDB) API", "version": "1.3"},
  "object": {
    "fullname": "433 Eros (A898 PA)",
    "shortname": "433 Eros",
    "des": "433",
    "spkid": "2000433",
    "kind": "an",
    "orbit_class": {"code": "AMO", "name": "Amor"}
  },
  "orbit": {
    "epoch": "2460800.5",
    "elements": [
      {"name": "e", "value": "0.2228", "units": null},
      {"name": "a", "value": "1.458", "units": "au"},
      {"name": "q", "value": "1.133", "units": "au"},
      {"name": "i", "value": "10.83", "units": "deg"},
      {"name": "om", "value": "304.3", "units": "deg"},
      {"name": "w", "value": "178.9", "units": "deg"},
      {"name": "ma", "value": "310.5", "units": "deg"},
      {"name": "tp", "value": "2460600.1", "units": "TDB"},
      {"name": "per", "value": "643.1", "units": "d"},
      {"name": "n", "value": "0.5598", "units": "deg/d"},
      {"name": "ad", "value": null, "units": "au"}
    ]
  }
}`

const neoQuery = `{
  "signature": {"source": "NASA/JPL Small-Body Database Query API", "version": "1.0"},
  "count": 2,
  "fields": ["spkid", "full_name", "pdes", "class", "H", "diameter", "albedo", "moid", "pha"],
  "data": [
    ["2000433", "   433 Eros (A898 PA)", "433", "AMO", "10.38", "16.84", "0.25", "0.149", "N"],
    ["2099942", " 99942 Apophis (2004 MN4)", "99942", "ATE", "19.09", null, null, "0.000194", "Y"]
  ]
}`

func TestParseLookupResponse(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr error
		check   func(t *testing.T, sb SmallBody)
	}{
		{
			name: "eros",
			body: erosLookup,
			check: func(t *testing.T, sb SmallBody) {
				if sb.SPKID != 2000433 || sb.Designation != "433" || sb.OrbitClass != "AMO" {
					t.Errorf("header = %+v", sb)
				}
				el := sb.Elements
				if el.SemiMajorAxisAU != 1.458 || el.Eccentricity != 0.2228 || el.InclinationDeg != 10.83 {
					t.Errorf("shape elements = %+v", el)
				}
				if el.AscendingNodeDeg != 304.3 || el.ArgPerihelionDeg != 178.9 || el.MeanAnomalyDeg != 310.5 {
					t.Errorf("angle elements = %+v", el)
				}
				if el.PeriodDays != 643.1 {
					t.Errorf("PeriodDays = %v, want 643.1", el.PeriodDays)
				}
				if want := astro.TimeFromJulianDate(2460800.5); !el.Epoch.Equal(want) {
					t.Errorf("Epoch = %v, want %v", el.Epoch, want)
				}
			},
		},
		{
			name: "period derived from a",
			body: strings.Replace(erosLookup, `"value": "643.1"`, `"value": null`, 1),
			check: func(t *testing.T, sb SmallBody) {
				want := gaussianYearDays * math.Pow(1.458, 1.5)
				if math.Abs(sb.Elements.PeriodDays-want) > 1e-9 {
					t.Errorf("PeriodDays = %v, want %v", sb.Elements.PeriodDays, want)
				}
			},
		},
		{
			name:    "hyperbolic",
			body:    strings.Replace(erosLookup, `"value": "0.2228"`, `"value": "1.05"`, 1),
			wantErr: orbit.ErrInvalidElements,
		},
		{
			name:    "missing element",
			body:    strings.Replace(erosLookup, `"name": "ma"`, `"name": "xx"`, 1),
			wantErr: orbit.ErrInvalidElements,
		},
		{
			name:    "not found",
			body:    `{"message": "specified object was not found"}`,
			wantErr: ErrObjectNotFound,
		},
		{
			name:    "ambiguous",
			body:    `{"message": "more than one match", "list": [{"pdes": "1P", "name": "Halley"}, {"pdes": "1P-A", "name": "Halley"}]}`,
			wantErr: ErrAmbiguous,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sb, err := parseLookupResponse([]byte(tt.body))
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("err = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("parseLookupResponse: %v", err)
			}
			tt.check(t, sb)
		})
	}
}

func TestParseQueryResponse(t *testing.T) {
	neos, err := parseQueryResponse([]byte(neoQuery))
	if err != nil {
		t.Fatalf("parseQueryResponse: %v", err)
	}
	if len(neos) != 2 {
		t.Fatalf("len = %d, want 2", len(neos))
	}

	eros := neos[0]
	if eros.SPKID != 2000433 || eros.FullName != "433 Eros (A898 PA)" || eros.OrbitClass != "AMO" || eros.PHA {
		t.Errorf("eros = %+v", eros)
	}
	if eros.H != 10.38 || eros.DiameterKm != 16.84 || eros.MOIDAU != 0.149 {
		t.Errorf("eros numbers = %+v", eros)
	}

	apophis := neos[1]
	if !apophis.PHA || apophis.Designation != "99942" {
		t.Errorf("apophis = %+v", apophis)
	}
	if !math.IsNaN(apophis.DiameterKm) || !math.IsNaN(apophis.Albedo) {
		t.Errorf("null cells should be NaN, got %v/%v", apophis.DiameterKm, apophis.Albedo)
	}

	if _, err := parseQueryResponse([]byte(`{"message": "bad field"}`)); err == nil {
		t.Error("expected error for a message-only response")
	}
}

func fakeSBDB(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/sbdb.api":
			switch q.Get("sstr") {
			case "433", "Eros":
				_, _ = w.Write([]byte(erosLookup))
			default:
				http.Error(w, `{"message": "specified object was not found"}`, http.StatusNotFound)
			}
		case "/sbdb_query.api":
			if q.Get("sb-group") != "neo" || q.Get("limit") != "2" {
				http.Error(w, "bad params", http.StatusBadRequest)
				return
			}
			_, _ = w.Write([]byte(neoQuery))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestSBDBClient_Lookup(t *testing.T) {
	srv := fakeSBDB(t)
	c := NewSBDBClient(WithSBDBURLs(srv.URL+"/sbdb.api", srv.URL+"/sbdb_query.api"), WithSBDBRateLimit(0))
	ctx := context.Background()

	sb, err := c.Lookup(ctx, "Eros")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if sb.SPKID != 2000433 {
		t.Errorf("SPKID = %d", sb.SPKID)
	}

	if _, err := c.Lookup(ctx, "Vulcan"); !errors.Is(err, ErrObjectNotFound) {
		t.Errorf("Lookup(Vulcan) err = %v, want ErrObjectNotFound", err)
	}
	if _, err := c.Lookup(ctx, "  "); !errors.Is(err, ErrObjectNotFound) {
		t.Errorf("blank designation err = %v", err)
	}

	got, err := c.LookupAll(ctx, []string{"433", "Vulcan"})
	if !errors.Is(err, ErrObjectNotFound) {
		t.Errorf("LookupAll err = %v, want ErrObjectNotFound", err)
	}
	if len(got) != 1 || got[0].Designation != "433" {
		t.Errorf("LookupAll should keep resolved bodies, got %+v", got)
	}
}

func TestSBDBClient_NEOs(t *testing.T) {
	srv := fakeSBDB(t)
	c := NewSBDBClient(WithSBDBURLs(srv.URL+"/sbdb.api", srv.URL+"/sbdb_query.api"), WithSBDBRateLimit(0))

	neos, err := c.NEOs(context.Background(), 2)
	if err != nil {
		t.Fatalf("NEOs: %v", err)
	}
	if len(neos) != 2 || neos[1].Designation != "99942" {
		t.Errorf("NEOs = %+v", neos)
	}
}

func TestSmallBody_FeedsPropagator(t *testing.T) {
	sb, err := parseLookupResponse([]byte(erosLookup))
	if err != nil {
		t.Fatal(err)
	}
	RegisterBody(sb.Body())

	if got, ok := ResolveTarget("433 eros"); !ok || got != 2000433 {
		t.Errorf("ResolveTarget(433 eros) = %d, %v", got, ok)
	}
	if got := DisplayName(2000433); got != "433 Eros" {
		t.Errorf("DisplayName = %q, want 433 Eros", got)
	}
	if b, ok := GetBody(2000433); !ok || b.Kind != BodySmall {
		t.Errorf("GetBody = %+v, %v", b, ok)
	}

	el := NewCatalog().ElementsFor(2000433)
	if el == nil {
		t.Fatal("registered body missing from the default catalog")
	}
	st, err := orbit.Propagate(el, el.Epoch.Add(30*24*time.Hour))
	if err != nil {
		t.Fatalf("Propagate: %v", err)
	}
	r := st.Pos.Norm() / astro.AU
	if peri, aph := 1.458*(1-0.2228), 1.458*(1+0.2228); r < peri-1e-6 || r > aph+1e-6 {
		t.Errorf("r = %.4f AU outside [%.4f, %.4f]", r, peri, aph)
	}

	// Built-in IDs cannot be overridden.
	RegisterBody(Body{Name: "Not Mars", NAIFID: NAIFMars})
	if DisplayName(NAIFMars) != "Mars" {
		t.Error("RegisterBody replaced a built-in body")
	}
}
