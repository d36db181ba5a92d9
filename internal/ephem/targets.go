package ephem

import (
	"strconv"
	"strings"
	"sync"

	"github.com/litescript/ls-orrery/internal/astro"
	"github.com/litescript/ls-orrery/internal/orbit"
)

// BodyKind categorizes bodies for rendering.
type BodyKind int

const (
	BodySun BodyKind = iota
	BodyPlanet
	BodyDwarf
	BodySpacecraft
	BodySmall
)

// String returns the body kind name.
func (k BodyKind) String() string {
	switch k {
	case BodySun:
		return "sun"
	case BodyPlanet:
		return "planet"
	case BodyDwarf:
		return "dwarf"
	case BodySpacecraft:
		return "spacecraft"
	case BodySmall:
		return "small body"
	default:
		return "unknown"
	}
}

// Body is a catalog entry. Elements is nil for bodies with no closed-form
// model (the Sun, spacecraft); those are positioned from samples only.
type Body struct {
	Name     string
	Code     string
	NAIFID   TargetID
	Kind     BodyKind
	Aliases  []string
	Elements *orbit.Elements
}

// HasModel reports whether the body can be propagated without samples.
func (b Body) HasModel() bool {
	return b.Elements != nil
}

// NAIF IDs for the bodies in the catalog.
// Sourced from https://naif.jpl.nasa.gov/pub/naif/toolkit_docs/C/req/naif_ids.html
const (
	NAIFSun     TargetID = 10
	NAIFMercury TargetID = 199
	NAIFVenus   TargetID = 299
	NAIFEarth   TargetID = 399
	NAIFMars    TargetID = 499
	NAIFJupiter TargetID = 599
	NAIFSaturn  TargetID = 699
	NAIFUranus  TargetID = 799
	NAIFNeptune TargetID = 899
	NAIFPluto   TargetID = 999

	NAIFVoyager1    TargetID = -31
	NAIFVoyager2    TargetID = -32
	NAIFNewHorizons TargetID = -98
	NAIFJuno        TargetID = -61
	NAIFParker      TargetID = -96
)

// planet builds J2000 elements from the mean longitude form used by the
// JPL "Approximate Positions of the Planets" table.
func planet(a, e, i, L, varpi, node, periodDays float64) *orbit.Elements {
	el := orbit.FromMeanLongitude(a, e, i, L, varpi, node, periodDays, astro.J2000)
	return &el
}

// Bodies is the canonical catalog. Planet elements are valid 1800-2050 AD.
// Earth uses the Earth-Moon barycenter elements.
var Bodies = []Body{
	{Name: "Sun", Code: "SUN", NAIFID: NAIFSun, Kind: BodySun},

	{Name: "Mercury", Code: "MERC", NAIFID: NAIFMercury, Kind: BodyPlanet,
		Elements: planet(0.38709927, 0.20563593, 7.00497902, 252.25032350, 77.45779628, 48.33076593, 87.969)},
	{Name: "Venus", Code: "VEN", NAIFID: NAIFVenus, Kind: BodyPlanet,
		Elements: planet(0.72333566, 0.00677672, 3.39467605, 181.97909950, 131.60246718, 76.67984255, 224.701)},
	{Name: "Earth", Code: "EARTH", NAIFID: NAIFEarth, Kind: BodyPlanet,
		Elements: planet(1.00000261, 0.01671123, -0.00001531, 100.46457166, 102.93768193, 0.0, 365.256)},
	{Name: "Mars", Code: "MARS", NAIFID: NAIFMars, Kind: BodyPlanet,
		Elements: planet(1.52371034, 0.09339410, 1.84969142, -4.55343205, -23.94362959, 49.55953891, 686.980)},
	{Name: "Jupiter", Code: "JUP", NAIFID: NAIFJupiter, Kind: BodyPlanet,
		Elements: planet(5.20288700, 0.04838624, 1.30439695, 34.39644051, 14.72847983, 100.47390909, 4332.589)},
	{Name: "Saturn", Code: "SAT", NAIFID: NAIFSaturn, Kind: BodyPlanet,
		Elements: planet(9.53667594, 0.05386179, 2.48599187, 49.95424423, 92.59887831, 113.66242448, 10759.22)},
	{Name: "Uranus", Code: "URA", NAIFID: NAIFUranus, Kind: BodyPlanet,
		Elements: planet(19.18916464, 0.04725744, 0.77263783, 313.23810451, 170.95427630, 74.01692503, 30685.4)},
	{Name: "Neptune", Code: "NEP", NAIFID: NAIFNeptune, Kind: BodyPlanet,
		Elements: planet(30.06992276, 0.00859048, 1.77004347, -55.12002969, 44.96476227, 131.78422574, 60189)},
	{Name: "Pluto", Code: "PLU", NAIFID: NAIFPluto, Kind: BodyDwarf,
		Elements: planet(39.48211675, 0.24882730, 17.14001206, 238.92903833, 224.06891629, 110.30393684, 90560)},

	// Spacecraft: sampled only.
	{Name: "Voyager 1", Code: "VGR1", NAIFID: NAIFVoyager1, Kind: BodySpacecraft},
	{Name: "Voyager 2", Code: "VGR2", NAIFID: NAIFVoyager2, Kind: BodySpacecraft},
	{Name: "New Horizons", Code: "NHPC", NAIFID: NAIFNewHorizons, Kind: BodySpacecraft, Aliases: []string{"NH"}},
	{Name: "Juno", Code: "JUNO", NAIFID: NAIFJuno, Kind: BodySpacecraft, Aliases: []string{"JNO"}},
	{Name: "Parker Solar Probe", Code: "SPP", NAIFID: NAIFParker, Kind: BodySpacecraft, Aliases: []string{"PSP", "PARKER"}},
}

// DefaultTargets are the bodies fetched when none are configured.
var DefaultTargets = []TargetID{
	NAIFMercury, NAIFVenus, NAIFEarth, NAIFMars,
	NAIFJupiter, NAIFSaturn, NAIFUranus, NAIFNeptune,
}

// BodiesByNAIF maps NAIF IDs to catalog entries.
var BodiesByNAIF = func() map[TargetID]Body {
	m := make(map[TargetID]Body, len(Bodies))
	for _, b := range Bodies {
		m[b.NAIFID] = b
	}
	return m
}()

// bodiesByName maps lowercased names, codes and aliases to catalog entries.
var bodiesByName = func() map[string]Body {
	m := make(map[string]Body, len(Bodies)*3)
	for _, b := range Bodies {
		m[strings.ToLower(b.Name)] = b
		m[strings.ToLower(b.Code)] = b
		for _, alias := range b.Aliases {
			m[strings.ToLower(alias)] = b
		}
	}
	return m
}()

// Bodies added at runtime, such as SBDB lookups. Built-in entries win.
var (
	registryMu       sync.RWMutex
	registered       = make(map[TargetID]Body)
	registeredByName = make(map[string]Body)
)

// RegisterBody makes b known to GetBody, ResolveTarget, DisplayName and
// catalogs built afterwards. It is a no-op for built-in IDs.
func RegisterBody(b Body) {
	if _, ok := BodiesByNAIF[b.NAIFID]; ok {
		return
	}
	registryMu.Lock()
	defer registryMu.Unlock()
	registered[b.NAIFID] = b
	for _, n := range append([]string{b.Name, b.Code}, b.Aliases...) {
		if n = strings.ToLower(strings.TrimSpace(n)); n != "" {
			registeredByName[n] = b
		}
	}
}

// GetBody returns the catalog entry for a NAIF ID.
func GetBody(id TargetID) (Body, bool) {
	if b, ok := BodiesByNAIF[id]; ok {
		return b, true
	}
	registryMu.RLock()
	defer registryMu.RUnlock()
	b, ok := registered[id]
	return b, ok
}

// ResolveTarget resolves a name, code, alias or numeric NAIF ID
// (case-insensitive). Numeric IDs outside the catalog are accepted as-is
// so any Horizons COMMAND can be requested.
func ResolveTarget(s string) (TargetID, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	if b, ok := bodiesByName[strings.ToLower(s)]; ok {
		return b.NAIFID, true
	}
	registryMu.RLock()
	b, ok := registeredByName[strings.ToLower(s)]
	registryMu.RUnlock()
	if ok {
		return b.NAIFID, true
	}
	if n, err := strconv.Atoi(s); err == nil {
		return TargetID(n), true
	}
	return 0, false
}

// DisplayName returns the catalog name for id, or the numeric ID.
func DisplayName(id TargetID) string {
	if b, ok := GetBody(id); ok {
		return b.Name
	}
	return strconv.Itoa(int(id))
}

// Catalog serves fallback orbital elements by target.
type Catalog struct {
	bodies map[TargetID]Body
}

// NewCatalog builds a catalog from bodies. With no arguments it uses Bodies
// plus every registered body.
func NewCatalog(bodies ...Body) *Catalog {
	if len(bodies) == 0 {
		bodies = append([]Body(nil), Bodies...)
		registryMu.RLock()
		for _, b := range registered {
			bodies = append(bodies, b)
		}
		registryMu.RUnlock()
	}
	c := &Catalog{bodies: make(map[TargetID]Body, len(bodies))}
	for _, b := range bodies {
		c.bodies[b.NAIFID] = b
	}
	return c
}

// ElementsFor returns the orbital elements for id, or nil if the body is
// unknown or has no model.
func (c *Catalog) ElementsFor(id TargetID) *orbit.Elements {
	if c == nil {
		return nil
	}
	return c.bodies[id].Elements
}
