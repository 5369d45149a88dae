package rasterview

import (
	"encoding/json"
	"math"
)

// Display modes.
const (
	ModeDefault     = 0
	ModeColorTable  = 1
	ModeGreyscale   = 2
	ModeRGB         = 3
	ModePseudoColor = 4
	ModeRGBA        = 5
)

// Stretch modes. The Var variants carry separate parameters for each band of
// an RGB or RGBA stretch.
const (
	StretchModeDefault   = 0
	StretchModeNone      = 1 // color table, or pre stretched data
	StretchModeLinear    = 2
	StretchModeStdDev    = 3
	StretchModeHist      = 4
	StretchModeLinearVar = 5
	StretchModeStdDevVar = 6
	StretchModeHistVar   = 7
)

// Defaults for the statistical stretches.
const (
	DefaultStdDev  = 2.0
	DefaultHistMin = 0.025
	DefaultHistMax = 0.01
)

// RGBA is a display color. Index order is red, green, blue, alpha.
type RGBA [4]uint8

// StretchParams holds the stretch parameters. Global is used by the plain
// stretch modes, PerBand by the Var modes with one entry per stretch band.
// NaN marks a value to be taken from the data (auto min or max).
//
// On the wire this is a flat JSON list with null for NaN, or a list of such
// lists for the Var modes.
type StretchParams struct {
	Global  []float64
	PerBand [][]float64
}

// ForBand returns the parameters that apply to stretch band i (0 based).
func (p StretchParams) ForBand(i int) []float64 {
	if p.PerBand != nil && i < len(p.PerBand) {
		return p.PerBand[i]
	}
	return p.Global
}

func paramsToJSON(vals []float64) []any {
	out := make([]any, len(vals))
	for i, v := range vals {
		if math.IsNaN(v) {
			out[i] = nil
		} else {
			out[i] = v
		}
	}
	return out
}

func paramsFromJSON(raw []any) []float64 {
	out := make([]float64, len(raw))
	for i, v := range raw {
		if f, ok := v.(float64); ok {
			out[i] = f
		} else {
			out[i] = math.NaN()
		}
	}
	return out
}

// MarshalJSON implements json.Marshaler.
func (p StretchParams) MarshalJSON() ([]byte, error) {
	if p.PerBand != nil {
		all := make([]any, len(p.PerBand))
		for i, band := range p.PerBand {
			all[i] = paramsToJSON(band)
		}
		return json.Marshal(all)
	}
	if p.Global == nil {
		return []byte("null"), nil
	}
	return json.Marshal(paramsToJSON(p.Global))
}

// UnmarshalJSON implements json.Unmarshaler.
func (p *StretchParams) UnmarshalJSON(data []byte) error {
	var raw []any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	p.Global = nil
	p.PerBand = nil
	if len(raw) == 0 {
		return nil
	}
	if _, nested := raw[0].([]any); nested {
		p.PerBand = make([][]float64, len(raw))
		for i, v := range raw {
			inner, _ := v.([]any)
			p.PerBand[i] = paramsFromJSON(inner)
		}
		return nil
	}
	p.Global = paramsFromJSON(raw)
	return nil
}

// Stretch describes how raw raster values become display colors. The zero
// value has everything set to the Default modes, callers normally build one
// with the Set methods.
type Stretch struct {
	Mode        int
	StretchMode int
	Param       StretchParams
	Bands       []int
	RampName    string
	NoData      RGBA
	Background  RGBA
	NaN         RGBA
	// AttributeTableSize, when non zero, forces the LUT to that many
	// entries with direct integer indexing, for thematic rasters.
	AttributeTableSize int
}

// SetBands sets the 1 based band numbers used by the stretch.
func (s *Stretch) SetBands(bands []int) {
	s.Bands = bands
}

// SetColorTable displays the band through its stored color table.
func (s *Stretch) SetColorTable() {
	s.Mode = ModeColorTable
	s.StretchMode = StretchModeNone
}

// SetGreyScale displays a single band as grey.
func (s *Stretch) SetGreyScale() {
	s.Mode = ModeGreyscale
}

// SetPseudoColor displays a single band through the named color ramp.
func (s *Stretch) SetPseudoColor(rampName string) {
	s.Mode = ModePseudoColor
	s.RampName = rampName
}

// SetRGB displays three bands as red, green, blue.
func (s *Stretch) SetRGB() {
	s.Mode = ModeRGB
}

// SetRGBA displays four bands as red, green, blue, alpha.
func (s *Stretch) SetRGBA() {
	s.Mode = ModeRGBA
}

// SetNoStretch maps values straight through, for pre stretched data.
func (s *Stretch) SetNoStretch() {
	s.StretchMode = StretchModeNone
}

// SetLinearStretch stretches linearly between minVal and maxVal. Pass NaN
// for either to take it from the band statistics.
func (s *Stretch) SetLinearStretch(minVal, maxVal float64) {
	s.StretchMode = StretchModeLinear
	s.Param = StretchParams{Global: []float64{minVal, maxVal}}
}

// SetStdDevStretch stretches between mean +/- stddev standard deviations.
func (s *Stretch) SetStdDevStretch(stddev float64) {
	s.StretchMode = StretchModeStdDev
	s.Param = StretchParams{Global: []float64{stddev}}
}

// SetHistStretch stretches between the values where the given fractions of
// the histogram lie below and above.
func (s *Stretch) SetHistStretch(minFrac, maxFrac float64) {
	s.StretchMode = StretchModeHist
	s.Param = StretchParams{Global: []float64{minFrac, maxFrac}}
}

// SetLinearStretchVar is SetLinearStretch with separate (min, max) pairs per
// stretch band.
func (s *Stretch) SetLinearStretchVar(perBand [][]float64) {
	s.StretchMode = StretchModeLinearVar
	s.Param = StretchParams{PerBand: perBand}
}

// SetStdDevStretchVar is SetStdDevStretch with a separate multiplier per
// stretch band.
func (s *Stretch) SetStdDevStretchVar(perBand [][]float64) {
	s.StretchMode = StretchModeStdDevVar
	s.Param = StretchParams{PerBand: perBand}
}

// SetHistStretchVar is SetHistStretch with separate fractions per stretch
// band.
func (s *Stretch) SetHistStretchVar(perBand [][]float64) {
	s.StretchMode = StretchModeHistVar
	s.Param = StretchParams{PerBand: perBand}
}

// SetNoDataRGBA sets the color for no-data pixels.
func (s *Stretch) SetNoDataRGBA(rgba RGBA) {
	s.NoData = rgba
}

// SetBackgroundRGBA sets the color for display pixels outside the raster.
func (s *Stretch) SetBackgroundRGBA(rgba RGBA) {
	s.Background = rgba
}

// SetNaNRGBA sets the color for NaN pixels of floating point bands.
func (s *Stretch) SetNaNRGBA(rgba RGBA) {
	s.NaN = rgba
}

// SetAttributeTableSize forces the LUT size for thematic rasters. Zero
// restores the default behavior.
func (s *Stretch) SetAttributeTableSize(size int) {
	s.AttributeTableSize = size
}

// stretchVarMode reports whether the stretch carries per band parameters.
func (s *Stretch) stretchVarMode() bool {
	return s.StretchMode == StretchModeLinearVar ||
		s.StretchMode == StretchModeStdDevVar ||
		s.StretchMode == StretchModeHistVar
}

// baseStretchMode folds the Var modes onto their plain equivalents.
func (s *Stretch) baseStretchMode() int {
	switch s.StretchMode {
	case StretchModeLinearVar:
		return StretchModeLinear
	case StretchModeStdDevVar:
		return StretchModeStdDev
	case StretchModeHistVar:
		return StretchModeHist
	}
	return s.StretchMode
}

type stretchJSON struct {
	Mode        int           `json:"mode"`
	StretchMode int           `json:"stretchmode"`
	Param       StretchParams `json:"stretchparam"`
	Bands       []int         `json:"bands"`
	NoData      RGBA          `json:"nodata_rgba"`
	RampName    *string       `json:"rampname"`
	Background  RGBA          `json:"background_rgba"`
	NaN         RGBA          `json:"nan_rgba"`
}

// ToJSON serializes the stretch to its compact JSON record. This record is
// embedded verbatim in saved viewer state alongside the LUT dump.
func (s *Stretch) ToJSON() (string, error) {
	rep := stretchJSON{
		Mode:        s.Mode,
		StretchMode: s.StretchMode,
		Param:       s.Param,
		Bands:       s.Bands,
		NoData:      s.NoData,
		Background:  s.Background,
		NaN:         s.NaN,
	}
	if s.RampName != "" {
		rep.RampName = &s.RampName
	}
	data, err := json.Marshal(rep)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// StretchFromJSON parses a record written by ToJSON.
func StretchFromJSON(data string) (*Stretch, error) {
	var rep stretchJSON
	if err := json.Unmarshal([]byte(data), &rep); err != nil {
		return nil, &FileFormatError{Reason: err.Error()}
	}
	s := &Stretch{
		Mode:        rep.Mode,
		StretchMode: rep.StretchMode,
		Param:       rep.Param,
		Bands:       rep.Bands,
		NoData:      rep.NoData,
		Background:  rep.Background,
		NaN:         rep.NaN,
	}
	if rep.RampName != nil {
		s.RampName = *rep.RampName
	}
	return s, nil
}

// Band count comparisons for StretchRule.
const (
	CompLT = 0
	CompGT = 1
	CompEQ = 2
)

// StretchRule pairs a default stretch with a condition on the dataset it
// applies to, so a sensible stretch can be chosen when a file is first
// opened.
type StretchRule struct {
	Comp  int
	Value int
	// CTBand, when non zero, additionally requires a color table on that
	// band.
	CTBand  int
	Stretch Stretch
}

// IsMatch reports whether the rule applies to the given source.
func (r *StretchRule) IsMatch(src RasterSource) (bool, error) {
	count := src.BandCount()
	var match bool
	switch r.Comp {
	case CompLT:
		match = count < r.Value
	case CompGT:
		match = count > r.Value
	case CompEQ:
		match = count == r.Value
	default:
		return false, &InvalidParametersError{Reason: "invalid value for comparison"}
	}

	if match && r.CTBand != 0 && r.CTBand <= count {
		match = src.ColorTable(r.CTBand) != nil
	}
	return match, nil
}

type stretchRuleJSON struct {
	Comp    int    `json:"comp"`
	Value   int    `json:"value"`
	CTBand  *int   `json:"ctband"`
	Stretch string `json:"stretch"`
}

// ToJSON serializes the rule, with the stretch nested as its own record.
func (r *StretchRule) ToJSON() (string, error) {
	nested, err := r.Stretch.ToJSON()
	if err != nil {
		return "", err
	}
	rep := stretchRuleJSON{Comp: r.Comp, Value: r.Value, Stretch: nested}
	if r.CTBand != 0 {
		rep.CTBand = &r.CTBand
	}
	data, err := json.Marshal(rep)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// StretchRuleFromJSON parses a record written by StretchRule.ToJSON.
func StretchRuleFromJSON(data string) (*StretchRule, error) {
	var rep stretchRuleJSON
	if err := json.Unmarshal([]byte(data), &rep); err != nil {
		return nil, &FileFormatError{Reason: err.Error()}
	}
	stretch, err := StretchFromJSON(rep.Stretch)
	if err != nil {
		return nil, err
	}
	rule := &StretchRule{Comp: rep.Comp, Value: rep.Value, Stretch: *stretch}
	if rep.CTBand != nil {
		rule.CTBand = *rep.CTBand
	}
	return rule, nil
}
