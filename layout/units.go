package layout

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// This file defines unit-safe types and helpers for lengths, line-heights
// and percentage dimensions as written in the DSL. Layout works in mm.

// Unit represents the original unit of a length value as specified in DSL.
type Unit int

const (
	UnitNone Unit = iota // unit-less numbers like factors
	UnitMM               // millimeters
	UnitCM               // centimeters
	UnitIN               // inches
	UnitPT               // points
)

// Conversion constants between pt and mm.
const (
	PtToMm = 25.4 / 72
	MmToPt = 72 / 25.4
)

var unitSuffixes = []struct {
	s string
	u Unit
}{{"mm", UnitMM}, {"cm", UnitCM}, {"in", UnitIN}, {"pt", UnitPT}}

// String returns a short string for a Unit value.
func (u Unit) String() string {
	for _, suf := range unitSuffixes {
		if suf.u == u {
			return suf.s
		}
	}
	return ""
}

// Length preserves a numeric value with its unit.
type Length struct {
	Value float64 `json:"value"`
	Unit  Unit    `json:"unit"`
}

func (l Length) IsZero() bool { return l.Value == 0 }

// ToMM converts the length to millimetres; unit-less numbers are taken as mm.
func (l Length) ToMM() float64 {
	switch l.Unit {
	case UnitCM:
		return l.Value * 10
	case UnitIN:
		return l.Value * 25.4
	case UnitPT:
		return l.Value * PtToMm
	default:
		return l.Value
	}
}

// ToPT converts the length to points.
func (l Length) ToPT() float64 { return l.ToMM() * MmToPt }

// ParseLength parses "12pt", "4.5mm", "1in" or a bare number.
func ParseLength(value string) (Length, error) {
	v := strings.ToLower(strings.TrimSpace(value))
	if v == "" {
		return Length{}, fmt.Errorf("长度为空")
	}
	unit := UnitNone
	num := v
	for _, suf := range unitSuffixes {
		if strings.HasSuffix(v, suf.s) {
			unit = suf.u
			num = strings.TrimSpace(strings.TrimSuffix(v, suf.s))
			break
		}
	}
	f, err := strconv.ParseFloat(num, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return Length{}, fmt.Errorf("无法解析长度 %q", value)
	}
	return Length{Value: f, Unit: unit}, nil
}

// Dimension is a length that may also be a percentage of a reference or
// "auto".
type Dimension struct {
	Auto    bool
	Percent float64
	Len     Length
	isPct   bool
}

// ParseDimension accepts "auto", "50%" or any length.
func ParseDimension(value string) (Dimension, error) {
	v := strings.ToLower(strings.TrimSpace(value))
	switch {
	case v == "auto" || v == "none":
		return Dimension{Auto: true}, nil
	case strings.HasSuffix(v, "%"):
		f, err := strconv.ParseFloat(strings.TrimSuffix(v, "%"), 64)
		if err != nil {
			return Dimension{}, fmt.Errorf("无法解析百分比 %q", value)
		}
		return Dimension{Percent: f, isPct: true}, nil
	}
	l, err := ParseLength(v)
	if err != nil {
		return Dimension{}, err
	}
	return Dimension{Len: l}, nil
}

// Resolve returns the size in mm against reference. Auto yields ok=false.
func (d Dimension) Resolve(reference float64) (float64, bool) {
	switch {
	case d.Auto:
		return 0, false
	case d.isPct:
		return reference * d.Percent / 100, true
	default:
		return d.Len.ToMM(), true
	}
}

// LineHeightKind distinguishes factor-based vs absolute line-height specification.
type LineHeightKind int

const (
	LineHeightFactor LineHeightKind = iota
	LineHeightAbsolute
)

// LineHeightSpec preserves original author intent: either a factor (e.g., 1.2x) or an absolute length (e.g., 18pt).
type LineHeightSpec struct {
	Kind   LineHeightKind `json:"kind"`
	Factor float64        `json:"factor,omitempty"`
	Len    Length         `json:"len,omitempty"`
}

// ParseLineHeight accepts "1.4x", a bare factor like "1.4", or a length.
func ParseLineHeight(value string) (LineHeightSpec, error) {
	v := strings.ToLower(strings.TrimSpace(value))
	if f, err := strconv.ParseFloat(strings.TrimSuffix(v, "x"), 64); err == nil {
		if f <= 0 {
			return LineHeightSpec{}, fmt.Errorf("行高倍数必须为正数: %q", value)
		}
		return LineHeightSpec{Kind: LineHeightFactor, Factor: f}, nil
	}
	l, err := ParseLength(v)
	if err != nil {
		return LineHeightSpec{}, err
	}
	return LineHeightSpec{Kind: LineHeightAbsolute, Len: l}, nil
}

// ResolveMM computes the absolute line height in mm for the given font size.
// The caller still applies the "never below the font size" floor.
func (s LineHeightSpec) ResolveMM(fontSize Length) float64 {
	switch s.Kind {
	case LineHeightAbsolute:
		return s.Len.ToMM()
	default:
		factor := s.Factor
		if factor <= 0 {
			factor = 1
		}
		return fontSize.ToMM() * factor
	}
}

// pageSizes lists the named page sizes in mm (portrait).
var pageSizes = map[string][2]float64{
	"A3":     {297, 420},
	"A4":     {210, 297},
	"A5":     {148, 210},
	"A6":     {105, 148},
	"LETTER": {215.9, 279.4},
	"LEGAL":  {215.9, 355.6},
}

// ParsePageSize resolves "A4", "Letter" or "120mmx180mm".
func ParsePageSize(value string) (float64, float64, error) {
	key := strings.ToUpper(strings.TrimSpace(value))
	if size, ok := pageSizes[key]; ok {
		return size[0], size[1], nil
	}
	w, h, ok := strings.Cut(strings.ToLower(value), "x")
	if ok {
		lw, errW := ParseLength(w)
		lh, errH := ParseLength(h)
		if errW == nil && errH == nil && lw.ToMM() > 0 && lh.ToMM() > 0 {
			return lw.ToMM(), lh.ToMM(), nil
		}
	}
	return 0, 0, fmt.Errorf("未知页面尺寸 %s", value)
}
