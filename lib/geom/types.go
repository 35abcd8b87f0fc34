package geom

import (
	"fmt"
	"math"
	"strings"

	"github.com/pkg/errors"
)

// Variant enumerates the supported capacitor plate shapes.
type Variant int

const (
	InterleavedFinger Variant = iota
	AlternatingFinger
	SandwichNotched
	SandwichMultilayer
)

var variantNames = [...]string{
	InterleavedFinger:  "interleaved-finger",
	AlternatingFinger:  "alternating-finger",
	SandwichNotched:    "sandwich-notched",
	SandwichMultilayer: "sandwich-multilayer",
}

func (v Variant) String() string {
	if v < 0 || int(v) >= len(variantNames) {
		return fmt.Sprintf("variant(%d)", int(v))
	}
	return variantNames[v]
}

// Finger reports whether the variant is built from interdigitated fingers.
func (v Variant) Finger() bool {
	return v == InterleavedFinger || v == AlternatingFinger
}

// Variants lists every variant in declaration order.
func Variants() []Variant {
	return []Variant{InterleavedFinger, AlternatingFinger, SandwichNotched, SandwichMultilayer}
}

// ParseVariant accepts the canonical name of a variant, case-insensitively.
func ParseVariant(s string) (Variant, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for v, n := range variantNames {
		if n == name {
			return Variant(v), nil
		}
	}
	return 0, errors.Wrapf(ErrUnknownVariant, "%q", s)
}

func (v Variant) MarshalText() ([]byte, error) {
	return []byte(v.String()), nil
}

func (v *Variant) UnmarshalText(text []byte) error {
	parsed, err := ParseVariant(string(text))
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

// Net names used by resolved unit cells.
const (
	NetPlus   = "PLUS"
	NetGround = "GND"
	NetShield = "SHIELD"
)

// Point is a coordinate in micrometres.
type Point struct {
	X, Y float64
}

func (p Point) Add(q Point) Point {
	return Point{p.X + q.X, p.Y + q.Y}
}

// Rect is an axis-aligned box with X0 <= X1 and Y0 <= Y1.
type Rect struct {
	X0, Y0, X1, Y1 float64
}

func R(x0, y0, x1, y1 float64) Rect {
	return Rect{
		X0: math.Min(x0, x1),
		Y0: math.Min(y0, y1),
		X1: math.Max(x0, x1),
		Y1: math.Max(y0, y1),
	}
}

func (r Rect) W() float64 { return r.X1 - r.X0 }
func (r Rect) H() float64 { return r.Y1 - r.Y0 }
func (r Rect) Area() float64 { return r.W() * r.H() }
func (r Rect) Center() Point { return Point{(r.X0 + r.X1) / 2, (r.Y0 + r.Y1) / 2} }
func (r Rect) MinSide() float64 { return math.Min(r.W(), r.H()) }

func (r Rect) Translate(d Point) Rect {
	return Rect{r.X0 + d.X, r.Y0 + d.Y, r.X1 + d.X, r.Y1 + d.Y}
}

// Overlaps reports whether the interiors of r and o intersect.
func (r Rect) Overlaps(o Rect) bool {
	return r.X0 < o.X1 && o.X0 < r.X1 && r.Y0 < o.Y1 && o.Y0 < r.Y1
}

// Touches reports whether r and o share at least a boundary point.
func (r Rect) Touches(o Rect) bool {
	return r.X0 <= o.X1 && o.X0 <= r.X1 && r.Y0 <= o.Y1 && o.Y0 <= r.Y1
}

// Contains reports whether o lies inside r, with tolerance eps.
func (r Rect) Contains(o Rect, eps float64) bool {
	return o.X0 >= r.X0-eps && o.Y0 >= r.Y0-eps && o.X1 <= r.X1+eps && o.Y1 <= r.Y1+eps
}

// Distance is the edge-to-edge gap between r and o, zero when they touch.
func (r Rect) Distance(o Rect) float64 {
	dx := math.Max(0, math.Max(o.X0-r.X1, r.X0-o.X1))
	dy := math.Max(0, math.Max(o.Y0-r.Y1, r.Y0-o.Y1))
	return math.Hypot(dx, dy)
}

// Role classifies a metal element.
type Role string

const (
	RoleFinger Role = "finger"
	RoleBar    Role = "bar"
	RolePlate  Role = "plate"
	RoleTab    Role = "tab"
	RolePad    Role = "pad"
	RoleShield Role = "shield"
	RoleRoute  Role = "route"
)

// Element is one resolved metal shape. Fingers carry a centre line and a
// width; every other role is a plain rectangle.
type Element struct {
	Role  Role
	Layer string
	Net   string
	Index int
	Rect  Rect
	Path  []Point
	Width float64
}

// IsPath reports whether the element is drawn as a path.
func (e Element) IsPath() bool {
	return len(e.Path) > 1
}

// ViaArray is a rows×cols block of cuts between two adjacent layers.
type ViaArray struct {
	Pair   string
	Lower  string
	Upper  string
	Net    string
	Center Point
	Rows   int
	Cols   int
}

// Extent is the bounding box of the cuts themselves.
func (v ViaArray) Extent(r Rules) Rect {
	w := float64(v.Cols-1)*r.ViaPitch() + r.ViaSize
	h := float64(v.Rows-1)*r.ViaPitch() + r.ViaSize
	return R(v.Center.X-w/2, v.Center.Y-h/2, v.Center.X+w/2, v.Center.Y+h/2)
}

// Pin is a terminal location on the top layer.
type Pin struct {
	Name  string
	Layer string
	At    Point
}

// Bound is one named boundary coordinate.
type Bound struct {
	Name  string
	Value float64
}

// Chain is a sequence of boundaries along one axis that must strictly
// decrease towards the centre. The final bound is always the centre.
type Chain struct {
	Axis   string
	Bounds []Bound
}
