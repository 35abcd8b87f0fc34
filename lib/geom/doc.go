// Package geom resolves parametric capacitor unit cells into fully
// derived geometry.
//
// Every shape variant is a Shape strategy selected once at configuration
// time. Resolution runs in a fixed order: outer envelope inputs, frame,
// active region, per-element centres, via placement and finally pins.
// Values keep full precision here; rounding to the emission grid happens
// in package draw.
//
// After resolution the boundary ordering chains of the variant are
// checked. A chain that does not strictly decrease towards the cell
// centre is reported as a *ParameterViolation; geometry is never clamped
// or repaired.
//
// Dummy derives the electrically floating twin of a resolved cell from
// whitelisted derived quantities only.
package geom
