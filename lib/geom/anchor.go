package geom

import (
	"math"

	"github.com/xoviat/capsynth/lib"
)

const eps = 1e-9

// ViaCount is the number of cuts that fit along span with the given pitch
// while keeping margin to both edges. It is zero when span is narrower than
// two margins.
func ViaCount(span, pitch, margin float64) int {
	usable := span - 2*margin
	if usable < -eps || pitch <= 0 {
		return 0
	}
	return int(math.Floor(usable/pitch+eps)) + 1
}

// GridAnchor returns the centre of a run of count cuts anchored at edge:
// the first cut centre sits margin away from edge and the run extends in
// the positive direction. The result is snapped to the manufacturing grid.
// Every via placement goes through here.
func GridAnchor(edge float64, count int, pitch, margin float64) float64 {
	if count < 1 {
		count = 1
	}
	return lib.Snap(edge+margin+float64(count-1)*pitch/2, lib.Grid)
}

// placeVias builds one via array per adjacent layer pair covering region.
func placeVias(v Variant, r Rules, layers []string, net string, region Rect, what string) ([]ViaArray, error) {
	pitch, margin := r.ViaPitch(), r.ViaMargin()
	cols := ViaCount(region.W(), pitch, margin)
	if cols < 1 {
		return nil, violation(v, "X", what+"_width", region.W(), "2*via_margin", 2*margin)
	}
	rows := ViaCount(region.H(), pitch, margin)
	if rows < 1 {
		return nil, violation(v, "Y", what+"_height", region.H(), "2*via_margin", 2*margin)
	}

	center := Point{
		X: GridAnchor(region.X0, cols, pitch, margin),
		Y: GridAnchor(region.Y0, rows, pitch, margin),
	}

	vias := make([]ViaArray, 0, len(layers))
	for k := 0; k+1 < len(layers); k++ {
		vias = append(vias, ViaArray{
			Pair:   r.ViaName(layers[k], layers[k+1]),
			Lower:  layers[k],
			Upper:  layers[k+1],
			Net:    net,
			Center: center,
			Rows:   rows,
			Cols:   cols,
		})
	}
	return vias, nil
}
