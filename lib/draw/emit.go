package draw

import (
	"sort"

	"github.com/xoviat/capsynth/lib/geom"
)

// Emit converts resolved geometry into its ordered primitive list: metal
// shapes layer by layer from the bottom of the stack, then vias from the
// lowest layer pair up, then terminal labels on the top layer.
func Emit(g *geom.Geometry) []Primitive {
	prims := make([]Primitive, 0, len(g.Elements)+len(g.Vias)+len(g.Pins))
	for _, e := range g.Elements {
		if e.IsPath() {
			prims = append(prims, Path(e.Layer, e.Path, e.Width, e.Net, e.Role))
		} else {
			prims = append(prims, Rectangle(e.Layer, e.Rect, e.Net, e.Role))
		}
	}

	for _, v := range g.Vias {
		prims = append(prims, Via(v))
	}

	top := g.TopLayer()
	for _, p := range g.Pins {
		prims = append(prims, Label(top, p.At, p.Name))
	}

	return Order(prims, g.Layers)
}

// Order sorts primitives into emission order and rounds their coordinates.
// Instances keep their relative order and come first, followed by metal by
// layer, vias by lower layer and labels. layers is the stack, bottom first;
// labels on any other than its last layer are dropped.
func Order(prims []Primitive, layers []string) []Primitive {
	rank := make(map[string]int, len(layers))
	for i, l := range layers {
		rank[l] = i
	}
	top := ""
	if len(layers) > 0 {
		top = layers[len(layers)-1]
	}

	class := func(k Kind) int {
		switch k {
		case KindInstance:
			return 0
		case KindRect, KindPath:
			return 1
		case KindVia:
			return 2
		}
		return 3
	}
	layerOf := func(p Primitive) int {
		switch p.Kind {
		case KindVia:
			return rank[p.Lower]
		case KindRect, KindPath:
			return rank[p.Layer]
		}
		return 0
	}

	out := make([]Primitive, 0, len(prims))
	for _, p := range prims {
		if p.Kind == KindLabel && p.Layer != top {
			continue
		}
		out = append(out, p.rounded())
	}

	sort.SliceStable(out, func(i, j int) bool {
		ci, cj := class(out[i].Kind), class(out[j].Kind)
		if ci != cj {
			return ci < cj
		}
		return layerOf(out[i]) < layerOf(out[j])
	})
	return out
}
