package draw

import (
	"fmt"

	"github.com/xoviat/capsynth/lib/geom"
)

// Flatten expands instances into the metal and via primitives of their
// masters, translated to each placed copy. Nets of the master become local
// to the copy unless listed in global; unnamed nets stay unnamed. Labels of
// masters are not copied. Primitives that are not instances pass through.
func Flatten(prims []Primitive, masters map[string][]Primitive, global map[string]bool) []Primitive {
	var out []Primitive
	for k, p := range prims {
		if p.Kind != KindInstance {
			out = append(out, p)
			continue
		}

		master := masters[p.Master]
		for i := 0; i < p.Rows; i++ {
			for j := 0; j < p.Cols; j++ {
				d := geom.Point{X: p.Center.X + float64(j)*p.PitchX, Y: p.Center.Y + float64(i)*p.PitchY}
				for _, m := range master {
					if m.Kind == KindLabel || m.Kind == KindInstance {
						continue
					}
					out = append(out, translate(m, d, localNet(m.Net, global, k, i, j)))
				}
			}
		}
	}
	return out
}

func localNet(net string, global map[string]bool, inst, i, j int) string {
	if net == "" || global[net] {
		return net
	}
	return fmt.Sprintf("%s[%d:%d,%d]", net, inst, i, j)
}

func translate(p Primitive, d geom.Point, net string) Primitive {
	p.Net = net
	p.Box = p.Box.Translate(d)
	p.Center = p.Center.Add(d)
	if p.Points != nil {
		pts := make([]geom.Point, len(p.Points))
		for i, pt := range p.Points {
			pts[i] = pt.Add(d)
		}
		p.Points = pts
	}
	return p
}
