package domain

// RoutePalette holds the colours used to tell a driver's routes apart.
var RoutePalette = [...]string{
	"#BF4040", "#BF4A40", "#BF5540", "#BF6040", "#BF6A40", "#BF7540", "#BF8040", "#BF8A40", "#BF9540", "#BF9F40",
	"#BFAA40", "#BFB540", "#BFBF40", "#B5BF40", "#AABF40", "#9FBF40", "#95BF40", "#8ABF40", "#7FBF40", "#75BF40",
	"#6ABF40", "#60BF40", "#55BF40", "#4ABF40", "#40BF40", "#3FBE4A", "#40BF55", "#40BF60", "#40BF6A", "#40BF75",
	"#40BF7F", "#40BF8A", "#40BF95", "#40BF9F", "#40BFAA", "#40BFB5", "#40BFBF", "#40B5BF", "#40AABF", "#409FBF",
	"#4095BF", "#408ABF", "#4080BF", "#4075BF", "#406ABF", "#4060BF", "#4055BF", "#404ABF", "#4040BF", "#4A40BF",
	"#5540BF", "#6040BF", "#6A40BF", "#7540BF", "#8040BF", "#8A40BF", "#9540BF", "#9F40BF", "#AA40BF", "#B540BF",
	"#BF40BF", "#BF40B5", "#BF40AA", "#BF409F", "#BF4095", "#BF408A", "#BF407F", "#BF4075", "#BF406A", "#BF4060",
	"#BF4055", "#BF404A",
}

// ColorPicker hands out palette colours for the routes of one result.
// Colours it already returned are never returned again while free ones
// remain, so routes of the same optimisation never share a colour.
type ColorPicker struct {
	picked map[string]int
}

func NewColorPicker() *ColorPicker {
	return &ColorPicker{picked: make(map[string]int)}
}

// Pick returns the lowest-index palette colour that is neither in used nor
// already picked. When the palette is exhausted it returns the colour with
// the fewest uses, lowest index first.
func (p *ColorPicker) Pick(used []string) string {
	counts := make(map[string]int, len(used)+len(p.picked))
	for _, c := range used {
		counts[c]++
	}
	for c, n := range p.picked {
		counts[c] += n
	}

	best, bestCount := "", -1
	for _, c := range RoutePalette {
		n := counts[c]
		if n == 0 {
			best = c
			break
		}
		if bestCount < 0 || n < bestCount {
			best, bestCount = c, n
		}
	}

	p.picked[best]++
	return best
}
