package chart

import (
	"fmt"
	"math"
)

// turbo polynomial coefficients, lowest order first
var turboCoeffs = [3][6]float64{
	{0.13572138, 4.61539260, -42.66032258, 132.13108234, -152.94239396, 59.28637943},
	{0.09140261, 2.19418839, 4.84296658, -14.18503333, 4.27729857, 2.82956604},
	{0.10667330, 12.64194608, -60.58204836, 110.36276771, -89.90310912, 27.34824973},
}

// Turbo returns the i-th of n colors sampled evenly from the turbo colormap
// as "#rrggbb".
func Turbo(i, n int) string {
	var t float64
	if n > 1 {
		t = float64(i) / float64(n-1)
	}
	return TurboAt(t)
}

// TurboAt evaluates the colormap at t in [0, 1]
func TurboAt(t float64) string {
	t = math.Max(0, math.Min(1, t))

	var rgb [3]uint8
	for ch, c := range turboCoeffs {
		v := c[5]
		for k := 4; k >= 0; k-- {
			v = v*t + c[k]
		}
		rgb[ch] = uint8(math.Round(255 * math.Max(0, math.Min(1, v))))
	}
	return fmt.Sprintf("#%02x%02x%02x", rgb[0], rgb[1], rgb[2])
}
