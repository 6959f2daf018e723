package controller

import (
	"slices"
)

// quantile is a P-Square streaming estimator of a single quantile, after
// Jain and Chlamtac (1985). It keeps five markers instead of the
// observations. NOT safe for concurrent use.
type quantile struct {
	p       float64
	heights [5]float64
	pos     [5]int
	want    [5]float64
	step    [5]float64
	count   int
}

func newQuantile(p float64) *quantile {
	p = min(max(p, 0), 1)
	return &quantile{
		p:    p,
		step: [5]float64{0, p / 2, p, (1 + p) / 2, 1},
	}
}

func (x *quantile) observe(v float64) {
	x.count++
	if x.count <= 5 {
		x.heights[x.count-1] = v
		if x.count == 5 {
			slices.Sort(x.heights[:])
			x.pos = [5]int{0, 1, 2, 3, 4}
			x.want = [5]float64{0, 2 * x.p, 4 * x.p, 2 + 2*x.p, 4}
		}
		return
	}

	var k int
	switch {
	case v < x.heights[0]:
		x.heights[0] = v
	case v >= x.heights[4]:
		x.heights[4] = v
		k = 3
	default:
		for k = 0; k < 3 && v >= x.heights[k+1]; k++ {
		}
	}
	for i := k + 1; i < 5; i++ {
		x.pos[i]++
	}
	for i := range x.want {
		x.want[i] += x.step[i]
	}

	for i := 1; i < 4; i++ {
		d := x.want[i] - float64(x.pos[i])
		if !(d >= 1 && x.pos[i+1]-x.pos[i] > 1) && !(d <= -1 && x.pos[i-1]-x.pos[i] < -1) {
			continue
		}
		sign := 1
		if d < 0 {
			sign = -1
		}
		if h := x.parabolic(i, sign); x.heights[i-1] < h && h < x.heights[i+1] {
			x.heights[i] = h
		} else {
			x.heights[i] = x.linear(i, sign)
		}
		x.pos[i] += sign
	}
}

func (x *quantile) parabolic(i, sign int) float64 {
	d := float64(sign)
	n, prev, next := float64(x.pos[i]), float64(x.pos[i-1]), float64(x.pos[i+1])
	return x.heights[i] + d/(next-prev)*
		((n-prev+d)*(x.heights[i+1]-x.heights[i])/(next-n)+
			(next-n-d)*(x.heights[i]-x.heights[i-1])/(n-prev))
}

func (x *quantile) linear(i, sign int) float64 {
	j := i + sign
	return x.heights[i] + float64(sign)*(x.heights[j]-x.heights[i])/float64(x.pos[j]-x.pos[i])
}

func (x *quantile) value() float64 {
	switch {
	case x.count == 0:
		return 0
	case x.count < 5:
		sorted := slices.Clone(x.heights[:x.count])
		slices.Sort(sorted)
		return sorted[int(float64(x.count-1)*x.p)]
	default:
		return x.heights[2]
	}
}
