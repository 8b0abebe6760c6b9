package growth

// ProjectDepth extrapolates a defect's depth from the inspection date to a
// whole-year offset k using its linear corrosion rate:
//
//	depth(k) = min(depth0 + rate*k, wallThickness)
//
// Growth is clamped at full wall penetration; it is never extrapolated past
// the wall, and negative offsets are treated as year 0.
func ProjectDepth(depth0, ratePerYear, wallThicknessMM float64, year int) float64 {
	if year < 0 {
		year = 0
	}
	d := depth0 + ratePerYear*float64(year)
	if d > wallThicknessMM {
		return wallThicknessMM
	}
	return d
}

// Curve returns the projected depth for every year offset 0..years inclusive.
func Curve(depth0, ratePerYear, wallThicknessMM float64, years int) []float64 {
	out := make([]float64, years+1)
	for k := 0; k <= years; k++ {
		out[k] = ProjectDepth(depth0, ratePerYear, wallThicknessMM, k)
	}
	return out
}
