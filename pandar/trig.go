package pandar

import "math"

// TrigTable caches sine and cosine for every discrete azimuth unit so the
// per-measurement hot path avoids transcendental calls when a channel has no
// azimuth trim. Built once at setup; immutable and safe for concurrent reads.
type TrigTable struct {
	sin []float64
	cos []float64
}

// NewTrigTable precomputes the lookup for the given angular resolution in
// degrees per azimuth unit (0.01 for the Pandar40, giving 36000 entries).
func NewTrigTable(resolution float64) *TrigTable {
	n := int(360.0 / resolution)
	t := &TrigTable{
		sin: make([]float64, n),
		cos: make([]float64, n),
	}
	for i := 0; i < n; i++ {
		rad := float64(i) * resolution * math.Pi / 180.0
		t.sin[i] = math.Sin(rad)
		t.cos[i] = math.Cos(rad)
	}
	return t
}

// Sin returns the cached sine for an azimuth unit. Units wrap modulo one
// rotation so a corrupt azimuth cannot index out of range.
func (t *TrigTable) Sin(azimuth int) float64 {
	return t.sin[azimuth%len(t.sin)]
}

// Cos returns the cached cosine for an azimuth unit.
func (t *TrigTable) Cos(azimuth int) float64 {
	return t.cos[azimuth%len(t.cos)]
}

// Size returns the number of azimuth units in one rotation.
func (t *TrigTable) Size() int {
	return len(t.sin)
}
