package reliability

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBurstPressure_Barlow(t *testing.T) {
	// No length: Barlow on the remaining ligament.
	// 2 * (359+68.95) * (10-5) / 500 = 4.2795 MPa
	p := burstPressureMPa(5, 10, 500, 0, 359)
	assert.InDelta(t, 4.2795, p, 1e-4)
}

func TestBurstPressure_ModifiedB31G(t *testing.T) {
	// z = 100^2/(500*10) = 2, Folias = sqrt(1+1.255-0.0135)
	p := burstPressureMPa(5, 10, 500, 100, 359)
	assert.InDelta(t, 13.744, p, 1e-2)
}

func TestBurstPressure_FullPenetration(t *testing.T) {
	assert.Equal(t, 0.0, burstPressureMPa(10, 10, 500, 100, 359))
	assert.Equal(t, 0.0, burstPressureMPa(12, 10, 500, 0, 359))
}

func TestBurstPressure_MonotoneInDepth(t *testing.T) {
	prev := burstPressureMPa(0, 10, 500, 150, 359)
	for d := 0.5; d <= 10; d += 0.5 {
		p := burstPressureMPa(d, 10, 500, 150, 359)
		assert.LessOrEqual(t, p, prev, "capacity must not increase with depth (d=%v)", d)
		prev = p
	}
}

func TestBurstPressure_LongDefectFoliasBranch(t *testing.T) {
	// z = 600^2/(500*10) = 72 > 50 exercises the long-defect Folias form.
	long := burstPressureMPa(5, 10, 500, 600, 359)
	short := burstPressureMPa(5, 10, 500, 100, 359)
	assert.Greater(t, short, long)
	assert.Greater(t, long, 0.0)
}
