package reliability

import "math"

// Flow stress per Modified B31G: SMYS + 10 ksi.
const flowStressOffsetMPa = 68.95

// burstPressureMPa is the structural capacity of a corroded joint: the burst
// pressure of the remaining ligament, in MPa.
//
// With a sized defect length the Modified B31G (0.85 dL effective-area) model
// applies, including the Folias bulging factor. Without a length the formula
// degrades to the Barlow stress form on the remaining wall, which is
// conservative for short defects and needs no axial extent.
func burstPressureMPa(depthMM, wallMM, diameterMM, lengthMM, smysMPa float64) float64 {
	if depthMM >= wallMM {
		return 0 // full wall penetration: no residual capacity
	}
	if depthMM < 0 {
		depthMM = 0
	}

	flow := smysMPa + flowStressOffsetMPa

	if lengthMM <= 0 {
		return 2 * flow * (wallMM - depthMM) / diameterMM
	}

	z := lengthMM * lengthMM / (diameterMM * wallMM)
	var folias float64
	if z <= 50 {
		folias = math.Sqrt(1 + 0.6275*z - 0.003375*z*z)
	} else {
		folias = 0.032*z + 3.3
	}

	dt := depthMM / wallMM
	intact := 2 * flow * wallMM / diameterMM
	return intact * (1 - 0.85*dt) / (1 - 0.85*dt/folias)
}
