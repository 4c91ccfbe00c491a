// Copyright 2026 The Sanitor Authors and Contributors
// SPDX-License-Identifier: Apache-2.0

package hidden

import "github.com/tinkershack/sanitor/pkg/sanitize/types"

// commonMarketingSizesGB are the nearest-round-number drive sizes used
// by the DCO suspicion heuristic, grounded on the original
// implementation's check_suspicious_capacity table.
var commonMarketingSizesGB = []int64{
	80, 120, 160, 250, 320, 500, 750, 1000, 1500, 2000,
	3000, 4000, 6000, 8000, 10000, 12000, 16000,
}

// suspectDCO implements spec.md section 4.2's DCO heuristic: flag
// dco_suspected when reported native capacity deviates from the
// nearest common marketing size by more than DCOToleranceFraction and
// DCOToleranceAbsoluteBytes, and the reported size is smaller than
// that nearest marketing size (a reduction, not an oddly-sized but
// legitimate capacity).
func suspectDCO(nativeCapacityBytes int64) bool {
	const gb = 1000 * 1000 * 1000
	reportedGB := nativeCapacityBytes / gb

	closest := commonMarketingSizesGB[0]
	bestDelta := abs64(reportedGB - closest)
	for _, size := range commonMarketingSizesGB[1:] {
		delta := abs64(reportedGB - size)
		if delta < bestDelta {
			bestDelta = delta
			closest = size
		}
	}

	if reportedGB >= closest {
		return false
	}

	deviationBytes := (closest - reportedGB) * gb
	fractionalDeviation := float64(deviationBytes) / float64(closest*gb)

	return fractionalDeviation > types.DCOToleranceFraction && deviationBytes > types.DCOToleranceAbsoluteBytes
}

func abs64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
