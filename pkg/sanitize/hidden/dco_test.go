// Copyright 2026 The Sanitor Authors and Contributors
// SPDX-License-Identifier: Apache-2.0

package hidden

import "testing"

func TestSuspectDCO(t *testing.T) {
	cases := []struct {
		name     string
		bytes    int64
		expected bool
	}{
		{"exact marketing size", 1000 * 1000 * 1000 * 1000, false},
		{"slightly under, within tolerance", 990 * 1000 * 1000 * 1000, false},
		{"far under nearest common size", 900 * 1000 * 1000 * 1000, true},
		{"over nearest size", 1100 * 1000 * 1000 * 1000, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := suspectDCO(tc.bytes)
			if got != tc.expected {
				t.Errorf("suspectDCO(%d) = %v, want %v", tc.bytes, got, tc.expected)
			}
		})
	}
}
