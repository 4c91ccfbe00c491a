// Copyright 2026 The Sanitor Authors and Contributors
// SPDX-License-Identifier: Apache-2.0

package types

// StepKind tags a PatternStep's variant.
type StepKind string

const (
	StepFixed       StepKind = "FIXED"
	StepAlternating StepKind = "ALTERNATING"
	StepRandom      StepKind = "RANDOM"
)

// PatternStep is one pass within a PatternProgram. Exactly the fields
// relevant to Kind are populated; ByteA/ByteB are zero for StepRandom.
type PatternStep struct {
	Kind  StepKind `json:"kind"`
	ByteA byte     `json:"byte_a,omitempty"`
	ByteB byte     `json:"byte_b,omitempty"`
}

// Fixed constructs a StepFixed step writing b throughout.
func Fixed(b byte) PatternStep { return PatternStep{Kind: StepFixed, ByteA: b} }

// Alternating constructs a StepAlternating step alternating a and b byte by byte.
func Alternating(a, b byte) PatternStep {
	return PatternStep{Kind: StepAlternating, ByteA: a, ByteB: b}
}

// Random constructs a StepRandom step.
func Random() PatternStep { return PatternStep{Kind: StepRandom} }

// PatternProgram is an ordered, non-empty sequence of PatternStep.
type PatternProgram struct {
	Name  string        `json:"name"`
	Steps []PatternStep `json:"steps"`
}

// Canonical pattern programs named in spec.md section 3.
var (
	ProgramZeros = PatternProgram{Name: "Zeros", Steps: []PatternStep{Fixed(0x00)}}
	ProgramOnes  = PatternProgram{Name: "Ones", Steps: []PatternStep{Fixed(0xFF)}}
	ProgramRandom = PatternProgram{Name: "Random", Steps: []PatternStep{Random()}}
	ProgramDoD3 = PatternProgram{
		Name:  "DoD3",
		Steps: []PatternStep{Fixed(0x00), Fixed(0xFF), Random()},
	}
	// ProgramDoD7 is the supplemented 7-pass DoD 5220.22-M variant
	// pulled in from the original implementation's sanitization
	// module; not auto-selected by the Planner's default table, only
	// constructible via an explicit pattern override.
	ProgramDoD7 = PatternProgram{
		Name: "DoD7",
		Steps: []PatternStep{
			Fixed(0x00), Fixed(0xFF), Random(),
			Fixed(0x00), Fixed(0xFF), Random(), Random(),
		},
	}
	// ProgramGutmann35 is the implementation-defined 35-step Gutmann
	// sequence named in spec.md section 3: 4 random passes, 27 fixed
	// and alternating passes covering the documented byte patterns,
	// then 4 more random passes.
	ProgramGutmann35 = buildGutmann35()
)

func buildGutmann35() PatternProgram {
	steps := make([]PatternStep, 0, 35)
	for i := 0; i < 4; i++ {
		steps = append(steps, Random())
	}
	fixedAndAlternating := []PatternStep{
		Fixed(0x55), Fixed(0xAA),
		Alternating(0x92, 0x49), Alternating(0x49, 0x24), Alternating(0x24, 0x92),
		Fixed(0x00), Fixed(0x11), Fixed(0x22), Fixed(0x33), Fixed(0x44),
		Fixed(0x55), Fixed(0x66), Fixed(0x77), Fixed(0x88), Fixed(0x99),
		Fixed(0xAA), Fixed(0xBB), Fixed(0xCC), Fixed(0xDD), Fixed(0xEE), Fixed(0xFF),
		Alternating(0x92, 0x49), Alternating(0x49, 0x24), Alternating(0x24, 0x92),
		Fixed(0x6D), Fixed(0xB6), Fixed(0xDB),
	}
	steps = append(steps, fixedAndAlternating...)
	for i := 0; i < 4; i++ {
		steps = append(steps, Random())
	}
	return PatternProgram{Name: "Gutmann35", Steps: steps}
}

// MethodKind tags a Method's variant.
type MethodKind string

const (
	MethodSoftwareOverwrite        MethodKind = "SOFTWARE_OVERWRITE"
	MethodAtaSecureErase           MethodKind = "ATA_SECURE_ERASE"
	MethodNvmeSanitize             MethodKind = "NVME_SANITIZE"
	MethodCryptoErase              MethodKind = "CRYPTO_ERASE"
	MethodPhysicalDestructionGuidance MethodKind = "PHYSICAL_DESTRUCTION_GUIDANCE"
	// MethodRemoveHPA is the planner's HPA-removal prefix step (spec.md
	// section 4.6): not one of the four destructive Method variants
	// spec.md section 3 enumerates, but needed so the Plan can carry it
	// as an ordinary step the Controller dispatches like any other.
	MethodRemoveHPA MethodKind = "REMOVE_HPA"
)

// Method is a tagged union over every sanitization action the planner
// can select. Only the fields relevant to Kind are meaningful.
type Method struct {
	Kind MethodKind `json:"kind"`

	// SoftwareOverwrite
	PatternProgram PatternProgram `json:"pattern_program,omitempty"`

	// AtaSecureErase
	Enhanced bool `json:"enhanced,omitempty"`

	// NvmeSanitize
	NvmeMode NvmeSanitizeMode `json:"nvme_mode,omitempty"`
}

func (m Method) String() string {
	switch m.Kind {
	case MethodSoftwareOverwrite:
		return "SoftwareOverwrite(" + m.PatternProgram.Name + ")"
	case MethodAtaSecureErase:
		if m.Enhanced {
			return "AtaSecureErase(enhanced=true)"
		}
		return "AtaSecureErase(enhanced=false)"
	case MethodNvmeSanitize:
		return "NvmeSanitize(" + string(m.NvmeMode) + ")"
	case MethodCryptoErase:
		return "CryptoErase"
	case MethodPhysicalDestructionGuidance:
		return "PhysicalDestructionGuidance"
	case MethodRemoveHPA:
		return "RemoveHpa"
	default:
		return "Unknown"
	}
}
