// Copyright 2026 The Sanitor Authors and Contributors
// SPDX-License-Identifier: Apache-2.0

package errors

import "net/http"

// Device Probe (1200-1299)
const (
	ProbeDeviceNotFound = 1200 + iota
	ProbePermissionDenied
	ProbeIdentifyFailed
	ProbeParseFailed
	ProbeEnumerationFailed
)

// Hidden-Region Manager (1300-1399)
const (
	HiddenDetectFailed = 1300 + iota
	HiddenRemovalFailed
	HiddenRemovalIncomplete
	HiddenSecurityFrozen
)

// Pattern Source (1400-1499)
const (
	PatternInvalidStep = 1400 + iota
	PatternEntropyUnavailable
	PatternBufferTooSmall
)

// Pass Executor (1500-1599)
const (
	ExecutorWriteError = 1500 + iota
	ExecutorReadError
	ExecutorOutOfRange
	ExecutorFlushFailed
	ExecutorConcurrentPass
	ExecutorCancelled
)

// Hardware Sanitize Driver (1600-1699)
const (
	HardwareUnsupported = 1600 + iota
	HardwareSecurityFrozen
	HardwareCommandFailed
	HardwareTimedOut
	HardwareSimulationDisallowed
)

// Planner (1700-1799)
const (
	PlannerNoPurgeMethod = 1700 + iota
	PlannerSystemDeviceProtected
	PlannerInvalidLevel
	PlannerEmptyPlan
)

// Verifier (1800-1899)
const (
	VerifyReadFailed = 1800 + iota
	VerifySampleRangeInvalid
	VerifyFailed
)

// Operation Controller (1900-1999)
const (
	ControllerJobNotFound = 1900 + iota
	ControllerInvalidTransition
	ControllerAlreadyTerminal
	ControllerSystemDeviceProtected
	ControllerCancelled
	ControllerInternalError
)

// Certificate Authority (2000-2099)
const (
	CertifyKeyGenerationFailed = 2000 + iota
	CertifyKeyLoadFailed
	CertifyKeyCorrupted
	CertifySignFailed
	CertifyInvalidCertificate
	CertifyCounterPersistFailed
)

// Operation Registry (2100-2199)
const (
	RegistryJobNotFound = 2100 + iota
	RegistryDuplicateJob
	RegistryTerminalStateMutation
)

func init() {
	register(map[ErrorCode]definition{
		ProbeDeviceNotFound:    {"device not found", DomainProbe, http.StatusNotFound},
		ProbePermissionDenied:  {"permission denied opening device", DomainProbe, http.StatusForbidden},
		ProbeIdentifyFailed:    {"failed to read device identity", DomainProbe, http.StatusInternalServerError},
		ProbeParseFailed:       {"failed to parse device identity data", DomainProbe, http.StatusInternalServerError},
		ProbeEnumerationFailed: {"failed to enumerate block devices", DomainProbe, http.StatusInternalServerError},

		HiddenDetectFailed:      {"failed to detect hidden region", DomainHidden, http.StatusInternalServerError},
		HiddenRemovalFailed:     {"failed to remove host protected area", DomainHidden, http.StatusInternalServerError},
		HiddenRemovalIncomplete: {"host protected area removal did not take effect", DomainHidden, http.StatusConflict},
		HiddenSecurityFrozen:    {"ATA security is frozen; power-cycle required", DomainHidden, http.StatusConflict},

		PatternInvalidStep:       {"invalid pattern step", DomainPattern, http.StatusBadRequest},
		PatternEntropyUnavailable: {"OS entropy source unavailable", DomainPattern, http.StatusInternalServerError},
		PatternBufferTooSmall:    {"requested buffer smaller than one sector", DomainPattern, http.StatusBadRequest},

		ExecutorWriteError:     {"persistent write error", DomainExecutor, http.StatusInternalServerError},
		ExecutorReadError:      {"persistent read error", DomainExecutor, http.StatusInternalServerError},
		ExecutorOutOfRange:     {"seek past end of device", DomainExecutor, http.StatusBadRequest},
		ExecutorFlushFailed:    {"failed to flush device write buffer", DomainExecutor, http.StatusInternalServerError},
		ExecutorConcurrentPass: {"concurrent pass on the same device", DomainExecutor, http.StatusConflict},
		ExecutorCancelled:      {"pass cancelled", DomainExecutor, http.StatusOK},

		HardwareUnsupported:          {"hardware sanitize primitive unsupported", DomainHardware, http.StatusNotImplemented},
		HardwareSecurityFrozen:       {"ATA security is frozen; power-cycle required", DomainHardware, http.StatusConflict},
		HardwareCommandFailed:        {"device rejected pass-through command", DomainHardware, http.StatusBadGateway},
		HardwareTimedOut:             {"hardware sanitize exceeded deadline", DomainHardware, http.StatusGatewayTimeout},
		HardwareSimulationDisallowed: {"real device access requested without allow_real_devices", DomainHardware, http.StatusForbidden},

		PlannerNoPurgeMethod:         {"device supports no Purge-grade primitive", DomainPlanner, http.StatusUnprocessableEntity},
		PlannerSystemDeviceProtected: {"refusing to plan against the system device", DomainPlanner, http.StatusForbidden},
		PlannerInvalidLevel:          {"unrecognized compliance level", DomainPlanner, http.StatusBadRequest},
		PlannerEmptyPlan:             {"planner produced an empty plan", DomainPlanner, http.StatusInternalServerError},

		VerifyReadFailed:         {"verifier sample read failed", DomainVerify, http.StatusInternalServerError},
		VerifySampleRangeInvalid: {"verifier sample range invalid", DomainVerify, http.StatusBadRequest},
		VerifyFailed:             {"verification sampling found inconsistent data", DomainVerify, http.StatusOK},

		ControllerJobNotFound:          {"job not found", DomainController, http.StatusNotFound},
		ControllerInvalidTransition:    {"invalid job state transition", DomainController, http.StatusConflict},
		ControllerAlreadyTerminal:      {"job already in a terminal state", DomainController, http.StatusConflict},
		ControllerSystemDeviceProtected: {"refusing to operate on the system device", DomainController, http.StatusForbidden},
		ControllerCancelled:            {"job cancelled by operator", DomainController, http.StatusOK},
		ControllerInternalError:        {"internal invariant violated", DomainController, http.StatusInternalServerError},

		CertifyKeyGenerationFailed:  {"failed to generate issuer keypair", DomainCertify, http.StatusInternalServerError},
		CertifyKeyLoadFailed:        {"failed to load issuer key material", DomainCertify, http.StatusInternalServerError},
		CertifyKeyCorrupted:         {"issuer key material failed integrity check", DomainCertify, http.StatusInternalServerError},
		CertifySignFailed:           {"failed to sign certificate", DomainCertify, http.StatusInternalServerError},
		CertifyInvalidCertificate:   {"certificate hash or signature invalid", DomainCertify, http.StatusUnprocessableEntity},
		CertifyCounterPersistFailed: {"failed to persist issuer counter", DomainCertify, http.StatusInternalServerError},

		RegistryJobNotFound:          {"job not found in registry", DomainRegistry, http.StatusNotFound},
		RegistryDuplicateJob:         {"job id already registered", DomainRegistry, http.StatusConflict},
		RegistryTerminalStateMutation: {"attempted to mutate a terminal job record", DomainRegistry, http.StatusConflict},
	})
}
