// Copyright 2026 The Sanitor Authors and Contributors
// SPDX-License-Identifier: Apache-2.0

package errors

import "net/http"

const (
	DomainConfig     Domain = "CONFIG"
	DomainCommand    Domain = "CMD"
	DomainProbe      Domain = "PROBE"
	DomainHidden     Domain = "HIDDEN"
	DomainPattern    Domain = "PATTERN"
	DomainExecutor   Domain = "EXECUTOR"
	DomainHardware   Domain = "HARDWARE"
	DomainPlanner    Domain = "PLANNER"
	DomainVerify     Domain = "VERIFY"
	DomainController Domain = "CONTROLLER"
	DomainCertify    Domain = "CERTIFY"
	DomainRegistry   Domain = "REGISTRY"
)

// ErrorCode represents a unique error identifier.
type ErrorCode int

// Domain represents the subsystem where the error originated.
type Domain string

// SanitorError is the engine-wide error type. Every exported operation
// returns one of these (or wraps one), so callers get a stable code
// and domain instead of matching on message strings.
type SanitorError struct {
	Code       ErrorCode `json:"code"`
	Domain     Domain    `json:"domain"`
	Message    string    `json:"message"`
	Details    string    `json:"details,omitempty"`
	HTTPStatus int       `json:"-"`

	// Metadata carries structured context (lba, device path, command
	// output) useful for logging and API responses without bloating
	// Error()'s plain-text message.
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Error code ranges:
// 1000-1099: Configuration
// 1100-1199: Command execution
// 1200-1299: Device probe
// 1300-1399: Hidden-region manager (HPA/DCO)
// 1400-1499: Pattern source
// 1500-1599: Pass executor
// 1600-1699: Hardware sanitize driver
// 1700-1799: Planner
// 1800-1899: Verifier
// 1900-1999: Operation controller
// 2000-2099: Certificate authority
// 2100-2199: Operation registry

const (
	ConfigNotFound = 1000 + iota
	ConfigInvalid
	ConfigLoadFailed
	ConfigWriteFailed
	ConfigValidationFailed
)

const (
	CommandInvalidInput = 1100 + iota
	CommandNotFound
	CommandExecution
	CommandTimeout
)

func init() {
	register(map[ErrorCode]definition{
		ConfigNotFound:         {"configuration file not found", DomainConfig, http.StatusNotFound},
		ConfigInvalid:          {"invalid configuration", DomainConfig, http.StatusBadRequest},
		ConfigLoadFailed:       {"failed to load configuration", DomainConfig, http.StatusInternalServerError},
		ConfigWriteFailed:      {"failed to write configuration", DomainConfig, http.StatusInternalServerError},
		ConfigValidationFailed: {"configuration validation failed", DomainConfig, http.StatusBadRequest},

		CommandInvalidInput: {"invalid command input", DomainCommand, http.StatusBadRequest},
		CommandNotFound:     {"required tool not found", DomainCommand, http.StatusFailedDependency},
		CommandExecution:    {"command execution failed", DomainCommand, http.StatusInternalServerError},
		CommandTimeout:      {"command timed out", DomainCommand, http.StatusGatewayTimeout},
	})
}
