// Copyright 2026 The Sanitor Authors and Contributors
// SPDX-License-Identifier: Apache-2.0

package types

import "time"

// DriveKind classifies the physical storage medium.
type DriveKind string

const (
	KindHDD       DriveKind = "HDD"
	KindSSD       DriveKind = "SSD"
	KindNVMe      DriveKind = "NVME"
	KindRemovable DriveKind = "REMOVABLE"
	KindUnknown   DriveKind = "UNKNOWN"
)

// InterfaceKind classifies the bus/transport a drive is attached over.
type InterfaceKind string

const (
	InterfaceATA     InterfaceKind = "ATA"
	InterfaceNVMe    InterfaceKind = "NVME"
	InterfaceUSB     InterfaceKind = "USB"
	InterfaceSCSI    InterfaceKind = "SCSI"
	InterfaceUnknown InterfaceKind = "UNKNOWN"
)

// Capability is a single hardware sanitize primitive a drive may support.
type Capability string

const (
	CapAtaSecureErase         Capability = "ATA_SECURE_ERASE"
	CapAtaEnhancedSecureErase Capability = "ATA_ENHANCED_SECURE_ERASE"
	CapNvmeSanitizeBlock      Capability = "NVME_SANITIZE_BLOCK"
	CapNvmeSanitizeCrypto     Capability = "NVME_SANITIZE_CRYPTO"
	CapNvmeSanitizeOverwrite  Capability = "NVME_SANITIZE_OVERWRITE"
	CapCryptoErase            Capability = "CRYPTO_ERASE"
)

// ComplianceLevel is the requested NIST SP 800-88 Rev. 1 sanitization category.
type ComplianceLevel string

const (
	LevelClear   ComplianceLevel = "CLEAR"
	LevelPurge   ComplianceLevel = "PURGE"
	LevelDestroy ComplianceLevel = "DESTROY"
)

// JobState is the lifecycle state of one Controller job.
type JobState string

const (
	JobPending    JobState = "PENDING"
	JobPlanning   JobState = "PLANNING"
	JobRunning    JobState = "RUNNING"
	JobVerifying  JobState = "VERIFYING"
	JobCertifying JobState = "CERTIFYING"
	JobCompleted  JobState = "COMPLETED"
	JobFailed     JobState = "FAILED"
	JobAborted    JobState = "ABORTED"
)

// IsTerminal reports whether s is one of the job's terminal states.
func (s JobState) IsTerminal() bool {
	return s == JobCompleted || s == JobFailed || s == JobAborted
}

// NvmeSanitizeMode selects which NVMe SANITIZE action to issue.
type NvmeSanitizeMode string

const (
	NvmeSanitizeModeBlock     NvmeSanitizeMode = "BLOCK"
	NvmeSanitizeModeCrypto    NvmeSanitizeMode = "CRYPTO"
	NvmeSanitizeModeOverwrite NvmeSanitizeMode = "OVERWRITE"
)

// VerifyMethod records which decision rule the verifier applied.
type VerifyMethod string

const (
	VerifyMethodFixed       VerifyMethod = "FIXED"
	VerifyMethodRandom      VerifyMethod = "RANDOM"
	VerifyMethodAlternating VerifyMethod = "ALTERNATING"
	VerifyMethodSelfVerify  VerifyMethod = "SELF_VERIFYING"
)

// ErrorKind is the stable taxonomy of job-terminal failure reasons.
type ErrorKind string

const (
	ErrPermissionDenied     ErrorKind = "PERMISSION_DENIED"
	ErrDeviceNotFound       ErrorKind = "DEVICE_NOT_FOUND"
	ErrSystemDeviceProtected ErrorKind = "SYSTEM_DEVICE_PROTECTED"
	ErrSecurityFrozen       ErrorKind = "SECURITY_FROZEN"
	ErrNoPurgeMethod        ErrorKind = "NO_PURGE_METHOD_AVAILABLE"
	ErrHpaRemovalFailed     ErrorKind = "HPA_REMOVAL_FAILED"
	ErrHpaRemovalIncomplete ErrorKind = "HPA_REMOVAL_INCOMPLETE"
	ErrWriteError           ErrorKind = "WRITE_ERROR"
	ErrReadError            ErrorKind = "READ_ERROR"
	ErrCommandFailed        ErrorKind = "COMMAND_FAILED"
	ErrTimedOut             ErrorKind = "TIMED_OUT"
	ErrVerificationFailed   ErrorKind = "VERIFICATION_FAILED"
	ErrCancelled            ErrorKind = "CANCELLED"
	ErrInvalidCertificate   ErrorKind = "INVALID_CERTIFICATE"
	ErrInternalError        ErrorKind = "INTERNAL_ERROR"
)

// Default throughput assumptions used by the Planner to estimate step
// duration, in bytes/sec.
const (
	ThroughputHDDBytesPerSec       = 50 * 1024 * 1024
	ThroughputSSDBytesPerSec       = 200 * 1024 * 1024
	ThroughputRemovableBytesPerSec = 20 * 1024 * 1024

	// DefaultSanitizePollInterval is how often the hardware sanitize
	// driver polls the device for sanitize-operation completion.
	DefaultSanitizePollInterval = 1 * time.Second
	// DefaultSanitizeDeadline is the ceiling a hardware sanitize step
	// may run before it is failed with ErrTimedOut.
	DefaultSanitizeDeadline = 2 * time.Hour

	// DefaultPassBufferSize is the chunk size a software overwrite
	// pass issues per write, absent configuration override.
	DefaultPassBufferSize = 16 * 1024 * 1024

	// MinPatternRegenIntervalMiB is the floor on how often the Pattern
	// Source must refresh a Random buffer during a long pass.
	MinPatternRegenIntervalMiB = 16

	// MinVerifySampleCount is the minimum number of blocks the
	// Verifier must sample per spec.md 4.7.
	MinVerifySampleCount = 10
	// MinVerifySampleSizeBytes is the minimum size of each sampled block.
	MinVerifySampleSizeBytes = 4 * 1024

	// DCO heuristic tolerance: flag dco_suspected when native capacity
	// deviates from the nearest common marketing size by more than
	// this fraction AND this absolute byte count.
	DCOToleranceFraction     = 0.05
	DCOToleranceAbsoluteBytes = 50 * 1024 * 1024 * 1024
)
