// Copyright 2026 The Sanitor Authors and Contributors
// SPDX-License-Identifier: Apache-2.0

package types

import "time"

// Certificate is the signed, tamper-evident attestation Certificate
// Authority (C9) issues for one job. ContentHash/Signature
// cover every other field via canonical byte serialization.
type Certificate struct {
	CertID          string          `json:"cert_id"`
	IssuedAt        time.Time       `json:"issued_at"`
	IssuerName      string          `json:"issuer_name"`
	IssuerPublicKey string          `json:"issuer_public_key"`

	Facts               DriveFacts      `json:"facts"`
	PlanSummary         string          `json:"plan_summary"`
	StepOutcomesSummary []string        `json:"step_outcomes_summary"`
	VerifierOutcome     VerifierOutcome `json:"verifier_outcome"`
	ComplianceClaims    []string        `json:"compliance_claims"`

	// SecurityFeatureSummary lists the capability identifiers of the
	// hardware primitives the drive advertised (e.g. ATA_SECURE_ERASE).
	// It does not record which of them the job used.
	SecurityFeatureSummary []string `json:"security_feature_summary"`

	// DurationSeconds mirrors started_at/ended_at for consumers that
	// don't want to parse timestamps.
	DurationSeconds float64 `json:"duration_seconds"`

	Status    JobStatus `json:"status"`
	Simulated bool      `json:"simulated"`

	ContentHash string `json:"content_hash"`
	Signature   string `json:"signature"`
}

// Issuer is the public view of the process-wide Certificate Authority
// identity: its name, organization, public key, and the certificate
// counter at the time it was read. Authority.Issuer returns it by
// value; the private key stays inside the Authority.
type Issuer struct {
	Name             string `json:"name"`
	Organization     string `json:"organization"`
	PublicKeyOpenSSH string `json:"public_key_openssh"`
	CertificateCounter uint64 `json:"certificate_counter"`
}
