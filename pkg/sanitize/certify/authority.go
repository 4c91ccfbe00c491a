// Copyright 2026 The Sanitor Authors and Contributors
// SPDX-License-Identifier: Apache-2.0

// Package certify implements the Certificate Authority (C9): a
// process-local ed25519 issuer identity that signs a canonical byte
// encoding of every completed job's OperationResult, per spec.md
// section 4.9.
package certify

import (
	"context"
	"crypto"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"encoding/pem"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/stratastor/logger"
	"golang.org/x/crypto/ssh"

	"github.com/tinkershack/sanitor/config"
	"github.com/tinkershack/sanitor/internal/common"
	"github.com/tinkershack/sanitor/pkg/errors"
	"github.com/tinkershack/sanitor/pkg/sanitize/types"
)

const (
	privateKeyFile = "issuer_ed25519"
	publicKeyFile  = "issuer_ed25519.pub"
	counterFile    = "issuer_counter"
)

// Authority is the engine's process-wide Certificate Authority: one
// ed25519 keypair plus a monotonically increasing certificate counter,
// both persisted under the issuer key directory.
type Authority struct {
	logger logger.Logger

	dirPath string
	orgName string

	mu       sync.Mutex
	priv     ed25519.PrivateKey
	pub      ed25519.PublicKey
	pubOpenSSH string
	counter  uint64
}

// Load opens (creating on first run) the issuer identity rooted at
// cfg.Keys.Issuer.DirPath. A directory containing a partial or
// unreadable keypair aborts rather than silently regenerating, since a
// regenerated key would invalidate every certificate issued under the
// old one.
func Load(l logger.Logger, cfg *config.Config) (*Authority, error) {
	dirPath, err := common.ExpandPath(cfg.Keys.Issuer.DirPath)
	if err != nil {
		return nil, errors.Wrap(err, errors.CertifyKeyLoadFailed).WithMetadata("dir", cfg.Keys.Issuer.DirPath)
	}

	a := &Authority{logger: l, dirPath: dirPath, orgName: cfg.Keys.Issuer.OrgName}

	privPath := filepath.Join(dirPath, privateKeyFile)
	pubPath := filepath.Join(dirPath, publicKeyFile)

	_, privErr := os.Stat(privPath)
	_, pubErr := os.Stat(pubPath)

	switch {
	case os.IsNotExist(privErr) && os.IsNotExist(pubErr):
		if err := a.generate(); err != nil {
			return nil, err
		}
	case privErr == nil && pubErr == nil:
		if err := a.loadExisting(); err != nil {
			return nil, err
		}
	default:
		// Exactly one of the two files is present: a prior write was
		// interrupted. Refuse to guess; the operator must clear the
		// directory to regenerate.
		return nil, errors.New(errors.CertifyKeyCorrupted, "issuer key directory contains a partial keypair").
			WithMetadata("dir", dirPath)
	}

	if err := a.loadCounter(); err != nil {
		return nil, err
	}

	return a, nil
}

func (a *Authority) generate() error {
	if err := common.EnsureDir(a.dirPath, 0700); err != nil {
		return errors.Wrap(err, errors.CertifyKeyGenerationFailed).WithMetadata("dir", a.dirPath)
	}

	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return errors.Wrap(err, errors.CertifyKeyGenerationFailed)
	}

	sshPriv, err := ssh.MarshalPrivateKey(crypto.PrivateKey(priv), "sanitor issuer key")
	if err != nil {
		return errors.Wrap(err, errors.CertifyKeyGenerationFailed)
	}
	privBytes := pem.EncodeToMemory(sshPriv)

	sshPub, err := ssh.NewPublicKey(pub)
	if err != nil {
		return errors.Wrap(err, errors.CertifyKeyGenerationFailed)
	}
	pubBytes := ssh.MarshalAuthorizedKey(sshPub)

	if err := common.WriteFileAtomic(filepath.Join(a.dirPath, privateKeyFile), privBytes, 0600); err != nil {
		return errors.Wrap(err, errors.CertifyKeyGenerationFailed).WithMetadata("file", privateKeyFile)
	}
	if err := common.WriteFileAtomic(filepath.Join(a.dirPath, publicKeyFile), pubBytes, 0644); err != nil {
		return errors.Wrap(err, errors.CertifyKeyGenerationFailed).WithMetadata("file", publicKeyFile)
	}

	a.priv = priv
	a.pub = pub
	a.pubOpenSSH = string(pubBytes)
	return nil
}

func (a *Authority) loadExisting() error {
	privBytes, err := os.ReadFile(filepath.Join(a.dirPath, privateKeyFile))
	if err != nil {
		return errors.Wrap(err, errors.CertifyKeyLoadFailed).WithMetadata("file", privateKeyFile)
	}
	pubBytes, err := os.ReadFile(filepath.Join(a.dirPath, publicKeyFile))
	if err != nil {
		return errors.Wrap(err, errors.CertifyKeyLoadFailed).WithMetadata("file", publicKeyFile)
	}

	raw, err := ssh.ParseRawPrivateKey(privBytes)
	if err != nil {
		return errors.Wrap(err, errors.CertifyKeyCorrupted).WithMetadata("file", privateKeyFile)
	}
	priv, ok := asEd25519(raw)
	if !ok {
		return errors.New(errors.CertifyKeyCorrupted, "issuer private key is not ed25519").WithMetadata("file", privateKeyFile)
	}

	parsedPub, _, _, _, err := ssh.ParseAuthorizedKey(pubBytes)
	if err != nil {
		return errors.Wrap(err, errors.CertifyKeyCorrupted).WithMetadata("file", publicKeyFile)
	}
	derivedPub, err := ssh.NewPublicKey(priv.Public().(ed25519.PublicKey))
	if err != nil {
		return errors.Wrap(err, errors.CertifyKeyCorrupted)
	}
	if string(parsedPub.Marshal()) != string(derivedPub.Marshal()) {
		return errors.New(errors.CertifyKeyCorrupted, "issuer public key does not match private key").WithMetadata("dir", a.dirPath)
	}

	a.priv = priv
	a.pub = priv.Public().(ed25519.PublicKey)
	a.pubOpenSSH = string(pubBytes)
	return nil
}

// asEd25519 normalizes the interface{} ssh.ParseRawPrivateKey returns
// for an ed25519 key: depending on x/crypto/ssh version this is either
// ed25519.PrivateKey or *ed25519.PrivateKey.
func asEd25519(raw interface{}) (ed25519.PrivateKey, bool) {
	switch k := raw.(type) {
	case ed25519.PrivateKey:
		return k, true
	case *ed25519.PrivateKey:
		return *k, true
	default:
		return nil, false
	}
}

func (a *Authority) loadCounter() error {
	path := filepath.Join(a.dirPath, counterFile)
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		a.counter = 0
		return nil
	}
	if err != nil {
		return errors.Wrap(err, errors.CertifyCounterPersistFailed).WithMetadata("file", counterFile)
	}
	n, err := strconv.ParseUint(string(trimNewline(data)), 10, 64)
	if err != nil {
		return errors.Wrap(err, errors.CertifyKeyCorrupted).WithMetadata("file", counterFile)
	}
	a.counter = n
	return nil
}

func trimNewline(b []byte) []byte {
	for len(b) > 0 && (b[len(b)-1] == '\n' || b[len(b)-1] == '\r') {
		b = b[:len(b)-1]
	}
	return b
}

func (a *Authority) persistCounter() error {
	path := filepath.Join(a.dirPath, counterFile)
	data := []byte(strconv.FormatUint(a.counter, 10))
	if err := common.WriteFileAtomic(path, data, 0600); err != nil {
		return errors.Wrap(err, errors.CertifyCounterPersistFailed).WithMetadata("file", counterFile)
	}
	return nil
}

// Issuer returns the Authority's public identity, for display or
// embedding in a certificate bundle.
func (a *Authority) Issuer() types.Issuer {
	a.mu.Lock()
	defer a.mu.Unlock()
	return types.Issuer{
		Name:               "sanitor",
		Organization:       a.orgName,
		PublicKeyOpenSSH:   a.pubOpenSSH,
		CertificateCounter: a.counter,
	}
}

// Issue signs result into a Certificate. The certificate's
// ComplianceClaims omit any real-device guarantee when result was
// produced in simulation mode, per spec.md section 9.
func (a *Authority) Issue(ctx context.Context, result types.OperationResult) (*types.Certificate, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.counter++
	if err := a.persistCounter(); err != nil {
		a.counter--
		return nil, err
	}

	cert := &types.Certificate{
		CertID:                 common.UUID7(),
		IssuedAt:               time.Now().UTC(),
		IssuerName:             "sanitor",
		IssuerPublicKey:        a.pubOpenSSH,
		Facts:                  result.Facts,
		PlanSummary:            planSummary(result.Plan),
		StepOutcomesSummary:    stepOutcomesSummary(result.StepOutcomes),
		VerifierOutcome:        result.VerifierOutcome,
		ComplianceClaims:       complianceClaims(result),
		SecurityFeatureSummary: SecurityFeatureSummary(result.Facts),
		DurationSeconds:        result.EndedAt.Sub(result.StartedAt).Seconds(),
		Status:                 result.Status,
		Simulated:              result.Simulated,
	}

	canonical, err := canonicalBytes(cert)
	if err != nil {
		return nil, errors.Wrap(err, errors.CertifySignFailed)
	}
	sum := sha256.Sum256(canonical)
	cert.ContentHash = base64.StdEncoding.EncodeToString(sum[:])

	sig := ed25519.Sign(a.priv, sum[:])
	cert.Signature = base64.StdEncoding.EncodeToString(sig)

	return cert, nil
}

// Verify recomputes cert's content hash and checks its signature
// against cert's own embedded IssuerPublicKey, per spec.md section 4.9
// ("verify(cert)... verifies signature against cert.issuer_public_key")
// — a third party must be able to validate a certificate from this
// field alone, without trusting (or even possessing) this Authority's
// live keypair. A certificate issued by a different issuer, or
// tampered with after issuance, fails here.
func (a *Authority) Verify(cert types.Certificate) error {
	sshPub, _, _, _, err := ssh.ParseAuthorizedKey([]byte(cert.IssuerPublicKey))
	if err != nil {
		return errors.Wrap(err, errors.CertifyInvalidCertificate).WithMetadata("cert_id", cert.CertID)
	}
	cryptoPub, ok := sshPub.(ssh.CryptoPublicKey)
	if !ok {
		return errors.New(errors.CertifyInvalidCertificate, "certificate issuer public key is not a supported key type").
			WithMetadata("cert_id", cert.CertID)
	}
	pub, ok := cryptoPub.CryptoPublicKey().(ed25519.PublicKey)
	if !ok {
		return errors.New(errors.CertifyInvalidCertificate, "certificate issuer public key is not ed25519").
			WithMetadata("cert_id", cert.CertID)
	}

	unsigned := cert
	unsigned.ContentHash = ""
	unsigned.Signature = ""
	canonical, err := canonicalBytes(&unsigned)
	if err != nil {
		return errors.Wrap(err, errors.CertifyInvalidCertificate)
	}
	sum := sha256.Sum256(canonical)
	wantHash := base64.StdEncoding.EncodeToString(sum[:])
	if wantHash != cert.ContentHash {
		return errors.New(errors.CertifyInvalidCertificate, "certificate content hash mismatch").WithMetadata("cert_id", cert.CertID)
	}

	sig, err := base64.StdEncoding.DecodeString(cert.Signature)
	if err != nil {
		return errors.Wrap(err, errors.CertifyInvalidCertificate).WithMetadata("cert_id", cert.CertID)
	}
	if !ed25519.Verify(pub, sum[:], sig) {
		return errors.New(errors.CertifyInvalidCertificate, "certificate signature verification failed").WithMetadata("cert_id", cert.CertID)
	}
	return nil
}

// canonicalBytes produces a deterministic JSON encoding of cert with
// ContentHash and Signature excluded, so signing and verifying operate
// over the same bytes regardless of map ordering elsewhere in the
// engine.
func canonicalBytes(cert *types.Certificate) ([]byte, error) {
	c := *cert
	c.ContentHash = ""
	c.Signature = ""
	sort.Strings(c.StepOutcomesSummary)
	sort.Strings(c.ComplianceClaims)
	sort.Strings(c.SecurityFeatureSummary)
	return json.Marshal(c)
}

func planSummary(p types.Plan) string {
	if p.IsEmpty() {
		return "no-op: zero-length device range"
	}
	return fmt.Sprintf("%s: %d step(s)", p.Level, len(p.Steps))
}

func stepOutcomesSummary(outcomes []types.StepOutcome) []string {
	out := make([]string, 0, len(outcomes))
	for _, o := range outcomes {
		status := "ok"
		if !o.Succeeded {
			status = "failed"
		}
		if o.Simulated {
			status += " (simulated)"
		}
		out = append(out, fmt.Sprintf("%s: %s", o.Method.Kind, status))
	}
	return out
}

// complianceClaims states which NIST SP 800-88 purpose the job
// satisfies. A simulated job never claims to meet any purpose against
// real media.
func complianceClaims(result types.OperationResult) []string {
	if result.Simulated {
		return []string{"simulation only: no real-device compliance claim"}
	}
	if result.Status != types.StatusCompleted {
		return []string{"job did not complete: no compliance claim"}
	}
	if !result.VerifierOutcome.Passed && result.VerifierOutcome.Attempted {
		return []string{"verification failed: no compliance claim"}
	}
	return []string{fmt.Sprintf("NIST SP 800-88 Rev. 1 %s", result.Plan.Level)}
}

// SecurityFeatureSummary lists the capability identifiers of the
// hardware sanitize primitives the drive advertised. It does not record
// which of them the job used.
func SecurityFeatureSummary(facts types.DriveFacts) []string {
	if len(facts.Capabilities) == 0 {
		return []string{"no hardware sanitize primitives reported"}
	}
	out := make([]string, 0, len(facts.Capabilities))
	for _, c := range facts.Capabilities.List() {
		out = append(out, string(c))
	}
	return out
}
