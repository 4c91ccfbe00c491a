// Copyright 2026 The Sanitor Authors and Contributors
// SPDX-License-Identifier: Apache-2.0

package probe

import (
	"bufio"
	"context"
	"os"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/stratastor/logger"

	"github.com/tinkershack/sanitor/config"
	"github.com/tinkershack/sanitor/pkg/errors"
	"github.com/tinkershack/sanitor/pkg/sanitize/types"
)

// Prober implements the Device Probe (C1): it enumerates block devices
// and returns DriveFacts, optionally re-scanning on a schedule so
// callers can read a recent cached inventory without re-shelling out
// on every call.
type Prober struct {
	logger  logger.Logger
	tools   *Toolset
	cfg     *config.Config
	sched   gocron.Scheduler

	mu    sync.RWMutex
	cache map[string]types.DriveFacts
}

// NewProber builds a Prober. Call Start to begin periodic rescans.
func NewProber(l logger.Logger, cfg *config.Config) (*Prober, error) {
	sched, err := gocron.NewScheduler()
	if err != nil {
		return nil, errors.Wrap(err, errors.ProbeEnumerationFailed).WithMetadata("operation", "create_scheduler")
	}
	return &Prober{
		logger: l,
		tools:  NewToolset(l, cfg),
		cfg:    cfg,
		sched:  sched,
		cache:  make(map[string]types.DriveFacts),
	}, nil
}

// Start runs an initial enumeration and schedules periodic rescans per
// config.Probe.RescanInterval.
func (p *Prober) Start(ctx context.Context) error {
	if _, err := p.ListDevices(ctx); err != nil {
		p.logger.Warn("initial device enumeration failed", "err", err)
	}

	interval, err := time.ParseDuration(p.cfg.Probe.RescanInterval)
	if err != nil || interval <= 0 {
		interval = 5 * time.Minute
	}

	_, err = p.sched.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() {
			if _, err := p.ListDevices(ctx); err != nil {
				p.logger.Error("periodic device rescan failed", "err", err)
			}
		}),
		gocron.WithName("periodic_device_rescan"),
	)
	if err != nil {
		return errors.Wrap(err, errors.ProbeEnumerationFailed).WithMetadata("operation", "schedule_rescan")
	}

	p.sched.Start()
	return nil
}

// Stop halts the periodic rescan scheduler.
func (p *Prober) Stop() error {
	return p.sched.Shutdown()
}

// ListDevices enumerates every block device and returns DriveFacts for
// each. Per spec.md section 4.1, unreadable devices are returned with
// Kind=Unknown and an empty capability set, never omitted.
func (p *Prober) ListDevices(ctx context.Context) ([]types.DriveFacts, error) {
	paths, err := p.tools.ListBlockDevices(ctx)
	if err != nil {
		return nil, err
	}

	facts := make([]types.DriveFacts, 0, len(paths))
	for _, path := range paths {
		f, err := p.Probe(ctx, path)
		if err != nil {
			p.logger.Warn("probe failed, returning Unknown facts", "device", path, "err", err)
			f = types.DriveFacts{
				DevicePath:   path,
				Kind:         types.KindUnknown,
				Interface:    types.InterfaceUnknown,
				Capabilities: types.NewCapabilitySet(),
				ProbedAt:     time.Now(),
			}
			f.Finalize()
		}
		facts = append(facts, f)
	}

	p.mu.Lock()
	for _, f := range facts {
		p.cache[f.DevicePath] = f
	}
	p.mu.Unlock()

	return facts, nil
}

// Probe returns DriveFacts for a single device path.
func (p *Prober) Probe(ctx context.Context, path string) (types.DriveFacts, error) {
	raw, err := p.tools.SmartctlAll(ctx, path)
	if err != nil {
		return types.DriveFacts{}, err
	}

	report, err := parseSmartctlReport(raw)
	if err != nil {
		return types.DriveFacts{}, errors.Wrap(err, errors.ProbeParseFailed).WithMetadata("device", path)
	}

	facts := classify(path, report)
	facts.IsSystemDevice = isSystemDevice(path)
	facts.ProbedAt = time.Now()
	facts.Finalize()

	return facts, nil
}

// GetCached returns the last-probed DriveFacts for path without
// re-shelling out, if present.
func (p *Prober) GetCached(path string) (types.DriveFacts, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	f, ok := p.cache[path]
	return f, ok
}

// nvmeNamespacePath matches an NVMe namespace device, e.g.
// /dev/nvme0n1 — the trailing digit is the namespace id, not a
// partition number, so it must not be stripped when deriving base.
var nvmeNamespacePath = regexp.MustCompile(`^.*nvme\d+n\d+$`)

// partitionMatchBase derives the prefix used to recognize devicePath's
// own partitions in the mount table (e.g. /dev/sda -> /dev/sda1).
// ATA/SCSI-style paths (/dev/sda) number partitions by appending
// digits directly, so trailing digits are stripped. NVMe namespace
// paths (/dev/nvme0n1) already end in their namespace digit and
// number partitions with a "p" suffix (/dev/nvme0n1p1), so the
// namespace path itself is kept whole rather than stripped down to
// /dev/nvme0n.
func partitionMatchBase(devicePath string) string {
	if nvmeNamespacePath.MatchString(devicePath) {
		return devicePath
	}
	return strings.TrimRight(devicePath, "0123456789")
}

// partitionPattern returns a regexp matching devicePath itself or one
// of its partitions, anchored so that e.g. /dev/sda1 never matches an
// unrelated sibling like /dev/sda10 (a bare HasPrefix on the
// digit-stripped base would conflate the two).
func partitionPattern(devicePath string) *regexp.Regexp {
	base := regexp.QuoteMeta(partitionMatchBase(devicePath))
	if nvmeNamespacePath.MatchString(devicePath) {
		return regexp.MustCompile(`^` + base + `p\d+$`)
	}
	if partitionMatchBase(devicePath) != devicePath {
		// devicePath is itself a partition: match only that path.
		return regexp.MustCompile(`^` + regexp.QuoteMeta(devicePath) + `$`)
	}
	return regexp.MustCompile(`^` + base + `\d+$`)
}

// isSystemDevice reports whether the OS's mount table shows any mount
// resolving to devicePath or a partition of it, per spec.md section
// 4.1's "is_system_device" classification rule.
func isSystemDevice(devicePath string) bool {
	f, err := os.Open("/proc/mounts")
	if err != nil {
		return false
	}
	defer f.Close()

	pattern := partitionPattern(devicePath)
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 2 {
			continue
		}
		source := fields[0]
		if source == devicePath || pattern.MatchString(source) {
			return true
		}
	}
	return false
}
