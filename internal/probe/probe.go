package probe

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/provisor/provisor/internal/logging"
	"github.com/provisor/provisor/internal/model"
)

// DefaultPollInterval is used when a probe spec declares none.
const DefaultPollInterval = 500 * time.Millisecond

// Prober runs readiness checks against external services. Checks are
// read-only; the prober never mutates the target.
type Prober struct {
	logger logging.Logger

	// Workers bounds the pool used by ProbeAll. Zero means 4.
	Workers int

	// ProcRoot is the procfs mount scanned by process checks. Tests point
	// it at a fixture directory.
	ProcRoot string

	// UnitCheck reports whether a service-manager unit is active. The
	// default shells out to systemctl; tests substitute a fake.
	UnitCheck func(ctx context.Context, unit string) error

	httpClient *http.Client
}

// NewProber creates a prober with the default check implementations.
func NewProber(logger logging.Logger) *Prober {
	return &Prober{
		logger:     logger,
		Workers:    4,
		ProcRoot:   "/proc",
		UnitCheck:  systemctlIsActive,
		httpClient: &http.Client{},
	}
}

// Probe runs one readiness check to completion: issue the check, sleep the
// poll interval on failure, retry until success or the timeout budget is
// exhausted. The state machine is pending -> retry loop -> {ok | failed |
// timeout}; terminal states are final.
func (p *Prober) Probe(ctx context.Context, spec model.ProbeSpec) model.ProbeResult {
	result := model.ProbeResult{
		Target: spec.Target,
		Kind:   spec.Kind,
		Status: model.ProbeStatusPending,
	}

	// Degenerate budget: report timeout immediately, never issue a check.
	if spec.Timeout <= 0 {
		result.Status = model.ProbeStatusTimeout
		result.Message = "timeout budget is zero, no check issued"
		return result
	}

	pollInterval := spec.PollInterval
	if pollInterval <= 0 {
		pollInterval = DefaultPollInterval
	}

	start := time.Now()
	deadline := start.Add(spec.Timeout)

	var lastErr error
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			break
		}

		attemptCtx, cancel := context.WithTimeout(ctx, remaining)
		err := p.check(attemptCtx, spec)
		cancel()
		result.Attempts++

		if err == nil {
			result.Status = model.ProbeStatusOK
			result.Elapsed = time.Since(start)
			p.logger.Debugf("probe ok, target: %s, kind: %s, attempts: %d",
				spec.Target, spec.Kind, result.Attempts)
			return result
		}
		lastErr = err
		p.logger.Debugf("probe attempt failed, target: %s, kind: %s, error: %v",
			spec.Target, spec.Kind, err)

		if ctx.Err() != nil {
			break
		}

		select {
		case <-time.After(pollInterval):
		case <-ctx.Done():
		}
		if ctx.Err() != nil {
			break
		}
	}

	result.Elapsed = time.Since(start)
	if lastErr != nil {
		result.Status = model.ProbeStatusFailed
		result.Message = lastErr.Error()
	} else {
		result.Status = model.ProbeStatusTimeout
		result.Message = "timeout budget exhausted before any check completed"
	}
	p.logger.Warnf("probe %s, target: %s, kind: %s, elapsed: %v, message: %s",
		result.Status, spec.Target, spec.Kind, result.Elapsed, result.Message)
	return result
}

// ProbeAll probes independent targets concurrently through a bounded worker
// pool. A failure on one target never cancels the others. Cancelling ctx
// stops launching new probes; in-flight checks finish naturally. Results
// are returned in spec order; probes never launched stay pending.
func (p *Prober) ProbeAll(ctx context.Context, specs []model.ProbeSpec) []model.ProbeResult {
	results := make([]model.ProbeResult, len(specs))
	if len(specs) == 0 {
		return results
	}

	workers := p.Workers
	if workers <= 0 {
		workers = 4
	}
	if workers > len(specs) {
		workers = len(specs)
	}

	type task struct{ index int }
	tasks := make(chan task)
	done := make(chan struct{})

	for w := 0; w < workers; w++ {
		go func() {
			for t := range tasks {
				// In-flight probes run with their own budget, detached from
				// the rollout context, so near-complete checks finish.
				results[t.index] = p.Probe(context.Background(), specs[t.index])
				done <- struct{}{}
			}
		}()
	}

	launched := 0
dispatch:
	for i := range specs {
		select {
		case tasks <- task{index: i}:
			launched++
		case <-ctx.Done():
			break dispatch
		}
	}
	close(tasks)

	for i := 0; i < launched; i++ {
		<-done
	}

	for i := range results {
		if results[i].Status == "" {
			results[i] = model.ProbeResult{
				Target:  specs[i].Target,
				Kind:    specs[i].Kind,
				Status:  model.ProbeStatusPending,
				Message: "not started: rollout cancelled",
			}
		}
	}
	return results
}

func (p *Prober) check(ctx context.Context, spec model.ProbeSpec) error {
	switch spec.Kind {
	case model.ProbeKindPort:
		return p.checkPort(ctx, spec)
	case model.ProbeKindHTTP:
		return p.checkHTTP(ctx, spec)
	case model.ProbeKindProcess:
		return p.checkProcess(spec)
	case model.ProbeKindUnit:
		return p.UnitCheck(ctx, spec.Unit)
	default:
		return fmt.Errorf("unknown probe kind: %s", spec.Kind)
	}
}

func (p *Prober) checkPort(ctx context.Context, spec model.ProbeSpec) error {
	address := net.JoinHostPort(spec.Address, fmt.Sprintf("%d", spec.Port))
	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, "tcp", address)
	if err != nil {
		return fmt.Errorf("tcp connect to %s failed: %w", address, err)
	}
	conn.Close()
	return nil
}

func (p *Prober) checkHTTP(ctx context.Context, spec model.ProbeSpec) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, spec.URL, nil)
	if err != nil {
		return fmt.Errorf("failed to build request for %s: %w", spec.URL, err)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("GET %s failed: %w", spec.URL, err)
	}
	defer resp.Body.Close()

	// Allowed set comes from the caller; empty means any 2xx.
	if len(spec.AllowedStatus) == 0 {
		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return nil
		}
		return fmt.Errorf("GET %s returned %d, expected 2xx", spec.URL, resp.StatusCode)
	}
	for _, allowed := range spec.AllowedStatus {
		if resp.StatusCode == allowed {
			return nil
		}
	}
	return fmt.Errorf("GET %s returned %d, allowed: %v", spec.URL, resp.StatusCode, spec.AllowedStatus)
}

// checkProcess scans procfs for a process whose comm matches the declared
// name. comm is truncated by the kernel to 15 characters; the declared
// name is truncated the same way before comparing.
func (p *Prober) checkProcess(spec model.ProbeSpec) error {
	want := spec.Process
	if len(want) > 15 {
		want = want[:15]
	}

	entries, err := os.ReadDir(p.ProcRoot)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", p.ProcRoot, err)
	}

	for _, entry := range entries {
		if !entry.IsDir() || !isNumeric(entry.Name()) {
			continue
		}
		comm, err := os.ReadFile(filepath.Join(p.ProcRoot, entry.Name(), "comm"))
		if err != nil {
			continue // process exited mid-scan
		}
		if strings.TrimSpace(string(comm)) == want {
			return nil
		}
	}
	return fmt.Errorf("no running process named %q", spec.Process)
}

func isNumeric(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

func systemctlIsActive(ctx context.Context, unit string) error {
	out, err := exec.CommandContext(ctx, "systemctl", "is-active", "--quiet", unit).CombinedOutput()
	if err != nil {
		return fmt.Errorf("unit %s is not active: %v, output: %s", unit, err, strings.TrimSpace(string(out)))
	}
	return nil
}
