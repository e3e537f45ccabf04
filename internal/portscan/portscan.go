// Package portscan implements a TCP connect scan over expanded host ranges
// with a bounded worker pool.
package portscan

import (
	"context"
	"fmt"
	"net"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/infrawisetech/IT-Admin-Toolkit/internal/pipeline"
	"github.com/infrawisetech/IT-Admin-Toolkit/internal/report"
)

const maxBannerBytes = 128

// Probe is one host:port connect attempt.
type Probe struct {
	Host string
	Port int
}

// Result is the outcome of one probe.
type Result struct {
	Host    string  `json:"host"`
	Port    int     `json:"port"`
	State   string  `json:"state"` // open | closed
	Service string  `json:"service,omitempty"`
	Banner  string  `json:"banner,omitempty"`
	Latency float64 `json:"latency_ms"`
}

// Dialer abstracts net.DialTimeout for tests.
type Dialer func(network, addr string, timeout time.Duration) (net.Conn, error)

// Scanner runs connect probes with a bounded worker pool.
type Scanner struct {
	Target     string
	PortSpec   string
	Timeout    time.Duration
	Workers    int
	GrabBanner bool
	ShowClosed bool

	dial Dialer
}

// New creates a Scanner with the default dialer.
func New(target, portSpec string, timeout time.Duration, workers int) *Scanner {
	return &Scanner{
		Target:   target,
		PortSpec: portSpec,
		Timeout:  timeout,
		Workers:  workers,
		dial:     net.DialTimeout,
	}
}

func (s *Scanner) Name() string  { return "portscan" }
func (s *Scanner) Title() string { return "Port Scan Report" }

// Scan expands the target and port spec and probes every pair. Workers
// bound the number of in-flight connections; a canceled context stops the
// pool promptly.
func (s *Scanner) Scan(ctx context.Context, log *logrus.Logger) ([]Result, error) {
	hosts, err := ExpandTarget(s.Target)
	if err != nil {
		return nil, err
	}
	ports, err := ParsePorts(s.PortSpec)
	if err != nil {
		return nil, err
	}
	log.Infof("scanning %d host(s) x %d port(s) with %d workers", len(hosts), len(ports), s.Workers)

	probes := make(chan Probe)
	results := make(chan Result, s.Workers)

	var wg sync.WaitGroup
	for i := 0; i < s.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for probe := range probes {
				results <- s.probe(probe)
			}
		}()
	}

	go func() {
		defer close(probes)
		for _, host := range hosts {
			for _, port := range ports {
				select {
				case probes <- Probe{Host: host, Port: port}:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	var all []Result
	for r := range results {
		if r.State == "open" {
			log.Debugf("open: %s:%d (%s)", r.Host, r.Port, r.Service)
		}
		all = append(all, r)
	}
	if err := ctx.Err(); err != nil {
		return all, err
	}

	sort.Slice(all, func(i, j int) bool {
		if all[i].Host != all[j].Host {
			return all[i].Host < all[j].Host
		}
		return all[i].Port < all[j].Port
	})
	return all, nil
}

func (s *Scanner) probe(p Probe) Result {
	result := Result{
		Host:    p.Host,
		Port:    p.Port,
		State:   "closed",
		Service: ServiceName(p.Port),
	}

	start := time.Now()
	conn, err := s.dial("tcp", net.JoinHostPort(p.Host, fmt.Sprintf("%d", p.Port)), s.Timeout)
	result.Latency = float64(time.Since(start).Microseconds()) / 1000
	if err != nil {
		return result
	}
	defer conn.Close()
	result.State = "open"

	if s.GrabBanner {
		_ = conn.SetReadDeadline(time.Now().Add(s.Timeout))
		buf := make([]byte, maxBannerBytes)
		if n, err := conn.Read(buf); err == nil && n > 0 {
			result.Banner = sanitizeBanner(string(buf[:n]))
		}
	}
	return result
}

// sanitizeBanner keeps the first line and strips control characters.
func sanitizeBanner(banner string) string {
	if i := strings.IndexAny(banner, "\r\n"); i >= 0 {
		banner = banner[:i]
	}
	var b strings.Builder
	for _, r := range banner {
		if r >= 32 && r < 127 {
			b.WriteRune(r)
		}
	}
	return strings.TrimSpace(b.String())
}

// Collect implements pipeline.Tool.
func (s *Scanner) Collect(ctx context.Context, log *logrus.Logger) (*pipeline.Outcome, error) {
	results, err := s.Scan(ctx, log)
	if err != nil {
		return nil, err
	}
	return s.outcome(results), nil
}

func (s *Scanner) outcome(results []Result) *pipeline.Outcome {
	table := report.Table{
		Title:  "Open Ports",
		Header: []string{"Host", "Port", "Service", "Banner", "Latency"},
	}
	var findings []report.Finding
	var csvRows [][]string
	var exported []Result
	open := 0

	for _, r := range results {
		if r.State != "open" {
			if s.ShowClosed {
				exported = append(exported, r)
				csvRows = append(csvRows, resultCSV(r))
			}
			continue
		}
		open++
		exported = append(exported, r)
		csvRows = append(csvRows, resultCSV(r))
		table.Rows = append(table.Rows, report.Row{
			Status: openStatus(r.Port),
			Cells: []string{
				r.Host, fmt.Sprintf("%d", r.Port), r.Service, r.Banner,
				fmt.Sprintf("%.1f ms", r.Latency),
			},
		})
		if st := openStatus(r.Port); st != report.StatusInfo {
			findings = append(findings, report.Finding{
				Severity: st,
				Title:    fmt.Sprintf("%s exposed on %s:%d", r.Service, r.Host, r.Port),
				Detail:   "legacy or high-risk service reachable over TCP",
			})
		}
	}

	tables := []report.Table{table}
	data := &report.Data{
		Target:   s.Target,
		Findings: findings,
		Tables:   tables,
	}
	// Score: share of open ports that are not flagged risky.
	score := 100.0
	if open > 0 {
		score = 100 * float64(open-len(findings)) / float64(open)
	}
	summary := report.Summarize("Exposure", score, tables)
	data.Summary = summary

	return &pipeline.Outcome{
		Report:    data,
		CSVHeader: []string{"host", "port", "state", "service", "banner", "latency_ms"},
		CSVRows:   csvRows,
		Export:    exported,
	}
}

// openStatus flags legacy cleartext and remote-desktop services.
func openStatus(port int) report.Status {
	switch port {
	case 23, 135, 139, 445:
		return report.StatusCritical
	case 21, 3389, 5900:
		return report.StatusWarning
	default:
		return report.StatusInfo
	}
}

func resultCSV(r Result) []string {
	return []string{
		r.Host, fmt.Sprintf("%d", r.Port), r.State, r.Service, r.Banner,
		fmt.Sprintf("%.1f", r.Latency),
	}
}
