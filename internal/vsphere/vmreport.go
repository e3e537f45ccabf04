package vsphere

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/sirupsen/logrus"
	"github.com/vmware/govmomi/view"
	"github.com/vmware/govmomi/vim25/mo"
	"github.com/vmware/govmomi/vim25/types"

	"github.com/infrawisetech/IT-Admin-Toolkit/internal/config"
	"github.com/infrawisetech/IT-Admin-Toolkit/internal/pipeline"
	"github.com/infrawisetech/IT-Admin-Toolkit/internal/report"
)

// VM is one inventory record flattened from the property collector.
type VM struct {
	Name         string `json:"name"`
	PowerState   string `json:"power_state"`
	Guest        string `json:"guest"`
	NumCPU       int32  `json:"num_cpu"`
	MemoryMB     int32  `json:"memory_mb"`
	StorageBytes int64  `json:"storage_bytes"`
	Host         string `json:"host,omitempty"`
	ToolsStatus  string `json:"tools_status,omitempty"`
}

// Fetcher retrieves the VM inventory; tests substitute a fixture.
type Fetcher func(ctx context.Context) ([]VM, error)

// ReportTool is the VM resource report.
type ReportTool struct {
	cfg   config.VCenterConfig
	fetch Fetcher
}

// NewReport creates the report against a live vCenter.
func NewReport(cfg config.VCenterConfig) *ReportTool {
	t := &ReportTool{cfg: cfg}
	t.fetch = t.fetchInventory
	return t
}

func (t *ReportTool) Name() string  { return "vmreport" }
func (t *ReportTool) Title() string { return "VM Resource Report" }

// Collect implements pipeline.Tool.
func (t *ReportTool) Collect(ctx context.Context, log *logrus.Logger) (*pipeline.Outcome, error) {
	vms, err := t.fetch(ctx)
	if err != nil {
		return nil, err
	}
	log.Infof("retrieved %d virtual machine(s)", len(vms))
	return t.outcome(vms), nil
}

// fetchInventory pulls every VM through a container view so one round trip
// covers the whole inventory.
func (t *ReportTool) fetchInventory(ctx context.Context) ([]VM, error) {
	client, err := Connect(ctx, t.cfg)
	if err != nil {
		return nil, err
	}
	defer client.Logout(ctx)

	m := view.NewManager(client.Client)
	v, err := m.CreateContainerView(ctx, client.ServiceContent.RootFolder,
		[]string{"VirtualMachine"}, true)
	if err != nil {
		return nil, fmt.Errorf("create container view: %w", err)
	}
	defer v.Destroy(ctx)

	var machines []mo.VirtualMachine
	err = v.Retrieve(ctx, []string{"VirtualMachine"},
		[]string{"name", "summary", "runtime.host"}, &machines)
	if err != nil {
		return nil, fmt.Errorf("retrieve virtual machines: %w", err)
	}

	hosts := make(map[types.ManagedObjectReference]string)
	vms := make([]VM, 0, len(machines))
	for _, machine := range machines {
		rec := VM{
			Name:       machine.Summary.Config.Name,
			PowerState: string(machine.Summary.Runtime.PowerState),
			Guest:      machine.Summary.Config.GuestFullName,
			NumCPU:     machine.Summary.Config.NumCpu,
			MemoryMB:   machine.Summary.Config.MemorySizeMB,
		}
		if machine.Summary.Guest != nil {
			rec.ToolsStatus = string(machine.Summary.Guest.ToolsStatus)
		}
		if machine.Summary.Storage != nil {
			rec.StorageBytes = machine.Summary.Storage.Committed
		}
		if ref := machine.Runtime.Host; ref != nil {
			name, ok := hosts[*ref]
			if !ok {
				var host mo.HostSystem
				pc := client.PropertyCollector()
				if err := pc.RetrieveOne(ctx, *ref, []string{"name"}, &host); err == nil {
					name = host.Name
				}
				hosts[*ref] = name
			}
			rec.Host = name
		}
		vms = append(vms, rec)
	}
	return vms, nil
}

func (t *ReportTool) classify(vm VM) (report.Status, string) {
	if !strings.EqualFold(vm.PowerState, "poweredOn") {
		return report.StatusInfo, "powered off"
	}
	var notes []string
	if t.cfg.CPUThreshold > 0 && vm.NumCPU > t.cfg.CPUThreshold {
		notes = append(notes, fmt.Sprintf("vCPU %d over threshold %d", vm.NumCPU, t.cfg.CPUThreshold))
	}
	if t.cfg.MemThreshold > 0 && vm.MemoryMB > t.cfg.MemThreshold {
		notes = append(notes, fmt.Sprintf("memory %d MB over threshold %d MB", vm.MemoryMB, t.cfg.MemThreshold))
	}
	switch vm.ToolsStatus {
	case "toolsNotInstalled":
		notes = append(notes, "tools not installed")
	case "toolsNotRunning":
		notes = append(notes, "tools not running")
	case "toolsOld":
		notes = append(notes, "tools outdated")
	}
	if len(notes) > 0 {
		return report.StatusWarning, strings.Join(notes, ", ")
	}
	return report.StatusOK, ""
}

func (t *ReportTool) outcome(vms []VM) *pipeline.Outcome {
	sort.Slice(vms, func(i, j int) bool { return vms[i].Name < vms[j].Name })

	table := report.Table{
		Title: "Virtual Machines",
		Header: []string{
			"Name", "Power", "Guest OS", "vCPU", "Memory",
			"Storage", "Host", "Notes",
		},
	}
	var findings []report.Finding
	var csvRows [][]string
	var summary report.Summary
	var totalCPU int64
	var totalMemMB int64
	var totalStorage int64
	poweredOn := 0
	healthy := 0

	for _, vm := range vms {
		status, note := t.classify(vm)
		table.Rows = append(table.Rows, report.Row{
			Status: status,
			Cells: []string{
				vm.Name, vm.PowerState, vm.Guest,
				strconv.Itoa(int(vm.NumCPU)),
				humanize.IBytes(uint64(vm.MemoryMB) * 1024 * 1024),
				humanize.IBytes(uint64(vm.StorageBytes)),
				vm.Host, note,
			},
		})
		csvRows = append(csvRows, []string{
			vm.Name, vm.PowerState, vm.Guest,
			strconv.Itoa(int(vm.NumCPU)),
			strconv.Itoa(int(vm.MemoryMB)),
			strconv.FormatInt(vm.StorageBytes, 10),
			vm.Host, vm.ToolsStatus, note,
		})
		switch status {
		case report.StatusWarning:
			summary.Warning++
			findings = append(findings, report.Finding{
				Severity: report.StatusWarning,
				Title:    fmt.Sprintf("%s: %s", vm.Name, note),
			})
		case report.StatusOK:
			summary.OK++
			healthy++
		default:
			// powered-off rows count with OK so the breakdown sums
			// to Total, but stay out of the health ratio.
			summary.OK++
		}
		if strings.EqualFold(vm.PowerState, "poweredOn") {
			poweredOn++
			totalCPU += int64(vm.NumCPU)
			totalMemMB += int64(vm.MemoryMB)
		}
		totalStorage += vm.StorageBytes
	}

	capacity := report.Table{
		Title:  "Allocated Capacity",
		Header: []string{"Metric", "Value"},
		Rows: []report.Row{
			{Status: report.StatusInfo, Cells: []string{"VMs total", strconv.Itoa(len(vms))}},
			{Status: report.StatusInfo, Cells: []string{"VMs powered on", strconv.Itoa(poweredOn)}},
			{Status: report.StatusInfo, Cells: []string{"vCPU allocated", strconv.FormatInt(totalCPU, 10)}},
			{Status: report.StatusInfo, Cells: []string{"Memory allocated", humanize.IBytes(uint64(totalMemMB) * 1024 * 1024)}},
			{Status: report.StatusInfo, Cells: []string{"Storage committed", humanize.IBytes(uint64(totalStorage))}},
		},
	}

	// Powered-off VMs are informational, so they are excluded from the
	// health ratio.
	score := 100.0
	if poweredOn > 0 {
		score = 100 * float64(healthy) / float64(poweredOn)
	}
	summary.Total = len(vms)
	summary.ScoreLabel = "Health"
	summary.Score = score
	summary.Grade = report.Grade(score)

	return &pipeline.Outcome{
		Report: &report.Data{
			Target:   t.cfg.URL,
			Summary:  summary,
			Findings: findings,
			Tables:   []report.Table{table, capacity},
		},
		CSVHeader: []string{
			"name", "power_state", "guest", "num_cpu", "memory_mb",
			"storage_bytes", "host", "tools_status", "notes",
		},
		CSVRows: csvRows,
		Export:  vms,
	}
}
