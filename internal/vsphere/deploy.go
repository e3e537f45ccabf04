package vsphere

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/vmware/govmomi/find"
	"github.com/vmware/govmomi/object"
	"github.com/vmware/govmomi/vim25/types"

	"github.com/infrawisetech/IT-Admin-Toolkit/internal/config"
	"github.com/infrawisetech/IT-Admin-Toolkit/internal/pipeline"
	"github.com/infrawisetech/IT-Admin-Toolkit/internal/report"
)

const deployTimeout = 30 * time.Minute

// PlanRow is one VM to deploy from the CSV plan.
type PlanRow struct {
	Name      string `json:"name"`
	Template  string `json:"template"`
	Datastore string `json:"datastore"`
	Cluster   string `json:"cluster"`
	CPU       int32  `json:"cpu"`
	MemoryMB  int32  `json:"memory_mb"`
	Network   string `json:"network,omitempty"`
}

var planColumns = []string{"name", "template", "datastore", "cluster", "cpu", "memory_mb"}

// LoadPlan reads and validates a deployment plan CSV. The header must carry
// name,template,datastore,cluster,cpu,memory_mb; network is optional.
func LoadPlan(path string) ([]PlanRow, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open plan: %w", err)
	}
	defer f.Close()
	return parsePlan(f)
}

func parsePlan(r io.Reader) ([]PlanRow, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read plan header: %w", err)
	}
	col := make(map[string]int, len(header))
	for i, name := range header {
		col[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, required := range planColumns {
		if _, ok := col[required]; !ok {
			return nil, fmt.Errorf("plan is missing required column %q", required)
		}
	}

	seen := make(map[string]bool)
	var rows []PlanRow
	line := 1
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read plan row: %w", err)
		}
		line++
		field := func(name string) string {
			i, ok := col[name]
			if !ok || i >= len(record) {
				return ""
			}
			return strings.TrimSpace(record[i])
		}
		row := PlanRow{
			Name:      field("name"),
			Template:  field("template"),
			Datastore: field("datastore"),
			Cluster:   field("cluster"),
			Network:   field("network"),
		}
		if row.Name == "" || row.Template == "" || row.Datastore == "" || row.Cluster == "" {
			return nil, fmt.Errorf("plan line %d: name, template, datastore and cluster are required", line)
		}
		if seen[row.Name] {
			return nil, fmt.Errorf("plan line %d: duplicate VM name %q", line, row.Name)
		}
		seen[row.Name] = true

		cpu, err := strconv.Atoi(field("cpu"))
		if err != nil || cpu < 1 {
			return nil, fmt.Errorf("plan line %d: invalid cpu %q", line, field("cpu"))
		}
		mem, err := strconv.Atoi(field("memory_mb"))
		if err != nil || mem < 1 {
			return nil, fmt.Errorf("plan line %d: invalid memory_mb %q", line, field("memory_mb"))
		}
		row.CPU = int32(cpu)
		row.MemoryMB = int32(mem)
		rows = append(rows, row)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("plan contains no rows")
	}
	return rows, nil
}

// DeployResult is the per-row outcome of a deployment run.
type DeployResult struct {
	Row      PlanRow       `json:"row"`
	Status   string        `json:"status"` // deployed | planned | failed
	Error    string        `json:"error,omitempty"`
	Duration time.Duration `json:"duration,omitempty"`
}

// Cloner performs one clone; tests substitute a fake.
type Cloner func(ctx context.Context, row PlanRow) error

// DeployTool clones VMs from a plan file.
type DeployTool struct {
	cfg      config.VCenterConfig
	PlanPath string
	DryRun   bool
	clone    Cloner
}

// NewDeploy creates the bulk deploy tool against a live vCenter.
func NewDeploy(cfg config.VCenterConfig) *DeployTool {
	t := &DeployTool{cfg: cfg}
	t.clone = t.cloneVM
	return t
}

func (t *DeployTool) Name() string  { return "vmdeploy" }
func (t *DeployTool) Title() string { return "VM Bulk Deployment" }

// Collect implements pipeline.Tool. Each row is attempted independently so
// one failed clone does not abandon the rest of the plan.
func (t *DeployTool) Collect(ctx context.Context, log *logrus.Logger) (*pipeline.Outcome, error) {
	rows, err := LoadPlan(t.PlanPath)
	if err != nil {
		return nil, err
	}
	log.Infof("plan %s: %d VM(s)", t.PlanPath, len(rows))

	results := make([]DeployResult, 0, len(rows))
	for _, row := range rows {
		if t.DryRun {
			log.Infof("dry run: would deploy %s from %s", row.Name, row.Template)
			results = append(results, DeployResult{Row: row, Status: "planned"})
			continue
		}
		start := time.Now()
		log.Infof("deploying %s from %s", row.Name, row.Template)
		if err := t.clone(ctx, row); err != nil {
			log.Errorf("deploy %s: %v", row.Name, err)
			results = append(results, DeployResult{
				Row: row, Status: "failed", Error: err.Error(),
				Duration: time.Since(start),
			})
			continue
		}
		results = append(results, DeployResult{
			Row: row, Status: "deployed", Duration: time.Since(start),
		})
	}
	return t.outcome(results), nil
}

// cloneVM locates the template and placement targets, then runs the clone
// task to completion.
func (t *DeployTool) cloneVM(ctx context.Context, row PlanRow) error {
	ctx, cancel := context.WithTimeout(ctx, deployTimeout)
	defer cancel()

	client, err := Connect(ctx, t.cfg)
	if err != nil {
		return err
	}
	defer client.Logout(ctx)

	finder := find.NewFinder(client.Client, true)
	dc, err := finder.DefaultDatacenter(ctx)
	if err != nil {
		return fmt.Errorf("find datacenter: %w", err)
	}
	finder.SetDatacenter(dc)

	template, err := finder.VirtualMachine(ctx, row.Template)
	if err != nil {
		return fmt.Errorf("find template %s: %w", row.Template, err)
	}
	cluster, err := finder.ClusterComputeResource(ctx, row.Cluster)
	if err != nil {
		return fmt.Errorf("find cluster %s: %w", row.Cluster, err)
	}
	pool, err := cluster.ResourcePool(ctx)
	if err != nil {
		return fmt.Errorf("resource pool of %s: %w", row.Cluster, err)
	}
	datastore, err := finder.Datastore(ctx, row.Datastore)
	if err != nil {
		return fmt.Errorf("find datastore %s: %w", row.Datastore, err)
	}
	folder, err := finder.DefaultFolder(ctx)
	if err != nil {
		return fmt.Errorf("find vm folder: %w", err)
	}

	poolRef := pool.Reference()
	dsRef := datastore.Reference()
	spec := types.VirtualMachineCloneSpec{
		Location: types.VirtualMachineRelocateSpec{
			Pool:      &poolRef,
			Datastore: &dsRef,
		},
		Config: &types.VirtualMachineConfigSpec{
			NumCPUs:  row.CPU,
			MemoryMB: int64(row.MemoryMB),
		},
		PowerOn: true,
	}
	if row.Network != "" {
		if err := t.attachNetwork(ctx, finder, template, row.Network, spec.Config); err != nil {
			return err
		}
	}

	task, err := template.Clone(ctx, folder, row.Name, spec)
	if err != nil {
		return fmt.Errorf("start clone of %s: %w", row.Name, err)
	}
	if err := task.Wait(ctx); err != nil {
		return fmt.Errorf("clone %s: %w", row.Name, err)
	}
	return nil
}

// attachNetwork rewires the template's first NIC to the requested network.
func (t *DeployTool) attachNetwork(ctx context.Context, finder *find.Finder,
	template *object.VirtualMachine, network string, spec *types.VirtualMachineConfigSpec) error {

	net, err := finder.Network(ctx, network)
	if err != nil {
		return fmt.Errorf("find network %s: %w", network, err)
	}
	backing, err := net.EthernetCardBackingInfo(ctx)
	if err != nil {
		return fmt.Errorf("backing for %s: %w", network, err)
	}

	devices, err := template.Device(ctx)
	if err != nil {
		return fmt.Errorf("devices of template: %w", err)
	}
	nics := devices.SelectByType((*types.VirtualEthernetCard)(nil))
	if len(nics) == 0 {
		return fmt.Errorf("template has no network adapter to rewire")
	}
	nic := nics[0].(types.BaseVirtualEthernetCard).GetVirtualEthernetCard()
	nic.Backing = backing

	spec.DeviceChange = append(spec.DeviceChange, &types.VirtualDeviceConfigSpec{
		Operation: types.VirtualDeviceConfigSpecOperationEdit,
		Device:    nics[0],
	})
	return nil
}

func (t *DeployTool) outcome(results []DeployResult) *pipeline.Outcome {
	table := report.Table{
		Title:  "Deployment Plan",
		Header: []string{"VM", "Template", "Cluster", "Datastore", "vCPU", "Memory MB", "Status", "Duration"},
	}
	var findings []report.Finding
	var failures []report.Failure
	var csvRows [][]string
	var summary report.Summary

	for _, res := range results {
		status := report.StatusOK
		switch res.Status {
		case "failed":
			status = report.StatusCritical
			summary.Critical++
			failures = append(failures, report.Failure{Item: res.Row.Name, Error: res.Error})
			findings = append(findings, report.Finding{
				Severity: report.StatusCritical,
				Title:    fmt.Sprintf("deploy %s failed", res.Row.Name),
				Detail:   res.Error,
			})
		case "planned":
			// dry-run rows count with OK so the breakdown sums to
			// Total; the score ignores them below.
			status = report.StatusInfo
			summary.OK++
		default:
			summary.OK++
		}
		duration := ""
		if res.Duration > 0 {
			duration = res.Duration.Round(time.Second).String()
		}
		table.Rows = append(table.Rows, report.Row{
			Status: status,
			Cells: []string{
				res.Row.Name, res.Row.Template, res.Row.Cluster, res.Row.Datastore,
				strconv.Itoa(int(res.Row.CPU)), strconv.Itoa(int(res.Row.MemoryMB)),
				res.Status, duration,
			},
		})
		csvRows = append(csvRows, []string{
			res.Row.Name, res.Row.Template, res.Row.Cluster, res.Row.Datastore,
			strconv.Itoa(int(res.Row.CPU)), strconv.Itoa(int(res.Row.MemoryMB)),
			res.Row.Network, res.Status, res.Error,
		})
	}

	summary.Total = len(results)
	summary.ScoreLabel = "Success"
	score := 100.0
	if !t.DryRun && len(results) > 0 {
		score = 100 * float64(summary.OK) / float64(len(results))
	}
	summary.Score = score
	summary.Grade = report.Grade(score)

	target := "deployment"
	if t.DryRun {
		target = "deployment (dry run)"
	}
	return &pipeline.Outcome{
		Report: &report.Data{
			Target:   target,
			Summary:  summary,
			Findings: findings,
			Tables:   []report.Table{table},
			Failures: failures,
		},
		CSVHeader: []string{
			"name", "template", "cluster", "datastore", "cpu",
			"memory_mb", "network", "status", "error",
		},
		CSVRows: csvRows,
		Export:  results,
	}
}
