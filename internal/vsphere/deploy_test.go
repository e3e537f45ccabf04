package vsphere

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/infrawisetech/IT-Admin-Toolkit/internal/report"
)

const validPlan = `name,template,datastore,cluster,cpu,memory_mb,network
web01,tpl-ubuntu-22,ds-ssd-01,prod-cluster,4,8192,vlan-100
web02,tpl-ubuntu-22,ds-ssd-01,prod-cluster,4,8192,vlan-100
db01,tpl-win2022,ds-ssd-02,prod-cluster,8,32768,
`

func writePlan(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "plan.csv")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestParsePlan(t *testing.T) {
	rows, err := parsePlan(strings.NewReader(validPlan))
	if err != nil {
		t.Fatalf("parsePlan: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("got %d rows, want 3", len(rows))
	}
	if rows[0].Name != "web01" || rows[0].CPU != 4 || rows[0].MemoryMB != 8192 {
		t.Errorf("unexpected first row: %+v", rows[0])
	}
	if rows[2].Network != "" {
		t.Errorf("Network = %q, want empty", rows[2].Network)
	}
}

func TestParsePlanErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			"missing column",
			"name,template,datastore,cluster,cpu\nweb01,t,d,c,4\n",
			"missing required column",
		},
		{
			"empty name",
			"name,template,datastore,cluster,cpu,memory_mb\n,t,d,c,4,8192\n",
			"required",
		},
		{
			"bad cpu",
			"name,template,datastore,cluster,cpu,memory_mb\nweb01,t,d,c,zero,8192\n",
			"invalid cpu",
		},
		{
			"zero memory",
			"name,template,datastore,cluster,cpu,memory_mb\nweb01,t,d,c,4,0\n",
			"invalid memory_mb",
		},
		{
			"duplicate name",
			"name,template,datastore,cluster,cpu,memory_mb\nweb01,t,d,c,4,8192\nweb01,t,d,c,4,8192\n",
			"duplicate",
		},
		{
			"no rows",
			"name,template,datastore,cluster,cpu,memory_mb\n",
			"no rows",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parsePlan(strings.NewReader(tt.content))
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %v, want substring %q", err, tt.wantErr)
			}
		})
	}
}

func TestDeployCollectDryRun(t *testing.T) {
	tool := NewDeploy(testVCConfig())
	tool.PlanPath = writePlan(t, validPlan)
	tool.DryRun = true
	tool.clone = func(context.Context, PlanRow) error {
		t.Fatal("clone must not run during a dry run")
		return nil
	}

	out, err := tool.Collect(context.Background(), quietLog())
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if out.Report.Summary.Total != 3 || out.Report.Summary.Critical != 0 {
		t.Errorf("summary = %+v", out.Report.Summary)
	}
	if out.Report.Summary.OK != 3 {
		t.Errorf("OK = %d, want planned rows counted", out.Report.Summary.OK)
	}
	if out.Report.Summary.Score != 100 {
		t.Errorf("Score = %v, want 100 on dry run", out.Report.Summary.Score)
	}
	for _, row := range out.Report.Tables[0].Rows {
		if row.Cells[6] != "planned" {
			t.Errorf("status = %q, want planned", row.Cells[6])
		}
	}
}

func TestDeployCollectAbsorbsFailures(t *testing.T) {
	tool := NewDeploy(testVCConfig())
	tool.PlanPath = writePlan(t, validPlan)
	tool.clone = func(_ context.Context, row PlanRow) error {
		if row.Name == "web02" {
			return errors.New("insufficient disk space on datastore")
		}
		return nil
	}

	out, err := tool.Collect(context.Background(), quietLog())
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if out.Report.Summary.OK != 2 || out.Report.Summary.Critical != 1 {
		t.Errorf("summary = %+v", out.Report.Summary)
	}
	if len(out.Report.Failures) != 1 || out.Report.Failures[0].Item != "web02" {
		t.Errorf("Failures = %+v", out.Report.Failures)
	}
	var found bool
	for _, f := range out.Report.Findings {
		if f.Severity == report.StatusCritical && strings.Contains(f.Title, "web02") {
			found = true
		}
	}
	if !found {
		t.Errorf("no critical finding for web02: %+v", out.Report.Findings)
	}
	// 2 of 3 deployed
	if got := out.Report.Summary.Score; got < 66 || got > 67 {
		t.Errorf("Score = %v, want ~66.7", got)
	}
}

func TestDeployCollectBadPlan(t *testing.T) {
	tool := NewDeploy(testVCConfig())
	tool.PlanPath = writePlan(t, "not,a,plan\n1,2,3\n")
	if _, err := tool.Collect(context.Background(), quietLog()); err == nil {
		t.Fatal("expected plan validation error")
	}
}
