package vsphere

import (
	"context"
	"errors"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/infrawisetech/IT-Admin-Toolkit/internal/config"
	"github.com/infrawisetech/IT-Admin-Toolkit/internal/report"
)

func quietLog() *logrus.Logger {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return log
}

func testVCConfig() config.VCenterConfig {
	return config.VCenterConfig{
		URL:          "https://vcenter.corp.example.com/sdk",
		User:         "svc-report",
		Password:     "x",
		CPUThreshold: 8,
		MemThreshold: 32768,
	}
}

func TestClassify(t *testing.T) {
	tool := NewReport(testVCConfig())
	tests := []struct {
		name string
		vm   VM
		want report.Status
	}{
		{"healthy", VM{PowerState: "poweredOn", NumCPU: 4, MemoryMB: 8192, ToolsStatus: "toolsOk"}, report.StatusOK},
		{"powered off", VM{PowerState: "poweredOff", NumCPU: 16}, report.StatusInfo},
		{"cpu over threshold", VM{PowerState: "poweredOn", NumCPU: 16, MemoryMB: 8192, ToolsStatus: "toolsOk"}, report.StatusWarning},
		{"memory over threshold", VM{PowerState: "poweredOn", NumCPU: 4, MemoryMB: 65536, ToolsStatus: "toolsOk"}, report.StatusWarning},
		{"tools not running", VM{PowerState: "poweredOn", NumCPU: 2, MemoryMB: 4096, ToolsStatus: "toolsNotRunning"}, report.StatusWarning},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, _ := tool.classify(tt.vm)
			if got != tt.want {
				t.Errorf("classify = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestReportCollect(t *testing.T) {
	inventory := []VM{
		{Name: "web01", PowerState: "poweredOn", Guest: "Ubuntu Linux (64-bit)", NumCPU: 4, MemoryMB: 8192, StorageBytes: 50 << 30, Host: "esx01", ToolsStatus: "toolsOk"},
		{Name: "db01", PowerState: "poweredOn", Guest: "Windows Server 2022", NumCPU: 16, MemoryMB: 65536, StorageBytes: 500 << 30, Host: "esx02", ToolsStatus: "toolsOk"},
		{Name: "old-app", PowerState: "poweredOff", Guest: "Windows Server 2012", NumCPU: 2, MemoryMB: 4096, StorageBytes: 100 << 30, Host: "esx01"},
	}
	tool := NewReport(testVCConfig())
	tool.fetch = func(context.Context) ([]VM, error) { return inventory, nil }

	out, err := tool.Collect(context.Background(), quietLog())
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if out.Report.Summary.Total != 3 {
		t.Errorf("Total = %d, want 3", out.Report.Summary.Total)
	}
	// db01 is over both thresholds; powered-off old-app counts with OK.
	if out.Report.Summary.Warning != 1 || out.Report.Summary.OK != 2 {
		t.Errorf("Warning = %d OK = %d, want 1 and 2", out.Report.Summary.Warning, out.Report.Summary.OK)
	}
	s := out.Report.Summary
	if s.OK+s.Warning+s.Critical != s.Total {
		t.Errorf("counts %d+%d+%d do not sum to total %d", s.OK, s.Warning, s.Critical, s.Total)
	}
	// web01 is the only healthy VM of the two powered on.
	if out.Report.Summary.Score != 50 {
		t.Errorf("Score = %v, want 50", out.Report.Summary.Score)
	}
	if len(out.Report.Tables) != 2 {
		t.Fatalf("Tables = %d, want 2", len(out.Report.Tables))
	}
	if len(out.CSVRows) != 3 {
		t.Errorf("CSVRows = %d, want 3", len(out.CSVRows))
	}
}

func TestReportCollectEmptyInventory(t *testing.T) {
	tool := NewReport(testVCConfig())
	tool.fetch = func(context.Context) ([]VM, error) { return nil, nil }

	out, err := tool.Collect(context.Background(), quietLog())
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if out.Report.Summary.Score != 100 {
		t.Errorf("Score = %v, want 100 for empty inventory", out.Report.Summary.Score)
	}
}

func TestReportCollectFetchError(t *testing.T) {
	tool := NewReport(testVCConfig())
	tool.fetch = func(context.Context) ([]VM, error) {
		return nil, errors.New("login failed")
	}
	if _, err := tool.Collect(context.Background(), quietLog()); err == nil {
		t.Fatal("expected fetch error")
	}
}
