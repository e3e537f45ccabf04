package firewall

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/infrawisetech/IT-Admin-Toolkit/internal/config"
)

func testAuditor() *Auditor {
	return New("rules.csv", config.FirewallConfig{RiskyPorts: []int{23, 445, 3389}})
}

func rule(pos int, name, action, src, dst, port, proto string) Rule {
	return Rule{
		Name: name, Action: action, Source: src, Destination: dst,
		Port: port, Protocol: proto, Enabled: true, Comment: "ticket-1", Position: pos,
	}
}

func issuesByCategory(issues []Issue) map[string]int {
	m := make(map[string]int)
	for _, i := range issues {
		m[i.Category]++
	}
	return m
}

func TestAudit_Duplicates(t *testing.T) {
	rules := []Rule{
		rule(1, "web-in", "accept", "10.0.0.0/24", "10.0.1.5", "443", "tcp"),
		rule(2, "web-in-copy", "accept", "10.0.0.0/24", "10.0.1.5", "443", "tcp"),
		rule(3, "web-in-drop", "drop", "10.0.0.0/24", "10.0.1.5", "443", "tcp"),
	}
	cats := issuesByCategory(testAuditor().Audit(rules))
	if cats["duplicate"] != 1 {
		t.Errorf("duplicate count = %d, want 1 (same tuple+action only)", cats["duplicate"])
	}
}

func TestAudit_Shadowed(t *testing.T) {
	rules := []Rule{
		rule(1, "drop-all-smb", "drop", "any", "any", "445", "tcp"),
		rule(2, "allow-smb-fileserver", "accept", "10.0.0.0/24", "10.0.1.10", "445", "tcp"),
		rule(3, "allow-https", "accept", "any", "10.0.1.20", "443", "tcp"),
	}
	issues := testAuditor().Audit(rules)
	cats := issuesByCategory(issues)
	if cats["shadowed"] != 1 {
		t.Fatalf("shadowed count = %d, want 1; issues = %+v", cats["shadowed"], issues)
	}
	for _, i := range issues {
		if i.Category == "shadowed" && i.Rule != "allow-smb-fileserver" {
			t.Errorf("shadowed rule = %q, want allow-smb-fileserver", i.Rule)
		}
	}
}

func TestAudit_AnyAnyAccept(t *testing.T) {
	rules := []Rule{
		rule(1, "permit-everything", "accept", "any", "any", "any", "any"),
	}
	cats := issuesByCategory(testAuditor().Audit(rules))
	if cats["any_any_accept"] != 1 {
		t.Errorf("any_any_accept count = %d, want 1", cats["any_any_accept"])
	}
}

func TestAudit_RiskyPortExposure(t *testing.T) {
	rules := []Rule{
		rule(1, "rdp-open", "accept", "any", "10.0.1.30", "3389", "tcp"),
		rule(2, "rdp-internal", "accept", "10.0.0.0/24", "10.0.1.30", "3389", "tcp"),
	}
	cats := issuesByCategory(testAuditor().Audit(rules))
	if cats["risky_port_exposure"] != 1 {
		t.Errorf("risky_port_exposure count = %d, want 1 (any-source only)", cats["risky_port_exposure"])
	}
}

func TestAudit_Hygiene(t *testing.T) {
	disabled := rule(1, "old-rule", "accept", "10.0.0.1", "10.0.0.2", "80", "tcp")
	disabled.Enabled = false
	uncommented := rule(2, "mystery", "accept", "10.0.0.1", "10.0.0.3", "8080", "tcp")
	uncommented.Comment = ""

	cats := issuesByCategory(testAuditor().Audit([]Rule{disabled, uncommented}))
	if cats["disabled_rule"] != 1 || cats["missing_comment"] != 1 {
		t.Errorf("hygiene categories = %v", cats)
	}
}

func TestScore_DeductionsAndFloor(t *testing.T) {
	issues := []Issue{
		{Category: "any_any_accept", Points: deductAnyAny},
		{Category: "shadowed", Points: deductShadowed},
	}
	if got := Score(issues); got != 77 {
		t.Errorf("Score = %v, want 77", got)
	}

	var many []Issue
	for i := 0; i < 20; i++ {
		many = append(many, Issue{Points: deductAnyAny})
	}
	if got := Score(many); got != 0 {
		t.Errorf("Score floor = %v, want 0", got)
	}

	if got := Score(nil); got != 100 {
		t.Errorf("clean score = %v, want 100", got)
	}
}

func TestLoadRules_CSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.csv")
	content := `name,action,source,destination,port,protocol,enabled,comment
allow-https,accept,any,10.0.1.20,443,tcp,true,web farm
old-telnet,accept,any,10.0.1.9,23,tcp,false,legacy
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	rules, err := LoadRules(path)
	if err != nil {
		t.Fatalf("LoadRules() error = %v", err)
	}
	if len(rules) != 2 {
		t.Fatalf("got %d rules, want 2", len(rules))
	}
	if rules[0].Name != "allow-https" || !rules[0].Enabled {
		t.Errorf("rule 0 = %+v", rules[0])
	}
	if rules[1].Enabled {
		t.Error("rule 1 should be disabled")
	}
	if rules[1].Position != 2 {
		t.Errorf("rule 1 position = %d, want 2", rules[1].Position)
	}
}

func TestLoadRules_JSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.json")
	content := `[
	  {"name":"allow-dns","action":"accept","source":"10.0.0.0/16","destination":"10.0.0.53","port":"53","protocol":"udp","enabled":true,"comment":"resolver"}
	]`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	rules, err := LoadRules(path)
	if err != nil {
		t.Fatalf("LoadRules() error = %v", err)
	}
	if len(rules) != 1 || rules[0].Protocol != "udp" {
		t.Errorf("rules = %+v", rules)
	}
	if rules[0].Position != 1 {
		t.Errorf("position = %d, want 1", rules[0].Position)
	}
}

func TestLoadRules_MissingColumn(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.csv")
	if err := os.WriteFile(path, []byte("name,action\nx,accept\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadRules(path); err == nil {
		t.Fatal("LoadRules() should fail on missing columns")
	}
}

func TestOutcome_ComplianceReport(t *testing.T) {
	a := testAuditor()
	rules := []Rule{
		rule(1, "permit-everything", "accept", "any", "any", "any", "any"),
		rule(2, "allow-https", "accept", "any", "10.0.1.20", "443", "tcp"),
	}
	issues := a.Audit(rules)
	out := a.outcome(rules, issues, Score(issues))

	if out.Report.Summary.ScoreLabel != "Compliance" {
		t.Errorf("score label = %q", out.Report.Summary.ScoreLabel)
	}
	if out.Report.Summary.Score != 85 {
		t.Errorf("score = %v, want 85 (one any/any deduction)", out.Report.Summary.Score)
	}
	if out.Report.Banner() != "red" {
		t.Errorf("banner = %q, want red", out.Report.Banner())
	}
	if len(out.CSVRows) != 2 {
		t.Errorf("csv rows = %d, want 2", len(out.CSVRows))
	}
}
