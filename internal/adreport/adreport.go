// Package adreport audits Active Directory user accounts over LDAP: stale
// accounts and passwords, lockouts, never-expiring passwords, and privileged
// group membership.
package adreport

import (
	"context"
	"crypto/tls"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-ldap/ldap/v3"
	"github.com/sirupsen/logrus"

	"github.com/infrawisetech/IT-Admin-Toolkit/internal/config"
	"github.com/infrawisetech/IT-Admin-Toolkit/internal/pipeline"
	"github.com/infrawisetech/IT-Admin-Toolkit/internal/report"
)

// userAccountControl bits.
const (
	uacDisabled             = 0x0002
	uacPasswordNeverExpires = 0x10000
)

var userAttributes = []string{
	"sAMAccountName", "displayName", "userAccountControl",
	"pwdLastSet", "lastLogonTimestamp", "lockoutTime", "whenCreated",
}

// Conn is the slice of *ldap.Conn the report uses; tests substitute a fake.
type Conn interface {
	Search(*ldap.SearchRequest) (*ldap.SearchResult, error)
	Close() error
}

// Dialer opens an authenticated directory connection.
type Dialer func(cfg config.ADConfig) (Conn, error)

// Tool is the Active Directory account report.
type Tool struct {
	cfg  config.ADConfig
	dial Dialer
	now  func() time.Time
}

// New creates the report against a live directory.
func New(cfg config.ADConfig) *Tool {
	return &Tool{cfg: cfg, dial: dialLDAP, now: time.Now}
}

func (t *Tool) Name() string  { return "adreport" }
func (t *Tool) Title() string { return "Active Directory Account Report" }

func dialLDAP(cfg config.ADConfig) (Conn, error) {
	scheme := "ldap"
	if cfg.UseTLS {
		scheme = "ldaps"
	}
	addr := fmt.Sprintf("%s://%s:%d", scheme, cfg.Host, cfg.Port)

	var opts []ldap.DialOpt
	if cfg.UseTLS {
		opts = append(opts, ldap.DialWithTLSConfig(&tls.Config{ServerName: cfg.Host}))
	}
	conn, err := ldap.DialURL(addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", addr, err)
	}
	if err := conn.Bind(cfg.BindDN, cfg.Password); err != nil {
		conn.Close()
		return nil, fmt.Errorf("bind as %s: %w", cfg.BindDN, err)
	}
	return conn, nil
}

// Account is one audited user record.
type Account struct {
	SAMAccountName  string    `json:"sam_account_name"`
	DisplayName     string    `json:"display_name,omitempty"`
	Enabled         bool      `json:"enabled"`
	PasswordExpires bool      `json:"password_expires"`
	LockedOut       bool      `json:"locked_out"`
	PwdLastSet      time.Time `json:"pwd_last_set,omitempty"`
	LastLogon       time.Time `json:"last_logon,omitempty"`
	WhenCreated     time.Time `json:"when_created,omitempty"`
	StalePassword   bool      `json:"stale_password"`
	StaleLogon      bool      `json:"stale_logon"`
	Privileged      []string  `json:"privileged,omitempty"`
}

// Issues lists why the account was flagged; empty means clean.
func (a Account) Issues() []string {
	var issues []string
	if !a.Enabled {
		issues = append(issues, "disabled")
	}
	if a.LockedOut {
		issues = append(issues, "locked out")
	}
	if !a.PasswordExpires {
		issues = append(issues, "password never expires")
	}
	if a.StalePassword {
		issues = append(issues, "stale password")
	}
	if a.StaleLogon {
		issues = append(issues, "stale logon")
	}
	return issues
}

func (a Account) severity() report.Status {
	issues := a.Issues()
	if len(issues) == 0 {
		return report.StatusOK
	}
	// A flagged account that also sits in a privileged group is the
	// headline problem of this report.
	if len(a.Privileged) > 0 {
		return report.StatusCritical
	}
	if !a.Enabled {
		return report.StatusInfo
	}
	return report.StatusWarning
}

// Collect implements pipeline.Tool.
func (t *Tool) Collect(ctx context.Context, log *logrus.Logger) (*pipeline.Outcome, error) {
	conn, err := t.dial(t.cfg)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	accounts, err := t.fetchAccounts(conn)
	if err != nil {
		return nil, err
	}
	log.Infof("fetched %d user account(s) from %s", len(accounts), t.cfg.BaseDN)

	var failures []report.Failure
	for _, group := range t.cfg.PrivilegedGroups {
		members, err := t.fetchGroupMembers(conn, group)
		if err != nil {
			failures = append(failures, report.Failure{Item: group, Error: err.Error()})
			log.Warnf("group %s: %v", group, err)
			continue
		}
		for i := range accounts {
			if members[strings.ToLower(accounts[i].SAMAccountName)] {
				accounts[i].Privileged = append(accounts[i].Privileged, group)
			}
		}
	}

	return t.outcome(accounts, failures), nil
}

func (t *Tool) fetchAccounts(conn Conn) ([]Account, error) {
	req := ldap.NewSearchRequest(
		t.cfg.BaseDN,
		ldap.ScopeWholeSubtree, ldap.NeverDerefAliases, 0, 0, false,
		"(&(objectCategory=person)(objectClass=user))",
		userAttributes,
		nil,
	)
	res, err := conn.Search(req)
	if err != nil {
		return nil, fmt.Errorf("search users under %s: %w", t.cfg.BaseDN, err)
	}

	staleBefore := t.now().AddDate(0, 0, -t.cfg.StaleDays)
	accounts := make([]Account, 0, len(res.Entries))
	for _, entry := range res.Entries {
		a := Account{
			SAMAccountName: entry.GetAttributeValue("sAMAccountName"),
			DisplayName:    entry.GetAttributeValue("displayName"),
		}
		uac, _ := strconv.Atoi(entry.GetAttributeValue("userAccountControl"))
		a.Enabled = uac&uacDisabled == 0
		a.PasswordExpires = uac&uacPasswordNeverExpires == 0

		lockout, _ := strconv.ParseInt(entry.GetAttributeValue("lockoutTime"), 10, 64)
		a.LockedOut = lockout != 0

		a.PwdLastSet = filetimeToTime(entry.GetAttributeValue("pwdLastSet"))
		a.LastLogon = filetimeToTime(entry.GetAttributeValue("lastLogonTimestamp"))
		if created, err := time.Parse("20060102150405.0Z", entry.GetAttributeValue("whenCreated")); err == nil {
			a.WhenCreated = created
		}

		if a.Enabled {
			a.StalePassword = !a.PwdLastSet.IsZero() && a.PwdLastSet.Before(staleBefore)
			a.StaleLogon = !a.LastLogon.IsZero() && a.LastLogon.Before(staleBefore)
		}
		accounts = append(accounts, a)
	}
	sort.Slice(accounts, func(i, j int) bool {
		return accounts[i].SAMAccountName < accounts[j].SAMAccountName
	})
	return accounts, nil
}

// fetchGroupMembers resolves a group's direct and nested members using the
// matching-rule-in-chain OID so nested group membership is flattened
// server-side.
func (t *Tool) fetchGroupMembers(conn Conn, group string) (map[string]bool, error) {
	groupDN, err := t.resolveGroupDN(conn, group)
	if err != nil {
		return nil, err
	}
	req := ldap.NewSearchRequest(
		t.cfg.BaseDN,
		ldap.ScopeWholeSubtree, ldap.NeverDerefAliases, 0, 0, false,
		fmt.Sprintf("(&(objectClass=user)(memberOf:1.2.840.113556.1.4.1941:=%s))",
			ldap.EscapeFilter(groupDN)),
		[]string{"sAMAccountName"},
		nil,
	)
	res, err := conn.Search(req)
	if err != nil {
		return nil, fmt.Errorf("search members of %s: %w", group, err)
	}
	members := make(map[string]bool, len(res.Entries))
	for _, entry := range res.Entries {
		members[strings.ToLower(entry.GetAttributeValue("sAMAccountName"))] = true
	}
	return members, nil
}

func (t *Tool) resolveGroupDN(conn Conn, group string) (string, error) {
	req := ldap.NewSearchRequest(
		t.cfg.BaseDN,
		ldap.ScopeWholeSubtree, ldap.NeverDerefAliases, 1, 0, false,
		fmt.Sprintf("(&(objectClass=group)(cn=%s))", ldap.EscapeFilter(group)),
		[]string{"dn"},
		nil,
	)
	res, err := conn.Search(req)
	if err != nil {
		return "", fmt.Errorf("resolve group %s: %w", group, err)
	}
	if len(res.Entries) == 0 {
		return "", fmt.Errorf("group %s not found under %s", group, t.cfg.BaseDN)
	}
	return res.Entries[0].DN, nil
}

// filetimeToTime converts a Windows FILETIME string (100ns intervals since
// 1601-01-01) to a time.Time. Zero or unset values return the zero time.
func filetimeToTime(s string) time.Time {
	ft, err := strconv.ParseInt(s, 10, 64)
	if err != nil || ft == 0 {
		return time.Time{}
	}
	const epochDelta = 11644473600 // seconds between 1601 and 1970
	secs := ft/10_000_000 - epochDelta
	return time.Unix(secs, 0).UTC()
}

func formatDay(t time.Time) string {
	if t.IsZero() {
		return "never"
	}
	return t.Format("2006-01-02")
}

func (t *Tool) outcome(accounts []Account, failures []report.Failure) *pipeline.Outcome {
	table := report.Table{
		Title: "User Accounts",
		Header: []string{
			"Account", "Display Name", "Enabled", "Last Logon",
			"Password Set", "Privileged", "Issues",
		},
	}
	var findings []report.Finding
	var csvRows [][]string
	enabled, clean := 0, 0
	var summary report.Summary

	for _, a := range accounts {
		sev := a.severity()
		issues := strings.Join(a.Issues(), ", ")
		table.Rows = append(table.Rows, report.Row{
			Status: sev,
			Cells: []string{
				a.SAMAccountName, a.DisplayName,
				strconv.FormatBool(a.Enabled),
				formatDay(a.LastLogon), formatDay(a.PwdLastSet),
				strings.Join(a.Privileged, ", "), issues,
			},
		})
		csvRows = append(csvRows, []string{
			a.SAMAccountName, a.DisplayName,
			strconv.FormatBool(a.Enabled),
			strconv.FormatBool(a.LockedOut),
			strconv.FormatBool(!a.PasswordExpires),
			formatDay(a.PwdLastSet), formatDay(a.LastLogon),
			strings.Join(a.Privileged, ";"), issues,
		})

		switch sev {
		case report.StatusCritical:
			summary.Critical++
			findings = append(findings, report.Finding{
				Severity: report.StatusCritical,
				Title:    fmt.Sprintf("privileged account %s: %s", a.SAMAccountName, issues),
				Detail:   fmt.Sprintf("member of %s", strings.Join(a.Privileged, ", ")),
			})
		case report.StatusWarning:
			summary.Warning++
		default:
			// OK and informational rows (disabled accounts) both land
			// here so the counts sum to Total.
			summary.OK++
		}
		if a.Enabled {
			enabled++
			if len(a.Issues()) == 0 {
				clean++
			}
		}
	}

	stale := 0
	for _, a := range accounts {
		if a.StaleLogon {
			stale++
		}
	}
	if stale > 0 {
		findings = append(findings, report.Finding{
			Severity: report.StatusWarning,
			Title:    fmt.Sprintf("%d account(s) with no logon in %d days", stale, t.cfg.StaleDays),
		})
	}

	score := 100.0
	if enabled > 0 {
		score = 100 * float64(clean) / float64(enabled)
	}
	summary.Total = len(accounts)
	summary.ScoreLabel = "Hygiene"
	summary.Score = score
	summary.Grade = report.Grade(score)

	return &pipeline.Outcome{
		Report: &report.Data{
			Target:   t.cfg.Host,
			Summary:  summary,
			Findings: findings,
			Tables:   []report.Table{table},
			Failures: failures,
		},
		CSVHeader: []string{
			"account", "display_name", "enabled", "locked_out",
			"password_never_expires", "pwd_last_set", "last_logon",
			"privileged_groups", "issues",
		},
		CSVRows: csvRows,
		Export:  accounts,
	}
}
