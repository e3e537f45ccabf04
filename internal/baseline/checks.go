package baseline

import (
	"regexp"

	"github.com/infrawisetech/IT-Admin-Toolkit/internal/report"
)

// windowsChecks returns the Windows server baseline controls. Commands are
// the classic console tools so the checks work on anything from 2012R2 up.
func windowsChecks() []Check {
	return []Check{
		{
			ID:        "win_password_min_length",
			Title:     "Minimum password length >= 12",
			Benchmark: "CIS 1.1.4",
			Severity:  report.StatusCritical,
			Points:    10,
			Command:   "net",
			Args:      []string{"accounts"},
			Expect:    regexp.MustCompile(`(?i)minimum password length[^\d]*(1[2-9]|[2-9]\d)`),
		},
		{
			ID:           "win_password_max_age",
			Title:        "Maximum password age <= 365 days",
			Benchmark:    "CIS 1.1.2",
			Severity:     report.StatusWarning,
			Points:       5,
			Command:      "net",
			Args:         []string{"accounts"},
			Expect:       regexp.MustCompile(`(?i)maximum password age[^\d]*unlimited`),
			ExpectAbsent: true,
		},
		{
			ID:           "win_lockout_threshold",
			Title:        "Account lockout threshold configured",
			Benchmark:    "CIS 1.2.2",
			Severity:     report.StatusWarning,
			Points:       5,
			Command:      "net",
			Args:         []string{"accounts"},
			Expect:       regexp.MustCompile(`(?i)lockout threshold[^\d\n]*never`),
			ExpectAbsent: true,
		},
		{
			ID:        "win_audit_logon",
			Title:     "Logon events audited (success and failure)",
			Benchmark: "CIS 17.5.1",
			Severity:  report.StatusCritical,
			Points:    10,
			Command:   "auditpol",
			Args:      []string{"/get", "/subcategory:Logon"},
			Expect:    regexp.MustCompile(`(?i)success and failure`),
		},
		{
			ID:           "win_audit_account_mgmt",
			Title:        "Account management audited",
			Benchmark:    "CIS 17.2.1",
			Severity:     report.StatusWarning,
			Points:       5,
			Command:      "auditpol",
			Args:         []string{"/get", "/category:Account Management"},
			Expect:       regexp.MustCompile(`(?i)no auditing`),
			ExpectAbsent: true,
		},
		{
			ID:           "win_firewall_enabled",
			Title:        "Windows Firewall enabled on all profiles",
			Benchmark:    "CIS 9.1.1",
			Severity:     report.StatusCritical,
			Points:       10,
			Command:      "netsh",
			Args:         []string{"advfirewall", "show", "allprofiles", "state"},
			Expect:       regexp.MustCompile(`(?i)\bOFF\b`),
			ExpectAbsent: true,
		},
		{
			ID:        "win_smb1_disabled",
			Title:     "SMBv1 server disabled",
			Benchmark: "STIG V-73299",
			Severity:  report.StatusCritical,
			Points:    10,
			Command:   "reg",
			Args: []string{"query",
				`HKLM\SYSTEM\CurrentControlSet\Services\LanmanServer\Parameters`,
				"/v", "SMB1"},
			Expect: regexp.MustCompile(`SMB1\s+REG_DWORD\s+0x0`),
		},
		{
			ID:        "win_guest_disabled",
			Title:     "Guest account disabled",
			Benchmark: "CIS 2.3.1.2",
			Severity:  report.StatusCritical,
			Points:    10,
			Command:   "net",
			Args:      []string{"user", "Guest"},
			Expect:    regexp.MustCompile(`(?i)account active\s+no`),
		},
		{
			ID:           "win_telnet_absent",
			Title:        "Telnet service not installed",
			Benchmark:    "STIG V-1073",
			Severity:     report.StatusWarning,
			Points:       5,
			Command:      "sc",
			Args:         []string{"query", "TlntSvr"},
			Expect:       regexp.MustCompile(`(?i)SERVICE_NAME`),
			ExpectAbsent: true,
		},
		{
			ID:              "win_autoplay_disabled",
			Title:           "AutoPlay disabled",
			Benchmark:       "CIS 18.9.8.1",
			Severity:        report.StatusInfo,
			Points:          2,
			WorkstationOnly: true,
			Command:         "reg",
			Args: []string{"query",
				`HKLM\SOFTWARE\Microsoft\Windows\CurrentVersion\Policies\Explorer`,
				"/v", "NoDriveTypeAutoRun"},
			Expect: regexp.MustCompile(`NoDriveTypeAutoRun\s+REG_DWORD\s+0xff`),
		},
	}
}

// linuxChecks returns the Linux server baseline controls.
func linuxChecks() []Check {
	return []Check{
		{
			ID:        "lin_ssh_no_root_login",
			Title:     "SSH root login disabled",
			Benchmark: "CIS 5.2.8",
			Severity:  report.StatusCritical,
			Points:    10,
			Command:   "sshd",
			Args:      []string{"-T"},
			Expect:    regexp.MustCompile(`(?m)^permitrootlogin (no|prohibit-password)$`),
		},
		{
			ID:        "lin_ssh_no_password_auth",
			Title:     "SSH password authentication disabled",
			Benchmark: "CIS 5.2.11",
			Severity:  report.StatusWarning,
			Points:    5,
			Command:   "sshd",
			Args:      []string{"-T"},
			Expect:    regexp.MustCompile(`(?m)^passwordauthentication no$`),
		},
		{
			ID:        "lin_pass_max_days",
			Title:     "Password expiry <= 365 days",
			Benchmark: "CIS 5.4.1.1",
			Severity:  report.StatusWarning,
			Points:    5,
			Command:   "grep",
			Args:      []string{"-E", "^PASS_MAX_DAYS", "/etc/login.defs"},
			Expect:    regexp.MustCompile(`PASS_MAX_DAYS\s+(36[0-5]|3[0-5]\d|[12]?\d{1,2})\b`),
		},
		{
			ID:        "lin_shadow_perms",
			Title:     "/etc/shadow not world-readable",
			Benchmark: "CIS 6.1.3",
			Severity:  report.StatusCritical,
			Points:    10,
			Command:   "stat",
			Args:      []string{"-c", "%a", "/etc/shadow"},
			Expect:    regexp.MustCompile(`^(0|600|640|400)\s*$`),
		},
		{
			ID:           "lin_no_empty_passwords",
			Title:        "No accounts with empty passwords",
			Benchmark:    "CIS 6.2.1",
			Severity:     report.StatusCritical,
			Points:       10,
			Command:      "awk",
			Args:         []string{"-F:", `($2 == "") {print $1}`, "/etc/shadow"},
			Expect:       regexp.MustCompile(`\S`),
			ExpectAbsent: true,
		},
		{
			ID:        "lin_sudo_log",
			Title:     "sudo logging configured",
			Benchmark: "CIS 5.3.3",
			Severity:  report.StatusInfo,
			Points:    2,
			Command:   "grep",
			Args:      []string{"-r", "logfile", "/etc/sudoers", "/etc/sudoers.d"},
			Expect:    regexp.MustCompile(`logfile`),
		},
		{
			ID:        "lin_firewall_active",
			Title:     "Host firewall active",
			Benchmark: "CIS 3.5",
			Severity:  report.StatusCritical,
			Points:    10,
			Command:   "sh",
			Args:      []string{"-c", "ufw status 2>/dev/null; firewall-cmd --state 2>/dev/null; nft list ruleset 2>/dev/null | head -1"},
			Expect:    regexp.MustCompile(`(?i)(active|running|table)`),
		},
		{
			ID:           "lin_telnet_absent",
			Title:        "telnet server not installed",
			Benchmark:    "CIS 2.2.18",
			Severity:     report.StatusWarning,
			Points:       5,
			Command:      "sh",
			Args:         []string{"-c", "command -v in.telnetd telnetd || true"},
			Expect:       regexp.MustCompile(`telnetd`),
			ExpectAbsent: true,
		},
		{
			ID:        "lin_core_dumps_restricted",
			Title:     "Core dumps restricted",
			Benchmark: "CIS 1.5.1",
			Severity:  report.StatusInfo,
			Points:    2,
			Command:   "sysctl",
			Args:      []string{"fs.suid_dumpable"},
			Expect:    regexp.MustCompile(`fs\.suid_dumpable\s*=\s*0`),
		},
	}
}
