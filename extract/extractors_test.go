package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"eventrecon/core"
)

type extractorCase struct {
	name     string
	fn       Extractor
	evidence string
	want     string
	absent   bool
}

func runExtractorCases(t *testing.T, cases []extractorCase) {
	t.Helper()
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := tc.fn(&core.LowLevelEvent{Evidence: tc.evidence})
			if tc.absent {
				assert.False(t, ok)
				assert.Empty(t, got)
				return
			}
			assert.True(t, ok)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestEventGetters(t *testing.T) {
	ev := &core.LowLevelEvent{
		Timestamp: "2023-05-01T10:00:00Z",
		Type:      "Chrome History",
		Path:      "/home/u/History",
		Evidence:  "https://example.com",
		Plugin:    "chrome_27_history",
	}
	for name, want := range map[string]string{
		"get_file_path":   ev.Path,
		"get_timestamp":   ev.Timestamp,
		"get_event_type":  ev.Type,
		"get_plugin_name": ev.Plugin,
		"get_evidence":    ev.Evidence,
	} {
		got, ok, err := Builtin().Extract(name, ev)
		assert.NoError(t, err, name)
		assert.True(t, ok, name)
		assert.Equal(t, want, got, name)
	}

	_, ok := FilePath(&core.LowLevelEvent{})
	assert.False(t, ok)
}

func TestBrowser(t *testing.T) {
	tests := map[string]string{
		"firefox_history":   "Mozilla Firefox",
		"Chrome_27_History": "Chromium based Browser",
		"msie_webcache":     unknownBrowser,
		"":                  unknownBrowser,
	}
	for plugin, want := range tests {
		got, ok := Browser(&core.LowLevelEvent{Plugin: plugin})
		assert.True(t, ok)
		assert.Equal(t, want, got, plugin)
	}
}

func TestWebExtractors(t *testing.T) {
	runExtractorCases(t, []extractorCase{
		{name: "url before title", fn: URL, evidence: "https://www.example.com/a?b=c (Example) [count: 1]", want: "https://www.example.com/a?b=c"},
		{name: "url embedded", fn: URL, evidence: `visited "http://evil.test/x" today`, want: "http://evil.test/x"},
		{name: "url missing", fn: URL, evidence: "no link here", absent: true},
		{name: "domain strips www", fn: Domain, evidence: "https://www.example.com:8443/path (Example)", want: "example.com:8443"},
		{name: "domain without scheme", fn: Domain, evidence: "www.example.com/path", absent: true},
		{name: "youtube title", fn: YouTubeVideoTitle, evidence: "https://www.youtube.com/watch?v=abc (Never Gonna Give You Up - YouTube)", want: "Never Gonna Give You Up - YouTube"},
		{name: "youtube no title", fn: YouTubeVideoTitle, evidence: "https://www.youtube.com/watch?v=abc", absent: true},
		{name: "google percent escapes", fn: GoogleSearchTerm, evidence: "https://www.google.com/search?client=firefox&q=%22exact%20phrase%22&ie=utf-8", want: `"exact phrase"`},
		{name: "google no query", fn: GoogleSearchTerm, evidence: "https://www.google.com/", absent: true},
		{name: "bing encoded plus", fn: BingSearchTerm, evidence: "https://www.bing.com/search?q=c%2B%2B+tutorial&form=QBLH", want: "c++ tutorial"},
		{name: "bing malformed escape", fn: BingSearchTerm, evidence: "https://www.bing.com/search?q=100%+sure", want: "100% sure"},
	})
}

func TestAccountExtractors(t *testing.T) {
	newUser := "useradd[1234]: new user: name=bob, UID=1001, GID=1001, home=/home/bob, shell=/bin/bash, from=/dev/pts/0"
	failed := "useradd[99]: failed adding user 'mallory', exit code: 9"
	sudo := "alice : TTY=pts/0 ; PWD=/home/alice ; USER=root ; COMMAND=/usr/sbin/useradd -m bob"
	usermodLine := "usermod[2001]: add 'bob' to shadow group 'sudo'"
	usermodCmd := "alice : TTY=pts/1 ; PWD=/root ; USER=root ; COMMAND=/usr/sbin/usermod -aG docker bob"

	runExtractorCases(t, []extractorCase{
		{name: "activity created", fn: UseraddActivityType, evidence: newUser, want: "User Created"},
		{name: "activity group", fn: UseraddActivityType, evidence: "groupadd: new group: name=dev, GID=1002", want: "Group Created"},
		{name: "activity failed", fn: UseraddActivityType, evidence: failed, want: "User Creation Failed"},
		{name: "activity unknown", fn: UseraddActivityType, evidence: "something", want: "Unknown Activity"},
		{name: "username", fn: UseraddUsername, evidence: newUser, want: "bob,"},
		{name: "username failed", fn: UseraddUsername, evidence: failed, want: "mallory"},
		{name: "creator", fn: UseraddCreator, evidence: sudo, want: "alice"},
		{name: "creator absent", fn: UseraddCreator, evidence: newUser, absent: true},
		{name: "uid", fn: UseraddUID, evidence: newUser, want: "1001"},
		{name: "gid", fn: UseraddGID, evidence: newUser, want: "1001"},
		{name: "home", fn: UseraddHome, evidence: newUser, want: "/home/bob,"},
		{name: "shell", fn: UseraddShell, evidence: newUser, want: "/bin/bash,"},
		{name: "exit code", fn: UseraddExitCode, evidence: failed, want: "9"},

		{name: "usermod shadow", fn: UsermodActivityType, evidence: usermodLine, want: "Added to Shadow Group"},
		{name: "usermod command", fn: UsermodActivityType, evidence: usermodCmd, want: "User Modification Command"},
		{name: "usermod plain", fn: UsermodActivityType, evidence: "usermod[1]: change user 'bob' shell", want: "User Modified"},
		{name: "usermod target line", fn: UsermodTargetUser, evidence: usermodLine, want: "bob"},
		{name: "usermod target command", fn: UsermodTargetUser, evidence: usermodCmd, want: "bob"},
		{name: "usermod creator", fn: UsermodCreator, evidence: usermodCmd, want: "alice"},
		{name: "usermod group line", fn: UsermodGroup, evidence: usermodLine, want: "sudo"},
		{name: "usermod group flag", fn: UsermodGroup, evidence: usermodCmd, want: "docker"},
		{name: "group type shadow", fn: UsermodGroupType, evidence: usermodLine, want: "shadow"},
		{name: "group type regular", fn: UsermodGroupType, evidence: "usermod[1]: add 'bob' to group 'wheel'", want: "regular"},
		{name: "group type absent", fn: UsermodGroupType, evidence: usermodCmd, absent: true},
		{name: "command args", fn: UsermodCommandArgs, evidence: usermodCmd, want: "-aG docker bob"},
	})
}

func TestAuthExtractors(t *testing.T) {
	invalid := "[sshd pid: 811] Failed password for invalid user admin from 203.0.113.7 port 52144 ssh2"
	valid := "[sshd pid: 812] Failed password for root from 198.51.100.2 port 40022 ssh2"
	pam := "[sshd pid: 900] pam_unix(sshd:auth): authentication failure; logname= uid=0 euid=0 tty=ssh ruser= rhost=192.0.2.10  user=root"
	preauth := "[sshd pid: 901] Disconnected from invalid user test 192.0.2.44 port 3322 [preauth]"

	runExtractorCases(t, []extractorCase{
		{name: "type invalid user", fn: AuthFailureType, evidence: invalid, want: "Failed Password (Invalid User)"},
		{name: "type failed", fn: AuthFailureType, evidence: valid, want: "Failed Password"},
		{name: "type pam", fn: AuthFailureType, evidence: pam, want: "Authentication Failure"},
		{name: "type preauth", fn: AuthFailureType, evidence: preauth, want: "Disconnected (Preauth)"},
		{name: "type unknown", fn: AuthFailureType, evidence: "nothing", want: "Unknown Auth Failure"},
		{name: "target invalid", fn: AuthTargetUser, evidence: invalid, want: "admin"},
		{name: "target pam", fn: AuthTargetUser, evidence: pam, want: "root"},
		{name: "target disconnected", fn: AuthTargetUser, evidence: preauth, want: "test"},
		{name: "source ip", fn: AuthSourceIP, evidence: valid, want: "198.51.100.2"},
		{name: "source ip rhost", fn: AuthSourceIP, evidence: pam, want: "192.0.2.10"},
		{name: "port", fn: AuthSourcePort, evidence: invalid, want: "52144"},
		{name: "service", fn: AuthService, evidence: invalid, want: "sshd"},
		{name: "validity invalid", fn: AuthUserValidity, evidence: invalid, want: "invalid"},
		{name: "validity valid", fn: AuthUserValidity, evidence: pam, want: "valid"},
		{name: "validity absent", fn: AuthUserValidity, evidence: "[cron] ok", absent: true},
		{name: "tty", fn: AuthTTY, evidence: pam, want: "ssh"},
		{name: "remote host", fn: AuthRemoteHost, evidence: pam, want: "192.0.2.10"},
		{name: "remote host absent", fn: AuthRemoteHost, evidence: valid, absent: true},
	})
}

func TestSessionExtractors(t *testing.T) {
	sudo := "[sudo pid: 3011] pam_unix(sudo:session): session opened for user root by alice(uid=1000)"
	cron := "[CRON pid: 455] pam_unix(cron:session): session opened for user root by (uid=0)"

	runExtractorCases(t, []extractorCase{
		{name: "target", fn: SessionTargetUser, evidence: sudo, want: "root"},
		{name: "executor", fn: SessionExecutorUser, evidence: sudo, want: "alice"},
		{name: "executor system", fn: SessionExecutorUser, evidence: cron, want: "system"},
		{name: "executor absent", fn: SessionExecutorUser, evidence: "session closed", absent: true},
		{name: "service", fn: SessionServiceName, evidence: sudo, want: "sudo"},
		{name: "uid", fn: SessionExecutorUID, evidence: sudo, want: "1000"},
		{name: "type sudo", fn: SessionType, evidence: sudo, want: "Privilege Escalation"},
		{name: "type cron", fn: SessionType, evidence: cron, want: "Scheduled Task"},
		{name: "type ssh", fn: SessionType, evidence: "[sshd pid: 1] session opened for user bob by (uid=0)", want: "SSH Login"},
		{name: "type logind", fn: SessionType, evidence: "[systemd-logind pid: 2] New session", want: "System Login"},
		{name: "type su", fn: SessionType, evidence: "[su pid: 3] session opened", want: "User Switch"},
		{name: "type other", fn: SessionType, evidence: "no service", want: "Other Session"},
	})
}

func TestWebshellExtractors(t *testing.T) {
	access := "http_request: GET /uploads/shell.php?cmd=cat%20%2Fetc%2Fpasswd from: 203.0.113.9 code: 200 user_agent: curl/7.68.0"
	post := "http_request: POST /x.php?command=whoami from: 10.0.0.3 code: 500"

	runExtractorCases(t, []extractorCase{
		{name: "command", fn: WebshellCommand, evidence: access, want: "cat /etc/passwd"},
		{name: "command param", fn: WebshellCommand, evidence: post, want: "whoami"},
		{name: "command absent", fn: WebshellCommand, evidence: "GET /index.php", absent: true},
		{name: "php file", fn: WebshellPHPFile, evidence: access, want: "/uploads/shell.php"},
		{name: "source ip", fn: WebshellSourceIP, evidence: access, want: "203.0.113.9"},
		{name: "method", fn: WebshellHTTPMethod, evidence: post, want: "POST"},
		{name: "code", fn: WebshellResponseCode, evidence: post, want: "500"},
		{name: "user agent", fn: WebshellUserAgent, evidence: access, want: "curl/7.68.0"},
		{name: "attack file recon", fn: WebshellAttackType, evidence: access, want: "File System Reconnaissance"},
		{name: "attack system recon", fn: WebshellAttackType, evidence: post, want: "System Reconnaissance"},
		{name: "attack injection", fn: WebshellAttackType, evidence: "GET /a.php?cmd=eval(x)", want: "Code Injection"},
		{name: "attack default", fn: WebshellAttackType, evidence: "GET /a.php?cmd=id", want: "Command Execution"},
		{name: "attack empty evidence", fn: WebshellAttackType, evidence: "", absent: true},
	})
}
