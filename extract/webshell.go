package extract

import (
	"net/url"
	"regexp"
	"strings"

	"eventrecon/core"
)

var (
	webshellCmdPattern     = regexp.MustCompile(`[?&]cmd=([^&\s]+)`)
	webshellCommandPattern = regexp.MustCompile(`[?&]command=([^&\s]+)`)
	webshellPHPPattern     = regexp.MustCompile(`(?:GET|POST)\s+(/[^\s?]+\.php)`)
	webshellFromPattern    = regexp.MustCompile(`from:\s+([^\s]+)`)
	webshellMethodPattern  = regexp.MustCompile(`http_request:\s+(GET|POST|PUT|DELETE|HEAD|OPTIONS)`)
	webshellCodePattern    = regexp.MustCompile(`code:\s+(\d+)`)
	webshellAgentPattern   = regexp.MustCompile(`user_agent:\s+(.+)`)
)

// attackClasses is checked in order; the first class with a marker contained
// in the lowercased command wins.
var attackClasses = []struct {
	name    string
	markers []string
}{
	{"Code Injection", []string{"eval", "base64_decode", "system", "exec", "shell_exec"}},
	{"System Reconnaissance", []string{"whoami", "uname", "systeminfo", "ifconfig", "netstat"}},
	{"File System Reconnaissance", []string{"ls", "dir", "pwd", "cat"}},
	{"Process Reconnaissance", []string{"ps", "tasklist"}},
	{"Network Activity", []string{"wget", "curl", "nc", "netcat"}},
	{"Privilege Escalation", []string{"chmod", "chown", "passwd", "useradd", "sudo"}},
	{"Network Reconnaissance", []string{"ping"}},
}

const defaultAttackClass = "Command Execution"

// WebshellCommand returns the decoded cmd= or command= request parameter.
func WebshellCommand(ev *core.LowLevelEvent) (string, bool) {
	raw, ok := firstSubmatch(ev.Evidence, webshellCmdPattern, webshellCommandPattern)
	if !ok {
		return "", false
	}
	cmd, err := url.PathUnescape(raw)
	if err != nil {
		cmd = strings.NewReplacer("%20", " ", "%2F", "/", "%3D", "=").Replace(raw)
	}
	return present(cmd)
}

// WebshellPHPFile returns the requested .php path.
func WebshellPHPFile(ev *core.LowLevelEvent) (string, bool) {
	return submatch(webshellPHPPattern, ev.Evidence)
}

func WebshellSourceIP(ev *core.LowLevelEvent) (string, bool) {
	return submatch(webshellFromPattern, ev.Evidence)
}

func WebshellHTTPMethod(ev *core.LowLevelEvent) (string, bool) {
	return submatch(webshellMethodPattern, ev.Evidence)
}

func WebshellResponseCode(ev *core.LowLevelEvent) (string, bool) {
	return submatch(webshellCodePattern, ev.Evidence)
}

// WebshellUserAgent returns everything after "user_agent:" to the end of the line.
func WebshellUserAgent(ev *core.LowLevelEvent) (string, bool) {
	return submatch(webshellAgentPattern, ev.Evidence)
}

// WebshellAttackType classifies the executed command.
func WebshellAttackType(ev *core.LowLevelEvent) (string, bool) {
	if ev.Evidence == "" {
		return "", false
	}
	cmd, _ := WebshellCommand(ev)
	cmd = strings.ToLower(cmd)
	for _, class := range attackClasses {
		for _, m := range class.markers {
			if strings.Contains(cmd, m) {
				return class.name, true
			}
		}
	}
	return defaultAttackClass, true
}
