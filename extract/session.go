package extract

import (
	"regexp"
	"strings"

	"eventrecon/core"
)

const systemExecutor = "system"

var (
	sessionTargetPattern   = regexp.MustCompile(`session opened for user ([^\s]+)`)
	sessionExecutorPattern = regexp.MustCompile(`by ([^\s\(]+)(?:\(uid=\d+\))?`)
	sessionUIDPattern      = regexp.MustCompile(`uid=(\d+)`)
)

// SessionTargetUser returns the user the session was opened for.
func SessionTargetUser(ev *core.LowLevelEvent) (string, bool) {
	return submatch(sessionTargetPattern, ev.Evidence)
}

// SessionExecutorUser returns the user that opened the session. Sessions
// opened "by (uid=N)" without a name are attributed to "system".
func SessionExecutorUser(ev *core.LowLevelEvent) (string, bool) {
	if executor, ok := submatch(sessionExecutorPattern, ev.Evidence); ok {
		return executor, true
	}
	if strings.Contains(ev.Evidence, "by (uid=") {
		return systemExecutor, true
	}
	return "", false
}

func SessionServiceName(ev *core.LowLevelEvent) (string, bool) {
	return submatch(serviceNamePattern, ev.Evidence)
}

func SessionExecutorUID(ev *core.LowLevelEvent) (string, bool) {
	return submatch(sessionUIDPattern, ev.Evidence)
}

// SessionType classifies the session by the service that opened it.
func SessionType(ev *core.LowLevelEvent) (string, bool) {
	service, _ := SessionServiceName(ev)
	switch {
	case service == "sudo":
		return "Privilege Escalation", true
	case service == "sshd":
		return "SSH Login", true
	case strings.Contains(service, "systemd-logind"), strings.Contains(service, "gdm"):
		return "System Login", true
	case service == "su":
		return "User Switch", true
	case service == "cron", strings.Contains(service, "CRON"):
		return "Scheduled Task", true
	}
	return "Other Session", true
}
