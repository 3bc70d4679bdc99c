package extract

import (
	"regexp"
	"strings"

	"eventrecon/core"
)

var (
	authFailedPasswordPattern = regexp.MustCompile(`Failed password for (?:invalid user )?([^\s]+)`)
	authDisconnectedPattern   = regexp.MustCompile(`Disconnected from (?:invalid user )?([^\s]+)`)
	authPAMUserPattern        = regexp.MustCompile(`user=([^\s]+)`)
	authFromIPPattern         = regexp.MustCompile(`from ([0-9]+\.[0-9]+\.[0-9]+\.[0-9]+)`)
	authRhostIPPattern        = regexp.MustCompile(`rhost=([0-9]+\.[0-9]+\.[0-9]+\.[0-9]+)`)
	authPortPattern           = regexp.MustCompile(`port (\d+)`)
	serviceNamePattern        = regexp.MustCompile(`\[([^\s\]]+)`)
	authTTYPattern            = regexp.MustCompile(`tty=([^\s]+)`)
	authRhostPattern          = regexp.MustCompile(`rhost=([^\s]+)`)
)

// AuthFailureType classifies an authentication failure line.
func AuthFailureType(ev *core.LowLevelEvent) (string, bool) {
	e := ev.Evidence
	switch {
	case strings.Contains(e, "Failed password for invalid user"):
		return "Failed Password (Invalid User)", true
	case strings.Contains(e, "Failed password for"):
		return "Failed Password", true
	case strings.Contains(e, "authentication failure"):
		return "Authentication Failure", true
	case strings.Contains(e, "Disconnected from") && strings.Contains(e, "preauth"):
		return "Disconnected (Preauth)", true
	}
	return "Unknown Auth Failure", true
}

// AuthTargetUser returns the account the login was attempted for.
func AuthTargetUser(ev *core.LowLevelEvent) (string, bool) {
	return firstSubmatch(ev.Evidence, authFailedPasswordPattern, authDisconnectedPattern, authPAMUserPattern)
}

// AuthSourceIP returns the dotted-quad address of the client.
func AuthSourceIP(ev *core.LowLevelEvent) (string, bool) {
	return firstSubmatch(ev.Evidence, authFromIPPattern, authRhostIPPattern)
}

func AuthSourcePort(ev *core.LowLevelEvent) (string, bool) {
	return submatch(authPortPattern, ev.Evidence)
}

// AuthService returns the daemon from the "[service pid: n]" prefix plaso writes.
func AuthService(ev *core.LowLevelEvent) (string, bool) {
	return submatch(serviceNamePattern, ev.Evidence)
}

// AuthUserValidity is "invalid" for unknown accounts and "valid" for failed
// attempts against existing ones.
func AuthUserValidity(ev *core.LowLevelEvent) (string, bool) {
	e := ev.Evidence
	switch {
	case strings.Contains(e, "invalid user"):
		return "invalid", true
	case strings.Contains(e, "Failed password for"), strings.Contains(e, "authentication failure"):
		return "valid", true
	}
	return "", false
}

func AuthTTY(ev *core.LowLevelEvent) (string, bool) {
	return submatch(authTTYPattern, ev.Evidence)
}

// AuthRemoteHost returns the PAM rhost value, which may be a name or an address.
func AuthRemoteHost(ev *core.LowLevelEvent) (string, bool) {
	return submatch(authRhostPattern, ev.Evidence)
}
