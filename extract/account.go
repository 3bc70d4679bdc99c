package extract

import (
	"regexp"
	"strings"

	"eventrecon/core"
)

var (
	useraddNamePattern     = regexp.MustCompile(`name=([^\s]+)`)
	useraddFailedPattern   = regexp.MustCompile(`failed adding user '([^']+)'`)
	useraddCreatorPattern  = regexp.MustCompile(`(\w+)\s*:\s*TTY=.*COMMAND=.*useradd`)
	useraddUIDPattern      = regexp.MustCompile(`UID=(\d+)`)
	useraddGIDPattern      = regexp.MustCompile(`GID=(\d+)`)
	useraddHomePattern     = regexp.MustCompile(`home=([^\s]+)`)
	useraddShellPattern    = regexp.MustCompile(`shell=([^\s]+)`)
	useraddExitCodePattern = regexp.MustCompile(`exit code:\s*(\d+)`)

	usermodAddToGroupPattern = regexp.MustCompile(`add '([^']+)' to (?:shadow )?group`)
	usermodCommandPattern    = regexp.MustCompile(`COMMAND=.*usermod.*\s+([^\s]+)`)
	usermodCreatorPattern    = regexp.MustCompile(`(\w+)\s*:\s*TTY=.*COMMAND=.*usermod`)
	usermodGroupPattern      = regexp.MustCompile(`to (?:shadow )?group '([^']+)'`)
	usermodGroupFlagPattern  = regexp.MustCompile(`-aG\s+([^\s]+)`)
	usermodArgsPattern       = regexp.MustCompile(`COMMAND=.*usermod\s+(.+)`)
)

// UseraddActivityType classifies a useradd log line.
func UseraddActivityType(ev *core.LowLevelEvent) (string, bool) {
	e := ev.Evidence
	switch {
	case strings.Contains(e, "new user:"):
		return "User Created", true
	case strings.Contains(e, "new group:"):
		return "Group Created", true
	case strings.Contains(e, "failed adding user"):
		return "User Creation Failed", true
	}
	return "Unknown Activity", true
}

// UseraddUsername returns the account being created.
func UseraddUsername(ev *core.LowLevelEvent) (string, bool) {
	return firstSubmatch(ev.Evidence, useraddNamePattern, useraddFailedPattern)
}

// UseraddCreator returns the sudo user that ran useradd.
func UseraddCreator(ev *core.LowLevelEvent) (string, bool) {
	return submatch(useraddCreatorPattern, ev.Evidence)
}

// UseraddUID returns the numeric user id of the new account.
func UseraddUID(ev *core.LowLevelEvent) (string, bool) {
	return submatch(useraddUIDPattern, ev.Evidence)
}

// UseraddGID returns the primary group id of the new account.
func UseraddGID(ev *core.LowLevelEvent) (string, bool) {
	return submatch(useraddGIDPattern, ev.Evidence)
}

// UseraddHome returns the home directory of the new account.
func UseraddHome(ev *core.LowLevelEvent) (string, bool) {
	return submatch(useraddHomePattern, ev.Evidence)
}

// UseraddShell returns the login shell of the new account.
func UseraddShell(ev *core.LowLevelEvent) (string, bool) {
	return submatch(useraddShellPattern, ev.Evidence)
}

// UseraddExitCode returns the exit code of a failed useradd.
func UseraddExitCode(ev *core.LowLevelEvent) (string, bool) {
	return submatch(useraddExitCodePattern, ev.Evidence)
}

// UsermodActivityType classifies a usermod log line.
func UsermodActivityType(ev *core.LowLevelEvent) (string, bool) {
	e := ev.Evidence
	switch {
	case strings.Contains(e, "add") && (strings.Contains(e, "to group") || strings.Contains(e, "to shadow group")):
		if strings.Contains(e, "shadow group") {
			return "Added to Shadow Group", true
		}
		return "Added to Group", true
	case strings.Contains(e, "COMMAND=") && strings.Contains(e, "usermod"):
		return "User Modification Command", true
	case strings.Contains(e, "usermod"):
		return "User Modified", true
	}
	return "Unknown Modification", true
}

// UsermodTargetUser returns the account being modified, either from the
// usermod log line or as the last argument of a sudo usermod command.
func UsermodTargetUser(ev *core.LowLevelEvent) (string, bool) {
	return firstSubmatch(ev.Evidence, usermodAddToGroupPattern, usermodCommandPattern)
}

func UsermodCreator(ev *core.LowLevelEvent) (string, bool) {
	return submatch(usermodCreatorPattern, ev.Evidence)
}

// UsermodGroup returns the group the account was added to.
func UsermodGroup(ev *core.LowLevelEvent) (string, bool) {
	return firstSubmatch(ev.Evidence, usermodGroupPattern, usermodGroupFlagPattern)
}

// UsermodGroupType is "shadow" or "regular".
func UsermodGroupType(ev *core.LowLevelEvent) (string, bool) {
	switch {
	case strings.Contains(ev.Evidence, "shadow group"):
		return "shadow", true
	case strings.Contains(ev.Evidence, "to group"):
		return "regular", true
	}
	return "", false
}

func UsermodCommandArgs(ev *core.LowLevelEvent) (string, bool) {
	return submatch(usermodArgsPattern, ev.Evidence)
}
