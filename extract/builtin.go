package extract

import (
	"regexp"

	"eventrecon/core"
)

func builtinExtractors() map[string]Extractor {
	return map[string]Extractor{
		"get_file_path":   FilePath,
		"get_timestamp":   Timestamp,
		"get_event_type":  EventType,
		"get_plugin_name": PluginName,
		"get_evidence":    Evidence,

		"get_browser":                 Browser,
		"extract_url":                 URL,
		"extract_domain_from_url":     Domain,
		"extract_youtube_video_title": YouTubeVideoTitle,
		"extract_google_search_term":  GoogleSearchTerm,
		"extract_bing_search_term":    BingSearchTerm,

		"extract_useradd_activity_type": UseraddActivityType,
		"extract_useradd_username":      UseraddUsername,
		"extract_useradd_creator":       UseraddCreator,
		"extract_useradd_uid":           UseraddUID,
		"extract_useradd_gid":           UseraddGID,
		"extract_useradd_home":          UseraddHome,
		"extract_useradd_shell":         UseraddShell,
		"extract_useradd_exit_code":     UseraddExitCode,

		"extract_usermod_activity_type": UsermodActivityType,
		"extract_usermod_target_user":   UsermodTargetUser,
		"extract_usermod_creator":       UsermodCreator,
		"extract_usermod_group":         UsermodGroup,
		"extract_usermod_group_type":    UsermodGroupType,
		"extract_usermod_command_args":  UsermodCommandArgs,

		"extract_auth_failure_type":  AuthFailureType,
		"extract_auth_target_user":   AuthTargetUser,
		"extract_auth_source_ip":     AuthSourceIP,
		"extract_auth_source_port":   AuthSourcePort,
		"extract_auth_service":       AuthService,
		"extract_auth_user_validity": AuthUserValidity,
		"extract_auth_tty":           AuthTTY,
		"extract_auth_remote_host":   AuthRemoteHost,

		"extract_session_target_user":   SessionTargetUser,
		"extract_session_executor_user": SessionExecutorUser,
		"extract_session_service_name":  SessionServiceName,
		"extract_session_executor_uid":  SessionExecutorUID,
		"extract_session_type":          SessionType,

		"extract_webshell_command":       WebshellCommand,
		"extract_webshell_php_file":      WebshellPHPFile,
		"extract_webshell_source_ip":     WebshellSourceIP,
		"extract_webshell_http_method":   WebshellHTTPMethod,
		"extract_webshell_response_code": WebshellResponseCode,
		"extract_webshell_user_agent":    WebshellUserAgent,
		"extract_webshell_attack_type":   WebshellAttackType,
	}
}

// FilePath returns the file the event was extracted from
func FilePath(ev *core.LowLevelEvent) (string, bool) { return present(ev.Path) }

// Timestamp returns the event's raw timestamp
func Timestamp(ev *core.LowLevelEvent) (string, bool) { return present(ev.Timestamp) }

// EventType returns the artifact type
func EventType(ev *core.LowLevelEvent) (string, bool) { return present(ev.Type) }

// PluginName returns the parser that produced the event
func PluginName(ev *core.LowLevelEvent) (string, bool) { return present(ev.Plugin) }

// Evidence returns the free-text evidence
func Evidence(ev *core.LowLevelEvent) (string, bool) { return present(ev.Evidence) }

func present(s string) (string, bool) {
	return s, s != ""
}

// submatch returns the first capture group of the leftmost match of re in s.
func submatch(re *regexp.Regexp, s string) (string, bool) {
	m := re.FindStringSubmatch(s)
	if len(m) < 2 || m[1] == "" {
		return "", false
	}
	return m[1], true
}

// firstSubmatch tries each pattern in order and returns the first hit.
func firstSubmatch(s string, patterns ...*regexp.Regexp) (string, bool) {
	for _, re := range patterns {
		if v, ok := submatch(re, s); ok {
			return v, true
		}
	}
	return "", false
}
