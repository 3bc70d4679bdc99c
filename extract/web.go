package extract

import (
	"net/url"
	"regexp"
	"strings"

	"eventrecon/core"
)

const unknownBrowser = "Unknown Browser"

var browsers = []struct {
	marker string
	name   string
}{
	{"firefox", "Mozilla Firefox"},
	{"chrome", "Chromium based Browser"},
	{"edge", "Microsoft Edge"},
	{"safari", "Safari"},
}

var (
	urlPattern          = regexp.MustCompile(`https?://[^\s()"]+`)
	youtubeTitlePattern = regexp.MustCompile(`\(([^)]+(?:\s*-\s*YouTube)?)\)`)
	searchQueryPattern  = regexp.MustCompile(`[?&]q=([^&\s]+)`)
)

// Browser names the browser family from the parser plugin. Unrecognised or
// missing plugins yield "Unknown Browser".
func Browser(ev *core.LowLevelEvent) (string, bool) {
	plugin := strings.ToLower(ev.Plugin)
	if plugin != "" {
		for _, b := range browsers {
			if strings.Contains(plugin, b.marker) {
				return b.name, true
			}
		}
	}
	return unknownBrowser, true
}

// URL returns the visited URL. Browser history evidence is usually
// "URL (Title)"; otherwise the first http(s) URL anywhere in the text is used.
func URL(ev *core.LowLevelEvent) (string, bool) {
	head, _, _ := strings.Cut(ev.Evidence, " (")
	head = strings.TrimSpace(head)
	if strings.HasPrefix(head, "http://") || strings.HasPrefix(head, "https://") || strings.HasPrefix(head, "www.") {
		return head, true
	}
	if m := urlPattern.FindString(ev.Evidence); m != "" {
		return m, true
	}
	return "", false
}

// Domain returns the host of the visited URL without a leading "www.".
func Domain(ev *core.LowLevelEvent) (string, bool) {
	raw, ok := URL(ev)
	if !ok {
		return "", false
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", false
	}
	return present(strings.TrimPrefix(u.Host, "www."))
}

// YouTubeVideoTitle returns the parenthesised page title following the URL.
func YouTubeVideoTitle(ev *core.LowLevelEvent) (string, bool) {
	title, ok := submatch(youtubeTitlePattern, ev.Evidence)
	if !ok {
		return "", false
	}
	return present(strings.TrimSpace(title))
}

// GoogleSearchTerm returns the decoded q= parameter of a search URL.
func GoogleSearchTerm(ev *core.LowLevelEvent) (string, bool) {
	return searchTerm(ev.Evidence)
}

// BingSearchTerm returns the decoded q= parameter of a search URL.
func BingSearchTerm(ev *core.LowLevelEvent) (string, bool) {
	return searchTerm(ev.Evidence)
}

func searchTerm(evidence string) (string, bool) {
	raw, ok := submatch(searchQueryPattern, evidence)
	if !ok {
		return "", false
	}
	term, err := url.QueryUnescape(raw)
	if err != nil {
		// malformed escapes: decode the common ones and keep the rest verbatim
		term = strings.NewReplacer("%20", " ", "%22", `"`, "%27", "'", "+", " ", "%2B", "+").Replace(raw)
	}
	return present(term)
}
