package identity

import (
	"net/http"
	"strings"
)

// DetectCLI implements spec §4.C step 0. It must run before any other
// mutation — step 1 injects the CLI-exclusive beta flag, which would make
// detection trivially true if evaluated afterwards.
func DetectCLI(h http.Header, effectiveBeta string, system interface{}) bool {
	if isCliUserAgent(h.Get("user-agent")) {
		return true
	}
	if containsBetaFlag(effectiveBeta, cliExclusiveBetaFlag) {
		return true
	}
	if firstSystemBlockContains(system, BillingSentinel) {
		return true
	}
	return false
}

func containsBetaFlag(beta, flag string) bool {
	for _, tok := range strings.Split(beta, ",") {
		if strings.TrimSpace(tok) == flag {
			return true
		}
	}
	return false
}

// firstSystemBlockContains reports whether the first system block's text
// (system as string, or system[0].text for the array form) contains
// substr. Any other shape (missing, empty, object without "text") is not a
// match.
func firstSystemBlockContains(system interface{}, substr string) bool {
	switch s := system.(type) {
	case string:
		return strings.Contains(s, substr)
	case []interface{}:
		if len(s) == 0 {
			return false
		}
		block, ok := s[0].(map[string]interface{})
		if !ok {
			return false
		}
		text, _ := block["text"].(string)
		return strings.Contains(text, substr)
	default:
		return false
	}
}
