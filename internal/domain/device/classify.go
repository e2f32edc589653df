package device

import "strings"

// ispHints map substrings commonly found in if_alias/if_description fields
// (vendor-specific free text) to a provider label. Order matters: first
// match wins.
var ispHints = []struct {
	substr   string
	provider string
}{
	{"verizon", "Verizon"},
	{"comcast", "Comcast"},
	{"att", "AT&T"},
	{"at&t", "AT&T"},
	{"spectrum", "Spectrum"},
	{"cogent", "Cogent"},
	{"lumen", "Lumen"},
	{"centurylink", "CenturyLink"},
	{"isp", ""},
	{"wan", ""},
	{"uplink", ""},
	{"internet", ""},
}

var trunkHints = []string{"trunk", "core", "backbone", "agg"}

// Classify derives an interface's class and, when it looks like an upstream
// provider link, its provider label, from if_name/if_alias free text.
// This is the offline classification step named in spec §3/§9: never
// propagate the raw SNMP string further than this boundary.
func Classify(ifName, ifAlias string) (InterfaceClass, string) {
	haystack := strings.ToLower(ifName + " " + ifAlias)

	for _, hint := range ispHints {
		if strings.Contains(haystack, hint.substr) {
			provider := hint.provider
			if provider == "" {
				provider = inferProviderFallback(strings.ToLower(ifAlias))
			}
			return ClassISP, provider
		}
	}

	for _, hint := range trunkHints {
		if strings.Contains(haystack, hint) {
			return ClassTrunk, ""
		}
	}

	if haystack == "" {
		return ClassOther, ""
	}
	return ClassAccess, ""
}

// inferProviderFallback extracts a best-effort provider token when the
// alias mentions a generic uplink keyword but no known carrier name; used
// so isp_link_down{provider} still has something to match against.
func inferProviderFallback(haystack string) string {
	fields := strings.Fields(haystack)
	for _, f := range fields {
		switch f {
		case "isp", "wan", "uplink", "internet", "link", "to", "-", "circuit":
			continue
		default:
			return strings.Trim(f, "-_/")
		}
	}
	return "unknown"
}
