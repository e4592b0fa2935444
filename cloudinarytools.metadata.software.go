package cloudinarytools

import (
	"regexp"
	"strconv"
	"strings"
)

// The software tag arrives in two vendor dialects: Adobe tools write a full
// product sentence ("Adobe Photoshop Lightroom Classic 13.2 (Windows)"),
// camera firmware writes a terse version stamp ("Ver.1.00", "Ver 2.10",
// "Ver3.00"). Each dialect gets its own grammar so they can be tested in
// isolation.
var (
	adobeVersionPattern   = regexp.MustCompile(`Lightroom Classic \d+\.\d+`)
	genericVersionPattern = regexp.MustCompile(`Ver\.? ?(\d+\.\d+)`)
)

// ParseSoftwareTag extracts a clean version string from a raw software tag.
// With adobe set, the matched "Lightroom Classic <major>.<minor>" substring
// is the final value. Otherwise the firmware version number is captured and
// canonicalized ("1.00" becomes "1.0"). The second return is false when the
// selected grammar does not match, so the caller can fall back to the raw
// string unchanged.
func ParseSoftwareTag(raw string, adobe bool) (string, bool) {
	if adobe {
		match := adobeVersionPattern.FindString(raw)
		if match == "" {
			return "", false
		}
		return match, true
	}

	match := genericVersionPattern.FindStringSubmatch(raw)
	if match == nil {
		return "", false
	}
	version, err := strconv.ParseFloat(match[1], 64)
	if err != nil {
		return "", false
	}
	return formatVersionNumber(version), true
}

// normalizeSoftware applies the full software rule: grammar dispatch on the
// "Adobe" substring, verbatim use of anything already carrying "Lightroom",
// otherwise composition with the camera model (vendor prefix stripped).
// Unparsable tags pass through untouched.
func normalizeSoftware(raw, model string) string {
	version, ok := ParseSoftwareTag(raw, strings.Contains(raw, "Adobe"))
	if !ok {
		return raw
	}
	if strings.Contains(version, "Lightroom") {
		return version
	}
	return strings.ReplaceAll(model, "NIKON ", "") + " Ver. " + version
}
