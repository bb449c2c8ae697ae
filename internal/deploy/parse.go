package deploy

import (
	"regexp"
	"strconv"
	"strings"

	"vilehvh/internal/progress"
)

var (
	progressPattern = regexp.MustCompile(`Update state \(0x[0-9a-fA-F]+\) ([a-zA-Z ]+), progress: ([0-9.]+) \((\d+) / (\d+)\)`)
	successPattern  = regexp.MustCompile(`Success! App '(\d+)' fully installed`)
	errorPattern    = regexp.MustCompile(`(?i)(Error! App '(\d+)' state is 0x[0-9a-fA-F]+.*|ERROR! Failed to install app '(\d+)'.*)`)
)

// ParseProgress extracts a progress observation from one SteamCMD line.
// Lines of any other shape return false.
func ParseProgress(line string) (progress.Update, bool) {
	m := progressPattern.FindStringSubmatch(line)
	if m == nil {
		return progress.Update{}, false
	}
	pct, err := strconv.ParseFloat(m[2], 64)
	if err != nil {
		return progress.Update{}, false
	}
	done, _ := strconv.ParseInt(m[3], 10, 64)
	total, _ := strconv.ParseInt(m[4], 10, 64)
	return progress.Update{
		Phase:      phaseFor(m[1]),
		Percent:    pct,
		BytesDone:  done,
		BytesTotal: total,
	}, true
}

// phaseFor maps SteamCMD's state names (downloading, preallocating,
// committing, verifying install, ...) onto task phases.
func phaseFor(state string) progress.Phase {
	state = strings.ToLower(state)
	if strings.Contains(state, "verif") || strings.Contains(state, "validat") {
		return progress.PhaseValidating
	}
	return progress.PhaseDownloading
}

// isSuccess reports whether line is the completion marker for appID.
func isSuccess(line, appID string) bool {
	m := successPattern.FindStringSubmatch(line)
	return m != nil && m[1] == appID
}

// failureLine returns the tool's own failure report, if line is one.
func failureLine(line string) (string, bool) {
	m := errorPattern.FindStringSubmatch(line)
	if m == nil {
		return "", false
	}
	return strings.TrimSpace(m[1]), true
}
