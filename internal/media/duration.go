package media

import (
	"os/exec"
	"strconv"
	"strings"
)

// ProbeDuration uses ffprobe to get a file's duration in seconds.
func ProbeDuration(ffprobePath, path string) (float64, error) {
	if ffprobePath == "" {
		ffprobePath = "ffprobe"
	}
	cmd := exec.Command(ffprobePath,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	)
	out, err := cmd.Output()
	if err != nil {
		return 0, err
	}
	s := strings.TrimSpace(string(out))
	val, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	return val, nil
}

// FormatDuration formats seconds into a human-readable string like
// "23m 45s" or "1h 12m 34s".
func FormatDuration(seconds float64) string {
	total := int(seconds)
	h := total / 3600
	m := (total % 3600) / 60
	s := total % 60
	if h > 0 {
		return formatHMS(h, m, s)
	}
	return formatMS(m, s)
}

func formatHMS(h, m, s int) string {
	return strconv.Itoa(h) + "h " + strconv.Itoa(m) + "m " + strconv.Itoa(s) + "s"
}

func formatMS(m, s int) string {
	return strconv.Itoa(m) + "m " + strconv.Itoa(s) + "s"
}
