package session

import (
	"bytes"
	"os"
	"regexp"
	"strconv"
)

// Sentinel lines appended to the log by the env reporter wrapper. The
// default status policy inspects the last line of the log for these; display
// consumers strip them.
const SuccessSentinel = "Detached session finished"

var failureSentinelRe = regexp.MustCompile(`Detached session exited abnormally with code ([0-9]+)`)

// IsSentinelLine reports whether a log line is one of the exit sentinels.
func IsSentinelLine(line string) bool {
	if bytes.Contains([]byte(line), []byte(SuccessSentinel)) {
		return true
	}
	return failureSentinelRe.MatchString(line)
}

// DefaultStatus derives an outcome from the last line of a log file. Absent
// a recognizable sentinel (no env reporter configured, or truncated log) the
// outcome is unknown with code 0.
func DefaultStatus(logPath string) (Outcome, int) {
	line, err := lastLine(logPath)
	if err != nil {
		return OutcomeUnknown, 0
	}
	if bytes.Contains(line, []byte(SuccessSentinel)) {
		return OutcomeSuccess, 0
	}
	if m := failureSentinelRe.FindSubmatch(line); m != nil {
		code, err := strconv.Atoi(string(m[1]))
		if err != nil {
			return OutcomeUnknown, 0
		}
		return OutcomeFailure, code
	}
	return OutcomeUnknown, 0
}

// lastLine reads the final non-empty line of a file. Logs can be large, so
// only a bounded tail window is read.
func lastLine(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}

	const window = 8 * 1024
	size := info.Size()
	offset := int64(0)
	if size > window {
		offset = size - window
	}
	buf := make([]byte, size-offset)
	if _, err := f.ReadAt(buf, offset); err != nil {
		return nil, err
	}

	buf = bytes.TrimRight(buf, "\r\n")
	if idx := bytes.LastIndexByte(buf, '\n'); idx >= 0 {
		buf = buf[idx+1:]
	}
	return bytes.TrimRight(buf, "\r"), nil
}
