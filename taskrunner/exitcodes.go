package taskrunner

import "fmt"

// exitCodeDescriptions maps well-known Windows installer exit codes to
// human-readable text. Codes outside this table are reported verbatim.
var exitCodeDescriptions = map[int]string{
	0:    "completed successfully",
	1:    "general failure",
	2:    "invalid usage",
	5:    "access denied",
	1601: "the installer service could not be accessed",
	1602: "installation cancelled by user",
	1603: "fatal error during installation",
	1618: "another installation is already in progress",
	1619: "installation package could not be opened",
	1620: "installation package is invalid",
	1633: "installation package is not supported on this platform",
	1638: "another version of the product is already installed",
	1641: "installer initiated a restart",
	3010: "restart required to complete the installation",
}

// DescribeExitCode renders a human-readable description of a handler
// exit code, decoding well-known Windows installer codes.
func DescribeExitCode(code int) string {
	if desc, ok := exitCodeDescriptions[code]; ok {
		return fmt.Sprintf("exit code %d: %s", code, desc)
	}
	return fmt.Sprintf("exit code %d", code)
}

// RebootRequired reports whether the exit code is a reboot sentinel.
// These codes typically sit in a task's success set; the pipeline
// records that a restart is pending instead of failing the task.
func RebootRequired(code int) bool {
	return code == 1641 || code == 3010
}

// codeAllowed reports whether code is in the task's success set.
// An empty set means plain success only.
func codeAllowed(code int, successCodes []int) bool {
	if len(successCodes) == 0 {
		return code == 0
	}
	for _, allowed := range successCodes {
		if code == allowed {
			return true
		}
	}
	return false
}
