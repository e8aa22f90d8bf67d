package taskrunner

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusString(t *testing.T) {
	assert.Equal(t, "pending", Pending.String())
	assert.Equal(t, "running", Running.String())
	assert.Equal(t, "success", Success.String())
	assert.Equal(t, "failed", Failed.String())
	assert.Equal(t, "skipped", Skipped.String())
	assert.Equal(t, "unknown", Status(99).String())
}

func TestStatusMarshalJSON(t *testing.T) {
	data, err := json.Marshal(Skipped)
	require.NoError(t, err)
	assert.Equal(t, `"skipped"`, string(data))
}

func TestCodeAllowed(t *testing.T) {
	tests := []struct {
		name         string
		code         int
		successCodes []int
		want         bool
	}{
		{"zero with empty set", 0, nil, true},
		{"nonzero with empty set", 1, nil, false},
		{"member of set", 3010, []int{0, 3010}, true},
		{"non-member of set", 1603, []int{0, 3010}, false},
		{"zero excluded by explicit set", 0, []int{3010}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, codeAllowed(tt.code, tt.successCodes))
		})
	}
}

func TestDescribeExitCode(t *testing.T) {
	assert.Contains(t, DescribeExitCode(3010), "restart required")
	assert.Contains(t, DescribeExitCode(1603), "fatal error")
	assert.Equal(t, "exit code 77", DescribeExitCode(77))
}

func TestRebootRequired(t *testing.T) {
	assert.True(t, RebootRequired(3010))
	assert.True(t, RebootRequired(1641))
	assert.False(t, RebootRequired(0))
	assert.False(t, RebootRequired(1603))
}

func TestErrorFragments(t *testing.T) {
	stderr := "starting\nERROR: disk full\nsome detail\nfailed to write\nfatal: giving up\nError: extra\n"
	frag := errorFragments(stderr)

	assert.Contains(t, frag, "ERROR: disk full")
	assert.Contains(t, frag, "failed to write")
	assert.Contains(t, frag, "fatal: giving up")
	// Capped at three fragments.
	assert.NotContains(t, frag, "Error: extra")

	assert.Empty(t, errorFragments("all fine here\n"))
}

func TestSkippedResult(t *testing.T) {
	res := SkippedResult("install-apps", SkipReasonPrerequisite)

	assert.Equal(t, Skipped, res.Status)
	assert.Equal(t, SkipReasonPrerequisite, res.ErrorMessage)
	assert.Nil(t, res.ExitCode)
	assert.False(t, res.Timestamp.IsZero())
}

func TestSanitizeName(t *testing.T) {
	assert.Equal(t, "install-apps", sanitizeName("install-apps"))
	assert.Equal(t, "set-wallpaper--theme-", sanitizeName("set wallpaper (theme)"))
}
