package errors

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeTimeout struct{}

func (fakeTimeout) Error() string { return "timed out" }
func (fakeTimeout) Timeout() bool { return true }

func TestCategory(t *testing.T) {
	require.Equal(t, CategoryNone, Category(nil))
	require.Equal(t, CategorySetup, Category(&ErrSetup{Resource: "plan", Cause: "boom"}))
	require.Equal(t, CategoryJob, Category(fmt.Errorf("wrapped: %w", &ErrJobFailed{JobID: "12", Status: "failed"})))
	require.Equal(t, CategoryValidation, Category(&ErrValidation{Description: "rows"}))
	require.Equal(t, CategoryTimeout, Category(fmt.Errorf("wait: %w", fakeTimeout{})))
	require.Equal(t, CategoryUnknown, Category(fmt.Errorf("plain")))
}

func TestJobFailedMessage(t *testing.T) {
	err := &ErrJobFailed{JobID: "42", Status: "failed", DelayReason: "media agent offline"}
	require.Contains(t, err.Error(), "media agent offline")

	err = &ErrJobFailed{JobID: "42", Status: "killed"}
	require.NotContains(t, err.Error(), "Reason")
}
