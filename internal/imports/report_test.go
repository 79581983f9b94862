package imports

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSummarizeClean(t *testing.T) {
	rep := Summarize(Result{Inserted: 3, Updated: 1})
	require.True(t, rep.Success)
	require.Equal(t, http.StatusOK, rep.Status)
	require.Empty(t, rep.Errors)
	require.NotNil(t, rep.Errors)
	require.NotNil(t, rep.Skipped)
	require.Equal(t, "Import complete: 3 inserted, 1 updated.", rep.Message)
}

func TestSummarizePartialSuccess(t *testing.T) {
	rep := Summarize(Result{
		Inserted: 1,
		Skipped:  []SkippedDuplicate{{Row: 3, SKU: "A"}},
		Errors:   []RowError{{Row: 2, Message: "sku is required"}},
	})
	require.True(t, rep.Success)
	require.Equal(t, http.StatusUnprocessableEntity, rep.Status)
	require.Equal(t, []string{"Row 2: sku is required"}, rep.Errors)
	require.Equal(t, 1, rep.SkippedCount)
	require.Equal(t, "Import completed with 1 error: 1 inserted, 0 updated, 1 skipped.", rep.Message)
	require.Equal(t, OutcomePartial, Outcome(Result{Inserted: 1, Errors: []RowError{{Row: 1}}}))
}

func TestSummarizeHardFailure(t *testing.T) {
	rep := Summarize(Result{Errors: []RowError{{Message: "uploaded file items.csv not found"}, {Row: 4, Message: "x"}}})
	require.False(t, rep.Success)
	require.Equal(t, http.StatusUnprocessableEntity, rep.Status)
	require.Equal(t, []string{"uploaded file items.csv not found", "Row 4: x"}, rep.Errors)
	require.Equal(t, OutcomeFailed, Outcome(Result{Errors: []RowError{{}}}))
}
