package imports

import (
	"fmt"
	"net/http"
	"strings"
)

// Report is the user-facing batch summary and the reconcile response body.
type Report struct {
	Message       string             `json:"message"`
	Errors        []string           `json:"errors"`
	Success       bool               `json:"success"`
	InsertedCount int                `json:"insertedCount"`
	UpdatedCount  int                `json:"updatedCount"`
	SkippedCount  int                `json:"skippedCount"`
	Skipped       []SkippedDuplicate `json:"skipped"`
	Warnings      []string           `json:"warnings,omitempty"`
	Status        int                `json:"-"`
}

// Batch outcomes used for metrics and audit.
const (
	OutcomeOK      = "ok"
	OutcomePartial = "partial"
	OutcomeFailed  = "failed"
)

// Outcome classifies a result: ok without errors, partial when anything succeeded
// alongside errors, failed otherwise.
func Outcome(res Result) string {
	switch {
	case len(res.Errors) == 0:
		return OutcomeOK
	case res.Inserted+res.Updated+len(res.Skipped) > 0:
		return OutcomePartial
	default:
		return OutcomeFailed
	}
}

// Summarize turns an engine result into a Report. Any success alongside errors is a
// partial success (422, success=true); errors with nothing applied is a hard failure.
func Summarize(res Result) Report {
	rep := Report{
		Errors:        make([]string, 0, len(res.Errors)),
		InsertedCount: res.Inserted,
		UpdatedCount:  res.Updated,
		SkippedCount:  len(res.Skipped),
		Skipped:       res.Skipped,
		Warnings:      res.Warnings,
	}
	if rep.Skipped == nil {
		rep.Skipped = []SkippedDuplicate{}
	}
	for _, e := range res.Errors {
		rep.Errors = append(rep.Errors, e.Error())
	}

	counts := summaryCounts(res)
	switch Outcome(res) {
	case OutcomeOK:
		rep.Success = true
		rep.Status = http.StatusOK
		rep.Message = "Import complete: " + counts + "."
	case OutcomePartial:
		rep.Success = true
		rep.Status = http.StatusUnprocessableEntity
		rep.Message = fmt.Sprintf("Import completed with %s: %s.", plural(len(res.Errors), "error", "errors"), counts)
	default:
		rep.Status = http.StatusUnprocessableEntity
		rep.Message = fmt.Sprintf("Import failed: no rows were applied (%s).", plural(len(res.Errors), "error", "errors"))
	}
	return rep
}

func summaryCounts(res Result) string {
	parts := []string{
		fmt.Sprintf("%d inserted", res.Inserted),
		fmt.Sprintf("%d updated", res.Updated),
	}
	if n := len(res.Skipped); n > 0 {
		parts = append(parts, fmt.Sprintf("%d skipped", n))
	}
	return strings.Join(parts, ", ")
}

func plural(n int, one, many string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, one)
	}
	return fmt.Sprintf("%d %s", n, many)
}
