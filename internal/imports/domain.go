// Package imports reconciles uploaded inventory spreadsheets against a tenant catalog.
package imports

import (
	"errors"
	"fmt"
	"strings"

	"github.com/odyssey-erp/stockbook/internal/platform/blob"
)

// Policy selects how rows whose SKU already exists are handled.
type Policy string

const (
	// PolicySkip leaves existing items untouched.
	PolicySkip Policy = "skip"
	// PolicyAddToStock adds the row quantities to the existing item.
	PolicyAddToStock Policy = "add_to_stock"
	// PolicyUpdate overwrites every field of the existing item.
	PolicyUpdate Policy = "update"
)

// ParsePolicy validates a wire policy value.
func ParsePolicy(s string) (Policy, error) {
	switch p := Policy(strings.TrimSpace(s)); p {
	case PolicySkip, PolicyAddToStock, PolicyUpdate:
		return p, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidPolicy, s)
	}
}

// RawRow is one parsed data row keyed by canonical header name.
type RawRow struct {
	// Row is the 1-based position among data rows.
	Row    int
	Values map[string]string
}

// Get returns the trimmed cell for a canonical header.
func (r RawRow) Get(header string) string {
	return strings.TrimSpace(r.Values[header])
}

// RowError describes why a single row was not applied.
type RowError struct {
	Row     int    `json:"row"`
	SKU     string `json:"sku,omitempty"`
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}

func (e RowError) Error() string {
	if e.Row <= 0 {
		return e.Message
	}
	return fmt.Sprintf("Row %d: %s", e.Row, e.Message)
}

// SkippedDuplicate records a duplicate row left untouched under PolicySkip.
type SkippedDuplicate struct {
	Row int    `json:"row"`
	SKU string `json:"sku"`
}

// Request is the inbound reconcile invocation.
type Request struct {
	FilePath       string `json:"filePath" validate:"required,max=1024"`
	OrganizationID string `json:"organizationId" validate:"required,max=128"`
	UserID         string `json:"userId" validate:"required,max=128"`
	Policy         Policy `json:"actionForDuplicates" validate:"required,oneof=skip add_to_stock update"`
}

// Result is the engine outcome for one batch.
type Result struct {
	Inserted int
	Updated  int
	Skipped  []SkippedDuplicate
	Errors   []RowError
	Warnings []string

	// CategoriesCreated and FoldersCreated count references the run had to create.
	CategoriesCreated int
	FoldersCreated    int
}

var (
	// ErrInvalidPolicy indicates an unknown duplicate policy.
	ErrInvalidPolicy = errors.New("imports: invalid duplicate policy")
	// ErrEmptyTable indicates a file with no header or no data rows.
	ErrEmptyTable = errors.New("imports: file contains no data rows")
	// ErrUnreadableFile indicates a file the spreadsheet readers rejected.
	ErrUnreadableFile = errors.New("imports: file could not be read")
	// ErrUnsupportedFormat indicates a file that is neither CSV nor Excel.
	ErrUnsupportedFormat = errors.New("imports: unsupported file format")
	// ErrImportInProgress indicates another import for the tenant has not finished.
	ErrImportInProgress = errors.New("imports: another import is in progress for this organization")
	// ErrInvalidRequest indicates a malformed reconcile request.
	ErrInvalidRequest = errors.New("imports: invalid request")
	// ErrForeignPath indicates a file path outside the caller's upload prefix.
	ErrForeignPath = errors.New("imports: file path does not belong to organization")
)

// UploadPrefix is the blob prefix holding an organization's pending uploads.
func UploadPrefix(orgID string) string {
	return "imports/" + orgID + "/"
}

// OwnsPath reports whether filePath lives under the organization's upload prefix.
func OwnsPath(filePath, orgID string) bool {
	cleaned, err := blob.CleanKey(filePath)
	if err != nil {
		return false
	}
	return strings.HasPrefix(cleaned, UploadPrefix(orgID))
}

// IsFileError reports whether err describes the uploaded file rather than the system.
func IsFileError(err error) bool {
	return errors.Is(err, ErrEmptyTable) || errors.Is(err, ErrUnsupportedFormat) || errors.Is(err, ErrUnreadableFile)
}
