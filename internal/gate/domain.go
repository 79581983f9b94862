// Package gate sequences a client-side import through duplicate and folder confirmations
// before handing the file to the reconcile endpoint.
package gate

import (
	"context"
	"errors"

	"github.com/odyssey-erp/stockbook/internal/imports"
	"github.com/odyssey-erp/stockbook/internal/inventory"
)

// Kind names a gate state.
type Kind string

const (
	KindIdle                  Kind = "IDLE"
	KindParsed                Kind = "PARSED"
	KindDuplicateWarning      Kind = "DUPLICATE_WARNING"
	KindNewFolderConfirmation Kind = "NEW_FOLDER_CONFIRMATION"
	KindDispatched            Kind = "DISPATCHED"
	KindCommitted             Kind = "COMMITTED"
	KindAborted               Kind = "ABORTED"
)

// State is one node of the gate. Each state carries only the data valid in it.
type State interface {
	Kind() Kind
}

// Idle waits for a file. Err holds the last parse failure, if any.
type Idle struct {
	Err error
}

// Parsed holds the pre-scan of a freshly parsed file.
type Parsed struct {
	Scan imports.Scan
}

// DuplicateWarning waits for the user to pick a duplicate policy.
type DuplicateWarning struct {
	Duplicates []imports.Duplicate
}

// NewFolderConfirmation waits for the user to approve creating folders.
type NewFolderConfirmation struct {
	Folders []string
}

// Dispatched means the file is being uploaded and reconciled.
type Dispatched struct {
	Policy  imports.Policy
	Folders []string
}

// Committed holds the engine report. Partial success is still committed.
type Committed struct {
	FilePath string
	Report   imports.Report
}

// Aborted is terminal. FilePath is set when the upload succeeded but reconcile did not.
type Aborted struct {
	Reason   string
	FilePath string
	Err      error
}

func (Idle) Kind() Kind                  { return KindIdle }
func (Parsed) Kind() Kind                { return KindParsed }
func (DuplicateWarning) Kind() Kind      { return KindDuplicateWarning }
func (NewFolderConfirmation) Kind() Kind { return KindNewFolderConfirmation }
func (Dispatched) Kind() Kind            { return KindDispatched }
func (Committed) Kind() Kind             { return KindCommitted }
func (Aborted) Kind() Kind               { return KindAborted }

// Event drives a transition.
type Event interface {
	event()
}

// FileSelected starts an import from raw file bytes.
type FileSelected struct {
	Name string
	Data []byte
}

// PolicyChosen answers the duplicate warning.
type PolicyChosen struct {
	Policy imports.Policy
}

// FoldersConfirmed approves creating the listed folders.
type FoldersConfirmed struct{}

// Abort cancels the import before dispatch.
type Abort struct {
	Reason string
}

func (FileSelected) event()     {}
func (PolicyChosen) event()     {}
func (FoldersConfirmed) event() {}
func (Abort) event()            {}

// Backend is the server surface the gate talks to.
type Backend interface {
	CatalogIndex(ctx context.Context) (inventory.Index, error)
	CreateFolders(ctx context.Context, names []string) error
	Upload(ctx context.Context, name string, data []byte) (string, error)
	Reconcile(ctx context.Context, req imports.Request) (imports.Report, error)
}

var (
	// ErrUnexpectedEvent indicates an event the current state does not accept.
	ErrUnexpectedEvent = errors.New("gate: event not valid in current state")
	// ErrDispatchInFlight indicates the gate is waiting on the engine.
	ErrDispatchInFlight = errors.New("gate: dispatch already in flight")
)

// Terminal reports whether s ends an import.
func Terminal(s State) bool {
	switch s.(type) {
	case Committed, Aborted:
		return true
	default:
		return false
	}
}
