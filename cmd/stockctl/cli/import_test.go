package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/stockbook/internal/gate"
	"github.com/odyssey-erp/stockbook/internal/imports"
	"github.com/odyssey-erp/stockbook/internal/inventory"
)

type stubBackend struct {
	index     inventory.Index
	report    imports.Report
	reconErr  error
	folders   []string
	requests  []imports.Request
	mutations int
}

func newStub() *stubBackend {
	return &stubBackend{
		index: inventory.Index{
			SKUs:    []inventory.IndexEntry{{SKU: "A1", Quantity: 7}},
			Folders: []string{"Main"},
		},
		report: imports.Report{Message: "Import complete.", Success: true, InsertedCount: 1, Errors: []string{}},
	}
}

func (b *stubBackend) CatalogIndex(context.Context) (inventory.Index, error) { return b.index, nil }

func (b *stubBackend) CreateFolders(_ context.Context, names []string) error {
	b.mutations++
	b.folders = append(b.folders, names...)
	return nil
}

func (b *stubBackend) Upload(_ context.Context, name string, _ []byte) (string, error) {
	b.mutations++
	return "imports/org-1/uuid-" + name, nil
}

func (b *stubBackend) Reconcile(_ context.Context, req imports.Request) (imports.Report, error) {
	b.mutations++
	b.requests = append(b.requests, req)
	return b.report, b.reconErr
}

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "stock.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func run(t *testing.T, b *stubBackend, file, stdin string, mutate func(*ImportOptions)) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	opts := ImportOptions{
		File:           file,
		OrganizationID: "org-1",
		UserID:         "user-1",
		Backend:        b,
		Stdin:          strings.NewReader(stdin),
		Stdout:         &stdout,
		Stderr:         &stderr,
	}
	if mutate != nil {
		mutate(&opts)
	}
	code := ImportCommand(context.Background(), opts)
	return code, stdout.String(), stderr.String()
}

func TestImportCommandCleanFile(t *testing.T) {
	b := newStub()
	code, out, _ := run(t, b, writeFile(t, "sku,name,folderName\nB2,Bolt,Main\n"), "", nil)

	require.Equal(t, ExitOK, code)
	require.Contains(t, out, "inserted=1 updated=0 skipped=0 errors=0")
	require.Len(t, b.requests, 1)
	require.Equal(t, imports.PolicySkip, b.requests[0].Policy)
}

func TestImportCommandPromptsForPolicyAndFolders(t *testing.T) {
	b := newStub()
	file := writeFile(t, "sku,name,pickingBinQuantity,folderName\nA1,Widget,3,Garage\n")

	code, out, stderr := run(t, b, file, "merge\nadd_to_stock\ny\n", nil)

	require.Equal(t, ExitOK, code)
	require.Contains(t, out, "1 SKU(s) already exist:")
	require.Contains(t, out, "  - Garage")
	require.Contains(t, stderr, imports.ErrInvalidPolicy.Error())
	require.Equal(t, []string{"Garage"}, b.folders)
	require.Equal(t, imports.PolicyAddToStock, b.requests[0].Policy)
}

func TestImportCommandAbortMakesNoChanges(t *testing.T) {
	b := newStub()
	file := writeFile(t, "sku,name,folderName\nA1,Widget,Main\n")

	code, _, stderr := run(t, b, file, "abort\n", nil)

	require.Equal(t, ExitFailed, code)
	require.Contains(t, stderr, "import aborted: duplicate policy declined")
	require.Zero(t, b.mutations)
}

func TestImportCommandDeclinedFoldersAbort(t *testing.T) {
	b := newStub()
	file := writeFile(t, "sku,name,folderName\nB2,Bolt,Garage\n")

	code, _, stderr := run(t, b, file, "n\n", nil)

	require.Equal(t, ExitFailed, code)
	require.Contains(t, stderr, "folder creation declined")
	require.Zero(t, b.mutations)
}

func TestImportCommandPresetAnswers(t *testing.T) {
	b := newStub()
	file := writeFile(t, "sku,name,folderName\nA1,Widget,Garage\n")

	code, _, _ := run(t, b, file, "", func(o *ImportOptions) {
		o.Policy = "update"
		o.Yes = true
	})

	require.Equal(t, ExitOK, code)
	require.Equal(t, imports.PolicyUpdate, b.requests[0].Policy)
	require.Equal(t, []string{"Garage"}, b.folders)
}

func TestImportCommandPartialSuccess(t *testing.T) {
	b := newStub()
	b.report = imports.Report{
		Message:       "Import finished with errors.",
		Success:       true,
		InsertedCount: 1,
		Errors:        []string{"Row 2: sku is required"},
	}

	code, out, _ := run(t, b, writeFile(t, "sku,name,folderName\nB2,Bolt,Main\n,Nut,Main\n"), "", nil)

	require.Equal(t, ExitPartial, code)
	require.Contains(t, out, "  Row 2: sku is required")
}

func TestImportCommandFailures(t *testing.T) {
	t.Run("empty file", func(t *testing.T) {
		code, _, stderr := run(t, newStub(), writeFile(t, "sku,name\n"), "", nil)
		require.Equal(t, ExitFailed, code)
		require.Contains(t, stderr, imports.ErrEmptyTable.Error())
	})

	t.Run("invalid preset policy", func(t *testing.T) {
		code, _, _ := run(t, newStub(), writeFile(t, "sku,name\nB2,Bolt\n"), "", func(o *ImportOptions) {
			o.Policy = "merge"
		})
		require.Equal(t, ExitFailed, code)
	})

	t.Run("missing principal", func(t *testing.T) {
		code, _, stderr := run(t, newStub(), writeFile(t, "sku,name\nB2,Bolt\n"), "", func(o *ImportOptions) {
			o.UserID = ""
		})
		require.Equal(t, ExitFailed, code)
		require.Contains(t, stderr, "--org and --user are required")
	})

	t.Run("lock held", func(t *testing.T) {
		b := newStub()
		b.reconErr = imports.ErrImportInProgress
		code, _, stderr := run(t, b, writeFile(t, "sku,name,folderName\nB2,Bolt,Main\n"), "", nil)
		require.Equal(t, ExitFailed, code)
		require.Contains(t, stderr, "another import is running for this organization")
		require.Contains(t, stderr, "uploaded file left at imports/org-1/uuid-stock.csv")
	})
}

func TestImportCommandSharesRegistry(t *testing.T) {
	b := newStub()
	reg := gate.NewRegistry()

	pending, err := reg.Open(gate.Config{OrganizationID: "org-1", UserID: "user-1", Backend: b})
	require.NoError(t, err)
	st, err := pending.Handle(context.Background(), gate.FileSelected{Name: "a.csv", Data: []byte("sku,name\nA1,Widget\n")})
	require.NoError(t, err)
	require.Equal(t, gate.KindDuplicateWarning, st.Kind())

	file := writeFile(t, "sku,name,folderName\nB2,Bolt,Main\n")
	code, _, stderr := run(t, b, file, "", func(o *ImportOptions) { o.Registry = reg })
	require.Equal(t, ExitFailed, code)
	require.Contains(t, stderr, "another import is running for this organization")
	require.Zero(t, b.mutations)

	_, err = pending.Handle(context.Background(), gate.Abort{Reason: "done"})
	require.NoError(t, err)

	code, _, _ = run(t, b, file, "", func(o *ImportOptions) { o.Registry = reg })
	require.Equal(t, ExitOK, code)
	code, _, _ = run(t, b, file, "", func(o *ImportOptions) { o.Registry = reg })
	require.Equal(t, ExitOK, code)
}
