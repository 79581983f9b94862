package gate_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/stockbook/internal/gate"
	"github.com/odyssey-erp/stockbook/internal/imports"
	"github.com/odyssey-erp/stockbook/internal/inventory"
)

type fakeBackend struct {
	mu        sync.Mutex
	index     inventory.Index
	folders   [][]string
	uploads   []string
	requests  []imports.Request
	report    imports.Report
	reconErr  error
	block     chan struct{}
	entered   chan struct{}
	mutations int
}

func newBackend() *fakeBackend {
	return &fakeBackend{
		index: inventory.Index{
			SKUs:    []inventory.IndexEntry{{SKU: "A1", Quantity: 7}},
			Folders: []string{"Main", inventory.DefaultFolder},
		},
		report: imports.Report{Message: "Import complete: 1 inserted.", Success: true, InsertedCount: 1, Errors: []string{}},
	}
}

func (b *fakeBackend) CatalogIndex(context.Context) (inventory.Index, error) {
	return b.index, nil
}

func (b *fakeBackend) CreateFolders(_ context.Context, names []string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.mutations++
	b.folders = append(b.folders, names)
	return nil
}

func (b *fakeBackend) Upload(_ context.Context, name string, _ []byte) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.mutations++
	p := "imports/org-1/uuid-" + name
	b.uploads = append(b.uploads, p)
	return p, nil
}

func (b *fakeBackend) Reconcile(_ context.Context, req imports.Request) (imports.Report, error) {
	if b.entered != nil {
		close(b.entered)
	}
	if b.block != nil {
		<-b.block
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.mutations++
	b.requests = append(b.requests, req)
	return b.report, b.reconErr
}

type recorder struct {
	kinds     []gate.Kind
	committed []imports.Report
}

func newGate(b *fakeBackend) (*gate.Gate, *recorder) {
	rec := &recorder{}
	g := gate.New(gate.Config{
		OrganizationID: "org-1",
		UserID:         "user-1",
		Backend:        b,
		OnTransition:   func(_, to gate.State) { rec.kinds = append(rec.kinds, to.Kind()) },
		OnCommitted:    func(r imports.Report) { rec.committed = append(rec.committed, r) },
	})
	return g, rec
}

func selectFile(csv string) gate.FileSelected {
	return gate.FileSelected{Name: "stock.csv", Data: []byte(csv)}
}

func TestGateDispatchesStraightAwayWhenNothingToConfirm(t *testing.T) {
	b := newBackend()
	g, rec := newGate(b)

	st, err := g.Handle(context.Background(), selectFile("sku,name,folderName\nB2,Bolt,Main\n"))
	require.NoError(t, err)
	committed, ok := st.(gate.Committed)
	require.True(t, ok)
	require.Equal(t, "imports/org-1/uuid-stock.csv", committed.FilePath)
	require.Equal(t, []gate.Kind{gate.KindParsed, gate.KindDispatched, gate.KindCommitted}, rec.kinds)
	require.Len(t, rec.committed, 1)

	require.Empty(t, b.folders)
	require.Len(t, b.requests, 1)
	require.Equal(t, imports.Request{
		FilePath:       "imports/org-1/uuid-stock.csv",
		OrganizationID: "org-1",
		UserID:         "user-1",
		Policy:         imports.PolicySkip,
	}, b.requests[0])
}

func TestGateWalksDuplicateAndFolderConfirmation(t *testing.T) {
	b := newBackend()
	g, rec := newGate(b)
	ctx := context.Background()

	st, err := g.Handle(ctx, selectFile("sku,name,pickingBinQuantity,folderName\nA1,Widget,3,Garage\nC3,Cog,1,garage\n"))
	require.NoError(t, err)
	warn, ok := st.(gate.DuplicateWarning)
	require.True(t, ok)
	require.Equal(t, []imports.Duplicate{{Row: 1, SKU: "A1", Name: "Widget", CSVQuantity: 3, ExistingQuantity: 7}}, warn.Duplicates)

	st, err = g.Handle(ctx, gate.PolicyChosen{Policy: imports.PolicyAddToStock})
	require.NoError(t, err)
	confirm, ok := st.(gate.NewFolderConfirmation)
	require.True(t, ok)
	require.Equal(t, []string{"Garage"}, confirm.Folders)
	require.Zero(t, b.mutations)

	st, err = g.Handle(ctx, gate.FoldersConfirmed{})
	require.NoError(t, err)
	require.Equal(t, gate.KindCommitted, st.Kind())
	require.Equal(t, [][]string{{"Garage"}}, b.folders)
	require.Equal(t, imports.PolicyAddToStock, b.requests[0].Policy)
	require.Equal(t, []gate.Kind{
		gate.KindParsed, gate.KindDuplicateWarning, gate.KindNewFolderConfirmation,
		gate.KindDispatched, gate.KindCommitted,
	}, rec.kinds)
}

func TestGateAbortBeforeDispatchMakesNoMutations(t *testing.T) {
	b := newBackend()
	g, rec := newGate(b)
	ctx := context.Background()

	_, err := g.Handle(ctx, selectFile("sku,name\nA1,Widget\n"))
	require.NoError(t, err)
	st, err := g.Handle(ctx, gate.Abort{Reason: "user declined"})
	require.NoError(t, err)
	require.Equal(t, gate.Aborted{Reason: "user declined"}, st)
	require.Zero(t, b.mutations)
	require.Empty(t, rec.committed)
	require.False(t, g.Active())
}

func TestGateRejectsInvalidPolicy(t *testing.T) {
	g, _ := newGate(newBackend())
	ctx := context.Background()
	_, err := g.Handle(ctx, selectFile("sku,name\nA1,Widget\n"))
	require.NoError(t, err)

	st, err := g.Handle(ctx, gate.PolicyChosen{Policy: "merge"})
	require.ErrorIs(t, err, imports.ErrInvalidPolicy)
	require.Equal(t, gate.KindDuplicateWarning, st.Kind())
}

func TestGateEmptyFileStaysIdle(t *testing.T) {
	b := newBackend()
	g, _ := newGate(b)

	st, err := g.Handle(context.Background(), selectFile("sku,name\n"))
	require.ErrorIs(t, err, imports.ErrEmptyTable)
	idle, ok := st.(gate.Idle)
	require.True(t, ok)
	require.ErrorIs(t, idle.Err, imports.ErrEmptyTable)
	require.Zero(t, b.mutations)
}

func TestGateTransportFailureRetainsUploadedPath(t *testing.T) {
	b := newBackend()
	b.reconErr = errors.New("connection reset")
	g, rec := newGate(b)

	st, err := g.Handle(context.Background(), selectFile("sku,name\nB2,Bolt\n"))
	require.Error(t, err)
	aborted, ok := st.(gate.Aborted)
	require.True(t, ok)
	require.Equal(t, "imports/org-1/uuid-stock.csv", aborted.FilePath)
	require.EqualError(t, aborted.Err, "connection reset")
	require.Empty(t, rec.committed)
}

func TestGateRejectsSecondFileWhileConfirming(t *testing.T) {
	g, _ := newGate(newBackend())
	ctx := context.Background()
	_, err := g.Handle(ctx, selectFile("sku,name\nA1,Widget\n"))
	require.NoError(t, err)

	st, err := g.Handle(ctx, selectFile("sku,name\nB2,Bolt\n"))
	require.ErrorIs(t, err, imports.ErrImportInProgress)
	require.Equal(t, gate.KindDuplicateWarning, st.Kind())
}

func TestGateRejectsEventsWhileDispatchInFlight(t *testing.T) {
	b := newBackend()
	b.block = make(chan struct{})
	b.entered = make(chan struct{})
	g, _ := newGate(b)

	done := make(chan gate.State, 1)
	go func() {
		st, _ := g.Handle(context.Background(), selectFile("sku,name\nB2,Bolt\n"))
		done <- st
	}()
	<-b.entered

	_, err := g.Handle(context.Background(), gate.Abort{})
	require.ErrorIs(t, err, gate.ErrDispatchInFlight)
	require.True(t, g.Active())
	require.Equal(t, gate.KindDispatched, g.State().Kind())

	close(b.block)
	require.Equal(t, gate.KindCommitted, (<-done).Kind())
	require.False(t, g.Active())
}

func TestGateStartsOverAfterTerminalState(t *testing.T) {
	b := newBackend()
	g, _ := newGate(b)
	ctx := context.Background()

	_, err := g.Handle(ctx, selectFile("sku,name\nB2,Bolt\n"))
	require.NoError(t, err)
	st, err := g.Handle(ctx, selectFile("sku,name\nC3,Cog\n"))
	require.NoError(t, err)
	require.Equal(t, gate.KindCommitted, st.Kind())
	require.True(t, gate.Terminal(st))
	require.False(t, g.Active())
	require.Len(t, b.requests, 2)

	_, err = g.Handle(ctx, gate.FoldersConfirmed{})
	require.ErrorIs(t, err, gate.ErrUnexpectedEvent)

	require.False(t, gate.Terminal(gate.Idle{}))
	require.False(t, gate.Terminal(gate.DuplicateWarning{}))
	require.True(t, gate.Terminal(gate.Aborted{}))
}

func TestRegistryRejectsConcurrentImportForTenant(t *testing.T) {
	reg := gate.NewRegistry()
	cfg := gate.Config{OrganizationID: "org-1", UserID: "user-1", Backend: newBackend()}
	ctx := context.Background()

	first, err := reg.Open(cfg)
	require.NoError(t, err)
	_, err = first.Handle(ctx, selectFile("sku,name\nA1,Widget\n"))
	require.NoError(t, err)

	_, err = reg.Open(cfg)
	require.ErrorIs(t, err, imports.ErrImportInProgress)

	other := cfg
	other.OrganizationID = "org-2"
	_, err = reg.Open(other)
	require.NoError(t, err)

	_, err = first.Handle(ctx, gate.Abort{})
	require.NoError(t, err)
	second, err := reg.Open(cfg)
	require.NoError(t, err)
	require.NotSame(t, first, second)
}
