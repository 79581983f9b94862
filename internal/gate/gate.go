package gate

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/odyssey-erp/stockbook/internal/imports"
)

// Config wires a gate to one tenant and principal.
type Config struct {
	OrganizationID string
	UserID         string
	Backend        Backend
	Logger         *slog.Logger
	// OnTransition runs under the gate lock and must not call Handle.
	OnTransition func(from, to State)
	// OnCommitted is the catalog refresh signal.
	OnCommitted func(imports.Report)
}

// batch is the transient state of one selected file.
type batch struct {
	name    string
	data    []byte
	scan    imports.Scan
	policy  imports.Policy
	folders []string
}

// Gate is a single import controller. Handle calls are serialized.
type Gate struct {
	cfg    Config
	logger *slog.Logger

	mu       sync.Mutex
	state    State
	batch    *batch
	inFlight bool
}

// New constructs an idle gate.
func New(cfg Config) *Gate {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Gate{cfg: cfg, logger: logger.With(slog.String("organization_id", cfg.OrganizationID)), state: Idle{}}
}

// State returns the current state.
func (g *Gate) State() State {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// Active reports whether an import is underway.
func (g *Gate) Active() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.active()
}

func (g *Gate) active() bool {
	if g.inFlight {
		return true
	}
	if _, idle := g.state.(Idle); idle {
		return false
	}
	return !Terminal(g.state)
}

// Handle applies one event and returns the resulting state. A dispatch runs to completion
// inside the call that triggered it; other events during that time get ErrDispatchInFlight.
func (g *Gate) Handle(ctx context.Context, ev Event) (State, error) {
	g.mu.Lock()
	if g.inFlight {
		g.mu.Unlock()
		return Dispatched{}, ErrDispatchInFlight
	}
	err := g.step(ctx, ev)
	dispatched, ok := g.state.(Dispatched)
	if err != nil || !ok {
		st := g.state
		g.mu.Unlock()
		return st, err
	}
	g.inFlight = true
	b := g.batch
	g.mu.Unlock()

	final, err := g.dispatch(ctx, b, dispatched)

	g.mu.Lock()
	g.inFlight = false
	g.enter(final)
	g.batch = nil
	g.mu.Unlock()

	if c, ok := final.(Committed); ok && g.cfg.OnCommitted != nil {
		g.cfg.OnCommitted(c.Report)
	}
	return final, err
}

func (g *Gate) step(ctx context.Context, ev Event) error {
	switch g.state.(type) {
	case Idle, Committed, Aborted:
		switch e := ev.(type) {
		case FileSelected:
			return g.load(ctx, e)
		case Abort:
			if _, idle := g.state.(Idle); idle {
				g.abort(e.Reason)
				return nil
			}
		}
	case DuplicateWarning:
		switch e := ev.(type) {
		case PolicyChosen:
			policy, err := imports.ParsePolicy(string(e.Policy))
			if err != nil {
				return err
			}
			g.batch.policy = policy
			g.advance()
			return nil
		case Abort:
			g.abort(e.Reason)
			return nil
		case FileSelected:
			return imports.ErrImportInProgress
		}
	case NewFolderConfirmation:
		switch e := ev.(type) {
		case FoldersConfirmed:
			g.batch.folders = g.batch.scan.NewFolders
			g.enter(Dispatched{Policy: g.batch.policy, Folders: g.batch.folders})
			return nil
		case Abort:
			g.abort(e.Reason)
			return nil
		case FileSelected:
			return imports.ErrImportInProgress
		}
	}
	return fmt.Errorf("%w: %T in %s", ErrUnexpectedEvent, ev, g.state.Kind())
}

func (g *Gate) load(ctx context.Context, e FileSelected) error {
	rows, err := imports.ParseTable(e.Name, e.Data)
	if err != nil {
		g.enter(Idle{Err: err})
		return err
	}
	idx, err := g.cfg.Backend.CatalogIndex(ctx)
	if err != nil {
		g.enter(Idle{Err: err})
		return fmt.Errorf("load catalog index: %w", err)
	}
	scan := imports.Prescan(rows, idx)
	g.batch = &batch{name: e.Name, data: e.Data, scan: scan, policy: imports.PolicySkip}
	g.enter(Parsed{Scan: scan})
	if len(scan.Duplicates) > 0 {
		g.enter(DuplicateWarning{Duplicates: scan.Duplicates})
		return nil
	}
	g.advance()
	return nil
}

// advance leaves Parsed or DuplicateWarning toward dispatch.
func (g *Gate) advance() {
	if len(g.batch.scan.NewFolders) > 0 {
		g.enter(NewFolderConfirmation{Folders: g.batch.scan.NewFolders})
		return
	}
	g.enter(Dispatched{Policy: g.batch.policy})
}

func (g *Gate) abort(reason string) {
	g.batch = nil
	g.enter(Aborted{Reason: reason})
}

func (g *Gate) enter(next State) {
	prev := g.state
	g.state = next
	g.logger.Debug("import gate transition", slog.String("from", string(prev.Kind())), slog.String("to", string(next.Kind())))
	if g.cfg.OnTransition != nil {
		g.cfg.OnTransition(prev, next)
	}
}

// dispatch runs without the gate lock. Any decodable engine response commits.
func (g *Gate) dispatch(ctx context.Context, b *batch, d Dispatched) (State, error) {
	if len(d.Folders) > 0 {
		if err := g.cfg.Backend.CreateFolders(ctx, d.Folders); err != nil {
			g.logger.Error("create folders", slog.Any("error", err))
			return Aborted{Reason: "folder creation failed", Err: err}, fmt.Errorf("create folders: %w", err)
		}
	}
	filePath, err := g.cfg.Backend.Upload(ctx, b.name, b.data)
	if err != nil {
		g.logger.Error("upload import file", slog.Any("error", err))
		return Aborted{Reason: "upload failed", Err: err}, fmt.Errorf("upload: %w", err)
	}
	rep, err := g.cfg.Backend.Reconcile(ctx, imports.Request{
		FilePath:       filePath,
		OrganizationID: g.cfg.OrganizationID,
		UserID:         g.cfg.UserID,
		Policy:         d.Policy,
	})
	if err != nil {
		g.logger.Error("reconcile import", slog.Any("error", err), slog.String("file_path", filePath))
		return Aborted{Reason: "reconcile failed", FilePath: filePath, Err: err}, fmt.Errorf("reconcile: %w", err)
	}
	g.logger.Info("import committed",
		slog.String("file_path", filePath),
		slog.String("policy", string(d.Policy)),
		slog.Int("inserted", rep.InsertedCount),
		slog.Int("updated", rep.UpdatedCount),
		slog.Int("errors", len(rep.Errors)),
	)
	return Committed{FilePath: filePath, Report: rep}, nil
}
