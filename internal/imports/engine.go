package imports

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path"

	"github.com/odyssey-erp/stockbook/internal/inventory"
	"github.com/odyssey-erp/stockbook/internal/platform/blob"
	"github.com/odyssey-erp/stockbook/internal/shared"
)

// Catalog is the inventory surface the engine reads and writes.
type Catalog interface {
	ReferenceStore
	Snapshot(ctx context.Context, orgID string) (inventory.Snapshot, error)
	Index(ctx context.Context, orgID string) (inventory.Index, error)
	InsertItems(ctx context.Context, items []inventory.Item) error
	AddStock(ctx context.Context, in inventory.StockAddition) (inventory.Item, *inventory.StockMovement, error)
	Overwrite(ctx context.Context, itemID string, next inventory.Item) (inventory.Item, error)
}

// CleanupEnqueuer hands an undeleted upload to the background cleanup job.
type CleanupEnqueuer interface {
	EnqueueUploadCleanup(ctx context.Context, filePath string) error
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// MetricsPort receives per-batch counters.
type MetricsPort interface {
	ObserveRows(outcome string, n int)
	ObserveBatch(result string)
}

// EngineConfig groups engine collaborators. Locker, Cleanup, Audit and Metrics are optional.
type EngineConfig struct {
	Catalog  Catalog
	Blobs    blob.Store
	Locker   Locker
	Cleanup  CleanupEnqueuer
	Audit    AuditPort
	Metrics  MetricsPort
	Logger   *slog.Logger
	MaxBytes int64
}

// Engine reconciles uploaded files into a tenant catalog.
type Engine struct {
	catalog  Catalog
	blobs    blob.Store
	locker   Locker
	cleanup  CleanupEnqueuer
	audit    AuditPort
	metrics  MetricsPort
	logger   *slog.Logger
	maxBytes int64
}

// NewEngine builds an Engine.
func NewEngine(cfg EngineConfig) *Engine {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	maxBytes := cfg.MaxBytes
	if maxBytes <= 0 {
		maxBytes = 20 << 20
	}
	return &Engine{
		catalog:  cfg.Catalog,
		blobs:    cfg.Blobs,
		locker:   cfg.Locker,
		cleanup:  cfg.Cleanup,
		audit:    cfg.Audit,
		metrics:  cfg.Metrics,
		logger:   logger,
		maxBytes: maxBytes,
	}
}

// Preview parses data and classifies it against the tenant catalog without writing.
func (e *Engine) Preview(ctx context.Context, orgID, name string, data []byte) (Scan, error) {
	rows, err := ParseTable(name, data)
	if err != nil {
		return Scan{}, err
	}
	idx, err := e.catalog.Index(ctx, orgID)
	if err != nil {
		return Scan{}, err
	}
	return Prescan(rows, idx), nil
}

// Reconcile runs one import batch. File level problems (missing blob, unreadable or empty
// table) come back as a single row-less error in Result; the returned error is reserved for
// invalid requests, lock conflicts and infrastructure failures.
func (e *Engine) Reconcile(ctx context.Context, req Request) (Result, error) {
	if err := validate.Struct(req); err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	if e.locker != nil {
		release, err := e.locker.Acquire(ctx, req.OrganizationID)
		if err != nil {
			return Result{}, err
		}
		defer release(context.WithoutCancel(ctx))
	}

	logger := e.logger.With(
		slog.String("organization_id", req.OrganizationID),
		slog.String("policy", string(req.Policy)),
		slog.String("file_path", req.FilePath),
	)
	logger.Info("import started")

	res, err := e.run(ctx, req, logger)
	if err != nil {
		return Result{}, err
	}
	e.removeUpload(ctx, req.FilePath, logger)
	e.finish(ctx, req, res, logger)
	return res, nil
}

func (e *Engine) run(ctx context.Context, req Request, logger *slog.Logger) (Result, error) {
	rows, fileErr := e.load(ctx, req.FilePath)
	if fileErr != nil {
		logger.Warn("import file rejected", slog.Any("error", fileErr))
		return Result{Errors: []RowError{{Message: fileErr.Error()}}}, nil
	}
	snap, err := e.catalog.Snapshot(ctx, req.OrganizationID)
	if err != nil {
		return Result{}, fmt.Errorf("imports: snapshot: %w", err)
	}
	b := &batch{
		req:      req,
		snap:     snap,
		resolver: NewResolver(snap, e.catalog),
		catalog:  e.catalog,
		logger:   logger,
		staged:   make(map[string]int),
		reason:   fmt.Sprintf("Bulk import: %s", path.Base(req.FilePath)),
	}
	for _, raw := range rows {
		b.guard(raw.Row, raw.Get(HeaderSKU), func() { b.stage(ctx, raw) })
	}
	b.flush(ctx)
	b.res.CategoriesCreated, b.res.FoldersCreated = b.resolver.Created()
	return b.res, nil
}

func (e *Engine) load(ctx context.Context, filePath string) ([]RawRow, error) {
	rc, err := e.blobs.Get(ctx, filePath)
	if err != nil {
		if errors.Is(err, blob.ErrNotFound) {
			return nil, fmt.Errorf("uploaded file %s not found", path.Base(filePath))
		}
		return nil, fmt.Errorf("could not read uploaded file: %w", err)
	}
	defer func() { _ = rc.Close() }()
	data, err := io.ReadAll(io.LimitReader(rc, e.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("could not read uploaded file: %w", err)
	}
	if int64(len(data)) > e.maxBytes {
		return nil, fmt.Errorf("uploaded file exceeds %d bytes", e.maxBytes)
	}
	return ParseTable(filePath, data)
}

func (e *Engine) removeUpload(ctx context.Context, filePath string, logger *slog.Logger) {
	err := e.blobs.Delete(ctx, filePath)
	if err == nil {
		return
	}
	logger.Warn("delete uploaded file", slog.Any("error", err))
	if e.cleanup == nil {
		return
	}
	if err := e.cleanup.EnqueueUploadCleanup(ctx, filePath); err != nil {
		logger.Warn("enqueue upload cleanup", slog.Any("error", err))
	}
}

func (e *Engine) finish(ctx context.Context, req Request, res Result, logger *slog.Logger) {
	outcome := Outcome(res)
	if e.metrics != nil {
		e.metrics.ObserveRows("inserted", res.Inserted)
		e.metrics.ObserveRows("updated", res.Updated)
		e.metrics.ObserveRows("skipped", len(res.Skipped))
		e.metrics.ObserveRows("error", len(res.Errors))
		e.metrics.ObserveBatch(outcome)
	}
	if e.audit != nil {
		err := e.audit.Record(ctx, shared.AuditLog{
			ActorID:        req.UserID,
			OrganizationID: req.OrganizationID,
			Action:         "inventory:import",
			Entity:         "import_batch",
			EntityID:       req.FilePath,
			Meta: map[string]any{
				"policy":             string(req.Policy),
				"inserted":           res.Inserted,
				"updated":            res.Updated,
				"skipped":            len(res.Skipped),
				"errors":             len(res.Errors),
				"result":             outcome,
				"categories_created": res.CategoriesCreated,
				"folders_created":    res.FoldersCreated,
			},
		})
		if err != nil {
			logger.Warn("record import audit", slog.Any("error", err))
		}
	}
	logger.Info("import finished",
		slog.String("result", outcome),
		slog.Int("inserted", res.Inserted),
		slog.Int("updated", res.Updated),
		slog.Int("skipped", len(res.Skipped)),
		slog.Int("errors", len(res.Errors)),
		slog.Int("categories_created", res.CategoriesCreated),
		slog.Int("folders_created", res.FoldersCreated),
	)
}

type opKind int

const (
	opAdd opKind = iota
	opOverwrite
)

type stagedInsert struct {
	row  int
	item inventory.Item
}

type stagedUpdate struct {
	kind   opKind
	row    int
	sku    string
	itemID string
	add    inventory.StockAddition
	next   inventory.Item
}

// batch is the per-run reducer state. Rows are folded in order; nothing escapes the loop.
type batch struct {
	req      Request
	snap     inventory.Snapshot
	resolver *Resolver
	catalog  Catalog
	logger   *slog.Logger
	reason   string

	inserts []stagedInsert
	staged  map[string]int
	updates []stagedUpdate
	res     Result
}

func (b *batch) fail(row int, sku, field, msg string) {
	b.logger.Warn("import row failed", slog.Int("row", row), slog.String("sku", sku), slog.String("error", msg))
	b.res.Errors = append(b.res.Errors, RowError{Row: row, SKU: sku, Field: field, Message: msg})
}

// guard converts a panic inside fn into a row error.
func (b *batch) guard(row int, sku string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			b.fail(row, sku, "", fmt.Sprintf("internal error: %v", r))
		}
	}()
	fn()
}

func (b *batch) stage(ctx context.Context, raw RawRow) {
	c, rowErr := Normalize(raw)
	if rowErr != nil {
		b.fail(rowErr.Row, rowErr.SKU, rowErr.Field, rowErr.Message)
		return
	}
	refs, err := b.resolver.Resolve(ctx, c)
	if err != nil {
		b.fail(c.Row, c.SKU, "", err.Error())
		return
	}
	key := inventory.Key(c.SKU)
	existing, ok := b.snap.ItemBySKU(c.SKU)
	if !ok {
		item := c.Item(b.req.OrganizationID, b.req.UserID, refs)
		if prev, dup := b.staged[key]; dup {
			b.res.Warnings = append(b.res.Warnings, fmt.Sprintf(
				"Row %d: SKU %s repeats row %d in this file; the later row wins", c.Row, c.SKU, b.inserts[prev].row))
			b.inserts[prev] = stagedInsert{row: c.Row, item: item}
			return
		}
		b.staged[key] = len(b.inserts)
		b.inserts = append(b.inserts, stagedInsert{row: c.Row, item: item})
		return
	}

	switch b.req.Policy {
	case PolicySkip:
		b.res.Skipped = append(b.res.Skipped, SkippedDuplicate{Row: c.Row, SKU: c.SKU})
	case PolicyAddToStock:
		b.updates = append(b.updates, stagedUpdate{
			kind:   opAdd,
			row:    c.Row,
			sku:    c.SKU,
			itemID: existing.ID,
			add: inventory.StockAddition{
				OrganizationID: b.req.OrganizationID,
				UserID:         b.req.UserID,
				ItemID:         existing.ID,
				Picking:        c.PickingQuantity,
				Overstock:      c.OverstockQuantity,
				Reason:         b.reason,
			},
		})
	case PolicyUpdate:
		b.updates = append(b.updates, stagedUpdate{
			kind:   opOverwrite,
			row:    c.Row,
			sku:    c.SKU,
			itemID: existing.ID,
			next:   c.Item(b.req.OrganizationID, b.req.UserID, refs),
		})
	}
}

func (b *batch) flush(ctx context.Context) {
	if len(b.inserts) > 0 {
		items := make([]inventory.Item, len(b.inserts))
		for i, s := range b.inserts {
			items[i] = s.item
		}
		if err := b.catalog.InsertItems(ctx, items); err != nil {
			for _, s := range b.inserts {
				b.fail(s.row, s.item.SKU, "", fmt.Sprintf("insert failed: %v", err))
			}
		} else {
			b.res.Inserted = len(items)
		}
	}
	for _, u := range b.updates {
		b.guard(u.row, u.sku, func() { b.apply(ctx, u) })
	}
}

func (b *batch) apply(ctx context.Context, u stagedUpdate) {
	var err error
	switch u.kind {
	case opAdd:
		_, _, err = b.catalog.AddStock(ctx, u.add)
	case opOverwrite:
		_, err = b.catalog.Overwrite(ctx, u.itemID, u.next)
	}
	if err != nil {
		b.fail(u.row, u.sku, "", fmt.Sprintf("update failed: %v", err))
		return
	}
	b.res.Updated++
}
