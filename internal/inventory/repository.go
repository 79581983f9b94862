package inventory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/odyssey-erp/stockbook/internal/platform/db"
)

// Repository persists catalog data in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes transactional operations used by service.
type TxRepository interface {
	FindCategoryByName(ctx context.Context, orgID, name string) (Category, error)
	InsertCategory(ctx context.Context, category Category) error
	FindFolderByName(ctx context.Context, orgID, name string) (Folder, error)
	InsertFolder(ctx context.Context, folder Folder) error
	InsertItems(ctx context.Context, items []Item) error
	GetItemForUpdate(ctx context.Context, orgID, itemID string) (Item, error)
	UpdateItem(ctx context.Context, item Item) error
	InsertMovement(ctx context.Context, movement StockMovement) error
}

type txRepo struct {
	tx pgx.Tx
}

// WithTx executes the callback inside repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepo{tx: tx})
	})
}

// LoadSnapshot reads categories, folders and items for one organization concurrently.
func (r *Repository) LoadSnapshot(ctx context.Context, orgID string) (Snapshot, error) {
	snap := NewSnapshot(orgID)
	var (
		categories []Category
		folders    []Folder
		items      []Item
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		categories, err = r.listCategories(gctx, orgID)
		return err
	})
	g.Go(func() error {
		var err error
		folders, err = r.listFolders(gctx, orgID)
		return err
	})
	g.Go(func() error {
		var err error
		items, err = r.listItems(gctx, orgID)
		return err
	})
	if err := g.Wait(); err != nil {
		return Snapshot{}, fmt.Errorf("inventory: load snapshot: %w", err)
	}
	for _, c := range categories {
		snap.Categories[Key(c.Name)] = c
	}
	for _, f := range folders {
		snap.Folders[Key(f.Name)] = f
	}
	for _, it := range items {
		snap.Items[Key(it.SKU)] = it
	}
	return snap, nil
}

const categoryColumns = `id, organization_id, name, color, created_at`

const folderColumns = `id, organization_id, name, color, COALESCE(parent_id::text, ''), created_at`

const itemColumns = `id, organization_id, user_id, sku, name, description, COALESCE(category_id::text, ''),
	COALESCE(folder_id::text, ''), COALESCE(picking_folder_id::text, ''), picking_quantity, overstock_quantity,
	quantity, reorder_level, picking_reorder_level, unit_cost::text, retail_price::text, status, image_url,
	vendor_id, barcode, tags, notes, auto_reorder_enabled, picking_auto_reorder_enabled, last_updated`

func (r *Repository) listCategories(ctx context.Context, orgID string) ([]Category, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+categoryColumns+` FROM categories WHERE organization_id = $1 ORDER BY name`, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Category
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *Repository) listFolders(ctx context.Context, orgID string) ([]Folder, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+folderColumns+` FROM folders WHERE organization_id = $1 ORDER BY name`, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Folder
	for rows.Next() {
		f, err := scanFolder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

func (r *Repository) listItems(ctx context.Context, orgID string) ([]Item, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+itemColumns+` FROM inventory_items WHERE organization_id = $1 ORDER BY sku`, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Item
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

func (r *txRepo) FindCategoryByName(ctx context.Context, orgID, name string) (Category, error) {
	row := r.tx.QueryRow(ctx, `SELECT `+categoryColumns+` FROM categories WHERE organization_id = $1 AND lower(name) = lower($2)`, orgID, name)
	c, err := scanCategory(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Category{}, ErrCategoryNotFound
	}
	return c, err
}

func (r *txRepo) InsertCategory(ctx context.Context, c Category) error {
	_, err := r.tx.Exec(ctx, `INSERT INTO categories (id, organization_id, name, color, created_at) VALUES ($1, $2, $3, $4, $5)`,
		c.ID, c.OrganizationID, c.Name, c.Color, c.CreatedAt)
	return err
}

func (r *txRepo) FindFolderByName(ctx context.Context, orgID, name string) (Folder, error) {
	row := r.tx.QueryRow(ctx, `SELECT `+folderColumns+` FROM folders WHERE organization_id = $1 AND lower(name) = lower($2)`, orgID, name)
	f, err := scanFolder(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Folder{}, ErrFolderNotFound
	}
	return f, err
}

func (r *txRepo) InsertFolder(ctx context.Context, f Folder) error {
	_, err := r.tx.Exec(ctx, `INSERT INTO folders (id, organization_id, name, color, parent_id, created_at) VALUES ($1, $2, $3, $4, NULLIF($5, '')::uuid, $6)`,
		f.ID, f.OrganizationID, f.Name, f.Color, f.ParentID, f.CreatedAt)
	return err
}

const insertItemSQL = `INSERT INTO inventory_items (id, organization_id, user_id, sku, name, description, category_id,
	folder_id, picking_folder_id, picking_quantity, overstock_quantity, quantity, reorder_level, picking_reorder_level,
	unit_cost, retail_price, status, image_url, vendor_id, barcode, tags, notes, auto_reorder_enabled,
	picking_auto_reorder_enabled, last_updated)
VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, '')::uuid, NULLIF($8, '')::uuid, NULLIF($9, '')::uuid, $10, $11, $12, $13, $14,
	$15::numeric, $16::numeric, $17, $18, $19, $20, $21, $22, $23, $24, $25)`

// InsertItems queues every insert on one batch; the surrounding transaction makes it all-or-nothing.
func (r *txRepo) InsertItems(ctx context.Context, items []Item) error {
	if len(items) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, it := range items {
		batch.Queue(insertItemSQL, it.ID, it.OrganizationID, it.UserID, it.SKU, it.Name, it.Description, it.CategoryID,
			it.FolderID, it.PickingFolderID, it.PickingQuantity, it.OverstockQuantity, it.Quantity, it.ReorderLevel,
			it.PickingReorderLevel, it.UnitCost.String(), it.RetailPrice.String(), string(it.Status), it.ImageURL,
			it.VendorID, it.Barcode, it.Tags, it.Notes, it.AutoReorderEnabled, it.PickingAutoReorderEnabled, it.LastUpdated)
	}
	br := r.tx.SendBatch(ctx, batch)
	for i := range items {
		if _, err := br.Exec(); err != nil {
			_ = br.Close()
			return fmt.Errorf("inventory: insert item %s: %w", items[i].SKU, err)
		}
	}
	return br.Close()
}

func (r *txRepo) GetItemForUpdate(ctx context.Context, orgID, itemID string) (Item, error) {
	row := r.tx.QueryRow(ctx, `SELECT `+itemColumns+` FROM inventory_items WHERE organization_id = $1 AND id = $2 FOR UPDATE`, orgID, itemID)
	it, err := scanItem(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Item{}, ErrItemNotFound
	}
	return it, err
}

func (r *txRepo) UpdateItem(ctx context.Context, it Item) error {
	tag, err := r.tx.Exec(ctx, `UPDATE inventory_items SET user_id = $3, sku = $4, name = $5, description = $6,
	category_id = NULLIF($7, '')::uuid, folder_id = NULLIF($8, '')::uuid, picking_folder_id = NULLIF($9, '')::uuid,
	picking_quantity = $10, overstock_quantity = $11, quantity = $12, reorder_level = $13, picking_reorder_level = $14,
	unit_cost = $15::numeric, retail_price = $16::numeric, status = $17, image_url = $18, vendor_id = $19, barcode = $20,
	tags = $21, notes = $22, auto_reorder_enabled = $23, picking_auto_reorder_enabled = $24, last_updated = $25
WHERE organization_id = $1 AND id = $2`,
		it.OrganizationID, it.ID, it.UserID, it.SKU, it.Name, it.Description, it.CategoryID, it.FolderID, it.PickingFolderID,
		it.PickingQuantity, it.OverstockQuantity, it.Quantity, it.ReorderLevel, it.PickingReorderLevel, it.UnitCost.String(),
		it.RetailPrice.String(), string(it.Status), it.ImageURL, it.VendorID, it.Barcode, it.Tags, it.Notes,
		it.AutoReorderEnabled, it.PickingAutoReorderEnabled, it.LastUpdated)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrItemNotFound
	}
	return nil
}

func (r *txRepo) InsertMovement(ctx context.Context, m StockMovement) error {
	if err := m.Validate(); err != nil {
		return err
	}
	_, err := r.tx.Exec(ctx, `INSERT INTO stock_movements (id, item_id, item_name, type, amount, old_quantity, new_quantity,
	reason, folder_id, organization_id, user_id, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NULLIF($9, '')::uuid, $10, $11, $12)`,
		m.ID, m.ItemID, m.ItemName, string(m.Type), m.Amount, m.OldQuantity, m.NewQuantity, m.Reason, m.FolderID,
		m.OrganizationID, m.UserID, m.CreatedAt)
	return err
}

func scanCategory(row pgx.Row) (Category, error) {
	var c Category
	err := row.Scan(&c.ID, &c.OrganizationID, &c.Name, &c.Color, &c.CreatedAt)
	return c, err
}

func scanFolder(row pgx.Row) (Folder, error) {
	var f Folder
	err := row.Scan(&f.ID, &f.OrganizationID, &f.Name, &f.Color, &f.ParentID, &f.CreatedAt)
	return f, err
}

func scanItem(row pgx.Row) (Item, error) {
	var (
		it               Item
		unitCost, retail string
		status           string
		lastUpdated      time.Time
	)
	err := row.Scan(&it.ID, &it.OrganizationID, &it.UserID, &it.SKU, &it.Name, &it.Description, &it.CategoryID,
		&it.FolderID, &it.PickingFolderID, &it.PickingQuantity, &it.OverstockQuantity, &it.Quantity, &it.ReorderLevel,
		&it.PickingReorderLevel, &unitCost, &retail, &status, &it.ImageURL, &it.VendorID, &it.Barcode, &it.Tags,
		&it.Notes, &it.AutoReorderEnabled, &it.PickingAutoReorderEnabled, &lastUpdated)
	if err != nil {
		return Item{}, err
	}
	if it.UnitCost, err = decimal.NewFromString(unitCost); err != nil {
		return Item{}, fmt.Errorf("inventory: unit cost: %w", err)
	}
	if it.RetailPrice, err = decimal.NewFromString(retail); err != nil {
		return Item{}, fmt.Errorf("inventory: retail price: %w", err)
	}
	it.Status = Status(status)
	it.LastUpdated = lastUpdated
	return it, nil
}
