// Package inventorytest provides an in-memory inventory repository for tests.
package inventorytest

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/odyssey-erp/stockbook/internal/inventory"
	"github.com/odyssey-erp/stockbook/internal/platform/db"
)

type state struct {
	categories map[string]inventory.Category
	folders    map[string]inventory.Folder
	items      map[string]inventory.Item
	movements  []inventory.StockMovement
}

func (s state) clone() state {
	out := state{
		categories: make(map[string]inventory.Category, len(s.categories)),
		folders:    make(map[string]inventory.Folder, len(s.folders)),
		items:      make(map[string]inventory.Item, len(s.items)),
		movements:  append([]inventory.StockMovement(nil), s.movements...),
	}
	for k, v := range s.categories {
		out.categories[k] = v
	}
	for k, v := range s.folders {
		out.folders[k] = v
	}
	for k, v := range s.items {
		out.items[k] = v
	}
	return out
}

// Repository is a transactional in-memory RepositoryPort. Each WithTx works on a copy
// that replaces the committed state only when the callback succeeds.
type Repository struct {
	mu        sync.Mutex
	committed state

	// FailInsertItems makes every InsertItems call fail.
	FailInsertItems error
	// FailUpdate maps a folded SKU to the error UpdateItem returns for it.
	FailUpdate map[string]error
	// FailFolder maps a folded folder name to the error InsertFolder returns for it.
	FailFolder map[string]error
	// RaceFolders maps a folded folder name to a folder a concurrent writer commits just
	// before our insert, which then fails with a unique violation.
	RaceFolders map[string]inventory.Folder

	CategoryInserts int
	FolderInserts   int
}

// New returns an empty repository.
func New() *Repository {
	return &Repository{
		committed: state{
			categories: map[string]inventory.Category{},
			folders:    map[string]inventory.Folder{},
			items:      map[string]inventory.Item{},
		},
		FailUpdate:  map[string]error{},
		FailFolder:  map[string]error{},
		RaceFolders: map[string]inventory.Folder{},
	}
}

// SeedCategory stores a category directly.
func (r *Repository) SeedCategory(c inventory.Category) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.committed.categories[inventory.Key(c.Name)] = c
}

// SeedFolder stores a folder directly.
func (r *Repository) SeedFolder(f inventory.Folder) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.committed.folders[inventory.Key(f.Name)] = f
}

// SeedItem stores an item directly after recomputing its derived fields.
func (r *Repository) SeedItem(it inventory.Item) {
	r.mu.Lock()
	defer r.mu.Unlock()
	it.Recompute()
	r.committed.items[inventory.Key(it.SKU)] = it
}

// Item returns the committed item for sku.
func (r *Repository) Item(sku string) (inventory.Item, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	it, ok := r.committed.items[inventory.Key(sku)]
	return it, ok
}

// Items returns committed items sorted by SKU.
func (r *Repository) Items() []inventory.Item {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]inventory.Item, 0, len(r.committed.items))
	for _, it := range r.committed.items {
		out = append(out, it)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SKU < out[j].SKU })
	return out
}

// Folders returns committed folders sorted by name.
func (r *Repository) Folders() []inventory.Folder {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]inventory.Folder, 0, len(r.committed.folders))
	for _, f := range r.committed.folders {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Categories returns committed categories sorted by name.
func (r *Repository) Categories() []inventory.Category {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]inventory.Category, 0, len(r.committed.categories))
	for _, c := range r.committed.categories {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Movements returns the committed ledger in write order.
func (r *Repository) Movements() []inventory.StockMovement {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]inventory.StockMovement(nil), r.committed.movements...)
}

// WithTx runs fn against a private copy and commits it on success.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, inventory.TxRepository) error) error {
	r.mu.Lock()
	work := r.committed.clone()
	r.mu.Unlock()

	tx := &memoryTx{repo: r, st: work}
	if err := fn(ctx, tx); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.committed = tx.st
	return nil
}

// LoadSnapshot copies the committed state for one organization.
func (r *Repository) LoadSnapshot(_ context.Context, orgID string) (inventory.Snapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	snap := inventory.NewSnapshot(orgID)
	for k, c := range r.committed.categories {
		if c.OrganizationID == orgID {
			snap.Categories[k] = c
		}
	}
	for k, f := range r.committed.folders {
		if f.OrganizationID == orgID {
			snap.Folders[k] = f
		}
	}
	for k, it := range r.committed.items {
		if it.OrganizationID == orgID {
			snap.Items[k] = it
		}
	}
	return snap, nil
}

type memoryTx struct {
	repo *Repository
	st   state
}

func uniqueViolation(what string) error {
	return fmt.Errorf("insert %s: %w", what, &pgconn.PgError{Code: db.UniqueViolation, Message: "duplicate key value"})
}

func (tx *memoryTx) FindCategoryByName(_ context.Context, orgID, name string) (inventory.Category, error) {
	c, ok := tx.st.categories[inventory.Key(name)]
	if !ok || c.OrganizationID != orgID {
		return inventory.Category{}, inventory.ErrCategoryNotFound
	}
	return c, nil
}

func (tx *memoryTx) InsertCategory(_ context.Context, c inventory.Category) error {
	key := inventory.Key(c.Name)
	if _, ok := tx.st.categories[key]; ok {
		return uniqueViolation("category")
	}
	tx.st.categories[key] = c
	tx.repo.CategoryInserts++
	return nil
}

func (tx *memoryTx) FindFolderByName(_ context.Context, orgID, name string) (inventory.Folder, error) {
	f, ok := tx.st.folders[inventory.Key(name)]
	if !ok || f.OrganizationID != orgID {
		return inventory.Folder{}, inventory.ErrFolderNotFound
	}
	return f, nil
}

func (tx *memoryTx) InsertFolder(_ context.Context, f inventory.Folder) error {
	key := inventory.Key(f.Name)
	if err := tx.repo.FailFolder[key]; err != nil {
		return err
	}
	if winner, ok := tx.repo.RaceFolders[key]; ok {
		delete(tx.repo.RaceFolders, key)
		tx.repo.mu.Lock()
		tx.repo.committed.folders[key] = winner
		tx.repo.mu.Unlock()
		return uniqueViolation("folder")
	}
	if _, ok := tx.st.folders[key]; ok {
		return uniqueViolation("folder")
	}
	tx.st.folders[key] = f
	tx.repo.FolderInserts++
	return nil
}

func (tx *memoryTx) InsertItems(_ context.Context, items []inventory.Item) error {
	if tx.repo.FailInsertItems != nil {
		return tx.repo.FailInsertItems
	}
	for _, it := range items {
		key := inventory.Key(it.SKU)
		if _, ok := tx.st.items[key]; ok {
			return uniqueViolation("item " + it.SKU)
		}
		tx.st.items[key] = it
	}
	return nil
}

func (tx *memoryTx) GetItemForUpdate(_ context.Context, orgID, itemID string) (inventory.Item, error) {
	for _, it := range tx.st.items {
		if it.ID == itemID && it.OrganizationID == orgID {
			return it, nil
		}
	}
	return inventory.Item{}, inventory.ErrItemNotFound
}

func (tx *memoryTx) UpdateItem(_ context.Context, it inventory.Item) error {
	key := inventory.Key(it.SKU)
	if err := tx.repo.FailUpdate[key]; err != nil {
		return err
	}
	for k, existing := range tx.st.items {
		if existing.ID == it.ID && existing.OrganizationID == it.OrganizationID {
			delete(tx.st.items, k)
			tx.st.items[key] = it
			return nil
		}
	}
	return inventory.ErrItemNotFound
}

func (tx *memoryTx) InsertMovement(_ context.Context, m inventory.StockMovement) error {
	if err := m.Validate(); err != nil {
		return err
	}
	tx.st.movements = append(tx.st.movements, m)
	return nil
}
