package inventory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/odyssey-erp/stockbook/internal/platform/db"
)

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	LoadSnapshot(ctx context.Context, orgID string) (Snapshot, error)
}

// Service coordinates catalog reads and the writes an import run performs.
type Service struct {
	repo RepositoryPort
	now  func() time.Time
}

// NewService builds Service.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo, now: func() time.Time { return time.Now().UTC() }}
}

// Snapshot loads the tenant catalog once.
func (s *Service) Snapshot(ctx context.Context, orgID string) (Snapshot, error) {
	if orgID == "" {
		return Snapshot{}, errors.New("inventory: organization required")
	}
	return s.repo.LoadSnapshot(ctx, orgID)
}

// Index lists SKUs with quantities and folder names, sorted for stable output.
func (s *Service) Index(ctx context.Context, orgID string) (Index, error) {
	snap, err := s.Snapshot(ctx, orgID)
	if err != nil {
		return Index{}, err
	}
	idx := Index{SKUs: make([]IndexEntry, 0, len(snap.Items)), Folders: make([]string, 0, len(snap.Folders))}
	for _, it := range snap.Items {
		idx.SKUs = append(idx.SKUs, IndexEntry{SKU: it.SKU, Quantity: it.Quantity})
	}
	for _, f := range snap.Folders {
		idx.Folders = append(idx.Folders, f.Name)
	}
	sort.Slice(idx.SKUs, func(i, j int) bool { return idx.SKUs[i].SKU < idx.SKUs[j].SKU })
	sort.Strings(idx.Folders)
	return idx, nil
}

// EnsureCategory returns the named category, creating it with the neutral color when absent.
// A concurrent creator winning the unique index is resolved by re-reading.
func (s *Service) EnsureCategory(ctx context.Context, orgID, name string) (Category, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Category{}, ErrNameRequired
	}
	var out Category
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		existing, err := tx.FindCategoryByName(ctx, orgID, name)
		if err == nil {
			out = existing
			return nil
		}
		if !errors.Is(err, ErrCategoryNotFound) {
			return err
		}
		out = Category{ID: uuid.NewString(), OrganizationID: orgID, Name: name, Color: NeutralColor, CreatedAt: s.now()}
		return tx.InsertCategory(ctx, out)
	})
	if err != nil && db.IsUniqueViolation(err) {
		err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
			var findErr error
			out, findErr = tx.FindCategoryByName(ctx, orgID, name)
			return findErr
		})
	}
	if err != nil {
		return Category{}, fmt.Errorf("inventory: ensure category %q: %w", name, err)
	}
	return out, nil
}

// EnsureFolder returns the named top-level folder, creating it when absent.
func (s *Service) EnsureFolder(ctx context.Context, orgID, name string) (Folder, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Folder{}, ErrNameRequired
	}
	var out Folder
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		existing, err := tx.FindFolderByName(ctx, orgID, name)
		if err == nil {
			out = existing
			return nil
		}
		if !errors.Is(err, ErrFolderNotFound) {
			return err
		}
		out = Folder{ID: uuid.NewString(), OrganizationID: orgID, Name: name, Color: NeutralColor, CreatedAt: s.now()}
		return tx.InsertFolder(ctx, out)
	})
	if err != nil && db.IsUniqueViolation(err) {
		err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
			var findErr error
			out, findErr = tx.FindFolderByName(ctx, orgID, name)
			return findErr
		})
	}
	if err != nil {
		return Folder{}, fmt.Errorf("inventory: ensure folder %q: %w", name, err)
	}
	return out, nil
}

// EnsureFolders creates every missing folder in names. Names differing only by case collapse to one.
func (s *Service) EnsureFolders(ctx context.Context, orgID string, names []string) ([]Folder, error) {
	seen := make(map[string]struct{}, len(names))
	out := make([]Folder, 0, len(names))
	for _, name := range names {
		key := Key(name)
		if key == "" {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		f, err := s.EnsureFolder(ctx, orgID, name)
		if err != nil {
			return out, err
		}
		out = append(out, f)
	}
	return out, nil
}

// InsertItems writes all items in one transaction. Quantity and status are recomputed.
func (s *Service) InsertItems(ctx context.Context, items []Item) error {
	if len(items) == 0 {
		return nil
	}
	now := s.now()
	prepared := make([]Item, len(items))
	for i, it := range items {
		if it.PickingQuantity < 0 || it.OverstockQuantity < 0 {
			return ErrInvalidQuantity
		}
		if it.ID == "" {
			it.ID = uuid.NewString()
		}
		it.LastUpdated = now
		it.Recompute()
		prepared[i] = it
	}
	return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		return tx.InsertItems(ctx, prepared)
	})
}

// AddStock adds picking and overstock quantities to an existing item and records one add
// movement in the same transaction. A zero amount updates the item without a movement.
func (s *Service) AddStock(ctx context.Context, in StockAddition) (Item, *StockMovement, error) {
	if in.Picking < 0 || in.Overstock < 0 {
		return Item{}, nil, ErrInvalidQuantity
	}
	var (
		updated  Item
		movement *StockMovement
	)
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		item, err := tx.GetItemForUpdate(ctx, in.OrganizationID, in.ItemID)
		if err != nil {
			return err
		}
		now := s.now()
		oldQty := item.Quantity
		item.PickingQuantity += in.Picking
		item.OverstockQuantity += in.Overstock
		item.UserID = in.UserID
		item.LastUpdated = now
		item.Recompute()
		if err := tx.UpdateItem(ctx, item); err != nil {
			return err
		}
		updated = item
		amount := in.Picking + in.Overstock
		if amount == 0 {
			return nil
		}
		m := StockMovement{
			ID:             uuid.NewString(),
			ItemID:         item.ID,
			ItemName:       item.Name,
			Type:           MovementAdd,
			Amount:         amount,
			OldQuantity:    oldQty,
			NewQuantity:    oldQty + amount,
			Reason:         in.Reason,
			FolderID:       item.FolderID,
			OrganizationID: in.OrganizationID,
			UserID:         in.UserID,
			CreatedAt:      now,
		}
		if err := tx.InsertMovement(ctx, m); err != nil {
			return err
		}
		movement = &m
		return nil
	})
	if err != nil {
		return Item{}, nil, err
	}
	return updated, movement, nil
}

// Overwrite replaces every editable field of an existing item with next. Identity fields
// (id, organization) are kept from the stored row. No movement is written.
func (s *Service) Overwrite(ctx context.Context, itemID string, next Item) (Item, error) {
	if next.PickingQuantity < 0 || next.OverstockQuantity < 0 {
		return Item{}, ErrInvalidQuantity
	}
	var updated Item
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetItemForUpdate(ctx, next.OrganizationID, itemID)
		if err != nil {
			return err
		}
		next.ID = current.ID
		next.OrganizationID = current.OrganizationID
		next.LastUpdated = s.now()
		next.Recompute()
		if err := tx.UpdateItem(ctx, next); err != nil {
			return err
		}
		updated = next
		return nil
	})
	if err != nil {
		return Item{}, err
	}
	return updated, nil
}
