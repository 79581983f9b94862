package imports

import (
	"context"
	"fmt"

	"github.com/odyssey-erp/stockbook/internal/inventory"
)

// ReferenceStore looks up or creates categories and folders by name.
type ReferenceStore interface {
	EnsureCategory(ctx context.Context, orgID, name string) (inventory.Category, error)
	EnsureFolder(ctx context.Context, orgID, name string) (inventory.Folder, error)
}

// Resolver memoizes name to id lookups for one run so each missing name is created once.
type Resolver struct {
	orgID      string
	store      ReferenceStore
	categories map[string]string
	folders    map[string]string

	createdCategories int
	createdFolders    int
}

// NewResolver seeds the memo from the run snapshot.
func NewResolver(snap inventory.Snapshot, store ReferenceStore) *Resolver {
	r := &Resolver{
		orgID:      snap.OrganizationID,
		store:      store,
		categories: make(map[string]string, len(snap.Categories)),
		folders:    make(map[string]string, len(snap.Folders)),
	}
	for k, c := range snap.Categories {
		r.categories[k] = c.ID
	}
	for k, f := range snap.Folders {
		r.folders[k] = f.ID
	}
	return r
}

// Resolve returns the ids of the candidate's category, primary and picking folder.
func (r *Resolver) Resolve(ctx context.Context, c Candidate) (Refs, error) {
	var refs Refs
	var err error
	if refs.CategoryID, err = r.category(ctx, c.Category); err != nil {
		return Refs{}, err
	}
	if refs.FolderID, err = r.folder(ctx, c.FolderName); err != nil {
		return Refs{}, err
	}
	if refs.PickingFolderID, err = r.folder(ctx, c.PickingFolderName); err != nil {
		return Refs{}, err
	}
	return refs, nil
}

// Created reports how many categories and folders this run created.
func (r *Resolver) Created() (categories, folders int) {
	return r.createdCategories, r.createdFolders
}

func (r *Resolver) category(ctx context.Context, name string) (string, error) {
	key := inventory.Key(name)
	if id, ok := r.categories[key]; ok {
		return id, nil
	}
	c, err := r.store.EnsureCategory(ctx, r.orgID, name)
	if err != nil {
		return "", fmt.Errorf("create category %q: %w", name, err)
	}
	r.categories[key] = c.ID
	r.createdCategories++
	return c.ID, nil
}

func (r *Resolver) folder(ctx context.Context, name string) (string, error) {
	key := inventory.Key(name)
	if id, ok := r.folders[key]; ok {
		return id, nil
	}
	f, err := r.store.EnsureFolder(ctx, r.orgID, name)
	if err != nil {
		return "", fmt.Errorf("create folder %q: %w", name, err)
	}
	r.folders[key] = f.ID
	r.createdFolders++
	return f.ID, nil
}
