package inventory_test

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/stockbook/internal/inventory"
	"github.com/odyssey-erp/stockbook/internal/inventory/inventorytest"
)

const org = "org-1"

func TestDeriveStatus(t *testing.T) {
	require.Equal(t, inventory.StatusOutOfStock, inventory.DeriveStatus(0, 5))
	require.Equal(t, inventory.StatusOutOfStock, inventory.DeriveStatus(-3, 0))
	require.Equal(t, inventory.StatusLowStock, inventory.DeriveStatus(5, 5))
	require.Equal(t, inventory.StatusLowStock, inventory.DeriveStatus(1, 10))
	require.Equal(t, inventory.StatusInStock, inventory.DeriveStatus(6, 5))
	require.Equal(t, inventory.StatusInStock, inventory.DeriveStatus(1, 0))
}

func TestKeyFoldsCaseAndSpace(t *testing.T) {
	require.Equal(t, inventory.Key("  ABC-1 "), inventory.Key("abc-1"))
	require.Equal(t, inventory.Key("ÄPFEL"), inventory.Key("äpfel"))
	require.NotEqual(t, inventory.Key("STRASSE"), inventory.Key("straße"))
}

func TestMovementValidate(t *testing.T) {
	ok := inventory.StockMovement{Type: inventory.MovementAdd, Amount: 5, OldQuantity: 10, NewQuantity: 15}
	require.NoError(t, ok.Validate())

	bad := ok
	bad.NewQuantity = 14
	require.ErrorIs(t, bad.Validate(), inventory.ErrInvalidMovement)

	sub := inventory.StockMovement{Type: inventory.MovementSubtract, Amount: 2, OldQuantity: 10, NewQuantity: 8}
	require.NoError(t, sub.Validate())

	zero := inventory.StockMovement{Type: inventory.MovementAdd, Amount: 0}
	require.ErrorIs(t, zero.Validate(), inventory.ErrInvalidMovement)
}

func TestEnsureFolderCreatesOnceIgnoringCase(t *testing.T) {
	repo := inventorytest.New()
	svc := inventory.NewService(repo)
	ctx := context.Background()

	first, err := svc.EnsureFolder(ctx, org, "Back Room")
	require.NoError(t, err)
	require.Equal(t, inventory.NeutralColor, first.Color)
	require.Empty(t, first.ParentID)

	second, err := svc.EnsureFolder(ctx, org, "back room")
	require.NoError(t, err)
	require.Equal(t, first.ID, second.ID)
	require.Equal(t, 1, repo.FolderInserts)
}

func TestEnsureFolderRereadsAfterUniqueViolation(t *testing.T) {
	repo := inventorytest.New()
	winner := inventory.Folder{ID: "folder-winner", OrganizationID: org, Name: "Dock", Color: "#000000"}
	repo.RaceFolders[inventory.Key("Dock")] = winner
	svc := inventory.NewService(repo)

	got, err := svc.EnsureFolder(context.Background(), org, "Dock")
	require.NoError(t, err)
	require.Equal(t, "folder-winner", got.ID)
	require.Len(t, repo.Folders(), 1)
}

func TestEnsureFoldersCollapsesDuplicates(t *testing.T) {
	repo := inventorytest.New()
	svc := inventory.NewService(repo)

	folders, err := svc.EnsureFolders(context.Background(), org, []string{"A", "a", " ", "B"})
	require.NoError(t, err)
	require.Len(t, folders, 2)
	require.Equal(t, 2, repo.FolderInserts)
}

func TestEnsureCategoryRequiresName(t *testing.T) {
	svc := inventory.NewService(inventorytest.New())
	_, err := svc.EnsureCategory(context.Background(), org, "  ")
	require.ErrorIs(t, err, inventory.ErrNameRequired)
}

func TestInsertItemsIsAllOrNothing(t *testing.T) {
	repo := inventorytest.New()
	svc := inventory.NewService(repo)
	ctx := context.Background()

	err := svc.InsertItems(ctx, []inventory.Item{
		{OrganizationID: org, SKU: "A", Name: "Alpha", PickingQuantity: 3, OverstockQuantity: 4},
		{OrganizationID: org, SKU: "B", Name: "Beta"},
	})
	require.NoError(t, err)

	a, ok := repo.Item("a")
	require.True(t, ok)
	require.Equal(t, 7, a.Quantity)
	require.Equal(t, inventory.StatusInStock, a.Status)
	require.NotEmpty(t, a.ID)

	b, _ := repo.Item("B")
	require.Equal(t, inventory.StatusOutOfStock, b.Status)

	repo.FailInsertItems = errors.New("disk full")
	err = svc.InsertItems(ctx, []inventory.Item{{OrganizationID: org, SKU: "C", Name: "Gamma"}})
	require.Error(t, err)
	_, ok = repo.Item("C")
	require.False(t, ok)
}

func TestAddStockWritesOneMovement(t *testing.T) {
	repo := inventorytest.New()
	repo.SeedItem(inventory.Item{ID: "item-1", OrganizationID: org, SKU: "A", Name: "Alpha", PickingQuantity: 60, OverstockQuantity: 40, ReorderLevel: 5, FolderID: "f-1"})
	svc := inventory.NewService(repo)

	item, mv, err := svc.AddStock(context.Background(), inventory.StockAddition{
		OrganizationID: org, UserID: "user-1", ItemID: "item-1", Picking: 3, Overstock: 2, Reason: "import",
	})
	require.NoError(t, err)
	require.Equal(t, 105, item.Quantity)
	require.NotNil(t, mv)
	require.Equal(t, inventory.MovementAdd, mv.Type)
	require.Equal(t, 5, mv.Amount)
	require.Equal(t, 100, mv.OldQuantity)
	require.Equal(t, 105, mv.NewQuantity)
	require.Equal(t, "f-1", mv.FolderID)
	require.Len(t, repo.Movements(), 1)
}

func TestAddStockZeroAmountSkipsMovement(t *testing.T) {
	repo := inventorytest.New()
	repo.SeedItem(inventory.Item{ID: "item-1", OrganizationID: org, SKU: "A", Name: "Alpha", PickingQuantity: 1})
	svc := inventory.NewService(repo)

	_, mv, err := svc.AddStock(context.Background(), inventory.StockAddition{OrganizationID: org, UserID: "u", ItemID: "item-1"})
	require.NoError(t, err)
	require.Nil(t, mv)
	require.Empty(t, repo.Movements())
}

func TestAddStockRollsBackOnUpdateFailure(t *testing.T) {
	repo := inventorytest.New()
	repo.SeedItem(inventory.Item{ID: "item-1", OrganizationID: org, SKU: "A", Name: "Alpha", PickingQuantity: 1})
	repo.FailUpdate[inventory.Key("A")] = errors.New("deadlock")
	svc := inventory.NewService(repo)

	_, _, err := svc.AddStock(context.Background(), inventory.StockAddition{OrganizationID: org, UserID: "u", ItemID: "item-1", Picking: 4})
	require.Error(t, err)
	item, _ := repo.Item("A")
	require.Equal(t, 1, item.Quantity)
	require.Empty(t, repo.Movements())
}

func TestOverwriteReplacesFieldsAndRecomputes(t *testing.T) {
	repo := inventorytest.New()
	repo.SeedItem(inventory.Item{ID: "item-1", OrganizationID: org, SKU: "A", Name: "Alpha", PickingQuantity: 100})
	svc := inventory.NewService(repo)

	next := inventory.Item{
		OrganizationID:  org,
		UserID:          "user-2",
		SKU:             "A",
		Name:            "Alpha v2",
		PickingQuantity: 10,
		ReorderLevel:    10,
		RetailPrice:     decimal.RequireFromString("9.99"),
	}
	item, err := svc.Overwrite(context.Background(), "item-1", next)
	require.NoError(t, err)
	require.Equal(t, "item-1", item.ID)
	require.Equal(t, 10, item.Quantity)
	require.Equal(t, inventory.StatusLowStock, item.Status)
	require.Empty(t, repo.Movements())

	stored, _ := repo.Item("a")
	require.Equal(t, "Alpha v2", stored.Name)
	require.True(t, stored.RetailPrice.Equal(decimal.RequireFromString("9.99")))
}

func TestIndexSortsSKUsAndFolders(t *testing.T) {
	repo := inventorytest.New()
	repo.SeedItem(inventory.Item{ID: "2", OrganizationID: org, SKU: "B", PickingQuantity: 2})
	repo.SeedItem(inventory.Item{ID: "1", OrganizationID: org, SKU: "A", OverstockQuantity: 1})
	repo.SeedItem(inventory.Item{ID: "3", OrganizationID: "other", SKU: "Z"})
	repo.SeedFolder(inventory.Folder{ID: "f2", OrganizationID: org, Name: "Zone"})
	repo.SeedFolder(inventory.Folder{ID: "f1", OrganizationID: org, Name: "Aisle"})

	idx, err := inventory.NewService(repo).Index(context.Background(), org)
	require.NoError(t, err)
	require.Equal(t, []inventory.IndexEntry{{SKU: "A", Quantity: 1}, {SKU: "B", Quantity: 2}}, idx.SKUs)
	require.Equal(t, []string{"Aisle", "Zone"}, idx.Folders)
}
