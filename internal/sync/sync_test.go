package sync

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkessler-dev/pantrysync/internal/catalog"
	"github.com/mkessler-dev/pantrysync/internal/conf"
	"github.com/mkessler-dev/pantrysync/internal/foodfacts"
	"github.com/mkessler-dev/pantrysync/internal/grocy"
	"github.com/mkessler-dev/pantrysync/internal/receipt"
)

type stockAdd struct {
	productID int
	amount    int
	price     float64
}

// fakeInventory is an in-memory stand-in for the inventory API that
// keeps the same state across calls, so idempotence is observable.
type fakeInventory struct {
	products  map[int]*grocy.ProductDetails
	barcodes  map[string]int
	stock     []stockAdd
	uploads   map[string][]byte
	pictures  map[int]string
	nextID    int
	lookupErr error
	uploadErr error
}

func newFakeInventory() *fakeInventory {
	return &fakeInventory{
		products: make(map[int]*grocy.ProductDetails),
		barcodes: make(map[string]int),
		uploads:  make(map[string][]byte),
		pictures: make(map[int]string),
		nextID:   100,
	}
}

func (f *fakeInventory) GetProductByBarcode(_ context.Context, barcode string) (*grocy.ProductDetails, error) {
	if f.lookupErr != nil {
		return nil, f.lookupErr
	}
	if id, ok := f.barcodes[barcode]; ok {
		return f.products[id], nil
	}
	return nil, nil
}

func (f *fakeInventory) FindProductByName(_ context.Context, name string) (int, error) {
	for id, p := range f.products {
		if p.Name == name {
			return id, nil
		}
	}
	return 0, nil
}

func (f *fakeInventory) CreateProduct(_ context.Context, product grocy.NewProduct) (int, error) {
	f.nextID++
	f.products[f.nextID] = &grocy.ProductDetails{ID: f.nextID, Name: product.Name}
	return f.nextID, nil
}

func (f *fakeInventory) AddBarcode(_ context.Context, productID int, barcode string) error {
	f.barcodes[barcode] = productID
	return nil
}

func (f *fakeInventory) AddStock(_ context.Context, productID, amount int, price float64) error {
	f.stock = append(f.stock, stockAdd{productID: productID, amount: amount, price: price})
	return nil
}

func (f *fakeInventory) UploadProductPicture(_ context.Context, fileName string, data []byte) error {
	if f.uploadErr != nil {
		return f.uploadErr
	}
	f.uploads[fileName] = data
	return nil
}

func (f *fakeInventory) SetProductPicture(_ context.Context, productID int, fileName string) error {
	f.pictures[productID] = fileName
	return nil
}

// fakeAux serves canned aux database products and image bytes by URL.
type fakeAux struct {
	products map[string]*foodfacts.Product
	images   map[string][]byte
	imageErr error
}

func (f *fakeAux) GetProduct(_ context.Context, barcode string) (*foodfacts.Product, error) {
	return f.products[barcode], nil
}

func (f *fakeAux) FetchImage(_ context.Context, url string) ([]byte, error) {
	if f.imageErr != nil {
		return nil, f.imageErr
	}
	if data, ok := f.images[url]; ok {
		return data, nil
	}
	return nil, errors.New("no such image")
}

func newTestCatalog(t *testing.T) catalog.Interface {
	t.Helper()

	settings := &conf.Settings{}
	settings.Catalog.SQLite.Enabled = true
	settings.Catalog.SQLite.Path = filepath.Join(t.TempDir(), "catalog.db")

	store := catalog.New(settings)
	require.NotNil(t, store)
	require.NoError(t, store.Open())
	t.Cleanup(func() {
		assert.NoError(t, store.Close())
	})
	return store
}

func newTestSynchronizer(t *testing.T, inventory *fakeInventory, aux *fakeAux) (*Synchronizer, catalog.Interface) {
	t.Helper()

	store := newTestCatalog(t)
	resolver := catalog.NewResolver(store, 0.8)
	settings := &conf.GrocySettings{
		LocationID:            1,
		ShoppingLocationID:    1,
		QuantityUnitID:        2,
		DefaultBestBeforeDays: 30,
	}
	return New(store, resolver, inventory, aux, settings), store
}

func TestSyncLineItem_CreatesEntryForUnknownProduct(t *testing.T) {
	inventory := newFakeInventory()
	s, _ := newTestSynchronizer(t, inventory, &fakeAux{})

	created, err := s.SyncLineItem(context.Background(), &receipt.LineItem{
		ProductName:  "Butter 250g",
		RetailerCode: "4001",
		Quantity:     2,
		UnitPrice:    1.99,
	})
	require.NoError(t, err)
	assert.True(t, created)

	require.Len(t, inventory.products, 1)
	for _, p := range inventory.products {
		assert.Equal(t, "Butter", p.Name, "quantity suffix stripped from display name")
	}
	// empty catalog, so the retailer code itself became the identifier
	require.Contains(t, inventory.barcodes, "4001")
	require.Len(t, inventory.stock, 1)
	assert.Equal(t, 2, inventory.stock[0].amount)
	assert.InDelta(t, 1.99, inventory.stock[0].price, 0.0001)
}

func TestSyncLineItem_Idempotent(t *testing.T) {
	inventory := newFakeInventory()
	s, store := newTestSynchronizer(t, inventory, &fakeAux{})

	require.NoError(t, store.UpsertObserved(&catalog.Product{
		EAN:          "4311501043166",
		Name:         "Butter 250g",
		Price:        1.99,
		ObservedDate: "2025-08-20",
	}))

	item := &receipt.LineItem{ProductName: "Butter 250g", RetailerCode: "4001", Quantity: 2, UnitPrice: 1.99}

	created, err := s.SyncLineItem(context.Background(), item)
	require.NoError(t, err)
	assert.True(t, created)

	created, err = s.SyncLineItem(context.Background(), item)
	require.NoError(t, err)
	assert.False(t, created, "second run must reuse the existing entry")

	assert.Len(t, inventory.products, 1, "never two entries for one barcode")
	assert.Len(t, inventory.stock, 2, "re-running adds stock transactions only")
	assert.Equal(t, inventory.barcodes["4311501043166"], inventory.stock[0].productID)
}

func TestSyncLineItem_TransportErrorAborts(t *testing.T) {
	inventory := newFakeInventory()
	inventory.lookupErr = errors.New("connection refused")
	s, _ := newTestSynchronizer(t, inventory, &fakeAux{})

	_, err := s.SyncLineItem(context.Background(), &receipt.LineItem{
		ProductName: "Butter 250g", RetailerCode: "4001", Quantity: 1, UnitPrice: 1.99,
	})
	require.Error(t, err, "an outage must never be treated as an absent product")
	assert.Empty(t, inventory.products)
	assert.Empty(t, inventory.stock)
}

func TestSyncLineItem_ReusesEntryFoundByName(t *testing.T) {
	inventory := newFakeInventory()
	// Entry from a prior run that died before barcode registration.
	inventory.products[55] = &grocy.ProductDetails{ID: 55, Name: "Butter"}
	s, _ := newTestSynchronizer(t, inventory, &fakeAux{})

	created, err := s.SyncLineItem(context.Background(), &receipt.LineItem{
		ProductName: "Butter 250g", RetailerCode: "4001", Quantity: 1, UnitPrice: 1.99,
	})
	require.NoError(t, err)
	assert.False(t, created)

	assert.Len(t, inventory.products, 1, "no duplicate entry created")
	assert.Equal(t, 55, inventory.barcodes["4001"], "barcode registered on the rescued entry")
	require.Len(t, inventory.stock, 1)
	assert.Equal(t, 55, inventory.stock[0].productID)
}

func TestSyncLineItem_CatalogImageWinsOverAux(t *testing.T) {
	inventory := newFakeInventory()
	aux := &fakeAux{
		products: map[string]*foodfacts.Product{
			"4311501043166": {Name: "Butter", ImageURL: "https://aux.test/butter.jpg"},
		},
		images: map[string][]byte{
			"https://catalog.test/butter.jpg": {0x01},
			"https://aux.test/butter.jpg":     {0x02},
		},
	}
	s, store := newTestSynchronizer(t, inventory, aux)

	require.NoError(t, store.UpsertObserved(&catalog.Product{
		EAN:          "4311501043166",
		Name:         "Butter 250g",
		Price:        1.99,
		ImageURL:     "https://catalog.test/butter.jpg",
		ObservedDate: "2025-08-20",
	}))

	_, err := s.SyncLineItem(context.Background(), &receipt.LineItem{
		ProductName: "Butter 250g", RetailerCode: "4001", Quantity: 1, UnitPrice: 1.99,
	})
	require.NoError(t, err)

	require.Len(t, inventory.uploads, 1)
	for _, data := range inventory.uploads {
		assert.Equal(t, []byte{0x01}, data, "catalog image has priority")
	}
	require.Len(t, inventory.pictures, 1)
}

func TestSyncLineItem_ImageFailureTolerated(t *testing.T) {
	inventory := newFakeInventory()
	aux := &fakeAux{
		imageErr: errors.New("image host down"),
		products: map[string]*foodfacts.Product{
			"4311501043166": {Name: "Butter", ImageURL: "https://aux.test/butter.jpg"},
		},
	}
	s, store := newTestSynchronizer(t, inventory, aux)

	require.NoError(t, store.UpsertObserved(&catalog.Product{
		EAN:          "4311501043166",
		Name:         "Butter 250g",
		Price:        1.99,
		ObservedDate: "2025-08-20",
	}))

	created, err := s.SyncLineItem(context.Background(), &receipt.LineItem{
		ProductName: "Butter 250g", RetailerCode: "4001", Quantity: 1, UnitPrice: 1.99,
	})
	require.NoError(t, err, "image problems never fail the sync")
	assert.True(t, created)
	assert.Empty(t, inventory.uploads)
	assert.Len(t, inventory.stock, 1)
}

func TestSyncLineItem_AuxNameWhenReceiptNameMissing(t *testing.T) {
	inventory := newFakeInventory()
	aux := &fakeAux{
		products: map[string]*foodfacts.Product{
			"4388844114586": {Name: "Haferdrink 1l"},
		},
	}
	s, store := newTestSynchronizer(t, inventory, aux)

	require.NoError(t, store.UpsertObserved(&catalog.Product{
		EAN:          "4388844114586",
		Name:         "ja! Haferdrink",
		RetailerCode: "7732",
		Price:        0.99,
		ObservedDate: "2025-08-20",
	}))

	created, err := s.SyncLineItem(context.Background(), &receipt.LineItem{
		RetailerCode: "7732", Quantity: 1, UnitPrice: 0.99,
	})
	require.NoError(t, err)
	assert.True(t, created)

	for _, p := range inventory.products {
		assert.Equal(t, "Haferdrink", p.Name, "aux name, suffix stripped")
	}
}

func TestProcessReceipt_ContinuesPastFailures(t *testing.T) {
	inventory := newFakeInventory()
	s, _ := newTestSynchronizer(t, inventory, &fakeAux{})

	items := []receipt.LineItem{
		{ProductName: "Butter 250g", RetailerCode: "4001", Quantity: 1, UnitPrice: 1.99},
		{}, // nothing to resolve, must fail without stopping the loop
		{ProductName: "Joghurt 500g", RetailerCode: "5002", Quantity: 3, UnitPrice: 0.89},
	}

	stats := s.ProcessReceipt(context.Background(), items)
	assert.Equal(t, 2, stats.ItemsSynced)
	assert.Equal(t, 2, stats.ItemsCreated)
	assert.Equal(t, 1, stats.ItemsFailed)
	assert.Len(t, inventory.stock, 2)
}
