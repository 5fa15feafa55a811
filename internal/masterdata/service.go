// Package masterdata manages the reference records of the document:
// products, stores and users, plus the selective reset and the backup
// password. Renames cascade into the denormalized name snapshots that
// historical records carry.
package masterdata

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/go-playground/validator/v10"

	"github.com/juckphai/salejuck/internal/ledger"
	"github.com/juckphai/salejuck/internal/platform/httpx"
	"github.com/juckphai/salejuck/internal/pos"
	syncengine "github.com/juckphai/salejuck/internal/sync"
)

// Service implements master data management.
type Service struct {
	logger   *slog.Logger
	engine   *syncengine.Engine
	validate *validator.Validate
}

// NewService constructs the masterdata service.
func NewService(logger *slog.Logger, engine *syncengine.Engine) *Service {
	return &Service{
		logger:   logger,
		engine:   engine,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

// ProductInput describes a product create or update.
type ProductInput struct {
	Name         string  `json:"name" validate:"required"`
	Unit         string  `json:"unit"`
	CostPrice    float64 `json:"costPrice" validate:"gte=0"`
	SellingPrice float64 `json:"sellingPrice" validate:"gte=0"`
}

// CreateProduct adds a product with zero stock; stock only ever enters
// through movements.
func (s *Service) CreateProduct(ctx context.Context, input ProductInput) (*pos.Product, error) {
	if err := s.validate.Struct(input); err != nil {
		return nil, fmt.Errorf("masterdata: %w", err)
	}
	var product pos.Product
	err := s.engine.Mutate(ctx, func(d *pos.Document) error {
		product = pos.Product{
			ID:           pos.NewID(),
			Name:         input.Name,
			Unit:         input.Unit,
			CostPrice:    input.CostPrice,
			SellingPrice: input.SellingPrice,
		}
		d.Products = append(d.Products, product)
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("product created", slog.Int64("id", product.ID), slog.String("name", product.Name))
	return &product, nil
}

// UpdateProduct edits descriptive fields. A rename rewrites the product
// name snapshots on movements and sale lines so history reads consistently.
func (s *Service) UpdateProduct(ctx context.Context, id int64, input ProductInput) (*pos.Product, error) {
	if err := s.validate.Struct(input); err != nil {
		return nil, fmt.Errorf("masterdata: %w", err)
	}
	var product pos.Product
	err := s.engine.Mutate(ctx, func(d *pos.Document) error {
		existing := d.ProductByID(id)
		if existing == nil {
			return fmt.Errorf("masterdata: product %d: %w", id, httpx.ErrNotFound)
		}
		if existing.Name != input.Name {
			cascadeProductName(d, id, input.Name)
		}
		existing.Name = input.Name
		existing.Unit = input.Unit
		existing.CostPrice = input.CostPrice
		existing.SellingPrice = input.SellingPrice
		product = *existing
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("product updated", slog.Int64("id", id))
	return &product, nil
}

// DeleteProduct removes a product and unassigns it from every seller.
// Historical movements and sale lines keep their snapshots.
func (s *Service) DeleteProduct(ctx context.Context, id int64) error {
	err := s.engine.Mutate(ctx, func(d *pos.Document) error {
		if d.ProductByID(id) == nil {
			return fmt.Errorf("masterdata: product %d: %w", id, httpx.ErrNotFound)
		}
		d.Products = slices.DeleteFunc(d.Products, func(p pos.Product) bool { return p.ID == id })
		for i := range d.Users {
			d.Users[i].AssignedProductIDs = slices.DeleteFunc(
				d.Users[i].AssignedProductIDs,
				func(pid int64) bool { return pid == id },
			)
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.logger.Info("product deleted", slog.Int64("id", id))
	return nil
}

// ListProducts returns all products.
func (s *Service) ListProducts() ([]pos.Product, error) {
	out := []pos.Product{}
	err := s.engine.Read(func(d *pos.Document) {
		out = append(out, d.Products...)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func cascadeProductName(d *pos.Document, id int64, name string) {
	for i := range d.StockIns {
		if d.StockIns[i].ProductID == id {
			d.StockIns[i].ProductName = name
		}
	}
	for i := range d.StockOuts {
		if d.StockOuts[i].ProductID == id {
			d.StockOuts[i].ProductName = name
		}
	}
	for i := range d.Sales {
		for j := range d.Sales[i].Items {
			if d.Sales[i].Items[j].ProductID == id {
				d.Sales[i].Items[j].Name = name
			}
		}
	}
}

// StoreInput describes a store create or update.
type StoreInput struct {
	Name string `json:"name" validate:"required"`
}

// CreateStore adds a selling location.
func (s *Service) CreateStore(ctx context.Context, input StoreInput) (*pos.Store, error) {
	if err := s.validate.Struct(input); err != nil {
		return nil, fmt.Errorf("masterdata: %w", err)
	}
	var store pos.Store
	err := s.engine.Mutate(ctx, func(d *pos.Document) error {
		store = pos.Store{ID: pos.NewID(), Name: input.Name}
		d.Stores = append(d.Stores, store)
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("store created", slog.Int64("id", store.ID), slog.String("name", store.Name))
	return &store, nil
}

// UpdateStore renames a store and cascades into sale snapshots.
func (s *Service) UpdateStore(ctx context.Context, id int64, input StoreInput) (*pos.Store, error) {
	if err := s.validate.Struct(input); err != nil {
		return nil, fmt.Errorf("masterdata: %w", err)
	}
	var store pos.Store
	err := s.engine.Mutate(ctx, func(d *pos.Document) error {
		existing := d.StoreByID(id)
		if existing == nil {
			return fmt.Errorf("masterdata: store %d: %w", id, httpx.ErrNotFound)
		}
		if existing.Name != input.Name {
			for i := range d.Sales {
				if d.Sales[i].StoreID != nil && *d.Sales[i].StoreID == id {
					name := input.Name
					d.Sales[i].StoreName = &name
				}
			}
		}
		existing.Name = input.Name
		store = *existing
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("store updated", slog.Int64("id", id))
	return &store, nil
}

// DeleteStore removes a store unless a user is still assigned to it.
func (s *Service) DeleteStore(ctx context.Context, id int64) error {
	err := s.engine.Mutate(ctx, func(d *pos.Document) error {
		if d.StoreByID(id) == nil {
			return fmt.Errorf("masterdata: store %d: %w", id, httpx.ErrNotFound)
		}
		for _, user := range d.Users {
			if user.StoreID != nil && *user.StoreID == id {
				return fmt.Errorf("masterdata: store %d still assigned to %q: %w", id, user.Username, httpx.ErrConflict)
			}
		}
		d.Stores = slices.DeleteFunc(d.Stores, func(st pos.Store) bool { return st.ID == id })
		return nil
	})
	if err != nil {
		return err
	}
	s.logger.Info("store deleted", slog.Int64("id", id))
	return nil
}

// ListStores returns all stores.
func (s *Service) ListStores() ([]pos.Store, error) {
	out := []pos.Store{}
	err := s.engine.Read(func(d *pos.Document) {
		out = append(out, d.Stores...)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// SetBackupPassword sets or clears the password used to encrypt exports.
func (s *Service) SetBackupPassword(ctx context.Context, password *string) error {
	err := s.engine.Mutate(ctx, func(d *pos.Document) error {
		if password != nil && *password == "" {
			return fmt.Errorf("masterdata: backup password must not be empty: %w", httpx.ErrValidation)
		}
		d.BackupPassword = password
		return nil
	})
	if err != nil {
		return err
	}
	s.logger.Info("backup password changed", slog.Bool("enabled", password != nil))
	return nil
}

// repairStock recomputes every cached stock from history; resets that drop
// movement records call it so the cache cannot drift.
func repairStock(d *pos.Document) {
	computed := ledger.Stock(d)
	for i := range d.Products {
		d.Products[i].Stock = computed[d.Products[i].ID]
	}
}
