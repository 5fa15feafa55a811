package masterdata

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/juckphai/salejuck/internal/platform/httpx"
	"github.com/juckphai/salejuck/internal/pos"
)

// ResetOptions selects which collections a selective reset wipes.
// StockMovements clears stock-ins and stock-outs together; clearing one
// without the other would leave derived stock unreconstructable.
type ResetOptions struct {
	Sales          bool `json:"sales"`
	StockMovements bool `json:"stockMovements"`
	Products       bool `json:"products"`
	Sellers        bool `json:"sellers"`
	Stores         bool `json:"stores"`
}

func (o ResetOptions) any() bool {
	return o.Sales || o.StockMovements || o.Products || o.Sellers || o.Stores
}

// Reset wipes the selected collections and then recomputes every cached
// stock so the document stays internally consistent. The admin account
// always survives; store wipes detach sellers from their stores.
func (s *Service) Reset(ctx context.Context, opts ResetOptions) error {
	if !opts.any() {
		return fmt.Errorf("masterdata: nothing selected to reset: %w", httpx.ErrValidation)
	}

	err := s.engine.MutateAndWait(ctx, func(d *pos.Document) error {
		if opts.Sales {
			d.Sales = []pos.Sale{}
		}
		if opts.StockMovements {
			d.StockIns = []pos.StockIn{}
			d.StockOuts = []pos.StockOut{}
		}
		if opts.Products {
			d.Products = []pos.Product{}
			for i := range d.Users {
				if d.Users[i].Role == pos.RoleSeller {
					d.Users[i].AssignedProductIDs = []int64{}
				}
			}
		}
		if opts.Sellers {
			d.Users = slices.DeleteFunc(d.Users, func(u pos.User) bool { return u.Role == pos.RoleSeller })
		}
		if opts.Stores {
			d.Stores = []pos.Store{}
			for i := range d.Users {
				d.Users[i].StoreID = nil
			}
		}
		repairStock(d)
		return nil
	})
	if err != nil {
		return err
	}
	s.logger.Warn("selective reset performed",
		slog.Bool("sales", opts.Sales),
		slog.Bool("stock_movements", opts.StockMovements),
		slog.Bool("products", opts.Products),
		slog.Bool("sellers", opts.Sellers),
		slog.Bool("stores", opts.Stores))
	return nil
}
