// Package sales records, edits and deletes sale transactions. A sale is the
// only operation that touches several products at once, so validation runs
// over every line before any stock is decremented.
package sales

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/juckphai/salejuck/internal/platform/httpx"
	"github.com/juckphai/salejuck/internal/pos"
	syncengine "github.com/juckphai/salejuck/internal/sync"
)

// Service implements the sale lifecycle.
type Service struct {
	logger   *slog.Logger
	engine   *syncengine.Engine
	validate *validator.Validate
}

// NewService constructs the sales service.
func NewService(logger *slog.Logger, engine *syncengine.Engine) *Service {
	return &Service{
		logger:   logger,
		engine:   engine,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

// SaleItemInput is one line of a sale. SpecialPrice overrides the product's
// selling price for this line only.
type SaleItemInput struct {
	ProductID    int64    `json:"productId" validate:"required"`
	Quantity     float64  `json:"quantity" validate:"required,gt=0"`
	SpecialPrice *float64 `json:"specialPrice,omitempty" validate:"omitempty,gte=0"`
}

// SaleInput describes a sale to record.
type SaleInput struct {
	Items          []SaleItemInput `json:"items" validate:"required,min=1,dive"`
	PaymentMethod  string          `json:"paymentMethod" validate:"required,oneof=cash transfer credit"`
	SellerID       int64           `json:"sellerId" validate:"required"`
	BuyerName      *string         `json:"buyerName,omitempty"`
	CreditDueDays  *int            `json:"creditDueDays,omitempty" validate:"omitempty,gt=0"`
	TransferorName *string         `json:"transferorName,omitempty"`
	Date           string          `json:"date"`
}

// Record validates the whole sale and applies it atomically: either every
// line deducts stock and the sale is appended, or nothing changes.
func (s *Service) Record(ctx context.Context, input SaleInput) (*pos.Sale, error) {
	if err := s.validate.Struct(input); err != nil {
		return nil, fmt.Errorf("sales: %w", err)
	}

	var sale pos.Sale
	err := s.engine.Mutate(ctx, func(d *pos.Document) error {
		built, err := buildSale(d, input, nil)
		if err != nil {
			return err
		}
		applySale(d, built)
		sale = *built
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("sale recorded",
		slog.Int64("id", sale.ID),
		slog.String("payment", sale.PaymentMethod),
		slog.Float64("total", sale.Total))
	return &sale, nil
}

// Update edits a sale as delete-then-recreate: the old lines are reversed,
// the new input validated against the restored stock and applied. The sale
// keeps its id and original date. A validation failure leaves the document
// untouched because no stock moves before every line has passed.
func (s *Service) Update(ctx context.Context, id int64, input SaleInput) (*pos.Sale, error) {
	if err := s.validate.Struct(input); err != nil {
		return nil, fmt.Errorf("sales: %w", err)
	}

	var sale pos.Sale
	err := s.engine.Mutate(ctx, func(d *pos.Document) error {
		existing := findSale(d, id)
		if existing == nil {
			return fmt.Errorf("sales: sale %d: %w", id, httpx.ErrNotFound)
		}
		built, err := buildSale(d, input, existing)
		if err != nil {
			return err
		}
		restoreStock(d, existing)
		d.Sales = removeSale(d.Sales, id)
		applySale(d, built)
		sale = *built
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("sale updated", slog.Int64("id", id))
	return &sale, nil
}

// Delete removes a sale and restores the stock its lines consumed.
func (s *Service) Delete(ctx context.Context, id int64) error {
	err := s.engine.Mutate(ctx, func(d *pos.Document) error {
		existing := findSale(d, id)
		if existing == nil {
			return fmt.Errorf("sales: sale %d: %w", id, httpx.ErrNotFound)
		}
		restoreStock(d, existing)
		d.Sales = removeSale(d.Sales, id)
		return nil
	})
	if err != nil {
		return err
	}
	s.logger.Info("sale deleted", slog.Int64("id", id))
	return nil
}

// List returns sales visible to the given user: admins see everything,
// sellers see their own sales, optionally limited to a trailing window of
// days when the account carries one.
func (s *Service) List(userID int64) ([]pos.Sale, error) {
	out := []pos.Sale{}
	err := s.engine.Read(func(d *pos.Document) {
		user := d.UserByID(userID)
		var earliest time.Time
		limited := false
		if user != nil && user.Role == pos.RoleSeller && user.VisibleSalesDays != nil {
			limited = true
			earliest = time.Now().AddDate(0, 0, -*user.VisibleSalesDays)
		}
		for _, sale := range d.Sales {
			if user != nil && user.Role == pos.RoleSeller {
				if sale.SellerID != user.ID {
					continue
				}
				if limited {
					if t, ok := pos.ParseDate(sale.Date); !ok || t.Before(earliest) {
						continue
					}
				}
			}
			out = append(out, sale)
		}
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// CommissionReport totals a seller's commission over the sales whose
// payment method is commission-eligible for that seller.
type CommissionReport struct {
	SellerID   int64   `json:"sellerId"`
	SellerName string  `json:"sellerName"`
	Rate       float64 `json:"rate"`
	Eligible   float64 `json:"eligible"`
	Commission float64 `json:"commission"`
}

// Commission computes the commission owed to one seller.
func (s *Service) Commission(sellerID int64) (CommissionReport, error) {
	var report CommissionReport
	var reportErr error
	err := s.engine.Read(func(d *pos.Document) {
		user := d.UserByID(sellerID)
		if user == nil || user.Role != pos.RoleSeller {
			reportErr = fmt.Errorf("sales: seller %d: %w", sellerID, httpx.ErrNotFound)
			return
		}
		report = CommissionReport{SellerID: user.ID, SellerName: user.Username, Rate: user.CommissionRate}
		for _, sale := range d.Sales {
			if sale.SellerID != user.ID || !commissionEligible(user, sale.PaymentMethod) {
				continue
			}
			report.Eligible += sale.Total
		}
		report.Commission = report.Eligible * user.CommissionRate / 100
	})
	if err != nil {
		return CommissionReport{}, err
	}
	if reportErr != nil {
		return CommissionReport{}, reportErr
	}
	return report, nil
}

func commissionEligible(user *pos.User, method string) bool {
	switch method {
	case pos.PaymentCash:
		return user.CommissionOnCash
	case pos.PaymentTransfer:
		return user.CommissionOnTransfer
	case pos.PaymentCredit:
		return user.CommissionOnCredit
	default:
		return false
	}
}

// buildSale validates every line and assembles the sale record without
// touching the document. When editing, prior is the sale being replaced:
// its quantities count as available stock and its id and date carry over.
func buildSale(d *pos.Document, input SaleInput, prior *pos.Sale) (*pos.Sale, error) {
	seller := d.UserByID(input.SellerID)
	if seller == nil {
		return nil, fmt.Errorf("sales: seller %d: %w", input.SellerID, httpx.ErrNotFound)
	}

	switch input.PaymentMethod {
	case pos.PaymentCredit:
		if input.BuyerName == nil || *input.BuyerName == "" {
			return nil, fmt.Errorf("sales: credit sale requires a buyer name: %w", httpx.ErrValidation)
		}
		if input.CreditDueDays == nil {
			return nil, fmt.Errorf("sales: credit sale requires due days: %w", httpx.ErrValidation)
		}
	case pos.PaymentTransfer:
		if input.TransferorName == nil || *input.TransferorName == "" {
			return nil, fmt.Errorf("sales: transfer sale requires a transferor name: %w", httpx.ErrValidation)
		}
	}

	restored := make(map[int64]float64)
	if prior != nil {
		for _, item := range prior.Items {
			restored[item.ProductID] += item.Quantity
		}
	}

	sale := &pos.Sale{
		ID:            pos.NewID(),
		Date:          pos.FormatDate(time.Now()),
		PaymentMethod: input.PaymentMethod,
		SellerID:      seller.ID,
		SellerName:    seller.Username,
	}
	if prior != nil {
		sale.ID = prior.ID
		sale.Date = prior.Date
	} else if input.Date != "" {
		t, ok := pos.ParseDate(input.Date)
		if !ok {
			return nil, fmt.Errorf("sales: bad date %q: %w", input.Date, httpx.ErrValidation)
		}
		sale.Date = pos.FormatDate(t)
	}

	if seller.StoreID != nil {
		if store := d.StoreByID(*seller.StoreID); store != nil {
			id, name := store.ID, store.Name
			sale.StoreID = &id
			sale.StoreName = &name
		}
	}
	if input.PaymentMethod == pos.PaymentCredit {
		sale.BuyerName = input.BuyerName
		due := pos.FormatDate(time.Now().AddDate(0, 0, *input.CreditDueDays))
		sale.CreditDueDate = &due
	}
	if input.PaymentMethod == pos.PaymentTransfer {
		sale.TransferorName = input.TransferorName
	}

	// Sellers are limited to their assigned products.
	restrict := seller.Role == pos.RoleSeller

	demand := make(map[int64]float64)
	for _, line := range input.Items {
		product := d.ProductByID(line.ProductID)
		if product == nil {
			return nil, fmt.Errorf("sales: product %d: %w", line.ProductID, httpx.ErrNotFound)
		}
		if restrict && !slices.Contains(seller.AssignedProductIDs, product.ID) {
			return nil, fmt.Errorf("sales: product %q not assigned to seller: %w", product.Name, httpx.ErrForbidden)
		}

		demand[product.ID] += line.Quantity
		if demand[product.ID] > product.Stock+restored[product.ID] {
			return nil, fmt.Errorf("sales: insufficient stock for %q: %w", product.Name, httpx.ErrValidation)
		}

		item := pos.SaleItem{
			ProductID:     product.ID,
			Name:          product.Name,
			Quantity:      line.Quantity,
			Price:         product.SellingPrice,
			Cost:          product.CostPrice,
			OriginalPrice: product.SellingPrice,
		}
		if line.SpecialPrice != nil {
			item.Price = *line.SpecialPrice
			item.IsSpecialPrice = true
		}
		sale.Items = append(sale.Items, item)
		sale.Total += item.Price * item.Quantity
		sale.Profit += (item.Price - item.Cost) * item.Quantity
	}
	return sale, nil
}

// applySale deducts stock for every line and appends the sale.
func applySale(d *pos.Document, sale *pos.Sale) {
	for _, item := range sale.Items {
		if product := d.ProductByID(item.ProductID); product != nil {
			product.Stock -= item.Quantity
		}
	}
	d.Sales = append(d.Sales, *sale)
}

// restoreStock reverses a sale's stock effect. Products deleted since the
// sale are skipped.
func restoreStock(d *pos.Document, sale *pos.Sale) {
	for _, item := range sale.Items {
		if product := d.ProductByID(item.ProductID); product != nil {
			product.Stock += item.Quantity
		}
	}
}

func findSale(d *pos.Document, id int64) *pos.Sale {
	for i := range d.Sales {
		if d.Sales[i].ID == id {
			return &d.Sales[i]
		}
	}
	return nil
}

func removeSale(sales []pos.Sale, id int64) []pos.Sale {
	out := sales[:0]
	for _, sale := range sales {
		if sale.ID != id {
			out = append(out, sale)
		}
	}
	return out
}
