// Package inventory manages stock movements and the consistency of the
// cached per-product stock value against the movement history.
package inventory

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/juckphai/salejuck/internal/ledger"
	"github.com/juckphai/salejuck/internal/platform/httpx"
	"github.com/juckphai/salejuck/internal/pos"
	syncengine "github.com/juckphai/salejuck/internal/sync"
)

// Service records stock-ins and stock-outs and keeps cached stock honest.
type Service struct {
	logger   *slog.Logger
	engine   *syncengine.Engine
	validate *validator.Validate
	printer  *message.Printer
}

// NewService constructs the inventory service.
func NewService(logger *slog.Logger, engine *syncengine.Engine) *Service {
	return &Service{
		logger:   logger,
		engine:   engine,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		printer:  message.NewPrinter(language.English),
	}
}

// StockInInput describes a goods receipt. Receiving goods is also the
// moment prices are set, so it carries the new selling price too.
type StockInInput struct {
	ProductID    int64   `json:"productId" validate:"required"`
	Quantity     float64 `json:"quantity" validate:"required,gt=0"`
	CostPerUnit  float64 `json:"costPerUnit" validate:"gte=0"`
	SellingPrice float64 `json:"sellingPrice" validate:"gte=0"`
	Date         string  `json:"date"`
}

// StockOutInput describes a non-sale stock removal.
type StockOutInput struct {
	ProductID int64   `json:"productId" validate:"required"`
	Quantity  float64 `json:"quantity" validate:"required,gt=0"`
	Reason    string  `json:"reason" validate:"required"`
	Date      string  `json:"date"`
}

// RecordStockIn appends a receipt, bumps the product's cached stock and
// overwrites the product's cost and selling prices with the receipt's.
func (s *Service) RecordStockIn(ctx context.Context, input StockInInput) (*pos.StockIn, error) {
	if err := s.validate.Struct(input); err != nil {
		return nil, fmt.Errorf("inventory: %w", err)
	}
	date, err := movementDate(input.Date)
	if err != nil {
		return nil, err
	}

	var record pos.StockIn
	err = s.engine.Mutate(ctx, func(d *pos.Document) error {
		product := d.ProductByID(input.ProductID)
		if product == nil {
			return fmt.Errorf("inventory: product %d: %w", input.ProductID, httpx.ErrNotFound)
		}
		record = pos.StockIn{
			ID:          pos.NewID(),
			Date:        date,
			ProductID:   product.ID,
			ProductName: product.Name,
			Quantity:    input.Quantity,
			CostPerUnit: input.CostPerUnit,
		}
		d.StockIns = append(d.StockIns, record)
		product.Stock += input.Quantity
		product.CostPrice = input.CostPerUnit
		product.SellingPrice = input.SellingPrice
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("stock-in recorded",
		slog.Int64("product_id", record.ProductID),
		slog.String("quantity", s.printer.Sprintf("%v", record.Quantity)))
	return &record, nil
}

// UpdateStockIn edits a receipt. The old movement is reversed and the new
// one applied, so the cached stock shifts by exactly the difference; a
// product change moves the quantities between both products.
func (s *Service) UpdateStockIn(ctx context.Context, id int64, input StockInInput) (*pos.StockIn, error) {
	if err := s.validate.Struct(input); err != nil {
		return nil, fmt.Errorf("inventory: %w", err)
	}
	date, err := movementDate(input.Date)
	if err != nil {
		return nil, err
	}

	var record pos.StockIn
	err = s.engine.Mutate(ctx, func(d *pos.Document) error {
		existing := findStockIn(d, id)
		if existing == nil {
			return fmt.Errorf("inventory: stock-in %d: %w", id, httpx.ErrNotFound)
		}
		product := d.ProductByID(input.ProductID)
		if product == nil {
			return fmt.Errorf("inventory: product %d: %w", input.ProductID, httpx.ErrNotFound)
		}
		if old := d.ProductByID(existing.ProductID); old != nil {
			old.Stock -= existing.Quantity
		}
		existing.Date = date
		existing.ProductID = product.ID
		existing.ProductName = product.Name
		existing.Quantity = input.Quantity
		existing.CostPerUnit = input.CostPerUnit
		product.Stock += input.Quantity
		product.CostPrice = input.CostPerUnit
		product.SellingPrice = input.SellingPrice
		record = *existing
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("stock-in updated", slog.Int64("id", id))
	return &record, nil
}

// DeleteStockIn removes a receipt and takes its quantity back out of the
// cached stock. The result may go negative; negative stock is a visible
// signal, not an error.
func (s *Service) DeleteStockIn(ctx context.Context, id int64) error {
	err := s.engine.Mutate(ctx, func(d *pos.Document) error {
		existing := findStockIn(d, id)
		if existing == nil {
			return fmt.Errorf("inventory: stock-in %d: %w", id, httpx.ErrNotFound)
		}
		if product := d.ProductByID(existing.ProductID); product != nil {
			product.Stock -= existing.Quantity
		}
		d.StockIns = removeStockIn(d.StockIns, id)
		return nil
	})
	if err != nil {
		return err
	}
	s.logger.Info("stock-in deleted", slog.Int64("id", id))
	return nil
}

// RecordStockOut appends a removal after checking the product holds enough
// stock to cover it.
func (s *Service) RecordStockOut(ctx context.Context, input StockOutInput) (*pos.StockOut, error) {
	if err := s.validate.Struct(input); err != nil {
		return nil, fmt.Errorf("inventory: %w", err)
	}
	date, err := movementDate(input.Date)
	if err != nil {
		return nil, err
	}

	var record pos.StockOut
	err = s.engine.Mutate(ctx, func(d *pos.Document) error {
		product := d.ProductByID(input.ProductID)
		if product == nil {
			return fmt.Errorf("inventory: product %d: %w", input.ProductID, httpx.ErrNotFound)
		}
		if product.Stock < input.Quantity {
			return fmt.Errorf("inventory: insufficient stock for %q: %w", product.Name, httpx.ErrValidation)
		}
		record = pos.StockOut{
			ID:          pos.NewID(),
			Date:        date,
			ProductID:   product.ID,
			ProductName: product.Name,
			Quantity:    input.Quantity,
			Reason:      input.Reason,
		}
		d.StockOuts = append(d.StockOuts, record)
		product.Stock -= input.Quantity
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("stock-out recorded",
		slog.Int64("product_id", record.ProductID),
		slog.String("reason", record.Reason))
	return &record, nil
}

// UpdateStockOut edits a removal. The compensating delta must not push the
// product's stock negative.
func (s *Service) UpdateStockOut(ctx context.Context, id int64, input StockOutInput) (*pos.StockOut, error) {
	if err := s.validate.Struct(input); err != nil {
		return nil, fmt.Errorf("inventory: %w", err)
	}
	date, err := movementDate(input.Date)
	if err != nil {
		return nil, err
	}

	var record pos.StockOut
	err = s.engine.Mutate(ctx, func(d *pos.Document) error {
		existing := findStockOut(d, id)
		if existing == nil {
			return fmt.Errorf("inventory: stock-out %d: %w", id, httpx.ErrNotFound)
		}
		product := d.ProductByID(input.ProductID)
		if product == nil {
			return fmt.Errorf("inventory: product %d: %w", input.ProductID, httpx.ErrNotFound)
		}

		restored := product.Stock
		if product.ID == existing.ProductID {
			restored += existing.Quantity
		}
		if restored < input.Quantity {
			return fmt.Errorf("inventory: insufficient stock for %q: %w", product.Name, httpx.ErrValidation)
		}

		if old := d.ProductByID(existing.ProductID); old != nil {
			old.Stock += existing.Quantity
		}
		existing.Date = date
		existing.ProductID = product.ID
		existing.ProductName = product.Name
		existing.Quantity = input.Quantity
		existing.Reason = input.Reason
		product.Stock -= input.Quantity
		record = *existing
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("stock-out updated", slog.Int64("id", id))
	return &record, nil
}

// DeleteStockOut removes a removal and restores its quantity.
func (s *Service) DeleteStockOut(ctx context.Context, id int64) error {
	err := s.engine.Mutate(ctx, func(d *pos.Document) error {
		existing := findStockOut(d, id)
		if existing == nil {
			return fmt.Errorf("inventory: stock-out %d: %w", id, httpx.ErrNotFound)
		}
		if product := d.ProductByID(existing.ProductID); product != nil {
			product.Stock += existing.Quantity
		}
		d.StockOuts = removeStockOut(d.StockOuts, id)
		return nil
	})
	if err != nil {
		return err
	}
	s.logger.Info("stock-out deleted", slog.Int64("id", id))
	return nil
}

// SummaryRow pairs the cached stock with the value derived from history.
type SummaryRow struct {
	ProductID int64   `json:"productId"`
	Name      string  `json:"name"`
	Unit      string  `json:"unit"`
	Recorded  float64 `json:"recorded"`
	Computed  float64 `json:"computed"`
}

// Summary lists every product's cached and derived stock. With a cutoff it
// reports the derived stock as of that instant (inclusive) instead.
func (s *Service) Summary(cutoff *time.Time) ([]SummaryRow, error) {
	var rows []SummaryRow
	err := s.engine.Read(func(d *pos.Document) {
		var computed map[int64]float64
		if cutoff != nil {
			computed = ledger.StockAsOf(d, *cutoff)
		} else {
			computed = ledger.Stock(d)
		}
		rows = make([]SummaryRow, 0, len(d.Products))
		for _, p := range d.Products {
			rows = append(rows, SummaryRow{
				ProductID: p.ID,
				Name:      p.Name,
				Unit:      p.Unit,
				Recorded:  p.Stock,
				Computed:  computed[p.ID],
			})
		}
	})
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// Discrepancy is one product whose cached stock disagrees with history.
type Discrepancy struct {
	ProductID int64   `json:"productId"`
	Name      string  `json:"name"`
	Recorded  float64 `json:"recorded"`
	Computed  float64 `json:"computed"`
	Delta     float64 `json:"delta"`
}

// Report is the outcome of a consistency check.
type Report struct {
	CheckedAt     string        `json:"checkedAt"`
	Products      int           `json:"products"`
	Discrepancies []Discrepancy `json:"discrepancies"`
}

// Consistent reports whether the check found no discrepancies.
func (r Report) Consistent() bool { return len(r.Discrepancies) == 0 }

// stockEpsilon absorbs float drift between the incrementally maintained
// cache and a freshly summed history.
const stockEpsilon = 1e-9

// Evaluate compares every product's cached stock against the derived value.
// It is read only; Repair applies the derived values.
func Evaluate(d *pos.Document) Report {
	computed := ledger.Stock(d)
	report := Report{
		CheckedAt: pos.FormatDate(time.Now()),
		Products:  len(d.Products),
	}
	for _, p := range d.Products {
		want := computed[p.ID]
		if math.Abs(p.Stock-want) > stockEpsilon {
			report.Discrepancies = append(report.Discrepancies, Discrepancy{
				ProductID: p.ID,
				Name:      p.Name,
				Recorded:  p.Stock,
				Computed:  want,
				Delta:     p.Stock - want,
			})
		}
	}
	return report
}

// Check runs a consistency check against the current document.
func (s *Service) Check() (Report, error) {
	var report Report
	err := s.engine.Read(func(d *pos.Document) {
		report = Evaluate(d)
	})
	if err != nil {
		return Report{}, err
	}
	if !report.Consistent() {
		s.logger.Warn("stock discrepancies found", slog.Int("count", len(report.Discrepancies)))
	}
	return report, nil
}

// Repair overwrites every product's cached stock with the value derived
// from the full movement history. Products without any movement go to zero.
func (s *Service) Repair(ctx context.Context) (Report, error) {
	var report Report
	err := s.engine.Mutate(ctx, func(d *pos.Document) error {
		report = Evaluate(d)
		computed := ledger.Stock(d)
		for i := range d.Products {
			d.Products[i].Stock = computed[d.Products[i].ID]
		}
		return nil
	})
	if err != nil {
		return Report{}, err
	}
	s.logger.Info("stock repaired",
		slog.Int("products", report.Products),
		slog.Int("repaired", len(report.Discrepancies)))
	return report, nil
}

func movementDate(raw string) (string, error) {
	if raw == "" {
		return pos.FormatDate(time.Now()), nil
	}
	parsed, ok := pos.ParseDate(raw)
	if !ok {
		return "", fmt.Errorf("inventory: bad date %q: %w", raw, httpx.ErrValidation)
	}
	return pos.FormatDate(parsed), nil
}

func findStockIn(d *pos.Document, id int64) *pos.StockIn {
	for i := range d.StockIns {
		if d.StockIns[i].ID == id {
			return &d.StockIns[i]
		}
	}
	return nil
}

func findStockOut(d *pos.Document, id int64) *pos.StockOut {
	for i := range d.StockOuts {
		if d.StockOuts[i].ID == id {
			return &d.StockOuts[i]
		}
	}
	return nil
}

func removeStockIn(records []pos.StockIn, id int64) []pos.StockIn {
	out := records[:0]
	for _, r := range records {
		if r.ID != id {
			out = append(out, r)
		}
	}
	return out
}

func removeStockOut(records []pos.StockOut, id int64) []pos.StockOut {
	out := records[:0]
	for _, r := range records {
		if r.ID != id {
			out = append(out, r)
		}
	}
	return out
}
