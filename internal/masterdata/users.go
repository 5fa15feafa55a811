package masterdata

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/juckphai/salejuck/internal/platform/httpx"
	"github.com/juckphai/salejuck/internal/pos"
)

// UserInput describes a user create or update. Password is required on
// create; an empty password on update keeps the existing one.
type UserInput struct {
	Username             string  `json:"username" validate:"required"`
	Password             string  `json:"password"`
	Role                 string  `json:"role" validate:"required,oneof=admin seller"`
	StoreID              *int64  `json:"storeId,omitempty"`
	AssignedProductIDs   []int64 `json:"assignedProductIds,omitempty"`
	SalesStartDate       *string `json:"salesStartDate,omitempty"`
	SalesEndDate         *string `json:"salesEndDate,omitempty"`
	CommissionRate       float64 `json:"commissionRate" validate:"gte=0"`
	CommissionOnCash     bool    `json:"commissionOnCash"`
	CommissionOnTransfer bool    `json:"commissionOnTransfer"`
	CommissionOnCredit   bool    `json:"commissionOnCredit"`
	VisibleSalesDays     *int    `json:"visibleSalesDays,omitempty" validate:"omitempty,gt=0"`
}

// CreateUser adds an account. Usernames are unique; sellers must carry a
// store and a coherent sales period.
func (s *Service) CreateUser(ctx context.Context, input UserInput) (*pos.User, error) {
	if err := s.validate.Struct(input); err != nil {
		return nil, fmt.Errorf("masterdata: %w", err)
	}
	if input.Password == "" {
		return nil, fmt.Errorf("masterdata: password is required: %w", httpx.ErrValidation)
	}

	var user pos.User
	err := s.engine.Mutate(ctx, func(d *pos.Document) error {
		if d.UserByUsername(input.Username) != nil {
			return fmt.Errorf("masterdata: username %q taken: %w", input.Username, httpx.ErrConflict)
		}
		built, err := buildUser(d, pos.NewID(), input)
		if err != nil {
			return err
		}
		d.Users = append(d.Users, built)
		user = built
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("user created", slog.Int64("id", user.ID), slog.String("role", user.Role))
	return &user, nil
}

// UpdateUser edits an account. The admin account keeps its username and
// role; a rename cascades into the seller name snapshots on sales.
func (s *Service) UpdateUser(ctx context.Context, id int64, input UserInput) (*pos.User, error) {
	if err := s.validate.Struct(input); err != nil {
		return nil, fmt.Errorf("masterdata: %w", err)
	}

	var user pos.User
	err := s.engine.Mutate(ctx, func(d *pos.Document) error {
		existing := d.UserByID(id)
		if existing == nil {
			return fmt.Errorf("masterdata: user %d: %w", id, httpx.ErrNotFound)
		}
		if existing.Role == pos.RoleAdmin {
			if input.Username != existing.Username || input.Role != pos.RoleAdmin {
				return fmt.Errorf("masterdata: the admin account cannot be renamed or demoted: %w", httpx.ErrForbidden)
			}
		}
		if taken := d.UserByUsername(input.Username); taken != nil && taken.ID != id {
			return fmt.Errorf("masterdata: username %q taken: %w", input.Username, httpx.ErrConflict)
		}

		built, err := buildUser(d, id, input)
		if err != nil {
			return err
		}
		if built.Password == "" {
			built.Password = existing.Password
		}
		if existing.Username != built.Username {
			for i := range d.Sales {
				if d.Sales[i].SellerID == id {
					d.Sales[i].SellerName = built.Username
				}
			}
		}
		*existing = built
		user = built
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("user updated", slog.Int64("id", id))
	return &user, nil
}

// DeleteUser removes an account. Admin accounts are undeletable.
func (s *Service) DeleteUser(ctx context.Context, id int64) error {
	err := s.engine.Mutate(ctx, func(d *pos.Document) error {
		existing := d.UserByID(id)
		if existing == nil {
			return fmt.Errorf("masterdata: user %d: %w", id, httpx.ErrNotFound)
		}
		if existing.Role == pos.RoleAdmin {
			return fmt.Errorf("masterdata: the admin account cannot be deleted: %w", httpx.ErrForbidden)
		}
		d.Users = slices.DeleteFunc(d.Users, func(u pos.User) bool { return u.ID == id })
		return nil
	})
	if err != nil {
		return err
	}
	s.logger.Info("user deleted", slog.Int64("id", id))
	return nil
}

// ListUsers returns all accounts with passwords blanked.
func (s *Service) ListUsers() ([]pos.User, error) {
	out := []pos.User{}
	err := s.engine.Read(func(d *pos.Document) {
		for _, user := range d.Users {
			user.Password = ""
			out = append(out, user)
		}
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// buildUser validates role-dependent fields and assembles the record.
// Admins never carry seller fields, so a demotion to admin clears them.
func buildUser(d *pos.Document, id int64, input UserInput) (pos.User, error) {
	user := pos.User{
		ID:       id,
		Username: input.Username,
		Password: input.Password,
		Role:     input.Role,
	}
	if input.Role != pos.RoleSeller {
		return user, nil
	}

	if input.StoreID == nil {
		return pos.User{}, fmt.Errorf("masterdata: a seller needs a store: %w", httpx.ErrValidation)
	}
	if d.StoreByID(*input.StoreID) == nil {
		return pos.User{}, fmt.Errorf("masterdata: store %d: %w", *input.StoreID, httpx.ErrNotFound)
	}
	if input.SalesStartDate != nil && input.SalesEndDate != nil {
		start, okStart := pos.ParseDate(*input.SalesStartDate)
		end, okEnd := pos.ParseDate(*input.SalesEndDate)
		if !okStart || !okEnd {
			return pos.User{}, fmt.Errorf("masterdata: bad sales period dates: %w", httpx.ErrValidation)
		}
		if start.After(end) {
			return pos.User{}, fmt.Errorf("masterdata: sales period start is after end: %w", httpx.ErrValidation)
		}
	}
	for _, pid := range input.AssignedProductIDs {
		if d.ProductByID(pid) == nil {
			return pos.User{}, fmt.Errorf("masterdata: product %d: %w", pid, httpx.ErrNotFound)
		}
	}

	user.StoreID = input.StoreID
	user.AssignedProductIDs = input.AssignedProductIDs
	if user.AssignedProductIDs == nil {
		user.AssignedProductIDs = []int64{}
	}
	user.SalesStartDate = input.SalesStartDate
	user.SalesEndDate = input.SalesEndDate
	user.CommissionRate = input.CommissionRate
	user.CommissionOnCash = input.CommissionOnCash
	user.CommissionOnTransfer = input.CommissionOnTransfer
	user.CommissionOnCredit = input.CommissionOnCredit
	user.VisibleSalesDays = input.VisibleSalesDays
	return user, nil
}
