package customer

import (
	"context"
	"fmt"
	"strings"

	"github.com/noah-isme/invoice-manager/internal/common"
	"github.com/noah-isme/invoice-manager/internal/money"
	"github.com/noah-isme/invoice-manager/internal/store"
)

// Store is the subset of queries the customer service needs.
type Store interface {
	CreateCustomer(ctx context.Context, arg store.CustomerParams) (store.Customer, error)
	UpdateCustomer(ctx context.Context, id int64, arg store.CustomerParams) (store.Customer, error)
	GetCustomer(ctx context.Context, id int64) (store.Customer, error)
	GetCustomerByName(ctx context.Context, name string) (store.Customer, error)
	ListCustomers(ctx context.Context, arg store.ListCustomersParams) ([]store.Customer, error)
	CountCustomers(ctx context.Context, search string) (int64, error)
	DeleteCustomer(ctx context.Context, id int64) (int64, error)
	CustomerHasInvoices(ctx context.Context, customerID int64) (bool, error)
}

// Service manages customers.
type Service struct {
	Store Store
}

// Input is the writable customer fields. On update, nil pointers keep the
// stored value.
type Input struct {
	Name           *string       `json:"name" validate:"omitempty,max=200"`
	Email          *string       `json:"email" validate:"omitempty,max=200"`
	Phone          *string       `json:"phone" validate:"omitempty,max=64"`
	AddressLine1   *string       `json:"address_line1" validate:"omitempty,max=200"`
	AddressLine2   *string       `json:"address_line2" validate:"omitempty,max=200"`
	City           *string       `json:"city" validate:"omitempty,max=120"`
	Postcode       *string       `json:"postcode" validate:"omitempty,max=32"`
	Country        *string       `json:"country" validate:"omitempty,max=120"`
	TaxRate        *money.Amount `json:"tax_rate"`
	UsesDefaultTax *bool         `json:"uses_default_tax"`
}

// ListResult is one page of customers.
type ListResult struct {
	Items []store.Customer
	Total int64
}

// Create stores a new customer. Customers use the default tax rate unless
// told otherwise.
func (s *Service) Create(ctx context.Context, in Input) (store.Customer, error) {
	params, err := Prepare(in)
	if err != nil {
		return store.Customer{}, err
	}
	c, err := s.Store.CreateCustomer(ctx, params)
	if err != nil {
		return store.Customer{}, fmt.Errorf("create customer: %w", err)
	}
	return c, nil
}

// Prepare validates in as a new customer and returns the row to insert.
func Prepare(in Input) (store.CustomerParams, error) {
	params := store.CustomerParams{UsesDefaultTax: true}
	if err := merge(&params, in); err != nil {
		return store.CustomerParams{}, err
	}
	return params, nil
}

// Update applies the present fields of in to customer id.
func (s *Service) Update(ctx context.Context, id int64, in Input) (store.Customer, error) {
	cur, err := s.Get(ctx, id)
	if err != nil {
		return store.Customer{}, err
	}
	params := ParamsOf(cur)
	if err := merge(&params, in); err != nil {
		return store.Customer{}, err
	}
	c, err := s.Store.UpdateCustomer(ctx, id, params)
	if err != nil {
		if store.IsNotFound(err) {
			return store.Customer{}, common.NotFound("customer")
		}
		return store.Customer{}, fmt.Errorf("update customer: %w", err)
	}
	return c, nil
}

// Get loads one customer.
func (s *Service) Get(ctx context.Context, id int64) (store.Customer, error) {
	c, err := s.Store.GetCustomer(ctx, id)
	if err != nil {
		if store.IsNotFound(err) {
			return store.Customer{}, common.NotFound("customer")
		}
		return store.Customer{}, fmt.Errorf("get customer: %w", err)
	}
	return c, nil
}

// FindOrCreate returns the customer whose name matches in.Name, creating it
// from in when none exists. The bool reports whether a row was created.
func (s *Service) FindOrCreate(ctx context.Context, in Input) (store.Customer, bool, error) {
	if in.Name == nil || strings.TrimSpace(*in.Name) == "" {
		return store.Customer{}, false, common.Validation("customer name is required")
	}
	c, err := s.Store.GetCustomerByName(ctx, strings.TrimSpace(*in.Name))
	if err == nil {
		return c, false, nil
	}
	if !store.IsNotFound(err) {
		return store.Customer{}, false, fmt.Errorf("find customer: %w", err)
	}
	c, err = s.Create(ctx, in)
	if err != nil {
		return store.Customer{}, false, err
	}
	return c, true, nil
}

// List returns customers matching search by name or email.
func (s *Service) List(ctx context.Context, search string, limit, offset int) (ListResult, error) {
	search = strings.TrimSpace(search)
	items, err := s.Store.ListCustomers(ctx, store.ListCustomersParams{Search: search, Limit: int32(limit), Offset: int32(offset)})
	if err != nil {
		return ListResult{}, fmt.Errorf("list customers: %w", err)
	}
	total, err := s.Store.CountCustomers(ctx, search)
	if err != nil {
		return ListResult{}, fmt.Errorf("count customers: %w", err)
	}
	return ListResult{Items: items, Total: total}, nil
}

// Delete removes a customer that has no invoices.
func (s *Service) Delete(ctx context.Context, id int64) error {
	has, err := s.Store.CustomerHasInvoices(ctx, id)
	if err != nil {
		return fmt.Errorf("check customer invoices: %w", err)
	}
	if has {
		return common.Conflict("CUSTOMER_HAS_INVOICES", "customer has invoices and cannot be deleted")
	}
	n, err := s.Store.DeleteCustomer(ctx, id)
	if err != nil {
		if store.IsForeignKeyViolation(err) {
			return common.Conflict("CUSTOMER_HAS_INVOICES", "customer has invoices and cannot be deleted")
		}
		return fmt.Errorf("delete customer: %w", err)
	}
	if n == 0 {
		return common.NotFound("customer")
	}
	return nil
}

// ParamsOf copies a stored customer into update parameters.
func ParamsOf(c store.Customer) store.CustomerParams {
	return store.CustomerParams{
		Name:           c.Name,
		Email:          c.Email,
		Phone:          c.Phone,
		AddressLine1:   c.AddressLine1,
		AddressLine2:   c.AddressLine2,
		City:           c.City,
		Postcode:       c.Postcode,
		Country:        c.Country,
		TaxRate:        c.TaxRate,
		UsesDefaultTax: c.UsesDefaultTax,
	}
}

func merge(p *store.CustomerParams, in Input) error {
	if err := common.ValidateStruct(in); err != nil {
		return err
	}
	if in.Name != nil {
		p.Name = strings.TrimSpace(*in.Name)
	}
	if p.Name == "" {
		return common.Validation("name is required")
	}
	setOptional(&p.Email, in.Email)
	setOptional(&p.Phone, in.Phone)
	setOptional(&p.AddressLine1, in.AddressLine1)
	setOptional(&p.AddressLine2, in.AddressLine2)
	setOptional(&p.City, in.City)
	setOptional(&p.Postcode, in.Postcode)
	setOptional(&p.Country, in.Country)
	if in.TaxRate != nil {
		rate := in.TaxRate.Round2()
		if rate.IsNegative() || rate.Cmp(money.FromInt(100)) > 0 {
			return common.Validation("tax_rate must be between 0 and 100")
		}
		p.TaxRate = &rate
		// an explicit override implies the customer no longer uses the default
		if in.UsesDefaultTax == nil {
			p.UsesDefaultTax = false
		}
	}
	if in.UsesDefaultTax != nil {
		p.UsesDefaultTax = *in.UsesDefaultTax
	}
	return nil
}

// setOptional stores a trimmed value; an empty string clears the field.
func setOptional(dst **string, v *string) {
	if v == nil {
		return
	}
	trimmed := strings.TrimSpace(*v)
	if trimmed == "" {
		*dst = nil
		return
	}
	*dst = &trimmed
}
