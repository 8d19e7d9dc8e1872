package customer

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/invoice-manager/internal/store"
)

type fakeStore struct {
	rows        map[int64]store.Customer
	withInvoice map[int64]bool
	next        int64
}

func newFakeStore() *fakeStore {
	return &fakeStore{rows: map[int64]store.Customer{}, withInvoice: map[int64]bool{}, next: 1}
}

func fromParams(id int64, p store.CustomerParams) store.Customer {
	return store.Customer{ID: id, Name: p.Name, Email: p.Email, Phone: p.Phone, AddressLine1: p.AddressLine1,
		AddressLine2: p.AddressLine2, City: p.City, Postcode: p.Postcode, Country: p.Country, TaxRate: p.TaxRate,
		UsesDefaultTax: p.UsesDefaultTax}
}

func (f *fakeStore) CreateCustomer(_ context.Context, p store.CustomerParams) (store.Customer, error) {
	c := fromParams(f.next, p)
	f.rows[c.ID] = c
	f.next++
	return c, nil
}

func (f *fakeStore) UpdateCustomer(_ context.Context, id int64, p store.CustomerParams) (store.Customer, error) {
	if _, ok := f.rows[id]; !ok {
		return store.Customer{}, pgx.ErrNoRows
	}
	f.rows[id] = fromParams(id, p)
	return f.rows[id], nil
}

func (f *fakeStore) GetCustomer(_ context.Context, id int64) (store.Customer, error) {
	c, ok := f.rows[id]
	if !ok {
		return store.Customer{}, pgx.ErrNoRows
	}
	return c, nil
}

func (f *fakeStore) GetCustomerByName(_ context.Context, name string) (store.Customer, error) {
	for id := int64(1); id < f.next; id++ {
		if c, ok := f.rows[id]; ok && strings.EqualFold(c.Name, name) {
			return c, nil
		}
	}
	return store.Customer{}, pgx.ErrNoRows
}

func (f *fakeStore) ListCustomers(_ context.Context, arg store.ListCustomersParams) ([]store.Customer, error) {
	out := []store.Customer{}
	for id := int64(1); id < f.next; id++ {
		c, ok := f.rows[id]
		if ok && (arg.Search == "" || strings.Contains(strings.ToLower(c.Name), strings.ToLower(arg.Search))) {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeStore) CountCustomers(ctx context.Context, search string) (int64, error) {
	rows, _ := f.ListCustomers(ctx, store.ListCustomersParams{Search: search})
	return int64(len(rows)), nil
}

func (f *fakeStore) DeleteCustomer(_ context.Context, id int64) (int64, error) {
	if _, ok := f.rows[id]; !ok {
		return 0, nil
	}
	delete(f.rows, id)
	return 1, nil
}

func (f *fakeStore) CustomerHasInvoices(_ context.Context, id int64) (bool, error) {
	return f.withInvoice[id], nil
}

func newRouter(st *fakeStore) http.Handler {
	h := &Handler{Service: &Service{Store: st}}
	r := chi.NewRouter()
	r.Get("/customers", h.List)
	r.Post("/customers", h.Create)
	r.Get("/customers/{id}", h.Get)
	r.Put("/customers/{id}", h.Update)
	r.Delete("/customers/{id}", h.Delete)
	return r
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(method, path, strings.NewReader(body)))
	return rr
}

func TestCreateDefaultsAndOverride(t *testing.T) {
	st := newFakeStore()
	r := newRouter(st)

	rr := do(t, r, http.MethodPost, "/customers", `{"name":"  Acme Ltd ","email":"billing@acme.test"}`)
	require.Equal(t, http.StatusCreated, rr.Code)
	require.Equal(t, "Acme Ltd", st.rows[1].Name)
	require.True(t, st.rows[1].UsesDefaultTax)
	require.Nil(t, st.rows[1].TaxRate)

	rr = do(t, r, http.MethodPost, "/customers", `{"name":"Export Co","tax_rate":"0"}`)
	require.Equal(t, http.StatusCreated, rr.Code)
	require.False(t, st.rows[2].UsesDefaultTax)
	require.Equal(t, "0.00", st.rows[2].TaxRate.String())
	require.Contains(t, rr.Body.String(), `"tax_rate":0.00`)

	rr = do(t, r, http.MethodPost, "/customers", `{"email":"x@y.z"}`)
	require.Equal(t, http.StatusBadRequest, rr.Code)
	rr = do(t, r, http.MethodPost, "/customers", `{"name":"Bad","tax_rate":-1}`)
	require.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestUpdateKeepsOmittedFields(t *testing.T) {
	st := newFakeStore()
	r := newRouter(st)
	require.Equal(t, http.StatusCreated, do(t, r, http.MethodPost, "/customers", `{"name":"Acme","city":"Leeds","phone":"0113"}`).Code)

	rr := do(t, r, http.MethodPut, "/customers/1", `{"city":"York","phone":""}`)
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "Acme", st.rows[1].Name)
	require.Equal(t, "York", *st.rows[1].City)
	require.Nil(t, st.rows[1].Phone)

	require.Equal(t, http.StatusNotFound, do(t, r, http.MethodPut, "/customers/9", `{"city":"York"}`).Code)
	require.Equal(t, http.StatusBadRequest, do(t, r, http.MethodPut, "/customers/abc", `{}`).Code)
}

func TestDeleteRefusesCustomersWithInvoices(t *testing.T) {
	st := newFakeStore()
	r := newRouter(st)
	require.Equal(t, http.StatusCreated, do(t, r, http.MethodPost, "/customers", `{"name":"Acme"}`).Code)
	require.Equal(t, http.StatusCreated, do(t, r, http.MethodPost, "/customers", `{"name":"Globex"}`).Code)
	st.withInvoice[1] = true

	rr := do(t, r, http.MethodDelete, "/customers/1", "")
	require.Equal(t, http.StatusConflict, rr.Code)
	require.Contains(t, rr.Body.String(), "CUSTOMER_HAS_INVOICES")

	require.Equal(t, http.StatusNoContent, do(t, r, http.MethodDelete, "/customers/2", "").Code)
	require.Equal(t, http.StatusNotFound, do(t, r, http.MethodDelete, "/customers/2", "").Code)
}

func TestListSearchAndPagination(t *testing.T) {
	st := newFakeStore()
	r := newRouter(st)
	for _, name := range []string{"Acme", "Globex", "Acme North"} {
		require.Equal(t, http.StatusCreated, do(t, r, http.MethodPost, "/customers", `{"name":"`+name+`"}`).Code)
	}
	rr := do(t, r, http.MethodGet, "/customers?q=acme&limit=10", "")
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "2", rr.Header().Get("X-Total-Count"))

	var body struct {
		Data       []store.Customer `json:"data"`
		Pagination struct {
			PerPage    int `json:"per_page"`
			TotalItems int `json:"total_items"`
		} `json:"pagination"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	require.Len(t, body.Data, 2)
	require.Equal(t, 10, body.Pagination.PerPage)
}

func TestFindOrCreateMatchesByName(t *testing.T) {
	st := newFakeStore()
	svc := &Service{Store: st}
	name := "Acme"

	c, created, err := svc.FindOrCreate(context.Background(), Input{Name: &name})
	require.NoError(t, err)
	require.True(t, created)

	upper := " ACME "
	again, created, err := svc.FindOrCreate(context.Background(), Input{Name: &upper})
	require.NoError(t, err)
	require.False(t, created)
	require.Equal(t, c.ID, again.ID)
	require.Len(t, st.rows, 1)

	_, _, err = svc.FindOrCreate(context.Background(), Input{})
	require.Error(t, err)
}
