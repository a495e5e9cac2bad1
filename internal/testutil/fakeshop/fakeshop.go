// Package fakeshop is an in-process storefront backend for tests. It serves
// the JSON API under /api, issues HS256 tokens, and counts calls per route.
package fakeshop

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/mmynk/storefront/internal/auth"
	"github.com/mmynk/storefront/internal/models"
)

// PayPalClientID is served by the payment configuration endpoint.
const PayPalClientID = "fake-paypal-client"

const pageSize = 8

type account struct {
	identity models.Identity
	password string
}

type failure struct {
	status  int
	message string
}

type ctxKey struct{}

// Server is a running fake backend.
type Server struct {
	*httptest.Server

	jwt *auth.JWTManager

	mu       sync.Mutex
	accounts map[string]*account // by email
	products map[string]models.Product
	orders   map[string]*models.Order
	calls    map[string]int
	failures map[string]failure
	holds    map[string]chan struct{}
}

// New starts a fake backend that is closed when the test ends.
func New(t testing.TB) *Server {
	t.Helper()

	s := &Server{
		jwt:      auth.NewJWTManager("fakeshop-secret", time.Hour),
		accounts: make(map[string]*account),
		products: make(map[string]models.Product),
		orders:   make(map[string]*models.Order),
		calls:    make(map[string]int),
		failures: make(map[string]failure),
		holds:    make(map[string]chan struct{}),
	}
	s.Server = httptest.NewServer(s.router())
	t.Cleanup(s.Close)
	return s
}

// BaseURL is the API root to configure clients with.
func (s *Server) BaseURL() string {
	return s.URL + "/api"
}

func (s *Server) router() *mux.Router {
	r := mux.NewRouter()
	r.Use(s.count, s.intercept)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/users/login", s.login).Methods(http.MethodPost)
	api.HandleFunc("/users", s.register).Methods(http.MethodPost)
	api.HandleFunc("/users/logout", s.logout).Methods(http.MethodPost)
	api.HandleFunc("/users/profile", s.protect(s.updateProfile)).Methods(http.MethodPut)

	api.HandleFunc("/products", s.listProducts).Methods(http.MethodGet)
	api.HandleFunc("/products/top", s.topProducts).Methods(http.MethodGet)
	api.HandleFunc("/products/{id}", s.getProduct).Methods(http.MethodGet)
	api.HandleFunc("/products", s.admin(s.createProduct)).Methods(http.MethodPost)
	api.HandleFunc("/products/{id}", s.admin(s.updateProduct)).Methods(http.MethodPut)
	api.HandleFunc("/products/{id}", s.admin(s.deleteProduct)).Methods(http.MethodDelete)

	api.HandleFunc("/orders", s.protect(s.createOrder)).Methods(http.MethodPost)
	api.HandleFunc("/orders/myorders", s.protect(s.myOrders)).Methods(http.MethodGet)
	api.HandleFunc("/orders/config/paypal", s.paypalConfig).Methods(http.MethodGet)
	api.HandleFunc("/orders/{id}", s.protect(s.getOrder)).Methods(http.MethodGet)
	api.HandleFunc("/orders/{id}/pay", s.protect(s.payOrder)).Methods(http.MethodPut)

	return r
}

// Route names a registered route as "METHOD /path/template",
// for example "GET /api/products/{id}".
func Route(method, template string) string {
	return method + " " + template
}

func routeOf(r *http.Request) string {
	if cur := mux.CurrentRoute(r); cur != nil {
		if tpl, err := cur.GetPathTemplate(); err == nil {
			return Route(r.Method, tpl)
		}
	}
	return Route(r.Method, r.URL.Path)
}

func (s *Server) count(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.calls[routeOf(r)]++
		s.mu.Unlock()
		next.ServeHTTP(w, r)
	})
}

func (s *Server) intercept(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		route := routeOf(r)

		s.mu.Lock()
		hold := s.holds[route]
		f, failing := s.failures[route]
		s.mu.Unlock()

		if hold != nil {
			select {
			case <-hold:
			case <-r.Context().Done():
				return
			}
		}
		if failing {
			writeError(w, f.status, f.message)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Calls returns how many requests reached route.
func (s *Server) Calls(route string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[route]
}

// Fail makes route answer status with message until Recover is called. An
// empty message sends a body without one.
func (s *Server) Fail(route string, status int, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[route] = failure{status: status, message: message}
}

// Recover undoes Fail for route.
func (s *Server) Recover(route string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.failures, route)
}

// Hold makes requests to route wait until the returned release is called.
func (s *Server) Hold(route string) (release func()) {
	ch := make(chan struct{})
	s.mu.Lock()
	s.holds[route] = ch
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.holds, route)
			s.mu.Unlock()
			close(ch)
		})
	}
}

// AddUser registers an account and returns its identity with a valid token.
func (s *Server) AddUser(name, email, password string, isAdmin bool) models.Identity {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addUserLocked(name, email, password, isAdmin)
}

func (s *Server) addUserLocked(name, email, password string, isAdmin bool) models.Identity {
	id := models.Identity{
		UserID:  uuid.NewString(),
		Name:    name,
		Email:   email,
		IsAdmin: isAdmin,
	}
	s.accounts[strings.ToLower(email)] = &account{identity: id, password: password}
	return s.withToken(id)
}

func (s *Server) withToken(id models.Identity) models.Identity {
	token, err := s.jwt.Generate(id)
	if err != nil {
		panic(fmt.Sprintf("fakeshop: failed to sign token: %v", err))
	}
	id.Token = token
	return id
}

// AddProduct stores p, assigning an ID when it has none, and returns it.
func (s *Server) AddProduct(p models.Product) models.Product {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	s.products[p.ID] = p
	return p
}

// Order returns the stored order with id.
func (s *Server) Order(id string) (models.Order, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return models.Order{}, false
	}
	return *o, true
}

func (s *Server) protect(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			writeError(w, http.StatusUnauthorized, "Not authorized, no token")
			return
		}
		claims, err := s.jwt.Validate(token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "Not authorized, token failed")
			return
		}
		next(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, claims)))
	}
}

func (s *Server) admin(next http.HandlerFunc) http.HandlerFunc {
	return s.protect(func(w http.ResponseWriter, r *http.Request) {
		if !claimsFrom(r).IsAdmin {
			writeError(w, http.StatusForbidden, "Not authorized as an admin")
			return
		}
		next(w, r)
	})
}

func claimsFrom(r *http.Request) *auth.Claims {
	claims, _ := r.Context().Value(ctxKey{}).(*auth.Claims)
	return claims
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var creds auth.Credentials
	if !readJSON(w, r, &creds) {
		return
	}

	s.mu.Lock()
	acct, ok := s.accounts[strings.ToLower(creds.Email)]
	s.mu.Unlock()
	if !ok || acct.password != creds.Password {
		writeError(w, http.StatusUnauthorized, "Invalid email or password")
		return
	}
	writeJSON(w, http.StatusOK, s.withToken(acct.identity))
}

func (s *Server) register(w http.ResponseWriter, r *http.Request) {
	var reg auth.Registration
	if !readJSON(w, r, &reg) {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.accounts[strings.ToLower(reg.Email)]; exists {
		writeError(w, http.StatusBadRequest, "User already exists")
		return
	}
	writeJSON(w, http.StatusCreated, s.addUserLocked(reg.Name, reg.Email, reg.Password, false))
}

func (s *Server) logout(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"message": "Logged out successfully"})
}

func (s *Server) updateProfile(w http.ResponseWriter, r *http.Request) {
	var update auth.ProfileUpdate
	if !readJSON(w, r, &update) {
		return
	}
	claims := claimsFrom(r)

	s.mu.Lock()
	defer s.mu.Unlock()
	acct, ok := s.accounts[strings.ToLower(claims.Email)]
	if !ok {
		writeError(w, http.StatusNotFound, "User not found")
		return
	}
	delete(s.accounts, strings.ToLower(claims.Email))
	if update.Name != "" {
		acct.identity.Name = update.Name
	}
	if update.Email != "" {
		acct.identity.Email = update.Email
	}
	if update.Password != "" {
		acct.password = update.Password
	}
	s.accounts[strings.ToLower(acct.identity.Email)] = acct
	writeJSON(w, http.StatusOK, s.withToken(acct.identity))
}

func (s *Server) sortedProducts() []models.Product {
	out := make([]models.Product, 0, len(s.products))
	for _, p := range s.products {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (s *Server) listProducts(w http.ResponseWriter, r *http.Request) {
	keyword := strings.ToLower(r.URL.Query().Get("keyword"))
	page, err := strconv.Atoi(r.URL.Query().Get("pageNumber"))
	if err != nil || page < 1 {
		page = 1
	}

	s.mu.Lock()
	var matched []models.Product
	for _, p := range s.sortedProducts() {
		if keyword == "" || strings.Contains(strings.ToLower(p.Name), keyword) {
			matched = append(matched, p)
		}
	}
	s.mu.Unlock()

	pages := (len(matched) + pageSize - 1) / pageSize
	if pages == 0 {
		pages = 1
	}
	start := min((page-1)*pageSize, len(matched))
	end := min(start+pageSize, len(matched))

	writeJSON(w, http.StatusOK, models.ProductPage{
		Products: append([]models.Product{}, matched[start:end]...),
		Page:     page,
		Pages:    pages,
	})
}

func (s *Server) topProducts(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	products := s.sortedProducts()
	s.mu.Unlock()

	sort.SliceStable(products, func(i, j int) bool { return products[i].Rating > products[j].Rating })
	writeJSON(w, http.StatusOK, products[:min(3, len(products))])
}

func (s *Server) getProduct(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	p, ok := s.products[mux.Vars(r)["id"]]
	s.mu.Unlock()
	if !ok {
		writeError(w, http.StatusNotFound, "Product not found")
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) createProduct(w http.ResponseWriter, r *http.Request) {
	p := s.AddProduct(models.Product{
		Name:        "Sample name",
		Image:       "/images/sample.jpg",
		Brand:       "Sample brand",
		Category:    "Sample category",
		Description: "Sample description",
	})
	writeJSON(w, http.StatusCreated, p)
}

func (s *Server) updateProduct(w http.ResponseWriter, r *http.Request) {
	var p models.Product
	if !readJSON(w, r, &p) {
		return
	}
	id := mux.Vars(r)["id"]

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.products[id]; !ok {
		writeError(w, http.StatusNotFound, "Product not found")
		return
	}
	p.ID = id
	s.products[id] = p
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) deleteProduct(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.products[id]; !ok {
		writeError(w, http.StatusNotFound, "Product not found")
		return
	}
	delete(s.products, id)
	writeJSON(w, http.StatusOK, map[string]string{"message": "Product removed"})
}

func (s *Server) createOrder(w http.ResponseWriter, r *http.Request) {
	var o models.Order
	if !readJSON(w, r, &o) {
		return
	}
	if len(o.OrderItems) == 0 {
		writeError(w, http.StatusBadRequest, "No order items")
		return
	}

	o.ID = uuid.NewString()
	o.User = claimsFrom(r).UserID
	o.IsPaid = false
	o.IsDelivered = false

	s.mu.Lock()
	s.orders[o.ID] = &o
	s.mu.Unlock()
	writeJSON(w, http.StatusCreated, o)
}

func (s *Server) myOrders(w http.ResponseWriter, r *http.Request) {
	userID := claimsFrom(r).UserID

	s.mu.Lock()
	out := []models.Order{}
	for _, o := range s.orders {
		if o.User == userID {
			out = append(out, *o)
		}
	}
	s.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) getOrder(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	o, ok := s.orders[mux.Vars(r)["id"]]
	var order models.Order
	if ok {
		order = *o
	}
	s.mu.Unlock()

	if !ok {
		writeError(w, http.StatusNotFound, "Order not found")
		return
	}
	claims := claimsFrom(r)
	if order.User != claims.UserID && !claims.IsAdmin {
		writeError(w, http.StatusForbidden, "Not authorized to view this order")
		return
	}
	writeJSON(w, http.StatusOK, order)
}

func (s *Server) payOrder(w http.ResponseWriter, r *http.Request) {
	var capture models.PaymentCapture
	if !readJSON(w, r, &capture) {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[mux.Vars(r)["id"]]
	if !ok {
		writeError(w, http.StatusNotFound, "Order not found")
		return
	}
	o.IsPaid = true
	o.PaidAt = time.Now().UTC().Format(time.RFC3339)
	writeJSON(w, http.StatusOK, *o)
}

func (s *Server) paypalConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"clientId": PayPalClientID})
}

func readJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	if message == "" {
		w.WriteHeader(status)
		return
	}
	writeJSON(w, status, map[string]string{"message": message})
}
