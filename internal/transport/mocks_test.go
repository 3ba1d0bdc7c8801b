package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"shopfront/internal/domain"
	"shopfront/internal/middleware"
	"shopfront/internal/repository"
	"shopfront/internal/service"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

type mockUserRepository struct {
	mu    sync.Mutex
	users map[string]*domain.User
}

func newMockUserRepository() *mockUserRepository {
	return &mockUserRepository{users: make(map[string]*domain.User)}
}

func (m *mockUserRepository) Create(ctx context.Context, user *domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.users[user.Email]; exists {
		return repository.ErrUserAlreadyExists
	}
	m.users[user.Email] = user
	return nil
}

func (m *mockUserRepository) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, exists := m.users[email]
	if !exists {
		return nil, repository.ErrUserNotFound
	}
	return user, nil
}

func (m *mockUserRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, user := range m.users {
		if user.ID == id {
			return user, nil
		}
	}
	return nil, repository.ErrUserNotFound
}

type mockRefreshTokenRepository struct {
	mu     sync.Mutex
	tokens map[string]*domain.RefreshToken
}

func newMockRefreshTokenRepository() *mockRefreshTokenRepository {
	return &mockRefreshTokenRepository{tokens: make(map[string]*domain.RefreshToken)}
}

func (m *mockRefreshTokenRepository) Create(ctx context.Context, token *domain.RefreshToken) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokens[token.Token] = token
	return nil
}

func (m *mockRefreshTokenRepository) FindByToken(ctx context.Context, token string) (*domain.RefreshToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	refreshToken, exists := m.tokens[token]
	if !exists {
		return nil, repository.ErrRefreshTokenNotFound
	}
	if refreshToken.Revoked {
		return nil, repository.ErrRefreshTokenRevoked
	}
	return refreshToken, nil
}

func (m *mockRefreshTokenRepository) Revoke(ctx context.Context, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	refreshToken, exists := m.tokens[token]
	if !exists || refreshToken.Revoked {
		return repository.ErrRefreshTokenNotFound
	}
	refreshToken.Revoked = true
	return nil
}

type mockProductRepository struct {
	products map[uuid.UUID]*domain.Product
}

func newMockProductRepository(products ...*domain.Product) *mockProductRepository {
	m := &mockProductRepository{products: make(map[uuid.UUID]*domain.Product)}
	for _, p := range products {
		m.products[p.ID] = p
	}
	return m
}

func (m *mockProductRepository) Create(ctx context.Context, product *domain.Product) error {
	m.products[product.ID] = product
	return nil
}

func (m *mockProductRepository) Update(ctx context.Context, product *domain.Product) error {
	if _, ok := m.products[product.ID]; !ok {
		return repository.ErrProductNotFound
	}
	m.products[product.ID] = product
	return nil
}

func (m *mockProductRepository) UpdateImage(ctx context.Context, id uuid.UUID, imageURL string) error {
	p, ok := m.products[id]
	if !ok {
		return repository.ErrProductNotFound
	}
	p.ImageURL = imageURL
	return nil
}

func (m *mockProductRepository) Delete(ctx context.Context, id uuid.UUID) error {
	if _, ok := m.products[id]; !ok {
		return repository.ErrProductNotFound
	}
	delete(m.products, id)
	return nil
}

func (m *mockProductRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	p, ok := m.products[id]
	if !ok {
		return nil, repository.ErrProductNotFound
	}
	clone := *p
	return &clone, nil
}

func (m *mockProductRepository) List(ctx context.Context, filter repository.ProductFilter) ([]*domain.Product, int, error) {
	products := []*domain.Product{}
	for _, p := range m.products {
		if filter.SellerID != nil && p.SellerID != *filter.SellerID {
			continue
		}
		products = append(products, p)
	}
	return products, len(products), nil
}

// stubOrderService returns canned results and records what it was asked to place
type stubOrderService struct {
	placed []domain.LineRequest
	buyer  uuid.UUID
	order  *domain.Order
	err    error
	orders []*domain.Order
	getErr error
	calls  int
}

func (s *stubOrderService) PlaceOrder(ctx context.Context, buyerID uuid.UUID, items []domain.LineRequest) (*domain.Order, error) {
	s.calls++
	s.buyer = buyerID
	s.placed = items
	return s.order, s.err
}

func (s *stubOrderService) GetOrder(ctx context.Context, orderID, requesterID uuid.UUID, role string) (*domain.Order, error) {
	if s.getErr != nil {
		return nil, s.getErr
	}
	return s.order, nil
}

func (s *stubOrderService) ListOrders(ctx context.Context, buyerID uuid.UUID) ([]*domain.Order, error) {
	return s.orders, nil
}

var _ service.OrderService = (*stubOrderService)(nil)

// fakeAuth trusts the X-Test-User and X-Test-Role headers
func fakeAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(r.Header.Get("X-Test-User"))
		if err != nil {
			middleware.RespondWithError(w, http.StatusUnauthorized, "missing authorization header")
			return
		}
		next.ServeHTTP(w, r.WithContext(middleware.WithUser(r.Context(), id, r.Header.Get("X-Test-Role"))))
	})
}

func passThrough(next http.Handler) http.Handler { return next }

type mockReviewRepository struct {
	reviews map[uuid.UUID]*domain.Review
}

func newMockReviewRepository() *mockReviewRepository {
	return &mockReviewRepository{reviews: make(map[uuid.UUID]*domain.Review)}
}

func (m *mockReviewRepository) Create(ctx context.Context, review *domain.Review) error {
	for _, existing := range m.reviews {
		if existing.ProductID == review.ProductID && existing.UserID == review.UserID {
			return repository.ErrReviewAlreadyExists
		}
	}
	m.reviews[review.ID] = review
	return nil
}

func (m *mockReviewRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Review, error) {
	review, ok := m.reviews[id]
	if !ok {
		return nil, repository.ErrReviewNotFound
	}
	return review, nil
}

func (m *mockReviewRepository) ListByProduct(ctx context.Context, productID uuid.UUID) ([]*domain.Review, error) {
	reviews := []*domain.Review{}
	for _, review := range m.reviews {
		if review.ProductID == productID {
			reviews = append(reviews, review)
		}
	}
	return reviews, nil
}

func (m *mockReviewRepository) Delete(ctx context.Context, id uuid.UUID) error {
	if _, ok := m.reviews[id]; !ok {
		return repository.ErrReviewNotFound
	}
	delete(m.reviews, id)
	return nil
}

type mockWishlistRepository struct {
	products map[uuid.UUID]bool
	items    map[uuid.UUID][]*domain.WishlistItem
}

func newMockWishlistRepository(products ...uuid.UUID) *mockWishlistRepository {
	m := &mockWishlistRepository{
		products: make(map[uuid.UUID]bool),
		items:    make(map[uuid.UUID][]*domain.WishlistItem),
	}
	for _, id := range products {
		m.products[id] = true
	}
	return m
}

func (m *mockWishlistRepository) Add(ctx context.Context, item *domain.WishlistItem) error {
	if !m.products[item.ProductID] {
		return repository.ErrProductNotFound
	}
	for _, existing := range m.items[item.UserID] {
		if existing.ProductID == item.ProductID {
			return nil
		}
	}
	m.items[item.UserID] = append(m.items[item.UserID], item)
	return nil
}

func (m *mockWishlistRepository) Remove(ctx context.Context, userID, productID uuid.UUID) error {
	items := m.items[userID]
	for i, existing := range items {
		if existing.ProductID == productID {
			m.items[userID] = append(items[:i], items[i+1:]...)
			return nil
		}
	}
	return repository.ErrWishlistItemNotFound
}

func (m *mockWishlistRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]*domain.WishlistItem, error) {
	items := m.items[userID]
	if items == nil {
		items = []*domain.WishlistItem{}
	}
	return items, nil
}

// errorBody is the decoded form of middleware.ErrorResponse
type errorBody struct {
	Error struct {
		Code    string                 `json:"code"`
		Message string                 `json:"message"`
		Details map[string]interface{} `json:"details"`
	} `json:"error"`
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorBody {
	t.Helper()
	var body errorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	return body
}

func jsonRequest(method, target string, body interface{}) *http.Request {
	var payload []byte
	switch v := body.(type) {
	case nil:
	case string:
		payload = []byte(v)
	default:
		payload, _ = json.Marshal(v)
	}
	req := httptest.NewRequest(method, target, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func asUser(req *http.Request, id uuid.UUID, role string) *http.Request {
	req.Header.Set("X-Test-User", id.String())
	req.Header.Set("X-Test-Role", role)
	return req
}
