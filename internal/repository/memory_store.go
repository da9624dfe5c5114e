// internal/repository/memory_store.go
package repository

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/javajoker/eshop-backend/internal/models"
)

// MemoryStore keeps all records in-process. Transactions are serialized and
// roll back by restoring a snapshot taken when they began. Calls made outside
// a transaction wait for the open one to finish, so they neither see its
// writes early nor lose their own to its rollback.
type MemoryStore struct {
	state *memoryState
	inTx  bool
}

type memoryState struct {
	txMu sync.RWMutex

	mu       sync.RWMutex
	seq      uint64
	order    map[uuid.UUID]uint64
	users    map[uuid.UUID]models.User
	products map[uuid.UUID]models.Product
	images   map[uuid.UUID]models.ProductImage
	reviews  map[uuid.UUID]models.Review
	orders   map[uuid.UUID]models.Order
	items    map[uuid.UUID]models.OrderItem
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{state: &memoryState{
		order:    make(map[uuid.UUID]uint64),
		users:    make(map[uuid.UUID]models.User),
		products: make(map[uuid.UUID]models.Product),
		images:   make(map[uuid.UUID]models.ProductImage),
		reviews:  make(map[uuid.UUID]models.Review),
		orders:   make(map[uuid.UUID]models.Order),
		items:    make(map[uuid.UUID]models.OrderItem),
	}}
}

func (m *MemoryStore) Users() UserRepository       { return &memoryUsers{m.view()} }
func (m *MemoryStore) Products() ProductRepository { return &memoryProducts{m.view()} }
func (m *MemoryStore) Reviews() ReviewRepository   { return &memoryReviews{m.view()} }
func (m *MemoryStore) Orders() OrderRepository     { return &memoryOrders{m.view()} }

func (m *MemoryStore) view() memoryView { return memoryView{s: m.state, inTx: m.inTx} }

// memoryView is the repositories' handle on the shared state.
type memoryView struct {
	s    *memoryState
	inTx bool
}

// lock takes the state for writing and returns the matching unlock.
func (v memoryView) lock() func() {
	if !v.inTx {
		v.s.txMu.RLock()
	}
	v.s.mu.Lock()
	return func() {
		v.s.mu.Unlock()
		if !v.inTx {
			v.s.txMu.RUnlock()
		}
	}
}

func (v memoryView) rlock() func() {
	if !v.inTx {
		v.s.txMu.RLock()
	}
	v.s.mu.RLock()
	return func() {
		v.s.mu.RUnlock()
		if !v.inTx {
			v.s.txMu.RUnlock()
		}
	}
}

func (m *MemoryStore) WithTx(ctx context.Context, fn func(Store) error) error {
	if m.inTx {
		return fn(m)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	m.state.txMu.Lock()
	defer m.state.txMu.Unlock()

	snap := m.state.snapshot()
	if err := fn(&MemoryStore{state: m.state, inTx: true}); err != nil {
		m.state.restore(snap)
		return err
	}
	return nil
}

type memorySnapshot struct {
	seq      uint64
	order    map[uuid.UUID]uint64
	users    map[uuid.UUID]models.User
	products map[uuid.UUID]models.Product
	images   map[uuid.UUID]models.ProductImage
	reviews  map[uuid.UUID]models.Review
	orders   map[uuid.UUID]models.Order
	items    map[uuid.UUID]models.OrderItem
}

func (s *memoryState) snapshot() memorySnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return memorySnapshot{
		seq:      s.seq,
		order:    cloneMap(s.order),
		users:    cloneMap(s.users),
		products: cloneMap(s.products),
		images:   cloneMap(s.images),
		reviews:  cloneMap(s.reviews),
		orders:   cloneMap(s.orders),
		items:    cloneMap(s.items),
	}
}

func (s *memoryState) restore(snap memorySnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq = snap.seq
	s.order = snap.order
	s.users = snap.users
	s.products = snap.products
	s.images = snap.images
	s.reviews = snap.reviews
	s.orders = snap.orders
	s.items = snap.items
}

func cloneMap[K comparable, V any](src map[K]V) map[K]V {
	dst := make(map[K]V, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}

// stamp assigns an id and timestamps to a new record. Callers hold s.mu.
func (s *memoryState) stamp(base *models.BaseModel) {
	if base.ID == uuid.Nil {
		base.ID = uuid.New()
	}
	now := time.Now().UTC()
	if base.CreatedAt.IsZero() {
		base.CreatedAt = now
	}
	base.UpdatedAt = now
	if _, ok := s.order[base.ID]; !ok {
		s.seq++
		s.order[base.ID] = s.seq
	}
}

func createdIn(created, from, to time.Time) bool {
	if !from.IsZero() && created.Before(from) {
		return false
	}
	return to.IsZero() || created.Before(to)
}

func (s *memoryState) sortByInsertion(ids []uuid.UUID) {
	sort.Slice(ids, func(i, j int) bool { return s.order[ids[i]] < s.order[ids[j]] })
}

func window[T any](items []T, offset, limit int) []T {
	if offset >= len(items) {
		return []T{}
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}

// users

type memoryUsers struct {
	memoryView
}

func (r *memoryUsers) Create(_ context.Context, user *models.User) error {
	defer r.lock()()
	for _, u := range r.s.users {
		if strings.EqualFold(u.Email, user.Email) || strings.EqualFold(u.Username, user.Username) {
			return ErrDuplicate
		}
	}
	r.s.stamp(&user.BaseModel)
	r.s.users[user.ID] = *user
	return nil
}

func (r *memoryUsers) GetByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	defer r.rlock()()
	u, ok := r.s.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &u, nil
}

func (r *memoryUsers) GetByEmail(_ context.Context, email string) (*models.User, error) {
	defer r.rlock()()
	for _, u := range r.s.users {
		if strings.EqualFold(u.Email, email) {
			return &u, nil
		}
	}
	return nil, ErrNotFound
}

func (r *memoryUsers) GetByResetToken(_ context.Context, token string) (*models.User, error) {
	if token == "" {
		return nil, ErrNotFound
	}
	defer r.rlock()()
	for _, u := range r.s.users {
		if u.Profile.ResetPasswordToken == token {
			return &u, nil
		}
	}
	return nil, ErrNotFound
}

func (r *memoryUsers) Update(_ context.Context, user *models.User) error {
	defer r.lock()()
	if _, ok := r.s.users[user.ID]; !ok {
		return ErrNotFound
	}
	for id, u := range r.s.users {
		if id != user.ID && (strings.EqualFold(u.Email, user.Email) || strings.EqualFold(u.Username, user.Username)) {
			return ErrDuplicate
		}
	}
	r.s.stamp(&user.BaseModel)
	r.s.users[user.ID] = *user
	return nil
}

func (r *memoryUsers) Count(_ context.Context, from, to time.Time) (int64, error) {
	defer r.rlock()()
	var n int64
	for _, u := range r.s.users {
		if createdIn(u.CreatedAt, from, to) {
			n++
		}
	}
	return n, nil
}

// products

type memoryProducts struct {
	memoryView
}

func (r *memoryProducts) Create(_ context.Context, product *models.Product) error {
	defer r.lock()()
	r.s.stamp(&product.BaseModel)
	stored := *product
	stored.Images, stored.Reviews, stored.User = nil, nil, nil
	r.s.products[product.ID] = stored
	return nil
}

func (r *memoryProducts) Get(_ context.Context, id uuid.UUID) (*models.Product, error) {
	defer r.rlock()()
	p, ok := r.s.products[id]
	if !ok {
		return nil, ErrNotFound
	}
	p.Images = r.s.imagesOf(id)
	p.Reviews = r.s.reviewsOf(id)
	return &p, nil
}

func (r *memoryProducts) GetForUpdate(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	defer r.rlock()()
	p, ok := r.s.products[id]
	if !ok {
		return nil, ErrNotFound
	}
	p.Images = r.s.imagesOf(id)
	return &p, nil
}

func (r *memoryProducts) Update(_ context.Context, product *models.Product) error {
	defer r.lock()()
	if _, ok := r.s.products[product.ID]; !ok {
		return ErrNotFound
	}
	r.s.stamp(&product.BaseModel)
	stored := *product
	stored.Images, stored.Reviews, stored.User = nil, nil, nil
	r.s.products[product.ID] = stored
	return nil
}

func (r *memoryProducts) Delete(_ context.Context, id uuid.UUID) error {
	defer r.lock()()
	if _, ok := r.s.products[id]; !ok {
		return ErrNotFound
	}
	for imgID, img := range r.s.images {
		if img.ProductID != nil && *img.ProductID == id {
			delete(r.s.images, imgID)
		}
	}
	for revID, rev := range r.s.reviews {
		if rev.ProductID == id {
			delete(r.s.reviews, revID)
		}
	}
	delete(r.s.products, id)
	return nil
}

func (r *memoryProducts) List(_ context.Context, filter ProductFilter) ([]models.Product, int64, error) {
	defer r.rlock()()

	keyword := strings.ToLower(filter.Keyword)
	ids := make([]uuid.UUID, 0, len(r.s.products))
	for id, p := range r.s.products {
		if keyword != "" &&
			!strings.Contains(strings.ToLower(p.Name), keyword) &&
			!strings.Contains(strings.ToLower(p.Description), keyword) {
			continue
		}
		if filter.Category != "" && p.Category != filter.Category {
			continue
		}
		if filter.Brand != "" && !strings.EqualFold(p.Brand, filter.Brand) {
			continue
		}
		if filter.MinPrice != nil && p.Price.LessThan(*filter.MinPrice) {
			continue
		}
		if filter.MaxPrice != nil && p.Price.GreaterThan(*filter.MaxPrice) {
			continue
		}
		ids = append(ids, id)
	}
	r.s.sortByInsertion(ids)

	total := int64(len(ids))
	ids = window(ids, filter.Offset, filter.Limit)
	products := make([]models.Product, 0, len(ids))
	for _, id := range ids {
		p := r.s.products[id]
		p.Images = r.s.imagesOf(id)
		products = append(products, p)
	}
	return products, total, nil
}

func (r *memoryProducts) AdjustStock(_ context.Context, id uuid.UUID, delta int) (int, error) {
	defer r.lock()()
	p, ok := r.s.products[id]
	if !ok {
		return 0, ErrNotFound
	}
	p.Stock += delta
	r.s.products[id] = p
	return p.Stock, nil
}

func (r *memoryProducts) SetRatings(_ context.Context, id uuid.UUID, ratings decimal.Decimal) error {
	defer r.lock()()
	p, ok := r.s.products[id]
	if !ok {
		return ErrNotFound
	}
	p.Ratings = ratings
	r.s.products[id] = p
	return nil
}

func (r *memoryProducts) AddImage(_ context.Context, image *models.ProductImage) error {
	defer r.lock()()
	r.s.stamp(&image.BaseModel)
	r.s.images[image.ID] = *image
	return nil
}

func (r *memoryProducts) GetImage(_ context.Context, id uuid.UUID) (*models.ProductImage, error) {
	defer r.rlock()()
	img, ok := r.s.images[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &img, nil
}

func (r *memoryProducts) DeleteImage(_ context.Context, id uuid.UUID) error {
	defer r.lock()()
	if _, ok := r.s.images[id]; !ok {
		return ErrNotFound
	}
	delete(r.s.images, id)
	return nil
}

func (r *memoryProducts) Inventory(_ context.Context, lowStock int) (InventorySummary, error) {
	defer r.rlock()()
	var summary InventorySummary
	for _, p := range r.s.products {
		summary.Products++
		if p.Stock <= lowStock {
			summary.LowStock++
		}
		if p.Stock <= 0 {
			summary.OutOfStock++
		}
	}
	return summary, nil
}

// Callers hold s.mu.
func (s *memoryState) imagesOf(productID uuid.UUID) []models.ProductImage {
	ids := make([]uuid.UUID, 0)
	for id, img := range s.images {
		if img.ProductID != nil && *img.ProductID == productID {
			ids = append(ids, id)
		}
	}
	s.sortByInsertion(ids)
	out := make([]models.ProductImage, 0, len(ids))
	for _, id := range ids {
		out = append(out, s.images[id])
	}
	return out
}

// Callers hold s.mu.
func (s *memoryState) reviewsOf(productID uuid.UUID) []models.Review {
	ids := make([]uuid.UUID, 0)
	for id, rev := range s.reviews {
		if rev.ProductID == productID {
			ids = append(ids, id)
		}
	}
	s.sortByInsertion(ids)
	out := make([]models.Review, 0, len(ids))
	for _, id := range ids {
		out = append(out, s.reviews[id])
	}
	return out
}

// reviews

type memoryReviews struct {
	memoryView
}

func (r *memoryReviews) FindByProductAndUser(_ context.Context, productID, userID uuid.UUID) (*models.Review, error) {
	defer r.rlock()()
	for _, rev := range r.s.reviews {
		if rev.ProductID == productID && rev.UserID == userID {
			return &rev, nil
		}
	}
	return nil, ErrNotFound
}

func (r *memoryReviews) ListByProduct(_ context.Context, productID uuid.UUID) ([]models.Review, error) {
	defer r.rlock()()
	return r.s.reviewsOf(productID), nil
}

func (r *memoryReviews) Save(_ context.Context, review *models.Review) error {
	defer r.lock()()
	r.s.stamp(&review.BaseModel)
	r.s.reviews[review.ID] = *review
	return nil
}

func (r *memoryReviews) Delete(_ context.Context, id uuid.UUID) error {
	defer r.lock()()
	if _, ok := r.s.reviews[id]; !ok {
		return ErrNotFound
	}
	delete(r.s.reviews, id)
	return nil
}

func (r *memoryReviews) AverageRating(_ context.Context, productID uuid.UUID) (decimal.Decimal, error) {
	defer r.rlock()()
	var sum, n int64
	for _, rev := range r.s.reviews {
		if rev.ProductID == productID {
			sum += int64(rev.Rating)
			n++
		}
	}
	if n == 0 {
		return decimal.Zero, nil
	}
	return decimal.NewFromInt(sum).Div(decimal.NewFromInt(n)).Round(2), nil
}

// orders

type memoryOrders struct {
	memoryView
}

func (r *memoryOrders) Create(_ context.Context, order *models.Order) error {
	defer r.lock()()
	if order.CheckoutSessionID != nil {
		for _, o := range r.s.orders {
			if o.CheckoutSessionID != nil && *o.CheckoutSessionID == *order.CheckoutSessionID {
				return ErrDuplicate
			}
		}
	}
	if order.Status == "" {
		order.Status = models.OrderStatusPending
	}
	r.s.stamp(&order.BaseModel)
	for i := range order.Items {
		order.Items[i].OrderID = order.ID
		r.s.stamp(&order.Items[i].BaseModel)
		r.s.items[order.Items[i].ID] = order.Items[i]
	}
	stored := *order
	stored.Items = nil
	r.s.orders[order.ID] = stored
	return nil
}

func (r *memoryOrders) Get(_ context.Context, id uuid.UUID) (*models.Order, error) {
	defer r.rlock()()
	o, ok := r.s.orders[id]
	if !ok {
		return nil, ErrNotFound
	}
	o.Items = r.s.itemsOf(id)
	return &o, nil
}

func (r *memoryOrders) GetByCheckoutSession(_ context.Context, sessionID string) (*models.Order, error) {
	defer r.rlock()()
	for id, o := range r.s.orders {
		if o.CheckoutSessionID != nil && *o.CheckoutSessionID == sessionID {
			o.Items = r.s.itemsOf(id)
			return &o, nil
		}
	}
	return nil, ErrNotFound
}

func (r *memoryOrders) List(_ context.Context, filter OrderFilter) ([]models.Order, int64, error) {
	defer r.rlock()()

	ids := make([]uuid.UUID, 0, len(r.s.orders))
	for id, o := range r.s.orders {
		if filter.UserID != nil && o.UserID != *filter.UserID {
			continue
		}
		if filter.Status != "" && o.Status != filter.Status {
			continue
		}
		ids = append(ids, id)
	}
	// newest first
	sort.Slice(ids, func(i, j int) bool { return r.s.order[ids[i]] > r.s.order[ids[j]] })

	total := int64(len(ids))
	ids = window(ids, filter.Offset, filter.Limit)
	orders := make([]models.Order, 0, len(ids))
	for _, id := range ids {
		o := r.s.orders[id]
		o.Items = r.s.itemsOf(id)
		orders = append(orders, o)
	}
	return orders, total, nil
}

func (r *memoryOrders) UpdateStatus(_ context.Context, id uuid.UUID, status models.OrderStatus) error {
	defer r.lock()()
	o, ok := r.s.orders[id]
	if !ok {
		return ErrNotFound
	}
	o.Status = status
	o.UpdatedAt = time.Now().UTC()
	r.s.orders[id] = o
	return nil
}

func (r *memoryOrders) Delete(_ context.Context, id uuid.UUID) error {
	defer r.lock()()
	if _, ok := r.s.orders[id]; !ok {
		return ErrNotFound
	}
	for itemID, item := range r.s.items {
		if item.OrderID == id {
			delete(r.s.items, itemID)
		}
	}
	delete(r.s.orders, id)
	return nil
}

func (r *memoryOrders) Sales(_ context.Context, from, to time.Time) (SalesSummary, error) {
	defer r.rlock()()
	summary := SalesSummary{Revenue: decimal.Zero}
	for _, o := range r.s.orders {
		if !createdIn(o.CreatedAt, from, to) {
			continue
		}
		summary.Orders++
		if o.Status == models.OrderStatusPending {
			summary.PendingOrders++
		}
		if o.PaymentStatus == models.PaymentStatusPaid {
			summary.PaidOrders++
			summary.Revenue = summary.Revenue.Add(o.TotalAmount)
		}
	}
	return summary, nil
}

// Callers hold s.mu.
func (s *memoryState) itemsOf(orderID uuid.UUID) []models.OrderItem {
	ids := make([]uuid.UUID, 0)
	for id, item := range s.items {
		if item.OrderID == orderID {
			ids = append(ids, id)
		}
	}
	s.sortByInsertion(ids)
	out := make([]models.OrderItem, 0, len(ids))
	for _, id := range ids {
		out = append(out, s.items[id])
	}
	return out
}
