package service

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"time"

	"ecommerce-api/internal/models"
	"ecommerce-api/internal/provider"
	"ecommerce-api/internal/redisclient"
	"ecommerce-api/internal/store"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type fakeUserStore struct {
	mu    sync.Mutex
	users map[string]*models.User
}

func newFakeUserStore(users ...*models.User) *fakeUserStore {
	f := &fakeUserStore{users: map[string]*models.User{}}
	for _, u := range users {
		f.users[u.Email] = f.copyOf(u)
	}
	return f
}

func (f *fakeUserStore) copyOf(u *models.User) *models.User {
	c := *u
	return &c
}

func (f *fakeUserStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[email]
	if !ok {
		return nil, store.ErrNotFound
	}
	return f.copyOf(u), nil
}

func (f *fakeUserStore) GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.ID == id {
			return f.copyOf(u), nil
		}
	}
	return nil, store.ErrNotFound
}

func (f *fakeUserStore) UpsertUnverifiedUser(ctx context.Context, reg store.PendingRegistration) (uuid.UUID, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[reg.Email]
	if !ok {
		u = &models.User{ID: uuid.New(), Email: reg.Email, Role: models.RoleUser, CreatedAt: reg.SentAt}
		f.users[reg.Email] = u
	} else if u.IsVerified || u.IsBlocked {
		return uuid.Nil, false, nil
	}
	otp, expiry, sent := reg.OTPHash, reg.OTPExpiry, reg.SentAt
	u.Name = reg.Name
	u.Password = reg.PasswordHash
	u.OTP = &otp
	u.OTPExpiry = &expiry
	u.OTPLastSent = &sent
	u.OTPAttempts = 0
	return u.ID, true, nil
}

func (f *fakeUserStore) UpdateUserSecurity(ctx context.Context, email string, fn func(u *models.User) bool) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[email]
	if !ok {
		return nil, store.ErrNotFound
	}
	c := f.copyOf(u)
	if fn(c) {
		f.users[email] = f.copyOf(c)
	}
	return c, nil
}

func (f *fakeUserStore) SetResetToken(ctx context.Context, userID uuid.UUID, tokenHash *string, expire *time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.ID == userID {
			u.ResetPasswordToken = tokenHash
			u.ResetPasswordExpire = expire
			return nil
		}
	}
	return store.ErrNotFound
}

func (f *fakeUserStore) GetUserByResetToken(ctx context.Context, tokenHash string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.ResetPasswordToken != nil && *u.ResetPasswordToken == tokenHash &&
			u.ResetPasswordExpire != nil && u.ResetPasswordExpire.After(time.Now()) {
			return f.copyOf(u), nil
		}
	}
	return nil, store.ErrNotFound
}

func (f *fakeUserStore) ResetPassword(ctx context.Context, userID uuid.UUID, passwordHash string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.ID == userID {
			u.Password = passwordHash
			u.ResetPasswordToken = nil
			u.ResetPasswordExpire = nil
			return f.copyOf(u), nil
		}
	}
	return nil, store.ErrNotFound
}

func (f *fakeUserStore) UpdatePassword(ctx context.Context, userID uuid.UUID, passwordHash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.ID == userID {
			u.Password = passwordHash
			return nil
		}
	}
	return store.ErrNotFound
}

func (f *fakeUserStore) UpdateProfile(ctx context.Context, userID uuid.UUID, name, email string, avatar *models.Image) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var current *models.User
	for _, u := range f.users {
		if u.Email == email && u.ID != userID {
			return nil, store.ErrDuplicate
		}
		if u.ID == userID {
			current = u
		}
	}
	if current == nil {
		return nil, store.ErrNotFound
	}
	next := f.copyOf(current)
	next.Name, next.Email = name, email
	if avatar != nil {
		a := *avatar
		next.Avatar = &a
	}
	delete(f.users, current.Email)
	f.users[email] = next
	return f.copyOf(next), nil
}

type fakePublisher struct {
	mu       sync.Mutex
	err      error
	placed   []*models.OrderPlacedEvent
	paid     []*models.OrderPaidEvent
	emails   []*models.EmailRequestedEvent
	emailErr error
}

func (f *fakePublisher) PublishOrderPlaced(ctx context.Context, event *models.OrderPlacedEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.placed = append(f.placed, event)
	return f.err
}

func (f *fakePublisher) PublishOrderPaid(ctx context.Context, event *models.OrderPaidEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.paid = append(f.paid, event)
	return f.err
}

func (f *fakePublisher) PublishEmailRequested(ctx context.Context, event *models.EmailRequestedEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.emailErr != nil {
		return f.emailErr
	}
	f.emails = append(f.emails, event)
	return nil
}

type fakeImages struct {
	uploads   []string
	destroyed []string
	err       error
}

func (f *fakeImages) Upload(ctx context.Context, file io.Reader, folder string, width int) (models.Image, error) {
	if f.err != nil {
		return models.Image{}, f.err
	}
	id := folder + "/" + uuid.NewString()
	f.uploads = append(f.uploads, id)
	return models.Image{PublicID: id, URL: "https://img.example.com/" + id}, nil
}

func (f *fakeImages) Destroy(ctx context.Context, publicID string) error {
	f.destroyed = append(f.destroyed, publicID)
	return nil
}

// fakeOrderStore stages every write of a transaction and keeps it only on commit
type fakeOrderStore struct {
	products map[uuid.UUID]store.LockedProduct
	orders   map[uuid.UUID]*models.OrderDetails
	payments []models.Payment
}

func newFakeOrderStore(products ...store.LockedProduct) *fakeOrderStore {
	f := &fakeOrderStore{
		products: map[uuid.UUID]store.LockedProduct{},
		orders:   map[uuid.UUID]*models.OrderDetails{},
	}
	for _, p := range products {
		f.products[p.ID] = p
	}
	return f
}

type fakeOrderTx struct {
	parent   *fakeOrderStore
	order    *models.OrderDetails
	payments []models.Payment
}

func (t *fakeOrderTx) LockProducts(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]store.LockedProduct, error) {
	out := map[uuid.UUID]store.LockedProduct{}
	for _, id := range ids {
		if p, ok := t.parent.products[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}

func (t *fakeOrderTx) InsertOrder(ctx context.Context, order *models.Order) error {
	order.ID = uuid.New()
	order.OrderStatus = models.OrderStatusProcessing
	order.CreatedAt = time.Now()
	t.order = &models.OrderDetails{Order: *order}
	return nil
}

func (t *fakeOrderTx) InsertOrderItems(ctx context.Context, items []models.OrderItem) error {
	t.order.Items = append(t.order.Items, items...)
	return nil
}

func (t *fakeOrderTx) InsertShippingInfo(ctx context.Context, info models.ShippingInfo) error {
	t.order.ShippingInfo = &info
	return nil
}

func (t *fakeOrderTx) InsertPayment(ctx context.Context, payment *models.Payment) error {
	payment.ID = uuid.New()
	t.payments = append(t.payments, *payment)
	return nil
}

func (f *fakeOrderStore) InOrderTx(ctx context.Context, fn func(tx store.OrderTx) error) error {
	tx := &fakeOrderTx{parent: f}
	if err := fn(tx); err != nil {
		return err
	}
	if tx.order != nil {
		f.orders[tx.order.ID] = tx.order
	}
	f.payments = append(f.payments, tx.payments...)
	return nil
}

func (f *fakeOrderStore) GetOrderByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	o, ok := f.orders[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	order := o.Order
	return &order, nil
}

func (f *fakeOrderStore) GetOrderDetails(ctx context.Context, id uuid.UUID) (*models.OrderDetails, error) {
	o, ok := f.orders[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return o, nil
}

func (f *fakeOrderStore) ListOrderDetails(ctx context.Context, buyerID *uuid.UUID) ([]models.OrderDetails, error) {
	out := []models.OrderDetails{}
	for _, o := range f.orders {
		if buyerID == nil || o.BuyerID == *buyerID {
			out = append(out, *o)
		}
	}
	return out, nil
}

func (f *fakeOrderStore) UpdateOrderStatus(ctx context.Context, id uuid.UUID, from, to models.OrderStatus) (*models.Order, error) {
	o, ok := f.orders[id]
	if !ok || o.OrderStatus != from {
		return nil, store.ErrNotFound
	}
	o.OrderStatus = to
	order := o.Order
	return &order, nil
}

func (f *fakeOrderStore) DeleteOrder(ctx context.Context, id uuid.UUID) error {
	if _, ok := f.orders[id]; !ok {
		return store.ErrNotFound
	}
	delete(f.orders, id)
	return nil
}

type fakeGateway struct {
	err       error
	amounts   []int64
	deadlines []time.Duration
}

func (f *fakeGateway) CreatePaymentIntent(ctx context.Context, amount int64, orderID string) (*provider.PaymentIntent, error) {
	if deadline, ok := ctx.Deadline(); ok {
		f.deadlines = append(f.deadlines, time.Until(deadline))
	}
	if f.err != nil {
		return nil, f.err
	}
	f.amounts = append(f.amounts, amount)
	return &provider.PaymentIntent{ID: "pi_" + orderID, ClientSecret: "pi_" + orderID + "_secret"}, nil
}

type fakePaymentState struct {
	processed map[string]bool
	payments  map[string]*models.Payment
	paidAt    map[uuid.UUID]time.Time
	items     map[uuid.UUID][]models.OrderItem
	stock     map[uuid.UUID]int
}

func (s fakePaymentState) clone() fakePaymentState {
	c := fakePaymentState{
		processed: map[string]bool{},
		payments:  map[string]*models.Payment{},
		paidAt:    map[uuid.UUID]time.Time{},
		items:     s.items,
		stock:     map[uuid.UUID]int{},
	}
	for k, v := range s.processed {
		c.processed[k] = v
	}
	for k, v := range s.payments {
		p := *v
		c.payments[k] = &p
	}
	for k, v := range s.paidAt {
		c.paidAt[k] = v
	}
	for k, v := range s.stock {
		c.stock[k] = v
	}
	return c
}

type fakePaymentStore struct {
	state fakePaymentState
}

func (f *fakePaymentStore) InPaymentTx(ctx context.Context, fn func(tx store.PaymentTx) error) error {
	staged := f.state.clone()
	if err := fn(&fakePaymentTx{state: staged}); err != nil {
		return err
	}
	f.state = staged
	return nil
}

type fakePaymentTx struct {
	state fakePaymentState
}

func (t *fakePaymentTx) MarkEventProcessed(ctx context.Context, eventID, eventType string) (bool, error) {
	if t.state.processed[eventID] {
		return false, nil
	}
	t.state.processed[eventID] = true
	return true, nil
}

func (t *fakePaymentTx) MarkPaymentPaid(ctx context.Context, intentID, clientSecret string) (*models.Payment, bool, error) {
	for _, p := range t.state.payments {
		if p.PaymentStatus != models.PaymentStatusPending {
			continue
		}
		if p.PaymentIntentID == intentID || (clientSecret != "" && p.ClientSecret == clientSecret) {
			p.PaymentStatus = models.PaymentStatusPaid
			c := *p
			return &c, true, nil
		}
	}
	return nil, false, nil
}

func (t *fakePaymentTx) StampOrderPaid(ctx context.Context, orderID uuid.UUID) error {
	t.state.paidAt[orderID] = time.Now()
	return nil
}

func (t *fakePaymentTx) OrderItems(ctx context.Context, orderID uuid.UUID) ([]models.OrderItem, error) {
	return t.state.items[orderID], nil
}

func (t *fakePaymentTx) DecrementStock(ctx context.Context, productID uuid.UUID, quantity int) (bool, error) {
	if t.state.stock[productID] < quantity {
		return false, nil
	}
	t.state.stock[productID] -= quantity
	return true, nil
}

type fakeVerifier struct {
	event *provider.WebhookEvent
	err   error
}

func (f *fakeVerifier) VerifyWebhook(payload []byte, signature string) (*provider.WebhookEvent, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.event, nil
}

type fakeLocker struct {
	mu    sync.Mutex
	held  map[string]bool
	names map[*redisclient.Lock]string
}

func newFakeLocker() *fakeLocker {
	return &fakeLocker{held: map[string]bool{}, names: map[*redisclient.Lock]string{}}
}

func (f *fakeLocker) AcquireLock(ctx context.Context, name string, ttl time.Duration) (*redisclient.Lock, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.held[name] {
		return nil, nil
	}
	f.held[name] = true
	lock := &redisclient.Lock{}
	f.names[lock] = name
	return lock, nil
}

func (f *fakeLocker) ReleaseLock(ctx context.Context, lock *redisclient.Lock) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.held, f.names[lock])
	delete(f.names, lock)
	return nil
}

type fakeCatalog struct {
	products  map[uuid.UUID]*models.Product
	purchased map[uuid.UUID]bool
	reviews   map[uuid.UUID]map[uuid.UUID]models.Review
	matches   []models.Product
	patterns  []string
	created   []store.ProductInput
	listed    store.ProductFilter
	offset    int
}

func newFakeCatalog(products ...*models.Product) *fakeCatalog {
	f := &fakeCatalog{
		products:  map[uuid.UUID]*models.Product{},
		purchased: map[uuid.UUID]bool{},
		reviews:   map[uuid.UUID]map[uuid.UUID]models.Review{},
	}
	for _, p := range products {
		f.products[p.ID] = p
	}
	return f
}

func (f *fakeCatalog) CreateProduct(ctx context.Context, in store.ProductInput) (*models.Product, error) {
	f.created = append(f.created, in)
	p := &models.Product{ID: uuid.New(), Name: in.Name, Description: in.Description, Price: in.Price,
		Category: in.Category, Stock: in.Stock, Images: in.Images, CreatedBy: in.CreatedBy}
	f.products[p.ID] = p
	return p, nil
}

func (f *fakeCatalog) GetProduct(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	p, ok := f.products[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return p, nil
}

func (f *fakeCatalog) UpdateProduct(ctx context.Context, id uuid.UUID, in store.ProductInput) (*models.Product, error) {
	p, ok := f.products[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	p.Name, p.Description, p.Price, p.Category, p.Stock = in.Name, in.Description, in.Price, in.Category, in.Stock
	return p, nil
}

func (f *fakeCatalog) DeleteProduct(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	p, ok := f.products[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	delete(f.products, id)
	return p, nil
}

func (f *fakeCatalog) ListProducts(ctx context.Context, filter store.ProductFilter, limit, offset int) ([]models.ProductListing, int64, error) {
	f.listed, f.offset = filter, offset
	out := []models.ProductListing{}
	for _, p := range f.products {
		out = append(out, models.ProductListing{Product: *p})
	}
	return out, int64(len(out)), nil
}

func (f *fakeCatalog) NewProducts(ctx context.Context, limit int) ([]models.ProductListing, error) {
	return []models.ProductListing{}, nil
}

func (f *fakeCatalog) TopRatedProducts(ctx context.Context, limit int) ([]models.ProductListing, error) {
	return []models.ProductListing{}, nil
}

func (f *fakeCatalog) GetProductReviews(ctx context.Context, productID uuid.UUID) ([]models.ReviewView, error) {
	out := []models.ReviewView{}
	for _, r := range f.reviews[productID] {
		out = append(out, models.ReviewView{ReviewID: r.ID, Rating: r.Rating, Comment: r.Comment,
			Reviewer: models.Reviewer{ID: r.UserID}})
	}
	return out, nil
}

func (f *fakeCatalog) SearchProductsByKeywords(ctx context.Context, patterns []string, limit int) ([]models.Product, error) {
	f.patterns = patterns
	return f.matches, nil
}

func (f *fakeCatalog) HasPaidPurchase(ctx context.Context, userID, productID uuid.UUID) (bool, error) {
	return f.purchased[userID], nil
}

func (f *fakeCatalog) recompute(productID uuid.UUID) *models.Product {
	p := f.products[productID]
	sum, n := 0, 0
	for _, r := range f.reviews[productID] {
		sum += r.Rating
		n++
	}
	p.Ratings = decimal.Zero
	if n > 0 {
		p.Ratings = decimal.NewFromInt(int64(sum)).DivRound(decimal.NewFromInt(int64(n)), 2)
	}
	return p
}

func (f *fakeCatalog) UpsertReview(ctx context.Context, productID, userID uuid.UUID, rating int, comment string) (*models.Review, *models.Product, error) {
	if _, ok := f.products[productID]; !ok {
		return nil, nil, store.ErrNotFound
	}
	if f.reviews[productID] == nil {
		f.reviews[productID] = map[uuid.UUID]models.Review{}
	}
	r := models.Review{ID: uuid.New(), ProductID: productID, UserID: userID, Rating: rating, Comment: comment}
	f.reviews[productID][userID] = r
	return &r, f.recompute(productID), nil
}

func (f *fakeCatalog) DeleteReview(ctx context.Context, productID, userID uuid.UUID) (*models.Product, error) {
	if _, ok := f.reviews[productID][userID]; !ok {
		return nil, store.ErrNotFound
	}
	delete(f.reviews[productID], userID)
	return f.recompute(productID), nil
}

type fakeRanker struct {
	err   error
	calls int
}

func (f *fakeRanker) Rank(ctx context.Context, prompt string, products []models.Product) ([]models.Product, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	out := make([]models.Product, 0, len(products))
	for i := len(products) - 1; i >= 0; i-- {
		out = append(out, products[i])
	}
	return out, nil
}

type fakeCache struct {
	values map[string][]byte
}

func newFakeCache() *fakeCache {
	return &fakeCache{values: map[string][]byte{}}
}

func (f *fakeCache) GetJSON(ctx context.Context, key string, v interface{}) error {
	b, ok := f.values[key]
	if !ok {
		return redisclient.ErrCacheMiss
	}
	return json.Unmarshal(b, v)
}

func (f *fakeCache) SetJSON(ctx context.Context, key string, v interface{}, ttl time.Duration) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	f.values[key] = b
	return nil
}

type fakeAdminStore struct {
	revenue map[time.Time]decimal.Decimal
	total   decimal.Decimal
	users   map[uuid.UUID]*models.User
	since   []time.Time
}

func (f *fakeAdminStore) RevenueBetween(ctx context.Context, from, to time.Time) (decimal.Decimal, error) {
	return f.revenue[from], nil
}

func (f *fakeAdminStore) TotalRevenue(ctx context.Context) (decimal.Decimal, error) {
	return f.total, nil
}

func (f *fakeAdminStore) CountUsers(ctx context.Context, role string, since time.Time) (int64, error) {
	f.since = append(f.since, since)
	var n int64
	for _, u := range f.users {
		if u.Role == role && !u.CreatedAt.Before(since) {
			n++
		}
	}
	return n, nil
}

func (f *fakeAdminStore) OrderStatusCounts(ctx context.Context) (map[models.OrderStatus]int64, error) {
	counts := map[models.OrderStatus]int64{}
	for _, st := range models.OrderStatuses {
		counts[st] = 0
	}
	return counts, nil
}

func (f *fakeAdminStore) MonthlySales(ctx context.Context) ([]models.MonthlySales, error) {
	return []models.MonthlySales{}, nil
}

func (f *fakeAdminStore) TopSellingProducts(ctx context.Context, limit int) ([]models.TopSeller, error) {
	return []models.TopSeller{}, nil
}

func (f *fakeAdminStore) LowStockProducts(ctx context.Context, threshold int) ([]models.LowStock, error) {
	return []models.LowStock{}, nil
}

func (f *fakeAdminStore) ListUsers(ctx context.Context, role string, limit, offset int) ([]models.User, int64, error) {
	out := []models.User{}
	for _, u := range f.users {
		if u.Role == role {
			out = append(out, *u)
		}
	}
	return out, int64(len(out)), nil
}

func (f *fakeAdminStore) DeleteUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	u, ok := f.users[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	delete(f.users, id)
	return u, nil
}

type fakeMailer struct {
	sent     []string
	subjects []string
	bodies   []string
	err      error
}

func (f *fakeMailer) Send(ctx context.Context, to, subject, html string) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, to)
	f.subjects = append(f.subjects, subject)
	f.bodies = append(f.bodies, html)
	return nil
}

type fakeSecrets struct {
	mu     sync.Mutex
	values map[string]string
	err    error
}

func newFakeSecrets() *fakeSecrets {
	return &fakeSecrets{values: map[string]string{}}
}

func (f *fakeSecrets) PutSecret(ctx context.Context, ref, secret string, ttl time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.values[ref] = secret
	return nil
}

func (f *fakeSecrets) GetSecret(ctx context.Context, ref string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.values[ref]
	if !ok {
		return "", redisclient.ErrSecretGone
	}
	return v, nil
}

func (f *fakeSecrets) DeleteSecret(ctx context.Context, ref string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.values, ref)
	return nil
}

var errBoom = errors.New("boom")
