package services

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"storefront-backend/models"
	"storefront-backend/repository"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ---- In-memory transaction repository ----

// memTransactionRepo mirrors the conditional-write semantics of the mongo
// implementation: each guard is checked and applied under one lock so
// concurrent callers race exactly like they would against the database.
type memTransactionRepo struct {
	mu  sync.Mutex
	txs map[primitive.ObjectID]*models.Transaction
}

func newMemTransactionRepo() *memTransactionRepo {
	return &memTransactionRepo{txs: make(map[primitive.ObjectID]*models.Transaction)}
}

func (r *memTransactionRepo) Create(ctx context.Context, tx *models.Transaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.txs {
		if existing.Reference == tx.Reference {
			return repository.ErrDuplicateKey
		}
	}
	if tx.ID.IsZero() {
		tx.ID = primitive.NewObjectID()
	}
	now := time.Now().UTC()
	tx.CreatedAt = now
	tx.UpdatedAt = now
	clone := *tx
	r.txs[tx.ID] = &clone
	return nil
}

func (r *memTransactionRepo) FindByReference(ctx context.Context, reference string) (*models.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, tx := range r.txs {
		if tx.Reference == reference {
			clone := *tx
			return &clone, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *memTransactionRepo) FindByID(ctx context.Context, id primitive.ObjectID) (*models.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	tx, ok := r.txs[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	clone := *tx
	return &clone, nil
}

func (r *memTransactionRepo) SetGatewayReference(ctx context.Context, id primitive.ObjectID, gatewayRef string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	tx, ok := r.txs[id]
	if !ok {
		return repository.ErrNotFound
	}
	tx.GatewayReference = gatewayRef
	return nil
}

func (r *memTransactionRepo) ClaimSuccess(ctx context.Context, id, orderID primitive.ObjectID, paidAt time.Time, gatewayPayload string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	tx, ok := r.txs[id]
	if !ok || tx.OrderID != nil || tx.Status != models.TransactionPending {
		return false, nil
	}
	tx.OrderID = &orderID
	tx.Status = models.TransactionSuccess
	tx.PaidAt = &paidAt
	tx.GatewayResponse = gatewayPayload
	tx.UpdatedAt = time.Now().UTC()
	return true, nil
}

func (r *memTransactionRepo) MarkSuccess(ctx context.Context, id primitive.ObjectID, paidAt time.Time, gatewayPayload string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	tx, ok := r.txs[id]
	if !ok || tx.Status != models.TransactionPending {
		return false, nil
	}
	tx.Status = models.TransactionSuccess
	tx.PaidAt = &paidAt
	tx.GatewayResponse = gatewayPayload
	return true, nil
}

func (r *memTransactionRepo) MarkFailed(ctx context.Context, id primitive.ObjectID, gatewayPayload string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	tx, ok := r.txs[id]
	if !ok || tx.Status != models.TransactionPending {
		return false, nil
	}
	tx.Status = models.TransactionFailed
	tx.GatewayResponse = gatewayPayload
	return true, nil
}

func (r *memTransactionRepo) List(ctx context.Context, status models.TransactionStatus, page, limit int) ([]models.Transaction, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Transaction
	for _, tx := range r.txs {
		if status == "" || tx.Status == status {
			out = append(out, *tx)
		}
	}
	return out, int64(len(out)), nil
}

// ---- In-memory order repository ----

// memOrderRepo enforces the unique constraint on the transaction link the
// same way the partial index does.
type memOrderRepo struct {
	mu     sync.Mutex
	orders map[primitive.ObjectID]*models.Order
}

func newMemOrderRepo() *memOrderRepo {
	return &memOrderRepo{orders: make(map[primitive.ObjectID]*models.Order)}
}

func (r *memOrderRepo) Create(ctx context.Context, order *models.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.orders {
		if existing.OrderNumber == order.OrderNumber {
			return repository.ErrDuplicateKey
		}
		if order.TransactionID != nil && existing.TransactionID != nil &&
			*existing.TransactionID == *order.TransactionID {
			return repository.ErrDuplicateKey
		}
	}
	if order.ID.IsZero() {
		order.ID = primitive.NewObjectID()
	}
	if order.CreatedAt.IsZero() {
		order.CreatedAt = time.Now().UTC()
	}
	clone := *order
	r.orders[order.ID] = &clone
	return nil
}

func (r *memOrderRepo) FindByID(ctx context.Context, id primitive.ObjectID) (*models.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	order, ok := r.orders[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	clone := *order
	return &clone, nil
}

func (r *memOrderRepo) FindByOrderNumber(ctx context.Context, orderNumber string) (*models.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	upper := strings.ToUpper(orderNumber)
	for _, order := range r.orders {
		if order.OrderNumber == upper {
			clone := *order
			return &clone, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *memOrderRepo) FindByTransactionID(ctx context.Context, txID primitive.ObjectID) (*models.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, order := range r.orders {
		if order.TransactionID != nil && *order.TransactionID == txID {
			clone := *order
			return &clone, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *memOrderRepo) FindForUser(ctx context.Context, userID primitive.ObjectID, email string) ([]models.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	lower := strings.ToLower(email)
	var out []models.Order
	for _, order := range r.orders {
		if order.Customer != nil && *order.Customer == userID {
			out = append(out, *order)
		} else if order.IsGuestOrder && strings.ToLower(order.CustomerInfo.Email) == lower {
			out = append(out, *order)
		}
	}
	return out, nil
}

func (r *memOrderRepo) SetPaymentOutcome(ctx context.Context, id primitive.ObjectID, paymentStatus models.PaymentStatus, orderStatus models.OrderStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	order, ok := r.orders[id]
	if !ok {
		return repository.ErrNotFound
	}
	order.PaymentStatus = paymentStatus
	if orderStatus != "" {
		order.Status = orderStatus
	}
	return nil
}

func (r *memOrderRepo) UpdateFulfilment(ctx context.Context, id primitive.ObjectID, updates bson.M) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	order, ok := r.orders[id]
	if !ok {
		return repository.ErrNotFound
	}
	if v, ok := updates["status"]; ok {
		order.Status = v.(models.OrderStatus)
	}
	if v, ok := updates["delivery_status"]; ok {
		order.DeliveryStatus = v.(models.DeliveryStatus)
	}
	if v, ok := updates["tracking_number"]; ok {
		order.TrackingNumber = v.(string)
	}
	if v, ok := updates["estimated_delivery"]; ok {
		t := v.(time.Time)
		order.EstimatedDelivery = &t
	}
	return nil
}

func (r *memOrderRepo) RelinkGuestOrders(ctx context.Context, email string, userID primitive.ObjectID) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	lower := strings.ToLower(email)
	var count int64
	for _, order := range r.orders {
		if order.IsGuestOrder && order.Customer == nil && strings.ToLower(order.CustomerInfo.Email) == lower {
			uid := userID
			order.Customer = &uid
			order.IsGuestOrder = false
			order.AccountCreated = true
			count++
		}
	}
	return count, nil
}

func (r *memOrderRepo) List(ctx context.Context, status models.OrderStatus, page, limit int) ([]models.Order, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Order
	for _, order := range r.orders {
		if status == "" || order.Status == status {
			out = append(out, *order)
		}
	}
	return out, int64(len(out)), nil
}

func (r *memOrderRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.orders)
}

// ---- In-memory user repository ----

type memUserRepo struct {
	mu    sync.Mutex
	users map[primitive.ObjectID]*models.User
}

func newMemUserRepo() *memUserRepo {
	return &memUserRepo{users: make(map[primitive.ObjectID]*models.User)}
}

func (r *memUserRepo) Create(ctx context.Context, user *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	user.Email = strings.ToLower(user.Email)
	for _, existing := range r.users {
		if existing.Email == user.Email {
			return repository.ErrDuplicateKey
		}
	}
	if user.ID.IsZero() {
		user.ID = primitive.NewObjectID()
	}
	if user.Role == "" {
		user.Role = models.RoleUser
	}
	user.IsActive = true
	user.CreatedAt = time.Now().UTC()
	clone := *user
	r.users[user.ID] = &clone
	return nil
}

func (r *memUserRepo) FindByID(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	clone := *user
	return &clone, nil
}

func (r *memUserRepo) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	lower := strings.ToLower(email)
	for _, user := range r.users {
		if user.Email == lower {
			clone := *user
			return &clone, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *memUserRepo) Update(ctx context.Context, user *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[user.ID]; !ok {
		return repository.ErrNotFound
	}
	clone := *user
	r.users[user.ID] = &clone
	return nil
}

func (r *memUserRepo) IncrementLoginCount(ctx context.Context, id primitive.ObjectID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if user, ok := r.users[id]; ok {
		user.LoginCount++
	}
	return nil
}

func (r *memUserRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.users)
}

// ---- In-memory product repository ----

type memProductRepo struct {
	mu       sync.Mutex
	products map[primitive.ObjectID]*models.Product
}

func newMemProductRepo() *memProductRepo {
	return &memProductRepo{products: make(map[primitive.ObjectID]*models.Product)}
}

func (r *memProductRepo) seed(stock int) primitive.ObjectID {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := primitive.NewObjectID()
	r.products[id] = &models.Product{
		ID:         id,
		Name:       "Linen Shirt",
		Slug:       "linen-shirt",
		Price:      15000,
		Currency:   "NGN",
		InStock:    stock > 0,
		StockCount: stock,
	}
	return id
}

func (r *memProductRepo) stockOf(id primitive.ObjectID) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.products[id].StockCount
}

func (r *memProductRepo) Create(ctx context.Context, product *models.Product) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.products {
		if existing.Slug == product.Slug {
			return repository.ErrDuplicateKey
		}
	}
	if product.ID.IsZero() {
		product.ID = primitive.NewObjectID()
	}
	clone := *product
	r.products[product.ID] = &clone
	return nil
}

func (r *memProductRepo) FindByID(ctx context.Context, id primitive.ObjectID) (*models.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	product, ok := r.products[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	clone := *product
	return &clone, nil
}

func (r *memProductRepo) List(ctx context.Context, page, limit int) ([]models.Product, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Product
	for _, product := range r.products {
		out = append(out, *product)
	}
	return out, int64(len(out)), nil
}

func (r *memProductRepo) Update(ctx context.Context, id primitive.ObjectID, updates bson.M) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.products[id]; !ok {
		return repository.ErrNotFound
	}
	return nil
}

func (r *memProductRepo) DecrementStock(ctx context.Context, id primitive.ObjectID, quantity int) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	product, ok := r.products[id]
	if !ok {
		return 0, repository.ErrNotFound
	}
	if product.StockCount < quantity {
		return 0, repository.ErrInsufficientStock
	}
	product.StockCount -= quantity
	return product.StockCount, nil
}

func (r *memProductRepo) SetInStock(ctx context.Context, id primitive.ObjectID, inStock bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	product, ok := r.products[id]
	if !ok {
		return repository.ErrNotFound
	}
	product.InStock = inStock
	return nil
}

// ---- Fake gateway ----

type fakeGateway struct {
	mu           sync.Mutex
	initErr      error
	verifyStatus string
	initCalls    int
	verifyCalls  int
}

func (g *fakeGateway) InitializePayment(ctx context.Context, req InitializePaymentRequest) (*InitializePaymentResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.initCalls++
	if g.initErr != nil {
		return nil, g.initErr
	}
	return &InitializePaymentResult{
		AuthorizationURL: "https://checkout.paystack.com/abc123",
		AccessCode:       "abc123",
		GatewayReference: req.Reference,
	}, nil
}

func (g *fakeGateway) VerifyPayment(ctx context.Context, reference string) (*ChargeResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.verifyCalls++
	status := g.verifyStatus
	if status == "" {
		status = "success"
	}
	raw, _ := json.Marshal(map[string]string{"status": status, "reference": reference})
	return &ChargeResult{Status: status, Reference: reference, Raw: raw}, nil
}

func (g *fakeGateway) VerifyWebhookSignature(rawBody []byte, signatureHeader string) bool {
	return signatureHeader == "valid"
}

// ---- Fake notifier ----

type fakeNotifier struct {
	mu            sync.Mutex
	confirmations []OrderConfirmationData
	statusUpdates []OrderStatusUpdateData
	otps          []string
}

func (n *fakeNotifier) SendOrderConfirmation(data OrderConfirmationData) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.confirmations = append(n.confirmations, data)
	return nil
}

func (n *fakeNotifier) SendOrderStatusUpdate(data OrderStatusUpdateData) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.statusUpdates = append(n.statusUpdates, data)
	return nil
}

func (n *fakeNotifier) SendPasswordResetOTP(email, firstName, otp string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.otps = append(n.otps, otp)
	return nil
}

func (n *fakeNotifier) confirmationCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.confirmations)
}

// ---- Fake event publishers ----

type fakeEventSink struct {
	mu            sync.Mutex
	paymentEvents []models.PaymentEvent
	orderEvents   []models.OrderEvent
}

func (s *fakeEventSink) SendPaymentEvent(ctx context.Context, event models.PaymentEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.paymentEvents = append(s.paymentEvents, event)
	return nil
}

func (s *fakeEventSink) PublishOrderEvent(ctx context.Context, eventType string, event models.OrderEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orderEvents = append(s.orderEvents, event)
	return nil
}

func (s *fakeEventSink) paymentEventTypes() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for _, e := range s.paymentEvents {
		out = append(out, e.Type)
	}
	return out
}
