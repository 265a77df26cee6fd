package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"storefront-backend/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// OrderRepository owns reads and writes on orders. Create surfaces
// ErrDuplicateKey when the unique partial index on the transaction field
// rejects a second materialization for the same transaction.
type OrderRepository interface {
	Create(ctx context.Context, order *models.Order) error
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.Order, error)
	FindByOrderNumber(ctx context.Context, orderNumber string) (*models.Order, error)
	FindByTransactionID(ctx context.Context, txID primitive.ObjectID) (*models.Order, error)
	FindForUser(ctx context.Context, userID primitive.ObjectID, email string) ([]models.Order, error)
	SetPaymentOutcome(ctx context.Context, id primitive.ObjectID, paymentStatus models.PaymentStatus, orderStatus models.OrderStatus) error
	UpdateFulfilment(ctx context.Context, id primitive.ObjectID, updates bson.M) error
	RelinkGuestOrders(ctx context.Context, email string, userID primitive.ObjectID) (int64, error)
	List(ctx context.Context, status models.OrderStatus, page, limit int) ([]models.Order, int64, error)
}

type mongoOrderRepo struct {
	collection *mongo.Collection
}

// NewOrderRepository returns a mongo-backed OrderRepository.
func NewOrderRepository(db *mongo.Database) OrderRepository {
	return &mongoOrderRepo{collection: db.Collection("orders")}
}

func (r *mongoOrderRepo) Create(ctx context.Context, order *models.Order) error {
	now := time.Now().UTC()
	if order.CreatedAt.IsZero() {
		order.CreatedAt = now
	}
	order.UpdatedAt = now
	res, err := r.collection.InsertOne(ctx, order)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrDuplicateKey
		}
		return err
	}
	if oid, ok := res.InsertedID.(primitive.ObjectID); ok {
		order.ID = oid
	}
	return nil
}

func (r *mongoOrderRepo) FindByID(ctx context.Context, id primitive.ObjectID) (*models.Order, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

func (r *mongoOrderRepo) FindByOrderNumber(ctx context.Context, orderNumber string) (*models.Order, error) {
	return r.findOne(ctx, bson.M{"order_number": strings.ToUpper(orderNumber)})
}

func (r *mongoOrderRepo) FindByTransactionID(ctx context.Context, txID primitive.ObjectID) (*models.Order, error) {
	return r.findOne(ctx, bson.M{"transaction": txID})
}

func (r *mongoOrderRepo) findOne(ctx context.Context, filter bson.M) (*models.Order, error) {
	var order models.Order
	err := r.collection.FindOne(ctx, filter).Decode(&order)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// FindForUser returns orders owned by the user plus guest orders placed
// with the same email.
func (r *mongoOrderRepo) FindForUser(ctx context.Context, userID primitive.ObjectID, email string) ([]models.Order, error) {
	filter := bson.M{"$or": bson.A{
		bson.M{"customer": userID},
		bson.M{"is_guest_order": true, "customer_info.email": strings.ToLower(email)},
	}}

	cursor, err := r.collection.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var orders []models.Order
	if err := cursor.All(ctx, &orders); err != nil {
		return nil, err
	}
	return orders, nil
}

func (r *mongoOrderRepo) SetPaymentOutcome(ctx context.Context, id primitive.ObjectID, paymentStatus models.PaymentStatus, orderStatus models.OrderStatus) error {
	updates := bson.M{
		"payment_status": paymentStatus,
		"updated_at":     time.Now().UTC(),
	}
	if orderStatus != "" {
		updates["status"] = orderStatus
	}
	_, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": updates})
	return err
}

func (r *mongoOrderRepo) UpdateFulfilment(ctx context.Context, id primitive.ObjectID, updates bson.M) error {
	updates["updated_at"] = time.Now().UTC()
	res, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": updates})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// RelinkGuestOrders attaches all unowned guest orders for an email to a
// newly created account. Returns the number of orders relinked.
func (r *mongoOrderRepo) RelinkGuestOrders(ctx context.Context, email string, userID primitive.ObjectID) (int64, error) {
	res, err := r.collection.UpdateMany(ctx,
		bson.M{
			"customer_info.email": strings.ToLower(email),
			"is_guest_order":      true,
			"customer":            nil,
		},
		bson.M{"$set": bson.M{
			"customer":        userID,
			"is_guest_order":  false,
			"account_created": true,
			"updated_at":      time.Now().UTC(),
		}},
	)
	if err != nil {
		return 0, err
	}
	return res.ModifiedCount, nil
}

func (r *mongoOrderRepo) List(ctx context.Context, status models.OrderStatus, page, limit int) ([]models.Order, int64, error) {
	filter := bson.M{}
	if status != "" {
		filter["status"] = status
	}

	total, err := r.collection.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, err
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetSkip(int64((page - 1) * limit)).
		SetLimit(int64(limit))

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, err
	}
	defer cursor.Close(ctx)

	var orders []models.Order
	if err := cursor.All(ctx, &orders); err != nil {
		return nil, 0, err
	}
	return orders, total, nil
}
