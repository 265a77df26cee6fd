package repository

import (
	"context"
	"errors"
	"time"

	"storefront-backend/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ErrInsufficientStock is returned by DecrementStock when the requested
// quantity exceeds the current stock count.
var ErrInsufficientStock = errors.New("insufficient stock")

// ProductRepository owns reads and writes on catalog entries. Stock writes
// go exclusively through DecrementStock.
type ProductRepository interface {
	Create(ctx context.Context, product *models.Product) error
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.Product, error)
	List(ctx context.Context, page, limit int) ([]models.Product, int64, error)
	Update(ctx context.Context, id primitive.ObjectID, updates bson.M) error

	// DecrementStock atomically subtracts quantity, matching only while
	// stock_count >= quantity so the count can never go negative. Returns
	// the remaining stock on success.
	DecrementStock(ctx context.Context, id primitive.ObjectID, quantity int) (int, error)
	SetInStock(ctx context.Context, id primitive.ObjectID, inStock bool) error
}

type mongoProductRepo struct {
	collection *mongo.Collection
}

// NewProductRepository returns a mongo-backed ProductRepository.
func NewProductRepository(db *mongo.Database) ProductRepository {
	return &mongoProductRepo{collection: db.Collection("products")}
}

func (r *mongoProductRepo) Create(ctx context.Context, product *models.Product) error {
	now := time.Now().UTC()
	product.CreatedAt = now
	product.UpdatedAt = now
	res, err := r.collection.InsertOne(ctx, product)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrDuplicateKey
		}
		return err
	}
	if oid, ok := res.InsertedID.(primitive.ObjectID); ok {
		product.ID = oid
	}
	return nil
}

func (r *mongoProductRepo) FindByID(ctx context.Context, id primitive.ObjectID) (*models.Product, error) {
	var product models.Product
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&product)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &product, nil
}

func (r *mongoProductRepo) List(ctx context.Context, page, limit int) ([]models.Product, int64, error) {
	total, err := r.collection.CountDocuments(ctx, bson.M{})
	if err != nil {
		return nil, 0, err
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetSkip(int64((page - 1) * limit)).
		SetLimit(int64(limit))

	cursor, err := r.collection.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, 0, err
	}
	defer cursor.Close(ctx)

	var products []models.Product
	if err := cursor.All(ctx, &products); err != nil {
		return nil, 0, err
	}
	return products, total, nil
}

func (r *mongoProductRepo) Update(ctx context.Context, id primitive.ObjectID, updates bson.M) error {
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

func (r *mongoProductRepo) DecrementStock(ctx context.Context, id primitive.ObjectID, quantity int) (int, error) {
	var updated models.Product
	err := r.collection.FindOneAndUpdate(ctx,
		bson.M{"_id": id, "stock_count": bson.M{"$gte": quantity}},
		bson.M{
			"$inc": bson.M{"stock_count": -quantity},
			"$set": bson.M{"updated_at": time.Now().UTC()},
		},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&updated)

	if errors.Is(err, mongo.ErrNoDocuments) {
		// The filter missed: either the product is gone or stock is short.
		if _, findErr := r.FindByID(ctx, id); findErr != nil {
			return 0, findErr
		}
		return 0, ErrInsufficientStock
	}
	if err != nil {
		return 0, err
	}
	return updated.StockCount, nil
}

func (r *mongoProductRepo) SetInStock(ctx context.Context, id primitive.ObjectID, inStock bool) error {
	_, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{"in_stock": inStock, "updated_at": time.Now().UTC()}},
	)
	return err
}
