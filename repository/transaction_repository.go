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

// TransactionRepository owns reads and writes on payment transactions.
// The conditional writes (ClaimSuccess, MarkSuccess, MarkFailed) are the
// storage-level guards the confirmation workflow relies on: each is a
// single atomic update whose filter encodes the allowed prior state.
type TransactionRepository interface {
	Create(ctx context.Context, tx *models.Transaction) error
	FindByReference(ctx context.Context, reference string) (*models.Transaction, error)
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.Transaction, error)
	SetGatewayReference(ctx context.Context, id primitive.ObjectID, gatewayRef string) error

	// ClaimSuccess links an order and marks the transaction successful in
	// one conditional write. It matches only while the order link is unset
	// and the status is pending, so exactly one concurrent confirmation
	// can win it. Returns whether this call won the claim.
	ClaimSuccess(ctx context.Context, id, orderID primitive.ObjectID, paidAt time.Time, gatewayPayload string) (bool, error)

	// MarkSuccess is the pre-created-order variant: the order link already
	// exists, only the status flips. Conditional on status still pending.
	MarkSuccess(ctx context.Context, id primitive.ObjectID, paidAt time.Time, gatewayPayload string) (bool, error)

	// MarkFailed transitions pending -> failed; a no-op on terminal states.
	MarkFailed(ctx context.Context, id primitive.ObjectID, gatewayPayload string) (bool, error)

	List(ctx context.Context, status models.TransactionStatus, page, limit int) ([]models.Transaction, int64, error)
}

type mongoTransactionRepo struct {
	collection *mongo.Collection
}

// NewTransactionRepository returns a mongo-backed TransactionRepository.
func NewTransactionRepository(db *mongo.Database) TransactionRepository {
	return &mongoTransactionRepo{collection: db.Collection("transactions")}
}

func (r *mongoTransactionRepo) Create(ctx context.Context, tx *models.Transaction) error {
	now := time.Now().UTC()
	tx.CreatedAt = now
	tx.UpdatedAt = now
	res, err := r.collection.InsertOne(ctx, tx)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrDuplicateKey
		}
		return err
	}
	if oid, ok := res.InsertedID.(primitive.ObjectID); ok {
		tx.ID = oid
	}
	return nil
}

func (r *mongoTransactionRepo) FindByReference(ctx context.Context, reference string) (*models.Transaction, error) {
	var tx models.Transaction
	err := r.collection.FindOne(ctx, bson.M{"reference": reference}).Decode(&tx)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &tx, nil
}

func (r *mongoTransactionRepo) FindByID(ctx context.Context, id primitive.ObjectID) (*models.Transaction, error) {
	var tx models.Transaction
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&tx)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &tx, nil
}

func (r *mongoTransactionRepo) SetGatewayReference(ctx context.Context, id primitive.ObjectID, gatewayRef string) error {
	_, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{"gateway_reference": gatewayRef, "updated_at": time.Now().UTC()}},
	)
	return err
}

func (r *mongoTransactionRepo) ClaimSuccess(ctx context.Context, id, orderID primitive.ObjectID, paidAt time.Time, gatewayPayload string) (bool, error) {
	res, err := r.collection.UpdateOne(ctx,
		bson.M{
			"_id":    id,
			"order":  nil,
			"status": models.TransactionPending,
		},
		bson.M{"$set": bson.M{
			"order":            orderID,
			"status":           models.TransactionSuccess,
			"paid_at":          paidAt,
			"gateway_response": gatewayPayload,
			"updated_at":       time.Now().UTC(),
		}},
	)
	if err != nil {
		return false, err
	}
	return res.ModifiedCount == 1, nil
}

func (r *mongoTransactionRepo) MarkSuccess(ctx context.Context, id primitive.ObjectID, paidAt time.Time, gatewayPayload string) (bool, error) {
	res, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": id, "status": models.TransactionPending},
		bson.M{"$set": bson.M{
			"status":           models.TransactionSuccess,
			"paid_at":          paidAt,
			"gateway_response": gatewayPayload,
			"updated_at":       time.Now().UTC(),
		}},
	)
	if err != nil {
		return false, err
	}
	return res.ModifiedCount == 1, nil
}

func (r *mongoTransactionRepo) MarkFailed(ctx context.Context, id primitive.ObjectID, gatewayPayload string) (bool, error) {
	res, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": id, "status": models.TransactionPending},
		bson.M{"$set": bson.M{
			"status":           models.TransactionFailed,
			"gateway_response": gatewayPayload,
			"updated_at":       time.Now().UTC(),
		}},
	)
	if err != nil {
		return false, err
	}
	return res.ModifiedCount == 1, nil
}

func (r *mongoTransactionRepo) List(ctx context.Context, status models.TransactionStatus, page, limit int) ([]models.Transaction, int64, error) {
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

	var txs []models.Transaction
	if err := cursor.All(ctx, &txs); err != nil {
		return nil, 0, err
	}
	return txs, total, nil
}
