package connection

import (
	"context"
	"errors"
	"fmt"
	"time"

	common_models "go-glsync/internal/common/models"
	"go-glsync/internal/database"
	"go-glsync/internal/realtime"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type ConnectionRepository interface {
	Create(ctx context.Context, conn *Connection) error
	Get(ctx context.Context, id string) (*Connection, error)
	List(ctx context.Context) ([]Connection, error)
	Count(ctx context.Context) (int64, error)
	Update(ctx context.Context, id string, updates map[string]interface{}) error
	SetLastSync(ctx context.Context, id string, at time.Time) error
	Delete(ctx context.Context, id string) error
	EnsureIndexes(ctx context.Context) error
}

type ConnectionRepositoryImpl struct {
	collection *mongo.Collection
}

func NewConnectionRepository(db *database.MongodbDB) ConnectionRepository {
	return &ConnectionRepositoryImpl{
		collection: db.DB.Collection(database.ConnectionsCollection),
	}
}

func objectID(id string) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return oid, fmt.Errorf("connection %q: %w", id, common_models.ErrNotFound)
	}
	return oid, nil
}

func (r *ConnectionRepositoryImpl) Create(ctx context.Context, conn *Connection) error {
	if conn.ID.IsZero() {
		conn.ID = primitive.NewObjectID()
	}
	if conn.CreatedAt.IsZero() {
		conn.CreatedAt = time.Now().UTC()
	}
	_, err := r.collection.InsertOne(ctx, conn)
	return err
}

func (r *ConnectionRepositoryImpl) Get(ctx context.Context, id string) (*Connection, error) {
	oid, err := objectID(id)
	if err != nil {
		return nil, err
	}

	var conn Connection
	err = r.collection.FindOne(ctx, bson.M{"_id": oid}).Decode(&conn)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("connection %s: %w", id, common_models.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &conn, nil
}

func (r *ConnectionRepositoryImpl) List(ctx context.Context) ([]Connection, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	cursor, err := r.collection.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	conns := []Connection{}
	if err = cursor.All(ctx, &conns); err != nil {
		return nil, err
	}
	return conns, nil
}

func (r *ConnectionRepositoryImpl) Count(ctx context.Context) (int64, error) {
	return r.collection.CountDocuments(ctx, bson.M{})
}

func (r *ConnectionRepositoryImpl) Update(ctx context.Context, id string, updates map[string]interface{}) error {
	oid, err := objectID(id)
	if err != nil {
		return err
	}

	res, err := r.collection.UpdateOne(ctx, bson.M{"_id": oid}, bson.M{"$set": updates})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("connection %s: %w", id, common_models.ErrNotFound)
	}
	return nil
}

func (r *ConnectionRepositoryImpl) SetLastSync(ctx context.Context, id string, at time.Time) error {
	return r.Update(ctx, id, map[string]interface{}{"last_sync": at})
}

func (r *ConnectionRepositoryImpl) Delete(ctx context.Context, id string) error {
	oid, err := objectID(id)
	if err != nil {
		return err
	}

	res, err := r.collection.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return fmt.Errorf("connection %s: %w", id, common_models.ErrNotFound)
	}
	return nil
}

func (r *ConnectionRepositoryImpl) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "created_at", Value: -1}},
			Options: options.Index().SetName("idx_created_at"),
		},
		{
			Keys:    bson.D{{Key: "app_id", Value: 1}},
			Options: options.Index().SetName("idx_app_id"),
		},
	}

	_, err := r.collection.Indexes().CreateMany(ctx, indexes)
	return err
}

// ChangeRow decodes a stored connection into its published row, api key masked
func ChangeRow(doc bson.Raw) (map[string]any, error) {
	var c Connection
	if err := bson.Unmarshal(doc, &c); err != nil {
		return nil, err
	}
	return realtime.ToRow(c.Masked()), nil
}
