package mapping

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

type MappingRepository interface {
	Create(ctx context.Context, m *Mapping) error
	Get(ctx context.Context, id string) (*Mapping, error)
	List(ctx context.Context, filter Filter) ([]Mapping, error)
	ListIDsByConnection(ctx context.Context, connectionID string) ([]string, error)
	Update(ctx context.Context, id string, updates map[string]interface{}) error
	Delete(ctx context.Context, id string) error
	DeleteMany(ctx context.Context, ids []string) (int64, error)
	EnsureIndexes(ctx context.Context) error
}

type MappingRepositoryImpl struct {
	collection *mongo.Collection
}

func NewMappingRepository(db *database.MongodbDB) MappingRepository {
	return &MappingRepositoryImpl{
		collection: db.DB.Collection(database.MappingsCollection),
	}
}

func notFound(id string) error {
	return fmt.Errorf("mapping %s: %w", id, common_models.ErrNotFound)
}

func (r *MappingRepositoryImpl) Create(ctx context.Context, m *Mapping) error {
	if m.ID.IsZero() {
		m.ID = primitive.NewObjectID()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	_, err := r.collection.InsertOne(ctx, m)
	return err
}

func (r *MappingRepositoryImpl) Get(ctx context.Context, id string) (*Mapping, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, notFound(id)
	}

	var m Mapping
	err = r.collection.FindOne(ctx, bson.M{"_id": oid}).Decode(&m)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, notFound(id)
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *MappingRepositoryImpl) List(ctx context.Context, filter Filter) ([]Mapping, error) {
	query := bson.M{}
	if filter.ConnectionID != "" {
		oid, err := primitive.ObjectIDFromHex(filter.ConnectionID)
		if err != nil {
			return []Mapping{}, nil
		}
		query["connection_id"] = oid
	}
	if filter.Enabled != nil {
		query["enabled"] = *filter.Enabled
	}

	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	cursor, err := r.collection.Find(ctx, query, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	mappings := []Mapping{}
	if err = cursor.All(ctx, &mappings); err != nil {
		return nil, err
	}
	return mappings, nil
}

func (r *MappingRepositoryImpl) ListIDsByConnection(ctx context.Context, connectionID string) ([]string, error) {
	oid, err := primitive.ObjectIDFromHex(connectionID)
	if err != nil {
		return nil, nil
	}

	opts := options.Find().SetProjection(bson.M{"_id": 1})
	cursor, err := r.collection.Find(ctx, bson.M{"connection_id": oid}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var docs []struct {
		ID primitive.ObjectID `bson:"_id"`
	}
	if err = cursor.All(ctx, &docs); err != nil {
		return nil, err
	}

	ids := make([]string, len(docs))
	for i, d := range docs {
		ids[i] = d.ID.Hex()
	}
	return ids, nil
}

func (r *MappingRepositoryImpl) Update(ctx context.Context, id string, updates map[string]interface{}) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return notFound(id)
	}

	res, err := r.collection.UpdateOne(ctx, bson.M{"_id": oid}, bson.M{"$set": updates})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return notFound(id)
	}
	return nil
}

func (r *MappingRepositoryImpl) Delete(ctx context.Context, id string) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return notFound(id)
	}

	res, err := r.collection.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return notFound(id)
	}
	return nil
}

func (r *MappingRepositoryImpl) DeleteMany(ctx context.Context, ids []string) (int64, error) {
	oids := make([]primitive.ObjectID, 0, len(ids))
	for _, id := range ids {
		if oid, err := primitive.ObjectIDFromHex(id); err == nil {
			oids = append(oids, oid)
		}
	}
	if len(oids) == 0 {
		return 0, nil
	}

	res, err := r.collection.DeleteMany(ctx, bson.M{"_id": bson.M{"$in": oids}})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

func (r *MappingRepositoryImpl) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "connection_id", Value: 1}},
			Options: options.Index().SetName("idx_connection"),
		},
		{
			Keys: bson.D{
				{Key: "enabled", Value: 1},
				{Key: "created_at", Value: -1},
			},
			Options: options.Index().SetName("idx_enabled_created"),
		},
	}

	_, err := r.collection.Indexes().CreateMany(ctx, indexes)
	return err
}

// ChangeRow decodes a stored mapping into the row MappingService publishes
func ChangeRow(doc bson.Raw) (map[string]any, error) {
	var m Mapping
	if err := bson.Unmarshal(doc, &m); err != nil {
		return nil, err
	}
	return realtime.ToRow(m), nil
}
