package syncerror

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

type SyncErrorRepository interface {
	InsertMany(ctx context.Context, errs []SyncError) error
	Get(ctx context.Context, id string) (*SyncError, error)
	List(ctx context.Context, mappingID string, includeResolved bool) ([]SyncError, error)
	// Resolve only touches unresolved errors and reports whether it did
	Resolve(ctx context.Context, id, notes string, at time.Time) (bool, error)
	ResolveAll(ctx context.Context, mappingID, notes string, at time.Time) (int64, error)
	CountActive(ctx context.Context, mappingIDs []string) (map[string]int, error)
	EnsureIndexes(ctx context.Context) error
}

type SyncErrorRepositoryImpl struct {
	collection *mongo.Collection
}

func NewSyncErrorRepository(db *database.MongodbDB) SyncErrorRepository {
	return &SyncErrorRepositoryImpl{
		collection: db.DB.Collection(database.SyncErrorsCollection),
	}
}

func notFound(id string) error {
	return fmt.Errorf("sync error %s: %w", id, common_models.ErrNotFound)
}

func (r *SyncErrorRepositoryImpl) InsertMany(ctx context.Context, errs []SyncError) error {
	if len(errs) == 0 {
		return nil
	}
	docs := make([]interface{}, len(errs))
	for i := range errs {
		if errs[i].ID.IsZero() {
			errs[i].ID = primitive.NewObjectID()
		}
		if errs[i].CreatedAt.IsZero() {
			errs[i].CreatedAt = time.Now().UTC()
		}
		docs[i] = errs[i]
	}
	_, err := r.collection.InsertMany(ctx, docs)
	return err
}

func (r *SyncErrorRepositoryImpl) Get(ctx context.Context, id string) (*SyncError, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, notFound(id)
	}

	var e SyncError
	err = r.collection.FindOne(ctx, bson.M{"_id": oid}).Decode(&e)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, notFound(id)
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func (r *SyncErrorRepositoryImpl) List(ctx context.Context, mappingID string, includeResolved bool) ([]SyncError, error) {
	query := bson.M{}
	if mappingID != "" {
		oid, err := primitive.ObjectIDFromHex(mappingID)
		if err != nil {
			return []SyncError{}, nil
		}
		query["mapping_id"] = oid
	}
	if !includeResolved {
		query["resolved_at"] = nil
	}

	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	cursor, err := r.collection.Find(ctx, query, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	errs := []SyncError{}
	if err = cursor.All(ctx, &errs); err != nil {
		return nil, err
	}
	return errs, nil
}

func (r *SyncErrorRepositoryImpl) Resolve(ctx context.Context, id, notes string, at time.Time) (bool, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return false, notFound(id)
	}

	set := bson.M{"resolved_at": at}
	if notes != "" {
		set["resolution_notes"] = notes
	}
	res, err := r.collection.UpdateOne(ctx, bson.M{"_id": oid, "resolved_at": nil}, bson.M{"$set": set})
	if err != nil {
		return false, err
	}
	if res.MatchedCount == 1 {
		return true, nil
	}

	// either already resolved or missing
	if _, err := r.Get(ctx, id); err != nil {
		return false, err
	}
	return false, nil
}

func (r *SyncErrorRepositoryImpl) ResolveAll(ctx context.Context, mappingID, notes string, at time.Time) (int64, error) {
	oid, err := primitive.ObjectIDFromHex(mappingID)
	if err != nil {
		return 0, fmt.Errorf("mapping %s: %w", mappingID, common_models.ErrNotFound)
	}

	set := bson.M{"resolved_at": at}
	if notes != "" {
		set["resolution_notes"] = notes
	}
	res, err := r.collection.UpdateMany(ctx, bson.M{"mapping_id": oid, "resolved_at": nil}, bson.M{"$set": set})
	if err != nil {
		return 0, err
	}
	return res.ModifiedCount, nil
}

func (r *SyncErrorRepositoryImpl) CountActive(ctx context.Context, mappingIDs []string) (map[string]int, error) {
	match := bson.M{"resolved_at": nil}
	if mappingIDs != nil {
		oids := make([]primitive.ObjectID, 0, len(mappingIDs))
		for _, id := range mappingIDs {
			if oid, err := primitive.ObjectIDFromHex(id); err == nil {
				oids = append(oids, oid)
			}
		}
		match["mapping_id"] = bson.M{"$in": oids}
	}

	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: match}},
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$mapping_id"},
			{Key: "count", Value: bson.M{"$sum": 1}},
		}}},
	}
	cursor, err := r.collection.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var rows []struct {
		MappingID primitive.ObjectID `bson:"_id"`
		Count     int                `bson:"count"`
	}
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, err
	}

	counts := make(map[string]int, len(rows))
	for _, row := range rows {
		counts[row.MappingID.Hex()] = row.Count
	}
	return counts, nil
}

func (r *SyncErrorRepositoryImpl) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "mapping_id", Value: 1},
				{Key: "resolved_at", Value: 1},
				{Key: "created_at", Value: -1},
			},
			Options: options.Index().SetName("idx_mapping_resolved_created"),
		},
	}

	_, err := r.collection.Indexes().CreateMany(ctx, indexes)
	return err
}

// ChangeRow decodes a stored sync error into its published row
func ChangeRow(doc bson.Raw) (map[string]any, error) {
	var e SyncError
	if err := bson.Unmarshal(doc, &e); err != nil {
		return nil, err
	}
	return realtime.ToRow(e), nil
}
