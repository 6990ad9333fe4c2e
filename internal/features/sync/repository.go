package sync

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

type SyncLogRepository interface {
	Create(ctx context.Context, log *SyncLog) error
	Get(ctx context.Context, id string) (*SyncLog, error)
	// Latest returns nil without error when the mapping never ran
	Latest(ctx context.Context, mappingID string) (*SyncLog, error)
	LatestByMappings(ctx context.Context, mappingIDs []string) (map[string]*SyncLog, error)
	List(ctx context.Context, mappingID string, limit int64) ([]SyncLog, error)
	Since(ctx context.Context, since time.Time) ([]SyncLog, error)
	// Advance moves a run forward; it fails with ErrInvalidTransition when
	// the stored status is not a predecessor of to.
	Advance(ctx context.Context, id primitive.ObjectID, to LogStatus, fields map[string]interface{}) error
	EnsureIndexes(ctx context.Context) error
}

type SyncLogRepositoryImpl struct {
	collection *mongo.Collection
}

func NewSyncLogRepository(db *database.MongodbDB) SyncLogRepository {
	return &SyncLogRepositoryImpl{
		collection: db.DB.Collection(database.SyncLogsCollection),
	}
}

func (r *SyncLogRepositoryImpl) Create(ctx context.Context, log *SyncLog) error {
	if log.ID.IsZero() {
		log.ID = primitive.NewObjectID()
	}
	if log.StartedAt.IsZero() {
		log.StartedAt = time.Now().UTC()
	}
	log.InFlight = log.Status.InFlight()

	_, err := r.collection.InsertOne(ctx, log)
	if mongo.IsDuplicateKeyError(err) {
		return ErrSyncInProgress
	}
	return err
}

func (r *SyncLogRepositoryImpl) Get(ctx context.Context, id string) (*SyncLog, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("sync log %s: %w", id, common_models.ErrNotFound)
	}

	var log SyncLog
	err = r.collection.FindOne(ctx, bson.M{"_id": oid}).Decode(&log)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("sync log %s: %w", id, common_models.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &log, nil
}

func (r *SyncLogRepositoryImpl) Latest(ctx context.Context, mappingID string) (*SyncLog, error) {
	oid, err := primitive.ObjectIDFromHex(mappingID)
	if err != nil {
		return nil, nil
	}

	opts := options.FindOne().SetSort(bson.D{{Key: "started_at", Value: -1}})
	var log SyncLog
	err = r.collection.FindOne(ctx, bson.M{"mapping_id": oid}, opts).Decode(&log)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &log, nil
}

func (r *SyncLogRepositoryImpl) LatestByMappings(ctx context.Context, mappingIDs []string) (map[string]*SyncLog, error) {
	oids := make([]primitive.ObjectID, 0, len(mappingIDs))
	for _, id := range mappingIDs {
		if oid, err := primitive.ObjectIDFromHex(id); err == nil {
			oids = append(oids, oid)
		}
	}
	latest := make(map[string]*SyncLog, len(oids))
	if len(oids) == 0 {
		return latest, nil
	}

	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"mapping_id": bson.M{"$in": oids}}}},
		{{Key: "$sort", Value: bson.D{{Key: "started_at", Value: -1}}}},
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$mapping_id"},
			{Key: "log", Value: bson.M{"$first": "$$ROOT"}},
		}}},
	}
	cursor, err := r.collection.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var rows []struct {
		Log SyncLog `bson:"log"`
	}
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, err
	}
	for i := range rows {
		latest[rows[i].Log.MappingID.Hex()] = &rows[i].Log
	}
	return latest, nil
}

func (r *SyncLogRepositoryImpl) List(ctx context.Context, mappingID string, limit int64) ([]SyncLog, error) {
	query := bson.M{}
	if mappingID != "" {
		oid, err := primitive.ObjectIDFromHex(mappingID)
		if err != nil {
			return []SyncLog{}, nil
		}
		query["mapping_id"] = oid
	}

	opts := options.Find().SetSort(bson.D{{Key: "started_at", Value: -1}})
	if limit > 0 {
		opts.SetLimit(limit)
	}
	cursor, err := r.collection.Find(ctx, query, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	logs := []SyncLog{}
	if err = cursor.All(ctx, &logs); err != nil {
		return nil, err
	}
	return logs, nil
}

func (r *SyncLogRepositoryImpl) Since(ctx context.Context, since time.Time) ([]SyncLog, error) {
	query := bson.M{}
	if !since.IsZero() {
		query["started_at"] = bson.M{"$gte": since}
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "started_at", Value: 1}}).
		SetProjection(bson.M{"details": 0})
	cursor, err := r.collection.Find(ctx, query, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	logs := []SyncLog{}
	if err = cursor.All(ctx, &logs); err != nil {
		return nil, err
	}
	return logs, nil
}

func (r *SyncLogRepositoryImpl) Advance(ctx context.Context, id primitive.ObjectID, to LogStatus, fields map[string]interface{}) error {
	from := to.Predecessors()
	if len(from) == 0 {
		return fmt.Errorf("%w: to %s", ErrInvalidTransition, to)
	}

	set := bson.M{"status": to}
	for k, v := range fields {
		set[k] = v
	}
	update := bson.M{"$set": set}
	if to.Terminal() {
		if _, ok := set["completed_at"]; !ok {
			set["completed_at"] = time.Now().UTC()
		}
		update["$unset"] = bson.M{"in_flight": ""}
	}

	res, err := r.collection.UpdateOne(ctx, bson.M{"_id": id, "status": bson.M{"$in": from}}, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("%w: log %s to %s", ErrInvalidTransition, id.Hex(), to)
	}
	return nil
}

// EnsureIndexes also installs the partial unique index that allows at most
// one in-flight run per mapping across all instances.
func (r *SyncLogRepositoryImpl) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "mapping_id", Value: 1},
				{Key: "started_at", Value: -1},
			},
			Options: options.Index().SetName("idx_mapping_started"),
		},
		{
			Keys:    bson.D{{Key: "started_at", Value: -1}},
			Options: options.Index().SetName("idx_started"),
		},
		{
			Keys: bson.D{{Key: "mapping_id", Value: 1}},
			Options: options.Index().
				SetName("uniq_in_flight_per_mapping").
				SetUnique(true).
				SetPartialFilterExpression(bson.M{"in_flight": true}),
		},
	}

	_, err := r.collection.Indexes().CreateMany(ctx, indexes)
	return err
}

// ChangeRow decodes a stored sync log into its published row
func ChangeRow(doc bson.Raw) (map[string]any, error) {
	var l SyncLog
	if err := bson.Unmarshal(doc, &l); err != nil {
		return nil, err
	}
	return realtime.ToRow(l), nil
}
