package realtime

import (
	"context"
	"sync"
	"time"

	"go-glsync/internal/config"
	"go-glsync/internal/database"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// WatchedTables are the metadata collections mirrored onto the hub
var WatchedTables = []string{
	database.ConnectionsCollection,
	database.MappingsCollection,
	database.SyncLogsCollection,
	database.SyncErrorsCollection,
}

type changeStreamEvent struct {
	OperationType string   `bson:"operationType"`
	FullDocument  bson.Raw `bson:"fullDocument"`
	DocumentKey   bson.M   `bson:"documentKey"`
}

// RowDecoder turns a stored document into the row the owning service would publish
type RowDecoder func(doc bson.Raw) (map[string]any, error)

// ChangeStreamFeeder publishes MongoDB change events onto the hub (requires a replica set)
type ChangeStreamFeeder struct {
	db       *mongo.Database
	hub      *Hub
	log      *zap.Logger
	decoders map[string]RowDecoder
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

func NewChangeStreamFeeder(db *database.MongodbDB, hub *Hub, log *zap.Logger) *ChangeStreamFeeder {
	return &ChangeStreamFeeder{db: db.DB, hub: hub, log: log, decoders: map[string]RowDecoder{}}
}

// Register sets the decoder for a table; must be called before Start
func (f *ChangeStreamFeeder) Register(table string, dec RowDecoder) {
	if f.decoders == nil {
		f.decoders = map[string]RowDecoder{}
	}
	f.decoders[table] = dec
}

func (f *ChangeStreamFeeder) Start(tables []string) {
	ctx, cancel := context.WithCancel(context.Background())
	f.cancel = cancel
	for _, table := range tables {
		f.wg.Add(1)
		go func(table string) {
			defer f.wg.Done()
			f.watch(ctx, table)
		}(table)
	}
}

func (f *ChangeStreamFeeder) Stop() {
	if f.cancel != nil {
		f.cancel()
	}
	f.wg.Wait()
}

func (f *ChangeStreamFeeder) watch(ctx context.Context, table string) {
	opts := options.ChangeStream().SetFullDocument(options.UpdateLookup)
	for {
		stream, err := f.db.Collection(table).Watch(ctx, mongo.Pipeline{}, opts)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			f.log.Error("change stream open failed", zap.String("table", table), zap.Error(err))
			select {
			case <-ctx.Done():
				return
			case <-time.After(5 * time.Second):
				continue
			}
		}

		for stream.Next(ctx) {
			var ev changeStreamEvent
			if err := stream.Decode(&ev); err != nil {
				f.log.Warn("change stream decode failed", zap.String("table", table), zap.Error(err))
				continue
			}
			change, ok, err := f.toChange(table, ev)
			if err != nil {
				f.log.Warn("change stream row decode failed", zap.String("table", table), zap.Error(err))
				continue
			}
			if ok {
				f.hub.Publish(change)
			}
		}
		stream.Close(context.Background())
		if ctx.Err() != nil {
			return
		}
	}
}

func (f *ChangeStreamFeeder) toChange(table string, ev changeStreamEvent) (Change, bool, error) {
	change := Change{Table: table}
	switch ev.OperationType {
	case "insert", "update", "replace":
		change.Event = EventUpdate
		if ev.OperationType == "insert" {
			change.Event = EventInsert
		}
		if len(ev.FullDocument) == 0 {
			// document deleted before the update lookup ran
			return Change{}, false, nil
		}
		row, err := f.decodeRow(table, ev.FullDocument)
		if err != nil {
			return Change{}, false, err
		}
		change.New = row
	case "delete":
		change.Event = EventDelete
		change.Old = normalize(ev.DocumentKey)
	default:
		return Change{}, false, nil
	}
	return change, true, nil
}

func (f *ChangeStreamFeeder) decodeRow(table string, doc bson.Raw) (map[string]any, error) {
	if dec, ok := f.decoders[table]; ok {
		return dec(doc)
	}
	var m bson.M
	if err := bson.Unmarshal(doc, &m); err != nil {
		return nil, err
	}
	return normalize(m), nil
}

// normalize turns bson documents into the same shape ToRow produces
func normalize(doc bson.M) map[string]any {
	if doc == nil {
		return nil
	}
	out := make(map[string]any, len(doc))
	for k, v := range doc {
		if k == "_id" {
			k = "id"
		}
		out[k] = normalizeValue(v)
	}
	return out
}

func normalizeValue(v any) any {
	switch val := v.(type) {
	case primitive.ObjectID:
		return val.Hex()
	case primitive.DateTime:
		return val.Time().UTC()
	case bson.M:
		return normalize(val)
	case primitive.D:
		return normalize(val.Map())
	case primitive.A:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = normalizeValue(item)
		}
		return out
	default:
		return v
	}
}

// NewPublisher picks who announces changes: the services themselves or the change streams
func NewPublisher(lc fx.Lifecycle, cfg *config.Config, hub *Hub, feeder *ChangeStreamFeeder) Publisher {
	if cfg.RealtimeSource != config.RealtimeChangeStream {
		return hub
	}
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			feeder.Start(WatchedTables)
			return nil
		},
		OnStop: func(ctx context.Context) error {
			feeder.Stop()
			return nil
		},
	})
	return NopPublisher{}
}
