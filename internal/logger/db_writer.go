package logger

import (
	"context"
	"fmt"
	"sync"
	"time"

	common_models "go-glsync/internal/common/models"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap/zapcore"
)

// LogInserter is the part of *mongo.Collection the writer needs
type LogInserter interface {
	InsertOne(ctx context.Context, document interface{}, opts ...*options.InsertOneOptions) (*mongo.InsertOneResult, error)
}

// LogEntry holds the data passed from Zap to the worker
type LogEntry struct {
	Level        zapcore.Level
	Message      string
	IpAddress    string
	MappingID    string
	ConnectionID string
	Caller       string
	Fields       map[string]interface{}
}

// DBLogWriter handles the async writing
type DBLogWriter struct {
	collection LogInserter
	logChan    chan LogEntry
	appId      string
	done       chan struct{}
	mu         sync.RWMutex
	closed     bool
}

// NewDBLogWriter starts the background worker immediately
func NewDBLogWriter(collection LogInserter, appId string) *DBLogWriter {
	writer := &DBLogWriter{
		collection: collection,
		logChan:    make(chan LogEntry, 1000),
		appId:      appId,
		done:       make(chan struct{}),
	}

	go writer.processLogs()

	return writer
}

// AddLog never blocks the caller; a full buffer drops the entry
func (w *DBLogWriter) AddLog(entry LogEntry) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.closed {
		return
	}
	select {
	case w.logChan <- entry:
	default:
		fmt.Println("DB Log Channel Full! Dropping log:", entry.Message)
	}
}

// Close stops accepting entries and waits for the buffer to drain
func (w *DBLogWriter) Close(ctx context.Context) error {
	w.mu.Lock()
	if !w.closed {
		w.closed = true
		close(w.logChan)
	}
	w.mu.Unlock()

	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *DBLogWriter) processLogs() {
	defer close(w.done)
	for entry := range w.logChan {
		logRecord := common_models.Log{
			Message:       entry.Message,
			Level:         entry.Level.String(),
			LogLevelId:    mapLevelToInt(entry.Level),
			Caller:        entry.Caller,
			IpAddress:     entry.IpAddress,
			MappingID:     entry.MappingID,
			ConnectionID:  entry.ConnectionID,
			Fields:        entry.Fields,
			ApplicationId: w.appId,
			CreatedOnUtc:  time.Now().UTC(),
		}

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		// Errors are ignored to keep the app running
		_, _ = w.collection.InsertOne(ctx, logRecord)
		cancel()
	}
}

func mapLevelToInt(l zapcore.Level) int {
	switch l {
	case zapcore.DebugLevel:
		return 10
	case zapcore.InfoLevel:
		return 20
	case zapcore.WarnLevel:
		return 30
	case zapcore.ErrorLevel:
		return 40
	case zapcore.FatalLevel:
		return 50
	default:
		return 20
	}
}
