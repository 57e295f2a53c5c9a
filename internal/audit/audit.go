// Package audit implements the optional durable audit sink: one document
// per terminal fallback attempt, for operators who want a queryable record
// beyond the structured logs the orchestrator already emits. It is
// deliberately best-effort — a write failure here never affects the
// gateway's response to the caller.
package audit

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.uber.org/zap"
)

// Entry is one candidate attempt as recorded by the fallback orchestrator,
// independent of internal/fallback.Attempt so this package carries no
// dependency on it.
type Entry struct {
	TraceID     string    `bson:"traceId"`
	TenantID    string    `bson:"tenantId"`
	ProviderKey string    `bson:"providerKey"`
	CanonicalID string    `bson:"canonicalId"`
	Tier        string    `bson:"tier"`
	ErrCode     string    `bson:"errCode,omitempty"`
	ErrMessage  string    `bson:"errMessage,omitempty"`
	DurationMS  int64     `bson:"durationMs"`
	Success     bool      `bson:"success"`
	RecordedAt  time.Time `bson:"recordedAt"`
}

// Logger appends attempt entries. Log is fire-and-forget from the caller's
// point of view: implementations must not block the request path on a slow
// or unreachable backing store.
type Logger interface {
	Log(ctx context.Context, e Entry)
}

// Nop discards every entry. The zero value is ready to use, and is what
// Orchestrator falls back to when no Logger is configured.
type Nop struct{}

func (Nop) Log(context.Context, Entry) {}

// mongoLogger is the durable Logger, backed by a single collection. Writes
// run on a short-lived detached context so a caller's own ctx cancellation
// (its request finishing) never races the write.
type mongoLogger struct {
	coll       *mongo.Collection
	logger     *zap.Logger
	writeDelay time.Duration
}

// NewMongo builds a Logger writing into database/collection on client. It
// does not ping the server; a misconfigured URI surfaces on the first
// failed write, logged and discarded rather than propagated.
func NewMongo(client *mongo.Client, database, collection string, logger *zap.Logger) Logger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &mongoLogger{
		coll:       client.Database(database).Collection(collection),
		logger:     logger,
		writeDelay: 5 * time.Second,
	}
}

// EnsureIndexes creates the indexes the operator-facing queries rely on
// (by trace, by provider+time). Call once at startup; safe to call
// repeatedly since CreateMany is idempotent on an existing index.
func EnsureIndexes(ctx context.Context, client *mongo.Client, database, collection string) error {
	coll := client.Database(database).Collection(collection)
	_, err := coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "traceId", Value: 1}}},
		{Keys: bson.D{{Key: "providerKey", Value: 1}, {Key: "recordedAt", Value: -1}}},
	})
	return err
}

// Log inserts e on a short detached context so the caller's own ctx
// cancellation can never abort the write mid-flight.
func (l *mongoLogger) Log(ctx context.Context, e Entry) {
	wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), l.writeDelay)
	defer cancel()

	if _, err := l.coll.InsertOne(wctx, e); err != nil {
		l.logger.Warn("audit log write failed",
			zap.String("traceId", e.TraceID),
			zap.String("providerKey", e.ProviderKey),
			zap.Error(err),
		)
	}
}
