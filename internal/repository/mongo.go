package repository

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hiroki-koketsu/go-todo/internal/database"
	"github.com/hiroki-koketsu/go-todo/internal/model"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	defaultMongoDatabase = "todo"
	todosCollection      = "todos"
)

// taskDocument is the stored shape of a task.
type taskDocument struct {
	ID        primitive.ObjectID `bson:"_id,omitempty"`
	Title     string             `bson:"title"`
	Completed bool               `bson:"completed"`
	CreatedAt time.Time          `bson:"createdAt"`
	UpdatedAt time.Time          `bson:"updatedAt"`
}

func (d *taskDocument) toModel() *model.Task {
	return &model.Task{
		ID:        d.ID.Hex(),
		Title:     d.Title,
		Completed: d.Completed,
		CreatedAt: d.CreatedAt.UTC(),
		UpdatedAt: d.UpdatedAt.UTC(),
	}
}

// MongoRepository stores tasks in a MongoDB collection.
type MongoRepository struct {
	conn     *database.Connector[*mongo.Client]
	database string
	logger   *slog.Logger
}

// NewMongoRepository creates a MongoRepository for uri. The client is created
// on first use and cached for the life of the process.
func NewMongoRepository(uri, databaseName string, logger *slog.Logger) *MongoRepository {
	if databaseName == "" {
		databaseName = defaultMongoDatabase
	}
	driver := database.Driver[*mongo.Client]{
		Dial: func(ctx context.Context) (*mongo.Client, error) {
			return mongo.Connect(ctx, options.Client().
				ApplyURI(uri).
				SetServerSelectionTimeout(5*time.Second))
		},
		Ping: func(ctx context.Context, client *mongo.Client) error {
			return client.Ping(ctx, readpref.Primary())
		},
		Close: func(ctx context.Context, client *mongo.Client) error {
			return client.Disconnect(ctx)
		},
	}
	return &MongoRepository{
		conn:     database.NewConnector("mongodb", driver, logger),
		database: databaseName,
		logger:   logger,
	}
}

// connector exposes the cached client to tests.
func (r *MongoRepository) connector() *database.Connector[*mongo.Client] {
	return r.conn
}

func (r *MongoRepository) collection(ctx context.Context) (*mongo.Collection, error) {
	client, err := r.conn.Handle(ctx)
	if err != nil {
		return nil, &model.StoreError{Op: "connect", Err: err}
	}
	return client.Database(r.database).Collection(todosCollection), nil
}

// List returns all tasks ordered by createdAt descending.
func (r *MongoRepository) List(ctx context.Context) ([]*model.Task, error) {
	ctx, span := tracer.Start(ctx, "MongoRepository.List")
	defer span.End()

	coll, err := r.collection(ctx)
	if err != nil {
		return nil, spanError(span, err)
	}

	opts := options.Find().SetSort(bson.D{
		{Key: "createdAt", Value: -1},
		{Key: "_id", Value: -1},
	})
	cursor, err := coll.Find(ctx, bson.D{}, opts)
	if err != nil {
		return nil, spanError(span, &model.StoreError{Op: "list", Err: err})
	}

	var docs []taskDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, spanError(span, &model.StoreError{Op: "list", Err: err})
	}

	tasks := make([]*model.Task, 0, len(docs))
	for i := range docs {
		tasks = append(tasks, docs[i].toModel())
	}

	span.SetAttributes(attribute.Int("task.count", len(tasks)))
	return tasks, nil
}

// Create inserts a new task document.
func (r *MongoRepository) Create(ctx context.Context, req *model.CreateTaskRequest) (*model.Task, error) {
	ctx, span := tracer.Start(ctx, "MongoRepository.Create",
		trace.WithAttributes(attribute.String("task.title", req.Title)),
	)
	defer span.End()

	coll, err := r.collection(ctx)
	if err != nil {
		return nil, spanError(span, err)
	}

	now := model.Now()
	doc := taskDocument{
		ID:        primitive.NewObjectID(),
		Title:     req.Title,
		Completed: false,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if _, err := coll.InsertOne(ctx, doc); err != nil {
		return nil, spanError(span, &model.StoreError{Op: "create", Err: err})
	}

	span.SetAttributes(attribute.String("task.id", doc.ID.Hex()))
	return doc.toModel(), nil
}

// Update applies the provided fields with a single findOneAndUpdate.
func (r *MongoRepository) Update(ctx context.Context, id string, req *model.UpdateTaskRequest) (*model.Task, error) {
	ctx, span := tracer.Start(ctx, "MongoRepository.Update",
		trace.WithAttributes(attribute.String("task.id", id)),
	)
	defer span.End()

	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		span.SetAttributes(attribute.Bool("task.found", false))
		return nil, &model.NotFoundError{ID: id}
	}

	coll, err := r.collection(ctx)
	if err != nil {
		return nil, spanError(span, err)
	}

	set := bson.D{{Key: "updatedAt", Value: model.Now()}}
	if req.Title != nil {
		set = append(set, bson.E{Key: "title", Value: *req.Title})
	}
	if req.Completed != nil {
		set = append(set, bson.E{Key: "completed", Value: *req.Completed})
	}

	var doc taskDocument
	err = coll.FindOneAndUpdate(ctx,
		bson.D{{Key: "_id", Value: oid}},
		bson.D{{Key: "$set", Value: set}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		span.SetAttributes(attribute.Bool("task.found", false))
		return nil, &model.NotFoundError{ID: id}
	}
	if err != nil {
		return nil, spanError(span, &model.StoreError{Op: "update", Err: err})
	}

	span.SetAttributes(attribute.Bool("task.found", true))
	return doc.toModel(), nil
}

// Delete removes the task document if present.
func (r *MongoRepository) Delete(ctx context.Context, id string) (bool, error) {
	ctx, span := tracer.Start(ctx, "MongoRepository.Delete",
		trace.WithAttributes(attribute.String("task.id", id)),
	)
	defer span.End()

	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		span.SetAttributes(attribute.Bool("task.found", false))
		return false, nil
	}

	coll, err := r.collection(ctx)
	if err != nil {
		return false, spanError(span, err)
	}

	res, err := coll.DeleteOne(ctx, bson.D{{Key: "_id", Value: oid}})
	if err != nil {
		return false, spanError(span, &model.StoreError{Op: "delete", Err: err})
	}

	found := res.DeletedCount > 0
	span.SetAttributes(attribute.Bool("task.found", found))
	return found, nil
}

// Count returns the number of task documents.
func (r *MongoRepository) Count(ctx context.Context) (int64, error) {
	coll, err := r.collection(ctx)
	if err != nil {
		return 0, err
	}
	n, err := coll.CountDocuments(ctx, bson.D{})
	if err != nil {
		return 0, &model.StoreError{Op: "count", Err: err}
	}
	return n, nil
}

// EnsureConnected pings the cached client, reconnecting if needed.
func (r *MongoRepository) EnsureConnected(ctx context.Context) error {
	if _, err := r.conn.EnsureConnected(ctx); err != nil {
		return &model.StoreError{Op: "connect", Err: err}
	}
	return nil
}

// Warm connects ahead of the first request, retrying until maxElapsed.
func (r *MongoRepository) Warm(ctx context.Context, maxElapsed time.Duration) error {
	return r.conn.Warm(ctx, maxElapsed)
}

// Close disconnects the cached client.
func (r *MongoRepository) Close(ctx context.Context) error {
	if err := r.conn.Close(ctx); err != nil {
		return fmt.Errorf("disconnect mongodb: %w", err)
	}
	return nil
}

func spanError(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}
