// Package archive mirrors triggered notifications to MongoDB Atlas for
// long-term retention. The archive is strictly best-effort: when the
// URI is unset or the cluster is unreachable, alerting continues with
// the relational store alone.
package archive

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"marketpulse-backend/models"
)

const (
	DatabaseName           = "marketpulse"
	NotificationCollection = "notifications"
)

// NotificationDocument is the archived notification shape
type NotificationDocument struct {
	NotificationID uint      `bson:"notification_id"`
	AlertID        uint      `bson:"alert_id"`
	Symbol         string    `bson:"symbol"`
	Title          string    `bson:"title"`
	Message        string    `bson:"message"`
	TriggeredValue string    `bson:"triggered_value"`
	TargetValue    string    `bson:"target_value"`
	Channel        string    `bson:"channel"`
	TriggeredAt    time.Time `bson:"triggered_at"`
}

// MongoArchive handles the Atlas connection and archive operations
type MongoArchive struct {
	client      *mongo.Client
	database    *mongo.Database
	mu          sync.RWMutex
	isConnected bool
	uriSet      bool
	lastError   string
}

// NewMongoArchive connects to Atlas when a URI is configured. An empty
// URI yields a disabled archive, not an error.
func NewMongoArchive(uri string) *MongoArchive {
	if uri == "" {
		log.Println("MONGODB_URI not set, notification archive disabled")
		return &MongoArchive{
			uriSet:    false,
			lastError: "MONGODB_URI environment variable not set",
		}
	}

	a := &MongoArchive{uriSet: true}
	if err := a.connect(uri); err != nil {
		log.Printf("Notification archive unavailable: %v", err)
	}
	return a
}

func (a *MongoArchive) connect(uri string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	clientOptions := options.Client().
		ApplyURI(uri).
		SetServerAPIOptions(options.ServerAPI(options.ServerAPIVersion1)).
		SetMaxPoolSize(10).
		SetMinPoolSize(2).
		SetMaxConnIdleTime(30 * time.Second).
		SetConnectTimeout(30 * time.Second).
		SetRetryWrites(true).
		SetRetryReads(true)

	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		a.lastError = fmt.Sprintf("Failed to connect: %v", err)
		return fmt.Errorf("failed to connect to MongoDB Atlas: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		a.lastError = fmt.Sprintf("Failed to ping: %v", err)
		client.Disconnect(ctx)
		return fmt.Errorf("failed to ping MongoDB Atlas: %w", err)
	}

	a.mu.Lock()
	a.client = client
	a.database = client.Database(DatabaseName)
	a.isConnected = true
	a.lastError = ""
	a.mu.Unlock()

	a.createIndexes()

	log.Println("MongoDB Atlas connected, notification archive enabled")
	return nil
}

func (a *MongoArchive) createIndexes() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	collection := a.database.Collection(NotificationCollection)
	collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "triggered_at", Value: -1}},
	})
	collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "alert_id", Value: 1}},
	})
}

// IsConfigured returns whether the archive is connected and usable
func (a *MongoArchive) IsConfigured() bool {
	if a == nil {
		return false
	}
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.isConnected
}

// Status returns connection status for the health endpoints
func (a *MongoArchive) Status() map[string]interface{} {
	if a == nil {
		return map[string]interface{}{"uri_set": false, "connected": false}
	}
	a.mu.RLock()
	defer a.mu.RUnlock()

	status := map[string]interface{}{
		"uri_set":   a.uriSet,
		"connected": a.isConnected,
	}
	if a.lastError != "" {
		status["error"] = a.lastError
	}
	return status
}

// Close disconnects from Atlas
func (a *MongoArchive) Close() error {
	if a == nil || a.client == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return a.client.Disconnect(ctx)
}

// SaveNotification archives a triggered notification
func (a *MongoArchive) SaveNotification(n *models.Notification) error {
	if !a.IsConfigured() {
		return fmt.Errorf("notification archive not configured")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	doc := NotificationDocument{
		NotificationID: n.ID,
		AlertID:        n.AlertID,
		Symbol:         n.Symbol,
		Title:          n.Title,
		Message:        n.Message,
		TriggeredValue: n.TriggeredValue.String(),
		TargetValue:    n.TargetValue.String(),
		Channel:        n.Channel,
		TriggeredAt:    n.CreatedAt,
	}

	collection := a.database.Collection(NotificationCollection)
	if _, err := collection.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("failed to archive notification %d: %w", n.ID, err)
	}
	return nil
}

// ListRecent returns the most recently archived notifications
func (a *MongoArchive) ListRecent(limit int) ([]NotificationDocument, error) {
	if !a.IsConfigured() {
		return nil, fmt.Errorf("notification archive not configured")
	}
	if limit <= 0 {
		limit = 50
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	collection := a.database.Collection(NotificationCollection)
	opts := options.Find().
		SetSort(bson.D{{Key: "triggered_at", Value: -1}}).
		SetLimit(int64(limit))

	cursor, err := collection.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query archived notifications: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []NotificationDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode archived notifications: %w", err)
	}
	return docs, nil
}
