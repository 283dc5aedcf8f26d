package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"timeoff-bot/internal/model"
)

// MongoUserStore keeps users in the "users" collection, one document per Slack ID
// with requests embedded.
type MongoUserStore struct {
	users             *mongo.Collection
	initialLeaveCount int
}

var _ UserStore = (*MongoUserStore)(nil)

func NewMongoUserStore(ctx context.Context, db *MongoDB, initialLeaveCount int) (*MongoUserStore, error) {
	users := db.Collection("users")

	if _, err := users.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "slack_id", Value: 1}},
		Options: options.Index().SetUnique(true),
	}); err != nil {
		return nil, fmt.Errorf("create users indexes: %w", err)
	}

	return &MongoUserStore{users: users, initialLeaveCount: initialLeaveCount}, nil
}

func (s *MongoUserStore) GetOrCreate(ctx context.Context, slackID string) (*model.User, error) {
	fresh := model.NewUser(slackID, s.initialLeaveCount)

	update := bson.M{"$setOnInsert": bson.M{
		"line_manager_id":     fresh.LineManagerID,
		"auto_approval":       fresh.AutoApproval,
		"initial_leave_count": fresh.InitialLeaveCount,
		"requests":            bson.A{},
		"conversation": bson.M{
			"state":  fresh.Conversation.State,
			"memory": bson.M{},
		},
		"created_at": fresh.CreatedAt,
		"updated_at": fresh.UpdatedAt,
	}}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)

	var user model.User
	if err := s.users.FindOneAndUpdate(ctx, bson.M{"slack_id": slackID}, update, opts).Decode(&user); err != nil {
		return nil, fmt.Errorf("get or create user: %w", err)
	}
	return normalize(&user), nil
}

func (s *MongoUserStore) GetUser(ctx context.Context, slackID string) (*model.User, error) {
	var user model.User
	err := s.users.FindOne(ctx, bson.M{"slack_id": slackID}).Decode(&user)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}
	return normalize(&user), nil
}

func (s *MongoUserStore) UpdateConversation(ctx context.Context, slackID string, conv model.Conversation) error {
	if conv.Memory == nil {
		conv.Memory = model.Memory{}
	}
	res, err := s.users.UpdateOne(ctx, bson.M{"slack_id": slackID}, bson.M{"$set": bson.M{
		"conversation": conv,
		"updated_at":   time.Now(),
	}})
	if err != nil {
		return fmt.Errorf("update conversation: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// AddLeaveRequest only appends if the request list still has the length it was
// read with, so two concurrent appends cannot claim the same id.
func (s *MongoUserStore) AddLeaveRequest(ctx context.Context, slackID string, req model.LeaveRequest) (int, error) {
	user, err := s.GetUser(ctx, slackID)
	if err != nil {
		return 0, err
	}

	now := time.Now()
	req.ID = user.NextRequestID()
	req.CreatedAt = now
	req.UpdatedAt = now

	res, err := s.users.UpdateOne(ctx,
		bson.M{"slack_id": slackID, "requests": bson.M{"$size": len(user.Requests)}},
		bson.M{
			"$push": bson.M{"requests": req},
			"$set":  bson.M{"updated_at": now},
		})
	if err != nil {
		return 0, fmt.Errorf("add leave request: %w", err)
	}
	if res.MatchedCount == 0 {
		return 0, ErrConflict
	}
	return req.ID, nil
}

func (s *MongoUserStore) UpdateLeaveRequestStatus(ctx context.Context, slackID string, id int, from, to model.LeaveStatus) (*model.User, error) {
	now := time.Now()
	filter := bson.M{
		"slack_id": slackID,
		"requests": bson.M{"$elemMatch": bson.M{"id": id, "status": from}},
	}
	update := bson.M{"$set": bson.M{
		"requests.$.status":     to,
		"requests.$.updated_at": now,
		"updated_at":            now,
	}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var user model.User
	err := s.users.FindOneAndUpdate(ctx, filter, update, opts).Decode(&user)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, s.explainMiss(ctx, slackID, id)
	}
	if err != nil {
		return nil, fmt.Errorf("update leave request status: %w", err)
	}
	return normalize(&user), nil
}

// explainMiss tells apart a missing request from one already moved on.
func (s *MongoUserStore) explainMiss(ctx context.Context, slackID string, id int) error {
	user, err := s.GetUser(ctx, slackID)
	if err != nil {
		return err
	}
	if user.Request(id) == nil {
		return ErrNotFound
	}
	return ErrStatusMismatch
}
