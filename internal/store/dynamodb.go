package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"timeoff-bot/internal/model"
)

type dynamoAPI interface {
	PutItem(context.Context, *dynamodb.PutItemInput, ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	UpdateItem(context.Context, *dynamodb.UpdateItemInput, ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	GetItem(context.Context, *dynamodb.GetItemInput, ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
}

// DynamoUserStore keeps users in a table keyed by "slackID", with requests and
// conversation held as nested attributes.
type DynamoUserStore struct {
	client            dynamoAPI
	tableName         string
	initialLeaveCount int
	logger            *slog.Logger
}

var _ UserStore = (*DynamoUserStore)(nil)

func NewDynamoUserStore(client dynamoAPI, tableName string, initialLeaveCount int, logger *slog.Logger) *DynamoUserStore {
	if client == nil {
		panic("store: dynamodb client cannot be nil")
	}
	if tableName == "" {
		panic("store: table name cannot be empty")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &DynamoUserStore{
		client:            client,
		tableName:         tableName,
		initialLeaveCount: initialLeaveCount,
		logger:            logger,
	}
}

func (s *DynamoUserStore) GetOrCreate(ctx context.Context, slackID string) (*model.User, error) {
	user, err := s.GetUser(ctx, slackID)
	if err == nil || !errors.Is(err, ErrNotFound) {
		return user, err
	}

	fresh := model.NewUser(slackID, s.initialLeaveCount)
	item, err := attributevalue.MarshalMap(fresh)
	if err != nil {
		return nil, fmt.Errorf("store: marshal user: %w", err)
	}
	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(s.tableName),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(slackID)"),
	})
	if isConditionFailed(err) {
		// Created by a concurrent turn.
		return s.GetUser(ctx, slackID)
	}
	if err != nil {
		return nil, fmt.Errorf("store: create user: %w", err)
	}
	s.logger.InfoContext(ctx, "store: user created", "slack_id", slackID)
	return fresh, nil
}

func (s *DynamoUserStore) GetUser(ctx context.Context, slackID string) (*model.User, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.tableName),
		Key:            s.key(slackID),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("store: get user: %w", err)
	}
	if out.Item == nil {
		return nil, ErrNotFound
	}

	var user model.User
	if err := attributevalue.UnmarshalMap(out.Item, &user); err != nil {
		return nil, fmt.Errorf("store: decode user: %w", err)
	}
	return normalize(&user), nil
}

func (s *DynamoUserStore) UpdateConversation(ctx context.Context, slackID string, conv model.Conversation) error {
	if conv.Memory == nil {
		conv.Memory = model.Memory{}
	}
	convAttr, err := attributevalue.Marshal(conv)
	if err != nil {
		return fmt.Errorf("store: marshal conversation: %w", err)
	}

	_, err = s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:        aws.String(s.tableName),
		Key:              s.key(slackID),
		UpdateExpression: aws.String("SET #conversation = :conversation, #updated = :updated"),
		ExpressionAttributeNames: map[string]string{
			"#conversation": "conversation",
			"#updated":      "updatedAt",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":conversation": convAttr,
			":updated":      timestamp(time.Now()),
		},
		ConditionExpression: aws.String("attribute_exists(slackID)"),
	})
	if isConditionFailed(err) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("store: update conversation: %w", err)
	}
	return nil
}

func (s *DynamoUserStore) AddLeaveRequest(ctx context.Context, slackID string, req model.LeaveRequest) (int, error) {
	user, err := s.GetUser(ctx, slackID)
	if err != nil {
		return 0, err
	}

	now := time.Now()
	req.ID = user.NextRequestID()
	req.CreatedAt = now
	req.UpdatedAt = now
	reqAttr, err := attributevalue.Marshal(req)
	if err != nil {
		return 0, fmt.Errorf("store: marshal leave request: %w", err)
	}

	_, err = s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:        aws.String(s.tableName),
		Key:              s.key(slackID),
		UpdateExpression: aws.String("SET #requests = list_append(#requests, :request), #updated = :updated"),
		ExpressionAttributeNames: map[string]string{
			"#requests": "requests",
			"#updated":  "updatedAt",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":request": &types.AttributeValueMemberL{Value: []types.AttributeValue{reqAttr}},
			":count":   &types.AttributeValueMemberN{Value: strconv.Itoa(len(user.Requests))},
			":updated": timestamp(now),
		},
		ConditionExpression: aws.String("size(#requests) = :count"),
	})
	if isConditionFailed(err) {
		return 0, ErrConflict
	}
	if err != nil {
		return 0, fmt.Errorf("store: add leave request: %w", err)
	}
	return req.ID, nil
}

func (s *DynamoUserStore) UpdateLeaveRequestStatus(ctx context.Context, slackID string, id int, from, to model.LeaveStatus) (*model.User, error) {
	user, err := s.GetUser(ctx, slackID)
	if err != nil {
		return nil, err
	}
	idx := -1
	for i, r := range user.Requests {
		if r.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, ErrNotFound
	}
	if user.Requests[idx].Status != from {
		return nil, ErrStatusMismatch
	}

	now := time.Now()
	path := "#requests[" + strconv.Itoa(idx) + "]"
	out, err := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:        aws.String(s.tableName),
		Key:              s.key(slackID),
		UpdateExpression: aws.String("SET " + path + ".#status = :to, " + path + ".#updated = :updated, #updated = :updated"),
		ExpressionAttributeNames: map[string]string{
			"#requests": "requests",
			"#status":   "status",
			"#id":       "id",
			"#updated":  "updatedAt",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":id":      &types.AttributeValueMemberN{Value: strconv.Itoa(id)},
			":from":    &types.AttributeValueMemberS{Value: string(from)},
			":to":      &types.AttributeValueMemberS{Value: string(to)},
			":updated": timestamp(now),
		},
		ConditionExpression: aws.String(path + ".#id = :id AND " + path + ".#status = :from"),
		ReturnValues:        types.ReturnValueAllNew,
	})
	if isConditionFailed(err) {
		return nil, ErrStatusMismatch
	}
	if err != nil {
		return nil, fmt.Errorf("store: update leave request status: %w", err)
	}

	var updated model.User
	if err := attributevalue.UnmarshalMap(out.Attributes, &updated); err != nil {
		return nil, fmt.Errorf("store: decode user: %w", err)
	}
	return normalize(&updated), nil
}

func (s *DynamoUserStore) key(slackID string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"slackID": &types.AttributeValueMemberS{Value: slackID},
	}
}

func timestamp(t time.Time) types.AttributeValue {
	return &types.AttributeValueMemberS{Value: t.UTC().Format(time.RFC3339Nano)}
}

func isConditionFailed(err error) bool {
	var ccf *types.ConditionalCheckFailedException
	return errors.As(err, &ccf)
}
