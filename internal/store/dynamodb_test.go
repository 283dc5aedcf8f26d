package store

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"timeoff-bot/internal/model"
)

type mockDynamo struct {
	item map[string]types.AttributeValue

	putInput     *dynamodb.PutItemInput
	updateInputs []*dynamodb.UpdateItemInput

	getErr    error
	putErr    error
	updateErr error
	updateOut *dynamodb.UpdateItemOutput
}

func (m *mockDynamo) GetItem(_ context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	return &dynamodb.GetItemOutput{Item: m.item}, nil
}

func (m *mockDynamo) PutItem(_ context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	m.putInput = in
	if m.putErr != nil {
		return nil, m.putErr
	}
	return &dynamodb.PutItemOutput{}, nil
}

func (m *mockDynamo) UpdateItem(_ context.Context, in *dynamodb.UpdateItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
	m.updateInputs = append(m.updateInputs, in)
	if m.updateErr != nil {
		return nil, m.updateErr
	}
	if m.updateOut != nil {
		return m.updateOut, nil
	}
	return &dynamodb.UpdateItemOutput{}, nil
}

func marshalUser(t *testing.T, u *model.User) map[string]types.AttributeValue {
	t.Helper()
	item, err := attributevalue.MarshalMap(u)
	require.NoError(t, err)
	return item
}

func TestDynamoUserStore_GetOrCreate_InsertsDefaultRecord(t *testing.T) {
	mock := &mockDynamo{}
	s := NewDynamoUserStore(mock, "users", 0, nil)

	u, err := s.GetOrCreate(context.Background(), "U1")
	require.NoError(t, err)
	assert.Equal(t, 25, u.InitialLeaveCount)

	require.NotNil(t, mock.putInput)
	assert.Equal(t, "attribute_not_exists(slackID)", aws.ToString(mock.putInput.ConditionExpression))

	var stored model.User
	require.NoError(t, attributevalue.UnmarshalMap(mock.putInput.Item, &stored))
	assert.Equal(t, "U1", stored.SlackID)
	assert.Equal(t, model.DefaultConversationState, stored.Conversation.State)
	assert.Contains(t, mock.putInput.Item, "slackID")
	assert.Contains(t, mock.putInput.Item, "initialLeaveCount")
}

func TestDynamoUserStore_GetOrCreate_ReturnsExisting(t *testing.T) {
	existing := model.NewUser("U1", 30)
	existing.LineManagerID = "UMGR"
	mock := &mockDynamo{item: marshalUser(t, existing)}
	s := NewDynamoUserStore(mock, "users", 25, nil)

	u, err := s.GetOrCreate(context.Background(), "U1")
	require.NoError(t, err)
	assert.Equal(t, 30, u.InitialLeaveCount)
	assert.Equal(t, "UMGR", u.LineManagerID)
	assert.Nil(t, mock.putInput)
}

func TestDynamoUserStore_UpdateConversation(t *testing.T) {
	mock := &mockDynamo{}
	s := NewDynamoUserStore(mock, "users", 25, nil)

	err := s.UpdateConversation(context.Background(), "U1", model.Conversation{State: "AL_DETAILS_ASKED"})
	require.NoError(t, err)
	require.Len(t, mock.updateInputs, 1)

	in := mock.updateInputs[0]
	assert.Equal(t, "conversation", in.ExpressionAttributeNames["#conversation"])
	conv, ok := in.ExpressionAttributeValues[":conversation"].(*types.AttributeValueMemberM)
	require.True(t, ok)
	assert.Equal(t, "AL_DETAILS_ASKED", conv.Value["state"].(*types.AttributeValueMemberS).Value)
	_, ok = conv.Value["memory"].(*types.AttributeValueMemberM)
	assert.True(t, ok, "nil memory must be stored as an empty map")
}

func TestDynamoUserStore_UpdateConversation_UnknownUser(t *testing.T) {
	mock := &mockDynamo{updateErr: &types.ConditionalCheckFailedException{Message: aws.String("nope")}}
	s := NewDynamoUserStore(mock, "users", 25, nil)

	err := s.UpdateConversation(context.Background(), "U1", model.Conversation{})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDynamoUserStore_AddLeaveRequest_ConditionsOnLength(t *testing.T) {
	existing := model.NewUser("U1", 25)
	existing.Requests = []model.LeaveRequest{{ID: 1, LeaveCount: 2, Status: model.LeaveStatusDeclined}}
	mock := &mockDynamo{item: marshalUser(t, existing)}
	s := NewDynamoUserStore(mock, "users", 25, nil)

	id, err := s.AddLeaveRequest(context.Background(), "U1", model.LeaveRequest{
		StartDate: "2024-01-08", ReturnDate: "2024-01-15", LeaveCount: 5, Status: model.LeaveStatusRequested,
	})
	require.NoError(t, err)
	assert.Equal(t, 2, id)

	in := mock.updateInputs[0]
	assert.Equal(t, "size(#requests) = :count", aws.ToString(in.ConditionExpression))
	assert.Equal(t, "1", in.ExpressionAttributeValues[":count"].(*types.AttributeValueMemberN).Value)

	list := in.ExpressionAttributeValues[":request"].(*types.AttributeValueMemberL)
	require.Len(t, list.Value, 1)
	var req model.LeaveRequest
	require.NoError(t, attributevalue.Unmarshal(list.Value[0], &req))
	assert.Equal(t, 2, req.ID)
	assert.Equal(t, 5, req.LeaveCount)
}

func TestDynamoUserStore_AddLeaveRequest_Conflict(t *testing.T) {
	mock := &mockDynamo{
		item:      marshalUser(t, model.NewUser("U1", 25)),
		updateErr: &types.ConditionalCheckFailedException{},
	}
	s := NewDynamoUserStore(mock, "users", 25, nil)

	_, err := s.AddLeaveRequest(context.Background(), "U1", model.LeaveRequest{})
	assert.ErrorIs(t, err, ErrConflict)
}

func TestDynamoUserStore_UpdateLeaveRequestStatus(t *testing.T) {
	existing := model.NewUser("U1", 25)
	existing.Requests = []model.LeaveRequest{
		{ID: 1, LeaveCount: 2, Status: model.LeaveStatusDeclined},
		{ID: 2, LeaveCount: 5, Status: model.LeaveStatusRequested},
	}
	after := *existing
	after.Requests = []model.LeaveRequest{existing.Requests[0], existing.Requests[1]}
	after.Requests[1].Status = model.LeaveStatusApproved

	mock := &mockDynamo{
		item:      marshalUser(t, existing),
		updateOut: &dynamodb.UpdateItemOutput{Attributes: marshalUser(t, &after)},
	}
	s := NewDynamoUserStore(mock, "users", 25, nil)

	u, err := s.UpdateLeaveRequestStatus(context.Background(), "U1", 2, model.LeaveStatusRequested, model.LeaveStatusApproved)
	require.NoError(t, err)
	assert.Equal(t, 20, u.RemainingLeave())

	in := mock.updateInputs[0]
	assert.Contains(t, aws.ToString(in.UpdateExpression), "#requests[1].#status = :to")
	assert.Equal(t, "#requests[1].#id = :id AND #requests[1].#status = :from", aws.ToString(in.ConditionExpression))
	assert.Equal(t, types.ReturnValueAllNew, in.ReturnValues)
}

func TestDynamoUserStore_UpdateLeaveRequestStatus_Rejects(t *testing.T) {
	existing := model.NewUser("U1", 25)
	existing.Requests = []model.LeaveRequest{{ID: 1, LeaveCount: 2, Status: model.LeaveStatusApproved}}
	mock := &mockDynamo{item: marshalUser(t, existing)}
	s := NewDynamoUserStore(mock, "users", 25, nil)

	_, err := s.UpdateLeaveRequestStatus(context.Background(), "U1", 1, model.LeaveStatusRequested, model.LeaveStatusDeclined)
	assert.ErrorIs(t, err, ErrStatusMismatch)

	_, err = s.UpdateLeaveRequestStatus(context.Background(), "U1", 7, model.LeaveStatusRequested, model.LeaveStatusDeclined)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Empty(t, mock.updateInputs)
}

func TestDynamoUserStore_PropagatesErrors(t *testing.T) {
	mock := &mockDynamo{getErr: errors.New("dynamo failed")}
	s := NewDynamoUserStore(mock, "users", 25, nil)

	_, err := s.GetOrCreate(context.Background(), "U1")
	assert.ErrorContains(t, err, "dynamo failed")
}

func TestNewDynamoUserStore_PanicsOnMisuse(t *testing.T) {
	assert.Panics(t, func() { NewDynamoUserStore(nil, "users", 25, nil) })
	assert.Panics(t, func() { NewDynamoUserStore(&mockDynamo{}, "", 25, nil) })
}
