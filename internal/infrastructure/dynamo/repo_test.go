package dynamo

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/abytech-hub/notification-core/internal/domain"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	admin1 = domain.Recipient{ID: "u1", Type: domain.RecipientAdmin}
	admin2 = domain.Recipient{ID: "u2", Type: domain.RecipientAdmin}
)

func mustMarshal(t *testing.T, v interface{}) map[string]types.AttributeValue {
	t.Helper()
	item, err := attributevalue.MarshalMap(v)
	require.NoError(t, err)
	return item
}

func TestSubscriptionRepo_Upsert_KeepsIdentity(t *testing.T) {
	f := &fakeDynamo{
		updateFn: func(in *dynamodb.UpdateItemInput) (*dynamodb.UpdateItemOutput, error) {
			return &dynamodb.UpdateItemOutput{Attributes: mustMarshal(t, domain.DeviceSubscription{
				SubscriptionID: "old-id",
				UserID:         "u1",
				UserType:       domain.RecipientAdmin,
				Endpoint:       "https://push.example/a",
				Label:          "Chrome on macOS",
			})}, nil
		},
	}
	repo := NewSubscriptionRepo(f, "subs")

	stored, err := repo.Upsert(context.Background(), &domain.DeviceSubscription{
		SubscriptionID: "new-id",
		UserID:         "u1",
		UserType:       domain.RecipientAdmin,
		Endpoint:       "https://push.example/a",
		Label:          "Chrome on macOS",
	})
	require.NoError(t, err)
	assert.Equal(t, "old-id", stored.SubscriptionID)

	require.Len(t, f.updates, 1)
	in := f.updates[0]
	assert.Equal(t, "ADMIN#u1", in.Key[fieldOwnerKey].(*types.AttributeValueMemberS).Value)
	expr := aws.ToString(in.UpdateExpression)
	assert.Contains(t, expr, "if_not_exists")
	var keep []string
	for name, field := range in.ExpressionAttributeNames {
		if strings.HasPrefix(name, "#k") {
			keep = append(keep, field)
		}
	}
	assert.ElementsMatch(t, []string{fieldSubscriptionID, fieldCreatedAt}, keep)
	assert.Contains(t, in.ExpressionAttributeNames, "#f0")
	assert.Equal(t, types.ReturnValueAllNew, in.ReturnValues)
}

func TestSubscriptionRepo_Delete_AbsentRow(t *testing.T) {
	repo := NewSubscriptionRepo(&fakeDynamo{}, "subs")
	removed, err := repo.Delete(context.Background(), admin1, "https://push.example/a")
	require.NoError(t, err)
	assert.False(t, removed)
}

func TestSubscriptionRepo_Delete_ExistingRow(t *testing.T) {
	f := &fakeDynamo{
		deleteFn: func(in *dynamodb.DeleteItemInput) (*dynamodb.DeleteItemOutput, error) {
			assert.Equal(t, "ADMIN#u1", in.Key[fieldOwnerKey].(*types.AttributeValueMemberS).Value)
			return &dynamodb.DeleteItemOutput{Attributes: map[string]types.AttributeValue{
				fieldEndpoint: str("https://push.example/a"),
			}}, nil
		},
	}
	removed, err := NewSubscriptionRepo(f, "subs").Delete(context.Background(), admin1, "https://push.example/a")
	require.NoError(t, err)
	assert.True(t, removed)
}

func TestSubscriptionRepo_DeleteAll(t *testing.T) {
	f := &fakeDynamo{
		queryFn: func(in *dynamodb.QueryInput) (*dynamodb.QueryOutput, error) {
			return &dynamodb.QueryOutput{Items: []map[string]types.AttributeValue{
				mustMarshal(t, domain.DeviceSubscription{OwnerKey: "ADMIN#u1", UserID: "u1", UserType: domain.RecipientAdmin, Endpoint: "https://push.example/a"}),
				mustMarshal(t, domain.DeviceSubscription{OwnerKey: "ADMIN#u1", UserID: "u1", UserType: domain.RecipientAdmin, Endpoint: "https://push.example/b"}),
			}}, nil
		},
	}
	n, err := NewSubscriptionRepo(f, "subs").DeleteAll(context.Background(), admin1)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	require.Len(t, f.batchWrites, 1)
	reqs := f.batchWrites[0].RequestItems["subs"]
	require.Len(t, reqs, 2)
	assert.NotNil(t, reqs[0].DeleteRequest)
}

func TestSubscriptionRepo_DeleteAll_NothingOwned(t *testing.T) {
	f := &fakeDynamo{}
	n, err := NewSubscriptionRepo(f, "subs").DeleteAll(context.Background(), admin1)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Empty(t, f.batchWrites)
}

func TestSubscriptionRepo_ListByEndpoint_UsesIndex(t *testing.T) {
	f := &fakeDynamo{}
	_, err := NewSubscriptionRepo(f, "subs").ListByEndpoint(context.Background(), "https://push.example/a")
	require.NoError(t, err)
	require.Len(t, f.queries, 1)
	assert.Equal(t, indexEndpoint, aws.ToString(f.queries[0].IndexName))
}

func TestSubscriptionRepo_CountByType(t *testing.T) {
	f := &fakeDynamo{
		queryFn: func(in *dynamodb.QueryInput) (*dynamodb.QueryOutput, error) {
			assert.Equal(t, types.SelectCount, in.Select)
			return &dynamodb.QueryOutput{Count: 3}, nil
		},
	}
	n, err := NewSubscriptionRepo(f, "subs").CountByType(context.Background(), domain.RecipientUser)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestNotificationRepo_Put_WritesInboxRowPerRecipient(t *testing.T) {
	f := &fakeDynamo{}
	n := &domain.Notification{
		NotificationID: "n1",
		Recipients: []domain.NotificationRecipient{
			{ID: "u1", Type: domain.RecipientAdmin},
			{ID: "u2", Type: domain.RecipientAdmin},
		},
		Title:     "Invoice Ready",
		Message:   "Your invoice is available",
		CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, NewNotificationRepo(f, "notifications", "inbox").Put(context.Background(), n))
	require.Len(t, f.puts, 1)
	require.Len(t, f.batchWrites, 1)
	rows := f.batchWrites[0].RequestItems["inbox"]
	require.Len(t, rows, 2)

	var ir inboxRow
	require.NoError(t, attributevalue.UnmarshalMap(rows[1].PutRequest.Item, &ir))
	assert.Equal(t, "ADMIN#u2", ir.RecipientKey)
	assert.Equal(t, "invoice ready\nyour invoice is available", ir.SearchText)
	assert.False(t, ir.Read)
}

func TestNotificationRepo_MarkRead_AlreadyRead(t *testing.T) {
	f := &fakeDynamo{
		updateFn: func(*dynamodb.UpdateItemInput) (*dynamodb.UpdateItemOutput, error) {
			return nil, &types.ConditionalCheckFailedException{Message: aws.String("read")}
		},
		getFn: func(in *dynamodb.GetItemInput) (*dynamodb.GetItemOutput, error) {
			assert.Equal(t, "inbox", aws.ToString(in.TableName))
			return &dynamodb.GetItemOutput{Item: map[string]types.AttributeValue{fieldRecipientKey: str("ADMIN#u1")}}, nil
		},
	}
	changed, err := NewNotificationRepo(f, "notifications", "inbox").MarkRead(context.Background(), "n1", admin1)
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Len(t, f.updates, 1)
}

func TestNotificationRepo_MarkRead_NotARecipient(t *testing.T) {
	f := &fakeDynamo{
		updateFn: func(*dynamodb.UpdateItemInput) (*dynamodb.UpdateItemOutput, error) {
			return nil, &types.ConditionalCheckFailedException{Message: aws.String("missing")}
		},
	}
	_, err := NewNotificationRepo(f, "notifications", "inbox").MarkRead(context.Background(), "n1", admin1)
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestNotificationRepo_MarkRead_UpdatesRecipientEntry(t *testing.T) {
	doc := domain.Notification{
		NotificationID: "n1",
		Recipients: []domain.NotificationRecipient{
			{ID: "u2", Type: domain.RecipientAdmin},
			{ID: "u1", Type: domain.RecipientAdmin},
		},
		Title: "t",
	}
	f := &fakeDynamo{
		getFn: func(in *dynamodb.GetItemInput) (*dynamodb.GetItemOutput, error) {
			return &dynamodb.GetItemOutput{Item: mustMarshal(t, doc)}, nil
		},
	}
	changed, err := NewNotificationRepo(f, "notifications", "inbox").MarkRead(context.Background(), "n1", admin1)
	require.NoError(t, err)
	assert.True(t, changed)
	require.Len(t, f.updates, 2)
	assert.Equal(t, "inbox", aws.ToString(f.updates[0].TableName))
	assert.Equal(t, "notifications", aws.ToString(f.updates[1].TableName))
	assert.Equal(t, "SET #rs[1].#rd = :t", aws.ToString(f.updates[1].UpdateExpression))
}

func TestNotificationRepo_ListForRecipient_SlicesPage(t *testing.T) {
	f := &fakeDynamo{
		queryFn: func(in *dynamodb.QueryInput) (*dynamodb.QueryOutput, error) {
			assert.False(t, aws.ToBool(in.ScanIndexForward))
			assert.Equal(t, "contains(#st, :q)", aws.ToString(in.FilterExpression))
			assert.Equal(t, "invoice", in.ExpressionAttributeValues[":q"].(*types.AttributeValueMemberS).Value)
			return &dynamodb.QueryOutput{Items: []map[string]types.AttributeValue{
				{fieldNotificationID: str("n3")},
				{fieldNotificationID: str("n2")},
				{fieldNotificationID: str("n1")},
			}}, nil
		},
		batchGetFn: func(in *dynamodb.BatchGetItemInput) (*dynamodb.BatchGetItemOutput, error) {
			keys := in.RequestItems["notifications"].Keys
			require.Len(t, keys, 1)
			assert.Equal(t, "n1", keys[0][fieldNotificationID].(*types.AttributeValueMemberS).Value)
			return &dynamodb.BatchGetItemOutput{Responses: map[string][]map[string]types.AttributeValue{
				"notifications": {mustMarshal(t, domain.Notification{
					NotificationID: "n1",
					Recipients:     []domain.NotificationRecipient{{ID: "u1", Type: domain.RecipientAdmin, Read: true}},
					Title:          "Invoice",
				})},
			}}, nil
		},
	}
	page, total, err := NewNotificationRepo(f, "notifications", "inbox").ListForRecipient(context.Background(), admin1,
		domain.NotificationQuery{Page: 2, Limit: 2, Search: " Invoice "})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	require.Len(t, page, 1)
	require.NotNil(t, page[0].Read)
	assert.True(t, *page[0].Read)
}

func TestNotificationRepo_ListForRecipient_PastLastPage(t *testing.T) {
	f := &fakeDynamo{
		queryFn: func(*dynamodb.QueryInput) (*dynamodb.QueryOutput, error) {
			return &dynamodb.QueryOutput{Items: []map[string]types.AttributeValue{{fieldNotificationID: str("n1")}}}, nil
		},
	}
	page, total, err := NewNotificationRepo(f, "notifications", "inbox").ListForRecipient(context.Background(), admin2,
		domain.NotificationQuery{Page: 5, Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Empty(t, page)
	assert.Empty(t, f.batchGets)
}

func TestNotificationRepo_CountUnread(t *testing.T) {
	f := &fakeDynamo{
		queryFn: func(in *dynamodb.QueryInput) (*dynamodb.QueryOutput, error) {
			assert.Equal(t, "#rd = :f", aws.ToString(in.FilterExpression))
			return &dynamodb.QueryOutput{Count: 4}, nil
		},
	}
	n, err := NewNotificationRepo(f, "notifications", "inbox").CountUnread(context.Background(), admin1)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
}
