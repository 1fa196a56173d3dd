package dynamo

import (
	"context"
	"fmt"
	"time"

	"github.com/abytech-hub/notification-core/internal/domain"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// SubscriptionRepo provides typed DynamoDB operations for the push subscriptions table.
// PK: owner_key, SK: endpoint.
type SubscriptionRepo struct {
	client    API
	tableName string
}

func NewSubscriptionRepo(client API, tableName string) *SubscriptionRepo {
	return &SubscriptionRepo{client: client, tableName: tableName}
}

// Upsert writes s keyed by (owner, endpoint). An existing row keeps its id and
// created_at; every other attribute is replaced. The stored row is returned.
func (r *SubscriptionRepo) Upsert(ctx context.Context, s *domain.DeviceSubscription) (*domain.DeviceSubscription, error) {
	now := time.Now().UTC()
	ue, err := buildUpdateExpr(map[string]interface{}{
		"user_id":          s.UserID,
		fieldUserType:      s.UserType,
		"p256dh":           s.P256dh,
		"auth":             s.Auth,
		"content_encoding": s.ContentEncoding,
		"label":            s.Label,
		"user_agent":       s.UserAgent,
		fieldUpdatedAt:     now,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal subscription: %w", err)
	}
	if err := ue.setIfAbsent(fieldSubscriptionID, s.SubscriptionID); err != nil {
		return nil, err
	}
	if err := ue.setIfAbsent(fieldCreatedAt, now); err != nil {
		return nil, err
	}
	out, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(r.tableName),
		Key:                       compositeKey(fieldOwnerKey, s.Owner().Key(), fieldEndpoint, s.Endpoint),
		UpdateExpression:          aws.String(ue.Expr),
		ExpressionAttributeNames:  ue.Names,
		ExpressionAttributeValues: ue.Values,
		ReturnValues:              types.ReturnValueAllNew,
	})
	if err != nil {
		return nil, err
	}
	var stored domain.DeviceSubscription
	if err := attributevalue.UnmarshalMap(out.Attributes, &stored); err != nil {
		return nil, err
	}
	return &stored, nil
}

func (r *SubscriptionRepo) ListByOwner(ctx context.Context, owner domain.Recipient) ([]domain.DeviceSubscription, error) {
	items, err := queryAll(ctx, r.client, &dynamodb.QueryInput{
		TableName:                 aws.String(r.tableName),
		KeyConditionExpression:    aws.String("#o = :o"),
		ExpressionAttributeNames:  map[string]string{"#o": fieldOwnerKey},
		ExpressionAttributeValues: map[string]types.AttributeValue{":o": str(owner.Key())},
	})
	if err != nil {
		return nil, err
	}
	return unmarshalSubscriptions(items)
}

// ListByEndpoint returns every row for endpoint across owners, using the endpoint GSI.
func (r *SubscriptionRepo) ListByEndpoint(ctx context.Context, endpoint string) ([]domain.DeviceSubscription, error) {
	items, err := queryAll(ctx, r.client, &dynamodb.QueryInput{
		TableName:                 aws.String(r.tableName),
		IndexName:                 aws.String(indexEndpoint),
		KeyConditionExpression:    aws.String("#e = :e"),
		ExpressionAttributeNames:  map[string]string{"#e": fieldEndpoint},
		ExpressionAttributeValues: map[string]types.AttributeValue{":e": str(endpoint)},
	})
	if err != nil {
		return nil, err
	}
	return unmarshalSubscriptions(items)
}

func (r *SubscriptionRepo) ListByType(ctx context.Context, t domain.RecipientType) ([]domain.DeviceSubscription, error) {
	items, err := queryAll(ctx, r.client, r.typeQuery(t))
	if err != nil {
		return nil, err
	}
	return unmarshalSubscriptions(items)
}

func (r *SubscriptionRepo) CountByType(ctx context.Context, t domain.RecipientType) (int, error) {
	return countAll(ctx, r.client, r.typeQuery(t))
}

func (r *SubscriptionRepo) typeQuery(t domain.RecipientType) *dynamodb.QueryInput {
	return &dynamodb.QueryInput{
		TableName:                 aws.String(r.tableName),
		IndexName:                 aws.String(indexUserType),
		KeyConditionExpression:    aws.String("#ut = :t"),
		ExpressionAttributeNames:  map[string]string{"#ut": fieldUserType},
		ExpressionAttributeValues: map[string]types.AttributeValue{":t": str(string(t))},
	}
}

// Delete removes one (owner, endpoint) row. It reports whether a row existed;
// deleting an absent row is not an error.
func (r *SubscriptionRepo) Delete(ctx context.Context, owner domain.Recipient, endpoint string) (bool, error) {
	out, err := r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName:    aws.String(r.tableName),
		Key:          compositeKey(fieldOwnerKey, owner.Key(), fieldEndpoint, endpoint),
		ReturnValues: types.ReturnValueAllOld,
	})
	if err != nil {
		return false, err
	}
	return len(out.Attributes) > 0, nil
}

// DeleteAll removes every row owned by owner and returns how many were removed.
func (r *SubscriptionRepo) DeleteAll(ctx context.Context, owner domain.Recipient) (int, error) {
	subs, err := r.ListByOwner(ctx, owner)
	if err != nil {
		return 0, err
	}
	reqs := make([]types.WriteRequest, 0, len(subs))
	for _, s := range subs {
		reqs = append(reqs, types.WriteRequest{DeleteRequest: &types.DeleteRequest{
			Key: compositeKey(fieldOwnerKey, owner.Key(), fieldEndpoint, s.Endpoint),
		}})
	}
	if err := batchWrite(ctx, r.client, r.tableName, reqs); err != nil {
		return 0, err
	}
	return len(subs), nil
}

func unmarshalSubscriptions(items []map[string]types.AttributeValue) ([]domain.DeviceSubscription, error) {
	subs := make([]domain.DeviceSubscription, 0, len(items))
	if err := attributevalue.UnmarshalListOfMaps(items, &subs); err != nil {
		return nil, fmt.Errorf("unmarshal subscriptions: %w", err)
	}
	return subs, nil
}
