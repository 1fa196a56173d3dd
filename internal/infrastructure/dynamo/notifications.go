package dynamo

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/abytech-hub/notification-core/internal/domain"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// NotificationRepo provides typed DynamoDB operations for the notifications table and
// the per-recipient inbox table that indexes it.
//
// notifications: PK notification_id, holds the full document including every recipient.
// inbox:         PK recipient_key, SK notification_id (a ULID, so SK order is creation order).
type NotificationRepo struct {
	client     API
	tableName  string
	inboxTable string
}

func NewNotificationRepo(client API, tableName, inboxTable string) *NotificationRepo {
	return &NotificationRepo{client: client, tableName: tableName, inboxTable: inboxTable}
}

type inboxRow struct {
	RecipientKey   string    `dynamodbav:"recipient_key"`
	NotificationID string    `dynamodbav:"notification_id"`
	Read           bool      `dynamodbav:"read"`
	SearchText     string    `dynamodbav:"search_text"`
	CreatedAt      time.Time `dynamodbav:"created_at"`
}

func searchText(n *domain.Notification) string {
	return strings.ToLower(n.Title + "\n" + n.Message)
}

// Put stores the notification document and one inbox row per recipient.
func (r *NotificationRepo) Put(ctx context.Context, n *domain.Notification) error {
	item, err := attributevalue.MarshalMap(n)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}
	if _, err := r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.tableName),
		Item:      item,
	}); err != nil {
		return err
	}

	reqs := make([]types.WriteRequest, 0, len(n.Recipients))
	for _, nr := range n.Recipients {
		row, err := attributevalue.MarshalMap(inboxRow{
			RecipientKey:   nr.Recipient().Key(),
			NotificationID: n.NotificationID,
			Read:           nr.Read,
			SearchText:     searchText(n),
			CreatedAt:      n.CreatedAt,
		})
		if err != nil {
			return fmt.Errorf("marshal inbox row: %w", err)
		}
		reqs = append(reqs, types.WriteRequest{PutRequest: &types.PutRequest{Item: row}})
	}
	return batchWrite(ctx, r.client, r.inboxTable, reqs)
}

func (r *NotificationRepo) Get(ctx context.Context, notificationID string) (*domain.Notification, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.tableName),
		Key:       strKey(fieldNotificationID, notificationID),
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil {
		return nil, fmt.Errorf("notification not found: %w", domain.ErrNotFound)
	}
	var n domain.Notification
	if err := attributevalue.UnmarshalMap(out.Item, &n); err != nil {
		return nil, err
	}
	return &n, nil
}

// ListForRecipient returns one page of rc's notifications, newest first, flattened for rc,
// together with the total number of matches. Search is a case-insensitive substring
// match on title and message.
func (r *NotificationRepo) ListForRecipient(ctx context.Context, rc domain.Recipient, q domain.NotificationQuery) ([]domain.Notification, int, error) {
	q = q.Normalize()
	in := r.inboxQuery(rc)
	in.ProjectionExpression = aws.String("#nid")
	in.ExpressionAttributeNames["#nid"] = fieldNotificationID
	if term := strings.ToLower(strings.TrimSpace(q.Search)); term != "" {
		in.FilterExpression = aws.String("contains(#st, :q)")
		in.ExpressionAttributeNames["#st"] = fieldSearchText
		in.ExpressionAttributeValues[":q"] = str(term)
	}
	rows, err := queryAll(ctx, r.client, in)
	if err != nil {
		return nil, 0, err
	}
	total := len(rows)
	start := (q.Page - 1) * q.Limit
	if start >= total {
		return []domain.Notification{}, total, nil
	}
	end := start + q.Limit
	if end > total {
		end = total
	}

	ids := make([]string, 0, end-start)
	keys := make([]map[string]types.AttributeValue, 0, end-start)
	for _, row := range rows[start:end] {
		var ir inboxRow
		if err := attributevalue.UnmarshalMap(row, &ir); err != nil {
			return nil, 0, err
		}
		ids = append(ids, ir.NotificationID)
		keys = append(keys, strKey(fieldNotificationID, ir.NotificationID))
	}
	items, err := batchGet(ctx, r.client, r.tableName, keys)
	if err != nil {
		return nil, 0, err
	}
	byID := make(map[string]domain.Notification, len(items))
	for _, item := range items {
		var n domain.Notification
		if err := attributevalue.UnmarshalMap(item, &n); err != nil {
			return nil, 0, err
		}
		byID[n.NotificationID] = n
	}
	page := make([]domain.Notification, 0, len(ids))
	for _, nid := range ids {
		if n, ok := byID[nid]; ok {
			page = append(page, n.FlattenFor(rc))
		}
	}
	return page, total, nil
}

// MarkRead flips rc's read flag on one notification. It reports whether the flag
// changed; marking an already-read notification is a no-op. Returns ErrNotFound
// when rc is not a recipient of the notification.
func (r *NotificationRepo) MarkRead(ctx context.Context, notificationID string, rc domain.Recipient) (bool, error) {
	_, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:           aws.String(r.inboxTable),
		Key:                 compositeKey(fieldRecipientKey, rc.Key(), fieldNotificationID, notificationID),
		UpdateExpression:    aws.String("SET #rd = :t"),
		ConditionExpression: aws.String("attribute_exists(#rk) AND #rd = :f"),
		ExpressionAttributeNames: map[string]string{
			"#rd": fieldRead,
			"#rk": fieldRecipientKey,
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":t": &types.AttributeValueMemberBOOL{Value: true},
			":f": &types.AttributeValueMemberBOOL{Value: false},
		},
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if !errors.As(err, &ccf) {
			return false, err
		}
		exists, gErr := r.inboxRowExists(ctx, notificationID, rc)
		if gErr != nil {
			return false, gErr
		}
		if !exists {
			return false, fmt.Errorf("notification not found: %w", domain.ErrNotFound)
		}
		return false, nil
	}

	n, err := r.Get(ctx, notificationID)
	if err != nil {
		return true, err
	}
	i := n.RecipientIndex(rc)
	if i < 0 {
		return true, nil
	}
	_, err = r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(r.tableName),
		Key:                       strKey(fieldNotificationID, notificationID),
		UpdateExpression:          aws.String(fmt.Sprintf("SET #rs[%d].#rd = :t", i)),
		ExpressionAttributeNames:  map[string]string{"#rs": fieldRecipients, "#rd": fieldRead},
		ExpressionAttributeValues: map[string]types.AttributeValue{":t": &types.AttributeValueMemberBOOL{Value: true}},
	})
	return true, err
}

// ListUnreadIDs returns rc's unread notification ids, newest first.
func (r *NotificationRepo) ListUnreadIDs(ctx context.Context, rc domain.Recipient) ([]string, error) {
	in := r.unreadQuery(rc)
	in.ProjectionExpression = aws.String("#nid")
	in.ExpressionAttributeNames["#nid"] = fieldNotificationID
	rows, err := queryAll(ctx, r.client, in)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(rows))
	for _, row := range rows {
		var ir inboxRow
		if err := attributevalue.UnmarshalMap(row, &ir); err != nil {
			return nil, err
		}
		ids = append(ids, ir.NotificationID)
	}
	return ids, nil
}

func (r *NotificationRepo) CountUnread(ctx context.Context, rc domain.Recipient) (int, error) {
	return countAll(ctx, r.client, r.unreadQuery(rc))
}

func (r *NotificationRepo) inboxQuery(rc domain.Recipient) *dynamodb.QueryInput {
	return &dynamodb.QueryInput{
		TableName:                 aws.String(r.inboxTable),
		KeyConditionExpression:    aws.String("#rk = :rk"),
		ExpressionAttributeNames:  map[string]string{"#rk": fieldRecipientKey},
		ExpressionAttributeValues: map[string]types.AttributeValue{":rk": str(rc.Key())},
		ScanIndexForward:          aws.Bool(false),
	}
}

func (r *NotificationRepo) unreadQuery(rc domain.Recipient) *dynamodb.QueryInput {
	in := r.inboxQuery(rc)
	in.FilterExpression = aws.String("#rd = :f")
	in.ExpressionAttributeNames["#rd"] = fieldRead
	in.ExpressionAttributeValues[":f"] = &types.AttributeValueMemberBOOL{Value: false}
	return in
}

func (r *NotificationRepo) inboxRowExists(ctx context.Context, notificationID string, rc domain.Recipient) (bool, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:            aws.String(r.inboxTable),
		Key:                  compositeKey(fieldRecipientKey, rc.Key(), fieldNotificationID, notificationID),
		ProjectionExpression: aws.String("#rk"),
		ExpressionAttributeNames: map[string]string{
			"#rk": fieldRecipientKey,
		},
	})
	if err != nil {
		return false, err
	}
	return out.Item != nil, nil
}
