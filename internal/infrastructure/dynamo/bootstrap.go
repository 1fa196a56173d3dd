package dynamo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/abytech-hub/notification-core/internal/config"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

type tableCreator interface {
	CreateTable(ctx context.Context, in *dynamodb.CreateTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.CreateTableOutput, error)
}

// Bootstrap creates the subscription, notification and inbox tables if they
// don't already exist. Tables that exist are skipped; other failures are
// joined into the returned error after every table has been tried.
func Bootstrap(ctx context.Context, client tableCreator, tables config.DynamoTables) error {
	var errs []error
	for _, in := range tableSpecs(tables) {
		if err := createTable(ctx, client, in); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func tableSpecs(tables config.DynamoTables) []*dynamodb.CreateTableInput {
	subscriptions := &dynamodb.CreateTableInput{
		TableName:   aws.String(tables.Subscriptions),
		BillingMode: types.BillingModePayPerRequest,
		AttributeDefinitions: []types.AttributeDefinition{
			{AttributeName: aws.String(fieldOwnerKey), AttributeType: types.ScalarAttributeTypeS},
			{AttributeName: aws.String(fieldEndpoint), AttributeType: types.ScalarAttributeTypeS},
			{AttributeName: aws.String(fieldUserType), AttributeType: types.ScalarAttributeTypeS},
		},
		KeySchema: []types.KeySchemaElement{
			{AttributeName: aws.String(fieldOwnerKey), KeyType: types.KeyTypeHash},
			{AttributeName: aws.String(fieldEndpoint), KeyType: types.KeyTypeRange},
		},
		GlobalSecondaryIndexes: []types.GlobalSecondaryIndex{
			gsi(indexEndpoint, fieldEndpoint, ""),
			gsi(indexUserType, fieldUserType, fieldEndpoint),
		},
	}

	notifications := &dynamodb.CreateTableInput{
		TableName:   aws.String(tables.Notifications),
		BillingMode: types.BillingModePayPerRequest,
		AttributeDefinitions: []types.AttributeDefinition{
			{AttributeName: aws.String(fieldNotificationID), AttributeType: types.ScalarAttributeTypeS},
		},
		KeySchema: []types.KeySchemaElement{
			{AttributeName: aws.String(fieldNotificationID), KeyType: types.KeyTypeHash},
		},
	}

	inbox := &dynamodb.CreateTableInput{
		TableName:   aws.String(tables.Inbox),
		BillingMode: types.BillingModePayPerRequest,
		AttributeDefinitions: []types.AttributeDefinition{
			{AttributeName: aws.String(fieldRecipientKey), AttributeType: types.ScalarAttributeTypeS},
			{AttributeName: aws.String(fieldNotificationID), AttributeType: types.ScalarAttributeTypeS},
		},
		KeySchema: []types.KeySchemaElement{
			{AttributeName: aws.String(fieldRecipientKey), KeyType: types.KeyTypeHash},
			{AttributeName: aws.String(fieldNotificationID), KeyType: types.KeyTypeRange},
		},
	}
	return []*dynamodb.CreateTableInput{subscriptions, notifications, inbox}
}

// gsi builds a GSI descriptor. If sortKey is empty, only a hash key is added.
func gsi(indexName, hashKey, sortKey string) types.GlobalSecondaryIndex {
	ks := []types.KeySchemaElement{
		{AttributeName: aws.String(hashKey), KeyType: types.KeyTypeHash},
	}
	if sortKey != "" {
		ks = append(ks, types.KeySchemaElement{
			AttributeName: aws.String(sortKey), KeyType: types.KeyTypeRange,
		})
	}
	return types.GlobalSecondaryIndex{
		IndexName:  aws.String(indexName),
		KeySchema:  ks,
		Projection: &types.Projection{ProjectionType: types.ProjectionTypeAll},
	}
}

func createTable(ctx context.Context, client tableCreator, in *dynamodb.CreateTableInput) error {
	name := aws.ToString(in.TableName)
	if _, err := client.CreateTable(ctx, in); err != nil {
		var inUse *types.ResourceInUseException
		if errors.As(err, &inUse) {
			slog.Debug("table exists", "table", name)
			return nil
		}
		return fmt.Errorf("create table %s: %w", name, err)
	}
	slog.Info("created table", "table", name)
	return nil
}
