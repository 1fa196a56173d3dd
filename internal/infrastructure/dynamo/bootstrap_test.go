package dynamo

import (
	"context"
	"errors"
	"testing"

	"github.com/abytech-hub/notification-core/internal/config"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCreator struct {
	created []string
	errFor  map[string]error
}

func (f *fakeCreator) CreateTable(_ context.Context, in *dynamodb.CreateTableInput, _ ...func(*dynamodb.Options)) (*dynamodb.CreateTableOutput, error) {
	name := aws.ToString(in.TableName)
	if err := f.errFor[name]; err != nil {
		return nil, err
	}
	f.created = append(f.created, name)
	return &dynamodb.CreateTableOutput{}, nil
}

var testTables = config.DynamoTables{Subscriptions: "subs", Notifications: "notifs", Inbox: "inbox"}

func TestBootstrap_CreatesAllTables(t *testing.T) {
	c := &fakeCreator{}
	require.NoError(t, Bootstrap(context.Background(), c, testTables))
	assert.Equal(t, []string{"subs", "notifs", "inbox"}, c.created)
}

func TestBootstrap_ExistingTableIsSkipped(t *testing.T) {
	c := &fakeCreator{errFor: map[string]error{"subs": &types.ResourceInUseException{}}}
	require.NoError(t, Bootstrap(context.Background(), c, testTables))
	assert.Equal(t, []string{"notifs", "inbox"}, c.created)
}

func TestBootstrap_FailuresAreJoined(t *testing.T) {
	boom := errors.New("throttled")
	c := &fakeCreator{errFor: map[string]error{"notifs": boom}}

	err := Bootstrap(context.Background(), c, testTables)
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "create table notifs")
	assert.Equal(t, []string{"subs", "inbox"}, c.created)
}

func TestTableSpecs_SubscriptionIndexes(t *testing.T) {
	specs := tableSpecs(testTables)
	require.Len(t, specs, 3)

	var names []string
	for _, g := range specs[0].GlobalSecondaryIndexes {
		names = append(names, aws.ToString(g.IndexName))
	}
	assert.ElementsMatch(t, []string{indexEndpoint, indexUserType}, names)
	assert.Equal(t, fieldRecipientKey, aws.ToString(specs[2].KeySchema[0].AttributeName))
}
