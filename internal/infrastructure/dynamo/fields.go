package dynamo

// DynamoDB attribute names used in key conditions and update expressions across all repos.
// Using constants prevents silent runtime bugs caused by key typos.
const (
	fieldOwnerKey        = "owner_key"
	fieldEndpoint        = "endpoint"
	fieldUserType        = "user_type"
	fieldSubscriptionID  = "subscription_id"
	fieldCreatedAt       = "created_at"
	fieldUpdatedAt       = "updated_at"
	fieldNotificationID  = "notification_id"
	fieldRecipientKey    = "recipient_key"
	fieldRead            = "read"
	fieldSearchText      = "search_text"
	fieldRecipients      = "recipients"
	indexEndpoint        = "endpoint-index"
	indexUserType        = "user_type-index"
	maxBatchWriteItems   = 25
	maxBatchGetItems     = 100
	maxUnprocessedRounds = 5
)
