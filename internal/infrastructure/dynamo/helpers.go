package dynamo

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// compositeKey builds a DynamoDB primary key with two string attributes (PK + SK).
func compositeKey(pkName, pkValue, skName, skValue string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		pkName: &types.AttributeValueMemberS{Value: pkValue},
		skName: &types.AttributeValueMemberS{Value: skValue},
	}
}

// strKey builds a DynamoDB primary key map with a single string attribute.
func strKey(name, value string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		name: &types.AttributeValueMemberS{Value: value},
	}
}

func str(v string) types.AttributeValue { return &types.AttributeValueMemberS{Value: v} }

// updateExpr is a SET update expression with its placeholder maps.
type updateExpr struct {
	Expr   string
	Names  map[string]string
	Values map[string]types.AttributeValue
}

// buildUpdateExpr turns field->value pairs into "SET #f0 = :v0, ...".
// Fields are sorted so the expression is deterministic.
func buildUpdateExpr(updates map[string]interface{}) (*updateExpr, error) {
	if len(updates) == 0 {
		return nil, fmt.Errorf("no fields to update")
	}
	keys := make([]string, 0, len(updates))
	for k := range updates {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	ue := &updateExpr{
		Names:  make(map[string]string, len(keys)),
		Values: make(map[string]types.AttributeValue, len(keys)),
	}
	sets := make([]string, 0, len(keys))
	for i, k := range keys {
		name, value := fmt.Sprintf("#f%d", i), fmt.Sprintf(":v%d", i)
		av, err := attributevalue.Marshal(updates[k])
		if err != nil {
			return nil, fmt.Errorf("marshal field %s: %w", k, err)
		}
		ue.Names[name] = k
		ue.Values[value] = av
		sets = append(sets, name+" = "+value)
	}
	ue.Expr = "SET " + strings.Join(sets, ", ")
	return ue, nil
}

// setIfAbsent adds "field = if_not_exists(field, value)" so an existing item
// keeps its stored value.
func (ue *updateExpr) setIfAbsent(field string, value interface{}) error {
	av, err := attributevalue.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal field %s: %w", field, err)
	}
	n := len(ue.Names)
	name, placeholder := fmt.Sprintf("#k%d", n), fmt.Sprintf(":k%d", n)
	ue.Names[name] = field
	ue.Values[placeholder] = av
	ue.Expr += fmt.Sprintf(", %s = if_not_exists(%s, %s)", name, name, placeholder)
	return nil
}

// queryAll follows LastEvaluatedKey until the query is exhausted.
func queryAll(ctx context.Context, client API, in *dynamodb.QueryInput) ([]map[string]types.AttributeValue, error) {
	var items []map[string]types.AttributeValue
	p := dynamodb.NewQueryPaginator(client, in)
	for p.HasMorePages() {
		out, err := p.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		items = append(items, out.Items...)
	}
	return items, nil
}

// countAll runs a Select=COUNT query across all pages.
func countAll(ctx context.Context, client API, in *dynamodb.QueryInput) (int, error) {
	in.Select = types.SelectCount
	total := 0
	p := dynamodb.NewQueryPaginator(client, in)
	for p.HasMorePages() {
		out, err := p.NextPage(ctx)
		if err != nil {
			return 0, err
		}
		total += int(out.Count)
	}
	return total, nil
}

// batchWrite sends requests in chunks of 25, resubmitting unprocessed items a bounded number of times.
func batchWrite(ctx context.Context, client API, table string, reqs []types.WriteRequest) error {
	for start := 0; start < len(reqs); start += maxBatchWriteItems {
		end := start + maxBatchWriteItems
		if end > len(reqs) {
			end = len(reqs)
		}
		pending := map[string][]types.WriteRequest{table: reqs[start:end]}
		for round := 0; len(pending[table]) > 0; round++ {
			if round == maxUnprocessedRounds {
				return fmt.Errorf("batch write %s: %d items left unprocessed", table, len(pending[table]))
			}
			out, err := client.BatchWriteItem(ctx, &dynamodb.BatchWriteItemInput{RequestItems: pending})
			if err != nil {
				return err
			}
			pending = map[string][]types.WriteRequest{table: out.UnprocessedItems[table]}
		}
	}
	return nil
}

// batchGet loads up to 100 items by key, resubmitting unprocessed keys a bounded number of times.
func batchGet(ctx context.Context, client API, table string, keys []map[string]types.AttributeValue) ([]map[string]types.AttributeValue, error) {
	if len(keys) > maxBatchGetItems {
		return nil, fmt.Errorf("batch get %s: %d keys exceeds %d", table, len(keys), maxBatchGetItems)
	}
	var items []map[string]types.AttributeValue
	pending := map[string]types.KeysAndAttributes{table: {Keys: keys}}
	for round := 0; len(pending[table].Keys) > 0; round++ {
		if round == maxUnprocessedRounds {
			return nil, fmt.Errorf("batch get %s: %d keys left unprocessed", table, len(pending[table].Keys))
		}
		out, err := client.BatchGetItem(ctx, &dynamodb.BatchGetItemInput{RequestItems: pending})
		if err != nil {
			return nil, err
		}
		items = append(items, out.Responses[table]...)
		next, ok := out.UnprocessedKeys[table]
		if !ok {
			break
		}
		pending = map[string]types.KeysAndAttributes{table: next}
	}
	return items, nil
}
