package ddb

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// fakeDynamo is an in-memory stand-in for the DynamoDB client, covering just
// the call shapes the gateway issues. Items are keyed the way the real
// tables are: cards by customer_id+composite_key, cases by case_id.
type fakeDynamo struct {
	mu    sync.Mutex
	cards []map[string]types.AttributeValue
	cases map[string]map[string]types.AttributeValue

	// failNext is consumed one error per API call, letting tests inject
	// throttling ahead of a successful attempt.
	failNext []error

	writeCalls int
}

func newFakeDynamo() *fakeDynamo {
	return &fakeDynamo{cases: map[string]map[string]types.AttributeValue{}}
}

func (f *fakeDynamo) injectErr(errs ...error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failNext = append(f.failNext, errs...)
}

func (f *fakeDynamo) popErr() error {
	if len(f.failNext) == 0 {
		return nil
	}
	err := f.failNext[0]
	f.failNext = f.failNext[1:]
	return err
}

func str(av types.AttributeValue) string {
	if s, ok := av.(*types.AttributeValueMemberS); ok {
		return s.Value
	}
	return ""
}

func boolAttr(av types.AttributeValue) bool {
	if b, ok := av.(*types.AttributeValueMemberBOOL); ok {
		return b.Value
	}
	return false
}

func (f *fakeDynamo) GetItem(_ context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.popErr(); err != nil {
		return nil, err
	}
	item := f.cases[str(in.Key["case_id"])]
	return &dynamodb.GetItemOutput{Item: item}, nil
}

func (f *fakeDynamo) Query(_ context.Context, in *dynamodb.QueryInput, _ ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.popErr(); err != nil {
		return nil, err
	}

	var items []map[string]types.AttributeValue
	switch {
	case in.IndexName != nil && *in.IndexName == TransactionIndex:
		want := str(in.ExpressionAttributeValues[":t"])
		for _, item := range f.source(in.TableName) {
			if av, ok := item["transaction_id"]; ok && str(av) == want {
				items = append(items, item)
			}
		}
	case in.IndexName != nil && *in.IndexName == CustomerIndex:
		want := str(in.ExpressionAttributeValues[":c"])
		for _, item := range f.source(in.TableName) {
			if av, ok := item["customer_id"]; ok && str(av) == want {
				items = append(items, item)
			}
		}
	default:
		want := str(in.ExpressionAttributeValues[":c"])
		prefix := str(in.ExpressionAttributeValues[":p"])
		for _, item := range f.cards {
			if str(item["customer_id"]) != want {
				continue
			}
			if prefix != "" && !strings.HasPrefix(str(item["composite_key"]), prefix) {
				continue
			}
			items = append(items, item)
		}
	}

	if in.ScanIndexForward != nil && !*in.ScanIndexForward {
		sort.Slice(items, func(i, j int) bool {
			return str(items[i]["created_at"]) > str(items[j]["created_at"])
		})
	}
	if in.Limit != nil && len(items) > int(*in.Limit) {
		items = items[:int(*in.Limit)]
	}
	return &dynamodb.QueryOutput{Items: items}, nil
}

// source returns the backing rows for a table name; the cards table is the
// only one queried without the case map.
func (f *fakeDynamo) source(table *string) []map[string]types.AttributeValue {
	if table != nil && strings.Contains(*table, "case") {
		out := make([]map[string]types.AttributeValue, 0, len(f.cases))
		for _, item := range f.cases {
			out = append(out, item)
		}
		return out
	}
	return f.cards
}

func (f *fakeDynamo) UpdateItem(_ context.Context, in *dynamodb.UpdateItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.popErr(); err != nil {
		return nil, err
	}
	f.writeCalls++

	key := str(in.Key["case_id"])
	item, ok := f.cases[key]
	if !ok {
		return nil, &types.ConditionalCheckFailedException{Message: aws.String("item absent")}
	}

	// The gateway's only update appends documents and bumps updated_at.
	appendList := in.ExpressionAttributeValues[":docs"].(*types.AttributeValueMemberL)
	existing := []types.AttributeValue{}
	if cur, ok := item["documents"].(*types.AttributeValueMemberL); ok {
		existing = cur.Value
	}
	item["documents"] = &types.AttributeValueMemberL{Value: append(existing, appendList.Value...)}
	item["updated_at"] = in.ExpressionAttributeValues[":now"]
	return &dynamodb.UpdateItemOutput{}, nil
}

func (f *fakeDynamo) TransactWriteItems(_ context.Context, in *dynamodb.TransactWriteItemsInput, _ ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.popErr(); err != nil {
		return nil, err
	}
	f.writeCalls++

	// Evaluate every condition before applying anything, like the real store.
	reasons := make([]types.CancellationReason, len(in.TransactItems))
	failed := false
	for i, item := range in.TransactItems {
		put := item.Put
		key := str(put.Item["case_id"])
		existing, exists := f.cases[key]

		ok := true
		switch {
		case put.ConditionExpression == nil:
		case strings.Contains(*put.ConditionExpression, "case_open"):
			ok = !exists || !boolAttr(existing["case_open"])
		default: // attribute_not_exists(case_id)
			ok = !exists
		}
		if !ok {
			reasons[i] = types.CancellationReason{Code: aws.String("ConditionalCheckFailed")}
			failed = true
		} else {
			reasons[i] = types.CancellationReason{Code: aws.String("None")}
		}
	}
	if failed {
		return nil, &types.TransactionCanceledException{
			Message:             aws.String("transaction cancelled"),
			CancellationReasons: reasons,
		}
	}

	for _, item := range in.TransactItems {
		key := str(item.Put.Item["case_id"])
		f.cases[key] = item.Put.Item
	}
	return &dynamodb.TransactWriteItemsOutput{}, nil
}
