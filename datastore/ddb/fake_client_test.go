/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package ddb

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	sdk "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// fakeClient is an in-memory table understanding the expressions the store
// issues.
type fakeClient struct {
	mu       sync.Mutex
	items    map[string]map[string]types.AttributeValue
	throttle int
	queries  []*sdk.QueryInput
	tokens   []string
	created  *sdk.CreateTableInput
}

func newFakeClient() *fakeClient {
	return &fakeClient{items: make(map[string]map[string]types.AttributeValue)}
}

func str(av types.AttributeValue) string {
	if s, ok := av.(*types.AttributeValueMemberS); ok {
		return s.Value
	}
	return ""
}

func (f *fakeClient) Query(ctx context.Context, in *sdk.QueryInput, _ ...func(*sdk.Options)) (*sdk.QueryOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.throttle > 0 {
		f.throttle--
		return nil, &types.ProvisionedThroughputExceededException{Message: aws.String("slow down")}
	}
	f.queries = append(f.queries, in)

	pk := str(in.ExpressionAttributeValues[":pk"])
	prefix := str(in.ExpressionAttributeValues[":anc"])
	forward := aws.ToBool(in.ScanIndexForward)

	var matched []map[string]types.AttributeValue
	for _, item := range f.items {
		if str(item[attrPK]) == pk && strings.HasPrefix(str(item[attrSK]), prefix) {
			matched = append(matched, item)
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		if forward {
			return str(matched[i][attrSK]) < str(matched[j][attrSK])
		}
		return str(matched[i][attrSK]) > str(matched[j][attrSK])
	})
	if in.ExclusiveStartKey != nil {
		start := str(in.ExclusiveStartKey[attrSK])
		var rest []map[string]types.AttributeValue
		for _, item := range matched {
			sk := str(item[attrSK])
			if (forward && sk > start) || (!forward && sk < start) {
				rest = append(rest, item)
			}
		}
		matched = rest
	}

	out := &sdk.QueryOutput{}
	limit := int(aws.ToInt32(in.Limit))
	if limit > 0 && len(matched) > limit {
		matched = matched[:limit]
		last := matched[limit-1]
		out.LastEvaluatedKey = map[string]types.AttributeValue{attrPK: last[attrPK], attrSK: last[attrSK]}
	}
	out.Items = matched
	return out, nil
}

func (f *fakeClient) TransactWriteItems(ctx context.Context, in *sdk.TransactWriteItemsInput, _ ...func(*sdk.Options)) (*sdk.TransactWriteItemsOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tokens = append(f.tokens, aws.ToString(in.ClientRequestToken))

	reasons := make([]types.CancellationReason, len(in.TransactItems))
	failed := false
	for i, ti := range in.TransactItems {
		reasons[i].Code = aws.String("None")
		if ti.Put == nil || ti.Put.ConditionExpression == nil {
			continue
		}
		_, exists := f.items[itemID(ti.Put.Item)]
		cond := aws.ToString(ti.Put.ConditionExpression)
		if (strings.HasPrefix(cond, "attribute_not_exists") && exists) ||
			(strings.HasPrefix(cond, "attribute_exists") && !exists) {
			reasons[i].Code = aws.String("ConditionalCheckFailed")
			failed = true
		}
	}
	if failed {
		return nil, &types.TransactionCanceledException{
			Message:             aws.String("Transaction cancelled"),
			CancellationReasons: reasons,
		}
	}

	for _, ti := range in.TransactItems {
		switch {
		case ti.Put != nil:
			f.items[itemID(ti.Put.Item)] = ti.Put.Item
		case ti.Delete != nil:
			delete(f.items, itemID(ti.Delete.Key))
		}
	}
	return &sdk.TransactWriteItemsOutput{}, nil
}

func (f *fakeClient) BatchGetItem(ctx context.Context, in *sdk.BatchGetItemInput, _ ...func(*sdk.Options)) (*sdk.BatchGetItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := &sdk.BatchGetItemOutput{Responses: map[string][]map[string]types.AttributeValue{}}
	for table, ka := range in.RequestItems {
		for _, k := range ka.Keys {
			if item, ok := f.items[itemID(k)]; ok {
				out.Responses[table] = append(out.Responses[table], item)
			}
		}
	}
	return out, nil
}

func (f *fakeClient) UpdateItem(ctx context.Context, in *sdk.UpdateItemInput, _ ...func(*sdk.Options)) (*sdk.UpdateItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	id := itemID(in.Key)
	item, ok := f.items[id]
	if !ok {
		item = map[string]types.AttributeValue{attrPK: in.Key[attrPK], attrSK: in.Key[attrSK]}
		f.items[id] = item
	}
	var current int64
	if n, ok := item[attrNext].(*types.AttributeValueMemberN); ok {
		current, _ = strconv.ParseInt(n.Value, 10, 64)
	}
	add, _ := strconv.ParseInt(in.ExpressionAttributeValues[":n"].(*types.AttributeValueMemberN).Value, 10, 64)
	next := &types.AttributeValueMemberN{Value: strconv.FormatInt(current+add, 10)}
	item[attrNext] = next
	return &sdk.UpdateItemOutput{Attributes: map[string]types.AttributeValue{attrNext: next}}, nil
}

func (f *fakeClient) CreateTable(ctx context.Context, in *sdk.CreateTableInput, _ ...func(*sdk.Options)) (*sdk.CreateTableOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created = in
	return &sdk.CreateTableOutput{}, nil
}
