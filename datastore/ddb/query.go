/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package ddb

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	sdk "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/suparena/kindstore/errors"
	"github.com/suparena/kindstore/storagemodels"
)

// RunQuery runs one page of a query. The table is read in key order within
// the kind's partition; filters are applied to the decoded entities. Cursors
// are the sort key of the last item consumed.
//
// Only kind queries ordered by key are supported.
func (s *Store) RunQuery(ctx context.Context, req *storagemodels.QueryRequest) (*storagemodels.ResultBatch, error) {
	q := req.Query
	if q.Kind == "" {
		return nil, errors.NewValidationError("kind", "kindless queries are not supported")
	}
	descending := false
	for i, o := range q.Orders {
		if o.Property != storagemodels.KeyProperty || i > 0 {
			return nil, errors.NewValidationError("orders", fmt.Sprintf("ordering by %s is not supported", o.Property))
		}
		descending = o.Descending
	}
	if q.Ancestor != nil && q.Ancestor.Partition.NamespaceID != req.Partition.NamespaceID {
		return &storagemodels.ResultBatch{MoreResults: storagemodels.NoMoreResults}, nil
	}

	pk := partitionKey(req.Partition.NamespaceID, q.Kind)
	input := &sdk.QueryInput{
		TableName:              aws.String(s.table),
		KeyConditionExpression: aws.String("#pk = :pk"),
		ExpressionAttributeNames: map[string]string{
			"#pk": attrPK,
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk": &types.AttributeValueMemberS{Value: pk},
		},
		Limit:            aws.Int32(s.pageSize),
		ScanIndexForward: aws.Bool(!descending),
		ConsistentRead:   aws.Bool(!req.Eventual),
	}
	if q.Ancestor != nil {
		prefix, err := encodePath(q.Ancestor.Path)
		if err != nil {
			return nil, errors.NewValidationError("ancestor", err.Error())
		}
		input.KeyConditionExpression = aws.String("#pk = :pk AND begins_with(#sk, :anc)")
		input.ExpressionAttributeNames["#sk"] = attrSK
		input.ExpressionAttributeValues[":anc"] = &types.AttributeValueMemberS{Value: prefix}
	}
	if len(req.StartCursor) > 0 {
		input.ExclusiveStartKey = map[string]types.AttributeValue{
			attrPK: &types.AttributeValueMemberS{Value: pk},
			attrSK: &types.AttributeValueMemberS{Value: string(req.StartCursor)},
		}
	}

	r := &queryRun{
		req:        req,
		descending: descending,
		end:        string(req.EndCursor),
		last:       string(req.StartCursor),
		maxSkip:    max(s.maxSkip, 1),
		batchSize:  s.batchSize,
		batch:      &storagemodels.ResultBatch{},
	}
	r.skippedAt = r.last

	for {
		out, err := withRetry(ctx, s, "Query", func() (*sdk.QueryOutput, error) {
			return s.client.Query(ctx, input)
		})
		if err != nil {
			return nil, fmt.Errorf("query error: %w", err)
		}
		for _, item := range out.Items {
			done, err := r.consume(item, s.project)
			if err != nil {
				return nil, err
			}
			if done {
				return r.result(), nil
			}
		}
		if len(out.LastEvaluatedKey) == 0 {
			r.batch.MoreResults = storagemodels.NoMoreResults
			return r.result(), nil
		}
		input.ExclusiveStartKey = out.LastEvaluatedKey
	}
}

// queryRun is the state of one RunQuery call.
type queryRun struct {
	req        *storagemodels.QueryRequest
	descending bool
	end        string
	maxSkip    int32
	batchSize  int

	// last is the sort key of the last item consumed, skippedAt that of the
	// last result skipped.
	last      string
	skippedAt string
	batch     *storagemodels.ResultBatch
}

// consume processes one item and reports whether the batch is complete.
func (r *queryRun) consume(item map[string]types.AttributeValue, project string) (bool, error) {
	skAttr, ok := item[attrSK].(*types.AttributeValueMemberS)
	if !ok {
		return false, fmt.Errorf("item without a sort key")
	}
	sk := skAttr.Value

	if r.end != "" && r.pastEnd(sk) {
		r.batch.MoreResults = storagemodels.MoreResultsAfterCursor
		return true, nil
	}

	e, err := decodeItem(item, project)
	if err != nil {
		return false, fmt.Errorf("failed to decode item %s: %w", sk, err)
	}
	q := r.req.Query
	if (q.Ancestor != nil && !e.Key.HasAncestor(q.Ancestor)) || !storagemodels.MatchFilters(e, q.Filters) {
		r.last = sk
		return false, nil
	}

	if r.batch.SkippedResults < r.req.Offset {
		if r.batch.SkippedResults >= r.maxSkip {
			r.batch.MoreResults = storagemodels.NotFinished
			return true, nil
		}
		r.batch.SkippedResults++
		r.last, r.skippedAt = sk, sk
		return false, nil
	}

	if r.req.Limit != nil && len(r.batch.EntityResults) >= int(*r.req.Limit) {
		r.batch.MoreResults = storagemodels.MoreResultsAfterLimit
		return true, nil
	}
	r.batch.EntityResults = append(r.batch.EntityResults, e)
	r.last = sk

	if r.req.Limit != nil && len(r.batch.EntityResults) >= int(*r.req.Limit) {
		r.batch.MoreResults = storagemodels.MoreResultsAfterLimit
		return true, nil
	}
	if r.batchSize > 0 && len(r.batch.EntityResults) >= r.batchSize {
		r.batch.MoreResults = storagemodels.NotFinished
		return true, nil
	}
	return false, nil
}

func (r *queryRun) pastEnd(sk string) bool {
	if r.descending {
		return sk < r.end
	}
	return sk > r.end
}

func (r *queryRun) result() *storagemodels.ResultBatch {
	r.batch.EndCursor = cursorOf(r.last)
	r.batch.SkippedCursor = cursorOf(r.skippedAt)
	return r.batch
}

func cursorOf(sk string) []byte {
	if sk == "" {
		return nil
	}
	return []byte(sk)
}
