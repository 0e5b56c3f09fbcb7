/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package ddb

import (
	"context"
	stderrors "errors"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	sdk "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"
	"github.com/suparena/kindstore/errors"
	"github.com/suparena/kindstore/storagemodels"
	"go.uber.org/zap"
)

// Commit applies mutations in order. Mutations are written in transactions
// of at most 100 items; there is no atomicity across transactions. Versions
// are the commit time in microseconds.
func (s *Store) Commit(ctx context.Context, mutations []storagemodels.Mutation) ([]storagemodels.MutationResult, error) {
	keys := make([]*storagemodels.Key, len(mutations))
	for i, m := range mutations {
		key := m.Key
		if m.Op != storagemodels.Delete {
			if m.Entity == nil || m.Entity.Key == nil {
				return nil, errors.NewValidationError("entity", fmt.Sprintf("%s mutation without a keyed entity", m.Op))
			}
			key = m.Entity.Key
		}
		if key == nil || len(key.Path) == 0 {
			return nil, errors.NewValidationError("key", "mutation without a key")
		}
		if key.Incomplete() && (m.Op == storagemodels.Delete || m.Op == storagemodels.Update) {
			return nil, errors.NewValidationError("key", fmt.Sprintf("%s requires a complete key", m.Op))
		}
		keys[i] = key
	}
	if err := s.allocateIDs(ctx, keys); err != nil {
		return nil, err
	}

	version := time.Now().UnixMicro()
	results := make([]storagemodels.MutationResult, 0, len(mutations))
	for start := 0; start < len(mutations); start += transactWriteLimit {
		end := min(start+transactWriteLimit, len(mutations))

		items := make([]types.TransactWriteItem, 0, end-start)
		for i := start; i < end; i++ {
			item, err := s.writeItem(mutations[i], keys[i], version)
			if err != nil {
				return results, err
			}
			items = append(items, item)
		}

		token := uuid.NewString()
		_, err := withRetry(ctx, s, "TransactWriteItems", func() (*sdk.TransactWriteItemsOutput, error) {
			return s.client.TransactWriteItems(ctx, &sdk.TransactWriteItemsInput{
				TransactItems:      items,
				ClientRequestToken: aws.String(token),
			})
		})
		if err != nil {
			return results, commitError(err, mutations[start:end], keys[start:end])
		}
		for i := start; i < end; i++ {
			results = append(results, storagemodels.MutationResult{Key: keys[i], Version: version})
		}
		s.logger.Debug("committed mutations",
			zap.Int("count", end-start),
			zap.String("token", token))
	}
	return results, nil
}

func (s *Store) writeItem(m storagemodels.Mutation, key *storagemodels.Key, version int64) (types.TransactWriteItem, error) {
	if m.Op == storagemodels.Delete {
		k, err := itemKey(key)
		if err != nil {
			return types.TransactWriteItem{}, errors.NewValidationError("key", err.Error())
		}
		return types.TransactWriteItem{Delete: &types.Delete{
			TableName: aws.String(s.table),
			Key:       k,
		}}, nil
	}

	e := &storagemodels.Entity{Key: key, Properties: m.Entity.Properties}
	item, err := encodeItem(e, version)
	if err != nil {
		return types.TransactWriteItem{}, fmt.Errorf("failed to encode %s: %w", key, err)
	}
	put := &types.Put{TableName: aws.String(s.table), Item: item}
	switch m.Op {
	case storagemodels.Insert:
		put.ConditionExpression = aws.String("attribute_not_exists(#pk)")
		put.ExpressionAttributeNames = map[string]string{"#pk": attrPK}
	case storagemodels.Update:
		put.ConditionExpression = aws.String("attribute_exists(#pk)")
		put.ExpressionAttributeNames = map[string]string{"#pk": attrPK}
	}
	return types.TransactWriteItem{Put: put}, nil
}

// commitError maps a cancelled transaction to the error of the first
// mutation whose condition failed.
func commitError(err error, mutations []storagemodels.Mutation, keys []*storagemodels.Key) error {
	var cancelled *types.TransactionCanceledException
	if stderrors.As(err, &cancelled) {
		for i, reason := range cancelled.CancellationReasons {
			if i >= len(mutations) || aws.ToString(reason.Code) != "ConditionalCheckFailed" {
				continue
			}
			key := keys[i]
			switch op := mutations[i].Op; op {
			case storagemodels.Insert, storagemodels.Update:
				return errors.NewWriteConflictError(op.String(), key.Kind(), key.String())
			}
		}
	}
	return fmt.Errorf("TransactWriteItems failed: %w", err)
}

// allocateIDs completes incomplete keys in place, reserving one block of ids
// per namespace and kind from a counter item.
func (s *Store) allocateIDs(ctx context.Context, keys []*storagemodels.Key) error {
	pending := make(map[string][]int)
	var order []string
	for i, k := range keys {
		if !k.Incomplete() {
			continue
		}
		counter := partitionKey(k.Partition.NamespaceID, k.Kind())
		if _, ok := pending[counter]; !ok {
			order = append(order, counter)
		}
		pending[counter] = append(pending[counter], i)
	}

	for _, counter := range order {
		idx := pending[counter]
		out, err := withRetry(ctx, s, "UpdateItem", func() (*sdk.UpdateItemOutput, error) {
			return s.client.UpdateItem(ctx, &sdk.UpdateItemInput{
				TableName: aws.String(s.table),
				Key: map[string]types.AttributeValue{
					attrPK: &types.AttributeValueMemberS{Value: counterPK},
					attrSK: &types.AttributeValueMemberS{Value: counter},
				},
				UpdateExpression:         aws.String("ADD #next :n"),
				ExpressionAttributeNames: map[string]string{"#next": attrNext},
				ExpressionAttributeValues: map[string]types.AttributeValue{
					":n": &types.AttributeValueMemberN{Value: strconv.Itoa(len(idx))},
				},
				ReturnValues: types.ReturnValueUpdatedNew,
			})
		})
		if err != nil {
			return fmt.Errorf("failed to allocate ids for %s: %w", counter, err)
		}
		nextAttr, ok := out.Attributes[attrNext].(*types.AttributeValueMemberN)
		if !ok {
			return fmt.Errorf("id counter %s returned no value", counter)
		}
		last, err := strconv.ParseInt(nextAttr.Value, 10, 64)
		if err != nil {
			return fmt.Errorf("malformed id counter %s: %w", counter, err)
		}

		first := last - int64(len(idx)) + 1
		for n, i := range idx {
			k := keys[i]
			path := make([]storagemodels.PathElement, len(k.Path))
			copy(path, k.Path)
			path[len(path)-1].ID = first + int64(n)
			keys[i] = &storagemodels.Key{Partition: k.Partition, Path: path}
		}
	}
	return nil
}
