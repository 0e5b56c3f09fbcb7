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

// Lookup fetches entities by key with strongly consistent reads. Found
// entities are returned in the order of keys.
func (s *Store) Lookup(ctx context.Context, keys []*storagemodels.Key) ([]*storagemodels.Entity, []*storagemodels.Key, error) {
	byID := make(map[string]*storagemodels.Entity, len(keys))
	ids := make([]string, len(keys))
	for i, k := range keys {
		if k.Incomplete() {
			return nil, nil, errors.NewValidationError("key", fmt.Sprintf("lookup of incomplete key %s", k))
		}
		ik, err := itemKey(k)
		if err != nil {
			return nil, nil, errors.NewValidationError("key", err.Error())
		}
		ids[i] = itemID(ik)
	}

	for start := 0; start < len(keys); start += batchGetLimit {
		end := min(start+batchGetLimit, len(keys))
		request := make([]map[string]types.AttributeValue, 0, end-start)
		seen := make(map[string]bool)
		for i := start; i < end; i++ {
			if seen[ids[i]] {
				continue
			}
			seen[ids[i]] = true
			ik, _ := itemKey(keys[i])
			request = append(request, ik)
		}

		for len(request) > 0 {
			out, err := withRetry(ctx, s, "BatchGetItem", func() (*sdk.BatchGetItemOutput, error) {
				return s.client.BatchGetItem(ctx, &sdk.BatchGetItemInput{
					RequestItems: map[string]types.KeysAndAttributes{
						s.table: {Keys: request, ConsistentRead: aws.Bool(true)},
					},
				})
			})
			if err != nil {
				return nil, nil, fmt.Errorf("BatchGetItem failed: %w", err)
			}
			for _, item := range out.Responses[s.table] {
				e, err := decodeItem(item, s.project)
				if err != nil {
					return nil, nil, err
				}
				byID[itemID(item)] = e
			}
			request = out.UnprocessedKeys[s.table].Keys
		}
	}

	var (
		found   []*storagemodels.Entity
		missing []*storagemodels.Key
	)
	for i, k := range keys {
		if e, ok := byID[ids[i]]; ok {
			found = append(found, e)
		} else {
			missing = append(missing, k)
		}
	}
	return found, missing, nil
}

func itemID(item map[string]types.AttributeValue) string {
	var pk, sk string
	if v, ok := item[attrPK].(*types.AttributeValueMemberS); ok {
		pk = v.Value
	}
	if v, ok := item[attrSK].(*types.AttributeValueMemberS); ok {
		sk = v.Value
	}
	return pk + "|" + sk
}
