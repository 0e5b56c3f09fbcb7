/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package datastore

import (
	"context"
	"fmt"
	"time"

	"github.com/suparena/kindstore/storagemodels"
	"google.golang.org/api/iterator"
)

// Stream drives it from a background goroutine and sends each result on the
// returned channel. Results that did not decode as T carry only Raw. The
// channel is closed when the query is exhausted, on the first error, or when
// ctx is cancelled.
func Stream[T any](ctx context.Context, it *Iterator, opts ...storagemodels.StreamOption) <-chan storagemodels.StreamResult[T] {
	options := storagemodels.DefaultStreamOptions()
	for _, opt := range opts {
		opt(&options)
	}

	resultCh := make(chan storagemodels.StreamResult[T], options.BufferSize)
	go streamWorker(ctx, it, options, resultCh)
	return resultCh
}

func streamWorker[T any](
	ctx context.Context,
	it *Iterator,
	options storagemodels.StreamOptions,
	resultCh chan<- storagemodels.StreamResult[T],
) {
	defer close(resultCh)

	var (
		itemIndex  int64
		rawItems   int64
		pageNumber int
		startTime  = time.Now()
	)

	reportProgress := func() {
		if options.ProgressHandler == nil {
			return
		}
		progress := storagemodels.StreamProgress{
			ItemsProcessed: itemIndex,
			PagesProcessed: pageNumber,
			RawItems:       rawItems,
			Cursor:         it.Cursor(),
			StartTime:      startTime,
		}
		if elapsed := time.Since(startTime).Seconds(); elapsed > 0 {
			progress.CurrentRate = float64(itemIndex) / elapsed
		}
		options.ProgressHandler(progress)
	}

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		page, err := it.NextPage(ctx)
		if err == iterator.Done {
			return
		}
		if err != nil {
			select {
			case <-ctx.Done():
			case resultCh <- storagemodels.StreamResult[T]{
				Error: fmt.Errorf("query failed: %w", err),
				Meta: storagemodels.StreamMeta{
					Index:      itemIndex,
					PageNumber: pageNumber,
					Timestamp:  time.Now(),
				},
			}:
			}
			return
		}
		pageNumber = page.Number

		for i, item := range page.Items {
			result := storagemodels.StreamResult[T]{
				Meta: storagemodels.StreamMeta{
					Index:      itemIndex,
					PageNumber: pageNumber,
					Timestamp:  time.Now(),
				},
			}
			if typed, ok := item.(*T); ok {
				result.Item = typed
			} else {
				result.Raw = page.Entities[i]
				rawItems++
			}
			itemIndex++

			select {
			case <-ctx.Done():
				return
			case resultCh <- result:
			}
		}

		reportProgress()
	}
}

// Collect drains it, splitting results decoded as T from raw entities.
func Collect[T any](ctx context.Context, it *Iterator) ([]*T, []*storagemodels.Entity, error) {
	var (
		items []*T
		raw   []*storagemodels.Entity
	)
	for {
		page, err := it.NextPage(ctx)
		if err == iterator.Done {
			return items, raw, nil
		}
		if err != nil {
			return nil, nil, err
		}
		for i, item := range page.Items {
			if typed, ok := item.(*T); ok {
				items = append(items, typed)
			} else {
				raw = append(raw, page.Entities[i])
			}
		}
	}
}
