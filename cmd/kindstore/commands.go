/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package main

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/suparena/kindstore/codec"
	"github.com/suparena/kindstore/datastore"
	"github.com/suparena/kindstore/storagemodels"
	"go.uber.org/zap"
	"google.golang.org/api/iterator"
)

var createTableCmd = &cobra.Command{
	Use:   "create-table",
	Short: "Create the DynamoDB table of the ddb backend",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		exec, logger, cleanup, err := openBackend(ctx)
		if err != nil {
			return err
		}
		defer cleanup()

		creator, ok := exec.(interface{ CreateTable(context.Context) error })
		if !ok {
			return fmt.Errorf("backend %q has no table to create", backendName)
		}
		if err := creator.CreateTable(ctx); err != nil {
			return err
		}
		logger.Info("table created")
		return nil
	},
}

type queryFlags struct {
	kind     string
	limit    int32
	offset   int32
	eventual bool
	cursor   string
}

var qf queryFlags

var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "Dump the raw entities of a kind as JSON lines",
	RunE: func(cmd *cobra.Command, args []string) error {
		if qf.kind == "" {
			return fmt.Errorf("--kind is required")
		}
		ctx := cmd.Context()
		exec, logger, cleanup, err := openBackend(ctx)
		if err != nil {
			return err
		}
		defer cleanup()

		opts := []datastore.IteratorOption{
			datastore.WithRaw(),
			datastore.WithLogger(logger),
			datastore.WithPartition(storagemodels.PartitionID{NamespaceID: namespace}),
			datastore.WithOffset(qf.offset),
		}
		if qf.limit > 0 {
			opts = append(opts, datastore.WithLimit(qf.limit))
		}
		if qf.eventual {
			opts = append(opts, datastore.WithEventual())
		}
		if qf.cursor != "" {
			cursor, err := base64.URLEncoding.DecodeString(qf.cursor)
			if err != nil {
				return fmt.Errorf("invalid cursor: %w", err)
			}
			opts = append(opts, datastore.WithStartCursor(cursor))
		}
		it := datastore.NewIterator(exec, nil, storagemodels.Query{Kind: qf.kind}, opts...)
		return dumpQuery(ctx, it, os.Stdout, logger)
	},
}

type keyFlags struct {
	kind string
	name string
	id   int64
}

var kf keyFlags

var getCmd = &cobra.Command{
	Use:   "get",
	Short: "Look up one root entity by kind and name or id",
	RunE: func(cmd *cobra.Command, args []string) error {
		if kf.kind == "" || (kf.name == "") == (kf.id == 0) {
			return fmt.Errorf("--kind and exactly one of --name or --id are required")
		}
		ctx := cmd.Context()
		exec, _, cleanup, err := openBackend(ctx)
		if err != nil {
			return err
		}
		defer cleanup()

		el := storagemodels.PathElement{Kind: kf.kind, Name: kf.name, ID: kf.id}
		key := storagemodels.NewKey(storagemodels.PartitionID{NamespaceID: namespace}, el)
		found, _, err := exec.Lookup(ctx, []*storagemodels.Key{key})
		if err != nil {
			return err
		}
		if len(found) == 0 {
			return fmt.Errorf("%s not found", key)
		}
		return writeEntity(json.NewEncoder(os.Stdout), found[0])
	},
}

// dumpQuery writes every result of it to w, one JSON object per line.
func dumpQuery(ctx context.Context, it *datastore.Iterator, w io.Writer, logger *zap.Logger) error {
	enc := json.NewEncoder(w)
	var count int
	for {
		page, err := it.NextPage(ctx)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return err
		}
		for _, e := range page.Entities {
			if err := writeEntity(enc, e); err != nil {
				return err
			}
			count++
		}
		logger.Debug("page dumped",
			zap.Int("page", page.Number),
			zap.Int("items", len(page.Entities)),
			zap.Int("requests", page.Requests))
	}
	logger.Info("query complete", zap.Int("entities", count), zap.String("cursor", base64.URLEncoding.EncodeToString(it.Cursor())))
	return nil
}

type entityJSON struct {
	Key        string         `json:"key"`
	Namespace  string         `json:"namespace,omitempty"`
	Properties map[string]any `json:"properties"`
}

func writeEntity(enc *json.Encoder, e *storagemodels.Entity) error {
	out := entityJSON{Properties: make(map[string]any, len(e.Properties))}
	if e.Key != nil {
		out.Key = e.Key.String()
		out.Namespace = e.Key.Partition.NamespaceID
	}
	for name, v := range e.Properties {
		plain := codec.DecodePlain(v)
		if k, ok := plain.(*storagemodels.Key); ok {
			plain = k.String()
		}
		out.Properties[name] = plain
	}
	return enc.Encode(out)
}

func setupCommands() {
	queryCmd.Flags().StringVar(&qf.kind, "kind", "", "Kind to query")
	queryCmd.Flags().Int32Var(&qf.limit, "limit", 0, "Maximum number of entities (0 for all)")
	queryCmd.Flags().Int32Var(&qf.offset, "offset", 0, "Number of entities to skip")
	queryCmd.Flags().BoolVar(&qf.eventual, "eventual", false, "Use eventually consistent reads")
	queryCmd.Flags().StringVar(&qf.cursor, "cursor", "", "Resume from a cursor printed by a previous run")

	getCmd.Flags().StringVar(&kf.kind, "kind", "", "Kind of the entity")
	getCmd.Flags().StringVar(&kf.name, "name", "", "Name of the entity")
	getCmd.Flags().Int64Var(&kf.id, "id", 0, "Numeric id of the entity")

	rootCmd.AddCommand(createTableCmd, queryCmd, getCmd)
}
