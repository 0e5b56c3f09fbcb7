/*
Package gcd implements the datastore executors on Cloud Datastore through
the apiv1 gRPC client.

Entities, keys, values and queries are converted to and from the
datastorepb wire types one to one: GeoPoint becomes latlng.LatLng,
Timestamp becomes timestamppb.Timestamp, Null becomes structpb.NullValue and
the query limit a wrapperspb.Int32Value. Commits are NON_TRANSACTIONAL.
Eventual queries set the EVENTUAL read consistency.

	cfg, err := gcd.ConfigFromEnv(".env")
	if err != nil {
	    return err
	}
	store, err := gcd.Open(ctx, cfg, gcd.WithLogger(logger))
	if err != nil {
	    return err
	}
	defer store.Close()

Setting DATASTORE_EMULATOR_HOST connects to the local emulator without
authentication.
*/
package gcd
