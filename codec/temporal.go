/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package codec

import (
	"fmt"
	"reflect"
	"time"

	"cloud.google.com/go/civil"
	"github.com/go-openapi/strfmt"
	"github.com/suparena/kindstore/schema"
	"github.com/suparena/kindstore/storagemodels"
)

// Resolution is the precision timestamps are stored at.
const Resolution = time.Microsecond

var epoch = time.Unix(0, 0).UTC()

// toTimestamp normalizes a temporal field value to a UTC wire timestamp.
func toTimestamp(t schema.Temporal, v reflect.Value) (storagemodels.Timestamp, error) {
	var ts time.Time
	switch t {
	case schema.TemporalTime:
		ts = v.Interface().(time.Time)
	case schema.TemporalDateTime:
		ts = v.Interface().(civil.DateTime).In(time.UTC)
	case schema.TemporalDate:
		ts = v.Interface().(civil.Date).In(time.UTC)
	case schema.TemporalTimeOfDay:
		tod := v.Interface().(civil.Time)
		ts = time.Date(1970, time.January, 1, tod.Hour, tod.Minute, tod.Second, tod.Nanosecond, time.UTC)
	case schema.TemporalDuration, schema.TemporalStrfmtDuration:
		ts = epoch.Add(time.Duration(v.Int()))
	case schema.TemporalStrfmtDateTime:
		ts = time.Time(v.Interface().(strfmt.DateTime))
	case schema.TemporalStrfmtDate:
		d := time.Time(v.Interface().(strfmt.Date))
		ts = time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC)
	default:
		return storagemodels.Timestamp{}, fmt.Errorf("unknown temporal target %d", t)
	}
	return storagemodels.TimestampOf(ts.UTC().Truncate(Resolution)), nil
}

// setTemporal converts a wire timestamp to the field's temporal target.
func setTemporal(t schema.Temporal, ts storagemodels.Timestamp, dst reflect.Value) error {
	tm := ts.Time().Truncate(Resolution)
	var out any
	switch t {
	case schema.TemporalTime:
		out = tm
	case schema.TemporalDateTime:
		out = civil.DateTimeOf(tm)
	case schema.TemporalDate:
		out = civil.DateOf(tm)
	case schema.TemporalTimeOfDay:
		out = civil.TimeOf(tm)
	case schema.TemporalDuration, schema.TemporalStrfmtDuration:
		dst.SetInt(int64(tm.Sub(epoch)))
		return nil
	case schema.TemporalStrfmtDateTime:
		out = strfmt.DateTime(tm)
	case schema.TemporalStrfmtDate:
		out = strfmt.Date(time.Date(tm.Year(), tm.Month(), tm.Day(), 0, 0, 0, 0, time.UTC))
	default:
		return fmt.Errorf("unknown temporal target %d", t)
	}
	dst.Set(reflect.ValueOf(out))
	return nil
}
