package influxdb

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

const (
	measurement   = "element_value"
	tagRepository = "repository"
	tagSubmodel   = "submodel_id"
	tagPath       = "path"
	fieldValue    = "value"
)

// Sample is one recorded value of an element.
type Sample struct {
	Time  time.Time `json:"time"`
	Value float64   `json:"value"`
}

// RecordElementValue queues a numeric Property value for the history.
// It satisfies submodel.ValueRecorder. Values recorded on a closed
// client are dropped.
func (c *Client) RecordElementValue(submodelID, idShortPath string, value float64) {
	c.recordAt(submodelID, idShortPath, value, time.Now())
}

func (c *Client) recordAt(submodelID, idShortPath string, value float64, at time.Time) {
	if !c.IsConnected() {
		return
	}
	c.writer.WritePoint(elementPoint(c.repository, submodelID, idShortPath, value, at))
}

func elementPoint(repository, submodelID, idShortPath string, value float64, at time.Time) *write.Point {
	return write.NewPointWithMeasurement(measurement).
		AddTag(tagRepository, repository).
		AddTag(tagSubmodel, submodelID).
		AddTag(tagPath, idShortPath).
		AddField(fieldValue, value).
		SetTime(at)
}

// History returns the values recorded for one element during the last
// window, oldest first.
//
// Parameters:
//   - ctx: Context for the query
//   - submodelID: Identifier of the owning submodel
//   - idShortPath: Canonical path of the element
//   - window: How far back to read
//
// Returns:
//   - []Sample: Recorded values, possibly empty
//   - error: ErrNotConnected or ErrQueryFailed
func (c *Client) History(ctx context.Context, submodelID, idShortPath string, window time.Duration) ([]Sample, error) {
	if !c.IsConnected() {
		return nil, ErrNotConnected
	}

	res, err := c.reader.Query(ctx, historyQuery(c.bucket, c.repository, submodelID, idShortPath, window))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrQueryFailed, err)
	}
	defer res.Close() //nolint:errcheck

	var out []Sample
	for res.Next() {
		rec := res.Record()
		v, ok := rec.Value().(float64)
		if !ok {
			continue
		}
		out = append(out, Sample{Time: rec.Time(), Value: v})
	}
	if err := res.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrQueryFailed, err)
	}
	return out, nil
}

// historyQuery builds the Flux query for one element's values.
// strconv.Quote output is a valid Flux string literal for tag values.
func historyQuery(bucket, repository, submodelID, idShortPath string, window time.Duration) string {
	secs := int64(window / time.Second)
	if window <= 0 {
		secs = int64(time.Hour / time.Second)
	} else if secs == 0 {
		secs = 1
	}
	return fmt.Sprintf(`from(bucket: %s)
  |> range(start: -%ds)
  |> filter(fn: (r) => r._measurement == %s and r._field == %s)
  |> filter(fn: (r) => r.%s == %s and r.%s == %s and r.%s == %s)
  |> sort(columns: ["_time"])`,
		strconv.Quote(bucket),
		secs,
		strconv.Quote(measurement), strconv.Quote(fieldValue),
		tagRepository, strconv.Quote(repository),
		tagSubmodel, strconv.Quote(submodelID),
		tagPath, strconv.Quote(idShortPath),
	)
}
