// Package export writes cascade results as Apache Arrow IPC streams so they
// can be loaded by dataframe tools without a custom parser.
package export

import (
	"fmt"
	"io"

	"github.com/apache/arrow/go/v17/arrow"
	"github.com/apache/arrow/go/v17/arrow/array"
	"github.com/apache/arrow/go/v17/arrow/ipc"
	"github.com/apache/arrow/go/v17/arrow/memory"

	"github.com/nvandessel/cascadelab/internal/montecarlo"
	"github.com/nvandessel/cascadelab/internal/timeseries"
)

// TimeSeriesSchema is the schema of WriteTimeSeries output.
var TimeSeriesSchema = arrow.NewSchema([]arrow.Field{
	{Name: "iteration", Type: arrow.PrimitiveTypes.Int64},
	{Name: "broadcasters", Type: arrow.PrimitiveTypes.Int64},
	{Name: "mean_responses", Type: arrow.PrimitiveTypes.Float64},
	{Name: "max_responses", Type: arrow.PrimitiveTypes.Float64},
	{Name: "std_responses", Type: arrow.PrimitiveTypes.Float64},
	{Name: "total_responses", Type: arrow.PrimitiveTypes.Int64},
	{Name: "total_reached", Type: arrow.PrimitiveTypes.Int64, Nullable: true},
	{Name: "proportion_reached", Type: arrow.PrimitiveTypes.Float64, Nullable: true},
	{Name: "newly_reached", Type: arrow.PrimitiveTypes.Int64, Nullable: true},
}, nil)

// OutcomeSchema is the schema of WriteOutcomes output.
var OutcomeSchema = arrow.NewSchema([]arrow.Field{
	{Name: "run", Type: arrow.PrimitiveTypes.Int64},
	{Name: "seed", Type: arrow.PrimitiveTypes.Int64},
	{Name: "reach", Type: arrow.PrimitiveTypes.Float64},
	{Name: "reach_fraction", Type: arrow.PrimitiveTypes.Float64},
}, nil)

// WriteTimeSeries writes one record batch with a row per iteration. reach
// may be nil; otherwise it must be index-aligned with rows, and the reach
// columns are null where it is shorter.
func WriteTimeSeries(w io.Writer, rows []timeseries.Row, reach []timeseries.ReachRow) error {
	b := array.NewRecordBuilder(memory.DefaultAllocator, TimeSeriesSchema)
	defer b.Release()

	iteration := b.Field(0).(*array.Int64Builder)
	broadcasters := b.Field(1).(*array.Int64Builder)
	mean := b.Field(2).(*array.Float64Builder)
	maxResp := b.Field(3).(*array.Float64Builder)
	std := b.Field(4).(*array.Float64Builder)
	total := b.Field(5).(*array.Int64Builder)
	reached := b.Field(6).(*array.Int64Builder)
	proportion := b.Field(7).(*array.Float64Builder)
	newly := b.Field(8).(*array.Int64Builder)

	for i, r := range rows {
		iteration.Append(int64(r.Iteration))
		broadcasters.Append(int64(r.Broadcasters))
		mean.Append(r.MeanResponses)
		maxResp.Append(r.MaxResponses)
		std.Append(r.StdResponses)
		total.Append(int64(r.TotalResponses))

		if i < len(reach) {
			reached.Append(int64(reach[i].TotalReached))
			proportion.Append(reach[i].ProportionReached)
			newly.Append(int64(reach[i].NewlyReached))
		} else {
			reached.AppendNull()
			proportion.AppendNull()
			newly.AppendNull()
		}
	}

	return writeRecord(w, TimeSeriesSchema, b)
}

// WriteOutcomes writes ensemble outcomes with their run index, derived
// seed and reach as a fraction of nodeCount.
func WriteOutcomes(w io.Writer, outcomes []float64, baseSeed int64, nodeCount int) error {
	b := array.NewRecordBuilder(memory.DefaultAllocator, OutcomeSchema)
	defer b.Release()

	denom := float64(nodeCount)
	if denom < 1 {
		denom = 1
	}

	run := b.Field(0).(*array.Int64Builder)
	seed := b.Field(1).(*array.Int64Builder)
	reach := b.Field(2).(*array.Float64Builder)
	fraction := b.Field(3).(*array.Float64Builder)
	for i, o := range outcomes {
		run.Append(int64(i))
		seed.Append(montecarlo.RunSeed(baseSeed, i))
		reach.Append(o)
		fraction.Append(o / denom)
	}

	return writeRecord(w, OutcomeSchema, b)
}

func writeRecord(w io.Writer, schema *arrow.Schema, b *array.RecordBuilder) error {
	rec := b.NewRecord()
	defer rec.Release()

	writer := ipc.NewWriter(w, ipc.WithSchema(schema), ipc.WithAllocator(memory.DefaultAllocator))
	if err := writer.Write(rec); err != nil {
		writer.Close()
		return fmt.Errorf("writing arrow record: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("closing arrow stream: %w", err)
	}
	return nil
}
