package visualization

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/pkg/errors"

	"github.com/Smeilz/dataset/pkg/metrics"
)

// MetricsTable lays out the named per-class rates of an accumulator, one
// row per class, with a macro averaged summary row. Names must be rates
// with a per-class form, accuracy is not one of them.
func MetricsTable(accumulator *metrics.Classification, names []string) (*Table, error) {
	headers := append([]string{"class"}, names...)

	columns := make([][]float64, len(names))
	for i, name := range names {
		perClass, err := accumulator.PerClass(name)
		if err != nil {
			return nil, errors.Wrapf(err, "cannot tabulate metric %q", name)
		}
		columns[i] = perClass
	}

	rows := make([][]string, accumulator.NumClasses())
	for class := range rows {
		row := []string{strconv.Itoa(class)}
		for _, column := range columns {
			row = append(row, fmt.Sprintf("%.4f", column[class]))
		}
		rows[class] = row
	}

	table := NewTable(headers, rows)

	footer := []string{"macro"}
	for _, name := range names {
		value, err := accumulator.EvaluateOne(name, metrics.Multiclass(metrics.Macro))
		if err != nil {
			return nil, errors.Wrapf(err, "cannot aggregate metric %q", name)
		}
		footer = append(footer, fmt.Sprintf("%.4f", value))
	}
	table.SetFooter(footer)

	return table, nil
}

// MetadataTable lays out a recorded metadata map with stable ordering.
func MetadataTable(metadata map[string]string) *Table {
	keys := make([]string, 0, len(metadata))
	for key := range metadata {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	rows := make([][]string, 0, len(keys))
	for _, key := range keys {
		rows = append(rows, []string{key, metadata[key]})
	}

	return NewTable([]string{"key", "value"}, rows)
}
