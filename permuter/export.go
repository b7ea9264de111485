package permuter

import (
	"encoding/csv"
	"io"
	"strconv"

	"github.com/YuminosukeSato/pipeperm/pkg/errors"
)

// ExportMeanScoresCSV writes the MeanScores view as CSV with a header row.
// Step choices get one column each so the file can be filtered by variant.
// Means of fully failed pipelines are written as "NaN".
func (p *Permuter) ExportMeanScoresCSV(w io.Writer) error {
	rows, err := p.MeanScores()
	if err != nil {
		return err
	}

	steps := p.cat.steps
	header := []string{"rank", "pipeline"}
	for _, st := range steps {
		header = append(header, st.Name)
	}
	header = append(header, "mean_score", "std_score", "n_folds", "n_failed")

	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return errors.Wrap(err, "write csv header")
	}
	for _, r := range rows {
		rec := []string{strconv.Itoa(r.Rank), r.Pipeline}
		for _, ch := range p.defs[r.Index].Choices {
			rec = append(rec, ch.Variant)
		}
		rec = append(rec,
			strconv.FormatFloat(r.Mean, 'g', -1, 64),
			strconv.FormatFloat(r.Std, 'g', -1, 64),
			strconv.Itoa(r.NFolds),
			strconv.Itoa(r.NFailed),
		)
		if err := cw.Write(rec); err != nil {
			return errors.Wrap(err, "write csv row")
		}
	}
	cw.Flush()
	return errors.Wrap(cw.Error(), "flush csv")
}
