package export

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
)

type CSVRenderer struct{}

func (CSVRenderer) Render(ds *Dataset) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(ds.Header); err != nil {
		return nil, err
	}
	for _, rec := range ds.Records {
		if err := w.Write(rec); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// JSONRenderer emits an array of objects keyed by the header columns.
type JSONRenderer struct{}

func (JSONRenderer) Render(ds *Dataset) ([]byte, error) {
	out := make([]map[string]string, 0, len(ds.Records))
	for _, rec := range ds.Records {
		obj := make(map[string]string, len(ds.Header))
		for i, col := range ds.Header {
			if i < len(rec) {
				obj[col] = rec[i]
			}
		}
		out = append(out, obj)
	}
	return json.MarshalIndent(out, "", "  ")
}
