package export

import (
	"encoding/json"
	"io"

	"github.com/idena-watch/flipwatch/pkg/scan"
)

type jsonlRow struct {
	Epoch      uint64 `json:"epoch"`
	Address    string `json:"address"`
	WrongWords int    `json:"wrongWords"`
}

// WriteEpochJSONL renders one epoch report as one JSON object per line, in
// report order.
func WriteEpochJSONL(w io.Writer, report *scan.EpochReport) error {
	enc := json.NewEncoder(w)
	for _, e := range report.Entries {
		row := jsonlRow{Epoch: report.Epoch, Address: e.Address, WrongWords: e.Count}
		if err := enc.Encode(row); err != nil {
			return err
		}
	}
	return nil
}
