package optimizer

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
)

// Observation is one historical scored transaction with its ground-truth
// label.
type Observation struct {
	TransactionID string
	Score         float64
	Fraud         bool
	Amount        float64
}

// Summary describes a loaded dataset for operator output.
type Summary struct {
	Total     int
	Frauds    int
	FraudRate float64
}

func Summarize(obs []Observation) Summary {
	s := Summary{Total: len(obs)}
	for _, o := range obs {
		if o.Fraud {
			s.Frauds++
		}
	}
	if s.Total > 0 {
		s.FraudRate = float64(s.Frauds) / float64(s.Total)
	}
	return s
}

// ReadCSV loads a labeled scored dataset. The file must carry a header row
// with columns txn_id, score, label, amount; label is 0 or 1.
func ReadCSV(path string) ([]Observation, error) {
	// #nosec G304 -- path is an operator-provided dataset path.
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return parseCSV(f)
}

func parseCSV(r io.Reader) ([]Observation, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = 4

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read dataset header: %w", err)
	}
	if header[0] != "txn_id" || header[1] != "score" || header[2] != "label" || header[3] != "amount" {
		return nil, fmt.Errorf("unexpected dataset header %v, want [txn_id score label amount]", header)
	}

	var obs []Observation
	line := 1
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read dataset row %d: %w", line+1, err)
		}
		line++

		score, err := strconv.ParseFloat(row[1], 64)
		if err != nil || score < 0 || score > 1 {
			return nil, fmt.Errorf("row %d: invalid score %q", line, row[1])
		}
		label, err := strconv.Atoi(row[2])
		if err != nil || (label != 0 && label != 1) {
			return nil, fmt.Errorf("row %d: invalid label %q", line, row[2])
		}
		amount, err := strconv.ParseFloat(row[3], 64)
		if err != nil || amount < 0 {
			return nil, fmt.Errorf("row %d: invalid amount %q", line, row[3])
		}

		obs = append(obs, Observation{
			TransactionID: row[0],
			Score:         score,
			Fraud:         label == 1,
			Amount:        amount,
		})
	}
	return obs, nil
}
