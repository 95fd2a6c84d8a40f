package importer

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strings"
)

var delimiters = []rune{',', ';', '\t'}

func parseCSV(r io.Reader) (Result, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return Result{}, fmt.Errorf("read csv: %w", err)
	}
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))

	cr := csv.NewReader(bytes.NewReader(data))
	cr.Comma = sniffDelimiter(data)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.TrimLeadingSpace = true

	records, err := cr.ReadAll()
	if err != nil {
		return Result{}, fmt.Errorf("read csv: %w", err)
	}
	return rowsFromTable(records)
}

// sniffDelimiter picks the delimiter that appears most consistently in the
// first lines of the file.
func sniffDelimiter(data []byte) rune {
	var lines []string
	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() && len(lines) < 10 {
		if line := strings.TrimSpace(sc.Text()); line != "" {
			lines = append(lines, line)
		}
	}

	best, bestScore := ',', 0
	for _, d := range delimiters {
		score := 0
		for _, line := range lines {
			score += strings.Count(line, string(d))
		}
		if score > bestScore {
			best, bestScore = d, score
		}
	}
	return best
}
