package dataset

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/guregu/null/v6"

	ex "bc.analysis/extensions"
	m "bc.analysis/models"
)

var priceDateFormats = []string{
	"2006-01-02",
	"2006/01/02",
	"01/02/2006",
}

// column pairs a trimmed header with its position so the single-match lookup
// can hand back an index.
type column struct {
	name  string
	index int
}

// LoadPriceTable reads the daily adjusted close table at path and returns one
// price series per requested ticker, restricted to dates in [from, to]. The
// first column is the trade date; every ticker must resolve to exactly one
// column. Any missing or non numeric cell in range halts the analysis, there
// is no recovery.
func LoadPriceTable(path string, tickers []string, from, to time.Time) ([]*m.PriceSeries, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("error opening price table: %w", err)
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("error reading price table %s: %w", path, err)
	}

	if len(records) < 2 {
		return nil, fmt.Errorf("price table %s has no data rows", path)
	}

	headers := make([]column, len(records[0]))
	for i, h := range records[0] {
		headers[i] = column{name: strings.TrimSpace(h), index: i}
	}

	columns := make([]int, len(tickers))
	for i, ticker := range tickers {
		match, err := ex.FilterSingle(headers, func(c column) bool { return ex.AreEqual(c.name, ticker) })
		if err != nil {
			return nil, fmt.Errorf("error resolving column %q in %s: %w", ticker, path, err)
		}
		columns[i] = match.index
	}

	// walk the rows once: dates must be strictly increasing over the whole
	// table, only rows inside [from, to] are kept
	var dates []time.Time
	var rows [][]string
	var prev time.Time
	for rowNum, record := range records[1:] {
		date, err := parseDate(record[0])
		if err != nil {
			return nil, fmt.Errorf("error parsing date on row %d: %w", rowNum+2, err)
		}

		if !date.After(prev) {
			return nil, fmt.Errorf("price table dates must be strictly increasing, row %d (%s) does not follow %s",
				rowNum+2, ex.FmtShort(date), ex.FmtShort(prev))
		}
		prev = date

		if date.Before(from) || date.After(to) {
			continue
		}

		dates = append(dates, date)
		rows = append(rows, record)
	}

	if len(rows) < 2 {
		return nil, fmt.Errorf("price table has %d rows between %s and %s, need at least 2",
			len(rows), ex.FmtShort(from), ex.FmtShort(to))
	}

	series := make([]*m.PriceSeries, len(tickers))
	for i, ticker := range tickers {
		prices := make([]float64, len(rows))
		for rowIdx, record := range rows {
			cell := parseCell(record[columns[i]])
			if !cell.Valid {
				return nil, fmt.Errorf("price table cell for %s on %s is not numeric: %q",
					ticker, ex.FmtShort(dates[rowIdx]), record[columns[i]])
			}
			prices[rowIdx] = cell.Float64
		}

		ps, err := m.NewPriceSeries(ticker, dates, prices)
		if err != nil {
			return nil, fmt.Errorf("error building price series: %w", err)
		}
		series[i] = ps
	}

	return series, nil
}

func parseDate(dateString string) (time.Time, error) {
	for _, format := range priceDateFormats {
		t, err := time.Parse(format, strings.TrimSpace(dateString))
		if err != nil {
			continue
		}
		return t, nil
	}
	return time.Time{}, fmt.Errorf("error converting date %s to time.Time", dateString)
}

// parseCell keeps the distinction between a zero price and a cell that did
// not parse: empty or malformed cells come back invalid rather than 0.
func parseCell(val string) null.Float {
	val = strings.TrimSpace(val)
	if val == "" {
		return null.Float{}
	}

	f, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return null.Float{}
	}

	return null.FloatFrom(f)
}
