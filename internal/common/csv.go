// Package common provides CSV reading and writing shared by the training
// source loader and the metrics report.
package common

import (
	"encoding/csv"
	"fmt"
	"io"

	"fjacquet/autocat/internal/fileutils"
	"fjacquet/autocat/internal/logging"

	"github.com/gocarina/gocsv"
)

// Delimiter is the field separator used for every CSV file.
const Delimiter = ','

// ReadCSVFile reads CSV data into a slice of structs using gocsv.
// TCSVRow is the struct type that maps to the CSV columns.
func ReadCSVFile[TCSVRow any](filePath string, logger logging.Logger) ([]TCSVRow, error) {
	if logger == nil {
		logger = logging.GetLogger()
	}
	logger.Debug("Reading CSV file", logging.Field{Key: "file", Value: filePath})

	file, err := fileutils.OpenFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("error opening CSV file: %w", err)
	}
	defer func() {
		if err := file.Close(); err != nil {
			logger.WithError(err).Warn("Failed to close file")
		}
	}()

	rows, err := ReadCSV[TCSVRow](file)
	if err != nil {
		return nil, err
	}

	logger.Debug("Read CSV data", logging.Field{Key: logging.FieldCount, Value: len(rows)})
	return rows, nil
}

// ReadCSV parses CSV data from r.
func ReadCSV[TCSVRow any](r io.Reader) ([]TCSVRow, error) {
	var rows []TCSVRow
	if err := gocsv.UnmarshalCSV(newReader(r), &rows); err != nil {
		return nil, fmt.Errorf("error parsing CSV file: %w", err)
	}
	return rows, nil
}

// WriteCSVFile writes rows to csvFile, creating parent directories.
func WriteCSVFile[TCSVRow any](rows []TCSVRow, csvFile string, logger logging.Logger) error {
	if rows == nil {
		return fmt.Errorf("cannot write nil rows to CSV")
	}
	if logger == nil {
		logger = logging.GetLogger()
	}

	file, err := fileutils.CreateFile(csvFile)
	if err != nil {
		return fmt.Errorf("error creating CSV file: %w", err)
	}
	defer func() {
		if err := file.Close(); err != nil {
			logger.WithError(err).Warn("Failed to close file")
		}
	}()

	if err := WriteCSV(rows, file); err != nil {
		return err
	}

	logger.Info("Wrote CSV file",
		logging.Field{Key: "file", Value: csvFile},
		logging.Field{Key: logging.FieldCount, Value: len(rows)})
	return nil
}

// WriteCSV marshals rows to w with a header line.
func WriteCSV[TCSVRow any](rows []TCSVRow, w io.Writer) error {
	csvWriter := csv.NewWriter(w)
	csvWriter.Comma = Delimiter

	if err := gocsv.MarshalCSV(rows, gocsv.NewSafeCSVWriter(csvWriter)); err != nil {
		return fmt.Errorf("error writing CSV data: %w", err)
	}
	return nil
}

func newReader(r io.Reader) gocsv.CSVReader {
	reader := csv.NewReader(r)
	reader.Comma = Delimiter
	reader.TrimLeadingSpace = true
	return reader
}
