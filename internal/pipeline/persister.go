package pipeline

import (
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"tophits/internal/core"
)

const (
	// DirPermission is used when creating the output directory
	DirPermission = 0o755
)

// Persist writes table as comma-separated text to dir/name. The directory
// is created when missing and an existing file is overwritten. No index
// column is written. It returns the path of the written file.
func Persist(table core.Tabular, dir, name string, logger *zap.Logger) (string, error) {
	if table == nil {
		return "", fmt.Errorf("%w: table must not be nil", core.ErrValidation)
	}
	if t, ok := table.(*core.Table); ok && t == nil {
		return "", fmt.Errorf("%w: table must not be nil", core.ErrValidation)
	}
	if name == "" {
		return "", fmt.Errorf("%w: file name must not be empty", core.ErrValidation)
	}

	if dir == "" {
		dir = "."
	}

	if err := os.MkdirAll(dir, DirPermission); err != nil {
		return "", fmt.Errorf("%w: creating directory %s: %w", core.ErrIO, dir, err)
	}

	path := filepath.Join(dir, name)
	if _, err := os.Stat(path); err == nil {
		logger.Warn("Output file already exists and will be replaced", zap.String("path", path))
	}

	if err := writeCSV(path, table); err != nil {
		return "", fmt.Errorf("%w: writing %s: %w", core.ErrIO, path, err)
	}

	logger.Info("CSV file saved", zap.String("path", path))
	return path, nil
}

func writeCSV(path string, table core.Tabular) (err error) {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, file.Close())
	}()

	writer := csv.NewWriter(file)

	if err := writer.Write(table.Header()); err != nil {
		return err
	}

	if err := writer.WriteAll(table.Records()); err != nil {
		return err
	}

	return writer.Error()
}
