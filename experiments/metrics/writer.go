package metrics

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

type SearchConfig struct {
	ID         int
	Sampler    string
	Goroutines int
	Duration   time.Duration
	Episodes   int
	Seed       uint64
}

type SearchRecord struct {
	Config int // SearchConfig.ID
	Trial  int
	SearchMetric
}

// TrajectoryRecord is the furthest runner found by one search.
type TrajectoryRecord struct {
	Config    int // SearchConfig.ID
	Trial     int
	Distance  float64
	Timesteps int
	Failed    bool
	Actions   string
}

type Writer struct {
	baseDir string
}

func NewWriter(root, name string) (*Writer, error) {
	// Create a subfolder named by current timestamp
	timestamp := time.Now().UTC().Format(time.RFC3339)
	baseDir := filepath.Join(root, name, timestamp)
	err := os.MkdirAll(baseDir, 0755)
	if err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	return &Writer{
		baseDir: baseDir,
	}, nil
}

func (w *Writer) Dir() string {
	return w.baseDir
}

func (w *Writer) WriteSearchConfigs(configs []SearchConfig) error {
	rows := make([][]string, 0, len(configs))
	for _, config := range configs {
		rows = append(rows, []string{
			strconv.Itoa(config.ID),
			config.Sampler,
			strconv.Itoa(config.Goroutines),
			config.Duration.String(),
			strconv.Itoa(config.Episodes),
			strconv.FormatUint(config.Seed, 10),
		})
	}
	header := []string{"id", "sampler", "goroutines", "duration", "episodes", "seed"}
	return w.write("search_configs.csv", "search configs", header, rows)
}

func (w *Writer) WriteSearchRecords(records []SearchRecord) error {
	rows := make([][]string, 0, len(records))
	for _, record := range records {
		rows = append(rows, []string{
			strconv.Itoa(record.Config),
			strconv.Itoa(record.Trial),
			record.Sampler,
			strconv.Itoa(record.Goroutines),
			record.Duration.String(),
			strconv.Itoa(record.Episodes),
			strconv.Itoa(record.Timesteps),
			strconv.FormatFloat(record.TimestepsPerSecond(), 'f', 1, 64),
			strconv.Itoa(record.JammedWorkers),
			strconv.Itoa(record.Nodes),
			strconv.FormatBool(record.FullyExplored),
		})
	}
	header := []string{"config", "trial", "sampler", "goroutines", "duration", "episodes", "timesteps",
		"timesteps_per_second", "jammed_workers", "nodes", "fully_explored"}
	return w.write("search_records.csv", "search records", header, rows)
}

func (w *Writer) WriteTrajectoryRecords(records []TrajectoryRecord) error {
	rows := make([][]string, 0, len(records))
	for _, record := range records {
		rows = append(rows, []string{
			strconv.Itoa(record.Config),
			strconv.Itoa(record.Trial),
			strconv.FormatFloat(record.Distance, 'f', 3, 64),
			strconv.Itoa(record.Timesteps),
			strconv.FormatBool(record.Failed),
			record.Actions,
		})
	}
	header := []string{"config", "trial", "distance", "timesteps", "failed", "actions"}
	return w.write("trajectory_records.csv", "trajectory records", header, rows)
}

func (w *Writer) write(filename, what string, header []string, rows [][]string) error {
	// Create a file
	path := filepath.Join(w.baseDir, filename)
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s file: %w", what, err)
	}
	defer f.Close()

	writer := csv.NewWriter(f)

	// Write header
	err = writer.Write(header)
	if err != nil {
		return fmt.Errorf("failed to write %s header: %w", what, err)
	}

	// Write each row
	for _, row := range rows {
		err = writer.Write(row)
		if err != nil {
			return fmt.Errorf("failed to write %s row: %w", what, err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("failed to flush %s: %w", what, err)
	}
	return nil
}
