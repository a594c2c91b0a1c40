package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
)

// LoadClientRecord fetches a client's source-of-truth record from the
// client_records table as a flat column-to-value map, the input of the CDM
// builder. Values are stored as a jsonb document of strings.
func LoadClientRecord(ctx context.Context, pool *pgxpool.Pool, clientID string) (map[string]string, error) {
	query := `
		SELECT data
		FROM client_records
		WHERE client_id = $1
		LIMIT 1
	`
	var dataJSON []byte
	if err := pool.QueryRow(ctx, query, clientID).Scan(&dataJSON); err != nil {
		return nil, fmt.Errorf("failed to load client record %s: %w", clientID, err)
	}
	var record map[string]string
	if err := json.Unmarshal(dataJSON, &record); err != nil {
		return nil, fmt.Errorf("failed to unmarshal client record %s: %w", clientID, err)
	}
	return record, nil
}

// LoadClientRecordFile reads a client record from a local JSON file, for runs
// without a database.
func LoadClientRecordFile(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read client record file: %w", err)
	}
	var record map[string]string
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("failed to parse client record file: %w", err)
	}
	return record, nil
}
