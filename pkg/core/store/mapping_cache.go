package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"pdf_autofill/pkg/core/cdm"
)

// MappingCache stores field-to-key mappings per form so a form seen before
// skips the LLM entirely. Hybrid vault: DB (primary) + file system
// (fallback/local).
type MappingCache struct {
	pool     *pgxpool.Pool
	fileDir  string
	provider string
}

// NewMappingCache creates a mapping cache. If pool is nil it falls back to a
// file-based cache in dir; an empty dir defaults to .cache/mappings.
// provider tags saved entries with the LLM that produced them.
func NewMappingCache(pool *pgxpool.Pool, dir, provider string) *MappingCache {
	if pool == nil && dir == "" {
		dir = filepath.Join(".cache", "mappings")
	}
	if dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			fmt.Printf("Warning: cannot create mapping cache dir: %v\n", err)
		}
	}
	return &MappingCache{pool: pool, fileDir: dir, provider: provider}
}

// MappingEntry is the file-cache record for one form.
type MappingEntry struct {
	FormID      string            `json:"form_id"`
	LLMProvider string            `json:"llm_provider"`
	Mapping     map[string]string `json:"mapping"`
	CachedAt    time.Time         `json:"cached_at"`
}

// Get returns the cached mapping for a form, or nil on a miss. A miss is
// never an error.
func (c *MappingCache) Get(ctx context.Context, formID string) (map[string]cdm.Key, error) {
	if c.pool != nil {
		query := `
			SELECT mapping
			FROM form_mappings
			WHERE form_id = $1
			LIMIT 1
		`
		var mappingJSON []byte
		err := c.pool.QueryRow(ctx, query, formID).Scan(&mappingJSON)
		if err != nil {
			return nil, nil // cache miss
		}
		var raw map[string]string
		if err := json.Unmarshal(mappingJSON, &raw); err != nil {
			return nil, fmt.Errorf("failed to unmarshal db cached mapping: %w", err)
		}
		return toKeys(raw), nil
	}

	if c.fileDir != "" {
		data, err := os.ReadFile(c.formPath(formID))
		if err != nil {
			return nil, nil // not found
		}
		var entry MappingEntry
		if err := json.Unmarshal(data, &entry); err != nil {
			return nil, fmt.Errorf("failed to unmarshal file cached mapping: %w", err)
		}
		return toKeys(entry.Mapping), nil
	}

	return nil, nil
}

// Save stores a form's mapping, replacing any previous entry.
func (c *MappingCache) Save(ctx context.Context, formID string, assigned map[string]cdm.Key) error {
	raw := make(map[string]string, len(assigned))
	for id, key := range assigned {
		raw[id] = string(key)
	}
	mappingJSON, err := json.MarshalIndent(raw, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal mapping: %w", err)
	}

	if c.pool != nil {
		query := `
			INSERT INTO form_mappings (form_id, llm_provider, mapping)
			VALUES ($1, $2, $3)
			ON CONFLICT (form_id)
			DO UPDATE SET
				mapping = EXCLUDED.mapping,
				llm_provider = EXCLUDED.llm_provider,
				updated_at = NOW()
		`
		if _, err := c.pool.Exec(ctx, query, formID, c.provider, mappingJSON); err != nil {
			return fmt.Errorf("failed to save to db cache: %w", err)
		}
	}

	if c.fileDir != "" {
		entry := MappingEntry{
			FormID:      formID,
			LLMProvider: c.provider,
			Mapping:     raw,
			CachedAt:    time.Now(),
		}
		fileBytes, _ := json.MarshalIndent(entry, "", "  ")
		if err := os.WriteFile(c.formPath(formID), fileBytes, 0644); err != nil {
			return fmt.Errorf("failed to save to file cache: %w", err)
		}
	}

	return nil
}

// Invalidate drops the cached mapping for a form, e.g. after a template
// revision changes its field names.
func (c *MappingCache) Invalidate(ctx context.Context, formID string) error {
	if c.pool != nil {
		query := `DELETE FROM form_mappings WHERE form_id = $1`
		if _, err := c.pool.Exec(ctx, query, formID); err != nil {
			return fmt.Errorf("failed to invalidate db cache: %w", err)
		}
	}
	if c.fileDir != "" {
		if err := os.Remove(c.formPath(formID)); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to invalidate file cache: %w", err)
		}
	}
	return nil
}

// Exists reports whether a form already has a cached mapping.
func (c *MappingCache) Exists(ctx context.Context, formID string) bool {
	if c.pool != nil {
		query := `SELECT 1 FROM form_mappings WHERE form_id = $1 LIMIT 1`
		var exists int
		if err := c.pool.QueryRow(ctx, query, formID).Scan(&exists); err == nil {
			return true
		}
	}
	if c.fileDir != "" {
		if _, err := os.Stat(c.formPath(formID)); err == nil {
			return true
		}
	}
	return false
}

func (c *MappingCache) formPath(formID string) string {
	safe := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		}
		return '_'
	}, formID)
	return filepath.Join(c.fileDir, safe+".json")
}

func toKeys(raw map[string]string) map[string]cdm.Key {
	if len(raw) == 0 {
		return nil
	}
	keys := make(map[string]cdm.Key, len(raw))
	for id, k := range raw {
		keys[id] = cdm.Key(k)
	}
	return keys
}
