package cli

import (
	"strconv"
	"strings"

	"github.com/roach88/strata/internal/engine"
	"github.com/roach88/strata/internal/store"
)

// openSession loads schemas and opens the SQLite store behind an engine
// session. The caller closes the returned store.
func openSession(dbPath, schemasPath string) (*engine.Session, *store.SQLite, error) {
	schemas, err := LoadSchemas(schemasPath)
	if err != nil {
		return nil, nil, err
	}
	s, err := store.Open(dbPath)
	if err != nil {
		return nil, nil, &LoadError{Code: ErrCodeStore, Message: "failed to open store", Err: err}
	}
	sess, err := engine.NewSession(s, schemas...)
	if err != nil {
		s.Close()
		return nil, nil, err
	}
	return sess, s, nil
}

// parseLiteral converts a flag value string into a typed value: integers
// and booleans parse to their Go types, everything else stays a string.
func parseLiteral(s string) any {
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n
	}
	if b, err := strconv.ParseBool(s); err == nil {
		return b
	}
	return s
}

// splitList splits a comma-separated flag value, dropping empty entries.
func splitList(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(s, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
