// Package importer parses credential exports from other password managers
// into vault records. CSV is the lingua franca of password-manager exports;
// the parser maps common header spellings rather than demanding one schema.
package importer

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/credvault/credvault/pkg/vault"
)

// headerAliases maps the column spellings seen in the wild onto record
// fields. Matching is case-insensitive on the NFC-normalized header.
var headerAliases = map[string]string{
	"service":  "service",
	"name":     "service",
	"title":    "service",
	"site":     "service",
	"username": "username",
	"login":    "username",
	"user":     "username",
	"email":    "email",
	"e-mail":   "email",
	"password": "password",
	"memo":     "memo",
	"notes":    "memo",
	"note":     "memo",
	"comment":  "memo",
}

// SkippedRow reports one input row that could not become a record.
type SkippedRow struct {
	Line   int
	Reason string
}

// Result holds the parsed records plus per-row skip diagnostics. A partial
// parse is still useful; skips never abort the batch.
type Result struct {
	Records []vault.SecretRecord
	Skipped []SkippedRow
}

// ParseCSV parses a password-manager CSV export. The first row must be a
// header naming at least service and password columns (under any recognized
// alias). Rows missing a service or password are skipped with a reason.
func ParseCSV(data []byte) (*Result, error) {
	// Strip a UTF-8 BOM; several exporters emit one
	data = bytes.TrimPrefix(data, []byte{0xEF, 0xBB, 0xBF})

	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = -1 // ragged rows are handled per-row

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("importer: failed to read CSV header: %w", err)
	}

	columns, err := mapHeader(header)
	if err != nil {
		return nil, err
	}

	result := &Result{}
	line := 1
	for {
		row, err := reader.Read()
		if err != nil {
			break
		}
		line++

		rec, reason := rowToRecord(columns, row)
		if reason != "" {
			result.Skipped = append(result.Skipped, SkippedRow{Line: line, Reason: reason})
			continue
		}
		result.Records = append(result.Records, rec)
	}

	return result, nil
}

// mapHeader resolves each header cell to a record field index.
func mapHeader(header []string) (map[string]int, error) {
	columns := make(map[string]int)
	for i, cell := range header {
		key := strings.ToLower(strings.TrimSpace(norm.NFC.String(cell)))
		field, ok := headerAliases[key]
		if !ok {
			continue
		}
		// First matching column wins when aliases collide
		if _, taken := columns[field]; !taken {
			columns[field] = i
		}
	}

	if _, ok := columns["service"]; !ok {
		return nil, fmt.Errorf("importer: CSV header has no service/name/title column")
	}
	if _, ok := columns["password"]; !ok {
		return nil, fmt.Errorf("importer: CSV header has no password column")
	}
	return columns, nil
}

// rowToRecord builds one record from a data row. Returns a non-empty reason
// instead of a record when the row is unusable.
func rowToRecord(columns map[string]int, row []string) (vault.SecretRecord, string) {
	cell := func(field string) string {
		idx, ok := columns[field]
		if !ok || idx >= len(row) {
			return ""
		}
		return strings.TrimSpace(norm.NFC.String(row[idx]))
	}

	rec := vault.SecretRecord{
		Service:  cell("service"),
		Username: cell("username"),
		Email:    cell("email"),
		Password: cell("password"),
		Memo:     cell("memo"),
	}
	if rec.Service == "" {
		return vault.SecretRecord{}, "missing service name"
	}
	if rec.Password == "" {
		return vault.SecretRecord{}, "missing password"
	}
	return rec, ""
}
