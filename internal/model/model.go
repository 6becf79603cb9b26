package model

import (
	"errors"
	"strings"
	"time"
)

// ErrNotFound is returned by stores when a connection or integration id is unknown.
var ErrNotFound = errors.New("not found")

// Connection is a database endpoint. ConnectionString arrives already decrypted.
type Connection struct {
	ID               string `mapstructure:"id" json:"id"`
	Name             string `mapstructure:"name" json:"name"`
	DatabaseType     string `mapstructure:"database_type" json:"databaseType"`
	ConnectionString string `mapstructure:"connection_string" json:"-"`
	IsActive         bool   `mapstructure:"active" json:"isActive"`
}

// Integration is a one-way transfer from a source query to a target statement.
type Integration struct {
	ID                 string `mapstructure:"id" json:"id"`
	Name               string `mapstructure:"name" json:"name"`
	SourceConnectionID string `mapstructure:"source_connection" json:"sourceConnectionId"`
	TargetConnectionID string `mapstructure:"target_connection" json:"targetConnectionId"`
	SourceQuery        string `mapstructure:"source_query" json:"sourceQuery"`
	TargetQuery        string `mapstructure:"target_query" json:"targetQuery"`
	GroupName          string `mapstructure:"group" json:"groupName,omitempty"`
	ExecutionOrder     int    `mapstructure:"execution_order" json:"executionOrder"`
}

// Mapping binds a target placeholder to a source column.
type Mapping struct {
	SourceColumn    string `mapstructure:"source_column" json:"sourceColumn"`
	TargetParameter string `mapstructure:"target_parameter" json:"targetParameter"`
}

// MappingIndex returns target parameter -> source column. A leading @ or : on the
// parameter is ignored. Later entries win.
func MappingIndex(mappings []Mapping) map[string]string {
	idx := make(map[string]string, len(mappings))
	for _, m := range mappings {
		name := strings.TrimLeft(m.TargetParameter, "@:")
		if name == "" {
			continue
		}
		idx[name] = m.SourceColumn
	}
	return idx
}

// Row is one source record. Columns keep the driver's order and case.
type Row struct {
	Columns []string
	Values  []any
}

// Lookup finds a column by exact name.
func (r Row) Lookup(name string) (any, bool) {
	for i, c := range r.Columns {
		if c == name {
			return r.Values[i], true
		}
	}
	return nil, false
}

// LookupFold finds a column ignoring case. The first match in column order wins.
func (r Row) LookupFold(name string) (any, bool) {
	for i, c := range r.Columns {
		if strings.EqualFold(c, name) {
			return r.Values[i], true
		}
	}
	return nil, false
}

// Map returns the row as column -> value.
func (r Row) Map() map[string]any {
	m := make(map[string]any, len(r.Columns))
	for i, c := range r.Columns {
		m[c] = r.Values[i]
	}
	return m
}

// RunResult is the outcome of one integration run.
type RunResult struct {
	Success      bool   `json:"success"`
	RowsAffected int64  `json:"rowsAffected"`
	DurationMs   int64  `json:"durationMs"`
	Message      string `json:"message,omitempty"`
	Error        string `json:"error,omitempty"`
}

// IntegrationResult pairs a run result with the integration it belongs to.
type IntegrationResult struct {
	IntegrationID   string    `json:"integrationId"`
	IntegrationName string    `json:"integrationName"`
	ExecutionOrder  int       `json:"executionOrder"`
	Result          RunResult `json:"result"`
}

// BatchResult aggregates an ordered group run.
type BatchResult struct {
	Success           bool                `json:"success"`
	TotalRowsAffected int64               `json:"totalRowsAffected"`
	TotalDurationMs   int64               `json:"totalDurationMs"`
	Message           string              `json:"message,omitempty"`
	Results           []IntegrationResult `json:"results"`

	// Committed lists integrations whose transactions committed before a failure
	// halted the batch. Their writes stay in the target.
	Committed []string `json:"committed,omitempty"`
}

// IntegrationLog is the persisted record of one run.
type IntegrationLog struct {
	IntegrationID   string    `json:"integrationId"`
	IntegrationName string    `json:"integrationName"`
	GroupName       string    `json:"groupName,omitempty"`
	StartedAt       time.Time `json:"startedAt"`
	Success         bool      `json:"success"`
	RowsAffected    int64     `json:"rowsAffected"`
	DurationMs      int64     `json:"durationMs"`
	Message         string    `json:"message,omitempty"`
	Error           string    `json:"error,omitempty"`
}

// NewIntegrationLog builds a log entry for a finished run.
func NewIntegrationLog(it Integration, startedAt time.Time, res RunResult) IntegrationLog {
	return IntegrationLog{
		IntegrationID:   it.ID,
		IntegrationName: it.Name,
		GroupName:       it.GroupName,
		StartedAt:       startedAt,
		Success:         res.Success,
		RowsAffected:    res.RowsAffected,
		DurationMs:      res.DurationMs,
		Message:         res.Message,
		Error:           res.Error,
	}
}
