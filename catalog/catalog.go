// Package catalog carries the descriptor types shared by the foreign
// storage factory and the insert loader: tables, columns, foreign
// servers/tables, sessions, and copy parameters.
package catalog

import (
	"strings"

	"github.com/ainilili/colstore/errs"
	"github.com/ainilili/colstore/types"
)

type ColumnDescriptor struct {
	ID   int
	Name string
	Type types.TypeInfo
}

type TableDescriptor struct {
	ID       int
	Name     string
	Database string
	Columns  []ColumnDescriptor
	MaxRows  int64
}

func (t *TableDescriptor) Column(name string) *ColumnDescriptor {
	for i := range t.Columns {
		if t.Columns[i].Name == name {
			return &t.Columns[i]
		}
	}
	return nil
}

// ForeignServer names a reusable external endpoint. Import proxies are
// transient: ID == -1, never persisted.
type ForeignServer struct {
	ID          int
	UserID      int
	Name        string
	WrapperType string
	Options     map[string]string
}

// ForeignTable extends a table descriptor with the server it reads
// through and string-keyed format options. Options are normalized once
// by InitializeOptions before first use.
type ForeignTable struct {
	TableDescriptor
	Server  *ForeignServer
	Options map[string]string

	initialized bool
}

// InitializeOptions normalizes option keys and validates the common
// invariants every wrapper relies on. Format-specific validation
// belongs to the wrapper's ValidateTableOptions.
func (t *ForeignTable) InitializeOptions() error {
	if t.initialized {
		return nil
	}
	normalized := make(map[string]string, len(t.Options))
	for k, v := range t.Options {
		normalized[strings.ToUpper(strings.TrimSpace(k))] = v
	}
	t.Options = normalized
	if t.Server == nil {
		return errs.Configf("foreign table \"%s\" has no foreign server", t.Name)
	}
	t.initialized = true
	return nil
}

func (t *ForeignTable) Option(key string) (string, bool) {
	v, ok := t.Options[key]
	return v, ok
}

// UserMapping carries per-user credentials for a foreign server. No
// supported wrapper requires one today; callers treat a nil mapping as
// the common case.
type UserMapping struct {
	UserID   int
	ServerID int
	Options  map[string]string
}

type SessionInfo struct {
	ID       string
	UserID   int
	Database string
}

// Catalog is the minimal in-process catalog the internal wrappers
// expose as virtual tables.
type Catalog struct {
	Databases []DatabaseDescriptor
}

type DatabaseDescriptor struct {
	ID     int
	Name   string
	Tables []TableDescriptor
}
