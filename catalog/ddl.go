package catalog

import (
	"strings"

	"github.com/ainilili/colstore/errs"
	"github.com/ainilili/colstore/types"
)

// ParseTableSchema builds a table descriptor from a CREATE TABLE
// statement. Only the column list and key clauses are inspected; the
// statement is assumed to be well-formed DDL text.
func ParseTableSchema(sql string) (*TableDescriptor, error) {
	sql = strings.ToLower(sql)
	td := &TableDescriptor{}
	for _, line := range strings.Split(sql, "\n") {
		line = strings.TrimSpace(line)
		subs := strings.Split(line, " ")
		if strings.HasPrefix(line, "create table") {
			td.Name = strings.ReplaceAll(subs[len(subs)-2], "`", "")
		} else if strings.HasPrefix(line, "`") {
			name := strings.ReplaceAll(subs[0], "`", "")
			token := strings.Split(subs[1], "(")[0]
			ti, err := parseTypeToken(token)
			if err != nil {
				return nil, err
			}
			td.Columns = append(td.Columns, ColumnDescriptor{
				ID:   len(td.Columns),
				Name: name,
				Type: ti,
			})
		}
	}
	if td.Name == "" || len(td.Columns) == 0 {
		return nil, errs.Configf("schema has no parsable create table statement")
	}
	return td, nil
}

func parseTypeToken(token string) (types.TypeInfo, error) {
	array := false
	if strings.HasSuffix(token, "[]") {
		array = true
		token = token[:len(token)-2]
	}
	code, ok := types.DDLTypeMapping[token]
	if !ok {
		return types.TypeInfo{}, errs.Configf("unsupported column type \"%s\"", token)
	}
	t := types.SQLTypeMapping[code]
	encoding := types.EncodingNone
	if t.IsString() {
		// Text columns default to dictionary encoding; NONE must be
		// requested explicitly at the DDL level.
		encoding = types.EncodingDict
	}
	if array {
		return types.TypeInfo{Type: types.Array, Elem: t, Encoding: encoding}, nil
	}
	return types.TypeInfo{Type: t, Encoding: encoding}, nil
}
