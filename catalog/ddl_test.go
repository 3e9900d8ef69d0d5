package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ainilili/colstore/types"
)

const tripsDDL = "create table if not exists `trips` (\n" +
	"`id` bigint NOT NULL,\n" +
	"`city` varchar(32) NOT NULL,\n" +
	"`fare` double NOT NULL,\n" +
	"`tags` int[] NOT NULL,\n" +
	"primary key (`id`)\n" +
	") ENGINE=InnoDB DEFAULT CHARSET=utf8mb4;\n"

func TestParseTableSchema(t *testing.T) {
	td, err := ParseTableSchema(tripsDDL)
	assert.NoError(t, err)
	assert.Equal(t, "trips", td.Name)
	assert.Len(t, td.Columns, 4)

	assert.Equal(t, "id", td.Columns[0].Name)
	assert.Equal(t, types.TypeInfo{Type: types.BigInt}, td.Columns[0].Type)

	assert.Equal(t, "city", td.Columns[1].Name)
	assert.Equal(t, types.TypeInfo{Type: types.Varchar, Encoding: types.EncodingDict}, td.Columns[1].Type)

	assert.Equal(t, "fare", td.Columns[2].Name)
	assert.Equal(t, types.TypeInfo{Type: types.Double}, td.Columns[2].Type)

	assert.Equal(t, "tags", td.Columns[3].Name)
	assert.Equal(t, types.TypeInfo{Type: types.Array, Elem: types.Int}, td.Columns[3].Type)

	for i, col := range td.Columns {
		assert.Equal(t, i, col.ID)
	}
}

func TestParseTableSchemaUnsupportedType(t *testing.T) {
	_, err := ParseTableSchema("create table `x` (\n`b` blob2 NOT NULL\n);")
	assert.Error(t, err)
}

func TestParseTableSchemaEmpty(t *testing.T) {
	_, err := ParseTableSchema("-- nothing here\n")
	assert.Error(t, err)
}
