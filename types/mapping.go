package types

import (
	"strconv"
	"time"

	"github.com/pingcap/parser/mysql"
)

// SQLTypeMapping maps wire-level mysql type codes to logical types.
var SQLTypeMapping = map[byte]Type{
	mysql.TypeTiny:       TinyInt,
	mysql.TypeShort:      SmallInt,
	mysql.TypeInt24:      Int,
	mysql.TypeLong:       Int,
	mysql.TypeLonglong:   BigInt,
	mysql.TypeFloat:      Float,
	mysql.TypeDouble:     Double,
	mysql.TypeNewDecimal: Decimal,
	mysql.TypeDuration:   Time,
	mysql.TypeDate:       Date,
	mysql.TypeDatetime:   Timestamp,
	mysql.TypeTimestamp:  Timestamp,
	mysql.TypeString:     Char,
	mysql.TypeVarchar:    Varchar,
	mysql.TypeBlob:       Text,
}

// DDLTypeMapping maps DDL type tokens to mysql type codes.
var DDLTypeMapping = map[string]byte{
	"bool":      mysql.TypeTiny,
	"boolean":   mysql.TypeTiny,
	"tinyint":   mysql.TypeTiny,
	"smallint":  mysql.TypeShort,
	"mediumint": mysql.TypeInt24,
	"int":       mysql.TypeLong,
	"integer":   mysql.TypeLong,
	"bigint":    mysql.TypeLonglong,
	"float":     mysql.TypeFloat,
	"double":    mysql.TypeDouble,
	"decimal":   mysql.TypeNewDecimal,
	"numeric":   mysql.TypeNewDecimal,
	"time":      mysql.TypeDuration,
	"date":      mysql.TypeDate,
	"datetime":  mysql.TypeDatetime,
	"timestamp": mysql.TypeTimestamp,
	"char":      mysql.TypeString,
	"varchar":   mysql.TypeVarchar,
	"text":      mysql.TypeBlob,
}

var TypeParser = map[Type]func(str string) interface{}{
	Boolean: func(str string) interface{} {
		v, _ := strconv.ParseBool(str)
		if v {
			return int64(1)
		}
		return int64(0)
	},
	TinyInt:  parseInt,
	SmallInt: parseInt,
	Int:      parseInt,
	BigInt:   parseInt,
	Numeric:  parseInt,
	Decimal:  parseInt,
	Float: func(str string) interface{} {
		v, _ := strconv.ParseFloat(str, 32)
		return v
	},
	Double: func(str string) interface{} {
		v, _ := strconv.ParseFloat(str, 64)
		return v
	},
	Time:      parseTemporal("15:04:05"),
	Date:      parseTemporal("2006-01-02"),
	Timestamp: parseTemporal("2006-01-02 15:04:05"),
	Char:      parseString,
	Varchar:   parseString,
	Text:      parseString,
}

func parseTemporal(layout string) func(str string) interface{} {
	return func(str string) interface{} {
		v, err := time.Parse(layout, str)
		if err != nil {
			return int64(0)
		}
		return v.Unix()
	}
}

func parseInt(str string) interface{} {
	v, _ := strconv.ParseInt(str, 10, 64)
	return v
}

func parseString(str string) interface{} {
	return str
}
