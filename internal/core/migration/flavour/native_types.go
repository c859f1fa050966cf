package flavour

import (
	"strings"

	"github.com/satishbabariya/prisma-migrate/internal/core/migration/sqlschema"
)

// NativeTypeSpec describes one native type of a provider.
type NativeTypeSpec struct {
	// Name is the PSL spelling, as in @db.VarChar(255).
	Name string
	// SQL is the DDL keyword.
	SQL     string
	Family  sqlschema.ColumnTypeFamily
	MaxArgs int
	// Rank orders types of one family from narrowest to widest.
	Rank int
}

// LookupNativeType finds a native type by PSL name, case-insensitively.
func LookupNativeType(f Flavour, name string) (NativeTypeSpec, bool) {
	for _, spec := range f.NativeTypes() {
		if strings.EqualFold(spec.Name, name) {
			return spec, true
		}
	}
	return NativeTypeSpec{}, false
}

// LookupNativeTypeBySQL finds a native type by DDL keyword.
func LookupNativeTypeBySQL(f Flavour, sql string) (NativeTypeSpec, bool) {
	for _, spec := range f.NativeTypes() {
		if strings.EqualFold(spec.SQL, sql) {
			return spec, true
		}
	}
	return NativeTypeSpec{}, false
}

// RenderNativeType renders a native type as DDL.
func RenderNativeType(f Flavour, nt sqlschema.NativeType) string {
	keyword := strings.ToUpper(nt.Name)
	if spec, ok := LookupNativeType(f, nt.Name); ok {
		keyword = spec.SQL
	}
	if len(nt.Args) == 0 {
		return keyword
	}
	args := make([]string, len(nt.Args))
	for i, a := range nt.Args {
		if strings.EqualFold(a, "max") {
			args[i] = "MAX"
		} else {
			args[i] = strings.TrimSpace(a)
		}
	}
	return keyword + "(" + strings.Join(args, ",") + ")"
}

func nt(name string, args ...string) *sqlschema.NativeType {
	return &sqlschema.NativeType{Name: name, Args: args}
}

type scalarMapping struct {
	family sqlschema.ColumnTypeFamily
	native *sqlschema.NativeType
}

func lookupScalar(table map[string]scalarMapping, scalar string) (sqlschema.ColumnTypeFamily, *sqlschema.NativeType, bool) {
	m, ok := table[scalar]
	if !ok {
		return 0, nil, false
	}
	if m.native == nil {
		return m.family, nil, true
	}
	cp := *m.native
	cp.Args = append([]string(nil), m.native.Args...)
	return m.family, &cp, true
}

var postgresNativeTypes = []NativeTypeSpec{
	{Name: "SmallInt", SQL: "SMALLINT", Family: sqlschema.FamilyInt, Rank: 1},
	{Name: "Integer", SQL: "INTEGER", Family: sqlschema.FamilyInt, Rank: 2},
	{Name: "BigInt", SQL: "BIGINT", Family: sqlschema.FamilyBigInt, Rank: 3},
	{Name: "Oid", SQL: "OID", Family: sqlschema.FamilyInt, Rank: 2},
	{Name: "Real", SQL: "REAL", Family: sqlschema.FamilyFloat, Rank: 1},
	{Name: "DoublePrecision", SQL: "DOUBLE PRECISION", Family: sqlschema.FamilyFloat, Rank: 2},
	{Name: "Decimal", SQL: "DECIMAL", Family: sqlschema.FamilyDecimal, MaxArgs: 2, Rank: 1},
	{Name: "Money", SQL: "MONEY", Family: sqlschema.FamilyDecimal, Rank: 1},
	{Name: "Boolean", SQL: "BOOLEAN", Family: sqlschema.FamilyBoolean},
	{Name: "Char", SQL: "CHAR", Family: sqlschema.FamilyString, MaxArgs: 1, Rank: 1},
	{Name: "VarChar", SQL: "VARCHAR", Family: sqlschema.FamilyString, MaxArgs: 1, Rank: 2},
	{Name: "Text", SQL: "TEXT", Family: sqlschema.FamilyString, Rank: 3},
	{Name: "Citext", SQL: "CITEXT", Family: sqlschema.FamilyString, Rank: 3},
	{Name: "Xml", SQL: "XML", Family: sqlschema.FamilyString, Rank: 3},
	{Name: "Inet", SQL: "INET", Family: sqlschema.FamilyString, Rank: 1},
	{Name: "Bit", SQL: "BIT", Family: sqlschema.FamilyString, MaxArgs: 1, Rank: 1},
	{Name: "VarBit", SQL: "VARBIT", Family: sqlschema.FamilyString, MaxArgs: 1, Rank: 2},
	{Name: "Uuid", SQL: "UUID", Family: sqlschema.FamilyString, Rank: 1},
	{Name: "Timestamp", SQL: "TIMESTAMP", Family: sqlschema.FamilyDateTime, MaxArgs: 1, Rank: 2},
	{Name: "Timestamptz", SQL: "TIMESTAMPTZ", Family: sqlschema.FamilyDateTime, MaxArgs: 1, Rank: 3},
	{Name: "Date", SQL: "DATE", Family: sqlschema.FamilyDateTime, Rank: 1},
	{Name: "Time", SQL: "TIME", Family: sqlschema.FamilyDateTime, MaxArgs: 1, Rank: 1},
	{Name: "Timetz", SQL: "TIMETZ", Family: sqlschema.FamilyDateTime, MaxArgs: 1, Rank: 1},
	{Name: "Json", SQL: "JSON", Family: sqlschema.FamilyJSON, Rank: 1},
	{Name: "JsonB", SQL: "JSONB", Family: sqlschema.FamilyJSON, Rank: 2},
	{Name: "ByteA", SQL: "BYTEA", Family: sqlschema.FamilyBytes},
}

var postgresScalars = map[string]scalarMapping{
	"String":   {sqlschema.FamilyString, nt("Text")},
	"Int":      {sqlschema.FamilyInt, nt("Integer")},
	"BigInt":   {sqlschema.FamilyBigInt, nt("BigInt")},
	"Float":    {sqlschema.FamilyFloat, nt("DoublePrecision")},
	"Decimal":  {sqlschema.FamilyDecimal, nt("Decimal", "65", "30")},
	"Boolean":  {sqlschema.FamilyBoolean, nt("Boolean")},
	"DateTime": {sqlschema.FamilyDateTime, nt("Timestamp", "3")},
	"Json":     {sqlschema.FamilyJSON, nt("JsonB")},
	"Bytes":    {sqlschema.FamilyBytes, nt("ByteA")},
}

var mysqlNativeTypes = []NativeTypeSpec{
	{Name: "TinyInt", SQL: "TINYINT", Family: sqlschema.FamilyInt, MaxArgs: 1, Rank: 1},
	{Name: "UnsignedTinyInt", SQL: "TINYINT UNSIGNED", Family: sqlschema.FamilyInt, Rank: 1},
	{Name: "SmallInt", SQL: "SMALLINT", Family: sqlschema.FamilyInt, Rank: 2},
	{Name: "UnsignedSmallInt", SQL: "SMALLINT UNSIGNED", Family: sqlschema.FamilyInt, Rank: 2},
	{Name: "MediumInt", SQL: "MEDIUMINT", Family: sqlschema.FamilyInt, Rank: 3},
	{Name: "UnsignedMediumInt", SQL: "MEDIUMINT UNSIGNED", Family: sqlschema.FamilyInt, Rank: 3},
	{Name: "Int", SQL: "INTEGER", Family: sqlschema.FamilyInt, Rank: 4},
	{Name: "UnsignedInt", SQL: "INTEGER UNSIGNED", Family: sqlschema.FamilyInt, Rank: 4},
	{Name: "BigInt", SQL: "BIGINT", Family: sqlschema.FamilyBigInt, Rank: 5},
	{Name: "UnsignedBigInt", SQL: "BIGINT UNSIGNED", Family: sqlschema.FamilyBigInt, Rank: 5},
	{Name: "Float", SQL: "FLOAT", Family: sqlschema.FamilyFloat, Rank: 1},
	{Name: "Double", SQL: "DOUBLE", Family: sqlschema.FamilyFloat, Rank: 2},
	{Name: "Decimal", SQL: "DECIMAL", Family: sqlschema.FamilyDecimal, MaxArgs: 2, Rank: 1},
	{Name: "Boolean", SQL: "BOOLEAN", Family: sqlschema.FamilyBoolean},
	{Name: "Bit", SQL: "BIT", Family: sqlschema.FamilyBytes, MaxArgs: 1},
	{Name: "Char", SQL: "CHAR", Family: sqlschema.FamilyString, MaxArgs: 1, Rank: 1},
	{Name: "VarChar", SQL: "VARCHAR", Family: sqlschema.FamilyString, MaxArgs: 1, Rank: 2},
	{Name: "TinyText", SQL: "TINYTEXT", Family: sqlschema.FamilyString, Rank: 3},
	{Name: "Text", SQL: "TEXT", Family: sqlschema.FamilyString, Rank: 4},
	{Name: "MediumText", SQL: "MEDIUMTEXT", Family: sqlschema.FamilyString, Rank: 5},
	{Name: "LongText", SQL: "LONGTEXT", Family: sqlschema.FamilyString, Rank: 6},
	{Name: "Date", SQL: "DATE", Family: sqlschema.FamilyDateTime, Rank: 1},
	{Name: "Time", SQL: "TIME", Family: sqlschema.FamilyDateTime, MaxArgs: 1, Rank: 1},
	{Name: "DateTime", SQL: "DATETIME", Family: sqlschema.FamilyDateTime, MaxArgs: 1, Rank: 2},
	{Name: "Timestamp", SQL: "TIMESTAMP", Family: sqlschema.FamilyDateTime, MaxArgs: 1, Rank: 2},
	{Name: "Year", SQL: "YEAR", Family: sqlschema.FamilyInt, Rank: 1},
	{Name: "Json", SQL: "JSON", Family: sqlschema.FamilyJSON},
	{Name: "Binary", SQL: "BINARY", Family: sqlschema.FamilyBytes, MaxArgs: 1, Rank: 1},
	{Name: "VarBinary", SQL: "VARBINARY", Family: sqlschema.FamilyBytes, MaxArgs: 1, Rank: 2},
	{Name: "TinyBlob", SQL: "TINYBLOB", Family: sqlschema.FamilyBytes, Rank: 3},
	{Name: "Blob", SQL: "BLOB", Family: sqlschema.FamilyBytes, Rank: 4},
	{Name: "MediumBlob", SQL: "MEDIUMBLOB", Family: sqlschema.FamilyBytes, Rank: 5},
	{Name: "LongBlob", SQL: "LONGBLOB", Family: sqlschema.FamilyBytes, Rank: 6},
}

var mysqlScalars = map[string]scalarMapping{
	"String":   {sqlschema.FamilyString, nt("VarChar", "191")},
	"Int":      {sqlschema.FamilyInt, nt("Int")},
	"BigInt":   {sqlschema.FamilyBigInt, nt("BigInt")},
	"Float":    {sqlschema.FamilyFloat, nt("Double")},
	"Decimal":  {sqlschema.FamilyDecimal, nt("Decimal", "65", "30")},
	"Boolean":  {sqlschema.FamilyBoolean, nt("Boolean")},
	"DateTime": {sqlschema.FamilyDateTime, nt("DateTime", "3")},
	"Json":     {sqlschema.FamilyJSON, nt("Json")},
	"Bytes":    {sqlschema.FamilyBytes, nt("LongBlob")},
}

// SQLite has no native type attributes; columns are typed by family.
var sqliteScalars = map[string]scalarMapping{
	"String":   {sqlschema.FamilyString, nil},
	"Int":      {sqlschema.FamilyInt, nil},
	"BigInt":   {sqlschema.FamilyBigInt, nil},
	"Float":    {sqlschema.FamilyFloat, nil},
	"Decimal":  {sqlschema.FamilyDecimal, nil},
	"Boolean":  {sqlschema.FamilyBoolean, nil},
	"DateTime": {sqlschema.FamilyDateTime, nil},
	"Bytes":    {sqlschema.FamilyBytes, nil},
}

var mssqlNativeTypes = []NativeTypeSpec{
	{Name: "TinyInt", SQL: "TINYINT", Family: sqlschema.FamilyInt, Rank: 1},
	{Name: "SmallInt", SQL: "SMALLINT", Family: sqlschema.FamilyInt, Rank: 2},
	{Name: "Int", SQL: "INT", Family: sqlschema.FamilyInt, Rank: 3},
	{Name: "BigInt", SQL: "BIGINT", Family: sqlschema.FamilyBigInt, Rank: 4},
	{Name: "Bit", SQL: "BIT", Family: sqlschema.FamilyBoolean},
	{Name: "Real", SQL: "REAL", Family: sqlschema.FamilyFloat, Rank: 1},
	{Name: "Float", SQL: "FLOAT", Family: sqlschema.FamilyFloat, MaxArgs: 1, Rank: 2},
	{Name: "Decimal", SQL: "DECIMAL", Family: sqlschema.FamilyDecimal, MaxArgs: 2, Rank: 1},
	{Name: "Money", SQL: "MONEY", Family: sqlschema.FamilyDecimal, Rank: 1},
	{Name: "SmallMoney", SQL: "SMALLMONEY", Family: sqlschema.FamilyDecimal, Rank: 1},
	{Name: "Char", SQL: "CHAR", Family: sqlschema.FamilyString, MaxArgs: 1, Rank: 1},
	{Name: "NChar", SQL: "NCHAR", Family: sqlschema.FamilyString, MaxArgs: 1, Rank: 1},
	{Name: "VarChar", SQL: "VARCHAR", Family: sqlschema.FamilyString, MaxArgs: 1, Rank: 2},
	{Name: "NVarChar", SQL: "NVARCHAR", Family: sqlschema.FamilyString, MaxArgs: 1, Rank: 3},
	{Name: "Text", SQL: "TEXT", Family: sqlschema.FamilyString, Rank: 4},
	{Name: "NText", SQL: "NTEXT", Family: sqlschema.FamilyString, Rank: 4},
	{Name: "Xml", SQL: "XML", Family: sqlschema.FamilyString, Rank: 4},
	{Name: "UniqueIdentifier", SQL: "UNIQUEIDENTIFIER", Family: sqlschema.FamilyString, Rank: 1},
	{Name: "Date", SQL: "DATE", Family: sqlschema.FamilyDateTime, Rank: 1},
	{Name: "Time", SQL: "TIME", Family: sqlschema.FamilyDateTime, MaxArgs: 1, Rank: 1},
	{Name: "SmallDateTime", SQL: "SMALLDATETIME", Family: sqlschema.FamilyDateTime, Rank: 1},
	{Name: "DateTime", SQL: "DATETIME", Family: sqlschema.FamilyDateTime, Rank: 2},
	{Name: "DateTime2", SQL: "DATETIME2", Family: sqlschema.FamilyDateTime, MaxArgs: 1, Rank: 3},
	{Name: "DateTimeOffset", SQL: "DATETIMEOFFSET", Family: sqlschema.FamilyDateTime, MaxArgs: 1, Rank: 3},
	{Name: "Binary", SQL: "BINARY", Family: sqlschema.FamilyBytes, MaxArgs: 1, Rank: 1},
	{Name: "VarBinary", SQL: "VARBINARY", Family: sqlschema.FamilyBytes, MaxArgs: 1, Rank: 2},
	{Name: "Image", SQL: "IMAGE", Family: sqlschema.FamilyBytes, Rank: 3},
}

var mssqlScalars = map[string]scalarMapping{
	"String":   {sqlschema.FamilyString, nt("NVarChar", "1000")},
	"Int":      {sqlschema.FamilyInt, nt("Int")},
	"BigInt":   {sqlschema.FamilyBigInt, nt("BigInt")},
	"Float":    {sqlschema.FamilyFloat, nt("Float", "53")},
	"Decimal":  {sqlschema.FamilyDecimal, nt("Decimal", "32", "16")},
	"Boolean":  {sqlschema.FamilyBoolean, nt("Bit")},
	"DateTime": {sqlschema.FamilyDateTime, nt("DateTime2")},
	"Bytes":    {sqlschema.FamilyBytes, nt("VarBinary", "Max")},
}

// rankedChange classifies a native type change within one family: widening
// is safe, narrowing or shortening is risky.
func rankedChange(f Flavour, previous, next *sqlschema.NativeType) TypeChange {
	if previous == nil || next == nil || previous.Equal(next) {
		return NoTypeChange
	}
	ps, okPrev := LookupNativeType(f, previous.Name)
	ns, okNext := LookupNativeType(f, next.Name)
	if !okPrev || !okNext || ps.Family != ns.Family {
		return RiskyCast
	}
	if ns.Rank < ps.Rank {
		return RiskyCast
	}
	if ns.Rank > ps.Rank {
		return SafeCast
	}
	if argsWiden(previous.Args, next.Args) {
		return SafeCast
	}
	return RiskyCast
}

// argsWiden reports whether every numeric argument of next is at least the
// previous one. MAX wins over any number.
func argsWiden(previous, next []string) bool {
	if len(previous) != len(next) {
		return len(next) == 0
	}
	for i := range previous {
		p, n := strings.ToLower(previous[i]), strings.ToLower(next[i])
		if n == "max" {
			continue
		}
		if p == "max" {
			return false
		}
		if atoi(n) < atoi(p) {
			return false
		}
	}
	return true
}

func atoi(s string) int {
	n := 0
	for _, r := range strings.TrimSpace(s) {
		if r < '0' || r > '9' {
			break
		}
		n = n*10 + int(r-'0')
	}
	return n
}
