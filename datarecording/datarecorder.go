// Package datarecording persists simulation traces into SQLite so that
// runs can be inspected after the fact with plain SQL.
package datarecording

import (
	"database/sql"
	"fmt"
	"os"
	"reflect"
	"strings"

	// SQLite driver for database/sql.
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/xid"
	"github.com/tebeka/atexit"
)

// DataRecorder is a backend that can record and store data.
type DataRecorder interface {
	// CreateTable creates a new table shaped after the fields of the
	// sample entry struct.
	CreateTable(tableName string, sampleEntry any)

	// InsertData buffers one entry of the table's type for writing.
	InsertData(tableName string, entry any)

	// ListTables returns the names of all created tables.
	ListTables() []string

	// Flush writes all buffered entries into the database.
	Flush()
}

// New creates a DataRecorder backed by a fresh SQLite file at path. An
// empty path picks a unique name. Buffered entries are flushed when the
// process exits.
func New(path string) DataRecorder {
	w := &sqliteWriter{
		dbName:    path,
		batchSize: 100000,
		tables:    make(map[string]*table),
	}

	w.init()

	atexit.Register(func() { w.Flush() })

	return w
}

type table struct {
	structType reflect.Type
	entries    []any
}

type sqliteWriter struct {
	*sql.DB

	dbName    string
	tables    map[string]*table
	batchSize int
}

func (w *sqliteWriter) init() {
	if w.dbName == "" {
		w.dbName = "memsim_trace_" + xid.New().String()
	}

	filename := w.dbName + ".sqlite3"

	if _, err := os.Stat(filename); err == nil {
		panic(fmt.Errorf("file %s already exists", filename))
	}

	fmt.Fprintf(os.Stderr, "Database created for recording: %s\n", filename)

	db, err := sql.Open("sqlite3", filename)
	if err != nil {
		panic(err)
	}

	w.DB = db
}

func (w *sqliteWriter) CreateTable(tableName string, sampleEntry any) {
	t := reflect.TypeOf(sampleEntry)
	mustBeFlatStruct(t)

	columns := make([]string, 0, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		columns = append(columns,
			fmt.Sprintf("%s %s", f.Name, sqliteType(f.Type.Kind())))
	}

	stmt := fmt.Sprintf("CREATE TABLE %s (%s);",
		tableName, strings.Join(columns, ", "))
	if _, err := w.Exec(stmt); err != nil {
		panic(err)
	}

	w.tables[tableName] = &table{structType: t}
}

func (w *sqliteWriter) InsertData(tableName string, entry any) {
	t, ok := w.tables[tableName]
	if !ok {
		panic(fmt.Errorf("table %s does not exist", tableName))
	}

	if reflect.TypeOf(entry) != t.structType {
		panic(fmt.Errorf("entry type does not match table %s", tableName))
	}

	t.entries = append(t.entries, entry)
	if len(t.entries) >= w.batchSize {
		w.flushTable(tableName, t)
	}
}

func (w *sqliteWriter) ListTables() []string {
	names := make([]string, 0, len(w.tables))
	for name := range w.tables {
		names = append(names, name)
	}

	return names
}

func (w *sqliteWriter) Flush() {
	for name, t := range w.tables {
		w.flushTable(name, t)
	}
}

func (w *sqliteWriter) flushTable(name string, t *table) {
	if len(t.entries) == 0 {
		return
	}

	tx, err := w.Begin()
	if err != nil {
		panic(err)
	}

	placeholders := strings.TrimSuffix(
		strings.Repeat("?, ", t.structType.NumField()), ", ")
	stmt, err := tx.Prepare(fmt.Sprintf(
		"INSERT INTO %s VALUES (%s);", name, placeholders))
	if err != nil {
		panic(err)
	}

	for _, entry := range t.entries {
		v := reflect.ValueOf(entry)

		values := make([]any, 0, t.structType.NumField())
		for i := 0; i < t.structType.NumField(); i++ {
			values = append(values, v.Field(i).Interface())
		}

		if _, err := stmt.Exec(values...); err != nil {
			panic(err)
		}
	}

	if err := stmt.Close(); err != nil {
		panic(err)
	}

	if err := tx.Commit(); err != nil {
		panic(err)
	}

	t.entries = t.entries[:0]
}

func mustBeFlatStruct(t reflect.Type) {
	if t.Kind() != reflect.Struct {
		panic("sample entry must be a struct")
	}

	for i := 0; i < t.NumField(); i++ {
		switch t.Field(i).Type.Kind() {
		case reflect.Bool,
			reflect.Int, reflect.Int8, reflect.Int16,
			reflect.Int32, reflect.Int64,
			reflect.Uint, reflect.Uint8, reflect.Uint16,
			reflect.Uint32, reflect.Uint64,
			reflect.Float32, reflect.Float64,
			reflect.String:
		default:
			panic(fmt.Errorf("field %s has an unsupported type",
				t.Field(i).Name))
		}
	}
}

func sqliteType(k reflect.Kind) string {
	switch k {
	case reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16,
		reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16,
		reflect.Uint32, reflect.Uint64:
		return "INTEGER"
	case reflect.Float32, reflect.Float64:
		return "REAL"
	default:
		return "TEXT"
	}
}
