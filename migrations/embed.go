// Package migrations embeds the schema for every supported store.
package migrations

import (
	"embed"
	"fmt"
	"io/fs"
	"sort"
)

//go:embed mysql/*.sql postgres/*.sql clickhouse/*.sql
var files embed.FS

// Dir maps a database driver name to its migration directory.
func Dir(driver string) (string, error) {
	switch driver {
	case "mysql":
		return "mysql", nil
	case "pgx", "postgres":
		return "postgres", nil
	case "clickhouse":
		return "clickhouse", nil
	}
	return "", fmt.Errorf("no migrations for driver %q", driver)
}

// Scripts returns the driver's scripts in file name order.
func Scripts(driver string) ([]string, error) {
	dir, err := Dir(driver)
	if err != nil {
		return nil, err
	}
	names, err := fs.Glob(files, dir+"/*.sql")
	if err != nil {
		return nil, err
	}
	sort.Strings(names)

	out := make([]string, 0, len(names))
	for _, n := range names {
		b, err := files.ReadFile(n)
		if err != nil {
			return nil, err
		}
		out = append(out, string(b))
	}
	return out, nil
}
