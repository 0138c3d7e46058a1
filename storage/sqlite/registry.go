package sqlite

import (
	"flag"
	"fmt"

	"xdao.co/trustring/storage"
	"xdao.co/trustring/storage/registry"
)

var (
	flagDSN string
)

func init() {
	registry.MustRegister(registry.Backend{
		Name:        "sqlite",
		Description: "SQLite attribute table (pure Go driver)",
		Usage:       registry.UsageCLI | registry.UsageDaemon,
		RegisterFlags: func(fs *flag.FlagSet) {
			fs.StringVar(&flagDSN, "sqlite-dsn", "", "SQLite database path or DSN (for --backend=sqlite)")
		},
		Open: func() (storage.Store, func() error, error) {
			return open(flagDSN)
		},
		OpenWithConfig: func(cfg map[string]string) (storage.Store, func() error, error) {
			return open(cfg["sqlite-dsn"])
		},
	})
}

func open(dsn string) (storage.Store, func() error, error) {
	if dsn == "" {
		return nil, nil, fmt.Errorf("missing --sqlite-dsn")
	}
	s, err := Open(dsn)
	if err != nil {
		return nil, nil, err
	}
	return s, s.Close, nil
}
