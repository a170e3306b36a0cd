//go:build !sqlite
// +build !sqlite

package memory

import (
	"errors"

	logx "quackbot/pkg/logx"
)

func openSQLite(cfg Config, log logx.Logger) (Store, error) {
	_ = cfg
	_ = log
	return nil, errors.New("sqlite memory store not built: build with -tags sqlite")
}
