// Package autoload initializes the global logger from LOG_* env vars
// as a side effect of the import.
package autoload

import (
	configx "github.com/kiranaops/kirana-agent/pkg/config"
	logx "github.com/kiranaops/kirana-agent/pkg/logger"
)

func init() {
	logx.Init(*configx.MustNew[logx.Config]("LOG"))
}
