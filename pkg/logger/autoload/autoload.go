// Package autoload initializes the global logger from the LOG_* environment
// on import.
package autoload

import (
	configx "sellerpilot/pkg/config"
	logx "sellerpilot/pkg/logger"
)

func init() {
	cfg := configx.MustNew[logx.Config]("LOG")
	logx.Init(*cfg)
}
