// Package modkit provides module wiring and core deps
package modkit

import (
	"backplane/internal/backend/domain"
	"backplane/internal/platform/config"
	"backplane/internal/platform/logger"
)

// Deps holds core dependencies passed to modules
// this is wiring only and does not introduce new abstractions
type Deps struct {
	Log     logger.Logger
	Cfg     config.Conf
	Backend domain.Backend
}

// ZeroOK returns true when deps are safe to use with zero values in tests
// consumers should still nil check the backend
func (d Deps) ZeroOK() bool { return true }
