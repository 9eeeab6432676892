package bootstrap

import (
	"github.com/kbukum/intentflow/config"
)

// Config is the constraint for application configuration types. Any
// struct embedding config.ServiceConfig satisfies it through promoted
// methods, provided it also defines ApplyDefaults and Validate when it adds
// sections of its own.
type Config interface {
	GetServiceConfig() *config.ServiceConfig
	ApplyDefaults()
	Validate() error
}
