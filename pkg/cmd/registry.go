// Package cmd provides common initialization functions for command-line applications.
package cmd

import (
	"log/slog"

	"github.com/ruleflowhq/ruleflow/pkg/actions/assignowner"
	"github.com/ruleflowhq/ruleflow/pkg/actions/httprequest"
	"github.com/ruleflowhq/ruleflow/pkg/actions/logaction"
	"github.com/ruleflowhq/ruleflow/pkg/actions/sendnotification"
	"github.com/ruleflowhq/ruleflow/pkg/actions/updatefield"
	"github.com/ruleflowhq/ruleflow/pkg/registry"
)

func registerNativeActions(reg *registry.Registry) {
	reg.RegisterAction(assignowner.NewActionFactory())
	reg.RegisterAction(updatefield.NewActionFactory())
	reg.RegisterAction(sendnotification.NewActionFactory())
	reg.RegisterAction(httprequest.NewActionFactory())
	reg.RegisterAction(logaction.NewActionFactory())
}

func NewRegistry(log *slog.Logger) *registry.Registry {
	reg := registry.NewRegistry(log)

	registerNativeActions(reg)

	return reg
}
