// Package main is a module with a FastSLAM service model.
package main

import (
	"context"
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/zap/zapcore"
	"go.viam.com/rdk/logging"
	"go.viam.com/rdk/module"
	"go.viam.com/rdk/services/generic"
	"go.viam.com/utils"

	viamfastslam "github.com/viam-modules/viam-fastslam"
	"github.com/viam-modules/viam-fastslam/telemetry"
)

// Versioning variables which are replaced by LD flags.
var (
	Version     = "development"
	GitRevision = ""
)

func main() {
	utils.ContextualMain(mainWithArgs, module.NewLoggerFromArgs("fastslamModule"))
}

func mainWithArgs(ctx context.Context, args []string, logger logging.Logger) error {
	var versionFields []interface{}
	if Version != "" {
		versionFields = append(versionFields, "version", Version)
	}
	if GitRevision != "" {
		versionFields = append(versionFields, "git_rev", GitRevision)
	}
	if len(versionFields) != 0 {
		logger.Infow(viamfastslam.Model.String(), versionFields...)
	} else {
		logger.Info(viamfastslam.Model.String() + " built from source; version unknown")
	}

	if len(args) == 2 && strings.HasSuffix(args[1], "-version") {
		return nil
	}
	if len(args) < 2 {
		return errors.New("need socket path as command line argument")
	}

	// spans are only exported when debugging
	if logger.Level() == zapcore.DebugLevel {
		exporter, err := telemetry.SetupTelemetry()
		if err != nil {
			return err
		}
		defer exporter.Stop()
	}

	fastslamModule, err := module.NewModule(ctx, args[1], logger)
	if err != nil {
		return err
	}

	if err = fastslamModule.AddModelFromRegistry(ctx, generic.API, viamfastslam.Model); err != nil {
		return err
	}

	err = fastslamModule.Start(ctx)
	defer fastslamModule.Close(ctx)
	if err != nil {
		return err
	}
	<-ctx.Done()
	return nil
}
