package migrate

import (
	"context"
	"fmt"

	"github.com/fleetdesk/fleetdesk-backend/pkg/config"
	"github.com/fleetdesk/fleetdesk-backend/pkg/db"
	"github.com/fleetdesk/fleetdesk-backend/pkg/db/models"
	"github.com/fleetdesk/fleetdesk-backend/pkg/logger"
)

// allModels is the full schema in dependency order.
func allModels() []any {
	return []any{
		&models.FleetPark{},
		&models.Manager{},
		&models.Agent{},
		&models.DriverLink{},
		&models.RegistrationDraft{},
	}
}

// MaybeRunDev synchronizes the schema automatically when the app runs in dev
// mode with the feature flag enabled. Production schema changes are managed
// outside the process.
func MaybeRunDev(ctx context.Context, cfg *config.Config, logg *logger.Logger, client *db.Client) error {
	if !cfg.App.IsDev() || !cfg.FeatureFlags.AutoMigrate {
		return nil
	}

	ctx = logg.WithField(ctx, "env", cfg.App.Env)
	logg.Info(ctx, "running schema auto-migration (dev auto-run)")

	if err := client.DB().WithContext(ctx).AutoMigrate(allModels()...); err != nil {
		return fmt.Errorf("auto-migrating schema: %w", err)
	}

	logg.Info(ctx, "schema auto-migration completed")
	return nil
}
