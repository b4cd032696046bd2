package database

import (
	"go.uber.org/zap"
	"gorm.io/gorm"

	"restosite/models"
)

// All lists every table owned by the main database.
var All = []interface{}{
	&models.User{},
	&models.Restaurant{},
	&models.SectionRecord{},
	&models.SectionListState{},
	&models.SectionContent{},
}

func RunMigrations(db *gorm.DB, log *zap.Logger) error {
	log.Info("Running database migrations...")

	if err := db.AutoMigrate(All...); err != nil {
		log.Error("Error running migrations", zap.Error(err))
		return err
	}

	log.Info("Migrations completed successfully")
	return nil
}
