package repositories

import (
	"fmt"

	"github.com/glebarez/sqlite"
	"github.com/shiftfill/outreach/internal/entities"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	DriverSQLite = "sqlite"
	DriverMySQL  = "mysql"
)

type DbContext struct {
	DB *gorm.DB
}

func NewDbContext(driver, connectionString string) (*DbContext, error) {
	var dialector gorm.Dialector
	switch driver {
	case DriverSQLite, "":
		dialector = sqlite.Open(connectionString)
	case DriverMySQL:
		dialector = mysql.Open(connectionString)
	default:
		return nil, fmt.Errorf("unsupported db driver %q", driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Error),
	})
	if err != nil {
		return nil, err
	}

	if driver != DriverMySQL {
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		// sqlite allows one writer; a single connection avoids "database is locked" under concurrent acquires.
		sqlDB.SetMaxOpenConns(1)
		if err = db.Exec("PRAGMA busy_timeout = 5000").Error; err != nil {
			return nil, fmt.Errorf("failed to set busy timeout: %w", err)
		}
		if err = db.Exec("PRAGMA foreign_keys = ON").Error; err != nil {
			return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
		}
	}

	return &DbContext{DB: db}, nil
}

func (c *DbContext) Migrate() error {
	err := c.DB.AutoMigrate(entities.ProcessingLock{})
	if err != nil {
		return fmt.Errorf("failed to migrate ProcessingLock entity: %w", err)
	}

	err = c.DB.AutoMigrate(entities.CampaignRecord{})
	if err != nil {
		return fmt.Errorf("failed to migrate CampaignRecord entity: %w", err)
	}

	err = c.DB.AutoMigrate(entities.AttemptRecord{})
	if err != nil {
		return fmt.Errorf("failed to migrate AttemptRecord entity: %w", err)
	}

	return nil
}

func (c *DbContext) Close() error {
	db, err := c.DB.DB()
	if err != nil {
		return err
	}

	return db.Close()
}
