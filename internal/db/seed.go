package db

import (
	"errors"

	"github.com/diewo77/go-stock/internal/models"
	"gorm.io/gorm"
)

// Seed inserts the default admin and category when missing. It is idempotent.
func Seed(db *gorm.DB) error {
	admins := []models.Admin{
		{Name: "Administrator", Email: "admin@localhost", Active: true},
	}
	for _, a := range admins {
		var existing models.Admin
		err := db.Where("email = ?", a.Email).First(&existing).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			if err := db.Create(&a).Error; err != nil {
				return err
			}
			continue
		}
		if err != nil {
			return err
		}
	}

	categories := []string{"General"}
	for _, name := range categories {
		var existing models.Category
		err := db.Where("name = ?", name).First(&existing).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			if err := db.Create(&models.Category{Name: name, Slug: models.Slugify(name)}).Error; err != nil {
				return err
			}
			continue
		}
		if err != nil {
			return err
		}
	}
	return nil
}
