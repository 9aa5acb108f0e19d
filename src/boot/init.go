package boot

import (
	"cbs/src/common"
	"cbs/src/db"
	"cbs/src/models"
	"log"

	"gorm.io/gorm"
)

func InitDb() *gorm.DB {
	db := db.GetDb()

	err := db.AutoMigrate(
		&models.User{},
		&models.Court{},
		&models.Order{},
		&models.CartItem{},
		&models.Booking{},
		&models.WaitlistEntry{},
	)
	if err != nil {
		log.Fatalf("error migration: %s", err.Error())
	}

	return db
}

func InitScheduler() {
	if err := common.RegisterSweepers(); err != nil {
		log.Printf("Error registering sweepers: %s\n", err.Error())
	}
}
