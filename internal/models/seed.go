package models

import (
	"fmt"
	"os"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// CreateSuperAdminFromEnv bootstraps the first operator account. No-op
// when a super admin already exists, so it is safe to run on every boot.
func CreateSuperAdminFromEnv(db *gorm.DB) error {
	var count int64
	db.Model(&User{}).Where("role = ?", UserRoleSuperAdmin).Count(&count)
	if count > 0 {
		return nil
	}

	email, ok := os.LookupEnv("SUPERADMIN_EMAIL")
	if !ok {
		return fmt.Errorf("SUPERADMIN_EMAIL not set")
	}

	password, ok := os.LookupEnv("SUPERADMIN_PASSWORD")
	if !ok {
		return fmt.Errorf("SUPERADMIN_PASSWORD not set")
	}

	name, ok := os.LookupEnv("SUPERADMIN_NAME")
	if !ok {
		return fmt.Errorf("SUPERADMIN_NAME not set")
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %v", err)
	}

	team := Team{
		Name:     name + "'s Team",
		PlanTier: PlanTierPremium,
	}

	if err := db.Create(&team).Error; err != nil {
		return fmt.Errorf("failed to create team: %v", err)
	}

	user := User{
		FirstName: name,
		LastName:  "",
		Email:     email,
		Role:      UserRoleSuperAdmin,
		Password:  string(hashedPassword),
		TeamID:    team.ID,
	}

	if err := db.Create(&user).Error; err != nil {
		return fmt.Errorf("failed to create superadmin user: %v", err)
	}

	return nil
}
