package models

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/LeighHMitchell/AIMS-sub014/config"
	"github.com/LeighHMitchell/AIMS-sub014/utils"
	"github.com/ttacon/libphonenumber"
	"gorm.io/gorm"
)

var CountryCode = "MM"

type Organization struct {
	ID               int       `gorm:"primary_key" json:"id"`
	Name             string    `gorm:"size:255;not null;index" json:"name"`
	IatiRef          string    `gorm:"size:128;index" json:"iati_ref"`
	OrganizationType string    `gorm:"size:20" json:"organization_type"`
	Website          string    `gorm:"size:255" json:"website"`
	ContactEmail     string    `gorm:"size:255" json:"contact_email"`
	ContactPhone     string    `gorm:"size:50" json:"contact_phone"`
	Country          string    `gorm:"size:100" json:"country"`
	CreatedAt        time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewOrganization struct {
	Name             string `json:"name" binding:"required" validate:"required"`
	IatiRef          string `json:"iati_ref"`
	OrganizationType string `json:"organization_type"`
	Website          string `json:"website"`
	ContactEmail     string `json:"contact_email" validate:"omitempty,email"`
	ContactPhone     string `json:"contact_phone"`
	Country          string `json:"country"`
}

// IATI organisation type codes mapped to the directory's categories.
var iatiOrgTypeMapping = map[string]string{
	"10": "government",
	"11": "government",
	"15": "government",
	"21": "ingo",
	"22": "ngo",
	"23": "ngo",
	"30": "multilateral",
	"40": "multilateral",
	"60": "private",
	"70": "private",
	"80": "academic",
	"90": "other",
}

func MapIatiOrganizationType(code string) string {
	if mapped, ok := iatiOrgTypeMapping[code]; ok {
		return mapped
	}
	return "other"
}

func (input *NewOrganization) validate() error {
	if err := utils.ValidateStruct(input); err != nil {
		return err
	}
	if input.ContactPhone != "" {
		p, err := libphonenumber.Parse(input.ContactPhone, CountryCode)
		if err != nil {
			return err
		}
		if !libphonenumber.IsValidNumber(p) {
			return fmt.Errorf("phone number is not valid")
		}
	}
	return nil
}

// ResolveOrganization matches first by external reference, then by
// case-insensitive name. Returns nil when neither resolves.
func ResolveOrganization(tx *gorm.DB, ref string, name string) (*Organization, error) {
	var org Organization

	if strings.TrimSpace(ref) != "" {
		err := tx.Where("iati_ref = ?", strings.TrimSpace(ref)).First(&org).Error
		if err == nil {
			return &org, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
	}

	if strings.TrimSpace(name) != "" {
		err := tx.Where("LOWER(name) = ?", strings.ToLower(strings.TrimSpace(name))).First(&org).Error
		if err == nil {
			return &org, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
	}

	return nil, nil
}

func CreateOrganization(ctx context.Context, input *NewOrganization) (*Organization, error) {
	db := config.GetDB()

	if err := input.validate(); err != nil {
		return nil, err
	}

	org := Organization{
		Name:             strings.TrimSpace(input.Name),
		IatiRef:          strings.TrimSpace(input.IatiRef),
		OrganizationType: input.OrganizationType,
		Website:          input.Website,
		ContactEmail:     input.ContactEmail,
		ContactPhone:     input.ContactPhone,
		Country:          input.Country,
	}
	if err := db.WithContext(ctx).Create(&org).Error; err != nil {
		return nil, err
	}
	return &org, nil
}

// resolveOrCreateOrganization is the import engine's path: resolve, and when
// nothing matches create a minimal directory record from the external org.
func ResolveOrCreateOrganization(tx *gorm.DB, ext CanonicalParticipatingOrg) (*Organization, error) {
	org, err := ResolveOrganization(tx, ext.Ref, ext.Name)
	if err != nil {
		return nil, &utils.ResolutionError{Ref: ext.Ref, Name: ext.Name, Err: err}
	}
	if org != nil {
		return org, nil
	}

	name := strings.TrimSpace(ext.Name)
	if name == "" {
		name = strings.TrimSpace(ext.Ref)
	}
	if name == "" {
		return nil, &utils.ResolutionError{Ref: ext.Ref, Name: ext.Name, Err: errors.New("external organization has neither ref nor name")}
	}

	created := Organization{
		Name:             name,
		IatiRef:          strings.TrimSpace(ext.Ref),
		OrganizationType: MapIatiOrganizationType(ext.TypeCode),
	}
	if err := tx.Create(&created).Error; err != nil {
		return nil, &utils.ResolutionError{Ref: ext.Ref, Name: ext.Name, Err: err}
	}
	return &created, nil
}
