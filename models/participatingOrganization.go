package models

import (
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ParticipatingOrganization links an activity to a directory organization in a
// role. Unique on (activity, organization, role) so re-import never duplicates
// a relationship.
type ParticipatingOrganization struct {
	ID             int    `gorm:"primary_key" json:"id"`
	ActivityId     int    `gorm:"uniqueIndex:idx_activity_org_role,priority:1;not null" json:"activity_id"`
	OrganizationId int    `gorm:"uniqueIndex:idx_activity_org_role,priority:2;not null" json:"organization_id"`
	Role           string `gorm:"uniqueIndex:idx_activity_org_role,priority:3;size:20;not null" json:"role"`
	Ref            string `gorm:"size:128" json:"ref"`
	Name           string `gorm:"size:255" json:"name"`
	TypeCode       string `gorm:"size:10" json:"type_code"`
}

// UpsertParticipation inserts the relationship or refreshes its display fields
// when the (activity, organization, role) row already exists.
func UpsertParticipation(tx *gorm.DB, p *ParticipatingOrganization) error {
	return tx.Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "activity_id"}, {Name: "organization_id"}, {Name: "role"},
		},
		DoUpdates: clause.AssignmentColumns([]string{"ref", "name", "type_code"}),
	}).Create(p).Error
}
