package models

// Issuer attributes a record to the user who wrote it. UserName is a
// formatted snapshot taken at write time; it survives the user being
// deactivated or renamed.
type Issuer struct {
	UserId   int    `gorm:"not null;index" json:"user_id"`
	UserName string `gorm:"size:150" json:"user_name"`
}

func issuerOf(a Actor) Issuer {
	return Issuer{UserId: a.UserId, UserName: a.FormattedName()}
}

// DisplayName prefers the live name when the user still resolves.
func (i Issuer) DisplayName(live map[int]string) string {
	if name, ok := live[i.UserId]; ok && name != "" {
		return name
	}
	if i.UserName != "" {
		return i.UserName
	}
	return "Deleted user"
}
