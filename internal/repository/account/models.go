package account

// userKey is an issued API token.
type userKey struct {
	UserID int64  `gorm:"column:user_id;not null;index"`
	Token  string `gorm:"column:token;not null;index"`
	Series string `gorm:"column:series;not null"`
}

func (userKey) TableName() string {
	return "user_keys"
}

// userRow is a site account.
type userRow struct {
	ID       int64  `gorm:"column:id;primaryKey"`
	Name     string `gorm:"column:name"`
	Username string `gorm:"column:username"`
	Email    string `gorm:"column:email"`
	Block    int    `gorm:"column:block;not null;default:0"`
}

func (userRow) TableName() string {
	return "users"
}

// userGroup maps accounts to groups.
type userGroup struct {
	UserID  int64 `gorm:"column:user_id;primaryKey"`
	GroupID int64 `gorm:"column:group_id;primaryKey"`
}

func (userGroup) TableName() string {
	return "user_usergroup_map"
}
