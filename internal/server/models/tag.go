package models

// Tag is a user-owned label attached to recipes.
type Tag struct {
	ID     int64  `db:"id" json:"id"`
	UserID string `db:"user_id" json:"-"`
	Name   string `db:"name" json:"name"`
}

func (t *Tag) String() string {
	return t.Name
}

// Ingredient is a user-owned ingredient referenced by recipes.
type Ingredient struct {
	ID     int64  `db:"id" json:"id"`
	UserID string `db:"user_id" json:"-"`
	Name   string `db:"name" json:"name"`
}

func (i *Ingredient) String() string {
	return i.Name
}
