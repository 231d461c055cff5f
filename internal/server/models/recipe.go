package models

// Recipe belongs to exactly one user. Image holds the storage key of the
// uploaded picture, empty when none was uploaded.
type Recipe struct {
	ID          int64         `db:"id" json:"id"`
	UserID      string        `db:"user_id" json:"-"`
	Title       string        `db:"title" json:"title"`
	TimeMinutes int           `db:"time_minutes" json:"time_minutes"`
	Price       string        `db:"price" json:"price"`
	Link        string        `db:"link" json:"link"`
	Image       string        `db:"image" json:"image,omitempty"`
	Tags        []*Tag        `db:"-" json:"tags"`
	Ingredients []*Ingredient `db:"-" json:"ingredients"`
}

func (r *Recipe) String() string {
	return r.Title
}

// TagIDs returns the ids of the attached tags in order.
func (r *Recipe) TagIDs() []int64 {
	ids := make([]int64, 0, len(r.Tags))
	for _, t := range r.Tags {
		ids = append(ids, t.ID)
	}
	return ids
}

// IngredientIDs returns the ids of the attached ingredients in order.
func (r *Recipe) IngredientIDs() []int64 {
	ids := make([]int64, 0, len(r.Ingredients))
	for _, i := range r.Ingredients {
		ids = append(ids, i.ID)
	}
	return ids
}
