package product

import "github.com/go-faster/errors"

// Category is the closed set of catalog sections.
type Category string

const (
	CategorySoftSkill  Category = "софт-скил"
	CategoryHardSkill  Category = "хард-скил"
	CategoryButton     Category = "кнопка"
	CategoryAdditional Category = "дополнительное"
	CategoryOther      Category = "другое"
)

// ErrUnknownCategory is returned for a category outside the fixed set.
var ErrUnknownCategory = errors.New("unknown category")

// Categories returns every known category in display order.
func Categories() []Category {
	return []Category{
		CategorySoftSkill,
		CategoryHardSkill,
		CategoryButton,
		CategoryAdditional,
		CategoryOther,
	}
}

// Valid reports whether c is one of the known categories.
func (c Category) Valid() bool {
	switch c {
	case CategorySoftSkill, CategoryHardSkill, CategoryButton, CategoryAdditional, CategoryOther:
		return true
	default:
		return false
	}
}

func (c Category) String() string {
	return string(c)
}

// ParseCategory converts a wire label into a Category.
func ParseCategory(s string) (Category, error) {
	c := Category(s)
	if !c.Valid() {
		return "", errors.Wrapf(ErrUnknownCategory, "%q", s)
	}
	return c, nil
}
