package product

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCategory(t *testing.T) {
	for _, c := range Categories() {
		got, err := ParseCategory(string(c))
		require.NoError(t, err)
		assert.Equal(t, c, got)
	}

	for _, s := range []string{"", "soft-skill", "СОФТ-СКИЛ", "кнопка "} {
		_, err := ParseCategory(s)
		require.ErrorIs(t, err, ErrUnknownCategory, "input %q", s)
	}
}

func TestCategories(t *testing.T) {
	cats := Categories()
	require.Len(t, cats, 5)
	for _, c := range cats {
		assert.True(t, c.Valid())
	}
}

func TestValidate(t *testing.T) {
	valid := Product{
		ID:       "854cef69-976d-4c2a-a18c-2aa45046c390",
		Title:    "+1 час в сутках",
		Image:    "/5_Dots.svg",
		Category: CategorySoftSkill,
		Price:    NewPrice(decimal.NewFromInt(750)),
	}

	tests := []struct {
		name    string
		mutate  func(p *Product)
		wantErr error
	}{
		{name: "valid", mutate: func(*Product) {}},
		{name: "priceless is valid", mutate: func(p *Product) { p.Price = NoPrice() }},
		{name: "zero price is valid", mutate: func(p *Product) { p.Price = NewPrice(decimal.Zero) }},
		{name: "missing id", mutate: func(p *Product) { p.ID = "" }, wantErr: ErrMissingID},
		{name: "missing title", mutate: func(p *Product) { p.Title = "" }, wantErr: ErrMissingTitle},
		{name: "unknown category", mutate: func(p *Product) { p.Category = "misc" }, wantErr: ErrUnknownCategory},
		{name: "empty category", mutate: func(p *Product) { p.Category = "" }, wantErr: ErrUnknownCategory},
		{
			name:    "negative price",
			mutate:  func(p *Product) { p.Price = NewPrice(decimal.NewFromInt(-1)) },
			wantErr: ErrNegativePrice,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := valid
			tt.mutate(&p)

			err := p.Validate()
			if tt.wantErr == nil {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestBasketLine(t *testing.T) {
	p := Product{
		ID:          "p1",
		Title:       "Бэкенд-антистресс",
		Description: "Если планируете решать задачи в тренажёре, берите два.",
		Image:       "/Asterisk_2.svg",
		Category:    CategoryOther,
		Price:       NewPrice(decimal.NewFromInt(1000)),
	}

	line := p.BasketLine()
	assert.Equal(t, BasketLine{ID: "p1", Title: "Бэкенд-антистресс", Price: p.Price}, line)

	priceless := Product{ID: "p2", Title: "Мамка-таймер", Category: CategorySoftSkill}
	assert.False(t, priceless.BasketLine().Price.Valid)
	assert.False(t, priceless.Priced())
}
