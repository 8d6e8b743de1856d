package utils

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

type patchDTO struct {
	Name     *string          `json:"name"`
	BrandID  *string          `json:"brandId"`
	Price    *decimal.Decimal `json:"price"`
	Skipped  *string          `json:"-"`
	Untagged *string
}

func TestUpdatesFromPtrDTO(t *testing.T) {
	name := "  Oolong "
	brand := "b1"
	price := decimal.RequireFromString("10.005")
	dto := &patchDTO{Name: &name, BrandID: &brand, Price: &price, Skipped: &name, Untagged: &name}

	NormalizePtrDTO(dto)
	got := UpdatesFromPtrDTO(dto, map[string]string{"name": "slug"})

	assert.Equal(t, "Oolong", got["slug"])
	assert.Equal(t, "b1", got["brand_id"])
	assert.True(t, decimal.RequireFromString("10.01").Equal(got["price"].(decimal.Decimal)))
	assert.Len(t, got, 3)
}

func TestSlugify(t *testing.T) {
	assert.Equal(t, "spring-tea-sale-2026", Slugify("  Spring Tea Sale! 2026 ", "post"))
	assert.Equal(t, "post", Slugify("春茶", "post"))
}

func TestSnakeCase(t *testing.T) {
	assert.Equal(t, "display_names", SnakeCase("displayNames"))
	assert.Equal(t, "price", SnakeCase("price"))
}

func TestPagination(t *testing.T) {
	p := NewPageParams(0, 500)
	assert.Equal(t, 1, p.Page)
	assert.Equal(t, DefaultPageSize, p.PageSize)

	p = NewPageParams(3, 10)
	assert.Equal(t, 20, p.Offset())

	page := NewPage[int](nil, 21, p)
	assert.Equal(t, 3, page.TotalPages)
	assert.NotNil(t, page.Items)
}

func TestRound(t *testing.T) {
	assert.Equal(t, 4.67, Round2(4.666))
	assert.Equal(t, "1.24", RoundMoney(decimal.RequireFromString("1.235")).String())
}
