package services

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"storefront-backend/apperr"
	"storefront-backend/cache"
	"storefront-backend/models"
	"storefront-backend/utils"
)

type ProductInput struct {
	Slug         string               `json:"slug" validate:"omitempty,max=191"`
	DisplayNames models.LocalizedText `json:"displayNames"`
	Description  models.LocalizedText `json:"description"`
	Price        decimal.Decimal      `json:"price"`
	Images       []string             `json:"images" validate:"omitempty,dive,required"`
	Stock        int                  `json:"stock" validate:"gte=0"`
	Active       *bool                `json:"active"`
	BrandID      *string              `json:"brandId"`
	CategoryID   *string              `json:"categoryId"`
}

type ProductPatch struct {
	Slug         *string               `json:"slug" validate:"omitempty,max=191"`
	DisplayNames *models.LocalizedText `json:"displayNames"`
	Description  *models.LocalizedText `json:"description"`
	Price        *decimal.Decimal      `json:"price"`
	Images       *[]string             `json:"images"`
	Stock        *int                  `json:"stock" validate:"omitempty,gte=0"`
	Active       *bool                 `json:"active"`
	BrandID      *string               `json:"brandId"`
	CategoryID   *string               `json:"categoryId"`
}

type ProductFilter struct {
	CategoryID string
	BrandID    string
	Search     string
	// IncludeInactive is honoured for admins only.
	IncludeInactive bool
}

type BrandInput struct {
	Slug string               `json:"slug"`
	Name models.LocalizedText `json:"name"`
}

type CategoryInput struct {
	Slug string               `json:"slug"`
	Name models.LocalizedText `json:"name"`
	Icon *models.IconSource   `json:"icon"`
}

type CatalogService struct {
	products *cache.Store[string, models.Product]
}

func NewCatalogService(products *cache.Store[string, models.Product]) *CatalogService {
	return &CatalogService{products: products}
}

func (s *CatalogService) InvalidateProduct(ids ...string) {
	s.products.Invalidate(ids...)
}

// List pages through products. Search matches the slug and both display
// names.
func (s *CatalogService) List(ctx context.Context, db *gorm.DB, viewer Viewer, f ProductFilter, p utils.PageParams) (utils.Page[models.Product], error) {
	q := db.WithContext(ctx).Model(&models.Product{})
	if !(viewer.IsAdmin && f.IncludeInactive) {
		q = q.Where("active = ?", true)
	}
	if f.CategoryID != "" {
		q = q.Where("category_id = ?", f.CategoryID)
	}
	if f.BrandID != "" {
		q = q.Where("brand_id = ?", f.BrandID)
	}
	if term := strings.ToLower(strings.TrimSpace(f.Search)); term != "" {
		like := "%" + term + "%"
		q = q.Where("(LOWER(slug) LIKE ? OR LOWER("+textCast(db, "display_names")+") LIKE ?)", like, like)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return utils.Page[models.Product]{}, apperr.Wrap(err, "could not count products")
	}
	var items []models.Product
	if err := q.Preload("Brand").Preload("Category").
		Order("created_at DESC").Offset(p.Offset()).Limit(p.PageSize).
		Find(&items).Error; err != nil {
		return utils.Page[models.Product]{}, apperr.Wrap(err, "could not list products")
	}
	return utils.NewPage(items, total, p), nil
}

func textCast(db *gorm.DB, column string) string {
	if db.Dialector.Name() == "mysql" {
		return "CAST(" + column + " AS CHAR)"
	}
	return "CAST(" + column + " AS TEXT)"
}

// Get returns a product through the product cache. Inactive products are
// hidden from non-admins.
func (s *CatalogService) Get(ctx context.Context, db *gorm.DB, viewer Viewer, id string) (*models.Product, error) {
	id = strings.TrimSpace(id)
	p, ok := s.products.Get(id)
	if !ok {
		if err := db.WithContext(ctx).Preload("Brand").Preload("Category").First(&p, "id = ?", id).Error; err != nil {
			return nil, notFound(err, "Product not found")
		}
		s.products.Set(id, p)
	}
	if !p.Active && !viewer.IsAdmin {
		return nil, apperr.NotFoundErr("Product not found")
	}
	return &p, nil
}

// checkRefs verifies that the referenced brand and category exist.
func checkRefs(tx *gorm.DB, brandID, categoryID *string) error {
	details := map[string]any{}
	if brandID != nil && *brandID != "" {
		var n int64
		if err := tx.Model(&models.Brand{}).Where("id = ?", *brandID).Count(&n).Error; err != nil {
			return apperr.Wrap(err, "could not check brand")
		}
		if n == 0 {
			details["brandId"] = *brandID
		}
	}
	if categoryID != nil && *categoryID != "" {
		var n int64
		if err := tx.Model(&models.Category{}).Where("id = ?", *categoryID).Count(&n).Error; err != nil {
			return apperr.Wrap(err, "could not check category")
		}
		if n == 0 {
			details["categoryId"] = *categoryID
		}
	}
	if len(details) > 0 {
		return apperr.InvalidErr("Unknown brand or category", map[string]any{"unknownReferences": details})
	}
	return nil
}

func emptyToNil(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}

func validateProductText(names *models.LocalizedText, price *decimal.Decimal) error {
	if names != nil && !names.Complete() {
		return apperr.InvalidErr("Display name requires both English and Chinese versions", map[string]any{"displayNames": names})
	}
	if price != nil && price.IsNegative() {
		return apperr.InvalidErr("Price must not be negative", map[string]any{"price": price.String()})
	}
	return nil
}

func (s *CatalogService) Create(ctx context.Context, db *gorm.DB, in ProductInput) (*models.Product, error) {
	utils.NormalizeDTO(&in)
	names := in.DisplayNames.Trimmed()
	if err := validateProductText(&names, &in.Price); err != nil {
		return nil, err
	}
	slug, err := slugFor(in.Slug, names.EN)
	if err != nil {
		return nil, err
	}
	active := true
	if in.Active != nil {
		active = *in.Active
	}
	images := in.Images
	if images == nil {
		images = []string{}
	}
	p := &models.Product{
		Slug:         slug,
		DisplayNames: datatypes.NewJSONType(names),
		Description:  datatypes.NewJSONType(in.Description.Trimmed()),
		Price:        in.Price,
		Images:       datatypes.NewJSONSlice(images),
		Stock:        in.Stock,
		Active:       active,
		BrandID:      emptyToNil(in.BrandID),
		CategoryID:   emptyToNil(in.CategoryID),
	}
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := checkRefs(tx, p.BrandID, p.CategoryID); err != nil {
			return err
		}
		if err := uniqueSlug(tx, &models.Product{}, p.Slug, ""); err != nil {
			return err
		}
		if err := tx.Create(p).Error; err != nil {
			return apperr.Wrap(err, "could not create product")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

// Update patches a product. Brand and category references are checked in
// the same transaction as the write.
func (s *CatalogService) Update(ctx context.Context, db *gorm.DB, id string, in ProductPatch) (*models.Product, error) {
	utils.NormalizePtrDTO(&in)
	if in.DisplayNames != nil {
		t := in.DisplayNames.Trimmed()
		in.DisplayNames = &t
	}
	if err := validateProductText(in.DisplayNames, in.Price); err != nil {
		return nil, err
	}

	updates := utils.UpdatesFromPtrDTO(&in, nil)
	if in.DisplayNames != nil {
		updates["display_names"] = datatypes.NewJSONType(*in.DisplayNames)
	}
	if in.Description != nil {
		updates["description"] = datatypes.NewJSONType(in.Description.Trimmed())
	}
	if in.Images != nil {
		updates["images"] = datatypes.NewJSONSlice(*in.Images)
	}
	if in.BrandID != nil {
		updates["brand_id"] = emptyToNil(in.BrandID)
	}
	if in.CategoryID != nil {
		updates["category_id"] = emptyToNil(in.CategoryID)
	}
	if in.Slug != nil {
		updates["slug"] = utils.Slugify(*in.Slug, "")
	}

	id = strings.TrimSpace(id)
	var p models.Product
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&p, "id = ?", id).Error; err != nil {
			return notFound(err, "Product not found")
		}
		if err := checkRefs(tx, emptyToNil(in.BrandID), emptyToNil(in.CategoryID)); err != nil {
			return err
		}
		if slug, ok := updates["slug"].(string); ok {
			if slug == "" {
				return apperr.InvalidErr("Slug must not be empty", map[string]any{"slug": *in.Slug})
			}
			if err := uniqueSlug(tx, &models.Product{}, slug, id); err != nil {
				return err
			}
		}
		if len(updates) > 0 {
			if err := tx.Model(&models.Product{}).Where("id = ?", id).Updates(updates).Error; err != nil {
				return apperr.Wrap(err, "could not update product")
			}
		}
		return tx.Preload("Brand").Preload("Category").First(&p, "id = ?", id).Error
	})
	if err != nil {
		return nil, err
	}
	s.products.Invalidate(id)
	return &p, nil
}

func (s *CatalogService) Delete(ctx context.Context, db *gorm.DB, id string) error {
	id = strings.TrimSpace(id)
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var p models.Product
		if err := tx.Select("id").First(&p, "id = ?", id).Error; err != nil {
			return notFound(err, "Product not found")
		}
		var used int64
		if err := tx.Model(&models.OrderItem{}).Where("product_id = ?", id).Count(&used).Error; err != nil {
			return apperr.Wrap(err, "could not check product usage")
		}
		if used > 0 {
			return apperr.ConflictErr("Product is referenced by orders; deactivate it instead")
		}
		if err := tx.Where("product_id = ?", id).Delete(&models.Review{}).Error; err != nil {
			return apperr.Wrap(err, "could not delete product reviews")
		}
		if err := tx.Delete(&p).Error; err != nil {
			return apperr.Wrap(err, "could not delete product")
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.products.Invalidate(id)
	return nil
}

// slugFor slugifies explicit, falling back to name.
func slugFor(explicit, name string) (string, error) {
	slug := utils.Slugify(explicit, utils.Slugify(name, ""))
	if slug == "" {
		return "", apperr.InvalidErr("Slug could not be derived", map[string]any{"slug": explicit})
	}
	return slug, nil
}

// uniqueSlug fails with Conflict when another row of model's table uses slug.
func uniqueSlug(tx *gorm.DB, model any, slug, exceptID string) error {
	q := tx.Model(model).Where("slug = ?", slug)
	if exceptID != "" {
		q = q.Where("id <> ?", exceptID)
	}
	var n int64
	if err := q.Count(&n).Error; err != nil {
		return apperr.Wrap(err, "could not check slug")
	}
	if n > 0 {
		return apperr.ConflictErr("Slug already in use: " + slug)
	}
	return nil
}

func (s *CatalogService) ListBrands(ctx context.Context, db *gorm.DB) ([]models.Brand, error) {
	var brands []models.Brand
	if err := db.WithContext(ctx).Order("slug ASC").Find(&brands).Error; err != nil {
		return nil, apperr.Wrap(err, "could not list brands")
	}
	if brands == nil {
		brands = []models.Brand{}
	}
	return brands, nil
}

func (s *CatalogService) CreateBrand(ctx context.Context, db *gorm.DB, in BrandInput) (*models.Brand, error) {
	name := in.Name.Trimmed()
	if !name.Complete() {
		return nil, apperr.InvalidErr("Brand name requires both English and Chinese versions", map[string]any{"name": name})
	}
	slug, err := slugFor(in.Slug, name.EN)
	if err != nil {
		return nil, err
	}
	b := &models.Brand{Slug: slug, Name: datatypes.NewJSONType(name)}
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := uniqueSlug(tx, &models.Brand{}, b.Slug, ""); err != nil {
			return err
		}
		return tx.Create(b).Error
	})
	if err != nil {
		return nil, err
	}
	return b, nil
}

func (s *CatalogService) ListCategories(ctx context.Context, db *gorm.DB) ([]models.Category, error) {
	var cats []models.Category
	if err := db.WithContext(ctx).Order("slug ASC").Find(&cats).Error; err != nil {
		return nil, apperr.Wrap(err, "could not list categories")
	}
	if cats == nil {
		cats = []models.Category{}
	}
	return cats, nil
}

func (s *CatalogService) CreateCategory(ctx context.Context, db *gorm.DB, in CategoryInput) (*models.Category, error) {
	name := in.Name.Trimmed()
	if !name.Complete() {
		return nil, apperr.InvalidErr("Category name requires both English and Chinese versions", map[string]any{"name": name})
	}
	var icon models.IconSource
	if in.Icon != nil {
		if err := in.Icon.Validate(); err != nil {
			return nil, apperr.InvalidErr("Invalid category icon", map[string]any{"icon": err.Error()})
		}
		icon = *in.Icon
	}
	slug, err := slugFor(in.Slug, name.EN)
	if err != nil {
		return nil, err
	}
	c := &models.Category{
		Slug: slug,
		Name: datatypes.NewJSONType(name),
		Icon: datatypes.NewJSONType(icon),
	}
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := uniqueSlug(tx, &models.Category{}, c.Slug, ""); err != nil {
			return err
		}
		return tx.Create(c).Error
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}
