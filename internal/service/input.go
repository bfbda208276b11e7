package service

import (
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/utafrali/catalog-service/internal/domain"
	"github.com/utafrali/catalog-service/internal/repository"
	"github.com/utafrali/catalog-service/internal/storage"
	apperrors "github.com/utafrali/catalog-service/pkg/errors"
	"github.com/utafrali/catalog-service/pkg/validator"
)

// MaxImageSize is the largest accepted product image, in bytes.
const MaxImageSize = 5 << 20

var allowedImageTypes = []string{"image/jpeg", "image/png", "image/webp"}

// ImageUpload is one image attached to a create or update request.
type ImageUpload struct {
	Filename    string
	ContentType string
	Size        int64
	Body        io.Reader
}

func (u ImageUpload) toStorage() storage.UploadInput {
	return storage.UploadInput{
		Filename:    u.Filename,
		ContentType: u.ContentType,
		Size:        u.Size,
		Body:        u.Body,
	}
}

// FieldError is a request field whose raw value could not be decoded.
type FieldError struct {
	Field   string
	Message string
}

// CreateProductInput holds the parameters for creating a product. SellerID
// is the authenticated creator.
type CreateProductInput struct {
	Name        string          `json:"name" validate:"required,min=3"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price" validate:"required,gt=0"`
	Stock       int             `json:"stock" validate:"gte=0"`
	Discount    *int            `json:"discount" validate:"omitnil,gte=0,lte=100"`
	CategoryID  int64           `json:"categoryId" validate:"required,gt=0"`
	ShopID      int64           `json:"shopId" validate:"required,gt=0"`
	SellerID    int64           `json:"sellerId" validate:"required,gt=0"`
	Images      []ImageUpload   `json:"-" validate:"-"`
	Malformed   []FieldError    `json:"-" validate:"-"`
}

// UpdateProductInput holds a partial update. Nil fields are left untouched
// and are not validated.
type UpdateProductInput struct {
	Name           *string          `json:"name" validate:"omitnil,min=3"`
	Description    *string          `json:"description"`
	Price          *decimal.Decimal `json:"price" validate:"omitnil,gt=0"`
	Stock          *int             `json:"stock" validate:"omitnil,gte=0"`
	Discount       *int             `json:"discount" validate:"omitnil,gte=0,lte=100"`
	CategoryID     *int64           `json:"categoryId" validate:"omitnil,gt=0"`
	IsActive       *bool            `json:"isActive"`
	SellerID       *int64           `json:"sellerId"`
	Images         []ImageUpload    `json:"-" validate:"-"`
	ImagesToDelete []string         `json:"imagesToDelete" validate:"-"`
	Malformed      []FieldError     `json:"-" validate:"-"`
}

func (in UpdateProductInput) changes() domain.ProductChanges {
	return domain.ProductChanges{
		Name:        in.Name,
		Description: in.Description,
		Price:       in.Price,
		Stock:       in.Stock,
		Discount:    in.Discount,
		CategoryID:  in.CategoryID,
		IsActive:    in.IsActive,
		SellerID:    in.SellerID,
	}
}

// validateInput runs the struct tags of in and the image checks together,
// reporting every violation in a single validation error. Fields listed in
// malformed report their decode failure instead of their tag violations.
func validateInput(in any, malformed []FieldError, images []ImageUpload, extra ...string) error {
	var msgs []string
	if err := validator.Validate(in); err != nil {
		var ve *validator.ValidationError
		if !errors.As(err, &ve) {
			return err
		}
		fields := make([]string, len(malformed))
		for i, fe := range malformed {
			fields[i] = fe.Field
		}
		if ve = ve.Without(fields...); ve != nil {
			msgs = append(msgs, ve.Messages()...)
		}
	}
	for _, fe := range malformed {
		msgs = append(msgs, fe.Message)
	}
	msgs = append(msgs, imageViolations(images)...)
	msgs = append(msgs, extra...)

	if len(msgs) > 0 {
		return apperrors.Validation(msgs...)
	}
	return nil
}

func imageViolations(images []ImageUpload) []string {
	var msgs []string
	for i, img := range images {
		if !slices.Contains(allowedImageTypes, img.ContentType) {
			msgs = append(msgs, fmt.Sprintf("images[%d] must be one of: %s", i, strings.Join(allowedImageTypes, ", ")))
		}
		if img.Size > MaxImageSize {
			msgs = append(msgs, fmt.Sprintf("images[%d] must be at most 5MB", i))
		}
	}
	return msgs
}

// unknownImages reports URLs in toDelete that are not attached to the product.
func unknownImages(existing, toDelete []string) []string {
	var msgs []string
	for _, url := range toDelete {
		if !slices.Contains(existing, url) {
			msgs = append(msgs, fmt.Sprintf("imagesToDelete: %s is not an image of this product", url))
		}
	}
	return msgs
}

// validateFilter rejects sort keys and directions outside the closed sets.
func validateFilter(f repository.ProductFilter) error {
	var msgs []string
	if !f.SortBy.Valid() {
		msgs = append(msgs, fmt.Sprintf("sortBy must be one of: %s, %s, %s", repository.SortByPrice, repository.SortByRating, repository.SortByCreatedAt))
	}
	if !f.SortOrder.Valid() {
		msgs = append(msgs, fmt.Sprintf("sortOrder must be one of: %s, %s", repository.SortAsc, repository.SortDesc))
	}
	if f.MinPrice != nil && f.MaxPrice != nil && f.MinPrice.GreaterThan(*f.MaxPrice) {
		msgs = append(msgs, "minPrice must not exceed maxPrice")
	}
	if len(msgs) > 0 {
		return apperrors.Validation(msgs...)
	}
	return nil
}
