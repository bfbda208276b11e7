package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/utafrali/catalog-service/internal/repository"
	"github.com/utafrali/catalog-service/internal/service"
	apperrors "github.com/utafrali/catalog-service/pkg/errors"
	"github.com/utafrali/catalog-service/pkg/pagination"
)

const (
	// MaxImagesPerRequest caps the files accepted by one create or update.
	MaxImagesPerRequest = 5

	imagesField     = "images"
	maxFormMemory   = 8 << 20
	maxRequestBytes = MaxImagesPerRequest*service.MaxImageSize + 1<<20
)

// fieldParser converts raw form and query values, collecting every parse
// failure instead of stopping at the first.
type fieldParser struct {
	values url.Values
	errs   []service.FieldError
}

func (p *fieldParser) fail(name, msg string) {
	p.errs = append(p.errs, service.FieldError{Field: name, Message: name + " " + msg})
}

func (p *fieldParser) present(name string) bool {
	return strings.TrimSpace(p.values.Get(name)) != ""
}

func (p *fieldParser) stringValue(name string) *string {
	if _, ok := p.values[name]; !ok {
		return nil
	}
	v := p.values.Get(name)
	return &v
}

func (p *fieldParser) decimalValue(name string) *decimal.Decimal {
	if !p.present(name) {
		return nil
	}
	d, err := decimal.NewFromString(strings.TrimSpace(p.values.Get(name)))
	if err != nil {
		p.fail(name, "must be a valid number")
		return nil
	}
	return &d
}

func (p *fieldParser) intValue(name string) *int {
	if !p.present(name) {
		return nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(p.values.Get(name)))
	if err != nil {
		p.fail(name, "must be an integer")
		return nil
	}
	return &n
}

func (p *fieldParser) idValue(name string) *int64 {
	if !p.present(name) {
		return nil
	}
	n, err := strconv.ParseInt(strings.TrimSpace(p.values.Get(name)), 10, 64)
	if err != nil || n <= 0 {
		p.fail(name, "must be a positive integer")
		return nil
	}
	return &n
}

func (p *fieldParser) floatValue(name string) *float64 {
	if !p.present(name) {
		return nil
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(p.values.Get(name)), 64)
	if err != nil {
		p.fail(name, "must be a valid number")
		return nil
	}
	return &f
}

func (p *fieldParser) boolValue(name string) *bool {
	if !p.present(name) {
		return nil
	}
	b, err := strconv.ParseBool(strings.TrimSpace(p.values.Get(name)))
	if err != nil {
		p.fail(name, "must be true or false")
		return nil
	}
	return &b
}

// listValue accepts repeated fields, comma separated values or a JSON array.
func (p *fieldParser) listValue(name string) []string {
	var out []string
	for _, raw := range p.values[name] {
		raw = strings.TrimSpace(raw)
		if strings.HasPrefix(raw, "[") {
			var items []string
			if err := json.Unmarshal([]byte(raw), &items); err != nil {
				p.fail(name, "must be a JSON array of strings")
				continue
			}
			out = append(out, items...)
			continue
		}
		for _, item := range strings.Split(raw, ",") {
			if item = strings.TrimSpace(item); item != "" {
				out = append(out, item)
			}
		}
	}
	return out
}

func (p *fieldParser) err() error {
	if len(p.errs) == 0 {
		return nil
	}
	msgs := make([]string, len(p.errs))
	for i, fe := range p.errs {
		msgs[i] = fe.Message
	}
	return apperrors.Validation(msgs...)
}

func deref[T any](v *T) T {
	var zero T
	if v == nil {
		return zero
	}
	return *v
}

// parseFilter reads listing filters from the query string.
func parseFilter(r *http.Request) (repository.ProductFilter, error) {
	p := &fieldParser{values: r.URL.Query()}
	page, limit := pagination.FromRequest(r)

	filter := repository.ProductFilter{
		MinPrice:   p.decimalValue("minPrice"),
		MaxPrice:   p.decimalValue("maxPrice"),
		MinRating:  p.floatValue("rating"),
		CategoryID: p.idValue("categoryId"),
		ShopID:     p.idValue("shopId"),
		InStock:    deref(p.boolValue("inStock")),
		SortBy:     repository.SortKey(p.values.Get("sortBy")),
		SortOrder:  repository.SortOrder(strings.ToLower(p.values.Get("sortOrder"))),
		Page:       page,
		Limit:      limit,
	}
	if q := strings.TrimSpace(p.values.Get("q")); q != "" {
		filter.Query = &q
	}
	return filter, p.err()
}

// productForm is a create or update request read from either a multipart
// form or a JSON body. Uploaded files must be released with close.
type productForm struct {
	fields        *fieldParser
	images        []service.ImageUpload
	files         []multipart.File
	multipartForm *multipart.Form
}

func (f *productForm) close() {
	for _, file := range f.files {
		_ = file.Close()
	}
	if f.multipartForm != nil {
		_ = f.multipartForm.RemoveAll()
	}
}

// readProductForm parses the body of a product create or update request.
func readProductForm(w http.ResponseWriter, r *http.Request) (*productForm, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBytes)

	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		return readMultipart(r)
	}
	return readJSON(r)
}

func readMultipart(r *http.Request) (*productForm, error) {
	if err := r.ParseMultipartForm(maxFormMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, apperrors.Validation(fmt.Sprintf("request body must not exceed %d bytes", tooLarge.Limit))
		}
		return nil, apperrors.Validation("failed to parse multipart form: " + err.Error())
	}

	form := &productForm{
		fields:        &fieldParser{values: url.Values(r.MultipartForm.Value)},
		multipartForm: r.MultipartForm,
	}
	headers := r.MultipartForm.File[imagesField]
	if len(headers) > MaxImagesPerRequest {
		return nil, apperrors.Validation(fmt.Sprintf("at most %d images may be uploaded at once", MaxImagesPerRequest))
	}

	for _, h := range headers {
		file, err := h.Open()
		if err != nil {
			form.close()
			return nil, fmt.Errorf("open uploaded file %q: %w", h.Filename, err)
		}
		form.files = append(form.files, file)
		form.images = append(form.images, service.ImageUpload{
			Filename:    h.Filename,
			ContentType: h.Header.Get("Content-Type"),
			Size:        h.Size,
			Body:        file,
		})
	}
	return form, nil
}

// readJSON accepts the same fields as the multipart form, without images.
func readJSON(r *http.Request) (*productForm, error) {
	var raw map[string]json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		return nil, apperrors.Validation("invalid request body: " + err.Error())
	}

	values := url.Values{}
	for name, v := range raw {
		if string(v) == "null" {
			continue
		}
		var s string
		if err := json.Unmarshal(v, &s); err == nil {
			values.Set(name, s)
			continue
		}
		// numbers, booleans and arrays keep their JSON text
		values.Set(name, string(v))
	}
	return &productForm{fields: &fieldParser{values: values}}, nil
}

// createInput decodes the form. Decode failures travel with the input so the
// service reports them alongside its own checks.
func (f *productForm) createInput(sellerID int64) service.CreateProductInput {
	p := f.fields
	in := service.CreateProductInput{
		Name:        deref(p.stringValue("name")),
		Description: deref(p.stringValue("description")),
		Price:       deref(p.decimalValue("price")),
		Stock:       deref(p.intValue("stock")),
		Discount:    p.intValue("discount"),
		CategoryID:  deref(p.idValue("categoryId")),
		ShopID:      deref(p.idValue("shopId")),
		SellerID:    sellerID,
		Images:      f.images,
	}
	in.Malformed = p.errs
	return in
}

func (f *productForm) updateInput() service.UpdateProductInput {
	p := f.fields
	in := service.UpdateProductInput{
		Name:           p.stringValue("name"),
		Description:    p.stringValue("description"),
		Price:          p.decimalValue("price"),
		Stock:          p.intValue("stock"),
		Discount:       p.intValue("discount"),
		CategoryID:     p.idValue("categoryId"),
		IsActive:       p.boolValue("isActive"),
		SellerID:       p.idValue("sellerId"),
		Images:         f.images,
		ImagesToDelete: p.listValue("imagesToDelete"),
	}
	in.Malformed = p.errs
	return in
}
