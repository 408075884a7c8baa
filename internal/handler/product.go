package handler

import (
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/product-catalog/internal/logger"
	"github.com/iliyamo/product-catalog/internal/repository"
	"github.com/iliyamo/product-catalog/internal/service"
)

// writeTimeout bounds create and update, which upload to the object store.
const writeTimeout = 30 * time.Second

// ProductHandler serves the catalog endpoints.  Reads are open to every
// authenticated user; writes are mounted behind RequireRole(RoleAdmin).
type ProductHandler struct {
	Products *service.ProductService
	Log      *logger.Logger
}

func NewProductHandler(products *service.ProductService, log *logger.Logger) *ProductHandler {
	return &ProductHandler{Products: products, Log: log.Named("product-handler")}
}

// List: GET /api/product?page&limit
func (h *ProductHandler) List(c echo.Context) error {
	return h.list(c, pageQuery(c))
}

// Search: GET /api/product/all-product?search&page&limit
func (h *ProductHandler) Search(c echo.Context) error {
	q := pageQuery(c)
	q.Search = strings.TrimSpace(c.QueryParam("search"))
	return h.list(c, q)
}

func (h *ProductHandler) list(c echo.Context, q repository.ProductQuery) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	page, err := h.Products.List(ctx, q)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, page)
}

// Get: GET /api/product/:id
func (h *ProductHandler) Get(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		return badRequest(c, "invalid id")
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	p, err := h.Products.Get(ctx, id)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"product": p})
}

// Create: POST /api/product (multipart: name, description, price, images[])
func (h *ProductHandler) Create(c echo.Context) error {
	form, err := c.MultipartForm()
	if err != nil {
		return badRequest(c, "multipart form required")
	}
	in, err := productInput(form)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	uploads, closeAll, err := openUploads(form)
	if err != nil {
		return badRequest(c, "unreadable upload")
	}
	defer closeAll()

	ctx, cancel := context.WithTimeout(c.Request().Context(), writeTimeout)
	defer cancel()

	id, err := h.Products.Create(ctx, in, uploads)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"productId": id})
}

// Update: PUT /api/product/:id (multipart: scalar fields, oldImages JSON
// array of retained names, images[] new files)
func (h *ProductHandler) Update(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		return badRequest(c, "invalid id")
	}
	form, err := c.MultipartForm()
	if err != nil {
		return badRequest(c, "multipart form required")
	}
	in, err := productInput(form)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	retained, err := retainedNames(form)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	uploads, closeAll, err := openUploads(form)
	if err != nil {
		return badRequest(c, "unreadable upload")
	}
	defer closeAll()

	ctx, cancel := context.WithTimeout(c.Request().Context(), writeTimeout)
	defer cancel()

	p, err := h.Products.Update(ctx, id, in, retained, uploads)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"product": p})
}

// Delete: DELETE /api/product/:id
func (h *ProductHandler) Delete(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		return badRequest(c, "invalid id")
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), writeTimeout)
	defer cancel()

	if err := h.Products.Delete(ctx, id); err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "product deleted"})
}

// pageQuery reads page and limit; unparsable values fall back to the
// defaults applied by the service.
func pageQuery(c echo.Context) repository.ProductQuery {
	page, _ := strconv.Atoi(c.QueryParam("page"))
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	return repository.ProductQuery{Page: page, Limit: limit}
}

func formValue(form *multipart.Form, key string) string {
	if vs := form.Value[key]; len(vs) > 0 {
		return strings.TrimSpace(vs[0])
	}
	return ""
}

func productInput(form *multipart.Form) (service.ProductInput, error) {
	in := service.ProductInput{
		Name:        formValue(form, "name"),
		Description: formValue(form, "description"),
	}
	raw := formValue(form, "price")
	if raw == "" {
		return in, &service.ValidationError{
			Message: "validation failed",
			Fields:  []service.FieldError{{Field: "price", Message: "price is required"}},
		}
	}
	price, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return in, &service.ValidationError{
			Message: "validation failed",
			Fields:  []service.FieldError{{Field: "price", Message: "price must be a number"}},
		}
	}
	in.Price = price
	return in, nil
}

// retainedNames accepts oldImages as a JSON array, or as repeated
// oldImages / oldImages[] fields.
func retainedNames(form *multipart.Form) ([]string, error) {
	vals := append(append([]string{}, form.Value["oldImages"]...), form.Value["oldImages[]"]...)
	if len(vals) == 1 && strings.HasPrefix(strings.TrimSpace(vals[0]), "[") {
		var names []string
		if err := json.Unmarshal([]byte(vals[0]), &names); err != nil {
			return nil, &service.ValidationError{
				Message: "validation failed",
				Fields:  []service.FieldError{{Field: "oldImages", Message: "must be a JSON array of names"}},
			}
		}
		return names, nil
	}
	out := make([]string, 0, len(vals))
	for _, v := range vals {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out, nil
}

// openUploads opens every file sent as images or images[].  The returned
// func closes them all.
func openUploads(form *multipart.Form) ([]service.Upload, func(), error) {
	headers := append(append([]*multipart.FileHeader{}, form.File["images"]...), form.File["images[]"]...)
	files := make([]multipart.File, 0, len(headers))
	closeAll := func() {
		for _, f := range files {
			_ = f.Close()
		}
	}
	uploads := make([]service.Upload, 0, len(headers))
	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			closeAll()
			return nil, func() {}, err
		}
		files = append(files, f)
		uploads = append(uploads, service.Upload{
			Filename:    fh.Filename,
			ContentType: fh.Header.Get("Content-Type"),
			Size:        fh.Size,
			Body:        f,
		})
	}
	return uploads, closeAll, nil
}
