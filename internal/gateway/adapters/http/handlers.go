package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/teajhaney/shopstack-microservices/internal/gateway/application"
	"github.com/teajhaney/shopstack-microservices/internal/platform/rpc"
)

const multipartOverhead = 1 << 20

type meResponse struct {
	UserID string `json:"userId"`
	Email  string `json:"email,omitempty"`
	Name   string `json:"name,omitempty"`
	Role   string `json:"role"`
}

// me echoes the verified caller identity.
func (h *Handler) me(w http.ResponseWriter, r *http.Request) {
	id, ok := identityFromContext(r.Context())
	if !ok {
		writeError(w, rpc.Unauthorized("Missing or invalid Authorization header"))
		return
	}
	writeJSON(w, http.StatusOK, meResponse{UserID: id.UserID, Email: id.Email, Name: id.Name, Role: id.Role})
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	result := h.service.Health(r.Context())
	status := http.StatusOK
	if !result.OK {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, result)
}

// pageParams reads page and limit, defaulting to 1 and 10.
func pageParams(r *http.Request) (int, int, error) {
	page, err := intParam(r, "page", 1)
	if err != nil {
		return 0, 0, err
	}
	limit, err := intParam(r, "limit", 10)
	if err != nil {
		return 0, 0, err
	}
	return page, limit, nil
}

func intParam(r *http.Request, name string, def int) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, rpc.BadRequest(name+" must be an integer", map[string]string{"field": name})
	}
	return v, nil
}

func (h *Handler) listProducts(w http.ResponseWriter, r *http.Request) {
	page, limit, err := pageParams(r)
	if err != nil {
		writeError(w, err)
		return
	}
	out, err := h.service.ListProducts(r.Context(), application.PageQuery{Page: page, Limit: limit})
	if err != nil {
		writeError(w, err)
		return
	}
	writeRaw(w, http.StatusOK, out)
}

func (h *Handler) getProduct(w http.ResponseWriter, r *http.Request) {
	out, err := h.service.GetProduct(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeRaw(w, http.StatusOK, out)
}

func (h *Handler) updateProduct(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 1<<20))
	if err != nil {
		writeError(w, rpc.BadRequest("request body too large"))
		return
	}
	body = bytes.TrimSpace(body)
	if len(body) == 0 || !json.Valid(body) {
		writeError(w, rpc.BadRequest("request body must be a JSON object"))
		return
	}
	out, err := h.service.UpdateProduct(r.Context(), chi.URLParam(r, "id"), body)
	if err != nil {
		writeError(w, err)
		return
	}
	writeRaw(w, http.StatusOK, out)
}

func (h *Handler) deleteProduct(w http.ResponseWriter, r *http.Request) {
	out, err := h.service.DeleteProduct(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeRaw(w, http.StatusOK, out)
}

func (h *Handler) search(w http.ResponseWriter, r *http.Request) {
	page, limit, err := pageParams(r)
	if err != nil {
		writeError(w, err)
		return
	}
	out, err := h.service.Search(r.Context(), application.SearchQuery{
		Query: r.URL.Query().Get("query"),
		Page:  page,
		Limit: limit,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeRaw(w, http.StatusOK, out)
}

type createProductBody struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Price       float64 `json:"price"`
	Status      string  `json:"status,omitempty"`
	ImageURL    string  `json:"imageUrl,omitempty"`
}

// createProduct accepts JSON or multipart/form-data with an optional
// "image" part.
func (h *Handler) createProduct(w http.ResponseWriter, r *http.Request) {
	id, _ := identityFromContext(r.Context())

	var (
		in  application.CreateProductInput
		err error
	)
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		in, err = h.readMultipartProduct(w, r)
	} else {
		in, err = readJSONProduct(w, r)
	}
	if err != nil {
		writeError(w, err)
		return
	}
	in.OwnerID = id.UserID

	out, err := h.service.CreateProduct(r.Context(), in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeRaw(w, http.StatusCreated, out)
}

func readJSONProduct(w http.ResponseWriter, r *http.Request) (application.CreateProductInput, error) {
	var body createProductBody
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&body); err != nil {
		return application.CreateProductInput{}, rpc.BadRequest("invalid JSON body", map[string]string{"error": err.Error()})
	}
	return application.CreateProductInput{
		Name:        body.Name,
		Description: body.Description,
		Price:       body.Price,
		Status:      body.Status,
		ImageURL:    body.ImageURL,
	}, nil
}

func (h *Handler) readMultipartProduct(w http.ResponseWriter, r *http.Request) (application.CreateProductInput, error) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes+multipartOverhead)
	if err := r.ParseMultipartForm(h.maxUploadBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return application.CreateProductInput{}, rpc.BadRequest("file too large")
		}
		return application.CreateProductInput{}, rpc.BadRequest("invalid multipart body")
	}
	defer r.MultipartForm.RemoveAll()

	in := application.CreateProductInput{
		Name:        r.FormValue("name"),
		Description: r.FormValue("description"),
		Status:      r.FormValue("status"),
		ImageURL:    r.FormValue("imageUrl"),
	}
	if raw := strings.TrimSpace(r.FormValue("price")); raw != "" {
		price, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return application.CreateProductInput{}, rpc.BadRequest("price must be a number", map[string]string{"field": "price"})
		}
		in.Price = price
	}

	file, header, err := r.FormFile("image")
	if errors.Is(err, http.ErrMissingFile) {
		return in, nil
	}
	if err != nil {
		return application.CreateProductInput{}, rpc.BadRequest("invalid image part")
	}
	defer file.Close()
	if header.Size > h.maxUploadBytes {
		return application.CreateProductInput{}, rpc.BadRequest("file too large")
	}
	data, err := io.ReadAll(io.LimitReader(file, h.maxUploadBytes+1))
	if err != nil {
		return application.CreateProductInput{}, rpc.BadRequest("invalid image part")
	}
	if int64(len(data)) > h.maxUploadBytes {
		return application.CreateProductInput{}, rpc.BadRequest("file too large")
	}
	mimeType := header.Header.Get("Content-Type")
	if mimeType == "" || mimeType == "application/octet-stream" {
		mimeType = http.DetectContentType(data)
	}
	in.Image = &application.ImageIn{FileName: header.Filename, MimeType: mimeType, Data: data}
	return in, nil
}
