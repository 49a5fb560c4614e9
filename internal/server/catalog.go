package server

import (
	"bytes"
	"errors"
	"net/http"
	"strings"

	"shopadmin/internal/model"
	"shopadmin/internal/store"

	"github.com/go-chi/chi/v5"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
)

var markdown = goldmark.New(
	goldmark.WithExtensions(extension.GFM),
	goldmark.WithRendererOptions(html.WithHardWraps()),
)

func (s *Server) handleCategoryList(w http.ResponseWriter, r *http.Request) {
	cats, err := s.db.ListCategories(r.Context())
	if err != nil {
		s.writeStoreError(w, r, err, "")
		return
	}
	writeJSON(w, http.StatusOK, cats)
}

func (s *Server) handleCategoryGet(w http.ResponseWriter, r *http.Request) {
	c, err := s.db.Category(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeStoreError(w, r, err, "")
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (s *Server) categoryBody(w http.ResponseWriter, r *http.Request) (string, bool) {
	var c model.Category
	if !decodeJSON(w, r, &c) {
		return "", false
	}
	c.Name = s.strict.Sanitize(strings.TrimSpace(c.Name))
	if err := c.Validate(); err != nil {
		writeMessage(w, http.StatusBadRequest, err.Error())
		return "", false
	}
	return c.Name, true
}

func (s *Server) handleCategoryCreate(w http.ResponseWriter, r *http.Request) {
	name, ok := s.categoryBody(w, r)
	if !ok {
		return
	}
	c, err := s.db.CreateCategory(r.Context(), name)
	if err != nil {
		s.writeStoreError(w, r, err, "Category already exists")
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

func (s *Server) handleCategoryUpdate(w http.ResponseWriter, r *http.Request) {
	name, ok := s.categoryBody(w, r)
	if !ok {
		return
	}
	c, err := s.db.UpdateCategory(r.Context(), chi.URLParam(r, "id"), name)
	if err != nil {
		s.writeStoreError(w, r, err, "Category already exists")
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (s *Server) handleCategoryDelete(w http.ResponseWriter, r *http.Request) {
	c, err := s.db.DeleteCategory(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, store.ErrInUse) {
		writeMessage(w, http.StatusConflict, "Category still has products")
		return
	}
	if err != nil {
		s.writeStoreError(w, r, err, "")
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (s *Server) handleProductList(w http.ResponseWriter, r *http.Request) {
	ps, err := s.db.ListProducts(r.Context())
	if err != nil {
		s.writeStoreError(w, r, err, "")
		return
	}
	writeJSON(w, http.StatusOK, ps)
}

func (s *Server) handleProductGet(w http.ResponseWriter, r *http.Request) {
	p, err := s.db.Product(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeStoreError(w, r, err, "")
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// handleProductDescription renders the stored markdown description as sanitized HTML.
func (s *Server) handleProductDescription(w http.ResponseWriter, r *http.Request) {
	p, err := s.db.Product(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeStoreError(w, r, err, "")
		return
	}
	var b bytes.Buffer
	if err := markdown.Convert([]byte(p.Description), &b); err != nil {
		s.writeStoreError(w, r, err, "")
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(s.ugc.SanitizeBytes(b.Bytes()))
}

func (s *Server) productBody(w http.ResponseWriter, r *http.Request) (model.Product, bool) {
	var p model.Product
	if !decodeJSON(w, r, &p) {
		return p, false
	}
	p.Name = s.strict.Sanitize(strings.TrimSpace(p.Name))
	p.Brand = s.strict.Sanitize(strings.TrimSpace(p.Brand))
	p.Description = s.ugc.Sanitize(strings.TrimSpace(p.Description))
	if err := p.Validate(); err != nil {
		writeMessage(w, http.StatusBadRequest, err.Error())
		return p, false
	}
	return p, true
}

// writeProductError keeps a missing category from reading as a missing product.
func (s *Server) writeProductError(w http.ResponseWriter, r *http.Request, err error) {
	var nf store.NotFoundError
	if errors.As(err, &nf) && nf.Kind == "category" {
		writeMessage(w, http.StatusBadRequest, "Category not found")
		return
	}
	s.writeStoreError(w, r, err, "Product already exists")
}

func (s *Server) handleProductCreate(w http.ResponseWriter, r *http.Request) {
	p, ok := s.productBody(w, r)
	if !ok {
		return
	}
	created, err := s.db.CreateProduct(r.Context(), p)
	if err != nil {
		s.writeProductError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleProductUpdate(w http.ResponseWriter, r *http.Request) {
	p, ok := s.productBody(w, r)
	if !ok {
		return
	}
	updated, err := s.db.UpdateProduct(r.Context(), chi.URLParam(r, "id"), p)
	if err != nil {
		s.writeProductError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleProductDelete(w http.ResponseWriter, r *http.Request) {
	p, err := s.db.DeleteProduct(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeStoreError(w, r, err, "")
		return
	}
	writeJSON(w, http.StatusOK, p)
}
