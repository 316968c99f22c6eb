package handler

import (
	"net/http"

	"library_lending/internal/app/service"
	"library_lending/internal/common"

	"go.uber.org/zap"
)

type BookHandler struct {
	catalog *service.CatalogService
	log     *zap.Logger
}

func NewBookHandler(catalog *service.CatalogService, log *zap.Logger) *BookHandler {
	return &BookHandler{catalog: catalog, log: log}
}

func (h *BookHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req service.CreateBookRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, h.log, err)
		return
	}

	book, err := h.catalog.CreateBook(r.Context(), req)
	if err != nil {
		respondError(w, r, h.log, err)
		return
	}
	common.RespondWithJSON(w, http.StatusCreated, book)
}

func (h *BookHandler) List(w http.ResponseWriter, r *http.Request) {
	books, err := h.catalog.ListBooks(r.Context())
	if err != nil {
		respondError(w, r, h.log, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, books)
}

func (h *BookHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "bookID")
	if err != nil {
		respondError(w, r, h.log, err)
		return
	}

	book, err := h.catalog.GetBook(r.Context(), id)
	if err != nil {
		respondError(w, r, h.log, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, book)
}

func (h *BookHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "bookID")
	if err != nil {
		respondError(w, r, h.log, err)
		return
	}

	if err := h.catalog.DeleteBook(r.Context(), id); err != nil {
		respondError(w, r, h.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
