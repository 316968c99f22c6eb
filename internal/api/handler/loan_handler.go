package handler

import (
	"net/http"

	"library_lending/internal/api/middleware"
	"library_lending/internal/app/service"
	"library_lending/internal/common"

	"go.uber.org/zap"
)

type LoanHandler struct {
	lending *service.LendingService
	log     *zap.Logger
}

func NewLoanHandler(lending *service.LendingService, log *zap.Logger) *LoanHandler {
	return &LoanHandler{lending: lending, log: log}
}

func (h *LoanHandler) Borrow(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		respondError(w, r, h.log, service.ErrNotAuthenticated)
		return
	}
	bookID, err := idParam(r, "bookID")
	if err != nil {
		respondError(w, r, h.log, err)
		return
	}

	receipt, err := h.lending.Borrow(r.Context(), user.ID, bookID)
	if err != nil {
		respondError(w, r, h.log, err)
		return
	}
	common.RespondWithJSON(w, http.StatusCreated, receipt)
}

func (h *LoanHandler) Return(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		respondError(w, r, h.log, service.ErrNotAuthenticated)
		return
	}
	bookID, err := idParam(r, "bookID")
	if err != nil {
		respondError(w, r, h.log, err)
		return
	}

	receipt, err := h.lending.Return(r.Context(), user.ID, bookID)
	if err != nil {
		respondError(w, r, h.log, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, receipt)
}

func (h *LoanHandler) MyLoans(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		respondError(w, r, h.log, service.ErrNotAuthenticated)
		return
	}

	loans, err := h.lending.ListLoansForUser(r.Context(), user.ID)
	if err != nil {
		respondError(w, r, h.log, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, loans)
}
