package handler

import (
	"net/http"
	"strconv"

	"code_dojo/internal/api/middleware"
	"code_dojo/internal/app/service"
	"code_dojo/internal/common"
	"code_dojo/internal/domain/repository"

	"github.com/go-chi/chi/v5"
)

type ExerciseHandler struct {
	exerciseService     *service.ExerciseService
	verificationService *service.VerificationService
}

func NewExerciseHandler(es *service.ExerciseService, vs *service.VerificationService) *ExerciseHandler {
	return &ExerciseHandler{exerciseService: es, verificationService: vs}
}

func (h *ExerciseHandler) RegisterRoutes(r chi.Router) {
	r.Use(middleware.Authenticator)

	r.Get("/categories", h.listCategories)
	r.Get("/categories/progress", h.categoriesProgress)
	r.Get("/", h.listExercises)
	r.Get("/{exerciseID}", h.getExercise)
	r.Post("/{exerciseID}/verify", h.verify)

	r.Group(func(adminRouter chi.Router) {
		adminRouter.Use(middleware.AdminOnly)
		adminRouter.Post("/categories", h.createCategory)
		adminRouter.Post("/", h.createExercise)
		adminRouter.Put("/{exerciseID}", h.updateExercise)
		adminRouter.Delete("/{exerciseID}", h.deleteExercise)
	})
}

func (h *ExerciseHandler) listCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.exerciseService.ListCategories(r.Context())
	if err != nil {
		common.RespondWithDomainError(w, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, categories)
}

func (h *ExerciseHandler) categoriesProgress(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.GetUserIDFromContext(r.Context())
	progress, err := h.exerciseService.CategoriesProgress(r.Context(), userID)
	if err != nil {
		common.RespondWithDomainError(w, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, progress)
}

func (h *ExerciseHandler) createCategory(w http.ResponseWriter, r *http.Request) {
	var req service.CreateCategoryRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	category, err := h.exerciseService.CreateCategory(r.Context(), req)
	if err != nil {
		common.RespondWithDomainError(w, err)
		return
	}
	common.RespondWithJSON(w, http.StatusCreated, category)
}

func (h *ExerciseHandler) listExercises(w http.ResponseWriter, r *http.Request) {
	filter := repository.ExerciseFilter{CategorySlug: r.URL.Query().Get("category")}
	if weekStr := r.URL.Query().Get("week"); weekStr != "" {
		week, err := strconv.Atoi(weekStr)
		if err != nil || week < 1 {
			common.RespondWithError(w, http.StatusBadRequest, "week must be a positive integer")
			return
		}
		filter.Week = week
	}

	userID, _ := middleware.GetUserIDFromContext(r.Context())
	exercises, err := h.exerciseService.List(r.Context(), userID, filter, middleware.CanSeeAnswers(r.Context()))
	if err != nil {
		common.RespondWithDomainError(w, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, exercises)
}

func (h *ExerciseHandler) getExercise(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.GetUserIDFromContext(r.Context())
	exercise, err := h.exerciseService.Get(r.Context(), userID, chi.URLParam(r, "exerciseID"), middleware.CanSeeAnswers(r.Context()))
	if err != nil {
		common.RespondWithDomainError(w, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, exercise)
}

func (h *ExerciseHandler) verify(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		common.RespondWithError(w, http.StatusUnauthorized, "Missing user context")
		return
	}

	var req service.VerifyRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.ExerciseID = chi.URLParam(r, "exerciseID")
	req.UserID = userID

	result, err := h.verificationService.Verify(r.Context(), req)
	if err != nil {
		common.RespondWithDomainError(w, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, result)
}

func (h *ExerciseHandler) createExercise(w http.ResponseWriter, r *http.Request) {
	var req service.ExerciseRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	exercise, err := h.exerciseService.Create(r.Context(), req)
	if err != nil {
		common.RespondWithDomainError(w, err)
		return
	}
	common.RespondWithJSON(w, http.StatusCreated, exercise)
}

func (h *ExerciseHandler) updateExercise(w http.ResponseWriter, r *http.Request) {
	var req service.ExerciseRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	exercise, err := h.exerciseService.Update(r.Context(), chi.URLParam(r, "exerciseID"), req)
	if err != nil {
		common.RespondWithDomainError(w, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, exercise)
}

func (h *ExerciseHandler) deleteExercise(w http.ResponseWriter, r *http.Request) {
	if err := h.exerciseService.Delete(r.Context(), chi.URLParam(r, "exerciseID")); err != nil {
		common.RespondWithDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
