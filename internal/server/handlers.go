package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/TobiSchelling/BrandLens/internal/database"
	"github.com/TobiSchelling/BrandLens/internal/generate"
	"github.com/TobiSchelling/BrandLens/internal/workflow"
)

// POST /api/workflow/step1
func (s *Server) handleStep1(w http.ResponseWriter, r *http.Request) error {
	var body workflow.Step1Input
	if err := decode(r, &body); err != nil {
		return err
	}
	res, err := s.wf.Step1(r.Context(), body)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, res)
	return nil
}

// POST /api/workflow/step2
// Body: {"runId": "..."}
func (s *Server) handleStep2(w http.ResponseWriter, r *http.Request) error {
	var body struct {
		RunID string `json:"runId"`
	}
	if err := decode(r, &body); err != nil {
		return err
	}
	content, err := s.wf.Step2(r.Context(), body.RunID)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"runId":   body.RunID,
		"content": content,
	})
	return nil
}

// POST /api/workflow/step3
func (s *Server) handleStep3(w http.ResponseWriter, r *http.Request) error {
	var body workflow.Step3Input
	if err := decode(r, &body); err != nil {
		return err
	}
	cats, err := s.wf.Step3(r.Context(), body)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, map[string]any{"categories": cats})
	return nil
}

// PUT /api/workflow/{runId}/categories
func (s *Server) handleSaveCategories(w http.ResponseWriter, r *http.Request) error {
	var body struct {
		SelectedCategoryIDs []string                  `json:"selectedCategoryIds"`
		CustomCategories    []workflow.CustomCategory `json:"customCategories"`
	}
	if err := decode(r, &body); err != nil {
		return err
	}
	created, err := s.wf.SaveCategories(r.Context(), chi.URLParam(r, "runId"), body.SelectedCategoryIDs, body.CustomCategories)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":          true,
		"customCategories": created,
	})
	return nil
}

// POST /api/workflow/step4
func (s *Server) handleStep4(w http.ResponseWriter, r *http.Request) error {
	var body struct {
		RunID                string              `json:"runId"`
		Categories           []database.Category `json:"categories"`
		UserInput            generate.UserInput  `json:"userInput"`
		Content              string              `json:"content"`
		QuestionsPerCategory *int                `json:"questionsPerCategory"`
		CompanyID            string              `json:"companyId,omitempty"`
	}
	if err := decode(r, &body); err != nil {
		return err
	}
	if body.CompanyID != "" {
		s.logger.Debug("company id is not used for prompt generation", zap.String("company_id", body.CompanyID))
	}

	count := s.wf.QuestionsPerCategory()
	if body.QuestionsPerCategory != nil {
		count = max(*body.QuestionsPerCategory, 0)
	}
	prompts, err := s.wf.Step4(r.Context(), workflow.Step4Input{
		RunID:                body.RunID,
		Categories:           body.Categories,
		UserInput:            body.UserInput,
		Content:              body.Content,
		QuestionsPerCategory: count,
	})
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, map[string]any{"prompts": prompts})
	return nil
}

// POST /api/workflow/step5
func (s *Server) handleStep5(w http.ResponseWriter, r *http.Request) error {
	var body workflow.Step5Input
	if err := decode(r, &body); err != nil {
		return err
	}
	res, err := s.wf.Step5(r.Context(), body)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"runId":     res.RunID,
		"requested": res.Requested,
		"executed":  res.Executed,
		"result": map[string]any{
			"categoryMetrics": res.Analysis.CategoryMetrics,
			"timeSeries":      res.Analysis.TimeSeries,
		},
	})
	return nil
}

// GET /api/runs/{runId}
func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) error {
	run, err := s.db.GetRun(r.Context(), chi.URLParam(r, "runId"))
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, run)
	return nil
}

// DELETE /api/runs/{runId}
func (s *Server) handleDeleteRun(w http.ResponseWriter, r *http.Request) error {
	if err := s.wf.Delete(r.Context(), chi.URLParam(r, "runId")); err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
	return nil
}

// GET /api/runs/{runId}/summary
func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) error {
	runID := chi.URLParam(r, "runId")
	if _, err := s.db.GetRun(r.Context(), runID); err != nil {
		return err
	}
	summary, err := s.db.GetSummary(r.Context(), runID)
	if err != nil {
		return err
	}
	metrics, err := s.db.GetCategoryMetrics(r.Context(), runID)
	if err != nil {
		return err
	}
	series, err := s.db.GetTimeSeries(r.Context(), runID)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"summary":         summary,
		"categoryMetrics": metrics,
		"timeSeries":      series,
	})
	return nil
}

// POST /api/runs/{runId}/analyze
func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) error {
	runID := chi.URLParam(r, "runId")
	res, err := s.wf.Reanalyze(r.Context(), runID)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"runId":   runID,
		"result":  res,
	})
	return nil
}
