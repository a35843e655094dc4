package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shrimpsizemoose/trekker/logger"

	"cie-scoring-service/internal/app"
	"cie-scoring-service/internal/domain"
	"cie-scoring-service/internal/metrics"
)

// API exposes the scoring engine and gradebook as JSON endpoints.
type API struct {
	engine    *app.Engine
	gradebook *app.Gradebook
}

func NewAPI(engine *app.Engine, gradebook *app.Gradebook) *API {
	return &API{engine: engine, gradebook: gradebook}
}

// Register mounts every endpoint on mux.
func (a *API) Register(mux *http.ServeMux) {
	a.handle(mux, "POST /api/activities", a.createActivity)
	a.handle(mux, "DELETE /api/activities/{activityId}", a.deleteActivity)
	a.handle(mux, "PATCH /api/activities/{activityId}/total-marks", a.updateTotalMarks)
	a.handle(mux, "POST /api/activities/{activityId}/submit", a.submitActivity)
	a.handle(mux, "POST /api/activities/{activityId}/lock", a.lockActivity)
	a.handle(mux, "POST /api/activities/{activityId}/unlock", a.unlockActivity)
	a.handle(mux, "POST /api/activities/{activityId}/rubrics", a.addRubric)
	a.handle(mux, "DELETE /api/rubrics/{rubricId}", a.deleteRubric)
	a.handle(mux, "PUT /api/activities/{activityId}/scores", a.saveScores)
	a.handle(mux, "GET /api/activities/{activityId}/grid", a.activityGrid)
	a.handle(mux, "GET /api/activities/{activityId}/students/{studentId}/score", a.activityScore)
	a.handle(mux, "GET /api/activities/{activityId}/rubric-averages", a.rubricAverages)
	a.handle(mux, "GET /api/subjects/{subjectId}/students/{studentId}/final", a.subjectFinal)
	a.handle(mux, "GET /api/subjects/{subjectId}/distribution", a.distribution)
	a.handle(mux, "GET /api/subjects/{subjectId}/results", a.finalResults)
	a.handle(mux, "POST /api/subjects/{subjectId}/recompute", a.recompute)
}

type apiFunc func(w http.ResponseWriter, r *http.Request) (int, any, error)

// handle wraps an apiFunc with JSON encoding, error mapping and request metrics.
func (a *API) handle(mux *http.ServeMux, pattern string, fn apiFunc) {
	mux.HandleFunc(pattern, func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		status, body, err := fn(w, r)
		if err != nil {
			status, body = errorResponse(err)
			if status == http.StatusInternalServerError {
				logger.Error.Printf("%s %s: %v", r.Method, r.URL.Path, err)
			}
		}
		writeJSON(w, status, body)
		metrics.APIRequestDuration.
			WithLabelValues(pattern, r.Method, strconv.Itoa(status)).
			Observe(time.Since(start).Seconds())
	})
}

type errorBody struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Count   int    `json:"count,omitempty"`
}

var errBadRequest = errors.New("bad request")

func errorResponse(err error) (int, errorBody) {
	body := errorBody{Message: err.Error()}
	var exists *domain.ScoresExistError
	var verrs validator.ValidationErrors
	switch {
	case errors.As(err, &exists):
		body.Count = exists.Count
		return http.StatusConflict, body
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, body
	case errors.Is(err, domain.ErrInvalidScoreValue),
		errors.Is(err, domain.ErrInvalidTotalMarks),
		errors.Is(err, domain.ErrActivityLocked),
		errors.Is(err, domain.ErrActivityNotDraft),
		errors.Is(err, domain.ErrRubricLocked),
		errors.Is(err, errBadRequest),
		errors.As(err, &verrs):
		return http.StatusBadRequest, body
	default:
		body.Message = "internal error"
		return http.StatusInternalServerError, body
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.Error.Printf("encode response: %v", err)
	}
}

func decode(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return errors.Join(errBadRequest, err)
	}
	return nil
}

func (a *API) createActivity(_ http.ResponseWriter, r *http.Request) (int, any, error) {
	var in app.NewActivity
	if err := decode(r, &in); err != nil {
		return 0, nil, err
	}
	activity, err := a.gradebook.CreateActivity(r.Context(), in)
	if err != nil {
		return 0, nil, err
	}
	return http.StatusCreated, activity, nil
}

func (a *API) deleteActivity(_ http.ResponseWriter, r *http.Request) (int, any, error) {
	report, err := a.gradebook.DeleteActivity(r.Context(), r.PathValue("activityId"))
	if err != nil {
		return 0, nil, err
	}
	return http.StatusOK, report, nil
}

type totalMarksRequest struct {
	TotalMarks float64 `json:"totalMarks"`
}

func (a *API) updateTotalMarks(_ http.ResponseWriter, r *http.Request) (int, any, error) {
	var in totalMarksRequest
	if err := decode(r, &in); err != nil {
		return 0, nil, err
	}
	report, err := a.gradebook.UpdateTotalMarks(r.Context(), r.PathValue("activityId"), in.TotalMarks)
	if err != nil {
		return 0, nil, err
	}
	return http.StatusOK, report, nil
}

func (a *API) submitActivity(_ http.ResponseWriter, r *http.Request) (int, any, error) {
	activity, err := a.gradebook.SubmitActivity(r.Context(), r.PathValue("activityId"))
	return http.StatusOK, activity, err
}

func (a *API) lockActivity(_ http.ResponseWriter, r *http.Request) (int, any, error) {
	activity, err := a.gradebook.LockActivity(r.Context(), r.PathValue("activityId"))
	return http.StatusOK, activity, err
}

func (a *API) unlockActivity(_ http.ResponseWriter, r *http.Request) (int, any, error) {
	activity, err := a.gradebook.UnlockActivity(r.Context(), r.PathValue("activityId"))
	return http.StatusOK, activity, err
}

type rubricRequest struct {
	Name  string       `json:"name"`
	Scale domain.Scale `json:"scale"`
	Order *int         `json:"order"`
}

func (a *API) addRubric(_ http.ResponseWriter, r *http.Request) (int, any, error) {
	var in rubricRequest
	if err := decode(r, &in); err != nil {
		return 0, nil, err
	}
	if in.Name == "" {
		return 0, nil, errors.Join(errBadRequest, errors.New("rubric name is required"))
	}
	rubric, err := a.gradebook.AddRubric(r.Context(), r.PathValue("activityId"), in.Name, in.Scale, in.Order)
	if err != nil {
		return 0, nil, err
	}
	return http.StatusCreated, rubric, nil
}

func (a *API) deleteRubric(_ http.ResponseWriter, r *http.Request) (int, any, error) {
	force := r.URL.Query().Get("force") == "true"
	report, err := a.gradebook.DeleteRubric(r.Context(), r.PathValue("rubricId"), force)
	if err != nil {
		return 0, nil, err
	}
	return http.StatusOK, report, nil
}

type saveScoresRequest struct {
	GradedBy string              `json:"gradedBy"`
	Scores   []domain.ScoreEntry `json:"scores"`
}

func (a *API) saveScores(_ http.ResponseWriter, r *http.Request) (int, any, error) {
	var in saveScoresRequest
	if err := decode(r, &in); err != nil {
		return 0, nil, err
	}
	report, err := a.gradebook.SaveScores(r.Context(), r.PathValue("activityId"), in.GradedBy, in.Scores)
	if err != nil {
		return 0, nil, err
	}
	return http.StatusOK, report, nil
}

func (a *API) activityGrid(_ http.ResponseWriter, r *http.Request) (int, any, error) {
	grid, err := a.engine.ActivityGrid(r.Context(), r.PathValue("activityId"))
	return http.StatusOK, grid, err
}

func (a *API) activityScore(_ http.ResponseWriter, r *http.Request) (int, any, error) {
	score, err := a.engine.ComputeActivityScore(r.Context(), r.PathValue("activityId"), r.PathValue("studentId"))
	return http.StatusOK, score, err
}

func (a *API) rubricAverages(_ http.ResponseWriter, r *http.Request) (int, any, error) {
	avgs, err := a.engine.GetRubricAverages(r.Context(), r.PathValue("activityId"))
	return http.StatusOK, avgs, err
}

func (a *API) subjectFinal(_ http.ResponseWriter, r *http.Request) (int, any, error) {
	final, err := a.engine.ComputeSubjectFinal(r.Context(), r.PathValue("subjectId"), r.PathValue("studentId"))
	return http.StatusOK, final, err
}

func (a *API) distribution(_ http.ResponseWriter, r *http.Request) (int, any, error) {
	dist, err := a.engine.GetScoreDistribution(r.Context(), r.PathValue("subjectId"))
	return http.StatusOK, dist, err
}

func (a *API) finalResults(_ http.ResponseWriter, r *http.Request) (int, any, error) {
	results, err := a.engine.ListFinalResults(r.Context(), r.PathValue("subjectId"))
	return http.StatusOK, results, err
}

func (a *API) recompute(_ http.ResponseWriter, r *http.Request) (int, any, error) {
	report, err := a.gradebook.RecomputeSubject(r.Context(), r.PathValue("subjectId"))
	return http.StatusOK, report, err
}
