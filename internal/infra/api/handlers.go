package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"sports-tips-subscription/internal/domain"
	"sports-tips-subscription/internal/domain/model"
	"sports-tips-subscription/internal/infra/logging"
	"sports-tips-subscription/internal/usecase"
)

type createUserRequest struct {
	Email   string `json:"email"`
	Name    string `json:"name"`
	Country string `json:"country"`
}

type updateUserRequest struct {
	Name    string `json:"name"`
	Country string `json:"country"`
}

type setRoleRequest struct {
	Role model.UserRole `json:"role"`
}

type assignRequest struct {
	UserID   string                 `json:"userId"`
	Type     model.SubscriptionType `json:"subscriptionType"`
	Duration int                    `json:"duration"`
}

type renewRequest struct {
	Type     model.SubscriptionType `json:"subscriptionType"`
	Duration int                    `json:"duration"`
}

type quoteResponse struct {
	model.PriceQuote
	Display string `json:"display"`
}

type accessResponse struct {
	UserID  string          `json:"userId"`
	Plan    model.PlanToken `json:"plan"`
	Granted bool            `json:"granted"`
}

type listResponse[T any] struct {
	Items []T `json:"items"`
}

func (s *Server) createUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := decode(w, r, &req); err != nil {
		fail(w, r, s.log, err)
		return
	}
	u, err := s.userUC.Register(r.Context(), req.Email, req.Name, req.Country)
	if err != nil {
		fail(w, r, s.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, u)
}

func (s *Server) listUsers(w http.ResponseWriter, r *http.Request) {
	users, err := s.userUC.List(r.Context())
	if err != nil {
		fail(w, r, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, listResponse[*model.User]{Items: users})
}

func (s *Server) getUser(w http.ResponseWriter, r *http.Request) {
	u, err := s.userUC.GetByID(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		fail(w, r, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (s *Server) updateUser(w http.ResponseWriter, r *http.Request) {
	var req updateUserRequest
	if err := decode(w, r, &req); err != nil {
		fail(w, r, s.log, err)
		return
	}
	u, err := s.userUC.UpdateProfile(r.Context(), chi.URLParam(r, "userID"), req.Name, req.Country)
	if err != nil {
		fail(w, r, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (s *Server) setUserRole(w http.ResponseWriter, r *http.Request) {
	var req setRoleRequest
	if err := decode(w, r, &req); err != nil {
		fail(w, r, s.log, err)
		return
	}
	u, err := s.userUC.SetRole(r.Context(), chi.URLParam(r, "userID"), req.Role)
	if err != nil {
		fail(w, r, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (s *Server) listUserSubscriptions(w http.ResponseWriter, r *http.Request) {
	ctx := logging.WithUserID(r.Context(), chi.URLParam(r, "userID"))
	subs, err := s.subUC.ListByUser(ctx, chi.URLParam(r, "userID"))
	if err != nil {
		fail(w, r, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, listResponse[*usecase.SubscriptionStatus]{Items: subs})
}

func (s *Server) checkAccess(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	plan := model.PlanToken(chi.URLParam(r, "plan"))
	ok, err := s.subUC.HasAccess(r.Context(), userID, plan)
	if err != nil {
		fail(w, r, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, accessResponse{UserID: userID, Plan: plan, Granted: ok})
}

func (s *Server) assignSubscription(w http.ResponseWriter, r *http.Request) {
	var req assignRequest
	if err := decode(w, r, &req); err != nil {
		fail(w, r, s.log, err)
		return
	}
	ctx := logging.WithUserID(r.Context(), req.UserID)
	st, err := s.subUC.Assign(ctx, req.UserID, req.Type, req.Duration)
	if err != nil {
		fail(w, r, s.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, st)
}

func (s *Server) getSubscription(w http.ResponseWriter, r *http.Request) {
	ctx := logging.WithSubscriptionID(r.Context(), chi.URLParam(r, "subID"))
	st, err := s.subUC.Get(ctx, chi.URLParam(r, "subID"))
	if err != nil {
		fail(w, r, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) lifecycleAction(op func(ctx context.Context, id string) (*usecase.SubscriptionStatus, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "subID")
		st, err := op(logging.WithSubscriptionID(r.Context(), id), id)
		if err != nil {
			fail(w, r, s.log, err)
			return
		}
		writeJSON(w, http.StatusOK, st)
	}
}

func (s *Server) freezeSubscription(w http.ResponseWriter, r *http.Request) {
	s.lifecycleAction(s.subUC.Freeze)(w, r)
}

func (s *Server) unfreezeSubscription(w http.ResponseWriter, r *http.Request) {
	s.lifecycleAction(s.subUC.Unfreeze)(w, r)
}

func (s *Server) expireSubscription(w http.ResponseWriter, r *http.Request) {
	s.lifecycleAction(s.subUC.Expire)(w, r)
}

func (s *Server) renewSubscription(w http.ResponseWriter, r *http.Request) {
	var req renewRequest
	if err := decode(w, r, &req); err != nil {
		fail(w, r, s.log, err)
		return
	}
	s.lifecycleAction(func(ctx context.Context, id string) (*usecase.SubscriptionStatus, error) {
		return s.subUC.Renew(ctx, id, req.Type, req.Duration)
	})(w, r)
}

// quoteParams reads ?type=&duration= from the query string.
func quoteParams(r *http.Request) (model.SubscriptionType, int, error) {
	q := r.URL.Query()
	t := model.SubscriptionType(q.Get("type"))
	days, err := strconv.Atoi(q.Get("duration"))
	if t == "" || err != nil {
		return "", 0, domain.ErrInvalidArgument
	}
	return t, days, nil
}

func (s *Server) quote(w http.ResponseWriter, r *http.Request) {
	t, days, err := quoteParams(r)
	if err != nil {
		fail(w, r, s.log, err)
		return
	}
	q, err := s.pricingUC.Quote(r.Context(), t, days, r.URL.Query().Get("country"))
	if err != nil {
		fail(w, r, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, quoteResponse{PriceQuote: q, Display: q.Display()})
}

func (s *Server) quoteForUser(w http.ResponseWriter, r *http.Request) {
	t, days, err := quoteParams(r)
	if err != nil {
		fail(w, r, s.log, err)
		return
	}
	q, err := s.pricingUC.QuoteForUser(r.Context(), chi.URLParam(r, "userID"), t, days)
	if err != nil {
		fail(w, r, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, quoteResponse{PriceQuote: q, Display: q.Display()})
}

func (s *Server) rates(w http.ResponseWriter, r *http.Request) {
	table := s.pricingUC.Rates(r.Context())
	if !table.FetchedAt.IsZero() {
		w.Header().Set("Last-Modified", table.FetchedAt.UTC().Format(http.TimeFormat))
	}
	writeJSON(w, http.StatusOK, table)
}

func (s *Server) revenue(w http.ResponseWriter, r *http.Request) {
	done := logging.TraceDuration(logging.With(r.Context(), s.log), "revenue_report")
	defer done()
	report, err := s.statsUC.Revenue(r.Context())
	if err != nil {
		fail(w, r, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) states(w http.ResponseWriter, r *http.Request) {
	counts, err := s.statsUC.CountByState(r.Context())
	if err != nil {
		fail(w, r, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		At     time.Time                       `json:"at"`
		Counts map[model.SubscriptionState]int `json:"counts"`
	}{At: time.Now().UTC(), Counts: counts})
}
