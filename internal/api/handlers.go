package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"tradewatch/internal/models"
	"tradewatch/internal/trades"
)

func (s *APIServer) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprintln(w, "OK")
}

func (s *APIServer) statusHandler(w http.ResponseWriter, r *http.Request) {
	status := struct {
		UUID      string `json:"uuid"`
		StartTime string `json:"start_time"`
		Uptime    string `json:"uptime"`
	}{
		UUID:      s.UUID,
		StartTime: s.StartTime.Format(time.RFC3339),
		Uptime:    time.Since(s.StartTime).String(),
	}
	s.success(w, r, status)
}

// decode reads a JSON body into dst, reporting a malformed body as a bad
// request.
func (s *APIServer) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		s.fail(w, http.StatusBadRequest, ErrCodeBadRequest, "invalid request body: "+err.Error())
		return false
	}
	return true
}

func (s *APIServer) pathID(w http.ResponseWriter, r *http.Request) (uint, bool) {
	id, err := strconv.ParseUint(r.PathValue("id"), 10, 64)
	if err != nil || id == 0 {
		s.fail(w, http.StatusBadRequest, ErrCodeBadRequest, "invalid trade id")
		return 0, false
	}
	return uint(id), true
}

// --- users ---

func (s *APIServer) registerHandler(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if !s.decode(w, r, &body) {
		return
	}
	user, err := s.service.RegisterUser(r.Context(), body.Username, body.Password)
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	s.success(w, r, user)
}

func (s *APIServer) setHandleHandler(w http.ResponseWriter, r *http.Request, actor *models.User) {
	var body struct {
		Handle string `json:"handle"`
	}
	if !s.decode(w, r, &body) {
		return
	}
	user, err := s.service.SetNotificationHandle(r.Context(), actor, body.Handle)
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	s.success(w, r, user)
}

func (s *APIServer) clearHandleHandler(w http.ResponseWriter, r *http.Request, actor *models.User) {
	user, err := s.service.ClearNotificationHandle(r.Context(), actor)
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	s.success(w, r, user)
}

// --- trades ---

func (s *APIServer) listTradesHandler(w http.ResponseWriter, r *http.Request, actor *models.User) {
	list, err := s.service.TradesForUser(r.Context(), actor)
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	s.success(w, r, list)
}

func (s *APIServer) addTradeHandler(w http.ResponseWriter, r *http.Request, actor *models.User) {
	var in trades.NewTrade
	if !s.decode(w, r, &in) {
		return
	}
	trade, err := s.service.AddTrade(r.Context(), actor, in)
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	s.success(w, r, trade)
}

func (s *APIServer) deleteTradeHandler(w http.ResponseWriter, r *http.Request, actor *models.User) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	if err := s.service.DeleteTrade(r.Context(), id, actor); err != nil {
		s.handleError(w, r, err)
		return
	}
	s.success(w, r, map[string]uint{"deleted": id})
}

func (s *APIServer) sellHandler(w http.ResponseWriter, r *http.Request, actor *models.User) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	var body struct {
		Price      float64 `json:"price"`
		Quantity   int64   `json:"quantity"`
		RequestKey string  `json:"request_key"`
	}
	if !s.decode(w, r, &body) {
		return
	}
	if key := r.Header.Get("Idempotency-Key"); key != "" && body.RequestKey == "" {
		body.RequestKey = key
	}
	res, err := s.service.SellTrade(r.Context(), actor, trades.SellRequest{
		BuyTradeID: id,
		Price:      body.Price,
		Quantity:   body.Quantity,
		RequestKey: body.RequestKey,
	})
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	s.success(w, r, res)
}

func (s *APIServer) summaryHandler(w http.ResponseWriter, r *http.Request, actor *models.User) {
	sum, err := s.service.Summary(r.Context(), actor)
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	s.success(w, r, sum)
}

// --- alerts ---

func (s *APIServer) listAlertsHandler(w http.ResponseWriter, r *http.Request, actor *models.User) {
	list, err := s.service.AlertsForUser(r.Context(), actor)
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	s.success(w, r, list)
}

func (s *APIServer) addAlertHandler(w http.ResponseWriter, r *http.Request, actor *models.User) {
	var in trades.NewAlert
	if !s.decode(w, r, &in) {
		return
	}
	alert, err := s.service.AddAlert(r.Context(), actor, in)
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	s.success(w, r, alert)
}

// checkAlertsHandler runs one alert tick now. It waits for a scheduled tick
// that is already running.
func (s *APIServer) checkAlertsHandler(w http.ResponseWriter, r *http.Request) {
	report, err := s.engine.RunTick(r.Context())
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	s.success(w, r, report)
}
