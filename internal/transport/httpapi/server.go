package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/orders/internal/domain"
	"github.com/vladislavdragonenkov/orders/internal/service/orders"
)

// Server — HTTP JSON транспорт вокруг сервиса заказов.
// Тонкий слой: декодирует запросы, переводит доменные ошибки в статус-коды
// и ничего не валидирует сверх того, что уже проверяет ядро.
type Server struct {
	router *mux.Router
	svc    *orders.Service
	logger *log.Entry
}

// NewServer собирает маршрутизатор поверх сервиса заказов.
func NewServer(svc *orders.Service, logger *log.Entry) *Server {
	if logger == nil {
		logger = log.WithField("component", "http-api")
	}
	s := &Server{
		router: mux.NewRouter(),
		svc:    svc,
		logger: logger,
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	api := s.router.PathPrefix("/api").Subrouter()

	api.HandleFunc("/orders", s.handleListOrders).Methods(http.MethodGet)
	api.HandleFunc("/orders", s.handleCreateOrder).Methods(http.MethodPost)
	// Числовой шаблон id не пересекается со словесными маршрутами статусов.
	api.HandleFunc("/orders/{id:[0-9]+}", s.handleGetOrder).Methods(http.MethodGet)
	api.HandleFunc("/orders/{id:[0-9]+}", s.handleReplaceOrder).Methods(http.MethodPut)
	api.HandleFunc("/orders/{id:[0-9]+}", s.handleDeleteOrder).Methods(http.MethodDelete)
	api.HandleFunc("/orders/ok", s.handleListOrdersOK).Methods(http.MethodGet)
	api.HandleFunc("/orders/status/{status}", s.handleListOrdersByStatus).Methods(http.MethodGet)
	api.HandleFunc("/orders/ok/{id:[0-9]+}", s.setStatusHandler(domain.OrderStatusOK)).Methods(http.MethodPut)
	api.HandleFunc("/orders/backorder/{id:[0-9]+}", s.setStatusHandler(domain.OrderStatusBackorder)).Methods(http.MethodPut)
	api.HandleFunc("/orders/closed/{id:[0-9]+}", s.setStatusHandler(domain.OrderStatusClosed)).Methods(http.MethodPut)

	api.HandleFunc("/items", s.handleListItems).Methods(http.MethodGet)
	api.HandleFunc("/items", s.handleCreateItem).Methods(http.MethodPost)
	api.HandleFunc("/items/{id:[0-9]+}", s.handleGetItem).Methods(http.MethodGet)
	api.HandleFunc("/items/{id:[0-9]+}", s.handleDeleteItem).Methods(http.MethodDelete)

	api.HandleFunc("/customers", s.handleListCustomers).Methods(http.MethodGet)
	api.HandleFunc("/customers", s.handleCreateCustomer).Methods(http.MethodPost)
	api.HandleFunc("/customers/{id:[0-9]+}", s.handleGetCustomer).Methods(http.MethodGet)
}

// ServeHTTP делает Server валидным http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) handleListOrders(w http.ResponseWriter, r *http.Request) {
	result, err := s.svc.List(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.writeJSON(w, http.StatusOK, toOrderDTOs(result))
}

func (s *Server) handleListOrdersOK(w http.ResponseWriter, r *http.Request) {
	result, err := s.svc.ListByStatus(r.Context(), string(domain.OrderStatusOK))
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.writeJSON(w, http.StatusOK, toOrderDTOs(result))
}

func (s *Server) handleListOrdersByStatus(w http.ResponseWriter, r *http.Request) {
	result, err := s.svc.ListByStatus(r.Context(), mux.Vars(r)["status"])
	if err != nil {
		if domain.IsValidationError(err) {
			s.writeError(w, http.StatusBadRequest, err)
			return
		}
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.writeJSON(w, http.StatusOK, toOrderDTOs(result))
}

func (s *Server) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	id := pathID(r)

	order, err := s.svc.Get(r.Context(), id)
	if err != nil {
		s.writeOrderError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, toOrderDTO(order))
}

func (s *Server) handleCreateOrder(w http.ResponseWriter, r *http.Request) {
	var dto orderDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("decode order: %w", err))
		return
	}

	created, err := s.svc.Create(r.Context(), dto.toDomain())
	if err != nil {
		s.writeOrderError(w, err)
		return
	}

	w.Header().Set("Location", fmt.Sprintf("/api/orders/%d", created.ID))
	s.writeJSON(w, http.StatusCreated, toOrderDTO(created))
}

func (s *Server) handleReplaceOrder(w http.ResponseWriter, r *http.Request) {
	id := pathID(r)

	var dto orderDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("decode order: %w", err))
		return
	}

	if _, err := s.svc.Replace(r.Context(), id, dto.toDomain()); err != nil {
		s.writeOrderError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) setStatusHandler(target domain.OrderStatus) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := pathID(r)

		var dto orderDTO
		if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
			s.writeError(w, http.StatusBadRequest, fmt.Errorf("decode order: %w", err))
			return
		}

		if _, err := s.svc.SetStatus(r.Context(), id, dto.toDomain(), target); err != nil {
			s.writeOrderError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func (s *Server) handleDeleteOrder(w http.ResponseWriter, r *http.Request) {
	id := pathID(r)

	if err := s.svc.Delete(r.Context(), id); err != nil {
		s.writeOrderError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListItems(w http.ResponseWriter, r *http.Request) {
	items, err := s.svc.ListItems(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	result := make([]itemDTO, 0, len(items))
	for _, item := range items {
		result = append(result, toItemDTO(item))
	}
	s.writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleCreateItem(w http.ResponseWriter, r *http.Request) {
	var dto itemDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("decode item: %w", err))
		return
	}

	created, err := s.svc.CreateItem(r.Context(), dto.toDomain())
	if err != nil {
		if domain.IsValidationError(err) {
			s.writeError(w, http.StatusBadRequest, err)
			return
		}
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}

	w.Header().Set("Location", fmt.Sprintf("/api/items/%d", created.ID))
	s.writeJSON(w, http.StatusCreated, toItemDTO(created))
}

func (s *Server) handleGetItem(w http.ResponseWriter, r *http.Request) {
	item, err := s.svc.GetItem(r.Context(), pathID(r))
	if err != nil {
		if domain.IsReferentialViolation(err) {
			s.writeError(w, http.StatusNotFound, err)
			return
		}
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.writeJSON(w, http.StatusOK, toItemDTO(item))
}

func (s *Server) handleDeleteItem(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.DeleteItem(r.Context(), pathID(r)); err != nil {
		if domain.IsReferentialViolation(err) {
			s.writeError(w, http.StatusNotFound, err)
			return
		}
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListCustomers(w http.ResponseWriter, r *http.Request) {
	customers, err := s.svc.ListCustomers(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	result := make([]customerDTO, 0, len(customers))
	for _, customer := range customers {
		result = append(result, toCustomerDTO(customer))
	}
	s.writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleCreateCustomer(w http.ResponseWriter, r *http.Request) {
	var dto customerDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("decode customer: %w", err))
		return
	}

	created, err := s.svc.CreateCustomer(r.Context(), dto.toDomain())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}

	w.Header().Set("Location", fmt.Sprintf("/api/customers/%d", created.ID))
	s.writeJSON(w, http.StatusCreated, toCustomerDTO(created))
}

func (s *Server) handleGetCustomer(w http.ResponseWriter, r *http.Request) {
	customer, err := s.svc.GetCustomer(r.Context(), pathID(r))
	if err != nil {
		if domain.IsReferentialViolation(err) {
			s.writeError(w, http.StatusNotFound, err)
			return
		}
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.writeJSON(w, http.StatusOK, toCustomerDTO(customer))
}

// writeOrderError переводит доменные ошибки операций над заказами в статус-коды:
// 404 исчезнувший заказ, 409 конфликт версий, 422 оборванная ссылка,
// 400 для нарушений инвариантов и расхождения идентификаторов.
func (s *Server) writeOrderError(w http.ResponseWriter, err error) {
	switch {
	case domain.IsVersionConflict(err):
		s.writeError(w, http.StatusConflict, err)
	case errors.Is(err, domain.ErrOrderNotFound):
		s.writeError(w, http.StatusNotFound, err)
	case errors.Is(err, domain.ErrOrderIDMismatch):
		s.writeError(w, http.StatusBadRequest, err)
	case domain.IsReferentialViolation(err):
		s.writeError(w, http.StatusUnprocessableEntity, err)
	case domain.IsValidationError(err):
		s.writeError(w, http.StatusBadRequest, err)
	default:
		s.writeError(w, http.StatusInternalServerError, err)
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.WithError(err).Warn("failed to encode response")
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	if status >= http.StatusInternalServerError {
		s.logger.WithError(err).Error("request failed")
	}
	s.writeJSON(w, status, errorDTO{Error: err.Error()})
}

// pathID читает числовой id из пути; шаблон маршрута гарантирует число.
func pathID(r *http.Request) int64 {
	id, _ := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	return id
}
