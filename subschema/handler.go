package subschema

import (
	"net/http"

	"github.com/goccy/go-json"
	"github.com/n9te9/go-graphql-stitching-gateway/logger"
	"go.uber.org/zap"
)

type graphQLRequest struct {
	Query         string         `json:"query"`
	Variables     map[string]any `json:"variables"`
	OperationName string         `json:"operationName"`
}

type handler struct {
	subschema *Subschema
	logger    logger.Logger
}

var _ http.Handler = (*handler)(nil)

// NewHandler serves a subschema over GraphQL-over-HTTP POST requests.
func NewHandler(s *Subschema, l logger.Logger) http.Handler {
	if l == nil {
		l = logger.NewNoopLogger()
	}
	return &handler{
		subschema: s,
		logger:    l.With(zap.String("subschema", s.Name)),
	}
}

func (h *handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req graphQLRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	res := h.subschema.Execute(r.Context(), req.Query, req.Variables, req.OperationName)
	if res.HasErrors() {
		h.logger.Debug("operation returned errors", zap.Int("errors", len(res.Errors)))
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(res); err != nil {
		h.logger.Error("failed to write response", zap.Error(err))
	}
}
