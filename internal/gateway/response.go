package gateway

import (
	"encoding/json"
	"mime"
	"net/http"

	"go.uber.org/zap"

	"github.com/relaygate/gateway/api"
	"github.com/relaygate/gateway/internal/gwerrors"
)

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, logger *zap.Logger, err error) {
	gwErr, ok := gwerrors.As(err)
	if !ok {
		gwErr = gwerrors.New(gwerrors.InternalError, err.Error())
	}
	status := gwErr.HTTPStatus
	if status == 0 {
		status = http.StatusInternalServerError
	}

	if logger != nil {
		logger.Error("gateway error",
			zap.String("code", string(gwErr.Code)),
			zap.String("message", gwErr.Message),
			zap.Int("status", status),
			zap.String("provider", gwErr.Provider),
		)
	}

	writeJSON(w, status, api.ErrorResponse{
		Error: api.ErrorDetail{
			Message: gwErr.Message,
			Type:    string(gwErr.Code),
			Code:    string(gwErr.Code),
		},
	})
}

func decodeJSONBody(w http.ResponseWriter, r *http.Request, dst any, logger *zap.Logger) error {
	if r.Body == nil {
		err := gwerrors.New(gwerrors.InvalidRequest, "request body is empty")
		writeError(w, logger, err)
		return err
	}
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)

	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if decErr := decoder.Decode(dst); decErr != nil {
		err := gwerrors.New(gwerrors.InvalidRequest, "invalid JSON body").WithCause(decErr)
		writeError(w, logger, err)
		return err
	}
	return nil
}

func validateContentType(w http.ResponseWriter, r *http.Request, logger *zap.Logger) bool {
	mediaType, _, mimeErr := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mimeErr != nil || mediaType != "application/json" {
		writeError(w, logger, gwerrors.New(gwerrors.InvalidRequest, "Content-Type must be application/json"))
		return false
	}
	return true
}
