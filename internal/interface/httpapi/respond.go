package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/jinford/docroute/internal/core/errs"
	"github.com/jinford/docroute/internal/core/validation"
)

// Envelope はすべてのレスポンスの共通ボディ
type Envelope struct {
	Status        int    `json:"status"`
	Code          string `json:"code,omitempty"`
	Error         string `json:"error,omitempty"`
	RequestID     string `json:"requestId,omitempty"`
	Data          any    `json:"data,omitempty"`
	NextPageToken string `json:"nextPageToken,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respond(w http.ResponseWriter, r *http.Request, status int, data any) {
	writeJSON(w, status, Envelope{
		Status:    status,
		RequestID: chimw.GetReqID(r.Context()),
		Data:      data,
	})
}

func respondPage(w http.ResponseWriter, r *http.Request, data any, nextPageToken string) {
	writeJSON(w, http.StatusOK, Envelope{
		Status:        http.StatusOK,
		RequestID:     chimw.GetReqID(r.Context()),
		Data:          data,
		NextPageToken: nextPageToken,
	})
}

func (h *Handler) respondError(w http.ResponseWriter, r *http.Request, err error) {
	status := StatusOf(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed", "path", r.URL.Path, "status", status, "error", err)
	}
	writeJSON(w, status, Envelope{
		Status:    status,
		Code:      string(errs.KindOf(err)),
		Error:     err.Error(),
		RequestID: chimw.GetReqID(r.Context()),
	})
}

// StatusOf はエラー分類を HTTP ステータスに変換する
func StatusOf(err error) int {
	switch errs.KindOf(err) {
	case errs.KindNotFound:
		return http.StatusNotFound
	case errs.KindInvalidInput:
		return http.StatusBadRequest
	case errs.KindUpstream:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// decodeBody は JSON ボディを読み込み、validate タグを検証する
// 空ボディは allowEmpty のときだけゼロ値として受け付ける
func decodeBody[T any](r *http.Request, allowEmpty bool) (T, error) {
	var v T
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&v); err != nil {
		if errors.Is(err, io.EOF) && allowEmpty {
			return v, nil
		}
		return v, errs.InvalidInput("httpapi.decode", "invalid request body: %v", err)
	}
	if dec.More() {
		return v, errs.InvalidInput("httpapi.decode", "request body must contain a single JSON value")
	}
	if err := validation.Struct(v); err != nil {
		var invalid *validator.InvalidValidationError
		if errors.As(err, &invalid) {
			// スライスなど構造体以外のボディは個別に検証する
			return v, nil
		}
		return v, errs.InvalidInput("httpapi.validate", "%s", describeValidation(err))
	}
	return v, nil
}

func describeValidation(err error) string {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return err.Error()
	}
	fe := fieldErrs[0]
	if fe.Param() != "" {
		return fmt.Sprintf("field %s failed %s=%s", fe.Field(), fe.Tag(), fe.Param())
	}
	return fmt.Sprintf("field %s failed %s", fe.Field(), fe.Tag())
}
