package rest

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/dmitrijs2005/leadkeeper/internal/common"
)

var errInvalidRequest = errors.New("invalid request")

type errorResponse struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

var kindStatus = map[string]int{
	common.KindUnknownFieldGroup:   http.StatusBadRequest,
	common.KindInsufficientBalance: http.StatusPaymentRequired,
	common.KindNotFound:            http.StatusNotFound,
	common.KindConcurrencyConflict: http.StatusConflict,
	common.KindStoreUnavailable:    http.StatusServiceUnavailable,
	common.KindUnauthorized:        http.StatusUnauthorized,
	common.KindInvalidRequest:      http.StatusBadRequest,
	common.KindInternal:            http.StatusInternalServerError,
}

func invalidRequest(err error) error {
	return fmt.Errorf("%w: %w", errInvalidRequest, err)
}

// writeError renders err as {kind, message}. Store and internal errors are
// reported by kind only; for the rest msg, if set, replaces err's text.
func writeError(w http.ResponseWriter, err error, msg string) {
	kind := common.ErrorKind(err)
	if errors.Is(err, errInvalidRequest) {
		kind = common.KindInvalidRequest
	}

	switch {
	case kind == common.KindInternal:
		msg = common.ErrorInternal.Error()
	case kind == common.KindStoreUnavailable:
		msg = common.ErrStoreUnavailable.Error()
	case kind == common.KindConcurrencyConflict:
		msg = common.ErrConcurrencyConflict.Error()
	case msg == "":
		msg = err.Error()
	}

	writeJSON(w, kindStatus[kind], errorResponse{Kind: kind, Message: msg})
}
