package server

import (
	"context"
	"fmt"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/google/uuid"

	"github.com/entrhq/enroll/pkg/abm"
	"github.com/entrhq/enroll/pkg/assign"
	"github.com/entrhq/enroll/pkg/dispatch"
)

const (
	msgMissingSerialOrApp      = "Missing serialNumber or app_id"
	msgMissingRecordOrCallback = "Missing record_id or callback_base_url"
)

// handleAssignDevice runs an assignment and answers with its result. No
// callback is sent.
func (s *Server) handleAssignDevice(w http.ResponseWriter, r *http.Request) {
	serial := r.URL.Query().Get("serialNumber")
	mark := "assignDevice|" + serial + "|" + uuid.NewString()

	res := s.assigner.Assign(context.WithoutCancel(r.Context()), assign.Request{Serial: serial, Mark: mark})
	s.writeJSON(w, http.StatusOK, envelope{
		ErrMessage: res.Message,
		Result:     s.sentinel(res.Outcome),
		Success:    true,
		ErrCode:    0,
	})
}

// handleAssignDeviceAndCallBack runs an assignment, answers with its result
// and then reports the same result to the caller's callback URL.
func (s *Server) handleAssignDeviceAndCallBack(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	q := r.URL.Query()
	serial := q.Get("serial_number")
	appID := q.Get("app_id")
	recordID := q.Get("record_id")
	baseURL := q.Get("callback_base_url")

	if serial == "" || appID == "" {
		s.writeCallbackResponse(w, recordID, s.cfg.Response.Failed, msgMissingSerialOrApp)
		return
	}
	if recordID == "" || baseURL == "" {
		s.writeCallbackResponse(w, recordID, s.cfg.Response.Failed, msgMissingRecordOrCallback)
		return
	}
	if err := s.notifier.Allowed(baseURL); err != nil {
		s.logger.Warnf("%s|%s|%s|%v", appID, serial, recordID, err)
		s.writeCallbackResponse(w, recordID, s.cfg.Response.Failed, err.Error())
		return
	}

	mark := appID + "|" + serial + "|" + recordID
	s.logger.Infof("%s|Received request to add device.", mark)

	res := s.assignRecovered(context.WithoutCancel(r.Context()), assign.Request{Serial: serial, Mark: mark})
	rpaResult := s.sentinel(res.Outcome)
	s.writeCallbackResponse(w, recordID, rpaResult, res.Message)

	s.logger.Infof("%s|@@@assignDeviceAndCallBack executed in %dms", mark, time.Since(start).Milliseconds())
	s.notifier.Dispatch(mark, baseURL, dispatch.Payload{
		ID:        recordID,
		RPAResult: rpaResult,
		Message:   res.Message,
	})
}

// assignRecovered turns a panicking assignment into a FAILED result so the
// caller still gets its answer and its callback.
func (s *Server) assignRecovered(ctx context.Context, req assign.Request) (res assign.Result) {
	defer func() {
		if rec := recover(); rec != nil {
			s.logger.Errorf("%s|Failed to add device: %v\n%s", req.Mark, rec, debug.Stack())
			res = assign.Result{Outcome: assign.Failed, Message: fmt.Sprintf("%v", rec)}
		}
	}()
	return s.assigner.Assign(ctx, req)
}

func (s *Server) writeCallbackResponse(w http.ResponseWriter, recordID, rpaResult, message string) {
	status, success, errCode := http.StatusOK, "True", "0000"
	if rpaResult == s.cfg.Response.Failed {
		status, success, errCode = http.StatusInternalServerError, "False", "9999"
	}
	s.writeJSON(w, status, envelope{
		ErrMessage: message,
		Result:     callbackResult{ID: recordID, RPAResult: rpaResult, Message: message},
		Success:    success,
		ErrCode:    errCode,
	})
}

// handleMakeGql sends one console operation and answers with the raw body.
// Without gqlQuery the body of a known operation is built from serialNumber.
func (s *Server) handleMakeGql(w http.ResponseWriter, r *http.Request) {
	const mark = "makeGql"
	q := r.URL.Query()
	op := abm.Operation(q.Get("apiCode"))
	body := q.Get("gqlQuery")
	ctx := r.Context()

	if err := s.sessions.Renew(ctx); err != nil {
		s.logger.Warnf("%s|session renew failed: %v", mark, err)
	}

	result, err := s.makeGql(ctx, mark, op, body, q.Get("serialNumber"))
	if err != nil {
		s.logger.Infof("%s|Error: %v", mark, err)
		s.writeJSON(w, http.StatusOK, envelope{Result: err.Error(), Success: false, ErrCode: -1})
		return
	}
	s.logger.Infof("%s|%s", mark, result)
	s.writeJSON(w, http.StatusOK, envelope{Result: result, Success: true, ErrCode: 0})
}

func (s *Server) makeGql(ctx context.Context, mark string, op abm.Operation, body, serial string) (string, error) {
	if body == "" {
		var err error
		body, err = abm.CannedBody(op, serial, s.cfg.ABM.MdmServerID)
		if err != nil {
			return "", err
		}
	}
	return s.console.Invoke(ctx, mark, op, body)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, envelope{Result: "ok", Success: true, ErrCode: 0})
}
