package server

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/dharsanguruparan/linksigner/internal/signedurl"
	"github.com/dharsanguruparan/linksigner/internal/signing"
	"github.com/dharsanguruparan/linksigner/internal/storage"
)

// signErrorMessages holds the client-facing text for each sign failure.
var signErrorMessages = map[signing.SignErrorKind]string{
	signing.AlreadyPresent: "params already contain a reserved key",
	signing.RelativeRoute:  "route must start with /",
	signing.InvalidKey:     "param keys must not contain ','",
}

type signRequest struct {
	Route         string            `json:"route"`
	Params        map[string]string `json:"params"`
	TTLSeconds    int64             `json:"ttlSeconds"`
	AllowAddition *bool             `json:"allowAddition"`
}

type signResponse struct {
	LinkID string            `json:"linkId"`
	Params map[string]string `json:"params"`
	URL    string            `json:"url"`
}

func (s *Server) handleSign(w http.ResponseWriter, r *http.Request) {
	var req signRequest
	if err := decodeJSON(w, r, &req, false); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if msg := checkTTL(req.TTLSeconds); msg != "" {
		respondError(w, http.StatusBadRequest, msg)
		return
	}

	allowAddition := req.AllowAddition == nil || *req.AllowAddition
	signed, err := s.signer.Sign(req.Route, signing.ParamsFromMap(req.Params), s.signOptions(req.TTLSeconds, allowAddition)...)
	if err != nil {
		if kind, ok := signing.SignKind(err); ok {
			respondError(w, http.StatusBadRequest, signErrorMessages[kind])
			return
		}
		s.logger.Error("sign link failed", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to sign link")
		return
	}
	link, err := signedurl.Build(s.cfg.BaseURL, req.Route, signed)
	if err != nil {
		respondError(w, http.StatusBadRequest, "cannot build link for route")
		return
	}

	linkID := s.newID()
	s.publish(r.Context(), s.auditRecord(linkID, req.Route, signed, allowAddition))
	respondJSON(w, http.StatusOK, signResponse{LinkID: linkID, Params: signed.Strings(), URL: link})
}

// verifyRequest names the link either as a full URL or as a route plus its
// parameters. Route overrides the URL path when both are given.
type verifyRequest struct {
	URL    string            `json:"url"`
	Route  string            `json:"route"`
	Params map[string]string `json:"params"`
}

func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	var req verifyRequest
	if err := decodeJSON(w, r, &req, false); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	route := req.Route
	params := signing.ParamsFromMap(req.Params)
	if req.URL != "" {
		urlRoute, urlParams, err := signedurl.Split(req.URL)
		if err != nil {
			s.rejectVerify(w, "malformed_url", err)
			return
		}
		params = urlParams
		if route == "" {
			route = urlRoute
		}
	}

	if err := s.signer.Verify(params, route); err != nil {
		reason := "unknown"
		if kind, ok := signing.VerificationKind(err); ok {
			reason = kind.String()
		}
		s.rejectVerify(w, reason, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"valid": true})
}

func (s *Server) rejectVerify(w http.ResponseWriter, reason string, err error) {
	s.logger.Warn("link verification failed", zap.String("reason", reason), zap.NamedError("cause", err))
	respondJSON(w, http.StatusForbidden, map[string]bool{"valid": false})
}

func (s *Server) handleLinkAudit(w http.ResponseWriter, r *http.Request) {
	if s.audit == nil {
		respondError(w, http.StatusNotFound, "link not found")
		return
	}
	rec, err := s.audit.Get(r.Context(), chi.URLParam(r, "linkID"))
	if errors.Is(err, storage.ErrNotFound) {
		respondError(w, http.StatusNotFound, "link not found")
		return
	}
	if err != nil {
		s.logger.Error("load link audit failed", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to load link")
		return
	}
	respondJSON(w, http.StatusOK, rec)
}
