package server

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/ppiankov/claimcheck/internal/apperr"
	"github.com/ppiankov/claimcheck/internal/model"
)

const requestIDHeader = "X-Request-ID"

type claimRequest struct {
	Claim string `json:"claim"`
}

type claimResponse struct {
	FinalResult string           `json:"final_result"`
	RequestID   string           `json:"request_id"`
	Rejected    bool             `json:"rejected,omitempty"`
	Subclaims   []model.Subclaim `json:"subclaims"`
	Evidence    []model.Evidence `json:"evidence"`
	Citations   []model.Citation `json:"citations,omitempty"`
	Warnings    []string         `json:"warnings,omitempty"`
}

type subclaimsResponse struct {
	VerifiedSubclaims string           `json:"verified_subclaims"`
	Subclaims         []model.Subclaim `json:"subclaims"`
}

type errorResponse struct {
	Detail    string `json:"detail"`
	RequestID string `json:"request_id,omitempty"`
}

func handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleProcessClaim(c *gin.Context) {
	var req claimRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Detail: "invalid request body: expected {\"claim\": string}"})
		return
	}

	res, err := s.svc.Run(c.Request.Context(), req.Claim)
	requestID := ""
	if res != nil {
		requestID = res.RequestID
		c.Header(requestIDHeader, requestID)
	}
	if err != nil {
		writeError(c, err, requestID)
		return
	}

	v := res.Verdict
	c.JSON(http.StatusOK, claimResponse{
		FinalResult: v.Text,
		RequestID:   requestID,
		Rejected:    v.Rejected,
		Subclaims:   v.Subclaims,
		Evidence:    publicEvidence(v.Evidence),
		Citations:   v.Citations,
		Warnings:    v.Warnings,
	})
}

// handleGenerateSubclaims serves the decomposition-only endpoint of the
// first frontend
func (s *Server) handleGenerateSubclaims(c *gin.Context) {
	var req claimRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Detail: "invalid request body: expected {\"claim\": string}"})
		return
	}

	subclaims, err := s.svc.Decompose(c.Request.Context(), req.Claim)
	if err != nil {
		writeError(c, err, "")
		return
	}

	var numbered strings.Builder
	for i, sc := range subclaims {
		if i > 0 {
			numbered.WriteByte('\n')
		}
		fmt.Fprintf(&numbered, "%d. %s", i+1, sc)
	}
	c.JSON(http.StatusOK, subclaimsResponse{
		VerifiedSubclaims: numbered.String(),
		Subclaims:         subclaims,
	})
}

// publicEvidence replaces sentinel error text with the generic provider
// message. The full error stays in the logs and the synthesis prompt.
func publicEvidence(evidence []model.Evidence) []model.Evidence {
	out := make([]model.Evidence, len(evidence))
	for i, ev := range evidence {
		if ev.IsSentinel() {
			ev.Error = apperr.Public(apperr.New(apperr.KindProvider, "evidence."+ev.Provider, ev.Error))
		}
		out[i] = ev
	}
	return out
}

func writeError(c *gin.Context, err error, requestID string) {
	kind := apperr.KindOf(err)
	c.JSON(kind.HTTPStatus(), errorResponse{
		Detail:    apperr.Public(err),
		RequestID: requestID,
	})
}
