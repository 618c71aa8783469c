/**
 * @description
 * This file implements the Gin handlers for the sign/verify HTTP
 * surface, plus the ShakenError-to-HTTP-status mapping shared by both.
 *
 * Key features:
 * - Error Taxonomy Mapping: writeError buckets every shakenerr.Type
 *   into the HTTP status spec.md §6's taxonomy implies, distinguishing
 *   caller-input 4xx from external-dependency 5xx.
 */
package api

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/poly-pro/shaken/internal/audit"
	"github.com/poly-pro/shaken/internal/shakenerr"
)

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

type signRequest struct {
	Header  map[string]any `json:"header" binding:"required"`
	Payload map[string]any `json:"payload" binding:"required"`
}

func (s *Server) handleSign(c *gin.Context) {
	var req signRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := s.core.Sign(c.Request.Context(), map[string]any{
		"header":  req.Header,
		"payload": req.Payload,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

type verifyRequest struct {
	Header       json.RawMessage `json:"header" binding:"required"`
	Payload      json.RawMessage `json:"payload" binding:"required"`
	Signature    string          `json:"signature" binding:"required"`
	Algorithm    string          `json:"algorithm" binding:"required"`
	PublicKeyURL string          `json:"public_key_url" binding:"required"`
}

func (s *Server) handleVerify(c *gin.Context) {
	var req verifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := s.core.Verify(
		c.Request.Context(),
		string(req.Header),
		string(req.Payload),
		req.Signature,
		req.Algorithm,
		req.PublicKeyURL,
	)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) handleAuditWS(c *gin.Context) {
	if err := audit.Serve(s.hub, c.Writer, c.Request, s.logger); err != nil {
		s.logger.Error("audit websocket upgrade failed", "error", err)
	}
}

// writeError maps a ShakenError's Type to the HTTP status spec.md §6's
// error taxonomy implies: problems with what the caller sent (bad input
// or profile, no certificate for the caller's TN, a signature that does
// not verify) are 4xx; a failing fetch, key read, crypto library call or
// store is 5xx.
func writeError(c *gin.Context, err error) {
	se, ok := err.(*shakenerr.ShakenError)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	status := http.StatusInternalServerError
	switch se.Type {
	case shakenerr.Input, shakenerr.Profile:
		status = http.StatusBadRequest
	case shakenerr.NoCertificate:
		status = http.StatusNotFound
	case shakenerr.Signature:
		status = http.StatusUnprocessableEntity
	case shakenerr.Fetch, shakenerr.StaleAfterRefetch, shakenerr.KeyRead, shakenerr.Crypto:
		status = http.StatusBadGateway
	case shakenerr.Infra:
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, gin.H{"error": se.Error(), "type": se.Type.String()})
}
