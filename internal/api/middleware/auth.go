package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"

	"github.com/mitra-labs/predcore/internal/auth"
	"github.com/mitra-labs/predcore/internal/domain"
)

// ContextKey constants for gin.Context values set by middleware.
const (
	CtxWallet    = "wallet"
	CtxSignature = "signature"
	CtxTimestamp = "timestamp"
)

// signedRequest is the body every authenticated endpoint accepts: the
// domain-specific fields plus the wallet-signature envelope from spec §6
// (mitra_auth:{wallet}:{action}:{timestamp}).
type signedRequest struct {
	Wallet    string `json:"wallet" binding:"required"`
	Timestamp int64  `json:"timestamp" binding:"required"`
	Signature string `json:"signature" binding:"required"`
}

// ──────────────────────────────────────────────────────────────────────────────
// SignatureMiddleware
// ──────────────────────────────────────────────────────────────────────────────

// SignatureMiddleware verifies the wallet-signature envelope embedded in the
// request body against the given action name, replacing the teacher's
// Bearer-JWT check (JWTMiddleware) with the per-request signature contract
// of spec §6. On success it stores the caller's wallet in the gin context
// and rewinds the body so downstream ShouldBindJSON calls still see the
// domain-specific fields.
func SignatureMiddleware(verifier *auth.Verifier, action string) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body signedRequest
		if err := c.ShouldBindBodyWith(&body, binding.JSON); err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
				"success": false,
				"error": domain.ErrSignatureInvalid.Error(),
				"code":  domain.KindValidation.String(),
			})
			return
		}

		req := auth.Request{
			Wallet: body.Wallet, Action: action,
			Timestamp: body.Timestamp, Signature: body.Signature,
		}
		if err := verifier.Verify(req); err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"success": false,
				"error": err.Error(),
				"code":  domain.KindOf(err).String(),
			})
			return
		}

		c.Set(CtxWallet, body.Wallet)
		c.Set(CtxSignature, body.Signature)
		c.Set(CtxTimestamp, body.Timestamp)
		c.Next()
	}
}

// GetWallet retrieves the authenticated caller's wallet address from the
// gin context. Returns "" if the middleware was not applied.
func GetWallet(c *gin.Context) string {
	v, _ := c.Get(CtxWallet)
	w, _ := v.(string)
	return w
}

// SignatureFields retrieves the signature and timestamp the caller's
// request was authenticated with, so handlers can pass them through to
// service methods that independently re-verify per spec §6.
func SignatureFields(c *gin.Context) (signature string, timestamp int64) {
	sv, _ := c.Get(CtxSignature)
	tv, _ := c.Get(CtxTimestamp)
	signature, _ = sv.(string)
	timestamp, _ = tv.(int64)
	return
}

// JSONBinding re-exposes binding.JSON so handler package code can bind the
// already-cached request body (the signature middleware reads it first via
// ShouldBindBodyWith, which caches it for subsequent reads) without an
// import of gin/binding in every handler file.
var JSONBinding = binding.JSON
