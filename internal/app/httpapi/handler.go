// Package httpapi exposes the custody workflows over REST.
package httpapi

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	auditdom "github.com/OpenCustody/wallet_layer/internal/app/domain/audit"
	"github.com/OpenCustody/wallet_layer/internal/app/services/backup"
	"github.com/OpenCustody/wallet_layer/internal/app/services/custody"
	passcodesvc "github.com/OpenCustody/wallet_layer/internal/app/services/passcode"
	"github.com/OpenCustody/wallet_layer/internal/errors"
	"github.com/OpenCustody/wallet_layer/internal/httputil"
	"github.com/OpenCustody/wallet_layer/internal/middleware"
	"github.com/OpenCustody/wallet_layer/pkg/logger"
)

// handler bundles the HTTP endpoints for the custody services.
type handler struct {
	custody   *custody.Service
	passcodes *passcodesvc.Service
	log       *logger.Logger
}

// Config carries the handler dependencies.
type Config struct {
	Custody   *custody.Service
	Passcodes *passcodesvc.Service
	AdminAuth *middleware.AdminAuth
	Log       *logger.Logger
}

// NewHandler returns the REST router.
func NewHandler(cfg Config) http.Handler {
	log := cfg.Log
	if log == nil {
		log = logger.NewDefault("httpapi")
	}
	h := &handler{custody: cfg.Custody, passcodes: cfg.Passcodes, log: log}

	r := mux.NewRouter()
	r.HandleFunc("/health", h.health).Methods(http.MethodGet)

	r.HandleFunc("/wallets", h.onboardWallet).Methods(http.MethodPost)
	r.HandleFunc("/wallets/{id}/backup-status", h.backupStatus).Methods(http.MethodGet)
	r.HandleFunc("/wallets/{id}/reveal", h.reveal).Methods(http.MethodPost)
	r.HandleFunc("/wallets/{id}/backup-confirmation", h.confirmBackup).Methods(http.MethodPost)
	r.HandleFunc("/wallets/{id}/transactions", h.recordTransaction).Methods(http.MethodPost)
	r.HandleFunc("/wallets/{id}/access-log", h.accessLog).Methods(http.MethodGet)

	r.HandleFunc("/devices", h.registerDevice).Methods(http.MethodPost)
	r.HandleFunc("/devices/{passcodeID}/reminders", h.reminders).Methods(http.MethodGet)

	admin := r.PathPrefix("/admin").Subrouter()
	if cfg.AdminAuth != nil {
		admin.Use(cfg.AdminAuth.Handler)
	}
	admin.HandleFunc("/wallets/{id}/reveal", h.adminReveal).Methods(http.MethodPost)
	admin.HandleFunc("/export", h.adminExport).Methods(http.MethodPost)

	return r
}

func (h *handler) health(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *handler) onboardWallet(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Name             string `json:"name"`
		DevicePasscodeID string `json:"device_passcode_id"`
		PrimaryAddress   string `json:"primary_address"`
		Mnemonic         string `json:"mnemonic"`
		PrivateKey       string `json:"private_key"`
	}
	if err := httputil.DecodeJSON(r.Body, &payload); err != nil {
		httputil.WriteError(w, err)
		return
	}

	created, err := h.custody.Onboard(r.Context(), custody.OnboardParams{
		Name:             payload.Name,
		DevicePasscodeID: payload.DevicePasscodeID,
		PrimaryAddress:   payload.PrimaryAddress,
		Mnemonic:         payload.Mnemonic,
		PrivateKey:       payload.PrivateKey,
	})
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, map[string]any{
		"id":         created.ID,
		"name":       created.Name,
		"created_at": created.CreatedAt,
	})
}

func (h *handler) backupStatus(w http.ResponseWriter, r *http.Request) {
	status, err := h.custody.CheckBackupStatus(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, status)
}

func (h *handler) reveal(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		DeviceName string `json:"device_name"`
		Passcode   string `json:"passcode"`
	}
	if err := httputil.DecodeJSON(r.Body, &payload); err != nil {
		httputil.WriteError(w, err)
		return
	}

	revealed, err := h.custody.RevealForBackup(r.Context(), mux.Vars(r)["id"], payload.DeviceName, payload.Passcode, requestContext(r))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, revealed)
}

func (h *handler) confirmBackup(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Words []backup.WordCheck `json:"words"`
	}
	if err := httputil.DecodeJSON(r.Body, &payload); err != nil {
		httputil.WriteError(w, err)
		return
	}

	res, err := h.custody.ConfirmBackup(r.Context(), mux.Vars(r)["id"], payload.Words, requestContext(r))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]bool{
		"confirmed":         res.Confirmed,
		"already_backed_up": res.AlreadyBackedUp,
	})
}

func (h *handler) recordTransaction(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		TxHash string `json:"tx_hash"`
	}
	if err := httputil.DecodeJSON(r.Body, &payload); err != nil {
		httputil.WriteError(w, err)
		return
	}

	if err := h.custody.RecordFirstTransaction(r.Context(), mux.Vars(r)["id"], payload.TxHash); err != nil {
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) accessLog(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			httputil.WriteError(w, errors.Validation("limit must be an integer"))
			return
		}
		limit = parsed
	}

	entries, err := h.custody.ListAccessLog(r.Context(), mux.Vars(r)["id"], limit)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toAccessLogResponse(entries))
}

func (h *handler) registerDevice(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		DeviceName string `json:"device_name"`
		Passcode   string `json:"passcode"`
	}
	if err := httputil.DecodeJSON(r.Body, &payload); err != nil {
		httputil.WriteError(w, err)
		return
	}

	passcodeID, err := h.passcodes.Register(r.Context(), payload.DeviceName, payload.Passcode)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, map[string]string{"passcode_id": passcodeID})
}

func (h *handler) reminders(w http.ResponseWriter, r *http.Request) {
	reminders, err := h.custody.ListReminders(r.Context(), mux.Vars(r)["passcodeID"])
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if reminders == nil {
		reminders = []custody.Reminder{}
	}
	httputil.WriteJSON(w, http.StatusOK, reminders)
}

func (h *handler) adminReveal(w http.ResponseWriter, r *http.Request) {
	adminCtx, ok := middleware.AdminFrom(r.Context())
	if !ok {
		httputil.Unauthorized(w, "admin identity required")
		return
	}

	revealed, err := h.custody.AdminReveal(r.Context(), mux.Vars(r)["id"], adminCtx, requestContext(r))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, revealed)
}

func (h *handler) adminExport(w http.ResponseWriter, r *http.Request) {
	adminCtx, ok := middleware.AdminFrom(r.Context())
	if !ok {
		httputil.Unauthorized(w, "admin identity required")
		return
	}

	secrets, err := h.custody.AdminMassExport(r.Context(), adminCtx, requestContext(r))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if secrets == nil {
		secrets = []custody.RevealedSecret{}
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"count":   len(secrets),
		"secrets": secrets,
	})
}

func requestContext(r *http.Request) auditdom.RequestContext {
	return auditdom.RequestContext{
		IP:        httputil.ClientIP(r),
		UserAgent: r.UserAgent(),
	}
}
