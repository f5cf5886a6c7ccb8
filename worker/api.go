package worker

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/coolray-dev/rayfleet/models"
	"github.com/coolray-dev/rayfleet/utils"
)

// AdminAPI is the HTTP trigger surface for sync and bulk status operations.
// It only parses requests and maps results to responses; all semantics live
// in the Reconciler and BulkUpdater.
type AdminAPI struct {
	Addr        string
	AccessToken string
	Reconciler  *Reconciler
	Bulk        *BulkUpdater
	WaitGroup   *sync.WaitGroup
	server      *http.Server
}

func NewAdminAPI(addr, token string, reconciler *Reconciler, bulk *BulkUpdater) *AdminAPI {
	return &AdminAPI{
		Addr:        addr,
		AccessToken: token,
		Reconciler:  reconciler,
		Bulk:        bulk,
	}
}

// Start start a instance
func (a *AdminAPI) Start() {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/admin/", a.handleAdmin)
	a.server = &http.Server{Addr: a.Addr, Handler: mux}

	a.WaitGroup.Add(1)
	go func() {
		if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			utils.Log.WithError(err).Error("Admin API Stopped Unexpectedly")
		}
	}()
	utils.Log.WithField("addr", a.Addr).Info("Admin API Started")
}

// Stop stop a instance
func (a *AdminAPI) Stop() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	a.server.Shutdown(ctx)
	a.WaitGroup.Done()
}

// handleAdmin routes POST /api/admin/{username}/sync and
// POST /api/admin/{username}/users/{disable|activate}.
func (a *AdminAPI) handleAdmin(w http.ResponseWriter, r *http.Request) {
	if a.AccessToken != "" && r.Header.Get("Authorization") != "Bearer "+a.AccessToken {
		writeDetail(w, http.StatusUnauthorized, "Not authenticated")
		return
	}
	if r.Method != http.MethodPost {
		writeDetail(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	parts := strings.Split(strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/admin/"), "/"), "/")
	switch {
	case len(parts) == 2 && parts[1] == "sync":
		a.handleSync(w, r, parts[0])
	case len(parts) == 3 && parts[1] == "users" && parts[2] == "disable":
		a.handleBulk(w, parts[0], false, "Users successfully disabled")
	case len(parts) == 3 && parts[1] == "users" && parts[2] == "activate":
		a.handleBulk(w, parts[0], true, "Users successfully activated")
	default:
		writeDetail(w, http.StatusNotFound, "Not found")
	}
}

func (a *AdminAPI) handleSync(w http.ResponseWriter, r *http.Request, admin string) {
	var policy models.AllowedInbounds
	if err := json.NewDecoder(r.Body).Decode(&policy); err != nil {
		writeDetail(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	report, err := a.Reconciler.Sync(admin, policy)
	if err != nil {
		writeDetail(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (a *AdminAPI) handleBulk(w http.ResponseWriter, admin string, activate bool, detail string) {
	if err := a.Bulk.SetStatusForAdmin(admin, activate); err != nil {
		writeDetail(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeDetail(w, http.StatusOK, detail)
}

func writeJSON(w http.ResponseWriter, code int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(payload)
}

func writeDetail(w http.ResponseWriter, code int, detail string) {
	writeJSON(w, code, map[string]string{"detail": detail})
}
