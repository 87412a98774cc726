package handler

import (
	"math"
	"net/http"
	"strings"
	"time"

	"qrpass/internal/attendance/models"
	"qrpass/internal/attendance/scan"
)

type ScanRequest struct {
	Token string `json:"token" validate:"required,notblank,max=512"`
}

func (r *ScanRequest) Normalize() {
	r.Token = strings.TrimSpace(r.Token)
}

type ScanResponse struct {
	Status            string        `json:"status"`
	Punch             *models.Punch `json:"punch,omitempty"`
	Reason            string        `json:"reason,omitempty"`
	Message           string        `json:"message"`
	RetryAfterSeconds int           `json:"retry_after_seconds,omitempty"`
}

type PunchesResponse struct {
	Date    string          `json:"date"`
	Punches []*models.Punch `json:"punches"`
	Count   int             `json:"count"`
}

type UsageResponse struct {
	Mobile string             `json:"mobile"`
	Days   []models.UsageStat `json:"days"`
	Total  int                `json:"total"`
}

type ReconcileResponse struct {
	Date       string          `json:"date"`
	Removed    int             `json:"removed"`
	Duplicates []*models.Punch `json:"duplicates,omitempty"`
}

func retrySeconds(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int(math.Ceil(d.Seconds()))
}

// toScanResponse maps an outcome to its status code and body. Refusals the
// scanner should show as-is are 200; throttling and store failures are not.
func toScanResponse(out scan.Outcome) (int, ScanResponse) {
	switch o := out.(type) {
	case *scan.Accepted:
		return http.StatusOK, ScanResponse{
			Status:  "accepted",
			Punch:   o.Punch,
			Message: "Attendance marked for " + o.Punch.OwnerName,
		}
	case *scan.Rejected:
		resp := ScanResponse{
			Status:            "rejected",
			Reason:            string(o.Reason),
			Message:           o.Message,
			RetryAfterSeconds: retrySeconds(o.RetryAfter),
		}
		switch o.Reason {
		case scan.ReasonRateLimited:
			return http.StatusTooManyRequests, resp
		case scan.ReasonTransientFailure:
			return http.StatusServiceUnavailable, resp
		default:
			return http.StatusOK, resp
		}
	default:
		return http.StatusInternalServerError, ScanResponse{Status: "rejected", Reason: string(scan.ReasonUnknown), Message: "Scan rejected"}
	}
}
