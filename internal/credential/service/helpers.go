package service

import (
	"errors"
	"sort"
	"time"

	"qrpass/internal/credential/models"
	"qrpass/internal/sentinel"
	dErrors "qrpass/pkg/domain-errors"
)

func countLive(creds []*models.Credential, now time.Time) int {
	n := 0
	for _, c := range creds {
		if models.IsLive(c, now) {
			n++
		}
	}
	return n
}

// sortNewestFirst orders by createdAt descending. Stores may already do
// this; the sort keeps Generate independent of store ordering.
func sortNewestFirst(creds []*models.Credential) {
	sort.SliceStable(creds, func(i, j int) bool {
		return creds[i].CreatedAt.After(creds[j].CreatedAt)
	})
}

func storeError(err error, msg string) error {
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeNotFound, "credential not found")
	case errors.Is(err, sentinel.ErrInvalidState):
		return dErrors.New(dErrors.CodeInvalidState, "disabled credentials cannot be extended")
	default:
		return dErrors.Wrap(err, dErrors.CodeUnavailable, msg)
	}
}
