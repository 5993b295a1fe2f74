package handler

import (
	"desci/internal/report/models"
	"desci/pkg/domain"
)

type ReportsResponse struct {
	Researcher domain.AccountID `json:"researcher"`
	Reports    []*models.Report `json:"reports"`
}
