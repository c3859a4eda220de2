package handler

import "organograma/internal/directory/models"

type personListResponse struct {
	Persons []*models.Person `json:"persons"`
	Total   int              `json:"total"`
}

type sectorListResponse struct {
	Sectors []*models.Sector `json:"sectors"`
	Total   int              `json:"total"`
}

type organizationListResponse struct {
	Organizations []*models.Organization `json:"organizations"`
	Total         int                    `json:"total"`
}

type rosterResponse struct {
	Entries []models.RosterEntry `json:"entries"`
	Total   int                  `json:"total"`
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
