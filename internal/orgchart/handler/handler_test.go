package handler

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"organograma/internal/directory/models"
	"organograma/internal/layout"
	"organograma/internal/orgchart/handler/mocks"
	"organograma/internal/orgchart/service"
	"organograma/internal/policy"
	dErrors "organograma/pkg/domain-errors"
	"organograma/pkg/requestcontext"
)

//go:generate mockgen -source=handler.go -destination=mocks/mocks.go -package=mocks Service

func newRouter(t *testing.T, role policy.Role) (chi.Router, *mocks.MockService) {
	t.Helper()
	ctrl := gomock.NewController(t)
	svc := mocks.NewMockService(ctrl)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			ctx := requestcontext.WithActor(req.Context(), policy.Actor{UserID: "u-1", Role: role})
			next.ServeHTTP(w, req.WithContext(ctx))
		})
	})
	New(svc, logger).Register(r)
	return r, svc
}

func TestHandleView(t *testing.T) {
	generated := time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)

	t.Run("renders nodes and edges", func(t *testing.T) {
		r, svc := newRouter(t, policy.RoleMilitar)
		svc.EXPECT().View(gomock.Any(), "silva").Return(&service.ChartView{
			Nodes: []layout.Node{
				{ID: "1", Label: layout.Label{Rank: "Cel", Name: "Almeida", Sector: "Comando"}},
				{ID: "2", Position: layout.Position{X: -100, Y: 150}, Level: 1, Label: layout.Label{Rank: "Cap", Name: "Silva"}},
			},
			Edges:       []layout.Edge{{ID: "1-2", Source: "1", Target: "2"}},
			GeneratedAt: generated,
			Total:       7,
		}, nil)

		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/orgchart?q=silva", nil))

		require.Equal(t, http.StatusOK, w.Code)
		var body struct {
			Nodes []struct {
				ID       string `json:"id"`
				Position struct {
					X float64 `json:"x"`
					Y float64 `json:"y"`
				} `json:"position"`
				Level int               `json:"level"`
				Data  map[string]string `json:"data"`
			} `json:"nodes"`
			Edges       []map[string]string `json:"edges"`
			GeneratedAt time.Time           `json:"generated_at"`
			Total       int                 `json:"total"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		require.Len(t, body.Nodes, 2)
		assert.Equal(t, -100.0, body.Nodes[1].Position.X)
		assert.Equal(t, 1, body.Nodes[1].Level)
		assert.Equal(t, "Silva", body.Nodes[1].Data["name"])
		assert.Equal(t, "Comando", body.Nodes[0].Data["sector"])
		assert.Equal(t, map[string]string{"id": "1-2", "source": "1", "target": "2"}, body.Edges[0])
		assert.Equal(t, 7, body.Total)
		assert.True(t, generated.Equal(body.GeneratedAt))
	})

	t.Run("cycle surfaces as unprocessable", func(t *testing.T) {
		r, svc := newRouter(t, policy.RoleAdmin)
		svc.EXPECT().View(gomock.Any(), "").
			Return(nil, dErrors.New(dErrors.CodeInvariantViolation, "superior chain forms a cycle"))

		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/orgchart", nil))

		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	})

	t.Run("unknown role is forbidden", func(t *testing.T) {
		r, _ := newRouter(t, policy.Role(""))

		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/orgchart", nil))

		assert.Equal(t, http.StatusForbidden, w.Code)
	})
}

func TestHandleSelect(t *testing.T) {
	t.Run("returns person and sector", func(t *testing.T) {
		r, svc := newRouter(t, policy.RoleMilitar)
		svc.EXPECT().Select(gomock.Any(), "p-1").Return(&service.Selection{
			Person:     &models.Person{ID: "p-1", WarName: "Silva", Rank: "Cap", Phone: "(92) 99999-0000"},
			SectorName: "S1",
			Node:       layout.Node{ID: "p-1"},
		}, nil)

		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/orgchart/nodes/p-1", nil))

		require.Equal(t, http.StatusOK, w.Code)
		var sel service.Selection
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &sel))
		assert.Equal(t, "S1", sel.SectorName)
		assert.Equal(t, "(92) 99999-0000", sel.Person.Phone)
	})

	t.Run("unknown node", func(t *testing.T) {
		r, svc := newRouter(t, policy.RoleMilitar)
		svc.EXPECT().Select(gomock.Any(), "nope").
			Return(nil, dErrors.New(dErrors.CodeNotFound, "person not in org chart"))

		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/orgchart/nodes/nope", nil))

		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}
