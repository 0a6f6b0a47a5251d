package httpx

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hookline/hookline/engine/component"
	"github.com/hookline/hookline/engine/core"
)

func TestGetAction(t *testing.T) {
	t.Run("Should fetch the URL and report status and body", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodGet, r.Method)
			_, _ = w.Write([]byte("pong"))
		}))
		defer srv.Close()

		action, err := newGetAction(core.Params{"url": srv.URL})
		require.NoError(t, err)

		resp, err := action.Execute(context.Background())
		require.NoError(t, err)
		require.NotNil(t, resp)
		assert.True(t, resp.Success)
		assert.Equal(t, http.StatusOK, resp.Fields["status"])
		assert.Equal(t, "pong", resp.Fields["body"])
	})

	t.Run("Should treat a non-2xx response as a result, not an error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "gone", http.StatusNotFound)
		}))
		defer srv.Close()

		action, err := newGetAction(core.Params{"url": srv.URL})
		require.NoError(t, err)

		resp, err := action.Execute(context.Background())
		require.NoError(t, err)
		require.NotNil(t, resp)
		assert.Equal(t, http.StatusNotFound, resp.Fields["status"])
	})

	t.Run("Should require the url field", func(t *testing.T) {
		reg := component.NewRegistry()
		require.NoError(t, Register(reg))
		def, err := reg.Action("http_get_action")
		require.NoError(t, err)

		_, err = def.ValidateConfig(core.Params{})
		require.ErrorIs(t, err, core.ErrInvalidConfig)
		require.ErrorContains(t, err, "url")
	})

	t.Run("Should skip the fetch when the filter rejects", func(t *testing.T) {
		action, err := newGetAction(core.Params{
			"url": "http://127.0.0.1:1/unreachable",
			"filter": map[string]any{
				"conditions": []any{
					map[string]any{"field": "status", "operator": "equals", "value": "up"},
				},
			},
		})
		require.NoError(t, err)

		resp, err := action.Execute(context.Background())
		require.NoError(t, err)
		assert.Nil(t, resp)
	})
}
