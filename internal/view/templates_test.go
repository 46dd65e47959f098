package view

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEngine(t *testing.T) {
	engine, err := NewEngine()
	assert.NoError(t, err, "Templates should parse without error")
	assert.NotNil(t, engine)
}

func TestRenderLanding(t *testing.T) {
	engine, err := NewEngine()
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	err = engine.Render(rec, "pages/landing.html", TemplateData{Title: "Welcome"})
	require.NoError(t, err)
	assert.Equal(t, "text/html; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), "Welcome")
}

func TestRenderLogin(t *testing.T) {
	engine, err := NewEngine()
	require.NoError(t, err)

	data := struct {
		Form struct {
			Email    string
			Password string
		}
		Errors map[string]string
	}{}
	data.Form.Email = "principal@greenfield.test"

	rec := httptest.NewRecorder()
	err = engine.Render(rec, "pages/login.html", TemplateData{Title: "Sign in", CSRFToken: "tok-123", Data: data})
	require.NoError(t, err)
	assert.Contains(t, rec.Body.String(), "tok-123")
	assert.Contains(t, rec.Body.String(), "principal@greenfield.test")
}

func TestRenderNilEngine(t *testing.T) {
	var engine *Engine
	err := engine.Render(httptest.NewRecorder(), "pages/landing.html", TemplateData{})
	assert.Error(t, err)
}
