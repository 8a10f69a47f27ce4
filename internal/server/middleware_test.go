package server

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/milckywayy/ISOD-NewsAnalytics/internal/session"
)

func TestRequireLogin(t *testing.T) {
	assert.Equal(t, RedirectTo("/login"), RequireLogin(session.Identity{}))
	assert.True(t, RequireLogin(session.Identity{UserID: "1", LoggedIn: true}).Allowed())
}

func TestRequireAdmin(t *testing.T) {
	guard := RequireAdmin(func(id string) bool { return id == "1" })

	assert.True(t, guard(session.Identity{UserID: "1", LoggedIn: true}).Allowed())

	d := guard(session.Identity{UserID: "2", LoggedIn: true})
	assert.False(t, d.Allowed())
	assert.Equal(t, "/logout", d.Redirect)
	assert.True(t, d.ClearSession)
}

func TestDecisionZeroValueAllows(t *testing.T) {
	assert.True(t, Allow.Allowed())
	assert.False(t, RedirectTo("/x").Allowed())
	assert.False(t, RedirectTo("/x").ClearSession)
}
