package agent

import (
	"testing"

	"github.com/sandevgo/lilybot/internal/config"
	"github.com/sandevgo/lilybot/internal/core"
	"github.com/sandevgo/lilybot/internal/service/tools"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChannelProfile(t *testing.T) {
	p := channel()

	assert.False(t, p.RunMemoryReconcile)
	assert.Equal(t, 3, p.MaxToolCalls)
	assert.ElementsMatch(t,
		[]string{tools.FetchMemory, tools.SearchWeb, tools.GetCurrentTime},
		p.Allowlist,
	)
	assert.Equal(t, "Ann: hi", p.Transform(core.Requester{Name: "Ann"}, "hi"))
	assert.Equal(t, "42: hi", p.Transform(core.Requester{ID: "42"}, "hi"))
}

func TestIdentityPersona(t *testing.T) {
	rule := IdentityPersona("master text", "hello {name}")

	tests := []struct {
		name       string
		req        core.Requester
		wantPrompt string
		wantFlag   string
	}{
		{"master", core.Requester{ID: "1", Name: "Sam", IsMaster: true}, "master text", "Is master: yes"},
		{"stranger", core.Requester{ID: "2", Name: "Ann"}, "hello Ann", "Is master: no"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msgs := rule(tt.req, fixedNow)
			require.Len(t, msgs, 2)
			assert.Equal(t, core.RoleSystem, msgs[0].Role)
			assert.Equal(t, tt.wantPrompt, msgs[0].Content)
			assert.Contains(t, msgs[1].Content, tt.wantFlag)
			assert.Contains(t, msgs[1].Content, "User ID: "+tt.req.ID)
			assert.Contains(t, msgs[1].Content, "Speaking with: "+tt.req.Name)
			assert.Contains(t, msgs[1].Content, "Saturday, 14 March 2026 09:30 UTC")
		})
	}
}

func TestChatboxProfile(t *testing.T) {
	p := chatbox()

	assert.Nil(t, p.Allowlist)
	assert.True(t, p.RunMemoryReconcile)
	assert.Equal(t, 5, p.MaxToolCalls)
	assert.Equal(t, 2, p.ReconcileAttempts)
	assert.Equal(t, "hi", p.Transform(core.Requester{Name: "Ann"}, "hi"))

	msgs := p.Persona(core.Requester{IsMaster: true}, fixedNow)
	require.Len(t, msgs, 1)
	assert.Equal(t, config.DefaultChatboxPersona, msgs[0].Content)
}

func TestChatboxProfile_ReconcileCanBeDisabled(t *testing.T) {
	off := false
	s := config.DefaultProfilesConfig().Chatbox
	s.RunReconcile = &off
	assert.False(t, ChatboxProfile(s).RunMemoryReconcile)
}
