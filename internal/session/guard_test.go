package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/conneroisu/popcode/internal/auth"
	"github.com/conneroisu/popcode/internal/project"
)

func TestShouldConfirmUnload(t *testing.T) {
	pristine := project.New("p1")
	edited := pristine.WithSource(project.CSS, "body {}", time.Now())
	withLibrary := pristine.ToggleLibrary("jquery", time.Now())
	minimized := pristine.WithComponentHidden("editor.css", true, time.Now())
	loaded := project.FromJS(project.Raw{
		ProjectKey: "shared",
		Sources:    map[string]string{"html": "<p>shared</p>", "javascript": "alert(1)"},
	})
	signedIn := auth.Credential{User: auth.User{Login: "octo"}}.AuthenticatedUser()

	testCases := []struct {
		name     string
		user     auth.User
		current  *project.Project
		expected bool
	}{
		{"anonymous with edits", auth.Anonymous(), &edited, true},
		{"anonymous with library", auth.Anonymous(), &withLibrary, true},
		{"anonymous pristine", auth.Anonymous(), &pristine, false},
		{"anonymous with only hidden panes", auth.Anonymous(), &minimized, false},
		{"anonymous with untouched loaded project", auth.Anonymous(), &loaded, false},
		{"anonymous without project", auth.Anonymous(), nil, false},
		{"signed in with edits", signedIn, &edited, false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, ShouldConfirmUnload(tc.user, tc.current))
		})
	}
}
