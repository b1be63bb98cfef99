//go:build property

package validation

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/conneroisu/popcode/internal/project"
)

func genState() gopter.Gen {
	return gen.IntRange(int(Passed), int(Failed)).Map(func(v int) State { return State(v) })
}

func TestAggregateProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.Rng.Seed(777)
	parameters.MinSuccessfulTests = 300

	properties := gopter.NewProperties(parameters)

	properties.Property("typing never yields failed", prop.ForAll(
		func(html, css, js State) bool {
			s := map[project.Language]State{project.HTML: html, project.CSS: css, project.JavaScript: js}
			return Aggregate(s, true) != Failed
		},
		genState(), genState(), genState(),
	))

	properties.Property("passed only when every language passed", prop.ForAll(
		func(html, css, js State, typing bool) bool {
			s := map[project.Language]State{project.HTML: html, project.CSS: css, project.JavaScript: js}
			allPassed := html == Passed && css == Passed && js == Passed
			return (Aggregate(s, typing) == Passed) == allPassed
		},
		genState(), genState(), genState(), gen.Bool(),
	))

	properties.Property("idle result is the worst state", prop.ForAll(
		func(html, css, js State) bool {
			s := map[project.Language]State{project.HTML: html, project.CSS: css, project.JavaScript: js}
			worst := max(html, css, js)
			return Aggregate(s, false) == worst
		},
		genState(), genState(), genState(),
	))

	properties.TestingRun(t)
}
