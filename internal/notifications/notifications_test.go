package notifications

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"
)

func TestNewDefaultsToError(t *testing.T) {
	payload := map[string]string{"url": "https://x"}
	n := New(TypeGistExportComplete, "", payload)
	payload["url"] = "changed"

	assert.Equal(t, LevelError, n.Level)
	assert.Equal(t, "https://x", n.Payload["url"])
}

func TestQueueAddAndDismiss(t *testing.T) {
	var q Queue
	q1 := q.Add(New(TypeEmptyGist, LevelError, nil))
	q2 := q1.Add(New(TypeAuthError, LevelError, nil))

	assert.Equal(t, 0, q.Len())
	assert.Equal(t, 1, q1.Len())
	require.Equal(t, 2, q2.Len())
	assert.Equal(t, TypeEmptyGist, q2.Items()[0].Type)
	assert.Equal(t, TypeAuthError, q2.Items()[1].Type)

	q3 := q2.Dismiss(TypeEmptyGist)
	assert.False(t, q3.Has(TypeEmptyGist))
	assert.True(t, q3.Has(TypeAuthError))
	assert.True(t, q2.Has(TypeEmptyGist))
}

func TestQueueReplacesSameType(t *testing.T) {
	q := Queue{}.
		Add(New(TypeGistExportComplete, LevelNotice, map[string]string{"url": "a"})).
		Add(New(TypeAuthError, LevelError, nil)).
		Add(New(TypeGistExportComplete, LevelNotice, map[string]string{"url": "b"}))

	items := q.Items()
	require.Len(t, items, 2)
	assert.Equal(t, TypeGistExportComplete, items[0].Type)
	assert.Equal(t, "b", items[0].Payload["url"])
}

func TestCatalogText(t *testing.T) {
	catalog, err := NewCatalog(language.English)
	require.NoError(t, err)

	assert.Equal(t, "Your gist is ready: https://gist.github.com/1",
		catalog.Text(New(TypeGistExportComplete, LevelNotice, map[string]string{"url": "https://gist.github.com/1"})))
	assert.Contains(t, catalog.Text(New(TypeEmptyGist, "", nil)), "empty")
	assert.Equal(t, "mystery", catalog.Text(New("mystery", "", nil)))
}

func TestCatalogFallsBackToEnglish(t *testing.T) {
	catalog, err := NewCatalog(language.German)
	require.NoError(t, err)
	assert.Contains(t, catalog.Text(New(TypeAuthError, "", nil)), "signing in")
}
