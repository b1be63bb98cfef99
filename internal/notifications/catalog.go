package notifications

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"
)

var englishMessages = map[string]string{
	TypeUserCancelledAuth:   "You cancelled signing in.",
	TypeAuthNetworkError:    "Could not reach the sign-in service. Check your connection and try again.",
	TypeAuthCookiesDisabled: "Signing in requires third-party cookies. Enable them and try again.",
	TypeAuthError:           "Something went wrong while signing in.",
	TypeGistExportComplete:  "Your gist is ready: %s",
	TypeGistExportError:     "Something went wrong exporting your gist.",
	TypeEmptyGist:           "Your project is empty. Add some code before exporting.",
	TypeProjectLoadFailed:   "The requested project could not be loaded.",
}

// Catalog renders notifications as human-readable text.
type Catalog struct {
	printer *message.Printer
}

// NewCatalog builds the message catalog for tag. Only English text ships;
// other tags fall back to it.
func NewCatalog(tag language.Tag) (*Catalog, error) {
	builder := catalog.NewBuilder(catalog.Fallback(language.English))
	for key, text := range englishMessages {
		if err := builder.SetString(language.English, key, text); err != nil {
			return nil, err
		}
	}
	return &Catalog{printer: message.NewPrinter(tag, message.Catalog(builder))}, nil
}

// Text returns the message for n. Unknown types render as their type name.
func (c *Catalog) Text(n Notification) string {
	if _, ok := englishMessages[n.Type]; !ok {
		return n.Type
	}
	if url, ok := n.Payload["url"]; ok {
		return c.printer.Sprintf(n.Type, url)
	}
	return c.printer.Sprintf(n.Type)
}
